package funding

import (
	"embed"

	"github.com/cirm-data/portal/modules/funding/domain/change"
	"github.com/cirm-data/portal/modules/funding/domain/cirm"
	"github.com/cirm-data/portal/modules/funding/handlers"
	"github.com/cirm-data/portal/modules/funding/infrastructure/persistence"
	"github.com/cirm-data/portal/modules/funding/presentation/controllers"
	"github.com/cirm-data/portal/modules/funding/services"
	"github.com/cirm-data/portal/pkg/application"
)

//go:embed presentation/locales/*.json
var localeFiles embed.FS

//go:embed infrastructure/persistence/schema/*.sql
var migrationFiles embed.FS

type ModuleOption func(*Module)

// WithMemoryRepositories keeps the whole data set in process memory. Used
// when the portal runs without a database (DB_OPT_OUT) and in tests.
func WithMemoryRepositories() ModuleOption {
	return func(m *Module) {
		m.memory = true
	}
}

func NewModule(opts ...ModuleOption) application.Module {
	m := &Module{}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type Module struct {
	memory bool
}

func (m *Module) Register(app application.Application) error {
	app.RegisterLocaleFiles(&localeFiles)

	var (
		datasets cirm.Repository
		changes  change.Repository
	)
	if m.memory || app.DB() == nil {
		datasets = persistence.NewMemoryDatasetRepository()
		changes = persistence.NewMemoryChangeLogRepository()
	} else {
		app.Migrations().RegisterSchema(&migrationFiles)
		datasets = persistence.NewDatasetRepository()
		changes = persistence.NewChangeLogRepository()
	}

	store := services.NewDataStore(datasets, changes, app.EventPublisher())
	changeLog := services.NewChangeLogService(changes, store)

	app.RegisterServices(
		store,
		changeLog,
		services.NewImportService(store, changeLog),
		services.NewDatasetService(store, changeLog),
		services.NewSearchService(store),
	)

	app.RegisterControllers(
		controllers.NewFundingAPIController(app),
	)

	handlers.RegisterDatasetReplacedHandlers(app)
	return nil
}

func (m *Module) Name() string {
	return "funding"
}
