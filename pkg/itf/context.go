package itf

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/cirm-data/portal/modules"
	"github.com/cirm-data/portal/pkg/application"
	"github.com/cirm-data/portal/pkg/composables"
	"github.com/cirm-data/portal/pkg/constants"
	"github.com/cirm-data/portal/pkg/eventbus"
)

// TestContext provides a fluent API for building test applications. The
// application is assembled without a database pool, so modules must be
// configured with in-memory repositories.
type TestContext struct {
	ctx     context.Context
	modules []application.Module
}

// NewTestContext creates a new TestContext builder
func NewTestContext() *TestContext {
	return &TestContext{
		ctx:     context.Background(),
		modules: []application.Module{},
	}
}

// WithModules adds modules to the test context
func (tc *TestContext) WithModules(mods ...application.Module) *TestContext {
	tc.modules = append(tc.modules, mods...)
	return tc
}

// Build creates the test context with all dependencies
func (tc *TestContext) Build(tb testing.TB) *TestEnvironment {
	tb.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	bundle := application.LoadBundle()
	app := application.New(&application.ApplicationOptions{
		EventBus: eventbus.NewEventPublisher(logger),
		Logger:   logger,
		Bundle:   bundle,
	})
	if err := modules.Load(app, tc.modules...); err != nil {
		tb.Fatal(err)
	}

	ctx := composables.WithParams(tc.ctx, DefaultParams())
	ctx = context.WithValue(ctx, constants.LoggerKey, logrus.NewEntry(logger))

	return &TestEnvironment{
		Ctx: ctx,
		App: app,
	}
}

func DefaultParams() *composables.Params {
	return &composables.Params{
		IP:        "",
		UserAgent: "",
		Request:   nil,
		Writer:    nil,
	}
}

// TestEnvironment contains all test dependencies
type TestEnvironment struct {
	Ctx context.Context
	App application.Application
}

// GetService is a generic helper that retrieves and casts a service
func GetService[T any](te *TestEnvironment) *T {
	var zero T
	service := te.App.Service(zero)
	if service == nil {
		return nil
	}
	return service.(*T)
}
