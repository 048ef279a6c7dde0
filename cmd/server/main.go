package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"runtime/debug"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cirm-data/portal/internal/server"
	"github.com/cirm-data/portal/modules"
	"github.com/cirm-data/portal/modules/funding"
	"github.com/cirm-data/portal/pkg/application"
	"github.com/cirm-data/portal/pkg/composables"
	"github.com/cirm-data/portal/pkg/configuration"
	"github.com/cirm-data/portal/pkg/eventbus"
	"github.com/cirm-data/portal/pkg/logging"
	"github.com/cirm-data/portal/pkg/metrics"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			configuration.Use().Unload()
			log.Println(r)
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	conf := configuration.Use()
	logger := conf.Logger()

	if conf.OpenTelemetry.Enabled {
		tracingCleanup := logging.SetupTracing(
			context.Background(),
			conf.OpenTelemetry.ServiceName,
			conf.OpenTelemetry.TempoURL,
		)
		defer tracingCleanup()
		logger.Info("OpenTelemetry tracing enabled, exporting to Tempo at " + conf.OpenTelemetry.TempoURL)
	}

	var pool *pgxpool.Pool
	if conf.Database.OptOut {
		logger.Info("database opt-out set, keeping the data set in memory only")
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		var err error
		pool, err = pgxpool.New(ctx, conf.Database.Opts)
		if err != nil {
			panic(err)
		}
	}

	bundle := application.LoadBundle()
	app := application.New(&application.ApplicationOptions{
		Pool:     pool,
		Bundle:   bundle,
		EventBus: eventbus.NewEventPublisher(logger),
		Logger:   logger,
		Huber: application.NewHub(&application.HuberOptions{
			Pool:   pool,
			Logger: logger,
			Bundle: bundle,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		}),
	})
	if err := modules.Load(app, modules.BuiltInModules...); err != nil {
		log.Fatalf("failed to load modules: %v", err)
	}

	if pool != nil {
		if err := app.Migrations().Run(); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
	}

	seedCtx, seedCancel := context.WithTimeout(context.Background(), conf.Seed.Timeout+time.Second*10)
	defer seedCancel()
	if pool != nil {
		seedCtx = composables.WithPool(seedCtx, pool)
	}
	seeder := application.NewSeeder()
	seeder.Register(funding.SeedDataSet)
	if err := seeder.Seed(seedCtx, app); err != nil {
		log.Fatalf("failed to seed data set: %v", err)
	}

	if conf.Prometheus.Enabled {
		app.RegisterControllers(metrics.NewPrometheusController(conf.Prometheus.Path))
	}

	options := &server.DefaultOptions{
		Logger:        logger,
		Configuration: conf,
		Application:   app,
		Pool:          pool,
	}
	serverInstance, err := server.Default(options)
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}
	log.Printf("Listening on: %s\n", conf.Origin)
	if err := serverInstance.Start(conf.SocketAddress); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
