package funding

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cirm-data/portal/modules/funding/domain/cirm"
	"github.com/cirm-data/portal/modules/funding/domain/events"
	"github.com/cirm-data/portal/modules/funding/infrastructure/seed"
	"github.com/cirm-data/portal/modules/funding/services"
	"github.com/cirm-data/portal/pkg/application"
	"github.com/cirm-data/portal/pkg/configuration"
)

// SeedDataSet fills an empty store from SEED_DATA_URL on first boot. A store
// that already holds a data set is left alone.
func SeedDataSet(ctx context.Context, app application.Application) error {
	store := app.Service(services.DataStore{}).(*services.DataStore)

	err := store.Load(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, cirm.ErrNoDataSet) {
		return err
	}

	conf := configuration.Use()
	logger := conf.Logger()
	if conf.Seed.URL == "" {
		logger.Info("no seed data URL configured, starting with an empty data set")
		return nil
	}

	client, err := seed.NewClient(conf.Seed.URL, conf.Seed.Timeout)
	if err != nil {
		return err
	}
	doc, err := client.Fetch(ctx)
	if err != nil {
		return err
	}

	data, err := cirm.Merge(nil, cirm.DocumentPartial(doc), time.Now())
	if err != nil {
		return err
	}
	if err := store.Set(ctx, data, nil, events.SourceSeed); err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"grants":       len(data.Grants),
		"activeGrants": len(data.ActiveGrants),
		"papers":       len(data.Papers),
	}).Info("seeded data set")
	return nil
}
