package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cirm-data/portal/modules/funding/domain/change"
	"github.com/cirm-data/portal/modules/funding/domain/cirm"
	"github.com/cirm-data/portal/modules/funding/domain/events"
	"github.com/cirm-data/portal/pkg/composables"
	"github.com/cirm-data/portal/pkg/configuration"
	"github.com/cirm-data/portal/pkg/eventbus"
)

// DataStore holds the authoritative in-memory data set and writes through to
// the repositories. Mutation flows hold one lock from read to commit; readers
// always see a complete version because replacement is copy-on-write. A
// durable-write failure is logged and the in-memory state stands.
type DataStore struct {
	datasets  cirm.Repository
	changes   change.Repository
	publisher eventbus.EventBus

	// writeMu is held across a whole read-modify-write (Update); mu only
	// guards the pointer swap. writeMu is always taken first.
	writeMu sync.Mutex
	mu      sync.RWMutex
	current *cirm.Data
}

func NewDataStore(datasets cirm.Repository, changes change.Repository, publisher eventbus.EventBus) *DataStore {
	return &DataStore{
		datasets:  datasets,
		changes:   changes,
		publisher: publisher,
	}
}

// Load pulls the persisted data set into memory. cirm.ErrNoDataSet is
// returned untouched so the caller can decide to seed.
func (s *DataStore) Load(ctx context.Context) error {
	data, err := s.datasets.Get(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.current = data
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the current data set, reading through to the
// repository when memory is cold.
func (s *DataStore) Get(ctx context.Context) (*cirm.Data, error) {
	s.mu.RLock()
	if s.current != nil {
		data := s.current.Clone()
		s.mu.RUnlock()
		return data, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		data, err := s.datasets.Get(ctx)
		if err != nil {
			return nil, err
		}
		s.current = data
	}
	return s.current.Clone(), nil
}

// Update runs fn under the mutation lock and commits the data set it
// returns, together with an optional change entry. The lock spans the whole
// read-modify-write, so concurrent imports, edits and rollbacks cannot drop
// each other's changes. fn receives a detached copy, nil when no data set
// exists yet. Cancellation aborts before the critical section, never inside.
func (s *DataStore) Update(ctx context.Context, source string, fn func(current *cirm.Data) (*cirm.Data, *change.Change, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current, err := s.Get(ctx)
	if err != nil && !errors.Is(err, cirm.ErrNoDataSet) {
		return err
	}
	next, entry, err := fn(current)
	if err != nil {
		return err
	}
	return s.Set(ctx, next, entry, source)
}

// Set replaces the data set wholesale and persists it together with the
// optional change entry. The replacement is committed to memory first; the
// event publishes only after the durable write was attempted.
func (s *DataStore) Set(ctx context.Context, data *cirm.Data, entry *change.Change, source string) error {
	if data == nil {
		return errors.New("data store: nil data set")
	}

	s.mu.Lock()
	stored := data.Clone()
	s.current = stored

	if err := s.persist(ctx, stored, entry); err != nil {
		logEntry := storeLogger(ctx).WithError(err).WithField("source", source)
		if entry != nil {
			logEntry = logEntry.WithField("change_id", entry.ID)
		}
		logEntry.Error("durable write failed; in-memory state stands")
	}
	s.mu.Unlock()

	ev := &events.DataReplacedV1{
		Source:     source,
		UpdateDate: stored.UpdateDate,
		Summary:    stored.Summary,
		OccurredAt: time.Now().UTC(),
	}
	if entry != nil {
		ev.ChangeID = entry.ID
	}
	s.publisher.Publish(ev)
	recordDatasetGauges(stored)
	return nil
}

// persist writes the data set and the change entry in one transaction when
// the context carries a database pool. Without one, for example with the
// in-memory repositories, it writes directly.
func (s *DataStore) persist(ctx context.Context, data *cirm.Data, entry *change.Change) error {
	write := func(ctx context.Context) error {
		if err := s.datasets.Save(ctx, data); err != nil {
			recordStoreWriteFailure("dataset")
			return err
		}
		if entry != nil {
			if err := s.changes.Create(ctx, entry); err != nil {
				recordStoreWriteFailure("change")
				return err
			}
		}
		return nil
	}

	if _, err := composables.UsePool(ctx); err == nil {
		return composables.InTx(ctx, write)
	}
	return write(ctx)
}

// Request contexts carry a fields logger; seed and CLI paths may not.
func storeLogger(ctx context.Context) *logrus.Entry {
	if entry, ok := composables.TryUseLogger(ctx); ok {
		return entry
	}
	return logrus.NewEntry(configuration.Use().Logger())
}
