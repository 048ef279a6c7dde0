package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/cirm-data/portal/modules/funding/domain/change"
	"github.com/cirm-data/portal/modules/funding/domain/cirm"
	"github.com/cirm-data/portal/modules/funding/domain/events"
	"github.com/cirm-data/portal/modules/funding/infrastructure/persistence"
	"github.com/cirm-data/portal/pkg/constants"
	"github.com/cirm-data/portal/pkg/eventbus"
)

func testContext() context.Context {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return context.WithValue(context.Background(), constants.LoggerKey, logrus.NewEntry(log))
}

func newTestBus() eventbus.EventBus {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return eventbus.NewEventPublisher(log)
}

func newTestStore() (*DataStore, *persistence.MemoryChangeLogRepository, eventbus.EventBus) {
	changes := persistence.NewMemoryChangeLogRepository()
	bus := newTestBus()
	store := NewDataStore(persistence.NewMemoryDatasetRepository(), changes, bus)
	return store, changes, bus
}

// testDocument is a small but fully shaped data set: two grant rounds, two
// active grants, one paper.
func testDocument() *cirm.Data {
	sortOrder := 1
	data := &cirm.Data{
		UpdateDate: "2025-01-15T10:00:00Z",
		Grants: []cirm.Grant{
			{
				ID: 1, ProgramType: "Discovery", GrantType: "DISC1",
				IcocApproval: "Jan 2020", TotalAwards: 10,
				AwardValue: 5000000, AwardStatus: cirm.StatusActive,
			},
			{
				ID: 2, ProgramType: "Clinical", GrantType: "CLIN2",
				IcocApproval: "Mar 2019", TotalAwards: 4,
				AwardValue: 12000000, AwardStatus: cirm.StatusClosed,
			},
		},
		ActiveGrants: []cirm.ActiveGrant{
			{
				GrantNumber: "DISC1-09999", ProgramType: "Discovery", GrantType: "DISC1",
				GrantTitle: "Stem cell disease models", PrincipalInvestigator: "A. Rivera",
				AwardValue: 250000, IcocApproval: "2023-06-01", AwardStatus: cirm.StatusActive,
				SortOrder: &sortOrder,
			},
			{
				GrantNumber: "CLIN2-00042", ProgramType: "Clinical", GrantType: "CLIN2",
				GrantTitle: "Phase II safety trial", PrincipalInvestigator: "B. Chen",
				AwardValue: 1200000, IcocApproval: "2022-11-15", AwardStatus: cirm.StatusActive,
			},
		},
		Papers: []cirm.Paper{
			{
				Title: "Progenitor expansion in vitro", ResearchTopic: "Neuro",
				Authors: "Rivera A; Chen B", Publication: "Cell Reports",
				GrantNumber: "DISC1-09999", GrantType: "DISC1", ProgramType: "Discovery",
			},
		},
	}
	data.Normalize()
	cirm.Recompute(data)
	return data
}

type failingDatasetRepo struct {
	saveErr error
}

func (r *failingDatasetRepo) Get(ctx context.Context) (*cirm.Data, error) {
	return nil, cirm.ErrNoDataSet
}

func (r *failingDatasetRepo) Save(ctx context.Context, data *cirm.Data) error {
	return r.saveErr
}

func TestDataStore_GetEmpty(t *testing.T) {
	t.Parallel()

	store, _, _ := newTestStore()
	_, err := store.Get(testContext())
	require.ErrorIs(t, err, cirm.ErrNoDataSet)
}

func TestDataStore_SetPublishesReplacedEvent(t *testing.T) {
	t.Parallel()

	store, changes, bus := newTestStore()
	var got *events.DataReplacedV1
	bus.Subscribe(func(ev *events.DataReplacedV1) { got = ev })

	data := testDocument()
	entry := &change.Change{
		ID:         "1712000000000-aaaa0000",
		Type:       change.TypeAdd,
		EntityType: cirm.EntityDataset,
		Timestamp:  time.Now().UTC(),
	}
	require.NoError(t, store.Set(testContext(), data, entry, events.SourceImport))

	require.NotNil(t, got)
	require.Equal(t, events.SourceImport, got.Source)
	require.Equal(t, entry.ID, got.ChangeID)
	require.Equal(t, data.Summary, got.Summary)
	require.Equal(t, data.UpdateDate, got.UpdateDate)

	stored, err := changes.GetByID(testContext(), entry.ID)
	require.NoError(t, err)
	require.Equal(t, change.TypeAdd, stored.Type)
}

func TestDataStore_GetReturnsDetachedCopy(t *testing.T) {
	t.Parallel()

	store, _, _ := newTestStore()
	data := testDocument()
	require.NoError(t, store.Set(testContext(), data, nil, events.SourceImport))

	// Caller-side mutations must not leak into the store.
	data.Grants[0].Notes = "scribbled after set"
	first, err := store.Get(testContext())
	require.NoError(t, err)
	require.Empty(t, first.Grants[0].Notes)

	first.ActiveGrants[0].AwardValue = 1
	first.Papers[0].Title = "tampered"

	second, err := store.Get(testContext())
	require.NoError(t, err)
	require.Equal(t, 250000.0, second.ActiveGrants[0].AwardValue)
	require.Equal(t, "Progenitor expansion in vitro", second.Papers[0].Title)
}

func TestDataStore_ReadsThroughColdMemory(t *testing.T) {
	t.Parallel()

	datasets := persistence.NewMemoryDatasetRepository()
	require.NoError(t, datasets.Save(testContext(), testDocument()))

	store := NewDataStore(datasets, persistence.NewMemoryChangeLogRepository(), newTestBus())
	got, err := store.Get(testContext())
	require.NoError(t, err)
	require.Len(t, got.Grants, 2)
	require.Len(t, got.ActiveGrants, 2)
}

func TestDataStore_DurableWriteFailureKeepsMemoryState(t *testing.T) {
	t.Parallel()

	store := NewDataStore(
		&failingDatasetRepo{saveErr: errors.New("connection refused")},
		persistence.NewMemoryChangeLogRepository(),
		newTestBus(),
	)

	require.NoError(t, store.Set(testContext(), testDocument(), nil, events.SourceImport))

	got, err := store.Get(testContext())
	require.NoError(t, err)
	require.Len(t, got.ActiveGrants, 2)
}

func TestDataStore_UpdateSerializesMutations(t *testing.T) {
	t.Parallel()

	store, _, _ := newTestStore()
	require.NoError(t, store.Set(testContext(), testDocument(), nil, events.SourceImport))

	// Each writer reads the grant count and appends one record. Without the
	// mutation lock two writers would read the same version and one append
	// would be lost.
	const writers = 16
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(n int) {
			defer wg.Done()
			errs <- store.Update(testContext(), events.SourceEdit, func(current *cirm.Data) (*cirm.Data, *change.Change, error) {
				current.Grants = append(current.Grants, cirm.Grant{
					ID:          len(current.Grants) + 1,
					ProgramType: "Discovery",
					GrantType:   fmt.Sprintf("DISC%d", n),
					TotalAwards: 1,
				})
				cirm.Recompute(current)
				return current, nil, nil
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	got, err := store.Get(testContext())
	require.NoError(t, err)
	require.Len(t, got.Grants, 2+writers)
	require.Equal(t, 2+writers, got.Summary.TotalGrants)
}

func TestDataStore_UpdateCanceledContext(t *testing.T) {
	t.Parallel()

	store, _, _ := newTestStore()
	require.NoError(t, store.Set(testContext(), testDocument(), nil, events.SourceImport))

	ctx, cancel := context.WithCancel(testContext())
	cancel()

	ran := false
	err := store.Update(ctx, events.SourceEdit, func(current *cirm.Data) (*cirm.Data, *change.Change, error) {
		ran = true
		return current, nil, nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, ran)
}
