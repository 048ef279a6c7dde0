package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/cirm-data/portal/modules/funding/domain/change"
	"github.com/cirm-data/portal/modules/funding/domain/cirm"
)

// In-memory repositories back the test harness and database-less deployments.
// They hold deep copies so callers cannot reach the stored state through
// returned pointers.

type MemoryDatasetRepository struct {
	mu   sync.RWMutex
	data *cirm.Data
}

func NewMemoryDatasetRepository() *MemoryDatasetRepository {
	return &MemoryDatasetRepository{}
}

func (r *MemoryDatasetRepository) Get(ctx context.Context) (*cirm.Data, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.data == nil {
		return nil, cirm.ErrNoDataSet
	}
	return r.data.Clone(), nil
}

func (r *MemoryDatasetRepository) Save(ctx context.Context, data *cirm.Data) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data = data.Clone()
	return nil
}

type MemoryChangeLogRepository struct {
	mu      sync.RWMutex
	entries []change.Change
}

func NewMemoryChangeLogRepository() *MemoryChangeLogRepository {
	return &MemoryChangeLogRepository{}
}

func (r *MemoryChangeLogRepository) List(ctx context.Context, params *change.FindParams) ([]change.Change, error) {
	if params == nil {
		params = &change.FindParams{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	sorted := make([]change.Change, len(r.entries))
	copy(sorted, r.entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].Timestamp.Equal(sorted[j].Timestamp) {
			return sorted[i].Timestamp.After(sorted[j].Timestamp)
		}
		return sorted[i].ID > sorted[j].ID
	})

	offset := params.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(sorted) {
		return []change.Change{}, nil
	}
	sorted = sorted[offset:]
	if params.Limit > 0 && params.Limit < len(sorted) {
		sorted = sorted[:params.Limit]
	}
	return sorted, nil
}

func (r *MemoryChangeLogRepository) GetByID(ctx context.Context, id string) (*change.Change, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.entries {
		if r.entries[i].ID == id {
			entry := r.entries[i]
			if entry.Snapshot != nil {
				entry.Snapshot = entry.Snapshot.Clone()
			}
			return &entry, nil
		}
	}
	return nil, change.ErrNotFound
}

func (r *MemoryChangeLogRepository) Create(ctx context.Context, entry *change.Change) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *entry
	if stored.Snapshot != nil {
		stored.Snapshot = stored.Snapshot.Clone()
	}
	r.entries = append(r.entries, stored)
	return nil
}

func (r *MemoryChangeLogRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.entries)), nil
}
