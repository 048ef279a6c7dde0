package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/wI2L/jsondiff"

	"github.com/cirm-data/portal/modules/funding/domain/change"
	"github.com/cirm-data/portal/modules/funding/domain/cirm"
	"github.com/cirm-data/portal/modules/funding/domain/events"
)

// ChangeLogService records audit entries for mutating operations and replays
// snapshots. Entries are immutable once written; a rollback replaces the data
// set but keeps the entry and is itself never logged.
type ChangeLogService struct {
	repo  change.Repository
	store *DataStore
	ids   *change.IDGenerator
}

func NewChangeLogService(repo change.Repository, store *DataStore) *ChangeLogService {
	return &ChangeLogService{
		repo:  repo,
		store: store,
		ids:   change.NewIDGenerator(),
	}
}

func (s *ChangeLogService) List(ctx context.Context, limit, offset int) ([]change.Change, int64, error) {
	entries, err := s.repo.List(ctx, &change.FindParams{Limit: limit, Offset: offset})
	if err != nil {
		return nil, 0, gerrors.Wrap(err, "list changes")
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, 0, gerrors.Wrap(err, "count changes")
	}
	return entries, total, nil
}

func (s *ChangeLogService) GetByID(ctx context.Context, id string) (*change.Change, error) {
	return s.repo.GetByID(ctx, id)
}

// NewImportEntry describes an import as record-count transitions plus the
// pre-import snapshot. before is nil for the first baseline import.
func (s *ChangeLogService) NewImportEntry(before, after *cirm.Data, snapshot *cirm.Snapshot) *change.Change {
	oldGrants, oldActive, oldPapers := 0, 0, 0
	if before != nil {
		oldGrants = len(before.Grants)
		oldActive = len(before.ActiveGrants)
		oldPapers = len(before.Papers)
	}
	now := time.Now().UTC()
	return &change.Change{
		ID:         s.ids.Next(now),
		Type:       change.TypeAdd,
		EntityType: cirm.EntityDataset,
		Changes: map[string]change.FieldChange{
			"grants":       {Old: oldGrants, New: len(after.Grants)},
			"activeGrants": {Old: oldActive, New: len(after.ActiveGrants)},
			"papers":       {Old: oldPapers, New: len(after.Papers)},
		},
		Timestamp: now,
		Snapshot:  snapshot,
	}
}

// NewEditEntry diffs one record before and after a manual edit into per-field
// old/new pairs.
func (s *ChangeLogService) NewEditEntry(entityType, entityID string, before, after any, snapshot *cirm.Snapshot) (*change.Change, error) {
	changes, err := fieldChanges(before, after)
	if err != nil {
		return nil, gerrors.Wrap(err, "diff edited record")
	}
	now := time.Now().UTC()
	return &change.Change{
		ID:         s.ids.Next(now),
		Type:       change.TypeUpdate,
		EntityType: entityType,
		EntityID:   entityID,
		Changes:    changes,
		Timestamp:  now,
		Snapshot:   snapshot,
	}, nil
}

// Rollback replaces the current data set with the snapshot recorded on the
// given entry. Entries without a snapshot cannot be rolled back. The
// replacement runs under the store's mutation lock.
func (s *ChangeLogService) Rollback(ctx context.Context, id string) (*cirm.Data, error) {
	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		recordRollback("not_found")
		return nil, err
	}
	if entry.Snapshot == nil {
		recordRollback("no_snapshot")
		return nil, change.ErrNotFound.WithDetail("change entry has no snapshot")
	}

	var restored *cirm.Data
	err = s.store.Update(ctx, events.SourceRollback, func(current *cirm.Data) (*cirm.Data, *change.Change, error) {
		if current == nil {
			current = cirm.New()
		}

		snap := entry.Snapshot.Clone()
		restored = current
		restored.Grants = snap.Grants
		restored.ActiveGrants = snap.ActiveGrants
		restored.Papers = snap.Papers
		cirm.Recompute(restored)
		restored.Summary = snap.Summary
		restored.UpdateDate = time.Now().UTC().Format(time.RFC3339)
		return restored, nil, nil
	})
	if err != nil {
		recordRollback("error")
		return nil, err
	}
	recordRollback("success")
	return restored, nil
}

// fieldChanges reduces a JSON patch between two record versions to top-level
// field transitions.
func fieldChanges(before, after any) (map[string]change.FieldChange, error) {
	beforeRaw, err := json.Marshal(before)
	if err != nil {
		return nil, err
	}
	afterRaw, err := json.Marshal(after)
	if err != nil {
		return nil, err
	}

	patch, err := jsondiff.CompareJSON(beforeRaw, afterRaw)
	if err != nil {
		return nil, err
	}

	var beforeMap, afterMap map[string]any
	if err := json.Unmarshal(beforeRaw, &beforeMap); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(afterRaw, &afterMap); err != nil {
		return nil, err
	}

	out := map[string]change.FieldChange{}
	for _, op := range patch {
		path := strings.TrimPrefix(string(op.Path), "/")
		if path == "" {
			continue
		}
		field := path
		if i := strings.IndexByte(field, '/'); i >= 0 {
			field = field[:i]
		}
		if _, seen := out[field]; seen {
			continue
		}
		out[field] = change.FieldChange{Old: beforeMap[field], New: afterMap[field]}
	}
	return out, nil
}
