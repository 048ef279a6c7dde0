package persistence

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/cirm-data/portal/modules/funding/domain/change"
	"github.com/cirm-data/portal/modules/funding/domain/cirm"
	"github.com/cirm-data/portal/pkg/composables"
	"github.com/cirm-data/portal/pkg/repo"
)

type PgChangeLogRepository struct{}

func NewChangeLogRepository() change.Repository {
	return &PgChangeLogRepository{}
}

func (r *PgChangeLogRepository) List(ctx context.Context, params *change.FindParams) ([]change.Change, error) {
	if params == nil {
		params = &change.FindParams{}
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	query := repo.Join(`
SELECT id, change_type, entity_type, entity_id, changes, snapshot, created_at
FROM funding_change_log
ORDER BY created_at DESC, id DESC`,
		repo.FormatLimitOffset(params.Limit, params.Offset),
	)
	rows, err := tx.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []change.Change{}
	for rows.Next() {
		entry, err := scanChange(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (r *PgChangeLogRepository) GetByID(ctx context.Context, id string) (*change.Change, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `
SELECT id, change_type, entity_type, entity_id, changes, snapshot, created_at
FROM funding_change_log
WHERE id = $1
`, id)
	entry, err := scanChange(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, change.ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

func (r *PgChangeLogRepository) Create(ctx context.Context, entry *change.Change) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	var changesRaw []byte
	if len(entry.Changes) > 0 {
		changesRaw, err = json.Marshal(entry.Changes)
		if err != nil {
			return err
		}
	}
	var snapshotRaw []byte
	if entry.Snapshot != nil {
		snapshotRaw, err = json.Marshal(entry.Snapshot)
		if err != nil {
			return err
		}
	}

	columns := []string{"id", "change_type", "entity_type", "entity_id", "changes", "snapshot", "created_at"}
	_, err = tx.Exec(ctx, repo.Insert("funding_change_log", columns),
		entry.ID, entry.Type, entry.EntityType, entry.EntityID, changesRaw, snapshotRaw, entry.Timestamp.UTC())
	return err
}

func (r *PgChangeLogRepository) Count(ctx context.Context) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}

	var total int64
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM funding_change_log`).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

type pgRow interface {
	Scan(dest ...any) error
}

func scanChange(row pgRow) (change.Change, error) {
	var (
		entry       change.Change
		changesRaw  []byte
		snapshotRaw []byte
	)
	if err := row.Scan(
		&entry.ID,
		&entry.Type,
		&entry.EntityType,
		&entry.EntityID,
		&changesRaw,
		&snapshotRaw,
		&entry.Timestamp,
	); err != nil {
		return change.Change{}, err
	}
	if len(changesRaw) > 0 {
		if err := json.Unmarshal(changesRaw, &entry.Changes); err != nil {
			return change.Change{}, err
		}
	}
	if len(snapshotRaw) > 0 {
		snapshot := &cirm.Snapshot{}
		if err := json.Unmarshal(snapshotRaw, snapshot); err != nil {
			return change.Change{}, err
		}
		entry.Snapshot = snapshot
	}
	return entry, nil
}
