package persistence

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/cirm-data/portal/modules/funding/domain/cirm"
	"github.com/cirm-data/portal/pkg/composables"
)

// The data set is one JSONB document in a single-row table. The row is
// replaced wholesale on every commit; history lives in the change log, not
// here.
type PgDatasetRepository struct{}

func NewDatasetRepository() cirm.Repository {
	return &PgDatasetRepository{}
}

func (r *PgDatasetRepository) Get(ctx context.Context) (*cirm.Data, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	var raw []byte
	if err := tx.QueryRow(ctx, `
SELECT document
FROM funding_datasets
WHERE id = 1
`).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cirm.ErrNoDataSet
		}
		return nil, err
	}

	var data cirm.Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	data.Normalize()
	return &data, nil
}

func (r *PgDatasetRepository) Save(ctx context.Context, data *cirm.Data) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
INSERT INTO funding_datasets (id, document, updated_at)
VALUES (1, $1, now())
ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document, updated_at = now()
`, raw)
	return err
}
