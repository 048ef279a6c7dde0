package cirm

import (
	"context"

	"github.com/cirm-data/portal/pkg/serrors"
)

// ErrNoDataSet marks an empty store: no baseline has been established yet.
var ErrNoDataSet = serrors.NewError(
	"NOT_FOUND",
	"no data set has been established yet",
	"Funding.Errors.NoDataSet",
)

// Repository persists the single current data set document.
type Repository interface {
	Get(ctx context.Context) (*Data, error)
	Save(ctx context.Context, data *Data) error
}
