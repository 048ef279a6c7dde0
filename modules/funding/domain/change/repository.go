package change

import (
	"context"

	"github.com/cirm-data/portal/pkg/serrors"
)

// ErrNotFound marks a change entry that does not exist or cannot be
// rolled back because it carries no snapshot.
var ErrNotFound = serrors.NewError(
	"NOT_FOUND",
	"change entry not found",
	"Funding.Errors.ChangeNotFound",
)

type FindParams struct {
	Limit  int
	Offset int
}

// Repository stores the audit log. List returns entries most recent
// first.
type Repository interface {
	List(ctx context.Context, params *FindParams) ([]Change, error)
	GetByID(ctx context.Context, id string) (*Change, error)
	Create(ctx context.Context, entry *Change) error
	Count(ctx context.Context) (int64, error)
}
