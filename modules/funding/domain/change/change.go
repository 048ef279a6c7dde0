package change

import (
	"time"

	"github.com/cirm-data/portal/modules/funding/domain/cirm"
)

const (
	TypeAdd    = "add"
	TypeUpdate = "update"
	TypeDelete = "delete"
)

// FieldChange records one field's value before and after a mutation.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// Change is a single audit log entry. Snapshot holds the complete record
// state captured before the mutation was applied, so the entry can be
// rolled back later.
type Change struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	EntityType string                 `json:"entityType"`
	EntityID   string                 `json:"entityId"`
	Changes    map[string]FieldChange `json:"changes,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	Snapshot   *cirm.Snapshot         `json:"snapshot,omitempty"`
}
