package events

import (
	"time"

	"github.com/cirm-data/portal/modules/funding/domain/cirm"
)

// Sources of a data set replacement.
const (
	SourceImport   = "import"
	SourceEdit     = "edit"
	SourceRollback = "rollback"
	SourceSeed     = "seed"
)

// DataReplacedV1 announces a committed replacement of the current data set.
// The websocket hub relays it to connected dashboards; in-process consumers
// subscribe through the event bus.
type DataReplacedV1 struct {
	Source     string       `json:"source"`
	ChangeID   string       `json:"changeId,omitempty"`
	UpdateDate string       `json:"updateDate"`
	Summary    cirm.Summary `json:"summary"`
	OccurredAt time.Time    `json:"occurredAt"`
}
