package cirm

import "encoding/json"

// Award statuses form an open enum; anything outside these two is carried
// through untouched.
const (
	StatusActive = "Active"
	StatusClosed = "Closed"
)

// Entity type labels used by change entries and the edit surface.
const (
	EntityGrant       = "grant"
	EntityActiveGrant = "activeGrant"
	EntityPaper       = "paper"
	EntityDataset     = "dataset"
)

// Grant is an aggregate funding-category record. Its id is assigned
// sequentially on import and is not stable across re-imports; programType plus
// grantType act as the natural key. totalAwards and awardValue are sums over
// same-type active grants, kept consistent only by merge recomputation.
type Grant struct {
	ID           int     `json:"id"`
	ProgramType  string  `json:"programType"`
	GrantType    string  `json:"grantType" validate:"required"`
	IcocApproval string  `json:"icocApproval"`
	TotalAwards  int     `json:"totalAwards"`
	AwardValue   float64 `json:"awardValue"`
	AwardStatus  string  `json:"awardStatus"`
	Notes        string  `json:"notes,omitempty"`
	IsNew        bool    `json:"isNew"`
}

// ActiveGrant is a single funded project, keyed by grantNumber across imports.
// previousAwardValue and previousAwardStatus are written by the merge engine
// when a re-import changes the value or closes the grant.
type ActiveGrant struct {
	GrantNumber           string   `json:"grantNumber" validate:"required"`
	ProgramType           string   `json:"programType"`
	GrantType             string   `json:"grantType"`
	GrantTitle            string   `json:"grantTitle"`
	DiseaseFocus          string   `json:"diseaseFocus,omitempty"`
	PrincipalInvestigator string   `json:"principalInvestigator"`
	AwardValue            float64  `json:"awardValue"`
	IcocApproval          string   `json:"icocApproval"`
	AwardStatus           string   `json:"awardStatus"`
	SortOrder             *int     `json:"sortOrder,omitempty"`
	IsNew                 bool     `json:"isNew"`
	ShowValueChange       bool     `json:"showValueChange"`
	ShowStatusChange      bool     `json:"showStatusChange"`
	PreviousAwardValue    *float64 `json:"previousAwardValue,omitempty"`
	PreviousAwardStatus   string   `json:"previousAwardStatus,omitempty"`
}

// Paper is a publication record. It has no single stable key; grantNumber may
// hold several numbers delimited by "/" or ";", parsed into GrantNumbers.
type Paper struct {
	Title            string   `json:"title" validate:"required"`
	ResearchTopic    string   `json:"researchTopic"`
	Authors          string   `json:"authors"`
	Publication      string   `json:"publication"`
	PublishedOnline  string   `json:"publishedOnline,omitempty"`
	GrantNumber      string   `json:"grantNumber"`
	GrantNumbers     []string `json:"grantNumbers"`
	GrantType        string   `json:"grantType"`
	ProgramType      string   `json:"programType"`
	GrantTitle       string   `json:"grantTitle"`
	AwardStatus      string   `json:"awardStatus"`
	ManualUpdateDate string   `json:"manualUpdateDate,omitempty"`
}

// Summary is recomputed wholesale from the record arrays after every mutation
// and never edited independently.
type Summary struct {
	TotalGrants    int     `json:"totalGrants"`
	TotalPapers    int     `json:"totalPapers"`
	TotalProjects  int     `json:"totalProjects"`
	TotalAmount    float64 `json:"totalAmount"`
	ActiveProjects int     `json:"activeProjects"`
}

// StatEntry aggregates projects and amount under one stats key.
type StatEntry struct {
	Projects int     `json:"projects"`
	Amount   float64 `json:"amount"`
}

// Data is the full persisted aggregate. Visualization is an opaque
// presentation-owned chart document passed through untouched.
type Data struct {
	Summary       Summary              `json:"summary"`
	UpdateDate    string               `json:"updateDate"`
	Grants        []Grant              `json:"grants"`
	ActiveGrants  []ActiveGrant        `json:"activeGrants"`
	Papers        []Paper              `json:"papers"`
	ProgramStats  map[string]StatEntry `json:"programStats"`
	YearlyStats   map[string]StatEntry `json:"yearlyStats"`
	Visualization json.RawMessage      `json:"visualization,omitempty"`
}

// Snapshot is the complete pre-mutation state captured for rollback. It is a
// full copy, not a diff, so restoring is a single replacement.
type Snapshot struct {
	Grants       []Grant       `json:"grants"`
	ActiveGrants []ActiveGrant `json:"activeGrants"`
	Papers       []Paper       `json:"papers"`
	Summary      Summary       `json:"summary"`
}

// Partial is an importer result: zero or more record arrays plus the number of
// rows skipped for missing primary fields.
type Partial struct {
	Grants       []Grant
	ActiveGrants []ActiveGrant
	Papers       []Paper

	// Baseline carries a complete document when the upload was structured
	// JSON; spreadsheets never set it.
	Baseline *Data

	SkippedRows int
}

// IsEmpty reports whether the partial carries no records and no baseline.
func (p *Partial) IsEmpty() bool {
	return p.Baseline == nil &&
		len(p.Grants) == 0 && len(p.ActiveGrants) == 0 && len(p.Papers) == 0
}

// New returns an empty data set with all arrays and maps allocated, so the
// persisted JSON renders [] and {} rather than null.
func New() *Data {
	return &Data{
		Grants:       []Grant{},
		ActiveGrants: []ActiveGrant{},
		Papers:       []Paper{},
		ProgramStats: map[string]StatEntry{},
		YearlyStats:  map[string]StatEntry{},
	}
}

// Normalize allocates any nil arrays or maps in place. Documents arriving from
// partial JSON imports may omit whole sections.
func (d *Data) Normalize() {
	if d.Grants == nil {
		d.Grants = []Grant{}
	}
	if d.ActiveGrants == nil {
		d.ActiveGrants = []ActiveGrant{}
	}
	if d.Papers == nil {
		d.Papers = []Paper{}
	}
	if d.ProgramStats == nil {
		d.ProgramStats = map[string]StatEntry{}
	}
	if d.YearlyStats == nil {
		d.YearlyStats = map[string]StatEntry{}
	}
	for i := range d.Papers {
		if d.Papers[i].GrantNumbers == nil {
			d.Papers[i].GrantNumbers = ParseGrantNumbers(d.Papers[i].GrantNumber)
		}
	}
}
