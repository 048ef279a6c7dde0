package cirm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var mergeNow = time.Date(2025, 4, 12, 9, 30, 0, 0, time.UTC)

func baselineData() *Data {
	return &Data{
		Grants: []Grant{
			{ID: 7, ProgramType: "Discovery", GrantType: "DISC1", TotalAwards: 10, AwardValue: 5000000, AwardStatus: StatusActive},
			{ID: 9, ProgramType: "Clinical", GrantType: "CLIN2", TotalAwards: 4, AwardValue: 12000000, AwardStatus: StatusClosed},
		},
		ActiveGrants: []ActiveGrant{
			{GrantNumber: "DISC1-09999", ProgramType: "Discovery", AwardValue: 250000, IcocApproval: "2023-06-01", AwardStatus: StatusActive},
			{GrantNumber: "CLIN2-00042", ProgramType: "Clinical", AwardValue: 1200000, IcocApproval: "2022-11-15", AwardStatus: StatusActive},
		},
		Papers: []Paper{
			{Title: "Gene edit outcomes", GrantNumber: "DISC1-09999", GrantNumbers: []string{"DISC1-09999"}},
		},
	}
}

func TestMerge_RequiresBaselineWhenEmpty(t *testing.T) {
	t.Parallel()

	_, err := Merge(nil, &Partial{Grants: []Grant{{GrantType: "DISC1"}}}, mergeNow)
	require.ErrorIs(t, err, ErrMergeRejected)

	_, err = Merge(nil, nil, mergeNow)
	require.ErrorIs(t, err, ErrMergeRejected)
}

func TestMerge_AdoptsBaseline(t *testing.T) {
	t.Parallel()

	baseline := baselineData()
	merged, err := Merge(nil, &Partial{Baseline: baseline}, mergeNow)
	require.NoError(t, err)

	// Ids restart from 1 regardless of what the document carried.
	require.Equal(t, 1, merged.Grants[0].ID)
	require.Equal(t, 2, merged.Grants[1].ID)

	require.Equal(t, "2025-04-12T09:30:00Z", merged.UpdateDate)
	require.Equal(t, 2, merged.Summary.TotalGrants)
	require.Equal(t, 1, merged.Summary.TotalPapers)
	require.Equal(t, 14, merged.Summary.TotalProjects)
	require.Equal(t, 17000000.0, merged.Summary.TotalAmount)
	require.Equal(t, 10, merged.Summary.ActiveProjects)

	// The document passed in stays untouched.
	require.Equal(t, 7, baseline.Grants[0].ID)
	require.Empty(t, baseline.UpdateDate)
}

func TestMerge_AppendsGrantsAndPapers(t *testing.T) {
	t.Parallel()

	current := baselineData()
	Recompute(current)

	incoming := &Partial{
		Grants: []Grant{
			{ProgramType: "Education", GrantType: "EDUC4", TotalAwards: 6, AwardValue: 3000000, AwardStatus: StatusActive},
		},
		Papers: []Paper{
			{Title: "Gene edit outcomes", GrantNumber: "DISC1-09999", GrantNumbers: []string{"DISC1-09999"}},
			{Title: "Scaffold trial", GrantNumber: "CLIN2-00042", GrantNumbers: []string{"CLIN2-00042"}},
		},
	}

	merged, err := Merge(current, incoming, mergeNow)
	require.NoError(t, err)

	// Ids continue after the existing grants.
	require.Len(t, merged.Grants, 3)
	require.Equal(t, 3, merged.Grants[2].ID)
	require.Equal(t, "EDUC4", merged.Grants[2].GrantType)

	// Papers append with no dedup; the re-imported title shows up twice.
	require.Len(t, merged.Papers, 3)
	require.Equal(t, "Gene edit outcomes", merged.Papers[0].Title)
	require.Equal(t, "Gene edit outcomes", merged.Papers[1].Title)

	require.Equal(t, 3, merged.Summary.TotalGrants)
	require.Equal(t, 3, merged.Summary.TotalPapers)
	require.Equal(t, 20, merged.Summary.TotalProjects)
	require.Equal(t, 16, merged.Summary.ActiveProjects)

	// The prior aggregate is left as it was.
	require.Len(t, current.Grants, 2)
	require.Len(t, current.Papers, 1)
}

func TestMerge_TracksActiveGrantChanges(t *testing.T) {
	t.Parallel()

	current := baselineData()
	Recompute(current)

	incoming := &Partial{
		ActiveGrants: []ActiveGrant{
			// Same number, new value.
			{GrantNumber: "DISC1-09999", ProgramType: "Discovery", AwardValue: 275000, IcocApproval: "2023-06-01", AwardStatus: StatusActive},
			// Same number, same value, now closed.
			{GrantNumber: "CLIN2-00042", ProgramType: "Clinical", AwardValue: 1200000, IcocApproval: "2022-11-15", AwardStatus: StatusClosed},
			// Brand new.
			{GrantNumber: "TRAN1-129834", ProgramType: "Translational", AwardValue: 800000, IcocApproval: "Pre-2010", AwardStatus: StatusActive, IsNew: true},
		},
	}

	merged, err := Merge(current, incoming, mergeNow)
	require.NoError(t, err)
	require.Len(t, merged.ActiveGrants, 3)

	changed := merged.ActiveGrants[0]
	require.Equal(t, 275000.0, changed.AwardValue)
	require.True(t, changed.ShowValueChange)
	require.NotNil(t, changed.PreviousAwardValue)
	require.Equal(t, 250000.0, *changed.PreviousAwardValue)
	require.False(t, changed.ShowStatusChange)

	closed := merged.ActiveGrants[1]
	require.True(t, closed.ShowStatusChange)
	require.Equal(t, StatusActive, closed.PreviousAwardStatus)
	require.False(t, closed.ShowValueChange)
	require.Nil(t, closed.PreviousAwardValue)

	added := merged.ActiveGrants[2]
	require.True(t, added.IsNew)
	require.False(t, added.ShowValueChange)

	// The incoming rows keep their parsed shape.
	require.Nil(t, incoming.ActiveGrants[0].PreviousAwardValue)
	require.False(t, incoming.ActiveGrants[0].ShowValueChange)
}

func TestMerge_ClosedGrantStaysClosedQuietly(t *testing.T) {
	t.Parallel()

	current := &Data{
		ActiveGrants: []ActiveGrant{
			{GrantNumber: "DISC1-09999", AwardValue: 100, AwardStatus: StatusClosed},
		},
	}
	Recompute(current)

	merged, err := Merge(current, &Partial{
		ActiveGrants: []ActiveGrant{
			{GrantNumber: "DISC1-09999", AwardValue: 100, AwardStatus: StatusClosed},
		},
	}, mergeNow)
	require.NoError(t, err)

	got := merged.ActiveGrants[0]
	require.False(t, got.ShowStatusChange)
	require.Empty(t, got.PreviousAwardStatus)
	require.False(t, got.ShowValueChange)
}

func TestRecompute_Stats(t *testing.T) {
	t.Parallel()

	d := &Data{
		ActiveGrants: []ActiveGrant{
			{GrantNumber: "DISC1-1", ProgramType: "Discovery", AwardValue: 100, IcocApproval: "2023-06-01"},
			{GrantNumber: "DISC1-2", ProgramType: "Discovery", AwardValue: 200, IcocApproval: "2023-11-20"},
			{GrantNumber: "CLIN2-1", ProgramType: "Clinical", AwardValue: 400, IcocApproval: "2022-01-05"},
			// No program type, no parseable year: counted in neither map.
			{GrantNumber: "MISC1-1", AwardValue: 800, IcocApproval: "Pre-2010"},
		},
	}
	Recompute(d)

	require.Equal(t, map[string]StatEntry{
		"Discovery": {Projects: 2, Amount: 300},
		"Clinical":  {Projects: 1, Amount: 400},
	}, d.ProgramStats)

	require.Equal(t, map[string]StatEntry{
		"2023": {Projects: 2, Amount: 300},
		"2022": {Projects: 1, Amount: 400},
	}, d.YearlyStats)
}

func TestMerge_VisualizationPassesThrough(t *testing.T) {
	t.Parallel()

	current := baselineData()
	current.Visualization = []byte(`{"charts":[{"id":"funding-by-year"}]}`)
	Recompute(current)

	merged, err := Merge(current, &Partial{}, mergeNow)
	require.NoError(t, err)
	require.JSONEq(t, `{"charts":[{"id":"funding-by-year"}]}`, string(merged.Visualization))
}
