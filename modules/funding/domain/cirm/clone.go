package cirm

// Deep copies. Merge and rollback replace state wholesale; the previous
// version must stay intact for snapshots, so shared backing arrays are never
// handed out.

func cloneIntPtr(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneFloatPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// Clone returns a deep copy of the grant slice.
func CloneGrants(grants []Grant) []Grant {
	if grants == nil {
		return nil
	}
	out := make([]Grant, len(grants))
	copy(out, grants)
	return out
}

func CloneActiveGrants(grants []ActiveGrant) []ActiveGrant {
	if grants == nil {
		return nil
	}
	out := make([]ActiveGrant, len(grants))
	for i, g := range grants {
		g.SortOrder = cloneIntPtr(g.SortOrder)
		g.PreviousAwardValue = cloneFloatPtr(g.PreviousAwardValue)
		out[i] = g
	}
	return out
}

func ClonePapers(papers []Paper) []Paper {
	if papers == nil {
		return nil
	}
	out := make([]Paper, len(papers))
	for i, p := range papers {
		if p.GrantNumbers != nil {
			numbers := make([]string, len(p.GrantNumbers))
			copy(numbers, p.GrantNumbers)
			p.GrantNumbers = numbers
		}
		out[i] = p
	}
	return out
}

func cloneStats(stats map[string]StatEntry) map[string]StatEntry {
	if stats == nil {
		return nil
	}
	out := make(map[string]StatEntry, len(stats))
	for k, v := range stats {
		out[k] = v
	}
	return out
}

// Clone returns a deep copy of the data set.
func (d *Data) Clone() *Data {
	if d == nil {
		return nil
	}
	out := &Data{
		Summary:      d.Summary,
		UpdateDate:   d.UpdateDate,
		Grants:       CloneGrants(d.Grants),
		ActiveGrants: CloneActiveGrants(d.ActiveGrants),
		Papers:       ClonePapers(d.Papers),
		ProgramStats: cloneStats(d.ProgramStats),
		YearlyStats:  cloneStats(d.YearlyStats),
	}
	if d.Visualization != nil {
		out.Visualization = make([]byte, len(d.Visualization))
		copy(out.Visualization, d.Visualization)
	}
	return out
}

// TakeSnapshot captures the complete current state for a change entry.
func (d *Data) TakeSnapshot() *Snapshot {
	if d == nil {
		return nil
	}
	return &Snapshot{
		Grants:       CloneGrants(d.Grants),
		ActiveGrants: CloneActiveGrants(d.ActiveGrants),
		Papers:       ClonePapers(d.Papers),
		Summary:      d.Summary,
	}
}

// Clone returns a deep copy of the snapshot.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	return &Snapshot{
		Grants:       CloneGrants(s.Grants),
		ActiveGrants: CloneActiveGrants(s.ActiveGrants),
		Papers:       ClonePapers(s.Papers),
		Summary:      s.Summary,
	}
}
