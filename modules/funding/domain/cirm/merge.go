package cirm

import "time"

// Merge combines an imported partial with the current data set and returns a
// new aggregate. Neither input is mutated; the caller snapshots the old state
// before committing the result.
//
// Grants and papers append (no dedup; re-imports double count, a preserved
// limitation of the source data model). Active grants identity-merge by grant
// number with value and closed-status change tracking. The summary and stats
// are recomputed wholesale from the post-merge arrays, never incrementally.
func Merge(current *Data, imported *Partial, now time.Time) (*Data, error) {
	if current == nil {
		if imported == nil || imported.Baseline == nil {
			return nil, ErrMergeRejected
		}
		adopted := imported.Baseline.Clone()
		adopted.Normalize()
		reassignGrantIDs(adopted.Grants)
		Recompute(adopted)
		adopted.UpdateDate = formatUpdateDate(now)
		return adopted, nil
	}

	merged := current.Clone()
	merged.Normalize()
	if imported != nil {
		appendGrants(merged, imported.Grants)
		merged.Papers = append(merged.Papers, ClonePapers(imported.Papers)...)
		mergeActiveGrants(merged, imported.ActiveGrants)
	}
	Recompute(merged)
	merged.UpdateDate = formatUpdateDate(now)
	return merged, nil
}

func formatUpdateDate(now time.Time) string {
	return now.UTC().Format(time.RFC3339)
}

// Grant ids are sequential per import batch and explicitly not stable across
// re-imports.
func appendGrants(d *Data, incoming []Grant) {
	offset := len(d.Grants)
	for i, g := range incoming {
		g.ID = offset + i + 1
		d.Grants = append(d.Grants, g)
	}
}

func reassignGrantIDs(grants []Grant) {
	for i := range grants {
		grants[i].ID = i + 1
	}
}

func mergeActiveGrants(d *Data, incoming []ActiveGrant) {
	index := make(map[string]int, len(d.ActiveGrants))
	for i, g := range d.ActiveGrants {
		index[g.GrantNumber] = i
	}
	for _, g := range CloneActiveGrants(incoming) {
		pos, exists := index[g.GrantNumber]
		if !exists {
			index[g.GrantNumber] = len(d.ActiveGrants)
			d.ActiveGrants = append(d.ActiveGrants, g)
			continue
		}
		existing := d.ActiveGrants[pos]
		if existing.AwardValue != g.AwardValue {
			prior := existing.AwardValue
			g.PreviousAwardValue = &prior
			g.ShowValueChange = true
		}
		if existing.AwardStatus != StatusClosed && g.AwardStatus == StatusClosed {
			g.PreviousAwardStatus = existing.AwardStatus
			g.ShowStatusChange = true
		}
		d.ActiveGrants[pos] = g
	}
}

// Recompute rebuilds the summary and the derived stats maps from the record
// arrays in place.
func Recompute(d *Data) {
	summary := Summary{
		TotalGrants: len(d.Grants),
		TotalPapers: len(d.Papers),
	}
	for _, g := range d.Grants {
		summary.TotalProjects += g.TotalAwards
		summary.TotalAmount += g.AwardValue
		if g.AwardStatus != StatusClosed {
			summary.ActiveProjects += g.TotalAwards
		}
	}
	d.Summary = summary

	programStats := map[string]StatEntry{}
	yearlyStats := map[string]StatEntry{}
	for _, g := range d.ActiveGrants {
		if g.ProgramType != "" {
			entry := programStats[g.ProgramType]
			entry.Projects++
			entry.Amount += g.AwardValue
			programStats[g.ProgramType] = entry
		}
		if year, ok := approvalYear(g.IcocApproval); ok {
			entry := yearlyStats[year]
			entry.Projects++
			entry.Amount += g.AwardValue
			yearlyStats[year] = entry
		}
	}
	d.ProgramStats = programStats
	d.YearlyStats = yearlyStats
}

// approvalYear extracts the leading four-digit year from an ISO-like approval
// date. Sentinel values without a year are left out of the yearly stats.
func approvalYear(approval string) (string, bool) {
	if len(approval) < 4 {
		return "", false
	}
	year := approval[:4]
	for _, r := range year {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	return year, true
}
