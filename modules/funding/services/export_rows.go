package services

import (
	"strconv"

	"github.com/cirm-data/portal/modules/funding/domain/cirm"
)

// Sheet rows are emitted in the import column orders so exports re-import
// without translation. Booleans use the TRUE/FALSE cell convention, empty
// optional cells stay blank.

func grantHeaders() []string {
	return []string{
		"programType", "grantType", "icocApproval", "totalAwards",
		"awardValue", "awardStatus", "notes",
	}
}

func grantRows(grants []cirm.Grant) [][]interface{} {
	rows := make([][]interface{}, 0, len(grants))
	for _, g := range grants {
		rows = append(rows, []interface{}{
			g.ProgramType, g.GrantType, g.IcocApproval, g.TotalAwards,
			g.AwardValue, g.AwardStatus, g.Notes,
		})
	}
	return rows
}

func activeGrantHeaders() []string {
	return []string{
		"grantNumber", "programType", "grantType", "grantTitle", "diseaseFocus",
		"principalInvestigator", "awardValue", "icocApproval", "awardStatus",
		"sortOrder", "isNew", "showValueChange", "showStatusChange",
		"previousAwardValue", "previousAwardStatus",
	}
}

func activeGrantRows(grants []cirm.ActiveGrant) [][]interface{} {
	rows := make([][]interface{}, 0, len(grants))
	for _, g := range grants {
		var sortOrder interface{}
		if g.SortOrder != nil {
			sortOrder = *g.SortOrder
		}
		var previousValue interface{}
		if g.PreviousAwardValue != nil {
			previousValue = *g.PreviousAwardValue
		}
		rows = append(rows, []interface{}{
			g.GrantNumber, g.ProgramType, g.GrantType, g.GrantTitle, g.DiseaseFocus,
			g.PrincipalInvestigator, g.AwardValue, g.IcocApproval, g.AwardStatus,
			sortOrder, boolCell(g.IsNew), boolCell(g.ShowValueChange),
			boolCell(g.ShowStatusChange), previousValue, g.PreviousAwardStatus,
		})
	}
	return rows
}

func paperHeaders() []string {
	return []string{
		"title", "researchTopic", "authors", "publication", "publishedOnline",
		"grantNumber", "grantType", "programType", "grantTitle", "awardStatus",
		"manualUpdateDate",
	}
}

func paperRows(papers []cirm.Paper) [][]interface{} {
	rows := make([][]interface{}, 0, len(papers))
	for _, p := range papers {
		rows = append(rows, []interface{}{
			p.Title, p.ResearchTopic, p.Authors, p.Publication, p.PublishedOnline,
			p.GrantNumber, p.GrantType, p.ProgramType, p.GrantTitle, p.AwardStatus,
			p.ManualUpdateDate,
		})
	}
	return rows
}

func boolCell(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}

func stringRows(rows [][]interface{}) [][]string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = formatCell(cell)
		}
		out = append(out, cells)
	}
	return out
}

func formatCell(cell interface{}) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
