package cirm

import (
	"strconv"
	"strings"
)

// SheetKind classifies a workbook sheet by its name.
type SheetKind int

const (
	SheetUnknown SheetKind = iota
	SheetGrants
	SheetActiveGrants
	SheetPapers
)

func (k SheetKind) String() string {
	switch k {
	case SheetGrants:
		return "grants"
	case SheetActiveGrants:
		return "activeGrants"
	case SheetPapers:
		return "papers"
	default:
		return "unknown"
	}
}

// ClassifySheetName sniffs the record type from a sheet name. The vocabulary
// is bilingual; matching is case-insensitive substring containment. "active"
// wins over "grant" so that "Active Grants" classifies as active grants.
func ClassifySheetName(name string) SheetKind {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "active"),
		strings.Contains(lower, "进行中"),
		strings.Contains(lower, "项目"):
		return SheetActiveGrants
	case strings.Contains(lower, "grant"),
		strings.Contains(lower, "资助"):
		return SheetGrants
	case strings.Contains(lower, "paper"),
		strings.Contains(lower, "文献"),
		strings.Contains(lower, "论文"),
		strings.Contains(lower, "publication"):
		return SheetPapers
	default:
		return SheetUnknown
	}
}

// cell returns the trimmed value at idx, or "" when the row is short.
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parseNumber coerces a cell to a number; blank or non-numeric cells become 0.
func parseNumber(raw string) float64 {
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}

// parseBool reads the TRUE/FALSE convention case-insensitively; anything else
// is false.
func parseBool(raw string) bool {
	return strings.EqualFold(raw, "TRUE")
}

// Grant sheet columns, 0-indexed:
// [programType, grantType, icocApproval, totalAwards, awardValue, awardStatus, notes]
const (
	grantColProgramType = iota
	grantColGrantType
	grantColIcocApproval
	grantColTotalAwards
	grantColAwardValue
	grantColAwardStatus
	grantColNotes
)

// MapGrantSheet converts sheet rows to grants. The first row is the header;
// data rows missing the grant type are skipped and counted. Ids are assigned
// later by the merge.
func MapGrantSheet(rows [][]string) ([]Grant, int) {
	grants := []Grant{}
	skipped := 0
	for i, row := range rows {
		if i == 0 {
			continue
		}
		grantType := cell(row, grantColGrantType)
		if grantType == "" {
			skipped++
			continue
		}
		grants = append(grants, Grant{
			ProgramType:  cell(row, grantColProgramType),
			GrantType:    grantType,
			IcocApproval: cell(row, grantColIcocApproval),
			TotalAwards:  int(parseNumber(cell(row, grantColTotalAwards))),
			AwardValue:   parseNumber(cell(row, grantColAwardValue)),
			AwardStatus:  cell(row, grantColAwardStatus),
			Notes:        cell(row, grantColNotes),
		})
	}
	return grants, skipped
}

// ActiveGrant sheet columns, 0-indexed:
// [grantNumber, programType, grantType, grantTitle, diseaseFocus,
// principalInvestigator, awardValue, icocApproval, awardStatus, sortOrder,
// isNew, showValueChange, showStatusChange, previousAwardValue,
// previousAwardStatus]
const (
	activeColGrantNumber = iota
	activeColProgramType
	activeColGrantType
	activeColGrantTitle
	activeColDiseaseFocus
	activeColPrincipalInvestigator
	activeColAwardValue
	activeColIcocApproval
	activeColAwardStatus
	activeColSortOrder
	activeColIsNew
	activeColShowValueChange
	activeColShowStatusChange
	activeColPreviousAwardValue
	activeColPreviousAwardStatus
)

// MapActiveGrantSheet converts sheet rows to active grants. The first row is
// the header; data rows missing the grant number are skipped and counted.
func MapActiveGrantSheet(rows [][]string) ([]ActiveGrant, int) {
	grants := []ActiveGrant{}
	skipped := 0
	for i, row := range rows {
		if i == 0 {
			continue
		}
		grantNumber := cell(row, activeColGrantNumber)
		if grantNumber == "" {
			skipped++
			continue
		}
		g := ActiveGrant{
			GrantNumber:           grantNumber,
			ProgramType:           cell(row, activeColProgramType),
			GrantType:             cell(row, activeColGrantType),
			GrantTitle:            cell(row, activeColGrantTitle),
			DiseaseFocus:          cell(row, activeColDiseaseFocus),
			PrincipalInvestigator: cell(row, activeColPrincipalInvestigator),
			AwardValue:            parseNumber(cell(row, activeColAwardValue)),
			IcocApproval:          cell(row, activeColIcocApproval),
			AwardStatus:           cell(row, activeColAwardStatus),
			IsNew:                 parseBool(cell(row, activeColIsNew)),
			ShowValueChange:       parseBool(cell(row, activeColShowValueChange)),
			ShowStatusChange:      parseBool(cell(row, activeColShowStatusChange)),
			PreviousAwardStatus:   cell(row, activeColPreviousAwardStatus),
		}
		if raw := cell(row, activeColSortOrder); raw != "" {
			order := int(parseNumber(raw))
			g.SortOrder = &order
		}
		if raw := cell(row, activeColPreviousAwardValue); raw != "" {
			value := parseNumber(raw)
			g.PreviousAwardValue = &value
		}
		grants = append(grants, g)
	}
	return grants, skipped
}

// Paper sheet columns, 0-indexed:
// [title, researchTopic, authors, publication, publishedOnline, grantNumber,
// grantType, programType, grantTitle, awardStatus, manualUpdateDate]
const (
	paperColTitle = iota
	paperColResearchTopic
	paperColAuthors
	paperColPublication
	paperColPublishedOnline
	paperColGrantNumber
	paperColGrantType
	paperColProgramType
	paperColGrantTitle
	paperColAwardStatus
	paperColManualUpdateDate
)

// MapPaperSheet converts sheet rows to papers. The first row is the header;
// data rows missing the title are skipped and counted.
func MapPaperSheet(rows [][]string) ([]Paper, int) {
	papers := []Paper{}
	skipped := 0
	for i, row := range rows {
		if i == 0 {
			continue
		}
		title := cell(row, paperColTitle)
		if title == "" {
			skipped++
			continue
		}
		grantNumber := cell(row, paperColGrantNumber)
		papers = append(papers, Paper{
			Title:            title,
			ResearchTopic:    cell(row, paperColResearchTopic),
			Authors:          cell(row, paperColAuthors),
			Publication:      cell(row, paperColPublication),
			PublishedOnline:  cell(row, paperColPublishedOnline),
			GrantNumber:      grantNumber,
			GrantNumbers:     ParseGrantNumbers(grantNumber),
			GrantType:        cell(row, paperColGrantType),
			ProgramType:      cell(row, paperColProgramType),
			GrantTitle:       cell(row, paperColGrantTitle),
			AwardStatus:      cell(row, paperColAwardStatus),
			ManualUpdateDate: cell(row, paperColManualUpdateDate),
		})
	}
	return papers, skipped
}
