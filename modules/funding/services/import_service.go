package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	gerrors "github.com/go-faster/errors"

	"github.com/cirm-data/portal/modules/funding/domain/change"
	"github.com/cirm-data/portal/modules/funding/domain/cirm"
	"github.com/cirm-data/portal/modules/funding/domain/events"
	"github.com/cirm-data/portal/pkg/excel"
)

// AddedCounts reports how many records one import contributed.
type AddedCounts struct {
	Grants       int `json:"grants"`
	ActiveGrants int `json:"activeGrants"`
	Papers       int `json:"papers"`
}

// ImportSummary is the outcome of a committed import.
type ImportSummary struct {
	Added       AddedCounts  `json:"added"`
	SkippedRows int          `json:"skippedRows"`
	ChangeID    string       `json:"changeId"`
	UpdateDate  string       `json:"updateDate"`
	Summary     cirm.Summary `json:"summary"`
}

// ImportService turns uploaded files into merged data sets. Format dispatch
// is by file extension; parsing happens before the store's critical section.
type ImportService struct {
	store   *DataStore
	changes *ChangeLogService
}

func NewImportService(store *DataStore, changes *ChangeLogService) *ImportService {
	return &ImportService{store: store, changes: changes}
}

// Import parses the upload named filename and merges it into the current data
// set. The whole file either commits or is rejected with one coded error.
func (s *ImportService) Import(ctx context.Context, filename string, r io.Reader) (*ImportSummary, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, gerrors.Wrap(err, "read upload")
	}

	format := formatOf(filename)
	partial, err := s.parse(ctx, filename, raw)
	if err != nil {
		recordImport(format, "rejected")
		return nil, err
	}
	return s.commit(ctx, format, partial)
}

// ImportDocument merges a structured JSON body, the baseline-capable path.
func (s *ImportService) ImportDocument(ctx context.Context, raw []byte) (*ImportSummary, error) {
	doc, err := cirm.ParseDocument(raw)
	if err != nil {
		recordImport("json", "rejected")
		return nil, err
	}
	return s.commit(ctx, "json", cirm.DocumentPartial(doc))
}

func (s *ImportService) parse(ctx context.Context, filename string, raw []byte) (*cirm.Partial, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".json":
		doc, err := cirm.ParseDocument(raw)
		if err != nil {
			return nil, err
		}
		return cirm.DocumentPartial(doc), nil

	case ".xlsx", ".xls":
		wb, err := excel.OpenWorkbook(bytes.NewReader(raw))
		if err != nil {
			s.logFormatMismatch(ctx, filename, ext, raw)
			return nil, cirm.ErrParseFailure.WithDetail(err.Error())
		}
		return partialFromWorkbook(wb)

	case ".csv":
		rows, err := excel.ReadCSV(bytes.NewReader(raw))
		if err != nil {
			s.logFormatMismatch(ctx, filename, ext, raw)
			return nil, cirm.ErrParseFailure.WithDetail(err.Error())
		}
		// A CSV is always the single paper sheet.
		papers, skipped := cirm.MapPaperSheet(rows)
		return &cirm.Partial{Papers: papers, SkippedRows: skipped}, nil

	default:
		detected := mimetype.Detect(raw)
		return nil, cirm.ErrUnsupportedFormat.WithDetail(
			fmt.Sprintf("extension %q, content %s", ext, detected.String()),
		)
	}
}

// partialFromWorkbook maps every classifiable sheet. A workbook in which no
// sheet name matches the vocabulary is structurally invalid, the spreadsheet
// analogue of a JSON document missing both grants and papers.
func partialFromWorkbook(wb *excel.Workbook) (*cirm.Partial, error) {
	partial := &cirm.Partial{}
	matched := 0
	for _, sheet := range wb.Sheets {
		switch cirm.ClassifySheetName(sheet.Name) {
		case cirm.SheetGrants:
			grants, skipped := cirm.MapGrantSheet(sheet.Rows)
			partial.Grants = append(partial.Grants, grants...)
			partial.SkippedRows += skipped
			matched++
		case cirm.SheetActiveGrants:
			grants, skipped := cirm.MapActiveGrantSheet(sheet.Rows)
			partial.ActiveGrants = append(partial.ActiveGrants, grants...)
			partial.SkippedRows += skipped
			matched++
		case cirm.SheetPapers:
			papers, skipped := cirm.MapPaperSheet(sheet.Rows)
			partial.Papers = append(partial.Papers, papers...)
			partial.SkippedRows += skipped
			matched++
		case cirm.SheetUnknown:
			// Auxiliary sheets (notes, pivots) pass through unread.
		}
	}
	if matched == 0 {
		return nil, cirm.ErrInvalidStructure.WithDetail("no grant, active grant or paper sheet found")
	}
	return partial, nil
}

func (s *ImportService) commit(ctx context.Context, format string, partial *cirm.Partial) (*ImportSummary, error) {
	// A sheet upload whose rows were all skipped parses fine yet moves nothing.
	// Committing it would still bump updateDate and write a change entry.
	if partial.IsEmpty() {
		recordImport(format, "rejected")
		return nil, cirm.ErrInvalidStructure.WithDetail("file contained no importable records")
	}

	var (
		merged *cirm.Data
		entry  *change.Change
	)
	err := s.store.Update(ctx, events.SourceImport, func(current *cirm.Data) (*cirm.Data, *change.Change, error) {
		var err error
		merged, err = cirm.Merge(current, partial, time.Now())
		if err != nil {
			recordImport(format, "rejected")
			return nil, nil, err
		}

		snapshot := cirm.New().TakeSnapshot()
		if current != nil {
			snapshot = current.TakeSnapshot()
		}
		entry = s.changes.NewImportEntry(current, merged, snapshot)
		return merged, entry, nil
	})
	if err != nil {
		return nil, err
	}

	recordImport(format, "success")
	recordImportSkippedRows(partial.SkippedRows)
	return &ImportSummary{
		Added: AddedCounts{
			Grants:       len(partial.Grants),
			ActiveGrants: len(partial.ActiveGrants),
			Papers:       len(partial.Papers),
		},
		SkippedRows: partial.SkippedRows,
		ChangeID:    entry.ID,
		UpdateDate:  merged.UpdateDate,
		Summary:     merged.Summary,
	}, nil
}

// The upload's extension decides the parser; when parsing still fails, note
// what the content actually looks like.
func (s *ImportService) logFormatMismatch(ctx context.Context, filename, ext string, raw []byte) {
	storeLogger(ctx).
		WithField("filename", filename).
		WithField("extension", ext).
		WithField("detected", mimetype.Detect(raw).String()).
		Warn("upload content does not match its extension")
}

func formatOf(filename string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	if ext == "" {
		return "unknown"
	}
	return ext
}
