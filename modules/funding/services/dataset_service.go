package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/go-playground/validator/v10"

	"github.com/cirm-data/portal/modules/funding/domain/change"
	"github.com/cirm-data/portal/modules/funding/domain/cirm"
	"github.com/cirm-data/portal/modules/funding/domain/events"
	"github.com/cirm-data/portal/pkg/constants"
	"github.com/cirm-data/portal/pkg/excel"
	"github.com/cirm-data/portal/pkg/serrors"
)

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// EditResult reports a committed manual edit.
type EditResult struct {
	ChangeID   string       `json:"changeId"`
	UpdateDate string       `json:"updateDate"`
	Summary    cirm.Summary `json:"summary"`
	Record     any          `json:"record"`
}

// DatasetService is the read and edit surface over the store plus the export
// renderers.
type DatasetService struct {
	store    *DataStore
	changes  *ChangeLogService
	exporter *excel.Exporter
}

func NewDatasetService(store *DataStore, changes *ChangeLogService) *DatasetService {
	return &DatasetService{
		store:    store,
		changes:  changes,
		exporter: excel.NewExcelExporter(excel.DefaultExportOptions(), excel.DefaultStyleOptions()),
	}
}

func (s *DatasetService) Data(ctx context.Context) (*cirm.Data, error) {
	return s.store.Get(ctx)
}

func (s *DatasetService) Summary(ctx context.Context) (cirm.Summary, string, error) {
	data, err := s.store.Get(ctx)
	if err != nil {
		return cirm.Summary{}, "", err
	}
	return data.Summary, data.UpdateDate, nil
}

func (s *DatasetService) Stats(ctx context.Context) (map[string]cirm.StatEntry, map[string]cirm.StatEntry, error) {
	data, err := s.store.Get(ctx)
	if err != nil {
		return nil, nil, err
	}
	return data.ProgramStats, data.YearlyStats, nil
}

// ExportJSON renders the canonical persisted document.
func (s *DatasetService) ExportJSON(ctx context.Context) (*ExportFile, error) {
	data, err := s.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	body, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, err
	}
	return &ExportFile{
		Filename:    exportFilename("json"),
		ContentType: "application/json",
		Body:        body,
	}, nil
}

// ExportExcel renders one workbook with the three record sheets in the import
// column orders, so an export re-imports cleanly.
func (s *DatasetService) ExportExcel(ctx context.Context) (*ExportFile, error) {
	data, err := s.store.Get(ctx)
	if err != nil {
		return nil, err
	}

	body, err := s.exporter.Export(ctx,
		excel.NewSliceDataSource(grantHeaders(), grantRows(data.Grants)).WithSheetName("Grants"),
		excel.NewSliceDataSource(activeGrantHeaders(), activeGrantRows(data.ActiveGrants)).WithSheetName("Active Grants"),
		excel.NewSliceDataSource(paperHeaders(), paperRows(data.Papers)).WithSheetName("Papers"),
	)
	if err != nil {
		return nil, err
	}
	return &ExportFile{
		Filename:    exportFilename("xlsx"),
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Body:        body,
	}, nil
}

// ExportCSV renders one record type. Paper exports follow the CSV import rule
// and round-trip.
func (s *DatasetService) ExportCSV(ctx context.Context, entity string) (*ExportFile, error) {
	data, err := s.store.Get(ctx)
	if err != nil {
		return nil, err
	}

	var (
		headers []string
		rows    [][]string
	)
	switch entity {
	case cirm.EntityGrant:
		headers, rows = grantHeaders(), stringRows(grantRows(data.Grants))
	case cirm.EntityActiveGrant:
		headers, rows = activeGrantHeaders(), stringRows(activeGrantRows(data.ActiveGrants))
	case cirm.EntityPaper, "":
		headers, rows = paperHeaders(), stringRows(paperRows(data.Papers))
	default:
		return nil, cirm.ErrNotFound.WithDetail(fmt.Sprintf("unknown entity type %q", entity))
	}

	body, err := excel.WriteCSV(headers, rows)
	if err != nil {
		return nil, err
	}
	return &ExportFile{
		Filename:    exportFilename("csv"),
		ContentType: "text/csv",
		Body:        body,
	}, nil
}

// ApplyEdit applies an RFC 7386 merge patch to one record, addressed by the
// entity's natural key: active grants by grant number, grants by id, papers
// by array index. The whole edit runs under the store's mutation lock.
func (s *DatasetService) ApplyEdit(ctx context.Context, entityType, key string, patch []byte) (*EditResult, error) {
	var result *EditResult
	err := s.store.Update(ctx, events.SourceEdit, func(current *cirm.Data) (*cirm.Data, *change.Change, error) {
		if current == nil {
			return nil, nil, cirm.ErrNoDataSet
		}
		snapshot := current.TakeSnapshot()

		var (
			before any
			after  any
		)
		switch entityType {
		case cirm.EntityActiveGrant:
			idx := -1
			for i := range current.ActiveGrants {
				if current.ActiveGrants[i].GrantNumber == key {
					idx = i
					break
				}
			}
			if idx < 0 {
				return nil, nil, cirm.ErrNotFound.WithDetail(fmt.Sprintf("active grant %q", key))
			}
			patched, err := mergePatchRecord(current.ActiveGrants[idx], patch)
			if err != nil {
				return nil, nil, err
			}
			before = current.ActiveGrants[idx]
			current.ActiveGrants[idx] = patched
			after = patched

		case cirm.EntityGrant:
			id, convErr := strconv.Atoi(key)
			if convErr != nil {
				return nil, nil, cirm.ErrNotFound.WithDetail(fmt.Sprintf("grant %q", key))
			}
			idx := -1
			for i := range current.Grants {
				if current.Grants[i].ID == id {
					idx = i
					break
				}
			}
			if idx < 0 {
				return nil, nil, cirm.ErrNotFound.WithDetail(fmt.Sprintf("grant %d", id))
			}
			patched, err := mergePatchRecord(current.Grants[idx], patch)
			if err != nil {
				return nil, nil, err
			}
			// The id is positional, not editable.
			patched.ID = id
			before = current.Grants[idx]
			current.Grants[idx] = patched
			after = patched

		case cirm.EntityPaper:
			idx, convErr := strconv.Atoi(key)
			if convErr != nil || idx < 0 || idx >= len(current.Papers) {
				return nil, nil, cirm.ErrNotFound.WithDetail(fmt.Sprintf("paper %q", key))
			}
			patched, err := mergePatchRecord(current.Papers[idx], patch)
			if err != nil {
				return nil, nil, err
			}
			if patched.GrantNumber != current.Papers[idx].GrantNumber && !patchTouches(patch, "grantNumbers") {
				patched.GrantNumbers = cirm.ParseGrantNumbers(patched.GrantNumber)
			}
			before = current.Papers[idx]
			current.Papers[idx] = patched
			after = patched

		default:
			return nil, nil, cirm.ErrNotFound.WithDetail(fmt.Sprintf("unknown entity type %q", entityType))
		}

		cirm.Recompute(current)
		current.UpdateDate = time.Now().UTC().Format(time.RFC3339)

		entry, err := s.changes.NewEditEntry(entityType, key, before, after, snapshot)
		if err != nil {
			return nil, nil, err
		}
		result = &EditResult{
			ChangeID:   entry.ID,
			UpdateDate: current.UpdateDate,
			Summary:    current.Summary,
			Record:     after,
		}
		return current, entry, nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// mergePatchRecord patches one typed record and validates the result, so an
// edit cannot blank a record's identity field.
func mergePatchRecord[T any](record T, patch []byte) (T, error) {
	var out T

	beforeRaw, err := json.Marshal(record)
	if err != nil {
		return out, err
	}
	patchedRaw, err := jsonpatch.MergePatch(beforeRaw, patch)
	if err != nil {
		return out, cirm.ErrParseFailure.WithDetail(err.Error())
	}
	if err := json.Unmarshal(patchedRaw, &out); err != nil {
		return out, cirm.ErrParseFailure.WithDetail(err.Error())
	}

	if err := constants.Validate.Struct(out); err != nil {
		if vErrs, ok := err.(validator.ValidationErrors); ok {
			return out, serrors.ProcessValidatorErrors(vErrs)
		}
		return out, err
	}
	return out, nil
}

// patchTouches reports whether the merge patch sets the given top-level field.
func patchTouches(patch []byte, field string) bool {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(patch, &doc); err != nil {
		return false
	}
	_, ok := doc[field]
	return ok
}

func exportFilename(ext string) string {
	return fmt.Sprintf("cirm-data-%s.%s", time.Now().UTC().Format("2006-01-02"), ext)
}
