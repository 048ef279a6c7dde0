package excel

import (
	"bufio"
	"encoding/csv"
	"io"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// Sheet is one worksheet decoded to raw string cells.
type Sheet struct {
	Name string
	Rows [][]string
}

// Workbook is the decoded form of an uploaded spreadsheet.
type Workbook struct {
	Sheets []Sheet
}

// OpenWorkbook decodes an XLSX/XLS stream into raw sheets. Sheet order follows
// the workbook's own ordering.
func OpenWorkbook(r io.Reader) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to open workbook")
	}
	defer func() {
		_ = f.Close()
	}()

	wb := &Workbook{}
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "failed to read sheet %q", name)
		}
		wb.Sheets = append(wb.Sheets, Sheet{Name: name, Rows: rows})
	}
	return wb, nil
}

// ReadCSV decodes a CSV stream into rows, tolerating a UTF-8 BOM and ragged
// row lengths.
func ReadCSV(r io.Reader) ([][]string, error) {
	br := stripUTF8BOM(bufio.NewReader(r))

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = false

	var rows [][]string
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, pkgerrors.Wrap(err, "failed to read csv")
		}
		rows = append(rows, record)
	}
	return rows, nil
}

func stripUTF8BOM(r *bufio.Reader) *bufio.Reader {
	b, err := r.Peek(3)
	if err == nil && len(b) == 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		_, _ = r.Discard(3)
	}
	return r
}

// Cell returns the trimmed cell at idx, or "" when the row is shorter. Blank
// trailing cells are routinely absent from decoded spreadsheet rows.
func Cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
