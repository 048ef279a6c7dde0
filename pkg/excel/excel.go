package excel

import (
	"context"
)

// maxSheetNameLength is the hard limit imposed by the XLSX format.
const maxSheetNameLength = 31

// DataSource supplies one sheet of tabular data to the exporter.
type DataSource interface {
	SheetName() string
	Headers() []string
	Rows(ctx context.Context) ([][]interface{}, error)
}

type sliceDataSource struct {
	sheetName string
	headers   []string
	rows      [][]interface{}
}

// NewSliceDataSource wraps in-memory rows as a DataSource.
func NewSliceDataSource(headers []string, rows [][]interface{}) *sliceDataSource {
	return &sliceDataSource{
		sheetName: "Sheet1",
		headers:   headers,
		rows:      rows,
	}
}

// WithSheetName sets the sheet name, truncated to the XLSX 31-character limit.
func (s *sliceDataSource) WithSheetName(name string) *sliceDataSource {
	if len(name) > maxSheetNameLength {
		name = name[:maxSheetNameLength]
	}
	s.sheetName = name
	return s
}

func (s *sliceDataSource) SheetName() string {
	return s.sheetName
}

func (s *sliceDataSource) Headers() []string {
	return s.headers
}

func (s *sliceDataSource) Rows(_ context.Context) ([][]interface{}, error) {
	return s.rows, nil
}
