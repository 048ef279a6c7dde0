package excel

import (
	"bytes"
	"context"
	"fmt"

	pkgerrors "github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// ExportOptions control workbook-level behavior.
type ExportOptions struct {
	IncludeHeaders bool
	FreezeHeader   bool
}

// StyleOptions control cell presentation.
type StyleOptions struct {
	HeaderBold bool
}

func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		IncludeHeaders: true,
		FreezeHeader:   true,
	}
}

func DefaultStyleOptions() StyleOptions {
	return StyleOptions{HeaderBold: true}
}

// Exporter renders one or more data sources into a single XLSX workbook.
type Exporter struct {
	opts  ExportOptions
	style StyleOptions
}

func NewExcelExporter(opts ExportOptions, style StyleOptions) *Exporter {
	return &Exporter{opts: opts, style: style}
}

// Export writes each data source to its own sheet and returns the workbook
// bytes. The first source becomes the active sheet.
func (e *Exporter) Export(ctx context.Context, sources ...DataSource) ([]byte, error) {
	if len(sources) == 0 {
		return nil, pkgerrors.New("no data sources to export")
	}

	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	var headerStyle int
	if e.style.HeaderBold {
		var err error
		headerStyle, err = f.NewStyle(&excelize.Style{
			Font: &excelize.Font{Bold: true},
		})
		if err != nil {
			return nil, pkgerrors.Wrap(err, "failed to create header style")
		}
	}

	for i, src := range sources {
		sheet := src.SheetName()
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return nil, pkgerrors.Wrapf(err, "failed to rename sheet to %q", sheet)
			}
		} else {
			if _, err := f.NewSheet(sheet); err != nil {
				return nil, pkgerrors.Wrapf(err, "failed to create sheet %q", sheet)
			}
		}
		if err := e.writeSheet(ctx, f, sheet, src, headerStyle); err != nil {
			return nil, err
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to serialize workbook")
	}
	return buf.Bytes(), nil
}

func (e *Exporter) writeSheet(ctx context.Context, f *excelize.File, sheet string, src DataSource, headerStyle int) error {
	rowIdx := 1
	if e.opts.IncludeHeaders {
		headers := src.Headers()
		cells := make([]interface{}, len(headers))
		for i, h := range headers {
			cells[i] = h
		}
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", rowIdx), &cells); err != nil {
			return pkgerrors.Wrapf(err, "failed to write header row on %q", sheet)
		}
		if e.style.HeaderBold && len(headers) > 0 {
			endCol, err := excelize.ColumnNumberToName(len(headers))
			if err == nil {
				_ = f.SetCellStyle(sheet, "A1", endCol+"1", headerStyle)
			}
		}
		if e.opts.FreezeHeader {
			if err := f.SetPanes(sheet, &excelize.Panes{
				Freeze:      true,
				YSplit:      1,
				TopLeftCell: "A2",
				ActivePane:  "bottomLeft",
			}); err != nil {
				return pkgerrors.Wrapf(err, "failed to freeze header on %q", sheet)
			}
		}
		rowIdx++
	}

	rows, err := src.Rows(ctx)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to load rows for %q", sheet)
	}
	for _, row := range rows {
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", rowIdx), &row); err != nil {
			return pkgerrors.Wrapf(err, "failed to write row %d on %q", rowIdx, sheet)
		}
		rowIdx++
	}
	return nil
}
