package excel

import (
	"bytes"
	"encoding/csv"

	pkgerrors "github.com/pkg/errors"
)

// WriteCSV renders a header row plus data rows as CSV bytes.
func WriteCSV(headers []string, rows [][]string) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := csv.NewWriter(buf)
	if len(headers) > 0 {
		if err := w.Write(headers); err != nil {
			return nil, pkgerrors.Wrap(err, "failed to write csv header")
		}
	}
	for i, row := range rows {
		if err := w.Write(row); err != nil {
			return nil, pkgerrors.Wrapf(err, "failed to write csv row %d", i)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to flush csv")
	}
	return buf.Bytes(), nil
}
