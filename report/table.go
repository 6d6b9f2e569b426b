// Package report writes feature tables and per-profile plots.
package report

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"

	"github.com/YuminosukeSato/coelurus/features"
	"github.com/YuminosukeSato/coelurus/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// header returns the identifier column followed by the feature columns.
func header(t *features.Table) []string {
	id := t.IDColumn
	if id == "" {
		id = "id"
	}
	return append([]string{id}, t.Columns...)
}

func formatValue(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteCSV writes t with a header row. NaN cells are written empty.
func WriteCSV(w io.Writer, t *features.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header(t)); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	record := make([]string, 1+len(t.Columns))
	for i, id := range t.IDs {
		record[0] = id
		for j, v := range t.Values[i] {
			record[1+j] = formatValue(v)
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrapf(err, "write csv row %s", id)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}

// WriteXLSX writes t to the first sheet of a new workbook at path.
func WriteXLSX(path string, t *features.Table) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrap(cerr, "close workbook")
		}
	}()
	sheet := f.GetSheetName(0)

	hdr := header(t)
	row := make([]interface{}, len(hdr))
	for j, h := range hdr {
		row[j] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &row); err != nil {
		return errors.Wrap(err, "write header")
	}

	for i, id := range t.IDs {
		row[0] = id
		for j, v := range t.Values[i] {
			if math.IsNaN(v) {
				row[1+j] = nil
				continue
			}
			row[1+j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.Wrap(err, "cell name")
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.Wrapf(err, "write row %s", id)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return errors.Wrapf(err, "save %s", path)
	}
	return nil
}
