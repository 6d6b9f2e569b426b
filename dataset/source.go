package dataset

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/coelurus/pkg/errors"
	"github.com/klauspost/pgzip"
	"github.com/xuri/excelize/v2"
)

// FileSource loads a profile table from local disk. The format follows the
// file name: ".csv", ".csv.gz" (decompressed in parallel with pgzip) or
// ".xlsx" (first sheet).
type FileSource struct {
	Path string
}

// Load implements DataSource.
func (s FileSource) Load(ctx context.Context) (*Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := strings.ToLower(s.Path)
	switch {
	case strings.HasSuffix(name, ".xlsx"):
		return readXLSX(s.Path)
	case strings.HasSuffix(name, ".csv"), strings.HasSuffix(name, ".csv.gz"), strings.HasSuffix(name, ".tsv"), strings.HasSuffix(name, ".tsv.gz"):
		f, err := zopen(s.Path)
		if err != nil {
			return nil, errors.Wrapf(err, "open %s", s.Path)
		}
		defer f.Close()
		comma := ','
		if strings.Contains(filepath.Base(name), ".tsv") {
			comma = '\t'
		}
		return ReadDelimited(f, comma)
	default:
		return nil, errors.Wrapf(errors.ErrUnsupportedSource, "unrecognised file extension: %s", s.Path)
	}
}

// StaticSource serves an already loaded Dataset.
type StaticSource struct {
	Data *Dataset
}

// Load implements DataSource. It returns a copy so callers cannot alter the
// served dataset.
func (s StaticSource) Load(ctx context.Context) (*Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Data == nil {
		return nil, errors.ErrEmptyData
	}
	return s.Data.Clone(), nil
}

// zopen opens fnm, transparently decompressing it when it ends in ".gz".
func zopen(fnm string) (io.ReadCloser, error) {
	f, err := os.Open(fnm)
	if err != nil || !strings.HasSuffix(fnm, ".gz") {
		return f, err
	}
	rdr, err := pgzip.NewReader(bufio.NewReaderSize(f, 4*1024*1024))
	if err != nil {
		f.Close()
		return nil, err
	}
	return gzipr{rdr, f}, nil
}

// gzipr closes both the decompressor and the underlying file.
type gzipr struct {
	io.ReadCloser
	io.Closer
}

func (gr gzipr) Close() error {
	e1 := gr.ReadCloser.Close()
	e2 := gr.Closer.Close()
	if e1 != nil {
		return e1
	}
	return e2
}

// ReadDelimited parses a header line followed by one row per entity.
func ReadDelimited(r io.Reader, comma rune) (*Dataset, error) {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "parse delimited input")
	}
	return FromRecords(records)
}

func readXLSX(path string) (*Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.Wrapf(errors.ErrEmptyData, "%s has no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrapf(err, "read sheet %s", sheets[0])
	}
	return FromRecords(rows)
}

// FromRecords builds a Dataset from string records, the first being the
// header. Empty cells and NA/NaN markers become NaN; any other unparsable
// cell marks its column as non-numeric. Short rows are padded with NaN.
func FromRecords(records [][]string) (*Dataset, error) {
	if len(records) == 0 || len(records[0]) == 0 {
		return nil, errors.ErrEmptyData
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}

	d := &Dataset{Columns: header}
	nonNumeric := make(map[int]bool)
	for _, rec := range records[1:] {
		if len(rec) == 0 || (len(rec) == 1 && strings.TrimSpace(rec[0]) == "") {
			continue
		}
		row := Row{ID: strings.TrimSpace(rec[0]), Values: make([]float64, len(header)-1)}
		for j := 1; j < len(header); j++ {
			if j >= len(rec) {
				row.Values[j-1] = math.NaN()
				continue
			}
			v, ok := parseCell(rec[j])
			if !ok {
				nonNumeric[j] = true
			}
			row.Values[j-1] = v
		}
		d.Rows = append(d.Rows, row)
	}
	for j := 1; j < len(header); j++ {
		if nonNumeric[j] {
			d.NonNumeric = append(d.NonNumeric, header[j])
		}
	}
	return d, nil
}

func parseCell(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "na", "nan", "null":
		return math.NaN(), true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN(), false
	}
	return v, true
}
