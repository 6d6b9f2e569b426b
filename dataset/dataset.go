// Package dataset holds the tabular profile data moving through the pipeline:
// the loaded Dataset, the per-replicate ReplicateMatrix and the DataSource
// capability that produces a Dataset.
package dataset

import (
	"context"
	"math"

	"github.com/YuminosukeSato/coelurus/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// MinWindowColumns is the narrowest replicate matrix the sliding-window
// transformations accept.
const MinWindowColumns = 3

// DataSource produces a Dataset. The validator and the pipeline depend only
// on this interface, not on a concrete loader.
type DataSource interface {
	Load(ctx context.Context) (*Dataset, error)
}

// Row is one entity: its identifier and the measurements following it.
// Missing measurements are NaN.
type Row struct {
	ID     string
	Values []float64
}

// Dataset is the loaded table. Columns[0] is the identifier column; the
// remaining names label Row.Values positionally.
type Dataset struct {
	Columns []string
	Rows    []Row

	// NonNumeric lists value columns in which the loader met a cell that was
	// neither a number nor a recognised missing marker.
	NonNumeric []string
}

// NumRows returns the number of data rows.
func (d *Dataset) NumRows() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// NumColumns returns the number of columns including the identifier.
func (d *Dataset) NumColumns() int {
	if d == nil {
		return 0
	}
	return len(d.Columns)
}

// Clone returns a deep copy.
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{
		Columns:    append([]string(nil), d.Columns...),
		Rows:       make([]Row, len(d.Rows)),
		NonNumeric: append([]string(nil), d.NonNumeric...),
	}
	for i, r := range d.Rows {
		out.Rows[i] = Row{ID: r.ID, Values: append([]float64(nil), r.Values...)}
	}
	return out
}

// ReplicateMatrix is the identifier column plus the fraction columns of one
// replicate, in ascending fraction order. Data holds one profile per row.
type ReplicateMatrix struct {
	Replicate string
	IDColumn  string
	Columns   []string
	IDs       []string
	Data      [][]float64
}

// Rows returns the number of profiles.
func (m *ReplicateMatrix) Rows() int { return len(m.Data) }

// Cols returns the number of fraction columns.
func (m *ReplicateMatrix) Cols() int { return len(m.Columns) }

// Clone returns a deep copy so that a transformation step never aliases its input.
func (m *ReplicateMatrix) Clone() *ReplicateMatrix {
	out := &ReplicateMatrix{
		Replicate: m.Replicate,
		IDColumn:  m.IDColumn,
		Columns:   append([]string(nil), m.Columns...),
		IDs:       append([]string(nil), m.IDs...),
		Data:      make([][]float64, len(m.Data)),
	}
	for i, row := range m.Data {
		out.Data[i] = append([]float64(nil), row...)
	}
	return out
}

// Select returns a copy keeping only the rows whose index is in keep, in order.
func (m *ReplicateMatrix) Select(keep []int) *ReplicateMatrix {
	out := &ReplicateMatrix{
		Replicate: m.Replicate,
		IDColumn:  m.IDColumn,
		Columns:   append([]string(nil), m.Columns...),
		IDs:       make([]string, 0, len(keep)),
		Data:      make([][]float64, 0, len(keep)),
	}
	for _, i := range keep {
		out.IDs = append(out.IDs, m.IDs[i])
		out.Data = append(out.Data, append([]float64(nil), m.Data[i]...))
	}
	return out
}

// Check enforces the invariant required before any transformation: at least
// one row, at least MinWindowColumns columns, rectangular finite-or-NaN data.
func (m *ReplicateMatrix) Check() error {
	if len(m.Data) == 0 {
		return errors.NewSchemaError("replicate_rows", "replicate "+m.Replicate+" has no data rows")
	}
	if len(m.Columns) < MinWindowColumns {
		return errors.NewDimensionError("ReplicateMatrix.Check", MinWindowColumns, len(m.Columns), 1)
	}
	if len(m.IDs) != len(m.Data) {
		return errors.NewDimensionError("ReplicateMatrix.Check", len(m.Data), len(m.IDs), 0)
	}
	for _, row := range m.Data {
		if len(row) != len(m.Columns) {
			return errors.NewDimensionError("ReplicateMatrix.Check", len(m.Columns), len(row), 1)
		}
		for _, v := range row {
			if math.IsInf(v, 0) {
				return errors.NewSchemaError("numeric", "replicate "+m.Replicate+" contains an infinite value")
			}
		}
	}
	return nil
}

// Dense returns the values as a gonum matrix, or nil for an empty matrix
// (gonum does not represent zero-length dimensions).
func (m *ReplicateMatrix) Dense() *mat.Dense {
	if len(m.Data) == 0 || len(m.Columns) == 0 {
		return nil
	}
	d := mat.NewDense(len(m.Data), len(m.Columns), nil)
	for i, row := range m.Data {
		d.SetRow(i, row)
	}
	return d
}
