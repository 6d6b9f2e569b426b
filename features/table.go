// Package features turns transformed replicate matrices into per-profile
// feature tables and integrates the tables of all replicates.
package features

import (
	"github.com/YuminosukeSato/coelurus/pkg/errors"
)

// Table is a feature table keyed by profile identifier. Values[i] holds the
// features of IDs[i] in Columns order; NaN marks an absent feature.
type Table struct {
	Replicate string
	IDColumn  string
	IDs       []string
	Columns   []string
	Values    [][]float64
}

// NewTable creates an empty table with the given feature columns.
func NewTable(replicate, idColumn string, columns []string) *Table {
	return &Table{
		Replicate: replicate,
		IDColumn:  idColumn,
		Columns:   append([]string(nil), columns...),
	}
}

// Rows returns the number of profiles.
func (t *Table) Rows() int {
	if t == nil {
		return 0
	}
	return len(t.IDs)
}

// Append adds one profile. values must match Columns.
func (t *Table) Append(id string, values []float64) error {
	if len(values) != len(t.Columns) {
		return errors.NewDimensionError("Table.Append", len(t.Columns), len(values), 1)
	}
	t.IDs = append(t.IDs, id)
	t.Values = append(t.Values, append([]float64(nil), values...))
	return nil
}

// Lookup returns the feature row of id.
func (t *Table) Lookup(id string) ([]float64, bool) {
	for i, v := range t.IDs {
		if v == id {
			return t.Values[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := NewTable(t.Replicate, t.IDColumn, t.Columns)
	out.IDs = append([]string(nil), t.IDs...)
	out.Values = make([][]float64, len(t.Values))
	for i, row := range t.Values {
		out.Values[i] = append([]float64(nil), row...)
	}
	return out
}
