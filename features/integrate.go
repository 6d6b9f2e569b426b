package features

import (
	"github.com/YuminosukeSato/coelurus/pkg/errors"
)

// Prefixed returns a copy of t whose columns carry the replicate letter,
// e.g. mean_1 -> A_mean_1.
func Prefixed(t *Table) *Table {
	out := t.Clone()
	for i, c := range out.Columns {
		out.Columns[i] = t.Replicate + "_" + c
	}
	return out
}

// InnerJoin joins left and right on identifier. The result has left's
// columns followed by right's and keeps left's row order; identifiers missing
// from either side are dropped.
func InnerJoin(left, right *Table) *Table {
	index := make(map[string]int, right.Rows())
	for i, id := range right.IDs {
		if _, dup := index[id]; !dup {
			index[id] = i
		}
	}

	out := NewTable("", left.IDColumn, append(append([]string(nil), left.Columns...), right.Columns...))
	for i, id := range left.IDs {
		j, ok := index[id]
		if !ok {
			continue
		}
		out.IDs = append(out.IDs, id)
		out.Values = append(out.Values, append(append([]float64(nil), left.Values[i]...), right.Values[j]...))
	}
	return out
}

// Integration is the joined table plus how many identifiers were lost.
type Integration struct {
	Table *Table
	// Dropped counts identifiers present in some replicate table but not in all.
	Dropped int
}

// Integrate prefixes every replicate table and inner-joins them in the given
// order. Profiles absent from any replicate are dropped.
func Integrate(tables []*Table) (*Integration, error) {
	if len(tables) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "integrate features")
	}

	seen := make(map[string]struct{})
	for _, t := range tables {
		if t == nil {
			return nil, errors.NewValueError("Integrate", "nil feature table")
		}
		for _, id := range t.IDs {
			seen[id] = struct{}{}
		}
	}

	joined := Prefixed(tables[0])
	for _, t := range tables[1:] {
		joined = InnerJoin(joined, Prefixed(t))
	}
	joined.Replicate = ""

	kept := make(map[string]struct{}, joined.Rows())
	for _, id := range joined.IDs {
		kept[id] = struct{}{}
	}
	return &Integration{Table: joined, Dropped: len(seen) - len(kept)}, nil
}
