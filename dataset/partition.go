package dataset

import (
	"sort"
)

// Partition splits the value columns of d into one ReplicateMatrix per
// replicate letter, taken as the last character of each column name.
// Columns keep their order of appearance inside a group (ascending fraction
// order for a validated dataset); groups are ordered by ascending letter.
// Every matrix carries its own copy of the identifiers and values.
func Partition(d *Dataset) []*ReplicateMatrix {
	if d == nil || len(d.Columns) < 2 {
		return nil
	}

	groups := make(map[string][]int)
	for j, name := range d.Columns[1:] {
		if name == "" {
			continue
		}
		letter := name[len(name)-1:]
		groups[letter] = append(groups[letter], j)
	}

	letters := make([]string, 0, len(groups))
	for l := range groups {
		letters = append(letters, l)
	}
	sort.Strings(letters)

	ids := make([]string, len(d.Rows))
	for i, r := range d.Rows {
		ids[i] = r.ID
	}

	out := make([]*ReplicateMatrix, 0, len(letters))
	for _, l := range letters {
		idx := groups[l]
		m := &ReplicateMatrix{
			Replicate: l,
			IDColumn:  d.Columns[0],
			Columns:   make([]string, len(idx)),
			IDs:       append([]string(nil), ids...),
			Data:      make([][]float64, len(d.Rows)),
		}
		for k, j := range idx {
			m.Columns[k] = d.Columns[j+1]
		}
		for i, r := range d.Rows {
			row := make([]float64, len(idx))
			for k, j := range idx {
				row[k] = r.Values[j]
			}
			m.Data[i] = row
		}
		out = append(out, m)
	}
	return out
}

// Concat interleaves replicate matrices back into one fraction-major
// Dataset: fraction 1 of every replicate, then fraction 2, and so on. All
// matrices must share identifiers and column counts.
func Concat(ms []*ReplicateMatrix) *Dataset {
	if len(ms) == 0 {
		return &Dataset{}
	}
	first := ms[0]
	d := &Dataset{Columns: []string{first.IDColumn}}
	for j := 0; j < first.Cols(); j++ {
		for _, m := range ms {
			d.Columns = append(d.Columns, m.Columns[j])
		}
	}
	for i, id := range first.IDs {
		row := Row{ID: id, Values: make([]float64, 0, first.Cols()*len(ms))}
		for j := 0; j < first.Cols(); j++ {
			for _, m := range ms {
				row.Values = append(row.Values, m.Data[i][j])
			}
		}
		d.Rows = append(d.Rows, row)
	}
	return d
}
