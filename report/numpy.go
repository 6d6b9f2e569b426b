package report

import (
	"bufio"
	"io"

	"github.com/YuminosukeSato/coelurus/features"
	"github.com/YuminosukeSato/coelurus/pkg/errors"
	"github.com/kshedden/gonpy"
)

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// WriteNumpy writes the feature values of t as a rows x columns float64
// .npy array, in the row order of t.IDs. NaN cells stay NaN.
func WriteNumpy(w io.Writer, t *features.Table) error {
	rows, cols := t.Rows(), len(t.Columns)
	out := make([]float64, 0, rows*cols)
	for _, row := range t.Values {
		out = append(out, row...)
	}

	bufw := bufio.NewWriter(w)
	npw, err := gonpy.NewWriter(nopCloser{bufw})
	if err != nil {
		return errors.Wrap(err, "gonpy.NewWriter")
	}
	npw.Shape = []int{rows, cols}
	if err := npw.WriteFloat64(out); err != nil {
		return errors.Wrap(err, "write npy")
	}
	return errors.Wrap(bufw.Flush(), "flush npy")
}
