// Package preprocessing implements the per-replicate profile transformation
// pipeline: zero-fill, trailing-fraction truncation, gap imputation,
// singleton removal, consecutive-run filtering, smoothing and
// signal-to-noise filtering.
//
// Every step takes a *dataset.ReplicateMatrix and returns a new one; the
// input is never modified. Windows slide left to right along one row and
// never cross into another row.
package preprocessing

import (
	"math"
	"time"

	"github.com/YuminosukeSato/coelurus/config"
	"github.com/YuminosukeSato/coelurus/dataset"
	"github.com/YuminosukeSato/coelurus/pkg/errors"
	"github.com/YuminosukeSato/coelurus/pkg/log"
)

// gapWindow is the width of the imputation and singleton windows.
const gapWindow = 3

// Summary reports what Apply did to one replicate.
type Summary struct {
	Replicate        string
	InputRows        int
	OutputRows       int
	Imputed          int
	SingletonsZeroed int
	DroppedByRun     int
	DroppedBySNR     int
	Duration         time.Duration
}

// Transformer runs the configured pipeline on replicate matrices. It holds
// no per-call state and is safe for concurrent use.
type Transformer struct {
	opts   config.FilterOptions
	logger log.Logger
}

// NewTransformer creates a Transformer for cfg. A nil logger discards output.
func NewTransformer(cfg config.Config, logger log.Logger) *Transformer {
	if logger == nil {
		logger = log.Nop()
	}
	return &Transformer{
		opts:   cfg.FilterOptions,
		logger: logger.With(log.ComponentKey, "preprocessing"),
	}
}

// Apply runs every enabled step in order.
func (t *Transformer) Apply(m *dataset.ReplicateMatrix) (*dataset.ReplicateMatrix, Summary, error) {
	start := time.Now()
	sum := Summary{Replicate: m.Replicate, InputRows: m.Rows()}

	if err := m.Check(); err != nil {
		return nil, sum, err
	}

	out := ZeroFill(m)

	if t.opts.RemoveNLastFracs > 0 {
		var err error
		if out, err = TruncateTrailing(out, t.opts.RemoveNLastFracs); err != nil {
			return nil, sum, err
		}
	}

	var n int
	out, n = imputeGaps(out)
	sum.Imputed = n

	out, n = removeSingletons(out)
	sum.SingletonsZeroed = n

	before := out.Rows()
	out = FilterConsecutive(out, t.opts.MinConsecutiveFractions)
	sum.DroppedByRun = before - out.Rows()

	if t.opts.EnableSmoothing {
		var err error
		if out, err = Smooth(out, t.opts.SmoothWindowSize, SmoothingMethod(t.opts.SmoothingMethod)); err != nil {
			return nil, sum, err
		}
	}

	if t.opts.MinSignalToNoise > 0 {
		before = out.Rows()
		out = FilterSignalToNoise(out, t.opts.MinSignalToNoise, SignalToNoisePolicy(t.opts.SignalToNoisePolicy))
		sum.DroppedBySNR = before - out.Rows()
	}

	sum.OutputRows = out.Rows()
	sum.Duration = time.Since(start)

	t.logger.Info("replicate transformed",
		log.StageKey, log.StageTransform,
		log.ReplicateKey, m.Replicate,
		log.ProfilesKey, sum.InputRows,
		log.ProfilesKeptKey, sum.OutputRows,
		log.ProfilesDroppedKey, sum.DroppedByRun+sum.DroppedBySNR,
		log.DurationMsKey, sum.Duration.Milliseconds())
	return out, sum, nil
}

// ZeroFill replaces missing values with 0.
func ZeroFill(m *dataset.ReplicateMatrix) *dataset.ReplicateMatrix {
	out := m.Clone()
	for _, row := range out.Data {
		for j, v := range row {
			if math.IsNaN(v) {
				row[j] = 0
			}
		}
	}
	return out
}

// TruncateTrailing drops the rightmost n fraction columns. n <= 0 is a no-op;
// n must leave at least one column.
func TruncateTrailing(m *dataset.ReplicateMatrix, n int) (*dataset.ReplicateMatrix, error) {
	out := m.Clone()
	if n <= 0 {
		return out, nil
	}
	if n >= m.Cols() {
		return nil, errors.NewValueError("TruncateTrailing",
			"cannot drop all fraction columns of replicate "+m.Replicate)
	}
	keep := m.Cols() - n
	out.Columns = out.Columns[:keep]
	for i, row := range out.Data {
		out.Data[i] = row[:keep]
	}
	return out, nil
}

// ImputeGaps fills single-fraction gaps. A value is missing when it is 0 or
// NaN. For each width-3 window with the pattern (present, missing, present)
// the middle becomes the mean of its neighbours rounded to 3 decimals. The
// pass runs once left to right, so a later window reads (but never rewrites)
// a value imputed by an earlier one. Cells still missing afterwards are 0.
//
// ImputeGaps does not warn: a window only matches when its middle is missing,
// and the right neighbour of a match is present, so no two matches share a
// middle cell.
func ImputeGaps(m *dataset.ReplicateMatrix) *dataset.ReplicateMatrix {
	out, _ := imputeGaps(m)
	return out
}

func imputeGaps(m *dataset.ReplicateMatrix) (*dataset.ReplicateMatrix, int) {
	out := m.Clone()
	imputed := 0
	for _, row := range out.Data {
		work := make([]float64, len(row))
		for j, v := range row {
			if v == 0 {
				v = math.NaN()
			}
			work[j] = v
		}

		for j := 0; j+gapWindow <= len(work); j++ {
			left, mid, right := work[j], work[j+1], work[j+2]
			if math.IsNaN(left) || !math.IsNaN(mid) || math.IsNaN(right) {
				continue
			}
			// a matched middle is missing and no other window has it as middle
			work[j+1] = round3((left + right) / 2)
			imputed++
		}

		for j, v := range work {
			if math.IsNaN(v) {
				v = 0
			}
			row[j] = v
		}
	}
	return out, imputed
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// RemoveSingletons zeroes isolated single-fraction spikes: in every width-3
// window with the zero/non-zero pattern (zero, non-zero, zero) the middle is
// set to 0. Missing values count as zero.
func RemoveSingletons(m *dataset.ReplicateMatrix) *dataset.ReplicateMatrix {
	out, _ := removeSingletons(m)
	return out
}

func removeSingletons(m *dataset.ReplicateMatrix) (*dataset.ReplicateMatrix, int) {
	out := m.Clone()
	zeroed := 0
	for _, row := range out.Data {
		for j := 0; j+gapWindow <= len(row); j++ {
			if isZero(row[j]) && !isZero(row[j+1]) && isZero(row[j+2]) {
				row[j+1] = 0
				zeroed++
			}
		}
	}
	return out, zeroed
}

func isZero(v float64) bool {
	return v == 0 || math.IsNaN(v)
}

// FilterConsecutive keeps the rows having at least one window of w
// consecutive non-zero values; all cols-w+1 window positions are tried.
// Rows without one are dropped, possibly leaving an empty matrix.
func FilterConsecutive(m *dataset.ReplicateMatrix, w int) *dataset.ReplicateMatrix {
	if w < 1 {
		w = 1
	}
	keep := make([]int, 0, m.Rows())
	for i, row := range m.Data {
		if hasNonZeroRun(row, w) {
			keep = append(keep, i)
		}
	}
	return m.Select(keep)
}

func hasNonZeroRun(row []float64, w int) bool {
	run := 0
	for _, v := range row {
		if isZero(v) {
			run = 0
			continue
		}
		run++
		if run >= w {
			return true
		}
	}
	return false
}
