package preprocessing

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/coelurus/dataset"
	"github.com/YuminosukeSato/coelurus/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// SmoothingMethod selects the rolling statistic.
type SmoothingMethod string

const (
	SmoothMedian SmoothingMethod = "median"
	SmoothMean   SmoothingMethod = "mean"
)

// SignalToNoisePolicy decides what happens to a row below the threshold.
type SignalToNoisePolicy string

const (
	// PolicySuppress zeroes every value below threshold × row max.
	PolicySuppress SignalToNoisePolicy = "suppress"
	// PolicyDropRow drops a row whose mean non-zero value is below
	// threshold × row max.
	PolicyDropRow SignalToNoisePolicy = "drop_row"
)

// Smooth replaces every value with the median or mean of the trailing window
// of size values ending at it. Missing values in the window are skipped and
// a window needs size-1 present values, so positions near the start of a row
// become NaN.
func Smooth(m *dataset.ReplicateMatrix, size int, method SmoothingMethod) (*dataset.ReplicateMatrix, error) {
	if size < 2 {
		return nil, errors.NewValueError("Smooth", "window size must be at least 2")
	}
	var agg func([]float64) float64
	switch method {
	case SmoothMedian, "":
		agg = median
	case SmoothMean:
		agg = func(xs []float64) float64 { return stat.Mean(xs, nil) }
	default:
		return nil, errors.NewValueError("Smooth", "unknown smoothing method "+string(method))
	}

	minPeriods := size - 1
	out := m.Clone()
	buf := make([]float64, 0, size)
	for i, row := range m.Data {
		dst := out.Data[i]
		for j := range row {
			buf = buf[:0]
			for k := max(0, j-size+1); k <= j; k++ {
				if !math.IsNaN(row[k]) {
					buf = append(buf, row[k])
				}
			}
			if len(buf) < minPeriods {
				dst[j] = math.NaN()
				continue
			}
			dst[j] = agg(buf)
		}
	}
	return out, nil
}

// median sorts xs in place.
func median(xs []float64) float64 {
	sort.Float64s(xs)
	n := len(xs)
	if n%2 == 1 {
		return xs[n/2]
	}
	return (xs[n/2-1] + xs[n/2]) / 2
}

// FilterSignalToNoise applies the signal-to-noise threshold to every row.
// A threshold <= 0 disables the step. NaN values are ignored when computing
// the row maximum and mean and are left untouched.
func FilterSignalToNoise(m *dataset.ReplicateMatrix, threshold float64, policy SignalToNoisePolicy) *dataset.ReplicateMatrix {
	if threshold <= 0 {
		return m.Clone()
	}

	if policy == PolicyDropRow {
		keep := make([]int, 0, m.Rows())
		for i, row := range m.Data {
			peak, mean := rowPeakAndMean(row)
			if mean >= threshold*peak {
				keep = append(keep, i)
			}
		}
		return m.Select(keep)
	}

	out := m.Clone()
	for _, row := range out.Data {
		peak, _ := rowPeakAndMean(row)
		cut := threshold * peak
		for j, v := range row {
			if v < cut {
				row[j] = 0
			}
		}
	}
	return out
}

// rowPeakAndMean returns the row maximum and the mean of its non-zero values,
// both 0 for a row with no present non-zero value.
func rowPeakAndMean(row []float64) (peak, mean float64) {
	sum, n := 0.0, 0
	for _, v := range row {
		if math.IsNaN(v) || v == 0 {
			continue
		}
		if n == 0 || v > peak {
			peak = v
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0, 0
	}
	return peak, sum / float64(n)
}
