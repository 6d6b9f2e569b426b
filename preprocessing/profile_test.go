package preprocessing

import (
	"fmt"
	"math"
	"testing"

	"github.com/YuminosukeSato/coelurus/config"
	"github.com/YuminosukeSato/coelurus/dataset"
	"github.com/YuminosukeSato/coelurus/pkg/errors"
	"github.com/YuminosukeSato/coelurus/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMatrix(rows ...[]float64) *dataset.ReplicateMatrix {
	m := &dataset.ReplicateMatrix{Replicate: "A", IDColumn: "protein_id"}
	if len(rows) > 0 {
		for j := range rows[0] {
			m.Columns = append(m.Columns, fmt.Sprintf("F%dA", j+1))
		}
	}
	for i, r := range rows {
		m.IDs = append(m.IDs, fmt.Sprintf("P%d", i))
		m.Data = append(m.Data, append([]float64(nil), r...))
	}
	return m
}

func testConfig(fractions int) config.Config {
	cfg := config.Default()
	cfg.DataSources.InputDataProteinID = "protein_id"
	cfg.DataSources.NumberOfFractions = fractions
	cfg.DataSources.NumberOfReplicates = 1
	return cfg
}

func TestZeroFill(t *testing.T) {
	in := newMatrix([]float64{math.NaN(), 1, math.NaN()})
	out := ZeroFill(in)

	assert.Equal(t, []float64{0, 1, 0}, out.Data[0])
	assert.True(t, math.IsNaN(in.Data[0][0]), "input must not be modified")
}

func TestTruncateTrailing(t *testing.T) {
	in := newMatrix([]float64{1, 2, 3, 4, 5, 6, 7})

	out, err := TruncateTrailing(in, 2)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, out.Data[0])
	assert.Equal(t, []string{"F1A", "F2A", "F3A", "F4A", "F5A"}, out.Columns)

	same, err := TruncateTrailing(in, 0)
	require.NoError(t, err)
	assert.Equal(t, in.Data, same.Data)

	_, err = TruncateTrailing(in, 7)
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))
}

func TestImputeGaps(t *testing.T) {
	in := newMatrix(
		[]float64{2, 1, 1, 1, 0, 2, 0},
		[]float64{0, 1, 0, 1, 1, 1, 1},
		[]float64{0, 1, 2, 0, 1, 0, 1},
		[]float64{0, 0, 1, 0, 0, 1, 0},
		[]float64{0, 0, 0, 0, 1, 1, 1},
	)

	out := ImputeGaps(in)

	assert.Equal(t, [][]float64{
		{2, 1, 1, 1, 1.5, 2, 0},
		{0, 1, 1, 1, 1, 1, 1},
		{0, 1, 2, 1.5, 1, 1, 1},
		{0, 0, 1, 0, 0, 1, 0},
		{0, 0, 0, 0, 1, 1, 1},
	}, out.Data)
	assert.Equal(t, 0.0, in.Data[0][4], "input must not be modified")
}

func TestImputeGapsRounds(t *testing.T) {
	out := ImputeGaps(newMatrix([]float64{1, 0, 0.1234}))
	assert.Equal(t, 0.562, out.Data[0][1])
}

func TestImputeGapsIdempotent(t *testing.T) {
	in := newMatrix(
		[]float64{3, 0, 1, 0, 5, 0, 0, 2, 0, 2},
		[]float64{0, 1, 0, 1, 0, 1, 0, 1, 0, 1},
		[]float64{math.NaN(), 4, math.NaN(), 4, 0, 0, 7},
	)
	once := ImputeGaps(ZeroFill(in))
	twice := ImputeGaps(once)
	assert.Equal(t, once.Data, twice.Data)
}

func TestImputeGapsAlternatingGaps(t *testing.T) {
	// every gap is the middle of exactly one window
	out := ImputeGaps(newMatrix([]float64{1, 0, 3, 0, 5, math.NaN(), 7}))
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6, 7}, out.Data[0])
}

func TestRemoveSingletons(t *testing.T) {
	out := RemoveSingletons(newMatrix(
		[]float64{0, 5, 0},
		[]float64{5, 5, 0},
		[]float64{0, 2, 0, 3, 3, 0, 4, 0},
		[]float64{7, 0, 0},
	))

	assert.Equal(t, [][]float64{
		{0, 0, 0},
		{5, 5, 0},
		{0, 0, 0, 3, 3, 0, 0, 0},
		{7, 0, 0},
	}, out.Data)
}

func TestFilterConsecutive(t *testing.T) {
	in := newMatrix(
		[]float64{2, 1, 1, 1, 0, 2, 0},
		[]float64{0, 1, 0, 1, 1, 1, 0},
		[]float64{0, 1, 2, 0, 1, 0, 1},
		[]float64{0, 0, 1, 0, 0, 1, 0},
		[]float64{0, 0, 0, 0, 1, 1, 1},
	)

	out := FilterConsecutive(in, 3)
	assert.Equal(t, []string{"P0", "P1", "P4"}, out.IDs)
	assert.Equal(t, in.Data[1], out.Data[1])

	assert.Equal(t, 1, FilterConsecutive(newMatrix([]float64{1, 1, 1, 1, 1, 1, 1}), 3).Rows())
	assert.Equal(t, 1, FilterConsecutive(newMatrix([]float64{1, 1, 1, 1, 1, 1, 1}), 7).Rows())
	assert.Equal(t, 0, FilterConsecutive(newMatrix([]float64{1, 1, 1}), 4).Rows())
}

func TestSmooth(t *testing.T) {
	in := newMatrix(
		[]float64{1, 2, 3, 4, 5},
		[]float64{1, math.NaN(), 3, 5, 0},
	)

	out, err := Smooth(in, 3, SmoothMedian)
	require.NoError(t, err)

	assert.True(t, math.IsNaN(out.Data[0][0]))
	assert.Equal(t, []float64{1.5, 2, 3, 4}, out.Data[0][1:])

	assert.True(t, math.IsNaN(out.Data[1][0]))
	assert.True(t, math.IsNaN(out.Data[1][1]), "one present value is below min periods")
	assert.Equal(t, []float64{2, 4, 3}, out.Data[1][2:])

	mean, err := Smooth(newMatrix([]float64{0, 3, 6, 0}), 3, SmoothMean)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(mean.Data[0][0]))
	assert.Equal(t, []float64{1.5, 3, 3}, mean.Data[0][1:])
}

func TestSmoothInvalid(t *testing.T) {
	_, err := Smooth(newMatrix([]float64{1, 2, 3}), 1, SmoothMedian)
	assert.Error(t, err)

	_, err = Smooth(newMatrix([]float64{1, 2, 3}), 3, "mode")
	assert.Error(t, err)
}

func TestFilterSignalToNoise(t *testing.T) {
	in := newMatrix(
		[]float64{1, 5, 10, 2},
		[]float64{1, 1, 10, 1},
		[]float64{0, 0, 0, 0},
	)

	t.Run("suppress", func(t *testing.T) {
		out := FilterSignalToNoise(in, 0.3, PolicySuppress)
		require.Equal(t, 3, out.Rows())
		assert.Equal(t, []float64{0, 5, 10, 0}, out.Data[0])
		assert.Equal(t, []float64{0, 0, 10, 0}, out.Data[1])
		assert.Equal(t, []float64{0, 0, 0, 0}, out.Data[2])
	})

	t.Run("drop_row", func(t *testing.T) {
		out := FilterSignalToNoise(in, 0.4, PolicyDropRow)
		assert.Equal(t, []string{"P0", "P2"}, out.IDs)
		assert.Equal(t, in.Data[0], out.Data[0])
	})

	t.Run("disabled", func(t *testing.T) {
		out := FilterSignalToNoise(in, 0, PolicyDropRow)
		assert.Equal(t, in.Data, out.Data)
	})
}

func TestApplyAllZeroRowsAreDropped(t *testing.T) {
	in := newMatrix(
		make([]float64, 7), make([]float64, 7), make([]float64, 7),
		make([]float64, 7), make([]float64, 7),
	)
	logger := log.NewTestLogger(log.LevelDebug)

	out, sum, err := NewTransformer(testConfig(7), logger).Apply(in)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Rows())
	assert.Equal(t, 7, out.Cols())
	assert.Equal(t, 5, sum.InputRows)
	assert.Equal(t, 5, sum.DroppedByRun)
	assert.True(t, logger.ContainsMessage("replicate transformed"))
}

func TestApplyPipeline(t *testing.T) {
	cfg := testConfig(7)
	cfg.FilterOptions.RemoveNLastFracs = 1
	cfg.FilterOptions.EnableSmoothing = true

	in := newMatrix(
		[]float64{2, 1, 1, 1, 0, 2, 0},
		[]float64{0, 4, 0, 0, 0, 0, 9},
		[]float64{math.NaN(), 1, 2, 0, 1, 0, 1},
	)
	snapshot := in.Clone()

	out, sum, err := NewTransformer(cfg, nil).Apply(in)
	require.NoError(t, err)

	// P1 loses its singleton and has no run left; P2 is imputed into a run.
	assert.Equal(t, []string{"P0", "P2"}, out.IDs)
	assert.Equal(t, 6, out.Cols())
	assert.Equal(t, 1, sum.SingletonsZeroed)
	assert.Equal(t, 1, sum.DroppedByRun)
	assert.True(t, math.IsNaN(out.Data[0][0]))
	assert.Equal(t, snapshot.Data[0], in.Data[0])
}

func TestApplyRejectsNarrowMatrix(t *testing.T) {
	_, _, err := NewTransformer(testConfig(3), nil).Apply(newMatrix([]float64{1, 2}))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))
}

func TestRowMaxScaler(t *testing.T) {
	in := newMatrix([]float64{2, 4, math.NaN()}, []float64{0, 0, 0}).Dense()

	s := NewRowMaxScaler()
	_, err := s.Transform(in)
	assert.Error(t, err)

	out, err := s.FitTransform(in)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 1, 0}, []float64{out.At(0, 0), out.At(0, 1), out.At(0, 2)})
	assert.Equal(t, 0.0, out.At(1, 1))
	assert.Equal(t, "RowMaxScaler(n_features=3)", s.String())
}
