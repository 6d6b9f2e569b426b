package report

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/YuminosukeSato/coelurus/features"
	"github.com/kshedden/gonpy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleTable(t *testing.T) *features.Table {
	tbl := features.NewTable("", "protein_id", []string{"A_mean_1", "A_sd_1"})
	require.NoError(t, tbl.Append("P1", []float64{2.5, 0.5}))
	require.NoError(t, tbl.Append("P2", []float64{7, math.NaN()}))
	return tbl
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleTable(t)))
	assert.Equal(t, "protein_id,A_mean_1,A_sd_1\nP1,2.5,0.5\nP2,7,\n", buf.String())
}

func TestWriteNumpy(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteNumpy(&buf, sampleTable(t)))

	npy, err := gonpy.NewReader(&buf)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, npy.Shape)

	values, err := npy.GetFloat64()
	require.NoError(t, err)
	require.Len(t, values, 4)
	assert.Equal(t, []float64{2.5, 0.5, 7}, values[:3])
	assert.True(t, math.IsNaN(values[3]))
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.xlsx")
	require.NoError(t, WriteXLSX(path, sampleTable(t)))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"protein_id", "A_mean_1", "A_sd_1"}, rows[0])
	assert.Equal(t, []string{"P1", "2.5", "0.5"}, rows[1])
	assert.Equal(t, []string{"P2", "7"}, rows[2])
}

func TestPlotProfile(t *testing.T) {
	fit := &features.ProfileFit{
		Samples: []float64{1.9, 2.1, 2.0, 2.2, 1.8, 6.0, 6.1, 5.9},
		Means:   []float64{2, 6},
		SDs:     []float64{0.15, 0.1},
		Weights: []float64{0.625, 0.375},
	}
	path := filepath.Join(t.TempDir(), "P1.png")
	require.NoError(t, PlotProfile(path, "P1", fit))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	assert.Error(t, PlotProfile(path, "P2", &features.ProfileFit{}))
}
