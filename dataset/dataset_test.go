package dataset

import (
	"compress/gzip"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const twoReplicateCSV = `protein_id,F1A,F1B,F2A,F2B,F3A,F3B
P1,1,10,2,20,3,30
P2,4,40,5,50,6,60
`

func TestPartitionGroupsByReplicateLetter(t *testing.T) {
	d, err := ReadDelimited(strings.NewReader(twoReplicateCSV), ',')
	require.NoError(t, err)

	ms := Partition(d)
	require.Len(t, ms, 2)

	assert.Equal(t, "A", ms[0].Replicate)
	assert.Equal(t, []string{"F1A", "F2A", "F3A"}, ms[0].Columns)
	assert.Equal(t, "protein_id", ms[0].IDColumn)
	assert.Equal(t, []string{"P1", "P2"}, ms[0].IDs)
	assert.Equal(t, [][]float64{{1, 2, 3}, {4, 5, 6}}, ms[0].Data)

	assert.Equal(t, "B", ms[1].Replicate)
	assert.Equal(t, []string{"F1B", "F2B", "F3B"}, ms[1].Columns)
	assert.Equal(t, [][]float64{{10, 20, 30}, {40, 50, 60}}, ms[1].Data)
}

func TestPartitionRoundTrip(t *testing.T) {
	d, err := ReadDelimited(strings.NewReader(twoReplicateCSV), ',')
	require.NoError(t, err)

	back := Concat(Partition(d))
	assert.Equal(t, d.Columns, back.Columns)
	assert.Equal(t, d.Rows, back.Rows)
}

func TestPartitionCopiesData(t *testing.T) {
	d, err := ReadDelimited(strings.NewReader(twoReplicateCSV), ',')
	require.NoError(t, err)

	ms := Partition(d)
	ms[0].Data[0][0] = 99
	assert.Equal(t, 1.0, d.Rows[0].Values[0])
}

func TestFromRecordsMissingAndNonNumeric(t *testing.T) {
	d, err := FromRecords([][]string{
		{"protein_id", "F1A", "F2A", "F3A"},
		{"P1", "1", "", "NA"},
		{"P2", "2", "x", "3"},
		{"P3", "4"},
	})
	require.NoError(t, err)

	require.Len(t, d.Rows, 3)
	assert.True(t, math.IsNaN(d.Rows[0].Values[1]))
	assert.True(t, math.IsNaN(d.Rows[0].Values[2]))
	assert.Equal(t, []string{"F2A"}, d.NonNumeric)
	assert.True(t, math.IsNaN(d.Rows[2].Values[2]))
}

func TestFromRecordsEmpty(t *testing.T) {
	_, err := FromRecords(nil)
	assert.Error(t, err)
}

func TestReplicateMatrixCheck(t *testing.T) {
	m := &ReplicateMatrix{
		Replicate: "A",
		Columns:   []string{"F1A", "F2A", "F3A"},
		IDs:       []string{"P1"},
		Data:      [][]float64{{1, math.NaN(), 3}},
	}
	assert.NoError(t, m.Check())

	empty := m.Select(nil)
	assert.Error(t, empty.Check())
	assert.Nil(t, empty.Dense())

	narrow := &ReplicateMatrix{Columns: []string{"F1A", "F2A"}, IDs: []string{"P1"}, Data: [][]float64{{1, 2}}}
	assert.Error(t, narrow.Check())

	inf := m.Clone()
	inf.Data[0][0] = math.Inf(1)
	assert.Error(t, inf.Check())
}

func TestFileSourceFormats(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	csvPath := filepath.Join(dir, "profiles.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(twoReplicateCSV), 0o600))

	gzPath := filepath.Join(dir, "profiles.csv.gz")
	f, err := os.Create(gzPath)
	require.NoError(t, err)
	zw := gzip.NewWriter(f)
	_, err = zw.Write([]byte(twoReplicateCSV))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	xlsxPath := filepath.Join(dir, "profiles.xlsx")
	xf := excelize.NewFile()
	for i, line := range strings.Split(strings.TrimSpace(twoReplicateCSV), "\n") {
		cells := strings.Split(line, ",")
		row := make([]interface{}, len(cells))
		for j, c := range cells {
			row[j] = c
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, xf.SetSheetRow("Sheet1", cell, &row))
	}
	require.NoError(t, xf.SaveAs(xlsxPath))
	require.NoError(t, xf.Close())

	for _, path := range []string{csvPath, gzPath, xlsxPath} {
		t.Run(filepath.Base(path), func(t *testing.T) {
			d, err := FileSource{Path: path}.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, 7, d.NumColumns())
			assert.Equal(t, 2, d.NumRows())
			assert.Equal(t, 60.0, d.Rows[1].Values[5])
			assert.Empty(t, d.NonNumeric)
		})
	}

	_, err = FileSource{Path: filepath.Join(dir, "profiles.parquet")}.Load(ctx)
	assert.Error(t, err)
}

func TestStaticSourceReturnsCopy(t *testing.T) {
	d, err := ReadDelimited(strings.NewReader(twoReplicateCSV), ',')
	require.NoError(t, err)

	got, err := StaticSource{Data: d}.Load(context.Background())
	require.NoError(t, err)
	got.Rows[0].Values[0] = -1
	assert.Equal(t, 1.0, d.Rows[0].Values[0])

	_, err = StaticSource{}.Load(context.Background())
	assert.Error(t, err)
}
