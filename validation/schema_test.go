package validation

import (
	"context"
	"fmt"
	"testing"

	"github.com/YuminosukeSato/coelurus/config"
	"github.com/YuminosukeSato/coelurus/dataset"
	"github.com/YuminosukeSato/coelurus/pkg/errors"
	"github.com/YuminosukeSato/coelurus/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(fractions, replicates, minRows int) config.Config {
	cfg := config.Default()
	cfg.DataSources.InputDataProteinID = "protein_id"
	cfg.DataSources.NumberOfFractions = fractions
	cfg.DataSources.NumberOfReplicates = replicates
	cfg.FilterOptions.MinRows = minRows
	return cfg
}

// zeroDataset builds rows x (protein_id + canonical columns) of zeros.
func zeroDataset(rows, fractions, replicates int) *dataset.Dataset {
	d := &dataset.Dataset{Columns: append([]string{"protein_id"}, CanonicalColumns(fractions, replicates)...)}
	for i := 0; i < rows; i++ {
		d.Rows = append(d.Rows, dataset.Row{
			ID:     fmt.Sprintf("P%d", i),
			Values: make([]float64, fractions*replicates),
		})
	}
	return d
}

func TestCanonicalColumns(t *testing.T) {
	assert.Equal(t, []string{"F1A", "F1B", "F2A", "F2B", "F3A", "F3B"}, CanonicalColumns(3, 2))
	assert.Equal(t, []string{"F1A", "F2A", "F3A"}, CanonicalColumns(3, 1))
}

func TestValidatePasses(t *testing.T) {
	logger := log.NewTestLogger(log.LevelDebug)
	v := NewValidator(testConfig(7, 1, 5), logger)

	res := v.Validate(zeroDataset(5, 7, 1))
	assert.True(t, res.OK)
	assert.NoError(t, res.Err)
	assert.True(t, logger.ContainsMessage("dataset passed schema checks"))
}

func TestValidateFailures(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
		data func() *dataset.Dataset
		want CheckID
	}{
		{
			name: "nil dataset",
			cfg:  testConfig(3, 2, 1),
			data: func() *dataset.Dataset { return nil },
			want: CheckPresent,
		},
		{
			name: "header only",
			cfg:  testConfig(3, 2, 0),
			data: func() *dataset.Dataset { return zeroDataset(0, 3, 2) },
			want: CheckPresent,
		},
		{
			name: "too few rows",
			cfg:  testConfig(3, 2, 10),
			data: func() *dataset.Dataset { return zeroDataset(9, 3, 2) },
			want: CheckRowCount,
		},
		{
			name: "truncation wider than table",
			cfg: func() config.Config {
				c := testConfig(3, 2, 1)
				c.FilterOptions.RemoveNLastFracs = 7
				return c
			}(),
			data: func() *dataset.Dataset { return zeroDataset(2, 3, 2) },
			want: CheckTruncation,
		},
		{
			name: "missing identifier",
			cfg:  testConfig(3, 2, 1),
			data: func() *dataset.Dataset {
				d := zeroDataset(2, 3, 2)
				d.Columns[0] = "gene"
				return d
			},
			want: CheckIdentifier,
		},
		{
			name: "duplicate identifier",
			cfg:  testConfig(3, 2, 1),
			data: func() *dataset.Dataset {
				d := zeroDataset(2, 3, 2)
				d.Columns[1] = "protein_id_2"
				return d
			},
			want: CheckIdentifier,
		},
		{
			name: "identifier not first",
			cfg:  testConfig(3, 2, 1),
			data: func() *dataset.Dataset {
				d := zeroDataset(2, 3, 2)
				d.Columns[0], d.Columns[1] = d.Columns[1], d.Columns[0]
				return d
			},
			want: CheckIdentifier,
		},
		{
			name: "column dropped",
			cfg:  testConfig(3, 2, 1),
			data: func() *dataset.Dataset {
				d := zeroDataset(2, 3, 2)
				d.Columns = d.Columns[:6]
				for i := range d.Rows {
					d.Rows[i].Values = d.Rows[i].Values[:5]
				}
				return d
			},
			want: CheckColumnCount,
		},
		{
			name: "non-numeric column",
			cfg:  testConfig(3, 2, 1),
			data: func() *dataset.Dataset {
				d := zeroDataset(2, 3, 2)
				d.NonNumeric = []string{"F2B"}
				return d
			},
			want: CheckNumeric,
		},
		{
			name: "replicate-major order",
			cfg:  testConfig(3, 2, 1),
			data: func() *dataset.Dataset {
				d := zeroDataset(2, 3, 2)
				copy(d.Columns[1:], []string{"F1A", "F2A", "F3A", "F1B", "F2B", "F3B"})
				return d
			},
			want: CheckNaming,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewValidator(tt.cfg, nil).Validate(tt.data())
			assert.False(t, res.OK)
			assert.Equal(t, tt.want, res.Check)
			assert.NotEmpty(t, res.Reason)

			var schemaErr *errors.SchemaError
			require.True(t, errors.As(res.Err, &schemaErr))
			assert.Equal(t, string(tt.want), schemaErr.Check)
		})
	}
}

func TestEnforceColumnNames(t *testing.T) {
	v := NewValidator(testConfig(3, 2, 1), nil)

	d := zeroDataset(2, 3, 2)
	d.Columns = []string{"Protein", "a", "b", "c", "d", "e", "f"}
	d.NonNumeric = []string{"c"}

	out, err := v.EnforceColumnNames(d)
	require.NoError(t, err)
	assert.Equal(t, []string{"protein_id", "F1A", "F1B", "F2A", "F2B", "F3A", "F3B"}, out.Columns)
	assert.Equal(t, []string{"F2A"}, out.NonNumeric)
	// input untouched
	assert.Equal(t, "Protein", d.Columns[0])

	d.Columns = d.Columns[:5]
	_, err = v.EnforceColumnNames(d)
	var namingErr *errors.NamingError
	require.True(t, errors.As(err, &namingErr))
	assert.Equal(t, 7, namingErr.Expected)
	assert.Equal(t, 5, namingErr.Got)
}

func TestValidateSource(t *testing.T) {
	v := NewValidator(testConfig(7, 1, 5), nil)

	d, res, err := v.ValidateSource(context.Background(), dataset.StaticSource{Data: zeroDataset(5, 7, 1)})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, 5, d.NumRows())

	_, _, err = v.ValidateSource(context.Background(), dataset.StaticSource{})
	assert.Error(t, err)
}
