// Package validation checks a loaded dataset against the declared
// experimental design before any transformation runs.
package validation

import (
	"context"
	"fmt"
	"strings"

	"github.com/YuminosukeSato/coelurus/config"
	"github.com/YuminosukeSato/coelurus/dataset"
	"github.com/YuminosukeSato/coelurus/pkg/errors"
	"github.com/YuminosukeSato/coelurus/pkg/log"
)

// CheckID names one validation step.
type CheckID string

// Checks run in this order; the first failure stops validation.
const (
	CheckPresent     CheckID = "present"
	CheckRowCount    CheckID = "row_count"
	CheckTruncation  CheckID = "truncation"
	CheckIdentifier  CheckID = "identifier"
	CheckColumnCount CheckID = "column_count"
	CheckNumeric     CheckID = "numeric"
	CheckNaming      CheckID = "naming"
)

// Result is the outcome of Validate. A failed result carries the failing
// check and a *errors.SchemaError; it is a value for the caller to branch
// on, not a fatal error.
type Result struct {
	OK     bool
	Check  CheckID
	Reason string
	Err    error
}

func pass() Result { return Result{OK: true} }

func fail(check CheckID, format string, args ...interface{}) Result {
	reason := fmt.Sprintf(format, args...)
	return Result{
		Check:  check,
		Reason: reason,
		Err:    errors.NewSchemaError(string(check), reason),
	}
}

// Validator checks datasets against one configuration.
type Validator struct {
	cfg    config.Config
	logger log.Logger
}

// NewValidator creates a Validator. A nil logger discards output.
func NewValidator(cfg config.Config, logger log.Logger) *Validator {
	if logger == nil {
		logger = log.Nop()
	}
	return &Validator{
		cfg:    cfg,
		logger: logger.With(log.ComponentKey, "validation"),
	}
}

// CanonicalColumns returns F1A, F1B, ..., F<fractions><last letter>:
// fraction-major, replicate-minor.
func CanonicalColumns(fractions, replicates int) []string {
	out := make([]string, 0, fractions*replicates)
	for i := 1; i <= fractions; i++ {
		for r := 0; r < replicates; r++ {
			out = append(out, fmt.Sprintf("F%d%c", i, 'A'+r))
		}
	}
	return out
}

// ValidateSource loads from src and validates the result. Load errors are
// returned as errors; schema failures are returned in the Result.
func (v *Validator) ValidateSource(ctx context.Context, src dataset.DataSource) (*dataset.Dataset, Result, error) {
	d, err := src.Load(ctx)
	if err != nil {
		return nil, Result{}, err
	}
	return d, v.Validate(d), nil
}

// Validate runs the checks in order and reports the first failure.
func (v *Validator) Validate(d *dataset.Dataset) Result {
	res := v.validate(d)
	if res.OK {
		v.logger.Debug("dataset passed schema checks",
			log.StageKey, log.StageValidate,
			log.ProfilesKey, d.NumRows())
	} else {
		v.logger.Warn("dataset failed schema check",
			log.StageKey, log.StageValidate,
			log.CheckKey, string(res.Check),
			"reason", res.Reason)
	}
	return res
}

func (v *Validator) validate(d *dataset.Dataset) Result {
	ds := v.cfg.DataSources
	fo := v.cfg.FilterOptions

	if d == nil || d.NumColumns() == 0 || d.NumRows() == 0 {
		return fail(CheckPresent, "the data seems to be missing; was it loaded?")
	}

	if d.NumRows() < fo.MinRows {
		return fail(CheckRowCount, "dataset has %d rows, at least %d required", d.NumRows(), fo.MinRows)
	}

	if d.NumColumns() <= fo.RemoveNLastFracs {
		return fail(CheckTruncation, "dataset has %d columns, cannot discard %d trailing fractions",
			d.NumColumns(), fo.RemoveNLastFracs)
	}

	var matches []int
	for j, name := range d.Columns {
		if strings.Contains(name, ds.InputDataProteinID) {
			matches = append(matches, j)
		}
	}
	switch {
	case len(matches) == 0:
		return fail(CheckIdentifier, "no column matches identifier %q", ds.InputDataProteinID)
	case len(matches) > 1:
		return fail(CheckIdentifier, "%d columns match identifier %q", len(matches), ds.InputDataProteinID)
	case matches[0] != 0:
		return fail(CheckIdentifier, "identifier column %q must be the first column", d.Columns[matches[0]])
	}

	want := 1 + ds.NumberOfFractions*ds.NumberOfReplicates
	if d.NumColumns() != want {
		return fail(CheckColumnCount, "expected 1 + %d fractions x %d replicates = %d columns, got %d",
			ds.NumberOfFractions, ds.NumberOfReplicates, want, d.NumColumns())
	}

	if len(d.NonNumeric) > 0 {
		return fail(CheckNumeric, "non-numeric entries in columns %s", strings.Join(d.NonNumeric, ", "))
	}

	canonical := CanonicalColumns(ds.NumberOfFractions, ds.NumberOfReplicates)
	for j, name := range d.Columns[1:] {
		if name != canonical[j] {
			return fail(CheckNaming, "column %d is %q, expected %q", j+1, name, canonical[j])
		}
	}
	return pass()
}

// EnforceColumnNames returns a copy of d with the identifier column renamed
// to the configured name and value columns renamed to the canonical
// sequence. It fails with a *errors.NamingError when the column count does
// not match the design.
func (v *Validator) EnforceColumnNames(d *dataset.Dataset) (*dataset.Dataset, error) {
	ds := v.cfg.DataSources
	canonical := CanonicalColumns(ds.NumberOfFractions, ds.NumberOfReplicates)
	if d == nil {
		return nil, errors.NewNamingError(len(canonical)+1, 0)
	}
	if d.NumColumns() != len(canonical)+1 {
		return nil, errors.NewNamingError(len(canonical)+1, d.NumColumns())
	}

	out := d.Clone()
	out.Columns = append([]string{ds.InputDataProteinID}, canonical...)

	renamed := make(map[string]string, len(d.Columns))
	for j, old := range d.Columns {
		renamed[old] = out.Columns[j]
	}
	for i, name := range out.NonNumeric {
		out.NonNumeric[i] = renamed[name]
	}
	return out, nil
}
