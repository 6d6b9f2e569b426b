package mixture

import (
	"math"

	"github.com/YuminosukeSato/coelurus/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Selection is the outcome of a BIC search over component counts.
type Selection struct {
	Model *GaussianMixture
	K     int
	// Index is the position of the selected candidate in ks.
	Index int
	// BIC is aligned with the candidate counts; failed fits are +Inf.
	BIC []float64
	// Errs holds the fit error per candidate count, nil on success.
	Errs []error
}

// SelectByBIC fits one model per candidate component count and keeps the
// one with the lowest BIC. Candidates are tried in the given order and a
// later model replaces the current best only on a strictly lower BIC, so
// with ascending ks ties go to the smaller count. Candidates that fail to
// fit are skipped; if all fail the last error is returned.
func SelectByBIC(X mat.Matrix, ks []int, options ...Option) (*Selection, error) {
	n, _ := X.Dims()
	if len(ks) == 0 {
		return nil, errors.NewValueError("SelectByBIC", "no candidate component counts")
	}

	sel := &Selection{
		BIC:  make([]float64, len(ks)),
		Errs: make([]error, len(ks)),
	}
	best := math.Inf(1)
	var lastErr error
	for i, k := range ks {
		sel.BIC[i] = math.Inf(1)

		gmm := NewGaussianMixture(append(options, WithNComponents(k))...)
		if err := gmm.Fit(X); err != nil {
			sel.Errs[i], lastErr = err, err
			continue
		}
		bic, err := gmm.BIC(X)
		if err == nil && (math.IsNaN(bic) || math.IsInf(bic, 0)) {
			err = errors.NewModelFitError("SelectByBIC", "BIC is not finite", k, n)
		}
		if err != nil {
			sel.Errs[i], lastErr = err, err
			continue
		}

		sel.BIC[i] = bic
		if sel.Model == nil || bic < best {
			best = bic
			sel.Model = gmm
			sel.K = k
			sel.Index = i
		}
	}

	if sel.Model == nil {
		return sel, lastErr
	}
	return sel, nil
}

// ComponentRange returns 1..hi, or just 1 when hi < 1.
func ComponentRange(hi int) []int {
	ks := []int{1}
	for k := 2; k <= hi; k++ {
		ks = append(ks, k)
	}
	return ks
}
