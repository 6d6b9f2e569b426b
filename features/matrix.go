package features

import (
	"context"
	"fmt"
	"time"

	"github.com/YuminosukeSato/coelurus/config"
	"github.com/YuminosukeSato/coelurus/dataset"
	"github.com/YuminosukeSato/coelurus/pkg/errors"
	"github.com/YuminosukeSato/coelurus/pkg/log"
	"github.com/YuminosukeSato/coelurus/preprocessing"
	"github.com/YuminosukeSato/coelurus/sklearn/mixture"
)

// MatrixMembershipExtractor fits one mixture across all profiles of a
// replicate, each profile being a point in fraction space after row-max
// normalisation. The features of a profile are its membership probabilities
// p_1..p_k for the lowest-BIC k.
type MatrixMembershipExtractor struct {
	opts           config.FeatureOptions
	minConsecutive int
	logger         log.Logger
}

// NewMatrixMembershipExtractor creates the extractor for cfg.
func NewMatrixMembershipExtractor(cfg config.Config, logger log.Logger) *MatrixMembershipExtractor {
	if logger == nil {
		logger = log.Nop()
	}
	return &MatrixMembershipExtractor{
		opts:           cfg.FeatureOptions,
		minConsecutive: cfg.FilterOptions.MinConsecutiveFractions,
		logger:         logger.With(log.ComponentKey, "features", log.StrategyKey, StrategyMatrix),
	}
}

// ComponentCandidates returns 1..max(1, fractions-minConsecutive).
func ComponentCandidates(fractions, minConsecutive int) []int {
	return mixture.ComponentRange(fractions - minConsecutive)
}

// MembershipColumns returns p_1..p_k.
func MembershipColumns(k int) []string {
	cols := make([]string, k)
	for i := range cols {
		cols[i] = fmt.Sprintf("p_%d", i+1)
	}
	return cols
}

// Extract fits the replicate. A replicate no candidate can be fitted to
// yields a *errors.ModelFitError.
func (e *MatrixMembershipExtractor) Extract(ctx context.Context, m *dataset.ReplicateMatrix) (*Table, *Report, error) {
	start := time.Now()
	rep := newReport(m.Replicate, StrategyMatrix, m.Rows())
	if m.Rows() == 0 {
		return NewTable(m.Replicate, m.IDColumn, nil), rep, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, rep, err
	}

	X, err := preprocessing.NewRowMaxScaler().FitTransform(m.Dense())
	if err != nil {
		return nil, rep, err
	}

	ks := ComponentCandidates(m.Cols(), e.minConsecutive)
	sel, err := mixture.SelectByBIC(X, ks,
		mixture.WithMaxIter(e.opts.MaxIter),
		mixture.WithTol(e.opts.Tol),
		mixture.WithRegCovar(e.opts.RegCovar),
		mixture.WithRandomState(e.opts.RandomSeed))
	if err != nil {
		return nil, rep, errors.Wrapf(err, "replicate %s", m.Replicate)
	}
	for i, ferr := range sel.Errs {
		if ferr != nil {
			e.logger.Debug("candidate skipped",
				log.ReplicateKey, m.Replicate,
				log.ComponentsKey, ks[i],
				log.ErrAttrKey, ferr)
		}
	}

	proba, err := sel.Model.PredictProba(X)
	if err != nil {
		return nil, rep, err
	}

	table := NewTable(m.Replicate, m.IDColumn, MembershipColumns(sel.K))
	for i, id := range m.IDs {
		if err := table.Append(id, proba.RawRowView(i)); err != nil {
			return nil, rep, err
		}
	}
	rep.Extracted = table.Rows()
	rep.Components[sel.K] = 1
	rep.Duration = time.Since(start)

	e.logger.Info("features extracted",
		log.StageKey, log.StageExtract,
		log.ReplicateKey, m.Replicate,
		log.ComponentsKey, sel.K,
		log.BICKey, sel.BIC[sel.Index],
		log.ProfilesKey, rep.Profiles,
		log.DurationMsKey, rep.Duration.Milliseconds())
	return table, rep, nil
}
