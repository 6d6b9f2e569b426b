package features

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/YuminosukeSato/coelurus/config"
	"github.com/YuminosukeSato/coelurus/core/parallel"
	"github.com/YuminosukeSato/coelurus/dataset"
	"github.com/YuminosukeSato/coelurus/pkg/errors"
	"github.com/YuminosukeSato/coelurus/pkg/log"
	"github.com/YuminosukeSato/coelurus/sklearn/mixture"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
	"golang.org/x/sync/semaphore"
)

// Replicates with at most this many profiles are fitted on the calling
// goroutine.
const minParallelProfiles = 8

// SampledProfileExtractor summarises every profile independently. The
// profile is read as unnormalised weights over fraction positions, sampled
// into a 1-D point cloud and fitted with Gaussian mixtures of 1..K
// components; the lowest-BIC model supplies the features.
//
// At most num_threads profiles are fitted at once across every replicate
// sharing the extractor.
type SampledProfileExtractor struct {
	opts    config.FeatureOptions
	workers int
	slots   *semaphore.Weighted
	logger  log.Logger

	fit func(values []float64, offset, row int) (*ProfileFit, error)
}

// NewSampledProfileExtractor creates the extractor for cfg.
func NewSampledProfileExtractor(cfg config.Config, logger log.Logger) *SampledProfileExtractor {
	if logger == nil {
		logger = log.Nop()
	}
	workers := parallel.Workers(cfg.SystemOptions.NumThreads)
	e := &SampledProfileExtractor{
		opts:    cfg.FeatureOptions,
		workers: workers,
		slots:   semaphore.NewWeighted(int64(workers)),
		logger:  logger.With(log.ComponentKey, "features", log.StrategyKey, StrategySampled),
	}
	e.fit = e.FitProfile
	return e
}

// SampledColumns returns n_components followed by mean_i, sd_i, weight_i for
// i = 1..maxComponents.
func SampledColumns(maxComponents int) []string {
	cols := []string{"n_components"}
	for i := 1; i <= maxComponents; i++ {
		cols = append(cols,
			fmt.Sprintf("mean_%d", i),
			fmt.Sprintf("sd_%d", i),
			fmt.Sprintf("weight_%d", i))
	}
	return cols
}

// ProfileFit is the selected model of one profile.
type ProfileFit struct {
	// Samples are the dequantised fraction positions the model was fitted to.
	Samples []float64
	// Means, SDs and Weights are sorted by ascending mean.
	Means   []float64
	SDs     []float64
	Weights []float64
	BIC     []float64
}

// K returns the selected component count.
func (f *ProfileFit) K() int { return len(f.Means) }

// Row renders the fit as a feature row for SampledColumns(maxComponents).
func (f *ProfileFit) Row(maxComponents int) []float64 {
	row := make([]float64, 1+3*maxComponents)
	row[0] = float64(f.K())
	for i := 0; i < maxComponents; i++ {
		mean, sd, w := math.NaN(), math.NaN(), math.NaN()
		if i < f.K() {
			mean, sd, w = f.Means[i], f.SDs[i], f.Weights[i]
		}
		row[1+3*i], row[2+3*i], row[3+3*i] = mean, sd, w
	}
	return row
}

// Extract fits every profile of m. Profiles are fitted concurrently; each one
// draws from its own generator seeded by random_seed and its row index, so the
// output does not depend on scheduling.
func (e *SampledProfileExtractor) Extract(ctx context.Context, m *dataset.ReplicateMatrix) (*Table, *Report, error) {
	start := time.Now()
	rep := newReport(m.Replicate, StrategySampled, m.Rows())
	table := NewTable(m.Replicate, m.IDColumn, SampledColumns(e.opts.MaxComponents))
	if m.Rows() == 0 {
		return table, rep, nil
	}

	offset := LeadingMissingColumns(m)
	if offset == m.Cols() {
		return nil, rep, errors.NewValueError("SampledProfileExtractor.Extract",
			"replicate "+m.Replicate+" has no defined fraction columns")
	}

	fits := make([]*ProfileFit, m.Rows())
	errs := make([]error, m.Rows())
	var cancelled sync.Once
	var ctxErr error

	parallel.ParallelizeWithThreshold(m.Rows(), minParallelProfiles, e.workers, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			if err := e.slots.Acquire(ctx, 1); err != nil {
				cancelled.Do(func() { ctxErr = err })
				return
			}
			if err := ctx.Err(); err != nil {
				e.slots.Release(1)
				cancelled.Do(func() { ctxErr = err })
				return
			}
			fits[i], errs[i] = errors.SafeCall(fmt.Sprintf("fit profile %s", m.IDs[i]), func() (*ProfileFit, error) {
				return e.fit(m.Data[i][offset:], offset, i)
			})
			e.slots.Release(1)
		}
	})
	if ctxErr != nil {
		return nil, rep, ctxErr
	}

	for i, fit := range fits {
		if errs[i] != nil {
			rep.Excluded = append(rep.Excluded, Exclusion{ID: m.IDs[i], Err: errs[i]})
			e.logger.Warn("profile excluded",
				log.ReplicateKey, m.Replicate,
				"profile", m.IDs[i],
				log.ErrAttrKey, errs[i])
			continue
		}
		if err := table.Append(m.IDs[i], fit.Row(e.opts.MaxComponents)); err != nil {
			return nil, rep, err
		}
		rep.Components[fit.K()]++
	}
	rep.Extracted = table.Rows()
	rep.Duration = time.Since(start)

	e.logger.Info("features extracted",
		log.StageKey, log.StageExtract,
		log.ReplicateKey, m.Replicate,
		log.ProfilesKey, rep.Profiles,
		log.ProfilesKeptKey, rep.Extracted,
		log.ProfilesDroppedKey, len(rep.Excluded),
		log.DurationMsKey, rep.Duration.Milliseconds())
	return table, rep, nil
}

// FitProfile fits one profile. values start at fraction offset+1; row seeds
// the generator.
func (e *SampledProfileExtractor) FitProfile(values []float64, offset, row int) (*ProfileFit, error) {
	src := rand.NewPCG(uint64(e.opts.RandomSeed), uint64(row))

	samples, err := e.sample(values, offset, src)
	if err != nil {
		return nil, err
	}

	X := mat.NewDense(len(samples), 1, samples)
	sel, err := mixture.SelectByBIC(X, mixture.ComponentRange(e.opts.MaxComponents),
		mixture.WithMaxIter(e.opts.MaxIter),
		mixture.WithTol(e.opts.Tol),
		mixture.WithRegCovar(e.opts.RegCovar),
		mixture.WithRandomState(e.opts.RandomSeed+int64(row)))
	if err != nil {
		return nil, err
	}

	means, covs, weights := sel.Model.Means(), sel.Model.Covariances(), sel.Model.Weights()
	order := make([]int, sel.K)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return means[order[a]][0] < means[order[b]][0] })

	fit := &ProfileFit{Samples: samples, BIC: sel.BIC}
	for _, c := range order {
		fit.Means = append(fit.Means, means[c][0])
		fit.SDs = append(fit.SDs, math.Sqrt(covs[c][0]))
		fit.Weights = append(fit.Weights, weights[c])
	}
	return fit, nil
}

// sample jitters missing weights, normalises them to a categorical
// distribution over fraction positions offset+1.. and draws n_samples
// dequantised positions.
func (e *SampledProfileExtractor) sample(values []float64, offset int, src rand.Source) ([]float64, error) {
	if len(values) == 0 {
		return nil, errors.NewModelFitError("SampledProfileExtractor.sample", "profile has no fractions", 1, 0)
	}

	jitter := distuv.Normal{Mu: e.opts.JitterMean, Sigma: e.opts.JitterStd, Src: src}
	weights := make([]float64, len(values))
	for j, v := range values {
		if v == 0 || math.IsNaN(v) {
			v = math.Abs(jitter.Rand())
		}
		if v < 0 || math.IsInf(v, 0) {
			return nil, errors.NewModelFitError("SampledProfileExtractor.sample",
				fmt.Sprintf("invalid weight %g at fraction %d", v, offset+j+1), 1, len(values))
		}
		weights[j] = v
	}
	if err := errors.CheckFinite("SampledProfileExtractor.sample", weights, 1, len(values)); err != nil {
		return nil, err
	}
	if floats.Sum(weights) <= 0 {
		return nil, errors.NewModelFitError("SampledProfileExtractor.sample", "profile has zero total weight", 1, len(values))
	}

	cat := distuv.NewCategorical(weights, src)
	noise := distuv.Normal{Mu: e.opts.DequantizeMean, Sigma: e.opts.DequantizeStd, Src: src}
	samples := make([]float64, e.opts.NSamples)
	for i := range samples {
		samples[i] = cat.Rand() + float64(offset+1) + noise.Rand()
	}
	return samples, nil
}

// LeadingMissingColumns counts the leading columns that are NaN in every
// row, as left by trailing-window smoothing.
func LeadingMissingColumns(m *dataset.ReplicateMatrix) int {
	for j := 0; j < m.Cols(); j++ {
		for _, row := range m.Data {
			if !math.IsNaN(row[j]) {
				return j
			}
		}
	}
	return m.Cols()
}
