package coelurus

import (
	"context"
	"fmt"
	"time"

	"github.com/YuminosukeSato/coelurus/config"
	"github.com/YuminosukeSato/coelurus/core/parallel"
	"github.com/YuminosukeSato/coelurus/dataset"
	"github.com/YuminosukeSato/coelurus/features"
	"github.com/YuminosukeSato/coelurus/metrics"
	"github.com/YuminosukeSato/coelurus/pkg/errors"
	"github.com/YuminosukeSato/coelurus/pkg/log"
	"github.com/YuminosukeSato/coelurus/preprocessing"
	"github.com/YuminosukeSato/coelurus/validation"
	"github.com/google/uuid"
)

// Pipeline runs validation, transformation, extraction and integration for
// one configuration. A Pipeline may be run several times; each run gets its
// own run ID.
type Pipeline struct {
	cfg          config.Config
	logger       log.Logger
	recorder     *metrics.Recorder
	enforceNames bool

	validator   *validation.Validator
	transformer *preprocessing.Transformer
	extractor   features.Extractor
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the run logger. The default discards output.
func WithLogger(logger log.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRecorder records run metrics into r.
func WithRecorder(r *metrics.Recorder) Option {
	return func(p *Pipeline) {
		p.recorder = r
	}
}

// WithEnforcedColumnNames renames the value columns to the canonical
// sequence before validation, so only the column count has to match.
func WithEnforcedColumnNames(enforce bool) Option {
	return func(p *Pipeline) {
		p.enforceNames = enforce
	}
}

// WithExtractor replaces the extractor selected by feature_options.strategy.
func WithExtractor(e features.Extractor) Option {
	return func(p *Pipeline) {
		p.extractor = e
	}
}

// New creates a Pipeline. cfg is validated again so that hand-built
// configurations get the same checks as loaded ones.
func New(cfg config.Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{cfg: cfg, logger: log.Nop()}
	for _, opt := range opts {
		opt(p)
	}

	p.validator = validation.NewValidator(cfg, p.logger)
	p.transformer = preprocessing.NewTransformer(cfg, p.logger)
	if p.extractor == nil {
		ex, err := features.NewExtractor(cfg, p.logger)
		if err != nil {
			return nil, err
		}
		p.extractor = ex
	}
	return p, nil
}

// Failure records a replicate dropped from the run.
type Failure struct {
	Replicate string
	Stage     string
	Err       error
}

func (f Failure) Error() string {
	return fmt.Sprintf("replicate %s failed at %s: %v", f.Replicate, f.Stage, f.Err)
}

// Result is everything a run produced.
type Result struct {
	RunID string
	// Features is the integrated table over every replicate that survived.
	Features *features.Table
	// Replicates are the transformed matrices, in replicate order.
	Replicates []*dataset.ReplicateMatrix
	// Tables are the per-replicate feature tables before integration.
	Tables     []*features.Table
	Transform  []preprocessing.Summary
	Extraction []*features.Report
	Failures   []Failure
	// Dropped counts profiles lost by the inner join across replicates.
	Dropped int
}

type extracted struct {
	table  *features.Table
	report *features.Report
}

// Run executes the pipeline on the dataset from src.
//
// Load errors and schema failures end the run. A replicate that fails
// transformation or extraction is listed in Result.Failures and left out of
// the integration; the run fails only when no replicate survives or ctx is
// cancelled.
func (p *Pipeline) Run(ctx context.Context, src dataset.DataSource) (*Result, error) {
	runID := uuid.NewString()
	logger := p.logger.With(log.RunIDKey, runID)
	workers := parallel.Workers(p.cfg.SystemOptions.NumThreads)
	res := &Result{RunID: runID}

	logger.Info("run started",
		log.FractionsKey, p.cfg.DataSources.NumberOfFractions,
		log.ReplicatesKey, p.cfg.DataSources.NumberOfReplicates,
		log.StrategyKey, p.cfg.FeatureOptions.Strategy,
		log.WorkersKey, workers)

	// Load and validate.
	start := time.Now()
	d, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load dataset")
	}
	p.recorder.ObserveStage(log.StageLoad, time.Since(start))

	start = time.Now()
	if p.enforceNames {
		if d, err = p.validator.EnforceColumnNames(d); err != nil {
			return nil, err
		}
	}
	if v := p.validator.Validate(d); !v.OK {
		return nil, v.Err
	}
	p.recorder.ObserveStage(log.StageValidate, time.Since(start))

	// Partition and transform.
	replicates := dataset.Partition(d)
	for _, m := range replicates {
		p.recorder.ObserveProfiles(m.Replicate, metrics.StageInput, m.Rows())
	}

	start = time.Now()
	transformed := parallel.Map(ctx, replicates, workers, "transform",
		func(_ context.Context, _ int, m *dataset.ReplicateMatrix) (*transformResult, error) {
			out, sum, err := p.transformer.Apply(m)
			if err != nil {
				return nil, err
			}
			return &transformResult{matrix: out, summary: sum}, nil
		})
	p.recorder.ObserveStage(log.StageTransform, time.Since(start))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var surviving []*dataset.ReplicateMatrix
	for i, r := range transformed {
		if r.Err != nil {
			res.Failures = append(res.Failures, p.fail(logger, replicates[i].Replicate, log.StageTransform, r.Err))
			continue
		}
		res.Transform = append(res.Transform, r.Value.summary)
		surviving = append(surviving, r.Value.matrix)
		p.recorder.ObserveProfiles(r.Value.matrix.Replicate, metrics.StageTransformed, r.Value.matrix.Rows())
	}
	res.Replicates = surviving

	// Extract. Every transformation has finished before the first fit starts.
	start = time.Now()
	results := parallel.Map(ctx, surviving, workers, "extract",
		func(ctx context.Context, _ int, m *dataset.ReplicateMatrix) (extracted, error) {
			table, rep, err := p.extractor.Extract(ctx, m)
			return extracted{table: table, report: rep}, err
		})
	p.recorder.ObserveStage(log.StageExtract, time.Since(start))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, r := range results {
		letter := surviving[i].Replicate
		if r.Err != nil {
			p.recorder.ObserveFitFailures(letter, 1)
			res.Failures = append(res.Failures, p.fail(logger, letter, log.StageExtract, r.Err))
			continue
		}
		rep := r.Value.report
		res.Tables = append(res.Tables, r.Value.table)
		res.Extraction = append(res.Extraction, rep)

		p.recorder.ObserveProfiles(letter, metrics.StageExtracted, rep.Extracted)
		p.recorder.ObserveProfiles(letter, metrics.StageExcluded, len(rep.Excluded))
		p.recorder.ObserveFitFailures(letter, len(rep.Excluded))
		for k, n := range rep.Components {
			p.recorder.ObserveComponents(letter, k, n)
		}
	}

	// Integrate.
	if len(res.Tables) == 0 {
		return res, errors.Wrapf(errors.ErrEmptyData, "no replicate survived (%d failures)", len(res.Failures))
	}
	start = time.Now()
	integ, err := features.Integrate(res.Tables)
	if err != nil {
		return res, err
	}
	p.recorder.ObserveStage(log.StageIntegrate, time.Since(start))
	p.recorder.ObserveProfiles("all", metrics.StageIntegrated, integ.Table.Rows())

	res.Features = integ.Table
	res.Dropped = integ.Dropped

	logger.Info("run finished",
		log.StageKey, log.StageIntegrate,
		log.ProfilesKeptKey, res.Features.Rows(),
		log.ProfilesDroppedKey, res.Dropped,
		"replicates.failed", len(res.Failures))
	return res, nil
}

type transformResult struct {
	matrix  *dataset.ReplicateMatrix
	summary preprocessing.Summary
}

func (p *Pipeline) fail(logger log.Logger, replicate, stage string, err error) Failure {
	logger.Error("replicate excluded",
		log.ReplicateKey, replicate,
		log.StageKey, stage,
		log.ErrorTypeKey, fmt.Sprintf("%T", errors.Cause(err)),
		log.ErrAttrKey, err)
	return Failure{Replicate: replicate, Stage: stage, Err: err}
}
