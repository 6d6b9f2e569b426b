package features

import (
	"context"
	"time"

	"github.com/YuminosukeSato/coelurus/config"
	"github.com/YuminosukeSato/coelurus/dataset"
	"github.com/YuminosukeSato/coelurus/pkg/errors"
	"github.com/YuminosukeSato/coelurus/pkg/log"
)

// Strategy names accepted in feature_options.strategy.
const (
	StrategySampled = "sampled"
	StrategyMatrix  = "matrix"
)

// Extractor fits mixture models to one replicate and reports the features.
//
// A fit failure of a single profile (sampled strategy) excludes that profile
// and is listed in the Report. A fit failure of the whole replicate (matrix
// strategy) is returned as a *errors.ModelFitError.
type Extractor interface {
	Extract(ctx context.Context, m *dataset.ReplicateMatrix) (*Table, *Report, error)
}

// Exclusion records a profile dropped during extraction.
type Exclusion struct {
	ID  string
	Err error
}

// Report summarises one replicate's extraction.
type Report struct {
	Replicate string
	Strategy  string
	Profiles  int
	Extracted int
	Excluded  []Exclusion
	// Components counts profiles (or the replicate, for the matrix strategy)
	// per selected component count.
	Components map[int]int
	Duration   time.Duration
}

func newReport(replicate, strategy string, profiles int) *Report {
	return &Report{
		Replicate:  replicate,
		Strategy:   strategy,
		Profiles:   profiles,
		Components: make(map[int]int),
	}
}

// NewExtractor returns the extractor selected by cfg.FeatureOptions.Strategy.
func NewExtractor(cfg config.Config, logger log.Logger) (Extractor, error) {
	if logger == nil {
		logger = log.Nop()
	}
	switch cfg.FeatureOptions.Strategy {
	case StrategySampled, "":
		return NewSampledProfileExtractor(cfg, logger), nil
	case StrategyMatrix:
		return NewMatrixMembershipExtractor(cfg, logger), nil
	default:
		return nil, errors.NewConfigError("feature_options", "strategy",
			"unknown strategy "+cfg.FeatureOptions.Strategy)
	}
}
