// Package coelurus extracts elution-peak features from co-fractionation
// profile data.
//
// A run validates a profile table against the declared experimental design
// (fractions x replicates), splits it into one matrix per replicate, cleans
// each replicate with a deterministic sliding-window pipeline and summarises
// every profile with Gaussian mixture models whose component count is chosen
// by BIC. The per-replicate feature tables are then joined on the profile
// identifier.
//
// # Quick Start
//
//	cfg, err := config.Load("config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	p, err := coelurus.New(cfg, coelurus.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := p.Run(ctx, dataset.FileSource{Path: cfg.DataSources.InputDataPath})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	report.WriteCSV(os.Stdout, res.Features)
//
// # Packages
//
//   - config: YAML configuration with environment overrides
//   - dataset: profile tables, replicate matrices and file sources
//   - validation: schema checks gating all processing
//   - preprocessing: the per-replicate transformation pipeline
//   - features: mixture-model feature extraction and integration
//   - sklearn/mixture: diagonal Gaussian mixtures fitted by EM
//   - sklearn/cluster: k-means used to initialise mixtures
//   - core/parallel: bounded worker pool with per-item failure isolation
//   - metrics: Prometheus run metrics
//   - report: CSV, XLSX, .npy and plot output
//
// # Determinism
//
// Given the same input and random_seed a run produces identical features
// regardless of num_threads: every profile draws from its own generator
// seeded by random_seed and its row index.
package coelurus
