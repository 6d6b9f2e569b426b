// Command coelurus runs the feature-extraction pipeline described by a YAML
// configuration file and writes the integrated feature table.
//
// Usage:
//
//	coelurus -config config.yaml [-o features.csv] [-xlsx features.xlsx]
//	         [-npy features.npy] [-metrics run.prom] [-plot-dir plots]
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/YuminosukeSato/coelurus"
	"github.com/YuminosukeSato/coelurus/config"
	"github.com/YuminosukeSato/coelurus/dataset"
	"github.com/YuminosukeSato/coelurus/features"
	"github.com/YuminosukeSato/coelurus/metrics"
	"github.com/YuminosukeSato/coelurus/pkg/errors"
	"github.com/YuminosukeSato/coelurus/pkg/log"
	"github.com/YuminosukeSato/coelurus/report"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	configPath string
	inputPath  string
	output     string
	xlsx       string
	npy        string
	metrics    string
	plotDir    string
	plotLimit  int
	rename     bool
	console    bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	flags := flag.NewFlagSet("coelurus", flag.ContinueOnError)
	flags.SetOutput(stderr)

	opts := &options{}
	flags.StringVar(&opts.configPath, "config", "", "configuration `file` (YAML)")
	flags.StringVar(&opts.inputPath, "input", "", "input table; overrides data_sources.input_data_path")
	flags.StringVar(&opts.output, "o", "-", "feature table CSV output `file` (- for stdout)")
	flags.StringVar(&opts.xlsx, "xlsx", "", "also write the feature table as an Excel `file`")
	flags.StringVar(&opts.npy, "npy", "", "also write the feature values as a numpy `file`")
	flags.StringVar(&opts.metrics, "metrics", "", "write Prometheus metrics to this textfile")
	flags.StringVar(&opts.plotDir, "plot-dir", "", "write per-profile mixture plots into this `directory`")
	flags.IntVar(&opts.plotLimit, "plot-limit", 10, "maximum plots per replicate")
	flags.BoolVar(&opts.rename, "rename-columns", false, "rename value columns to the canonical F<i><L> sequence before validation")
	flags.BoolVar(&opts.console, "console", false, "human-readable log output instead of JSON")

	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if opts.configPath == "" {
		flags.Usage()
		return nil, errors.New("-config is required")
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "coelurus: %v\n", err)
		return 2
	}
	if opts.inputPath != "" {
		cfg.DataSources.InputDataPath = opts.inputPath
	}

	level, err := log.ParseLevel(cfg.SystemOptions.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "coelurus: %v\n", err)
		return 2
	}
	if cfg.SystemOptions.Debug {
		level = log.LevelDebug
	}
	logger := log.NewZerologLogger(stderr, level)
	if opts.console {
		logger = log.NewConsoleLogger(stderr, level)
	}
	errors.SetZerologWarnFunc(log.WarnFunc(logger))
	defer errors.SetZerologWarnFunc(nil)

	var rec *metrics.Recorder
	if opts.metrics != "" {
		rec = metrics.NewRecorder()
	}

	p, err := coelurus.New(cfg,
		coelurus.WithLogger(logger),
		coelurus.WithRecorder(rec),
		coelurus.WithEnforcedColumnNames(opts.rename))
	if err != nil {
		logger.Error("invalid configuration", log.ErrAttrKey, err)
		return 2
	}

	res, err := p.Run(ctx, dataset.FileSource{Path: cfg.DataSources.InputDataPath})
	if err != nil {
		logger.Error("run failed", log.ErrAttrKey, err)
		return 1
	}

	if err := writeOutputs(opts, res, stdout); err != nil {
		logger.Error("writing output failed", log.ErrAttrKey, err)
		return 1
	}
	if opts.plotDir != "" && cfg.FeatureOptions.Strategy == features.StrategyMatrix {
		logger.Warn("plots skipped: per-profile plots need the sampled strategy",
			log.StrategyKey, cfg.FeatureOptions.Strategy)
	} else if opts.plotDir != "" {
		if err := writePlots(opts, cfg, res, logger); err != nil {
			logger.Error("plotting failed", log.ErrAttrKey, err)
			return 1
		}
	}
	if rec != nil {
		if err := rec.WriteTextfile(opts.metrics); err != nil {
			logger.Error("writing metrics failed", log.ErrAttrKey, err)
			return 1
		}
	}
	return 0
}

func writeOutputs(opts *options, res *coelurus.Result, stdout io.Writer) error {
	if opts.output == "-" {
		if err := report.WriteCSV(stdout, res.Features); err != nil {
			return err
		}
	} else if err := writeFile(opts.output, res.Features, report.WriteCSV); err != nil {
		return err
	}

	if opts.npy != "" {
		if err := writeFile(opts.npy, res.Features, report.WriteNumpy); err != nil {
			return err
		}
	}
	if opts.xlsx != "" {
		return report.WriteXLSX(opts.xlsx, res.Features)
	}
	return nil
}

func writeFile(path string, t *features.Table, write func(io.Writer, *features.Table) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := write(f, t); err != nil {
		f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}

// writePlots refits the first plot-limit profiles of every replicate and
// plots them. Only called under the sampled strategy; the refit uses the
// same seeds as the run, so the plotted model is the one behind the features.
func writePlots(opts *options, cfg config.Config, res *coelurus.Result, logger log.Logger) error {
	if err := os.MkdirAll(opts.plotDir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", opts.plotDir)
	}
	ex := features.NewSampledProfileExtractor(cfg, logger)
	for _, m := range res.Replicates {
		offset := features.LeadingMissingColumns(m)
		if offset == m.Cols() {
			continue
		}
		for i := 0; i < m.Rows() && i < opts.plotLimit; i++ {
			fit, err := ex.FitProfile(m.Data[i][offset:], offset, i)
			if err != nil {
				logger.Warn("profile not plotted",
					log.ReplicateKey, m.Replicate,
					"profile", m.IDs[i],
					log.ErrAttrKey, err)
				continue
			}
			name := filepath.Join(opts.plotDir, fmt.Sprintf("%s_%s.png", m.Replicate, sanitize(m.IDs[i])))
			if err := report.PlotProfile(name, m.IDs[i], fit); err != nil {
				return err
			}
		}
	}
	return nil
}

func sanitize(id string) string {
	out := []rune(id)
	for i, r := range out {
		if r == '/' || r == '\\' || r == ':' || r == ' ' {
			out[i] = '_'
		}
	}
	return string(out)
}
