// Package config resolves the typed run options consumed by the pipeline.
//
// Options are read from a YAML file whose sections mirror the experiment
// layout (data_sources, filter_options, feature_options, system_options),
// then overridden from COELURUS_* environment variables and validated. The
// resulting Config is a plain value: components receive it at construction
// and never modify it.
package config

import (
	"os"
	"reflect"
	"strings"

	"github.com/YuminosukeSato/coelurus/pkg/errors"
	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix is the environment variable prefix for overrides,
// e.g. COELURUS_SYSTEM_OPTIONS_NUM_THREADS=8.
const EnvPrefix = "COELURUS"

// Config represents the complete run configuration.
type Config struct {
	DataSources    DataSources    `yaml:"data_sources" envconfig:"DATA_SOURCES"`
	FilterOptions  FilterOptions  `yaml:"filter_options" envconfig:"FILTER_OPTIONS"`
	FeatureOptions FeatureOptions `yaml:"feature_options" envconfig:"FEATURE_OPTIONS"`
	SystemOptions  SystemOptions  `yaml:"system_options" envconfig:"SYSTEM_OPTIONS"`
}

// DataSources describes where the profiles come from and the experimental design.
type DataSources struct {
	DataSource         string `yaml:"data_source" envconfig:"DATA_SOURCE" validate:"required,oneof=local"`
	InputDataPath      string `yaml:"input_data_path" envconfig:"INPUT_DATA_PATH"`
	InputDataProteinID string `yaml:"input_data_protein_id" envconfig:"INPUT_DATA_PROTEIN_ID" validate:"required"`
	NumberOfFractions  int    `yaml:"number_of_fractions" envconfig:"NUMBER_OF_FRACTIONS" validate:"required,min=3"`
	NumberOfReplicates int    `yaml:"number_of_replicates" envconfig:"NUMBER_OF_REPLICATES" validate:"required,min=1,max=26"`
}

// FilterOptions controls the per-replicate transformation pipeline.
type FilterOptions struct {
	MinRows                 int     `yaml:"min_rows" envconfig:"MIN_ROWS" validate:"min=0"`
	MinConsecutiveFractions int     `yaml:"min_consecutive_fractions" envconfig:"MIN_CONSECUTIVE_FRACTIONS" validate:"min=1"`
	MinSignalToNoise        float64 `yaml:"min_signal_to_noise" envconfig:"MIN_SIGNAL_TO_NOISE" validate:"min=0"`
	SignalToNoisePolicy     string  `yaml:"signal_to_noise_policy" envconfig:"SIGNAL_TO_NOISE_POLICY" validate:"oneof=suppress drop_row"`
	EnableSmoothing         bool    `yaml:"enable_smoothing" envconfig:"ENABLE_SMOOTHING"`
	SmoothWindowSize        int     `yaml:"smooth_window_size" envconfig:"SMOOTH_WINDOW_SIZE" validate:"min=2"`
	SmoothingMethod         string  `yaml:"smoothing_method" envconfig:"SMOOTHING_METHOD" validate:"oneof=median mean"`
	RemoveNLastFracs        int     `yaml:"remove_n_last_fracs" envconfig:"REMOVE_N_LAST_FRACS" validate:"min=0"`
}

// FeatureOptions controls mixture-model feature extraction.
type FeatureOptions struct {
	Strategy       string  `yaml:"strategy" envconfig:"STRATEGY" validate:"oneof=sampled matrix"`
	MaxComponents  int     `yaml:"max_components" envconfig:"MAX_COMPONENTS" validate:"min=1"`
	NSamples       int     `yaml:"n_samples" envconfig:"N_SAMPLES" validate:"min=10"`
	RandomSeed     int64   `yaml:"random_seed" envconfig:"RANDOM_SEED"`
	MaxIter        int     `yaml:"max_iter" envconfig:"MAX_ITER" validate:"min=1"`
	Tol            float64 `yaml:"tol" envconfig:"TOL" validate:"gt=0"`
	RegCovar       float64 `yaml:"reg_covar" envconfig:"REG_COVAR" validate:"min=0"`
	JitterMean     float64 `yaml:"zero_jitter_mean" envconfig:"ZERO_JITTER_MEAN" validate:"min=0"`
	JitterStd      float64 `yaml:"zero_jitter_std" envconfig:"ZERO_JITTER_STD" validate:"min=0"`
	DequantizeMean float64 `yaml:"dequantize_mean" envconfig:"DEQUANTIZE_MEAN"`
	DequantizeStd  float64 `yaml:"dequantize_std" envconfig:"DEQUANTIZE_STD" validate:"min=0"`
}

// SystemOptions controls execution.
type SystemOptions struct {
	NumThreads int    `yaml:"num_threads" envconfig:"NUM_THREADS" validate:"min=0"`
	Debug      bool   `yaml:"debug" envconfig:"DEBUG"`
	LogLevel   string `yaml:"log_level" envconfig:"LOG_LEVEL" validate:"oneof=debug info warn error"`
}

// Default returns the configuration used for every option the file leaves
// unset. The experimental design (fractions, replicates, identifier) has no
// default.
func Default() Config {
	return Config{
		DataSources: DataSources{
			DataSource: "local",
		},
		FilterOptions: FilterOptions{
			MinRows:                 10,
			MinConsecutiveFractions: 3,
			SignalToNoisePolicy:     "suppress",
			SmoothWindowSize:        3,
			SmoothingMethod:         "median",
		},
		FeatureOptions: FeatureOptions{
			Strategy:       "sampled",
			MaxComponents:  5,
			NSamples:       10000,
			RandomSeed:     42,
			MaxIter:        100,
			Tol:            1e-3,
			RegCovar:       1e-6,
			JitterMean:     0.01,
			JitterStd:      0.001,
			DequantizeMean: 0,
			DequantizeStd:  0.5,
		},
		SystemOptions: SystemOptions{
			LogLevel: "info",
		},
	}
}

// requiredSections must appear in the YAML file.
var requiredSections = []string{"data_sources", "filter_options", "system_options"}

// Load reads path, applies environment overrides and validates the result.
// Missing sections or keys yield a *errors.ConfigError.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}
	return Parse(data)
}

// Parse is Load for an in-memory YAML document.
func Parse(data []byte) (Config, error) {
	var sections map[string]interface{}
	if err := yaml.Unmarshal(data, &sections); err != nil {
		return Config{}, errors.NewConfigError("", "", "invalid YAML: "+err.Error())
	}
	for _, s := range requiredSections {
		if _, ok := sections[s]; !ok {
			return Config{}, errors.NewConfigError(s, "", "section missing")
		}
	}

	cfg := Default()
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return Config{}, errors.NewConfigError("", "", err.Error())
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, errors.NewConfigError("", "", "environment override: "+err.Error())
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report YAML key names in errors.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks option ranges and the cross-field constraints between them.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			ns := strings.Split(fe.Namespace(), ".")
			section := ""
			if len(ns) > 2 {
				section = ns[1]
			}
			reason := "failed '" + fe.Tag() + "' constraint"
			if fe.Tag() == "required" {
				reason = "required key missing"
			}
			return errors.NewConfigError(section, fe.Field(), reason)
		}
		return errors.NewConfigError("", "", err.Error())
	}

	if c.FilterOptions.MinConsecutiveFractions > c.DataSources.NumberOfFractions {
		return errors.NewConfigError("filter_options", "min_consecutive_fractions",
			"must not exceed number_of_fractions")
	}
	if c.FilterOptions.RemoveNLastFracs >= c.DataSources.NumberOfFractions {
		return errors.NewConfigError("filter_options", "remove_n_last_fracs",
			"must be smaller than number_of_fractions")
	}
	return nil
}

// Fractions returns the fraction count left after trailing-fraction truncation.
func (c Config) Fractions() int {
	return c.DataSources.NumberOfFractions - c.FilterOptions.RemoveNLastFracs
}
