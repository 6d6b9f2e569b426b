// Package metrics records run statistics as Prometheus metrics and writes
// them in the node_exporter textfile format.
package metrics

import (
	"strconv"
	"time"

	"github.com/YuminosukeSato/coelurus/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "coelurus"

// Profile stage label values.
const (
	StageInput       = "input"
	StageTransformed = "transformed"
	StageExtracted   = "extracted"
	StageExcluded    = "excluded"
	StageIntegrated  = "integrated"
)

// Recorder owns a private registry so that several runs in one process do
// not share counters. All methods are safe on a nil *Recorder.
type Recorder struct {
	registry      *prometheus.Registry
	profiles      *prometheus.CounterVec
	fitFailures   *prometheus.CounterVec
	components    *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
}

// NewRecorder creates a Recorder with every collector registered.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		profiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profiles_total",
			Help:      "Profiles seen per replicate and pipeline stage.",
		}, []string{"replicate", "stage"}),
		fitFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fit_failures_total",
			Help:      "Mixture fits that failed and excluded a profile or replicate.",
		}, []string{"replicate"}),
		components: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selected_components_total",
			Help:      "Selected mixture component counts.",
		}, []string{"replicate", "k"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time per pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"stage"}),
	}
	r.registry.MustRegister(r.profiles, r.fitFailures, r.components, r.stageDuration)
	return r
}

// Registry exposes the underlying registry, e.g. for promhttp.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveProfiles adds n profiles at stage for replicate.
func (r *Recorder) ObserveProfiles(replicate, stage string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.profiles.WithLabelValues(replicate, stage).Add(float64(n))
}

// ObserveFitFailures adds n failed fits for replicate.
func (r *Recorder) ObserveFitFailures(replicate string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.fitFailures.WithLabelValues(replicate).Add(float64(n))
}

// ObserveComponents records n selections of k components.
func (r *Recorder) ObserveComponents(replicate string, k, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.components.WithLabelValues(replicate, strconv.Itoa(k)).Add(float64(n))
}

// ObserveStage records the duration of one stage.
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// WriteTextfile writes every metric to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return errors.New("metrics: nil recorder")
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return errors.Wrapf(err, "write metrics %s", path)
	}
	return nil
}
