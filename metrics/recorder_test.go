package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounters(t *testing.T) {
	r := NewRecorder()
	r.ObserveProfiles("A", StageInput, 10)
	r.ObserveProfiles("A", StageInput, 5)
	r.ObserveProfiles("A", StageTransformed, 7)
	r.ObserveProfiles("B", StageInput, 0)
	r.ObserveFitFailures("A", 2)
	r.ObserveComponents("A", 3, 4)

	assert.Equal(t, 15.0, testutil.ToFloat64(r.profiles.WithLabelValues("A", StageInput)))
	assert.Equal(t, 7.0, testutil.ToFloat64(r.profiles.WithLabelValues("A", StageTransformed)))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.fitFailures.WithLabelValues("A")))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.components.WithLabelValues("A", "3")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.profiles))
}

func TestRecorderStageDuration(t *testing.T) {
	r := NewRecorder()
	r.ObserveStage("transform", 20*time.Millisecond)
	r.ObserveStage("extract", time.Second)

	assert.Equal(t, 2, testutil.CollectAndCount(r.stageDuration))
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveProfiles("A", StageInput, 1)
		r.ObserveFitFailures("A", 1)
		r.ObserveComponents("A", 1, 1)
		r.ObserveStage("load", time.Second)
	})
	assert.Nil(t, r.Registry())
	assert.Error(t, r.WriteTextfile(filepath.Join(t.TempDir(), "m.prom")))
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.ObserveProfiles("A", StageExtracted, 3)

	path := filepath.Join(t.TempDir(), "run.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `coelurus_profiles_total{replicate="A",stage="extracted"} 3`))
}
