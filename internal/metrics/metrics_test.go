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

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	m.ObserveAnalysis("ok", time.Millisecond)
	m.IncDetectorFailure("air_leak")
	m.IncLODMethod("default")
	m.IncCalibrationStrategy("flat-default")
	m.IncSEMWarning("critical")
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestCounters(t *testing.T) {
	m := New()
	m.ObserveAnalysis("ok", 2*time.Millisecond)
	m.ObserveAnalysis("ok", time.Millisecond)
	m.ObserveAnalysis("invalid", time.Millisecond)
	m.IncDetectorFailure("air_leak")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AnalysesTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalysesTotal.WithLabelValues("invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DetectorFailures.WithLabelValues("air_leak")))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.IncLODMethod("primary-reference")
	path := filepath.Join(t.TempDir(), "rgadiag.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `rgadiag_lod_method_total{method="primary-reference"} 1`))
}
