// Package metrics provides Prometheus instrumentation for the analysis
// pipeline. All methods are safe to call on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for RGA analyses.
type Metrics struct {
	// Registry holds only the metrics below, so a CLI run can dump them
	// without the Go runtime collectors.
	Registry *prometheus.Registry

	// Analyses by outcome: "ok", "invalid", "error"
	AnalysesTotal *prometheus.CounterVec

	// End to end duration of one analysis
	AnalysisDuration prometheus.Histogram

	// Detectors that returned an error or panicked
	DetectorFailures *prometheus.CounterVec

	// Winning LOD strategy
	LODMethod *prometheus.CounterVec

	// Winning sensitivity strategy
	CalibrationStrategy *prometheus.CounterVec

	// SEM aging warnings by severity
	SEMWarnings *prometheus.CounterVec
}

// New creates a Metrics instance on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		AnalysesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rgadiag_analyses_total",
			Help: "Total spectrum analyses by outcome",
		}, []string{"outcome"}),

		AnalysisDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rgadiag_analysis_duration_seconds",
			Help:    "Duration of a full spectrum analysis",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		DetectorFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rgadiag_detector_failures_total",
			Help: "Diagnostic detectors that failed and were skipped",
		}, []string{"detector"}),

		LODMethod: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rgadiag_lod_method_total",
			Help: "Limit of detection estimates by strategy",
		}, []string{"method"}),

		CalibrationStrategy: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rgadiag_calibration_strategy_total",
			Help: "Calibrations by sensitivity strategy",
		}, []string{"strategy"}),

		SEMWarnings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rgadiag_sem_aging_warnings_total",
			Help: "SEM aging warnings by severity",
		}, []string{"severity"}),
	}
}

// ObserveAnalysis records the outcome and duration of one analysis.
func (m *Metrics) ObserveAnalysis(outcome string, d time.Duration) {
	if m != nil {
		m.AnalysesTotal.WithLabelValues(outcome).Inc()
		m.AnalysisDuration.Observe(d.Seconds())
	}
}

// IncDetectorFailure counts a failed detector.
func (m *Metrics) IncDetectorFailure(detector string) {
	if m != nil {
		m.DetectorFailures.WithLabelValues(detector).Inc()
	}
}

// IncLODMethod counts the LOD strategy that was used.
func (m *Metrics) IncLODMethod(method string) {
	if m != nil {
		m.LODMethod.WithLabelValues(method).Inc()
	}
}

// IncCalibrationStrategy counts the sensitivity strategy that was used.
func (m *Metrics) IncCalibrationStrategy(strategy string) {
	if m != nil {
		m.CalibrationStrategy.WithLabelValues(strategy).Inc()
	}
}

// IncSEMWarning counts an SEM aging warning.
func (m *Metrics) IncSEMWarning(severity string) {
	if m != nil {
		m.SEMWarnings.WithLabelValues(severity).Inc()
	}
}

// WriteTextfile writes the registry in the node exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}
