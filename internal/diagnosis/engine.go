package diagnosis

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/524D/rgadiag/internal/gasdata"
	"github.com/524D/rgadiag/internal/metrics"
)

// DefaultMinConfidence is the confidence below which results are dropped
const DefaultMinConfidence = 0.3

// ErrNoPeaks is returned for an empty peak map
var ErrNoPeaks = errors.New("diagnosis: no peaks")

// Detector checks one signature. It returns nil when the signature is
// absent.
type Detector struct {
	Type   Type
	Detect func(Input) (*Result, error)
}

var registry = []Detector{
	{AirLeak, detectAirLeak},
	{WaterOutgassing, detectWaterOutgassing},
	{InsufficientBakeout, detectInsufficientBakeout},
	{HydrogenDominant, detectHydrogenDominant},
	{HydrocarbonContamination, detectHydrocarbons},
	{HeavyHydrocarbons, detectHeavyHydrocarbons},
	{PFPEContamination, detectPFPE},
	{SiliconeContamination, detectSilicone},
	{SolventResidue, detectSolvent},
	{HeliumLeak, detectHeliumLeak},
	{CO2Elevated, detectCO2},
	{CODominant, detectCODominant},
	{ArgonPresent, detectArgon},
	{Ammonia, detectAmmonia},
	{Methane, detectMethane},
	{ChlorineContamination, detectChlorine},
	{H2SPresent, detectH2S},
	{ESDArtifact, detectESD},
	{HighNoiseFloor, detectHighNoiseFloor},
	{LowSignal, detectLowSignal},
}

// quick is the subset run by RunQuickDiagnosis
var quick = []Type{AirLeak, HydrocarbonContamination, PFPEContamination, HeliumLeak}

// Registry returns the full detector list in evaluation order
func Registry() []Detector {
	return append([]Detector(nil), registry...)
}

// QuickRegistry returns the detectors for leaks and oil contamination
func QuickRegistry() []Detector {
	var ds []Detector
	for _, d := range registry {
		for _, t := range quick {
			if d.Type == t {
				ds = append(ds, d)
			}
		}
	}
	return ds
}

// Engine runs detectors against a spectrum
type Engine struct {
	detectors []Detector
	quick     []Detector
	table     *gasdata.Table
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger for detector failures. nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithTable sets the gas table used when an Input carries none
func WithTable(t *gasdata.Table) Option {
	return func(e *Engine) { e.table = t }
}

// WithMetrics counts detector failures
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithDetectors replaces the full registry
func WithDetectors(ds ...Detector) Option {
	return func(e *Engine) { e.detectors = ds }
}

// New returns an Engine with the default registry
func New(opts ...Option) *Engine {
	e := &Engine{
		detectors: Registry(),
		quick:     QuickRegistry(),
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// RunFullDiagnosis runs every detector and returns the results with at
// least minConfidence, most severe first.
func (e *Engine) RunFullDiagnosis(in Input, minConfidence float64) ([]Result, error) {
	return e.run(e.detectors, in, minConfidence)
}

// RunQuickDiagnosis runs only the leak and oil detectors
func (e *Engine) RunQuickDiagnosis(in Input, minConfidence float64) ([]Result, error) {
	return e.run(e.quick, in, minConfidence)
}

func (e *Engine) run(ds []Detector, in Input, minConfidence float64) ([]Result, error) {
	if len(in.Peaks) == 0 {
		return nil, ErrNoPeaks
	}
	if in.Table == nil {
		in.Table = e.table
	}
	results := make([]Result, 0, 4)
	for _, d := range ds {
		r, err := e.detect(d, in)
		if err != nil {
			e.logger.Warn("detector failed, skipping",
				slog.String("detector", string(d.Type)),
				slog.Any("error", err))
			e.metrics.IncDetectorFailure(string(d.Type))
			continue
		}
		if r != nil && r.Confidence >= minConfidence {
			results = append(results, *r)
		}
	}
	Sort(results)
	return results, nil
}

// detect calls one detector, turning a panic into an error
func (e *Engine) detect(d Detector, in Input) (r *Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			r, err = nil, fmt.Errorf("panic in %s detector: %v", d.Type, p)
		}
	}()
	return d.Detect(in)
}

// Sort orders results by severity, then by descending confidence
func Sort(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if ra, rb := a.Severity.rank(), b.Severity.rank(); ra != rb {
			return ra < rb
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.Type < b.Type
	})
}
