// Package analysis runs the complete evaluation of one RGA spectrum:
// calibration, pressure conversion, detection limit, diagnosis, data
// quality and limit checks.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/524D/rgadiag/internal/calibration"
	"github.com/524D/rgadiag/internal/diagnosis"
	"github.com/524D/rgadiag/internal/gasdata"
	"github.com/524D/rgadiag/internal/lod"
	"github.com/524D/rgadiag/internal/metadata"
	"github.com/524D/rgadiag/internal/metrics"
	"github.com/524D/rgadiag/internal/pressure"
	"github.com/524D/rgadiag/internal/quality"
	"github.com/524D/rgadiag/internal/semtracker"
	"github.com/524D/rgadiag/internal/spectrum"
	"github.com/524D/rgadiag/internal/stats"
	"github.com/524D/rgadiag/internal/sysstate"
)

var tracer = otel.Tracer("rgadiag/analysis")

// Outcome labels of the analyses counter
const (
	OutcomeOK      = "ok"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

// Limit is a maximum allowed partial pressure of one gas
type Limit struct {
	Gas            gasdata.GasKey `json:"gas" yaml:"gas" validate:"required"`
	Limit          float64        `json:"limit" yaml:"limit" validate:"gt=0"`                            // mbar
	RelUncertainty float64        `json:"relUncertainty" yaml:"relUncertainty" validate:"gt=0,lte=1"` // of the measured pressure
}

// LimitCheck is the outcome of one Limit
type LimitCheck struct {
	Gas gasdata.GasKey `json:"gas"`
	stats.LimitComparison
}

// Request describes one analysis. Identifier is usually the file name;
// its metadata drives the calibration.
type Request struct {
	Identifier    string
	Spectrum      spectrum.Spectrum
	Level         calibration.Level
	Device        *calibration.DeviceCalibration
	Unit          pressure.Unit
	MinConfidence float64
	Quick         bool // run only the leak and oil detectors
}

// Summary condenses a report
type Summary struct {
	State         metadata.SystemState   `json:"systemState"`
	DominantGas   gasdata.GasKey         `json:"dominantGas,omitempty"`
	TopDiagnosis  diagnosis.Type         `json:"topDiagnosis,omitempty"`
	Grade         string                 `json:"grade"`
	Reliability   quality.Reliability    `json:"diagnosisReliability"`
	TotalPressure *float64               `json:"totalPressure,omitempty"` // mbar
	Critical      int                    `json:"criticalIssues"`
	LimitsFailed  []gasdata.GasKey       `json:"limitsFailed,omitempty"`
	SEMSeverity   semtracker.Severity    `json:"semSeverity,omitempty"`
	Level         calibration.Level      `json:"level"`
	Strategy      string                 `json:"sensitivityStrategy"`
	Confidence    calibration.Confidence `json:"sensitivityConfidence"`
}

// Report is the result of one analysis
type Report struct {
	ID               string                        `json:"id"`
	Identifier       string                        `json:"identifier"`
	CreatedAt        time.Time                     `json:"createdAt"`
	Calibration      *calibration.Result           `json:"calibration"`
	Points           []pressure.DataPoint          `json:"points"`
	PartialPressures []pressure.GasPartialPressure `json:"partialPressures"`
	LOD              lod.Result                    `json:"lod"`
	Diagnoses        []diagnosis.Result            `json:"diagnoses"`
	Quality          quality.Score                 `json:"quality"`
	SEM              *semtracker.Warning           `json:"sem,omitempty"`
	Limits           []LimitCheck                  `json:"limits,omitempty"`
	Summary          Summary                       `json:"summary"`
}

// Analyzer wires the analysis stages. It is safe for concurrent use; the
// SEM tracker is the only shared mutable state.
type Analyzer struct {
	table   *gasdata.Table
	calib   *calibration.Service
	engine  *diagnosis.Engine
	scorer  *quality.Scorer
	tracker *semtracker.Tracker
	limits  []Limit
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures an Analyzer
type Option func(*Analyzer)

// WithTable sets the gas reference table
func WithTable(t *gasdata.Table) Option {
	return func(a *Analyzer) { a.table = t }
}

// WithTracker enables SEM history recording and aging checks
func WithTracker(t *semtracker.Tracker) Option {
	return func(a *Analyzer) { a.tracker = t }
}

// WithLimits sets the partial pressure limits checked in every run
func WithLimits(l ...Limit) Option {
	return func(a *Analyzer) { a.limits = l }
}

// WithMetrics sets the metrics sink
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Analyzer) { a.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// New creates an Analyzer
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	if a.table == nil {
		a.table = gasdata.Default()
	}
	a.calib = calibration.New(
		calibration.WithTable(a.table),
		calibration.WithTracker(a.tracker),
		calibration.WithMetrics(a.metrics),
		calibration.WithLogger(a.logger),
	)
	a.engine = diagnosis.New(
		diagnosis.WithTable(a.table),
		diagnosis.WithLogger(a.logger),
		diagnosis.WithMetrics(a.metrics),
	)
	a.scorer = quality.NewScorer(a.logger)
	return a
}

// Run analyses one spectrum. Validation failures are returned as
// *spectrum.ValidationError.
func (a *Analyzer) Run(ctx context.Context, req Request) (*Report, error) {
	start := time.Now()
	id := uuid.NewString()
	ctx, span := tracer.Start(ctx, "analysis.Run",
		trace.WithAttributes(
			attribute.String("analysis.id", id),
			attribute.String("analysis.identifier", req.Identifier),
			attribute.Int("analysis.points", len(req.Spectrum)),
		),
	)
	defer span.End()

	rep, err := a.run(ctx, id, req)
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
		var verr *spectrum.ValidationError
		if errors.As(err, &verr) {
			outcome = OutcomeInvalid
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.logger.Warn("analysis failed",
			slog.String("id", id),
			slog.String("identifier", req.Identifier),
			slog.Any("error", err))
	} else {
		span.SetAttributes(
			attribute.Int("analysis.diagnoses", len(rep.Diagnoses)),
			attribute.String("analysis.grade", rep.Quality.Grade),
		)
		span.SetStatus(codes.Ok, "")
		a.logger.Info("analysis completed",
			slog.String("id", id),
			slog.String("identifier", req.Identifier),
			slog.String("grade", rep.Quality.Grade),
			slog.Int("diagnoses", len(rep.Diagnoses)),
			slog.Duration("duration", time.Since(start)))
	}
	a.metrics.ObserveAnalysis(outcome, time.Since(start))
	return rep, err
}

func (a *Analyzer) run(ctx context.Context, id string, req Request) (*Report, error) {
	if err := req.Spectrum.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	unit := req.Unit
	if unit == "" {
		unit = pressure.UnitMbar
	}

	cal, err := a.calib.Calibrate(ctx, req.Identifier, req.Spectrum, req.Level, req.Device)
	if err != nil {
		return nil, fmt.Errorf("calibration: %w", err)
	}
	rep := &Report{ID: id, Identifier: req.Identifier, CreatedAt: a.now(), Calibration: cal}

	conv := pressure.NewConverter()
	conv.SetCalibration(cal)
	rep.Points, err = conv.ConvertSpectrum(req.Spectrum, pressure.Options{
		Unit:           unit,
		UseDeconvolved: cal.Level != calibration.LevelBasic,
	})
	if err != nil {
		return nil, fmt.Errorf("pressure conversion: %w", err)
	}
	if rep.PartialPressures, err = conv.GasPartialPressures(unit); err != nil {
		return nil, fmt.Errorf("partial pressures: %w", err)
	}

	if a.tracker != nil {
		w := a.tracker.CheckAging()
		if w.Severity != semtracker.SeverityNone {
			a.metrics.IncSEMWarning(string(w.Severity))
		}
		rep.SEM = &w
	}

	peaks := req.Spectrum.Normalize()
	rep.LOD = lod.Estimate(peaks)
	a.metrics.IncLODMethod(rep.LOD.Method)

	md := cal.Metadata
	in := diagnosis.Input{
		Peaks:         peaks,
		TotalPressure: cal.CorrectedTotalPressure,
		LOD:           &rep.LOD,
		Metadata:      &md,
	}
	if req.Quick {
		rep.Diagnoses, err = a.engine.RunQuickDiagnosis(in, req.MinConfidence)
	} else {
		rep.Diagnoses, err = a.engine.RunFullDiagnosis(in, req.MinConfidence)
	}
	if err != nil {
		return nil, fmt.Errorf("diagnosis: %w", err)
	}

	qin := quality.Input{
		Peaks:         peaks,
		LOD:           &rep.LOD,
		State:         md.SystemState,
		TotalPressure: cal.CorrectedTotalPressure,
		Diagnoses:     rep.Diagnoses,
	}
	if cal.Level != calibration.LevelBasic && cal.Deconvolution != nil {
		q := cal.Deconvolution.Quality()
		qin.DeconvolutionQuality = &q
	}
	rep.Quality = a.scorer.Score(qin)

	rep.Limits = a.checkLimits(rep.PartialPressures)
	rep.Summary = a.summarize(rep, peaks)
	return rep, nil
}

// checkLimits compares the partial pressures with the configured limits.
// Gases that were not detected have no uncertainty and are skipped.
func (a *Analyzer) checkLimits(pps []pressure.GasPartialPressure) []LimitCheck {
	var out []LimitCheck
	for _, l := range a.limits {
		var p float64
		for _, pp := range pps {
			if pp.Gas == l.Gas {
				p, _ = pressure.ConvertUnit(pp.Pressure, pp.Unit, pressure.UnitMbar)
				break
			}
		}
		c, err := stats.CheckPartialPressureLimit(p, l.RelUncertainty, l.Limit)
		if err != nil {
			a.logger.Debug("limit not checked",
				slog.String("gas", string(l.Gas)),
				slog.Any("error", err))
			continue
		}
		out = append(out, LimitCheck{Gas: l.Gas, LimitComparison: c})
	}
	return out
}

func (a *Analyzer) summarize(rep *Report, peaks map[int]float64) Summary {
	cal := rep.Calibration
	s := Summary{
		State:         sysstate.Infer(cal.Metadata.SystemState, peaks, len(rep.LOD.SignificantPeaks(peaks))),
		Grade:         rep.Quality.Grade,
		Reliability:   rep.Quality.Reliability,
		TotalPressure: cal.CorrectedTotalPressure,
		Critical:      rep.Quality.CriticalIssues,
		Level:         cal.Level,
		Strategy:      cal.Strategy,
		Confidence:    cal.Confidence,
	}
	if len(rep.PartialPressures) > 0 {
		s.DominantGas = rep.PartialPressures[0].Gas
	} else if len(peaks) > 0 {
		s.DominantGas = a.table.GasAtMass(rep.Points[maxPoint(rep.Points)].Mass)
	}
	if len(rep.Diagnoses) > 0 {
		s.TopDiagnosis = rep.Diagnoses[0].Type
	}
	for _, l := range rep.Limits {
		if !l.Passed {
			s.LimitsFailed = append(s.LimitsFailed, l.Gas)
		}
	}
	if rep.SEM != nil {
		s.SEMSeverity = rep.SEM.Severity
	}
	return s
}

func maxPoint(points []pressure.DataPoint) int {
	best := 0
	for i, p := range points {
		if p.Current > points[best].Current {
			best = i
		}
	}
	return best
}

// BatchItem is the outcome of one request of a batch
type BatchItem struct {
	Identifier string  `json:"identifier"`
	Report     *Report `json:"report,omitempty"`
	Err        error   `json:"-"`
}

// RunBatch analyses independent spectra with at most workers analyses
// in flight. A failed analysis is reported in its item and does not stop
// the batch; only cancellation of ctx does.
func (a *Analyzer) RunBatch(ctx context.Context, reqs []Request, workers int) ([]BatchItem, error) {
	if workers < 1 {
		workers = 1
	}
	items := make([]BatchItem, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, req := range reqs {
		items[i].Identifier = req.Identifier
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				items[i].Err = err
				return err
			}
			items[i].Report, items[i].Err = a.Run(gctx, req)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return items, err
	}
	return items, nil
}
