// Package calibration turns a raw spectrum and its identifier into a
// sensitivity calibration: metadata parsing, deconvolution, manometer
// and temperature corrections, and sensitivity derivation.
package calibration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/524D/rgadiag/internal/deconv"
	"github.com/524D/rgadiag/internal/gasdata"
	"github.com/524D/rgadiag/internal/metadata"
	"github.com/524D/rgadiag/internal/metrics"
	"github.com/524D/rgadiag/internal/semtracker"
	"github.com/524D/rgadiag/internal/spectrum"
)

// Level is the analysis depth
type Level string

const (
	LevelBasic     Level = "basic"
	LevelStandard  Level = "standard"
	LevelAdvanced  Level = "advanced"
	LevelPrecision Level = "precision"
)

// ParseLevel converts a level name, the empty string selects standard
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case "":
		return LevelStandard, nil
	case LevelBasic, LevelStandard, LevelAdvanced, LevelPrecision:
		return Level(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidLevel, s)
}

// Confidence of the sensitivity value
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Method by which the sensitivity was obtained
type Method string

const (
	MethodAuto    Method = "auto"
	MethodManual  Method = "manual"
	MethodDefault Method = "default"
)

// DefaultSensitivity in A/mbar for an RGA with Faraday cup
const DefaultSensitivity = 1e-4

// Reference temperature of the gauge calibration in K
const referenceTemperature = 293.15

const celsiusOffset = 273.15

// Corrections applied to the parsed total pressure. 1.0 means none.
type Corrections struct {
	Manometer   float64 `json:"manometerCorrection"`
	Temperature float64 `json:"temperatureCorrection"`
}

// ReferenceMeasurement is one gas measured at a known pressure during a
// device calibration
type ReferenceMeasurement struct {
	Gas      gasdata.GasKey `json:"gas" validate:"required"`
	Pressure float64        `json:"pressure" validate:"gt=0"`
	Current  float64        `json:"current" validate:"gte=0"`
}

// DeviceCalibration is an externally stored calibration of one instrument
type DeviceCalibration struct {
	DeviceID              string                     `json:"deviceId" validate:"required"`
	Timestamp             time.Time                  `json:"timestamp"`
	BaseSensitivity       float64                    `json:"baseSensitivity" validate:"gt=0"`
	DetectorType          string                     `json:"detectorType" validate:"oneof=faraday sem"`
	CustomRSF             map[gasdata.GasKey]float64 `json:"customRSF,omitempty" validate:"omitempty,dive,gt=0"`
	ReferenceMeasurements []ReferenceMeasurement     `json:"referenceMeasurements,omitempty" validate:"omitempty,dive"`
}

// Result of a calibration. It is not modified after Calibrate returns.
type Result struct {
	Sensitivity            float64                    `json:"sensitivity"` // A/mbar
	Confidence             Confidence                 `json:"confidence"`
	Method                 Method                     `json:"method"`
	Level                  Level                      `json:"level"`
	Strategy               string                     `json:"strategy"`
	Corrections            Corrections                `json:"corrections"`
	CorrectedTotalPressure *float64                   `json:"correctedTotalPressure,omitempty"` // mbar
	CustomRSF              map[gasdata.GasKey]float64 `json:"customRSF,omitempty"`
	Deconvolution          *deconv.Result             `json:"deconvolution"`
	Metadata               metadata.Metadata          `json:"metadata"`
	Table                  *gasdata.Table             `json:"-"`
}

// RSF returns the relative sensitivity factor of gas, with device
// overrides taking precedence over the reference table
func (r *Result) RSF(key gasdata.GasKey) float64 {
	if v, ok := r.CustomRSF[key]; ok && v > 0 {
		return v
	}
	table := r.Table
	if table == nil {
		table = gasdata.Default()
	}
	return table.RSF(key)
}

// Deconvolver resolves fragment overlap
type Deconvolver interface {
	Deconvolve(s spectrum.Spectrum) *deconv.Result
}

// Service runs calibrations. It holds no per call state.
type Service struct {
	table      *gasdata.Table
	deconv     Deconvolver
	tracker    *semtracker.Tracker
	strategies []Strategy
	validate   *validator.Validate
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// Option configures a Service
type Option func(*Service)

// WithTable sets the gas reference table
func WithTable(t *gasdata.Table) Option {
	return func(s *Service) { s.table = t }
}

// WithDeconvolver replaces the default deconvolution engine
func WithDeconvolver(d Deconvolver) Option {
	return func(s *Service) { s.deconv = d }
}

// WithTracker records the SEM voltage of every calibration
func WithTracker(t *semtracker.Tracker) Option {
	return func(s *Service) { s.tracker = t }
}

// WithMetrics sets the metrics sink
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a calibration service
func New(opts ...Option) *Service {
	s := &Service{
		strategies: DefaultStrategies(),
		validate:   validator.New(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.table == nil {
		s.table = gasdata.Default()
	}
	if s.deconv == nil {
		s.deconv = deconv.New(s.table)
	}
	return s
}

// ValidateDevice checks a device calibration
func (s *Service) ValidateDevice(dev *DeviceCalibration) error {
	if err := s.validate.Struct(dev); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDevice, err)
	}
	return nil
}

// Calibrate derives the calibration for one spectrum. Missing metadata
// is never an error; it lowers the confidence instead.
func (s *Service) Calibrate(ctx context.Context, identifier string, spec spectrum.Spectrum,
	level Level, device *DeviceCalibration) (*Result, error) {

	if len(spec) == 0 {
		return nil, spectrum.ErrNoData
	}
	if level == "" {
		level = LevelStandard
	}
	if _, err := ParseLevel(string(level)); err != nil {
		return nil, err
	}
	if device != nil {
		if err := s.ValidateDevice(device); err != nil {
			return nil, err
		}
	}

	md := metadata.Parse(identifier)
	res := &Result{
		Level:       level,
		Metadata:    md,
		Corrections: Corrections{Manometer: 1, Temperature: 1},
		Table:       s.table,
	}
	if level == LevelBasic {
		res.Deconvolution = deconv.Passthrough(s.table, spec)
	} else {
		res.Deconvolution = s.deconv.Deconvolve(spec)
	}

	if md.TotalPressure != nil {
		if level != LevelBasic {
			res.Corrections.Manometer = 1 / s.table.RSF(DominantGas(md.SystemState))
			if md.Temperature != nil {
				res.Corrections.Temperature = (*md.Temperature + celsiusOffset) / referenceTemperature
			}
		}
		p := *md.TotalPressure * res.Corrections.Manometer * res.Corrections.Temperature
		res.CorrectedTotalPressure = &p
	} else if md.Temperature != nil && level != LevelBasic {
		res.Corrections.Temperature = (*md.Temperature + celsiusOffset) / referenceTemperature
	}

	in := &StrategyInput{Result: res, Device: device, Table: s.table}
	for _, st := range s.strategies {
		if !st.Applies(in) {
			continue
		}
		sens, conf, method := st.Resolve(in)
		if sens <= 0 {
			continue
		}
		res.Sensitivity, res.Confidence, res.Method = sens, conf, method
		res.Strategy = st.Name
		break
	}
	if res.Strategy == StrategyDevice {
		res.CustomRSF = device.CustomRSF
	}
	s.metrics.IncCalibrationStrategy(res.Strategy)
	s.logger.Debug("calibrated",
		"identifier", identifier,
		"level", level,
		"strategy", res.Strategy,
		"sensitivity", res.Sensitivity,
		"confidence", res.Confidence)

	if s.tracker != nil {
		if _, err := s.tracker.AddEntry(ctx, md); err != nil {
			s.logger.Warn("SEM history not updated", "identifier", identifier, "error", err)
		}
	}
	return res, nil
}

// DominantGas is the gas expected to dominate the residual gas of a
// system in the given state: hydrogen after bakeout, water before.
func DominantGas(state metadata.SystemState) gasdata.GasKey {
	switch state {
	case metadata.StateBaked:
		return gasdata.H2
	case metadata.StateUnbaked:
		return gasdata.H2O
	}
	return gasdata.N2
}
