package calibration

import (
	"errors"
	"math"

	"github.com/524D/rgadiag/internal/gasdata"
)

var (
	// ErrInvalidLevel is returned for unknown analysis levels
	ErrInvalidLevel = errors.New("calibration: invalid level")
	// ErrInvalidDevice is returned when a device calibration fails validation
	ErrInvalidDevice = errors.New("calibration: invalid device calibration")
)

// Strategy names, in evaluation order
const (
	StrategyDevice        = "device"
	StrategyTotalPressure = "total-pressure"
	StrategySEMGain       = "sem-gain"
	StrategyFlatDefault   = "flat-default"
)

// SEM gain model limits and reference voltage
const (
	semMinVoltage       = 500.0
	semMaxVoltage       = 3500.0
	semReferenceVoltage = 800.0
	semVoltsPerDecade   = 200.0
)

// StrategyInput is what a sensitivity strategy may look at
type StrategyInput struct {
	Result *Result // corrections, deconvolution and metadata are filled in
	Device *DeviceCalibration
	Table  *gasdata.Table
}

// Strategy is one way of obtaining the sensitivity. Strategies are tried
// in order; the first one whose precondition holds and that yields a
// positive sensitivity wins.
type Strategy struct {
	Name    string
	Applies func(in *StrategyInput) bool
	Resolve func(in *StrategyInput) (float64, Confidence, Method)
}

// DefaultStrategies returns the sensitivity fallback chain
func DefaultStrategies() []Strategy {
	return []Strategy{
		{
			Name: StrategyDevice,
			Applies: func(in *StrategyInput) bool {
				l := in.Result.Level
				return in.Device != nil && (l == LevelAdvanced || l == LevelPrecision)
			},
			Resolve: func(in *StrategyInput) (float64, Confidence, Method) {
				return in.Device.BaseSensitivity, ConfidenceHigh, MethodManual
			},
		},
		{
			Name: StrategyTotalPressure,
			Applies: func(in *StrategyInput) bool {
				p := in.Result.CorrectedTotalPressure
				return p != nil && *p > 0
			},
			Resolve: func(in *StrategyInput) (float64, Confidence, Method) {
				var sum float64
				for m, c := range in.Result.Deconvolution.Corrected {
					sum += c / in.Table.RSF(in.Table.GasAtMass(m))
				}
				conf := ConfidenceMedium
				if in.Result.Level == LevelBasic {
					conf = ConfidenceLow
				}
				return sum / *in.Result.CorrectedTotalPressure, conf, MethodAuto
			},
		},
		{
			Name: StrategySEMGain,
			Applies: func(in *StrategyInput) bool {
				return in.Result.Metadata.SEMVoltage != nil
			},
			Resolve: func(in *StrategyInput) (float64, Confidence, Method) {
				return DefaultSensitivity * SEMGain(*in.Result.Metadata.SEMVoltage), ConfidenceLow, MethodDefault
			},
		},
		{
			Name:    StrategyFlatDefault,
			Applies: func(*StrategyInput) bool { return true },
			Resolve: func(*StrategyInput) (float64, Confidence, Method) {
				return DefaultSensitivity, ConfidenceLow, MethodDefault
			},
		},
	}
}

// SEMGain is the empirical multiplier gain relative to the reference
// voltage: one decade per 200 V. The voltage is clamped to the working
// range of common multipliers.
func SEMGain(voltage float64) float64 {
	v := math.Min(math.Max(voltage, semMinVoltage), semMaxVoltage)
	return math.Pow(10, (v-semReferenceVoltage)/semVoltsPerDecade)
}
