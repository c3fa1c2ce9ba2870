// Package stats decides whether a measured value complies with a limit
// when the measurement carries an uncertainty.
package stats

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidUncertainty is returned for uncertainties that are not > 0
var ErrInvalidUncertainty = errors.New("stats: uncertainty must be positive")

// ErrNonFinite is returned when a value or limit is NaN or infinite
var ErrNonFinite = errors.New("stats: value and limit must be finite")

// ----- Normal distribution -----

// Coefficients of Abramowitz & Stegun 26.2.17 (Zelen and Severo)
const (
	zsP  = 0.2316419
	zsB1 = 0.319381530
	zsB2 = -0.356563782
	zsB3 = 1.781477937
	zsB4 = -1.821255978
	zsB5 = 1.330274429
)

var invSqrt2Pi = 1 / math.Sqrt(2*math.Pi)

// NormalCDF is the standard normal cumulative distribution function,
// absolute error below 7.5e-8. The tail for |x| is evaluated once and
// mirrored, so NormalCDF(-x) == 1 - NormalCDF(x) holds exactly.
func NormalCDF(x float64) float64 {
	if math.IsNaN(x) {
		return math.NaN()
	}
	if x == 0 {
		return 0.5
	}
	ax := math.Abs(x)
	t := 1 / (1 + zsP*ax)
	poly := t * (zsB1 + t*(zsB2+t*(zsB3+t*(zsB4+t*zsB5))))
	tail := invSqrt2Pi * math.Exp(-ax*ax/2) * poly
	if x > 0 {
		return 1 - tail
	}
	return tail
}

// ----- Limit comparison -----

// Conclusion is the five tier compliance classification
type Conclusion string

const (
	ClearlyBelow  Conclusion = "clearly_below"
	ProbablyBelow Conclusion = "probably_below"
	Uncertain     Conclusion = "uncertain"
	ProbablyAbove Conclusion = "probably_above"
	ClearlyAbove  Conclusion = "clearly_above"
)

// LimitComparison is the result of CompareToLimit
type LimitComparison struct {
	Value          float64    `json:"value"`
	Uncertainty    float64    `json:"uncertainty"`
	Limit          float64    `json:"limit"`
	Margin         float64    `json:"margin"`      // (limit - value) / uncertainty
	Probability    float64    `json:"probability"` // P(true value < limit)
	Conclusion     Conclusion `json:"conclusion"`
	Passed         bool       `json:"passed"` // point estimate value < limit
	Message        string     `json:"message"`
	Recommendation string     `json:"recommendation"`
}

// CompareToLimit classifies value +- uncertainty (one standard
// deviation) against limit. Passed only compares the point estimate and
// may disagree with the conclusion near the limit.
func CompareToLimit(value, uncertainty, limit float64) (LimitComparison, error) {
	if !(uncertainty > 0) || math.IsInf(uncertainty, 0) {
		return LimitComparison{}, fmt.Errorf("%w: %v", ErrInvalidUncertainty, uncertainty)
	}
	if !isFinite(value) || !isFinite(limit) {
		return LimitComparison{}, fmt.Errorf("%w: value %v, limit %v", ErrNonFinite, value, limit)
	}
	margin := (limit - value) / uncertainty
	c := LimitComparison{
		Value:       value,
		Uncertainty: uncertainty,
		Limit:       limit,
		Margin:      margin,
		Probability: NormalCDF(margin),
		Passed:      value < limit,
	}
	c.Conclusion = classify(margin)
	pct := c.Probability * 100
	switch c.Conclusion {
	case ClearlyBelow:
		c.Message = fmt.Sprintf("Value is clearly below the limit (%.1fσ, %.2f%% confidence)", margin, pct)
		c.Recommendation = "No action required."
	case ProbablyBelow:
		c.Message = fmt.Sprintf("Value is probably below the limit (%.1fσ, %.1f%% confidence)", margin, pct)
		c.Recommendation = "Compliant; repeat the measurement to confirm."
	case Uncertain:
		c.Message = fmt.Sprintf("Compliance cannot be decided (%.1fσ, %.1f%% probability of compliance)", margin, pct)
		c.Recommendation = "Reduce the measurement uncertainty or take more measurements."
	case ProbablyAbove:
		c.Message = fmt.Sprintf("Value is probably above the limit (%.1fσ, %.1f%% probability of compliance)", margin, pct)
		c.Recommendation = "Investigate the source and measure again."
	case ClearlyAbove:
		c.Message = fmt.Sprintf("Value is clearly above the limit (%.1fσ, %.2f%% probability of compliance)", margin, pct)
		c.Recommendation = "Limit exceeded: corrective action required."
	}
	return c, nil
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// classify maps the margin to a tier. A margin of exactly -2 counts as
// probably_above.
func classify(margin float64) Conclusion {
	switch {
	case margin > 3:
		return ClearlyBelow
	case margin > 2:
		return ProbablyBelow
	case margin > -2:
		return Uncertain
	case margin >= -3:
		return ProbablyAbove
	}
	return ClearlyAbove
}

// ----- Uncertainty helpers -----

// CombineUncertainties adds independent standard uncertainties in
// quadrature
func CombineUncertainties(u ...float64) float64 {
	var sum float64
	for _, v := range u {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// CheckPartialPressureLimit compares a partial pressure with a limit;
// relUncertainty is the relative standard uncertainty of the pressure
// (e.g. 0.2 for 20 %).
func CheckPartialPressureLimit(pressure, relUncertainty, limit float64) (LimitComparison, error) {
	return CompareToLimit(pressure, pressure*relUncertainty, limit)
}
