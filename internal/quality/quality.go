// Package quality rates how far the diagnoses of a spectrum can be
// trusted. Independent factors are scored in [0,1], shifted by the
// vacuum context (bakeout state, total pressure) and combined into a
// weighted score, a letter grade and a reliability tier.
package quality

import (
	"log/slog"
	"math"
	"sort"

	"github.com/524D/rgadiag/internal/diagnosis"
	"github.com/524D/rgadiag/internal/lod"
	"github.com/524D/rgadiag/internal/metadata"
	"github.com/524D/rgadiag/internal/sysstate"
)

// Factor IDs
const (
	FactorSNR           = "signal_to_noise"
	FactorPeaks         = "peak_detection"
	FactorDynamicRange  = "dynamic_range"
	FactorMassRange     = "mass_range"
	FactorH2Reference   = "h2_reference"
	FactorH2OReference  = "water_reference"
	FactorDeconvolution = "deconvolution"
)

var weights = map[string]float64{
	FactorSNR:           0.25,
	FactorPeaks:         0.15,
	FactorDynamicRange:  0.15,
	FactorMassRange:     0.10,
	FactorH2Reference:   0.15,
	FactorH2OReference:  0.10,
	FactorDeconvolution: 0.10,
}

// Status tiers of a factor
type Status string

const (
	StatusExcellent  Status = "excellent"
	StatusGood       Status = "good"
	StatusAcceptable Status = "acceptable"
	StatusPoor       Status = "poor"
	StatusCritical   Status = "critical"
)

// StatusOf maps a factor score to its tier
func StatusOf(score float64) Status {
	switch {
	case score >= 0.9:
		return StatusExcellent
	case score >= 0.7:
		return StatusGood
	case score >= 0.5:
		return StatusAcceptable
	case score >= 0.2:
		return StatusPoor
	}
	return StatusCritical
}

// Reliability of the diagnoses
type Reliability string

const (
	ReliabilityHigh    Reliability = "high"
	ReliabilityMedium  Reliability = "medium"
	ReliabilityLow     Reliability = "low"
	ReliabilityVeryLow Reliability = "very_low"
)

// Factor is one scored quality aspect
type Factor struct {
	ID             string  `json:"id"`
	Score          float64 `json:"score"`
	Weight         float64 `json:"weight"`
	Status         Status  `json:"status"`
	Value          float64 `json:"value"`
	Recommendation string  `json:"recommendation,omitempty"`
}

// Improvement is a ranked suggestion derived from a weak factor
type Improvement struct {
	Factor         string  `json:"factor"`
	Recommendation string  `json:"recommendation"`
	Gain           float64 `json:"gain"` // possible increase of the overall score
}

// Score is the data quality assessment of one spectrum
type Score struct {
	Overall        float64              `json:"overallScore"`
	Grade          string               `json:"grade"`
	Factors        []Factor             `json:"factors"`
	CriticalIssues int                  `json:"criticalIssues"`
	Improvements   []Improvement        `json:"improvements"`
	Reliability    Reliability          `json:"diagnosisReliability"`
	State          metadata.SystemState `json:"systemState"`
}

// Input of the scorer. Peaks are normalised to a maximum of 1.0. A nil
// LOD is estimated from the peaks.
type Input struct {
	Peaks                map[int]float64
	LOD                  *lod.Result
	State                metadata.SystemState
	TotalPressure        *float64 // mbar
	Diagnoses            []diagnosis.Result
	DeconvolutionQuality *float64
}

// Scorer computes data quality scores
type Scorer struct {
	logger *slog.Logger
}

// NewScorer returns a Scorer. A nil logger discards output.
func NewScorer(logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scorer{logger: logger}
}

// Score rates a spectrum
func (s *Scorer) Score(in Input) Score {
	l := in.LOD
	if l == nil {
		est := lod.Estimate(in.Peaks)
		l = &est
	}
	significant := l.SignificantPeaks(in.Peaks)
	ev := newEnv(sysstate.Infer(in.State, in.Peaks, len(significant)), in.TotalPressure)

	factors := []Factor{
		ev.signalToNoise(in.Peaks, l),
		ev.peakDetection(len(significant)),
		ev.dynamicRange(in.Peaks, significant),
		massRange(in.Peaks),
		ev.h2Reference(in.Peaks),
		ev.waterReference(in.Peaks),
	}
	if in.DeconvolutionQuality != nil {
		factors = append(factors, deconvolution(*in.DeconvolutionQuality))
	}
	for i := range factors {
		factors[i].Weight = weights[factors[i].ID]
		factors[i].Status = StatusOf(factors[i].Score)
	}

	overall := Combine(factors)
	res := Score{
		Overall:      overall,
		Grade:        Grade(overall),
		Factors:      factors,
		Improvements: improvements(factors),
		State:        ev.state,
	}
	bad := 0
	for _, f := range factors {
		if f.Status == StatusPoor || f.Status == StatusCritical {
			bad++
		}
	}
	res.CriticalIssues = bad
	for _, d := range in.Diagnoses {
		if d.Severity == diagnosis.SeverityCritical {
			res.CriticalIssues++
		}
	}
	res.Reliability = reliability(bad, overall)

	s.logger.Debug("quality scored",
		slog.Float64("score", overall),
		slog.String("grade", res.Grade),
		slog.String("state", string(ev.state)),
		slog.Int("critical_issues", res.CriticalIssues))
	return res
}

// Combine returns the weighted mean of the factor scores
func Combine(factors []Factor) float64 {
	var sum, wsum float64
	for _, f := range factors {
		sum += f.Weight * clamp01(f.Score)
		wsum += f.Weight
	}
	if wsum <= 0 {
		return 0
	}
	return clamp01(sum / wsum)
}

// Grade maps an overall score to A-F
func Grade(score float64) string {
	switch {
	case score >= 0.90:
		return "A"
	case score >= 0.75:
		return "B"
	case score >= 0.55:
		return "C"
	case score >= 0.35:
		return "D"
	}
	return "F"
}

func reliability(bad int, score float64) Reliability {
	switch {
	case bad >= 2:
		return ReliabilityVeryLow
	case bad >= 1 || score < 0.4:
		return ReliabilityLow
	case score < 0.6:
		return ReliabilityMedium
	}
	return ReliabilityHigh
}

// improvements ranks the three lowest factors that carry a
// recommendation
func improvements(factors []Factor) []Improvement {
	var weak []Factor
	for _, f := range factors {
		if f.Recommendation != "" {
			weak = append(weak, f)
		}
	}
	sort.SliceStable(weak, func(i, j int) bool {
		if weak[i].Score != weak[j].Score {
			return weak[i].Score < weak[j].Score
		}
		return weak[i].Weight > weak[j].Weight
	})
	if len(weak) > 3 {
		weak = weak[:3]
	}
	out := make([]Improvement, len(weak))
	for i, f := range weak {
		out[i] = Improvement{Factor: f.ID, Recommendation: f.Recommendation, Gain: f.Weight * (1 - f.Score)}
	}
	return out
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
