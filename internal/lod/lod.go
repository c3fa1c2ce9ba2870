// Package lod estimates the limit of detection of a spectrum from
// channels that carry no gas signal, using LOD = mu + 3 sigma.
package lod

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Strategy names
const (
	MethodPrimary    = "primary-reference"
	MethodBackup     = "backup-reference"
	MethodPercentile = "percentile-fallback"
	MethodDefault    = "default"
)

// m/z 5 has no stable ion species and is empty in virtually all systems
const primaryMass = 5

// Alternative empty channels
var backupMasses = []int{7, 9, 11}

const (
	// sigma for a single noise sample, as fraction of the sample
	singleSampleSigma = 0.1
	// number of standard deviations above the noise mean (IUPAC, 99.7 %)
	kSigma = 3.0
	// share of the smallest positive peaks used by the percentile fallback
	percentileShare = 0.10
	// LOD on the normalised scale when there is no data at all
	defaultLOD = 1e-3
)

// Strategy confidences
const (
	confidencePrimary    = 0.9
	confidenceBackup     = 0.6
	confidencePercentile = 0.3
)

// Result of an LOD estimate
type Result struct {
	LOD        float64 `json:"lod"`
	Mu         float64 `json:"mu"`
	Sigma      float64 `json:"sigma"`
	Method     string  `json:"method"`
	Confidence float64 `json:"confidence"`
	UsedMasses []int   `json:"usedMasses,omitempty"`
}

// strategy is one way to obtain noise samples
type strategy struct {
	name       string
	confidence float64
	samples    func(peaks map[int]float64) (values []float64, masses []int)
}

var strategies = []strategy{
	{MethodPrimary, confidencePrimary, func(peaks map[int]float64) ([]float64, []int) {
		if v := peaks[primaryMass]; v > 0 {
			return []float64{v}, []int{primaryMass}
		}
		return nil, nil
	}},
	{MethodBackup, confidenceBackup, func(peaks map[int]float64) ([]float64, []int) {
		var values []float64
		var masses []int
		for _, m := range backupMasses {
			if v := peaks[m]; v > 0 {
				values = append(values, v)
				masses = append(masses, m)
			}
		}
		return values, masses
	}},
	{MethodPercentile, confidencePercentile, lowestPeaks},
}

// lowestPeaks returns the lowest 10 % (at least one) positive values
func lowestPeaks(peaks map[int]float64) ([]float64, []int) {
	type mv struct {
		m int
		v float64
	}
	var pos []mv
	for m, v := range peaks {
		if v > 0 && !math.IsInf(v, 0) {
			pos = append(pos, mv{m, v})
		}
	}
	if len(pos) == 0 {
		return nil, nil
	}
	sort.Slice(pos, func(i, j int) bool {
		if pos[i].v != pos[j].v {
			return pos[i].v < pos[j].v
		}
		return pos[i].m < pos[j].m
	})
	n := int(math.Floor(float64(len(pos)) * percentileShare))
	if n < 1 {
		n = 1
	}
	values := make([]float64, n)
	masses := make([]int, n)
	for i := 0; i < n; i++ {
		values[i] = pos[i].v
		masses[i] = pos[i].m
	}
	sort.Ints(masses)
	return values, masses
}

// Estimate computes the LOD of a peak map (normalised or absolute, the
// LOD is on the same scale). The first strategy that finds noise
// samples wins.
func Estimate(peaks map[int]float64) Result {
	for _, st := range strategies {
		values, masses := st.samples(peaks)
		if len(values) == 0 {
			continue
		}
		mu, sigma := noiseStats(values)
		return Result{
			LOD:        mu + kSigma*sigma,
			Mu:         mu,
			Sigma:      sigma,
			Method:     st.name,
			Confidence: st.confidence,
			UsedMasses: masses,
		}
	}
	return Result{LOD: defaultLOD, Method: MethodDefault}
}

// noiseStats returns mean and sample standard deviation. A single
// sample gets a synthetic sigma of 10 % of its value.
func noiseStats(values []float64) (mu, sigma float64) {
	if len(values) == 1 {
		return values[0], singleSampleSigma * values[0]
	}
	return stat.MeanStdDev(values, nil)
}

// Significance tiers
const (
	TierVeryHigh = "very_high"
	TierHigh     = "high"
	TierMedium   = "medium"
	TierLow      = "low"
	TierNoise    = "noise"
)

// Significance of a peak relative to the LOD
type Significance struct {
	Factor float64 `json:"factor"` // value / LOD
	Tier   string  `json:"tier"`
}

// Significance rates value against the detection limit
func (r Result) Significance(value float64) Significance {
	if r.LOD <= 0 {
		return Significance{Tier: TierNoise}
	}
	s := Significance{Factor: value / r.LOD}
	// compare against multiples of the LOD, so tiers agree with IsDetected
	switch {
	case value >= 5*r.LOD:
		s.Tier = TierVeryHigh
	case value >= 3*r.LOD:
		s.Tier = TierHigh
	case value >= 1.5*r.LOD:
		s.Tier = TierMedium
	case value >= r.LOD:
		s.Tier = TierLow
	default:
		s.Tier = TierNoise
	}
	return s
}

// IsDetected reports whether value is at or above the LOD
func (r Result) IsDetected(value float64) bool {
	return r.LOD > 0 && value >= r.LOD
}

// SignificantPeaks returns the masses whose value reaches the LOD, sorted
func (r Result) SignificantPeaks(peaks map[int]float64) []int {
	var masses []int
	for m, v := range peaks {
		if r.IsDetected(v) {
			masses = append(masses, m)
		}
	}
	sort.Ints(masses)
	return masses
}
