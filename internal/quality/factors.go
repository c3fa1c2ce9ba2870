package quality

import (
	"math"

	"github.com/524D/rgadiag/internal/lod"
	"github.com/524D/rgadiag/internal/metadata"
)

// Total pressure below which a system counts as UHV (mbar)
const uhvPressure = 1e-8

// env shifts the acceptance thresholds of the factors
type env struct {
	state metadata.SystemState
	uhv   bool
}

func newEnv(state metadata.SystemState, totalPressure *float64) env {
	return env{
		state: state,
		uhv:   totalPressure != nil && *totalPressure > 0 && *totalPressure < uhvPressure,
	}
}

func (c env) baked() bool { return c.state == metadata.StateBaked }

// anchors are the values scoring 0.2, 0.5, 0.7 and 0.9
type anchors [4]float64

var anchorScores = [4]float64{0.2, 0.5, 0.7, 0.9}

// ladder maps v onto [0,1], monotonic increasing. Between anchors the
// score is interpolated linearly, or in log10 when logScale is set.
func ladder(v float64, a anchors, logScale bool) float64 {
	if math.IsNaN(v) {
		return 0
	}
	pos := func(x float64) float64 {
		if logScale {
			return math.Log10(x)
		}
		return x
	}
	if v < a[0] {
		if a[0] <= 0 || v <= 0 {
			return 0
		}
		return anchorScores[0] * v / a[0]
	}
	for i := 0; i < 3; i++ {
		if v < a[i+1] {
			t := (pos(v) - pos(a[i])) / (pos(a[i+1]) - pos(a[i]))
			return anchorScores[i] + t*(anchorScores[i+1]-anchorScores[i])
		}
	}
	// one more decade (or unit) up to 1.0
	return math.Min(1, 0.9+0.1*(pos(v)-pos(a[3])))
}

// ----- factors -----

var snrAnchors = anchors{3, 10, 100, 1000}

func (c env) signalToNoise(peaks map[int]float64, l *lod.Result) Factor {
	max := maxPeak(peaks)
	f := Factor{ID: FactorSNR}
	if l.LOD <= 0 || max <= 0 {
		f.Recommendation = "No signal above the noise; check filament and detector."
		return f
	}
	snr := max / l.LOD
	a := snrAnchors
	scale := 1.0
	if c.baked() {
		scale *= 0.5
	}
	if c.uhv {
		scale *= 0.3
	}
	for i := range a {
		a[i] *= scale
	}
	f.Value = snr
	f.Score = ladder(snr, a, true)
	if f.Score < 0.9 {
		f.Recommendation = "Increase the SEM gain or the dwell time to raise the signal-to-noise ratio."
	}
	return f
}

func (c env) peakDetection(n int) Factor {
	f := Factor{ID: FactorPeaks, Value: float64(n)}
	switch {
	case n == 0:
		f.Score = 0
	case c.baked():
		// few peaks are the signature of a clean UHV system
		switch {
		case n <= 5:
			f.Score = 1
		case n <= 8:
			f.Score = 0.75
		case n <= 12:
			f.Score = 0.55
		case n <= 20:
			f.Score = 0.35
		default:
			f.Score = 0.15
		}
	default:
		f.Score = ladder(float64(n), anchors{2, 4, 6, 10}, false)
	}
	if f.Score < 0.7 {
		if c.baked() && n > 5 {
			f.Recommendation = "Many peaks for a baked system; check for contamination or a leak."
		} else {
			f.Recommendation = "Few peaks above the detection limit; extend the measurement or raise the sensitivity."
		}
	}
	return f
}

var rangeAnchors = anchors{1, 2, 3, 4} // decades

func (c env) dynamicRange(peaks map[int]float64, significant []int) Factor {
	f := Factor{ID: FactorDynamicRange}
	max := maxPeak(peaks)
	min := math.Inf(1)
	for _, m := range significant {
		if v := peaks[m]; v > 0 && v < min {
			min = v
		}
	}
	if max <= 0 || math.IsInf(min, 1) {
		f.Recommendation = "No usable dynamic range; check the detector."
		return f
	}
	decades := math.Log10(max / min)
	shift := 0.0
	if c.baked() {
		shift += 1
	}
	if c.uhv {
		shift += 0.5
	}
	a := rangeAnchors
	for i := range a {
		a[i] -= shift
	}
	f.Value = decades
	f.Score = ladder(decades, a, false)
	if f.Score < 0.7 {
		f.Recommendation = "Use the SEM detector or autorange to cover more decades."
	}
	return f
}

func massRange(peaks map[int]float64) Factor {
	f := Factor{ID: FactorMassRange}
	if len(peaks) == 0 {
		f.Recommendation = "Scan m/z 1 to 100."
		return f
	}
	lo, hi := math.MaxInt, 0
	for m := range peaks {
		lo = min(lo, m)
		hi = max(hi, m)
	}
	f.Value = float64(hi)
	switch {
	case hi >= 100:
		f.Score = 1
	case hi >= 50:
		f.Score = 0.8
	case hi >= 44:
		f.Score = 0.6
	case hi >= 32:
		f.Score = 0.4
	default:
		f.Score = 0.2
	}
	if lo > 2 {
		// hydrogen not covered
		f.Score = math.Max(0, f.Score-0.3)
	}
	if f.Score < 0.9 {
		f.Recommendation = "Extend the scan range to m/z 1 to 100 to cover hydrogen and heavy contaminants."
	}
	return f
}

func (c env) h2Reference(peaks map[int]float64) Factor {
	h2 := relative(peaks, 2)
	f := Factor{ID: FactorH2Reference, Value: h2}
	if c.baked() {
		// hydrogen should dominate after a bakeout
		f.Score = math.Min(1, 0.3+0.7*h2/0.5)
	} else {
		switch {
		case h2 >= 0.01:
			f.Score = 1
		case h2 > 0:
			f.Score = 0.7
		default:
			f.Score = 0.3
		}
	}
	if f.Score < 0.7 {
		f.Recommendation = "Check the low mass sensitivity and the mass scale at m/z 2."
	}
	return f
}

func (c env) waterReference(peaks map[int]float64) Factor {
	f := Factor{ID: FactorH2OReference}
	h2o := relative(peaks, 18)
	if c.baked() {
		h2 := relative(peaks, 2)
		r := 0.0
		switch {
		case h2 > 0:
			r = h2o / h2
		case h2o > 0:
			r = math.Inf(1)
		}
		f.Value = r
		switch {
		case r <= 0.2:
			f.Score = 1
		case r <= 0.5:
			f.Score = 0.8
		case r <= 1:
			f.Score = 0.6
		case r <= 3:
			f.Score = 0.4
		default:
			f.Score = 0.2
		}
		if math.IsInf(r, 1) {
			// keep the report JSON encodable
			f.Value = h2o
		}
		if f.Score < 0.7 {
			f.Recommendation = "Water is high for a baked system; extend the bakeout."
		}
		return f
	}
	if h2o <= 0 {
		f.Score = 0.5
		f.Recommendation = "No water peak; verify the mass scale around m/z 18."
		return f
	}
	r := relative(peaks, 17) / h2o
	f.Value = r
	if r >= 0.15 && r <= 0.35 {
		f.Score = 1
	} else {
		f.Score = 0.6
		f.Recommendation = "The m/z 17 / 18 ratio deviates from water; check mass calibration and resolution."
	}
	return f
}

func deconvolution(q float64) Factor {
	f := Factor{ID: FactorDeconvolution, Value: q, Score: clamp01(q)}
	if f.Score < 0.7 {
		f.Recommendation = "Large unexplained residuals; unknown species may be present."
	}
	return f
}

func maxPeak(peaks map[int]float64) float64 {
	max := 0.0
	for _, v := range peaks {
		if v > max {
			max = v
		}
	}
	return max
}

// relative returns peak m relative to the largest peak
func relative(peaks map[int]float64, m int) float64 {
	max := maxPeak(peaks)
	if max <= 0 || peaks[m] <= 0 {
		return 0
	}
	return peaks[m] / max
}
