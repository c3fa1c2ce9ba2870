package quality

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/524D/rgadiag/internal/diagnosis"
	"github.com/524D/rgadiag/internal/metadata"
)

func factor(t *testing.T, s Score, id string) Factor {
	t.Helper()
	for _, f := range s.Factors {
		if f.ID == id {
			return f
		}
	}
	require.Failf(t, "factor missing", "no factor %s", id)
	return Factor{}
}

func TestCleanUHVIsExcellent(t *testing.T) {
	in := Input{Peaks: map[int]float64{2: 1.0, 5: 1e-5, 18: 0.01, 28: 0.05, 44: 0.005}}
	s := NewScorer(nil).Score(in)

	assert.Equal(t, metadata.StateBaked, s.State, "baked state inferred from H2 >> H2O")
	assert.Equal(t, StatusExcellent, factor(t, s, FactorPeaks).Status)
	assert.Equal(t, StatusExcellent, factor(t, s, FactorH2Reference).Status)
	assert.Equal(t, StatusExcellent, factor(t, s, FactorH2OReference).Status)
}

func TestKnownBakedIsKept(t *testing.T) {
	// water dominated, but the operator says baked
	in := Input{Peaks: map[int]float64{18: 1, 17: 0.23, 2: 0.1}, State: metadata.StateBaked}
	s := NewScorer(nil).Score(in)
	assert.Equal(t, metadata.StateBaked, s.State)
	assert.Equal(t, StatusPoor, factor(t, s, FactorH2OReference).Status)
}

func TestPoorSpectrum(t *testing.T) {
	in := Input{
		Peaks:     map[int]float64{28: 1, 40: 0.5},
		State:     metadata.StateUnbaked,
		Diagnoses: []diagnosis.Result{{Type: diagnosis.AirLeak, Severity: diagnosis.SeverityCritical}},
	}
	s := NewScorer(nil).Score(in)
	assert.Equal(t, "F", s.Grade)
	assert.Equal(t, ReliabilityVeryLow, s.Reliability)
	assert.Len(t, s.Improvements, 3)
	for i := 1; i < len(s.Improvements); i++ {
		assert.GreaterOrEqual(t, s.Improvements[i].Gain, 0.0)
	}

	bad := 0
	for _, f := range s.Factors {
		if f.Status == StatusPoor || f.Status == StatusCritical {
			bad++
		}
	}
	assert.Equal(t, bad+1, s.CriticalIssues)
}

func TestDeconvolutionFactorOptional(t *testing.T) {
	peaks := map[int]float64{2: 0.2, 18: 1, 17: 0.23, 28: 0.4, 44: 0.1}
	s := NewScorer(nil).Score(Input{Peaks: peaks})
	assert.Len(t, s.Factors, 6)

	q := 0.4
	s = NewScorer(nil).Score(Input{Peaks: peaks, DeconvolutionQuality: &q})
	require.Len(t, s.Factors, 7)
	f := factor(t, s, FactorDeconvolution)
	assert.Equal(t, 0.4, f.Score)
	assert.Equal(t, 0.10, f.Weight)
}

func TestScoreRange(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	states := []metadata.SystemState{metadata.StateUnknown, metadata.StateBaked, metadata.StateUnbaked}
	for n := 0; n < 300; n++ {
		peaks := make(map[int]float64)
		for m := 1; m <= 100; m++ {
			if rnd.Float64() < 0.4 {
				peaks[m] = rnd.Float64() * rnd.Float64()
			}
		}
		tp := rnd.Float64() * 1e-7
		s := NewScorer(nil).Score(Input{Peaks: peaks, State: states[n%3], TotalPressure: &tp})
		require.GreaterOrEqual(t, s.Overall, 0.0)
		require.LessOrEqual(t, s.Overall, 1.0)
		for _, f := range s.Factors {
			require.GreaterOrEqual(t, f.Score, 0.0, f.ID)
			require.LessOrEqual(t, f.Score, 1.0, f.ID)
		}
	}
}

func TestGradeMonotonic(t *testing.T) {
	rank := map[string]int{"F": 0, "D": 1, "C": 2, "B": 3, "A": 4}
	prev := rank[Grade(0)]
	for s := 0.0; s <= 1.0; s += 0.001 {
		g := rank[Grade(s)]
		require.GreaterOrEqual(t, g, prev, "grade dropped at %v", s)
		prev = g
	}
	assert.Equal(t, "A", Grade(0.90))
	assert.Equal(t, "B", Grade(0.75))
	assert.Equal(t, "C", Grade(0.55))
	assert.Equal(t, "D", Grade(0.35))
	assert.Equal(t, "F", Grade(0.3499))
}

func TestCombineMonotonic(t *testing.T) {
	factors := []Factor{
		{ID: FactorSNR, Score: 0.3, Weight: 0.25},
		{ID: FactorPeaks, Score: 0.6, Weight: 0.15},
		{ID: FactorMassRange, Score: 0.8, Weight: 0.10},
	}
	base := Combine(factors)
	for i := range factors {
		raised := append([]Factor(nil), factors...)
		raised[i].Score += 0.1
		assert.Greater(t, Combine(raised), base)
	}
	assert.Equal(t, 0.0, Combine(nil))
}

func TestLadderMonotonic(t *testing.T) {
	a := anchors{3, 10, 100, 1000}
	prev := -1.0
	for v := 0.0; v < 20000; v += 1.7 {
		s := ladder(v, a, true)
		require.GreaterOrEqual(t, s, prev, "v=%v", v)
		require.LessOrEqual(t, s, 1.0)
		prev = s
	}
	assert.InDelta(t, 0.5, ladder(10, a, true), 1e-12)
	assert.InDelta(t, 0.9, ladder(1000, a, true), 1e-12)
}

func TestReliability(t *testing.T) {
	assert.Equal(t, ReliabilityVeryLow, reliability(2, 0.95))
	assert.Equal(t, ReliabilityLow, reliability(1, 0.95))
	assert.Equal(t, ReliabilityLow, reliability(0, 0.39))
	assert.Equal(t, ReliabilityMedium, reliability(0, 0.59))
	assert.Equal(t, ReliabilityHigh, reliability(0, 0.6))
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, StatusExcellent, StatusOf(0.9))
	assert.Equal(t, StatusGood, StatusOf(0.7))
	assert.Equal(t, StatusAcceptable, StatusOf(0.5))
	assert.Equal(t, StatusPoor, StatusOf(0.2))
	assert.Equal(t, StatusCritical, StatusOf(0.19))
}
