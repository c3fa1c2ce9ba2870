// Package deconv resolves overlapping cracking patterns in an RGA
// spectrum. Gases are attributed one after another, starting with the
// species that can be identified from a single unambiguous mass. After
// each attribution the known fragment intensities of that gas are
// subtracted from the masses it contributes to.
package deconv

import (
	"github.com/524D/rgadiag/internal/gasdata"
	"github.com/524D/rgadiag/internal/spectrum"
)

// Split methods for the N2/CO pair at m/z 28
const (
	PairNone         = ""
	PairProportional = "proportional"
	PairFallback     = "fallback"
)

// Fixed N2 share used when neither fragment based estimate of the N2/CO
// pair is available or their sum is implausible. This is a plausibility heuristic, not a measured ratio.
const pairFallbackN2Share = 0.8

// Both pair estimates together may exceed the shared peak by this factor
const pairPlausibility = 1.5

// Result of a deconvolution run. Corrected never holds negative values;
// for every mass Corrected = original - Subtracted.
type Result struct {
	Corrected     map[int]float64            `json:"correctedSpectrum"`
	Contributions map[gasdata.GasKey]float64 `json:"gasContributions"`
	Residuals     map[int]float64            `json:"residuals"`
	Subtracted    map[int]float64            `json:"subtracted"`
	Steps         []string                   `json:"steps"`                // attribution steps that found their gas
	PairMethod    string                     `json:"pairMethod,omitempty"` // how m/z 28 was split
}

// Quality returns explained / (explained + residual) intensity. Low values
// mean the reference patterns cannot explain the spectrum.
func (r *Result) Quality() float64 {
	var explained, residual float64
	for _, c := range r.Contributions {
		explained += c
	}
	for _, s := range r.Subtracted {
		explained += s
	}
	for _, v := range r.Residuals {
		residual += v
	}
	if explained+residual <= 0 {
		return 0
	}
	return explained / (explained + residual)
}

// Engine runs the attribution steps against one gas table
type Engine struct {
	table *gasdata.Table
	steps []step
}

// New creates an engine. A nil table selects the embedded default.
func New(table *gasdata.Table) *Engine {
	if table == nil {
		table = gasdata.Default()
	}
	return &Engine{table: table, steps: defaultSteps()}
}

// working state of one run
type run struct {
	table      *gasdata.Table
	raw        map[int]float64
	corrected  map[int]float64
	subtracted map[int]float64
	attributed map[int]float64 // parent intensity assigned to a gas, per mass
	res        *Result
}

type step struct {
	name  string
	apply func(r *run) bool // reports whether the gas was found
}

// Priority order: unique identification first, the ambiguous pair last
func defaultSteps() []step {
	return []step{
		{"CO2", parentStep(gasdata.CO2)},
		{"Ar", parentStep(gasdata.Ar)},
		{"O2", parentStep(gasdata.O2)},
		{"H2O", parentStep(gasdata.H2O)},
		{"CH4", methaneStep},
		{"Ne", parentStep(gasdata.Ne)},
		{"H2", parentStep(gasdata.H2)},
		{"He", parentStep(gasdata.He)},
		{"N2/CO", pairStep},
	}
}

// Deconvolve attributes the spectrum to the gases of the table
func (e *Engine) Deconvolve(s spectrum.Spectrum) *Result {
	raw := s.Map()
	r := &run{
		table:      e.table,
		raw:        raw,
		corrected:  make(map[int]float64, len(raw)),
		subtracted: make(map[int]float64),
		attributed: make(map[int]float64),
		res: &Result{
			Contributions: make(map[gasdata.GasKey]float64),
			Residuals:     make(map[int]float64),
		},
	}
	for m, c := range raw {
		r.corrected[m] = c
	}
	for _, st := range e.steps {
		if st.apply(r) {
			r.res.Steps = append(r.res.Steps, st.name)
		}
	}
	for m, c := range r.corrected {
		if rest := c - r.attributed[m]; rest > 0 {
			r.res.Residuals[m] = rest
		}
	}
	r.res.Corrected = r.corrected
	r.res.Subtracted = r.subtracted
	return r.res
}

// Passthrough builds a result without deconvolution: the corrected
// spectrum is the raw input and each gas gets the raw current at the
// parent masses assigned to it.
func Passthrough(table *gasdata.Table, s spectrum.Spectrum) *Result {
	if table == nil {
		table = gasdata.Default()
	}
	raw := s.Map()
	res := &Result{
		Corrected:     make(map[int]float64, len(raw)),
		Contributions: make(map[gasdata.GasKey]float64),
		Residuals:     make(map[int]float64),
		Subtracted:    make(map[int]float64),
	}
	for m, c := range raw {
		res.Corrected[m] = c
	}
	for _, key := range table.Keys() {
		ref := table.ReferenceMass(key)
		if table.GasAtMass(ref) != key {
			continue
		}
		if c, ok := raw[ref]; ok && c > 0 {
			res.Contributions[key] += c
		}
	}
	return res
}

// subtract removes amount from mass m, floored at zero
func (r *run) subtract(m int, amount float64) {
	if amount <= 0 {
		return
	}
	cur := r.corrected[m]
	if amount > cur {
		amount = cur
	}
	if amount <= 0 {
		return
	}
	r.corrected[m] = cur - amount
	r.subtracted[m] += amount
}

// attribute assigns a parent intensity to gas and subtracts its fragments
func (r *run) attribute(key gasdata.GasKey, parent float64) {
	ref := r.table.ReferenceMass(key)
	r.res.Contributions[key] += parent
	r.attributed[ref] += parent
	for _, m := range r.table.FragmentMasses(key) {
		r.subtract(m, parent*r.table.Fraction(key, m))
	}
}

// parentStep attributes the remaining intensity at the gas' parent mass
func parentStep(key gasdata.GasKey) func(r *run) bool {
	return func(r *run) bool {
		ref := r.table.ReferenceMass(key)
		parent := r.corrected[ref] - r.attributed[ref]
		if parent <= 0 {
			return false
		}
		r.attribute(key, parent)
		return true
	}
}

// Methane is identified by its m/z 15 fragment, since m/z 16 is shared
// with O2, H2O and CO2. The estimate is capped by what is left at 16.
func methaneStep(r *run) bool {
	f15 := r.table.Fraction(gasdata.CH4, 15)
	m15 := r.corrected[15]
	if f15 <= 0 || m15 <= 0 {
		return false
	}
	parent := m15 / f15
	ref := r.table.ReferenceMass(gasdata.CH4)
	if _, ok := r.raw[ref]; ok {
		if left := r.corrected[ref] - r.attributed[ref]; parent > left {
			parent = left
		}
	}
	if parent <= 0 {
		return false
	}
	r.attribute(gasdata.CH4, parent)
	return true
}

// pairStep splits the remaining m/z 28 between N2 and CO. Each gas has a
// minor fragment the other lacks (N2 at 14, CO at 12); the parent peaks
// implied by them are used as split ratio when they are plausible.
func pairStep(r *run) bool {
	ref := r.table.ReferenceMass(gasdata.N2)
	shared := r.corrected[ref] - r.attributed[ref]
	if shared <= 0 {
		return false
	}
	var n2Est, coEst float64
	if f := r.table.Fraction(gasdata.N2, 14); f > 0 {
		n2Est = r.corrected[14] / f
	}
	if f := r.table.Fraction(gasdata.CO, 12); f > 0 {
		coEst = r.corrected[12] / f
	}
	// A zero estimate is plausible: that gas is absent
	var n2, co float64
	if sum := n2Est + coEst; sum > 0 && sum <= pairPlausibility*shared {
		n2 = shared * n2Est / sum
		co = shared - n2
		r.res.PairMethod = PairProportional
	} else {
		n2 = shared * pairFallbackN2Share
		co = shared - n2
		r.res.PairMethod = PairFallback
	}
	if n2 > 0 {
		r.attribute(gasdata.N2, n2)
	}
	if co > 0 {
		r.attribute(gasdata.CO, co)
	}
	return true
}
