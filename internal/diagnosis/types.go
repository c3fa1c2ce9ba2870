// Package diagnosis derives vacuum system diagnoses from a normalised
// RGA spectrum. Each detector encodes one physical or chemical
// signature and reports the evidence it checked; the Engine runs a fixed
// registry of detectors and ranks their results.
package diagnosis

import (
	"math"

	"github.com/524D/rgadiag/internal/gasdata"
	"github.com/524D/rgadiag/internal/lod"
	"github.com/524D/rgadiag/internal/metadata"
)

// Type identifies a diagnosis
type Type string

const (
	AirLeak                  Type = "air_leak"
	WaterOutgassing          Type = "water_outgassing"
	InsufficientBakeout      Type = "insufficient_bakeout"
	HydrogenDominant         Type = "hydrogen_dominant"
	HydrocarbonContamination Type = "hydrocarbon_contamination"
	HeavyHydrocarbons        Type = "heavy_hydrocarbons"
	PFPEContamination        Type = "pfpe_contamination"
	SiliconeContamination    Type = "silicone_contamination"
	SolventResidue           Type = "solvent_residue"
	HeliumLeak               Type = "helium_leak"
	CO2Elevated              Type = "co2_elevated"
	CODominant               Type = "co_dominant"
	ArgonPresent             Type = "argon_present"
	Ammonia                  Type = "ammonia"
	Methane                  Type = "methane"
	ChlorineContamination    Type = "chlorine_contamination"
	H2SPresent               Type = "h2s_present"
	ESDArtifact              Type = "esd_artifact"
	HighNoiseFloor           Type = "high_noise_floor"
	LowSignal                Type = "low_signal"
)

// Severity of a diagnosis
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// rank orders severities, most severe first
func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	}
	return 2
}

// Text is a bilingual text
type Text struct {
	EN string `json:"en"`
	DE string `json:"de"`
}

// Evidence kinds
const (
	KindRatio     = "ratio"
	KindPresence  = "presence"
	KindAbsence   = "absence"
	KindIsotope   = "isotope"
	KindThreshold = "threshold"
	KindContext   = "context"
)

// Range is an expected value range; nil bounds are open
type Range struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Evidence is one sub-check of a detector
type Evidence struct {
	Kind        string   `json:"kind"`
	Description string   `json:"description"`
	Passed      bool     `json:"passed"`
	Value       *float64 `json:"value,omitempty"`
	Expected    *Range   `json:"expected,omitempty"`
}

// Result is one diagnosis
type Result struct {
	Type           Type       `json:"type"`
	Name           Text       `json:"name"`
	Description    Text       `json:"description"`
	Confidence     float64    `json:"confidence"`
	Severity       Severity   `json:"severity"`
	Evidence       []Evidence `json:"evidence"`
	Recommendation Text       `json:"recommendation"`
	AffectedMasses []int      `json:"affectedMasses"`
}

// Input of every detector. Peaks are normalised to a maximum of 1.0.
// The optional fields may be nil.
type Input struct {
	Peaks         map[int]float64
	TotalPressure *float64 // mbar
	LOD           *lod.Result
	Metadata      *metadata.Metadata
	Table         *gasdata.Table // cracking patterns; nil selects the embedded table
}

// Presence threshold on the normalised scale when no LOD is known
const defaultFloor = 1e-3

func (in Input) peak(m int) float64 {
	v := in.Peaks[m]
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}

func (in Input) table() *gasdata.Table {
	if in.Table != nil {
		return in.Table
	}
	return gasdata.Default()
}

// floor is the detection threshold
func (in Input) floor() float64 {
	if in.LOD != nil && in.LOD.LOD > 0 {
		return in.LOD.LOD
	}
	return defaultFloor
}

// present reports whether mass m is above the detection threshold
func (in Input) present(m int) bool {
	return in.peak(m) > in.floor()
}

// above reports whether mass m exceeds both the detection threshold
// and min
func (in Input) above(m int, min float64) bool {
	return in.peak(m) > math.Max(in.floor(), min)
}

// significantCount counts the peaks above the detection threshold
func (in Input) significantCount() int {
	n := 0
	for m := range in.Peaks {
		if in.present(m) {
			n++
		}
	}
	return n
}

func (in Input) state() metadata.SystemState {
	if in.Metadata == nil {
		return metadata.StateUnknown
	}
	return in.Metadata.SystemState
}
