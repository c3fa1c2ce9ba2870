// Package sysstate infers the bakeout state of a vacuum system from its
// spectrum. Quality scoring and the analysis summary both use it.
package sysstate

import "github.com/524D/rgadiag/internal/metadata"

const (
	h2Mass  = 2
	h2oMass = 18

	// H2 this many times above water marks a baked system
	strongH2Ratio = 3.0
	// with fewer significant peaks, any H2 excess over water is enough
	fewPeaks = 8
)

// Infer returns the system state for a spectrum. peaks is the normalised
// peak map and significantPeaks the number of peaks above the LOD. A
// known baked state is never changed; unknown and unbaked states are
// upgraded to baked when the spectrum looks like a clean UHV system.
func Infer(known metadata.SystemState, peaks map[int]float64, significantPeaks int) metadata.SystemState {
	if known == metadata.StateBaked {
		return known
	}
	if LooksBaked(peaks, significantPeaks) {
		return metadata.StateBaked
	}
	if known == "" {
		return metadata.StateUnknown
	}
	return known
}

// LooksBaked reports whether hydrogen dominates water the way it does
// after a bakeout
func LooksBaked(peaks map[int]float64, significantPeaks int) bool {
	h2, h2o := peaks[h2Mass], peaks[h2oMass]
	if h2 <= 0 {
		return false
	}
	if h2 > strongH2Ratio*h2o {
		return true
	}
	return h2 > h2o && significantPeaks < fewPeaks
}
