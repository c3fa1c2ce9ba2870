// Package spectrum contains the RGA spectrum representation shared by
// all analysis stages, together with input validation.
package spectrum

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Point is one acquired channel: integer m/z and the ion current in A
type Point struct {
	Mass    int     `json:"mass"`
	Current float64 `json:"current"`
}

// Spectrum is an ordered list of channels. It is treated as immutable
// input by every stage.
type Spectrum []Point

// MinPoints is the minimal number of channels for a usable spectrum
const MinPoints = 3

// Validation codes
const (
	CodeNoData          = "NO_DATA"
	CodeTooFewPoints    = "TOO_FEW_POINTS"
	CodeNoValidCurrents = "NO_VALID_CURRENTS"
	CodeNoSignal        = "NO_SIGNAL"
)

// ValidationError is a fatal input problem. Code is machine readable,
// Message is meant for direct display.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("spectrum validation failed (%s): %s", e.Code, e.Message)
}

// Is makes errors.Is match on the code, so callers can test against
// the Err* sentinels below.
func (e *ValidationError) Is(target error) bool {
	var t *ValidationError
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

var (
	ErrNoData          = &ValidationError{Code: CodeNoData, Message: "the spectrum contains no data points"}
	ErrTooFewPoints    = &ValidationError{Code: CodeTooFewPoints, Message: "the spectrum contains too few data points"}
	ErrNoValidCurrents = &ValidationError{Code: CodeNoValidCurrents, Message: "the spectrum contains no valid ion currents"}
	ErrNoSignal        = &ValidationError{Code: CodeNoSignal, Message: "no detectable signal in the spectrum"}
)

// Validate checks that the spectrum can be analysed
func (s Spectrum) Validate() error {
	if len(s) == 0 {
		return ErrNoData
	}
	if len(s) < MinPoints {
		return &ValidationError{
			Code:    CodeTooFewPoints,
			Message: fmt.Sprintf("the spectrum contains %d data points, at least %d are needed", len(s), MinPoints),
		}
	}
	valid := 0
	signal := false
	for _, p := range s {
		if p.Mass <= 0 || math.IsNaN(p.Current) || math.IsInf(p.Current, 0) || p.Current < 0 {
			continue
		}
		valid++
		if p.Current > 0 {
			signal = true
		}
	}
	if valid == 0 {
		return ErrNoValidCurrents
	}
	if !signal {
		return ErrNoSignal
	}
	return nil
}

// Map returns the spectrum as mass -> current. Invalid currents are
// dropped; duplicate masses are summed.
func (s Spectrum) Map() map[int]float64 {
	m := make(map[int]float64, len(s))
	for _, p := range s {
		if p.Mass <= 0 || math.IsNaN(p.Current) || math.IsInf(p.Current, 0) || p.Current < 0 {
			continue
		}
		m[p.Mass] += p.Current
	}
	return m
}

// FromMap builds a spectrum sorted by mass
func FromMap(m map[int]float64) Spectrum {
	s := make(Spectrum, 0, len(m))
	for mass, c := range m {
		s = append(s, Point{Mass: mass, Current: c})
	}
	sort.Slice(s, func(i, j int) bool { return s[i].Mass < s[j].Mass })
	return s
}

// Normalize scales the spectrum so that the largest current is 1.0.
// An all-zero spectrum yields an empty map.
func (s Spectrum) Normalize() map[int]float64 {
	raw := s.Map()
	var max float64
	for _, c := range raw {
		if c > max {
			max = c
		}
	}
	norm := make(map[int]float64, len(raw))
	if max <= 0 {
		return norm
	}
	for mass, c := range raw {
		norm[mass] = c / max
	}
	return norm
}
