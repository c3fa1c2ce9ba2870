// Package metadata extracts measurement conditions that operators
// embed in RGA export file names, such as
// "chamberA_2,5e-9mbar_1450V_23C_after bakeout.csv".
package metadata

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// SystemState is the bakeout state of the vacuum system
type SystemState string

const (
	StateUnknown SystemState = "unknown"
	StateBaked   SystemState = "baked"
	StateUnbaked SystemState = "unbaked"
)

// Metadata holds the optional values found in an identifier. Nil
// pointers mean "unknown" and must never be treated as zero.
type Metadata struct {
	TotalPressure *float64       `json:"totalPressure,omitempty"` // mbar
	SEMVoltage    *float64       `json:"semVoltage,omitempty"`    // V
	Temperature   *float64       `json:"temperature,omitempty"`   // degree Celsius
	Duration      *time.Duration `json:"duration,omitempty"`
	SystemState   SystemState    `json:"systemState"`
	Description   string         `json:"description,omitempty"`
	Source        string         `json:"source,omitempty"` // the parsed identifier
}

// Number with either decimal separator
const num = `(\d+(?:[.,]\d+)?)`

// Extraction rules. The order matters: every match is cut from the
// working string before the next rule runs, so e.g. the "e-9" of a
// pressure cannot be mistaken for part of a voltage.
var (
	rePressure    = regexp.MustCompile(`(?i)` + num + `\s*[_ ]?\s*e\s*([-+]?\s*\d+)\s*[_ ]?\s*mbar`)
	reVoltage     = regexp.MustCompile(`(?i)(?:^|[^\d.,])(\d{3,4})\s*(v(?:olts?)?)(?:[^a-z]|$)`)
	reTemperature = regexp.MustCompile(`(?i)(?:^|[^\d.,])(\d{2,3}(?:[.,]\d+)?)\s*((?:°\s*)?c)(?:[^a-z]|$)`)
	reDuration    = regexp.MustCompile(`(?i)(?:^|[^\d.,])` + num + `\s*(h|hours?|min|minutes?)(?:[^a-z]|$)`)
)

type statePattern struct {
	re    *regexp.Regexp
	state SystemState
}

// State keywords, first match wins. Negated and "before" phrases have
// to come before the bare "baked" keyword.
var statePatterns = []statePattern{
	{regexp.MustCompile(`(?i)before[\s_-]*bak(e|ing)(\s*-?\s*out)?`), StateUnbaked},
	{regexp.MustCompile(`(?i)vor[\s_-]*(dem[\s_-]*)?ausheiz\w*`), StateUnbaked},
	{regexp.MustCompile(`(?i)not[\s_-]*baked`), StateUnbaked},
	{regexp.MustCompile(`(?i)un[\s_-]?baked`), StateUnbaked},
	{regexp.MustCompile(`(?i)nicht[\s_-]*(aus)?geheizt`), StateUnbaked},
	{regexp.MustCompile(`(?i)ungeheizt`), StateUnbaked},
	{regexp.MustCompile(`(?i)after[\s_-]*bak(e|ing)(\s*-?\s*out)?`), StateBaked},
	{regexp.MustCompile(`(?i)nach[\s_-]*(dem[\s_-]*)?ausheiz\w*`), StateBaked},
	{regexp.MustCompile(`(?i)ausgeheizt`), StateBaked},
	{regexp.MustCompile(`(?i)baked(\s*-?\s*out)?`), StateBaked},
	{regexp.MustCompile(`(?i)bakeout`), StateBaked},
}

// Parse extracts whatever metadata the identifier contains. It never
// fails; fields that are not found stay nil.
func Parse(identifier string) Metadata {
	md := Metadata{SystemState: StateUnknown, Source: identifier}
	work := stripExt(filepath.Base(identifier))

	if m := rePressure.FindStringSubmatchIndex(work); m != nil {
		mant := strings.Replace(work[m[2]:m[3]], ",", ".", 1)
		exp := strings.ReplaceAll(work[m[4]:m[5]], " ", "")
		if p, err := strconv.ParseFloat(mant+"e"+exp, 64); err == nil {
			md.TotalPressure = &p
		}
		work = cut(work, m[0], m[1])
	}
	if m := reVoltage.FindStringSubmatchIndex(work); m != nil {
		if v, ok := parseNumber(work[m[2]:m[3]]); ok {
			md.SEMVoltage = &v
		}
		work = cut(work, m[2], m[5])
	}
	if m := reTemperature.FindStringSubmatchIndex(work); m != nil {
		if v, ok := parseNumber(work[m[2]:m[3]]); ok {
			md.Temperature = &v
		}
		work = cut(work, m[2], m[5])
	}
	if m := reDuration.FindStringSubmatchIndex(work); m != nil {
		if v, ok := parseNumber(work[m[2]:m[3]]); ok {
			unit := time.Hour
			if strings.HasPrefix(strings.ToLower(work[m[4]:m[5]]), "min") {
				unit = time.Minute
			}
			d := time.Duration(v * float64(unit))
			md.Duration = &d
		}
		work = cut(work, m[2], m[5])
	}
	for _, sp := range statePatterns {
		if loc := sp.re.FindStringIndex(work); loc != nil {
			md.SystemState = sp.state
			work = cut(work, loc[0], loc[1])
			break
		}
	}
	md.Description = cleanDescription(work)
	return md
}

var reExt = regexp.MustCompile(`\.[A-Za-z][A-Za-z0-9]{0,4}$`)

// stripExt removes a file extension. Ext alone would treat the decimal
// part of "1.0 E-7 mbar" as an extension.
func stripExt(s string) string {
	return reExt.ReplaceAllString(s, "")
}

// parseNumber accepts comma or dot as decimal separator
func parseNumber(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
	return v, err == nil
}

func cut(s string, from, to int) string {
	if to > len(s) {
		to = len(s)
	}
	return s[:from] + " " + s[to:]
}

var reSeparators = regexp.MustCompile(`[\s_]+`)

func cleanDescription(s string) string {
	s = reSeparators.ReplaceAllString(s, " ")
	return strings.Trim(s, " -_.,")
}

// HasPressure reports whether a total pressure was found
func (m Metadata) HasPressure() bool { return m.TotalPressure != nil }

// HasVoltage reports whether a SEM voltage was found
func (m Metadata) HasVoltage() bool { return m.SEMVoltage != nil }

// HasTemperature reports whether a temperature was found
func (m Metadata) HasTemperature() bool { return m.Temperature != nil }
