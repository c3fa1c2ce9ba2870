// Package pressure converts ion currents into absolute partial pressures
// using a calibration result.
package pressure

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/524D/rgadiag/internal/calibration"
	"github.com/524D/rgadiag/internal/gasdata"
	"github.com/524D/rgadiag/internal/spectrum"
)

// Unit of pressure
type Unit string

const (
	UnitMbar Unit = "mbar"
	UnitPa   Unit = "Pa"
	UnitTorr Unit = "Torr"
)

// Size of one unit in mbar
var unitInMbar = map[Unit]float64{
	UnitMbar: 1,
	UnitPa:   0.01,
	UnitTorr: 1.33322,
}

// A point counts as fragment when deconvolution removed more than this
// share of its raw current
const fragmentShare = 0.5

var (
	// ErrNoCalibration is returned when no calibration has been set
	ErrNoCalibration = errors.New("pressure: no calibration set")
	// ErrUnknownUnit is returned for unsupported pressure units
	ErrUnknownUnit = errors.New("pressure: unknown unit")
)

// ParseUnit converts a unit name, ignoring case. The empty string
// selects mbar.
func ParseUnit(s string) (Unit, error) {
	if s == "" {
		return UnitMbar, nil
	}
	for u := range unitInMbar {
		if strings.EqualFold(string(u), s) {
			return u, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownUnit, s)
}

// ConvertUnit converts v from one unit to another through mbar
func ConvertUnit(v float64, from, to Unit) (float64, error) {
	f, ok := unitInMbar[from]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownUnit, from)
	}
	t, ok := unitInMbar[to]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownUnit, to)
	}
	if from == to {
		return v, nil
	}
	return v * f / t, nil
}

// DataPoint is one spectrum channel expressed as pressure
type DataPoint struct {
	Mass       int            `json:"mass"`
	Current    float64        `json:"current"`
	Pressure   float64        `json:"pressure"`
	Unit       Unit           `json:"unit"`
	Gas        gasdata.GasKey `json:"gas"`
	IsFragment bool           `json:"isFragment"`
}

// GasPartialPressure is the pressure attributed to one gas
type GasPartialPressure struct {
	Gas           gasdata.GasKey `json:"gas"`
	Pressure      float64        `json:"pressure"`
	Unit          Unit           `json:"unit"`
	Percentage    float64        `json:"percentage"`
	ReferenceMass int            `json:"referenceMass"`
}

// Options for ConvertSpectrum
type Options struct {
	Unit           Unit
	UseDeconvolved bool // use the corrected current instead of the raw one
}

// Converter applies one calibration. Set the calibration before use.
type Converter struct {
	calib *calibration.Result
	table *gasdata.Table
}

// NewConverter creates a converter without calibration
func NewConverter() *Converter {
	return &Converter{}
}

// SetCalibration sets the calibration used by all conversions
func (c *Converter) SetCalibration(r *calibration.Result) {
	c.calib = r
	c.table = r.Table
	if c.table == nil {
		c.table = gasdata.Default()
	}
}

func (c *Converter) pressure(current float64, gas gasdata.GasKey, unit Unit) (float64, error) {
	mbar := current / (c.calib.Sensitivity * c.calib.RSF(gas))
	return ConvertUnit(mbar, UnitMbar, unit)
}

// ConvertSpectrum converts every point to a partial pressure
func (c *Converter) ConvertSpectrum(points spectrum.Spectrum, opts Options) ([]DataPoint, error) {
	if c.calib == nil {
		return nil, ErrNoCalibration
	}
	if opts.Unit == "" {
		opts.Unit = UnitMbar
	}
	var corrected map[int]float64
	if d := c.calib.Deconvolution; d != nil {
		corrected = d.Corrected
	}
	out := make([]DataPoint, 0, len(points))
	for _, pt := range points {
		gas := c.table.GasAtMass(pt.Mass)
		cur := pt.Current
		corr, hasCorr := corrected[pt.Mass]
		if opts.UseDeconvolved && hasCorr {
			cur = corr
		}
		p, err := c.pressure(cur, gas, opts.Unit)
		if err != nil {
			return nil, err
		}
		out = append(out, DataPoint{
			Mass:       pt.Mass,
			Current:    pt.Current,
			Pressure:   p,
			Unit:       opts.Unit,
			Gas:        gas,
			IsFragment: hasCorr && pt.Current > 0 && corr < fragmentShare*pt.Current,
		})
	}
	return out, nil
}

// GasPartialPressures converts the per gas deconvolution contributions
// into pressures, sorted by descending pressure
func (c *Converter) GasPartialPressures(unit Unit) ([]GasPartialPressure, error) {
	if c.calib == nil {
		return nil, ErrNoCalibration
	}
	if unit == "" {
		unit = UnitMbar
	}
	if _, ok := unitInMbar[unit]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownUnit, unit)
	}
	var out []GasPartialPressure
	var total float64
	if d := c.calib.Deconvolution; d != nil {
		for gas, contrib := range d.Contributions {
			if contrib <= 0 {
				continue
			}
			p, err := c.pressure(contrib, gas, unit)
			if err != nil {
				return nil, err
			}
			total += p
			out = append(out, GasPartialPressure{
				Gas:           gas,
				Pressure:      p,
				Unit:          unit,
				ReferenceMass: c.table.ReferenceMass(gas),
			})
		}
	}
	for i := range out {
		if total > 0 {
			out[i].Percentage = out[i].Pressure / total * 100
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pressure != out[j].Pressure {
			return out[i].Pressure > out[j].Pressure
		}
		return out[i].Gas < out[j].Gas
	})
	return out, nil
}
