// Package gasdata holds the static gas reference tables: relative
// sensitivity factors, cracking patterns and the mass to gas assignment.
// The tables are an embedded YAML asset so physical constants can be
// updated without touching the algorithms that use them.
package gasdata

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// GasKey identifies a gas species, e.g. "N2" or "CO2"
type GasKey string

// Gas keys used by the deconvolution and diagnosis code
const (
	H2  GasKey = "H2"
	He  GasKey = "He"
	CH4 GasKey = "CH4"
	H2O GasKey = "H2O"
	Ne  GasKey = "Ne"
	N2  GasKey = "N2"
	CO  GasKey = "CO"
	O2  GasKey = "O2"
	Ar  GasKey = "Ar"
	CO2 GasKey = "CO2"
)

// Name is a bilingual display name
type Name struct {
	EN string `yaml:"en" json:"en"`
	DE string `yaml:"de" json:"de"`
}

// Gas describes one species of the reference library
type Gas struct {
	Key           GasKey          `yaml:"key"`
	Name          Name            `yaml:"name"`
	ReferenceMass int             `yaml:"referenceMass"`
	RSF           float64         `yaml:"rsf"`
	Cracking      map[int]float64 `yaml:"cracking"` // fragment mass -> fraction of parent peak
}

// Table is the immutable set of reference data. It must not be
// modified after loading.
type Table struct {
	Version      string         `yaml:"version"`
	ReferenceGas GasKey         `yaml:"referenceGas"`
	Gases        []Gas          `yaml:"gases"`
	MassToGas    map[int]GasKey `yaml:"massToGas"`

	byKey map[GasKey]*Gas
}

var (
	// ErrUnknownGas is returned when a gas key is not in the table
	ErrUnknownGas = errors.New("gasdata: unknown gas")
	// ErrInvalidTable means the reference data failed validation
	ErrInvalidTable = errors.New("gasdata: invalid table")
)

//go:embed gases.yaml
var defaultTableYAML []byte

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// Default returns the embedded reference table. The table is parsed
// once; a broken embedded asset is a build defect and panics.
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := Load(defaultTableYAML)
		if err != nil {
			panic(err)
		}
		defaultTable = t
	})
	return defaultTable
}

// Load parses and validates a YAML gas table
func Load(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("gasdata: unmarshal: %w", err)
	}
	t.byKey = make(map[GasKey]*Gas, len(t.Gases))
	for i := range t.Gases {
		t.byKey[t.Gases[i].Key] = &t.Gases[i]
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Table) validate() error {
	if len(t.Gases) == 0 {
		return fmt.Errorf("%w: no gases", ErrInvalidTable)
	}
	if _, ok := t.byKey[t.ReferenceGas]; !ok {
		return fmt.Errorf("%w: reference gas %q not defined", ErrInvalidTable, t.ReferenceGas)
	}
	for _, g := range t.Gases {
		if g.RSF <= 0 {
			return fmt.Errorf("%w: %s has non-positive RSF", ErrInvalidTable, g.Key)
		}
		if g.ReferenceMass <= 0 {
			return fmt.Errorf("%w: %s has no reference mass", ErrInvalidTable, g.Key)
		}
		if _, ok := t.MassToGas[g.ReferenceMass]; !ok {
			return fmt.Errorf("%w: reference mass %d of %s not mapped", ErrInvalidTable, g.ReferenceMass, g.Key)
		}
		for m, f := range g.Cracking {
			if f <= 0 || f > 1 {
				return fmt.Errorf("%w: %s fragment %d fraction %g out of (0,1]", ErrInvalidTable, g.Key, m, f)
			}
		}
	}
	for m, k := range t.MassToGas {
		if _, ok := t.byKey[k]; !ok {
			return fmt.Errorf("%w: mass %d maps to unknown gas %q", ErrInvalidTable, m, k)
		}
	}
	return nil
}

// Gas looks up a gas by key
func (t *Table) Gas(key GasKey) (Gas, error) {
	g, ok := t.byKey[key]
	if !ok {
		return Gas{}, fmt.Errorf("%w: %s", ErrUnknownGas, key)
	}
	return *g, nil
}

// RSF returns the relative sensitivity factor of a gas, falling back
// to 1.0 (the reference gas) for unknown keys
func (t *Table) RSF(key GasKey) float64 {
	if g, ok := t.byKey[key]; ok {
		return g.RSF
	}
	return 1.0
}

// Fraction returns the cracking fraction of gas at fragment mass m,
// or 0 when the gas has no fragment there
func (t *Table) Fraction(key GasKey, m int) float64 {
	if g, ok := t.byKey[key]; ok {
		return g.Cracking[m]
	}
	return 0
}

// GasAtMass returns the gas assigned to a spectrum channel. Unmapped
// masses are assigned to the reference gas.
func (t *Table) GasAtMass(m int) GasKey {
	if k, ok := t.MassToGas[m]; ok {
		return k
	}
	return t.ReferenceGas
}

// ReferenceMass returns the parent mass of a gas, or 0 if unknown
func (t *Table) ReferenceMass(key GasKey) int {
	if g, ok := t.byKey[key]; ok {
		return g.ReferenceMass
	}
	return 0
}

// Keys returns all gas keys in table order
func (t *Table) Keys() []GasKey {
	keys := make([]GasKey, len(t.Gases))
	for i, g := range t.Gases {
		keys[i] = g.Key
	}
	return keys
}

// FragmentMasses returns the fragment masses of a gas in ascending order
func (t *Table) FragmentMasses(key GasKey) []int {
	g, ok := t.byKey[key]
	if !ok {
		return nil
	}
	masses := make([]int, 0, len(g.Cracking))
	for m := range g.Cracking {
		masses = append(masses, m)
	}
	sort.Ints(masses)
	return masses
}
