package diagnosis

import (
	"fmt"
	"math"
)

// checks collects weighted evidence. The confidence of a detector is
// the weight share of the passed items.
type checks struct {
	items   []Evidence
	weights []float64
}

func (c *checks) add(weight float64, ev Evidence) bool {
	c.items = append(c.items, ev)
	c.weights = append(c.weights, weight)
	return ev.Passed
}

// ratio checks num/den against [min, max]. A zero denominator fails.
func (c *checks) ratio(weight float64, desc string, num, den, min, max float64) bool {
	ev := Evidence{Kind: KindRatio, Description: desc, Expected: between(min, max)}
	if den > 0 {
		r := num / den
		ev.Value = &r
		ev.Passed = r >= min && r <= max
	}
	return c.add(weight, ev)
}

// ratioAbove checks num/den > min
func (c *checks) ratioAbove(weight float64, desc string, num, den, min float64) bool {
	ev := Evidence{Kind: KindRatio, Description: desc, Expected: atLeast(min)}
	if den > 0 {
		r := num / den
		ev.Value = &r
		ev.Passed = r > min
	} else {
		ev.Passed = num > 0
	}
	return c.add(weight, ev)
}

// ratioBelow checks num/den < max. A zero denominator fails.
func (c *checks) ratioBelow(weight float64, desc string, num, den, max float64) bool {
	ev := Evidence{Kind: KindRatio, Description: desc, Expected: atMost(max)}
	if den > 0 {
		r := num / den
		ev.Value = &r
		ev.Passed = r < max
	}
	return c.add(weight, ev)
}

// presence checks that mass m is detected
func (c *checks) presence(weight float64, in Input, m int, what string) bool {
	v := in.peak(m)
	return c.add(weight, Evidence{
		Kind:        KindPresence,
		Description: fmt.Sprintf("%s at m/z %d", what, m),
		Passed:      in.present(m),
		Value:       &v,
		Expected:    atLeast(in.floor()),
	})
}

// threshold checks value > min
func (c *checks) threshold(weight float64, desc string, value, min float64) bool {
	return c.add(weight, Evidence{
		Kind:        KindThreshold,
		Description: desc,
		Passed:      value > min,
		Value:       &value,
		Expected:    atLeast(min),
	})
}

// flag adds a check without numeric value
func (c *checks) flag(weight float64, kind, desc string, passed bool) bool {
	return c.add(weight, Evidence{Kind: kind, Description: desc, Passed: passed})
}

func (c *checks) confidence() float64 {
	var total, passed float64
	for i, w := range c.weights {
		total += w
		if c.items[i].Passed {
			passed += w
		}
	}
	if total <= 0 {
		return 0
	}
	// weights are written as decimals; keep 0.35+0.30+0.15 at 0.8
	return math.Round(passed/total*1e9) / 1e9
}

func (c *checks) passed(i int) bool {
	return i < len(c.items) && c.items[i].Passed
}

func between(min, max float64) *Range { return &Range{Min: &min, Max: &max} }
func atLeast(min float64) *Range      { return &Range{Min: &min} }
func atMost(max float64) *Range       { return &Range{Max: &max} }

// result assembles a diagnosis from its checks
func result(t Type, sev Severity, c *checks, masses ...int) *Result {
	info := catalog[t]
	return &Result{
		Type:           t,
		Name:           info.name,
		Description:    info.description,
		Confidence:     c.confidence(),
		Severity:       sev,
		Evidence:       c.items,
		Recommendation: info.recommendation,
		AffectedMasses: masses,
	}
}
