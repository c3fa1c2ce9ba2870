package diagnosis

import (
	"fmt"

	"github.com/524D/rgadiag/internal/gasdata"
	"github.com/524D/rgadiag/internal/lod"
	"github.com/524D/rgadiag/internal/metadata"
)

// ----- Leaks -----

func detectAirLeak(in Input) (*Result, error) {
	m14, m28, m32, m40 := in.peak(14), in.peak(28), in.peak(32), in.peak(40)
	if !in.above(32, 0.01) {
		return nil, nil
	}
	argon := 0.0
	if in.present(40) {
		argon = m40
	}
	var c checks
	n2o2 := c.ratio(0.35, "N2/O2 ratio m/z 28 / 32 (air: 3.7)", m28, m32, 2.5, 5.0)
	ar := c.ratio(0.30, "Ar/O2 ratio m/z 40 / 32 (air: 0.27)", argon, m32, 0.02, 0.5)
	c.ratio(0.20, "N2 fragment ratio m/z 28 / 14 (N2: 14)", m28, m14, 7, 20)
	c.threshold(0.15, "O2 above detection limit and 1 % of the largest peak", m32, max(in.floor(), 0.01))
	if c.confidence() < 0.3 {
		return nil, nil
	}
	sev := SeverityWarning
	if n2o2 && ar {
		sev = SeverityCritical
	}
	return result(AirLeak, sev, &c, 14, 28, 32, 40), nil
}

func detectHeliumLeak(in Input) (*Result, error) {
	if !in.present(4) {
		return nil, nil
	}
	m3, m4 := in.peak(3), in.peak(4)
	var c checks
	c.presence(0.5, in, 4, "He+")
	c.threshold(0.3, "helium level", m4, 0.05)
	c.flag(0.2, KindAbsence, "m/z 3 (HD+, H3+) below 10 % of m/z 4", m3 < 0.1*m4)
	if c.confidence() < 0.5 {
		return nil, nil
	}
	sev := SeverityWarning
	if m4 >= 0.1 {
		sev = SeverityCritical
	}
	return result(HeliumLeak, sev, &c, 4), nil
}

// ----- Water and hydrogen -----

func detectWaterOutgassing(in Input) (*Result, error) {
	if !in.above(18, 0.1) {
		return nil, nil
	}
	m17, m18, m28 := in.peak(17), in.peak(18), in.peak(28)
	var c checks
	largest := c.flag(0.4, KindThreshold, "water is the largest peak", isLargest(in, 18))
	c.ratio(0.3, "OH+/H2O+ ratio m/z 17 / 18 (water: 0.23)", m17, m18, 0.15, 0.35)
	c.ratioAbove(0.3, "water above m/z 28", m18, m28, 1)
	if c.confidence() < 0.5 {
		return nil, nil
	}
	sev := SeverityInfo
	if largest {
		sev = SeverityWarning
	}
	return result(WaterOutgassing, sev, &c, 17, 18), nil
}

func detectInsufficientBakeout(in Input) (*Result, error) {
	if in.state() != metadata.StateBaked || !in.present(18) {
		return nil, nil
	}
	m2, m18 := in.peak(2), in.peak(18)
	var c checks
	c.ratioAbove(0.5, "H2O/H2 ratio m/z 18 / 2 (baked: < 1)", m18, m2, 1)
	c.threshold(0.3, "water level", m18, 0.2)
	c.presence(0.2, in, 17, "OH+")
	if !c.passed(0) || c.confidence() < 0.5 {
		return nil, nil
	}
	return result(InsufficientBakeout, SeverityWarning, &c, 2, 17, 18), nil
}

func detectHydrogenDominant(in Input) (*Result, error) {
	if !in.present(2) {
		return nil, nil
	}
	m2, m18 := in.peak(2), in.peak(18)
	heavy := 0
	for m := range in.Peaks {
		if m > 44 && in.present(m) {
			heavy++
		}
	}
	var c checks
	c.flag(0.5, KindThreshold, "hydrogen is the largest peak", isLargest(in, 2))
	c.ratioBelow(0.25, "H2O/H2 ratio m/z 18 / 2", m18, m2, 0.3)
	c.flag(0.25, KindAbsence, "no significant peaks above m/z 44", heavy == 0)
	if c.confidence() < 0.75 {
		return nil, nil
	}
	return result(HydrogenDominant, SeverityInfo, &c, 2), nil
}

// ----- Organic contamination -----

var alkylSeries = []int{39, 41, 43, 55, 57}

func detectHydrocarbons(in Input) (*Result, error) {
	if !in.present(41) && !in.present(43) {
		return nil, nil
	}
	var sum float64
	for _, m := range alkylSeries {
		sum += in.peak(m)
	}
	spaced := 0
	for _, m := range []int{43, 57, 71} {
		if in.present(m) {
			spaced++
		}
	}
	var c checks
	c.flag(0.3, KindPresence, "alkyl fragments at m/z 41 and 43", in.present(41) && in.present(43))
	c.flag(0.3, KindPresence, "C4 fragments at m/z 55 or 57", in.present(55) || in.present(57))
	c.flag(0.2, KindPresence, "CnH2n+1 series spaced by 14 (m/z 43, 57, 71)", spaced >= 2)
	c.threshold(0.2, "sum of alkyl fragments", sum, 0.05)
	if c.confidence() < 0.5 {
		return nil, nil
	}
	sev := SeverityWarning
	if sum > 0.2 {
		sev = SeverityCritical
	}
	return result(HydrocarbonContamination, sev, &c, alkylSeries...), nil
}

func detectHeavyHydrocarbons(in Input) (*Result, error) {
	if !in.present(71) && !in.present(85) {
		return nil, nil
	}
	var sum float64
	for m, v := range in.Peaks {
		if m > 70 && v > 0 {
			sum += v
		}
	}
	var c checks
	c.presence(0.3, in, 71, "C5H11+")
	c.presence(0.3, in, 85, "C6H13+")
	c.flag(0.2, KindPresence, "C7/C8 fragments at m/z 99 or 113", in.present(99) || in.present(113))
	c.threshold(0.2, "sum of peaks above m/z 70", sum, 0.01)
	if c.confidence() < 0.5 {
		return nil, nil
	}
	return result(HeavyHydrocarbons, SeverityWarning, &c, 71, 85, 99, 113), nil
}

func detectPFPE(in Input) (*Result, error) {
	if !in.present(69) {
		return nil, nil
	}
	m67, m69, m71 := in.peak(67), in.peak(69), in.peak(71)
	var c checks
	c.presence(0.35, in, 69, "CF3+")
	c.flag(0.15, KindRatio, "m/z 69 exceeds neighbouring m/z 67 and 71", m69 > m67 && m69 > m71)
	c.presence(0.15, in, 47, "CFO+")
	c.presence(0.2, in, 119, "C2F5+")
	c.flag(0.15, KindPresence, "CF2+ (m/z 50), C2F3O+ (m/z 97) or C3F7+ (m/z 169)",
		in.present(50) || in.present(97) || in.present(169))
	if c.confidence() < 0.5 {
		return nil, nil
	}
	return result(PFPEContamination, SeverityCritical, &c, 47, 50, 69, 97, 119, 169), nil
}

func detectSilicone(in Input) (*Result, error) {
	if !in.present(73) {
		return nil, nil
	}
	var c checks
	c.presence(0.35, in, 73, "Si(CH3)3+")
	c.presence(0.25, in, 147, "siloxane fragment")
	c.flag(0.25, KindPresence, "cyclic siloxanes at m/z 207 or 281", in.present(207) || in.present(281))
	c.ratioAbove(0.15, "m/z 73 / 57 (hydrocarbons: < 1)", in.peak(73), in.peak(57), 1)
	if c.confidence() < 0.5 {
		return nil, nil
	}
	return result(SiliconeContamination, SeverityWarning, &c, 73, 147, 207, 281), nil
}

func detectSolvent(in Input) (*Result, error) {
	acetone := 0.0
	if in.present(58) {
		acetone = in.peak(58)
	}
	var c checks
	alcohol := c.presence(0.3, in, 31, "CH2OH+ (methanol, ethanol)")
	c.presence(0.2, in, 45, "C2H5O+ (ethanol, isopropanol)")
	ketone := c.ratio(0.3, "acetone parent/fragment m/z 58 / 43 (acetone: 0.3)", acetone, in.peak(43), 0.2, 0.6)
	c.presence(0.2, in, 46, "ethanol parent")
	if !alcohol && !ketone {
		return nil, nil
	}
	conf := c.confidence()
	if conf < 0.3 {
		return nil, nil
	}
	sev := SeverityInfo
	if conf >= 0.5 {
		sev = SeverityWarning
	}
	return result(SolventResidue, sev, &c, 31, 43, 45, 46, 58), nil
}

// ----- Other gases -----

func detectCO2(in Input) (*Result, error) {
	if !in.present(44) {
		return nil, nil
	}
	m28, m44, m45 := in.peak(28), in.peak(44), in.peak(45)
	var c checks
	c.threshold(0.5, "CO2 level", m44, 0.1)
	c.ratioAbove(0.3, "CO2 relative to m/z 28", m44, m28, 0.2)
	c.ratio(0.2, "13C isotope m/z 45 / 44 (CO2: 0.012)", m45, m44, 0.005, 0.03)
	if c.confidence() < 0.5 {
		return nil, nil
	}
	sev := SeverityInfo
	if m44 >= 0.3 {
		sev = SeverityWarning
	}
	return result(CO2Elevated, sev, &c, 44, 45), nil
}

func detectCODominant(in Input) (*Result, error) {
	if !in.above(28, 0.3) {
		return nil, nil
	}
	m12, m14, m28 := in.peak(12), in.peak(14), in.peak(28)
	var c checks
	c.threshold(0.3, "m/z 28 level", m28, 0.3)
	c.ratioBelow(0.4, "N2 fragment m/z 14 / 28 (N2: 0.07)", m14, m28, 0.03)
	c.ratio(0.3, "C+ fragment m/z 12 / 28 (CO: 0.045)", m12, m28, 0.02, 0.1)
	if c.confidence() < 0.6 {
		return nil, nil
	}
	return result(CODominant, SeverityInfo, &c, 12, 14, 28), nil
}

func detectArgon(in Input) (*Result, error) {
	if !in.present(40) {
		return nil, nil
	}
	m20, m36, m40 := in.peak(20), in.peak(36), in.peak(40)
	var c checks
	c.presence(0.4, in, 40, "Ar+")
	c.ratio(0.3, "Ar++ m/z 20 / 40 (argon: 0.15)", m20, m40, 0.05, 0.3)
	c.add(0.3, isotopeRatio("36Ar/40Ar m/z 36 / 40 (argon: 0.0034)", m36, m40, 0.002, 0.006))
	// at least one confirmation besides m/z 40
	if c.confidence() < 0.7 {
		return nil, nil
	}
	return result(ArgonPresent, SeverityInfo, &c, 20, 36, 40), nil
}

func detectAmmonia(in Input) (*Result, error) {
	if !in.present(17) {
		return nil, nil
	}
	m16, m17, m18 := in.peak(16), in.peak(17), in.peak(18)
	var c checks
	excess := c.ratioAbove(0.5, "m/z 17 / 18 (water alone: 0.23)", m17, m18, 0.5)
	c.presence(0.2, in, 17, "NH3+")
	c.ratio(0.3, "NH2+ m/z 16 / 17 (ammonia: 0.8)", m16, m17, 0.5, 1.0)
	if !excess || c.confidence() < 0.5 {
		return nil, nil
	}
	return result(Ammonia, SeverityWarning, &c, 15, 16, 17), nil
}

func detectMethane(in Input) (*Result, error) {
	if !in.present(15) {
		return nil, nil
	}
	m13, m15, m16 := in.peak(13), in.peak(15), in.peak(16)
	var c checks
	c.presence(0.4, in, 15, "CH3+")
	c.ratio(0.35, "CH3+/CH4+ m/z 15 / 16 (methane: 0.85)", m15, m16, 0.7, 1.0)
	c.ratio(0.25, "CH+ m/z 13 / 15 (methane: 0.09)", m13, m15, 0.05, 0.2)
	if c.confidence() < 0.6 {
		return nil, nil
	}
	return result(Methane, SeverityInfo, &c, 13, 15, 16), nil
}

func detectChlorine(in Input) (*Result, error) {
	if !in.present(35) && !in.present(36) {
		return nil, nil
	}
	m35, m36, m37, m38 := in.peak(35), in.peak(36), in.peak(37), in.peak(38)
	var c checks
	c.presence(0.25, in, 35, "35Cl+")
	c.presence(0.15, in, 37, "37Cl+")
	cl := c.add(0.35, isotopeRatio("35Cl/37Cl m/z 35 / 37 (chlorine: 3.1)", m35, m37, 2.5, 3.7))
	hcl := c.add(0.25, isotopeRatio("H35Cl/H37Cl m/z 36 / 38 (HCl: 3.1)", m36, m38, 2.5, 3.7))
	if !cl && !hcl || c.confidence() < 0.5 {
		return nil, nil
	}
	return result(ChlorineContamination, SeverityWarning, &c, 35, 36, 37, 38), nil
}

func detectH2S(in Input) (*Result, error) {
	if !in.present(34) {
		return nil, nil
	}
	var c checks
	c.presence(0.3, in, 34, "H2S+")
	excess := c.ratioAbove(0.4, "m/z 34 / 32 (O2 isotope alone: 0.004)", in.peak(34), in.peak(32), 0.05)
	c.presence(0.3, in, 33, "HS+")
	if !excess || c.confidence() < 0.6 {
		return nil, nil
	}
	return result(H2SPresent, SeverityWarning, &c, 32, 33, 34), nil
}

// ----- Instrument artifacts -----

func detectESD(in Input) (*Result, error) {
	tab := in.table()
	// O+ expected from the cracking of O2, H2O, CO2 and CH4
	expected16 := tab.Fraction(gasdata.O2, 16)*in.peak(32) +
		tab.Fraction(gasdata.H2O, 16)*in.peak(18) +
		tab.Fraction(gasdata.CO2, 16)*in.peak(44)
	if f := tab.Fraction(gasdata.CH4, 15); f > 0 {
		expected16 += in.peak(15) / f
	}
	var c checks
	c.threshold(0.4, "O+ at m/z 16 beyond twice the expected fragment level", in.peak(16)-2*expected16, in.floor())
	c.flag(0.3, KindPresence, "F+ at m/z 19 without CF3+ at m/z 69", in.present(19) && !in.present(69))
	c.ratioAbove(0.3, "H+ m/z 1 / 2 (H2 alone: 0.05)", in.peak(1), in.peak(2), 0.2)
	if c.confidence() < 0.4 {
		return nil, nil
	}
	return result(ESDArtifact, SeverityInfo, &c, 1, 16, 19), nil
}

func detectHighNoiseFloor(in Input) (*Result, error) {
	if in.LOD == nil || in.LOD.Method == lod.MethodDefault {
		return nil, nil
	}
	l := in.LOD.LOD
	if l <= 0.01 {
		return nil, nil
	}
	var c checks
	c.threshold(0.5, "LOD relative to the largest peak", l, 0.01)
	high := c.threshold(0.3, "LOD above 5 % of the largest peak", l, 0.05)
	c.flag(0.2, KindContext, "LOD from empty reference masses",
		in.LOD.Method == lod.MethodPrimary || in.LOD.Method == lod.MethodBackup)
	sev := SeverityInfo
	if high {
		sev = SeverityWarning
	}
	return result(HighNoiseFloor, sev, &c, in.LOD.UsedMasses...), nil
}

func detectLowSignal(in Input) (*Result, error) {
	n := in.significantCount()
	if n >= 5 {
		return nil, nil
	}
	count := float64(n)
	var c checks
	c.add(0.5, Evidence{Kind: KindThreshold, Description: "fewer than 5 peaks above the detection limit",
		Passed: n < 5, Value: &count, Expected: atMost(4)})
	c.add(0.3, Evidence{Kind: KindThreshold, Description: "fewer than 3 peaks above the detection limit",
		Passed: n < 3, Value: &count, Expected: atMost(2)})
	tp := in.TotalPressure
	c.flag(0.2, KindContext, "total pressure below 1e-9 mbar", tp != nil && *tp < 1e-9)
	if c.confidence() < 0.5 {
		return nil, nil
	}
	sev := SeverityWarning
	if in.state() == metadata.StateBaked {
		sev = SeverityInfo
	}
	return result(LowSignal, sev, &c), nil
}

// ----- helpers -----

func isotopeRatio(desc string, num, den, min, max float64) Evidence {
	ev := Evidence{Kind: KindIsotope, Description: desc, Expected: between(min, max)}
	if den > 0 && num > 0 {
		r := num / den
		ev.Value = &r
		ev.Passed = r >= min && r <= max
	}
	return ev
}

// isLargest reports whether no other peak exceeds mass m
func isLargest(in Input, m int) bool {
	v := in.peak(m)
	if v <= 0 {
		return false
	}
	for other, w := range in.Peaks {
		if other != m && w > v {
			return false
		}
	}
	return true
}

func (r Result) String() string {
	return fmt.Sprintf("%s (%s, %.0f%%)", r.Type, r.Severity, r.Confidence*100)
}
