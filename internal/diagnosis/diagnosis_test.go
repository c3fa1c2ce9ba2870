package diagnosis

import (
	"errors"
	"math/rand"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/524D/rgadiag/internal/gasdata"
	"github.com/524D/rgadiag/internal/lod"
	"github.com/524D/rgadiag/internal/metadata"
	"github.com/524D/rgadiag/internal/metrics"
)

func find(results []Result, t Type) *Result {
	for i := range results {
		if results[i].Type == t {
			return &results[i]
		}
	}
	return nil
}

func TestAirLeak(t *testing.T) {
	in := Input{Peaks: map[int]float64{28: 1.0, 14: 0.01, 32: 0.27, 40: 0.073}}
	r, err := detectAirLeak(in)
	if err != nil {
		t.Fatal(err)
	}
	if r == nil {
		t.Fatal("Expected an air leak")
	}
	if r.Confidence != 0.8 {
		t.Errorf("Expected confidence 0.8, got %v", r.Confidence)
	}
	if r.Severity != SeverityCritical {
		t.Errorf("Expected critical, got %s", r.Severity)
	}
	passed := make([]bool, len(r.Evidence))
	for i, ev := range r.Evidence {
		passed[i] = ev.Passed
	}
	if diff := cmp.Diff([]bool{true, true, false, true}, passed); diff != "" {
		t.Errorf("Evidence mismatch (-want +got):\n%s", diff)
	}
	if r.Name.EN == "" || r.Name.DE == "" || r.Recommendation.DE == "" {
		t.Errorf("Missing display texts: %+v", r.Name)
	}
}

func TestAirLeakNeedsOxygen(t *testing.T) {
	in := Input{Peaks: map[int]float64{28: 1.0, 14: 0.07, 40: 0.01}}
	r, err := detectAirLeak(in)
	if err != nil || r != nil {
		t.Errorf("Expected no air leak without O2, got %v, %v", r, err)
	}
}

func TestFullDiagnosisOrder(t *testing.T) {
	e := New()
	in := Input{Peaks: map[int]float64{28: 1.0, 14: 0.01, 32: 0.27, 40: 0.073}}
	results, err := e.RunFullDiagnosis(in, DefaultMinConfidence)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 || results[0].Type != AirLeak {
		t.Fatalf("Expected air leak first, got %v", results)
	}
	if find(results, ArgonPresent) != nil {
		t.Errorf("Argon without isotope confirmation must not be reported")
	}
}

func TestSortInvariant(t *testing.T) {
	e := New()
	rnd := rand.New(rand.NewSource(1))
	for n := 0; n < 200; n++ {
		peaks := make(map[int]float64)
		for m := 1; m <= 100; m++ {
			if rnd.Float64() < 0.3 {
				peaks[m] = rnd.Float64()
			}
		}
		peaks[1+rnd.Intn(100)] = 1.0
		l := lod.Estimate(peaks)
		results, err := e.RunFullDiagnosis(Input{Peaks: peaks, LOD: &l}, 0)
		if err != nil {
			t.Fatal(err)
		}
		for i, r := range results {
			if r.Confidence < 0 || r.Confidence > 1 {
				t.Fatalf("%s: confidence %v out of range", r.Type, r.Confidence)
			}
			if i == 0 {
				continue
			}
			prev := results[i-1]
			if prev.Severity.rank() > r.Severity.rank() {
				t.Fatalf("%s (%s) sorted after %s (%s)", r.Type, r.Severity, prev.Type, prev.Severity)
			}
			if prev.Severity == r.Severity && prev.Confidence < r.Confidence {
				t.Fatalf("%s sorted after less confident %s", r.Type, prev.Type)
			}
		}
	}
}

func TestMinConfidenceFilter(t *testing.T) {
	e := New()
	in := Input{Peaks: map[int]float64{28: 1.0, 14: 0.01, 32: 0.27, 40: 0.073}}
	results, err := e.RunFullDiagnosis(in, 0.9)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range results {
		if r.Confidence < 0.9 {
			t.Errorf("%s: confidence %v below filter", r.Type, r.Confidence)
		}
	}
}

func TestDetectorFailureIsSkipped(t *testing.T) {
	m := metrics.New()
	ok := Detector{Type: HeliumLeak, Detect: detectHeliumLeak}
	boom := Detector{Type: "boom", Detect: func(Input) (*Result, error) { panic("index out of range") }}
	bad := Detector{Type: "bad", Detect: func(Input) (*Result, error) { return nil, errors.New("bad input") }}
	e := New(WithDetectors(boom, bad, ok), WithMetrics(m))

	results, err := e.RunFullDiagnosis(Input{Peaks: map[int]float64{4: 0.2, 28: 1}}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Type != HeliumLeak {
		t.Fatalf("Expected only the helium leak, got %v", results)
	}
	for _, name := range []string{"boom", "bad"} {
		if got := testutil.ToFloat64(m.DetectorFailures.WithLabelValues(name)); got != 1 {
			t.Errorf("%s: expected 1 failure, got %v", name, got)
		}
	}
}

func TestNilLoggerIgnored(t *testing.T) {
	bad := Detector{Type: "bad", Detect: func(Input) (*Result, error) { return nil, errors.New("bad input") }}
	e := New(WithLogger(nil), WithDetectors(bad))
	if _, err := e.RunFullDiagnosis(Input{Peaks: map[int]float64{28: 1}}, 0); err != nil {
		t.Fatal(err)
	}
}

// ESD expectations follow the cracking patterns of the configured table
func TestESDUsesTable(t *testing.T) {
	data, err := os.ReadFile("../gasdata/gases.yaml")
	if err != nil {
		t.Fatal(err)
	}
	// O2 entry: raise the O+ fragment from 0.11 to 0.5
	doc := strings.Replace(string(data), "      16: 0.11\n", "      16: 0.5\n", 1)
	tab, err := gasdata.Load([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if f := tab.Fraction(gasdata.O2, 16); f != 0.5 {
		t.Fatalf("Expected modified O2 fraction 0.5, got %v", f)
	}

	in := Input{Peaks: map[int]float64{28: 1, 32: 0.2, 16: 0.1, 19: 0.05}}
	esd := []Detector{{ESDArtifact, detectESD}}

	results, err := New(WithDetectors(esd...)).RunFullDiagnosis(in, 0)
	if err != nil {
		t.Fatal(err)
	}
	if find(results, ESDArtifact) == nil {
		t.Errorf("Expected ESD with the default table, got %v", results)
	}

	results, err = New(WithDetectors(esd...), WithTable(tab)).RunFullDiagnosis(in, 0)
	if err != nil {
		t.Fatal(err)
	}
	if r := find(results, ESDArtifact); r != nil {
		t.Errorf("Expected no ESD when O2 explains m/z 16, got confidence %v", r.Confidence)
	}
}

func TestQuickDiagnosis(t *testing.T) {
	var types []Type
	for _, d := range QuickRegistry() {
		types = append(types, d.Type)
	}
	want := []Type{AirLeak, HydrocarbonContamination, PFPEContamination, HeliumLeak}
	if diff := cmp.Diff(want, types); diff != "" {
		t.Errorf("Quick registry mismatch (-want +got):\n%s", diff)
	}

	// PFPE plus strong water: only the PFPE finding is in the quick subset
	in := Input{Peaks: map[int]float64{18: 1.0, 17: 0.23, 69: 0.5, 119: 0.1, 47: 0.05, 50: 0.02}}
	results, err := New().RunQuickDiagnosis(in, DefaultMinConfidence)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Type != PFPEContamination {
		t.Fatalf("Expected PFPE only, got %v", results)
	}
	if results[0].Confidence != 1 || results[0].Severity != SeverityCritical {
		t.Errorf("Unexpected PFPE result %v", results[0])
	}
}

func TestEmptyInput(t *testing.T) {
	if _, err := New().RunFullDiagnosis(Input{}, 0); !errors.Is(err, ErrNoPeaks) {
		t.Errorf("Expected ErrNoPeaks, got %v", err)
	}
}

func TestDetectors(t *testing.T) {
	baked := &metadata.Metadata{SystemState: metadata.StateBaked}
	tests := []struct {
		name string
		in   Input
		want Type
		sev  Severity
	}{
		{"water", Input{Peaks: map[int]float64{18: 1.0, 17: 0.23, 28: 0.3}}, WaterOutgassing, SeverityWarning},
		{"bakeout", Input{Peaks: map[int]float64{18: 1.0, 17: 0.23, 2: 0.4}, Metadata: baked}, InsufficientBakeout, SeverityWarning},
		{"uhv", Input{Peaks: map[int]float64{2: 1.0, 18: 0.1, 28: 0.05}}, HydrogenDominant, SeverityInfo},
		{"oil", Input{Peaks: map[int]float64{28: 1, 41: 0.1, 43: 0.15, 55: 0.05, 57: 0.1, 71: 0.03}}, HydrocarbonContamination, SeverityCritical},
		{"heavy", Input{Peaks: map[int]float64{28: 1, 71: 0.03, 85: 0.02, 99: 0.01}}, HeavyHydrocarbons, SeverityWarning},
		{"silicone", Input{Peaks: map[int]float64{28: 1, 73: 0.1, 147: 0.05, 207: 0.02}}, SiliconeContamination, SeverityWarning},
		{"ethanol", Input{Peaks: map[int]float64{28: 1, 31: 0.2, 45: 0.1, 46: 0.05}}, SolventResidue, SeverityWarning},
		{"helium", Input{Peaks: map[int]float64{28: 1, 4: 0.2}}, HeliumLeak, SeverityCritical},
		{"co2", Input{Peaks: map[int]float64{28: 1, 44: 0.5, 45: 0.006}}, CO2Elevated, SeverityWarning},
		{"co", Input{Peaks: map[int]float64{28: 1, 14: 0.01, 12: 0.045}}, CODominant, SeverityInfo},
		{"argon", Input{Peaks: map[int]float64{40: 1, 20: 0.15, 36: 0.0034}}, ArgonPresent, SeverityInfo},
		{"ammonia", Input{Peaks: map[int]float64{17: 1, 16: 0.8, 18: 0.2}}, Ammonia, SeverityWarning},
		{"methane", Input{Peaks: map[int]float64{16: 1, 15: 0.85, 13: 0.08}}, Methane, SeverityInfo},
		{"chlorine", Input{Peaks: map[int]float64{28: 1, 35: 0.3, 37: 0.1}}, ChlorineContamination, SeverityWarning},
		{"h2s", Input{Peaks: map[int]float64{28: 1, 32: 0.1, 33: 0.05, 34: 0.2}}, H2SPresent, SeverityWarning},
		{"esd", Input{Peaks: map[int]float64{28: 1, 16: 0.2, 19: 0.05}}, ESDArtifact, SeverityInfo},
		{"noise", Input{Peaks: map[int]float64{28: 1}, LOD: &lod.Result{LOD: 0.08, Method: lod.MethodPrimary}}, HighNoiseFloor, SeverityWarning},
		{"low", Input{Peaks: map[int]float64{28: 1, 18: 0.1}}, LowSignal, SeverityWarning},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			results, err := New().RunFullDiagnosis(tc.in, DefaultMinConfidence)
			if err != nil {
				t.Fatal(err)
			}
			r := find(results, tc.want)
			if r == nil {
				t.Fatalf("Expected %s in %v", tc.want, results)
			}
			if r.Severity != tc.sev {
				t.Errorf("Expected %s, got %s", tc.sev, r.Severity)
			}
			if len(r.Evidence) == 0 {
				t.Errorf("Missing evidence")
			}
		})
	}
}
