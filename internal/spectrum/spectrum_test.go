package spectrum

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		s    Spectrum
		want error
	}{
		{"empty", nil, ErrNoData},
		{"too few", Spectrum{{1, 1}, {2, 1}}, ErrTooFewPoints},
		{"no valid currents", Spectrum{{1, -1}, {2, math.NaN()}, {3, math.Inf(1)}}, ErrNoValidCurrents},
		{"no signal", Spectrum{{1, 0}, {2, 0}, {3, 0}}, ErrNoSignal},
		{"ok", Spectrum{{1, 0}, {2, 1e-9}, {3, 0}}, nil},
	}
	for _, tc := range tests {
		err := tc.s.Validate()
		if tc.want == nil {
			if err != nil {
				t.Errorf("%s: expected no error, got %v", tc.name, err)
			}
			continue
		}
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestValidationErrorCode(t *testing.T) {
	err := Spectrum{{1, 1}}.Validate()
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Expected *ValidationError, got %T", err)
	}
	if ve.Code != CodeTooFewPoints {
		t.Errorf("Expected code %s, got %s", CodeTooFewPoints, ve.Code)
	}
	if !strings.Contains(ve.Message, "1 data points") {
		t.Errorf("Expected message to mention point count, got %q", ve.Message)
	}
}

func TestNormalize(t *testing.T) {
	s := Spectrum{{2, 4e-10}, {18, 2e-10}, {28, 1e-10}, {44, -1}}
	got := s.Normalize()
	want := map[int]float64{2: 1, 18: 0.5, 28: 0.25}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize mismatch (-want +got):\n%s", diff)
	}
	if n := (Spectrum{{1, 0}}).Normalize(); len(n) != 0 {
		t.Errorf("Expected empty map for zero spectrum, got %v", n)
	}
}

func TestReadCSV(t *testing.T) {
	in := `# exported by RGA software
mass;current
1;1.0e-12
2;3,5e-10
18.02;2.0e-10
17.98;1.0e-11
28	5e-11
`
	s, err := ReadCSV(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	want := Spectrum{{1, 1e-12}, {2, 3.5e-10}, {18, 2.1e-10}, {28, 5e-11}}
	opt := cmp.Comparer(func(x, y float64) bool {
		return math.Abs(x-y) <= 1e-9*math.Max(math.Abs(x), math.Abs(y))
	})
	if diff := cmp.Diff(want, s, opt); diff != "" {
		t.Errorf("ReadCSV mismatch (-want +got):\n%s", diff)
	}
}

func TestReadCSVBadRecord(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("1,2\nfoo,bar\n"))
	if !errors.Is(err, ErrBadRecord) {
		t.Errorf("Expected ErrBadRecord, got %v", err)
	}
}
