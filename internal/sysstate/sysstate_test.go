package sysstate

import (
	"testing"

	"github.com/524D/rgadiag/internal/metadata"
)

func TestInfer(t *testing.T) {
	tests := []struct {
		name  string
		known metadata.SystemState
		peaks map[int]float64
		n     int
		want  metadata.SystemState
	}{
		{"strong H2", metadata.StateUnknown, map[int]float64{2: 1, 18: 0.2}, 20, metadata.StateBaked},
		{"H2 above water, few peaks", metadata.StateUnknown, map[int]float64{2: 1, 18: 0.8}, 5, metadata.StateBaked},
		{"H2 above water, many peaks", metadata.StateUnknown, map[int]float64{2: 1, 18: 0.8}, 12, metadata.StateUnknown},
		{"water dominant", metadata.StateUnbaked, map[int]float64{2: 0.1, 18: 1}, 3, metadata.StateUnbaked},
		{"unbaked upgraded", metadata.StateUnbaked, map[int]float64{2: 1, 18: 0.1}, 10, metadata.StateBaked},
		{"baked kept", metadata.StateBaked, map[int]float64{2: 0.01, 18: 1}, 30, metadata.StateBaked},
		{"empty state", "", map[int]float64{18: 1}, 3, metadata.StateUnknown},
		{"no hydrogen", metadata.StateUnknown, map[int]float64{28: 1}, 1, metadata.StateUnknown},
	}
	for _, tc := range tests {
		if got := Infer(tc.known, tc.peaks, tc.n); got != tc.want {
			t.Errorf("%s: expected %s, got %s", tc.name, tc.want, got)
		}
	}
}
