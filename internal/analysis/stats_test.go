package analysis

import (
	"math"
	"testing"
)

const epsilon = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestMean(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"single", []float64{7}, 7},
		{"mixed", []float64{1, 2, 3, 4}, 2.5},
		{"negative", []float64{-2, 2}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Mean(tt.values); !almostEqual(got, tt.want) {
				t.Errorf("Mean() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStdDevPopulation(t *testing.T) {
	// Population variance of [2,4,4,4,5,5,7,9] is 4, stddev 2.
	got := StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if !almostEqual(got, 2) {
		t.Errorf("StdDev() = %v, want 2", got)
	}
	if got := StdDev([]float64{3, 3, 3}); got != 0 {
		t.Errorf("StdDev(constant) = %v, want 0", got)
	}
	if got := StdDev([]float64{5}); got != 0 {
		t.Errorf("StdDev(single) = %v, want 0", got)
	}
}

func TestDiff(t *testing.T) {
	got := Diff([]float64{1, 4, 2, 2})
	want := []float64{3, -2, 0}
	if len(got) != len(want) {
		t.Fatalf("Diff() length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Diff()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if Diff([]float64{1}) != nil {
		t.Error("Diff(single) should be nil")
	}
}

func TestMedian(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"odd", []float64{3, 1, 2}, 2},
		{"even", []float64{4, 1, 3, 2}, 2.5},
		{"single", []float64{9}, 9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Median(tt.values); !almostEqual(got, tt.want) {
				t.Errorf("Median() = %v, want %v", got, tt.want)
			}
		})
	}

	// Input must not be reordered.
	in := []float64{3, 1, 2}
	Median(in)
	if in[0] != 3 || in[1] != 1 || in[2] != 2 {
		t.Error("Median() mutated its input")
	}
}

func TestMAD(t *testing.T) {
	// Median of [1,1,2,2,4,6,9] is 2; abs deviations [1,1,0,0,2,4,7],
	// median deviation 1. No consistency scaling.
	got := MAD([]float64{1, 1, 2, 2, 4, 6, 9})
	if !almostEqual(got, 1) {
		t.Errorf("MAD() = %v, want 1", got)
	}
	if got := MAD([]float64{5, 5, 5}); got != 0 {
		t.Errorf("MAD(constant) = %v, want 0", got)
	}
}

func TestACF(t *testing.T) {
	// Hand-computed for [1,2,3,4]: mean 2.5, denom 5,
	// lag1 1.25/5, lag2 -1.5/5, lag3 -2.25/5.
	acf := ACF([]float64{1, 2, 3, 4}, 3)
	want := []float64{1, 0.25, -0.3, -0.45}
	if len(acf) != len(want) {
		t.Fatalf("ACF() length = %d, want %d", len(acf), len(want))
	}
	for i := range want {
		if !almostEqual(acf[i], want[i]) {
			t.Errorf("ACF()[%d] = %v, want %v", i, acf[i], want[i])
		}
	}
}

func TestACFLagClamp(t *testing.T) {
	acf := ACF([]float64{1, 2, 1, 2, 1}, 100)
	if len(acf) != 5 {
		t.Errorf("ACF() length = %d, want maxLag clamped to n-1=4 (5 entries)", len(acf))
	}
}

func TestACFDegenerate(t *testing.T) {
	if ACF([]float64{7, 7, 7}, 2) != nil {
		t.Error("ACF(constant) should be nil")
	}
	if ACF([]float64{1}, 2) != nil {
		t.Error("ACF(single) should be nil")
	}
	if ACF(nil, 2) != nil {
		t.Error("ACF(empty) should be nil")
	}
}

func TestACFScaleInvariant(t *testing.T) {
	base := []float64{3, 1, 4, 1, 5, 9, 2, 6}
	scaled := make([]float64, len(base))
	for i, v := range base {
		scaled[i] = v * 1000
	}
	a := ACF(base, 4)
	b := ACF(scaled, 4)
	for i := range a {
		if !almostEqual(a[i], b[i]) {
			t.Errorf("lag %d: ACF differs under scaling: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestMaxAbsLag(t *testing.T) {
	// Most negative lag dominates by absolute value.
	val, lag := MaxAbsLag([]float64{1, 0.2, -0.8, 0.5})
	if !almostEqual(val, 0.8) || lag != 2 {
		t.Errorf("MaxAbsLag() = (%v, %d), want (0.8, 2)", val, lag)
	}

	// Lag 0 alone carries no information.
	val, lag = MaxAbsLag([]float64{1})
	if val != 0 || lag != 0 {
		t.Errorf("MaxAbsLag(lag-0 only) = (%v, %d), want (0, 0)", val, lag)
	}
	val, lag = MaxAbsLag(nil)
	if val != 0 || lag != 0 {
		t.Errorf("MaxAbsLag(nil) = (%v, %d), want (0, 0)", val, lag)
	}
}
