package metrics

import (
	"math"
	"testing"
)

const epsilon = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestComputeMean(t *testing.T) {
	if got := computeMean(nil); got != 0 {
		t.Errorf("expected 0 for empty input, got %f", got)
	}
	if got := computeMean([]float64{1, 2, 3, 4}); !almostEqual(got, 2.5) {
		t.Errorf("expected 2.5, got %f", got)
	}
}

func TestComputeStddev(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	mean := computeMean(values)
	// sample variance = 32 / 7
	want := math.Sqrt(32.0 / 7.0)
	if got := computeStddev(values, mean); !almostEqual(got, want) {
		t.Errorf("expected %f, got %f", want, got)
	}
	if got := computeStddev([]float64{42}, 42); got != 0 {
		t.Errorf("expected 0 for single value, got %f", got)
	}
}

func TestComputePercentile(t *testing.T) {
	sorted := []float64{0.2, 0.6, 27, 70}

	tests := []struct {
		p    float64
		want float64
	}{
		{0, 0.2},
		{0.5, 13.8},
		{1, 70},
	}
	for _, tt := range tests {
		if got := computePercentile(sorted, tt.p); !almostEqual(got, tt.want) {
			t.Errorf("p=%.2f: expected %f, got %f", tt.p, tt.want, got)
		}
	}

	if got := computePercentile(nil, 0.5); got != 0 {
		t.Errorf("expected 0 for empty input, got %f", got)
	}
}

func TestComputePearson(t *testing.T) {
	x := []float64{1, 2, 3, 4}

	if got := computePearson(x, []float64{2, 4, 6, 8}); !almostEqual(got, 1) {
		t.Errorf("expected perfect positive correlation, got %f", got)
	}
	if got := computePearson(x, []float64{8, 6, 4, 2}); !almostEqual(got, -1) {
		t.Errorf("expected perfect negative correlation, got %f", got)
	}
	if got := computePearson(x, []float64{5, 5, 5, 5}); !math.IsNaN(got) {
		t.Errorf("expected NaN for constant series, got %f", got)
	}
	if got := computePearson(x, []float64{1, 2}); !math.IsNaN(got) {
		t.Errorf("expected NaN for length mismatch, got %f", got)
	}
}

func TestRatePct(t *testing.T) {
	if got := ratePct(5, 0); got != 0 {
		t.Errorf("expected 0 for zero denominator, got %f", got)
	}
	if got := ratePct(1, 4); !almostEqual(got, 25) {
		t.Errorf("expected 25, got %f", got)
	}
}
