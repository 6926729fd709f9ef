package model

import (
	"math"
	"math/rand"
	"testing"
)

// TestFiniteDifferenceGradientMatchesAnalytic checks the central
// difference against the analytic gradient of the log-likelihood surface
// L(x, y) = -((x-23.2)^2/(2*4^2)) - ((y+14)^2/(2*12.3^2)) at 500 random
// interior points.
func TestFiniteDifferenceGradientMatchesAnalytic(t *testing.T) {
	logLikelihood := func(p []float64) (float64, error) {
		dx := p[0] - 23.2
		dy := p[1] + 14
		return -dx*dx/(2*4*4) - dy*dy/(2*12.3*12.3), nil
	}
	analytic := func(p []float64) []float64 {
		return []float64{
			-(p[0] - 23.2) / (4 * 4),
			-(p[1] + 14) / (12.3 * 12.3),
		}
	}

	rng := rand.New(rand.NewSource(31))
	active := []bool{true, true}
	failures := 0

	for trial := 0; trial < 500; trial++ {
		x := []float64{23.2 + 20*(rng.Float64()-0.5), -14 + 40*(rng.Float64()-0.5)}

		grad, err := gradientByFiniteDifference(x, active, 1e-4, logLikelihood)
		if err != nil {
			t.Fatalf("gradientByFiniteDifference(%v): %v", x, err)
		}
		want := analytic(x)
		for i := range want {
			denom := math.Max(math.Abs(want[i]), 1e-8)
			if math.Abs(grad[i]-want[i])/denom > 0.01 {
				failures++
				break
			}
		}
	}

	// The contract allows up to 1% of points to miss the 1% relative bound.
	if failures > 5 {
		t.Errorf("finite-difference gradient missed the 1%% bound at %d of 500 points", failures)
	}
}

// TestFiniteDifferenceGradientSkipsInactive verifies only active entries
// contribute gradient components, in parameter order.
func TestFiniteDifferenceGradientSkipsInactive(t *testing.T) {
	f := func(p []float64) (float64, error) {
		return 2*p[0] + 3*p[1] + 5*p[2], nil
	}

	grad, err := gradientByFiniteDifference([]float64{1, 1, 1}, []bool{true, false, true}, 1e-4, f)
	if err != nil {
		t.Fatalf("gradientByFiniteDifference: %v", err)
	}
	if len(grad) != 2 {
		t.Fatalf("gradient has %d entries, want 2 (active only)", len(grad))
	}
	if math.Abs(grad[0]-2) > 1e-8 || math.Abs(grad[1]-5) > 1e-8 {
		t.Errorf("gradient = %v, want [2 5]", grad)
	}
}

// TestFiniteDifferenceGradientMaskMismatch checks the mask length is
// validated.
func TestFiniteDifferenceGradientMaskMismatch(t *testing.T) {
	f := func(p []float64) (float64, error) { return p[0], nil }
	if _, err := gradientByFiniteDifference([]float64{1, 2}, []bool{true}, 1e-4, f); err == nil {
		t.Error("expected a dimension mismatch error for a short active mask")
	}
}
