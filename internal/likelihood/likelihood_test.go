package likelihood

import (
	"math"
	"testing"
)

func TestGaussianEvaluateAtObservedValueIsMaximal(t *testing.T) {
	g := Gaussian{
		ObservedValues:     []float64{1.0, 2.0},
		ObservedCovariance: [][]float64{{1, 0}, {0, 1}},
	}

	atObserved, err := g.Evaluate([]float64{1.0, 2.0}, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	offset, err := g.Evaluate([]float64{1.5, 2.0}, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if atObserved <= offset {
		t.Errorf("log-likelihood at the observed point (%v) should exceed an offset point (%v)", atObserved, offset)
	}
}

func TestGaussianEvaluateKnownValue(t *testing.T) {
	g := Gaussian{
		ObservedValues:     []float64{0.0},
		ObservedCovariance: [][]float64{{1.0}},
	}
	got, err := g.Evaluate([]float64{0.0}, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	want := -0.5 * math.Log(2*math.Pi)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Evaluate = %v, want %v", got, want)
	}
}

func TestGaussianEvaluateCombinesModelCovariance(t *testing.T) {
	g := Gaussian{
		ObservedValues:     []float64{0.0},
		ObservedCovariance: [][]float64{{1.0}},
		UseModelCovariance: true,
	}
	withoutModelVar, err := g.Evaluate([]float64{0.0}, [][]float64{{0.0}})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	withModelVar, err := g.Evaluate([]float64{0.0}, [][]float64{{3.0}})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if withModelVar >= withoutModelVar {
		t.Errorf("adding model variance should lower the log-likelihood at the mean: got %v >= %v", withModelVar, withoutModelVar)
	}
}

func TestGaussianEvaluateDimensionMismatch(t *testing.T) {
	g := Gaussian{
		ObservedValues:     []float64{0.0, 0.0},
		ObservedCovariance: [][]float64{{1, 0}, {0, 1}},
	}
	if _, err := g.Evaluate([]float64{0.0}, nil); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestGaussianEvaluateNoCovarianceFails(t *testing.T) {
	g := Gaussian{ObservedValues: []float64{0.0}}
	if _, err := g.Evaluate([]float64{0.0}, nil); err == nil {
		t.Error("expected ill-conditioned-likelihood error when no covariance is configured")
	}
}
