package design

import (
	"math/rand"
	"testing"

	"github.com/bitjungle/gpemulator/internal/distribution"
	"github.com/bitjungle/gpemulator/internal/parameter"
)

func testParameters() []parameter.Parameter {
	return []parameter.Parameter{
		parameter.New("a", distribution.NewUniform(0, 1)),
		parameter.New("b", distribution.NewUniform(-10, 10)),
	}
}

func TestGenerateShape(t *testing.T) {
	X, err := Generate(8, testParameters(), rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(X) != 8 {
		t.Fatalf("got %d rows, want 8", len(X))
	}
	for i, row := range X {
		if len(row) != 2 {
			t.Fatalf("row %d has %d columns, want 2", i, len(row))
		}
	}
}

func TestGenerateIsLatinHypercube(t *testing.T) {
	n := 10
	X, err := Generate(n, testParameters(), rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	// Each column is a permutation of n distinct stratum values, so no
	// value may appear twice within a column.
	for col := 0; col < 2; col++ {
		values := make([]float64, n)
		for i := range X {
			values[i] = X[i][col]
		}
		seen := make(map[float64]bool, n)
		for _, v := range values {
			if seen[v] {
				t.Fatalf("column %d has a repeated stratum value %v, want a permutation", col, v)
			}
			seen[v] = true
		}
	}
}

func TestGenerateRejectsInvalidInput(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	if _, err := Generate(0, testParameters(), rng); err == nil {
		t.Error("expected an error for n < 1")
	}
	if _, err := Generate(5, nil, rng); err == nil {
		t.Error("expected an error for no parameters")
	}
}

func TestGenerateMaxiMinPicksBestTry(t *testing.T) {
	params := testParameters()
	rng := rand.New(rand.NewSource(3))

	X, err := GenerateMaxiMin(6, params, 20, rng)
	if err != nil {
		t.Fatalf("GenerateMaxiMin: %v", err)
	}
	if len(X) != 6 {
		t.Fatalf("got %d rows, want 6", len(X))
	}

	// A maximin design from 20 tries should never be worse, in minimum
	// pairwise distance, than a single plain Generate call.
	plain, err := Generate(6, params, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if minPairwiseDistance(X, params) < minPairwiseDistance(plain, params)-1e-9 {
		t.Errorf("maximin design has a smaller minimum pairwise distance than a plain design")
	}
}

func minPairwiseDistance(X [][]float64, params []parameter.Parameter) float64 {
	lengthScales := make([]float64, len(params))
	for i, p := range params {
		iqr := p.Prior.Percentile(0.75) - p.Prior.Percentile(0.25)
		lengthScales[i] = 1.0 / iqr
	}
	minDist2 := -1.0
	for j := range X {
		for k := 0; k < j; k++ {
			var d2 float64
			for l := range params {
				diff := (X[j][l] - X[k][l]) * lengthScales[l]
				d2 += diff * diff
			}
			if minDist2 < 0 || d2 < minDist2 {
				minDist2 = d2
			}
		}
	}
	return minDist2
}

func TestGenerateMaxiMinRejectsInvalidTries(t *testing.T) {
	if _, err := GenerateMaxiMin(5, testParameters(), 0, rand.New(rand.NewSource(1))); err == nil {
		t.Error("expected an error for numberOfTries < 1")
	}
}
