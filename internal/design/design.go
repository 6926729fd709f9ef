// Package design generates the Latin-hypercube training design consumed
// by the emulator: one stratified, independently shuffled subdivision
// per parameter, optionally picked by maximin distance over several
// tries. It is a thin collaborator, not part of the emulator kernel, and
// owns a random stream separate from any sampler's.
package design

import (
	"math"
	"math/rand"

	"github.com/bitjungle/gpemulator/internal/parameter"
	"github.com/bitjungle/gpemulator/pkg/types"
)

// PartitionByPercentile partitions parameter p's prior into n strata via
// its percentile function: subdivisions[i] = prior.Percentile((i+0.5)/n).
func PartitionByPercentile(p parameter.Parameter, n int) []float64 {
	subdivisions := make([]float64, n)
	rangeOverN := 1.0 / float64(n)
	for i := range subdivisions {
		subdivisions[i] = p.Prior.Percentile(rangeOverN * (float64(i) + 0.5))
	}
	return subdivisions
}

// Generate draws a single Latin-hypercube design of n points over
// parameters. The strata are the fixed percentile midpoints of
// PartitionByPercentile; rng only drives the per-dimension shuffle. rng
// must be a stream dedicated to design generation, independent of any
// sampler's RNG.
func Generate(n int, parameters []parameter.Parameter, rng *rand.Rand) ([][]float64, error) {
	if n < 1 {
		return nil, types.NewInvalidArgumentError("number of training points must be at least 1")
	}
	if len(parameters) == 0 {
		return nil, types.NewInvalidArgumentError("at least one parameter is required")
	}

	subdivisions := make([][]float64, len(parameters))
	for j, p := range parameters {
		s := PartitionByPercentile(p, n)
		rng.Shuffle(len(s), func(a, b int) { s[a], s[b] = s[b], s[a] })
		subdivisions[j] = s
	}

	X := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, len(parameters))
		for j := range parameters {
			row[j] = subdivisions[j][i]
		}
		X[i] = row
	}
	return X, nil
}

// GenerateMaxiMin draws numberOfTries independent Latin-hypercube
// designs and keeps the one maximizing the minimum pairwise distance
// between points, scaled per-dimension by the inverse interquartile
// range of each parameter's prior (so dimensions with wide priors don't
// dominate the distance).
func GenerateMaxiMin(n int, parameters []parameter.Parameter, numberOfTries int, rng *rand.Rand) ([][]float64, error) {
	if numberOfTries < 1 {
		return nil, types.NewInvalidArgumentError("numberOfTries must be at least 1")
	}

	lengthScales := make([]float64, len(parameters))
	for i, p := range parameters {
		iqr := p.Prior.Percentile(0.75) - p.Prior.Percentile(0.25)
		lengthScales[i] = 1.0 / iqr
	}

	var best [][]float64
	bestValue := math.Inf(-1)

	for try := 0; try < numberOfTries; try++ {
		X, err := Generate(n, parameters, rng)
		if err != nil {
			return nil, err
		}
		minDist2 := math.Inf(1)
		for j := range X {
			for k := 0; k < j; k++ {
				var d2 float64
				for l := range parameters {
					diff := (X[j][l] - X[k][l]) * lengthScales[l]
					d2 += diff * diff
				}
				if d2 < minDist2 {
					minDist2 = d2
				}
			}
		}
		if minDist2 > bestValue {
			bestValue = minDist2
			best = X
		}
	}
	return best, nil
}
