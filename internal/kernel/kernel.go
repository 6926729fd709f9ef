// Package kernel implements the four stationary, isotropic-per-dimension
// covariance families used by SingleModel, plus the polynomial regression
// basis shared by all of them.
package kernel

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Tag identifies a covariance family.
type Tag int

const (
	// SquareExponential is nug + A*exp(-d^2/2), one length-scale per dimension.
	SquareExponential Tag = iota
	// PowerExponential is nug + A*exp(-0.5*(d^2)^(power/2)), power in (0,2].
	PowerExponential
	// Matern32 is nug + A*(1+sqrt(3)d)*exp(-sqrt(3)d) with a single shared length-scale.
	Matern32
	// Matern52 is nug + A*(1+sqrt(5)d+(5/3)d^2)*exp(-sqrt(5)d) with a single shared length-scale.
	Matern52
)

// String returns the wire-format tag used by EmulatorState.dat.
func (t Tag) String() string {
	switch t {
	case SquareExponential:
		return "SQUARE_EXPONENTIAL"
	case PowerExponential:
		return "POWER_EXPONENTIAL"
	case Matern32:
		return "MATERN_32"
	case Matern52:
		return "MATERN_52"
	default:
		return "UNKNOWN"
	}
}

// ParseTag parses the wire-format tag used by EmulatorState.dat and
// EMULATOR_COVARIANCE_FUNCTION.
func ParseTag(s string) (Tag, error) {
	switch s {
	case "SQUARE_EXPONENTIAL":
		return SquareExponential, nil
	case "POWER_EXPONENTIAL":
		return PowerExponential, nil
	case "MATERN_32":
		return Matern32, nil
	case "MATERN_52":
		return Matern52, nil
	default:
		return 0, fmt.Errorf("unknown covariance function tag: %q", s)
	}
}

// NumHyperparameters returns n_theta for a kernel acting on p-dimensional
// inputs: 2+p for SquareExponential, 3+p for PowerExponential, 3 for
// either Matern (amplitude, nugget, one shared length-scale).
func NumHyperparameters(tag Tag, p int) int {
	switch tag {
	case SquareExponential:
		return 2 + p
	case PowerExponential:
		return 3 + p
	case Matern32, Matern52:
		return 3
	default:
		return 0
	}
}

// nuggetEpsilon is the squared-distance threshold below which the nugget
// is added to the covariance. This is a fixed numerical-hygiene constant;
// changing it invalidates the round-trip tests.
const nuggetEpsilon = 1e-10

// ZeroClampEpsilon is the threshold below which entries of the training
// covariance vector k+ are clamped to zero in SingleModel predictions.
const ZeroClampEpsilon = 1e-10

func nuggetContribution(nugget, d2 float64) float64 {
	if d2 < nuggetEpsilon {
		return nugget
	}
	return 0
}

func squaredDistancePerDim(u, v, lengthScales []float64) float64 {
	diff := make([]float64, len(u))
	floats.SubTo(diff, u, v)
	floats.DivTo(diff, diff, lengthScales)
	return floats.Dot(diff, diff)
}

func squaredDistanceShared(u, v []float64, ell float64) float64 {
	diff := make([]float64, len(u))
	floats.SubTo(diff, u, v)
	floats.Scale(1/ell, diff)
	return floats.Dot(diff, diff)
}

// Covariance evaluates the kernel named by tag, with hyperparameters
// theta laid out per the family's n_theta, between points u and v.
func Covariance(tag Tag, theta, u, v []float64) float64 {
	amplitude := theta[0]
	nugget := theta[1]

	switch tag {
	case SquareExponential:
		lengthScales := theta[2:]
		d2 := squaredDistancePerDim(u, v, lengthScales)
		return nuggetContribution(nugget, d2) + amplitude*math.Exp(-d2/2)

	case PowerExponential:
		power := theta[2]
		lengthScales := theta[3:]
		d2 := squaredDistancePerDim(u, v, lengthScales)
		return nuggetContribution(nugget, d2) + amplitude*math.Exp(-0.5*math.Pow(d2, power/2))

	case Matern32:
		ell := theta[2]
		d2 := squaredDistanceShared(u, v, ell)
		d := math.Sqrt(d2)
		sqrt3 := math.Sqrt(3)
		return nuggetContribution(nugget, d2) + amplitude*(1+sqrt3*d)*math.Exp(-sqrt3*d)

	case Matern52:
		ell := theta[2]
		d2 := squaredDistanceShared(u, v, ell)
		d := math.Sqrt(d2)
		sqrt5 := math.Sqrt(5)
		return nuggetContribution(nugget, d2) + amplitude*(1+sqrt5*d+(5.0/3.0)*d2)*math.Exp(-sqrt5*d)

	default:
		return math.NaN()
	}
}

// RegressionBasis evaluates the length-F = 1+order*p polynomial mean-function
// basis h(x): row 0 is the constant 1, and for k=1..order the k-th block of
// p entries holds the element-wise k-th power of x, computed by repeatedly
// multiplying the previous block by x.
func RegressionBasis(order, p int, x []float64) []float64 {
	h := make([]float64, 1+order*p)
	h[0] = 1
	if order == 0 {
		return h
	}

	block := make([]float64, p)
	copy(block, x)
	copy(h[1:1+p], block)

	for k := 2; k <= order; k++ {
		for i := range block {
			block[i] *= x[i]
		}
		offset := 1 + (k-1)*p
		copy(h[offset:offset+p], block)
	}
	return h
}

// RegressionBasisMatrix stacks RegressionBasis(order, p, x) row-wise for
// each row of X (an N-by-p slice of slices), producing H(X) as an
// N-by-F slice of slices.
func RegressionBasisMatrix(order, p int, X [][]float64) [][]float64 {
	H := make([][]float64, len(X))
	for i, row := range X {
		H[i] = RegressionBasis(order, p, row)
	}
	return H
}
