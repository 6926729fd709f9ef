// Package likelihood computes the Gaussian observation log-likelihood
// that couples a model's (or emulator's) predicted scalar outputs and
// their covariance to a fixed set of experimental observations and their
// own covariance.
package likelihood

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/bitjungle/gpemulator/pkg/types"
)

// Gaussian evaluates the log-likelihood
//
//	covariance  = observedCovariance + modelCovariance
//	differences = modelMeans - observedValues
//	logLikelihood = -0.5 * differences^T * covariance^-1 * differences
//	                - 0.5 * log(det(covariance)) - 0.5*t*log(2*pi)
//
// Either covariance argument may be nil, in which case it is treated as
// the zero matrix; at least one of the two must be non-nil and
// positive-definite for the combined covariance to be invertible.
type Gaussian struct {
	// ObservedValues is the length-t vector of experimental scalar values.
	ObservedValues []float64
	// ObservedCovariance is a t-by-t symmetric matrix of experimental
	// measurement uncertainty. Nil means zero.
	ObservedCovariance [][]float64
	// UseModelCovariance controls whether the model/emulator's own
	// predicted covariance is added to ObservedCovariance. When false,
	// only ObservedCovariance is used, and the model's covariance
	// argument to Evaluate is ignored.
	UseModelCovariance bool
}

// Evaluate computes the log-likelihood of modelMeans (with optional
// modelCovariance) against the configured observations.
func (g Gaussian) Evaluate(modelMeans []float64, modelCovariance [][]float64) (float64, error) {
	t := len(g.ObservedValues)
	if len(modelMeans) != t {
		return 0, types.NewDimensionMismatchError(
			"model means length must equal the number of observed values", t, len(modelMeans))
	}

	combined := mat.NewSymDense(t, nil)
	haveAny := false

	if g.ObservedCovariance != nil {
		if err := addSym(combined, g.ObservedCovariance, t); err != nil {
			return 0, err
		}
		haveAny = true
	}
	if g.UseModelCovariance && modelCovariance != nil {
		if err := addSym(combined, modelCovariance, t); err != nil {
			return 0, err
		}
		haveAny = true
	}
	if !haveAny {
		return 0, types.NewIllConditionedLikelihoodError(
			"at least one of observed or model covariance must be set", nil)
	}

	diff := mat.NewVecDense(t, nil)
	for i := 0; i < t; i++ {
		diff.SetVec(i, modelMeans[i]-g.ObservedValues[i])
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(combined); !ok {
		return 0, types.NewIllConditionedLikelihoodError(
			"combined observation covariance is not positive definite", nil)
	}

	solved := mat.NewVecDense(t, nil)
	if err := chol.SolveVecTo(solved, diff); err != nil {
		return 0, types.NewIllConditionedLikelihoodError(
			"failed to solve combined covariance system", err)
	}

	quadraticForm := mat.Dot(diff, solved)
	logDet := chol.LogDet()

	logLikelihood := -0.5*quadraticForm - 0.5*logDet - 0.5*float64(t)*math.Log(2*math.Pi)
	return logLikelihood, nil
}

func addSym(dst *mat.SymDense, src [][]float64, t int) error {
	if len(src) != t {
		return types.NewDimensionMismatchError("covariance matrix row count mismatch", t, len(src))
	}
	for i := 0; i < t; i++ {
		if len(src[i]) != t {
			return types.NewDimensionMismatchError("covariance matrix column count mismatch", t, len(src[i]))
		}
		for j := i; j < t; j++ {
			dst.SetSym(i, j, dst.At(i, j)+src[i][j])
		}
	}
	return nil
}
