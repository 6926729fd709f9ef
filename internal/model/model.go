// Package model defines the uniform Model interface that samplers drive:
// parameter list, scalar outputs, observation covariance, and
// log-likelihood, plus a central-difference gradient. EmulatedModel and
// ExternalModel are the two concrete implementations.
package model

import (
	"github.com/bitjungle/gpemulator/internal/likelihood"
	"github.com/bitjungle/gpemulator/internal/parameter"
	"github.com/bitjungle/gpemulator/pkg/types"
)

// defaultGradientStep is the central-difference step size used by
// Gradient when a Model does not override it.
const defaultGradientStep = 1e-4

// Model is the interface samplers and the CLI drive. Observed values and
// covariance are data attached to a Model rather than emulator state, so
// the same emulator can be reused against different observations.
type Model interface {
	// Parameters returns the model's parameter list, in the order
	// expected by every x argument below.
	Parameters() []parameter.Parameter
	// OutputNames returns the model's scalar output names.
	OutputNames() []string

	// ScalarOutputs evaluates the model at x and returns y only.
	ScalarOutputs(x []float64) ([]float64, error)
	// ScalarOutputsAndCovariance evaluates the model at x and returns y
	// along with its predicted covariance, if the model has one (an
	// ExternalModel returns a nil covariance).
	ScalarOutputsAndCovariance(x []float64) (y []float64, covariance [][]float64, err error)
	// ScalarOutputsAndLogLikelihood evaluates the model at x and combines
	// its outputs with the attached observations via the configured
	// Gaussian likelihood, returning (y, log-likelihood).
	ScalarOutputsAndLogLikelihood(x []float64) (y []float64, logLikelihood float64, err error)
	// Gradient estimates the central-difference gradient of log-likelihood
	// with respect to the active parameters at x.
	Gradient(x []float64, active []bool) ([]float64, error)
}

// logPriorDensity sums the log-prior density of x over every parameter,
// matching the convention that log-likelihood = log(prior) - 0.5*r^T Sigma^-1 r.
func logPriorDensity(params []parameter.Parameter, x []float64) float64 {
	var total float64
	for i, p := range params {
		total += p.Prior.LogPDF(x[i])
	}
	return total
}

func validatePoint(params []parameter.Parameter, x []float64) error {
	if len(x) != len(params) {
		return types.NewDimensionMismatchError("parameter vector length mismatch", len(params), len(x))
	}
	return nil
}

// gradientByFiniteDifference computes central differences of f over the
// active entries of x, using step h for each active dimension.
func gradientByFiniteDifference(
	x []float64,
	active []bool,
	h float64,
	f func(point []float64) (float64, error),
) ([]float64, error) {
	if len(active) != len(x) {
		return nil, types.NewDimensionMismatchError("active-parameter mask length mismatch", len(x), len(active))
	}

	gradient := make([]float64, 0, len(x))
	point := append([]float64(nil), x...)

	for i := range x {
		if !active[i] {
			continue
		}
		original := point[i]

		point[i] = original + h
		forward, err := f(point)
		if err != nil {
			return nil, err
		}

		point[i] = original - h
		backward, err := f(point)
		if err != nil {
			return nil, err
		}

		point[i] = original
		gradient = append(gradient, (forward-backward)/(2*h))
	}
	return gradient, nil
}

// observationLikelihood builds the likelihood.Gaussian configured from a
// model's observed values/variances and its use_model_covariance policy.
func observationLikelihood(observedValues, observedVariances []float64, useModelCovariance bool) likelihood.Gaussian {
	t := len(observedValues)
	covariance := make([][]float64, t)
	for i := range covariance {
		covariance[i] = make([]float64, t)
		covariance[i][i] = observedVariances[i]
	}
	return likelihood.Gaussian{
		ObservedValues:     observedValues,
		ObservedCovariance: covariance,
		UseModelCovariance: useModelCovariance,
	}
}
