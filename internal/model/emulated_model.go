package model

import (
	"github.com/bitjungle/gpemulator/internal/emulator"
	"github.com/bitjungle/gpemulator/internal/parameter"
	"github.com/bitjungle/gpemulator/pkg/types"
)

// EmulatedModel wraps a READY Emulator as a Model, attaching experimental
// observations and a Gaussian observation likelihood.
type EmulatedModel struct {
	Emulator *emulator.Emulator

	ObservedValues     []float64
	ObservedVariances  []float64
	UseModelCovariance bool

	GradientStep float64
}

// NewEmulatedModel wraps emu, defaulting UseModelCovariance to true and
// GradientStep to defaultGradientStep (1e-4).
func NewEmulatedModel(emu *emulator.Emulator, observedValues, observedVariances []float64) *EmulatedModel {
	return &EmulatedModel{
		Emulator:           emu,
		ObservedValues:     observedValues,
		ObservedVariances:  observedVariances,
		UseModelCovariance: true,
		GradientStep:       defaultGradientStep,
	}
}

// Parameters implements Model.
func (m *EmulatedModel) Parameters() []parameter.Parameter { return m.Emulator.Parameters }

// OutputNames implements Model.
func (m *EmulatedModel) OutputNames() []string { return m.Emulator.OutputNames }

// ScalarOutputs implements Model.
func (m *EmulatedModel) ScalarOutputs(x []float64) ([]float64, error) {
	return m.Emulator.PredictMean(x)
}

// ScalarOutputsAndCovariance implements Model.
func (m *EmulatedModel) ScalarOutputsAndCovariance(x []float64) ([]float64, [][]float64, error) {
	return m.Emulator.Predict(x)
}

// ScalarOutputsAndLogLikelihood implements Model.
func (m *EmulatedModel) ScalarOutputsAndLogLikelihood(x []float64) ([]float64, float64, error) {
	if err := validatePoint(m.Parameters(), x); err != nil {
		return nil, 0, err
	}

	y, modelCovariance, err := m.Emulator.Predict(x)
	if err != nil {
		return nil, 0, err
	}

	if len(m.ObservedValues) != len(y) {
		return nil, 0, types.NewDimensionMismatchError(
			"observed values length must equal the number of outputs", len(y), len(m.ObservedValues))
	}

	gaussian := observationLikelihood(m.ObservedValues, m.ObservedVariances, m.UseModelCovariance)
	residualLogLikelihood, err := gaussian.Evaluate(y, modelCovariance)
	if err != nil {
		return nil, 0, err
	}

	total := logPriorDensity(m.Parameters(), x) + residualLogLikelihood
	return y, total, nil
}

// Gradient implements Model, estimating d(log-likelihood)/dx_active by
// central differences with step GradientStep (default 1e-4).
func (m *EmulatedModel) Gradient(x []float64, active []bool) ([]float64, error) {
	h := m.GradientStep
	if h == 0 {
		h = defaultGradientStep
	}
	return gradientByFiniteDifference(x, active, h, func(point []float64) (float64, error) {
		_, logLikelihood, err := m.ScalarOutputsAndLogLikelihood(point)
		return logLikelihood, err
	})
}
