package model

import (
	"github.com/bitjungle/gpemulator/internal/externalprocess"
	"github.com/bitjungle/gpemulator/internal/likelihood"
	"github.com/bitjungle/gpemulator/internal/parameter"
	"github.com/bitjungle/gpemulator/pkg/types"
)

// ExternalModel wraps a subprocess simulator via externalprocess.Driver.
// Its outputs are exact (y) only: no model covariance, so
// ScalarOutputsAndCovariance always returns a nil covariance and
// ScalarOutputsAndLogLikelihood relies entirely on ObservedVariances.
type ExternalModel struct {
	driver *externalprocess.Driver

	params      []parameter.Parameter
	outputNames []string

	ObservedValues    []float64
	ObservedVariances []float64

	GradientStep float64
}

// NewExternalModel constructs an ExternalModel over params/outputNames
// without starting the child process; call Start before any query.
func NewExternalModel(params []parameter.Parameter, outputNames []string, observedValues, observedVariances []float64) *ExternalModel {
	return &ExternalModel{
		driver:            externalprocess.New(),
		params:            params,
		outputNames:       outputNames,
		ObservedValues:    observedValues,
		ObservedVariances: observedVariances,
		GradientStep:      defaultGradientStep,
	}
}

// Start spawns the child process described by argv and validates its
// handshake against this model's parameter and output names.
func (m *ExternalModel) Start(argv []string) error {
	names := make([]string, len(m.params))
	for i, p := range m.params {
		names[i] = p.Name
	}
	return m.driver.Start(argv, names, m.outputNames)
}

// Stop shuts down the child process.
func (m *ExternalModel) Stop() error {
	return m.driver.Stop()
}

// Parameters implements Model.
func (m *ExternalModel) Parameters() []parameter.Parameter { return m.params }

// OutputNames implements Model.
func (m *ExternalModel) OutputNames() []string { return m.outputNames }

// ScalarOutputs implements Model.
func (m *ExternalModel) ScalarOutputs(x []float64) ([]float64, error) {
	if err := validatePoint(m.params, x); err != nil {
		return nil, err
	}
	return m.driver.Query(x)
}

// ScalarOutputsAndCovariance implements Model. ExternalModel never knows
// its own output covariance, so covariance is always nil.
func (m *ExternalModel) ScalarOutputsAndCovariance(x []float64) ([]float64, [][]float64, error) {
	y, err := m.ScalarOutputs(x)
	return y, nil, err
}

// ScalarOutputsAndLogLikelihood implements Model.
func (m *ExternalModel) ScalarOutputsAndLogLikelihood(x []float64) ([]float64, float64, error) {
	y, err := m.ScalarOutputs(x)
	if err != nil {
		return nil, 0, err
	}
	if len(m.ObservedValues) != len(y) {
		return nil, 0, types.NewDimensionMismatchError(
			"observed values length must equal the number of outputs", len(y), len(m.ObservedValues))
	}

	gaussian := likelihood.Gaussian{
		ObservedValues:     m.ObservedValues,
		ObservedCovariance: diagonal(m.ObservedVariances),
		UseModelCovariance: false,
	}
	residualLogLikelihood, err := gaussian.Evaluate(y, nil)
	if err != nil {
		return nil, 0, err
	}

	total := logPriorDensity(m.params, x) + residualLogLikelihood
	return y, total, nil
}

// Gradient implements Model via central finite differences.
func (m *ExternalModel) Gradient(x []float64, active []bool) ([]float64, error) {
	h := m.GradientStep
	if h == 0 {
		h = defaultGradientStep
	}
	return gradientByFiniteDifference(x, active, h, func(point []float64) (float64, error) {
		_, logLikelihood, err := m.ScalarOutputsAndLogLikelihood(point)
		return logLikelihood, err
	})
}

func diagonal(variances []float64) [][]float64 {
	t := len(variances)
	out := make([][]float64, t)
	for i := range out {
		out[i] = make([]float64, t)
		out[i][i] = variances[i]
	}
	return out
}
