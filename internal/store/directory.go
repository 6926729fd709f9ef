package store

import (
	"os"
	"path/filepath"

	"github.com/bitjungle/gpemulator/internal/emulator"
	"github.com/bitjungle/gpemulator/internal/parameter"
	"github.com/bitjungle/gpemulator/pkg/types"
)

// StatDirectory is the directory-rooted view of a statistics run: the
// runtime_parameters.dat, parameter_priors.dat, observable_names.dat,
// PCADecomposition.dat, EmulatorState.dat, model_output/, and trace/
// paths conventionally nested under a single <stat_dir>.
type StatDirectory struct {
	Root string
}

// Dir returns a StatDirectory rooted at root.
func Dir(root string) StatDirectory { return StatDirectory{Root: root} }

func (d StatDirectory) path(name string) string { return filepath.Join(d.Root, name) }

// RuntimeParametersPath returns <root>/runtime_parameters.dat.
func (d StatDirectory) RuntimeParametersPath() string { return d.path("runtime_parameters.dat") }

// ParameterPriorsPath returns <root>/parameter_priors.dat.
func (d StatDirectory) ParameterPriorsPath() string { return d.path("parameter_priors.dat") }

// ObservableNamesPath returns <root>/observable_names.dat.
func (d StatDirectory) ObservableNamesPath() string { return d.path("observable_names.dat") }

// PCADecompositionPath returns <root>/PCADecomposition.dat.
func (d StatDirectory) PCADecompositionPath() string { return d.path("PCADecomposition.dat") }

// EmulatorStatePath returns <root>/EmulatorState.dat.
func (d StatDirectory) EmulatorStatePath() string { return d.path("EmulatorState.dat") }

// ExperimentalResultsPath returns <root>/experimental_results.dat.
func (d StatDirectory) ExperimentalResultsPath() string { return d.path("experimental_results.dat") }

// ModelOutputDir returns <root>/model_output.
func (d StatDirectory) ModelOutputDir() string { return d.path("model_output") }

// TraceDir returns <root>/trace.
func (d StatDirectory) TraceDir() string { return d.path("trace") }

// TracePath returns <root>/trace/<run>.csv.
func (d StatDirectory) TracePath(run string) string {
	return filepath.Join(d.TraceDir(), run+".csv")
}

// LoadParameters reads parameter_priors.dat under the directory.
func (d StatDirectory) LoadParameters() ([]parameter.Parameter, error) {
	return LoadPriors(d.ParameterPriorsPath())
}

// LoadTrainedEmulator reconstructs a READY Emulator from the persisted
// training design (model_output/), priors, observable names, PCA block,
// and per-component hyperparameters, rebuilding every SingleModel cache.
// This restores the behavior of the legacy directory reader: everything
// up to and including MakeCache runs again at load time, since the
// cache itself (C_inv, R1, R2, beta, gamma) is not persisted.
func (d StatDirectory) LoadTrainedEmulator(parallel bool) (*emulator.Emulator, error) {
	params, err := d.LoadParameters()
	if err != nil {
		return nil, err
	}
	outputNames, err := LoadObservableNames(d.ObservableNamesPath())
	if err != nil {
		return nil, err
	}
	observedValues, observedVariances, err := LoadExperimentalResults(d.ExperimentalResultsPath())
	if err != nil {
		return nil, err
	}
	X, Y, _, err := LoadTrainingRuns(d.ModelOutputDir())
	if err != nil {
		return nil, err
	}
	pca, err := LoadPCADecomposition(d.PCADecompositionPath())
	if err != nil {
		return nil, err
	}
	state, err := LoadEmulatorState(d.EmulatorStatePath())
	if err != nil {
		return nil, err
	}

	emu := emulator.New()
	emu.Parallel = parallel
	if err := emu.LoadTrainingData(X, Y, params, outputNames, observedValues, observedVariances); err != nil {
		return nil, err
	}
	emu.UncertaintyScales = pca.OutputUncertaintyScales
	if err := emu.PrincipalComponentDecompose(); err != nil {
		return nil, err
	}

	// The persisted eigendecomposition is authoritative (it is what the
	// retained components and hyperparameters below were derived
	// against); overwrite the freshly recomputed one before retention so
	// floating-point differences across runs can't silently re-derive a
	// different retained set than was trained.
	emu.Eigenvalues = pca.Eigenvalues
	emu.Eigenvectors = pca.Eigenvectors

	retainedCount := len(state.SubModels)
	if retainedCount == 0 || retainedCount > len(emu.Eigenvalues) {
		return nil, types.NewFileFormatError("EmulatorState.dat retained-component count does not match PCADecomposition.dat", nil)
	}
	if err := emu.RetainComponents(retainedCount); err != nil {
		return nil, err
	}

	for i, sub := range state.SubModels {
		m := emu.Models[i]
		m.Kernel = sub.CovarianceFunction
		m.RegressionOrder = sub.RegressionOrder
		m.Theta = sub.Thetas
	}

	if err := emu.MakeCache(); err != nil {
		return nil, err
	}
	return emu, nil
}

// EnsureLayout creates the directories this StatDirectory writes into
// (model_output/ and trace/), leaving existing contents untouched.
func (d StatDirectory) EnsureLayout() error {
	if err := os.MkdirAll(d.ModelOutputDir(), 0o755); err != nil {
		return types.NewFileFormatError("failed to create model_output directory", err)
	}
	if err := os.MkdirAll(d.TraceDir(), 0o755); err != nil {
		return types.NewFileFormatError("failed to create trace directory", err)
	}
	return nil
}
