// Package integration provides end-to-end tests for the emulator
// pipeline: design generation, training, persistence, reload, posterior
// sampling, and external-process models, all exercised together against
// temporary stat directories rather than package by package.
package integration

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/bitjungle/gpemulator/internal/design"
	"github.com/bitjungle/gpemulator/internal/distribution"
	"github.com/bitjungle/gpemulator/internal/emulator"
	"github.com/bitjungle/gpemulator/internal/kernel"
	"github.com/bitjungle/gpemulator/internal/parameter"
	"github.com/bitjungle/gpemulator/internal/store"
)

// sinc2D is the canonical smooth test simulator
// f(x, y) = sinc(sqrt(x^2 + y^2 + 0.5*x*y)).
func sinc2D(x, y float64) float64 {
	r := math.Sqrt(x*x + y*y + 0.5*x*y)
	if r == 0 {
		return 1
	}
	return math.Sin(r) / r
}

// gaussianBump is the two-parameter likelihood-test simulator
// y = exp(-((x-23.2)^2/(2*4^2)) - ((y+14)^2/(2*12.3^2))).
func gaussianBump(x, y float64) float64 {
	dx := x - 23.2
	dy := y + 14
	return math.Exp(-dx*dx/(2*4*4) - dy*dy/(2*12.3*12.3))
}

// bumpParameters returns wide uniform priors covering the bump's mode at
// (23.2, -14).
func bumpParameters() []parameter.Parameter {
	return []parameter.Parameter{
		parameter.New("x", distribution.NewUniform(0, 50)),
		parameter.New("y", distribution.NewUniform(-50, 10)),
	}
}

// sincParameters returns the uniform [-1,1]^2 priors of the sinc scenario.
func sincParameters() []parameter.Parameter {
	return []parameter.Parameter{
		parameter.New("x", distribution.NewUniform(-1, 1)),
		parameter.New("y", distribution.NewUniform(-1, 1)),
	}
}

// writeResults writes a run directory's results.dat, one output value
// per line, the way a simulator-runner collaborator would.
func writeResults(t *testing.T, runDir string, values []float64) {
	t.Helper()
	var buf []byte
	for _, v := range values {
		buf = append(buf, fmt.Sprintf("%.17g\n", v)...)
	}
	if err := os.WriteFile(filepath.Join(runDir, "results.dat"), buf, 0o644); err != nil {
		t.Fatalf("write results.dat: %v", err)
	}
}

// buildSincStatDirectory populates a temporary stat directory with the
// full on-disk input layout of the sinc scenario: priors, observable
// names, experimental results, and n Latin-hypercube design runs with
// simulator outputs.
func buildSincStatDirectory(t *testing.T, n int) store.StatDirectory {
	t.Helper()

	dir := store.Dir(t.TempDir())
	if err := dir.EnsureLayout(); err != nil {
		t.Fatalf("EnsureLayout: %v", err)
	}

	params := sincParameters()
	if err := store.SavePriors(dir.ParameterPriorsPath(), params); err != nil {
		t.Fatalf("SavePriors: %v", err)
	}
	if err := store.SaveObservableNames(dir.ObservableNamesPath(), []string{"f"}); err != nil {
		t.Fatalf("SaveObservableNames: %v", err)
	}
	if err := store.SaveExperimentalResults(dir.ExperimentalResultsPath(), []float64{0.2}, []float64{0.05}); err != nil {
		t.Fatalf("SaveExperimentalResults: %v", err)
	}

	rng := rand.New(rand.NewSource(424242))
	X, err := design.Generate(n, params, rng)
	if err != nil {
		t.Fatalf("design.Generate: %v", err)
	}
	for i, row := range X {
		runDir, err := store.WriteDesignPoint(dir.ModelOutputDir(), i, row)
		if err != nil {
			t.Fatalf("WriteDesignPoint(%d): %v", i, err)
		}
		writeResults(t, runDir, []float64{sinc2D(row[0], row[1])})
	}
	return dir
}

// trainFromDirectory loads the training inputs under dir and runs the
// full training pipeline with the sinc scenario's settings, returning a
// READY emulator.
func trainFromDirectory(t *testing.T, dir store.StatDirectory) *emulator.Emulator {
	t.Helper()

	params, err := dir.LoadParameters()
	if err != nil {
		t.Fatalf("LoadParameters: %v", err)
	}
	outputNames, err := store.LoadObservableNames(dir.ObservableNamesPath())
	if err != nil {
		t.Fatalf("LoadObservableNames: %v", err)
	}
	observedValues, observedVariances, err := store.LoadExperimentalResults(dir.ExperimentalResultsPath())
	if err != nil {
		t.Fatalf("LoadExperimentalResults: %v", err)
	}
	X, Y, _, err := store.LoadTrainingRuns(dir.ModelOutputDir())
	if err != nil {
		t.Fatalf("LoadTrainingRuns: %v", err)
	}

	emu := emulator.New()
	if err := emu.LoadTrainingData(X, Y, params, outputNames, observedValues, observedVariances); err != nil {
		t.Fatalf("LoadTrainingData: %v", err)
	}
	if err := emu.PrincipalComponentDecompose(); err != nil {
		t.Fatalf("PrincipalComponentDecompose: %v", err)
	}
	if err := emu.RetainPrincipalComponents(0.999); err != nil {
		t.Fatalf("RetainPrincipalComponents: %v", err)
	}
	if err := emu.BasicTraining(kernel.SquareExponential, 1, 1e-3, 1.0, 1e-2); err != nil {
		t.Fatalf("BasicTraining: %v", err)
	}
	if err := emu.MakeCache(); err != nil {
		t.Fatalf("MakeCache: %v", err)
	}
	return emu
}

// persistTrainedEmulator writes PCADecomposition.dat and
// EmulatorState.dat for emu under dir, the way `gpemu train` does.
func persistTrainedEmulator(t *testing.T, dir store.StatDirectory, emu *emulator.Emulator) {
	t.Helper()

	pca := &store.PCADecomposition{
		OutputMeans:             emu.OutputMeans,
		OutputUncertaintyScales: emu.UncertaintyScales,
		Eigenvalues:             emu.Eigenvalues,
		Eigenvectors:            emu.Eigenvectors,
	}
	if err := store.SavePCADecomposition(dir.PCADecompositionPath(), pca); err != nil {
		t.Fatalf("SavePCADecomposition: %v", err)
	}

	state := &store.EmulatorState{SubModels: make([]store.SubModelState, len(emu.Models))}
	for i, m := range emu.Models {
		state.SubModels[i] = store.SubModelState{
			CovarianceFunction: m.Kernel,
			RegressionOrder:    m.RegressionOrder,
			Thetas:             m.Theta,
		}
	}
	if err := store.SaveEmulatorState(dir.EmulatorStatePath(), state); err != nil {
		t.Fatalf("SaveEmulatorState: %v", err)
	}
}
