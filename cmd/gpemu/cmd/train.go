package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bitjungle/gpemulator/internal/emulator"
	"github.com/bitjungle/gpemulator/internal/kernel"
	"github.com/bitjungle/gpemulator/internal/store"
)

var (
	trainKernel      string
	trainOrder       int
	trainNugget      float64
	trainAmplitude   float64
	trainScale       float64
	trainResolving   float64
	trainParallel    bool
	trainPrintThetas bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a Gaussian-process emulator from collected design results",
	Long: `train loads the design points and results under model_output/,
the priors, observable names, and experimental observations, then runs
the full training pipeline (PCA decomposition, component retention,
basic hyperparameter initialization, cache construction) and persists
PCADecomposition.dat and EmulatorState.dat to --dir.

Examples:
  gpemu train --dir stats --kernel SQUARE_EXPONENTIAL --order 1
  gpemu train --dir stats --kernel MATERN_52 --resolving-power 0.999 --print-thetas`,
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)

	trainCmd.Flags().StringVar(&trainKernel, "kernel", "SQUARE_EXPONENTIAL",
		"Covariance family: SQUARE_EXPONENTIAL, POWER_EXPONENTIAL, MATERN_32, MATERN_52")
	trainCmd.Flags().IntVar(&trainOrder, "order", 1, "Regression order (0..3)")
	trainCmd.Flags().Float64Var(&trainNugget, "nugget", 1e-3, "Kernel nugget")
	trainCmd.Flags().Float64Var(&trainAmplitude, "amplitude", 1.0, "Kernel amplitude")
	trainCmd.Flags().Float64Var(&trainScale, "scale", 1e-2, "Length-scale multiplier applied to each prior's interquartile range")
	trainCmd.Flags().Float64Var(&trainResolving, "resolving-power", 0.95, "Fractional resolving power for principal-component retention")
	trainCmd.Flags().BoolVar(&trainParallel, "parallel", false, "Build per-component caches concurrently")
	trainCmd.Flags().BoolVar(&trainPrintThetas, "print-thetas", false, "Print each retained component's hyperparameter vector after training")
}

func runTrain(cmd *cobra.Command, args []string) error {
	dir := store.Dir(statDir)

	tag, err := kernel.ParseTag(trainKernel)
	if err != nil {
		return fmt.Errorf("invalid --kernel: %w", err)
	}

	params, err := dir.LoadParameters()
	if err != nil {
		return fmt.Errorf("failed to load parameter_priors.dat: %w", err)
	}
	outputNames, err := store.LoadObservableNames(dir.ObservableNamesPath())
	if err != nil {
		return fmt.Errorf("failed to load observable_names.dat: %w", err)
	}
	observedValues, observedVariances, err := store.LoadExperimentalResults(dir.ExperimentalResultsPath())
	if err != nil {
		return fmt.Errorf("failed to load experimental_results.dat: %w", err)
	}
	X, Y, uncertaintyScales, err := store.LoadTrainingRuns(dir.ModelOutputDir())
	if err != nil {
		return fmt.Errorf("failed to load model_output training runs: %w", err)
	}
	logf("loaded %d design points, %d parameters, %d outputs\n", len(X), len(params), len(outputNames))

	emu := emulator.New()
	emu.Parallel = trainParallel
	if err := emu.LoadTrainingData(X, Y, params, outputNames, observedValues, observedVariances); err != nil {
		return fmt.Errorf("failed to load training data: %w", err)
	}
	if uncertaintyScales != nil {
		if err := emu.SetUncertaintyScales(uncertaintyScales); err != nil {
			return fmt.Errorf("failed to set uncertainty scales: %w", err)
		}
	}

	if err := emu.PrincipalComponentDecompose(); err != nil {
		return fmt.Errorf("PCA decomposition failed: %w", err)
	}
	if err := emu.RetainPrincipalComponents(trainResolving); err != nil {
		return fmt.Errorf("component retention failed: %w", err)
	}
	logf("retained %d of %d principal components\n", emu.RetainedCount, len(emu.Eigenvalues))

	if err := emu.BasicTraining(tag, trainOrder, trainNugget, trainAmplitude, trainScale); err != nil {
		return fmt.Errorf("hyperparameter initialization failed: %w", err)
	}
	if err := emu.MakeCache(); err != nil {
		return fmt.Errorf("cache construction failed: %w", err)
	}

	if err := dir.EnsureLayout(); err != nil {
		return err
	}
	pca := &store.PCADecomposition{
		OutputMeans:             emu.OutputMeans,
		OutputUncertaintyScales: emu.UncertaintyScales,
		Eigenvalues:             emu.Eigenvalues,
		Eigenvectors:            emu.Eigenvectors,
	}
	if err := store.SavePCADecomposition(dir.PCADecompositionPath(), pca); err != nil {
		return fmt.Errorf("failed to write PCADecomposition.dat: %w", err)
	}

	state := &store.EmulatorState{SubModels: make([]store.SubModelState, len(emu.Models))}
	for i, m := range emu.Models {
		state.SubModels[i] = store.SubModelState{
			CovarianceFunction: m.Kernel,
			RegressionOrder:    m.RegressionOrder,
			Thetas:             m.Theta,
		}
		if trainPrintThetas {
			fmt.Printf("component %d: kernel=%s order=%d theta=%v\n", i, m.Kernel, m.RegressionOrder, m.Theta)
		}
	}
	if err := store.SaveEmulatorState(dir.EmulatorStatePath(), state); err != nil {
		return fmt.Errorf("failed to write EmulatorState.dat: %w", err)
	}

	fmt.Printf("trained emulator with %d retained components written to %s\n", emu.RetainedCount, statDir)
	return nil
}
