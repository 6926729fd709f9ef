package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bitjungle/gpemulator/internal/model"
	"github.com/bitjungle/gpemulator/internal/parameter"
	"github.com/bitjungle/gpemulator/internal/sampler"
	"github.com/bitjungle/gpemulator/internal/store"
	"github.com/bitjungle/gpemulator/internal/trace"
	"github.com/bitjungle/gpemulator/internal/utils"
)

var (
	sampleKind        string
	sampleCount       int
	sampleBurnIn      int
	sampleStepSize    float64
	sampleSeed        int64
	sampleRunName     string
	sampleInactive    string
	sampleFreezeAt    []float64
	sampleUseModelErr bool
	sampleExternal    string
	sampleParallel    bool
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Run a posterior sampler against an emulated or external model",
	Long: `sample attaches MetropolisHastings or PercentileGrid to a Model and
streams the resulting Trace to trace/<run>.csv under --dir.

By default the model is a trained emulator (PCADecomposition.dat,
EmulatorState.dat, and the training design, all under --dir). Pass
--external "path/to/sim arg1 arg2" to instead drive that subprocess
through the line-oriented ExternalProcess protocol; its outputs carry no
model covariance, so likelihoods fall back to observed variance alone.

Examples:
  gpemu sample --dir stats --sampler MetropolisHastings --count 10000 --seed 7
  gpemu sample --dir stats --sampler PercentileGrid --count 16 --inactive 1 --freeze -14`,
	RunE: runSample,
}

func init() {
	rootCmd.AddCommand(sampleCmd)

	sampleCmd.Flags().StringVar(&sampleKind, "sampler", "MetropolisHastings", "MetropolisHastings or PercentileGrid")
	sampleCmd.Flags().IntVarP(&sampleCount, "count", "n", 1000, "Target number of samples")
	sampleCmd.Flags().IntVar(&sampleBurnIn, "burn-in", 0, "Number of burn-in samples discarded before recording")
	sampleCmd.Flags().Float64Var(&sampleStepSize, "step-size", 0.1, "Metropolis-Hastings proposal step size")
	sampleCmd.Flags().Int64Var(&sampleSeed, "seed", 1, "Sampler RNG seed")
	sampleCmd.Flags().StringVar(&sampleRunName, "run", "run", "Trace output name: trace/<run>.csv")
	sampleCmd.Flags().StringVar(&sampleInactive, "inactive", "", "1-based parameter indices/ranges to deactivate, e.g. 1,3-4")
	sampleCmd.Flags().Float64SliceVar(&sampleFreezeAt, "freeze", nil, "Values to freeze each deactivated parameter at, in --inactive order")
	sampleCmd.Flags().BoolVar(&sampleUseModelErr, "use-model-error", true, "Include the emulator's own predicted covariance in the likelihood")
	sampleCmd.Flags().StringVar(&sampleExternal, "external", "", "Executable (and arguments) of an external simulator, space-separated")
	sampleCmd.Flags().BoolVar(&sampleParallel, "parallel", false, "Evaluate retained components concurrently")
}

// posteriorSampler is the subset of MetropolisHastings / PercentileGrid
// the CLI drives uniformly.
type posteriorSampler interface {
	Attach(model.Model) error
	SetActive(i int, isActive bool) error
	SetParameterValue(i int, value float64) error
	NextSample() (parameter.Sample, error)
}

func runSample(cmd *cobra.Command, args []string) error {
	dir := store.Dir(statDir)

	m, cleanup, err := buildModel(dir)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	inactiveIndices, err := utils.ParseRanges(sampleInactive)
	if err != nil {
		return fmt.Errorf("invalid --inactive: %w", err)
	}
	if len(sampleFreezeAt) != 0 && len(sampleFreezeAt) != len(inactiveIndices) {
		return fmt.Errorf("--freeze has %d values, want one per --inactive index (%d)", len(sampleFreezeAt), len(inactiveIndices))
	}

	var s posteriorSampler
	var grid *sampler.PercentileGrid
	switch sampleKind {
	case "MetropolisHastings":
		mh := sampler.NewMetropolisHastings(sampleSeed)
		mh.StepSize = sampleStepSize
		s = mh
	case "PercentileGrid":
		grid = sampler.NewPercentileGrid()
		s = grid
	default:
		return fmt.Errorf("unknown --sampler %q (want MetropolisHastings or PercentileGrid)", sampleKind)
	}

	if err := s.Attach(m); err != nil {
		return fmt.Errorf("failed to attach sampler: %w", err)
	}
	for k, idx := range inactiveIndices {
		if err := s.SetActive(idx, false); err != nil {
			return fmt.Errorf("failed to deactivate parameter %d: %w", idx, err)
		}
		if len(sampleFreezeAt) != 0 {
			if err := s.SetParameterValue(idx, sampleFreezeAt[k]); err != nil {
				return fmt.Errorf("failed to freeze parameter %d: %w", idx, err)
			}
		}
	}

	recorded := sampleCount
	if grid != nil {
		if err := grid.SetNumberOfSamples(sampleCount); err != nil {
			return fmt.Errorf("failed to configure percentile-grid resolution: %w", err)
		}
		recorded = grid.GetSampleCount()
		logf("percentile grid will emit %d samples\n", recorded)
	}

	for i := 0; i < sampleBurnIn; i++ {
		if _, err := s.NextSample(); err != nil {
			return fmt.Errorf("burn-in sample %d failed: %w", i, err)
		}
	}

	names := make([]string, len(m.Parameters()))
	for i, p := range m.Parameters() {
		names[i] = p.Name
	}
	tr := trace.New(names, m.OutputNames())

	for i := 0; i < recorded; i++ {
		sample, err := s.NextSample()
		if err != nil {
			// Leave the trace intact up to the last accepted sample.
			if writeErr := writeTrace(dir, tr); writeErr != nil {
				return writeErr
			}
			return fmt.Errorf("sample %d failed: %w", i, err)
		}
		if err := tr.Add(sample); err != nil {
			return fmt.Errorf("failed to record sample %d: %w", i, err)
		}
	}

	if err := writeTrace(dir, tr); err != nil {
		return err
	}
	fmt.Printf("wrote %d samples to %s\n", tr.Len(), dir.TracePath(sampleRunName))
	return nil
}

func writeTrace(dir store.StatDirectory, tr *trace.Trace) error {
	if err := dir.EnsureLayout(); err != nil {
		return err
	}
	f, err := os.Create(dir.TracePath(sampleRunName))
	if err != nil {
		return fmt.Errorf("failed to create trace file: %w", err)
	}
	defer f.Close()
	if err := tr.WriteCSV(f); err != nil {
		return fmt.Errorf("failed to write trace CSV: %w", err)
	}
	return nil
}

func buildModel(dir store.StatDirectory) (model.Model, func(), error) {
	if sampleExternal == "" {
		emu, err := dir.LoadTrainedEmulator(sampleParallel)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load trained emulator: %w", err)
		}
		observedValues, observedVariances, err := store.LoadExperimentalResults(dir.ExperimentalResultsPath())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load experimental_results.dat: %w", err)
		}
		em := model.NewEmulatedModel(emu, observedValues, observedVariances)
		em.UseModelCovariance = sampleUseModelErr
		return em, nil, nil
	}

	params, err := dir.LoadParameters()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load parameter_priors.dat: %w", err)
	}
	outputNames, err := store.LoadObservableNames(dir.ObservableNamesPath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load observable_names.dat: %w", err)
	}
	observedValues, observedVariances, err := store.LoadExperimentalResults(dir.ExperimentalResultsPath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load experimental_results.dat: %w", err)
	}

	em := model.NewExternalModel(params, outputNames, observedValues, observedVariances)
	argv := strings.Fields(sampleExternal)
	if err := em.Start(argv); err != nil {
		return nil, nil, fmt.Errorf("failed to start external model: %w", err)
	}
	return em, func() { _ = em.Stop() }, nil
}
