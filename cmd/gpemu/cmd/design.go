package cmd

import (
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"

	"github.com/bitjungle/gpemulator/internal/design"
	"github.com/bitjungle/gpemulator/internal/store"
)

var (
	designCount   int
	designTries   int
	designSeed    int64
	designMaxiMin bool
)

var designCmd = &cobra.Command{
	Use:   "design",
	Short: "Generate a Latin-hypercube design over the loaded parameter priors",
	Long: `design reads parameter_priors.dat from --dir and writes one
model_output/run####/parameters.dat file per design point, ready for the
(external) simulator-running collaborator to fill in with results.dat.

Examples:
  gpemu design --dir stats --count 100
  gpemu design --dir stats --count 100 --maximin --tries 20 --seed 7`,
	RunE: runDesign,
}

func init() {
	rootCmd.AddCommand(designCmd)

	designCmd.Flags().IntVarP(&designCount, "count", "n", 100, "Number of design points")
	designCmd.Flags().BoolVar(&designMaxiMin, "maximin", false, "Keep the best of several tries by maximin distance")
	designCmd.Flags().IntVar(&designTries, "tries", 10, "Number of tries when --maximin is set")
	designCmd.Flags().Int64Var(&designSeed, "seed", 1, "RNG seed, independent of any sampler's stream")
}

func runDesign(cmd *cobra.Command, args []string) error {
	dir := store.Dir(statDir)

	params, err := dir.LoadParameters()
	if err != nil {
		return fmt.Errorf("failed to load parameter_priors.dat: %w", err)
	}

	rng := rand.New(rand.NewSource(designSeed))

	var X [][]float64
	if designMaxiMin {
		X, err = design.GenerateMaxiMin(designCount, params, designTries, rng)
	} else {
		X, err = design.Generate(designCount, params, rng)
	}
	if err != nil {
		return fmt.Errorf("failed to generate design: %w", err)
	}

	if err := dir.EnsureLayout(); err != nil {
		return err
	}

	for i, point := range X {
		runDir, err := store.WriteDesignPoint(dir.ModelOutputDir(), i, point)
		if err != nil {
			return fmt.Errorf("failed to write design point %d: %w", i, err)
		}
		logf("wrote %s\n", runDir)
	}

	fmt.Printf("wrote %d design points to %s\n", len(X), dir.ModelOutputDir())
	return nil
}
