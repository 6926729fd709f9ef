// Package cmd wires the gpemu subcommands (design, train, emulate,
// sample) onto a cobra root command, following the same layout as
// complab-cli/cmd: package-level flag variables registered from each
// subcommand's init.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	verbose bool
	quiet   bool
	statDir string
)

// rootCmd is the base command when gpemu is invoked without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "gpemu",
	Short: "Gaussian-process emulator training, prediction, and posterior sampling",
	Long: `gpemu trains a Gaussian-process emulator on a Latin-hypercube design of
simulator evaluations, then drives Metropolis-Hastings or percentile-grid
posterior sampling against either the trained emulator or an external
simulator process.

Subcommands operate on a single statistics directory (--dir), laid out
as runtime_parameters.dat, parameter_priors.dat, observable_names.dat,
PCADecomposition.dat, EmulatorState.dat, model_output/, and trace/.`,
	Version: "0.1.0",
}

// Execute runs the root command, printing any error to stderr and
// exiting non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().StringVarP(&statDir, "dir", "d", ".", "Statistics directory (runtime_parameters.dat, parameter_priors.dat, ...)")
}

func logf(format string, args ...interface{}) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}
