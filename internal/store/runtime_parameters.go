// Package store reads and writes the on-disk directory layout the
// emulator pipeline consumes and produces: runtime_parameters.dat,
// parameter_priors.dat, observable_names.dat, PCADecomposition.dat,
// EmulatorState.dat, the model_output/run####/ design-point directories,
// experimental_results.dat, and trace/<run>.csv. None of this adds
// emulator semantics; it is collaborator-grade glue around fixed wire
// formats.
package store

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/bitjungle/gpemulator/pkg/types"
)

// RuntimeParameters holds the recognized KEY VALUE settings from
// runtime_parameters.dat, with defaults applied for anything absent.
type RuntimeParameters struct {
	ModelOutputDirectory    string
	ExperimentalResultsFile string

	PCAFractionResolvingPower float64
	CovarianceFunction        string
	RegressionOrder           int
	Nugget                    float64
	Amplitude                 float64
	Scale                     float64

	Sampler               string
	NumberOfSamples       int
	NumberOfBurnInSamples int
	UseModelError         bool
	StepSize              float64

	ExternalModelExecutable string
	ExternalModelArguments  []string

	ReaderVerbose bool
	Verbose       bool

	// Raw holds every key/value pair as read, including keys not listed
	// above, so callers needing an uncommon setting can still reach it.
	Raw map[string]string
}

// DefaultRuntimeParameters returns the defaults every recognized key
// takes before any file is read.
func DefaultRuntimeParameters() RuntimeParameters {
	return RuntimeParameters{
		PCAFractionResolvingPower: 0.95,
		RegressionOrder:           1,
		Nugget:                    1e-3,
		Amplitude:                 1.0,
		Scale:                     1e-2,
		UseModelError:             true,
		Raw:                       map[string]string{},
	}
}

// ReadRuntimeParameters parses KEY VALUE lines from r, skipping blank
// lines and lines starting with '#'. Unrecognized keys are preserved in
// Raw but do not otherwise affect the result.
func ReadRuntimeParameters(r io.Reader) (RuntimeParameters, error) {
	rp := DefaultRuntimeParameters()

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return rp, types.NewFileFormatError(
				fmt.Sprintf("runtime_parameters.dat line %q is not KEY VALUE", line), nil)
		}
		key := fields[0]
		value := strings.Join(fields[1:], " ")
		rp.Raw[key] = value

		var err error
		switch key {
		case "MODEL_OUTPUT_DIRECTORY":
			rp.ModelOutputDirectory = value
		case "EXPERIMENTAL_RESULTS_FILE":
			rp.ExperimentalResultsFile = value
		case "PCA_FRACTION_RESOLVING_POWER":
			rp.PCAFractionResolvingPower, err = strconv.ParseFloat(value, 64)
		case "EMULATOR_COVARIANCE_FUNCTION":
			rp.CovarianceFunction = value
		case "EMULATOR_REGRESSION_ORDER":
			rp.RegressionOrder, err = strconv.Atoi(value)
		case "EMULATOR_NUGGET":
			rp.Nugget, err = strconv.ParseFloat(value, 64)
		case "EMULATOR_AMPLITUDE":
			rp.Amplitude, err = strconv.ParseFloat(value, 64)
		case "EMULATOR_SCALE":
			rp.Scale, err = strconv.ParseFloat(value, 64)
		case "SAMPLER":
			rp.Sampler = value
		case "SAMPLER_NUMBER_OF_SAMPLES":
			rp.NumberOfSamples, err = strconv.Atoi(value)
		case "MCMC_NUMBER_OF_BURN_IN_SAMPLES":
			rp.NumberOfBurnInSamples, err = strconv.Atoi(value)
		case "MCMC_USE_MODEL_ERROR":
			rp.UseModelError, err = parseBool(value)
		case "MCMC_STEP_SIZE":
			rp.StepSize, err = strconv.ParseFloat(value, 64)
		case "EXTERNAL_MODEL_EXECUTABLE":
			rp.ExternalModelExecutable = value
		case "EXTERNAL_MODEL_ARGUMENTS":
			rp.ExternalModelArguments = strings.Fields(value)
		case "READER_VERBOSE":
			rp.ReaderVerbose, err = parseBool(value)
		case "VERBOSE":
			rp.Verbose, err = parseBool(value)
		}
		if err != nil {
			return rp, types.NewParseFailureError(
				fmt.Sprintf("runtime_parameters.dat key %s has invalid value %q", key, value), err)
		}
	}
	if err := scanner.Err(); err != nil {
		return rp, types.NewFileFormatError("failed to read runtime_parameters.dat", err)
	}
	return rp, nil
}

// parseBool accepts true|false|1|0.
func parseBool(s string) (bool, error) {
	switch s {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("expected true|false|1|0, got %q", s)
	}
}

// LoadRuntimeParameters opens and parses path.
func LoadRuntimeParameters(path string) (RuntimeParameters, error) {
	f, err := os.Open(path)
	if err != nil {
		return RuntimeParameters{}, types.NewFileFormatError("failed to open runtime_parameters.dat", err)
	}
	defer f.Close()
	return ReadRuntimeParameters(f)
}
