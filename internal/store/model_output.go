package store

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bitjungle/gpemulator/pkg/types"
)

// runDirPrefix prefixes model_output/run####/ directory names, e.g. "run0001".
const runDirPrefix = "run"

// WriteDesignPoint writes one model_output/run####/parameters.dat file
// containing the given parameter values, one per line in parameter
// order, matching the format the simulator-runner collaborator produces
// for each design row.
func WriteDesignPoint(modelOutputDir string, runIndex int, parameterValues []float64) (string, error) {
	runDir := filepath.Join(modelOutputDir, runDirName(runIndex))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", types.NewFileFormatError("failed to create model_output run directory", err)
	}

	path := filepath.Join(runDir, "parameters.dat")
	f, err := os.Create(path)
	if err != nil {
		return "", types.NewFileFormatError("failed to create parameters.dat", err)
	}
	defer f.Close()

	for _, v := range parameterValues {
		if _, err := fmt.Fprintf(f, "%s\n", formatNum(v)); err != nil {
			return "", types.NewFileFormatError("failed to write parameters.dat", err)
		}
	}
	return runDir, nil
}

// ReadResults parses a results.dat file: one output value per line, and
// (optionally, when present) a second column per line holding a
// per-output uncertainty. The covariance form is the one this system
// uses; the optional uncertainty column here is read for compatibility
// with legacy per-run result files but is not itself part of the
// trained emulator's wire format.
func ReadResults(r io.Reader) (values []float64, uncertainties []float64, err error) {
	scanner := bufio.NewScanner(r)
	haveUncertainty := false
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		v, parseErr := strconv.ParseFloat(fields[0], 64)
		if parseErr != nil {
			return nil, nil, types.NewParseFailureError(
				fmt.Sprintf("results.dat: failed to parse value %q", fields[0]), parseErr)
		}
		values = append(values, v)

		if first {
			haveUncertainty = len(fields) > 1
			first = false
		}
		if haveUncertainty {
			if len(fields) < 2 {
				return nil, nil, types.NewFileFormatError(
					"results.dat: inconsistent column count across lines", nil)
			}
			u, parseErr := strconv.ParseFloat(fields[1], 64)
			if parseErr != nil {
				return nil, nil, types.NewParseFailureError(
					fmt.Sprintf("results.dat: failed to parse uncertainty %q", fields[1]), parseErr)
			}
			uncertainties = append(uncertainties, u)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, types.NewFileFormatError("failed to read results.dat", err)
	}
	return values, uncertainties, nil
}

// LoadResults opens and parses a run directory's results.dat.
func LoadResults(runDir string) (values, uncertainties []float64, err error) {
	f, err := os.Open(filepath.Join(runDir, "results.dat"))
	if err != nil {
		return nil, nil, types.NewFileFormatError("failed to open results.dat", err)
	}
	defer f.Close()
	return ReadResults(f)
}

// ReadDesignPoint opens and parses a run directory's parameters.dat.
func ReadDesignPoint(runDir string) ([]float64, error) {
	f, err := os.Open(filepath.Join(runDir, "parameters.dat"))
	if err != nil {
		return nil, types.NewFileFormatError("failed to open parameters.dat", err)
	}
	defer f.Close()

	var values []float64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return nil, types.NewParseFailureError(
				fmt.Sprintf("parameters.dat: failed to parse value %q", line), err)
		}
		values = append(values, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, types.NewFileFormatError("failed to read parameters.dat", err)
	}
	return values, nil
}

// LoadTrainingRuns walks modelOutputDir's run#### subdirectories in
// ascending numeric order and loads the (X, Y) training design they
// describe: X from each run's parameters.dat, Y from its results.dat.
// Per-output uncertainties, when every run reports them, are averaged
// into a default uncertainty_scales vector the caller may refine.
func LoadTrainingRuns(modelOutputDir string) (X, Y [][]float64, uncertaintyScales []float64, err error) {
	entries, err := os.ReadDir(modelOutputDir)
	if err != nil {
		return nil, nil, nil, types.NewFileFormatError("failed to read model_output directory", err)
	}

	var runDirs []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), runDirPrefix) {
			runDirs = append(runDirs, e.Name())
		}
	}
	sort.Strings(runDirs)

	var uncertaintySum []float64
	uncertaintyCount := 0

	for _, name := range runDirs {
		runDir := filepath.Join(modelOutputDir, name)
		point, err := ReadDesignPoint(runDir)
		if err != nil {
			return nil, nil, nil, err
		}
		values, uncertainties, err := LoadResults(runDir)
		if err != nil {
			return nil, nil, nil, err
		}
		X = append(X, point)
		Y = append(Y, values)

		if uncertainties != nil {
			if uncertaintySum == nil {
				uncertaintySum = make([]float64, len(uncertainties))
			}
			for i, u := range uncertainties {
				uncertaintySum[i] += u
			}
			uncertaintyCount++
		}
	}

	if uncertaintyCount == len(runDirs) && uncertaintyCount > 0 {
		uncertaintyScales = make([]float64, len(uncertaintySum))
		for i, sum := range uncertaintySum {
			uncertaintyScales[i] = sum / float64(uncertaintyCount)
		}
	}

	return X, Y, uncertaintyScales, nil
}

func runDirName(i int) string {
	return fmt.Sprintf("%s%04d", runDirPrefix, i)
}

// ReadExperimentalResults parses experimental_results.dat: one "<value>
// <variance>" pair per line, in output order, blanks and '#' comments
// skipped.
func ReadExperimentalResults(r io.Reader) (values, variances []float64, err error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, nil, types.NewFileFormatError(
				fmt.Sprintf("experimental_results.dat line %q must have value and variance", line), nil)
		}
		v, errV := strconv.ParseFloat(fields[0], 64)
		va, errVa := strconv.ParseFloat(fields[1], 64)
		if errV != nil || errVa != nil {
			return nil, nil, types.NewParseFailureError(
				fmt.Sprintf("experimental_results.dat line %q is not numeric", line), nil)
		}
		values = append(values, v)
		variances = append(variances, va)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, types.NewFileFormatError("failed to read experimental_results.dat", err)
	}
	return values, variances, nil
}

// LoadExperimentalResults opens and parses path.
func LoadExperimentalResults(path string) (values, variances []float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, types.NewFileFormatError("failed to open experimental_results.dat", err)
	}
	defer f.Close()
	return ReadExperimentalResults(f)
}

// SaveExperimentalResults creates (or truncates) path and writes one
// "<value> <variance>" line per output.
func SaveExperimentalResults(path string, values, variances []float64) error {
	if len(values) != len(variances) {
		return types.NewDimensionMismatchError("values and variances must have the same length", len(values), len(variances))
	}
	f, err := os.Create(path)
	if err != nil {
		return types.NewFileFormatError("failed to create experimental_results.dat", err)
	}
	defer f.Close()
	for i := range values {
		if _, err := fmt.Fprintf(f, "%s %s\n", formatNum(values[i]), formatNum(variances[i])); err != nil {
			return types.NewFileFormatError("failed to write experimental_results.dat", err)
		}
	}
	return nil
}
