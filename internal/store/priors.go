package store

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/bitjungle/gpemulator/internal/distribution"
	"github.com/bitjungle/gpemulator/internal/parameter"
	"github.com/bitjungle/gpemulator/pkg/types"
)

// ReadPriors parses parameter_priors.dat lines of the form
// "uniform <name> <min> <max>" or "gaussian <name> <mean> <sd>",
// skipping blanks and '#' comments, in file order.
func ReadPriors(r io.Reader) ([]parameter.Parameter, error) {
	var params []parameter.Parameter

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 4 {
			return nil, types.NewFileFormatError(
				fmt.Sprintf("parameter_priors.dat line %q must have 4 fields", line), nil)
		}

		kind, name := strings.ToLower(fields[0]), fields[1]
		a, errA := strconv.ParseFloat(fields[2], 64)
		b, errB := strconv.ParseFloat(fields[3], 64)
		if errA != nil || errB != nil {
			return nil, types.NewParseFailureError(
				fmt.Sprintf("parameter_priors.dat line %q has a non-numeric bound", line), nil)
		}

		switch kind {
		case "uniform":
			params = append(params, parameter.New(name, distribution.NewUniform(a, b)))
		case "gaussian":
			params = append(params, parameter.New(name, distribution.NewGaussian(a, b)))
		default:
			return nil, types.NewFileFormatError(
				fmt.Sprintf("parameter_priors.dat line %q has unknown prior kind %q", line, kind), nil)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, types.NewFileFormatError("failed to read parameter_priors.dat", err)
	}
	return params, nil
}

// WritePriors serializes params back to the parameter_priors.dat format.
func WritePriors(w io.Writer, params []parameter.Parameter) error {
	for _, p := range params {
		var line string
		switch prior := p.Prior.(type) {
		case distribution.Uniform:
			line = fmt.Sprintf("uniform %s %s %s\n", p.Name, formatNum(prior.Min), formatNum(prior.Max))
		case distribution.Gaussian:
			line = fmt.Sprintf("gaussian %s %s %s\n", p.Name, formatNum(prior.Mean), formatNum(prior.StdDev))
		default:
			return types.NewInvalidArgumentError(fmt.Sprintf("unsupported prior type for parameter %q", p.Name))
		}
		if _, err := io.WriteString(w, line); err != nil {
			return types.NewFileFormatError("failed to write parameter_priors.dat", err)
		}
	}
	return nil
}

// LoadPriors opens and parses path.
func LoadPriors(path string) ([]parameter.Parameter, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, types.NewFileFormatError("failed to open parameter_priors.dat", err)
	}
	defer f.Close()
	return ReadPriors(f)
}

// SavePriors creates (or truncates) path and writes params to it.
func SavePriors(path string, params []parameter.Parameter) error {
	f, err := os.Create(path)
	if err != nil {
		return types.NewFileFormatError("failed to create parameter_priors.dat", err)
	}
	defer f.Close()
	return WritePriors(f, params)
}

// ReadObservableNames parses observable_names.dat: one name per line,
// blanks and '#' comments skipped.
func ReadObservableNames(r io.Reader) ([]string, error) {
	var names []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, types.NewFileFormatError("failed to read observable_names.dat", err)
	}
	return names, nil
}

// LoadObservableNames opens and parses path.
func LoadObservableNames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, types.NewFileFormatError("failed to open observable_names.dat", err)
	}
	defer f.Close()
	return ReadObservableNames(f)
}

// SaveObservableNames creates (or truncates) path and writes one name per line.
func SaveObservableNames(path string, names []string) error {
	f, err := os.Create(path)
	if err != nil {
		return types.NewFileFormatError("failed to create observable_names.dat", err)
	}
	defer f.Close()
	for _, name := range names {
		if _, err := fmt.Fprintf(f, "%s\n", name); err != nil {
			return types.NewFileFormatError("failed to write observable_names.dat", err)
		}
	}
	return nil
}

// formatNum formats a float64 at round-trip precision, matching the
// numeric convention used by trace.WriteCSV.
func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'g', 17, 64)
}
