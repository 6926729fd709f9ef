// Package trace holds an append-only sequence of sampler Samples and
// serializes it as CSV: a quoted header of parameter names, output
// names, and "LogLikelihood", followed by one numeric row per sample.
package trace

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bitjungle/gpemulator/internal/parameter"
	"github.com/bitjungle/gpemulator/pkg/types"
)

// Trace is an ordered, append-only, randomly readable sequence of Samples.
type Trace struct {
	ParameterNames []string
	OutputNames    []string
	samples        []parameter.Sample
}

// New returns an empty Trace labeled with parameterNames and outputNames;
// these fix the width every appended Sample must match.
func New(parameterNames, outputNames []string) *Trace {
	return &Trace{ParameterNames: parameterNames, OutputNames: outputNames}
}

// Add appends s to the trace. s.Point must have len(ParameterNames)
// entries and s.Output must have len(OutputNames) entries.
func (t *Trace) Add(s parameter.Sample) error {
	if len(s.Point) != len(t.ParameterNames) {
		return types.NewDimensionMismatchError("sample parameter count mismatch", len(t.ParameterNames), len(s.Point))
	}
	if len(s.Output) != len(t.OutputNames) {
		return types.NewDimensionMismatchError("sample output count mismatch", len(t.OutputNames), len(s.Output))
	}
	t.samples = append(t.samples, s)
	return nil
}

// Len returns the number of appended samples.
func (t *Trace) Len() int { return len(t.samples) }

// At returns the sample at idx.
func (t *Trace) At(idx int) parameter.Sample { return t.samples[idx] }

// WriteCSV serializes the header and every sample to w, one sample per
// line, LF-terminated. Numeric fields use 17 significant digits, enough
// for any float64 to round-trip exactly.
func (t *Trace) WriteCSV(w io.Writer) error {
	header := make([]string, 0, len(t.ParameterNames)+len(t.OutputNames)+1)
	for _, name := range t.ParameterNames {
		header = append(header, strconv.Quote(name))
	}
	for _, name := range t.OutputNames {
		header = append(header, strconv.Quote(name))
	}
	header = append(header, `"LogLikelihood"`)
	if _, err := fmt.Fprintf(w, "%s\n", strings.Join(header, ",")); err != nil {
		return types.NewFileFormatError("failed to write trace header", err)
	}

	row := make([]string, 0, len(t.ParameterNames)+len(t.OutputNames)+1)
	for _, s := range t.samples {
		row = row[:0]
		for _, v := range s.Point {
			row = append(row, formatFloat(v))
		}
		for _, v := range s.Output {
			row = append(row, formatFloat(v))
		}
		row = append(row, formatFloat(s.LogLikelihood))
		if _, err := fmt.Fprintf(w, "%s\n", strings.Join(row, ",")); err != nil {
			return types.NewFileFormatError("failed to write trace row", err)
		}
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 17, 64)
}

// ReadCSV parses the inverse of WriteCSV: a quoted header line followed
// by numeric rows. The last len(OutputNames)+1 header columns are
// assumed to be output names followed by "LogLikelihood"; the remaining
// leading columns are parameter names.
func ReadCSV(r io.Reader, numParameters, numOutputs int) (*Trace, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, types.NewFileFormatError("failed to read trace CSV", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) == 0 {
		return nil, types.NewFileFormatError("trace CSV is empty", nil)
	}

	headerFields := splitCSVLine(lines[0])
	want := numParameters + numOutputs + 1
	if len(headerFields) != want {
		return nil, types.NewFileFormatError(
			fmt.Sprintf("trace header has %d fields, want %d", len(headerFields), want), nil)
	}

	t := &Trace{
		ParameterNames: unquoteAll(headerFields[:numParameters]),
		OutputNames:    unquoteAll(headerFields[numParameters : numParameters+numOutputs]),
	}

	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		fields := splitCSVLine(line)
		if len(fields) != want {
			return nil, types.NewFileFormatError(
				fmt.Sprintf("trace row has %d fields, want %d", len(fields), want), nil)
		}
		point := make([]float64, numParameters)
		for i := 0; i < numParameters; i++ {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				return nil, types.NewParseFailureError("failed to parse parameter value", err)
			}
			point[i] = v
		}
		output := make([]float64, numOutputs)
		for i := 0; i < numOutputs; i++ {
			v, err := strconv.ParseFloat(fields[numParameters+i], 64)
			if err != nil {
				return nil, types.NewParseFailureError("failed to parse output value", err)
			}
			output[i] = v
		}
		ll, err := strconv.ParseFloat(fields[want-1], 64)
		if err != nil {
			return nil, types.NewParseFailureError("failed to parse log-likelihood value", err)
		}
		t.samples = append(t.samples, parameter.Sample{Point: point, Output: output, LogLikelihood: ll})
	}
	return t, nil
}

func splitCSVLine(line string) []string {
	return strings.Split(line, ",")
}

func unquoteAll(fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		if unquoted, err := strconv.Unquote(f); err == nil {
			out[i] = unquoted
		} else {
			out[i] = f
		}
	}
	return out
}
