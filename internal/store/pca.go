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

// PCADecomposition is the on-disk form of the Emulator's PCA block,
// covering exactly the stanzas PCADecomposition.dat carries: per-output
// means and uncertainty scales, plus the full (not-yet-retained)
// eigenvalue/eigenvector block.
type PCADecomposition struct {
	OutputMeans             []float64
	OutputUncertaintyScales []float64
	Eigenvalues             []float64   // ascending
	Eigenvectors            [][]float64 // t x t, column i is the i-th eigenvector
}

// ReadPCADecomposition parses the stanza sequence OUTPUT_MEANS,
// OUTPUT_UNCERTAINTY_SCALES, OUTPUT_PCA_EIGENVALUES,
// OUTPUT_PCA_EIGENVECTORS, END_OF_FILE from r. Leading '#' comment lines
// are skipped wherever a stanza header is expected.
func ReadPCADecomposition(r io.Reader) (*PCADecomposition, error) {
	sc := newStanzaScanner(r, "PCADecomposition.dat")

	means, err := sc.vectorStanza("OUTPUT_MEANS")
	if err != nil {
		return nil, err
	}
	scales, err := sc.vectorStanza("OUTPUT_UNCERTAINTY_SCALES")
	if err != nil {
		return nil, err
	}
	eigenvalues, err := sc.vectorStanza("OUTPUT_PCA_EIGENVALUES")
	if err != nil {
		return nil, err
	}
	eigenvectors, err := sc.matrixStanza("OUTPUT_PCA_EIGENVECTORS")
	if err != nil {
		return nil, err
	}
	if err := sc.expectLine("END_OF_FILE"); err != nil {
		return nil, err
	}

	return &PCADecomposition{
		OutputMeans:             means,
		OutputUncertaintyScales: scales,
		Eigenvalues:             eigenvalues,
		Eigenvectors:            eigenvectors,
	}, nil
}

// WritePCADecomposition serializes d in the same stanza order
// ReadPCADecomposition expects, at round-trip numeric precision.
func WritePCADecomposition(w io.Writer, d *PCADecomposition) error {
	if err := writeVectorStanza(w, "OUTPUT_MEANS", d.OutputMeans); err != nil {
		return err
	}
	if err := writeVectorStanza(w, "OUTPUT_UNCERTAINTY_SCALES", d.OutputUncertaintyScales); err != nil {
		return err
	}
	if err := writeVectorStanza(w, "OUTPUT_PCA_EIGENVALUES", d.Eigenvalues); err != nil {
		return err
	}
	if err := writeMatrixStanza(w, "OUTPUT_PCA_EIGENVECTORS", d.Eigenvectors); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "END_OF_FILE\n"); err != nil {
		return types.NewFileFormatError("failed to write PCADecomposition.dat", err)
	}
	return nil
}

// LoadPCADecomposition opens and parses path.
func LoadPCADecomposition(path string) (*PCADecomposition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, types.NewFileFormatError("failed to open PCADecomposition.dat", err)
	}
	defer f.Close()
	return ReadPCADecomposition(f)
}

// SavePCADecomposition creates (or truncates) path and writes d to it.
func SavePCADecomposition(path string, d *PCADecomposition) error {
	f, err := os.Create(path)
	if err != nil {
		return types.NewFileFormatError("failed to create PCADecomposition.dat", err)
	}
	defer f.Close()
	return WritePCADecomposition(f, d)
}

// stanzaScanner is a small line-oriented reader shared by the
// PCADecomposition.dat and EmulatorState.dat formats: both are a
// sequence of "HEADER\n<dimensions>\n<values...>" stanzas, optionally
// preceded by '#' comment lines.
type stanzaScanner struct {
	sc       *bufio.Scanner
	fileName string
}

func newStanzaScanner(r io.Reader, fileName string) *stanzaScanner {
	return &stanzaScanner{sc: bufio.NewScanner(r), fileName: fileName}
}

// nextLine returns the next non-comment, non-blank line.
func (s *stanzaScanner) nextLine() (string, error) {
	for s.sc.Scan() {
		line := strings.TrimSpace(s.sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		return line, nil
	}
	if err := s.sc.Err(); err != nil {
		return "", types.NewFileFormatError(fmt.Sprintf("failed to read %s", s.fileName), err)
	}
	return "", types.NewFileFormatError(fmt.Sprintf("%s ended unexpectedly", s.fileName), io.ErrUnexpectedEOF)
}

func (s *stanzaScanner) expectLine(want string) error {
	got, err := s.nextLine()
	if err != nil {
		return err
	}
	if got != want {
		return types.NewFileFormatError(
			fmt.Sprintf("%s: expected %q, got %q", s.fileName, want, got), nil)
	}
	return nil
}

// vectorStanza expects header, then a line with the vector length, then
// that many values each on its own line.
func (s *stanzaScanner) vectorStanza(header string) ([]float64, error) {
	if err := s.expectLine(header); err != nil {
		return nil, err
	}
	return s.readVector()
}

func (s *stanzaScanner) readVector() ([]float64, error) {
	n, err := s.readInt()
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		v, err := s.readFloat()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// matrixStanza expects header, then "rows cols" on one line, then
// rows*cols values in row-major order.
func (s *stanzaScanner) matrixStanza(header string) ([][]float64, error) {
	if err := s.expectLine(header); err != nil {
		return nil, err
	}
	rows, cols, err := s.readDims()
	if err != nil {
		return nil, err
	}
	m := make([][]float64, rows)
	for i := 0; i < rows; i++ {
		m[i] = make([]float64, cols)
		for j := 0; j < cols; j++ {
			v, err := s.readFloat()
			if err != nil {
				return nil, err
			}
			m[i][j] = v
		}
	}
	return m, nil
}

// readDims reads a matrix dimension line holding the row and column
// counts separated by a space.
func (s *stanzaScanner) readDims() (rows, cols int, err error) {
	line, err := s.nextLine()
	if err != nil {
		return 0, 0, err
	}
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return 0, 0, types.NewParseFailureError(
			fmt.Sprintf("%s: expected \"rows cols\", got %q", s.fileName, line), nil)
	}
	rows, errRows := strconv.Atoi(fields[0])
	cols, errCols := strconv.Atoi(fields[1])
	if errRows != nil || errCols != nil {
		return 0, 0, types.NewParseFailureError(
			fmt.Sprintf("%s: expected \"rows cols\", got %q", s.fileName, line), nil)
	}
	return rows, cols, nil
}

func (s *stanzaScanner) readInt() (int, error) {
	line, err := s.nextLine()
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(line)
	if err != nil {
		return 0, types.NewParseFailureError(fmt.Sprintf("%s: expected an integer, got %q", s.fileName, line), err)
	}
	return n, nil
}

func (s *stanzaScanner) readFloat() (float64, error) {
	line, err := s.nextLine()
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(line, 64)
	if err != nil {
		return 0, types.NewParseFailureError(fmt.Sprintf("%s: expected a number, got %q", s.fileName, line), err)
	}
	return v, nil
}

func writeVectorStanza(w io.Writer, header string, v []float64) error {
	if _, err := fmt.Fprintf(w, "%s\n%d\n", header, len(v)); err != nil {
		return types.NewFileFormatError("failed to write stanza header", err)
	}
	for _, x := range v {
		if _, err := fmt.Fprintf(w, "%s\n", formatNum(x)); err != nil {
			return types.NewFileFormatError("failed to write stanza value", err)
		}
	}
	return nil
}

func writeMatrixStanza(w io.Writer, header string, m [][]float64) error {
	rows := len(m)
	cols := 0
	if rows > 0 {
		cols = len(m[0])
	}
	if _, err := fmt.Fprintf(w, "%s\n%d %d\n", header, rows, cols); err != nil {
		return types.NewFileFormatError("failed to write stanza header", err)
	}
	for _, row := range m {
		for _, x := range row {
			if _, err := fmt.Fprintf(w, "%s\n", formatNum(x)); err != nil {
				return types.NewFileFormatError("failed to write stanza value", err)
			}
		}
	}
	return nil
}
