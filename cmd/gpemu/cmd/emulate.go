package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bitjungle/gpemulator/internal/store"
)

var (
	emulateParallel   bool
	emulateMeanOnly   bool
	emulateQueryPoint []float64
)

var emulateCmd = &cobra.Command{
	Use:   "emulate",
	Short: "Predict simulator outputs at one or more query points",
	Long: `emulate loads a trained emulator directory (PCADecomposition.dat,
EmulatorState.dat, the training design, and priors) and prints one line
of CSV per query point: the predicted output means, followed by the
upper triangle of the predicted covariance unless --mean-only is set.

Query points are read one per line from stdin, each a comma- or
whitespace-separated list of p values, unless --point is given on the
command line for a single point.

Examples:
  gpemu emulate --dir stats --point 0.1,0.2
  printf '0.1 0.2\n0.3 0.4\n' | gpemu emulate --dir stats`,
	RunE: runEmulate,
}

func init() {
	rootCmd.AddCommand(emulateCmd)

	emulateCmd.Flags().BoolVar(&emulateParallel, "parallel", false, "Evaluate retained components concurrently")
	emulateCmd.Flags().BoolVar(&emulateMeanOnly, "mean-only", false, "Skip the covariance computation (PredictMean)")
	emulateCmd.Flags().Float64SliceVar(&emulateQueryPoint, "point", nil, "A single query point, e.g. --point 0.1,0.2")
}

func runEmulate(cmd *cobra.Command, args []string) error {
	dir := store.Dir(statDir)
	emu, err := dir.LoadTrainedEmulator(emulateParallel)
	if err != nil {
		return fmt.Errorf("failed to load trained emulator: %w", err)
	}
	logf("loaded emulator: %d parameters, %d outputs, %d retained components\n",
		emu.NumParameters(), len(emu.OutputNames), emu.RetainedCount)

	var points [][]float64
	if len(emulateQueryPoint) > 0 {
		points = [][]float64{emulateQueryPoint}
	} else {
		points, err = readQueryPoints(os.Stdin, emu.NumParameters())
		if err != nil {
			return err
		}
	}

	header := append([]string(nil), emu.OutputNames...)
	if !emulateMeanOnly {
		for i := range emu.OutputNames {
			for j := i; j < len(emu.OutputNames); j++ {
				header = append(header, fmt.Sprintf("cov(%s,%s)", emu.OutputNames[i], emu.OutputNames[j]))
			}
		}
	}
	fmt.Println(strings.Join(header, ","))

	for _, x := range points {
		var y []float64
		var cov [][]float64
		if emulateMeanOnly {
			y, err = emu.PredictMean(x)
		} else {
			y, cov, err = emu.Predict(x)
		}
		if err != nil {
			return fmt.Errorf("prediction failed at %v: %w", x, err)
		}

		fields := make([]string, 0, len(header))
		for _, v := range y {
			fields = append(fields, strconv.FormatFloat(v, 'g', 17, 64))
		}
		if !emulateMeanOnly {
			for i := range cov {
				for j := i; j < len(cov); j++ {
					fields = append(fields, strconv.FormatFloat(cov[i][j], 'g', 17, 64))
				}
			}
		}
		fmt.Println(strings.Join(fields, ","))
	}
	return nil
}

func readQueryPoints(r io.Reader, p int) ([][]float64, error) {
	var points [][]float64
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.FieldsFunc(line, func(r rune) bool { return r == ',' || r == ' ' || r == '\t' })
		if len(fields) != p {
			return nil, fmt.Errorf("query point %q has %d fields, want %d", line, len(fields), p)
		}
		point := make([]float64, p)
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("failed to parse query value %q: %w", f, err)
			}
			point[i] = v
		}
		points = append(points, point)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read query points: %w", err)
	}
	return points, nil
}
