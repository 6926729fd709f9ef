package store

import (
	"fmt"
	"io"
	"os"

	"github.com/bitjungle/gpemulator/internal/kernel"
	"github.com/bitjungle/gpemulator/pkg/types"
)

// SubModelState is the on-disk hyperparameter record for one retained
// SingleModel: its covariance tag, regression order, and theta vector.
type SubModelState struct {
	CovarianceFunction kernel.Tag
	RegressionOrder    int
	Thetas             []float64
}

// EmulatorState is the on-disk form of EmulatorState.dat: the
// per-component hyperparameters left after BasicTraining (or any later
// optimizer), persisted so a trained emulator can be reloaded without
// retraining.
type EmulatorState struct {
	SubModels []SubModelState
}

// ReadEmulatorState parses "SUBMODELS <r>" followed by r blocks of
// "MODEL <i>" / "COVARIANCE_FUNCTION <tag>" / "REGRESSION_ORDER <k>" /
// "THETAS" <vector> / "END_OF_MODEL", then "END_OF_FILE".
func ReadEmulatorState(r io.Reader) (*EmulatorState, error) {
	sc := newStanzaScanner(r, "EmulatorState.dat")

	header, err := sc.nextLine()
	if err != nil {
		return nil, err
	}
	var count int
	if _, err := fmt.Sscanf(header, "SUBMODELS %d", &count); err != nil {
		return nil, types.NewFileFormatError(
			fmt.Sprintf("EmulatorState.dat: expected \"SUBMODELS <n>\", got %q", header), err)
	}

	state := &EmulatorState{SubModels: make([]SubModelState, count)}
	for i := 0; i < count; i++ {
		modelLine, err := sc.nextLine()
		if err != nil {
			return nil, err
		}
		var idx int
		if _, err := fmt.Sscanf(modelLine, "MODEL %d", &idx); err != nil {
			return nil, types.NewFileFormatError(
				fmt.Sprintf("EmulatorState.dat: expected \"MODEL <i>\", got %q", modelLine), err)
		}

		covLine, err := sc.nextLine()
		if err != nil {
			return nil, err
		}
		var tagStr string
		if _, err := fmt.Sscanf(covLine, "COVARIANCE_FUNCTION %s", &tagStr); err != nil {
			return nil, types.NewFileFormatError(
				fmt.Sprintf("EmulatorState.dat: expected \"COVARIANCE_FUNCTION <tag>\", got %q", covLine), err)
		}
		tag, err := kernel.ParseTag(tagStr)
		if err != nil {
			return nil, types.NewFileFormatError(err.Error(), err)
		}

		orderLine, err := sc.nextLine()
		if err != nil {
			return nil, err
		}
		var order int
		if _, err := fmt.Sscanf(orderLine, "REGRESSION_ORDER %d", &order); err != nil {
			return nil, types.NewFileFormatError(
				fmt.Sprintf("EmulatorState.dat: expected \"REGRESSION_ORDER <k>\", got %q", orderLine), err)
		}

		thetas, err := sc.vectorStanza("THETAS")
		if err != nil {
			return nil, err
		}

		if err := sc.expectLine("END_OF_MODEL"); err != nil {
			return nil, err
		}

		state.SubModels[i] = SubModelState{
			CovarianceFunction: tag,
			RegressionOrder:    order,
			Thetas:             thetas,
		}
	}

	if err := sc.expectLine("END_OF_FILE"); err != nil {
		return nil, err
	}
	return state, nil
}

// WriteEmulatorState serializes state in the same block order
// ReadEmulatorState expects.
func WriteEmulatorState(w io.Writer, state *EmulatorState) error {
	if _, err := fmt.Fprintf(w, "SUBMODELS %d\n", len(state.SubModels)); err != nil {
		return types.NewFileFormatError("failed to write EmulatorState.dat", err)
	}
	for i, m := range state.SubModels {
		if _, err := fmt.Fprintf(w, "MODEL %d\nCOVARIANCE_FUNCTION %s\nREGRESSION_ORDER %d\n",
			i, m.CovarianceFunction.String(), m.RegressionOrder); err != nil {
			return types.NewFileFormatError("failed to write EmulatorState.dat model block", err)
		}
		if err := writeVectorStanza(w, "THETAS", m.Thetas); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "END_OF_MODEL\n"); err != nil {
			return types.NewFileFormatError("failed to write EmulatorState.dat model terminator", err)
		}
	}
	if _, err := io.WriteString(w, "END_OF_FILE\n"); err != nil {
		return types.NewFileFormatError("failed to write EmulatorState.dat terminator", err)
	}
	return nil
}

// LoadEmulatorState opens and parses path.
func LoadEmulatorState(path string) (*EmulatorState, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, types.NewFileFormatError("failed to open EmulatorState.dat", err)
	}
	defer f.Close()
	return ReadEmulatorState(f)
}

// SaveEmulatorState creates (or truncates) path and writes state to it.
func SaveEmulatorState(path string, state *EmulatorState) error {
	f, err := os.Create(path)
	if err != nil {
		return types.NewFileFormatError("failed to create EmulatorState.dat", err)
	}
	defer f.Close()
	return WriteEmulatorState(f, state)
}
