// Package emulator implements the multi-output Gaussian-process emulator:
// principal-component decomposition of training outputs, one SingleModel
// per retained component, and the prediction-time synthesis back into
// output space.
package emulator

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/bitjungle/gpemulator/internal/kernel"
	"github.com/bitjungle/gpemulator/internal/parameter"
	"github.com/bitjungle/gpemulator/internal/utils"
	"github.com/bitjungle/gpemulator/pkg/types"
)

// Status is the Emulator's training state machine. Later stages have
// larger ordinal values; most operations require a minimum Status.
type Status int

const (
	// Uninitialized is the state of a freshly constructed Emulator.
	Uninitialized Status = iota
	// Untrained means training data has been loaded.
	Untrained
	// Uncached means PCA, retention, and hyperparameters are set but
	// SingleModel caches have not been (re)built.
	Uncached
	// Ready means every SingleModel's cache has been built; prediction is allowed.
	Ready
)

// String names the Status for diagnostics and error messages.
func (s Status) String() string {
	switch s {
	case Uninitialized:
		return "UNINITIALIZED"
	case Untrained:
		return "UNTRAINED"
	case Uncached:
		return "UNCACHED"
	case Ready:
		return "READY"
	default:
		return "UNKNOWN"
	}
}

// Emulator is the multi-output Gaussian-process surrogate: mean +
// diagonal uncertainty scale + PCA rotation + one SingleModel per
// retained component.
type Emulator struct {
	Parameters  []parameter.Parameter
	OutputNames []string

	X [][]float64 // N x p design
	Y [][]float64 // N x t raw outputs

	OutputMeans       []float64 // t
	UncertaintyScales []float64 // t
	ObservedValues    []float64 // t
	ObservedVariances []float64 // t

	Eigenvalues  []float64   // t, ascending
	Eigenvectors [][]float64 // t x t, column i is the i-th eigenvector

	RetainedCount        int
	RetainedEigenvectors [][]float64 // t x r, the last r columns of Eigenvectors
	Z                    [][]float64 // N x r principal-component scores

	Models []*SingleModel // length r

	// Parallel enables goroutine-per-component fan-out in MakeCache and
	// Predict. Safe because each component's work touches only its own
	// SingleModel and the shared, immutable X / RetainedEigenvectors.
	Parallel bool

	status Status
	stdY   [][]float64 // N x t standardized outputs, cached by PrincipalComponentDecompose
}

// New returns an empty, Uninitialized Emulator.
func New() *Emulator {
	return &Emulator{status: Uninitialized}
}

// Status returns the current state.
func (e *Emulator) Status() Status { return e.status }

// NumParameters returns p.
func (e *Emulator) NumParameters() int { return len(e.Parameters) }

// NumTrainingPoints returns N.
func (e *Emulator) NumTrainingPoints() int { return len(e.X) }

// LoadTrainingData validates and stores the training design, sets default
// uncertainty scales (1.0) if none are yet set, and advances the state
// to Untrained.
func (e *Emulator) LoadTrainingData(
	X, Y [][]float64,
	parameters []parameter.Parameter,
	outputNames []string,
	observedValues, observedVariances []float64,
) error {
	n := len(X)
	p := len(parameters)
	t := len(outputNames)

	if n == 0 || p == 0 || t == 0 {
		return types.NewInvalidArgumentError("training data must have at least one row, parameter, and output")
	}
	if len(Y) != n {
		return types.NewDimensionMismatchError("X and Y must have the same number of rows", n, len(Y))
	}
	for i, row := range X {
		if len(row) != p {
			return types.NewDimensionMismatchError("X row width must equal the number of parameters", p, len(row))
		}
		_ = i
	}
	for i, row := range Y {
		if len(row) != t {
			return types.NewDimensionMismatchError("Y row width must equal the number of outputs", t, len(row))
		}
		_ = i
	}
	if len(observedValues) != t {
		return types.NewDimensionMismatchError("observedValues length must equal the number of outputs", t, len(observedValues))
	}
	if len(observedVariances) != t {
		return types.NewDimensionMismatchError("observedVariances length must equal the number of outputs", t, len(observedVariances))
	}

	e.X = X
	e.Y = Y
	e.Parameters = parameters
	e.OutputNames = outputNames
	e.ObservedValues = observedValues
	e.ObservedVariances = observedVariances

	if e.UncertaintyScales == nil {
		scales := make([]float64, t)
		for i := range scales {
			scales[i] = 1.0
		}
		e.UncertaintyScales = scales
	}

	e.status = Untrained
	return nil
}

// SetUncertaintyScales overrides the per-output standardization scales
// used by PrincipalComponentDecompose. Every scale must be strictly
// positive.
func (e *Emulator) SetUncertaintyScales(scales []float64) error {
	if len(scales) != len(e.OutputNames) {
		return types.NewDimensionMismatchError("uncertainty scales length mismatch", len(e.OutputNames), len(scales))
	}
	for _, s := range scales {
		if s <= 0 {
			return types.NewInvalidUncertaintyError("uncertainty scales must be strictly positive")
		}
	}
	e.UncertaintyScales = scales
	if e.status > Untrained {
		e.status = Untrained
	}
	return nil
}

// PrincipalComponentDecompose computes output_means, standardizes Y,
// forms the t-by-t sample covariance (1/N)*Y_std^T*Y_std, and solves the
// symmetric eigenproblem, storing eigenvalues ascending. On success the
// state becomes Uncached.
func (e *Emulator) PrincipalComponentDecompose() error {
	if e.status < Untrained {
		return types.NewNotReadyError("training data must be loaded before PCA decomposition")
	}

	n := len(e.X)
	t := len(e.OutputNames)

	means := make([]float64, t)
	for j := 0; j < t; j++ {
		col := make([]float64, n)
		for i := 0; i < n; i++ {
			col[i] = e.Y[i][j]
		}
		means[j] = stat.Mean(col, nil)
	}

	stdY := make([][]float64, n)
	for i := 0; i < n; i++ {
		stdY[i] = make([]float64, t)
		for j := 0; j < t; j++ {
			scale := e.UncertaintyScales[j]
			if scale == 0 {
				return types.NewInvalidUncertaintyError("uncertainty scale must not be zero")
			}
			stdY[i][j] = (e.Y[i][j] - means[j]) / scale
		}
	}

	Ystd := utils.RowsToDense(stdY)
	cov := new(mat.Dense) // t x t
	cov.Mul(Ystd.T(), Ystd)
	cov.Scale(1.0/float64(n), cov)

	symCov := mat.NewSymDense(t, nil)
	for i := 0; i < t; i++ {
		for j := i; j < t; j++ {
			symCov.SetSym(i, j, cov.At(i, j))
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(symCov, true); !ok {
		return types.NewNumericallyIllConditionedError("eigendecomposition of output covariance failed", nil)
	}

	eigenvalues := eig.Values(nil) // ascending, per gonum's EigenSym contract
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	eigenvectors := make([][]float64, t)
	for i := 0; i < t; i++ {
		eigenvectors[i] = make([]float64, t)
		for j := 0; j < t; j++ {
			eigenvectors[i][j] = vecs.At(i, j)
		}
	}

	e.OutputMeans = means
	e.stdY = stdY
	e.Eigenvalues = eigenvalues
	e.Eigenvectors = eigenvectors
	e.status = Uncached
	return nil
}

// RetainPrincipalComponents selects the smallest trailing (largest-
// eigenvalue) block of components whose resolving power reaches f,
// rebuilds Z, and allocates one SingleModel per retained component.
func (e *Emulator) RetainPrincipalComponents(f float64) error {
	if e.stdY == nil {
		return types.NewNotReadyError("PrincipalComponentDecompose must run before retention")
	}
	if f <= 0 || f > 1 {
		return types.NewInvalidArgumentError("fractional resolving power must be in (0, 1]")
	}

	t := len(e.Eigenvalues)
	total := 1.0
	for _, lambda := range e.Eigenvalues {
		total *= math.Sqrt(1 + lambda)
	}

	r := t
	running := 1.0
	for k := 1; k <= t; k++ {
		// take the k largest eigenvalues: indices t-k .. t-1 (ascending order)
		running = 1.0
		for i := t - k; i < t; i++ {
			running *= math.Sqrt(1 + e.Eigenvalues[i])
		}
		if running >= f*total {
			r = k
			break
		}
	}

	return e.retainComponents(r)
}

// RetainComponents retains exactly count components (the count largest by
// eigenvalue), bypassing the resolving-power rule. Used when replaying a
// persisted retention decision, whose count is authoritative and need not
// be re-derivable from any fraction.
func (e *Emulator) RetainComponents(count int) error {
	if e.stdY == nil {
		return types.NewNotReadyError("PrincipalComponentDecompose must run before retention")
	}
	if count < 1 || count > len(e.Eigenvalues) {
		return types.NewInvalidArgumentError("retained component count must be in 1..t")
	}
	return e.retainComponents(count)
}

// retainComponents rebuilds the retained eigenvectors, the score matrix
// Z, and the per-component SingleModels for the r largest components.
func (e *Emulator) retainComponents(r int) error {
	t := len(e.Eigenvalues)

	retainedVecs := make([][]float64, t)
	for i := 0; i < t; i++ {
		retainedVecs[i] = make([]float64, r)
		copy(retainedVecs[i], e.Eigenvectors[i][t-r:])
	}

	n := len(e.stdY)
	Z := make([][]float64, n)
	for i := 0; i < n; i++ {
		Z[i] = make([]float64, r)
		for k := 0; k < r; k++ {
			var sum float64
			for j := 0; j < t; j++ {
				sum += e.stdY[i][j] * retainedVecs[j][k]
			}
			Z[i][k] = sum
		}
	}

	models := make([]*SingleModel, r)
	for k := 0; k < r; k++ {
		zCol := make([]float64, n)
		for i := 0; i < n; i++ {
			zCol[i] = Z[i][k]
		}
		models[k] = &SingleModel{emulator: e, Z: zCol}
	}

	e.RetainedCount = r
	e.RetainedEigenvectors = retainedVecs
	e.Z = Z
	e.Models = models
	e.status = Uncached
	return nil
}

// BasicTraining initializes every SingleModel's hyperparameters: theta[0]
// = amplitude, theta[1] = nugget (and, for POWER_EXPONENTIAL, theta[2] =
// 2), with per-dimension length-scales derived from each parameter's
// prior quartile range. Matern kernels collapse to a single shared
// length-scale equal to scale times the smallest such range.
func (e *Emulator) BasicTraining(tag kernel.Tag, regressionOrder int, nugget, amplitude, scale float64) error {
	if len(e.Models) == 0 {
		return types.NewNotReadyError("components must be retained before training")
	}
	if regressionOrder < 0 || regressionOrder > 3 {
		return types.NewInvalidArgumentError("regression order must be in 0..3")
	}

	p := len(e.Parameters)
	ranges := make([]float64, p)
	minRange := math.Inf(1)
	for i, param := range e.Parameters {
		qr := math.Abs(rangeQuartile(param))
		ranges[i] = qr
		if qr < minRange {
			minRange = qr
		}
	}

	nTheta := kernel.NumHyperparameters(tag, p)
	for _, m := range e.Models {
		theta := make([]float64, nTheta)
		theta[0] = amplitude
		theta[1] = nugget

		switch tag {
		case kernel.SquareExponential:
			for i := 0; i < p; i++ {
				theta[2+i] = scale * ranges[i]
			}
		case kernel.PowerExponential:
			theta[2] = 2
			for i := 0; i < p; i++ {
				theta[3+i] = scale * ranges[i]
			}
		case kernel.Matern32, kernel.Matern52:
			theta[2] = scale * minRange
		}

		m.Kernel = tag
		m.RegressionOrder = regressionOrder
		m.Theta = theta
		m.cached = false
	}

	e.status = Uncached
	return nil
}

func rangeQuartile(p parameter.Parameter) float64 {
	q75 := p.Prior.Percentile(0.75)
	q25 := p.Prior.Percentile(0.25)
	return q75 - q25
}

// MakeCache builds every SingleModel's factorization cache. It is
// idempotent. When Parallel is set, components are built concurrently;
// each goroutine reads only the shared, immutable X and writes to its
// own SingleModel.
func (e *Emulator) MakeCache() error {
	if e.status < Uncached {
		return types.NewNotReadyError("emulator must have retained components and hyperparameters before caching")
	}
	if len(e.Models) == 0 {
		return types.NewNotReadyError("no retained components to cache")
	}

	if !e.Parallel {
		for _, m := range e.Models {
			if err := m.MakeCache(e.X); err != nil {
				return err
			}
		}
		e.status = Ready
		return nil
	}

	errs := make([]error, len(e.Models))
	var wg sync.WaitGroup
	for i, m := range e.Models {
		wg.Add(1)
		go func(i int, m *SingleModel) {
			defer wg.Done()
			errs[i] = m.MakeCache(e.X)
		}(i, m)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	e.status = Ready
	return nil
}

// Predict returns the synthesized output mean and covariance at x.
func (e *Emulator) Predict(x []float64) ([]float64, [][]float64, error) {
	if err := e.checkReady(x); err != nil {
		return nil, nil, err
	}

	r := e.RetainedCount
	mu := make([]float64, r)
	sigma2 := make([]float64, r)

	if !e.Parallel {
		for i, m := range e.Models {
			meanI, varI, err := m.Predict(e.X, x)
			if err != nil {
				return nil, nil, err
			}
			mu[i], sigma2[i] = meanI, varI
		}
	} else {
		errs := make([]error, r)
		var wg sync.WaitGroup
		for i, m := range e.Models {
			wg.Add(1)
			go func(i int, m *SingleModel) {
				defer wg.Done()
				meanI, varI, err := m.Predict(e.X, x)
				mu[i], sigma2[i] = meanI, varI
				errs[i] = err
			}(i, m)
		}
		wg.Wait()
		for _, err := range errs {
			if err != nil {
				return nil, nil, err
			}
		}
	}

	t := len(e.OutputNames)
	y := make([]float64, t)
	for j := 0; j < t; j++ {
		var proj float64
		for i := 0; i < r; i++ {
			proj += e.RetainedEigenvectors[j][i] * mu[i]
		}
		y[j] = e.OutputMeans[j] + e.UncertaintyScales[j]*proj
	}

	cov := make([][]float64, t)
	for j := 0; j < t; j++ {
		cov[j] = make([]float64, t)
		for k := 0; k < t; k++ {
			var acc float64
			for i := 0; i < r; i++ {
				acc += e.RetainedEigenvectors[j][i] * sigma2[i] * e.RetainedEigenvectors[k][i]
			}
			cov[j][k] = e.UncertaintyScales[j] * e.UncertaintyScales[k] * acc
		}
	}

	return y, cov, nil
}

// PredictMean returns the synthesized output mean at x, skipping the
// per-component variance work.
func (e *Emulator) PredictMean(x []float64) ([]float64, error) {
	if err := e.checkReady(x); err != nil {
		return nil, err
	}

	r := e.RetainedCount
	mu := make([]float64, r)
	for i, m := range e.Models {
		meanI, err := m.PredictMean(e.X, x)
		if err != nil {
			return nil, err
		}
		mu[i] = meanI
	}

	t := len(e.OutputNames)
	y := make([]float64, t)
	for j := 0; j < t; j++ {
		var proj float64
		for i := 0; i < r; i++ {
			proj += e.RetainedEigenvectors[j][i] * mu[i]
		}
		y[j] = e.OutputMeans[j] + e.UncertaintyScales[j]*proj
	}
	return y, nil
}

func (e *Emulator) checkReady(x []float64) error {
	if e.status < Ready {
		return types.NewNotReadyError("emulator is not in the READY state: " + e.status.String())
	}
	if len(x) != len(e.Parameters) {
		return types.NewDimensionMismatchError("query point dimension mismatch", len(e.Parameters), len(x))
	}
	return nil
}
