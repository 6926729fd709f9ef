package emulator

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/bitjungle/gpemulator/internal/design"
	"github.com/bitjungle/gpemulator/internal/distribution"
	"github.com/bitjungle/gpemulator/internal/kernel"
	"github.com/bitjungle/gpemulator/internal/parameter"
)

// sinc evaluates sin(r)/r with the removable singularity filled in.
func sinc(r float64) float64 {
	if r == 0 {
		return 1
	}
	return math.Sin(r) / r
}

// sinc2D is the smooth two-parameter test function
// f(x, y) = sinc(sqrt(x^2 + y^2 + 0.5*x*y)) over the unit square.
func sinc2D(x, y float64) float64 {
	return sinc(math.Sqrt(x*x + y*y + 0.5*x*y))
}

// buildSincEmulator trains the canonical 2D test emulator: 100
// Latin-hypercube design points over uniform [-1,1]^2 priors,
// square-exponential kernel, order 1, nugget 1e-3, amplitude 1,
// scale 1e-2, resolving power 0.999.
func buildSincEmulator(t *testing.T) *Emulator {
	t.Helper()

	params := []parameter.Parameter{
		parameter.New("x", distribution.NewUniform(-1, 1)),
		parameter.New("y", distribution.NewUniform(-1, 1)),
	}

	rng := rand.New(rand.NewSource(20260802))
	X, err := design.Generate(100, params, rng)
	if err != nil {
		t.Fatalf("design.Generate: %v", err)
	}

	Y := make([][]float64, len(X))
	for i, row := range X {
		Y[i] = []float64{sinc2D(row[0], row[1])}
	}

	e := New()
	if err := e.LoadTrainingData(X, Y, params, []string{"f"}, []float64{0.2}, []float64{0.05}); err != nil {
		t.Fatalf("LoadTrainingData: %v", err)
	}
	if err := e.PrincipalComponentDecompose(); err != nil {
		t.Fatalf("PrincipalComponentDecompose: %v", err)
	}
	if err := e.RetainPrincipalComponents(0.999); err != nil {
		t.Fatalf("RetainPrincipalComponents: %v", err)
	}
	if err := e.BasicTraining(kernel.SquareExponential, 1, 1e-3, 1.0, 1e-2); err != nil {
		t.Fatalf("BasicTraining: %v", err)
	}
	if err := e.MakeCache(); err != nil {
		t.Fatalf("MakeCache: %v", err)
	}
	return e
}

func TestSincEmulatorReproducesDesignPoints(t *testing.T) {
	e := buildSincEmulator(t)

	maxErr := 0.0
	for i, x := range e.X {
		y, err := e.PredictMean(x)
		if err != nil {
			t.Fatalf("PredictMean(%v): %v", x, err)
		}
		if diff := math.Abs(y[0] - e.Y[i][0]); diff > maxErr {
			maxErr = diff
		}
	}
	if maxErr >= 1e-4 {
		t.Errorf("max |PredictMean - f| over the design = %v, want < 1e-4", maxErr)
	}
}

func TestSincEmulatorBoundedOverUnitSquare(t *testing.T) {
	e := buildSincEmulator(t)

	maxErr := 0.0
	for i := 0; i < 100; i++ {
		for j := 0; j < 100; j++ {
			x := -1 + 2*float64(i)/99
			y := -1 + 2*float64(j)/99
			pred, err := e.PredictMean([]float64{x, y})
			if err != nil {
				t.Fatalf("PredictMean(%v, %v): %v", x, y, err)
			}
			diff := math.Abs(pred[0] - sinc2D(x, y))
			if math.IsNaN(diff) || math.IsInf(diff, 0) {
				t.Fatalf("prediction error at (%v, %v) is not finite: %v", x, y, diff)
			}
			if diff > maxErr {
				maxErr = diff
			}
		}
	}
	t.Logf("max grid error = %v", maxErr)
}

// TestSingleModelInterpolatesScores checks that at each training row the
// per-component posterior mean reproduces that row's principal-component
// score to within 1e-10 of the score column's norm. The length-scale is
// wide enough that every kernel value stays above the clamp threshold,
// so the check isolates the factorization itself.
func TestSingleModelInterpolatesScores(t *testing.T) {
	params := []parameter.Parameter{
		parameter.New("x", distribution.NewUniform(-1, 1)),
		parameter.New("y", distribution.NewUniform(-1, 1)),
	}
	rng := rand.New(rand.NewSource(99))
	X, err := design.Generate(25, params, rng)
	if err != nil {
		t.Fatalf("design.Generate: %v", err)
	}
	Y := make([][]float64, len(X))
	for i, row := range X {
		Y[i] = []float64{sinc2D(row[0], row[1])}
	}

	e := New()
	if err := e.LoadTrainingData(X, Y, params, []string{"f"}, []float64{0.2}, []float64{0.05}); err != nil {
		t.Fatalf("LoadTrainingData: %v", err)
	}
	if err := e.PrincipalComponentDecompose(); err != nil {
		t.Fatalf("PrincipalComponentDecompose: %v", err)
	}
	if err := e.RetainPrincipalComponents(1.0); err != nil {
		t.Fatalf("RetainPrincipalComponents: %v", err)
	}
	if err := e.BasicTraining(kernel.SquareExponential, 1, 1e-2, 1.0, 0.5); err != nil {
		t.Fatalf("BasicTraining: %v", err)
	}
	if err := e.MakeCache(); err != nil {
		t.Fatalf("MakeCache: %v", err)
	}

	for ci, m := range e.Models {
		var norm float64
		for _, z := range m.Z {
			norm += z * z
		}
		norm = math.Sqrt(norm)
		tol := 1e-10 * norm

		for j, x := range e.X {
			mu, err := m.PredictMean(e.X, x)
			if err != nil {
				t.Fatalf("component %d PredictMean(row %d): %v", ci, j, err)
			}
			if math.Abs(mu-e.Z[j][ci]) > tol {
				t.Errorf("component %d row %d: mean %v, want %v within %v", ci, j, mu, e.Z[j][ci], tol)
			}
		}
	}
}

// TestRetainedCountFromKnownEigenvalues pins the retention rule on a
// fixed spectrum: with eigenvalues [0.72517, 4.60297, 24.9219] and
// f = 0.5, exactly the top two components are kept, and the retained
// eigenvectors equal the last two columns of the full eigenvector matrix.
func TestRetainedCountFromKnownEigenvalues(t *testing.T) {
	e := New()
	e.OutputNames = []string{"a", "b", "c"}
	e.Eigenvalues = []float64{0.72517, 4.60297, 24.9219}
	e.Eigenvectors = [][]float64{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
	e.stdY = [][]float64{
		{0.3, -1.1, 2.2},
		{-0.7, 0.4, -0.9},
	}
	e.status = Uncached

	if err := e.RetainPrincipalComponents(0.5); err != nil {
		t.Fatalf("RetainPrincipalComponents: %v", err)
	}
	if e.RetainedCount != 2 {
		t.Fatalf("RetainedCount = %d, want 2", e.RetainedCount)
	}
	for i := 0; i < 3; i++ {
		for k := 0; k < 2; k++ {
			if got, want := e.RetainedEigenvectors[i][k], e.Eigenvectors[i][1+k]; got != want {
				t.Errorf("RetainedEigenvectors[%d][%d] = %v, want %v", i, k, got, want)
			}
		}
	}
	// With identity eigenvectors, the scores are the last two standardized columns.
	for i := 0; i < 2; i++ {
		if e.Z[i][0] != e.stdY[i][1] || e.Z[i][1] != e.stdY[i][2] {
			t.Errorf("Z[%d] = %v, want [%v %v]", i, e.Z[i], e.stdY[i][1], e.stdY[i][2])
		}
	}
}

// TestRetainComponentsExactCount checks retention by count keeps
// exactly the requested components even when the spectrum has zero or
// tied eigenvalues that no fractional resolving power could select —
// the case that matters when replaying a persisted retention decision.
func TestRetainComponentsExactCount(t *testing.T) {
	e := New()
	e.OutputNames = []string{"a", "b", "c"}
	e.Eigenvalues = []float64{0, 0, 24.9219}
	e.Eigenvectors = [][]float64{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
	e.stdY = [][]float64{
		{0.3, -1.1, 2.2},
		{-0.7, 0.4, -0.9},
	}
	e.status = Uncached

	if err := e.RetainComponents(2); err != nil {
		t.Fatalf("RetainComponents(2): %v", err)
	}
	if e.RetainedCount != 2 {
		t.Fatalf("RetainedCount = %d, want 2", e.RetainedCount)
	}
	if len(e.Models) != 2 {
		t.Fatalf("len(Models) = %d, want 2", len(e.Models))
	}
	for i := 0; i < 3; i++ {
		for k := 0; k < 2; k++ {
			if got, want := e.RetainedEigenvectors[i][k], e.Eigenvectors[i][1+k]; got != want {
				t.Errorf("RetainedEigenvectors[%d][%d] = %v, want %v", i, k, got, want)
			}
		}
	}

	if err := e.RetainComponents(0); err == nil {
		t.Error("expected an error retaining zero components")
	}
	if err := e.RetainComponents(4); err == nil {
		t.Error("expected an error retaining more components than outputs")
	}
}

// TestRetentionSatisfiesResolvingPower checks the invariant that the
// retained eigenvalues' product of sqrt(1+lambda) reaches f times the
// total, on PCA output rather than a hand-picked spectrum.
func TestRetentionSatisfiesResolvingPower(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	n, p, outputs := 40, 2, 4

	params := []parameter.Parameter{
		parameter.New("x", distribution.NewUniform(0, 1)),
		parameter.New("y", distribution.NewUniform(0, 1)),
	}

	X := make([][]float64, n)
	Y := make([][]float64, n)
	for i := 0; i < n; i++ {
		X[i] = make([]float64, p)
		for j := range X[i] {
			X[i][j] = rng.Float64()
		}
		Y[i] = []float64{
			X[i][0] + X[i][1],
			math.Sin(3 * X[i][0]),
			0.1 * rng.NormFloat64(),
			X[i][0] * X[i][1],
		}
	}

	e := New()
	obs := make([]float64, outputs)
	vars := []float64{1, 1, 1, 1}
	if err := e.LoadTrainingData(X, Y, params, []string{"s", "w", "n", "m"}, obs, vars); err != nil {
		t.Fatalf("LoadTrainingData: %v", err)
	}
	if err := e.PrincipalComponentDecompose(); err != nil {
		t.Fatalf("PrincipalComponentDecompose: %v", err)
	}

	const f = 0.5
	if err := e.RetainPrincipalComponents(f); err != nil {
		t.Fatalf("RetainPrincipalComponents: %v", err)
	}

	total := 1.0
	for _, lambda := range e.Eigenvalues {
		total *= math.Sqrt(1 + lambda)
	}
	retained := 1.0
	for i := outputs - e.RetainedCount; i < outputs; i++ {
		retained *= math.Sqrt(1 + e.Eigenvalues[i])
	}
	if retained < f*total {
		t.Errorf("retained resolving power %v < %v (f * total)", retained, f*total)
	}

	// Minimality: one fewer component must fall short (unless only one is kept).
	if e.RetainedCount > 1 {
		smaller := 1.0
		for i := outputs - e.RetainedCount + 1; i < outputs; i++ {
			smaller *= math.Sqrt(1 + e.Eigenvalues[i])
		}
		if smaller >= f*total {
			t.Errorf("retention is not minimal: %d-1 components already reach %v >= %v", e.RetainedCount, smaller, f*total)
		}
	}
}

// TestMakeCacheIdempotent verifies running MakeCache twice yields
// bit-identical caches.
func TestMakeCacheIdempotent(t *testing.T) {
	e := buildTestEmulator(t)

	m := e.Models[0]
	firstCInv := append([]float64(nil), m.cInv.RawSymmetric().Data...)
	firstR1 := append([]float64(nil), m.r1.RawMatrix().Data...)
	firstR2 := append([]float64(nil), m.r2.RawMatrix().Data...)
	firstBeta := append([]float64(nil), m.beta.RawVector().Data...)
	firstGamma := append([]float64(nil), m.gamma.RawVector().Data...)

	if err := e.MakeCache(); err != nil {
		t.Fatalf("second MakeCache: %v", err)
	}
	if e.Status() != Ready {
		t.Fatalf("status after second MakeCache = %v, want Ready", e.Status())
	}

	checkBits := func(name string, want, got []float64) {
		t.Helper()
		if len(want) != len(got) {
			t.Fatalf("%s length changed: %d -> %d", name, len(want), len(got))
		}
		for i := range want {
			if math.Float64bits(want[i]) != math.Float64bits(got[i]) {
				t.Errorf("%s[%d] changed: %v -> %v", name, i, want[i], got[i])
			}
		}
	}
	checkBits("C_inv", firstCInv, m.cInv.RawSymmetric().Data)
	checkBits("R1", firstR1, m.r1.RawMatrix().Data)
	checkBits("R2", firstR2, m.r2.RawMatrix().Data)
	checkBits("beta", firstBeta, m.beta.RawVector().Data)
	checkBits("gamma", firstGamma, m.gamma.RawVector().Data)
}

// TestCacheInverseAccuracy rebuilds C from the kernel and checks
// C * C_inv is the identity within 1e-8 * N.
func TestCacheInverseAccuracy(t *testing.T) {
	e := buildSincEmulator(t)
	n := len(e.X)
	tol := 1e-8 * float64(n)

	for ci, m := range e.Models {
		C := mat.NewDense(n, n, nil)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				C.Set(i, j, kernel.Covariance(m.Kernel, m.Theta, e.X[i], e.X[j]))
			}
		}
		prod := new(mat.Dense)
		prod.Mul(C, m.cInv)

		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				want := 0.0
				if i == j {
					want = 1.0
				}
				if math.Abs(prod.At(i, j)-want) > tol {
					t.Fatalf("component %d: (C*C_inv)[%d][%d] = %v, want %v within %v",
						ci, i, j, prod.At(i, j), want, tol)
				}
			}
		}
	}
}

// TestPredictCovarianceSymmetricPSD checks the synthesized output
// covariance is symmetric with eigenvalues >= -1e-12 at off-design points.
func TestPredictCovarianceSymmetricPSD(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	n, outputs := 30, 3

	params := []parameter.Parameter{
		parameter.New("x", distribution.NewUniform(0, 1)),
		parameter.New("y", distribution.NewUniform(0, 1)),
	}

	X := make([][]float64, n)
	Y := make([][]float64, n)
	for i := 0; i < n; i++ {
		X[i] = []float64{rng.Float64(), rng.Float64()}
		Y[i] = []float64{
			X[i][0] + X[i][1],
			X[i][0] - X[i][1],
			math.Cos(2 * X[i][0]),
		}
	}

	e := New()
	if err := e.LoadTrainingData(X, Y, params, []string{"a", "b", "c"},
		make([]float64, outputs), []float64{1, 1, 1}); err != nil {
		t.Fatalf("LoadTrainingData: %v", err)
	}
	if err := e.PrincipalComponentDecompose(); err != nil {
		t.Fatalf("PrincipalComponentDecompose: %v", err)
	}
	if err := e.RetainPrincipalComponents(1.0); err != nil {
		t.Fatalf("RetainPrincipalComponents: %v", err)
	}
	if err := e.BasicTraining(kernel.SquareExponential, 1, 1e-4, 1.0, 0.5); err != nil {
		t.Fatalf("BasicTraining: %v", err)
	}
	if err := e.MakeCache(); err != nil {
		t.Fatalf("MakeCache: %v", err)
	}

	for trial := 0; trial < 20; trial++ {
		x := []float64{rng.Float64(), rng.Float64()}
		_, cov, err := e.Predict(x)
		if err != nil {
			t.Fatalf("Predict(%v): %v", x, err)
		}

		sym := mat.NewSymDense(outputs, nil)
		for i := 0; i < outputs; i++ {
			for j := i; j < outputs; j++ {
				if math.Abs(cov[i][j]-cov[j][i]) > 1e-12 {
					t.Fatalf("covariance at %v is asymmetric: [%d][%d]=%v, [%d][%d]=%v",
						x, i, j, cov[i][j], j, i, cov[j][i])
				}
				sym.SetSym(i, j, cov[i][j])
			}
		}

		var eig mat.EigenSym
		if ok := eig.Factorize(sym, false); !ok {
			t.Fatalf("eigendecomposition of predicted covariance failed at %v", x)
		}
		for _, lambda := range eig.Values(nil) {
			if lambda < -1e-12 {
				t.Errorf("covariance at %v has negative eigenvalue %v", x, lambda)
			}
		}
	}
}

// TestSingleTrainingPoint exercises the N=1 boundary: PCA succeeds and
// prediction at the lone design point reproduces its outputs.
func TestSingleTrainingPoint(t *testing.T) {
	params := []parameter.Parameter{
		parameter.New("x", distribution.NewUniform(0, 1)),
	}
	X := [][]float64{{0.4}}
	Y := [][]float64{{2.5, -1.25}}

	e := New()
	if err := e.LoadTrainingData(X, Y, params, []string{"a", "b"}, []float64{0, 0}, []float64{1, 1}); err != nil {
		t.Fatalf("LoadTrainingData: %v", err)
	}
	if err := e.PrincipalComponentDecompose(); err != nil {
		t.Fatalf("PrincipalComponentDecompose: %v", err)
	}
	if err := e.RetainPrincipalComponents(1.0); err != nil {
		t.Fatalf("RetainPrincipalComponents: %v", err)
	}
	// Order 0 keeps the regression basis square against a single row.
	if err := e.BasicTraining(kernel.SquareExponential, 0, 1e-4, 1.0, 1.0); err != nil {
		t.Fatalf("BasicTraining: %v", err)
	}
	if err := e.MakeCache(); err != nil {
		t.Fatalf("MakeCache: %v", err)
	}

	y, err := e.PredictMean([]float64{0.4})
	if err != nil {
		t.Fatalf("PredictMean: %v", err)
	}
	for i := range y {
		if math.Abs(y[i]-Y[0][i]) > 1e-9 {
			t.Errorf("PredictMean[%d] = %v, want %v", i, y[i], Y[0][i])
		}
	}
}

// TestBasicTrainingThetaLayout pins the BasicTraining initialization for
// each covariance family on known priors.
func TestBasicTrainingThetaLayout(t *testing.T) {
	params := []parameter.Parameter{
		parameter.New("x", distribution.NewUniform(0, 2)),  // IQR = 1
		parameter.New("y", distribution.NewUniform(0, 10)), // IQR = 5
	}
	n := 6
	X := make([][]float64, n)
	Y := make([][]float64, n)
	for i := 0; i < n; i++ {
		X[i] = []float64{float64(i) / 3, float64(i)}
		Y[i] = []float64{float64(i)}
	}

	build := func(tag kernel.Tag) *SingleModel {
		e := New()
		if err := e.LoadTrainingData(X, Y, params, []string{"z"}, []float64{0}, []float64{1}); err != nil {
			t.Fatalf("LoadTrainingData: %v", err)
		}
		if err := e.PrincipalComponentDecompose(); err != nil {
			t.Fatalf("PrincipalComponentDecompose: %v", err)
		}
		if err := e.RetainPrincipalComponents(1.0); err != nil {
			t.Fatalf("RetainPrincipalComponents: %v", err)
		}
		if err := e.BasicTraining(tag, 1, 1e-3, 2.0, 0.1); err != nil {
			t.Fatalf("BasicTraining(%v): %v", tag, err)
		}
		return e.Models[0]
	}

	sq := build(kernel.SquareExponential)
	wantSq := []float64{2.0, 1e-3, 0.1 * 1, 0.1 * 5}
	if len(sq.Theta) != len(wantSq) {
		t.Fatalf("square-exponential theta = %v, want %v", sq.Theta, wantSq)
	}
	for i := range wantSq {
		if math.Abs(sq.Theta[i]-wantSq[i]) > 1e-12 {
			t.Errorf("square-exponential theta[%d] = %v, want %v", i, sq.Theta[i], wantSq[i])
		}
	}

	pe := build(kernel.PowerExponential)
	wantPe := []float64{2.0, 1e-3, 2.0, 0.1 * 1, 0.1 * 5}
	if len(pe.Theta) != len(wantPe) {
		t.Fatalf("power-exponential theta = %v, want %v", pe.Theta, wantPe)
	}
	for i := range wantPe {
		if math.Abs(pe.Theta[i]-wantPe[i]) > 1e-12 {
			t.Errorf("power-exponential theta[%d] = %v, want %v", i, pe.Theta[i], wantPe[i])
		}
	}

	for _, tag := range []kernel.Tag{kernel.Matern32, kernel.Matern52} {
		m := build(tag)
		want := []float64{2.0, 1e-3, 0.1 * 1} // shared scale from the smallest IQR
		if len(m.Theta) != len(want) {
			t.Fatalf("%v theta = %v, want %v", tag, m.Theta, want)
		}
		for i := range want {
			if math.Abs(m.Theta[i]-want[i]) > 1e-12 {
				t.Errorf("%v theta[%d] = %v, want %v", tag, i, m.Theta[i], want[i])
			}
		}
	}
}

// TestVarianceAtTrainingRowIsNuggetScale checks the per-component
// posterior variance at a training row is non-negative and no larger
// than the nugget.
func TestVarianceAtTrainingRowIsNuggetScale(t *testing.T) {
	e := buildTestEmulator(t)
	m := e.Models[0]

	for j, x := range e.X {
		_, variance, err := m.Predict(e.X, x)
		if err != nil {
			t.Fatalf("Predict(row %d): %v", j, err)
		}
		nugget := m.Theta[1]
		if variance < -1e-8 || variance > nugget+1e-6 {
			t.Errorf("variance at training row %d = %v, want within [0, nugget=%v]", j, variance, nugget)
		}
	}
}
