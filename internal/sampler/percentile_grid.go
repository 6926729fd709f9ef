package sampler

import (
	"math"

	"github.com/bitjungle/gpemulator/internal/model"
	"github.com/bitjungle/gpemulator/internal/parameter"
	"github.com/bitjungle/gpemulator/pkg/types"
)

// PercentileGrid is a deterministic, prior-weighted scanner: it
// enumerates every point of an n^p_active lattice in lexicographic order,
// where n is chosen from a target sample count, and reports each point
// as accepted (it is not an MCMC chain).
type PercentileGrid struct {
	base

	resolution int // n, samples per active dimension
	stateIndex []int
	exhausted  bool
}

// NewPercentileGrid returns an unattached percentile-grid sampler.
func NewPercentileGrid() *PercentileGrid {
	return &PercentileGrid{}
}

// Attach binds m as the model and sets every parameter active.
func (s *PercentileGrid) Attach(m model.Model) error {
	if err := s.attach(m); err != nil {
		return err
	}
	s.stateIndex = make([]int, len(m.Parameters()))
	return nil
}

// SetActive toggles whether parameter i is scanned. Call SetNumberOfSamples
// afterward so the resolution reflects the final active count.
func (s *PercentileGrid) SetActive(i int, isActive bool) error {
	return s.setActive(i, isActive)
}

// SetParameterValue freezes parameter i's value while it is inactive.
func (s *PercentileGrid) SetParameterValue(i int, value float64) error {
	return s.setParameterValue(i, value)
}

// SetNumberOfSamples configures the per-dimension resolution n =
// max(2, ceil(targetCount^(1/p_active))), from the active-parameter count
// at the time of the call. Call this after activating/deactivating
// parameters.
func (s *PercentileGrid) SetNumberOfSamples(targetCount int) error {
	p := s.numberOfActiveParameters()
	if p == 0 {
		s.resolution = 0
		return nil
	}
	n := int(math.Ceil(math.Pow(float64(targetCount), 1.0/float64(p))))
	if n < 2 {
		n = 2
	}
	s.resolution = n
	return nil
}

// GetSampleCount reports the effective number of samples n^p_active (zero
// if no parameters are active), which may exceed the requested target
// count by rounding.
func (s *PercentileGrid) GetSampleCount() int {
	p := s.numberOfActiveParameters()
	if p == 0 {
		return 0
	}
	return int(math.Pow(float64(s.resolution), float64(p)) + 0.5)
}

// Reset returns the scanner to its first grid point, allowing active
// parameters and the resolution to be reconfigured.
func (s *PercentileGrid) Reset() {
	for i := range s.stateIndex {
		s.stateIndex[i] = 0
	}
	s.exhausted = false
	s.state = attached
}

// NextSample evaluates the current grid point and advances the
// lexicographic odometer by one. Calling it again after every grid point
// has been enumerated (without an intervening Reset) fails fast.
func (s *PercentileGrid) NextSample() (parameter.Sample, error) {
	if s.state == constructed {
		return parameter.Sample{}, types.NewInvalidArgumentError("sampler is not attached to a model")
	}
	if s.numberOfActiveParameters() == 0 {
		return parameter.Sample{}, types.NewInvalidArgumentError("percentile grid has no active parameters")
	}
	if s.exhausted {
		return parameter.Sample{}, types.NewInvalidArgumentError("percentile grid is exhausted; call Reset before sampling again")
	}
	s.state = sampling

	params := s.model.Parameters()
	rangeOverN := 1.0 / float64(s.resolution)
	start := 0.5 * rangeOverN

	for dim := range params {
		if s.active[dim] {
			q := start + float64(s.stateIndex[dim])*rangeOverN
			s.currentParameters[dim] = params[dim].Prior.Percentile(q)
		}
	}

	y, ll, err := s.model.ScalarOutputsAndLogLikelihood(s.currentParameters)
	if err != nil {
		return parameter.Sample{}, err
	}
	s.currentOutputs = y
	s.currentLogLikelihood = ll

	sample := parameter.Sample{
		Point:         append([]float64(nil), s.currentParameters...),
		Output:        append([]float64(nil), y...),
		LogLikelihood: ll,
	}

	s.advance(params)
	return sample, nil
}

// advance increments the lexicographic odometer over active dimensions,
// marking the scan exhausted once every grid point has been visited.
func (s *PercentileGrid) advance(params []parameter.Parameter) {
	dim := 0
	for {
		if dim >= len(params) {
			s.exhausted = true
			return
		}
		if !s.active[dim] || s.stateIndex[dim] == s.resolution-1 {
			s.stateIndex[dim] = 0
			dim++
			continue
		}
		s.stateIndex[dim]++
		return
	}
}
