package sampler

import (
	"math"
	"math/rand"

	"github.com/bitjungle/gpemulator/internal/model"
	"github.com/bitjungle/gpemulator/internal/parameter"
	"github.com/bitjungle/gpemulator/pkg/types"
)

// MetropolisHastings is a random-walk Metropolis sampler. Proposals scale
// a uniform deviate in (-0.5, 0.5) by StepSize and each parameter's prior
// interquartile range; a proposal is accepted whenever its likelihood
// improves or passes a uniform test against exp(deltaLogLikelihood).
type MetropolisHastings struct {
	base

	// StepSize is the public proposal-width multiplier, default 0.1.
	StepSize float64

	stepScales []float64
	rng        *rand.Rand
}

// NewMetropolisHastings returns a sampler seeded deterministically by
// seed, with the default StepSize of 0.1.
func NewMetropolisHastings(seed int64) *MetropolisHastings {
	return &MetropolisHastings{
		StepSize: 0.1,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// Attach binds m as the model, sets every parameter active, and computes
// per-parameter step scales from each prior's interquartile range.
func (s *MetropolisHastings) Attach(m model.Model) error {
	if err := s.attach(m); err != nil {
		return err
	}
	s.stepScales = quartileStepScales(m.Parameters())
	return nil
}

// SetActive toggles whether parameter i participates in proposals.
func (s *MetropolisHastings) SetActive(i int, isActive bool) error {
	return s.setActive(i, isActive)
}

// SetParameterValue freezes parameter i's current value.
func (s *MetropolisHastings) SetParameterValue(i int, value float64) error {
	return s.setParameterValue(i, value)
}

// Reset returns the sampler to the attached state, allowing active
// parameters to be reconfigured before sampling resumes.
func (s *MetropolisHastings) Reset() {
	s.state = attached
}

// NextSample proposes a new point, perturbing only active parameters,
// and accepts or rejects it against the current log-likelihood. It
// always returns the chain's current state (never a rejected proposal).
func (s *MetropolisHastings) NextSample() (parameter.Sample, error) {
	if s.state == constructed {
		return parameter.Sample{}, types.NewInvalidArgumentError("sampler is not attached to a model")
	}
	s.state = sampling

	candidate := append([]float64(nil), s.currentParameters...)
	for i, isActive := range s.active {
		if !isActive {
			continue
		}
		u := s.rng.Float64() - 0.5 // U(-0.5, 0.5)
		candidate[i] = s.currentParameters[i] + s.StepSize*u*s.stepScales[i]
	}

	y, ll, err := s.model.ScalarOutputsAndLogLikelihood(candidate)
	if err != nil {
		return parameter.Sample{}, err
	}
	if math.IsNaN(ll) {
		return parameter.Sample{}, types.NewOutputOutOfRangeError("log-likelihood evaluated to NaN")
	}

	deltaLogLikelihood := ll - s.currentLogLikelihood
	if deltaLogLikelihood > 0 || s.rng.Float64() < math.Exp(deltaLogLikelihood) {
		s.currentParameters = candidate
		s.currentOutputs = y
		s.currentLogLikelihood = ll
	}

	return parameter.Sample{
		Point:         append([]float64(nil), s.currentParameters...),
		Output:        append([]float64(nil), s.currentOutputs...),
		LogLikelihood: s.currentLogLikelihood,
	}, nil
}
