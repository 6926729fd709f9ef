// Package sampler implements the two posterior samplers that drive a
// model.Model: MetropolisHastings (a random-walk chain) and
// PercentileGrid (a deterministic prior-weighted scan).
package sampler

import (
	"github.com/bitjungle/gpemulator/internal/distribution"
	"github.com/bitjungle/gpemulator/internal/model"
	"github.com/bitjungle/gpemulator/internal/parameter"
	"github.com/bitjungle/gpemulator/pkg/types"
)

// state is the common lifecycle every sampler passes through.
type state int

const (
	constructed state = iota
	attached
	sampling
)

// base holds the fields shared by both sampler implementations: the
// attached model, per-parameter activation, the current point, and the
// lifecycle state.
type base struct {
	model  model.Model
	active []bool
	state  state

	currentParameters    []float64
	currentOutputs       []float64
	currentLogLikelihood float64
}

// attach binds m as the model this sampler drives, initializes every
// parameter as active, and sets the current point to the prior mean
// (Uniform: midpoint; Gaussian: mean) via each prior's 0.5 percentile.
// attach may only be called once, before sampling begins.
func (b *base) attach(m model.Model) error {
	if b.state != constructed {
		return types.NewInvalidArgumentError("sampler is already attached")
	}

	params := m.Parameters()
	b.model = m
	b.active = make([]bool, len(params))
	b.currentParameters = make([]float64, len(params))
	for i := range b.active {
		b.active[i] = true
		b.currentParameters[i] = params[i].Prior.Percentile(0.5)
	}

	y, ll, err := m.ScalarOutputsAndLogLikelihood(b.currentParameters)
	if err != nil {
		return err
	}
	b.currentOutputs = y
	b.currentLogLikelihood = ll
	b.state = attached
	return nil
}

// setActive sets whether parameter i participates in sampling. Only
// allowed before the first NextSample call or after an explicit Reset
// (state constructed or attached).
func (b *base) setActive(i int, isActive bool) error {
	if b.state == sampling {
		return types.NewInvalidArgumentError("cannot change active parameters after sampling has started")
	}
	if i < 0 || i >= len(b.active) {
		return types.NewDimensionMismatchError("parameter index out of range", len(b.active), i)
	}
	b.active[i] = isActive
	return nil
}

// setParameterValue freezes parameter i's current value, typically for
// a parameter that has been deactivated, then re-evaluates the model at
// the updated point so the current (parameters, outputs, log-likelihood)
// triple stays mutually consistent.
func (b *base) setParameterValue(i int, value float64) error {
	if i < 0 || i >= len(b.currentParameters) {
		return types.NewDimensionMismatchError("parameter index out of range", len(b.currentParameters), i)
	}
	b.currentParameters[i] = value

	y, ll, err := b.model.ScalarOutputsAndLogLikelihood(b.currentParameters)
	if err != nil {
		return err
	}
	b.currentOutputs = y
	b.currentLogLikelihood = ll
	return nil
}

func (b *base) numberOfActiveParameters() int {
	n := 0
	for _, a := range b.active {
		if a {
			n++
		}
	}
	return n
}

func quartileStepScales(params []parameter.Parameter) []float64 {
	scales := make([]float64, len(params))
	for i, p := range params {
		scales[i] = distribution.QuartileRange(p.Prior)
	}
	return scales
}
