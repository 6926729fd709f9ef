// Package parameter defines the named, prior-bound model inputs
// (Parameter) and the value-typed record a sampler produces at each step
// (Sample).
package parameter

import (
	"github.com/bitjungle/gpemulator/internal/distribution"
)

// Parameter is a named simulator input bound to an immutable prior
// distribution. Min/Max are advisory hints only (e.g. for plotting or
// display bounds) and are never consulted by the prior itself.
type Parameter struct {
	Name  string
	Prior distribution.Distribution
	Min   float64
	Max   float64
}

// New constructs a Parameter from a name and prior. Min/Max are derived
// from the prior's 0/1 percentiles when the prior supports them (Uniform);
// callers may override them afterward.
func New(name string, prior distribution.Distribution) Parameter {
	p := Parameter{Name: name, Prior: prior}
	if u, ok := prior.(distribution.Uniform); ok {
		p.Min, p.Max = u.Min, u.Max
	}
	return p
}

// Sample is a single (point, output, log-likelihood) record produced by a
// sampler. Copying a Sample shares its slices' backing arrays; callers
// that mutate a Sample's slices after storing it should Clone first.
type Sample struct {
	Point         []float64
	Output        []float64
	LogLikelihood float64
	Gradient      []float64
}

// Clone returns a Sample with freshly allocated slices, safe to mutate
// independently of the original.
func (s Sample) Clone() Sample {
	out := Sample{LogLikelihood: s.LogLikelihood}
	if s.Point != nil {
		out.Point = append([]float64(nil), s.Point...)
	}
	if s.Output != nil {
		out.Output = append([]float64(nil), s.Output...)
	}
	if s.Gradient != nil {
		out.Gradient = append([]float64(nil), s.Gradient...)
	}
	return out
}
