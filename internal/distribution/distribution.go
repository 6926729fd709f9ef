// Package distribution implements the prior distributions over a single
// scalar parameter: Uniform and Gaussian. Both expose density, log-density,
// percentile (quantile), and seeded sampling.
package distribution

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"
)

// Distribution is a one-dimensional prior over a parameter value.
type Distribution interface {
	// PDF returns the probability density at x.
	PDF(x float64) float64
	// LogPDF returns the log probability density at x.
	LogPDF(x float64) float64
	// Percentile returns the value x such that P(X <= x) = q, for q in (0, 1).
	Percentile(q float64) float64
	// Sample draws a value from the distribution using rng.
	Sample(rng *rand.Rand) float64
}

// Uniform is the flat prior on [Min, Max].
type Uniform struct {
	Min float64
	Max float64
}

// NewUniform constructs a Uniform distribution. min must be < max.
func NewUniform(min, max float64) Uniform {
	return Uniform{Min: min, Max: max}
}

// PDF returns 1/(Max-Min) inside [Min, Max], else 0.
func (u Uniform) PDF(x float64) float64 {
	if x < u.Min || x > u.Max {
		return 0
	}
	return 1.0 / (u.Max - u.Min)
}

// LogPDF returns -log(Max-Min) inside [Min, Max], else -Inf.
func (u Uniform) LogPDF(x float64) float64 {
	if x < u.Min || x > u.Max {
		return math.Inf(-1)
	}
	return -math.Log(u.Max - u.Min)
}

// Percentile returns Min + q*(Max-Min).
func (u Uniform) Percentile(q float64) float64 {
	return u.Min + q*(u.Max-u.Min)
}

// Sample draws a uniform deviate in [Min, Max].
func (u Uniform) Sample(rng *rand.Rand) float64 {
	return u.Percentile(rng.Float64())
}

// Gaussian is the Normal(Mean, StdDev) prior.
type Gaussian struct {
	Mean   float64
	StdDev float64
}

// NewGaussian constructs a Gaussian distribution. stdDev must be > 0.
func NewGaussian(mean, stdDev float64) Gaussian {
	return Gaussian{Mean: mean, StdDev: stdDev}
}

func (g Gaussian) asDistuv() distuv.Normal {
	return distuv.Normal{Mu: g.Mean, Sigma: g.StdDev}
}

// PDF returns the standard closed-form Gaussian density at x.
func (g Gaussian) PDF(x float64) float64 {
	return g.asDistuv().Prob(x)
}

// LogPDF returns the log Gaussian density at x.
func (g Gaussian) LogPDF(x float64) float64 {
	return g.asDistuv().LogProb(x)
}

// Percentile returns the inverse CDF at q. The 25th/75th-percentile values
// this produces are exact closed forms (mean -/+ 0.6744897501960817*stdDev)
// and MUST NOT change: BasicTraining derives default kernel length-scales
// from exactly these two quantiles.
func (g Gaussian) Percentile(q float64) float64 {
	return g.asDistuv().Quantile(q)
}

// Sample draws a Gaussian deviate via the percentile transform of a
// uniform deviate from rng, keeping all sampling on the caller's RNG
// stream rather than gonum's own Src plumbing.
func (g Gaussian) Sample(rng *rand.Rand) float64 {
	return g.Percentile(rng.Float64())
}

// QuartileRange returns the interquartile range q(0.75) - q(0.25) of d.
// Used both to set default kernel length-scales (BasicTraining) and to
// scale Metropolis-Hastings proposal steps.
func QuartileRange(d Distribution) float64 {
	return d.Percentile(0.75) - d.Percentile(0.25)
}
