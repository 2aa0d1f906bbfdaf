// Package distribution provides the one-dimensional probability distributions
// that describe the uncertain inputs of a model.
package distribution

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/btracey/surrogate/errs"
)

// Distribution is a one-dimensional distribution.
type Distribution interface {
	// Quantile returns the inverse of the cumulative distribution function.
	Quantile(p float64) float64
	Mean() float64
	StdDev() float64
	// Bounds returns the support of the distribution. Unbounded sides are
	// returned as infinities.
	Bounds() (lower, upper float64)
}

// Uniform is the uniform distribution on [Min, Max].
type Uniform struct {
	Min, Max float64
}

func (u Uniform) dist() distuv.Uniform { return distuv.Uniform{Min: u.Min, Max: u.Max} }

func (u Uniform) Quantile(p float64) float64     { return u.dist().Quantile(p) }
func (u Uniform) Mean() float64                  { return u.dist().Mean() }
func (u Uniform) StdDev() float64                { return u.dist().StdDev() }
func (u Uniform) Bounds() (lower, upper float64) { return u.Min, u.Max }

// Normal is the normal distribution with mean Mu and standard deviation Sigma.
type Normal struct {
	Mu, Sigma float64
}

func (n Normal) dist() distuv.Normal { return distuv.Normal{Mu: n.Mu, Sigma: n.Sigma} }

func (n Normal) Quantile(p float64) float64 { return n.dist().Quantile(p) }
func (n Normal) Mean() float64              { return n.Mu }
func (n Normal) StdDev() float64            { return n.Sigma }
func (n Normal) Bounds() (lower, upper float64) {
	return math.Inf(-1), math.Inf(1)
}

// Weibull is the Weibull distribution with shape K and scale Lambda. It can
// be sampled but has no associated orthogonal polynomial family.
type Weibull struct {
	K, Lambda float64
}

func (w Weibull) dist() distuv.Weibull { return distuv.Weibull{K: w.K, Lambda: w.Lambda} }

func (w Weibull) Quantile(p float64) float64     { return w.dist().Quantile(p) }
func (w Weibull) Mean() float64                  { return w.dist().Mean() }
func (w Weibull) StdDev() float64                { return w.dist().StdDev() }
func (w Weibull) Bounds() (lower, upper float64) { return 0, math.Inf(1) }

// Bit is the uniform distribution over the two values -1 and 1. A string of
// independent Bits is the input of a Walsh fit.
type Bit struct{}

func (Bit) Quantile(p float64) float64 {
	if p < 0 || p > 1 {
		panic("distribution: probability out of range")
	}
	if p < 0.5 {
		return -1
	}
	return 1
}
func (Bit) Mean() float64                  { return 0 }
func (Bit) StdDev() float64                { return 1 }
func (Bit) Bounds() (lower, upper float64) { return -1, 1 }

// Independent is a multivariate distribution whose dimensions are
// independent of one another.
type Independent []Distribution

// Dim returns the number of dimensions.
func (ind Independent) Dim() int { return len(ind) }

// Quantile transforms the per-dimension probabilities p into a point, storing
// the result in x. If x is nil a new slice is allocated.
func (ind Independent) Quantile(x, p []float64) []float64 {
	if len(p) != len(ind) {
		panic("distribution: length mismatch")
	}
	if x == nil {
		x = make([]float64, len(ind))
	}
	if len(x) != len(ind) {
		panic("distribution: length mismatch")
	}
	for i, v := range p {
		x[i] = ind[i].Quantile(v)
	}
	return x
}

// Registry maps distribution names to distributions.
type Registry map[string]Distribution

// Lookup returns the distributions with the given names, in order.
func (r Registry) Lookup(names ...string) (Independent, error) {
	out := make(Independent, len(names))
	for i, name := range names {
		d, ok := r[name]
		if !ok {
			return nil, errs.Mismatch("distribution", "distributions", "unknown distribution "+name, name, r.Names())
		}
		out[i] = d
	}
	return out, nil
}

// Names returns the registered names in sorted order.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
