package polyquad

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/btracey/surrogate/distribution"
	"github.com/btracey/surrogate/errs"
)

// Quadrature is a Gauss rule scaled to the support of a distribution. The
// rule of order n has n points and integrates polynomials of degree up to
// 2n-1 exactly.
type Quadrature interface {
	Points(order int) []float64
	Weights(order int) []float64
}

// NewQuadrature returns the quadrature rule for d.
func NewQuadrature(d distribution.Distribution) (Quadrature, error) {
	switch t := d.(type) {
	case distribution.Uniform:
		return GaussLegendre{Lower: t.Min, Upper: t.Max}, nil
	case distribution.Normal:
		return GaussHermite{Mu: t.Mu, Sigma: t.Sigma}, nil
	default:
		return nil, errs.Config("polyquad", "distributions", fmt.Sprintf("%T distributions have no quadrature rule", d))
	}
}

// GaussLegendre is the Gauss-Legendre rule on [Lower, Upper]. The weights sum
// to Upper-Lower.
type GaussLegendre struct {
	Lower, Upper float64
}

func (g GaussLegendre) Points(order int) []float64 {
	x, _ := g.Rule(order)
	return x
}

func (g GaussLegendre) Weights(order int) []float64 {
	_, w := g.Rule(order)
	return w
}

// Rule returns the points and weights of the rule of the given order.
func (g GaussLegendre) Rule(order int) (x, w []float64) {
	x, w = golubWelsch(order, 2, func(k int) float64 {
		fk := float64(k)
		return fk / math.Sqrt(4*fk*fk-1)
	})
	half := (g.Upper - g.Lower) / 2
	mid := (g.Upper + g.Lower) / 2
	for i := range x {
		x[i] = mid + half*x[i]
		w[i] *= half
	}
	return x, w
}

// GaussHermite is the Gauss-Hermite rule for the normal distribution with
// mean Mu and standard deviation Sigma. The weights sum to one.
type GaussHermite struct {
	Mu, Sigma float64
}

func (g GaussHermite) Points(order int) []float64 {
	x, _ := g.Rule(order)
	return x
}

func (g GaussHermite) Weights(order int) []float64 {
	_, w := g.Rule(order)
	return w
}

// Rule returns the points and weights of the rule of the given order.
func (g GaussHermite) Rule(order int) (x, w []float64) {
	x, w = golubWelsch(order, 1, func(k int) float64 {
		return math.Sqrt(float64(k))
	})
	for i := range x {
		x[i] = g.Mu + g.Sigma*x[i]
	}
	return x, w
}

// golubWelsch computes an n-point Gauss rule from the eigendecomposition of
// the symmetric tridiagonal Jacobi matrix of a monic orthogonal family with
// zero recurrence diagonal and off-diagonal beta(k), k = 1, ..., n-1. mu0 is
// the total mass of the weight function. Points are returned in increasing
// order.
func golubWelsch(n int, mu0 float64, beta func(k int) float64) (x, w []float64) {
	if n < 1 {
		panic("polyquad: quadrature order must be positive")
	}
	jac := mat.NewSymDense(n, nil)
	for k := 1; k < n; k++ {
		jac.SetSym(k-1, k, beta(k))
	}
	var eig mat.EigenSym
	if ok := eig.Factorize(jac, true); !ok {
		panic("polyquad: eigendecomposition failed")
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return vals[idx[a]] < vals[idx[b]] })

	x = make([]float64, n)
	w = make([]float64, n)
	for i, j := range idx {
		x[i] = vals[j]
		v := vecs.At(0, j)
		w[i] = mu0 * v * v
	}
	return x, w
}
