// Package polyquad provides the orthogonal polynomial families and Gauss
// quadrature rules associated with input distributions.
//
// A uniform distribution is paired with Legendre polynomials and the
// Gauss-Legendre rule, and a normal distribution with probabilists' Hermite
// polynomials and the Gauss-Hermite rule. Polynomials are orthogonal under the
// probability measure of the distribution, so InnerProduct(n) is E[P_n(X)^2].
package polyquad

import (
	"fmt"

	"github.com/btracey/surrogate/distribution"
	"github.com/btracey/surrogate/errs"
)

// Polynomial is a family of polynomials orthogonal under a distribution.
type Polynomial interface {
	// Compute returns the polynomial of the given order evaluated at x. If
	// normalize is true the value is divided by InnerProduct(order).
	Compute(order int, x float64, normalize bool) float64
	// InnerProduct returns the squared norm of the polynomial of the given
	// order under the distribution.
	InnerProduct(order int) float64
}

// NewPolynomial returns the polynomial family for d.
func NewPolynomial(d distribution.Distribution) (Polynomial, error) {
	switch t := d.(type) {
	case distribution.Uniform:
		return Legendre{Lower: t.Min, Upper: t.Max}, nil
	case distribution.Normal:
		return Hermite{Mu: t.Mu, Sigma: t.Sigma}, nil
	default:
		return nil, errs.Config("polyquad", "distributions", fmt.Sprintf("%T distributions have no polynomial family", d))
	}
}

// Legendre are the Legendre polynomials mapped from [-1, 1] onto
// [Lower, Upper]. Points outside the bounds are extrapolated.
type Legendre struct {
	Lower, Upper float64
}

func (l Legendre) Compute(order int, x float64, normalize bool) float64 {
	if order < 0 {
		panic("polyquad: negative order")
	}
	xi := 2 / (l.Upper - l.Lower) * (x - (l.Upper+l.Lower)/2)
	v := legendre(order, xi)
	if normalize {
		v /= l.InnerProduct(order)
	}
	return v
}

func (l Legendre) InnerProduct(order int) float64 {
	return 1 / (2*float64(order) + 1)
}

// legendre evaluates P_n(x) with the three-term recurrence
//  (n+1) P_{n+1} = (2n+1) x P_n - n P_{n-1}
func legendre(n int, x float64) float64 {
	if n == 0 {
		return 1
	}
	p0, p1 := 1.0, x
	for k := 1; k < n; k++ {
		fk := float64(k)
		p0, p1 = p1, ((2*fk+1)*x*p1-fk*p0)/(fk+1)
	}
	return p1
}

// Hermite are the probabilists' Hermite polynomials of the standardized
// variable (x-Mu)/Sigma.
type Hermite struct {
	Mu, Sigma float64
}

func (h Hermite) Compute(order int, x float64, normalize bool) float64 {
	if order < 0 {
		panic("polyquad: negative order")
	}
	v := hermite(order, (x-h.Mu)/h.Sigma)
	if normalize {
		v /= h.InnerProduct(order)
	}
	return v
}

// InnerProduct returns order!.
func (h Hermite) InnerProduct(order int) float64 {
	f := 1.0
	for k := 2; k <= order; k++ {
		f *= float64(k)
	}
	return f
}

// hermite evaluates He_n(x) with the recurrence
//  He_{n+1} = x He_n - n He_{n-1}
func hermite(n int, x float64) float64 {
	if n == 0 {
		return 1
	}
	h0, h1 := 1.0, x
	for k := 1; k < n; k++ {
		h0, h1 = h1, x*h1-float64(k)*h0
	}
	return h1
}
