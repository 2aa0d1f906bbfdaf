package polyquad

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/btracey/surrogate/distribution"
	"github.com/btracey/surrogate/errs"
)

func TestPolynomialValues(t *testing.T) {
	for _, test := range []struct {
		name  string
		p     Polynomial
		order int
		x     float64
		want  float64
	}{
		{"LegendreZero", Legendre{Lower: -1, Upper: 1}, 0, 0.3, 1},
		{"LegendreTwo", Legendre{Lower: -1, Upper: 1}, 2, 0.5, -0.125},
		{"LegendreThree", Legendre{Lower: -1, Upper: 1}, 3, 0.5, -0.4375},
		{"LegendreShifted", Legendre{Lower: 0, Upper: 4}, 1, 3, 0.5},
		{"HermiteTwo", Hermite{Mu: 0, Sigma: 1}, 2, 3, 8},
		{"HermiteThree", Hermite{Mu: 0, Sigma: 1}, 3, 2, 2},
		{"HermiteScaled", Hermite{Mu: 1, Sigma: 2}, 1, 5, 2},
	} {
		got := test.p.Compute(test.order, test.x, false)
		if math.Abs(got-test.want) > 1e-14 {
			t.Errorf("Case %s: got %v, want %v", test.name, got, test.want)
		}
		norm := test.p.Compute(test.order, test.x, true)
		if math.Abs(norm-test.want/test.p.InnerProduct(test.order)) > 1e-12 {
			t.Errorf("Case %s: normalized value mismatch", test.name)
		}
	}
}

func TestGaussLegendre(t *testing.T) {
	for _, b := range [][2]float64{{-1, 1}, {0, 1}, {2, 7}} {
		g := GaussLegendre{Lower: b[0], Upper: b[1]}
		for n := 1; n <= 10; n++ {
			x, w := g.Rule(n)
			require.Len(t, x, n)
			assert.InDelta(t, b[1]-b[0], floats.Sum(w), 1e-12, "order %d", n)
			assert.True(t, floats.Equal(x, g.Points(n)))
			for k := 0; k <= 2*n-1; k++ {
				var got float64
				for i := range x {
					got += w[i] * math.Pow(x[i], float64(k))
				}
				want := (math.Pow(b[1], float64(k+1)) - math.Pow(b[0], float64(k+1))) / float64(k+1)
				if !scalar.EqualWithinAbsOrRel(got, want, 1e-10, 1e-10) {
					t.Errorf("bounds %v order %d: degree %d integral %v, want %v", b, n, k, got, want)
				}
			}
		}
	}
}

func TestGaussHermite(t *testing.T) {
	g := GaussHermite{Mu: 0, Sigma: 1}
	for n := 1; n <= 10; n++ {
		x, w := g.Rule(n)
		assert.InDelta(t, 1, floats.Sum(w), 1e-12, "order %d", n)
		for k := 0; k <= 2*n-1; k++ {
			var got float64
			for i := range x {
				got += w[i] * math.Pow(x[i], float64(k))
			}
			// Moments of the standard normal: (k-1)!! for even k, zero for
			// odd k. Odd moments cancel terms of the size of the next even
			// moment, so their tolerance scales with it.
			even := k + k%2
			scale := 1.0
			for j := even - 1; j > 1; j -= 2 {
				scale *= float64(j)
			}
			want := 0.0
			if k%2 == 0 {
				want = scale
			}
			if !scalar.EqualWithinAbs(got, want, 1e-9*scale) {
				t.Errorf("order %d: moment %d is %v, want %v", n, k, got, want)
			}
		}
	}

	shifted := GaussHermite{Mu: 2, Sigma: 3}
	x, w := shifted.Rule(3)
	assert.InDelta(t, 2, floats.Dot(x, w), 1e-12)
	var second float64
	for i := range x {
		second += w[i] * x[i] * x[i]
	}
	assert.InDelta(t, 13, second, 1e-10)
}

func TestOrthogonality(t *testing.T) {
	for _, d := range []distribution.Distribution{
		distribution.Uniform{Min: -2, Max: 5},
		distribution.Normal{Mu: 1, Sigma: 0.5},
	} {
		p, err := NewPolynomial(d)
		require.NoError(t, err)
		q, err := NewQuadrature(d)
		require.NoError(t, err)
		x := q.Points(8)
		w := q.Weights(8)
		scale := floats.Sum(w)
		for i := 0; i < 6; i++ {
			for j := 0; j < 6; j++ {
				var got float64
				for k := range x {
					got += w[k] / scale * p.Compute(i, x[k], false) * p.Compute(j, x[k], false)
				}
				want := 0.0
				if i == j {
					want = p.InnerProduct(i)
				}
				if math.Abs(got-want) > 1e-9*math.Max(1, want) {
					t.Errorf("%T: <P%d, P%d> = %v, want %v", d, i, j, got, want)
				}
			}
		}
	}
}

func TestUnsupported(t *testing.T) {
	_, err := NewPolynomial(distribution.Weibull{K: 2, Lambda: 1})
	assert.ErrorIs(t, err, errs.ErrConfig)
	_, err = NewQuadrature(distribution.Weibull{K: 2, Lambda: 1})
	assert.ErrorIs(t, err, errs.ErrConfig)
}
