package sampler

import (
	"gonum.org/v1/gonum/floats"

	"github.com/btracey/surrogate/comm"
	"github.com/btracey/surrogate/distribution"
	"github.com/btracey/surrogate/errs"
	"github.com/btracey/surrogate/multiindex"
	"github.com/btracey/surrogate/polyquad"
)

// Quadrature is the tensor product of the Gauss rules of each input
// distribution. The first column varies fastest. The product weights are
// normalized to sum to one.
type Quadrature struct {
	Base
	points  [][]float64
	weights []float64
}

// NewQuadrature returns the tensor-product rule with order points per
// dimension.
func NewQuadrature(order int, dists []distribution.Distribution, c comm.Comm) (*Quadrature, error) {
	if order < 1 {
		return nil, errs.Mismatch("Quadrature", "order", "quadrature order must be positive", order, 1)
	}
	if len(dists) == 0 {
		return nil, errs.Config("Quadrature", "distributions", "no distributions given")
	}
	pts := make([][]float64, len(dists))
	wts := make([][]float64, len(dists))
	dims := make([]int, len(dists))
	for i, d := range dists {
		q, err := polyquad.NewQuadrature(d)
		if err != nil {
			return nil, err
		}
		pts[i] = q.Points(order)
		wts[i] = q.Weights(order)
		dims[i] = len(pts[i])
	}

	grid := multiindex.Grid(dims)
	q := &Quadrature{
		points:  make([][]float64, len(grid)),
		weights: make([]float64, len(grid)),
	}
	for k, idx := range grid {
		row := make([]float64, len(dists))
		w := 1.0
		for d, i := range idx {
			row[d] = pts[d][i]
			w *= wts[d][i]
		}
		q.points[k] = row
		q.weights[k] = w
	}
	floats.Scale(1/floats.Sum(q.weights), q.weights)

	q.init(c, len(grid), len(dists), true, func(row int, dst []float64) {
		copy(dst, q.points[row])
	})
	return q, nil
}

func (q *Quadrature) QuadratureWeight(row int) float64 {
	return q.weights[row]
}
