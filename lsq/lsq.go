// Package lsq makes linear least-squares fits.
//
// The functional approximation is
//  f(x) = β_0 * t_0(x) + β_1 * t_1(x) + ... + β_n * t_n(x)
// where the t_i are functions of the input set by a Termer and the β_i are
// free parameters found by minimizing the squared error over the training
// samples, optionally with a ridge penalty.
package lsq

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/btracey/surrogate/comm"
	"github.com/btracey/surrogate/errs"
)

// Termer sets the nonlinear functions of a particular input.
type Termer interface {
	// NumTerms returns the number of terms for inputs of dimension dim.
	NumTerms(dim int) int
	// Terms computes the terms of x and stores them in terms.
	Terms(terms, x []float64)
}

// Powers is a Termer of monomials. Term i is the product over the dimensions
// d of x[d]^Powers[i][d].
type Powers [][]int

func (p Powers) NumTerms(dim int) int {
	if len(p) > 0 && len(p[0]) != dim {
		panic("lsq: dimension mismatch")
	}
	return len(p)
}

func (p Powers) Terms(terms, x []float64) {
	if len(terms) != len(p) {
		panic("lsq: length mismatch")
	}
	for i, pow := range p {
		v := 1.0
		for d, k := range pow {
			v *= ipow(x[d], k)
		}
		terms[i] = v
	}
}

func ipow(x float64, k int) float64 {
	v := 1.0
	for ; k > 0; k-- {
		v *= x
	}
	return v
}

// Normal accumulates the normal equations XᵀX β = Xᵀy one sample at a time.
type Normal struct {
	xtx *mat.Dense
	xty []float64
}

// NewNormal returns an empty system with n terms.
func NewNormal(n int) *Normal {
	return &Normal{
		xtx: mat.NewDense(n, n, nil),
		xty: make([]float64, n),
	}
}

// NumTerms returns the number of terms of the system.
func (ne *Normal) NumTerms() int { return len(ne.xty) }

// Add adds the sample with terms x and value y.
func (ne *Normal) Add(x []float64, y float64) {
	n := len(ne.xty)
	if len(x) != n {
		panic("lsq: length mismatch")
	}
	for i := 0; i < n; i++ {
		row := ne.xtx.RawRowView(i)
		floats.AddScaled(row, x[i], x)
	}
	floats.AddScaled(ne.xty, y, x)
}

// Reduce sums the systems of all workers.
func (ne *Normal) Reduce(c comm.Comm) error {
	if err := c.SumDense(ne.xtx); err != nil {
		return err
	}
	return c.SumFloats(ne.xty)
}

// Solution is a solved system.
type Solution struct {
	Coeffs []float64
	lu     mat.LU
}

// Solve adds penalty to the diagonal of XᵀX and solves the system with an
// LU factorization. An exactly singular system returns an error wrapping
// errs.ErrSingular; an ill-conditioned one is logged and solved.
func (ne *Normal) Solve(penalty float64, logger *zap.Logger) (*Solution, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := len(ne.xty)
	a := mat.DenseCopyOf(ne.xtx)
	for i := 0; i < n; i++ {
		a.Set(i, i, a.At(i, i)+penalty)
	}
	s := &Solution{}
	s.lu.Factorize(a)
	if math.IsInf(s.lu.Cond(), 1) {
		return nil, fmt.Errorf("lsq: solve: %w", errs.ErrSingular)
	}
	beta := mat.NewVecDense(n, nil)
	err := s.lu.SolveVecTo(beta, false, mat.NewVecDense(n, append([]float64(nil), ne.xty...)))
	var cond mat.Condition
	switch {
	case errors.As(err, &cond):
		if math.IsInf(float64(cond), 1) {
			return nil, fmt.Errorf("lsq: solve: %w", errs.ErrSingular)
		}
		logger.Warn("ill-conditioned least squares system", zap.Float64("condition", float64(cond)))
	case err != nil:
		return nil, fmt.Errorf("lsq: solve: %w", err)
	}
	s.Coeffs = beta.RawVector().Data
	return s, nil
}

// Leverage returns xᵀ A⁻¹ x for the solved matrix A, the leverage of a
// sample with terms x.
func (s *Solution) Leverage(x []float64) float64 {
	v := mat.NewVecDense(len(x), nil)
	if err := s.lu.SolveVecTo(v, false, mat.NewVecDense(len(x), append([]float64(nil), x...))); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) {
			panic(err)
		}
	}
	return floats.Dot(x, v.RawVector().Data)
}
