package stackmc

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/btracey/surrogate/errs"
)

// HeldOut are the held-out rows of every fold with the predictions of the
// models trained without them.
type HeldOut struct {
	F     []float64   // observed value of each row
	G     [][]float64 // prediction of each fitter at each row
	Fold  []int       // fold holding out each row
	Folds int         // number of folds
}

// AlphaComputer returns the control variate weights, indexed by fold then
// fitter.
type AlphaComputer interface {
	ComputeAlpha(h HeldOut) ([][]float64, error)
}

// ConstantAlpha uses the same weight for every fold and fitter. An Alpha of
// zero gives the Monte Carlo average.
type ConstantAlpha struct {
	Alpha float64
}

func (c ConstantAlpha) ComputeAlpha(h HeldOut) ([][]float64, error) {
	alphas := make([][]float64, h.Folds)
	for i := range alphas {
		alphas[i] = make([]float64, len(h.G))
		for j := range alphas[i] {
			alphas[i][j] = c.Alpha
		}
	}
	return alphas, nil
}

// SingleAlpha computes one set of weights from the held-out rows of all
// folds, as if there were a single fixed surrogate.
type SingleAlpha struct{}

func (SingleAlpha) ComputeAlpha(h HeldOut) ([][]float64, error) {
	rows := make([]int, len(h.F))
	for i := range rows {
		rows[i] = i
	}
	alpha, err := controlVariateAlpha(h, rows)
	if err != nil {
		return nil, err
	}
	alphas := make([][]float64, h.Folds)
	for i := range alphas {
		alphas[i] = append([]float64(nil), alpha...)
	}
	return alphas, nil
}

// FoldAlpha computes the weights of each fold from its own held-out rows. It
// does not account for the covariance between the folds.
type FoldAlpha struct{}

func (FoldAlpha) ComputeAlpha(h HeldOut) ([][]float64, error) {
	rows := make([][]int, h.Folds)
	for i, k := range h.Fold {
		rows[k] = append(rows[k], i)
	}
	alphas := make([][]float64, h.Folds)
	for k := range alphas {
		alpha, err := controlVariateAlpha(h, rows[k])
		if err != nil {
			return nil, fmt.Errorf("fold %d: %w", k, err)
		}
		alphas[k] = alpha
	}
	return alphas, nil
}

// controlVariateAlpha returns the weights minimizing the variance of
// f - Σ α_j g_j over the given rows. They solve A α = b where A is the
// covariance of the predictions and b their covariance with f.
func controlVariateAlpha(h HeldOut, rows []int) ([]float64, error) {
	nFitters := len(h.G)
	data := mat.NewDense(len(rows), nFitters+1, nil)
	for i, r := range rows {
		// First column is the observed value.
		data.Set(i, 0, h.F[r])
		for j := 0; j < nFitters; j++ {
			data.Set(i, j+1, h.G[j][r])
		}
	}
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, data, nil)

	b := mat.NewVecDense(nFitters, nil)
	a := mat.NewSymDense(nFitters, nil)
	for i := 0; i < nFitters; i++ {
		b.SetVec(i, cov.At(0, i+1))
		for j := i; j < nFitters; j++ {
			a.SetSym(i, j, cov.At(i+1, j+1))
		}
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(a); !ok {
		return nil, fmt.Errorf("stackmc: control variate alpha: %w", errs.ErrSingular)
	}
	alpha := mat.NewVecDense(nFitters, nil)
	if err := chol.SolveVecTo(alpha, b); err != nil {
		return nil, fmt.Errorf("stackmc: control variate alpha: %w", err)
	}
	return alpha.RawVector().Data, nil
}
