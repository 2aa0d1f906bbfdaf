// Package surrogate trains cheap analytic approximations of expensive models
// from sampled data and estimates their out-of-sample error.
//
// A sampler (package sampler) supplies the parameter rows, a trainer (package
// trainer) runs the training loop over them on every worker, a Fitter
// (package fit) turns that loop into a trained Model, and cross validation
// (package crossval) measures the prediction error of the Fitter without
// bias. All steps run data-parallel over the workers of a comm.Comm.
package surrogate

import (
	"github.com/btracey/surrogate/sampler"
	"github.com/btracey/surrogate/trainer"
)

// Model is a trained surrogate. Evaluate must be safe for concurrent use.
type Model interface {
	// Evaluate returns the prediction at x.
	Evaluate(x []float64) float64
	// NumParameters returns the dimension of x.
	NumParameters() int
	// DOF returns the number of fitted coefficients of the model.
	DOF() int
}

// Leverager is implemented by models that record the leverage of each
// training point.
type Leverager interface {
	// Leverage returns the leverage of global training point p.
	Leverage(p int) float64
}

// LeverageForm is the closed-form leave-one-out residual a Fitter supports.
type LeverageForm int

const (
	// NoLeverage means leave-one-out error requires retraining.
	NoLeverage LeverageForm = iota
	// LeastSquares models have the residual (y-ŷ)/(1-h).
	LeastSquares
	// Projection models have the residual (1-h)y - ŷ.
	Projection
)

func (f LeverageForm) String() string {
	switch f {
	case NoLeverage:
		return "none"
	case LeastSquares:
		return "least squares"
	case Projection:
		return "projection"
	}
	return "unknown"
}

// Residual returns the leave-one-out residual of a point with observation y,
// prediction yhat and leverage h.
func (f LeverageForm) Residual(y, yhat, h float64) float64 {
	switch f {
	case LeastSquares:
		return (y - yhat) / (1 - h)
	case Projection:
		return (1-h)*y - yhat
	}
	panic("surrogate: residual of a model without leverage")
}

// A Fitter trains a Model with a trainer. Train is collective: every worker
// of the trainer's comm must call it.
type Fitter interface {
	Train(t *trainer.Trainer) (Model, error)
	// LeverageForm declares whether the trained models implement Leverager
	// and how their leverage is used.
	LeverageForm() LeverageForm
}

// Evaluate returns the predictions of m at the local rows of s, in row order.
// It reads one pass of s.
func Evaluate(m Model, s sampler.Sampler) []float64 {
	if s.NumCols() != m.NumParameters() {
		panic("surrogate: sampler columns do not match model parameters")
	}
	out := make([]float64, s.NumLocalRows())
	for i := range out {
		out[i] = m.Evaluate(s.NextLocalRow())
	}
	return out
}
