package crossval

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/btracey/surrogate"
	"github.com/btracey/surrogate/comm"
	"github.com/btracey/surrogate/errs"
	"github.com/btracey/surrogate/rowset"
	"github.com/btracey/surrogate/sampler"
	"github.com/btracey/surrogate/trainer"
)

// Postprocessor computes a scalar from trained surrogates. Compute is
// collective.
type Postprocessor interface {
	Compute() (float64, error)
}

// Surrogate binds a Fitter to the trainer of one fold. The model is
// available once the fold is trained.
type Surrogate struct {
	trainer *trainer.Trainer
	fitter  surrogate.Fitter
	model   surrogate.Model
}

// NewSurrogate returns an untrained surrogate.
func NewSurrogate(t *trainer.Trainer, f surrogate.Fitter) *Surrogate {
	return &Surrogate{trainer: t, fitter: f}
}

// Trained returns a surrogate holding an already trained model.
func Trained(m surrogate.Model) *Surrogate {
	return &Surrogate{model: m}
}

// Train trains the model. It is collective.
func (s *Surrogate) Train() error {
	if s.fitter == nil {
		panic("crossval: surrogate has no fitter")
	}
	m, err := s.fitter.Train(s.trainer)
	if err != nil {
		return err
	}
	s.model = m
	return nil
}

// Model returns the trained model.
func (s *Surrogate) Model() surrogate.Model {
	if s.model == nil {
		panic("crossval: surrogate used before training")
	}
	return s.model
}

// Trainer returns the trainer of the fold, nil for a Trained surrogate.
func (s *Surrogate) Trainer() *trainer.Trainer { return s.trainer }

// RMSE is the cross-validated root mean square error
//  sqrt( 1/M Σ_m 1/n_m Σ_{i ∈ test_m} (y_i - ŷ_m(x_i))² )
// over M models, each scored on its own held-out rows.
type RMSE struct {
	sampler    sampler.Sampler
	results    trainer.Results
	surrogates []*Surrogate
	tests      []*rowset.Set // local held-out rows of each model
	numPoints  []int         // global held-out rows of each model
	comm       comm.Comm
}

var _ Postprocessor = (*RMSE)(nil)

// NewRMSE returns the error of the surrogates on the sampler rows given by
// the (index, nrow) ranges of each surrogate.
func NewRMSE(s sampler.Sampler, results trainer.Results, surrogates []*Surrogate, index, nrow [][]int, c comm.Comm) (*RMSE, error) {
	const object = "CrossValidatedRMSE"
	if len(surrogates) == 0 {
		return nil, errs.Config(object, "models", "no models to cross validate")
	}
	if len(index) != len(surrogates) {
		return nil, errs.Mismatch(object, "test_index", "number of test sets must match number of models", len(index), len(surrogates))
	}
	if len(nrow) != len(surrogates) {
		return nil, errs.Mismatch(object, "num_points", "number of test sets must match number of models", len(nrow), len(surrogates))
	}
	if c == nil {
		c = comm.Serial{}
	}
	r := &RMSE{
		sampler:    s,
		results:    results,
		surrogates: surrogates,
		tests:      make([]*rowset.Set, len(surrogates)),
		numPoints:  make([]int, len(surrogates)),
		comm:       c,
	}
	begin, end := s.LocalRowBegin(), s.LocalRowEnd()
	for m := range surrogates {
		if len(index[m]) != len(nrow[m]) {
			return nil, errs.Mismatch(object, "num_points", "size of test_index does not match size of num_points", len(nrow[m]), len(index[m]))
		}
		set := rowset.New()
		for n, start := range index[m] {
			lo := max(start, begin)
			hi := min(start+nrow[m][n], end)
			if hi > lo {
				set.AddRange(lo, hi-lo)
			}
			r.numPoints[m] += nrow[m][n]
		}
		r.tests[m] = set
	}
	return r, nil
}

func (r *RMSE) Compute() (float64, error) {
	if err := checkData("CrossValidatedRMSE", r.sampler, r.results, r.comm); err != nil {
		return 0, err
	}
	begin, end := r.sampler.LocalRowBegin(), r.sampler.LocalRowEnd()
	offset := 0
	if r.results.Distributed {
		offset = begin
	}
	sme := make([]float64, len(r.surrogates))
	for m, s := range r.surrogates {
		model := s.Model()
		for i := begin; i < end; i++ {
			x := r.sampler.NextLocalRow()
			if !r.tests[m].Contains(i) {
				continue
			}
			res := r.results.Values[i-offset] - model.Evaluate(x)
			sme[m] += res * res
		}
		if r.numPoints[m] > 0 {
			sme[m] /= float64(r.numPoints[m])
		}
	}
	if err := r.comm.SumFloats(sme); err != nil {
		return 0, err
	}
	return math.Sqrt(floats.Sum(sme) / float64(len(sme))), nil
}

// LinearLOO is the leave-one-out root mean square error of a single model
// trained on all rows, computed from the leverage of each row.
type LinearLOO struct {
	sampler   sampler.Sampler
	results   trainer.Results
	surrogate *Surrogate
	form      surrogate.LeverageForm
	comm      comm.Comm
}

var _ Postprocessor = (*LinearLOO)(nil)

// NewLinearLOO returns the leave-one-out error of s. The model of s must
// implement surrogate.Leverager, with leave-one-out residuals of the given
// form.
func NewLinearLOO(smp sampler.Sampler, results trainer.Results, s *Surrogate, form surrogate.LeverageForm, c comm.Comm) (*LinearLOO, error) {
	if form == surrogate.NoLeverage {
		return nil, errs.Config("LinearLOOCrossValidation", "model", "surrogate model has no closed-form leave-one-out residual")
	}
	if c == nil {
		c = comm.Serial{}
	}
	return &LinearLOO{sampler: smp, results: results, surrogate: s, form: form, comm: c}, nil
}

func (l *LinearLOO) Compute() (float64, error) {
	if err := checkData("LinearLOOCrossValidation", l.sampler, l.results, l.comm); err != nil {
		return 0, err
	}
	model := l.surrogate.Model()
	lev, ok := model.(surrogate.Leverager)
	if !ok {
		return 0, errs.Config("LinearLOOCrossValidation", "model", fmt.Sprintf("%T does not record leverage", model))
	}
	begin, end := l.sampler.LocalRowBegin(), l.sampler.LocalRowEnd()
	offset := 0
	if l.results.Distributed {
		offset = begin
	}
	var sum float64
	for i := begin; i < end; i++ {
		x := l.sampler.NextLocalRow()
		res := l.form.Residual(l.results.Values[i-offset], model.Evaluate(x), lev.Leverage(i))
		sum += res * res
	}
	sum, err := l.comm.SumFloat(sum)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(sum / float64(l.sampler.NumRows())), nil
}

// checkData verifies that the results have one value per sampler row.
func checkData(object string, s sampler.Sampler, results trainer.Results, c comm.Comm) error {
	n := len(results.Values)
	if results.Distributed {
		var err error
		if n, err = c.SumInt(n); err != nil {
			return err
		}
	}
	if n != s.NumRows() {
		return errs.Mismatch(object, "sampler", "number of sampler rows and size of data vector "+results.Name+" need to be consistent", s.NumRows(), n)
	}
	return nil
}
