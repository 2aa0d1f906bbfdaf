// Package stackmc implements the StackMC algorithm of Tracey, Wolpert, and
// Alonso on top of the surrogate trainers. The StackMC algorithm is described
// in
//
//  Brendan Tracey, David Wolpert, and Juan J. Alonso.  "Using Supervised
//  Learning to Improve Monte Carlo Integral Estimation", AIAA Journal,
//  Vol. 51, No. 8 (2013), pp. 2015-2023.
//  doi: 10.2514/1.J051655
//
// StackMC estimates the expected value of a function from a set of samples.
// For every fold, a surrogate is trained on the held-in rows; its expected
// value, known exactly or from a cheap sampler, is corrected by the Monte
// Carlo average of the residual on the held-out rows. The surrogate acts as a
// control variate weighted by alpha. StackMC has been shown empirically to
// have a lower expected squared error than Monte Carlo sampling, although
// there are no guarantees of a lower error for any specific set of samples.
//
// Estimate is collective over the workers of the trainer's comm.
package stackmc

import (
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/btracey/surrogate"
	"github.com/btracey/surrogate/comm"
	"github.com/btracey/surrogate/errs"
	"github.com/btracey/surrogate/fold"
	"github.com/btracey/surrogate/rowset"
	"github.com/btracey/surrogate/sampler"
	"github.com/btracey/surrogate/trainer"
)

// Integrator is implemented by models whose expected value under the input
// distributions is known in closed form.
type Integrator interface {
	Mean() float64
}

// Settings controls the estimate.
type Settings struct {
	// UpdateFull uses the expected value of the fit to all rows instead of
	// the fit of each fold.
	UpdateFull bool
	// AlphaComputer computes the control variate weights. If nil,
	// SingleAlpha is used.
	AlphaComputer AlphaComputer
	// MeanSampler is used to estimate the expected value of models that are
	// not Integrators. Quadrature weights are used if it has them.
	MeanSampler sampler.Sampler
}

// Config configures an estimate.
type Config struct {
	// Trainer is the configuration of the samples of the function. It must
	// not skip rows.
	Trainer  trainer.Config
	Fitters  []surrogate.Fitter
	Splitter fold.Splitter
	Settings Settings
	Logger   *zap.Logger
}

// Result is a StackMC estimate.
type Result struct {
	EV         float64     // StackMC expected value
	MonteCarlo float64     // average of the held-out rows
	Alpha      [][]float64 // weights by fold then fitter
}

// Estimate returns the StackMC estimate of the expected value of the
// function sampled by cfg.Trainer.
func Estimate(cfg Config) (*Result, error) {
	tc := cfg.Trainer
	switch {
	case tc.Sampler == nil:
		return nil, errs.Config("stackmc", "trainer", "trainer has no sampler")
	case len(tc.SkipIndex) > 0 || len(tc.NumSkip) > 0:
		return nil, errs.Config("stackmc", "trainer", "trainer skips rows")
	case len(cfg.Fitters) == 0:
		return nil, errs.Config("stackmc", "fitters", "no fitters given")
	case cfg.Splitter == nil || cfg.Splitter.NumSets() == 0:
		return nil, errs.Config("stackmc", "splitter", "no training folds")
	}
	if tc.Comm == nil {
		tc.Comm = comm.Serial{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("stackmc")
	settings := cfg.Settings
	if settings.AlphaComputer == nil {
		settings.AlphaComputer = SingleAlpha{}
	}

	nFolds := cfg.Splitter.NumSets()
	nFitters := len(cfg.Fitters)

	// Fit every fitter on every fold.
	models := make([][]surrogate.Model, nFolds)
	evs := make([][]float64, nFolds)
	for k := range models {
		fc := tc
		fc.SkipIndex = cfg.Splitter.TestIndices(k)
		fc.NumSkip = cfg.Splitter.TestNumRow(k)
		t, err := trainer.New(fc)
		if err != nil {
			return nil, fmt.Errorf("stackmc: fold %d: %w", k, err)
		}
		models[k] = make([]surrogate.Model, nFitters)
		evs[k] = make([]float64, nFitters)
		for j, f := range cfg.Fitters {
			m, err := f.Train(t)
			if err != nil {
				return nil, fmt.Errorf("stackmc: fold %d fitter %d: %w", k, j, err)
			}
			models[k][j] = m
			if settings.UpdateFull {
				continue
			}
			if evs[k][j], err = expectedValue(m, settings.MeanSampler, tc.Comm); err != nil {
				return nil, err
			}
		}
	}
	if settings.UpdateFull {
		t, err := trainer.New(tc)
		if err != nil {
			return nil, err
		}
		for j, f := range cfg.Fitters {
			m, err := f.Train(t)
			if err != nil {
				return nil, fmt.Errorf("stackmc: full fit of fitter %d: %w", j, err)
			}
			ev, err := expectedValue(m, settings.MeanSampler, tc.Comm)
			if err != nil {
				return nil, err
			}
			for k := range evs {
				evs[k][j] = ev
			}
		}
	}

	h, err := heldOut(tc, cfg.Splitter, models)
	if err != nil {
		return nil, err
	}
	alpha, err := settings.AlphaComputer.ComputeAlpha(h)
	if err != nil {
		return nil, err
	}

	// Correct the weighted expected values with the average held-out
	// residual of each fold.
	foldEVs := make([]float64, nFolds)
	counts := make([]float64, nFolds)
	corrections := make([]float64, nFolds)
	for i, f := range h.F {
		k := h.Fold[i]
		res := f
		for j := range h.G {
			res -= alpha[k][j] * h.G[j][i]
		}
		corrections[k] += res
		counts[k]++
	}
	for k := range foldEVs {
		foldEVs[k] = floats.Dot(alpha[k], evs[k])
		if counts[k] > 0 {
			foldEVs[k] += corrections[k] / counts[k]
		}
	}
	r := &Result{
		EV:         stat.Mean(foldEVs, nil),
		MonteCarlo: stat.Mean(h.F, nil),
		Alpha:      alpha,
	}
	logger.Debug("estimate",
		zap.Int("folds", nFolds),
		zap.Int("fitters", nFitters),
		zap.Float64("ev", r.EV),
		zap.Float64("monteCarlo", r.MonteCarlo),
	)
	return r, nil
}

// heldOut evaluates the model of every fold on its held-out rows and
// gathers the results on every worker.
func heldOut(tc trainer.Config, sp fold.Splitter, models [][]surrogate.Model) (HeldOut, error) {
	s := tc.Sampler
	c := tc.Comm
	nFitters := len(models[0])
	begin, end := s.LocalRowBegin(), s.LocalRowEnd()
	offset := 0
	if tc.Results.Distributed {
		offset = begin
	}

	var f, foldID []float64
	g := make([][]float64, nFitters)
	for k := range models {
		test := rowset.FromRanges(sp.TestIndices(k), sp.TestNumRow(k))
		for row := begin; row < end; row++ {
			x := s.NextLocalRow()
			if !test.Contains(row) {
				continue
			}
			f = append(f, tc.Results.Values[row-offset])
			foldID = append(foldID, float64(k))
			for j, m := range models[k] {
				g[j] = append(g[j], m.Evaluate(x))
			}
		}
	}

	var h HeldOut
	var err error
	if h.F, err = c.AllGather(f); err != nil {
		return h, err
	}
	ids, err := c.AllGather(foldID)
	if err != nil {
		return h, err
	}
	h.Fold = make([]int, len(ids))
	for i, v := range ids {
		h.Fold[i] = int(v)
	}
	h.G = make([][]float64, nFitters)
	for j := range g {
		if h.G[j], err = c.AllGather(g[j]); err != nil {
			return h, err
		}
	}
	h.Folds = len(models)
	return h, nil
}

// expectedValue returns the expected value of m, in closed form if m is an
// Integrator and from the rows of s otherwise.
func expectedValue(m surrogate.Model, s sampler.Sampler, c comm.Comm) (float64, error) {
	if in, ok := m.(Integrator); ok {
		return in.Mean(), nil
	}
	if s == nil {
		return 0, errs.Config("stackmc", "mean_sampler", fmt.Sprintf("%T has no closed-form mean and no sampler is given", m))
	}
	w, weighted := s.(sampler.Weighter)
	var sum float64
	for row := s.LocalRowBegin(); row < s.LocalRowEnd(); row++ {
		v := m.Evaluate(s.NextLocalRow())
		if weighted {
			v *= w.QuadratureWeight(row)
		}
		sum += v
	}
	sum, err := c.SumFloat(sum)
	if err != nil {
		return 0, err
	}
	if !weighted {
		sum /= float64(s.NumRows())
	}
	return sum, nil
}
