package stackmc

import (
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/btracey/surrogate"
	"github.com/btracey/surrogate/comm"
	"github.com/btracey/surrogate/distribution"
	"github.com/btracey/surrogate/fold"
	"github.com/btracey/surrogate/sampler"
	"github.com/btracey/surrogate/trainer"
)

// Study describes repeated StackMC trials on a function with a known
// expected value.
type Study struct {
	Func          func(x []float64) float64
	Distributions distribution.Independent
	Fitters       []surrogate.Fitter
	Folds         int
	// Settings of every trial. Samplers hold a read position, so the mean
	// sampler of each trial is built by MeanSampler instead of
	// Settings.MeanSampler.
	Settings    Settings
	MeanSampler func() sampler.Sampler
	// Seed of the first trial. Trial i uses Seed+i.
	Seed uint64
	// Workers is the number of trials run concurrently. If zero,
	// GOMAXPROCS is used.
	Workers int
}

// Trial is the outcome of a single set of samples.
type Trial struct {
	StackMC    float64
	MonteCarlo float64
	// Fit is the expected value of each fitter trained on all samples.
	Fit []float64
}

// Run draws samples rows with the given seed and returns the estimates of
// StackMC, Monte Carlo and each fitter alone.
func (s Study) Run(samples int, seed uint64) (Trial, error) {
	smp := sampler.NewMonteCarlo(samples, s.Distributions, seed, nil)
	y := make([]float64, samples)
	for i := range y {
		y[i] = s.Func(smp.NextLocalRow())
	}
	tc := trainer.Config{Sampler: smp, Results: trainer.Results{Values: y}, Comm: comm.Serial{}}
	kf, err := fold.NewKFold(samples, s.Folds, false, seed)
	if err != nil {
		return Trial{}, err
	}
	settings := s.Settings
	settings.MeanSampler = nil
	if s.MeanSampler != nil {
		settings.MeanSampler = s.MeanSampler()
	}
	r, err := Estimate(Config{Trainer: tc, Fitters: s.Fitters, Splitter: kf, Settings: settings})
	if err != nil {
		return Trial{}, err
	}
	tr := Trial{StackMC: r.EV, MonteCarlo: r.MonteCarlo, Fit: make([]float64, len(s.Fitters))}
	t, err := trainer.New(tc)
	if err != nil {
		return Trial{}, err
	}
	for i, f := range s.Fitters {
		m, err := f.Train(t)
		if err != nil {
			return Trial{}, err
		}
		if tr.Fit[i], err = expectedValue(m, settings.MeanSampler, tc.Comm); err != nil {
			return Trial{}, err
		}
	}
	return tr, nil
}

// ErrorStats is the mean absolute error of an estimator over the trials and
// the standard error of that mean.
type ErrorStats struct {
	Mean, StdErr float64
}

// AverageResult is the behavior of the estimators at one number of samples.
type AverageResult struct {
	Samples    int
	Runs       int
	StackMC    ErrorStats
	MonteCarlo ErrorStats
	Fit        []ErrorStats
}

// Average runs the study runs times with samples rows each and compares the
// estimates to truth.
func (s Study) Average(truth float64, runs, samples int) (AverageResult, error) {
	trials := make([]Trial, runs)
	var g errgroup.Group
	workers := s.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(workers)
	for i := range trials {
		i := i
		g.Go(func() error {
			tr, err := s.Run(samples, s.Seed+uint64(i))
			if err != nil {
				return fmt.Errorf("stackmc: trial %d: %w", i, err)
			}
			trials[i] = tr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return AverageResult{}, err
	}

	r := AverageResult{Samples: samples, Runs: runs, Fit: make([]ErrorStats, len(s.Fitters))}
	ev := make([]float64, runs)
	collect := func(get func(Trial) float64) ErrorStats {
		for i, tr := range trials {
			ev[i] = get(tr)
		}
		return errorStats(ev, truth)
	}
	r.StackMC = collect(func(tr Trial) float64 { return tr.StackMC })
	r.MonteCarlo = collect(func(tr Trial) float64 { return tr.MonteCarlo })
	for j := range r.Fit {
		r.Fit[j] = collect(func(tr Trial) float64 { return tr.Fit[j] })
	}
	return r, nil
}

// Sweep runs Average at every number of samples.
func (s Study) Sweep(truth float64, runs int, samples []int) ([]AverageResult, error) {
	out := make([]AverageResult, len(samples))
	for i, n := range samples {
		r, err := s.Average(truth, runs, n)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

// LogSamples returns n sample counts logarithmically spaced between lb and
// ub, rounded to integers.
func LogSamples(n, lb, ub int) []int {
	span := make([]float64, n)
	floats.LogSpan(span, float64(lb), float64(ub))
	out := make([]int, n)
	for i, v := range span {
		out[i] = int(math.Round(v))
	}
	return out
}

func errorStats(ev []float64, truth float64) ErrorStats {
	e := make([]float64, len(ev))
	for i, v := range ev {
		e[i] = math.Abs(v - truth)
	}
	mean, std := stat.MeanStdDev(e, nil)
	return ErrorStats{Mean: mean, StdErr: stat.StdErr(std, float64(len(e)))}
}
