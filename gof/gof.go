// Package gof computes goodness of fit statistics of surrogate models
// against observed data.
//
// The statistics are computed either from models evaluated on the rows of a
// sampler or from model outputs computed elsewhere. Data and model outputs
// are replicated on every worker or distributed like the sampler rows.
// Every function is collective.
package gof

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/btracey/surrogate"
	"github.com/btracey/surrogate/comm"
	"github.com/btracey/surrogate/errs"
	"github.com/btracey/surrogate/sampler"
	"github.com/btracey/surrogate/trainer"
)

// Metric is a goodness of fit statistic.
type Metric int

const (
	RMSE        Metric = iota // root mean square error
	RSquared                  // coefficient of determination
	AdjRSquared               // R² adjusted for the model degrees of freedom
	FStatistic                // F statistic of the regression
	PValue                    // p-value of the F statistic
)

func (m Metric) String() string {
	switch m {
	case RMSE:
		return "rmse"
	case RSquared:
		return "rsquared"
	case AdjRSquared:
		return "adj-rsquared"
	case FStatistic:
		return "fstatistic"
	case PValue:
		return "pvalue"
	}
	return fmt.Sprintf("Metric(%d)", int(m))
}

// needsDOF reports whether the metric uses the model degrees of freedom.
func (m Metric) needsDOF() bool {
	return m == AdjRSquared || m == FStatistic || m == PValue
}

// Evaluator computes goodness of fit metrics of a set of models.
type Evaluator struct {
	data    trainer.Results
	comm    comm.Comm
	logger  *zap.Logger
	sampler sampler.Sampler

	models  []surrogate.Model
	outputs []trainer.Results
}

// Config configures an Evaluator.
type Config struct {
	// Data are the observed values.
	Data trainer.Results
	// Sampler is used to evaluate Models. If nil, Outputs holds the model
	// evaluations.
	Sampler sampler.Sampler
	Models  []surrogate.Model
	// Outputs are model evaluations aligned with Data. Each must be
	// distributed when Data is.
	Outputs []trainer.Results
	Comm    comm.Comm
	Logger  *zap.Logger
}

// New validates cfg and returns an Evaluator.
func New(cfg Config) (*Evaluator, error) {
	const object = "GoodnessOfFit"
	if cfg.Comm == nil {
		cfg.Comm = comm.Serial{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Evaluator{
		data:    cfg.Data,
		comm:    cfg.Comm,
		logger:  logger.Named("gof"),
		sampler: cfg.Sampler,
		models:  cfg.Models,
		outputs: cfg.Outputs,
	}
	switch {
	case cfg.Sampler != nil:
		if len(cfg.Outputs) > 0 {
			return nil, errs.Config(object, "model_results", "using sampler to evaluate surrogate models, so no results vector is needed")
		}
		if len(cfg.Models) == 0 {
			return nil, errs.Config(object, "sampler", "using sampler to evaluate models, but no models are provided")
		}
	case len(cfg.Outputs) > 0:
		if len(cfg.Models) > 0 && len(cfg.Models) != len(cfg.Outputs) {
			return nil, errs.Mismatch(object, "model", "number of models is inconsistent with number of model results vectors", len(cfg.Models), len(cfg.Outputs))
		}
		for _, out := range cfg.Outputs {
			if out.Distributed != cfg.Data.Distributed {
				return nil, errs.Config(object, "model_results", "data parallel type must match the model results "+out.Name)
			}
		}
	default:
		return nil, errs.Config(object, "compute", "requires either a sampler and a set of models or a set of model results")
	}
	return e, nil
}

// NumModels returns the number of models evaluated.
func (e *Evaluator) NumModels() int {
	if e.sampler != nil {
		return len(e.models)
	}
	return len(e.outputs)
}

// Compute returns the metrics of every model, indexed by model then metric.
func (e *Evaluator) Compute(metrics ...Metric) ([][]float64, error) {
	const object = "GoodnessOfFit"
	for _, m := range metrics {
		if m < RMSE || m > PValue {
			return nil, errs.Config(object, "compute", "unknown metric "+m.String())
		}
		if m.needsDOF() && len(e.models) == 0 {
			return nil, errs.Config(object, "compute", "models must be given for "+m.String())
		}
	}

	n := len(e.data.Values)
	if e.data.Distributed {
		var err error
		if n, err = e.comm.SumInt(n); err != nil {
			return nil, err
		}
	}
	if e.sampler != nil && e.sampler.NumRows() != n {
		return nil, errs.Mismatch(object, "sampler", "number of sampler rows and size of data vector need to be consistent", e.sampler.NumRows(), n)
	}

	sst, err := e.sst()
	if err != nil {
		return nil, err
	}
	out := make([][]float64, e.NumModels())
	for i := range out {
		sse, err := e.sse(i, n)
		if err != nil {
			return nil, err
		}
		out[i] = make([]float64, len(metrics))
		for j, m := range metrics {
			out[i][j] = e.metric(m, i, sse, sst, float64(n))
		}
	}
	return out, nil
}

func (e *Evaluator) metric(m Metric, model int, sse, sst, n float64) float64 {
	if m == RMSE {
		return math.Sqrt(sse / n)
	}
	r2 := 1 - sse/sst
	if m == RSquared {
		return r2
	}
	p := float64(e.models[model].DOF())
	if n <= p {
		e.logger.Warn("data size is equal to or smaller than model degrees of freedom, value might be incorrect",
			zap.Stringer("metric", m),
			zap.Float64("n", n),
			zap.Float64("dof", p),
		)
	}
	switch m {
	case AdjRSquared:
		return 1 - (1-r2)*(n-1)/(n-p)
	case FStatistic:
		return e.fStatistic(m, model, r2, n, p)
	}
	if r2 < 0 || r2 > 1 {
		e.logger.Warn("model is poorly fitted, p-value is NaN", zap.Int("model", model), zap.Float64("rsquared", r2))
		return math.NaN()
	}
	fs := e.fStatistic(m, model, r2, n, p)
	if math.IsNaN(fs) {
		return fs
	}
	f := distuv.F{D1: p - 1, D2: n - p}
	return 1 - f.CDF(fs)
}

// exactFit is the largest 1-R² treated as an exact fit.
const exactFit = 1e-12

// fStatistic returns the F statistic of the regression, or NaN with a
// warning when one of its denominators vanishes.
func (e *Evaluator) fStatistic(m Metric, model int, r2, n, p float64) float64 {
	if p <= 1 || n <= p {
		e.logger.Warn("F distribution is undefined, value is NaN",
			zap.Stringer("metric", m),
			zap.Float64("n", n),
			zap.Float64("dof", p),
		)
		return math.NaN()
	}
	if 1-r2 <= exactFit {
		e.logger.Warn("model fits the data exactly, value is NaN",
			zap.Stringer("metric", m),
			zap.Int("model", model),
			zap.Float64("rsquared", r2),
		)
		return math.NaN()
	}
	return r2 / (1 - r2) * (n - p) / (p - 1)
}

// sst returns the total sum of squares of the data.
func (e *Evaluator) sst() (float64, error) {
	var mean float64
	if e.data.Distributed {
		sum, err := e.comm.SumFloat(floats.Sum(e.data.Values))
		if err != nil {
			return 0, err
		}
		count, err := e.comm.SumInt(len(e.data.Values))
		if err != nil {
			return 0, err
		}
		mean = sum / float64(count)
	} else {
		mean = stat.Mean(e.data.Values, nil)
	}
	var sst float64
	for _, v := range e.data.Values {
		d := v - mean
		sst += d * d
	}
	if e.data.Distributed {
		return e.comm.SumFloat(sst)
	}
	return sst, nil
}

// sse returns the sum of squared errors of model i.
func (e *Evaluator) sse(i, n int) (float64, error) {
	var sse float64
	if e.sampler != nil {
		s := e.sampler
		offset := 0
		if e.data.Distributed {
			offset = s.LocalRowBegin()
		}
		for row := s.LocalRowBegin(); row < s.LocalRowEnd(); row++ {
			res := e.data.Values[row-offset] - e.models[i].Evaluate(s.NextLocalRow())
			sse += res * res
		}
		// Replicated data is scored on the local rows only, so the local
		// sums always combine.
		return e.comm.SumFloat(sse)
	}

	out := e.outputs[i]
	size := len(out.Values)
	if out.Distributed {
		var err error
		if size, err = e.comm.SumInt(size); err != nil {
			return 0, err
		}
	}
	if size != n {
		return 0, errs.Mismatch("GoodnessOfFit", "model_results", "size of model vector "+out.Name+" does not match data vector", size, n)
	}
	for j, v := range e.data.Values {
		res := v - out.Values[j]
		sse += res * res
	}
	if e.data.Distributed {
		return e.comm.SumFloat(sse)
	}
	return sse, nil
}
