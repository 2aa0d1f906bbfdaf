package gof

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/btracey/surrogate"
	"github.com/btracey/surrogate/comm"
	"github.com/btracey/surrogate/errs"
	"github.com/btracey/surrogate/fit"
	"github.com/btracey/surrogate/sampler"
	"github.com/btracey/surrogate/trainer"
)

type dofModel int

func (dofModel) Evaluate([]float64) float64 { return 0 }
func (dofModel) NumParameters() int         { return 1 }
func (m dofModel) DOF() int                 { return int(m) }

var all = []Metric{RMSE, RSquared, AdjRSquared, FStatistic, PValue}

func TestOutputs(t *testing.T) {
	data := []float64{1, 2, 3, 4}
	model := []float64{1.1, 1.9, 3.2, 3.8}
	e, err := New(Config{
		Data:    trainer.Results{Name: "data", Values: data},
		Models:  []surrogate.Model{dofModel(2)},
		Outputs: []trainer.Results{{Name: "model", Values: model}},
	})
	require.NoError(t, err)
	got, err := e.Compute(all...)
	require.NoError(t, err)
	require.Len(t, got, 1)

	// sse = 0.1, sst = 5.
	want := []float64{math.Sqrt(0.1 / 4), 0.98, 0.97, 98, 1 - math.Sqrt(98)/10}
	for i, m := range all {
		if math.Abs(got[0][i]-want[i]) > 1e-9 {
			t.Errorf("Case %s: got %v, want %v", m, got[0][i], want[i])
		}
	}
}

func TestDistributedOutputs(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5}
	model := []float64{1, 2.5, 3, 4, 4}
	serial, err := New(Config{
		Data:    trainer.Results{Values: data},
		Outputs: []trainer.Results{{Values: model}},
	})
	require.NoError(t, err)
	want, err := serial.Compute(RMSE, RSquared)
	require.NoError(t, err)

	err = comm.Run(2, func(c comm.Comm) error {
		begin, end := comm.Partition(len(data), c.Rank(), c.Size())
		e, err := New(Config{
			Data:    trainer.Results{Values: data[begin:end], Distributed: true},
			Outputs: []trainer.Results{{Values: model[begin:end], Distributed: true}},
			Comm:    c,
		})
		if err != nil {
			return err
		}
		got, err := e.Compute(RMSE, RSquared)
		if err != nil {
			return err
		}
		assert.InDeltaSlice(t, want[0], got[0], 1e-12)
		return nil
	})
	require.NoError(t, err)
}

func TestSampler(t *testing.T) {
	x := mat.NewDense(7, 1, []float64{0, 1, 2, 3, 4, 5, 6})
	y := make([]float64, 7)
	for i := range y {
		v := x.At(i, 0)
		y[i] = 2*v*v - v + 3
	}
	tr, err := trainer.New(trainer.Config{
		Sampler: sampler.NewMatrix(x, nil),
		Results: trainer.Results{Values: y},
	})
	require.NoError(t, err)
	exact, err := fit.PolynomialRegressionConfig{Type: fit.OLS, MaxDegree: 2}.Train(tr)
	require.NoError(t, err)
	line, err := fit.PolynomialRegressionConfig{Type: fit.OLS, MaxDegree: 1}.Train(tr)
	require.NoError(t, err)

	results := make([][][]float64, 3)
	var mu sync.Mutex
	err = comm.Run(3, func(c comm.Comm) error {
		e, err := New(Config{
			Data:    trainer.Results{Values: y},
			Sampler: sampler.NewMatrix(x, c),
			Models:  []surrogate.Model{exact, line},
			Comm:    c,
		})
		if err != nil {
			return err
		}
		got, err := e.Compute(all...)
		if err != nil {
			return err
		}
		mu.Lock()
		results[c.Rank()] = got
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	for rank, got := range results {
		assert.InDelta(t, 0, got[0][0], 1e-8)
		assert.InDelta(t, 1, got[0][1], 1e-10)
		assert.True(t, math.IsNaN(got[0][3]), "exact fit has no F statistic")
		assert.True(t, math.IsNaN(got[0][4]), "exact fit has no p-value")
		assert.Greater(t, got[1][0], 1.0)
		assert.Less(t, got[1][1], 1.0)
		assert.Greater(t, got[1][4], 0.0)
		for i := range got {
			if !floats.Same(results[0][i], got[i]) {
				t.Errorf("Case rank %d model %d: got %v, want %v", rank, i, got[i], results[0][i])
			}
		}
	}
}

func TestUndefinedFStatistic(t *testing.T) {
	data := []float64{1, 2, 3, 4}
	for _, test := range []struct {
		name    string
		dof     int
		model   []float64
		message string
	}{
		{"ExactFit", 2, []float64{1, 2, 3, 4}, "model fits the data exactly, value is NaN"},
		{"SingleParameter", 1, []float64{1.1, 1.9, 3.2, 3.8}, "F distribution is undefined, value is NaN"},
	} {
		core, logs := observer.New(zapcore.WarnLevel)
		e, err := New(Config{
			Data:    trainer.Results{Values: data},
			Models:  []surrogate.Model{dofModel(test.dof)},
			Outputs: []trainer.Results{{Values: test.model}},
			Logger:  zap.New(core),
		})
		require.NoError(t, err)
		got, err := e.Compute(RSquared, FStatistic, PValue)
		require.NoError(t, err)
		assert.False(t, math.IsNaN(got[0][0]), "Case %s", test.name)
		assert.True(t, math.IsNaN(got[0][1]), "Case %s: F statistic %v", test.name, got[0][1])
		assert.True(t, math.IsNaN(got[0][2]), "Case %s: p-value %v", test.name, got[0][2])
		assert.Equal(t, 2, logs.FilterMessage(test.message).Len(), "Case %s", test.name)
	}
}

func TestWarnings(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	e, err := New(Config{
		Data:    trainer.Results{Values: []float64{1, 2, 3}},
		Models:  []surrogate.Model{dofModel(3)},
		Outputs: []trainer.Results{{Values: []float64{3, 2, 1}}},
		Logger:  zap.New(core),
	})
	require.NoError(t, err)
	got, err := e.Compute(RSquared, PValue, AdjRSquared)
	require.NoError(t, err)
	assert.Equal(t, -3.0, got[0][0])
	assert.True(t, math.IsNaN(got[0][1]))
	assert.Equal(t, 1, logs.FilterMessage("model is poorly fitted, p-value is NaN").Len())
	assert.Equal(t, 2, logs.FilterMessageSnippet("degrees of freedom").Len())
}

func TestErrors(t *testing.T) {
	x := mat.NewDense(3, 1, []float64{0, 1, 2})
	for _, test := range []struct {
		name  string
		cfg   Config
		param string
	}{
		{"Nothing", Config{Data: trainer.Results{Values: []float64{1}}}, "compute"},
		{"SamplerAndOutputs", Config{
			Sampler: sampler.NewMatrix(x, nil),
			Models:  []surrogate.Model{dofModel(1)},
			Outputs: []trainer.Results{{Values: []float64{1}}},
		}, "model_results"},
		{"SamplerNoModels", Config{Sampler: sampler.NewMatrix(x, nil)}, "sampler"},
		{"ModelCount", Config{
			Models:  []surrogate.Model{dofModel(1), dofModel(1)},
			Outputs: []trainer.Results{{Values: []float64{1}}},
		}, "model"},
		{"ParallelType", Config{
			Data:    trainer.Results{Distributed: true},
			Outputs: []trainer.Results{{Values: []float64{1}}},
		}, "model_results"},
	} {
		_, err := New(test.cfg)
		var ce *errs.ConfigError
		if assert.ErrorAs(t, err, &ce, "Case %s", test.name) {
			assert.Equal(t, test.param, ce.Param, "Case %s", test.name)
		}
	}

	e, err := New(Config{
		Data:    trainer.Results{Values: []float64{1, 2}},
		Sampler: sampler.NewMatrix(x, nil),
		Models:  []surrogate.Model{dofModel(1)},
	})
	require.NoError(t, err)
	_, err = e.Compute(RMSE)
	assert.ErrorIs(t, err, errs.ErrConfig)

	e, err = New(Config{
		Data:    trainer.Results{Values: []float64{1, 2}},
		Outputs: []trainer.Results{{Values: []float64{1, 2, 3}}},
	})
	require.NoError(t, err)
	_, err = e.Compute(RMSE)
	assert.ErrorIs(t, err, errs.ErrConfig)
	_, err = e.Compute(FStatistic)
	assert.ErrorIs(t, err, errs.ErrConfig)
}
