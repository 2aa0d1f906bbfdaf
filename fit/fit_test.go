package fit

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
	"github.com/btracey/surrogate/distribution"
	"github.com/btracey/surrogate/errs"
	"github.com/btracey/surrogate/lsq"
	"github.com/btracey/surrogate/sampler"
	"github.com/btracey/surrogate/trainer"
)

// resultsOf returns f at every row of s.
func resultsOf(s sampler.Sampler, f func(x []float64) float64) []float64 {
	out := make([]float64, s.NumRows())
	for i := range out {
		out[i] = f(s.NextLocalRow())
	}
	return out
}

// trainOn trains fitter on size workers. build returns the sampler of a
// worker; the results are computed from a serial copy of the sampler.
func trainOn(t *testing.T, size int, fitter surrogate.Fitter, build func(c comm.Comm) sampler.Sampler, f func(x []float64) float64) []surrogate.Model {
	y := resultsOf(build(comm.Serial{}), f)
	models := make([]surrogate.Model, size)
	var mu sync.Mutex
	err := comm.Run(size, func(c comm.Comm) error {
		tr, err := trainer.New(trainer.Config{
			Sampler: build(c),
			Results: trainer.Results{Name: "y", Values: y},
			Comm:    c,
		})
		if err != nil {
			return err
		}
		m, err := fitter.Train(tr)
		if err != nil {
			return err
		}
		mu.Lock()
		models[c.Rank()] = m
		mu.Unlock()
		return nil
	})
	require.NoError(t, err)
	return models
}

func quadratic(x []float64) float64 {
	return 1 + 2*x[0] + 3*x[0]*x[1] + x[1]*x[1]
}

func TestPolynomialChaosQuadratureRoundTrip(t *testing.T) {
	dists := []distribution.Distribution{
		distribution.Uniform{Min: -1, Max: 3},
		distribution.Normal{Mu: 1, Sigma: 0.5},
	}
	build := func(c comm.Comm) sampler.Sampler {
		q, err := sampler.NewQuadrature(4, dists, c)
		require.NoError(t, err)
		return q
	}
	cfg := PolynomialChaosConfig{Order: 4, Distributions: dists}
	for _, size := range []int{1, 3} {
		models := trainOn(t, size, cfg, build, quadratic)
		for _, m := range models {
			for _, x := range [][]float64{{0, 0}, {1.7, -2}, {-3, 4}, {2.5, 1.1}} {
				want := quadratic(x)
				got := m.Evaluate(x)
				if math.Abs(got-want) > 1e-10*math.Max(1, math.Abs(want)) {
					t.Errorf("size %d: PC(%v) = %v, want %v", size, x, got, want)
				}
			}
			pc := m.(*PolynomialChaos)
			// E[x] = 1, E[y] = 1, E[y^2] = 1.25.
			assert.InDelta(t, 1+2+3+1.25, pc.Mean(), 1e-10)
			assert.Equal(t, 10, pc.DOF())
			assert.Equal(t, 2, pc.NumParameters())
		}
	}
}

func TestPolynomialChaosStandardDeviation(t *testing.T) {
	dists := []distribution.Distribution{distribution.Uniform{Min: 0, Max: 1}}
	build := func(c comm.Comm) sampler.Sampler {
		q, err := sampler.NewQuadrature(3, dists, c)
		require.NoError(t, err)
		return q
	}
	models := trainOn(t, 1, PolynomialChaosConfig{Order: 3, Distributions: dists}, build, func(x []float64) float64 { return x[0] })
	pc := models[0].(*PolynomialChaos)
	assert.InDelta(t, 0.5, pc.Mean(), 1e-12)
	assert.InDelta(t, 1/math.Sqrt(12), pc.StandardDeviation(), 1e-12)
}

func TestPolynomialChaosWorkers(t *testing.T) {
	dists := []distribution.Distribution{
		distribution.Uniform{Min: 0, Max: 1},
		distribution.Uniform{Min: -2, Max: 2},
	}
	build := func(c comm.Comm) sampler.Sampler {
		return sampler.NewMonteCarlo(50, distribution.Independent(dists), 11, c)
	}
	cfg := PolynomialChaosConfig{Order: 3, Distributions: dists}
	serial := trainOn(t, 1, cfg, build, quadratic)[0].(*PolynomialChaos)
	for _, m := range trainOn(t, 4, cfg, build, quadratic) {
		pc := m.(*PolynomialChaos)
		if !floats.EqualApprox(serial.Coefficients(), pc.Coefficients(), 1e-12) {
			t.Errorf("coefficients differ: %v, %v", serial.Coefficients(), pc.Coefficients())
		}
		for p := 0; p < 50; p++ {
			assert.InDelta(t, serial.Leverage(p), pc.Leverage(p), 1e-12)
		}
	}
}

func TestPolynomialChaosConfigErrors(t *testing.T) {
	x := mat.NewDense(4, 2, []float64{0, 0, 1, 1, 2, 2, 3, 3})
	tr, err := trainer.New(trainer.Config{
		Sampler: sampler.NewMatrix(x, nil),
		Results: trainer.Results{Values: []float64{0, 1, 2, 3}},
	})
	require.NoError(t, err)

	_, err = PolynomialChaosConfig{Order: 2, Distributions: []distribution.Distribution{
		distribution.Uniform{Min: 0, Max: 1},
	}}.Train(tr)
	var ce *errs.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "distributions", ce.Param)

	_, err = PolynomialChaosConfig{Order: 2, Distributions: []distribution.Distribution{
		distribution.Uniform{Min: 0, Max: 1},
		distribution.Weibull{K: 1, Lambda: 1},
	}}.Train(tr)
	assert.ErrorIs(t, err, errs.ErrConfig)
}

func TestPolynomialRegressionExact(t *testing.T) {
	dists := distribution.Independent{
		distribution.Uniform{Min: -1, Max: 1},
		distribution.Uniform{Min: 0, Max: 2},
	}
	build := func(c comm.Comm) sampler.Sampler {
		return sampler.NewMonteCarlo(30, dists, 3, c)
	}
	cfg := PolynomialRegressionConfig{Type: OLS, MaxDegree: 2}
	serial := trainOn(t, 1, cfg, build, quadratic)[0].(*PolynomialRegression)
	for _, x := range [][]float64{{0.3, 0.2}, {5, -1}} {
		assert.InDelta(t, quadratic(x), serial.Evaluate(x), 1e-8)
	}
	assert.Equal(t, 6, serial.DOF())

	for _, m := range trainOn(t, 4, cfg, build, quadratic) {
		pr := m.(*PolynomialRegression)
		assert.True(t, floats.EqualApprox(serial.Coefficients(), pr.Coefficients(), 1e-9))
	}
}

func TestPolynomialRegressionLeverage(t *testing.T) {
	n := 8
	x := mat.NewDense(n, 1, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		v := float64(i) / 3
		x.Set(i, 0, v)
		y[i] = math.Exp(v)
	}
	tr, err := trainer.New(trainer.Config{
		Sampler: sampler.NewMatrix(x, nil),
		Results: trainer.Results{Values: y},
	})
	require.NoError(t, err)
	pr, err := PolynomialRegressionConfig{Type: OLS, MaxDegree: 2}.TrainRegression(tr)
	require.NoError(t, err)

	// Hat matrix diagonal of the design matrix.
	a := mat.NewDense(n, 3, nil)
	for i := 0; i < n; i++ {
		pr.powers.Terms(a.RawRowView(i), []float64{x.At(i, 0)})
	}
	var ata mat.Dense
	ata.Mul(a.T(), a)
	var inv mat.Dense
	require.NoError(t, inv.Inverse(&ata))
	var hat mat.Dense
	hat.Product(a, &inv, a.T())
	for i := 0; i < n; i++ {
		assert.InDelta(t, hat.At(i, i), pr.Leverage(i), 1e-9)
	}

	inds := make([]int, n)
	for i := range inds {
		inds[i] = i
	}
	direct, err := lsq.Coeffs(x, y, nil, inds, pr.powers)
	require.NoError(t, err)
	assert.True(t, floats.EqualApprox(direct, pr.Coefficients(), 1e-8))
}

func TestPolynomialRegressionConfig(t *testing.T) {
	x := mat.NewDense(3, 1, []float64{0, 1, 2})
	tr, err := trainer.New(trainer.Config{
		Sampler: sampler.NewMatrix(x, nil),
		Results: trainer.Results{Values: []float64{0, 1, 4}},
	})
	require.NoError(t, err)
	_, err = PolynomialRegressionConfig{Type: OLS, MaxDegree: 2}.Train(tr)
	var ce *errs.ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 3, ce.Got)
	assert.Equal(t, 3, ce.Want)

	core, logs := observer.New(zapcore.WarnLevel)
	tr, err = trainer.New(trainer.Config{
		Sampler: sampler.NewMatrix(x, nil),
		Results: trainer.Results{Values: []float64{0, 1, 4}},
		Logger:  zap.New(core),
	})
	require.NoError(t, err)
	_, err = PolynomialRegressionConfig{Type: OLS, MaxDegree: 1, Penalty: 0.5}.Train(tr)
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("penalty is not used for OLS regression").Len())
}

func TestRidge(t *testing.T) {
	x := mat.NewDense(4, 1, []float64{0, 1, 2, 3})
	y := []float64{1, 3, 5, 7}
	tr, err := trainer.New(trainer.Config{
		Sampler: sampler.NewMatrix(x, nil),
		Results: trainer.Results{Values: y},
	})
	require.NoError(t, err)
	ols, err := PolynomialRegressionConfig{Type: OLS, MaxDegree: 1}.TrainRegression(tr)
	require.NoError(t, err)
	ridge, err := PolynomialRegressionConfig{Type: Ridge, MaxDegree: 1, Penalty: 10}.TrainRegression(tr)
	require.NoError(t, err)
	assert.Less(t, floats.Norm(ridge.Coefficients(), 2), floats.Norm(ols.Coefficients(), 2))
	assert.Less(t, ridge.Leverage(0), ols.Leverage(0))
}

func TestGaussianProcessLinear(t *testing.T) {
	x := mat.NewDense(5, 1, []float64{0, 1, 2, 3, 4})
	line := func(x []float64) float64 { return 2*x[0] + 1 }
	cfg := GaussianProcessConfig{
		Covariance:    Linear{Bias: 1, Scale: 1},
		NoiseVariance: 1e-6,
	}
	build := func(c comm.Comm) sampler.Sampler { return sampler.NewMatrix(x, c) }
	for _, size := range []int{1, 2} {
		for _, m := range trainOn(t, size, cfg, build, line) {
			assert.InDelta(t, 21, m.Evaluate([]float64{10}), 1e-3)
			gp := m.(*GaussianProcess)
			mean, std := gp.EvaluateStd([]float64{2})
			assert.InDelta(t, 5, mean, 1e-4)
			assert.Less(t, std, 1e-2)
		}
	}
}

func TestGaussianProcessStandardized(t *testing.T) {
	x := mat.NewDense(9, 1, nil)
	for i := 0; i < 9; i++ {
		x.Set(i, 0, float64(i)/2)
	}
	build := func(c comm.Comm) sampler.Sampler { return sampler.NewMatrix(x, c) }
	f := func(x []float64) float64 { return 100 + 10*math.Sin(x[0]) }
	cfg := DefaultGaussianProcessConfig(SquaredExponential{SignalVariance: 1, LengthFactor: []float64{0.5}})
	cfg.NoiseVariance = 1e-10
	serial := trainOn(t, 1, cfg, build, f)[0]
	for i := 0; i < 9; i++ {
		row := x.RawRowView(i)
		assert.InDelta(t, f(row), serial.Evaluate(row), 1e-2)
	}
	for _, m := range trainOn(t, 3, cfg, build, f) {
		assert.InDelta(t, serial.Evaluate([]float64{1.3}), m.Evaluate([]float64{1.3}), 1e-9)
	}
}

func TestGaussianProcessNotPositiveDefinite(t *testing.T) {
	x := mat.NewDense(2, 1, []float64{0, 1})
	tr, err := trainer.New(trainer.Config{
		Sampler: sampler.NewMatrix(x, nil),
		Results: trainer.Results{Values: []float64{0, 1}},
	})
	require.NoError(t, err)
	_, err = GaussianProcessConfig{Covariance: Linear{Bias: -1}}.Train(tr)
	assert.ErrorIs(t, err, errs.ErrNotPositiveDefinite)

	_, err = GaussianProcessConfig{}.Train(tr)
	assert.ErrorIs(t, err, errs.ErrConfig)
}

func TestKernels(t *testing.T) {
	x := []float64{0, 0}
	y := []float64{3, 4}
	for _, test := range []struct {
		name string
		k    Kernel
		want float64
	}{
		{"SquaredExponential", SquaredExponential{SignalVariance: 2}, 2 * math.Exp(-12.5)},
		{"SquaredExponentialScaled", SquaredExponential{SignalVariance: 1, LengthFactor: []float64{3, 4}}, math.Exp(-1)},
		{"Exponential", Exponential{SignalVariance: 1, Gamma: 1}, math.Exp(-5)},
		{"Matern12", Matern{SignalVariance: 1, P: 0}, math.Exp(-5)},
		{"Matern32", Matern{SignalVariance: 1, P: 1}, (1 + 5*math.Sqrt(3)) * math.Exp(-5*math.Sqrt(3))},
		{"Matern52", Matern{SignalVariance: 1, P: 2}, (1 + 5*math.Sqrt(5) + 125.0/3) * math.Exp(-5*math.Sqrt(5))},
		{"Linear", Linear{Bias: 1, Scale: 2, Center: 1}, 1 + 2*(-3-4+2)},
	} {
		if got := test.k.Covariance(x, y); math.Abs(got-test.want) > 1e-14 {
			t.Errorf("Case %s: got %v, want %v", test.name, got, test.want)
		}
		assert.InDelta(t, test.k.Covariance(y, x), test.k.Covariance(x, y), 1e-15, "Case %s not symmetric", test.name)
	}
	assert.Panics(t, func() { Matern{P: 3}.Covariance(x, y) })
}

func TestStandardizer(t *testing.T) {
	data := mat.NewDense(3, 2, []float64{1, 5, 2, 5, 3, 5})
	s := NewStandardizer(data)
	assert.Equal(t, []float64{2, 5}, s.Mean)
	assert.Equal(t, []float64{1, 1}, s.Std)
	s.Standardize(data)
	assert.Equal(t, []float64{-1, 0}, data.RawRowView(0))
	assert.Equal(t, 7.0, s.destandardize(0, 5))
}

func TestNearestPoint(t *testing.T) {
	x := mat.NewDense(5, 2, []float64{0, 0, 1, 0, 0, 1, 1, 1, 5, 5})
	build := func(c comm.Comm) sampler.Sampler { return sampler.NewMatrix(x, c) }
	f := func(x []float64) float64 { return 10*x[0] + x[1] }
	for _, m := range trainOn(t, 3, NearestPointConfig{}, build, f) {
		assert.Equal(t, 11.0, m.Evaluate([]float64{0.9, 1.2}))
		assert.Equal(t, 55.0, m.Evaluate([]float64{100, 100}))
		assert.Equal(t, 0.0, m.Evaluate([]float64{-1, 0.1}))
		assert.Equal(t, 5, m.DOF())
	}
}
