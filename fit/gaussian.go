package fit

import (
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/btracey/surrogate"
	"github.com/btracey/surrogate/errs"
	"github.com/btracey/surrogate/trainer"
)

// GaussianProcessConfig configures a Gaussian process fit with a fixed
// covariance kernel. NoiseVariance is added to the diagonal of the training
// covariance matrix.
type GaussianProcessConfig struct {
	Covariance        Kernel
	NoiseVariance     float64
	StandardizeParams bool // center and scale the parameters before fitting
	StandardizeData   bool // center and scale the results before fitting
}

// DefaultGaussianProcessConfig returns a configuration with kernel k that
// standardizes both parameters and data.
func DefaultGaussianProcessConfig(k Kernel) GaussianProcessConfig {
	return GaussianProcessConfig{
		Covariance:        k,
		StandardizeParams: true,
		StandardizeData:   true,
	}
}

var _ surrogate.Fitter = GaussianProcessConfig{}

func (cfg GaussianProcessConfig) LeverageForm() surrogate.LeverageForm {
	return surrogate.NoLeverage
}

func (cfg GaussianProcessConfig) Train(t *trainer.Trainer) (surrogate.Model, error) {
	m, err := cfg.TrainGaussianProcess(t)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// TrainGaussianProcess gathers all training points on every worker and
// factors the covariance matrix.
func (cfg GaussianProcessConfig) TrainGaussianProcess(t *trainer.Trainer) (*GaussianProcess, error) {
	if cfg.Covariance == nil {
		return nil, errs.Config("GaussianProcess", "covariance_function", "no covariance function given")
	}
	if cfg.NoiseVariance < 0 {
		return nil, errs.Mismatch("GaussianProcess", "noise_variance", "noise variance must be non-negative", cfg.NoiseVariance, 0)
	}
	if t.NumPoints() == 0 {
		return nil, errs.Config("GaussianProcess", "sampler", "no training points")
	}
	h := &gaussianHooks{cfg: cfg}
	if err := t.Execute(h); err != nil {
		return nil, err
	}
	return h.model, nil
}

type gaussianHooks struct {
	cfg    GaussianProcessConfig
	params *mat.Dense
	data   []float64
	model  *GaussianProcess
}

func (h *gaussianHooks) PreTrain(t *trainer.Trainer) error {
	h.params = mat.NewDense(t.NumPoints(), t.NumParameters(), nil)
	h.data = make([]float64, t.NumPoints())
	return nil
}

func (h *gaussianHooks) Train(p trainer.Point) {
	h.params.SetRow(p.P, p.Data)
	h.data[p.P] = p.Value
}

func (h *gaussianHooks) PostTrain(t *trainer.Trainer) error {
	c := t.Comm()
	if err := c.SumDense(h.params); err != nil {
		return err
	}
	if err := c.SumFloats(h.data); err != nil {
		return err
	}

	n, dim := h.params.Dims()
	paramStd := IdentityStandardizer(dim)
	if h.cfg.StandardizeParams {
		paramStd = NewStandardizer(h.params)
	}
	paramStd.Standardize(h.params)

	dataStd := IdentityStandardizer(1)
	if h.cfg.StandardizeData {
		dataStd = NewStandardizer(mat.NewDense(n, 1, h.data))
	}
	y := mat.NewVecDense(n, nil)
	for i, v := range h.data {
		y.SetVec(i, dataStd.standardize(0, v))
	}

	k := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		xi := h.params.RawRowView(i)
		for j := i; j < n; j++ {
			v := h.cfg.Covariance.Covariance(xi, h.params.RawRowView(j))
			if i == j {
				v += h.cfg.NoiseVariance
			}
			k.SetSym(i, j, v)
		}
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(k); !ok {
		return fmt.Errorf("fit: gaussian process covariance: %w", errs.ErrNotPositiveDefinite)
	}
	alpha := mat.NewVecDense(n, nil)
	if err := chol.SolveVecTo(alpha, y); err != nil {
		return fmt.Errorf("fit: gaussian process solve: %w", err)
	}

	h.model = &GaussianProcess{
		kernel:   h.cfg.Covariance,
		params:   h.params,
		chol:     &chol,
		alpha:    alpha,
		paramStd: paramStd,
		dataStd:  dataStd,
	}
	t.Logger().Debug("trained gaussian process",
		zap.Int("points", n),
		zap.Float64("condition", chol.Cond()),
	)
	return nil
}

// GaussianProcess is a trained Gaussian process. Predictions are the
// posterior mean.
type GaussianProcess struct {
	kernel   Kernel
	params   *mat.Dense // standardized training parameters
	chol     *mat.Cholesky
	alpha    *mat.VecDense
	paramStd Standardizer
	dataStd  Standardizer
}

var _ surrogate.Model = (*GaussianProcess)(nil)

func (m *GaussianProcess) Evaluate(x []float64) float64 {
	mean, _ := m.evaluate(x, false)
	return mean
}

// EvaluateStd returns the posterior mean and standard deviation at x.
func (m *GaussianProcess) EvaluateStd(x []float64) (mean, std float64) {
	return m.evaluate(x, true)
}

func (m *GaussianProcess) evaluate(x []float64, withStd bool) (mean, std float64) {
	_, dim := m.params.Dims()
	if len(x) != dim {
		panic("fit: length mismatch")
	}
	xs := make([]float64, dim)
	for d, v := range x {
		xs[d] = m.paramStd.standardize(d, v)
	}
	n := m.alpha.Len()
	kstar := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		kstar.SetVec(i, m.kernel.Covariance(xs, m.params.RawRowView(i)))
	}
	mean = m.dataStd.destandardize(0, mat.Dot(kstar, m.alpha))
	if !withStd {
		return mean, 0
	}
	v := mat.NewVecDense(n, nil)
	if err := m.chol.SolveVecTo(v, kstar); err != nil {
		panic(err)
	}
	variance := m.kernel.Covariance(xs, xs) - mat.Dot(kstar, v)
	if variance < 0 {
		variance = 0
	}
	return mean, math.Sqrt(variance) * m.dataStd.Std[0]
}

func (m *GaussianProcess) NumParameters() int {
	_, dim := m.params.Dims()
	return dim
}

// DOF returns the number of training points.
func (m *GaussianProcess) DOF() int { return m.alpha.Len() }

// Standardizer centers and scales the columns of a data set.
type Standardizer struct {
	Mean []float64
	Std  []float64
}

// NewStandardizer returns the standardizer of the columns of data. Columns
// with zero spread are only centered.
func NewStandardizer(data mat.Matrix) Standardizer {
	_, c := data.Dims()
	s := Standardizer{Mean: make([]float64, c), Std: make([]float64, c)}
	for j := 0; j < c; j++ {
		col := mat.Col(nil, j, data)
		s.Mean[j], s.Std[j] = stat.MeanStdDev(col, nil)
		if s.Std[j] == 0 || math.IsNaN(s.Std[j]) {
			s.Std[j] = 1
		}
	}
	return s
}

// IdentityStandardizer returns a standardizer of n columns that does not
// change the data.
func IdentityStandardizer(n int) Standardizer {
	s := Standardizer{Mean: make([]float64, n), Std: make([]float64, n)}
	for i := range s.Std {
		s.Std[i] = 1
	}
	return s
}

// Standardize standardizes the columns of data in place.
func (s Standardizer) Standardize(data *mat.Dense) {
	r, c := data.Dims()
	if c != len(s.Mean) {
		panic("fit: standardizer dimension mismatch")
	}
	for i := 0; i < r; i++ {
		row := data.RawRowView(i)
		for j := range row {
			row[j] = s.standardize(j, row[j])
		}
	}
}

func (s Standardizer) standardize(j int, v float64) float64 {
	return (v - s.Mean[j]) / s.Std[j]
}

func (s Standardizer) destandardize(j int, v float64) float64 {
	return v*s.Std[j] + s.Mean[j]
}
