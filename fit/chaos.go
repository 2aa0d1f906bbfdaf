// Package fit implements the surrogate training algorithms.
package fit

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/btracey/surrogate"
	"github.com/btracey/surrogate/distribution"
	"github.com/btracey/surrogate/errs"
	"github.com/btracey/surrogate/multiindex"
	"github.com/btracey/surrogate/polyquad"
	"github.com/btracey/surrogate/sampler"
	"github.com/btracey/surrogate/trainer"
)

// PolynomialChaosConfig configures a polynomial chaos expansion. The terms
// are the products of the orthogonal polynomials of each distribution whose
// orders sum to less than Order.
type PolynomialChaosConfig struct {
	Order         int
	Distributions []distribution.Distribution
}

var _ surrogate.Fitter = PolynomialChaosConfig{}

func (cfg PolynomialChaosConfig) LeverageForm() surrogate.LeverageForm {
	return surrogate.Projection
}

func (cfg PolynomialChaosConfig) Train(t *trainer.Trainer) (surrogate.Model, error) {
	m, err := cfg.TrainChaos(t)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// TrainChaos computes the expansion coefficients by projection. If the
// sampler carries quadrature weights the projection integrals are computed
// with them; otherwise they are Monte Carlo averages over the points.
func (cfg PolynomialChaosConfig) TrainChaos(t *trainer.Trainer) (*PolynomialChaos, error) {
	if cfg.Order < 1 {
		return nil, errs.Mismatch("PolynomialChaos", "order", "order must be positive", cfg.Order, 1)
	}
	if len(cfg.Distributions) != t.NumParameters() {
		return nil, errs.Mismatch("PolynomialChaos", "distributions", "number of distributions does not match the sampler columns", len(cfg.Distributions), t.NumParameters())
	}
	poly := make([]polyquad.Polynomial, len(cfg.Distributions))
	for i, d := range cfg.Distributions {
		p, err := polyquad.NewPolynomial(d)
		if err != nil {
			return nil, err
		}
		poly[i] = p
	}
	weighter, _ := t.Sampler().(sampler.Weighter)

	h := &chaosHooks{
		model: &PolynomialChaos{
			order: cfg.Order,
			tuple: multiindex.Generate(len(poly), cfg.Order),
			poly:  poly,
		},
		weighter: weighter,
	}
	if err := t.Execute(h); err != nil {
		return nil, err
	}
	return h.model, nil
}

type chaosHooks struct {
	model    *PolynomialChaos
	weighter sampler.Weighter
	numPts   float64
	hat      []float64
	polyVal  [][]float64
}

func (h *chaosHooks) PreTrain(t *trainer.Trainer) error {
	m := h.model
	m.coeff = make([]float64, len(m.tuple))
	h.hat = make([]float64, t.NumLocalPoints())
	h.numPts = float64(t.NumPoints())
	h.polyVal = make([][]float64, len(m.poly))
	for d := range h.polyVal {
		h.polyVal[d] = make([]float64, m.order)
	}
	return nil
}

func (h *chaosHooks) Train(p trainer.Point) {
	m := h.model
	for d, poly := range m.poly {
		for i := range h.polyVal[d] {
			h.polyVal[d][i] = poly.Compute(i, p.Data[d], true)
		}
	}
	w := 1.0
	if h.weighter != nil {
		w = h.weighter.QuadratureWeight(p.Row)
	}
	for i, tup := range m.tuple {
		val := 1.0
		valn := 1.0
		for d, k := range tup {
			val *= h.polyVal[d][k]
			valn *= h.polyVal[d][k] * m.poly[d].InnerProduct(k)
		}
		h.hat[p.LocalP] += valn * val
		m.coeff[i] += val * w * p.Value
	}
	if h.weighter != nil {
		h.hat[p.LocalP] *= w
	} else {
		h.hat[p.LocalP] /= h.numPts
	}
}

func (h *chaosHooks) PostTrain(t *trainer.Trainer) error {
	c := t.Comm()
	m := h.model
	if err := c.SumFloats(m.coeff); err != nil {
		return err
	}
	if h.weighter == nil {
		floats.Scale(1/h.numPts, m.coeff)
	}
	lev, err := c.AllGather(h.hat)
	if err != nil {
		return err
	}
	m.leverage = lev
	t.Logger().Debug("trained polynomial chaos")
	return nil
}

// PolynomialChaos is a trained polynomial chaos expansion.
type PolynomialChaos struct {
	order    int
	tuple    [][]int
	poly     []polyquad.Polynomial
	coeff    []float64
	leverage []float64
}

var (
	_ surrogate.Model     = (*PolynomialChaos)(nil)
	_ surrogate.Leverager = (*PolynomialChaos)(nil)
)

func (m *PolynomialChaos) Evaluate(x []float64) float64 {
	if len(x) != len(m.poly) {
		panic("fit: length mismatch")
	}
	vals := make([][]float64, len(m.poly))
	for d, poly := range m.poly {
		vals[d] = make([]float64, m.order)
		for i := range vals[d] {
			vals[d][i] = poly.Compute(i, x[d], false)
		}
	}
	var sum float64
	for i, tup := range m.tuple {
		v := m.coeff[i]
		for d, k := range tup {
			v *= vals[d][k]
		}
		sum += v
	}
	return sum
}

func (m *PolynomialChaos) NumParameters() int { return len(m.poly) }
func (m *PolynomialChaos) DOF() int           { return len(m.coeff) }

// Leverage returns the leverage of global training point p.
func (m *PolynomialChaos) Leverage(p int) float64 { return m.leverage[p] }

// Coefficients returns the expansion coefficients, ordered as Tuples.
func (m *PolynomialChaos) Coefficients() []float64 {
	return append([]float64(nil), m.coeff...)
}

// Tuples returns the polynomial orders of each term.
func (m *PolynomialChaos) Tuples() [][]int { return m.tuple }

// Mean returns the expected value of the expansion under the input
// distributions, the coefficient of the constant term.
func (m *PolynomialChaos) Mean() float64 {
	for i, tup := range m.tuple {
		if isZero(tup) {
			return m.coeff[i]
		}
	}
	panic("fit: no constant term")
}

// StandardDeviation returns the standard deviation of the expansion under the
// input distributions.
func (m *PolynomialChaos) StandardDeviation() float64 {
	var v float64
	for i, tup := range m.tuple {
		if isZero(tup) {
			continue
		}
		norm := 1.0
		for d, k := range tup {
			norm *= m.poly[d].InnerProduct(k)
		}
		v += m.coeff[i] * m.coeff[i] * norm
	}
	return math.Sqrt(v)
}

func isZero(t []int) bool {
	for _, v := range t {
		if v != 0 {
			return false
		}
	}
	return true
}
