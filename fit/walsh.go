package fit

import (
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/combin"

	"github.com/btracey/surrogate"
	"github.com/btracey/surrogate/errs"
	"github.com/btracey/surrogate/lsq"
	"github.com/btracey/surrogate/trainer"
)

// WalshConfig configures a Walsh fit of bit-string inputs, with every bit
// -1 or 1. The fit is a discrete Fourier transform of the data
//  f(x) ≈ β_0 + Σ_i β_i x_i + Σ_{i<j} β_ij x_i x_j + ...
// with interactions of up to Order bits. There are no x_i² terms since
// x_i² = 1 for bits.
type WalshConfig struct {
	Order int
}

var _ surrogate.Fitter = WalshConfig{}

func (cfg WalshConfig) LeverageForm() surrogate.LeverageForm {
	return surrogate.LeastSquares
}

func (cfg WalshConfig) Train(t *trainer.Trainer) (surrogate.Model, error) {
	m, err := cfg.TrainWalsh(t)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// TrainWalsh solves the least-squares fit of the Walsh coefficients.
func (cfg WalshConfig) TrainWalsh(t *trainer.Trainer) (*Walsh, error) {
	dim := t.NumParameters()
	if cfg.Order < 0 || cfg.Order > dim {
		return nil, errs.Mismatch("Walsh", "order", "order must be between zero and the number of bits", cfg.Order, dim)
	}
	h := &walshHooks{model: &Walsh{terms: walshTerms{order: cfg.Order, dim: dim}}}
	if err := t.Execute(h); err != nil {
		return nil, err
	}
	return h.model, nil
}

type walshHooks struct {
	model  *Walsh
	normal *lsq.Normal
	xFull  [][]float64
}

func (h *walshHooks) PreTrain(t *trainer.Trainer) error {
	n := h.model.terms.NumTerms(t.NumParameters())
	if t.NumPoints() <= n {
		return errs.Mismatch("Walsh", "order", "number of data points must be greater than the number of Walsh terms", t.NumPoints(), n)
	}
	h.normal = lsq.NewNormal(n)
	h.xFull = make([][]float64, t.NumLocalPoints())
	return nil
}

func (h *walshHooks) Train(p trainer.Point) {
	for _, b := range p.Data {
		if b != 1 && b != -1 {
			panic("fit: walsh input is not a bit")
		}
	}
	terms := make([]float64, h.normal.NumTerms())
	h.model.terms.Terms(terms, p.Data)
	h.normal.Add(terms, p.Value)
	h.xFull[p.LocalP] = terms
}

func (h *walshHooks) PostTrain(t *trainer.Trainer) error {
	if err := h.normal.Reduce(t.Comm()); err != nil {
		return err
	}
	sol, err := h.normal.Solve(0, t.Logger())
	if err != nil {
		return fmt.Errorf("fit: walsh: %w", err)
	}
	h.model.coeff = sol.Coeffs
	hat := make([]float64, len(h.xFull))
	for i, x := range h.xFull {
		hat[i] = sol.Leverage(x)
	}
	if h.model.leverage, err = t.Comm().AllGather(hat); err != nil {
		return err
	}
	t.Logger().Debug("trained walsh fit", zap.Int("order", h.model.terms.order), zap.Int("terms", len(sol.Coeffs)))
	return nil
}

// walshTerms is the lsq.Termer of the products of up to order distinct bits,
// in order of increasing interaction.
type walshTerms struct {
	order, dim int
}

var _ lsq.Termer = walshTerms{}

func (w walshTerms) NumTerms(dim int) int {
	var n int
	for i := 0; i <= w.order; i++ {
		n += combin.Binomial(dim, i)
	}
	return n
}

func (w walshTerms) Terms(terms, x []float64) {
	terms[0] = 1
	count := 1
	for order := 1; order <= w.order; order++ {
		idx := make([]int, order)
		cg := combin.NewCombinationGenerator(len(x), order)
		for cg.Next() {
			cg.Combination(idx)
			v := x[idx[0]]
			for _, i := range idx[1:] {
				v *= x[i]
			}
			terms[count] = v
			count++
		}
	}
	if count != len(terms) {
		panic("fit: walsh term count mismatch")
	}
}

// Walsh is a trained Walsh fit.
type Walsh struct {
	terms    walshTerms
	coeff    []float64
	leverage []float64
}

var (
	_ surrogate.Model     = (*Walsh)(nil)
	_ surrogate.Leverager = (*Walsh)(nil)
)

func (m *Walsh) Evaluate(x []float64) float64 {
	if len(x) != m.terms.dim {
		panic("fit: length mismatch")
	}
	terms := make([]float64, len(m.coeff))
	m.terms.Terms(terms, x)
	return floats.Dot(terms, m.coeff)
}

func (m *Walsh) NumParameters() int      { return m.terms.dim }
func (m *Walsh) DOF() int                { return len(m.coeff) }
func (m *Walsh) Leverage(p int) float64  { return m.leverage[p] }
func (m *Walsh) Coefficients() []float64 { return append([]float64(nil), m.coeff...) }

// Mean returns the expected value of the fit when every bit is independent
// and uniform over -1 and 1. Every interaction term has mean zero.
func (m *Walsh) Mean() float64 { return m.coeff[0] }
