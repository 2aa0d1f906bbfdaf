package fit

import (
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/btracey/surrogate"
	"github.com/btracey/surrogate/errs"
	"github.com/btracey/surrogate/lsq"
	"github.com/btracey/surrogate/multiindex"
	"github.com/btracey/surrogate/trainer"
)

// RegressionType selects the least-squares objective.
type RegressionType int

const (
	OLS   RegressionType = iota // ordinary least squares
	Ridge                       // least squares with a penalty on the coefficient norm
)

func (r RegressionType) String() string {
	switch r {
	case OLS:
		return "ols"
	case Ridge:
		return "ridge"
	}
	return fmt.Sprintf("RegressionType(%d)", int(r))
}

// PolynomialRegressionConfig configures a multivariate polynomial fit with
// all monomials of total degree up to MaxDegree. Penalty is only used by
// Ridge regression.
type PolynomialRegressionConfig struct {
	Type      RegressionType
	MaxDegree int
	Penalty   float64
}

var _ surrogate.Fitter = PolynomialRegressionConfig{}

func (cfg PolynomialRegressionConfig) LeverageForm() surrogate.LeverageForm {
	return surrogate.LeastSquares
}

func (cfg PolynomialRegressionConfig) Train(t *trainer.Trainer) (surrogate.Model, error) {
	m, err := cfg.TrainRegression(t)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// TrainRegression assembles and solves the normal equations of the fit.
func (cfg PolynomialRegressionConfig) TrainRegression(t *trainer.Trainer) (*PolynomialRegression, error) {
	if cfg.MaxDegree < 0 {
		return nil, errs.Mismatch("PolynomialRegression", "max_degree", "degree must be non-negative", cfg.MaxDegree, 0)
	}
	if cfg.Type != OLS && cfg.Type != Ridge {
		return nil, errs.Config("PolynomialRegression", "regression_type", "unknown regression type "+cfg.Type.String())
	}
	if cfg.Type == OLS && cfg.Penalty != 0 {
		t.Logger().Warn("penalty is not used for OLS regression", zap.Float64("penalty", cfg.Penalty))
	}
	h := &regressionHooks{
		cfg: cfg,
		model: &PolynomialRegression{
			powers: lsq.Powers(multiindex.Generate(t.NumParameters(), cfg.MaxDegree+1)),
		},
	}
	if err := t.Execute(h); err != nil {
		return nil, err
	}
	return h.model, nil
}

type regressionHooks struct {
	cfg    PolynomialRegressionConfig
	model  *PolynomialRegression
	normal *lsq.Normal
	xFull  [][]float64
}

func (h *regressionHooks) PreTrain(t *trainer.Trainer) error {
	n := len(h.model.powers)
	if t.NumPoints() <= n {
		return errs.Mismatch("PolynomialRegression", "max_degree", "number of data points must be greater than the number of polynomial terms", t.NumPoints(), n)
	}
	h.normal = lsq.NewNormal(n)
	h.xFull = make([][]float64, t.NumLocalPoints())
	return nil
}

func (h *regressionHooks) Train(p trainer.Point) {
	terms := make([]float64, len(h.model.powers))
	h.model.powers.Terms(terms, p.Data)
	h.normal.Add(terms, p.Value)
	h.xFull[p.LocalP] = terms
}

func (h *regressionHooks) PostTrain(t *trainer.Trainer) error {
	if err := h.normal.Reduce(t.Comm()); err != nil {
		return err
	}
	var penalty float64
	if h.cfg.Type == Ridge {
		penalty = h.cfg.Penalty
	}
	sol, err := h.normal.Solve(penalty, t.Logger())
	if err != nil {
		return fmt.Errorf("fit: polynomial regression: %w", err)
	}
	h.model.coeff = sol.Coeffs

	hat := make([]float64, len(h.xFull))
	for i, x := range h.xFull {
		hat[i] = sol.Leverage(x)
	}
	lev, err := t.Comm().AllGather(hat)
	if err != nil {
		return err
	}
	h.model.leverage = lev
	t.Logger().Debug("trained polynomial regression",
		zap.Stringer("type", h.cfg.Type),
		zap.Int("terms", len(h.model.powers)),
	)
	return nil
}

// PolynomialRegression is a trained polynomial fit.
type PolynomialRegression struct {
	powers   lsq.Powers
	coeff    []float64
	leverage []float64
}

var (
	_ surrogate.Model     = (*PolynomialRegression)(nil)
	_ surrogate.Leverager = (*PolynomialRegression)(nil)
)

func (m *PolynomialRegression) Evaluate(x []float64) float64 {
	terms := make([]float64, len(m.powers))
	m.powers.Terms(terms, x)
	return floats.Dot(terms, m.coeff)
}

func (m *PolynomialRegression) NumParameters() int { return len(m.powers[0]) }
func (m *PolynomialRegression) DOF() int           { return len(m.coeff) }

// Leverage returns the leverage of global training point p.
func (m *PolynomialRegression) Leverage(p int) float64 { return m.leverage[p] }

// Coefficients returns the coefficients of the monomials given by Powers.
func (m *PolynomialRegression) Coefficients() []float64 {
	return append([]float64(nil), m.coeff...)
}

// Powers returns the exponents of each monomial.
func (m *PolynomialRegression) Powers() [][]int { return m.powers }
