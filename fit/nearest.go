package fit

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/btracey/surrogate"
	"github.com/btracey/surrogate/errs"
	"github.com/btracey/surrogate/trainer"
)

// NearestPointConfig configures a surrogate that predicts the result of the
// closest training point.
type NearestPointConfig struct{}

var _ surrogate.Fitter = NearestPointConfig{}

func (NearestPointConfig) LeverageForm() surrogate.LeverageForm { return surrogate.NoLeverage }

func (cfg NearestPointConfig) Train(t *trainer.Trainer) (surrogate.Model, error) {
	m, err := cfg.TrainNearestPoint(t)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// TrainNearestPoint gathers all training points on every worker.
func (NearestPointConfig) TrainNearestPoint(t *trainer.Trainer) (*NearestPoint, error) {
	if t.NumPoints() == 0 {
		return nil, errs.Config("NearestPoint", "sampler", "no training points")
	}
	h := &nearestHooks{}
	if err := t.Execute(h); err != nil {
		return nil, err
	}
	return h.model, nil
}

type nearestHooks struct {
	cols  [][]float64 // one slice per parameter, then the values
	model *NearestPoint
}

func (h *nearestHooks) PreTrain(t *trainer.Trainer) error {
	h.cols = make([][]float64, t.NumParameters()+1)
	for i := range h.cols {
		h.cols[i] = make([]float64, t.NumLocalPoints())
	}
	return nil
}

func (h *nearestHooks) Train(p trainer.Point) {
	for d, v := range p.Data {
		h.cols[d][p.LocalP] = v
	}
	h.cols[len(p.Data)][p.LocalP] = p.Value
}

func (h *nearestHooks) PostTrain(t *trainer.Trainer) error {
	gathered := make([][]float64, len(h.cols))
	for i, col := range h.cols {
		g, err := t.Comm().AllGather(col)
		if err != nil {
			return err
		}
		gathered[i] = g
	}
	dim := len(gathered) - 1
	n := len(gathered[dim])
	points := make([][]float64, n)
	for p := range points {
		points[p] = make([]float64, dim)
		for d := 0; d < dim; d++ {
			points[p][d] = gathered[d][p]
		}
	}
	h.model = &NearestPoint{points: points, values: gathered[dim]}
	return nil
}

// NearestPoint is a trained nearest point surrogate.
type NearestPoint struct {
	points [][]float64
	values []float64
}

var _ surrogate.Model = (*NearestPoint)(nil)

// Evaluate returns the result of the training point closest to x in
// Euclidean distance. Ties go to the earlier point.
func (m *NearestPoint) Evaluate(x []float64) float64 {
	best := math.Inf(1)
	var idx int
	for i, p := range m.points {
		if d := floats.Distance(x, p, 2); d < best {
			best = d
			idx = i
		}
	}
	return m.values[idx]
}

func (m *NearestPoint) NumParameters() int { return len(m.points[0]) }

// DOF returns the number of training points.
func (m *NearestPoint) DOF() int { return len(m.points) }
