// Package trainer implements the loop that feeds the rows of a sampler and
// the matching results to a surrogate training algorithm.
//
// Every worker loops over its local sampler rows, skipping the rows listed in
// the skip ranges, and hands each remaining row to the Train hook. Training
// algorithms accumulate local contributions in Train and combine them across
// workers in PostTrain.
package trainer

import (
	"go.uber.org/zap"

	"github.com/btracey/surrogate/comm"
	"github.com/btracey/surrogate/errs"
	"github.com/btracey/surrogate/rowset"
	"github.com/btracey/surrogate/sampler"
)

// Results is a named sequence of scalar results aligned with the rows of a
// sampler. If Distributed is true each worker holds the values of its local
// rows only; otherwise every worker holds all values.
type Results struct {
	Name        string
	Values      []float64
	Distributed bool
}

// Config configures a Trainer.
type Config struct {
	Sampler sampler.Sampler
	Results Results

	// SkipIndex and NumSkip list ranges of global rows, starting at
	// SkipIndex[i] and NumSkip[i] long, that are excluded from training.
	SkipIndex []int
	NumSkip   []int

	Comm   comm.Comm   // nil means comm.Serial
	Logger *zap.Logger // nil means no logging
}

// Point is a training row handed to the Train hook.
type Point struct {
	Row    int       // global sampler row
	P      int       // global index among the training points
	LocalP int       // index among the local training points
	Data   []float64 // sampler row
	Value  float64   // result of the row
}

// Hooks are the steps of a training algorithm.
type Hooks interface {
	// PreTrain is called before the loop over local rows.
	PreTrain(t *Trainer) error
	// Train is called once for every local training point in order.
	Train(p Point)
	// PostTrain is called after the loop. It is where contributions are
	// combined across workers.
	PostTrain(t *Trainer) error
}

// NopHooks implements Hooks with methods that do nothing. It is meant to be
// embedded.
type NopHooks struct{}

func (NopHooks) PreTrain(*Trainer) error  { return nil }
func (NopHooks) Train(Point)              {}
func (NopHooks) PostTrain(*Trainer) error { return nil }

// Trainer runs the training loop over a sampler.
type Trainer struct {
	cfg    Config
	skip   *rowset.Set
	logger *zap.Logger

	numPoints      int
	numLocalPoints int
	firstPoint     int
}

// New validates cfg and returns a Trainer. The skip ranges are fixed at
// construction.
func New(cfg Config) (*Trainer, error) {
	if cfg.Sampler == nil {
		return nil, errs.Config("trainer", "sampler", "no sampler given")
	}
	if len(cfg.SkipIndex) != len(cfg.NumSkip) {
		return nil, errs.Mismatch("trainer", "num_skip", "number of entries in skip_index and num_skip must match", len(cfg.NumSkip), len(cfg.SkipIndex))
	}
	for i := range cfg.SkipIndex {
		if cfg.SkipIndex[i] < 0 || cfg.NumSkip[i] < 0 {
			return nil, errs.Config("trainer", "skip_index", "skip ranges must be non-negative")
		}
	}
	if cfg.Comm == nil {
		cfg.Comm = comm.Serial{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Trainer{
		cfg:    cfg,
		skip:   rowset.FromRanges(cfg.SkipIndex, cfg.NumSkip),
		logger: logger.Named("trainer"),
	}
	s := cfg.Sampler
	if t.skip.Len() > 0 && t.skip.Rows()[t.skip.Len()-1] >= s.NumRows() {
		return nil, errs.Mismatch("trainer", "skip_index", "skip range beyond the sampler rows", t.skip.Rows()[t.skip.Len()-1], s.NumRows())
	}
	localSkips := t.skip.CountRange(s.LocalRowBegin(), s.LocalRowEnd())
	t.numPoints = s.NumRows() - t.skip.Len()
	t.numLocalPoints = s.NumLocalRows() - localSkips
	t.firstPoint = s.LocalRowBegin() - t.skip.CountRange(0, s.LocalRowBegin())
	return t, nil
}

// WithSkip returns a Trainer with the configuration of t and the given skip
// ranges instead of its own.
func (t *Trainer) WithSkip(skipIndex, numSkip []int) (*Trainer, error) {
	cfg := t.cfg
	cfg.SkipIndex = skipIndex
	cfg.NumSkip = numSkip
	return New(cfg)
}

func (t *Trainer) Sampler() sampler.Sampler { return t.cfg.Sampler }
func (t *Trainer) Results() Results         { return t.cfg.Results }
func (t *Trainer) Comm() comm.Comm          { return t.cfg.Comm }
func (t *Trainer) Logger() *zap.Logger      { return t.logger }

// HasSkip reports whether any rows are skipped.
func (t *Trainer) HasSkip() bool { return t.skip.Len() > 0 }

// NumParameters returns the number of sampler columns.
func (t *Trainer) NumParameters() int { return t.cfg.Sampler.NumCols() }

// NumPoints returns the number of training points over all workers.
func (t *Trainer) NumPoints() int { return t.numPoints }

// NumLocalPoints returns the number of training points of this worker.
func (t *Trainer) NumLocalPoints() int { return t.numLocalPoints }

// FirstPoint returns the global point index of the first local point.
func (t *Trainer) FirstPoint() int { return t.firstPoint }

// Check verifies that the results are aligned with the sampler rows.
func (t *Trainer) Check() error {
	s := t.cfg.Sampler
	want := s.NumRows()
	if t.cfg.Results.Distributed {
		want = s.NumLocalRows()
	}
	if got := len(t.cfg.Results.Values); got != want {
		return errs.Mismatch("trainer", "results", "number of results "+t.cfg.Results.Name+" does not match the number of sampler rows", got, want)
	}
	return nil
}

// Execute runs the training loop with the given hooks.
func (t *Trainer) Execute(h Hooks) error {
	if err := t.Check(); err != nil {
		return err
	}
	t.logger.Debug("training",
		zap.Int("points", t.numPoints),
		zap.Int("localPoints", t.numLocalPoints),
		zap.Int("firstPoint", t.firstPoint),
	)
	if err := h.PreTrain(t); err != nil {
		return err
	}

	s := t.cfg.Sampler
	values := t.cfg.Results.Values
	offset := 0
	if t.cfg.Results.Distributed {
		offset = s.LocalRowBegin()
	}
	p := t.firstPoint
	localP := 0
	for row := s.LocalRowBegin(); row < s.LocalRowEnd(); row++ {
		data := s.NextLocalRow()
		val := values[row-offset]
		if t.skip.Contains(row) {
			continue
		}
		h.Train(Point{Row: row, P: p, LocalP: localP, Data: data, Value: val})
		p++
		localP++
	}
	if localP != t.numLocalPoints {
		panic("trainer: local point count mismatch")
	}
	return h.PostTrain(t)
}
