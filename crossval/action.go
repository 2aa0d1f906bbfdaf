// Package crossval estimates the out-of-sample error of a surrogate by cross
// validation.
//
// An Action clones a base trainer configuration once per fold of a
// fold.Splitter, with the held-out rows of the fold skipped, trains one
// surrogate per fold and scores each on its held-out rows. Leave-one-out of
// a surrogate with leverage skips the retraining and computes the error from
// a single fit.
//
// The Action is built in phases that must be called in order:
//  AddTrainers, AddSurrogates, AddPostprocessor, CheckIntegrity, Run
// Every worker of the trainer's comm runs the same sequence.
package crossval

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/btracey/surrogate"
	"github.com/btracey/surrogate/comm"
	"github.com/btracey/surrogate/errs"
	"github.com/btracey/surrogate/fold"
	"github.com/btracey/surrogate/trainer"
)

// ErrPhase is returned when a phase of an Action is run out of order.
var ErrPhase = errors.New("crossval: phase out of order")

// Config configures a cross validation.
type Config struct {
	// Trainer is the base trainer configuration. It must not skip rows.
	Trainer trainer.Config
	// Fitter trains the surrogate of each fold.
	Fitter   surrogate.Fitter
	Splitter fold.Splitter
	// NumRows is the expected number of sampler rows.
	NumRows int
	Logger  *zap.Logger
}

// closedForm is implemented by splitters that may replace retraining by the
// leverage of a single fit.
type closedForm interface {
	ClosedForm() bool
	NumRows() int
}

// NewLeaveOneOut returns a leave-one-out splitter for f. Retraining is used
// when forced or when f has no closed-form leave-one-out residual.
func NewLeaveOneOut(numRows int, f surrogate.Fitter, forceRetrain bool) *fold.LeaveOneOut {
	return fold.NewLeaveOneOut(numRows, forceRetrain || f.LeverageForm() == surrogate.NoLeverage)
}

type phase int

const (
	created phase = iota
	trainersAdded
	surrogatesAdded
	postprocessorAdded
	checked
	done
)

func (p phase) String() string {
	switch p {
	case created:
		return "created"
	case trainersAdded:
		return "add_trainer"
	case surrogatesAdded:
		return "add_surrogate"
	case postprocessorAdded:
		return "add_postprocessor"
	case checked:
		return "check_integrity"
	case done:
		return "run"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Action is a cross validation of one surrogate.
type Action struct {
	cfg        Config
	logger     *zap.Logger
	closedForm bool
	phase      phase

	trainers   []*trainer.Trainer
	surrogates []*Surrogate
	post       Postprocessor
}

// New validates cfg and returns an Action in its first phase.
func New(cfg Config) (*Action, error) {
	if cfg.Trainer.Sampler == nil {
		return nil, errs.Config("crossval", "trainer", "trainer has no sampler")
	}
	if len(cfg.Trainer.SkipIndex) > 0 || len(cfg.Trainer.NumSkip) > 0 {
		return nil, errs.Config("crossval", "trainer", "trainer has skip_index/num_skip set, which is not allowed when performing cross validation")
	}
	if cfg.Fitter == nil {
		return nil, errs.Config("crossval", "surrogate", "no surrogate given")
	}
	if cfg.Splitter == nil {
		return nil, errs.Config("crossval", "splitter", "no splitter given")
	}
	if cfg.Trainer.Comm == nil {
		cfg.Trainer.Comm = comm.Serial{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Action{cfg: cfg, logger: logger.Named("crossval")}
	if cf, ok := cfg.Splitter.(closedForm); ok && cf.ClosedForm() {
		if cfg.Fitter.LeverageForm() == surrogate.NoLeverage {
			// Without leverage every held-out row is retrained.
			a.logger.Debug("no closed-form leave-one-out residual, retraining",
				zap.String("surrogate", fmt.Sprintf("%T", cfg.Fitter)),
			)
			a.cfg.Splitter = fold.NewLeaveOneOut(cf.NumRows(), true)
		} else {
			a.closedForm = true
		}
	}
	return a, nil
}

// ClosedForm reports whether the error is computed from the leverage of a
// single fit instead of retraining.
func (a *Action) ClosedForm() bool { return a.closedForm }

// Surrogates returns the surrogate of each fold. With a closed form there is
// a single surrogate trained on all rows.
func (a *Action) Surrogates() []*Surrogate { return a.surrogates }

func (a *Action) enter(p phase) error {
	if a.phase != p-1 {
		return fmt.Errorf("%w: %v after %v", ErrPhase, p, a.phase)
	}
	return nil
}

func (a *Action) leave(p phase) {
	a.phase = p
	a.logger.Debug("phase complete", zap.Stringer("phase", p), zap.Int("folds", len(a.trainers)))
}

// AddTrainers builds one trainer per fold skipping its held-out rows.
func (a *Action) AddTrainers() error {
	if err := a.enter(trainersAdded); err != nil {
		return err
	}
	if a.closedForm {
		t, err := trainer.New(a.cfg.Trainer)
		if err != nil {
			return fmt.Errorf("crossval: trainer: %w", err)
		}
		a.trainers = []*trainer.Trainer{t}
		a.leave(trainersAdded)
		return nil
	}
	n := a.cfg.Splitter.NumSets()
	a.trainers = make([]*trainer.Trainer, n)
	for i := range a.trainers {
		cfg := a.cfg.Trainer
		cfg.SkipIndex = a.cfg.Splitter.TestIndices(i)
		cfg.NumSkip = a.cfg.Splitter.TestNumRow(i)
		t, err := trainer.New(cfg)
		if err != nil {
			return fmt.Errorf("crossval: fold %d trainer: %w", i, err)
		}
		a.trainers[i] = t
	}
	a.leave(trainersAdded)
	return nil
}

// AddSurrogates binds the fitter to the trainer of each fold.
func (a *Action) AddSurrogates() error {
	if err := a.enter(surrogatesAdded); err != nil {
		return err
	}
	a.surrogates = make([]*Surrogate, len(a.trainers))
	for i, t := range a.trainers {
		a.surrogates[i] = NewSurrogate(t, a.cfg.Fitter)
	}
	a.leave(surrogatesAdded)
	return nil
}

// AddPostprocessor builds the error computation over the surrogates.
func (a *Action) AddPostprocessor() error {
	if err := a.enter(postprocessorAdded); err != nil {
		return err
	}
	tc := a.cfg.Trainer
	var err error
	if a.closedForm {
		a.post, err = NewLinearLOO(tc.Sampler, tc.Results, a.surrogates[0], a.cfg.Fitter.LeverageForm(), tc.Comm)
	} else {
		n := len(a.surrogates)
		index := make([][]int, n)
		nrow := make([][]int, n)
		for i := range a.surrogates {
			index[i] = a.cfg.Splitter.TestIndices(i)
			nrow[i] = a.cfg.Splitter.TestNumRow(i)
		}
		a.post, err = NewRMSE(tc.Sampler, tc.Results, a.surrogates, index, nrow, tc.Comm)
	}
	if err != nil {
		return err
	}
	a.leave(postprocessorAdded)
	return nil
}

// CheckIntegrity verifies that the configured number of rows matches the
// sampler.
func (a *Action) CheckIntegrity() error {
	if err := a.enter(checked); err != nil {
		return err
	}
	if got, want := a.cfg.NumRows, a.cfg.Trainer.Sampler.NumRows(); got != want {
		return errs.Mismatch("crossval", "num_rows", "number of rows specified does not match number of rows in the sampler", got, want)
	}
	a.leave(checked)
	return nil
}

// Run trains every surrogate once and returns the cross-validated error.
func (a *Action) Run() (float64, error) {
	if err := a.enter(done); err != nil {
		return 0, err
	}
	for i, s := range a.surrogates {
		if err := s.Train(); err != nil {
			return 0, fmt.Errorf("crossval: fold %d: %w", i, err)
		}
	}
	v, err := a.post.Compute()
	if err != nil {
		return 0, err
	}
	a.leave(done)
	a.logger.Debug("cross validation", zap.Float64("rmse", v), zap.Bool("closedForm", a.closedForm))
	return v, nil
}

// Run builds and runs a cross validation with cfg.
func Run(cfg Config) (float64, error) {
	a, err := New(cfg)
	if err != nil {
		return 0, err
	}
	for _, step := range []func() error{a.AddTrainers, a.AddSurrogates, a.AddPostprocessor, a.CheckIntegrity} {
		if err := step(); err != nil {
			return 0, err
		}
	}
	return a.Run()
}
