// Package fold implements the train/test partitions used for cross validation.
//
// A fold is given by the rows held out of training, expressed as (start,
// count) ranges of global sampler rows. The held-out rows of a fold are the
// rows used to score the model trained on the others.
package fold

import (
	"golang.org/x/exp/rand"

	"github.com/btracey/surrogate/errs"
	"github.com/btracey/surrogate/sampler"
)

// Splitter generates the folds of a cross validation.
type Splitter interface {
	// NumSets returns the number of folds.
	NumSets() int
	// TestIndices returns the first row of each held-out range of fold i.
	TestIndices(i int) []int
	// TestNumRow returns the number of rows of each held-out range of fold i.
	TestNumRow(i int) []int
}

// KFold partitions the rows into K blocks, each held out once.
type KFold struct {
	numRows int
	shuffle bool
	index   []int // first position of each block
	nrow    []int // size of each block
	perm    []int // row at each position when shuffled
}

var _ Splitter = (*KFold)(nil)

// NewKFold returns a K-fold splitter of numRows rows. Blocks have
// numRows/k rows, with the remainder given one each to the last blocks. If
// shuffle is true the rows are first permuted with a Fisher-Yates shuffle
// seeded by seed.
func NewKFold(numRows, k int, shuffle bool, seed uint64) (*KFold, error) {
	if k < 2 {
		return nil, errs.Mismatch("KFold", "num_folds", "number of folds must be at least 2", k, 2)
	}
	if k > numRows {
		return nil, errs.Mismatch("KFold", "num_folds", "number of folds cannot be greater than number of rows", k, numRows)
	}
	kf := &KFold{
		numRows: numRows,
		shuffle: shuffle,
		index:   make([]int, k),
		nrow:    make([]int, k),
	}
	for i := range kf.nrow {
		kf.nrow[i] = numRows / k
	}
	for i := k - numRows%k; i < k; i++ {
		kf.nrow[i]++
	}
	for i := 1; i < k; i++ {
		kf.index[i] = kf.index[i-1] + kf.nrow[i-1]
	}
	if shuffle {
		kf.perm = make([]int, numRows)
		for i := range kf.perm {
			kf.perm[i] = i
		}
		rnd := rand.New(rand.NewSource(seed))
		for i := 0; i < numRows-1; i++ {
			j := i + rnd.Intn(numRows-i)
			kf.perm[i], kf.perm[j] = kf.perm[j], kf.perm[i]
		}
	}
	return kf, nil
}

// ShuffleFor reports whether the rows of s need shuffling before folding.
// Rows of deterministic grid samplers are ordered, so contiguous blocks of
// them would be correlated.
func ShuffleFor(s sampler.Sampler) bool {
	return s.Sorted()
}

func (kf *KFold) NumSets() int   { return len(kf.nrow) }
func (kf *KFold) Shuffled() bool { return kf.shuffle }

func (kf *KFold) TestIndices(i int) []int {
	if kf.shuffle {
		return append([]int(nil), kf.perm[kf.index[i]:kf.index[i]+kf.nrow[i]]...)
	}
	return []int{kf.index[i]}
}

func (kf *KFold) TestNumRow(i int) []int {
	if kf.shuffle {
		n := make([]int, kf.nrow[i])
		for j := range n {
			n[j] = 1
		}
		return n
	}
	return []int{kf.nrow[i]}
}

// LeaveOneOut holds out every row once. When the model trained on all rows
// has a closed-form leave-one-out residual no retraining is needed, and the
// splitter has no folds.
type LeaveOneOut struct {
	numRows int
	retrain bool
}

var _ Splitter = (*LeaveOneOut)(nil)

// NewLeaveOneOut returns a leave-one-out splitter of numRows rows.
func NewLeaveOneOut(numRows int, retrain bool) *LeaveOneOut {
	if numRows < 0 {
		panic("fold: negative number of rows")
	}
	return &LeaveOneOut{numRows: numRows, retrain: retrain}
}

// NumRows returns the number of rows left out one at a time.
func (l *LeaveOneOut) NumRows() int { return l.numRows }

// Retrain reports whether a model is trained for every held-out row.
func (l *LeaveOneOut) Retrain() bool { return l.retrain }

// ClosedForm reports whether the leave-one-out error is computed from the
// leverage of a single fit.
func (l *LeaveOneOut) ClosedForm() bool { return !l.retrain }

func (l *LeaveOneOut) NumSets() int {
	if l.retrain {
		return l.numRows
	}
	return 0
}

func (l *LeaveOneOut) TestIndices(i int) []int {
	if !l.retrain {
		return nil
	}
	return []int{i}
}

func (l *LeaveOneOut) TestNumRow(i int) []int {
	if !l.retrain {
		return nil
	}
	return []int{1}
}
