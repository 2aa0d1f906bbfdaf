package sampler

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"github.com/btracey/surrogate/comm"
	"github.com/btracey/surrogate/errs"
)

// Split is a sampler whose rows are rows of another sampler, selected by a
// list of split indices that may contain repeats. The base sampler and the
// split are partitioned independently, so SetUp gathers the selected rows
// across workers.
type Split struct {
	Base
	base    Sampler
	comm    comm.Comm
	name    string
	indices func() []int

	split []int
	rows  [][]float64 // local rows, valid after SetUp
}

func (s *Split) initSplit(name string, base Sampler, rows int, sorted bool, c comm.Comm, indices func() []int) {
	if c == nil {
		c = comm.Serial{}
	}
	s.name = name
	s.base = base
	s.comm = c
	s.indices = indices
	s.init(c, rows, base.NumCols(), sorted, func(row int, dst []float64) {
		if s.rows == nil {
			panic("sampler: split sampler used before SetUp")
		}
		copy(dst, s.rows[row-s.begin])
	})
}

// SplitIndices returns the base rows selected by the last SetUp.
func (s *Split) SplitIndices() []int {
	return s.split
}

// SetUp recomputes the split indices and gathers the selected rows. Every
// worker reads each of its base rows once.
func (s *Split) SetUp() error {
	split := s.indices()
	if len(split) != s.numRows {
		return errs.Mismatch(s.name, "num_rows", "inconsistent number of rows and split indices", len(split), s.numRows)
	}
	positions := make(map[int][]int)
	for k, idx := range split {
		if idx < 0 || idx >= s.base.NumRows() {
			return errs.Mismatch(s.name, "num_rows", "split index outside of the base sampler", idx, s.base.NumRows())
		}
		positions[idx] = append(positions[idx], k)
	}

	global := mat.NewDense(s.numRows, s.numCols, nil)
	for p := s.base.LocalRowBegin(); p < s.base.LocalRowEnd(); p++ {
		data := s.base.NextLocalRow()
		for _, k := range positions[p] {
			global.SetRow(k, data)
		}
	}
	if err := s.comm.SumDense(global); err != nil {
		return err
	}

	rows := make([][]float64, s.end-s.begin)
	for i := range rows {
		rows[i] = mat.Row(nil, s.begin+i, global)
	}
	s.split = split
	s.rows = rows
	s.next = s.begin
	return nil
}

// UniformSplit selects contiguous ranges of rows of a base sampler.
type UniformSplit struct {
	Split
}

// NewUniformSplit returns the concatenation of the base rows
// [start[i], start[i]+count[i]). Indices are zero based.
func NewUniformSplit(base Sampler, start, count []int, c comm.Comm) (*UniformSplit, error) {
	if len(start) != len(count) {
		return nil, errs.Mismatch("UniformSplit", "num_rows", "number of start rows and counts must match", len(count), len(start))
	}
	var rows int
	for i := range start {
		if start[i] < 0 || count[i] <= 0 {
			return nil, errs.Config("UniformSplit", "num_rows", "start must be non-negative and count positive")
		}
		if start[i]+count[i] > base.NumRows() {
			return nil, errs.Mismatch("UniformSplit", "num_rows", "range exceeds the rows of the base sampler", start[i]+count[i], base.NumRows())
		}
		rows += count[i]
	}
	split := make([]int, 0, rows)
	for i := range start {
		for j := start[i]; j < start[i]+count[i]; j++ {
			split = append(split, j)
		}
	}
	u := &UniformSplit{}
	u.initSplit("UniformSplit", base, rows, base.Sorted(), c, func() []int { return split })
	return u, nil
}

// RandomSplit selects uniformly random rows of a base sampler, with or
// without replacement. The selection changes on every SetUp and is the same
// on every worker.
type RandomSplit struct {
	Split
	seed    uint64
	step    uint64
	replace bool
}

// NewRandomSplit returns a sampler of rows random rows of base.
func NewRandomSplit(base Sampler, rows int, replace bool, seed uint64, c comm.Comm) (*RandomSplit, error) {
	if rows <= 0 {
		return nil, errs.Config("RandomSplit", "num_rows", "number of rows must be positive")
	}
	if !replace && rows > base.NumRows() {
		return nil, errs.Mismatch("RandomSplit", "num_rows", "more rows requested than the base sampler has without repeats", rows, base.NumRows())
	}
	r := &RandomSplit{seed: seed, replace: replace}
	r.initSplit("RandomSplit", base, rows, false, c, r.recompute)
	return r, nil
}

func (r *RandomSplit) recompute() []int {
	rnd := rand.New(rand.NewSource(rowSeed(r.seed, r.step)))
	r.step++
	n := r.base.NumRows()
	split := make([]int, r.numRows)
	if r.replace {
		for i := range split {
			split[i] = rnd.Intn(n)
		}
		return split
	}
	pool := make([]int, n)
	for i := range pool {
		pool[i] = i
	}
	for i := range split {
		j := rnd.Intn(len(pool))
		split[i] = pool[j]
		pool = append(pool[:j], pool[j+1:]...)
	}
	return split
}
