// Package sampler provides row-partitioned parameter matrices.
//
// A Sampler is a logical NumRows × NumCols matrix. Each worker of a comm
// group owns the contiguous rows [LocalRowBegin, LocalRowEnd) and reads them
// in order through NextLocalRow. The value at (row, col) is a pure function
// of the row and column, so every worker agrees on the matrix no matter how
// it is partitioned.
package sampler

import (
	"github.com/btracey/surrogate/comm"
)

// Sampler is a row-partitioned parameter matrix.
type Sampler interface {
	NumRows() int
	NumCols() int
	LocalRowBegin() int
	LocalRowEnd() int
	NumLocalRows() int

	// NextLocalRow returns the next local row. Over one pass it must be
	// called exactly once per local row; the rows are returned in increasing
	// order and the cursor returns to the first local row after the last.
	// The returned slice is owned by the caller.
	NextLocalRow() []float64

	// Sorted reports whether the row order follows a deterministic pattern,
	// such as a grid, rather than being random.
	Sorted() bool
}

// Weighter is implemented by samplers whose rows carry quadrature weights.
type Weighter interface {
	// QuadratureWeight returns the weight of the global row. The weights of
	// all rows sum to one.
	QuadratureWeight(row int) float64
}

// Setter is implemented by samplers with per-step state. SetUp is a
// collective operation and must be called by every worker before rows are
// read.
type Setter interface {
	SetUp() error
}

// Base implements the partitioning and the row cursor of a Sampler. Concrete
// samplers embed it and supply a function filling a row.
type Base struct {
	numRows, numCols int
	begin, end       int
	next             int
	sorted           bool

	fill func(row int, dst []float64)
}

func (b *Base) init(c comm.Comm, rows, cols int, sorted bool, fill func(row int, dst []float64)) {
	if c == nil {
		c = comm.Serial{}
	}
	b.numRows = rows
	b.numCols = cols
	b.begin, b.end = comm.Partition(rows, c.Rank(), c.Size())
	b.next = b.begin
	b.sorted = sorted
	b.fill = fill
}

func (b *Base) NumRows() int       { return b.numRows }
func (b *Base) NumCols() int       { return b.numCols }
func (b *Base) LocalRowBegin() int { return b.begin }
func (b *Base) LocalRowEnd() int   { return b.end }
func (b *Base) NumLocalRows() int  { return b.end - b.begin }
func (b *Base) Sorted() bool       { return b.sorted }

func (b *Base) NextLocalRow() []float64 {
	if b.begin == b.end {
		panic("sampler: no local rows")
	}
	row := make([]float64, b.numCols)
	b.fill(b.next, row)
	b.next++
	if b.next == b.end {
		b.next = b.begin
	}
	return row
}
