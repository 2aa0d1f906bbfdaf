// Package comm provides the collective operations used to combine training
// data across cooperating workers.
//
// Every worker runs the same code with its own Comm. A collective call blocks
// until every worker in the group has made the same call, and all workers see
// the same result. Contributions are combined in rank order, so the result of
// a sum does not depend on the order in which workers arrive.
//
// A worker with nothing to contribute must still make the call with zero
// values; skipping a collective is a protocol defect.
package comm

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

// ErrAborted is returned from a collective when another worker in the group
// failed and the group was torn down.
var ErrAborted = errors.New("comm: group aborted")

// Comm is the distributed-reduction primitive.
type Comm interface {
	// Rank returns the index of this worker in [0, Size()).
	Rank() int
	// Size returns the number of workers.
	Size() int

	// SumFloat returns the sum of v over all workers.
	SumFloat(v float64) (float64, error)
	// SumInt returns the sum of v over all workers.
	SumInt(v int) (int, error)
	// SumFloats replaces v with the elementwise sum over all workers. All
	// workers must pass slices of the same length.
	SumFloats(v []float64) error
	// SumDense replaces m with the elementwise sum over all workers. All
	// workers must pass matrices of the same shape.
	SumDense(m *mat.Dense) error
	// AllGather returns the concatenation, in rank order, of v from every
	// worker. The lengths may differ between workers.
	AllGather(v []float64) ([]float64, error)
}

// Serial is the Comm of a single worker.
type Serial struct{}

var _ Comm = Serial{}

func (Serial) Rank() int { return 0 }
func (Serial) Size() int { return 1 }

func (Serial) SumFloat(v float64) (float64, error) { return v, nil }
func (Serial) SumInt(v int) (int, error)           { return v, nil }
func (Serial) SumFloats(v []float64) error         { return nil }
func (Serial) SumDense(m *mat.Dense) error         { return nil }

func (Serial) AllGather(v []float64) ([]float64, error) {
	out := make([]float64, len(v))
	copy(out, v)
	return out, nil
}

// Partition returns the half-open range of n items owned by rank when the
// items are split contiguously over size workers. The first n%size workers
// own one extra item.
func Partition(n, rank, size int) (begin, end int) {
	if size <= 0 || rank < 0 || rank >= size {
		panic("comm: bad rank or size")
	}
	per := n / size
	rem := n % size
	if rank < rem {
		begin = rank * (per + 1)
		return begin, begin + per + 1
	}
	begin = rem*(per+1) + (rank-rem)*per
	return begin, begin + per
}

// flatten copies the contents of m into a row-major slice.
func flatten(m *mat.Dense) []float64 {
	r, c := m.Dims()
	out := make([]float64, r*c)
	for i := 0; i < r; i++ {
		copy(out[i*c:(i+1)*c], m.RawRowView(i))
	}
	return out
}

// unflatten writes the row-major slice v into m.
func unflatten(m *mat.Dense, v []float64) {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		copy(m.RawRowView(i), v[i*c:(i+1)*c])
	}
}
