package comm

import (
	"errors"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Group is a set of in-process workers that communicate through shared
// memory. It is used to run the data-parallel algorithms with several
// simulated workers inside one process.
//
// A Group is used for a single call to Run.
type Group struct {
	size int

	mu       sync.Mutex
	cond     *sync.Cond
	gen      int         // number of completed collectives
	arrived  int         // workers waiting in the current collective
	parts    [][]float64 // contributions to the current collective by rank
	last     [][]float64 // contributions of the most recently completed collective
	finished int         // workers whose function has returned
	err      error
	used     bool
}

// NewGroup returns a group of size workers.
func NewGroup(size int) *Group {
	if size < 1 {
		panic("comm: group size must be positive")
	}
	g := &Group{
		size:  size,
		parts: make([][]float64, size),
	}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// Size returns the number of workers in the group.
func (g *Group) Size() int { return g.size }

// Run calls fn concurrently once per worker, each with the Comm of that
// worker, and waits for all of them to return. The first error returned by a
// worker aborts the group: workers blocked in or later entering a collective
// receive ErrAborted. Run returns the first error that is not ErrAborted.
func (g *Group) Run(fn func(c Comm) error) error {
	g.mu.Lock()
	if g.used {
		g.mu.Unlock()
		panic("comm: group reused")
	}
	g.used = true
	g.mu.Unlock()

	errs := make([]error, g.size)
	var wg sync.WaitGroup
	for r := 0; r < g.size; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			err := fn(&member{g: g, rank: r})
			g.mu.Lock()
			g.finished++
			if err != nil && g.err == nil {
				g.err = err
			}
			g.mu.Unlock()
			g.cond.Broadcast()
			errs[r] = err
		}(r)
	}
	wg.Wait()

	var aborted error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if errors.Is(err, ErrAborted) {
			aborted = err
			continue
		}
		return err
	}
	return aborted
}

// Run is shorthand for NewGroup(size).Run(fn).
func Run(size int, fn func(c Comm) error) error {
	return NewGroup(size).Run(fn)
}

// exchange deposits data as the contribution of rank and blocks until every
// worker has contributed. It returns the contributions of all workers, which
// must be treated as read-only.
func (g *Group) exchange(rank int, data []float64) ([][]float64, error) {
	cp := make([]float64, len(data))
	copy(cp, data)

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAborted, g.err)
	}
	g.parts[rank] = cp
	g.arrived++
	if g.arrived == g.size {
		g.last = g.parts
		g.parts = make([][]float64, g.size)
		g.arrived = 0
		g.gen++
		g.cond.Broadcast()
		return g.last, nil
	}
	gen := g.gen
	for g.gen == gen {
		if g.err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAborted, g.err)
		}
		if g.finished > 0 {
			panic("comm: collective called by a subset of the workers")
		}
		g.cond.Wait()
	}
	return g.last, nil
}

type member struct {
	g    *Group
	rank int
}

func (m *member) Rank() int { return m.rank }
func (m *member) Size() int { return m.g.size }

func (m *member) SumFloat(v float64) (float64, error) {
	parts, err := m.g.exchange(m.rank, []float64{v})
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, p := range parts {
		sum += p[0]
	}
	return sum, nil
}

func (m *member) SumInt(v int) (int, error) {
	s, err := m.SumFloat(float64(v))
	return int(s), err
}

func (m *member) SumFloats(v []float64) error {
	parts, err := m.g.exchange(m.rank, v)
	if err != nil {
		return err
	}
	for i := range v {
		v[i] = 0
	}
	for _, p := range parts {
		if len(p) != len(v) {
			panic("comm: length mismatch in sum")
		}
		floats.Add(v, p)
	}
	return nil
}

func (m *member) SumDense(a *mat.Dense) error {
	v := flatten(a)
	if err := m.SumFloats(v); err != nil {
		return err
	}
	unflatten(a, v)
	return nil
}

func (m *member) AllGather(v []float64) ([]float64, error) {
	parts, err := m.g.exchange(m.rank, v)
	if err != nil {
		return nil, err
	}
	var n int
	for _, p := range parts {
		n += len(p)
	}
	out := make([]float64, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out, nil
}
