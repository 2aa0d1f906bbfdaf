// Package multiindex generates the sets of exponent tuples that define the
// terms of multivariate polynomial expansions.
package multiindex

import (
	"sort"

	"gonum.org/v1/gonum/stat/combin"
)

// TensorGrid returns every combination of per-dimension indices in [0, m)
// for d dimensions, m^d tuples in total. The first component varies fastest,
// so the grid for d dimensions is the grid for d-1 dimensions repeated once
// for each value of the last component.
func TensorGrid(d, m int) [][]int {
	dims := make([]int, d)
	for i := range dims {
		dims[i] = m
	}
	return Grid(dims)
}

// Grid returns the tensor product of the index ranges [0, dims[i]) with the
// first component varying fastest.
func Grid(dims []int) [][]int {
	if len(dims) == 0 {
		panic("multiindex: zero dimensions")
	}
	n := 1
	for _, v := range dims {
		if v < 0 {
			panic("multiindex: negative size")
		}
		n *= v
	}
	// SubFor counts with the last index fastest, so count over the reversed
	// dimensions and reverse each result.
	rev := make([]int, len(dims))
	for i, v := range dims {
		rev[len(dims)-1-i] = v
	}
	grid := make([][]int, n)
	sub := make([]int, len(dims))
	for k := range grid {
		combin.SubFor(sub, k, rev)
		t := make([]int, len(dims))
		for i, v := range sub {
			t[len(dims)-1-i] = v
		}
		grid[k] = t
	}
	return grid
}

// Generate returns the total-order truncated set of tuples of dimension d
// whose components sum to at most m-1. The tuples are sorted by Less.
func Generate(d, m int) [][]int {
	if m < 1 {
		panic("multiindex: order must be positive")
	}
	grid := TensorGrid(d, m)
	tuples := grid[:0]
	for _, t := range grid {
		if degree(t) <= m-1 {
			tuples = append(tuples, t)
		}
	}
	sort.Slice(tuples, func(i, j int) bool { return Less(tuples[i], tuples[j]) })
	return tuples
}

// Less reports whether a sorts before b: tuples of higher total degree come
// first, and ties are broken by the first differing component, larger first.
func Less(a, b []int) bool {
	if len(a) != len(b) {
		panic("multiindex: length mismatch")
	}
	da, db := degree(a), degree(b)
	if da != db {
		return da > db
	}
	for i := range a {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return false
}

// Count returns the number of tuples produced by Generate(d, m), which is
// the binomial coefficient C(d+m-1, d).
func Count(d, m int) int {
	return combin.Binomial(d+m-1, d)
}

func degree(t []int) int {
	var s int
	for _, v := range t {
		s += v
	}
	return s
}
