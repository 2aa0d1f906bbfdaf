// Package rowset implements ordered sets of global row indices built from
// (start, count) ranges.
package rowset

import (
	"github.com/google/btree"
)

const degree = 16

// Set is an ordered set of row indices. The zero value is not usable; use
// New or FromRanges.
type Set struct {
	tree *btree.BTreeG[int]
}

// New returns an empty set.
func New() *Set {
	return &Set{tree: btree.NewOrderedG[int](degree)}
}

// FromRanges returns the union of the rows [start[i], start[i]+count[i]).
func FromRanges(start, count []int) *Set {
	if len(start) != len(count) {
		panic("rowset: length mismatch")
	}
	s := New()
	for i := range start {
		s.AddRange(start[i], count[i])
	}
	return s
}

// AddRange adds the rows [start, start+count).
func (s *Set) AddRange(start, count int) {
	for r := start; r < start+count; r++ {
		s.tree.ReplaceOrInsert(r)
	}
}

// Contains reports whether row is in the set.
func (s *Set) Contains(row int) bool {
	return s.tree.Has(row)
}

// Len returns the number of rows in the set.
func (s *Set) Len() int {
	return s.tree.Len()
}

// CountRange returns the number of rows of the set in [begin, end).
func (s *Set) CountRange(begin, end int) int {
	var n int
	s.tree.AscendRange(begin, end, func(int) bool {
		n++
		return true
	})
	return n
}

// Rows returns the rows of the set in increasing order.
func (s *Set) Rows() []int {
	rows := make([]int, 0, s.tree.Len())
	s.tree.Ascend(func(r int) bool {
		rows = append(rows, r)
		return true
	})
	return rows
}
