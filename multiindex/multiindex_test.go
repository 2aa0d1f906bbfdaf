package multiindex

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTensorGrid(t *testing.T) {
	got := TensorGrid(2, 3)
	want := [][]int{
		{0, 0}, {1, 0}, {2, 0},
		{0, 1}, {1, 1}, {2, 1},
		{0, 2}, {1, 2}, {2, 2},
	}
	assert.Equal(t, want, got)

	assert.Equal(t, [][]int{{0}, {1}, {2}, {3}}, TensorGrid(1, 4))
	assert.Len(t, TensorGrid(4, 3), 81)
}

func TestGrid(t *testing.T) {
	got := Grid([]int{2, 1, 3})
	assert.Len(t, got, 6)
	assert.Equal(t, []int{1, 0, 0}, got[1])
	assert.Equal(t, []int{0, 0, 1}, got[2])
	assert.Equal(t, []int{1, 0, 2}, got[5])
}

func TestGenerateSmall(t *testing.T) {
	got := Generate(2, 3)
	want := [][]int{
		{2, 0}, {1, 1}, {0, 2},
		{1, 0}, {0, 1},
		{0, 0},
	}
	assert.Equal(t, want, got)
}

func TestGenerateProperties(t *testing.T) {
	for d := 1; d <= 4; d++ {
		for m := 1; m <= 5; m++ {
			name := fmt.Sprintf("d=%d,m=%d", d, m)
			tuples := Generate(d, m)
			if len(tuples) != Count(d, m) {
				t.Errorf("Case %s: %d tuples, want %d", name, len(tuples), Count(d, m))
			}
			seen := make(map[string]bool)
			for i, tup := range tuples {
				if len(tup) != d {
					t.Errorf("Case %s: tuple %v has wrong dimension", name, tup)
				}
				if degree(tup) > m-1 {
					t.Errorf("Case %s: tuple %v exceeds order", name, tup)
				}
				key := fmt.Sprint(tup)
				if seen[key] {
					t.Errorf("Case %s: duplicate tuple %v", name, tup)
				}
				seen[key] = true
				if i > 0 && !Less(tuples[i-1], tup) {
					t.Errorf("Case %s: tuples %v and %v out of order", name, tuples[i-1], tup)
				}
			}
			assert.Equal(t, tuples, Generate(d, m), "Case %s: not reproducible", name)
			last := tuples[len(tuples)-1]
			assert.Equal(t, 0, degree(last), "Case %s: constant term must be last", name)
		}
	}
}

func TestLess(t *testing.T) {
	assert.True(t, Less([]int{2, 0}, []int{0, 1}))
	assert.True(t, Less([]int{1, 1}, []int{0, 2}))
	assert.False(t, Less([]int{1, 1}, []int{1, 1}))
	assert.Panics(t, func() { Less([]int{1}, []int{1, 0}) })
}
