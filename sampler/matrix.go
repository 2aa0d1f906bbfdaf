package sampler

import (
	"gonum.org/v1/gonum/mat"

	"github.com/btracey/surrogate/comm"
)

// Matrix is a sampler over explicitly given rows. Every worker holds the full
// matrix.
type Matrix struct {
	Base
	data mat.Matrix
}

// NewMatrix returns a sampler whose rows are the rows of data.
func NewMatrix(data mat.Matrix, c comm.Comm) *Matrix {
	r, cols := data.Dims()
	m := &Matrix{data: data}
	m.init(c, r, cols, false, func(row int, dst []float64) {
		mat.Row(dst, row, m.data)
	})
	return m
}
