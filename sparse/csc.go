// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sparse implements compressed sparse column matrices with the
// small set of operations the conic solver needs: products, transposes,
// column access and diagonal row/column scaling.
package sparse

import (
	"errors"
	"math"
)

// Matrix is an r×c sparse matrix in compressed sparse column form.
// The nonzero pattern is fixed after construction; only values may change
// (through the scaling methods or the slice returned by Values). Row
// indices within a column are sorted.
type Matrix struct {
	rows, cols int
	colPtr     []int     // column pointers, len cols+1
	rowIdx     []int     // row indices, len nnz
	values     []float64 // nonzero values, len nnz
}

// New builds a matrix from raw compressed column storage.
// The slices are retained, not copied.
func New(rows, cols int, colPtr, rowIdx []int, values []float64) (*Matrix, error) {
	switch {
	case rows < 0 || cols < 0:
		return nil, errors.New("sparse: negative dimension")
	case len(colPtr) != cols+1:
		return nil, errors.New("sparse: column pointer length mismatch")
	case colPtr[0] != 0 || colPtr[cols] != len(rowIdx) || len(rowIdx) != len(values):
		return nil, errors.New("sparse: storage length mismatch")
	}
	for j := 0; j < cols; j++ {
		if colPtr[j] > colPtr[j+1] {
			return nil, errors.New("sparse: column pointers not monotone")
		}
		for p := colPtr[j]; p < colPtr[j+1]; p++ {
			if r := rowIdx[p]; r < 0 || r >= rows {
				return nil, errors.New("sparse: row index out of range")
			}
			if p > colPtr[j] && rowIdx[p-1] >= rowIdx[p] {
				return nil, errors.New("sparse: row indices not sorted")
			}
		}
	}
	return &Matrix{rows: rows, cols: cols, colPtr: colPtr, rowIdx: rowIdx, values: values}, nil
}

// FromDense builds a matrix from a dense row-major representation,
// dropping exact zeros.
func FromDense(a [][]float64) *Matrix {
	rows := len(a)
	cols := 0
	if rows > 0 {
		cols = len(a[0])
	}
	colPtr := make([]int, cols+1)
	var rowIdx []int
	var values []float64
	for j := 0; j < cols; j++ {
		for i := 0; i < rows; i++ {
			if v := a[i][j]; v != 0 {
				rowIdx = append(rowIdx, i)
				values = append(values, v)
			}
		}
		colPtr[j+1] = len(values)
	}
	return &Matrix{rows: rows, cols: cols, colPtr: colPtr, rowIdx: rowIdx, values: values}
}

// Empty returns an r×c matrix with no stored entries.
func Empty(rows, cols int) *Matrix {
	return &Matrix{rows: rows, cols: cols, colPtr: make([]int, cols+1)}
}

// Dims returns the matrix dimensions.
func (m *Matrix) Dims() (rows, cols int) { return m.rows, m.cols }

// NNZ returns the number of stored entries.
func (m *Matrix) NNZ() int { return len(m.values) }

// Col returns the stored row indices and values of column j as subslices
// of the backing storage.
func (m *Matrix) Col(j int) (rows []int, values []float64) {
	lo, hi := m.colPtr[j], m.colPtr[j+1]
	return m.rowIdx[lo:hi], m.values[lo:hi]
}

// Values returns the backing value storage. Callers may rewrite entries
// in place; the pattern itself is immutable.
func (m *Matrix) Values() []float64 { return m.values }

// At returns the entry at (i, j), zero if not stored.
func (m *Matrix) At(i, j int) float64 {
	for p := m.colPtr[j]; p < m.colPtr[j+1]; p++ {
		if m.rowIdx[p] == i {
			return m.values[p]
		}
	}
	return 0
}

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	c := &Matrix{
		rows: m.rows, cols: m.cols,
		colPtr: make([]int, len(m.colPtr)),
		rowIdx: make([]int, len(m.rowIdx)),
		values: make([]float64, len(m.values)),
	}
	copy(c.colPtr, m.colPtr)
	copy(c.rowIdx, m.rowIdx)
	copy(c.values, m.values)
	return c
}

// T returns the transpose as a new matrix with sorted columns.
func (m *Matrix) T() *Matrix {
	t := &Matrix{
		rows: m.cols, cols: m.rows,
		colPtr: make([]int, m.rows+1),
		rowIdx: make([]int, len(m.rowIdx)),
		values: make([]float64, len(m.values)),
	}
	// Counting sort over the row indices.
	for _, i := range m.rowIdx {
		t.colPtr[i+1]++
	}
	for i := 0; i < m.rows; i++ {
		t.colPtr[i+1] += t.colPtr[i]
	}
	next := make([]int, m.rows)
	copy(next, t.colPtr[:m.rows])
	for j := 0; j < m.cols; j++ {
		for p := m.colPtr[j]; p < m.colPtr[j+1]; p++ {
			i := m.rowIdx[p]
			q := next[i]
			next[i]++
			t.rowIdx[q] = j
			t.values[q] = m.values[p]
		}
	}
	return t
}

// MulVec computes dst = M x.
func (m *Matrix) MulVec(dst, x []float64) {
	for i := range dst[:m.rows] {
		dst[i] = 0
	}
	m.AddMulVec(dst, 1, x)
}

// AddMulVec computes dst += alpha * M x.
func (m *Matrix) AddMulVec(dst []float64, alpha float64, x []float64) {
	for j := 0; j < m.cols; j++ {
		ax := alpha * x[j]
		if ax == 0 {
			continue
		}
		for p := m.colPtr[j]; p < m.colPtr[j+1]; p++ {
			dst[m.rowIdx[p]] += ax * m.values[p]
		}
	}
}

// RowMaxAbs writes the maximum absolute value of each row into dst.
// Rows with no stored entries get zero.
func (m *Matrix) RowMaxAbs(dst []float64) {
	for i := range dst[:m.rows] {
		dst[i] = 0
	}
	for p, i := range m.rowIdx {
		if a := math.Abs(m.values[p]); a > dst[i] {
			dst[i] = a
		}
	}
}

// ColMaxAbs folds the maximum absolute value of each column into dst,
// keeping any larger value already present.
func (m *Matrix) ColMaxAbs(dst []float64) {
	for j := 0; j < m.cols; j++ {
		a := dst[j]
		for p := m.colPtr[j]; p < m.colPtr[j+1]; p++ {
			if v := math.Abs(m.values[p]); v > a {
				a = v
			}
		}
		dst[j] = a
	}
}

// DivRowsCols divides every entry (i, j) by r[i]*c[j].
func (m *Matrix) DivRowsCols(r, c []float64) {
	for j := 0; j < m.cols; j++ {
		for p := m.colPtr[j]; p < m.colPtr[j+1]; p++ {
			m.values[p] /= r[m.rowIdx[p]] * c[j]
		}
	}
}

// MulRowsCols multiplies every entry (i, j) by r[i]*c[j].
func (m *Matrix) MulRowsCols(r, c []float64) {
	for j := 0; j < m.cols; j++ {
		for p := m.colPtr[j]; p < m.colPtr[j+1]; p++ {
			m.values[p] *= r[m.rowIdx[p]] * c[j]
		}
	}
}

// ToDense expands the matrix into a dense row-major representation.
func (m *Matrix) ToDense() [][]float64 {
	d := make([][]float64, m.rows)
	for i := range d {
		d[i] = make([]float64, m.cols)
	}
	for j := 0; j < m.cols; j++ {
		for p := m.colPtr[j]; p < m.colPtr[j+1]; p++ {
			d[m.rowIdx[p]][j] = m.values[p]
		}
	}
	return d
}

// Finite reports whether every stored value is a finite number.
func (m *Matrix) Finite() bool {
	for _, v := range m.values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
