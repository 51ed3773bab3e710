// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ldl

import (
	"testing"

	"github.com/curioloop/conic/sparse"
	"github.com/stretchr/testify/require"
)

// upper returns the upper triangular part of a dense symmetric matrix.
func upper(a [][]float64) *sparse.Matrix {
	n := len(a)
	u := make([][]float64, n)
	for i := range u {
		u[i] = make([]float64, n)
		for j := i; j < n; j++ {
			u[i][j] = a[i][j]
		}
	}
	return sparse.FromDense(u)
}

// mulSym computes y = Ax for a dense symmetric A.
func mulSym(a [][]float64, x []float64) []float64 {
	y := make([]float64, len(x))
	for i := range a {
		for j := range a[i] {
			y[i] += a[i][j] * x[j]
		}
	}
	return y
}

func TestSolveSPD(t *testing.T) {
	a := [][]float64{
		{4, 1},
		{1, 3},
	}
	f, err := Analyze(upper(a))
	require.NoError(t, err)
	require.NoError(t, f.Factorize(upper(a)))

	b := []float64{1, 2}
	f.Solve(b)
	require.InDelta(t, 1.0/11, b[0], 1e-14)
	require.InDelta(t, 7.0/11, b[1], 1e-14)
}

func TestSolveQuasiDefinite(t *testing.T) {
	a := [][]float64{
		{2, 0, 1, 0.5},
		{0, 3, -1, 1},
		{1, -1, -2, 0},
		{0.5, 1, 0, -1.5},
	}
	f, err := Analyze(upper(a))
	require.NoError(t, err)
	require.NoError(t, f.Factorize(upper(a)))

	want := []float64{0.5, -1, 2, 0.25}
	b := mulSym(a, want)
	f.Solve(b)
	for i := range want {
		require.InDelta(t, want[i], b[i], 1e-12)
	}
}

func TestRefactorizeSamePattern(t *testing.T) {
	a := [][]float64{
		{4, 1},
		{1, 3},
	}
	f, err := Analyze(upper(a))
	require.NoError(t, err)
	require.NoError(t, f.Factorize(upper(a)))

	// Same pattern, new values.
	a2 := [][]float64{
		{10, -2},
		{-2, 5},
	}
	require.NoError(t, f.Factorize(upper(a2)))
	want := []float64{3, -7}
	b := mulSym(a2, want)
	f.Solve(b)
	for i := range want {
		require.InDelta(t, want[i], b[i], 1e-12)
	}
}

func TestZeroPivot(t *testing.T) {
	u, err := sparse.New(2, 2,
		[]int{0, 1, 3}, []int{0, 0, 1}, []float64{0, 1, 1})
	require.NoError(t, err)
	f, err := Analyze(u)
	require.NoError(t, err)
	require.ErrorIs(t, f.Factorize(u), ErrZeroPivot)
}

func TestNotSquare(t *testing.T) {
	_, err := Analyze(sparse.Empty(2, 3))
	require.Error(t, err)
}
