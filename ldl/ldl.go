// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ldl factorizes sparse symmetric indefinite matrices as 𝐋𝐃𝐋ᵀ
// where 𝐋 is unit lower triangular and 𝐃 is diagonal.
//
// The input matrix is square with only its upper triangular part stored in
// compressed sparse column form, the way the conic solver assembles its
// KKT system. The factorization is up-looking without pivoting: the
// elimination tree and column counts are computed once by Analyze, after
// which Factorize may be called repeatedly on matrices with the same
// pattern but new values, and Solve applies 𝐋⁻ᵀ𝐃⁻¹𝐋⁻¹ in place.
//
// No fill-reducing permutation is applied; for quasi-definite matrices
// (which the regularized KKT systems are) the factorization exists for
// every symmetric ordering and the natural one keeps the code and the
// result deterministic.
//
// Timothy A. Davis: "Algorithm 849: A concise sparse Cholesky
// factorization package". ACM TOMS 31(4), 2005.
package ldl

import (
	"errors"

	"github.com/curioloop/conic/sparse"
)

// ErrZeroPivot is returned by Factorize when a diagonal pivot vanishes
// and the factorization cannot continue.
var ErrZeroPivot = errors.New("ldl: zero pivot")

// Factorization holds the elimination structure of a fixed sparsity
// pattern together with the numeric factors of the matrix most recently
// passed to Factorize. All storage is allocated by Analyze.
type Factorization struct {
	n      int
	parent []int // elimination tree
	lp     []int // column pointers of L, len n+1
	li     []int // row indices of L
	lx     []float64
	d      []float64 // diagonal of D

	// workspaces
	lnz     []int // entries filled per column during factorize
	flag    []int
	pattern []int
	y       []float64
}

// Analyze computes the elimination tree and column counts of the upper
// triangular pattern of k and allocates the factor storage.
func Analyze(k *sparse.Matrix) (*Factorization, error) {
	n, cols := k.Dims()
	if n != cols {
		return nil, errors.New("ldl: matrix is not square")
	}
	f := &Factorization{
		n:       n,
		parent:  make([]int, n),
		lp:      make([]int, n+1),
		d:       make([]float64, n),
		lnz:     make([]int, n),
		flag:    make([]int, n),
		pattern: make([]int, n),
		y:       make([]float64, n),
	}
	counts := make([]int, n)
	for j := 0; j < n; j++ {
		f.parent[j] = -1
		f.flag[j] = j
		rows, _ := k.Col(j)
		for _, i := range rows {
			for ; i < j && f.flag[i] != j; i = f.parent[i] {
				if f.parent[i] == -1 {
					f.parent[i] = j
				}
				counts[i]++
				f.flag[i] = j
			}
		}
	}
	for j := 0; j < n; j++ {
		f.lp[j+1] = f.lp[j] + counts[j]
	}
	f.li = make([]int, f.lp[n])
	f.lx = make([]float64, f.lp[n])
	return f, nil
}

// Factorize computes the numeric factors of k, which must have the same
// pattern that was given to Analyze.
func (f *Factorization) Factorize(k *sparse.Matrix) error {
	n := f.n
	for j := 0; j < n; j++ {
		// Scatter the upper column j of K and walk the elimination
		// tree to find the pattern of row j of L.
		top := n
		f.flag[j] = j
		f.lnz[j] = 0
		rows, vals := k.Col(j)
		for p, i := range rows {
			if i > j {
				continue
			}
			f.y[i] += vals[p]
			length := 0
			for ; f.flag[i] != j; i = f.parent[i] {
				f.pattern[length] = i
				length++
				f.flag[i] = j
			}
			for length > 0 {
				length--
				top--
				f.pattern[top] = f.pattern[length]
			}
		}
		f.d[j] = f.y[j]
		f.y[j] = 0
		for ; top < n; top++ {
			i := f.pattern[top]
			yi := f.y[i]
			f.y[i] = 0
			p2 := f.lp[i] + f.lnz[i]
			for p := f.lp[i]; p < p2; p++ {
				f.y[f.li[p]] -= f.lx[p] * yi
			}
			lji := yi / f.d[i]
			f.d[j] -= lji * yi
			f.li[p2] = j
			f.lx[p2] = lji
			f.lnz[i]++
		}
		if f.d[j] == 0 {
			return ErrZeroPivot
		}
	}
	return nil
}

// Solve overwrites b with K⁻¹b using the current factors.
func (f *Factorization) Solve(b []float64) {
	n := f.n
	// 𝐋x = b
	for j := 0; j < n; j++ {
		bj := b[j]
		if bj == 0 {
			continue
		}
		for p := f.lp[j]; p < f.lp[j]+f.lnz[j]; p++ {
			b[f.li[p]] -= f.lx[p] * bj
		}
	}
	// 𝐃x = b
	for j := 0; j < n; j++ {
		b[j] /= f.d[j]
	}
	// 𝐋ᵀx = b
	for j := n - 1; j >= 0; j-- {
		for p := f.lp[j]; p < f.lp[j]+f.lnz[j]; p++ {
			b[j] -= f.lx[p] * b[f.li[p]]
		}
	}
}
