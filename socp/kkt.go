// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package socp

import (
	"math"

	"github.com/curioloop/conic/sparse"
	"gonum.org/v1/gonum/floats"
)

// The KKT system solved for every search direction is
//
//	[ δI  Aᵀ  G̃ᵀ ] [dx]   [bx]
//	[ A  -δI  0  ] [dy] = [by]
//	[ G̃   0  -Ṽ  ] [dz]   [bz]
//
// where G̃ pads the column group of every second-order cone with two zero
// columns and Ṽ is the sparse expansion of the scaling block: for a cone
// of dimension d the dense η²(D + uuᵀ − vvᵀ) is replaced by a
// (d+2)×(d+2) block carrying D on its diagonal and the u and v vectors
// in the two auxiliary columns, whose diagonal signs make the Schur
// complement onto the true coordinates reproduce the dense block. Only
// the upper triangle is stored; the pattern is fixed for the life of a
// solve and updateKKT rewrites the scaling values in place.

// setupKKT builds the symbolic upper-triangular pattern of K, records the
// value indices of every mutable entry, and analyzes the pattern.
func (sv *Solver) setupKKT() error {
	nnz := sv.At.NNZ() + sv.Gt.NNZ() + sv.nVar + sv.nEq + sv.nPos
	for ci := range sv.cones {
		nnz += 3*sv.cones[ci].dim + 1
	}

	colPtr := make([]int, 0, sv.dimK+1)
	rowIdx := make([]int, 0, nnz)
	values := make([]float64, 0, nnz)

	colPtr = append(colPtr, 0)
	entry := func(row int, v float64) int {
		rowIdx = append(rowIdx, row)
		values = append(values, v)
		return len(values) - 1
	}
	closeCol := func() { colPtr = append(colPtr, len(values)) }

	// (1,1) static regularization δI.
	for j := 0; j < sv.nVar; j++ {
		entry(j, sv.set.Delta)
		closeCol()
	}

	// (1,2) block Aᵀ with −δI on the trailing diagonal.
	for i := 0; i < sv.nEq; i++ {
		rows, vals := sv.At.Col(i)
		for p, r := range rows {
			entry(r, vals[p])
		}
		entry(sv.nVar+i, -sv.set.Delta)
		closeCol()
	}

	// (1,3) block G̃ᵀ over the (3,3) scaling block −Ṽ.
	col := sv.nVar + sv.nEq
	for i := 0; i < sv.nPos; i++ {
		rows, vals := sv.Gt.Col(i)
		for p, r := range rows {
			entry(r, vals[p])
		}
		sv.lp.kktIdx[i] = entry(col, -one)
		closeCol()
		col++
	}
	for ci := range sv.cones {
		c := &sv.cones[ci]
		coneCol := col
		for t := 0; t < c.dim; t++ {
			rows, vals := sv.Gt.Col(c.start + t)
			for p, r := range rows {
				entry(r, vals[p])
			}
			c.kktD[t] = entry(col, -one)
			closeCol()
			col++
		}
		// v column: rows 1…d−1 of the cone block, negative diagonal.
		for t := 1; t < c.dim; t++ {
			c.kktV[t-1] = entry(coneCol+t, zero)
		}
		c.kktV[c.dim-1] = entry(col, -one)
		closeCol()
		col++
		// u column: rows 0…d−1 of the cone block, positive diagonal.
		for t := 0; t < c.dim; t++ {
			c.kktU[t] = entry(coneCol+t, zero)
		}
		c.kktU[c.dim] = entry(col, one)
		closeCol()
		col++
	}

	k, err := sparse.New(sv.dimK, sv.dimK, colPtr, rowIdx, values)
	if err != nil {
		return err
	}
	sv.K = k
	return nil
}

// initKKT writes the initial scaling values V = I so that the first two
// solves compute the starting point, then factorizes.
func (sv *Solver) initKKT() error {
	vals := sv.K.Values()
	for i := 0; i < sv.nPos; i++ {
		vals[sv.lp.kktIdx[i]] = -one
	}
	for ci := range sv.cones {
		c := &sv.cones[ci]
		for t := 0; t < c.dim; t++ {
			vals[c.kktD[t]] = -one
		}
		for t := 0; t < c.dim-1; t++ {
			vals[c.kktV[t]] = zero
		}
		vals[c.kktV[c.dim-1]] = -one
		for t := 0; t < c.dim; t++ {
			vals[c.kktU[t]] = zero
		}
		vals[c.kktU[c.dim]] = one
	}
	return sv.ldlt.Factorize(sv.K)
}

// updateKKT rewrites the scaling block from the current Nesterov–Todd
// constants and refactorizes.
func (sv *Solver) updateKKT() error {
	delta := sv.set.Delta
	vals := sv.K.Values()
	for i := 0; i < sv.nPos; i++ {
		vals[sv.lp.kktIdx[i]] = -sv.lp.v[i] - delta
	}
	for ci := range sv.cones {
		c := &sv.cones[ci]
		vals[c.kktD[0]] = -c.etaSq*c.d1 - delta
		for t := 1; t < c.dim; t++ {
			vals[c.kktD[t]] = -c.etaSq - delta
		}
		for t := 0; t < c.dim-1; t++ {
			vals[c.kktV[t]] = -c.etaSq * c.v1 * c.q[t]
		}
		vals[c.kktV[c.dim-1]] = -c.etaSq - delta
		vals[c.kktU[0]] = -c.etaSq * c.u0
		for t := 1; t < c.dim; t++ {
			vals[c.kktU[t]] = -c.etaSq * c.u1 * c.q[t-1]
		}
		vals[c.kktU[c.dim]] = c.etaSq + delta
	}
	return sv.ldlt.Factorize(sv.K)
}

// extractSolution strips the expanded solution into dx, dy and the
// m-dimensional dz, skipping the two auxiliary rows of every cone.
func (sv *Solver) extractSolution(sol, dx, dy, dz []float64) {
	copy(dx, sol[:sv.nVar])
	copy(dy, sol[sv.nVar:sv.nVar+sv.nEq])
	zseg := sol[sv.nVar+sv.nEq:]
	copy(dz[:sv.nPos], zseg[:sv.nPos])
	for ci := range sv.cones {
		c := &sv.cones[ci]
		copy(dz[c.start:c.start+c.dim], zseg[c.estart:c.estart+c.dim])
	}
}

// solveKKT solves K Δ = rhs through the factorization, refining the
// solution against the un-expanded system until the error is below
// (1+‖rhs‖∞)·LinSysAcc, refinement stagnates, the step bound is hit, or
// a refinement increases the error (in which case it is undone).
// It returns the stripped direction and the number of refinement steps.
//
// The residuals are measured against the operator without the static
// regularization, so refinement removes the δ perturbation from the
// directions along with the factorization error.
//
// During the initialization solves the scaling block is the identity
// written by initKKT, so the V-product in the residual reduces to the
// solution itself.
func (sv *Solver) solveKKT(rhs, dx, dy, dz []float64, initialize bool) int {
	copy(sv.kktSol, rhs)
	sv.ldlt.Solve(sv.kktSol)

	bx := rhs[:sv.nVar]
	by := rhs[sv.nVar : sv.nVar+sv.nEq]
	bz := rhs[sv.nVar+sv.nEq:]
	ex := sv.kktErr[:sv.nVar]
	ey := sv.kktErr[sv.nVar : sv.nVar+sv.nEq]
	ez := sv.kktErr[sv.nVar+sv.nEq:]

	errThresh := (one + floats.Norm(rhs, math.Inf(1))) * sv.set.LinSysAcc

	nref := 0
	nerrPrev := math.Inf(1)
	for kref := 0; ; kref++ {
		sv.extractSolution(sv.kktSol, dx, dy, dz)
		dzTrue := sv.kktSol[sv.nVar+sv.nEq:]

		// ex = bx − Aᵀdy − Gᵀdz
		copy(ex, bx)
		sv.At.AddMulVec(ex, -one, dy)
		sv.Gt.AddMulVec(ex, -one, dz)

		// ey = by − Adx
		copy(ey, by)
		sv.A.AddMulVec(ey, -one, dx)

		// ez = bz − G̃dx + Ṽdz
		sv.G.MulVec(sv.gdx, dx)
		for i := 0; i < sv.nPos; i++ {
			ez[i] = bz[i] - sv.gdx[i]
		}
		for ci := range sv.cones {
			c := &sv.cones[ci]
			for t := 0; t < c.dim; t++ {
				ez[c.estart+t] = bz[c.estart+t] - sv.gdx[c.start+t]
			}
			ez[c.estart+c.dim] = 0
			ez[c.estart+c.dim+1] = 0
		}
		if initialize {
			floats.Add(ez, dzTrue)
		} else {
			sv.scale2add(dzTrue, ez)
		}

		nerr := math.Max(floats.Norm(ex, math.Inf(1)), floats.Norm(ez, math.Inf(1)))
		if sv.nEq > 0 {
			nerr = math.Max(nerr, floats.Norm(ey, math.Inf(1)))
		}

		// A refinement that grew the error is undone.
		if kref > 0 && nerr > nerrPrev {
			floats.Sub(sv.kktSol, sv.kktRef)
			nref = kref - 1
			break
		}
		nref = kref
		if kref == sv.set.NItRef || nerr < errThresh ||
			(kref > 0 && nerrPrev < sv.set.IRErrFact*nerr) {
			break
		}
		nerrPrev = nerr

		copy(sv.kktRef, sv.kktErr)
		sv.ldlt.Solve(sv.kktRef)
		floats.Add(sv.kktSol, sv.kktRef)
	}

	sv.extractSolution(sv.kktSol, dx, dy, dz)
	return nref
}
