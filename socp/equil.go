// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package socp

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// setEquilibration performs Ruiz-style iterative scaling of the problem
// data. Each sweep divides the rows and columns of A and G by the square
// roots of their maximum absolute entries, with all rows of one
// second-order cone tied to a common factor so the cone structure
// survives the scaling. The factors accumulate multiplicatively into
// xEquil, aEquil and gEquil; b and h are scaled once at the end.
func (sv *Solver) setEquilibration() {
	for i := range sv.xEquil {
		sv.xEquil[i] = one
	}
	for i := range sv.aEquil {
		sv.aEquil[i] = one
	}
	for i := range sv.gEquil {
		sv.gEquil[i] = one
	}

	xTmp := make([]float64, sv.nVar)
	aTmp := make([]float64, sv.nEq)
	gTmp := make([]float64, sv.nIneq)

	for iter := 0; iter < sv.set.EquilIters; iter++ {
		for i := range xTmp {
			xTmp[i] = 0
		}

		// Maximum absolute entry across the columns of [A; G] and
		// across the rows of A and of G.
		sv.A.ColMaxAbs(xTmp)
		sv.G.ColMaxAbs(xTmp)
		sv.A.RowMaxAbs(aTmp)
		sv.G.RowMaxAbs(gTmp)

		// Collapse each cone onto the total over its group.
		for ci := range sv.cones {
			c := &sv.cones[ci]
			total := zero
			for t := 0; t < c.dim; t++ {
				total += gTmp[c.start+t]
			}
			for t := 0; t < c.dim; t++ {
				gTmp[c.start+t] = total
			}
		}

		guardSqrt(xTmp)
		guardSqrt(aTmp)
		guardSqrt(gTmp)

		sv.A.DivRowsCols(aTmp, xTmp)
		sv.G.DivRowsCols(gTmp, xTmp)

		floats.Mul(sv.xEquil, xTmp)
		floats.Mul(sv.aEquil, aTmp)
		floats.Mul(sv.gEquil, gTmp)
	}

	// The c vector is scaled inside the solve.
	floats.Div(sv.b, sv.aEquil)
	floats.Div(sv.h, sv.gEquil)
}

// guardSqrt replaces near-zero entries by one and the rest by their
// square roots, damping the per-sweep correction.
func guardSqrt(v []float64) {
	for i, x := range v {
		if math.Abs(x) < 1e-6 {
			v[i] = one
		} else {
			v[i] = math.Sqrt(x)
		}
	}
}

// unsetEquilibration restores A, G, b and h to their original scaling.
func (sv *Solver) unsetEquilibration() {
	sv.A.MulRowsCols(sv.aEquil, sv.xEquil)
	sv.G.MulRowsCols(sv.gEquil, sv.xEquil)
	floats.Mul(sv.b, sv.aEquil)
	floats.Mul(sv.h, sv.gEquil)
}

// backscale maps the iterates back to the original problem coordinates
// and restores c: x, y and z are divided by τ and their equilibration
// diagonals, while the slack s is multiplied by the G diagonal and
// divided by τ.
func (sv *Solver) backscale() {
	for i := range sv.x {
		sv.x[i] /= sv.xEquil[i] * sv.tau
	}
	for i := range sv.y {
		sv.y[i] /= sv.aEquil[i] * sv.tau
	}
	for i := range sv.z {
		sv.z[i] /= sv.gEquil[i] * sv.tau
	}
	for i := range sv.s {
		sv.s[i] *= sv.gEquil[i] / sv.tau
	}
	floats.Mul(sv.c, sv.xEquil)
}
