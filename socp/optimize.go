// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package socp

import (
	"errors"
	"math"
	"slices"

	"github.com/curioloop/conic/ldl"
	"github.com/curioloop/conic/sparse"
)

// Problem specifies a convex conic program
//
//	minimize    c·x
//	subject to  A x = b
//	            G x + s = h,  s ∈ K
//
// over the product cone K = R₊ˡ × Qᵈ¹ × … × Qᵈᵏ. The first l rows of G
// belong to the orthant, the remaining row groups to the second-order
// cones in the order given by SocDims; l is implied as the number of
// rows of G not covered by SocDims.
type Problem struct {
	C []float64     // Variable weights, length n.
	G *sparse.Matrix // Generalized inequality matrix, m×n.
	H []float64     // Generalized inequality vector, length m.
	A *sparse.Matrix // Optional equality constraint matrix, p×n.
	B []float64     // Equality constraint vector, length p.
	// SocDims lists the dimension of every second-order cone, each ≥ 2.
	SocDims []int
	// Settings overrides DefaultSettings when non-nil.
	Settings *Settings
}

// New validates the problem data and builds a solver with all state
// allocated: equilibration is applied, the KKT pattern is assembled and
// analyzed, and no further allocation happens during Solve.
func (p *Problem) New() (*Solver, error) {
	set := DefaultSettings()
	if p.Settings != nil {
		set = *p.Settings
	}

	if p.G == nil {
		return nil, errors.New("inequality matrix is required")
	}
	m, n := p.G.Dims()
	nEq := 0
	if p.A != nil {
		nEq, _ = p.A.Dims()
	}

	socTotal := 0
	for _, d := range p.SocDims {
		if d < 2 {
			return nil, errors.New("cone dimension must not be less than 2")
		}
		socTotal += d
	}

	var err error
	switch {
	case n <= 0 || m <= 0:
		err = errors.New("problem dimension must be greater than 0")
	case len(p.C) != n:
		err = errors.New("weight size must equal to variable number")
	case len(p.H) != m:
		err = errors.New("inequality vector size must equal to row number")
	case p.A != nil && !matchCols(p.A, n):
		err = errors.New("equality and inequality column number must agree")
	case len(p.B) != nEq:
		err = errors.New("equality vector size must equal to row number")
	case socTotal > m:
		err = errors.New("cone dimensions must not exceed inequality number")
	case !finiteAll(p.C) || !finiteAll(p.H) || !finiteAll(p.B):
		err = errors.New("problem data must be finite")
	case !p.G.Finite() || (p.A != nil && !p.A.Finite()):
		err = errors.New("problem data must be finite")
	case set.MaxIt <= 0:
		err = errors.New("max iteration must be greater than 0")
	case set.NItRef < 0 || set.EquilIters < 0:
		err = errors.New("refinement and equilibration counts must not be negative")
	case set.FeasTol <= 0 || set.AbsTol <= 0 || set.RelTol <= 0:
		err = errors.New("tolerances must be greater than 0")
	case set.StepMin <= 0 || set.StepMax <= set.StepMin || set.StepMax >= 1:
		err = errors.New("step bounds must satisfy 0 < min < max < 1")
	case set.Gamma <= 0 || set.Gamma > 1:
		err = errors.New("step scaling must lie in (0,1]")
	}
	if err != nil {
		return nil, err
	}

	nPos := m - socTotal
	nSoc := len(p.SocDims)
	mExp := m + 2*nSoc

	sv := &Solver{
		set: set,
		dims: dims{
			nVar:  n,
			nEq:   nEq,
			nIneq: m,
			nPos:  nPos,
			nSoc:  nSoc,
			mExp:  mExp,
			dimK:  n + nEq + mExp,
			deg:   nPos + nSoc,
		},
		c: slices.Clone(p.C),
		h: slices.Clone(p.H),
		b: slices.Clone(p.B),
		G: p.G.Clone(),
	}
	if p.A != nil {
		sv.A = p.A.Clone()
	} else {
		sv.A = sparse.Empty(0, n)
	}

	sv.lp = lpCone{
		dim:    nPos,
		w:      make([]float64, nPos),
		v:      make([]float64, nPos),
		kktIdx: make([]int, nPos),
	}
	sv.cones = make([]socCone, nSoc)
	start, estart := nPos, nPos
	for i, d := range p.SocDims {
		sv.cones[i] = socCone{
			dim:    d,
			start:  start,
			estart: estart,
			skbar:  make([]float64, d),
			zkbar:  make([]float64, d),
			q:      make([]float64, d-1),
			kktD:   make([]int, d),
			kktV:   make([]int, d),
			kktU:   make([]int, d+1),
		}
		start += d
		estart += d + 2
	}

	sv.xEquil = make([]float64, n)
	sv.aEquil = make([]float64, nEq)
	sv.gEquil = make([]float64, m)
	sv.setEquilibration()

	sv.At = sv.A.T()
	sv.Gt = sv.G.T()

	if err := sv.setupKKT(); err != nil {
		return nil, err
	}
	if sv.ldlt, err = ldl.Analyze(sv.K); err != nil {
		return nil, err
	}

	sv.x = make([]float64, n)
	sv.y = make([]float64, nEq)
	sv.z = make([]float64, m)
	sv.s = make([]float64, m)
	sv.lambda = make([]float64, m)

	sv.rx = make([]float64, n)
	sv.ry = make([]float64, nEq)
	sv.rz = make([]float64, m)

	sv.rhs1 = make([]float64, sv.dimK)
	sv.rhs2 = make([]float64, sv.dimK)
	sv.dx1 = make([]float64, n)
	sv.dy1 = make([]float64, nEq)
	sv.dz1 = make([]float64, m)
	sv.dx2 = make([]float64, n)
	sv.dy2 = make([]float64, nEq)
	sv.dz2 = make([]float64, m)

	sv.dsByW = make([]float64, m)
	sv.wTimesDz = make([]float64, m)
	sv.ds = make([]float64, m)
	sv.ds1 = make([]float64, m)
	sv.ds2 = make([]float64, m)

	sv.kktSol = make([]float64, sv.dimK)
	sv.kktRef = make([]float64, sv.dimK)
	sv.kktErr = make([]float64, sv.dimK)
	sv.gdx = make([]float64, m)

	maxDim := 0
	for _, d := range p.SocDims {
		maxDim = max(maxDim, d)
	}
	sv.lsBar = make([]float64, maxDim)
	sv.lsRho = make([]float64, maxDim)
	sv.lsSig = make([]float64, maxDim)

	return sv, nil
}

// Result carries the final iterates, all mapped back to the original
// problem scaling, together with the iteration record.
type Result struct {
	Status Status
	X      []float64 // Primal variables.
	Y      []float64 // Multipliers for equality constraints.
	Z      []float64 // Multipliers for conic inequalities.
	S      []float64 // Slacks for conic inequalities.
	Info   Information
}

func matchCols(a *sparse.Matrix, n int) bool {
	_, cols := a.Dims()
	return cols == n
}

func finiteAll(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
