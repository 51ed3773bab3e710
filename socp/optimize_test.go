// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package socp

import (
	"math"
	"testing"

	"github.com/curioloop/conic/sparse"
	"github.com/stretchr/testify/require"
)

func solve(t *testing.T, p Problem) *Result {
	t.Helper()
	sv, err := p.New()
	require.NoError(t, err)
	return sv.Solve()
}

// minimize −x₁−x₂ subject to x ≤ 1: a pure LP over the orthant with
// optimum x = (1, 1).
func TestSolveLP(t *testing.T) {
	r := solve(t, Problem{
		C: []float64{-1, -1},
		G: sparse.FromDense([][]float64{
			{1, 0},
			{0, 1},
		}),
		H: []float64{1, 1},
	})

	require.Equal(t, Optimal, r.Status, "status: %v", r.Status)
	require.InDelta(t, 1, r.X[0], 1e-6)
	require.InDelta(t, 1, r.X[1], 1e-6)
	require.InDelta(t, -2, r.Info.PCost, 1e-6)
	require.Less(t, r.Info.PRes, 1e-8)
	require.Less(t, r.Info.DRes, 1e-8)
	require.Greater(t, r.Info.KapOverTau, 0.0)
}

// minimize x₁+x₂ subject to ‖x‖₂ ≤ 1: a single second-order cone with
// the analytic optimum −(1,1)/√2 and no orthant at all.
func TestSolveSOC(t *testing.T) {
	r := solve(t, Problem{
		C: []float64{1, 1},
		G: sparse.FromDense([][]float64{
			{0, 0},
			{-1, 0},
			{0, -1},
		}),
		H:       []float64{1, 0, 0},
		SocDims: []int{3},
	})

	require.Equal(t, Optimal, r.Status, "status: %v", r.Status)
	inv := 1 / math.Sqrt2
	require.InDelta(t, -inv, r.X[0], 1e-6)
	require.InDelta(t, -inv, r.X[1], 1e-6)
	require.InDelta(t, -math.Sqrt2, r.Info.PCost, 1e-6)
	require.Less(t, r.Info.Gap, 1e-8)
}

// minimize x₁+x₂ subject to ‖x‖₂ ≤ 1 and x ≥ −½: the orthant bounds
// cut the disk optimum off, leaving x = (−½, −½).
func TestSolveMixedConeOrthant(t *testing.T) {
	r := solve(t, Problem{
		C: []float64{1, 1},
		G: sparse.FromDense([][]float64{
			{-1, 0},
			{0, -1},
			{0, 0},
			{-1, 0},
			{0, -1},
		}),
		H:       []float64{0.5, 0.5, 1, 0, 0},
		SocDims: []int{3},
	})

	require.Equal(t, Optimal, r.Status, "status: %v", r.Status)
	require.InDelta(t, -0.5, r.X[0], 1e-6)
	require.InDelta(t, -0.5, r.X[1], 1e-6)
	require.InDelta(t, -1, r.Info.PCost, 1e-6)
	require.Less(t, r.Info.PRes, 1e-8)
	require.Less(t, r.Info.DRes, 1e-8)

	// The slacks satisfy Gx + s = h in the original scaling.
	g := [][]float64{{-1, 0}, {0, -1}, {0, 0}, {-1, 0}, {0, -1}}
	h := []float64{0.5, 0.5, 1, 0, 0}
	for i := range h {
		gx := g[i][0]*r.X[0] + g[i][1]*r.X[1]
		require.InDelta(t, h[i], gx+r.S[i], 1e-6, "slack row %d", i)
	}
}

// minimize x₁+2x₂ subject to x₁+x₂ = 1, x ≥ 0: equality constraints
// exercised alongside the orthant, optimum (1, 0) with cost 1.
func TestSolveEqualityLP(t *testing.T) {
	r := solve(t, Problem{
		C: []float64{1, 2},
		G: sparse.FromDense([][]float64{
			{-1, 0},
			{0, -1},
		}),
		H: []float64{0, 0},
		A: sparse.FromDense([][]float64{
			{1, 1},
		}),
		B: []float64{1},
	})

	require.Equal(t, Optimal, r.Status, "status: %v", r.Status)
	require.InDelta(t, 1, r.X[0], 1e-6)
	require.InDelta(t, 0, r.X[1], 1e-6)
	require.InDelta(t, 1, r.Info.PCost, 1e-6)
	require.InDelta(t, 1, r.X[0]+r.X[1], 1e-7)
}

// x ≤ −1 and x ≥ 1 cannot hold together: the homogeneous embedding
// produces a primal infeasibility certificate.
func TestSolvePrimalInfeasible(t *testing.T) {
	r := solve(t, Problem{
		C: []float64{1},
		G: sparse.FromDense([][]float64{
			{1},
			{-1},
		}),
		H: []float64{-1, -1},
	})

	switch r.Status {
	case PrimalInfeasible, CloseToPrimalInfeasible:
	default:
		t.Fatalf("expected primal infeasibility, got %v", r.Status)
	}
	require.True(t, r.Info.PInf)
	require.False(t, math.IsNaN(r.Info.PInfRes))
	require.Less(t, r.Info.PInfRes, 1e-4)
}

// minimize −x subject to x ≥ 0 is unbounded below: the embedding
// produces a dual infeasibility certificate.
func TestSolveDualInfeasible(t *testing.T) {
	r := solve(t, Problem{
		C: []float64{-1},
		G: sparse.FromDense([][]float64{
			{-1},
		}),
		H: []float64{0},
	})

	switch r.Status {
	case DualInfeasible, CloseToDualInfeasible:
	default:
		t.Fatalf("expected dual infeasibility, got %v", r.Status)
	}
	require.True(t, r.Info.DInf)
	require.False(t, math.IsNaN(r.Info.DInfRes))
	require.Less(t, r.Info.DInfRes, 1e-4)
}

// A badly scaled LP: equilibration and iterative refinement keep the
// directions accurate enough to converge, and the refinement counters
// of the last iteration are recorded.
func TestSolveIllConditioned(t *testing.T) {
	r := solve(t, Problem{
		C: []float64{-1e4, -1e-3},
		G: sparse.FromDense([][]float64{
			{1e4, 0},
			{0, 1e-3},
			{1e2, 1e-5},
		}),
		H: []float64{1e4, 1e-3, 2e2},
	})

	require.Equal(t, Optimal, r.Status, "status: %v", r.Status)
	require.InDelta(t, 1, r.X[0], 1e-4)
	require.InDelta(t, 1, r.X[1], 1e-1)
	require.Less(t, r.Info.PRes, 1e-8)
	require.GreaterOrEqual(t, r.Info.NItRef1, 0)
	require.GreaterOrEqual(t, r.Info.NItRef2, 0)
	require.GreaterOrEqual(t, r.Info.NItRef3, 0)
	require.LessOrEqual(t, r.Info.NItRef1, DefaultSettings().NItRef)
}

func TestSolveRespectsMaxIt(t *testing.T) {
	set := DefaultSettings()
	set.MaxIt = 1
	set.FeasTolInacc = 1e-12 // keep the relaxed exit out of reach
	set.AbsTolInacc = 1e-12
	set.RelTolInacc = 1e-12
	r := solve(t, Problem{
		C: []float64{-1, -1},
		G: sparse.FromDense([][]float64{
			{1, 0},
			{0, 1},
		}),
		H:        []float64{1, 1},
		Settings: &set,
	})
	require.Equal(t, MaxIterations, r.Status)
	require.LessOrEqual(t, r.Info.Iter, 1)
}

func TestNewValidation(t *testing.T) {
	g := sparse.FromDense([][]float64{{1, 0}, {0, 1}})

	cases := []struct {
		name string
		p    Problem
	}{
		{"missing G", Problem{C: []float64{1}}},
		{"weight size", Problem{C: []float64{1}, G: g, H: []float64{1, 1}}},
		{"rhs size", Problem{C: []float64{1, 1}, G: g, H: []float64{1}}},
		{"cone too small", Problem{C: []float64{1, 1}, G: g, H: []float64{1, 1}, SocDims: []int{1}}},
		{"cone too large", Problem{C: []float64{1, 1}, G: g, H: []float64{1, 1}, SocDims: []int{3}}},
		{"eq mismatch", Problem{C: []float64{1, 1}, G: g, H: []float64{1, 1},
			A: sparse.FromDense([][]float64{{1}}), B: []float64{1}}},
		{"non finite", Problem{C: []float64{1, math.NaN()}, G: g, H: []float64{1, 1}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.p.New()
			require.Error(t, err)
		})
	}
}

func TestSolverSingleUse(t *testing.T) {
	p := Problem{
		C: []float64{-1},
		G: sparse.FromDense([][]float64{{1}}),
		H: []float64{1},
	}
	sv, err := p.New()
	require.NoError(t, err)
	sv.Solve()
	require.Panics(t, func() { sv.Solve() })
}
