// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package socp

import (
	"math"
	"testing"

	"github.com/curioloop/conic/sparse"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

// buildSolver constructs a solver over R₊ˡ × Q^{d₁} × … with neutral
// problem data, for exercising the cone and scaling kernels directly.
func buildSolver(t *testing.T, l int, socDims []int) *Solver {
	t.Helper()
	m := l
	for _, d := range socDims {
		m += d
	}
	g := make([][]float64, m)
	for i := range g {
		g[i] = make([]float64, m)
		g[i][i] = -1
	}
	p := Problem{
		C:       make([]float64, m),
		G:       sparse.FromDense(g),
		H:       make([]float64, m),
		SocDims: socDims,
	}
	sv, err := p.New()
	require.NoError(t, err)
	return sv
}

func TestConicProductOrthant(t *testing.T) {
	sv := buildSolver(t, 3, nil)
	u := []float64{1, -2, 0.5}
	v := []float64{4, 0.25, -2}
	w := make([]float64, 3)
	mu := sv.conicProduct(u, v, w)
	require.Equal(t, []float64{4, -0.5, -1}, w)
	require.InDelta(t, 5.5, mu, 1e-15)
}

func TestConicProductHeads(t *testing.T) {
	sv := buildSolver(t, 2, []int{3})
	u := []float64{1, 2, 2, 0.5, -0.3}
	v := []float64{0.7, -1.3, 0.4, -0.2, 0.9}
	w := make([]float64, 5)
	mu := sv.conicProduct(u, v, w)

	// Cone head is the full block dot product.
	wantHead := 2*0.4 + 0.5*-0.2 + -0.3*0.9
	require.InDelta(t, wantHead, w[2], 1e-15)
	// Cone tail w₁ = u₀v₁ + v₀u₁.
	require.InDelta(t, 2*-0.2+0.4*0.5, w[3], 1e-15)
	require.InDelta(t, 2*0.9+0.4*-0.3, w[4], 1e-15)
	require.InDelta(t, math.Abs(w[0])+math.Abs(w[1])+math.Abs(wantHead), mu, 1e-15)
}

func TestConicDivisionRoundTrip(t *testing.T) {
	sv := buildSolver(t, 2, []int{3, 4})

	// u strictly inside the cone.
	u := []float64{1.5, 0.8, 2, 0.5, -0.3, 3, 1, -0.5, 0.25}
	v := []float64{0.7, -1.3, 0.4, -0.2, 0.9, -0.1, 0.6, 1.1, -0.8}
	w := make([]float64, len(u))
	got := make([]float64, len(u))

	sv.conicProduct(u, v, w)
	sv.conicDivision(u, w, got)
	require.True(t, floats.EqualApprox(v, got, 1e-12))
}

func TestBringToCone(t *testing.T) {
	sv := buildSolver(t, 2, []int{3})
	r := []float64{-1, 0.5, 0.2, 5, 1}
	sv.bringToCone(r)

	worst := math.Sqrt(26) - 0.2 // the cone residual dominates
	require.InDelta(t, -1+1+worst, r[0], 1e-12)
	require.InDelta(t, 0.5+1+worst, r[1], 1e-12)
	require.InDelta(t, 0.2+1+worst, r[2], 1e-12)
	require.Equal(t, 5.0, r[3])
	require.Equal(t, 1.0, r[4])

	// Strict interior with at least a unit margin.
	for i := 0; i < 2; i++ {
		require.Greater(t, r[i], 0.0)
	}
	require.GreaterOrEqual(t, r[2]-math.Sqrt(r[3]*r[3]+r[4]*r[4]), 1-1e-12)
}

func TestBringToConeInterior(t *testing.T) {
	sv := buildSolver(t, 1, []int{3})
	r := []float64{2, 5, 1, 1}
	sv.bringToCone(r)
	// Already interior: a plain unit shift on orthant and cone head.
	require.Equal(t, []float64{3, 6, 1, 1}, r)
}
