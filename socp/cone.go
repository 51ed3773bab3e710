// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package socp

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Jordan-algebra arithmetic on the product cone K = R₊ˡ × Q^{d₁} × … × Q^{dₖ}.
// Every operation works block-wise: elementwise over the first l
// coordinates, then one second-order block per cone.

// conicProduct computes w = u ∘ v and returns the accumulated absolute
// value of the block heads (a weighted 1-norm of the product).
//   - orthant: wᵢ = uᵢvᵢ
//   - cone:    w₀ = u·v, w₁ = u₀v₁ + v₀u₁
func (sv *Solver) conicProduct(u, v, w []float64) float64 {
	mu := zero
	for i := 0; i < sv.nPos; i++ {
		w[i] = u[i] * v[i]
		mu += math.Abs(w[i])
	}
	for ci := range sv.cones {
		c := &sv.cones[ci]
		k := c.start
		uk, vk := u[k:k+c.dim], v[k:k+c.dim]
		w[k] = floats.Dot(uk, vk)
		mu += math.Abs(w[k])
		u0, v0 := uk[0], vk[0]
		for t := 1; t < c.dim; t++ {
			w[k+t] = u0*vk[t] + v0*uk[t]
		}
	}
	return mu
}

// conicDivision computes v = u ∖ w, the inverse of the conic product:
// u ∘ (u ∖ w) = w whenever u lies in the interior of the cone.
func (sv *Solver) conicDivision(u, w, v []float64) {
	for i := 0; i < sv.nPos; i++ {
		v[i] = w[i] / u[i]
	}
	for ci := range sv.cones {
		c := &sv.cones[ci]
		k := c.start
		uk, wk := u[k:k+c.dim], w[k:k+c.dim]
		u0, w0 := uk[0], wk[0]
		rho := u0*u0 - floats.Dot(uk[1:], uk[1:])
		zeta := floats.Dot(uk[1:], wk[1:])
		factor := (zeta/u0 - w0) / rho
		v[k] = (u0*w0 - zeta) / rho
		for t := 1; t < c.dim; t++ {
			v[k+t] = factor*uk[t] + wk[t]/u0
		}
	}
}

// bringToCone shifts r along the identity element of the product cone so
// that every block lies strictly inside its cone:
//
//	r ← r + (1 + α)·e,  α = max(0, worst residual)
//
// where the residual is −rᵢ on the orthant and ‖r₁‖ − r₀ on each cone.
func (sv *Solver) bringToCone(r []float64) {
	alpha := zero
	for i := 0; i < sv.nPos; i++ {
		if -r[i] > alpha {
			alpha = -r[i]
		}
	}
	for ci := range sv.cones {
		c := &sv.cones[ci]
		k := c.start
		if cres := floats.Norm(r[k+1:k+c.dim], 2) - r[k]; cres > alpha {
			alpha = cres
		}
	}
	alpha += one
	for i := 0; i < sv.nPos; i++ {
		r[i] += alpha
	}
	for ci := range sv.cones {
		r[sv.cones[ci].start] += alpha
	}
}
