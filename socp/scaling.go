// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package socp

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// updateScalings recomputes the Nesterov–Todd scaling 𝐖 of the product
// cone from the current iterates and writes λ = 𝐖z. It reports false as
// soon as a slack or multiplier has left its cone, which the caller must
// treat as a fatal numerical breakdown.
//
// For the orthant the scaling is diagonal, 𝐖ᵢᵢ = √(sᵢ/zᵢ). For each
// second-order cone the scaled point
//
//	γ = √((1 + s̄·z̄)/2), a = (s̄₀+z̄₀)/(2γ), q = (s̄₁−z̄₁)/(2γ)
//
// is computed from the normalized s̄ = s/√s_res, z̄ = z/√z_res, and the
// constants of the sparse two-column expansion of 𝐖² are derived:
//
//	c  = (1+a) + w/(1+a)
//	d  = 1 + 2/(1+a) + w/(1+a)²
//	d1 = max(0, ½(a² + w(1 − c²/(1 + w·d))))
//	u0² = a² + w − d1, u1² = c²/u0², v1² = c²/u0² − d
//
// so that 𝐖² = η²(D + uuᵀ − vvᵀ) with D = diag(d1, 1, …, 1),
// u = [u0; u1·q] and v = [0; v1·q].
func (sv *Solver) updateScalings(s, z, lambda []float64) bool {
	lp := &sv.lp
	for i := 0; i < lp.dim; i++ {
		lp.v[i] = s[i] / z[i]
		lp.w[i] = math.Sqrt(lp.v[i])
	}

	for ci := range sv.cones {
		c := &sv.cones[ci]
		k := c.start
		sk, zk := s[k:k+c.dim], z[k:k+c.dim]

		sres := sk[0]*sk[0] - floats.Dot(sk[1:], sk[1:])
		zres := zk[0]*zk[0] - floats.Dot(zk[1:], zk[1:])
		if sres <= 0 || zres <= 0 {
			return false
		}
		snorm, znorm := math.Sqrt(sres), math.Sqrt(zres)
		c.etaSq = snorm / znorm
		c.eta = math.Sqrt(c.etaSq)

		for t := 0; t < c.dim; t++ {
			c.skbar[t] = sk[t] / snorm
			c.zkbar[t] = zk[t] / znorm
		}

		gamma := math.Sqrt(0.5 * (one + floats.Dot(c.skbar, c.zkbar)))
		c.a = (c.skbar[0] + c.zkbar[0]) / (2 * gamma)
		for t := 1; t < c.dim; t++ {
			c.q[t-1] = (c.skbar[t] - c.zkbar[t]) / (2 * gamma)
		}
		c.w = floats.Dot(c.q, c.q)

		oneA := one + c.a
		cc := oneA + c.w/oneA
		dd := one + 2/oneA + c.w/(oneA*oneA)
		c.d1 = math.Max(0, 0.5*(c.a*c.a+c.w*(one-cc*cc/(one+c.w*dd))))
		u0sq := c.a*c.a + c.w - c.d1
		c2byu02 := cc * cc / u0sq
		if c2byu02-dd <= 0 {
			return false
		}
		c.v1 = math.Sqrt(c2byu02 - dd)
		c.u1 = math.Sqrt(c2byu02)
		c.u0 = math.Sqrt(u0sq)
	}

	sv.scale(z, lambda)
	return true
}

// scale is the fast multiplication λ = 𝐖z that never forms 𝐖.
func (sv *Solver) scale(z, lambda []float64) {
	lp := &sv.lp
	for i := 0; i < lp.dim; i++ {
		lambda[i] = lp.w[i] * z[i]
	}
	for ci := range sv.cones {
		c := &sv.cones[ci]
		k := c.start
		zk := z[k : k+c.dim]
		zeta := floats.Dot(c.q, zk[1:])
		factor := zk[0] + zeta/(one+c.a)
		lambda[k] = c.eta * (c.a*zk[0] + zeta)
		for t := 1; t < c.dim; t++ {
			lambda[k+t] = c.eta * (zk[t] + factor*c.q[t-1])
		}
	}
}

// scale2add computes y += 𝐖²x over the expanded variables without
// forming the dense cone blocks. On the two auxiliary coordinates of
// each cone it applies the expansion rows, so that a vector whose
// auxiliaries solve those rows to zero receives exactly the dense 𝐖²
// product on its true coordinates.
func (sv *Solver) scale2add(x, y []float64) {
	lp := &sv.lp
	for i := 0; i < lp.dim; i++ {
		y[i] += lp.v[i] * x[i]
	}
	for ci := range sv.cones {
		c := &sv.cones[ci]
		i1 := c.estart
		i2 := i1 + 1
		i3 := i1 + c.dim
		i4 := i3 + 1

		y[i1] += c.etaSq * (c.d1*x[i1] + c.u0*x[i4])
		t := c.v1*x[i3] + c.u1*x[i4]
		qtx := zero
		for j := 0; j < c.dim-1; j++ {
			y[i2+j] += c.etaSq * (x[i2+j] + t*c.q[j])
			qtx += c.q[j] * x[i2+j]
		}
		y[i3] += c.etaSq * (c.v1*qtx + x[i3])
		y[i4] += c.etaSq * (c.u0*x[i1] + c.u1*qtx - x[i4])
	}
}
