// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package socp

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// lineSearch returns the largest step α ∈ [StepMin, StepMax] keeping
// (s, z, τ, κ) strictly inside the product cone, where ds and dz are the
// scaled directions 𝐖∖Δs and 𝐖Δz measured against λ.
func (sv *Solver) lineSearch(lambda, ds, dz []float64, tau, dtau, kap, dkap float64) float64 {
	const eps = 1e-13

	// Orthant: the most negative of Δsᵢ/λᵢ and Δzᵢ/λᵢ bounds the step.
	alpha := ten
	if sv.nPos > 0 {
		rhomin, sigmamin := math.Inf(1), math.Inf(1)
		for i := 0; i < sv.nPos; i++ {
			if r := ds[i] / lambda[i]; r < rhomin {
				rhomin = r
			}
			if r := dz[i] / lambda[i]; r < sigmamin {
				sigmamin = r
			}
		}
		m := math.Min(rhomin, sigmamin)
		if m < 0 {
			alpha = one / -m
		} else {
			alpha = one / eps
		}
	}

	// τ and κ.
	if r := -tau / dtau; r > 0 && r < alpha {
		alpha = r
	}
	if r := -kap / dkap; r > 0 && r < alpha {
		alpha = r
	}

	// Second-order cones.
	for ci := range sv.cones {
		c := &sv.cones[ci]
		k := c.start
		lk := lambda[k : k+c.dim]
		dsk := ds[k : k+c.dim]
		dzk := dz[k : k+c.dim]

		lknorm2 := lk[0]*lk[0] - floats.Dot(lk[1:], lk[1:])
		if lknorm2 <= 0 {
			continue
		}
		lknorm := math.Sqrt(lknorm2)
		lkbar := sv.lsBar[:c.dim]
		for t := range lk {
			lkbar[t] = lk[t] / lknorm
		}

		bs := lkbar[0]*dsk[0] - floats.Dot(lkbar[1:], dsk[1:])
		bz := lkbar[0]*dzk[0] - floats.Dot(lkbar[1:], dzk[1:])

		rho := sv.lsRho[:c.dim]
		rho[0] = bs / lknorm
		factor := (bs + dsk[0]) / (lkbar[0] + one)
		for t := 1; t < c.dim; t++ {
			rho[t] = (dsk[t] - factor*lkbar[t]) / lknorm
		}
		rhonorm := floats.Norm(rho[1:], 2) - rho[0]

		sig := sv.lsSig[:c.dim]
		sig[0] = bz / lknorm
		factor = (bz + dzk[0]) / (lkbar[0] + one)
		for t := 1; t < c.dim; t++ {
			sig[t] = (dzk[t] - factor*lkbar[t]) / lknorm
		}
		signorm := floats.Norm(sig[1:], 2) - sig[0]

		if conicStep := math.Max(0, math.Max(rhonorm, signorm)); conicStep > 0 {
			if step := one / conicStep; step < alpha {
				alpha = step
			}
		}
	}

	return math.Min(math.Max(alpha, sv.set.StepMin), sv.set.StepMax)
}
