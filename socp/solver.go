// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package socp solves convex conic programs over products of the
// non-negative orthant and second-order cones with a primal-dual
// interior-point method.
//
// The solver embeds the primal-dual pair in the homogeneous self-dual
// model with the scalars (τ, κ), so optimality, primal infeasibility and
// dual infeasibility all terminate with well-defined certificates:
//
//	τ > 0, κ → 0 : (x,y,z,s)/τ optimal
//	τ → 0, κ > 0 : infeasibility certificate from (y,z) or x
//
// Search directions follow Mehrotra's predictor-corrector scheme under
// Nesterov–Todd scaling: each iteration factorizes one KKT matrix and
// solves it for three right hand sides (a static one reused in the τ
// update, the affine predictor and the centering corrector), combining
// the component directions through Δτ and Δκ. The scaling of every
// second-order cone enters the KKT matrix through a sparse two-column
// expansion so a generic sparse LDLᵀ factorization can process it; the
// two auxiliary unknowns per cone are stripped from every solution.
//
// A. Domahidi, E. Chu, S. Boyd: "ECOS: An SOCP solver for embedded
// systems". ECC 2013.
package socp

import (
	"math"

	"github.com/curioloop/conic/ldl"
	"github.com/curioloop/conic/sparse"
	"gonum.org/v1/gonum/floats"
)

// Solver holds the problem data in equilibrated form and every buffer
// of the interior-point iteration. A Solver runs exactly one solve; it
// is not safe for concurrent use.
type Solver struct {
	set Settings
	dims

	c, h, b        []float64
	A, G, At, Gt   *sparse.Matrix
	xEquil         []float64
	aEquil, gEquil []float64

	lp    lpCone
	cones []socCone

	K    *sparse.Matrix
	ldlt *ldl.Factorization

	// Iterate state.
	x, y, z, s []float64
	lambda     []float64
	tau, kap   float64

	// Residuals and norms of the current iterate.
	rx, ry, rz          []float64
	hresx, hresy, hresz float64
	rt                  float64
	nx, ny, nz, ns      float64
	cx, by, hz          float64
	resx0, resy0, resz0 float64

	// Right hand sides and component directions.
	rhs1, rhs2    []float64
	dx1, dy1, dz1 []float64
	dx2, dy2, dz2 []float64

	dsByW    []float64 // 𝐖∖Δs (predictor), then λ∖ds (corrector)
	wTimesDz []float64 // 𝐖Δz
	ds       []float64 // unscaled Δs

	ds1, ds2 []float64

	// KKT solve scratch.
	kktSol, kktRef, kktErr []float64
	gdx                    []float64

	// Line search scratch.
	lsBar, lsRho, lsSig []float64

	info, bestInfo Information
	solved         bool
}

// Solve runs the interior-point iteration. It may be called once per
// Solver; the returned slices alias the solver state.
func (sv *Solver) Solve() *Result {
	if sv.solved {
		panic("solver instance supports a single solve")
	}
	sv.solved = true

	floats.Div(sv.c, sv.xEquil)

	sv.resx0 = math.Max(one, floats.Norm(sv.c, 2))
	sv.resy0 = math.Max(one, floats.Norm(sv.b, 2))
	sv.resz0 = math.Max(one, floats.Norm(sv.h, 2))

	// rhs1 = [0; b; h], rhs2 = [-c; 0; 0], both in expanded layout.
	for i := range sv.rhs1 {
		sv.rhs1[i] = 0
		sv.rhs2[i] = 0
	}
	copy(sv.rhs1[sv.nVar:], sv.b)
	zseg := sv.rhs1[sv.nVar+sv.nEq:]
	copy(zseg[:sv.nPos], sv.h[:sv.nPos])
	for ci := range sv.cones {
		c := &sv.cones[ci]
		copy(zseg[c.estart:c.estart+c.dim], sv.h[c.start:c.start+c.dim])
	}
	for i := 0; i < sv.nVar; i++ {
		sv.rhs2[i] = -sv.c[i]
	}

	status := NotConverged
	sv.tau, sv.kap = one, one
	sv.bestInfo.PRes = math.Inf(1)
	sv.bestInfo.DRes = math.Inf(1)

	if err := sv.initKKT(); err != nil {
		status = NumericalBreakdown
	} else {
		status = sv.mainLoop()
	}

	sv.backscale()
	sv.unsetEquilibration()

	return &Result{
		Status: status,
		X:      sv.x, Y: sv.y, Z: sv.z, S: sv.s,
		Info: sv.info,
	}
}

func (sv *Solver) mainLoop() Status {
	// Starting point: xhat minimizes ‖Gx−h‖ over Ax=b, shat is its
	// residual brought to the cone; (yhat, zhat) analogously from the
	// dual least-squares problem.
	sv.info.NItRef1 = sv.solveKKT(sv.rhs1, sv.dx1, sv.dy1, sv.dz1, true)
	copy(sv.x, sv.dx1)
	for i := range sv.s {
		sv.s[i] = -sv.dz1[i]
	}
	sv.bringToCone(sv.s)

	sv.info.NItRef2 = sv.solveKKT(sv.rhs2, sv.dx2, sv.dy2, sv.dz2, true)
	copy(sv.y, sv.dy2)
	copy(sv.z, sv.dz2)
	sv.bringToCone(sv.z)

	sv.tau, sv.kap = one, one

	// All subsequent solves of the first system use [-c; b; h].
	copy(sv.rhs1[:sv.nVar], sv.rhs2[:sv.nVar])

	for iter := 0; ; iter++ {
		sv.computeResiduals()
		sv.updateStatistics(iter)

		if st := sv.checkExitConditions(false); st != NotConverged {
			return st
		}
		if iter == sv.set.MaxIt {
			if st := sv.checkExitConditions(true); st != NotConverged {
				return closeTo(st)
			}
			sv.info = sv.bestInfo
			return MaxIterations
		}

		if !sv.updateScalings(sv.s, sv.z, sv.lambda) {
			return NumericalBreakdown
		}
		if err := sv.updateKKT(); err != nil {
			return NumericalBreakdown
		}

		sv.info.NItRef1 = sv.solveKKT(sv.rhs1, sv.dx1, sv.dy1, sv.dz1, false)

		// Predictor.
		sv.rhsAffine()
		sv.info.NItRef2 = sv.solveKKT(sv.rhs2, sv.dx2, sv.dy2, sv.dz2, false)

		dtauDenom := sv.kap/sv.tau -
			floats.Dot(sv.c, sv.dx1) - floats.Dot(sv.b, sv.dy1) - floats.Dot(sv.h, sv.dz1)
		dtauAff := (sv.rt - sv.kap +
			floats.Dot(sv.c, sv.dx2) + floats.Dot(sv.b, sv.dy2) + floats.Dot(sv.h, sv.dz2)) / dtauDenom

		floats.AddScaled(sv.dz2, dtauAff, sv.dz1)
		sv.scale(sv.dz2, sv.wTimesDz)
		for i := range sv.dsByW {
			sv.dsByW[i] = -sv.wTimesDz[i] - sv.lambda[i]
		}
		dkapAff := -sv.kap - sv.kap/sv.tau*dtauAff

		stepAff := sv.lineSearch(sv.lambda, sv.dsByW, sv.wTimesDz, sv.tau, dtauAff, sv.kap, dkapAff)
		sv.info.StepAff = stepAff

		sigma := (one - stepAff) * (one - stepAff) * (one - stepAff)
		sigma = math.Min(math.Max(sigma, sv.set.SigmaMin), sv.set.SigmaMax)
		sv.info.Sigma = sigma

		// Corrector.
		sv.rhsCombined(sigma)
		sv.info.NItRef3 = sv.solveKKT(sv.rhs2, sv.dx2, sv.dy2, sv.dz2, false)

		bkap := sv.kap*sv.tau + dkapAff*dtauAff - sigma*sv.info.Mu
		dtau := ((one-sigma)*sv.rt - bkap/sv.tau +
			floats.Dot(sv.c, sv.dx2) + floats.Dot(sv.b, sv.dy2) + floats.Dot(sv.h, sv.dz2)) / dtauDenom

		floats.AddScaled(sv.dx2, dtau, sv.dx1)
		floats.AddScaled(sv.dy2, dtau, sv.dy1)
		floats.AddScaled(sv.dz2, dtau, sv.dz1)

		// dsByW holds λ∖ds from the corrector right hand side.
		sv.scale(sv.dz2, sv.wTimesDz)
		for i := range sv.dsByW {
			sv.dsByW[i] = -(sv.dsByW[i] + sv.wTimesDz[i])
		}
		dkap := -(bkap + sv.kap*dtau) / sv.tau

		step := sv.set.Gamma * sv.lineSearch(sv.lambda, sv.dsByW, sv.wTimesDz, sv.tau, dtau, sv.kap, dkap)
		sv.info.Step = step

		// Δs = 𝐖(𝐖∖Δs)
		sv.scale(sv.dsByW, sv.ds)

		floats.AddScaled(sv.x, step, sv.dx2)
		floats.AddScaled(sv.y, step, sv.dy2)
		floats.AddScaled(sv.z, step, sv.dz2)
		floats.AddScaled(sv.s, step, sv.ds)
		sv.kap += step * dkap
		sv.tau += step * dtau
	}
}

// computeResiduals evaluates
//
//	rx = -Aᵀy - Gᵀz - τc    hresx = ‖-Aᵀy - Gᵀz‖
//	ry =  Ax - τb           hresy = ‖Ax‖
//	rz =  s + Gx - τh       hresz = ‖s + Gx‖
//	rt =  κ + c·x + b·y + h·z
//
// together with the iterate norms.
func (sv *Solver) computeResiduals() {
	for i := range sv.rx {
		sv.rx[i] = 0
	}
	sv.At.AddMulVec(sv.rx, -one, sv.y)
	sv.Gt.AddMulVec(sv.rx, -one, sv.z)
	sv.hresx = floats.Norm(sv.rx, 2)
	floats.AddScaled(sv.rx, -sv.tau, sv.c)

	if sv.nEq > 0 {
		sv.A.MulVec(sv.ry, sv.x)
		sv.hresy = floats.Norm(sv.ry, 2)
		floats.AddScaled(sv.ry, -sv.tau, sv.b)
	} else {
		sv.hresy = 0
	}

	copy(sv.rz, sv.s)
	sv.G.AddMulVec(sv.rz, one, sv.x)
	sv.hresz = floats.Norm(sv.rz, 2)
	floats.AddScaled(sv.rz, -sv.tau, sv.h)

	sv.cx = floats.Dot(sv.c, sv.x)
	sv.by = floats.Dot(sv.b, sv.y)
	sv.hz = floats.Dot(sv.h, sv.z)
	sv.rt = sv.kap + sv.cx + sv.by + sv.hz

	sv.nx = floats.Norm(sv.x, 2)
	sv.ny = floats.Norm(sv.y, 2)
	sv.nz = floats.Norm(sv.z, 2)
	sv.ns = floats.Norm(sv.s, 2)
}

// updateStatistics refreshes the iteration record: costs, duality gap,
// barrier parameter, residual measures and the infeasibility measures
// whose certificate preconditions hold.
func (sv *Solver) updateStatistics(iter int) {
	info := &sv.info
	info.Iter = iter

	info.Gap = floats.Dot(sv.s, sv.z)
	info.Mu = (info.Gap + sv.kap*sv.tau) / float64(sv.deg+1)
	info.KapOverTau = sv.kap / sv.tau
	info.PCost = sv.cx / sv.tau
	info.DCost = -(sv.hz + sv.by) / sv.tau

	switch {
	case info.PCost < 0:
		info.RelGap = info.Gap / -info.PCost
	case info.DCost > 0:
		info.RelGap = info.Gap / info.DCost
	default:
		info.RelGap = math.NaN()
	}

	nry := zero
	if sv.nEq > 0 {
		nry = floats.Norm(sv.ry, 2) / math.Max(sv.resy0+sv.nx, one)
	}
	nrz := floats.Norm(sv.rz, 2) / math.Max(sv.resz0+sv.nx+sv.ns, one)
	info.PRes = math.Max(nry, nrz) / sv.tau
	info.DRes = floats.Norm(sv.rx, 2) / math.Max(sv.resx0+sv.ny+sv.nz, one) / sv.tau

	info.PInfRes = math.NaN()
	if (sv.hz+sv.by)/math.Max(sv.ny+sv.nz, one) < -sv.set.RelTol {
		info.PInfRes = sv.hresx / math.Max(sv.ny+sv.nz, one)
	}
	info.DInfRes = math.NaN()
	if sv.cx/math.Max(sv.nx, one) < -sv.set.RelTol {
		info.DInfRes = math.Max(
			sv.hresy/math.Max(sv.nx, one),
			sv.hresz/math.Max(sv.nx+sv.ns, one))
	}

	if math.Max(info.PRes, info.DRes) < math.Max(sv.bestInfo.PRes, sv.bestInfo.DRes) {
		sv.bestInfo = *info
	}
}

// checkExitConditions tests the termination criteria against the normal
// tolerances, or the relaxed ones when reduced is set, and returns the
// matching status or NotConverged.
func (sv *Solver) checkExitConditions(reduced bool) Status {
	feastol, abstol, reltol := sv.set.FeasTol, sv.set.AbsTol, sv.set.RelTol
	if reduced {
		feastol, abstol, reltol = sv.set.FeasTolInacc, sv.set.AbsTolInacc, sv.set.RelTolInacc
	}
	info := &sv.info

	switch {
	case (-sv.cx > 0 || -sv.by-sv.hz >= -abstol) &&
		info.PRes < feastol && info.DRes < feastol &&
		(info.Gap < abstol || info.RelGap < reltol):
		info.PInf, info.DInf = false, false
		return Optimal

	case !math.IsNaN(info.DInfRes) && info.DInfRes < feastol && sv.tau < sv.kap:
		info.PInf, info.DInf = false, true
		return DualInfeasible

	case !math.IsNaN(info.PInfRes) && info.PInfRes < feastol &&
		(sv.tau < sv.kap || (sv.tau < feastol && sv.kap < feastol)):
		info.PInf, info.DInf = true, false
		return PrimalInfeasible
	}
	return NotConverged
}

func closeTo(st Status) Status {
	switch st {
	case Optimal:
		return CloseToOptimal
	case PrimalInfeasible:
		return CloseToPrimalInfeasible
	case DualInfeasible:
		return CloseToDualInfeasible
	}
	return st
}

// rhsAffine prepares the predictor right hand side [rx; -ry; s - rz] in
// the expanded layout, the two auxiliary slots of each cone zero.
func (sv *Solver) rhsAffine() {
	copy(sv.rhs2[:sv.nVar], sv.rx)
	for i := 0; i < sv.nEq; i++ {
		sv.rhs2[sv.nVar+i] = -sv.ry[i]
	}
	zseg := sv.rhs2[sv.nVar+sv.nEq:]
	for i := 0; i < sv.nPos; i++ {
		zseg[i] = sv.s[i] - sv.rz[i]
	}
	for ci := range sv.cones {
		c := &sv.cones[ci]
		for t := 0; t < c.dim; t++ {
			zseg[c.estart+t] = sv.s[c.start+t] - sv.rz[c.start+t]
		}
		zseg[c.estart+c.dim] = 0
		zseg[c.estart+c.dim+1] = 0
	}
}

// rhsCombined turns the affine right hand side into the corrector one:
//
//	ds = λ∘λ + (𝐖∖Δs_aff)∘(𝐖Δz_aff) - σμ·e
//	dz = -(1-σ)·rz + 𝐖(λ∖ds)
//
// where the σμ shift applies to every orthant coordinate but only to the
// head of each cone. λ∖ds is left in dsByW for the direction combination.
func (sv *Solver) rhsCombined(sigma float64) {
	sv.conicProduct(sv.lambda, sv.lambda, sv.ds1)
	sv.conicProduct(sv.dsByW, sv.wTimesDz, sv.ds2)

	sigmaMu := sigma * sv.info.Mu
	for i := 0; i < sv.nPos; i++ {
		sv.ds1[i] += sv.ds2[i] - sigmaMu
	}
	for ci := range sv.cones {
		c := &sv.cones[ci]
		k := c.start
		sv.ds1[k] += sv.ds2[k] - sigmaMu
		for t := 1; t < c.dim; t++ {
			sv.ds1[k+t] += sv.ds2[k+t]
		}
	}

	sv.conicDivision(sv.lambda, sv.ds1, sv.dsByW)
	sv.scale(sv.dsByW, sv.ds1)

	oneMinusSigma := one - sigma
	floats.Scale(oneMinusSigma, sv.rhs2[:sv.nVar+sv.nEq])
	zseg := sv.rhs2[sv.nVar+sv.nEq:]
	for i := 0; i < sv.nPos; i++ {
		zseg[i] = -oneMinusSigma*sv.rz[i] + sv.ds1[i]
	}
	for ci := range sv.cones {
		c := &sv.cones[ci]
		for t := 0; t < c.dim; t++ {
			zseg[c.estart+t] = -oneMinusSigma*sv.rz[c.start+t] + sv.ds1[c.start+t]
		}
		zseg[c.estart+c.dim] = 0
		zseg[c.estart+c.dim+1] = 0
	}
}
