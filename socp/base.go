// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package socp

const (
	zero = 0.0
	one  = 1.0
	ten  = 10.0
)

// Status is the final state of a solve.
type Status int

const (
	// NotConverged no exit condition met yet. Internal, never returned.
	NotConverged Status = iota
	// Optimal solved to the requested tolerances.
	Optimal
	// CloseToOptimal solved to the relaxed tolerances only.
	CloseToOptimal
	// PrimalInfeasible certificate of primal infeasibility found.
	PrimalInfeasible
	// CloseToPrimalInfeasible certificate meets relaxed tolerances only.
	CloseToPrimalInfeasible
	// DualInfeasible certificate of dual infeasibility (unboundedness) found.
	DualInfeasible
	// CloseToDualInfeasible certificate meets relaxed tolerances only.
	CloseToDualInfeasible
	// MaxIterations iteration limit reached without convergence.
	MaxIterations
	// NumericalBreakdown an iterate left the cone, a scaling could not be
	// formed, or the KKT factorization failed.
	NumericalBreakdown
)

func (s Status) String() string {
	switch s {
	case NotConverged:
		return "not converged"
	case Optimal:
		return "optimal"
	case CloseToOptimal:
		return "close to optimal"
	case PrimalInfeasible:
		return "primal infeasible"
	case CloseToPrimalInfeasible:
		return "close to primal infeasible"
	case DualInfeasible:
		return "dual infeasible"
	case CloseToDualInfeasible:
		return "close to dual infeasible"
	case MaxIterations:
		return "maximum iterations reached"
	case NumericalBreakdown:
		return "numerical breakdown"
	}
	return "unknown"
}

// Settings control the interior-point iteration.
type Settings struct {
	// Gamma scales the final step length.
	Gamma float64
	// Delta is the static KKT regularization parameter.
	Delta float64
	// Eps is the regularization threshold.
	Eps float64
	// FeasTol is the primal/dual infeasibility tolerance.
	FeasTol float64
	// AbsTol is the absolute tolerance on the duality gap.
	AbsTol float64
	// RelTol is the relative tolerance on the duality gap.
	RelTol float64
	// FeasTolInacc, AbsTolInacc, RelTolInacc are the relaxed tolerances
	// against which "close to" termination is checked.
	FeasTolInacc float64
	AbsTolInacc  float64
	RelTolInacc  float64
	// NItRef bounds the iterative refinement steps per KKT solve.
	NItRef int
	// MaxIt bounds the interior-point iterations.
	MaxIt int
	// LinSysAcc is the relative accuracy demanded of search directions.
	LinSysAcc float64
	// IRErrFact is the factor by which refinement must shrink the error
	// to be worth continuing.
	IRErrFact float64
	// StepMin, StepMax clamp every line-search result.
	StepMin float64
	StepMax float64
	// SigmaMin, SigmaMax clamp the centering parameter: always center a
	// little, never center fully.
	SigmaMin float64
	SigmaMax float64
	// EquilIters is the number of equilibration sweeps.
	EquilIters int
}

// DefaultSettings returns the standard parameter set.
func DefaultSettings() Settings {
	return Settings{
		Gamma:        0.99,
		Delta:        2e-7,
		Eps:          1e13,
		FeasTol:      1e-8,
		AbsTol:       1e-8,
		RelTol:       1e-8,
		FeasTolInacc: 1e-4,
		AbsTolInacc:  5e-5,
		RelTolInacc:  5e-5,
		NItRef:       9,
		MaxIt:        100,
		LinSysAcc:    1e-14,
		IRErrFact:    6,
		StepMin:      1e-6,
		StepMax:      0.999,
		SigmaMin:     1e-4,
		SigmaMax:     1.0,
		EquilIters:   3,
	}
}

// Information records the state of the iteration that produced a result.
// PInfRes and DInfRes are NaN while the corresponding infeasibility
// certificate precondition does not hold.
type Information struct {
	PCost, DCost     float64
	PRes, DRes       float64
	Gap, RelGap      float64
	PInf, DInf       bool
	PInfRes, DInfRes float64
	Sigma, Mu        float64
	Step, StepAff    float64
	KapOverTau       float64
	Iter             int
	// Refinement steps used by the three KKT solves of the iteration:
	// the static right hand side, the predictor and the corrector.
	NItRef1, NItRef2, NItRef3 int
}

// dims collects the problem dimensions fixed at construction.
type dims struct {
	nVar  int // number of variables (n)
	nEq   int // number of equality constraints (p)
	nIneq int // number of conic inequalities (m)
	nPos  int // dimension of the positive orthant (l)
	nSoc  int // number of second-order cones
	mExp  int // nIneq + 2*nSoc, the expanded inequality dimension
	dimK  int // nVar + nEq + mExp
	deg   int // cone degree nPos + nSoc
}

// lpCone is the positive orthant block of the product cone.
type lpCone struct {
	dim    int
	w, v   []float64 // wᵢ = √(sᵢ/zᵢ), vᵢ = wᵢ²
	kktIdx []int     // value indices of the diagonal inside K
}

// socCone is one second-order cone block together with its
// Nesterov–Todd scaling state and sparse KKT expansion.
type socCone struct {
	dim    int
	start  int // offset of the cone inside the m-dimensional variables
	estart int // offset inside the expanded variables

	skbar, zkbar []float64

	a     float64 // scaling point head
	w     float64 // ‖q‖²
	eta   float64 // (s_res/z_res)^(1/4)
	etaSq float64 // η²
	d1    float64 // leading diagonal of the expansion
	u0    float64
	u1    float64 // u = [u0; u1·q]
	v1    float64 // v = [0; v1·q]
	q     []float64

	// Value indices inside K: the dim diagonal entries of the cone
	// block, the v-column (dim−1 patch entries then its diagonal) and
	// the u-column (dim patch entries then its diagonal).
	kktD, kktV, kktU []int
}
