// Package krylov is an iterative linear-solver collaborator for the Newton
// corrector: it solves the iteration matrix M = I - gamma*J matrix-free,
// applying M to a vector through a directional-derivative difference
// quotient of the right-hand side rather than ever forming J. The iteration
// is restarted GMRES with modified Gram-Schmidt orthogonalization and an
// optional right preconditioner.
package krylov

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/rollingthunder/multistep/linsolver"
	"github.com/rollingthunder/multistep/vector"
	"github.com/rollingthunder/multistep/vector/serial"
)

// RHS is the system right-hand side f(t, y, ydot).
type RHS func(t float64, y, ydot []float64)

// Preconditioner solves P*z = r for a preconditioning matrix P
// approximating M, writing z. Optional; nil means unpreconditioned GMRES.
type Preconditioner func(z, r []float64)

// Solver is a linsolver.Solver that never assembles the Jacobian: Setup only
// records (t, ypred, fpred) for the directional-derivative matvec Solve
// applies inside the GMRES iteration.
type Solver struct {
	n       int
	rhs     RHS
	precond Preconditioner
	restart int
	maxIter int
	tol     float64

	gamma float64
	t     float64
	y, fy []float64

	// sigma scaling for the difference increment.
	uRound float64

	// GMRES workspace, sized on Init.
	basis [][]float64
	hess  [][]float64
	cs    []float64
	sn    []float64
	g     []float64
	w     []float64
	z     []float64
}

// New returns a matrix-free GMRES-backed Solver for an n-dimensional system.
// restart is the Krylov subspace dimension between restarts; maxIter caps
// the total iterations; tol is the relative residual reduction target.
func New(n int, rhs RHS, precond Preconditioner, restart, maxIter int, tol float64) *Solver {
	if restart <= 0 {
		restart = 5
	}
	if restart > n {
		restart = n
	}
	if maxIter <= 0 {
		maxIter = restart
	}
	return &Solver{
		n:       n,
		rhs:     rhs,
		precond: precond,
		restart: restart,
		maxIter: maxIter,
		tol:     tol,
		uRound:  2.22e-16,
		y:       make([]float64, n),
		fy:      make([]float64, n),
	}
}

func (s *Solver) Init() int {
	m := s.restart
	s.basis = make([][]float64, m+1)
	for i := range s.basis {
		s.basis[i] = make([]float64, s.n)
	}
	s.hess = make([][]float64, m+1)
	for i := range s.hess {
		s.hess[i] = make([]float64, m)
	}
	s.cs = make([]float64, m)
	s.sn = make([]float64, m)
	s.g = make([]float64, m+1)
	s.w = make([]float64, s.n)
	s.z = make([]float64, s.n)
	return 0
}

func (s *Solver) SetGamma(gamma float64) { s.gamma = gamma }

// Setup records the predictor point the matvec differences around. jcur is
// reported true: this backend holds no explicit Jacobian data that could go
// stale, so a stale-Jacobian retry can never produce a different matrix —
// the corrector shrinks the step instead.
func (s *Solver) Setup(fail linsolver.ConvFail, t float64, ypred, fpred vector.Vector, scratch [3]vector.Vector) (jcur bool, code int) {
	s.t = t
	copy(s.y, ypred.(*serial.Vector).Data)
	copy(s.fy, fpred.(*serial.Vector).Data)
	return true, 0
}

// matVec computes dst = M*v = v - gamma*J*v with J*v approximated by a
// forward difference of f along v.
func (s *Solver) matVec(dst, v []float64) {
	normV := floats.Norm(v, 2)
	if normV == 0 {
		copy(dst, v)
		return
	}
	sig := math.Sqrt(s.uRound) / normV
	yPert := s.z
	for i := range yPert {
		yPert[i] = s.y[i] + sig*v[i]
	}
	fPert := make([]float64, s.n)
	s.rhs(s.t, yPert, fPert)
	rsig := 1.0 / sig
	for i := range dst {
		jv := (fPert[i] - s.fy[i]) * rsig
		dst[i] = v[i] - s.gamma*jv
	}
}

// applyOp computes dst = M*P^-1*v, the right-preconditioned operator.
func (s *Solver) applyOp(dst, v []float64) {
	if s.precond == nil {
		s.matVec(dst, v)
		return
	}
	z := make([]float64, s.n)
	s.precond(z, v)
	s.matVec(dst, z)
}

// Solve overwrites b with an approximate solution of M*x = b. The residual
// target is tol relative to the incoming right-hand side's norm, so the
// linear tolerance tracks the corrector's shrinking corrections.
func (s *Solver) Solve(b, w, ycur, fcur vector.Vector) int {
	bs := b.(*serial.Vector).Data

	bnorm := floats.Norm(bs, 2)
	if bnorm == 0 {
		return 0
	}
	target := s.tol * bnorm

	x := make([]float64, s.n)
	r := append([]float64(nil), bs...)
	iters := 0

	for iters < s.maxIter {
		beta := floats.Norm(r, 2)
		if beta <= target {
			break
		}

		m := s.restart
		for i := range s.g {
			s.g[i] = 0
		}
		s.g[0] = beta
		floats.ScaleTo(s.basis[0], 1/beta, r)

		k := 0
		for ; k < m && iters < s.maxIter; k++ {
			iters++
			s.applyOp(s.w, s.basis[k])

			// modified Gram-Schmidt
			for i := 0; i <= k; i++ {
				s.hess[i][k] = floats.Dot(s.w, s.basis[i])
				floats.AddScaled(s.w, -s.hess[i][k], s.basis[i])
			}
			s.hess[k+1][k] = floats.Norm(s.w, 2)

			if s.hess[k+1][k] > 0 {
				floats.ScaleTo(s.basis[k+1], 1/s.hess[k+1][k], s.w)
			}

			// apply the accumulated Givens rotations to the new column, then
			// form the rotation that annihilates the subdiagonal entry.
			for i := 0; i < k; i++ {
				hik := s.cs[i]*s.hess[i][k] + s.sn[i]*s.hess[i+1][k]
				s.hess[i+1][k] = -s.sn[i]*s.hess[i][k] + s.cs[i]*s.hess[i+1][k]
				s.hess[i][k] = hik
			}
			s.cs[k], s.sn[k] = givens(s.hess[k][k], s.hess[k+1][k])
			s.hess[k][k] = s.cs[k]*s.hess[k][k] + s.sn[k]*s.hess[k+1][k]
			s.hess[k+1][k] = 0
			s.g[k+1] = -s.sn[k] * s.g[k]
			s.g[k] = s.cs[k] * s.g[k]

			if math.Abs(s.g[k+1]) <= target {
				k++
				break
			}
		}

		// back-substitute for the subspace solution and expand it.
		ysub := make([]float64, k)
		for i := k - 1; i >= 0; i-- {
			sum := s.g[i]
			for j := i + 1; j < k; j++ {
				sum -= s.hess[i][j] * ysub[j]
			}
			if s.hess[i][i] == 0 {
				return 1
			}
			ysub[i] = sum / s.hess[i][i]
		}
		update := make([]float64, s.n)
		for j := 0; j < k; j++ {
			floats.AddScaled(update, ysub[j], s.basis[j])
		}
		if s.precond != nil {
			s.precond(s.z, update)
			copy(update, s.z)
		}
		floats.Add(x, update)

		// true residual for the restart test
		s.matVec(r, x)
		for i := range r {
			r[i] = bs[i] - r[i]
		}
		if k == 0 {
			break
		}
	}

	if floats.Norm(r, 2) > target {
		// did not reach the target; recoverable, the corrector may retry
		// with a smaller step.
		copy(bs, x)
		return 1
	}
	copy(bs, x)
	return 0
}

func (s *Solver) Free() {}

// givens returns the rotation (c, s) with c*a + s*b = r, -s*a + c*b = 0.
func givens(a, b float64) (c, sn float64) {
	if b == 0 {
		return 1, 0
	}
	if math.Abs(b) > math.Abs(a) {
		t := a / b
		sn = 1 / math.Sqrt(1+t*t)
		return t * sn, sn
	}
	t := b / a
	c = 1 / math.Sqrt(1+t*t)
	return c, t * c
}
