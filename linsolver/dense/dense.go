// Package dense is a direct linear-solver collaborator for the Newton
// corrector: it forms the dense iteration matrix M = I - gamma*J with
// gonum.org/v1/gonum/mat and factors it with LU, a concrete "direct dense"
// backend outside the core engine's scope.
package dense

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/rollingthunder/multistep/linsolver"
	"github.com/rollingthunder/multistep/vector"
	"github.com/rollingthunder/multistep/vector/serial"
)

// RHS is the system right-hand side f(t, y, ydot) the Jacobian is taken of.
type RHS func(t float64, y, ydot []float64)

// Jacobian fills J with df/dy evaluated at (t, y, fy). Optional; when nil
// the solver approximates J column-by-column with forward differences.
type Jacobian func(t float64, y, fy []float64, j *mat.Dense)

// Solver is a linsolver.Solver backed by a gonum/mat LU factorization.
type Solver struct {
	n     int
	rhs   RHS
	jac   Jacobian
	gamma float64

	j   *mat.Dense
	m   *mat.Dense
	lu  mat.LU
	uRound float64

	// scratch for the DQ Jacobian
	ytemp, ftemp []float64
}

// New returns a dense Newton-matrix solver for an n-dimensional system.
// jac may be nil to request a difference-quotient approximation.
func New(n int, rhs RHS, jac Jacobian) *Solver {
	return &Solver{
		n:      n,
		rhs:    rhs,
		jac:    jac,
		uRound: 1e-11,
		ytemp:  make([]float64, n),
		ftemp:  make([]float64, n),
	}
}

func (s *Solver) Init() int {
	s.j = mat.NewDense(s.n, s.n, nil)
	s.m = mat.NewDense(s.n, s.n, nil)
	return 0
}

func (s *Solver) SetGamma(gamma float64) { s.gamma = gamma }

func (s *Solver) Setup(fail linsolver.ConvFail, t float64, ypred, fpred vector.Vector, scratch [3]vector.Vector) (jcur bool, code int) {
	y := ypred.(*serial.Vector).Data
	fy := fpred.(*serial.Vector).Data

	if s.jac != nil {
		s.jac(t, y, fy, s.j)
	} else {
		s.dqJacobian(t, y, fy)
	}
	jcur = true

	// M = I - gamma*J
	s.m.Scale(-s.gamma, s.j)
	for i := 0; i < s.n; i++ {
		s.m.Set(i, i, s.m.At(i, i)+1)
	}

	s.lu.Factorize(s.m)
	if cond := s.lu.Cond(); cond > 1/s.uRound {
		// near-singular, treated as a recoverable failure so the corrector
		// can retry with a fresh Jacobian.
		return jcur, 1
	}
	return jcur, 0
}

func (s *Solver) dqJacobian(t float64, y, fy []float64) {
	copy(s.ytemp, y)
	for j := 0; j < s.n; j++ {
		yj := y[j]
		inc := srur(yj, s.uRound)
		s.ytemp[j] = yj + inc
		s.rhs(t, s.ytemp, s.ftemp)
		s.ytemp[j] = yj
		invInc := 1.0 / inc
		for i := 0; i < s.n; i++ {
			s.j.Set(i, j, (s.ftemp[i]-fy[i])*invInc)
		}
	}
}

func srur(y, uround float64) float64 {
	a := y
	if a < 0 {
		a = -a
	}
	if a < 1e-8 {
		a = 1e-8
	}
	return a * uround
}

func (s *Solver) Solve(b vector.Vector, w, ycur, fcur vector.Vector) int {
	bs := b.(*serial.Vector).Data
	rhs := mat.NewVecDense(s.n, append([]float64(nil), bs...))
	var x mat.VecDense
	if err := s.lu.SolveVecTo(&x, false, rhs); err != nil {
		return 1
	}
	copy(bs, x.RawVector().Data)
	return 0
}

func (s *Solver) Free() {}

func (s *Solver) String() string {
	return fmt.Sprintf("dense linear solver (n=%d, gamma=%g)", s.n, s.gamma)
}
