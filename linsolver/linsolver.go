// Package linsolver defines the init/setup/solve/free protocol the Newton
// corrector drives to solve the iteration matrix M = I - gamma*J. Concrete
// linear algebra (dense direct, banded, Krylov) lives in sibling packages and
// is an external collaborator of the core engine; the engine only ever
// calls through this interface.
package linsolver

import "github.com/rollingthunder/multistep/vector"

// ConvFail classifies why lsetup is being (re)called, mirroring the three
// cases the corrector distinguishes.
type ConvFail int

const (
	// NoFailures: a setup on the first step of the integration, or on a
	// retry after the local error test failed with a converged corrector.
	NoFailures ConvFail = iota
	// FailBadJ: the previous lsolve reported a recoverable failure and the
	// Jacobian data was not current; retry with fresh Jacobian data.
	FailBadJ
	// FailOther: any other setup: a retry after the nonlinear iteration
	// failed for a reason other than a stale Jacobian, a caller-forced setup,
	// or a scheduled setup (stale gamma ratio, MSBP steps elapsed) on a
	// later step.
	FailOther
)

// Solver is the lifecycle the Newton path drives. Every method returns 0 on
// success, a positive value for a recoverable failure (the corrector may
// retry with a smaller step or a fresh setup), and a negative value for an
// unrecoverable failure that the engine surfaces immediately.
type Solver interface {
	// Init performs one-time, per-problem setup. Called once, when the
	// solver is attached to the owning integrator (AttachLinearSolver).
	Init() int

	// SetGamma updates gamma = h/l[1] ahead of the next Setup/Solve pair. The
	// engine is the sole owner of gamma's value; the solver only ever reads
	// the value most recently pushed here.
	SetGamma(gamma float64)

	// Setup (re)forms and factors M = I - gamma*J given the time t, the
	// predicted state ypred and its derivative fpred. jcur reports whether
	// Jacobian data was regenerated during this call.
	Setup(fail ConvFail, t float64, ypred, fpred vector.Vector, scratch [3]vector.Vector) (jcur bool, code int)

	// Solve overwrites b with the solution of M*x = b. w is the current ewt,
	// supplied for diagnostic scaling only. ycur/fcur are the current
	// nonlinear iterate and its derivative, for solvers that need them (e.g.
	// a Jacobian-free Krylov method evaluating M*v via a directional
	// derivative of f).
	Solve(b vector.Vector, w vector.Vector, ycur, fcur vector.Vector) int

	// Free releases resources Init acquired.
	Free()
}
