package multistep

// nlsResult is the outcome of one nonlinear-solve attempt.
type nlsResult int

const (
	// nlsSolved: the corrector converged; acor/y (and acorS/yS, under
	// SIMULTANEOUS) hold the accepted correction.
	nlsSolved nlsResult = iota
	// nlsTryAgain: a recoverable linear-solver failure occurred with stale
	// Jacobian data; the caller should force a Setup and retry once.
	nlsTryAgain
	// nlsConvFail: the iteration failed to converge (divergence, iteration
	// cap, or a recoverable failure with current Jacobian data); the caller
	// should shrink h and retry the step.
	nlsConvFail
	// nlsSolveFailUnrec: the linear solver's Solve (or a user RHS) reported
	// an unrecoverable error.
	nlsSolveFailUnrec
	// nlsSetupFailUnrec: the linear solver's Setup reported an unrecoverable
	// error.
	nlsSetupFailUnrec
)

// stepFlag classifies why the corrector is being (re)entered; the Newton
// path uses it to decide whether to force a linear-solver setup.
type stepFlag int

const (
	firstCall    stepFlag = iota // nst == 0
	prevConvFail                 // the previous attempt at this step failed to converge
	prevErrFail                  // the previous attempt at this step failed the local error test
	otherCall                    // the first attempt at any later step (nst > 0)
)

// doSensiSim reports whether sensitivities are folded into the state
// corrector's nonlinear system.
func (it *Integrator) doSensiSim() bool {
	return it.sensOn && it.ism == Simultaneous
}

// nlsSolve drives the configured nonlinear corrector to
// convergence for the current step, dispatching on iter.
func (it *Integrator) nlsSolve(flag stepFlag) nlsResult {
	if it.iter == Functional {
		return it.nlsFunctional()
	}
	return it.nlsNewton(flag)
}
