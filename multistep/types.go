package multistep

// LMM selects the linear multistep method family, fixed for the lifetime of
// an Integrator.
type LMM int

const (
	// Adams is the Adams-Moulton family, orders 1..12, for non-stiff problems.
	Adams LMM = iota
	// BDF is the Backward Differentiation Formula family, orders 1..5, for
	// stiff problems.
	BDF
)

func (l LMM) String() string {
	if l == BDF {
		return "BDF"
	}
	return "Adams"
}

// MaxOrder returns the method family's hard order ceiling.
func (l LMM) MaxOrder() int {
	if l == BDF {
		return bdfQMax
	}
	return adamsQMax
}

const (
	adamsQMax = 12
	bdfQMax   = 5
)

// IterType selects the nonlinear corrector.
type IterType int

const (
	// Functional is fixed-point (functional) iteration; no linear solver.
	Functional IterType = iota
	// Newton is Newton iteration via the linsolver.Solver protocol.
	Newton
)

// ItolType selects how absolute tolerance is supplied.
type ItolType int

const (
	// SS: a single scalar absolute tolerance applies to every component.
	SS ItolType = iota
	// SV: a per-component absolute tolerance vector.
	SV
)

// ErrCon selects whether a quadrature or sensitivity subsystem participates
// in the local error test.
type ErrCon int

const (
	// Full: the subsystem's local error is folded into the combined test.
	Full ErrCon = iota
	// Partial: the subsystem is integrated but not error-controlled.
	Partial
)

// SensMode selects how the sensitivity nonlinear solve is coupled to the
// state solve.
type SensMode int

const (
	// Simultaneous extends the state's nonlinear system with the
	// sensitivities and solves them together.
	Simultaneous SensMode = iota
	// Staggered solves all sensitivities, as one vector system, after the
	// state corrector and state error test both succeed.
	Staggered
	// Staggered1 is Staggered but one sensitivity index at a time.
	Staggered1
)

// SensRhsMode selects how the sensitivity RHS is supplied.
type SensRhsMode int

const (
	// DQ approximates fS by a difference quotient of f.
	DQ SensRhsMode = iota
	// AllSens: the caller supplies one function computing all Ns
	// sensitivity right-hand sides at once.
	AllSens
	// OneSens: the caller supplies a function computing one sensitivity
	// right-hand side at a time. Staggered1 accepts this or DQ, but not
	// AllSens.
	OneSens
)

// ITask selects how Step should behave relative to tout/tstop.
type ITask int

const (
	// Normal integrates up to and including tout, interpolating the result.
	Normal ITask = iota
	// OneStep takes a single internal step and returns, regardless of tout.
	OneStep
	// NormalTstop is Normal, but also honors a configured stop time.
	NormalTstop
	// OneStepTstop is OneStep, but also honors a configured stop time.
	OneStepTstop
)

func (t ITask) hasTstop() bool { return t == NormalTstop || t == OneStepTstop }
func (t ITask) oneStep() bool  { return t == OneStep || t == OneStepTstop }

// Result is the non-error outcome of a driver operation. Zero is success;
// positive values are informational. Failures are carried as *Error rather
// than folded into this code.
type Result int

const (
	Success     Result = 0
	TstopReturn Result = 1
)
