package multistep

import "fmt"

// Kind is a closed taxonomy of error conditions. Each value corresponds to
// exactly one documented failure mode; there is no catch-all.
type Kind int

const (
	IllInput Kind = iota
	NoMemory
	MemFail
	EwtInvalid
	EwtNowBad
	TooClose
	TooMuchWork
	TooMuchAcc
	ErrFailure
	ConvFailure
	SetupFailure
	SolveFailure
	RhsFailed
	BadK
	BadT
	BadDky
)

var kindNames = map[Kind]string{
	IllInput:     "illegal input",
	NoMemory:     "integrator not initialized",
	MemFail:      "allocation failed",
	EwtInvalid:   "error weight vector has a non-positive component",
	EwtNowBad:    "error weight vector went non-positive mid-run",
	TooClose:     "tout too close to t0",
	TooMuchWork:  "maximum number of internal steps reached before tout",
	TooMuchAcc:   "requested accuracy could not be achieved at current precision",
	ErrFailure:   "repeated local error test failures",
	ConvFailure:  "repeated nonlinear convergence failures",
	SetupFailure: "unrecoverable linear solver setup failure",
	SolveFailure: "unrecoverable linear solver solve failure",
	RhsFailed:    "unrecoverable right-hand-side evaluation failure",
	BadK:         "derivative order k out of range",
	BadT:         "interpolation time outside the last step's interval",
	BadDky:       "interpolation output vector invalid",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown error"
}

// Error is the error type every surfaced failure in the engine takes.
type Error struct {
	Kind Kind
	// T is the integrator time at which the error was raised.
	T float64
	// Msg is a short, human-readable detail.
	Msg string
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("multistep: %s at t=%g: %s", e.Kind, e.T, e.Msg)
	}
	return fmt.Sprintf("multistep: %s at t=%g", e.Kind, e.T)
}

func newErr(kind Kind, t float64, msg string) *Error {
	return &Error{Kind: kind, T: t, Msg: msg}
}
