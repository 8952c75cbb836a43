package multistep

import (
	"math"

	kitlog "github.com/go-kit/log"

	"github.com/rollingthunder/multistep/linsolver"
	"github.com/rollingthunder/multistep/vector"
)

// RHS is the main system right-hand side y' = f(t, y). Returns 0 on success,
// >0 for a recoverable failure (the corrector will retry with a smaller
// step), <0 for an unrecoverable failure that surfaces as RhsFailed.
type RHS func(t float64, y, ydot vector.Vector) int

// QuadRHS is the pure-quadrature right-hand side q' = fQ(t, y).
type QuadRHS func(t float64, y, yqdot vector.Vector) int

// SensAllRHS computes all Ns sensitivity right-hand sides at once.
type SensAllRHS func(t float64, y, ydot vector.Vector, ys, ysDot []vector.Vector, tmp1, tmp2 vector.Vector) int

// SensOneRHS computes the which-th sensitivity right-hand side only.
type SensOneRHS func(which int, t float64, y, ydot vector.Vector, ysI, ysDotI vector.Vector, tmp1, tmp2 vector.Vector) int

// Integrator is a Nordsieck multistep engine. One value owns all of its
// substate by composition; there is no global or process-wide state, and
// every internal routine simply receives *Integrator.
type Integrator struct {
	lmm  LMM
	iter IterType
	qmax int

	log kitlog.Logger

	space  vector.Space
	n      int
	f      RHS
	fdata  any
	fQdata any
	fSdata any

	// time and step state
	tn, h, hu, hprime, eta, hscale float64
	qu                             int // order used on the last completed step
	hmin, hmaxInv                  float64
	etamax                         float64
	tstop                          float64
	tstopset                       bool
	uround                         float64

	// order state
	q, qprime, qwait int
	L                int

	// coefficients
	l      [bdfAdamsLMax]float64
	tq     [6]float64
	tau    [bdfAdamsLMax]float64
	rl1    float64
	gamma  float64
	gammap float64
	gamrat float64
	savedTq5 float64

	// order-change eta candidates, computed in prepareNextStep (etaqm1 and
	// etaqp1 only on steps where an order change is considered) and consumed
	// by chooseEta/setEta; bdfStab also reads etaqm1.
	etaq, etaqm1, etaqp1 float64

	nlscoef float64

	// tolerances
	itol   ItolType
	rtol   float64
	atolS  float64
	atolV  vector.Vector

	// history: zn[0..qmax], zn[qmax] doubles as the order-increase scratch
	// column once q < qmax.
	zn  []vector.Vector
	ewt vector.Vector

	y     vector.Vector // current nonlinear-iterate state, y = zn[0] + acor
	acor  vector.Vector
	tempv vector.Vector
	ftemp vector.Vector

	crate float64

	// lastRhsErr carries the most recent f()/fQ() return code through the
	// nlsResult/ErrCon plumbing, since neither enum has room for the
	// original integer code an unrecoverable failure needs for RhsFailed.
	lastRhsErr int

	// acnrm is the weighted norm of the accepted correction, set by the
	// corrector on convergence and consumed by the local error test.
	acnrm float64

	// Newton-only
	ls            linsolver.Solver
	jcur          bool
	forceSetup    bool
	nstlp         int
	maxcor        int
	newtonScratch [3]vector.Vector

	// quadrature
	quadOn   bool
	fQ       QuadRHS
	nq       int
	quadSpace vector.Space
	znQ      []vector.Vector
	ewtQ     vector.Vector
	yQ       vector.Vector // current quadrature iterate, yQ = znQ[0] + acorQ
	acorQ    vector.Vector
	tempvQ   vector.Vector
	acnrmQ   float64
	itolQ    ItolType
	rtolQ    float64
	atolQS   float64
	atolQV   vector.Vector
	errconQ  ErrCon

	// sensitivity
	sensOn    bool
	ns        int
	ism       SensMode
	ifS       SensRhsMode
	fSAll     SensAllRHS
	fSOne     SensOneRHS
	p         []float64
	pbar      []float64
	plist     []int
	rhomax    float64
	errcon    ErrCon
	sensSpace vector.Space
	znS       [][]vector.Vector // znS[j][i]
	ewtS      []vector.Vector
	acorS     []vector.Vector
	itolS     ItolType
	rtolS     float64
	atolSS    []float64
	atolSV    []vector.Vector
	ySpred    []vector.Vector // current sensitivity iterate yS[i] = znS[0][i] + acorS[i]
	maxcorS   int
	tempvS    []vector.Vector // SIMULTANEOUS corrector scratch, one per sensitivity
	ftempS    []vector.Vector
	crateS    float64 // Staggered convergence-rate estimate
	acnrmS    float64 // norm of the accepted Staggered/Staggered1 correction

	// Staggered1 per-sensitivity counters and convergence-rate estimates.
	// ncfS1 is the per-step failure count, zeroed at the top of each step;
	// ncfnS1 accumulates across the run.
	nniS1   []int
	ncfS1   []int
	ncfnS1  []int
	netfS1  []int
	crateS1 []float64

	// SLDET
	sldeton bool
	ssdat   [6][4]float64
	nscon   int
	nor     int

	// counters
	nst, nfe, nni, nsetups, netf, ncfn, nhnil int
	nfQe, netfQ                               int
	nfSe, nfeS, nniS, ncfnS, netfS            int
	mxstep, mxhnil                            int
	maxnef, maxncf                            int

	initialized bool
}

const bdfAdamsLMax = 14 // qmax+1 at Adams' ceiling (12), plus one slot of headroom

// New creates an integrator for the given method family and iteration type.
// No problem data is attached yet; call Init to provide (f, t0, y0, ...).
func New(lmm LMM, iter IterType) *Integrator {
	it := &Integrator{
		lmm:     lmm,
		iter:    iter,
		qmax:    lmm.MaxOrder(),
		uround:  2.22e-16,
		nlscoef: 0.1,
		maxcor:  3,
		maxnef:  7,
		maxncf:  10,
		mxstep:  500,
		mxhnil:  10,
		hmaxInv: 0,
		etamax:  etamx1,
		log:     kitlog.NewNopLogger(),
	}
	return it
}

// SetLogger attaches a structured logger for the engine's diagnostics
// (vanishing-step warnings, stability-limit order reductions). A nil logger
// disables logging.
func (it *Integrator) SetLogger(l kitlog.Logger) {
	if l == nil {
		l = kitlog.NewNopLogger()
	}
	it.log = l
}

// UserData returns the opaque pointer registered with FData, for callbacks
// that share state through the integrator rather than through closures.
func (it *Integrator) UserData() any { return it.fdata }

// QuadUserData returns the pointer registered with QuadFData.
func (it *Integrator) QuadUserData() any { return it.fQdata }

// SensUserData returns the pointer registered with SensFData.
func (it *Integrator) SensUserData() any { return it.fSdata }

// Init attaches the problem (f, t0, y0, tolerances) and allocates the
// integrator's owned vector groups. space defines the shape and arithmetic
// of the state vectors.
func (it *Integrator) Init(f RHS, t0 float64, y0 vector.Vector, itol ItolType, rtol float64, atol any, space vector.Space) error {
	if f == nil || y0 == nil || space == nil {
		return newErr(IllInput, t0, "f, y0 and space must be non-nil")
	}
	if rtol < 0 {
		return newErr(IllInput, t0, "rtol must be >= 0")
	}

	it.f = f
	it.space = space
	it.n = space.Len()
	it.itol = itol
	it.rtol = rtol
	switch itol {
	case SS:
		v, ok := atol.(float64)
		if !ok || v < 0 {
			return newErr(IllInput, t0, "atol must be a non-negative scalar in SS mode")
		}
		it.atolS = v
	case SV:
		v, ok := atol.(vector.Vector)
		if !ok {
			return newErr(IllInput, t0, "atol must be a Vector in SV mode")
		}
		it.atolV = v
	default:
		return newErr(IllInput, t0, "unknown itol")
	}

	it.allocState()
	it.tn = t0
	it.zn[0].Scale(1, y0)
	it.q = 1
	it.qprime = 1
	it.qwait = it.waitInterval()
	it.L = 2
	it.h = 0
	it.hscale = 0
	it.eta = 1
	it.etamax = etamx1
	it.crate = 1
	it.gammap = 0
	it.nscon = 0
	it.nor = 0
	it.nst, it.nfe, it.nni, it.nsetups = 0, 0, 0, 0
	it.netf, it.ncfn, it.nhnil, it.nstlp = 0, 0, 0, 0
	it.initialized = true

	if err := it.ewtSet(it.zn[0], it.ewt); err != nil {
		return newErr(EwtInvalid, t0, err.Error())
	}
	return nil
}

// waitInterval returns the number of steps to wait before the next order
// change is considered, L = q+1.
func (it *Integrator) waitInterval() int {
	return it.q + 1
}

// allocState allocates the state vector group, reusing the existing
// allocation when the shape is unchanged (the Reinit path).
func (it *Integrator) allocState() {
	if it.zn != nil && len(it.zn) == it.qmax+1 && it.ewt.Len() == it.n {
		return
	}
	it.zn = make([]vector.Vector, it.qmax+1)
	for i := range it.zn {
		it.zn[i] = it.space.New()
	}
	it.ewt = it.space.New()
	it.y = it.space.New()
	it.acor = it.space.New()
	it.tempv = it.space.New()
	it.ftemp = it.space.New()
}

// Reinit resets counters and history, reusing existing vector allocations
// when the shape is unchanged.
func (it *Integrator) Reinit(f RHS, t0 float64, y0 vector.Vector, itol ItolType, rtol float64, atol any) error {
	if !it.initialized {
		return newErr(NoMemory, t0, "Init must be called before Reinit")
	}
	return it.Init(f, t0, y0, itol, rtol, atol, it.space)
}

// AttachLinearSolver registers the Newton linear-solver collaborator.
func (it *Integrator) AttachLinearSolver(ls linsolver.Solver) error {
	it.ls = ls
	if code := ls.Init(); code != 0 {
		return newErr(SetupFailure, it.tn, "linear solver Init failed")
	}
	return nil
}

// Free releases all owned vector groups and the linear-solver attachment.
func (it *Integrator) Free() {
	if it.ls != nil {
		it.ls.Free()
		it.ls = nil
	}
	it.zn = nil
	it.znQ = nil
	it.znS = nil
}

// Stats returns a snapshot of the engine's counters and step state.
type Stats struct {
	NumSteps              int
	LastOrder             int
	LastStep              float64
	CurrentTime           float64
	NumRhsEvals           int
	NumNonlinIters        int
	NumLinSetups          int
	NumErrTestFails       int
	NumNonlinConvFails    int
	NumHnilWarnings       int
	NumQuadRhsEvals       int
	NumQuadErrTestFails   int
	NumOrderReductions    int
	NumSensRhsEvals       int
	NumSensNonlinIters    int
	NumSensNonlinConvFails int
	NumSensErrTestFails   int
	// NumStgr1NonlinIters and companions are copies (never aliases) of the
	// per-sensitivity Staggered1 counters; nil unless the integrator is
	// running in Staggered1 mode.
	NumStgr1NonlinIters    []int
	NumStgr1ConvFails      []int
	NumStgr1ErrTestFails   []int
}

func (it *Integrator) Stats() Stats {
	s := Stats{
		NumSteps:              it.nst,
		LastOrder:             it.qu,
		LastStep:              it.hu,
		CurrentTime:           it.tn,
		NumRhsEvals:           it.nfe,
		NumNonlinIters:        it.nni,
		NumLinSetups:          it.nsetups,
		NumErrTestFails:       it.netf,
		NumNonlinConvFails:    it.ncfn,
		NumHnilWarnings:       it.nhnil,
		NumQuadRhsEvals:       it.nfQe,
		NumQuadErrTestFails:   it.netfQ,
		NumOrderReductions:    it.nor,
		NumSensRhsEvals:       it.nfSe,
		NumSensNonlinIters:    it.nniS,
		NumSensNonlinConvFails: it.ncfnS,
		NumSensErrTestFails:   it.netfS,
	}
	if it.nniS1 != nil {
		s.NumStgr1NonlinIters = append([]int(nil), it.nniS1...)
		s.NumStgr1ConvFails = append([]int(nil), it.ncfnS1...)
		s.NumStgr1ErrTestFails = append([]int(nil), it.netfS1...)
	}
	return s
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
