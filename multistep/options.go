package multistep

import (
	"math"

	kitlog "github.com/go-kit/log"

	"github.com/rollingthunder/multistep/vector"
)

// Option mutates integrator configuration through Set. Each constructor
// below documents its own legal range; Set reports IllInput on violation.
type Option func(*Integrator) error

func FData(ptr any) Option {
	return func(it *Integrator) error {
		it.fdata = ptr
		return nil
	}
}

// ErrFile attaches a structured logger as the diagnostic sink. nil disables
// diagnostics.
func ErrFile(l kitlog.Logger) Option {
	return func(it *Integrator) error {
		it.SetLogger(l)
		return nil
	}
}

// MaxOrd lowers the maximum method order. It can never raise it above the
// value the integrator was created with, since the history storage is sized
// once.
func MaxOrd(q int) Option {
	return func(it *Integrator) error {
		if q < 1 || q > it.qmax {
			return newErr(IllInput, it.tn, "MaxOrd out of range for this method family")
		}
		it.qmax = q
		return nil
	}
}

func MaxNumSteps(n int) Option {
	return func(it *Integrator) error {
		if n <= 0 {
			return newErr(IllInput, it.tn, "MaxNumSteps must be positive")
		}
		it.mxstep = n
		return nil
	}
}

func MaxHnilWarns(n int) Option {
	return func(it *Integrator) error {
		if n < 0 {
			return newErr(IllInput, it.tn, "MaxHnilWarns must be non-negative")
		}
		it.mxhnil = n
		return nil
	}
}

// StabLimDet toggles BDF stability-limit detection. Silently ignored when
// lmm is Adams, where the detection heuristic does not apply.
func StabLimDet(on bool) Option {
	return func(it *Integrator) error {
		if it.lmm == BDF {
			it.sldeton = on
		}
		return nil
	}
}

func InitStep(h0 float64) Option {
	return func(it *Integrator) error {
		it.h = h0
		return nil
	}
}

func MinStep(hmin float64) Option {
	return func(it *Integrator) error {
		if hmin < 0 {
			return newErr(IllInput, it.tn, "MinStep must be non-negative")
		}
		it.hmin = hmin
		return nil
	}
}

func MaxStep(hmax float64) Option {
	return func(it *Integrator) error {
		if hmax < 0 {
			return newErr(IllInput, it.tn, "MaxStep must be non-negative")
		}
		if hmax == 0 {
			it.hmaxInv = 0
			return nil
		}
		it.hmaxInv = 1 / hmax
		return nil
	}
}

func StopTime(tstop float64) Option {
	return func(it *Integrator) error {
		it.tstop = tstop
		it.tstopset = true
		return nil
	}
}

func MaxErrTestFails(n int) Option {
	return func(it *Integrator) error {
		if n <= 0 {
			return newErr(IllInput, it.tn, "MaxErrTestFails must be positive")
		}
		it.maxnef = n
		return nil
	}
}

func MaxConvFails(n int) Option {
	return func(it *Integrator) error {
		if n <= 0 {
			return newErr(IllInput, it.tn, "MaxConvFails must be positive")
		}
		it.maxncf = n
		return nil
	}
}

func MaxNonlinIters(n int) Option {
	return func(it *Integrator) error {
		if n <= 0 {
			return newErr(IllInput, it.tn, "MaxNonlinIters must be positive")
		}
		it.maxcor = n
		return nil
	}
}

func NonlinConvCoef(c float64) Option {
	return func(it *Integrator) error {
		if c <= 0 {
			return newErr(IllInput, it.tn, "NonlinConvCoef must be positive")
		}
		it.nlscoef = c
		return nil
	}
}

// IterTypeOpt switches the nonlinear corrector between Functional and
// Newton iteration mid-run. Switching to Newton forces a linear-solver
// setup on the next step, since any factored iteration matrix is stale.
func IterTypeOpt(iter IterType) Option {
	return func(it *Integrator) error {
		if iter != it.iter && iter == Newton {
			it.forceSetup = true
		}
		it.iter = iter
		return nil
	}
}

// Set applies one or more Options, stopping at the first error.
func (it *Integrator) Set(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(it); err != nil {
			return err
		}
	}
	return nil
}

// QuadInit attaches the pure-quadrature right-hand side and allocates the
// quadrature vector group. space defines the quadrature vectors' shape,
// which is independent of the state's.
func (it *Integrator) QuadInit(fQ QuadRHS, q0 vector.Vector, itol ItolType, rtol float64, atol any, space vector.Space) error {
	if fQ == nil || q0 == nil || space == nil {
		return newErr(IllInput, it.tn, "fQ, q0 and space must be non-nil")
	}
	if rtol < 0 {
		return newErr(IllInput, it.tn, "rtolQ must be >= 0")
	}
	it.fQ = fQ
	it.nq = space.Len()
	it.quadSpace = space
	it.itolQ = itol
	it.rtolQ = rtol
	switch itol {
	case SS:
		v, ok := atol.(float64)
		if !ok || v < 0 {
			return newErr(IllInput, it.tn, "atolQ must be a non-negative scalar in SS mode")
		}
		it.atolQS = v
	case SV:
		v, ok := atol.(vector.Vector)
		if !ok {
			return newErr(IllInput, it.tn, "atolQ must be a Vector in SV mode")
		}
		it.atolQV = v
	default:
		return newErr(IllInput, it.tn, "unknown itolQ")
	}

	if it.znQ == nil || len(it.znQ) != it.qmax+1 || it.ewtQ.Len() != it.nq {
		it.znQ = make([]vector.Vector, it.qmax+1)
		for i := range it.znQ {
			it.znQ[i] = it.quadSpace.New()
		}
		it.ewtQ = it.quadSpace.New()
		it.yQ = it.quadSpace.New()
		it.acorQ = it.quadSpace.New()
		it.tempvQ = it.quadSpace.New()
	}

	it.znQ[0].Scale(1, q0)
	it.errconQ = Full
	it.nfQe, it.netfQ = 0, 0
	it.quadOn = true

	return ewtSetWith(it.ewtQ, it.znQ[0], it.rtolQ, it.itolQ, it.atolQS, it.atolQV, it.tempvQ)
}

// QuadReinit resets quadrature state, reusing the existing allocation.
func (it *Integrator) QuadReinit(fQ QuadRHS, q0 vector.Vector, itol ItolType, rtol float64, atol any) error {
	if !it.quadOn {
		return newErr(NoMemory, it.tn, "QuadInit must be called before QuadReinit")
	}
	return it.QuadInit(fQ, q0, itol, rtol, atol, it.quadSpace)
}

// QuadOption mutates quadrature configuration through SetQuad.
type QuadOption func(*Integrator) error

func QuadErrCon(ec ErrCon) QuadOption {
	return func(it *Integrator) error {
		it.errconQ = ec
		return nil
	}
}

func QuadFData(ptr any) QuadOption {
	return func(it *Integrator) error {
		it.fQdata = ptr
		return nil
	}
}

func (it *Integrator) SetQuad(opts ...QuadOption) error {
	for _, opt := range opts {
		if err := opt(it); err != nil {
			return err
		}
	}
	return nil
}

// SensInit attaches forward sensitivity analysis: ns directions, coupling
// mode ism, nominal parameters p, scaling pbar, and initial sensitivity
// vectors yS0. Allocates the sensitivity vector groups. A supplied pbar
// entry of zero is rejected, since the default sensitivity tolerances are
// derived by dividing through it.
func (it *Integrator) SensInit(ns int, ism SensMode, p, pbar []float64, plist []int, yS0 []vector.Vector) error {
	if ns <= 0 {
		return newErr(IllInput, it.tn, "ns must be positive")
	}
	if p == nil {
		return newErr(IllInput, it.tn, "p must be non-nil")
	}
	if len(yS0) != ns {
		return newErr(IllInput, it.tn, "yS0 must have exactly ns vectors")
	}
	if pbar != nil {
		if len(pbar) != ns {
			return newErr(IllInput, it.tn, "pbar must have exactly ns entries")
		}
		for _, b := range pbar {
			if b == 0 {
				return newErr(IllInput, it.tn, "pbar entries must be non-zero")
			}
		}
	}
	if plist != nil {
		if len(plist) != ns {
			return newErr(IllInput, it.tn, "plist must have exactly ns entries")
		}
		for _, pl := range plist {
			if pl == 0 || absInt(pl) > len(p) {
				return newErr(IllInput, it.tn, "plist entries must be non-zero 1-based indices into p")
			}
		}
	}

	it.ns = ns
	it.ism = ism
	it.p = p
	it.plist = plist
	it.sensSpace = it.space

	it.pbar = make([]float64, ns)
	for i := range it.pbar {
		if pbar != nil {
			it.pbar[i] = pbar[i]
		} else {
			it.pbar[i] = 1
		}
	}

	if it.znS == nil || len(it.znS) != it.qmax+1 || len(it.znS[0]) != ns {
		it.znS = make([][]vector.Vector, it.qmax+1)
		for j := range it.znS {
			it.znS[j] = make([]vector.Vector, ns)
			for i := range it.znS[j] {
				it.znS[j][i] = it.sensSpace.New()
			}
		}
		it.ewtS = make([]vector.Vector, ns)
		it.acorS = make([]vector.Vector, ns)
		it.ySpred = make([]vector.Vector, ns)
		it.tempvS = make([]vector.Vector, ns)
		it.ftempS = make([]vector.Vector, ns)
		for i := 0; i < ns; i++ {
			it.ewtS[i] = it.sensSpace.New()
			it.acorS[i] = it.sensSpace.New()
			it.ySpred[i] = it.sensSpace.New()
			it.tempvS[i] = it.sensSpace.New()
			it.ftempS[i] = it.sensSpace.New()
		}
	}
	for i := 0; i < ns; i++ {
		it.znS[0][i].Scale(1, yS0[i])
	}

	it.itolS = it.itol
	it.rtolS = it.rtol
	it.atolSS = make([]float64, ns)
	it.atolSV = make([]vector.Vector, ns)
	for i := 0; i < ns; i++ {
		switch it.itolS {
		case SS:
			it.atolSS[i] = it.atolS / math.Abs(it.pbar[i])
		case SV:
			v := it.sensSpace.New()
			v.Scale(1/math.Abs(it.pbar[i]), it.atolV)
			it.atolSV[i] = v
		}
	}

	it.ifS = DQ
	it.rhomax = 0
	it.errcon = Full
	it.maxcorS = it.maxcor
	it.nfSe, it.nfeS, it.nniS, it.ncfnS, it.netfS = 0, 0, 0, 0, 0

	if ism == Staggered1 {
		it.nniS1 = make([]int, ns)
		it.ncfS1 = make([]int, ns)
		it.ncfnS1 = make([]int, ns)
		it.netfS1 = make([]int, ns)
		it.crateS1 = make([]float64, ns)
	} else {
		it.nniS1, it.ncfS1, it.ncfnS1, it.netfS1, it.crateS1 = nil, nil, nil, nil, nil
	}

	it.sensOn = true
	return it.ewtSetSens()
}

// SensReinit resets sensitivity state, reusing the existing allocation.
func (it *Integrator) SensReinit(ism SensMode, p, pbar []float64, plist []int, yS0 []vector.Vector) error {
	if !it.sensOn {
		return newErr(NoMemory, it.tn, "SensInit must be called before SensReinit")
	}
	return it.SensInit(it.ns, ism, p, pbar, plist, yS0)
}

// SensToggleOff disables sensitivity analysis without discarding the
// allocated vector groups, so a later SensReinit is cheap.
func (it *Integrator) SensToggleOff() {
	it.sensOn = false
}

// SensOption mutates sensitivity configuration through SetSens.
type SensOption func(*Integrator) error

func RhsAllSens(f SensAllRHS) SensOption {
	return func(it *Integrator) error {
		if it.ism == Staggered1 {
			return newErr(IllInput, it.tn, "Staggered1 cannot use an all-at-once sensitivity right-hand side")
		}
		it.fSAll = f
		it.ifS = AllSens
		return nil
	}
}

func RhsOneSens(f SensOneRHS) SensOption {
	return func(it *Integrator) error {
		it.fSOne = f
		it.ifS = OneSens
		return nil
	}
}

func SensFData(ptr any) SensOption {
	return func(it *Integrator) error {
		it.fSdata = ptr
		return nil
	}
}

func SensErrCon(ec ErrCon) SensOption {
	return func(it *Integrator) error {
		it.errcon = ec
		return nil
	}
}

func SensRho(rho float64) SensOption {
	return func(it *Integrator) error {
		it.rhomax = rho
		return nil
	}
}

// SensPbar replaces the parameter scaling factors and re-derives the default
// sensitivity tolerances from them.
func SensPbar(pbar []float64) SensOption {
	return func(it *Integrator) error {
		if len(pbar) != it.ns {
			return newErr(IllInput, it.tn, "pbar must have exactly ns entries")
		}
		for _, b := range pbar {
			if b == 0 {
				return newErr(IllInput, it.tn, "pbar entries must be non-zero")
			}
		}
		copy(it.pbar, pbar)
		for i := 0; i < it.ns; i++ {
			switch it.itolS {
			case SS:
				it.atolSS[i] = it.atolS / math.Abs(it.pbar[i])
			case SV:
				it.atolSV[i].Scale(1/math.Abs(it.pbar[i]), it.atolV)
			}
		}
		return nil
	}
}

func SensReltol(rtol float64) SensOption {
	return func(it *Integrator) error {
		if rtol < 0 {
			return newErr(IllInput, it.tn, "SensReltol must be >= 0")
		}
		it.rtolS = rtol
		return nil
	}
}

// SensAbstol supplies explicit per-sensitivity absolute tolerances,
// overriding the pbar-derived defaults. In SS mode pass []float64, in SV
// mode []vector.Vector, of length ns either way.
func SensAbstol(atol any) SensOption {
	return func(it *Integrator) error {
		switch v := atol.(type) {
		case []float64:
			if len(v) != it.ns {
				return newErr(IllInput, it.tn, "SensAbstol must have exactly ns entries")
			}
			it.itolS = SS
			copy(it.atolSS, v)
		case []vector.Vector:
			if len(v) != it.ns {
				return newErr(IllInput, it.tn, "SensAbstol must have exactly ns entries")
			}
			it.itolS = SV
			copy(it.atolSV, v)
		default:
			return newErr(IllInput, it.tn, "SensAbstol must be []float64 or []vector.Vector")
		}
		return nil
	}
}

func SensMaxNonlinIters(n int) SensOption {
	return func(it *Integrator) error {
		if n <= 0 {
			return newErr(IllInput, it.tn, "SensMaxNonlinIters must be positive")
		}
		it.maxcorS = n
		return nil
	}
}

func (it *Integrator) SetSens(opts ...SensOption) error {
	for _, opt := range opts {
		if err := opt(it); err != nil {
			return err
		}
	}
	return nil
}
