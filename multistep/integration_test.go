package multistep_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rollingthunder/multistep/multistep"
	"github.com/rollingthunder/multistep/linsolver/dense"
	"github.com/rollingthunder/multistep/vector"
	"github.com/rollingthunder/multistep/vector/serial"
)

func asSerial(v vector.Vector) []float64 { return v.(*serial.Vector).Data }

// Exponential decay y' = -y, y(0)=1, Adams+Functional, to t=1: y ~ e^-1.
func TestExpDecay(t *testing.T) {
	f := func(tt float64, y, ydot vector.Vector) int {
		ydot.Scale(-1, y)
		return 0
	}

	space := serial.NewSpace(1)
	y0 := space.New()
	asSerial(y0)[0] = 1.0

	it := multistep.New(multistep.Adams, multistep.Functional)
	require.NoError(t, it.Init(f, 0, y0, multistep.SS, 1e-8, 1e-10, space))

	yout := space.New()
	tret, res, err := it.Step(1.0, yout, multistep.Normal)
	require.NoError(t, err)
	require.Equal(t, multistep.Success, res)
	require.Equal(t, 1.0, tret)
	require.InDelta(t, math.Exp(-1), asSerial(yout)[0], 1e-6)
}

// Harmonic oscillator, Adams+Functional, integrated over one full period.
func TestHarmonicOscillator(t *testing.T) {
	f := func(tt float64, y, ydot vector.Vector) int {
		yv := asSerial(y)
		dv := asSerial(ydot)
		dv[0] = yv[1]
		dv[1] = -yv[0]
		return 0
	}

	space := serial.NewSpace(2)
	y0 := space.New()
	asSerial(y0)[0] = 1.0
	asSerial(y0)[1] = 0.0

	it := multistep.New(multistep.Adams, multistep.Functional)
	require.NoError(t, it.Init(f, 0, y0, multistep.SS, 1e-10, 1e-12, space))

	yout := space.New()
	_, res, err := it.Step(2*math.Pi, yout, multistep.Normal)
	require.NoError(t, err)
	require.Equal(t, multistep.Success, res)

	dy0 := asSerial(yout)[0] - 1.0
	dy1 := asSerial(yout)[1]
	require.LessOrEqual(t, math.Sqrt(dy0*dy0+dy1*dy1), 1e-6)
}

// Stiff Van der Pol oscillator, BDF+Newton with a dense Jacobian, to t=3000.
func TestVanDerPolStiff(t *testing.T) {
	const mu = 1000.0
	rhs := func(tt float64, y, ydot []float64) {
		ydot[0] = y[1]
		ydot[1] = mu*(1-y[0]*y[0])*y[1] - y[0]
	}
	f := func(tt float64, y, ydot vector.Vector) int {
		rhs(tt, asSerial(y), asSerial(ydot))
		return 0
	}

	space := serial.NewSpace(2)
	y0 := space.New()
	asSerial(y0)[0] = 2.0
	asSerial(y0)[1] = 0.0

	it := multistep.New(multistep.BDF, multistep.Newton)
	require.NoError(t, it.Init(f, 0, y0, multistep.SS, 1e-6, 1e-8, space))

	ls := dense.New(2, rhs, nil)
	require.NoError(t, it.AttachLinearSolver(ls))
	require.NoError(t, it.Set(multistep.StabLimDet(true), multistep.MaxNumSteps(5000)))

	yout := space.New()
	_, res, err := it.Step(3000, yout, multistep.Normal)
	require.NoError(t, err)
	require.Equal(t, multistep.Success, res)

	y1 := asSerial(yout)[0]
	require.GreaterOrEqual(t, y1, -2.01)
	require.LessOrEqual(t, y1, -1.99)
	require.Less(t, it.Stats().NumSteps, 1200)
}

// Pure quadrature q' = cos(t), q(0)=0 over a trivial state system,
// integrated to t=pi: q = sin(pi) ~ 0.
func TestPureQuadrature(t *testing.T) {
	f := func(tt float64, y, ydot vector.Vector) int {
		ydot.Const(0)
		return 0
	}
	fQ := func(tt float64, y, yq vector.Vector) int {
		yq.Const(math.Cos(tt))
		return 0
	}

	space := serial.NewSpace(1)
	y0 := space.New()
	asSerial(y0)[0] = 0.0

	it := multistep.New(multistep.Adams, multistep.Functional)
	require.NoError(t, it.Init(f, 0, y0, multistep.SS, 1e-8, 1e-10, space))

	q0 := space.New()
	require.NoError(t, it.QuadInit(fQ, q0, multistep.SS, 1e-8, 1e-10, space))

	yout := space.New()
	_, res, err := it.Step(math.Pi, yout, multistep.Normal)
	require.NoError(t, err)
	require.Equal(t, multistep.Success, res)

	qout := space.New()
	require.NoError(t, it.GetDkyQuad(math.Pi, 0, qout))
	require.InDelta(t, 0.0, asSerial(qout)[0], 1e-4)
}

// Decay with one parameter, y' = -p*y: the sensitivity s = dy/dp obeys
// s' = -p*s - y, so s(1) = -e^-1. SIMULTANEOUS coupling with an analytic
// sensitivity right-hand side.
func TestSensitivitySimultaneous(t *testing.T) {
	p := []float64{1.0}
	f := func(tt float64, y, ydot vector.Vector) int {
		ydot.Scale(-p[0], y)
		return 0
	}
	fSAll := func(tt float64, y, ydot vector.Vector, ys, ysdot []vector.Vector, tmp1, tmp2 vector.Vector) int {
		ysdot[0].LinearSum(-p[0], ys[0], -1, y)
		return 0
	}

	space := serial.NewSpace(1)
	y0 := space.New()
	asSerial(y0)[0] = 1.0

	it := multistep.New(multistep.Adams, multistep.Functional)
	require.NoError(t, it.Init(f, 0, y0, multistep.SS, 1e-10, 1e-12, space))

	yS0 := space.New()
	asSerial(yS0)[0] = 0.0
	require.NoError(t, it.SensInit(1, multistep.Simultaneous, p, nil, nil, []vector.Vector{yS0}))
	require.NoError(t, it.SetSens(multistep.RhsAllSens(fSAll)))

	yout := space.New()
	_, res, err := it.Step(1.0, yout, multistep.Normal)
	require.NoError(t, err)
	require.Equal(t, multistep.Success, res)
	require.InDelta(t, math.Exp(-1), asSerial(yout)[0], 1e-6)

	sout := space.New()
	require.NoError(t, it.GetDkySens(0, 1.0, 0, sout))
	require.InDelta(t, -math.Exp(-1), asSerial(sout)[0], 1e-5)
}

// The same sensitivity problem under the three coupling modes must agree.
func TestSensitivityCouplingModesAgree(t *testing.T) {
	run := func(ism multistep.SensMode) (y, s float64) {
		p := []float64{1.0}
		f := func(tt float64, yv, ydot vector.Vector) int {
			ydot.Scale(-p[0], yv)
			return 0
		}
		fS1 := func(which int, tt float64, yv, ydot vector.Vector, ys, ysdot, tmp1, tmp2 vector.Vector) int {
			ysdot.LinearSum(-p[0], ys, -1, yv)
			return 0
		}

		space := serial.NewSpace(1)
		y0 := space.New()
		asSerial(y0)[0] = 1.0

		it := multistep.New(multistep.Adams, multistep.Functional)
		require.NoError(t, it.Init(f, 0, y0, multistep.SS, 1e-10, 1e-12, space))

		yS0 := space.New()
		require.NoError(t, it.SensInit(1, ism, p, nil, nil, []vector.Vector{yS0}))
		require.NoError(t, it.SetSens(multistep.RhsOneSens(fS1)))

		yout := space.New()
		_, _, err := it.Step(1.0, yout, multistep.Normal)
		require.NoError(t, err)

		sout := space.New()
		require.NoError(t, it.GetDkySens(0, 1.0, 0, sout))
		return asSerial(yout)[0], asSerial(sout)[0]
	}

	ySim, sSim := run(multistep.Simultaneous)
	yStg, sStg := run(multistep.Staggered)
	yStg1, sStg1 := run(multistep.Staggered1)

	require.InDelta(t, ySim, yStg, 1e-6)
	require.InDelta(t, ySim, yStg1, 1e-6)
	require.InDelta(t, sSim, sStg, 1e-6)
	require.InDelta(t, sSim, sStg1, 1e-6)
}

// A stop time before tout must truncate the integration exactly there.
func TestTstopRespected(t *testing.T) {
	f := func(tt float64, y, ydot vector.Vector) int {
		ydot.Scale(-1, y)
		return 0
	}

	space := serial.NewSpace(1)
	y0 := space.New()
	asSerial(y0)[0] = 1.0

	it := multistep.New(multistep.Adams, multistep.Functional)
	require.NoError(t, it.Init(f, 0, y0, multistep.SS, 1e-8, 1e-10, space))
	require.NoError(t, it.Set(multistep.StopTime(5.0)))

	yout := space.New()
	tret, res, err := it.Step(10.0, yout, multistep.NormalTstop)
	require.NoError(t, err)
	require.Equal(t, multistep.TstopReturn, res)
	require.Equal(t, 5.0, tret)

	dky := space.New()
	require.NoError(t, it.GetDky(5.0, 0, dky))
	require.InDelta(t, asSerial(dky)[0], asSerial(yout)[0], 1e-12)
}

// tout == t0 exactly must be rejected before any step is attempted.
func TestTooClose(t *testing.T) {
	f := func(tt float64, y, ydot vector.Vector) int {
		ydot.Scale(-1, y)
		return 0
	}

	space := serial.NewSpace(1)
	y0 := space.New()
	asSerial(y0)[0] = 1.0

	it := multistep.New(multistep.Adams, multistep.Functional)
	require.NoError(t, it.Init(f, 0, y0, multistep.SS, 1e-8, 1e-10, space))

	yout := space.New()
	_, _, err := it.Step(0.0, yout, multistep.Normal)
	require.Error(t, err)
	var merr *multistep.Error
	require.ErrorAs(t, err, &merr)
	require.Equal(t, multistep.TooClose, merr.Kind)
}

// A second Step call whose tout has already been passed must interpolate
// without taking further internal steps.
func TestStepAlreadyPastTout(t *testing.T) {
	f := func(tt float64, y, ydot vector.Vector) int {
		ydot.Scale(-1, y)
		return 0
	}

	space := serial.NewSpace(1)
	y0 := space.New()
	asSerial(y0)[0] = 1.0

	it := multistep.New(multistep.Adams, multistep.Functional)
	require.NoError(t, it.Init(f, 0, y0, multistep.SS, 1e-8, 1e-10, space))

	yout := space.New()
	_, _, err := it.Step(1.0, yout, multistep.Normal)
	require.NoError(t, err)
	stepsAfterFirst := it.Stats().NumSteps

	// The internal time is at or past tout already; re-requesting the same
	// tout must be served from the history alone.
	tret, res, err := it.Step(1.0, yout, multistep.Normal)
	require.NoError(t, err)
	require.Equal(t, multistep.Success, res)
	require.Equal(t, 1.0, tret)
	require.Equal(t, stepsAfterFirst, it.Stats().NumSteps)
	require.InDelta(t, math.Exp(-1), asSerial(yout)[0], 1e-6)
}

// Reinit must reproduce the trajectory of a fresh Init bit-for-bit.
func TestReinitIdempotent(t *testing.T) {
	f := func(tt float64, y, ydot vector.Vector) int {
		ydot.Scale(-1, y)
		return 0
	}

	space := serial.NewSpace(1)
	y0 := space.New()
	asSerial(y0)[0] = 1.0

	it := multistep.New(multistep.Adams, multistep.Functional)
	require.NoError(t, it.Init(f, 0, y0, multistep.SS, 1e-8, 1e-10, space))

	yout := space.New()
	_, _, err := it.Step(1.0, yout, multistep.Normal)
	require.NoError(t, err)
	first := asSerial(yout)[0]
	firstSteps := it.Stats().NumSteps

	require.NoError(t, it.Reinit(f, 0, y0, multistep.SS, 1e-8, 1e-10))
	_, _, err = it.Step(1.0, yout, multistep.Normal)
	require.NoError(t, err)

	require.Equal(t, first, asSerial(yout)[0])
	require.Equal(t, firstSteps, it.Stats().NumSteps)
}

// OneStep mode returns after exactly one internal step.
func TestOneStep(t *testing.T) {
	f := func(tt float64, y, ydot vector.Vector) int {
		ydot.Scale(-1, y)
		return 0
	}

	space := serial.NewSpace(1)
	y0 := space.New()
	asSerial(y0)[0] = 1.0

	it := multistep.New(multistep.Adams, multistep.Functional)
	require.NoError(t, it.Init(f, 0, y0, multistep.SS, 1e-8, 1e-10, space))

	yout := space.New()
	tret, res, err := it.Step(1.0, yout, multistep.OneStep)
	require.NoError(t, err)
	require.Equal(t, multistep.Success, res)
	require.Equal(t, 1, it.Stats().NumSteps)
	require.Greater(t, tret, 0.0)
	require.Less(t, tret, 1.0)
}

// Exhausting MaxNumSteps surfaces TooMuchWork with the last accepted state
// in yout.
func TestTooMuchWork(t *testing.T) {
	f := func(tt float64, y, ydot vector.Vector) int {
		ydot.Scale(-1, y)
		return 0
	}

	space := serial.NewSpace(1)
	y0 := space.New()
	asSerial(y0)[0] = 1.0

	it := multistep.New(multistep.Adams, multistep.Functional)
	require.NoError(t, it.Init(f, 0, y0, multistep.SS, 1e-12, 1e-14, space))
	require.NoError(t, it.Set(multistep.MaxNumSteps(3)))

	yout := space.New()
	tret, _, err := it.Step(100.0, yout, multistep.Normal)
	require.Error(t, err)
	var merr *multistep.Error
	require.ErrorAs(t, err, &merr)
	require.Equal(t, multistep.TooMuchWork, merr.Kind)
	require.Equal(t, 3, it.Stats().NumSteps)
	require.Greater(t, tret, 0.0)
	require.Greater(t, asSerial(yout)[0], 0.0)
}

// A zero absolute tolerance on a component that starts at zero makes the
// error weights unusable.
func TestEwtInvalid(t *testing.T) {
	f := func(tt float64, y, ydot vector.Vector) int {
		ydot.Const(0)
		return 0
	}

	space := serial.NewSpace(1)
	y0 := space.New() // zero initial condition

	it := multistep.New(multistep.Adams, multistep.Functional)
	err := it.Init(f, 0, y0, multistep.SS, 1e-8, 0.0, space)
	require.Error(t, err)
	var merr *multistep.Error
	require.ErrorAs(t, err, &merr)
	require.Equal(t, multistep.EwtInvalid, merr.Kind)
}

// Interpolation at the current time must reproduce the history columns.
func TestGetDkyConsistency(t *testing.T) {
	f := func(tt float64, y, ydot vector.Vector) int {
		ydot.Scale(-1, y)
		return 0
	}

	space := serial.NewSpace(1)
	y0 := space.New()
	asSerial(y0)[0] = 1.0

	it := multistep.New(multistep.Adams, multistep.Functional)
	require.NoError(t, it.Init(f, 0, y0, multistep.SS, 1e-8, 1e-10, space))

	yout := space.New()
	tret, _, err := it.Step(1.0, yout, multistep.OneStep)
	require.NoError(t, err)

	// k=0 at tn returns the state itself.
	dky := space.New()
	require.NoError(t, it.GetDky(tret, 0, dky))
	require.InDelta(t, asSerial(yout)[0], asSerial(dky)[0], 1e-14)

	// k=1 at tn returns the derivative, which for y'=-y is -y.
	require.NoError(t, it.GetDky(tret, 1, dky))
	require.InDelta(t, -asSerial(yout)[0], asSerial(dky)[0], 1e-6)

	// out-of-range k and t are rejected.
	var merr *multistep.Error
	err = it.GetDky(tret, 13, dky)
	require.ErrorAs(t, err, &merr)
	require.Equal(t, multistep.BadK, merr.Kind)
	err = it.GetDky(tret+1000, 0, dky)
	require.ErrorAs(t, err, &merr)
	require.Equal(t, multistep.BadT, merr.Kind)
}
