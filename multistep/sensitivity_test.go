package multistep

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"

	"github.com/rollingthunder/multistep/vector"
	"github.com/rollingthunder/multistep/vector/serial"
)

// Property 6: DQ sensitivity RHS consistency. sensRhs1DQ estimates
// d/dp f(t,y) + (df/dy)*yS via difference quotients in p and y; this checks
// that estimate against gonum/diff/fd's independent finite-difference
// derivatives of the same two partials, rather than re-deriving sensRhs1DQ's
// own formula.
func TestSensRhs1DQConsistency(t *testing.T) {
	const p0 = 1.5
	const y0v = 2.0
	const s0v = 0.3

	space := serial.NewSpace(1)
	p := []float64{p0}
	f := func(tt float64, y, ydot vector.Vector) int {
		ydot.Scale(-p[0], y)
		return 0
	}

	it := New(Adams, Functional)
	y0 := space.New()
	y0.(*serial.Vector).Data[0] = y0v
	require.NoError(t, it.Init(f, 0, y0, SS, 1e-10, 1e-12, space))

	it.p = p
	it.pbar = []float64{1.0}
	it.ns = 1
	it.rhomax = 0 // force the CENTERED1 branch, the default/most-accurate one

	y := space.New()
	y.(*serial.Vector).Data[0] = y0v
	ydot := space.New()
	ydot.(*serial.Vector).Data[0] = -p0 * y0v

	yS := space.New()
	yS.(*serial.Vector).Data[0] = s0v
	ySdot := space.New()
	ytemp := space.New()
	ftemp := space.New()

	it.sensRhs1DQ(0, y, ydot, 0, yS, ySdot, ytemp, ftemp)

	dfdp := fd.Derivative(func(pp float64) float64 { return -pp * y0v }, p0, nil)
	dfdy := fd.Derivative(func(yy float64) float64 { return -p0 * yy }, y0v, nil)
	expected := dfdp + dfdy*s0v

	require.InDelta(t, expected, ySdot.(*serial.Vector).Data[0], 1e-4)
}

// Same check on the FORWARD1 branch: ratio agrees with |rhomax| but
// rhomax < 0, so the corrector wants the single combined probe.
func TestSensRhs1DQConsistencyForward1(t *testing.T) {
	const p0 = 1.5
	const y0v = 2.0
	const s0v = 0.3

	space := serial.NewSpace(1)
	p := []float64{p0}
	f := func(tt float64, y, ydot vector.Vector) int {
		ydot.Scale(-p[0], y)
		return 0
	}

	it := New(Adams, Functional)
	y0 := space.New()
	y0.(*serial.Vector).Data[0] = y0v
	require.NoError(t, it.Init(f, 0, y0, SS, 1e-10, 1e-12, space))

	it.p = p
	it.pbar = []float64{1.0}
	it.ns = 1
	it.rhomax = -1e10 // combine (ratio within |rhomax|) and rhomax < 0 -> FORWARD1

	y := space.New()
	y.(*serial.Vector).Data[0] = y0v
	ydot := space.New()
	ydot.(*serial.Vector).Data[0] = -p0 * y0v

	yS := space.New()
	yS.(*serial.Vector).Data[0] = s0v
	ySdot := space.New()
	ytemp := space.New()
	ftemp := space.New()

	it.sensRhs1DQ(0, y, ydot, 0, yS, ySdot, ytemp, ftemp)

	dfdp := fd.Derivative(func(pp float64) float64 { return -pp * y0v }, p0, nil)
	dfdy := fd.Derivative(func(yy float64) float64 { return -p0 * yy }, y0v, nil)
	expected := dfdp + dfdy*s0v

	require.InDelta(t, expected, ySdot.(*serial.Vector).Data[0], 1e-2)
}
