// Package testproblems collects the reference integration scenarios the
// multistep package's own tests exercise: each function returns a
// right-hand side and an initial condition for one scenario.
package testproblems

import (
	"math"

	"github.com/rollingthunder/multistep/vector"
	"github.com/rollingthunder/multistep/vector/serial"
)

// ExpDecay is y' = -y, y(0) = 1. At t=1 the solution is e^-1.
func ExpDecay() (func(t float64, y, ydot vector.Vector) int, []float64) {
	f := func(t float64, y, ydot vector.Vector) int {
		ydot.Scale(-1, y)
		return 0
	}
	return f, []float64{1.0}
}

// VanDerPol is the stiff Van der Pol oscillator y1'=y2,
// y2'=mu*(1-y1^2)*y2-y1, y(0)=(2,0). With mu=1000 it is strongly stiff and
// a BDF+Newton workload.
func VanDerPol(mu float64) (func(t float64, y, ydot vector.Vector) int, []float64) {
	f := func(t float64, y, ydot vector.Vector) int {
		yv := y.(*serial.Vector).Data
		dv := ydot.(*serial.Vector).Data
		dv[0] = yv[1]
		dv[1] = mu*(1-yv[0]*yv[0])*yv[1] - yv[0]
		return 0
	}
	return f, []float64{2.0, 0.0}
}

// HarmonicOscillator is y1'=y2, y2'=-y1, y(0)=(1,0): the solution returns
// to (1,0) after each full period 2*pi.
func HarmonicOscillator() (func(t float64, y, ydot vector.Vector) int, []float64) {
	f := func(t float64, y, ydot vector.Vector) int {
		yv := y.(*serial.Vector).Data
		dv := ydot.(*serial.Vector).Data
		dv[0] = yv[1]
		dv[1] = -yv[0]
		return 0
	}
	return f, []float64{1.0, 0.0}
}

// PureQuadrature is a trivial state system y'=0 carrying the quadrature
// q'=cos(t), q(0)=0, so q(t)=sin(t).
func PureQuadrature() (main func(t float64, y, ydot vector.Vector) int, quad func(t float64, y, yq vector.Vector) int) {
	main = func(t float64, y, ydot vector.Vector) int {
		ydot.Const(0)
		return 0
	}
	quad = func(t float64, y, yq vector.Vector) int {
		yq.Const(math.Cos(t))
		return 0
	}
	return
}

// ExpDecaySensRHS is the analytic sensitivity right-hand side for y'=-p*y:
// s' = -p*s - y, evaluated for the single parameter p.
func ExpDecaySensRHS(p []float64) func(t float64, y, ydot vector.Vector, ys, ysdot []vector.Vector, tmp1, tmp2 vector.Vector) int {
	return func(t float64, y, ydot vector.Vector, ys, ysdot []vector.Vector, tmp1, tmp2 vector.Vector) int {
		ysdot[0].LinearSum(-p[0], ys[0], -1, y)
		return 0
	}
}
