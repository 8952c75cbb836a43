package multistep

import (
	"math"

	"github.com/rollingthunder/multistep/vector"
)

// sensRhs evaluates all Ns sensitivity right-hand sides at (t, y, ydot),
// dispatching to the user-supplied AllSens/OneSens callback or to the
// built-in difference-quotient approximation.
func (it *Integrator) sensRhs(t float64, y, ydot vector.Vector, yS, ySdot []vector.Vector, tmp1, tmp2 vector.Vector) {
	switch it.ifS {
	case AllSens:
		it.fSAll(t, y, ydot, yS, ySdot, tmp1, tmp2)
		it.nfSe++
	case OneSens:
		for i := 0; i < it.ns; i++ {
			it.fSOne(i, t, y, ydot, yS[i], ySdot[i], tmp1, tmp2)
			it.nfSe++
		}
	default: // DQ
		for i := 0; i < it.ns; i++ {
			it.sensRhs1DQ(t, y, ydot, i, yS[i], ySdot[i], tmp1, tmp2)
			it.nfSe++
		}
	}
}

// sensRhs1 evaluates the single which-th sensitivity right-hand side, used
// by the Staggered1 corrector.
func (it *Integrator) sensRhs1(which int, t float64, y, ydot vector.Vector, yS, ySdot, tmp1, tmp2 vector.Vector) {
	if it.ifS == OneSens {
		it.fSOne(which, t, y, ydot, yS, ySdot, tmp1, tmp2)
		it.nfSe++
		return
	}
	it.sensRhs1DQ(t, y, ydot, which, yS, ySdot, tmp1, tmp2)
	it.nfSe++
}

// sensRhs1DQ estimates the which-th sensitivity right-hand side
// (df/dy)*yS + df/dp_which by forward or centered difference quotients in
// the parameter and along yS, combining both probes into one evaluation
// pair when their increments agree to within rhomax.
func (it *Integrator) sensRhs1DQ(t float64, y, ydot vector.Vector, which int, yS, ySdot, ytemp, ftemp vector.Vector) {
	delta := math.Sqrt(math.Max(it.rtol, it.uround))
	rdelta := 1.0 / delta

	realWhich := which
	skipFP := false
	if it.plist != nil {
		realWhich = absInt(it.plist[which]) - 1
		skipFP = it.plist[which] < 0
	}

	psave := it.p[realWhich]
	pbari := math.Abs(it.pbar[realWhich])

	deltap := pbari * delta
	rDeltap := 1.0 / deltap
	norms := yS.WRMSNorm(it.ewt) * pbari
	rDeltay := math.Max(norms, rdelta) / pbari
	deltay := 1.0 / rDeltay

	// When the y- and p-increments agree to within rhomax, one combined
	// perturbation serves both partials; otherwise probe them separately.
	ratio := deltay * rDeltap
	combine := it.rhomax == 0 || math.Max(1/ratio, ratio) <= math.Abs(it.rhomax)

	var nfel int
	switch {
	case combine && it.rhomax >= 0:
		// CENTERED1
		d := math.Min(deltay, deltap)
		r2 := 0.5 / d
		ytemp.LinearSum(1, y, d, yS)
		it.p[realWhich] = psave + d
		it.f(t, ytemp, ySdot)
		nfel++
		ytemp.LinearSum(1, y, -d, yS)
		it.p[realWhich] = psave - d
		it.f(t, ytemp, ftemp)
		nfel++
		ySdot.LinearSum(r2, ySdot, -r2, ftemp)

	case combine:
		// FORWARD1
		d := math.Min(deltay, deltap)
		r := 1.0 / d
		ytemp.LinearSum(1, y, d, yS)
		it.p[realWhich] = psave + d
		it.f(t, ytemp, ySdot)
		nfel++
		ySdot.LinearSum(r, ySdot, -r, ydot)

	case it.rhomax > 0:
		// CENTERED2
		r2p := 0.5 / deltap
		r2y := 0.5 / deltay
		ytemp.LinearSum(1, y, deltay, yS)
		it.f(t, ytemp, ySdot)
		nfel++
		ytemp.LinearSum(1, y, -deltay, yS)
		it.f(t, ytemp, ftemp)
		nfel++
		ySdot.LinearSum(r2y, ySdot, -r2y, ftemp)
		if !skipFP {
			it.p[realWhich] = psave + deltap
			it.f(t, y, ytemp)
			nfel++
			it.p[realWhich] = psave - deltap
			it.f(t, y, ftemp)
			nfel++
			ftemp.LinearSum(r2p, ytemp, -r2p, ftemp)
			ySdot.LinearSum(1, ySdot, 1, ftemp)
		}

	default:
		// FORWARD2
		ytemp.LinearSum(1, y, deltay, yS)
		it.f(t, ytemp, ySdot)
		nfel++
		ySdot.LinearSum(rDeltay, ySdot, -rDeltay, ydot)
		if !skipFP {
			it.p[realWhich] = psave + deltap
			it.f(t, y, ytemp)
			nfel++
			ytemp.LinearSum(rDeltap, ytemp, -rDeltap, ydot)
			ySdot.LinearSum(1, ySdot, 1, ytemp)
		}
	}

	it.p[realWhich] = psave
	it.nfeS += nfel
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
