package multistep

import "math"

// errTestResult is the outcome of one local-error-test attempt.
type errTestResult int

const (
	errPassed      errTestResult = iota // dsm <= 1; step accepted
	errFailedRetry                      // test failed; eta/order adjusted, retry at saved_t
	errFailedFatal                      // maxnef reached or |h| == hmin; give up on this step
)

// doErrorTest performs one local error test against the supplied accepted-
// correction norm. The same retry ladder serves the state, quadrature and
// sensitivity tests; they differ only in which norm is tested and which
// cumulative counter (netf) is charged. savedT is the pre-predict time to
// restore to on failure, nef the per-step failure count.
//
// The ladder: shrink h from the failed dsm for the first mxnef1 failures,
// then force an order decrease, and at order 1 restart the history from a
// fresh derivative evaluation.
func (it *Integrator) doErrorTest(savedT float64, nef *int, acnrm float64, netf *int) (errTestResult, float64) {
	dsm := acnrm / it.tq[2]
	if dsm <= 1 {
		return errPassed, dsm
	}

	(*nef)++
	(*netf)++
	it.restore(savedT)

	if math.Abs(it.h) <= it.hmin*onepsm || *nef == it.maxnef {
		return errFailedFatal, dsm
	}

	it.etamax = 1

	if *nef <= mxnef1 {
		it.eta = 1.0 / (math.Pow(bias2*dsm, 1.0/float64(it.L)) + addon)
		it.eta = math.Max(etamin, math.Max(it.eta, it.hmin/math.Abs(it.h)))
		if *nef >= smallNef {
			it.eta = math.Min(it.eta, etamxf)
		}
		it.rescale()
		return errFailedRetry, dsm
	}

	if it.q > 1 {
		it.eta = math.Max(etamin, it.hmin/math.Abs(it.h))
		it.adjustOrder(-1)
		it.L = it.q
		it.q--
		it.qwait = it.L
		it.rescale()
		return errFailedRetry, dsm
	}

	// Already at order 1: restart the history from scratch.
	it.eta = math.Max(etamin, it.hmin/math.Abs(it.h))
	it.h *= it.eta
	it.hscale = it.h
	it.qwait = longWait
	it.nscon = 0

	it.f(it.tn, it.zn[0], it.tempv)
	it.nfe++
	it.zn[1].Scale(it.h, it.tempv)

	if it.quadOn {
		it.fQ(it.tn, it.zn[0], it.tempvQ)
		it.nfQe++
		it.znQ[1].Scale(it.h, it.tempvQ)
	}

	if it.sensOn {
		it.sensRhs(it.tn, it.zn[0], it.tempv, it.znS[0], it.tempvS, it.ftemp, it.ftempS[0])
		for i := 0; i < it.ns; i++ {
			it.znS[1][i].Scale(it.h, it.tempvS[i])
		}
	}

	return errFailedRetry, dsm
}
