package multistep

import (
	"math"

	"github.com/rollingthunder/multistep/vector"
)

// takeStep advances the integrator by one internal step: predict, set
// coefficients, correct, test, and on success complete the step and choose
// the next one's size/order. It retries internally on convergence and
// local-error-test failures, and returns only once a step is accepted or a
// failure is unrecoverable.
func (it *Integrator) takeStep() error {
	var nflag stepFlag = otherCall
	if it.nst == 0 {
		nflag = firstCall
	}

	ncf, nef := 0, 0
	nefQ := 0
	ncfS, nefS := 0, 0
	it.lastRhsErr = 0

	if it.sensOn && it.ism == Staggered1 {
		for i := range it.ncfS1 {
			it.ncfS1[i] = 0
		}
	}

	if it.nst > 0 && it.hprime != it.h {
		it.adjustParams()
	}

	for {
		savedT := it.tn
		it.predict()
		it.setCoefficients()

		result := it.nlsSolve(nflag)
		if result != nlsSolved {
			if err := it.handleNlsFailure(result, savedT, &ncf, &it.ncfn); err != nil {
				return err
			}
			nflag = prevConvFail
			continue
		}
		ncf = 0

		passed, dsm := it.doErrorTest(savedT, &nef, it.acnrm, &it.netf)
		if passed == errFailedFatal {
			return newErr(ErrFailure, it.tn, "repeated local error test failures")
		}
		if passed == errFailedRetry {
			nflag = prevErrFail
			continue
		}

		if it.quadOn {
			if code := it.quadCorrect(); code != 0 {
				if code > 0 {
					if err := it.handleNlsFailure(nlsConvFail, savedT, &ncf, &it.ncfn); err != nil {
						return err
					}
					nflag = prevConvFail
					continue
				}
				return newErr(RhsFailed, it.tn, "unrecoverable quadrature rhs failure")
			}
			if it.errconQ == Full {
				qPassed, qdsm := it.doErrorTest(savedT, &nefQ, it.acnrmQ, &it.netfQ)
				if qPassed == errFailedFatal {
					return newErr(ErrFailure, it.tn, "repeated quadrature error test failures")
				}
				if qPassed == errFailedRetry {
					nflag = prevErrFail
					continue
				}
				dsm = updateNorm(dsm, qdsm)
			}
		}

		if it.sensOn && it.ism == Staggered {
			ncf, nef = 0, 0
			if code := it.f(it.tn, it.y, it.ftemp); code != 0 {
				if code < 0 {
					return newErr(RhsFailed, it.tn, "unrecoverable rhs failure before sensitivity solve")
				}
				if err := it.handleNlsFailure(nlsConvFail, savedT, &ncfS, &it.ncfnS); err != nil {
					return err
				}
				nflag = prevConvFail
				continue
			}
			it.nfe++

			sResult := it.nlsStaggered()
			if sResult != nlsSolved {
				if err := it.handleNlsFailure(sResult, savedT, &ncfS, &it.ncfnS); err != nil {
					return err
				}
				nflag = prevConvFail
				continue
			}
			if it.errcon == Full {
				sPassed, dsmS := it.doErrorTest(savedT, &nefS, it.acnrmS, &it.netfS)
				if sPassed == errFailedFatal {
					return newErr(ErrFailure, it.tn, "repeated sensitivity error test failures")
				}
				if sPassed == errFailedRetry {
					nflag = prevErrFail
					continue
				}
				dsm = updateNorm(dsm, dsmS)
			}
		} else if it.sensOn && it.ism == Staggered1 {
			ncf, nef = 0, 0
			if code := it.f(it.tn, it.y, it.ftemp); code != 0 {
				if code < 0 {
					return newErr(RhsFailed, it.tn, "unrecoverable rhs failure before sensitivity solve")
				}
				if err := it.handleNlsFailure(nlsConvFail, savedT, &ncfS, &it.ncfnS); err != nil {
					return err
				}
				nflag = prevConvFail
				continue
			}
			it.nfe++

			var sResult nlsResult = nlsSolved
			for i := 0; i < it.ns; i++ {
				sResult = it.nlsStaggered1(i)
				if sResult != nlsSolved {
					if err := it.handleNlsFailure(sResult, savedT, &it.ncfS1[i], &it.ncfnS1[i]); err != nil {
						return err
					}
					break
				}
			}
			if sResult != nlsSolved {
				nflag = prevConvFail
				continue
			}
			if it.errcon == Full {
				it.acnrmS = wrmsSens(it.acorS, it.ewtS)
				sPassed, dsmS := it.doErrorTest(savedT, &nefS, it.acnrmS, &it.netfS)
				if sPassed == errFailedFatal {
					return newErr(ErrFailure, it.tn, "repeated sensitivity error test failures")
				}
				if sPassed == errFailedRetry {
					for i := range it.netfS1 {
						it.netfS1[i]++
					}
					nflag = prevErrFail
					continue
				}
				dsm = updateNorm(dsm, dsmS)
			}
		}

		it.completeStep()
		it.prepareNextStep(dsm)

		if it.sldeton {
			it.bdfStab()
		}

		if it.nst <= smallNst {
			it.etamax = etamx2
		} else {
			it.etamax = etamx3
		}

		it.acor.Scale(1/it.tq[2], it.acor)
		if it.quadOn {
			it.acorQ.Scale(1/it.tq[2], it.acorQ)
		}
		if it.sensOn {
			for i := 0; i < it.ns; i++ {
				it.acorS[i].Scale(1/it.tq[2], it.acorS[i])
			}
		}

		return nil
	}
}

// handleNlsFailure restores the history after a failed nonlinear solve and
// classifies the failure: a nil return means the step has been shrunk and
// rescaled and the caller should retry; a non-nil return is the surfaced
// failure.
func (it *Integrator) handleNlsFailure(result nlsResult, savedT float64, ncf, ncfn *int) error {
	*ncfn++
	it.restore(savedT)

	if result == nlsSolveFailUnrec {
		if it.lastRhsErr < 0 {
			return newErr(RhsFailed, it.tn, "unrecoverable right-hand-side failure in corrector")
		}
		return newErr(SolveFailure, it.tn, "unrecoverable linear solve failure")
	}
	if result == nlsSetupFailUnrec {
		return newErr(SetupFailure, it.tn, "unrecoverable linear solver setup failure")
	}

	*ncf++
	it.etamax = 1
	if math.Abs(it.h) <= it.hmin*onepsm || *ncf == it.maxncf {
		return newErr(ConvFailure, it.tn, "repeated nonlinear convergence failures")
	}

	it.eta = math.Max(etacf, it.hmin/math.Abs(it.h))
	it.rescale()
	return nil
}

// adjustParams is applied once at the start of a step when the previous
// step's prepareNextStep chose a different h/q: it folds in any order change
// and then rescales the Nordsieck history to the new h.
func (it *Integrator) adjustParams() {
	if it.qprime != it.q {
		it.adjustOrder(it.qprime - it.q)
		it.q = it.qprime
		it.L = it.q + 1
		it.qwait = it.L
	}
	it.rescale()
}

// completeStep folds the accepted correction into the Nordsieck history,
// shifts the step-history array tau, and preserves the correction at
// zn[qmax] one step before a possible order increase.
func (it *Integrator) completeStep() {
	it.nst++
	it.nscon++
	it.hu = it.h
	it.qu = it.q

	for i := it.q; i >= 2; i-- {
		it.tau[i] = it.tau[i-1]
	}
	if it.q == 1 && it.nst > 1 {
		it.tau[2] = it.tau[1]
	}
	it.tau[1] = it.h

	for j := 0; j <= it.q; j++ {
		it.zn[j].LinearSum(it.l[j], it.acor, 1, it.zn[j])
	}
	if it.quadOn {
		for j := 0; j <= it.q; j++ {
			it.znQ[j].LinearSum(it.l[j], it.acorQ, 1, it.znQ[j])
		}
	}
	if it.sensOn {
		for i := 0; i < it.ns; i++ {
			for j := 0; j <= it.q; j++ {
				it.znS[j][i].LinearSum(it.l[j], it.acorS[i], 1, it.znS[j][i])
			}
		}
	}

	it.qwait--
	if it.qwait == 1 && it.q != it.qmax {
		it.zn[it.qmax].Scale(1, it.acor)
		if it.quadOn && it.errconQ == Full {
			it.znQ[it.qmax].Scale(1, it.acorQ)
		}
		if it.sensOn && it.errcon == Full {
			for i := 0; i < it.ns; i++ {
				it.znS[it.qmax][i].Scale(1, it.acorS[i])
			}
		}
		it.savedTq5 = it.tq[5]
	}
}

// prepareNextStep decides hprime/qprime and the scaling ratio eta for the
// step about to be taken.
func (it *Integrator) prepareNextStep(dsm float64) {
	if it.etamax == 1 {
		it.qwait = maxInt(it.qwait, 2)
		it.qprime = it.q
		it.hprime = it.h
		it.eta = 1
		return
	}

	it.etaq = 1.0 / (math.Pow(bias2*dsm, 1.0/float64(it.L)) + addon)

	if it.qwait != 0 {
		it.eta = it.etaq
		it.qprime = it.q
		it.setEta()
		return
	}

	it.qwait = 2
	it.etaqm1 = it.computeEtaqm1()
	it.etaqp1 = it.computeEtaqp1()
	it.chooseEta()
	it.setEta()
}

func (it *Integrator) setEta() {
	if it.eta < thresh {
		it.eta = 1
		it.hprime = it.h
		return
	}
	it.eta = math.Min(it.eta, it.etamax)
	it.eta /= math.Max(1, math.Abs(it.h)*it.hmaxInv*it.eta)
	it.hprime = it.h * it.eta
	if it.qprime < it.q {
		it.nscon = 0
	}
}

// computeEtaqm1 is the step-ratio candidate for decreasing the order by one.
func (it *Integrator) computeEtaqm1() float64 {
	if it.q <= 1 {
		return 0
	}
	ddn := it.zn[it.q].WRMSNorm(it.ewt)
	if it.quadOn && it.errconQ == Full {
		ddn = updateNorm(ddn, it.znQ[it.q].WRMSNorm(it.ewtQ))
	}
	if it.sensOn && it.errcon == Full {
		ddn = updateNorm(ddn, wrmsSensAt(it.znS, it.q, it.ewtS))
	}
	ddn /= it.tq[1]
	return 1.0 / (math.Pow(bias1*ddn, 1.0/float64(it.q)) + addon)
}

// computeEtaqp1 is the step-ratio candidate for increasing the order by one.
func (it *Integrator) computeEtaqp1() float64 {
	if it.q == it.qmax {
		return 0
	}
	cquot := (it.tq[5] / it.savedTq5) * math.Pow(it.h/it.tau[2], float64(it.L))

	it.tempv.LinearSum(-cquot, it.zn[it.qmax], 1, it.acor)
	dup := it.tempv.WRMSNorm(it.ewt)

	if it.quadOn && it.errconQ == Full {
		it.tempvQ.LinearSum(-cquot, it.znQ[it.qmax], 1, it.acorQ)
		dup = updateNorm(dup, it.tempvQ.WRMSNorm(it.ewtQ))
	}
	if it.sensOn && it.errcon == Full {
		for i := 0; i < it.ns; i++ {
			it.tempvS[i].LinearSum(-cquot, it.znS[it.qmax][i], 1, it.acorS[i])
		}
		dup = updateNorm(dup, wrmsSens(it.tempvS, it.ewtS))
	}

	dup /= it.tq[3]
	return 1.0 / (math.Pow(bias3*dup, 1.0/float64(it.L+1)) + addon)
}

// chooseEta picks the largest of etaqm1/etaq/etaqp1, preferring same order,
// then decrease, then increase on a tie.
func (it *Integrator) chooseEta() {
	etam := math.Max(it.etaqm1, math.Max(it.etaq, it.etaqp1))
	if etam < thresh {
		it.eta = 1
		it.qprime = it.q
		return
	}

	switch {
	case etam == it.etaq:
		it.eta = it.etaq
		it.qprime = it.q
	case etam == it.etaqm1:
		it.eta = it.etaqm1
		it.qprime = it.q - 1
	default:
		it.eta = it.etaqp1
		it.qprime = it.q + 1
		it.zn[it.qmax].Scale(1, it.acor)
		if it.quadOn && it.errconQ == Full {
			it.znQ[it.qmax].Scale(1, it.acorQ)
		}
		if it.sensOn && it.errcon == Full {
			for i := 0; i < it.ns; i++ {
				it.znS[it.qmax][i].Scale(1, it.acorS[i])
			}
		}
	}
}

func wrmsSensAt(znS [][]vector.Vector, q int, ewtS []vector.Vector) float64 {
	max := 0.0
	for i := range znS[q] {
		if n := znS[q][i].WRMSNorm(ewtS[i]); n > max {
			max = n
		}
	}
	return max
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
