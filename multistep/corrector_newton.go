package multistep

import (
	"github.com/rollingthunder/multistep/linsolver"
)

// nlsNewton drives the Newton corrector: it decides whether a linear-solver
// setup is due, evaluates f at the predictor, and repeats newtonIteration
// with convfail escalated to FailBadJ if a stale-Jacobian retry is signaled.
func (it *Integrator) nlsNewton(flag stepFlag) nlsResult {
	doSensiSim := it.doSensiSim()

	convfail := linsolver.NoFailures
	if flag != firstCall && flag != prevErrFail {
		convfail = linsolver.FailOther
	}

	var callSetup bool
	if it.ls != nil {
		callSetup = flag == prevConvFail || flag == prevErrFail ||
			it.nst == 0 || it.nst >= it.nstlp+msbp || absF(it.gamrat-1) > dgmax
		if it.forceSetup {
			callSetup = true
			convfail = linsolver.FailOther
		}
	} else {
		it.crate = 1
		callSetup = false
	}

	for {
		if code := it.f(it.tn, it.zn[0], it.ftemp); code != 0 {
			return it.functionalRhsFailure(code)
		}
		it.nfe++

		if doSensiSim {
			it.sensRhs(it.tn, it.zn[0], it.ftemp, it.znS[0], it.ftempS, it.tempv, it.tempvS[0])
		}

		if callSetup {
			jcur, code := it.ls.Setup(convfail, it.tn, it.zn[0], it.ftemp, it.newtonScratch)
			it.nsetups++
			it.jcur = jcur
			callSetup = false
			it.forceSetup = false
			it.gamrat = 1
			it.gammap = it.gamma
			it.crate = 1
			it.nstlp = it.nst
			if code < 0 {
				return nlsSetupFailUnrec
			}
			if code > 0 {
				return nlsConvFail
			}
		}

		it.acor.Const(0)
		it.y.Scale(1, it.zn[0])
		if doSensiSim {
			for i := 0; i < it.ns; i++ {
				it.acorS[i].Const(0)
				it.ySpred[i].Scale(1, it.znS[0][i])
			}
		}

		result := it.newtonIteration(doSensiSim)
		if result != nlsTryAgain {
			return result
		}
		callSetup = true
		convfail = linsolver.FailBadJ
	}
}

// newtonIteration is the inner Newton loop: it solves the linearized
// residual M*delta = rhs each pass via the attached linsolver.Solver,
// folding in the sensitivity block under SIMULTANEOUS.
func (it *Integrator) newtonIteration(doSensiSim bool) nlsResult {
	m := 0
	it.crate = 1

	var del, delS, delp float64

	for {
		it.tempv.LinearSum(it.rl1, it.zn[1], 1, it.acor)
		it.tempv.LinearSum(it.gamma, it.ftemp, -1, it.tempv)

		code := it.ls.Solve(it.tempv, it.ewt, it.y, it.ftemp)
		it.nni++
		if code < 0 {
			return nlsSolveFailUnrec
		}
		if code > 0 {
			if !it.jcur && it.ls != nil {
				return nlsTryAgain
			}
			return nlsConvFail
		}

		if doSensiSim {
			for i := 0; i < it.ns; i++ {
				it.tempvS[i].LinearSum(it.rl1, it.znS[1][i], 1, it.acorS[i])
				it.tempvS[i].LinearSum(it.gamma, it.ftempS[i], -1, it.tempvS[i])
				sCode := it.ls.Solve(it.tempvS[i], it.ewtS[i], it.y, it.ftemp)
				if sCode < 0 {
					return nlsSolveFailUnrec
				}
				if sCode > 0 {
					if !it.jcur && it.ls != nil {
						return nlsTryAgain
					}
					return nlsConvFail
				}
			}
		}

		del = it.tempv.WRMSNorm(it.ewt)
		it.acor.LinearSum(1, it.acor, 1, it.tempv)
		it.y.LinearSum(1, it.zn[0], 1, it.acor)

		if doSensiSim {
			delS = updateNorm(del, wrmsSens(it.tempvS, it.ewtS))
			for i := 0; i < it.ns; i++ {
				it.acorS[i].LinearSum(1, it.acorS[i], 1, it.tempvS[i])
				it.ySpred[i].LinearSum(1, it.znS[0][i], 1, it.acorS[i])
			}
		}

		deltaUsed := del
		if doSensiSim {
			deltaUsed = delS
		}
		if m > 0 {
			it.crate = maxF(crdown*it.crate, deltaUsed/delp)
		}
		dcon := deltaUsed * minF(1, it.crate) / it.tq[4]

		if dcon <= 1 {
			if m == 0 {
				if doSensiSim && it.errcon == Full {
					it.acnrm = delS
				} else {
					it.acnrm = del
				}
			} else {
				it.acnrm = it.acor.WRMSNorm(it.ewt)
				if doSensiSim && it.errcon == Full {
					it.acnrm = updateNorm(it.acnrm, wrmsSens(it.acorS, it.ewtS))
				}
			}
			it.jcur = false
			return nlsSolved
		}

		m++
		if m == it.maxcor || (m >= 2 && deltaUsed > rdiv*delp) {
			if !it.jcur && it.ls != nil {
				return nlsTryAgain
			}
			return nlsConvFail
		}

		delp = deltaUsed
		if code := it.f(it.tn, it.y, it.ftemp); code != 0 {
			return it.functionalRhsFailure(code)
		}
		it.nfe++

		if doSensiSim {
			it.sensRhs(it.tn, it.y, it.ftemp, it.ySpred, it.ftempS, it.tempv, it.tempvS[0])
		}
	}
}

func absF(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
