package multistep

// nlsFunctional implements fixed-point (functional) iteration. It also
// drives the combined state+sensitivity system when sensitivities are
// computed with the SIMULTANEOUS coupling.
func (it *Integrator) nlsFunctional() nlsResult {
	doSensiSim := it.doSensiSim()

	it.crate = 1
	m := 0

	if code := it.f(it.tn, it.zn[0], it.tempv); code != 0 {
		return it.functionalRhsFailure(code)
	}
	it.nfe++

	if doSensiSim {
		it.sensRhs(it.tn, it.zn[0], it.tempv, it.znS[0], it.tempvS, it.ftemp, it.ftempS[0])
	}

	it.acor.Const(0)
	if doSensiSim {
		for i := 0; i < it.ns; i++ {
			it.acorS[i].Const(0)
		}
	}

	var del, delS, delp float64

	for {
		it.nni++

		// tempv := rl1 * (h*tempv - zn[1])
		it.tempv.LinearSum(it.h, it.tempv, -1, it.zn[1])
		it.tempv.Scale(it.rl1, it.tempv)
		it.y.LinearSum(1, it.zn[0], 1, it.tempv)

		if doSensiSim {
			for i := 0; i < it.ns; i++ {
				it.tempvS[i].LinearSum(it.h, it.tempvS[i], -1, it.znS[1][i])
				it.tempvS[i].Scale(it.rl1, it.tempvS[i])
				it.ySpred[i].LinearSum(1, it.znS[0][i], 1, it.tempvS[i])
			}
		}

		it.acor.LinearSum(1, it.tempv, -1, it.acor)
		if doSensiSim {
			for i := 0; i < it.ns; i++ {
				it.acorS[i].LinearSum(1, it.tempvS[i], -1, it.acorS[i])
			}
		}

		del = it.acor.WRMSNorm(it.ewt)
		if doSensiSim {
			delS = updateNorm(del, wrmsSens(it.acorS, it.ewtS))
		}

		it.acor.Scale(1, it.tempv)
		if doSensiSim {
			for i := 0; i < it.ns; i++ {
				it.acorS[i].Scale(1, it.tempvS[i])
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
			return nlsSolved
		}

		m++
		if m == it.maxcor || (m >= 2 && deltaUsed > rdiv*delp) {
			return nlsConvFail
		}

		delp = deltaUsed
		if code := it.f(it.tn, it.y, it.tempv); code != 0 {
			return it.functionalRhsFailure(code)
		}
		it.nfe++

		if doSensiSim {
			it.sensRhs(it.tn, it.y, it.tempv, it.ySpred, it.tempvS, it.ftemp, it.ftempS[0])
		}
	}
}

// functionalRhsFailure maps a recoverable f() failure (code>0) onto a
// convergence failure the step controller will retry with a smaller h; an
// unrecoverable failure (code<0) is returned as nlsSolveFailUnrec, and the
// code kept in it.lastRhsErr lets the caller surface it as RhsFailed.
func (it *Integrator) functionalRhsFailure(code int) nlsResult {
	it.lastRhsErr = code
	if code > 0 {
		return nlsConvFail
	}
	return nlsSolveFailUnrec
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
