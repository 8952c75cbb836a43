package multistep

import (
	"github.com/rollingthunder/multistep/linsolver"
	"github.com/rollingthunder/multistep/vector"
)

// nlsStaggered solves the combined sensitivity system for every index at
// once, after the state corrector and its error test have both succeeded.
// nlsStaggered1 reuses the same machinery restricted to a single
// sensitivity index, with per-index convergence accounting. Both keep their
// convergence-rate estimates distinct from the state corrector's crate.
func (it *Integrator) nlsStaggered() nlsResult {
	idx := it.allSensIdx()
	return it.nlsStgrCore(idx, &it.crateS, &it.nniS)
}

func (it *Integrator) nlsStaggered1(which int) nlsResult {
	idx := []int{which}
	return it.nlsStgrCore(idx, &it.crateS1[which], &it.nniS1[which])
}

func (it *Integrator) allSensIdx() []int {
	idx := make([]int, it.ns)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// nlsStgrCore drives the sensitivity-only nonlinear solve over the given
// index set, dispatching on iter exactly as the state corrector does.
func (it *Integrator) nlsStgrCore(idx []int, crate *float64, nIters *int) nlsResult {
	if it.iter == Functional {
		return it.stgrFunctional(idx, crate, nIters)
	}
	return it.stgrNewton(idx, crate, nIters)
}

func (it *Integrator) stgrFunctional(idx []int, crate *float64, nIters *int) nlsResult {
	*crate = 1
	m := 0

	it.sensRhsSubset(it.tn, it.y, it.ftemp, idx, it.znS[0], it.tempvS)

	for _, i := range idx {
		it.acorS[i].Const(0)
	}

	var del, delp float64
	for {
		*nIters++

		for _, i := range idx {
			it.tempvS[i].LinearSum(it.h, it.tempvS[i], -1, it.znS[1][i])
			it.tempvS[i].Scale(it.rl1, it.tempvS[i])
			it.ySpred[i].LinearSum(1, it.znS[0][i], 1, it.tempvS[i])
		}
		for _, i := range idx {
			it.acorS[i].LinearSum(1, it.tempvS[i], -1, it.acorS[i])
		}
		del = wrmsSensSubset(it.acorS, it.ewtS, idx)
		for _, i := range idx {
			it.acorS[i].Scale(1, it.tempvS[i])
		}

		if m > 0 {
			*crate = maxF(crdown**crate, del/delp)
		}
		dcon := del * minF(1, *crate) / it.tq[4]
		if dcon <= 1 {
			if it.errcon == Full {
				if m == 0 {
					it.acnrmS = del
				} else {
					it.acnrmS = wrmsSensSubset(it.acorS, it.ewtS, idx)
				}
			}
			return nlsSolved
		}

		m++
		if m == it.maxcorS || (m >= 2 && del > rdiv*delp) {
			return nlsConvFail
		}
		delp = del
		it.sensRhsSubset(it.tn, it.y, it.ftemp, idx, it.ySpred, it.tempvS)
	}
}

func (it *Integrator) stgrNewton(idx []int, crate *float64, nIters *int) nlsResult {
	convfail := linsolver.FailOther

	for {
		for _, i := range idx {
			it.acorS[i].Const(0)
			it.ySpred[i].Scale(1, it.znS[0][i])
		}
		it.sensRhsSubset(it.tn, it.y, it.ftemp, idx, it.ySpred, it.ftempS)

		result := it.stgrNewtonIteration(idx, crate, nIters)
		if result != nlsTryAgain {
			return result
		}
		convfail = linsolver.FailBadJ

		jcur, code := it.ls.Setup(convfail, it.tn, it.y, it.ftemp, it.newtonScratch)
		it.nsetups++
		it.jcur = jcur
		it.gamrat = 1
		it.gammap = it.gamma
		it.crate = 1
		*crate = 1
		it.nstlp = it.nst
		if code < 0 {
			return nlsSetupFailUnrec
		}
		if code > 0 {
			return nlsConvFail
		}
	}
}

func (it *Integrator) stgrNewtonIteration(idx []int, crate *float64, nIters *int) nlsResult {
	m := 0
	var del, delp float64

	for {
		for _, i := range idx {
			it.tempvS[i].LinearSum(it.rl1, it.znS[1][i], 1, it.acorS[i])
			it.tempvS[i].LinearSum(it.gamma, it.ftempS[i], -1, it.tempvS[i])
		}
		*nIters++
		for _, i := range idx {
			code := it.ls.Solve(it.tempvS[i], it.ewtS[i], it.y, it.ftemp)
			if code < 0 {
				return nlsSolveFailUnrec
			}
			if code > 0 {
				if !it.jcur && it.ls != nil {
					return nlsTryAgain
				}
				return nlsConvFail
			}
		}

		del = wrmsSensSubset(it.tempvS, it.ewtS, idx)
		for _, i := range idx {
			it.acorS[i].LinearSum(1, it.acorS[i], 1, it.tempvS[i])
			it.ySpred[i].LinearSum(1, it.znS[0][i], 1, it.acorS[i])
		}

		if m > 0 {
			*crate = maxF(crdown**crate, del/delp)
		}
		dcon := del * minF(1, *crate) / it.tq[4]
		if dcon <= 1 {
			if it.errcon == Full {
				if m == 0 {
					it.acnrmS = del
				} else {
					it.acnrmS = wrmsSensSubset(it.acorS, it.ewtS, idx)
				}
			}
			it.jcur = false
			return nlsSolved
		}

		m++
		if m == it.maxcorS || (m >= 2 && del > rdiv*delp) {
			if !it.jcur && it.ls != nil {
				return nlsTryAgain
			}
			return nlsConvFail
		}
		delp = del
		it.sensRhsSubset(it.tn, it.y, it.ftemp, idx, it.ySpred, it.ftempS)
	}
}

// sensRhsSubset evaluates the sensitivity RHS for exactly the indices in
// idx, dispatching through sensRhs1 so Staggered1's
// single-index calls share the DQ/OneSens logic with Staggered's full pass.
func (it *Integrator) sensRhsSubset(t float64, y, ydot vector.Vector, idx []int, yS, ySdot []vector.Vector) {
	for _, i := range idx {
		it.sensRhs1(i, t, y, ydot, yS[i], ySdot[i], it.tempv, it.ftemp)
	}
}

func wrmsSensSubset(xS, wS []vector.Vector, idx []int) float64 {
	max := 0.0
	for _, i := range idx {
		if n := xS[i].WRMSNorm(wS[i]); n > max {
			max = n
		}
	}
	return max
}
