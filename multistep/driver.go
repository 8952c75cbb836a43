package multistep

import (
	"math"

	"github.com/rollingthunder/multistep/vector"
)

// Step is the top-level driver. It advances the integrator, taking as many
// internal steps as itask requires, writes the result into yout, and
// returns the time yout corresponds to. On an error raised after the
// argument checks, yout holds the last-accepted state and t the time it was
// accepted at, so callers can inspect how far the integration got.
func (it *Integrator) Step(tout float64, yout vector.Vector, itask ITask) (t float64, res Result, err error) {
	if !it.initialized {
		return it.tn, 0, newErr(NoMemory, it.tn, "Init must be called before Step")
	}
	if yout == nil {
		return it.tn, 0, newErr(IllInput, it.tn, "yout must be non-nil")
	}
	if it.iter == Newton && it.ls == nil {
		return it.tn, 0, newErr(IllInput, it.tn, "Newton iteration requires an attached linear solver")
	}

	if it.nst == 0 {
		if err := it.firstCallSetup(tout); err != nil {
			yout.Scale(1, it.zn[0])
			return it.tn, 0, err
		}
	} else {
		// Estimate an infinitesimal time interval to be used as a round-off
		// fuzz on the stopping tests below.
		tfuzz := fuzzFactor * it.uround * (math.Abs(it.tn) + math.Abs(it.h))

		if !itask.oneStep() && (it.tn-tout)*it.h >= 0 {
			if err := it.GetDky(tout, 0, yout); err != nil {
				yout.Scale(1, it.zn[0])
				return it.tn, 0, err
			}
			return tout, Success, nil
		}
		if itask.hasTstop() && math.Abs(it.tn-it.tstop) <= tfuzz {
			it.GetDky(it.tstop, 0, yout)
			return it.tstop, TstopReturn, nil
		}
	}

	nstloc := 0
	for {
		if it.nst > 0 {
			if err := it.ewtSet(it.zn[0], it.ewt); err != nil {
				yout.Scale(1, it.zn[0])
				return it.tn, 0, newErr(EwtNowBad, it.tn, err.Error())
			}
			if it.quadOn && it.errconQ == Full {
				if err := ewtSetWith(it.ewtQ, it.znQ[0], it.rtolQ, it.itolQ, it.atolQS, it.atolQV, it.tempvQ); err != nil {
					yout.Scale(1, it.zn[0])
					return it.tn, 0, newErr(EwtNowBad, it.tn, err.Error())
				}
			}
			if it.sensOn {
				if err := it.ewtSetSens(); err != nil {
					yout.Scale(1, it.zn[0])
					return it.tn, 0, newErr(EwtNowBad, it.tn, err.Error())
				}
			}
		}

		if nstloc >= it.mxstep {
			yout.Scale(1, it.zn[0])
			return it.tn, 0, newErr(TooMuchWork, it.tn, "maximum number of internal steps reached")
		}

		tolsf := it.uround * it.wrmsTotal()
		if tolsf > 1 {
			yout.Scale(1, it.zn[0])
			return it.tn, 0, newErr(TooMuchAcc, it.tn, "requested accuracy unachievable at current precision")
		}

		if it.tn+it.hprime == it.tn && it.h != 0 {
			it.nhnil++
			if it.nhnil <= it.mxhnil {
				it.log.Log("msg", "internal t + h = t on next step", "t", it.tn, "h", it.h)
			}
		}

		if itask.hasTstop() {
			it.clipStepToTstop()
		}

		if err := it.takeStep(); err != nil {
			yout.Scale(1, it.zn[0])
			return it.tn, 0, err
		}
		nstloc++

		if itask.hasTstop() {
			tfuzz := fuzzFactor * it.uround * (math.Abs(it.tn) + math.Abs(it.h))
			if math.Abs(it.tn-it.tstop) <= tfuzz {
				it.GetDky(it.tstop, 0, yout)
				return it.tstop, TstopReturn, nil
			}
		}

		if itask.oneStep() {
			yout.Scale(1, it.zn[0])
			return it.tn, Success, nil
		}

		if (it.tn-tout)*it.h >= 0 {
			if err := it.GetDky(tout, 0, yout); err != nil {
				yout.Scale(1, it.zn[0])
				return it.tn, 0, err
			}
			return tout, Success, nil
		}
	}
}

// firstCallSetup performs the one-time work at nst == 0: evaluate f (and fQ,
// fS) at (t0, y0), seed zn[1], and pick an initial h if the caller has not
// already set one via InitStep.
func (it *Integrator) firstCallSetup(tout float64) error {
	if code := it.f(it.tn, it.zn[0], it.zn[1]); code != 0 {
		return newErr(RhsFailed, it.tn, "initial right-hand-side evaluation failed")
	}
	it.nfe++

	if it.quadOn {
		if code := it.fQ(it.tn, it.zn[0], it.tempvQ); code != 0 {
			return newErr(RhsFailed, it.tn, "initial quadrature right-hand-side evaluation failed")
		}
		it.nfQe++
		it.znQ[1].Scale(1, it.tempvQ)
	}

	if it.sensOn {
		it.sensRhs(it.tn, it.zn[0], it.zn[1], it.znS[0], it.tempvS, it.ftemp, it.ftempS[0])
		for i := 0; i < it.ns; i++ {
			it.znS[1][i].Scale(1, it.tempvS[i])
		}
	}

	if err := it.ewtSet(it.zn[0], it.ewt); err != nil {
		return newErr(EwtInvalid, it.tn, err.Error())
	}

	if it.h == 0 {
		h0, err := it.estimateInitialStep(it.tn, it.zn[0], it.zn[1], tout)
		if err != nil {
			return err
		}
		it.h = h0
	}

	rh := math.Abs(it.h) * it.hmaxInv
	if rh > 1 {
		it.h /= rh
	}
	if math.Abs(it.h) < it.hmin {
		it.h *= it.hmin / math.Abs(it.h)
	}

	if it.tstopset {
		if (it.tn+it.h-it.tstop)*it.h > 0 {
			it.h = it.tstop - it.tn
		}
	}

	it.hscale = it.h
	it.hprime = it.h
	it.zn[1].Scale(it.h, it.zn[1])
	if it.quadOn {
		it.znQ[1].Scale(it.h, it.znQ[1])
	}
	if it.sensOn {
		for i := 0; i < it.ns; i++ {
			it.znS[1][i].Scale(it.h, it.znS[1][i])
		}
	}

	return nil
}

// clipStepToTstop shrinks hprime (and the eta the next rescale applies) so
// a tstop-honoring step never crosses tstop. The 1-4*uround factor keeps
// the clipped step from landing a hair past tstop in rounded arithmetic.
func (it *Integrator) clipStepToTstop() {
	if it.hprime == 0 {
		it.hprime = it.h
	}
	if (it.tn+it.hprime-it.tstop)*it.h > 0 {
		it.hprime = (it.tstop - it.tn) * (1 - 4*it.uround)
		if it.nst > 0 {
			it.eta = it.hprime / it.h
		}
	}
}

// GetDky interpolates the k-th derivative of y at time t using the Nordsieck
// history: dky := Σ_{j=k..q} c(j,k)·((t−tn)/h)^(j−k)·h^-k·zn[j].
func (it *Integrator) GetDky(t float64, k int, dky vector.Vector) error {
	return it.getDkyOf(t, k, it.zn, dky)
}

// GetDkyQuad is GetDky for the quadrature history.
func (it *Integrator) GetDkyQuad(t float64, k int, dkyQ vector.Vector) error {
	if !it.quadOn {
		return newErr(NoMemory, t, "QuadInit must be called before GetDkyQuad")
	}
	return it.getDkyOf(t, k, it.znQ, dkyQ)
}

// GetDkySens is GetDky for a single sensitivity index's history.
func (it *Integrator) GetDkySens(which int, t float64, k int, dkyS vector.Vector) error {
	if !it.sensOn {
		return newErr(NoMemory, t, "SensInit must be called before GetDkySens")
	}
	if which < 0 || which >= it.ns {
		return newErr(IllInput, t, "sensitivity index out of range")
	}
	col := make([]vector.Vector, len(it.znS))
	for j := range col {
		col[j] = it.znS[j][which]
	}
	return it.getDkyOf(t, k, col, dkyS)
}

// GetDkySensAll is GetDky for every sensitivity index at once.
func (it *Integrator) GetDkySensAll(t float64, k int, dkyS []vector.Vector) error {
	if !it.sensOn {
		return newErr(NoMemory, t, "SensInit must be called before GetDkySensAll")
	}
	if len(dkyS) != it.ns {
		return newErr(IllInput, t, "dkyS must have exactly ns vectors")
	}
	for i := 0; i < it.ns; i++ {
		if err := it.GetDkySens(i, t, k, dkyS[i]); err != nil {
			return err
		}
	}
	return nil
}

// getDkyOf is the shared interpolation kernel GetDky/GetDkyQuad/GetDkySens
// all reduce to, parameterized over which history array to read. The sum is
// accumulated Horner-style in s = (t-tn)/h from the highest column down.
func (it *Integrator) getDkyOf(t float64, k int, zn []vector.Vector, dky vector.Vector) error {
	if dky == nil {
		return newErr(BadDky, t, "dky must be non-nil")
	}
	if k < 0 || k > it.q {
		return newErr(BadK, t, "derivative order out of range")
	}
	tfuzz := fuzzFactor * it.uround * (math.Abs(it.tn) + math.Abs(it.hu))
	tp := it.tn - it.hu - tfuzz
	tn1 := it.tn + tfuzz
	if (t-tp)*(t-tn1) > 0 {
		return newErr(BadT, t, "interpolation time outside the last step's interval")
	}

	s := (t - it.tn) / it.h
	for j := it.q; j >= k; j-- {
		c := 1.0
		for i := j; i >= j-k+1; i-- {
			c *= float64(i)
		}
		if j == it.q {
			dky.Scale(c, zn[j])
		} else {
			dky.LinearSum(c, zn[j], s, dky)
		}
	}
	if k == 0 {
		return nil
	}
	dky.Scale(math.Pow(it.h, float64(-k)), dky)
	return nil
}
