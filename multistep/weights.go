package multistep

import "github.com/rollingthunder/multistep/vector"

// ewtSet fills w with the error-weight vector for y: w_k = 1/(rtol*|y_k| +
// atol_k). Fails when the intermediate vector has a
// non-positive component.
func (it *Integrator) ewtSet(y, w vector.Vector) error {
	return ewtSetWith(w, y, it.rtol, it.itol, it.atolS, it.atolV, it.tempv)
}

// ewtSetWith is the free function both the state and quadrature weight
// computations share, since they differ only in which tolerances are
// supplied.
func ewtSetWith(w, y vector.Vector, rtol float64, itol ItolType, atolS float64, atolV vector.Vector, scratch vector.Vector) error {
	scratch.Abs(y)
	switch itol {
	case SS:
		scratch.Scale(rtol, scratch)
		scratch.AddConst(scratch, atolS)
	case SV:
		scratch.Scale(rtol, scratch)
		scratch.LinearSum(1, scratch, 1, atolV)
	}
	return w.Inv(scratch)
}

// ewtSetSens fills wS[i] for every sensitivity index from the current
// znS[0][i]. When atol is not supplied directly it is derived as
// atol/|pbar[i]|.
func (it *Integrator) ewtSetSens() error {
	for i := 0; i < it.ns; i++ {
		var atolS float64
		var atolV vector.Vector
		switch it.itolS {
		case SS:
			atolS = it.atolSS[i]
		case SV:
			atolV = it.atolSV[i]
		}
		if err := ewtSetWith(it.ewtS[i], it.znS[0][i], it.rtolS, it.itolS, atolS, atolV, it.tempv); err != nil {
			return err
		}
	}
	return nil
}

// wrmsSens is the max over i of wrms(xS[i], wS[i]).
func wrmsSens(xS, wS []vector.Vector) float64 {
	max := 0.0
	for i := range xS {
		if n := xS[i].WRMSNorm(wS[i]); n > max {
			max = n
		}
	}
	return max
}

// updateNorm folds extra into old by taking the larger.
func updateNorm(old, extra float64) float64 {
	if extra > old {
		return extra
	}
	return old
}

// wrmsTotal is the combined norm behind the tolsf accuracy check:
// wrms(y, ewt), extended with quadrature/sensitivity state when those
// subsystems are enabled and under full error control.
func (it *Integrator) wrmsTotal() float64 {
	n := it.zn[0].WRMSNorm(it.ewt)
	if it.quadOn && it.errconQ == Full {
		n = updateNorm(n, it.znQ[0].WRMSNorm(it.ewtQ))
	}
	if it.sensOn && it.errcon == Full {
		for i := 0; i < it.ns; i++ {
			n = updateNorm(n, it.znS[0][i].WRMSNorm(it.ewtS[i]))
		}
	}
	return n
}
