package multistep

import "github.com/rollingthunder/multistep/coeff"

// setCoefficients computes l[0..q], tq[1..5] for the current order and step
// history, then derives gamma/gammap/gamrat from l[1].
func (it *Integrator) setCoefficients() {
	var c coeff.Coeffs
	if it.lmm == Adams {
		c = coeff.Adams(it.q, it.tau[:], it.h, it.qwait, it.nlscoef)
	} else {
		c = coeff.BDF(it.q, it.tau[:], it.h, it.qwait, it.nlscoef)
	}
	for i := range it.l {
		it.l[i] = 0
	}
	copy(it.l[:], c.L[:])
	it.tq = c.Tq

	it.rl1 = 1.0 / it.l[1]
	it.gamma = it.h * it.rl1
	if it.nst == 0 {
		it.gammap = it.gamma
	}
	if it.gammap == 0 {
		it.gamrat = 1
	} else {
		it.gamrat = it.gamma / it.gammap
	}
	if it.ls != nil {
		it.ls.SetGamma(it.gamma)
	}
}
