package multistep

// quadCorrect computes the quadrature correction directly from fQ; no
// nonlinear solve is needed since q' = fQ(t,y) does not feed back on
// itself. It leaves acorQ/acnrmQ set for the quadrature error test. The
// returned code is the fQ return: 0 on success, >0 recoverable, <0
// unrecoverable.
func (it *Integrator) quadCorrect() int {
	if code := it.fQ(it.tn, it.y, it.acorQ); code != 0 {
		it.lastRhsErr = code
		return code
	}
	it.nfQe++

	it.acorQ.LinearSum(it.h, it.acorQ, -1, it.znQ[1])
	it.acorQ.Scale(it.rl1, it.acorQ)
	it.yQ.LinearSum(1, it.znQ[0], 1, it.acorQ)

	if it.errconQ == Full {
		it.acnrmQ = it.acorQ.WRMSNorm(it.ewtQ)
	}
	return 0
}
