package multistep

// predict applies the Nordsieck "Pascal's triangle" update in place across
// zn, znQ and every znS[·][i], then advances tn by h.
func (it *Integrator) predict() {
	q := it.q
	for k := 1; k <= q; k++ {
		for j := q; j >= k; j-- {
			it.zn[j-1].LinearSum(1, it.zn[j-1], 1, it.zn[j])
		}
	}
	if it.quadOn {
		for k := 1; k <= q; k++ {
			for j := q; j >= k; j-- {
				it.znQ[j-1].LinearSum(1, it.znQ[j-1], 1, it.znQ[j])
			}
		}
	}
	if it.sensOn {
		for i := 0; i < it.ns; i++ {
			for k := 1; k <= q; k++ {
				for j := q; j >= k; j-- {
					it.znS[j-1][i].LinearSum(1, it.znS[j-1][i], 1, it.znS[j][i])
				}
			}
		}
	}
	it.tn += it.h
}

// restore exactly inverts predict and resets tn.
func (it *Integrator) restore(savedT float64) {
	q := it.q
	for k := 1; k <= q; k++ {
		for j := q; j >= k; j-- {
			it.zn[j-1].LinearSum(1, it.zn[j-1], -1, it.zn[j])
		}
	}
	if it.quadOn {
		for k := 1; k <= q; k++ {
			for j := q; j >= k; j-- {
				it.znQ[j-1].LinearSum(1, it.znQ[j-1], -1, it.znQ[j])
			}
		}
	}
	if it.sensOn {
		for i := 0; i < it.ns; i++ {
			for k := 1; k <= q; k++ {
				for j := q; j >= k; j-- {
					it.znS[j-1][i].LinearSum(1, it.znS[j-1][i], -1, it.znS[j][i])
				}
			}
		}
	}
	it.tn = savedT
}

// rescale multiplies column j of every history array by eta^j for j=1..q,
// then rescales h and resets the SLDET window.
func (it *Integrator) rescale() {
	factor := it.eta
	for j := 1; j <= it.q; j++ {
		it.zn[j].Scale(factor, it.zn[j])
		if it.quadOn {
			it.znQ[j].Scale(factor, it.znQ[j])
		}
		if it.sensOn {
			for i := 0; i < it.ns; i++ {
				it.znS[j][i].Scale(factor, it.znS[j][i])
			}
		}
		factor *= it.eta
	}
	it.h = it.hscale * it.eta
	it.hscale = it.h
	it.nscon = 0
}

// adjustOrder adapts the history array for an order change of +1 or -1,
// dispatching to the method-family-specific update. Order
// decrease is a documented no-op at q == 2.
func (it *Integrator) adjustOrder(deltaq int) {
	if deltaq == -1 && it.q == 2 {
		return
	}
	if it.lmm == Adams {
		it.adjustAdams(deltaq)
	} else {
		it.adjustBDF(deltaq)
	}
}

// adjustAdams implements the Adams order-change rule: zero the
// new column on increase; on decrease, subtract from columns 2..q-1 a
// multiple l[j]*zn[q] whose coefficients integrate
// q*u*(u+xi_1)*...*(u+xi_{q-2}).
func (it *Integrator) adjustAdams(deltaq int) {
	q := it.q
	if deltaq == 1 {
		it.zn[q+1].Const(0)
		if it.quadOn {
			it.znQ[q+1].Const(0)
		}
		if it.sensOn {
			for i := 0; i < it.ns; i++ {
				it.znS[q+1][i].Const(0)
			}
		}
		return
	}

	var lAdj [bdfAdamsLMax]float64
	for i := range lAdj {
		lAdj[i] = 0
	}
	lAdj[1] = 1
	hsum := 0.0
	for j := 1; j <= q-2; j++ {
		hsum += it.tau[j]
		xi := hsum / it.hscale
		for i := j + 1; i >= 1; i-- {
			lAdj[i] = lAdj[i]*xi + lAdj[i-1]
		}
	}
	for j := 1; j <= q-2; j++ {
		lAdj[j+1] = float64(q) * (lAdj[j] / float64(j+1))
	}
	for i := 2; i < q; i++ {
		it.zn[i].LinearSum(1, it.zn[i], -lAdj[i], it.zn[q])
	}
	if it.quadOn {
		for i := 2; i < q; i++ {
			it.znQ[i].LinearSum(1, it.znQ[i], -lAdj[i], it.znQ[q])
		}
	}
	if it.sensOn {
		for s := 0; s < it.ns; s++ {
			for i := 2; i < q; i++ {
				it.znS[i][s].LinearSum(1, it.znS[i][s], -lAdj[i], it.znS[q][s])
			}
		}
	}
}

// adjustBDF implements the BDF order-change rule: the increase consumes the
// saved correction in zn[qmax]; the decrease folds multiples of zn[q] out
// of the interior columns.
func (it *Integrator) adjustBDF(deltaq int) {
	if deltaq == 1 {
		it.increaseBDF()
		return
	}
	it.decreaseBDF()
}

func (it *Integrator) increaseBDF() {
	q := it.q
	var l [bdfAdamsLMax]float64
	l[2] = 1
	alpha1 := 1.0
	prod := 1.0
	xiold := 1.0
	alpha0 := -1.0
	hsum := it.hscale
	if q > 1 {
		for j := 1; j < q; j++ {
			hsum += it.tau[j+1]
			xi := hsum / it.hscale
			prod *= xi
			alpha0 -= 1.0 / float64(j+1)
			alpha1 += 1.0 / xi
			for i := j + 2; i >= 2; i-- {
				l[i] = l[i]*xiold + l[i-1]
			}
			xiold = xi
		}
	}
	a1 := (-alpha0 - alpha1) / prod

	it.zn[it.L].Scale(a1, it.zn[it.qmax])
	for j := 2; j <= q; j++ {
		it.zn[j].LinearSum(l[j], it.zn[it.L], 1, it.zn[j])
	}
	if it.quadOn {
		it.znQ[it.L].Scale(a1, it.znQ[it.qmax])
		for j := 2; j <= q; j++ {
			it.znQ[j].LinearSum(l[j], it.znQ[it.L], 1, it.znQ[j])
		}
	}
	if it.sensOn {
		for s := 0; s < it.ns; s++ {
			it.znS[it.L][s].Scale(a1, it.znS[it.qmax][s])
			for j := 2; j <= q; j++ {
				it.znS[j][s].LinearSum(l[j], it.znS[it.L][s], 1, it.znS[j][s])
			}
		}
	}
}

func (it *Integrator) decreaseBDF() {
	q := it.q
	var l [bdfAdamsLMax]float64
	l[2] = 1
	hsum := 0.0
	for j := 1; j <= q-2; j++ {
		hsum += it.tau[j]
		xi := hsum / it.hscale
		for i := j + 2; i >= 2; i-- {
			l[i] = l[i]*xi + l[i-1]
		}
	}
	for j := 2; j < q; j++ {
		it.zn[j].LinearSum(-l[j], it.zn[q], 1, it.zn[j])
	}
	if it.quadOn {
		for j := 2; j < q; j++ {
			it.znQ[j].LinearSum(-l[j], it.znQ[q], 1, it.znQ[j])
		}
	}
	if it.sensOn {
		for s := 0; s < it.ns; s++ {
			for j := 2; j < q; j++ {
				it.znS[j][s].LinearSum(-l[j], it.znS[q][s], 1, it.znS[j][s])
			}
		}
	}
}
