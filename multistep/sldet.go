package multistep

import "math"

// tiny guards the small-coefficient checks throughout sldet against
// division by (near) zero.
const tiny = 1.0e-10

// bdfStab is the BDF stability-limit detection driver, called only when lmm
// is BDF and sldeton is set. Once the order reaches 3 it accumulates
// scaled-derivative data in ssdat; once enough history has accumulated it
// calls sldet, and on a stability violation forces the order down by one
// and rescales h accordingly.
func (it *Integrator) bdfStab() {
	if it.q >= 3 {
		for k := 1; k <= 3; k++ {
			for i := 5; i >= 2; i-- {
				it.ssdat[i][k] = it.ssdat[i-1][k]
			}
		}
		factorial := 1
		for i := 1; i <= it.q-1; i++ {
			factorial *= i
		}
		sq := float64(factorial*it.q*(it.q+1)) * it.acnrm / it.tq[5]
		sqm1 := float64(factorial*it.q) * it.zn[it.q].WRMSNorm(it.ewt)
		sqm2 := float64(factorial) * it.zn[it.q-1].WRMSNorm(it.ewt)
		it.ssdat[1][1] = sqm2 * sqm2
		it.ssdat[1][2] = sqm1 * sqm1
		it.ssdat[1][3] = sq * sq
	}

	if it.qprime >= it.q {
		if it.q >= 3 && it.nscon >= it.q+5 {
			if ldflag := it.sldet(); ldflag > 3 {
				it.qprime = it.q - 1
				it.eta = it.etaqm1
				it.eta = math.Min(it.eta, it.etamax)
				it.eta /= math.Max(1, math.Abs(it.h)*it.hmaxInv*it.eta)
				it.hprime = it.h * it.eta
				it.nor++
				it.log.Log("msg", "order reduced by stability limit detection",
					"t", it.tn, "q", it.qprime, "h", it.hprime, "flag", ldflag)
			}
		}
	} else {
		it.nscon = 0
	}
}

// sldet detects a BDF stability limit violation from the scaled derivative
// history in ssdat, returning the dominant characteristic root's
// classification flag. Positive kflag (1-3 stable, 4-6 unstable) means a
// root was found; negative kflag means no conclusion could be drawn. Must
// be called only with q >= 3 and 5 steps of history.
func (it *Integrator) sldet() int {
	var rat, qjk, qc, qco [6][4]float64
	var rav, qkr, sigsq, smax, ssmax, drr, rrc, sqmx, vrat [4]float64
	kflag := 0

	const (
		rrcut  = 0.98
		vrrtol = 1.0e-4
		vrrt2  = 5.0e-4
		sqtol  = 1.0e-3
		rrtol  = 1.0e-2
	)

	rr := 0.0

	for k := 1; k <= 3; k++ {
		smink := it.ssdat[1][k]
		smaxk := 0.0
		for i := 1; i <= 5; i++ {
			smink = math.Min(smink, it.ssdat[i][k])
			smaxk = math.Max(smaxk, it.ssdat[i][k])
		}
		if smink < tiny*smaxk {
			return -1
		}
		smax[k] = smaxk
		ssmax[k] = smaxk * smaxk

		sumrat, sumrsq := 0.0, 0.0
		for i := 1; i <= 4; i++ {
			rat[i][k] = it.ssdat[i][k] / it.ssdat[i+1][k]
			sumrat += rat[i][k]
			sumrsq += rat[i][k] * rat[i][k]
		}
		rav[k] = 0.25 * sumrat
		vrat[k] = math.Abs(0.25*sumrsq - rav[k]*rav[k])

		qc[5][k] = it.ssdat[1][k]*it.ssdat[3][k] - it.ssdat[2][k]*it.ssdat[2][k]
		qc[4][k] = it.ssdat[2][k]*it.ssdat[3][k] - it.ssdat[1][k]*it.ssdat[4][k]
		qc[3][k] = 0
		qc[2][k] = it.ssdat[2][k]*it.ssdat[5][k] - it.ssdat[3][k]*it.ssdat[4][k]
		qc[1][k] = it.ssdat[4][k]*it.ssdat[4][k] - it.ssdat[3][k]*it.ssdat[5][k]

		for i := 1; i <= 5; i++ {
			qco[i][k] = qc[i][k]
		}
	}

	vmin := math.Min(vrat[1], math.Min(vrat[2], vrat[3]))
	vmax := math.Max(vrat[1], math.Max(vrat[2], vrat[3]))

	if vmin < vrrtol*vrrtol {
		if vmax > vrrt2*vrrt2 {
			return -2
		}
		rr = (rav[1] + rav[2] + rav[3]) / 3.0
		drrmax := 0.0
		for k := 1; k <= 3; k++ {
			drrmax = math.Max(drrmax, math.Abs(rav[k]-rr))
		}
		if drrmax > vrrt2 {
			return -3
		}
		kflag = 1
	} else {
		if math.Abs(qco[1][1]) < tiny*ssmax[1] {
			return -4
		}

		tem := qco[1][2] / qco[1][1]
		for i := 2; i <= 5; i++ {
			qco[i][2] -= tem * qco[i][1]
		}
		qco[1][2] = 0

		tem = qco[1][3] / qco[1][1]
		for i := 2; i <= 5; i++ {
			qco[i][3] -= tem * qco[i][1]
		}
		qco[1][3] = 0

		if math.Abs(qco[2][2]) < tiny*ssmax[2] {
			return -4
		}

		tem = qco[2][3] / qco[2][2]
		for i := 3; i <= 5; i++ {
			qco[i][3] -= tem * qco[i][2]
		}

		if math.Abs(qco[4][3]) < tiny*ssmax[3] {
			return -4
		}

		rr = -qco[5][3] / qco[4][3]
		if rr < tiny || rr > 100 {
			return -5
		}

		for k := 1; k <= 3; k++ {
			qkr[k] = qc[5][k] + rr*(qc[4][k]+rr*rr*(qc[2][k]+rr*qc[1][k]))
		}

		sqmax := 0.0
		for k := 1; k <= 3; k++ {
			if saqk := math.Abs(qkr[k]) / ssmax[k]; saqk > sqmax {
				sqmax = saqk
			}
		}

		if sqmax < sqtol {
			kflag = 2
		} else {
			sqmin := 0.0
			kmin := 0
			for iter := 1; iter <= 3; iter++ {
				for k := 1; k <= 3; k++ {
					qp := qc[4][k] + rr*rr*(3*qc[2][k]+rr*4*qc[1][k])
					drr[k] = 0
					if math.Abs(qp) > tiny*ssmax[k] {
						drr[k] = -qkr[k] / qp
					}
					rrc[k] = rr + drr[k]
				}

				for k := 1; k <= 3; k++ {
					s := rrc[k]
					sqmaxk := 0.0
					for j := 1; j <= 3; j++ {
						qjk[j][k] = qc[5][j] + s*(qc[4][j]+s*s*(qc[2][j]+s*qc[1][j]))
						if saqj := math.Abs(qjk[j][k]) / ssmax[j]; saqj > sqmaxk {
							sqmaxk = saqj
						}
					}
					sqmx[k] = sqmaxk
				}

				sqmin = sqmx[1] + 1
				for k := 1; k <= 3; k++ {
					if sqmx[k] < sqmin {
						kmin = k
						sqmin = sqmx[k]
					}
				}
				rr = rrc[kmin]

				if sqmin < sqtol {
					kflag = 3
					break
				}
				for j := 1; j <= 3; j++ {
					qkr[j] = qjk[j][kmin]
				}
			}

			if sqmin > sqtol {
				return -6
			}
		}
	}

	for k := 1; k <= 3; k++ {
		rsa := it.ssdat[1][k]
		rsb := it.ssdat[2][k] * rr
		rsc := it.ssdat[3][k] * rr * rr
		rsd := it.ssdat[4][k] * rr * rr * rr
		rse := it.ssdat[5][k] * rr * rr * rr * rr
		rd1a := rsa - rsb
		rd1b := rsb - rsc
		rd1c := rsc - rsd
		rd1d := rsd - rse
		rd2a := rd1a - rd1b
		rd2b := rd1b - rd1c
		rd2c := rd1c - rd1d
		rd3a := rd2a - rd2b
		rd3b := rd2b - rd2c
		_ = rd3b

		if math.Abs(rd1b) < tiny*smax[k] {
			return -7
		}

		cest1 := -rd3a / rd1b
		if cest1 < tiny || cest1 > 4 {
			return -7
		}
		corr1 := (rd2b / cest1) / (rr * rr)
		sigsq[k] = it.ssdat[3][k] + corr1
	}

	if sigsq[2] < tiny {
		return -8
	}

	ratp := sigsq[3] / sigsq[2]
	ratm := sigsq[1] / sigsq[2]
	qfac1 := 0.25 * (float64(it.q*it.q) - 1)
	qfac2 := 2.0 / (float64(it.q) - 1)
	bb := ratp*ratm - 1 - qfac1*ratp
	tem := 1 - qfac2*bb

	if math.Abs(tem) < tiny {
		return -8
	}

	rrb := 1.0 / tem
	if math.Abs(rrb-rr) > rrtol {
		return -9
	}

	if rr > rrcut {
		switch kflag {
		case 1:
			kflag = 4
		case 2:
			kflag = 5
		case 3:
			kflag = 6
		}
	}

	return kflag
}
