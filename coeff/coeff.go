// Package coeff computes the per-step method coefficients l[0..q] and test
// quantities tq[1..5] for the Adams and BDF families. It is
// deliberately a pure-function component: given the order, step history and
// current step size it returns new arrays rather than mutating engine state,
// so it is testable in isolation from the rest of the Nordsieck engine.
package coeff

// MaxL is the l array size: the largest either family ever needs
// (Adams qmax=12 => L=13), plus one slot of headroom.
const MaxL = 14

// Coeffs is the coefficient set produced for one step.
type Coeffs struct {
	L  [MaxL]float64
	Tq [6]float64
}

const nlscoefDefault = 0.1

// Adams computes l and tq for the Adams-Moulton family at order q >= 1,
// given the step-history array tau (1-indexed, tau[1..q]) and current step
// h. The order-change triggers tq[1] and tq[3] are only needed one step
// before an order change is considered, so they are computed only when
// qwait == 1.
func Adams(q int, tau []float64, h float64, qwait int, nlscoef float64) Coeffs {
	var c Coeffs
	if nlscoef <= 0 {
		nlscoef = nlscoefDefault
	}

	if q == 1 {
		c.L[0] = 1
		c.L[1] = 1
		c.Tq[1] = 1
		c.Tq[5] = 1
		c.Tq[2] = 2
		c.Tq[3] = 12
		c.Tq[4] = nlscoef * c.Tq[2]
		return c
	}

	// Build the product polynomial m(x) = prod_{j=1}^{q-1} (1 + x/xi_j),
	// picking off tq[1] at j == q-1 from the m[] state as it stood before
	// that convolution step.
	var m [MaxL]float64
	m[0] = 1
	hsum := h
	for j := 1; j < q; j++ {
		if j == q-1 && qwait == 1 {
			sum := altSum(q-2, m[:], 2)
			c.Tq[1] = m[q-2] / (float64(q) * sum)
		}
		xiInv := h / hsum
		for i := j; i >= 1; i-- {
			m[i] += m[i-1] * xiInv
		}
		hsum += tau[j]
	}

	m0 := altSum(q-1, m[:], 1)
	m1 := altSum(q-1, m[:], 2)

	m0Inv := 1.0 / m0
	c.L[0] = 1
	for i := 1; i <= q; i++ {
		c.L[i] = m0Inv * (m[i-1] / float64(i))
	}
	xi := hsum / h
	c.Tq[2] = xi * m0 / m1
	c.Tq[5] = xi / c.L[q]

	if qwait == 1 {
		xiInv := 1.0 / xi
		for i := q; i >= 1; i-- {
			m[i] += m[i-1] * xiInv
		}
		m2 := altSum(q, m[:], 2)
		c.Tq[3] = float64(q+1) * m0 / m2
	}
	c.Tq[4] = nlscoef * c.Tq[2]

	return c
}

// altSum returns sum_{i=0}^{iend} (-1)^i * a[i]/(i+k): the integral from -1
// to 0 of x^(k-1)*M(x) given M's coefficients. Returns 0 when iend < 0.
func altSum(iend int, a []float64, k int) float64 {
	if iend < 0 {
		return 0
	}
	sum := 0.0
	sign := 1.0
	for i := 0; i <= iend; i++ {
		sum += sign * (a[i] / float64(i+k))
		sign = -sign
	}
	return sum
}

// BDF computes l and tq for the BDF family at order q >= 1 given the
// step-history array tau and current step h.
func BDF(q int, tau []float64, h float64, qwait int, nlscoef float64) Coeffs {
	var c Coeffs
	if nlscoef <= 0 {
		nlscoef = nlscoefDefault
	}

	var l [MaxL]float64
	l[0], l[1] = 1, 1
	xiInv, xiInvStar := 1.0, 1.0
	alpha0, alpha0Hat := -1.0, -1.0
	hsum := h

	if q > 1 {
		for j := 2; j < q; j++ {
			hsum += tau[j-1]
			xiInv = h / hsum
			alpha0 -= 1.0 / float64(j)
			for i := j; i >= 1; i-- {
				l[i] += l[i-1] * xiInv
			}
		}

		alpha0 -= 1.0 / float64(q)
		xiInvStar = -l[1] - alpha0
		hsum += tau[q-1]
		xiInv = h / hsum
		alpha0Hat = -l[1] - xiInv
		for i := q; i >= 1; i-- {
			l[i] += l[i-1] * xiInvStar
		}
	}

	copy(c.L[:], l[:])
	c.setTqBDF(q, tau, h, hsum, alpha0, alpha0Hat, xiInv, xiInvStar, qwait, nlscoef)
	return c
}

// setTqBDF derives the BDF test quantities from the generating-polynomial
// state left by BDF.
func (c *Coeffs) setTqBDF(q int, tau []float64, h, hsum, alpha0, alpha0Hat, xiInv, xiInvStar float64, qwait int, nlscoef float64) {
	a1 := 1 - alpha0Hat + alpha0
	a2 := 1 + float64(q)*a1
	lq := c.L[q]
	c.Tq[2] = abs(alpha0 * (a2 / a1))
	c.Tq[5] = abs(a2 / (lq * xiInv / xiInvStar))

	if qwait == 1 {
		cc := xiInvStar / lq
		a3 := alpha0 + 1.0/float64(q)
		a4 := alpha0Hat + xiInv
		cPrime := a3 / (1 - a4 + a3)
		c.Tq[1] = abs(cPrime / cc)

		hsum += tau[q]
		xiInv2 := h / hsum
		a5 := alpha0 - 1.0/float64(q+1)
		a6 := alpha0Hat - xiInv2
		cPrimePrime := a2 / (1 - a6 + a5)
		c.Tq[3] = abs(cPrimePrime * xiInv2 * float64(q+2) * a5)
	}
	c.Tq[4] = nlscoef * c.Tq[2]
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
