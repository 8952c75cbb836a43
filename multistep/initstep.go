package multistep

import (
	"math"

	"github.com/rollingthunder/multistep/vector"
)

// estimateInitialStep finds a viable h0 from (t0, y0, y0dot, tout): bracket
// h0 between a roundoff-based lower bound and a curvature-based upper
// bound, then refine the geometric mean with up to four second-derivative
// probes. y0dot is f(t0, y0), already evaluated by the caller.
func (it *Integrator) estimateInitialStep(t0 float64, y0, y0dot vector.Vector, tout float64) (float64, error) {
	tdist := math.Abs(tout - t0)
	tround := it.uround * math.Max(math.Abs(t0), math.Abs(tout))
	if tdist == 0 || tdist < 2*tround {
		return 0, newErr(TooClose, t0, "tout too close to t0")
	}

	hlb := hlbFactor * tround
	hub := it.upperBoundH0(tdist)

	sign := 1.0
	if tout < t0 {
		sign = -1.0
	}

	hg := math.Sqrt(hlb * hub)
	if hub < hlb {
		return sign * hg, nil
	}

	hnew := hg
	ydd := it.space.New()
	yTmp := it.space.New()
	fTmp := it.space.New()

	for count := 1; count <= 4; count++ {
		hgs := hg * sign
		yTmp.LinearSum(1, y0, hgs, y0dot)
		if code := it.f(t0+hgs, yTmp, fTmp); code != 0 {
			// recoverable: fall back to a smaller trial step
			hg *= 0.5
			continue
		}
		it.nfe++
		ydd.LinearSum(1.0/hgs, fTmp, -1.0/hgs, y0dot)
		yddnrm := ydd.WRMSNorm(it.ewt)

		if yddnrm*hub*hub > 2.0 {
			hnew = math.Sqrt(2.0 / yddnrm)
		} else {
			hnew = math.Sqrt(hg * hub)
		}
		ratio := hnew / hg

		if ratio > 0.5 && ratio < 2.0 {
			break
		}
		// A growing estimate after the first probe signals cancellation
		// error in ydd; stop with the smaller step.
		if count >= 2 && ratio > 2.0 {
			hnew = hg
			break
		}
		hg = hnew
	}

	h0 := hBias * hnew
	h0 = clamp(h0, hlb, hub)
	return sign * h0, nil
}

const (
	hlbFactor = 100.0
	hubFactor = 0.1
	hBias     = 0.5
)

// upperBoundH0 computes the upper bound on h0: hubFactor*tdist, shrunk so
// that the first step cannot move any weighted component by more than a
// tenth of its magnitude. Quadrature and sensitivity subsystems under full
// error control tighten the bound the same way.
func (it *Integrator) upperBoundH0(tdist float64) float64 {
	hubInv := it.ratioBound(it.zn[0], it.zn[1], it.itol, it.atolS, it.atolV)

	if it.quadOn && it.errconQ == Full {
		r := it.ratioBound(it.znQ[0], it.znQ[1], it.itolQ, it.atolQS, it.atolQV)
		hubInv = math.Max(hubInv, r)
	}
	if it.sensOn && it.errcon == Full {
		for i := 0; i < it.ns; i++ {
			var atolS float64
			var atolV vector.Vector
			switch it.itolS {
			case SS:
				atolS = it.atolSS[i]
			case SV:
				atolV = it.atolSV[i]
			}
			r := it.ratioBound(it.znS[0][i], it.znS[1][i], it.itolS, atolS, atolV)
			hubInv = math.Max(hubInv, r)
		}
	}

	hub := hubFactor * tdist
	if hub*hubInv > 1 {
		hub = 1 / hubInv
	}
	return hub
}

// ratioBound returns max_k(|ydot_k| / (hubFactor*|y_k| + atol_k)).
func (it *Integrator) ratioBound(y, ydot vector.Vector, itol ItolType, atolS float64, atolV vector.Vector) float64 {
	denom := y.Clone()
	denom.Abs(y)
	num := ydot.Clone()
	num.Abs(ydot)

	if itol == SS {
		denom.Scale(hubFactor, denom)
		denom.AddConst(denom, atolS)
	} else {
		denom.LinearSum(hubFactor, denom, 1, atolV)
	}
	num.Div(num, denom)
	return num.MaxNorm()
}
