package coeff

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAdamsOrderOne(t *testing.T) {
	var tau [MaxL]float64
	c := Adams(1, tau[:], 0.1, 2, 0.1)

	require.Equal(t, 1.0, c.L[0])
	require.Equal(t, 1.0, c.L[1])
	require.Equal(t, 1.0, c.Tq[1])
	require.Equal(t, 2.0, c.Tq[2])
	require.Equal(t, 12.0, c.Tq[3])
	require.Equal(t, 1.0, c.Tq[5])
	require.InDelta(t, 0.1*c.Tq[2], c.Tq[4], 1e-15)
}

// With a uniform step history the order-2 Adams-Moulton corrector is the
// trapezoidal rule: l = (1, 2, 1) up to the M[0] normalization, so l[1] = 2
// and gamma = h/l[1] = h/2.
func TestAdamsOrderTwoUniform(t *testing.T) {
	var tau [MaxL]float64
	h := 0.25
	tau[1] = h

	c := Adams(2, tau[:], h, 3, 0.1)

	require.Equal(t, 1.0, c.L[0])
	require.InDelta(t, 2.0, c.L[1], 1e-12)
	require.InDelta(t, 1.0, c.L[2], 1e-12)
	require.InDelta(t, 0.1*c.Tq[2], c.Tq[4], 1e-15)
}

// With a uniform history the order-2 BDF generating polynomial is
// l(x) = (1+x)(1+x/2) = 1 + 3x/2 + x^2/2: l[1] = 3/2, so gamma = 2h/3.
func TestBDFOrderTwoUniform(t *testing.T) {
	var tau [MaxL]float64
	h := 0.5
	tau[1] = h

	c := BDF(2, tau[:], h, 3, 0.1)

	require.Equal(t, 1.0, c.L[0])
	require.InDelta(t, 1.5, c.L[1], 1e-12)
	require.InDelta(t, 0.5, c.L[2], 1e-12)
	require.Greater(t, c.Tq[2], 0.0)
	require.Greater(t, c.Tq[5], 0.0)
	require.InDelta(t, 0.1*c.Tq[2], c.Tq[4], 1e-15)
}

func TestBDFOrderOne(t *testing.T) {
	var tau [MaxL]float64
	c := BDF(1, tau[:], 0.1, 2, 0.1)

	require.Equal(t, 1.0, c.L[0])
	require.Equal(t, 1.0, c.L[1])
	require.Greater(t, c.Tq[2], 0.0)
	require.InDelta(t, 0.1*c.Tq[2], c.Tq[4], 1e-15)
}

// The order-change triggers are only populated one step ahead of an order
// change.
func TestTqOrderChangeGating(t *testing.T) {
	var tau [MaxL]float64
	h := 0.25
	tau[1], tau[2], tau[3] = h, h, h

	without := BDF(3, tau[:], h, 3, 0.1)
	with := BDF(3, tau[:], h, 1, 0.1)

	require.Equal(t, 0.0, without.Tq[1])
	require.Equal(t, 0.0, without.Tq[3])
	require.Greater(t, with.Tq[1], 0.0)
	require.Greater(t, with.Tq[3], 0.0)
}
