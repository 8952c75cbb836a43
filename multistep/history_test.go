package multistep

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rollingthunder/multistep/vector"
	"github.com/rollingthunder/multistep/vector/serial"
)

// Property 3: predict(); restore(tn_saved) is the identity on zn and tn.
func TestRestoreSymmetry(t *testing.T) {
	space := serial.NewSpace(2)
	it := New(Adams, Functional)
	y0 := space.New()
	y0.(*serial.Vector).Data[0] = 1.0
	f := func(tt float64, y, ydot vector.Vector) int { return 0 }
	require.NoError(t, it.Init(f, 0, y0, SS, 1e-6, 1e-8, space))

	it.q = 3
	for j := 0; j <= it.q; j++ {
		for k := range it.zn[j].(*serial.Vector).Data {
			it.zn[j].(*serial.Vector).Data[k] = float64(j*10 + k)
		}
	}
	before := make([][]float64, it.q+1)
	for j := range before {
		before[j] = append([]float64(nil), it.zn[j].(*serial.Vector).Data...)
	}

	savedT := it.tn
	it.h = 0.1
	it.predict()
	it.restore(savedT)

	require.Equal(t, savedT, it.tn)
	for j := range before {
		require.InDeltaSlice(t, before[j], it.zn[j].(*serial.Vector).Data, 1e-12)
	}
}

// Property 4: rescale(eta) multiplies column j by eta^j.
func TestRescaleMonotonicity(t *testing.T) {
	space := serial.NewSpace(1)
	it := New(Adams, Functional)
	y0 := space.New()
	y0.(*serial.Vector).Data[0] = 1.0
	f := func(tt float64, y, ydot vector.Vector) int { return 0 }
	require.NoError(t, it.Init(f, 0, y0, SS, 1e-6, 1e-8, space))

	it.q = 2
	it.zn[1].(*serial.Vector).Data[0] = 2.0
	it.zn[2].(*serial.Vector).Data[0] = 3.0
	it.h = 1.0
	it.hscale = 1.0
	it.eta = 0.5

	it.rescale()

	require.InDelta(t, 2.0*0.5, it.zn[1].(*serial.Vector).Data[0], 1e-12)
	require.InDelta(t, 3.0*0.25, it.zn[2].(*serial.Vector).Data[0], 1e-12)
	require.InDelta(t, 0.5, it.h, 1e-12)
}

// Order decrease at q == 2 must leave the history untouched.
func TestAdjustOrderNoopAtOrderTwo(t *testing.T) {
	for _, lmm := range []LMM{Adams, BDF} {
		space := serial.NewSpace(1)
		it := New(lmm, Functional)
		y0 := space.New()
		y0.(*serial.Vector).Data[0] = 1.0
		f := func(tt float64, y, ydot vector.Vector) int { return 0 }
		require.NoError(t, it.Init(f, 0, y0, SS, 1e-6, 1e-8, space))

		it.q = 2
		it.hscale = 1.0
		for j := 0; j <= 2; j++ {
			it.zn[j].(*serial.Vector).Data[0] = float64(j + 1)
		}

		it.adjustOrder(-1)

		for j := 0; j <= 2; j++ {
			require.Equal(t, float64(j+1), it.zn[j].(*serial.Vector).Data[0], "lmm=%v zn[%d]", lmm, j)
		}
	}
}
