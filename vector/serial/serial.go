// Package serial is the default, single-threaded vector.Space: a plain
// []float64 backing store with elementwise operations and norms written as
// plain loops; Min is delegated to gonum.org/v1/gonum/floats.
package serial

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/rollingthunder/multistep/vector"
)

// Space produces Vectors backed by plain []float64 slices of a fixed length.
type Space struct {
	n int
}

// NewSpace returns a Space producing vectors of length n.
func NewSpace(n int) Space {
	return Space{n: n}
}

// New implements vector.Space.
func (s Space) New() vector.Vector {
	return &Vector{Data: make([]float64, s.n)}
}

// Len implements vector.Space.
func (s Space) Len() int { return s.n }

// Vector is the serial vector.Vector implementation. Data is exported so
// callers that need to seed or inspect raw values (tests, I/O glue outside
// the engine) can do so without a copy.
type Vector struct {
	Data []float64
}

func as(v vector.Vector) []float64 { return v.(*Vector).Data }

// NewFromSlice wraps an existing slice, taking ownership of it.
func NewFromSlice(data []float64) *Vector { return &Vector{Data: data} }

func (v *Vector) Len() int { return len(v.Data) }

func (v *Vector) Scale(a float64, x vector.Vector) {
	xs := as(x)
	for i := range v.Data {
		v.Data[i] = a * xs[i]
	}
}

func (v *Vector) LinearSum(a float64, x vector.Vector, b float64, y vector.Vector) {
	xs, ys := as(x), as(y)
	for i := range v.Data {
		v.Data[i] = a*xs[i] + b*ys[i]
	}
}

func (v *Vector) AddConst(x vector.Vector, c float64) {
	xs := as(x)
	for i := range v.Data {
		v.Data[i] = xs[i] + c
	}
}

func (v *Vector) Prod(x, y vector.Vector) {
	xs, ys := as(x), as(y)
	for i := range v.Data {
		v.Data[i] = xs[i] * ys[i]
	}
}

func (v *Vector) Div(x, y vector.Vector) {
	xs, ys := as(x), as(y)
	for i := range v.Data {
		v.Data[i] = xs[i] / ys[i]
	}
}

func (v *Vector) Abs(x vector.Vector) {
	xs := as(x)
	for i := range v.Data {
		v.Data[i] = math.Abs(xs[i])
	}
}

func (v *Vector) Inv(x vector.Vector) error {
	xs := as(x)
	for _, c := range xs {
		if c <= 0 {
			return vector.ErrNonPositive
		}
	}
	for i := range v.Data {
		v.Data[i] = 1.0 / xs[i]
	}
	return nil
}

func (v *Vector) Const(c float64) {
	for i := range v.Data {
		v.Data[i] = c
	}
}

func (v *Vector) Min() float64 {
	return floats.Min(v.Data)
}

func (v *Vector) MaxNorm() float64 {
	max := 0.0
	for _, c := range v.Data {
		if a := math.Abs(c); a > max {
			max = a
		}
	}
	return max
}

func (v *Vector) WRMSNorm(w vector.Vector) float64 {
	ws := as(w)
	sum := 0.0
	for i, c := range v.Data {
		t := c * ws[i]
		sum += t * t
	}
	return math.Sqrt(sum / float64(len(v.Data)))
}

func (v *Vector) Clone() vector.Vector {
	cp := make([]float64, len(v.Data))
	copy(cp, v.Data)
	return &Vector{Data: cp}
}
