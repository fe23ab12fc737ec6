package tensor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Map applies fn to every element and returns the result as a new tensor.
func (t *Tensor) Map(fn func(float64) float64) *Tensor {
	out := &Tensor{shape: t.shape.Clone(), data: make([]float64, len(t.data))}
	for i, v := range t.data {
		out.data[i] = fn(v)
	}
	return out
}

// Zip combines t and other element-wise. Shapes must match exactly.
func (t *Tensor) Zip(other *Tensor, fn func(a, b float64) float64) *Tensor {
	if !t.shape.Equal(other.shape) {
		panic(fmt.Sprintf("tensor: shape mismatch %v vs %v", t.shape, other.shape))
	}
	out := &Tensor{shape: t.shape.Clone(), data: make([]float64, len(t.data))}
	for i, a := range t.data {
		out.data[i] = fn(a, other.data[i])
	}
	return out
}

// Add returns t + other.
func (t *Tensor) Add(other *Tensor) *Tensor {
	return t.Zip(other, func(a, b float64) float64 { return a + b })
}

// Sub returns t - other.
func (t *Tensor) Sub(other *Tensor) *Tensor {
	return t.Zip(other, func(a, b float64) float64 { return a - b })
}

// Mul returns the element-wise product t * other.
func (t *Tensor) Mul(other *Tensor) *Tensor {
	return t.Zip(other, func(a, b float64) float64 { return a * b })
}

// MulScalar returns t * s.
func (t *Tensor) MulScalar(s float64) *Tensor {
	out := t.Clone()
	floats.Scale(s, out.data)
	return out
}

// AddScalar returns t + s.
func (t *Tensor) AddScalar(s float64) *Tensor {
	out := t.Clone()
	floats.AddConst(s, out.data)
	return out
}

// Square returns t².
func (t *Tensor) Square() *Tensor {
	return t.Map(func(v float64) float64 { return v * v })
}

// Sqrt returns the element-wise square root.
func (t *Tensor) Sqrt() *Tensor {
	return t.Map(math.Sqrt)
}

// Sum returns the sum of all elements.
func (t *Tensor) Sum() float64 {
	return floats.Sum(t.data)
}

// Mean returns the arithmetic mean of all elements.
func (t *Tensor) Mean() float64 {
	return floats.Sum(t.data) / float64(len(t.data))
}

// Min returns the smallest element.
func (t *Tensor) Min() float64 {
	return floats.Min(t.data)
}

// Max returns the largest element.
func (t *Tensor) Max() float64 {
	return floats.Max(t.data)
}

// AddAlong adds v[i] to every element of t whose index along axis is i.
//
// It is the broadcast used for biases: a [out] bias is added along axis 1
// of a Linear output [batch, out] or a Conv2D output [batch, out, h, w].
func (t *Tensor) AddAlong(axis int, v *Tensor) *Tensor {
	if axis < 0 || axis >= len(t.shape) {
		panic(fmt.Sprintf("add along: axis %d out of range for shape %v", axis, t.shape))
	}
	if len(v.shape) != 1 || v.shape[0] != t.shape[axis] {
		panic(fmt.Sprintf("add along: vector shape %v does not match axis %d of %v", v.shape, axis, t.shape))
	}

	strides := t.shape.ComputeStrides()
	stride, size := strides[axis], t.shape[axis]

	out := t.Clone()
	for i := range out.data {
		out.data[i] += v.data[(i/stride)%size]
	}
	return out
}
