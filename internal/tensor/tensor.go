// Package tensor provides the dense float64 tensors that layers operate on.
//
// Convolutional layers work on rank-4 tensors with semantic axes
// (batch, height, width, channels). Dense layers and losses view the same
// storage as rank-2 (batch, features). Data is stored row-major so a rank-4
// tensor and its rank-2 reshape share identical memory layout.
package tensor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Tensor is a dense row-major float64 array of arbitrary rank.
type Tensor struct {
	shape   []int
	strides []int
	data    []float64
}

// New creates a tensor backed by data with the given shape.
// The data slice is used directly, not copied.
// Panics if the data length does not match the shape volume.
func New(data []float64, shape ...int) *Tensor {
	n := volume(shape)
	if len(data) != n {
		panic(fmt.Sprintf("tensor: data length %d does not match shape %v", len(data), shape))
	}
	return &Tensor{shape: append([]int(nil), shape...), strides: computeStrides(shape), data: data}
}

// Zeros creates a zero-filled tensor with the given shape.
func Zeros(shape ...int) *Tensor {
	return New(make([]float64, volume(shape)), shape...)
}

// Full creates a tensor filled with the value v.
func Full(v float64, shape ...int) *Tensor {
	t := Zeros(shape...)
	for i := range t.data {
		t.data[i] = v
	}
	return t
}

func volume(shape []int) int {
	n := 1
	for _, d := range shape {
		if d <= 0 {
			panic(fmt.Sprintf("tensor: non-positive dimension in shape %v", shape))
		}
		n *= d
	}
	return n
}

func computeStrides(shape []int) []int {
	strides := make([]int, len(shape))
	s := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = s
		s *= shape[i]
	}
	return strides
}

// Shape returns a copy of the tensor's shape.
func (t *Tensor) Shape() []int {
	return append([]int(nil), t.shape...)
}

// Rank returns the number of axes.
func (t *Tensor) Rank() int {
	return len(t.shape)
}

// Dim returns the size of axis i.
func (t *Tensor) Dim(i int) int {
	return t.shape[i]
}

// Size returns the total number of elements.
func (t *Tensor) Size() int {
	return len(t.data)
}

// Data returns the backing slice. Mutations are visible to the tensor.
func (t *Tensor) Data() []float64 {
	return t.data
}

// At returns the element at the given multi-index.
func (t *Tensor) At(idx ...int) float64 {
	return t.data[t.offset(idx)]
}

// Set stores v at the given multi-index.
func (t *Tensor) Set(v float64, idx ...int) {
	t.data[t.offset(idx)] = v
}

func (t *Tensor) offset(idx []int) int {
	if len(idx) != len(t.shape) {
		panic(fmt.Sprintf("tensor: index rank %d does not match tensor rank %d", len(idx), len(t.shape)))
	}
	off := 0
	for i, j := range idx {
		if j < 0 || j >= t.shape[i] {
			panic(fmt.Sprintf("tensor: index %v out of range for shape %v", idx, t.shape))
		}
		off += j * t.strides[i]
	}
	return off
}

// Reshape returns a tensor with the given shape sharing this tensor's storage.
// Panics if the volumes differ.
func (t *Tensor) Reshape(shape ...int) *Tensor {
	return New(t.data, shape...)
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	data := make([]float64, len(t.data))
	copy(data, t.data)
	return New(data, t.shape...)
}

// SameShape reports whether t and o have identical shapes.
func (t *Tensor) SameShape(o *Tensor) bool {
	if len(t.shape) != len(o.shape) {
		return false
	}
	for i := range t.shape {
		if t.shape[i] != o.shape[i] {
			return false
		}
	}
	return true
}

// Apply returns a new tensor with f applied elementwise.
func (t *Tensor) Apply(f func(float64) float64) *Tensor {
	out := Zeros(t.shape...)
	for i, v := range t.data {
		out.data[i] = f(v)
	}
	return out
}

// Mul returns the elementwise product with o. Shapes must match.
func (t *Tensor) Mul(o *Tensor) *Tensor {
	if !t.SameShape(o) {
		panic(fmt.Sprintf("tensor: elementwise product of mismatched shapes %v and %v", t.shape, o.shape))
	}
	out := Zeros(t.shape...)
	for i := range t.data {
		out.data[i] = t.data[i] * o.data[i]
	}
	return out
}

// Matrix views a rank-2 tensor as a gonum matrix sharing this tensor's
// storage. Panics if the tensor is not rank 2.
func (t *Tensor) Matrix() *mat.Dense {
	if len(t.shape) != 2 {
		panic(fmt.Sprintf("tensor: matrix view of rank-%d tensor", len(t.shape)))
	}
	return mat.NewDense(t.shape[0], t.shape[1], t.data)
}

// FromMatrix wraps a gonum matrix as a rank-2 tensor sharing its storage.
func FromMatrix(m *mat.Dense) *Tensor {
	r, c := m.Dims()
	raw := m.RawMatrix()
	if raw.Stride == c {
		return New(raw.Data[:r*c], r, c)
	}
	// Non-contiguous view, copy row by row.
	out := Zeros(r, c)
	for i := 0; i < r; i++ {
		copy(out.data[i*c:(i+1)*c], raw.Data[i*raw.Stride:i*raw.Stride+c])
	}
	return out
}

// EqualApprox reports whether t and o have the same shape and all elements
// within tol of each other.
func (t *Tensor) EqualApprox(o *Tensor, tol float64) bool {
	if !t.SameShape(o) {
		return false
	}
	for i := range t.data {
		if math.Abs(t.data[i]-o.data[i]) > tol {
			return false
		}
	}
	return true
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor%v", t.shape)
}
