package tensor

import (
	"fmt"
	"math"
)

// Tensor is a dense row-major float32 tensor.
//
// A Tensor owns its backing slice. Operations that produce new tensors never
// alias their inputs, so a tensor can be released by dropping the reference.
type Tensor struct {
	shape  Shape
	stride []int
	data   []float32
}

// New creates a zero-filled tensor with the given shape.
func New(shape Shape) (*Tensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	return &Tensor{
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		data:   make([]float32, shape.NumElements()),
	}, nil
}

// Zeros creates a zero-filled tensor and panics on an invalid shape.
//
// Use it for shapes derived from already validated layer configuration.
func Zeros(shape Shape) *Tensor {
	t, err := New(shape)
	if err != nil {
		panic(err)
	}
	return t
}

// Full creates a tensor filled with value.
func Full(shape Shape, value float32) *Tensor {
	t := Zeros(shape)
	for i := range t.data {
		t.data[i] = value
	}
	return t
}

// FromSlice creates a tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromSlice(data []float32, shape Shape) (*Tensor, error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}
	t, err := New(shape)
	if err != nil {
		return nil, err
	}
	copy(t.data, data)
	return t, nil
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// Strides returns the tensor's row-major strides.
func (t *Tensor) Strides() []int {
	return t.stride
}

// NumElements returns the total number of elements.
func (t *Tensor) NumElements() int {
	return len(t.data)
}

// Data returns the backing slice. Writes are visible to the tensor.
func (t *Tensor) Data() []float32 {
	return t.data
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	data := make([]float32, len(t.data))
	copy(data, t.data)
	return &Tensor{
		shape:  t.shape.Clone(),
		stride: append([]int(nil), t.stride...),
		data:   data,
	}
}

// Reshape returns a copy of the tensor with a new shape of the same size.
func (t *Tensor) Reshape(shape Shape) (*Tensor, error) {
	if shape.NumElements() != len(t.data) {
		return nil, NewShapeError("reshape", t.shape, "cannot reshape %d elements to %v", len(t.data), shape)
	}
	return FromSlice(t.data, shape)
}

// offset converts a multi-index into a flat offset.
func (t *Tensor) offset(idx []int) int {
	if len(idx) != len(t.shape) {
		panic(fmt.Sprintf("tensor: index rank %d != tensor rank %d", len(idx), len(t.shape)))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= t.shape[i] {
			panic(fmt.Sprintf("tensor: index %v out of range for shape %v", idx, t.shape))
		}
		off += v * t.stride[i]
	}
	return off
}

// At returns the element at the given multi-index.
func (t *Tensor) At(idx ...int) float32 {
	return t.data[t.offset(idx)]
}

// Set writes the element at the given multi-index.
func (t *Tensor) Set(value float32, idx ...int) {
	t.data[t.offset(idx)] = value
}

// Sum returns the sum of all elements, accumulated in float64.
func (t *Tensor) Sum() float64 {
	var s float64
	for _, v := range t.data {
		s += float64(v)
	}
	return s
}

// IsFinite reports whether every element is neither NaN nor Inf.
func (t *Tensor) IsFinite() bool {
	for _, v := range t.data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// MaxAbsDiff returns max|t-other| over all elements.
// Shapes must match.
func (t *Tensor) MaxAbsDiff(other *Tensor) (float64, error) {
	if !t.shape.Equal(other.shape) {
		return 0, NewShapeError("max_abs_diff", other.shape, "expected %v", t.shape)
	}
	var m float64
	for i, v := range t.data {
		d := math.Abs(float64(v) - float64(other.data[i]))
		if d > m {
			m = d
		}
	}
	return m, nil
}

// AllClose reports whether |t-other| <= atol + rtol*|other| holds elementwise.
func (t *Tensor) AllClose(other *Tensor, rtol, atol float64) bool {
	if !t.shape.Equal(other.shape) {
		return false
	}
	for i, v := range t.data {
		b := float64(other.data[i])
		if math.Abs(float64(v)-b) > atol+rtol*math.Abs(b) {
			return false
		}
	}
	return true
}

// String returns a short description of the tensor.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v)", t.shape)
}
