// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/repvgg/internal/tensor"
)

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// Tensor is a dense float32 tensor stored in row-major order.
//
// Tensors are plain values: operations on a Backend return new tensors and
// never modify their inputs.
type Tensor = tensor.Tensor

// ShapeError reports a shape mismatch. Use errors.As to inspect it.
type ShapeError = tensor.ShapeError

// Creation functions

// New creates a zero-filled tensor, validating the shape.
func New(shape Shape) (*Tensor, error) {
	return tensor.New(shape)
}

// Zeros creates a tensor filled with zeros.
//
// Example:
//
//	x := tensor.Zeros(tensor.Shape{2, 3})
func Zeros(shape Shape) *Tensor {
	return tensor.Zeros(shape)
}

// Full creates a tensor filled with a specific value.
//
// Example:
//
//	x := tensor.Full(tensor.Shape{2, 3}, 3.14)
func Full(shape Shape, value float32) *Tensor {
	return tensor.Full(shape, value)
}

// FromSlice creates a tensor backed by data. The slice is not copied.
//
// Example:
//
//	data := []float32{1, 2, 3, 4, 5, 6}
//	x, err := tensor.FromSlice(data, tensor.Shape{2, 3})
func FromSlice(data []float32, shape Shape) (*Tensor, error) {
	return tensor.FromSlice(data, shape)
}

// FromBytes decodes little-endian float32 data into a tensor.
func FromBytes(buf []byte, shape Shape) (*Tensor, error) {
	return tensor.FromBytes(buf, shape)
}

// CheckNCHW verifies that s is a rank-4 NCHW shape with the given channel
// count.
func CheckNCHW(op string, s Shape, channels int) error {
	return tensor.CheckNCHW(op, s, channels)
}
