// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public tensor API of the repvgg module.
//
// The package exposes the float32 NCHW tensor used throughout the network
// code and the Backend interface that performs the computation:
//   - Tensor: Dense row-major float32 tensor
//   - Shape: Dimension list with validation helpers
//   - Backend: Interface for device-specific compute implementations
//   - ShapeError: Error reported on every shape mismatch
//
// Example:
//
//	backend := cpu.New()
//	x := tensor.Zeros(tensor.Shape{1, 3, 8, 8})
//	k := tensor.Full(tensor.Shape{4, 3, 3, 3}, 0.1)
//	y, err := backend.Conv2D(x, k, tensor.ConvOptions{Stride: 1, Padding: 1})
package tensor
