// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides a pure Go CPU backend for tensor operations.
//
// # Overview
//
// This package implements a CPU backend with:
//   - Pure Go implementation (no CGO)
//   - Im2col algorithm for grouped, strided and dilated convolutions
//   - Float32 NCHW tensors
//   - Batch processing split across a worker pool
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/repvgg/backend/cpu"
//	    "github.com/born-ml/repvgg/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//
//	    x := tensor.Zeros(tensor.Shape{1, 3, 32, 32})
//	    k := tensor.Full(tensor.Shape{8, 3, 3, 3}, 0.1)
//	    y, err := backend.Conv2D(x, k, tensor.ConvOptions{Stride: 2, Padding: 1})
//	}
//
// Results are identical to a sequential evaluation regardless of how the
// work is split.
package cpu
