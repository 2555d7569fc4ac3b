// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import "github.com/born-ml/repvgg/internal/tensor"

// Backend defines the interface that all compute backends must implement.
// Backends handle the actual computation for tensor operations and report
// shape mismatches as *ShapeError.
//
// Implementations:
//   - backend/cpu: Pure Go im2col convolution with a parallel worker pool
//
// Example:
//
//	import (
//	    "github.com/born-ml/repvgg/tensor"
//	    "github.com/born-ml/repvgg/backend/cpu"
//	)
//
//	backend := cpu.New()
//	x := tensor.Full(tensor.Shape{1, 2, 4, 4}, 1)
//	y := backend.ReLU(x)
type Backend = tensor.Backend

// ConvOptions configures a 2D convolution. Zero fields take their defaults
// (stride 1, dilation 1, groups 1).
type ConvOptions = tensor.ConvOptions
