// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the neural network layers RepVGG blocks are built from.
//
// # Overview
//
// This package contains:
//   - Layers: Conv2D, BatchNorm2D, Linear, SqueezeExcite
//   - Activations and pooling: ReLU, Sigmoid, GlobalAvgPool
//   - Utilities: Module interface, Parameter, CountParameters
//   - Initialization: TruncatedNormal, Zeros, Ones, NewRand
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/repvgg/nn"
//	    "github.com/born-ml/repvgg/backend/cpu"
//	)
//
//	func main() {
//	    backend := cpu.New()
//
//	    conv, err := nn.NewConv2D(nn.Conv2DConfig{
//	        InChannels: 3, OutChannels: 16, KernelSize: 3, Padding: 1,
//	    }, backend)
//	    bn, err := nn.NewBatchNorm2D(16, nn.DefaultBatchNormEps, backend)
//
//	    y, err := conv.Forward(x)
//	    y, err = bn.Forward(y)
//	}
//
// # Batch Normalization
//
// BatchNorm2D always normalizes with its running statistics, which is the
// form that folds into a preceding convolution.
package nn
