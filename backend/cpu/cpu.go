// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/born-ml/repvgg/internal/backend/cpu"
	"github.com/born-ml/repvgg/tensor"
)

// Backend represents the CPU backend implementation.
//
// CPU backend provides pure Go implementations of the convolution,
// normalization and pooling kernels a RepVGG network needs. Large
// convolutions are split across a worker pool.
type Backend = internalcpu.CPUBackend

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new CPU backend.
//
// Example:
//
//	import (
//	    "github.com/born-ml/repvgg/backend/cpu"
//	    "github.com/born-ml/repvgg/repvgg"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    net, err := repvgg.NewNetwork(repvgg.A0(1000), backend)
//	}
func New() *Backend {
	return internalcpu.New()
}
