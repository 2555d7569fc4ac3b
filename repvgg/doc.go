// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package repvgg provides RepVGG networks and their structural
// re-parameterization.
//
// # Overview
//
// A RepVGG block trains as three parallel branches (3x3 conv+BN, 1x1
// conv+BN and an optional identity BN) and deploys as one 3x3 convolution
// with bias. Conversion folds each batch norm into its convolution, pads
// the 1x1 kernel to 3x3, expresses the identity as a 3x3 kernel and sums
// the results. The converted block computes the same function up to
// floating point rounding.
//
// This package contains:
//   - Block: The two-state building block (Training, Deployed)
//   - Network: Stem, four stages, global average pooling and linear head
//   - Presets: RepVGG-A0 .. RepVGG-B1g4
//   - Fusion: FuseBranch, FuseBranchSet, PadTo3x3, EquivalentKernelBias
//   - Checkpoints: Save and Load in the .born format
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/repvgg/backend/cpu"
//	    "github.com/born-ml/repvgg/repvgg"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    net, err := repvgg.NewNetwork(repvgg.A0(1000), backend)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    // ... load trained weights ...
//
//	    deployed, err := repvgg.ConvertNetwork(net, repvgg.ConvertOptions{Copy: true})
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    logits, err := deployed.Forward(x)
//	}
//
// # Conversion
//
// Block.Convert is one-way and idempotent. A block that fails to convert is
// left in training mode. ConvertNetwork converts every block; with Copy set
// the input network is never modified.
package repvgg
