// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package onnx provides ONNX export for deployed RepVGG networks.
//
// A fully converted network maps onto a plain chain of standard ONNX
// operators, so the exported file runs in any ONNX runtime.
//
// # Supported Features
//
//   - ONNX IR version 8, opset 13
//   - Conv, Relu, GlobalAveragePool, Flatten, Gemm
//   - Squeeze-and-excitation gates (Conv, Sigmoid, Mul)
//   - Float32 initializers stored as raw data
//   - Fixed or symbolic spatial input size
//
// # Example Usage
//
//	import (
//	    "github.com/born-ml/repvgg/backend/cpu"
//	    "github.com/born-ml/repvgg/onnx"
//	    "github.com/born-ml/repvgg/repvgg"
//	)
//
//	net, err := repvgg.Load("repvgg_a0.born", cpu.New())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	deployed, err := repvgg.ConvertNetwork(net, repvgg.ConvertOptions{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := onnx.ExportFile("repvgg_a0.onnx", deployed, onnx.ExportOptions{Height: 224, Width: 224}); err != nil {
//	    log.Fatal(err)
//	}
package onnx

import (
	internalonnx "github.com/born-ml/repvgg/internal/onnx"
	"github.com/born-ml/repvgg/repvgg"
)

// ErrNotDeployed is returned when exporting a network that still has
// training-mode blocks.
var ErrNotDeployed = internalonnx.ErrNotDeployed

// ExportOptions configures Export.
type ExportOptions = internalonnx.ExportOptions

// ModelProto is the decoded form of an ONNX model.
type ModelProto = internalonnx.ModelProto

// Export builds the ONNX model of a deployed network.
func Export(net *repvgg.Network, opts ExportOptions) (*ModelProto, error) {
	return internalonnx.Export(net, opts)
}

// ExportFile writes the ONNX model of a deployed network to path.
//
// Example:
//
//	err := onnx.ExportFile("model.onnx", deployed, onnx.ExportOptions{})
func ExportFile(path string, net *repvgg.Network, opts ExportOptions) error {
	return internalonnx.ExportFile(path, net, opts)
}

// Marshal encodes a model in the protobuf wire format.
func Marshal(m *ModelProto) []byte {
	return internalonnx.Marshal(m)
}

// ParseFile decodes the ONNX model at path.
func ParseFile(path string) (*ModelProto, error) {
	return internalonnx.ParseFile(path)
}

// ModelInfo contains metadata about an ONNX model.
//
// Use [GetModelInfo] to inspect a model file.
type ModelInfo = internalonnx.ModelInfo

// GetModelInfo extracts the producer, opset, inputs, outputs and operator
// set of an ONNX file.
//
// Example:
//
//	info, err := onnx.GetModelInfo("model.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("Producer: %s\n", info.ProducerName)
//	fmt.Printf("Opset: %d\n", info.OpsetVersion)
//	fmt.Printf("Operators: %v\n", info.Operators)
func GetModelInfo(path string) (*ModelInfo, error) {
	return internalonnx.GetModelInfo(path)
}
