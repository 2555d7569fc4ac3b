// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math/rand/v2"

	"github.com/born-ml/repvgg/internal/nn"
	"github.com/born-ml/repvgg/internal/tensor"
)

// Module interface defines the common interface for all neural network modules.
type Module = nn.Module

// Parameter represents a named tensor owned by a module.
type Parameter = nn.Parameter

// NewParameter creates a new parameter with the given name and tensor.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return nn.NewParameter(name, t)
}

// CountParameters returns the total number of scalar values held by params.
func CountParameters(params []*Parameter) int {
	return nn.CountParameters(params)
}

// Errors returned by layer constructors and batch norm folding.
var (
	ErrInvalidConv        = nn.ErrInvalidConv
	ErrDegenerateVariance = nn.ErrDegenerateVariance
)

// Layers

// Conv2DConfig describes a square-kernel 2D convolution.
type Conv2DConfig = nn.Conv2DConfig

// Conv2D represents a 2D convolutional layer.
type Conv2D = nn.Conv2D

// NewConv2D creates a new 2D convolutional layer with zero weights.
//
// Example:
//
//	backend := cpu.New()
//	conv, err := nn.NewConv2D(nn.Conv2DConfig{InChannels: 3, OutChannels: 8, KernelSize: 3, Padding: 1}, backend)
func NewConv2D(cfg Conv2DConfig, backend tensor.Backend) (*Conv2D, error) {
	return nn.NewConv2D(cfg, backend)
}

// NewConv2DFromTensors wraps existing weight and bias tensors.
// bias may be nil.
func NewConv2DFromTensors(weight, bias *tensor.Tensor, opts tensor.ConvOptions, backend tensor.Backend) (*Conv2D, error) {
	return nn.NewConv2DFromTensors(weight, bias, opts, backend)
}

// DefaultBatchNormEps is the epsilon used when none is given.
const DefaultBatchNormEps = nn.DefaultBatchNormEps

// BatchNorm2D represents per-channel batch normalization over NCHW input.
type BatchNorm2D = nn.BatchNorm2D

// NewBatchNorm2D creates a batch norm layer with gamma=1, beta=0,
// running mean 0 and running variance 1.
func NewBatchNorm2D(numFeatures int, eps float64, backend tensor.Backend) (*BatchNorm2D, error) {
	return nn.NewBatchNorm2D(numFeatures, eps, backend)
}

// Linear represents a fully connected (dense) layer.
type Linear = nn.Linear

// NewLinear creates a new linear layer.
func NewLinear(inFeatures, outFeatures int, backend tensor.Backend) (*Linear, error) {
	return nn.NewLinear(inFeatures, outFeatures, backend)
}

// SqueezeExcite represents a squeeze-and-excitation channel gate.
type SqueezeExcite = nn.SqueezeExcite

// NewSqueezeExcite creates an SE gate with the given bottleneck width.
func NewSqueezeExcite(channels, internal int, backend tensor.Backend) (*SqueezeExcite, error) {
	return nn.NewSqueezeExcite(channels, internal, backend)
}

// Activations

// ReLU represents the Rectified Linear Unit activation function.
type ReLU = nn.ReLU

// NewReLU creates a new ReLU activation layer.
func NewReLU(backend tensor.Backend) *ReLU {
	return nn.NewReLU(backend)
}

// Sigmoid represents the logistic activation function.
type Sigmoid = nn.Sigmoid

// NewSigmoid creates a new Sigmoid activation layer.
func NewSigmoid(backend tensor.Backend) *Sigmoid {
	return nn.NewSigmoid(backend)
}

// GlobalAvgPool averages each channel over its spatial extent.
type GlobalAvgPool = nn.GlobalAvgPool

// NewGlobalAvgPool creates a new global average pooling layer.
func NewGlobalAvgPool(backend tensor.Backend) *GlobalAvgPool {
	return nn.NewGlobalAvgPool(backend)
}

// Initialization

// TruncatedNormal fills a tensor from N(0, sigma²) truncated to [-2σ, 2σ].
func TruncatedNormal(rng *rand.Rand, shape tensor.Shape, sigma float64) *tensor.Tensor {
	return nn.TruncatedNormal(rng, shape, sigma)
}

// NewRand returns a deterministic random source for the given seed.
func NewRand(seed uint64) *rand.Rand {
	return nn.NewRand(seed)
}
