package nn

import (
	"github.com/born-ml/repvgg/internal/tensor"
)

// ReLU applies max(0, x).
type ReLU struct {
	backend tensor.Backend
}

// NewReLU creates a ReLU activation.
func NewReLU(backend tensor.Backend) *ReLU {
	return &ReLU{backend: backend}
}

// Forward applies the activation.
func (r *ReLU) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	return r.backend.ReLU(x), nil
}

// Parameters returns nil (no parameters).
func (r *ReLU) Parameters() []*Parameter {
	return nil
}

// Sigmoid applies 1 / (1 + exp(-x)).
type Sigmoid struct {
	backend tensor.Backend
}

// NewSigmoid creates a Sigmoid activation.
func NewSigmoid(backend tensor.Backend) *Sigmoid {
	return &Sigmoid{backend: backend}
}

// Forward applies the activation.
func (s *Sigmoid) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	return s.backend.Sigmoid(x), nil
}

// Parameters returns nil (no parameters).
func (s *Sigmoid) Parameters() []*Parameter {
	return nil
}

// GlobalAvgPool averages [N, C, H, W] over space into [N, C].
type GlobalAvgPool struct {
	backend tensor.Backend
}

// NewGlobalAvgPool creates a global average pooling layer.
func NewGlobalAvgPool(backend tensor.Backend) *GlobalAvgPool {
	return &GlobalAvgPool{backend: backend}
}

// Forward pools the input.
func (g *GlobalAvgPool) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	return g.backend.MeanSpatial(x)
}

// Parameters returns nil (no parameters).
func (g *GlobalAvgPool) Parameters() []*Parameter {
	return nil
}
