package nn

import (
	"fmt"

	"github.com/born-ml/repvgg/internal/tensor"
)

// Linear is a fully connected layer: y = x @ W^T + b.
//
// Input shape:  [batch, in_features]
// Output shape: [batch, out_features]
type Linear struct {
	inFeatures  int
	outFeatures int

	weight *Parameter // [out_features, in_features]
	bias   *Parameter // [out_features]

	backend tensor.Backend
}

// NewLinear creates a linear layer with zero weight and bias.
func NewLinear(inFeatures, outFeatures int, backend tensor.Backend) (*Linear, error) {
	if inFeatures <= 0 || outFeatures <= 0 {
		return nil, fmt.Errorf("linear: invalid features in=%d, out=%d", inFeatures, outFeatures)
	}
	return &Linear{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter("weight", Zeros(tensor.Shape{outFeatures, inFeatures})),
		bias:        NewParameter("bias", Zeros(tensor.Shape{outFeatures})),
		backend:     backend,
	}, nil
}

// Forward performs the forward pass.
func (l *Linear) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	return l.backend.Linear(x, l.weight.Tensor(), l.bias.Tensor())
}

// Parameters returns weight and bias.
func (l *Linear) Parameters() []*Parameter {
	return []*Parameter{l.weight, l.bias}
}

// Clone returns a deep copy sharing only the backend.
func (l *Linear) Clone() *Linear {
	return &Linear{
		inFeatures:  l.inFeatures,
		outFeatures: l.outFeatures,
		weight:      l.weight.Clone(),
		bias:        l.bias.Clone(),
		backend:     l.backend,
	}
}

// Weight returns the weight tensor.
func (l *Linear) Weight() *tensor.Tensor { return l.weight.Tensor() }

// Bias returns the bias tensor.
func (l *Linear) Bias() *tensor.Tensor { return l.bias.Tensor() }

// InFeatures returns the input feature count.
func (l *Linear) InFeatures() int { return l.inFeatures }

// OutFeatures returns the output feature count.
func (l *Linear) OutFeatures() int { return l.outFeatures }
