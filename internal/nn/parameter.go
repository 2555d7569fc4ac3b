package nn

import (
	"github.com/born-ml/repvgg/internal/tensor"
)

// Parameter represents a named tensor owned by a module.
//
// Example:
//
//	weight := nn.NewParameter("weight", weightTensor)
//	w := weight.Tensor()
type Parameter struct {
	name   string         // Parameter name (e.g., "weight", "bias")
	tensor *tensor.Tensor // The parameter tensor
}

// NewParameter creates a new parameter.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return &Parameter{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.Tensor {
	return p.tensor
}

// NumElements returns the number of scalar values in the parameter.
func (p *Parameter) NumElements() int {
	return p.tensor.NumElements()
}

// Clone returns a deep copy of the parameter.
func (p *Parameter) Clone() *Parameter {
	return NewParameter(p.name, p.tensor.Clone())
}
