package nn

import (
	"github.com/born-ml/repvgg/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Every NN module must implement:
//   - Forward: Compute output from input
//   - Parameters: Return all parameters the module owns
type Module interface {
	// Forward computes the output of the module given an input tensor.
	//
	// Shape mismatches are reported as *tensor.ShapeError.
	Forward(input *tensor.Tensor) (*tensor.Tensor, error)

	// Parameters returns all parameters of this module, including nested
	// modules. Returns an empty slice for modules without parameters
	// (e.g., activation functions).
	Parameters() []*Parameter
}

// CountParameters returns the total number of scalar values held by params.
func CountParameters(params []*Parameter) int {
	n := 0
	for _, p := range params {
		n += p.NumElements()
	}
	return n
}
