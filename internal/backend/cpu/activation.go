package cpu

import (
	"math"

	"github.com/born-ml/repvgg/internal/tensor"
)

// ReLU applies max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.Tensor) *tensor.Tensor {
	result := x.Clone()
	data := result.Data()
	for i, v := range data {
		if v < 0 {
			data[i] = 0
		}
	}
	return result
}

// Sigmoid applies 1 / (1 + exp(-x)) element-wise.
func (cpu *CPUBackend) Sigmoid(x *tensor.Tensor) *tensor.Tensor {
	result := x.Clone()
	data := result.Data()
	for i, v := range data {
		data[i] = float32(1.0 / (1.0 + math.Exp(-float64(v))))
	}
	return result
}
