package cpu

import (
	"github.com/born-ml/repvgg/internal/tensor"
)

// Linear computes x @ weight^T + bias.
//
// Input: [batch, in_features], weight: [out_features, in_features],
// bias: [out_features] or nil. Output: [batch, out_features].
func (cpu *CPUBackend) Linear(x, weight, bias *tensor.Tensor) (*tensor.Tensor, error) {
	const op = "linear"
	if err := tensor.CheckRank(op, x.Shape(), 2); err != nil {
		return nil, err
	}
	if err := tensor.CheckRank(op, weight.Shape(), 2); err != nil {
		return nil, err
	}
	batch, in := x.Shape()[0], x.Shape()[1]
	out := weight.Shape()[0]
	if weight.Shape()[1] != in {
		return nil, tensor.NewShapeError(op, x.Shape(), "in_features %d != weight in_features %d", in, weight.Shape()[1])
	}
	if bias != nil && !bias.Shape().Equal(tensor.Shape{out}) {
		return nil, tensor.NewShapeError(op, bias.Shape(), "expected bias [%d]", out)
	}

	result := tensor.Zeros(tensor.Shape{batch, out})
	xd, wd, dst := x.Data(), weight.Data(), result.Data()
	for b := 0; b < batch; b++ {
		row := xd[b*in : (b+1)*in]
		for o := 0; o < out; o++ {
			w := wd[o*in : (o+1)*in]
			sum := float32(0.0)
			for k, v := range row {
				sum += v * w[k]
			}
			if bias != nil {
				sum += bias.Data()[o]
			}
			dst[b*out+o] = sum
		}
	}
	return result, nil
}
