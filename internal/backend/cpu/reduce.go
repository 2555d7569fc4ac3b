package cpu

import (
	"github.com/born-ml/repvgg/internal/tensor"
)

// MeanSpatial averages x [N, C, H, W] over H and W, giving [N, C].
func (cpu *CPUBackend) MeanSpatial(x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := tensor.CheckRank("mean_spatial", x.Shape(), 4); err != nil {
		return nil, err
	}
	s := x.Shape()
	plane := s[2] * s[3]
	result := tensor.Zeros(tensor.Shape{s[0], s[1]})
	src, dst := x.Data(), result.Data()
	for nc := range dst {
		var sum float64
		for _, v := range src[nc*plane : (nc+1)*plane] {
			sum += float64(v)
		}
		dst[nc] = float32(sum / float64(plane))
	}
	return result, nil
}
