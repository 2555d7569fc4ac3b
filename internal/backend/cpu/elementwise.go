package cpu

import (
	"github.com/born-ml/repvgg/internal/tensor"
)

// Add performs element-wise addition of two tensors with equal shapes.
func (cpu *CPUBackend) Add(a, b *tensor.Tensor) (*tensor.Tensor, error) {
	if !a.Shape().Equal(b.Shape()) {
		return nil, tensor.NewShapeError("add", b.Shape(), "expected %v", a.Shape())
	}
	result := tensor.Zeros(a.Shape())
	dst, aData, bData := result.Data(), a.Data(), b.Data()
	for i := range dst {
		dst[i] = aData[i] + bData[i]
	}
	return result, nil
}

// AddBias adds a per-channel bias [C] to x [N, C, H, W].
func (cpu *CPUBackend) AddBias(x, bias *tensor.Tensor) (*tensor.Tensor, error) {
	if err := checkChannelVector("add_bias", x, bias); err != nil {
		return nil, err
	}
	result := x.Clone()
	forEachChannel(result, func(c int, plane []float32) {
		b := bias.Data()[c]
		for i := range plane {
			plane[i] += b
		}
	})
	return result, nil
}

// ScaleShift computes x*scale[c] + shift[c] for x [N, C, H, W].
//
// This is the inference form of batch normalization once scale and shift
// have been derived from the running statistics.
func (cpu *CPUBackend) ScaleShift(x, scale, shift *tensor.Tensor) (*tensor.Tensor, error) {
	if err := checkChannelVector("scale_shift", x, scale); err != nil {
		return nil, err
	}
	if err := checkChannelVector("scale_shift", x, shift); err != nil {
		return nil, err
	}
	result := x.Clone()
	forEachChannel(result, func(c int, plane []float32) {
		s, b := scale.Data()[c], shift.Data()[c]
		for i := range plane {
			plane[i] = plane[i]*s + b
		}
	})
	return result, nil
}

// ChannelGate multiplies x [N, C, H, W] by gate [N, C] broadcast over H and W.
func (cpu *CPUBackend) ChannelGate(x, gate *tensor.Tensor) (*tensor.Tensor, error) {
	const op = "channel_gate"
	if err := tensor.CheckRank(op, x.Shape(), 4); err != nil {
		return nil, err
	}
	xs := x.Shape()
	if !gate.Shape().Equal(tensor.Shape{xs[0], xs[1]}) {
		return nil, tensor.NewShapeError(op, gate.Shape(), "expected gate [%d %d]", xs[0], xs[1])
	}
	result := x.Clone()
	plane := xs[2] * xs[3]
	data, g := result.Data(), gate.Data()
	for nc, s := range g {
		p := data[nc*plane : (nc+1)*plane]
		for i := range p {
			p[i] *= s
		}
	}
	return result, nil
}

func checkChannelVector(op string, x, v *tensor.Tensor) error {
	if err := tensor.CheckRank(op, x.Shape(), 4); err != nil {
		return err
	}
	if !v.Shape().Equal(tensor.Shape{x.Shape()[1]}) {
		return tensor.NewShapeError(op, v.Shape(), "expected per-channel vector [%d]", x.Shape()[1])
	}
	return nil
}

// forEachChannel calls f with each [H*W] plane of a 4D tensor and its channel.
func forEachChannel(t *tensor.Tensor, f func(c int, plane []float32)) {
	s := t.Shape()
	n, channels, size := s[0], s[1], s[2]*s[3]
	data := t.Data()
	for b := 0; b < n; b++ {
		for c := 0; c < channels; c++ {
			off := (b*channels + c) * size
			f(c, data[off:off+size])
		}
	}
}
