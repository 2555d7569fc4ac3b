package nn

import (
	"fmt"

	"github.com/born-ml/repvgg/internal/tensor"
)

// SqueezeExcite is a squeeze-and-excitation channel gate.
//
//	gate = sigmoid(up(relu(down(mean_hw(x)))))
//	y    = x * gate
//
// down and up are 1x1 convolutions with bias: channels -> internal -> channels.
type SqueezeExcite struct {
	channels int
	internal int

	down *Conv2D
	up   *Conv2D

	backend tensor.Backend
}

// NewSqueezeExcite creates an SE gate over channels with the given internal width.
func NewSqueezeExcite(channels, internal int, backend tensor.Backend) (*SqueezeExcite, error) {
	if channels <= 0 || internal <= 0 {
		return nil, fmt.Errorf("squeeze_excite: invalid widths channels=%d, internal=%d", channels, internal)
	}
	down, err := NewConv2D(Conv2DConfig{InChannels: channels, OutChannels: internal, KernelSize: 1, UseBias: true}, backend)
	if err != nil {
		return nil, err
	}
	up, err := NewConv2D(Conv2DConfig{InChannels: internal, OutChannels: channels, KernelSize: 1, UseBias: true}, backend)
	if err != nil {
		return nil, err
	}
	return &SqueezeExcite{
		channels: channels,
		internal: internal,
		down:     down,
		up:       up,
		backend:  backend,
	}, nil
}

// Forward gates x [N, C, H, W] channel-wise.
func (se *SqueezeExcite) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := tensor.CheckNCHW("squeeze_excite", x.Shape(), se.channels); err != nil {
		return nil, err
	}
	n := x.Shape()[0]

	pooled, err := se.backend.MeanSpatial(x)
	if err != nil {
		return nil, err
	}
	s, err := pooled.Reshape(tensor.Shape{n, se.channels, 1, 1})
	if err != nil {
		return nil, err
	}
	if s, err = se.down.Forward(s); err != nil {
		return nil, err
	}
	s = se.backend.ReLU(s)
	if s, err = se.up.Forward(s); err != nil {
		return nil, err
	}
	s = se.backend.Sigmoid(s)

	gate, err := s.Reshape(tensor.Shape{n, se.channels})
	if err != nil {
		return nil, err
	}
	return se.backend.ChannelGate(x, gate)
}

// Parameters returns down and up parameters.
func (se *SqueezeExcite) Parameters() []*Parameter {
	return append(se.down.Parameters(), se.up.Parameters()...)
}

// Down returns the reduce convolution.
func (se *SqueezeExcite) Down() *Conv2D { return se.down }

// Up returns the expand convolution.
func (se *SqueezeExcite) Up() *Conv2D { return se.up }

// Clone returns a deep copy sharing only the backend.
func (se *SqueezeExcite) Clone() *SqueezeExcite {
	return &SqueezeExcite{
		channels: se.channels,
		internal: se.internal,
		down:     se.down.Clone(),
		up:       se.up.Clone(),
		backend:  se.backend,
	}
}
