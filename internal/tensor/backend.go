package tensor

// ConvOptions configures a 2D convolution.
type ConvOptions struct {
	Stride   int
	Padding  int
	Dilation int
	Groups   int
}

// Normalize fills zero fields with their PyTorch-style defaults
// (stride 1, dilation 1, groups 1).
func (o ConvOptions) Normalize() ConvOptions {
	if o.Stride == 0 {
		o.Stride = 1
	}
	if o.Dilation == 0 {
		o.Dilation = 1
	}
	if o.Groups == 0 {
		o.Groups = 1
	}
	return o
}

// Backend defines the tensor runtime consumed by the network modules.
// Backends handle the actual computation; every operation returns a new
// tensor and reports shape mismatches as *ShapeError.
//
// Implementations:
//   - CPU: Pure Go im2col convolution (internal/backend/cpu)
type Backend interface {
	// Conv2D convolves input [N, C_in, H, W] with kernel
	// [C_out, C_in/groups, K_h, K_w].
	Conv2D(input, kernel *Tensor, opts ConvOptions) (*Tensor, error)

	// AddBias adds a per-channel bias [C] to x [N, C, H, W].
	AddBias(x, bias *Tensor) (*Tensor, error)

	// Add performs element-wise addition of equally shaped tensors.
	Add(a, b *Tensor) (*Tensor, error)

	// ScaleShift computes x*scale[c] + shift[c] for x [N, C, H, W].
	ScaleShift(x, scale, shift *Tensor) (*Tensor, error)

	// ChannelGate multiplies x [N, C, H, W] by gate [N, C] broadcast over space.
	ChannelGate(x, gate *Tensor) (*Tensor, error)

	// MeanSpatial averages x [N, C, H, W] over H and W, giving [N, C].
	MeanSpatial(x *Tensor) (*Tensor, error)

	// Linear computes x @ weight^T + bias for x [N, in], weight [out, in].
	// bias may be nil.
	Linear(x, weight, bias *Tensor) (*Tensor, error)

	// Activation functions
	ReLU(x *Tensor) *Tensor
	Sigmoid(x *Tensor) *Tensor

	// Metadata
	Name() string
}
