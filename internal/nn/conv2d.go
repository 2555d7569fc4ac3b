package nn

import (
	"fmt"

	"github.com/born-ml/repvgg/internal/tensor"
)

// Conv2DConfig describes a square-kernel 2D convolution.
type Conv2DConfig struct {
	InChannels  int
	OutChannels int
	KernelSize  int
	Stride      int
	Padding     int
	Dilation    int
	Groups      int
	UseBias     bool
}

// Validate checks the layer invariants.
func (c Conv2DConfig) Validate() error {
	switch {
	case c.InChannels <= 0 || c.OutChannels <= 0:
		return fmt.Errorf("%w: channels in=%d, out=%d", ErrInvalidConv, c.InChannels, c.OutChannels)
	case c.KernelSize <= 0:
		return fmt.Errorf("%w: kernel size %d", ErrInvalidConv, c.KernelSize)
	case c.Stride <= 0 || c.Dilation <= 0 || c.Padding < 0:
		return fmt.Errorf("%w: stride=%d padding=%d dilation=%d", ErrInvalidConv, c.Stride, c.Padding, c.Dilation)
	case c.Groups <= 0 || c.InChannels%c.Groups != 0 || c.OutChannels%c.Groups != 0:
		return fmt.Errorf("%w: channels in=%d out=%d not divisible by groups=%d",
			ErrInvalidConv, c.InChannels, c.OutChannels, c.Groups)
	}
	return nil
}

func (c Conv2DConfig) withDefaults() Conv2DConfig {
	if c.Stride == 0 {
		c.Stride = 1
	}
	if c.Dilation == 0 {
		c.Dilation = 1
	}
	if c.Groups == 0 {
		c.Groups = 1
	}
	return c
}

// Conv2D is a 2D convolutional layer.
//
// Performs convolution: output = Conv2D(input, weight) + bias
//
// Input shape:  [batch, in_channels, height, width]
// Weight shape: [out_channels, in_channels/groups, kernel, kernel]
// Bias shape:   [out_channels]
// Output shape: [batch, out_channels, out_h, out_w]
type Conv2D struct {
	cfg Conv2DConfig

	weight *Parameter // [out_channels, in_channels/groups, k, k]
	bias   *Parameter // [out_channels] or nil

	backend tensor.Backend
}

// NewConv2D creates a convolution with zero-initialized weight and bias.
// Callers initialize the weights explicitly (see TruncatedNormal).
func NewConv2D(cfg Conv2DConfig, backend tensor.Backend) (*Conv2D, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	weight := Zeros(tensor.Shape{cfg.OutChannels, cfg.InChannels / cfg.Groups, cfg.KernelSize, cfg.KernelSize})
	var bias *tensor.Tensor
	if cfg.UseBias {
		bias = Zeros(tensor.Shape{cfg.OutChannels})
	}
	return newConv2D(cfg, weight, bias, backend), nil
}

// NewConv2DFromTensors wraps existing weight and bias tensors in a layer.
//
// The weight must be [out, in/groups, k, k] with a square kernel; bias may be
// nil or [out]. The layer takes ownership of both tensors.
func NewConv2DFromTensors(weight, bias *tensor.Tensor, opts tensor.ConvOptions, backend tensor.Backend) (*Conv2D, error) {
	opts = opts.Normalize()
	ws := weight.Shape()
	if !ws.IsSquareKernel() {
		return nil, fmt.Errorf("%w: weight %v is not a square 4D kernel", ErrInvalidConv, ws)
	}
	cfg := Conv2DConfig{
		InChannels:  ws[1] * opts.Groups,
		OutChannels: ws[0],
		KernelSize:  ws[2],
		Stride:      opts.Stride,
		Padding:     opts.Padding,
		Dilation:    opts.Dilation,
		Groups:      opts.Groups,
		UseBias:     bias != nil,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if bias != nil && !bias.Shape().Equal(tensor.Shape{ws[0]}) {
		return nil, fmt.Errorf("%w: bias %v for %d output channels", ErrInvalidConv, bias.Shape(), ws[0])
	}
	return newConv2D(cfg, weight, bias, backend), nil
}

func newConv2D(cfg Conv2DConfig, weight, bias *tensor.Tensor, backend tensor.Backend) *Conv2D {
	c := &Conv2D{
		cfg:     cfg,
		weight:  NewParameter("weight", weight),
		backend: backend,
	}
	if bias != nil {
		c.bias = NewParameter("bias", bias)
	}
	return c
}

// Forward performs the forward pass.
//
// Input: [batch, in_channels, height, width]
// Output: [batch, out_channels, out_h, out_w].
func (c *Conv2D) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if err := tensor.CheckNCHW("conv2d", input.Shape(), c.cfg.InChannels); err != nil {
		return nil, err
	}

	output, err := c.backend.Conv2D(input, c.weight.Tensor(), c.Options())
	if err != nil {
		return nil, err
	}
	if c.bias != nil {
		return c.backend.AddBias(output, c.bias.Tensor())
	}
	return output, nil
}

// Parameters returns the weight and, when present, the bias.
func (c *Conv2D) Parameters() []*Parameter {
	if c.bias != nil {
		return []*Parameter{c.weight, c.bias}
	}
	return []*Parameter{c.weight}
}

// Clone returns a deep copy sharing only the backend.
func (c *Conv2D) Clone() *Conv2D {
	var bias *tensor.Tensor
	if c.bias != nil {
		bias = c.bias.Tensor().Clone()
	}
	return newConv2D(c.cfg, c.weight.Tensor().Clone(), bias, c.backend)
}

// Weight returns the kernel tensor.
func (c *Conv2D) Weight() *tensor.Tensor {
	return c.weight.Tensor()
}

// Bias returns the bias tensor or nil.
func (c *Conv2D) Bias() *tensor.Tensor {
	if c.bias == nil {
		return nil
	}
	return c.bias.Tensor()
}

// Config returns the layer hyperparameters.
func (c *Conv2D) Config() Conv2DConfig {
	return c.cfg
}

// Options returns the hyperparameters in backend form.
func (c *Conv2D) Options() tensor.ConvOptions {
	return tensor.ConvOptions{
		Stride:   c.cfg.Stride,
		Padding:  c.cfg.Padding,
		Dilation: c.cfg.Dilation,
		Groups:   c.cfg.Groups,
	}
}

// InChannels returns the number of input channels.
func (c *Conv2D) InChannels() int {
	return c.cfg.InChannels
}

// OutChannels returns the number of output channels.
func (c *Conv2D) OutChannels() int {
	return c.cfg.OutChannels
}

// KernelSize returns the side of the square kernel.
func (c *Conv2D) KernelSize() int {
	return c.cfg.KernelSize
}

// String returns a string representation of the layer.
func (c *Conv2D) String() string {
	return fmt.Sprintf("Conv2D(in_channels=%d, out_channels=%d, kernel_size=%d, stride=%d, padding=%d, dilation=%d, groups=%d, bias=%v)",
		c.cfg.InChannels, c.cfg.OutChannels, c.cfg.KernelSize,
		c.cfg.Stride, c.cfg.Padding, c.cfg.Dilation, c.cfg.Groups, c.bias != nil)
}
