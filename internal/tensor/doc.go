// Package tensor provides the dense float32 tensors and the compute backend
// contract used by the RepVGG runtime.
//
// Tensors are row-major. Convolution kernels use the layout
// [out_channels, in_channels/groups, kernel_h, kernel_w], activations use
// [batch, channels, height, width] and per-channel vectors use [channels].
//
// Example:
//
//	x, err := tensor.FromSlice(data, tensor.Shape{1, 3, 224, 224})
//	if err != nil {
//	    return err
//	}
//	y, err := backend.Conv2D(x, kernel, tensor.ConvOptions{Stride: 1, Padding: 1})
package tensor
