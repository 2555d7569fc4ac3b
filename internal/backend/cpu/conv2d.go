package cpu

import (
	"github.com/born-ml/repvgg/internal/parallel"
	"github.com/born-ml/repvgg/internal/tensor"
)

// convGeometry holds the resolved dimensions of one Conv2D call.
type convGeometry struct {
	N, CIn, H, W     int
	COut, KH, KW     int
	HOut, WOut       int
	stride, padding  int
	dilation, groups int
	cinG, coutG      int // channels per group
}

// Conv2D performs grouped, dilated 2D convolution using the im2col algorithm.
//
// Input shape:  [batch, in_channels, height, width]
// Kernel shape: [out_channels, in_channels/groups, kernel_h, kernel_w]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Where:
//
//	out_h = (height + 2*padding - dilation*(kernel_h-1) - 1) / stride + 1
//
// Algorithm, for every (batch n, group g):
//  1. Im2col: input patches of group g -> [H_out * W_out, C_in/groups * K_h * K_w]
//  2. Kernel rows of group g are already [C_out/groups, C_in/groups * K_h * K_w]
//  3. Dot each kernel row with each patch row
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.Tensor, opts tensor.ConvOptions) (*tensor.Tensor, error) {
	g, err := resolveConv(input.Shape(), kernel.Shape(), opts.Normalize())
	if err != nil {
		return nil, err
	}

	output := tensor.Zeros(tensor.Shape{g.N, g.COut, g.HOut, g.WOut})
	inputData := input.Data()
	kernelData := kernel.Data()
	outputData := output.Data()

	parallel.ForBatch(g.N, g.groups, func(n, grp int) {
		conv2dGroup(outputData, inputData, kernelData, g, n, grp)
	}, cpu.par)

	return output, nil
}

func resolveConv(inputShape, kernelShape tensor.Shape, opts tensor.ConvOptions) (convGeometry, error) {
	const op = "conv2d"
	if err := tensor.CheckRank(op, inputShape, 4); err != nil {
		return convGeometry{}, err
	}
	if len(kernelShape) != 4 {
		return convGeometry{}, tensor.NewShapeError(op, kernelShape, "kernel must be 4D [C_out,C_in/groups,K_h,K_w]")
	}
	if opts.Stride <= 0 || opts.Dilation <= 0 || opts.Groups <= 0 || opts.Padding < 0 {
		return convGeometry{}, tensor.NewShapeError(op, kernelShape,
			"invalid options stride=%d padding=%d dilation=%d groups=%d",
			opts.Stride, opts.Padding, opts.Dilation, opts.Groups)
	}

	g := convGeometry{
		N: inputShape[0], CIn: inputShape[1], H: inputShape[2], W: inputShape[3],
		COut: kernelShape[0], KH: kernelShape[2], KW: kernelShape[3],
		stride: opts.Stride, padding: opts.Padding,
		dilation: opts.Dilation, groups: opts.Groups,
	}

	if g.CIn%g.groups != 0 || g.COut%g.groups != 0 {
		return convGeometry{}, tensor.NewShapeError(op, inputShape,
			"channels in=%d out=%d not divisible by groups=%d", g.CIn, g.COut, g.groups)
	}
	g.cinG = g.CIn / g.groups
	g.coutG = g.COut / g.groups
	if kernelShape[1] != g.cinG {
		return convGeometry{}, tensor.NewShapeError(op, inputShape,
			"input channels %d != kernel channels %d * groups %d", g.CIn, kernelShape[1], g.groups)
	}

	g.HOut = (g.H+2*g.padding-g.dilation*(g.KH-1)-1)/g.stride + 1
	g.WOut = (g.W+2*g.padding-g.dilation*(g.KW-1)-1)/g.stride + 1
	if g.HOut <= 0 || g.WOut <= 0 {
		return convGeometry{}, tensor.NewShapeError(op, inputShape,
			"invalid output dimensions: out_h=%d, out_w=%d (check stride/padding)", g.HOut, g.WOut)
	}
	return g, nil
}

// conv2dGroup computes output[n, grp*coutG:(grp+1)*coutG] in place.
func conv2dGroup(outputData, inputData, kernelData []float32, g convGeometry, n, grp int) {
	colWidth := g.cinG * g.KH * g.KW
	colHeight := g.HOut * g.WOut
	colBuf := make([]float32, colHeight*colWidth)

	im2colGroup(colBuf, inputData, g, n, grp)

	outPlane := g.HOut * g.WOut
	for o := 0; o < g.coutG; o++ {
		oc := grp*g.coutG + o
		kRow := kernelData[oc*colWidth : (oc+1)*colWidth]
		dst := outputData[(n*g.COut+oc)*outPlane : (n*g.COut+oc+1)*outPlane]
		for j := 0; j < colHeight; j++ {
			patch := colBuf[j*colWidth : (j+1)*colWidth]
			sum := float32(0.0)
			for k, w := range kRow {
				sum += w * patch[k]
			}
			dst[j] = sum
		}
	}
}

// im2colGroup transforms the channels of one group of one image into a
// column matrix [H_out * W_out, C_in/groups * K_h * K_w].
//
// Positions that fall into the zero padding are written as zeros.
func im2colGroup(colBuf, inputData []float32, g convGeometry, n, grp int) {
	colWidth := g.cinG * g.KH * g.KW
	colIdx := 0

	for outH := 0; outH < g.HOut; outH++ {
		for outW := 0; outW < g.WOut; outW++ {
			hStart := outH*g.stride - g.padding
			wStart := outW*g.stride - g.padding
			bufIdx := colIdx * colWidth

			for c := 0; c < g.cinG; c++ {
				ic := grp*g.cinG + c
				plane := (n*g.CIn + ic) * g.H * g.W
				for kh := 0; kh < g.KH; kh++ {
					h := hStart + kh*g.dilation
					for kw := 0; kw < g.KW; kw++ {
						w := wStart + kw*g.dilation
						if h >= 0 && h < g.H && w >= 0 && w < g.W {
							colBuf[bufIdx] = inputData[plane+h*g.W+w]
						} else {
							colBuf[bufIdx] = 0.0
						}
						bufIdx++
					}
				}
			}
			colIdx++
		}
	}
}
