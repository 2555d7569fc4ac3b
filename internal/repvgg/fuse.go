package repvgg

import (
	"fmt"

	"github.com/born-ml/repvgg/internal/nn"
	"github.com/born-ml/repvgg/internal/tensor"
)

// BranchSet is the multi-branch form of a block: a mandatory 3x3 conv+BN,
// a mandatory 1x1 conv+BN and an identity BN or Absent.
type BranchSet struct {
	Dense     Branch
	Pointwise Branch
	Identity  Branch
}

// Validate checks that the set has one of the shapes the fusion engine
// recognizes. Any other shape is ErrUnsupportedBranch.
func (s BranchSet) Validate() error {
	dense, ok := s.Dense.(*ConvBN)
	if !ok || dense == nil {
		return fmt.Errorf("%w: dense branch must be conv_bn, got %s", ErrUnsupportedBranch, kindOf(s.Dense))
	}
	pw, ok := s.Pointwise.(*ConvBN)
	if !ok || pw == nil {
		return fmt.Errorf("%w: 1x1 branch must be conv_bn, got %s", ErrUnsupportedBranch, kindOf(s.Pointwise))
	}

	dc, pc := dense.conv.Config(), pw.conv.Config()
	switch {
	case dc.KernelSize != 3:
		return fmt.Errorf("%w: dense kernel %dx%d, want 3x3", ErrUnsupportedBranch, dc.KernelSize, dc.KernelSize)
	case pc.KernelSize != 1:
		return fmt.Errorf("%w: 1x1 branch kernel %dx%d", ErrUnsupportedBranch, pc.KernelSize, pc.KernelSize)
	case dc.Padding != 1 || dc.Dilation != 1:
		return fmt.Errorf("%w: dense padding=%d dilation=%d, want 1 and 1", ErrUnsupportedBranch, dc.Padding, dc.Dilation)
	case pc.Padding != 0 || pc.Dilation != 1:
		return fmt.Errorf("%w: 1x1 padding=%d dilation=%d, want 0 and 1", ErrUnsupportedBranch, pc.Padding, pc.Dilation)
	case dc.InChannels != pc.InChannels || dc.OutChannels != pc.OutChannels ||
		dc.Groups != pc.Groups || dc.Stride != pc.Stride:
		return fmt.Errorf("%w: 3x3 and 1x1 branches disagree (%s vs %s)", ErrUnsupportedBranch, dense.conv, pw.conv)
	}

	switch id := s.Identity.(type) {
	case nil, Absent:
		return nil
	case *IdentityBN:
		if id == nil {
			return fmt.Errorf("%w: identity branch is a nil identity_bn", ErrUnsupportedBranch)
		}
		if dc.InChannels != dc.OutChannels || dc.Stride != 1 {
			return fmt.Errorf("%w: identity branch on block in=%d out=%d stride=%d",
				ErrUnsupportedBranch, dc.InChannels, dc.OutChannels, dc.Stride)
		}
		if id.bn.NumFeatures() != dc.OutChannels || id.groups != dc.Groups {
			return fmt.Errorf("%w: identity branch has %d channels, groups=%d; block has %d, groups=%d",
				ErrUnsupportedBranch, id.bn.NumFeatures(), id.groups, dc.OutChannels, dc.Groups)
		}
		return nil
	default:
		return fmt.Errorf("%w: identity branch must be identity_bn or absent, got %s", ErrUnsupportedBranch, kindOf(s.Identity))
	}
}

func kindOf(b Branch) string {
	if b == nil {
		return "nil"
	}
	return b.Kind().String()
}

// FuseBranch folds a branch's batch normalization into its kernel.
//
//	scale  = gamma / sqrt(running_variance + eps)
//	kernel = W * scale[out]
//	bias   = beta - running_mean * scale
//
// For an identity branch W is the synthetic identity kernel. An absent branch
// yields nil, nil (a zero contribution).
func FuseBranch(b Branch) (kernel, bias *tensor.Tensor, err error) {
	switch br := b.(type) {
	case nil, Absent:
		return nil, nil, nil
	case *ConvBN:
		return foldBN(br.conv.Weight(), br.bn)
	case *IdentityBN:
		return foldBN(br.IdentityKernel(), br.bn)
	default:
		return nil, nil, fmt.Errorf("%w: cannot fuse %s", ErrUnsupportedBranch, b.Kind())
	}
}

// foldBN returns new tensors; the inputs are never modified.
func foldBN(weight *tensor.Tensor, bn *nn.BatchNorm2D) (*tensor.Tensor, *tensor.Tensor, error) {
	ws := weight.Shape()
	if !ws.IsSquareKernel() {
		return nil, nil, fmt.Errorf("%w: kernel %v is not square", ErrUnsupportedBranch, ws)
	}
	if ws[0] != bn.NumFeatures() {
		return nil, nil, fmt.Errorf("%w: kernel has %d output channels, batch norm %d",
			ErrUnsupportedBranch, ws[0], bn.NumFeatures())
	}

	scale, shift, err := bn.ScaleShift()
	if err != nil {
		return nil, nil, err
	}

	kernel := weight.Clone()
	perOut := ws[1] * ws[2] * ws[3]
	data := kernel.Data()
	for o, s := range scale.Data() {
		row := data[o*perOut : (o+1)*perOut]
		for i := range row {
			row[i] *= s
		}
	}
	return kernel, shift, nil
}

// PadTo3x3 embeds a [out, in, 1, 1] kernel at the center tap of a
// [out, in, 3, 3] kernel. A nil kernel stays nil.
func PadTo3x3(k *tensor.Tensor) (*tensor.Tensor, error) {
	if k == nil {
		return nil, nil
	}
	s := k.Shape()
	if len(s) != 4 || s[2] != 1 || s[3] != 1 {
		return nil, fmt.Errorf("%w: cannot pad kernel %v to 3x3", ErrUnsupportedBranch, s)
	}
	padded := tensor.Zeros(tensor.Shape{s[0], s[1], 3, 3})
	for o := 0; o < s[0]; o++ {
		for i := 0; i < s[1]; i++ {
			padded.Set(k.At(o, i, 0, 0), o, i, 1, 1)
		}
	}
	return padded, nil
}

// FuseBranchSet computes the single 3x3 kernel and bias equivalent to the
// sum of the branches:
//
//	kernel = K3 + pad(K1) + Kid
//	bias   = b3 + b1 + bid
//
// The result is usable as a convolution with the dense branch's stride,
// padding, dilation and groups.
func FuseBranchSet(s BranchSet) (kernel, bias *tensor.Tensor, err error) {
	if err := s.Validate(); err != nil {
		return nil, nil, err
	}

	kernel, bias, err = FuseBranch(s.Dense)
	if err != nil {
		return nil, nil, fmt.Errorf("dense branch: %w", err)
	}

	k1, b1, err := FuseBranch(s.Pointwise)
	if err != nil {
		return nil, nil, fmt.Errorf("1x1 branch: %w", err)
	}
	if k1, err = PadTo3x3(k1); err != nil {
		return nil, nil, err
	}
	accumulate(kernel, k1)
	accumulate(bias, b1)

	kid, bid, err := FuseBranch(s.Identity)
	if err != nil {
		return nil, nil, fmt.Errorf("identity branch: %w", err)
	}
	accumulate(kernel, kid)
	accumulate(bias, bid)

	return kernel, bias, nil
}

// accumulate adds src into dst in place; a nil src is a zero.
func accumulate(dst, src *tensor.Tensor) {
	if src == nil {
		return
	}
	d, s := dst.Data(), src.Data()
	for i := range d {
		d[i] += s[i]
	}
}

// EquivalentKernelBias is FuseBranchSet over explicit branches.
func EquivalentKernelBias(dense, pointwise, identity Branch) (kernel, bias *tensor.Tensor, err error) {
	return FuseBranchSet(BranchSet{Dense: dense, Pointwise: pointwise, Identity: identity})
}
