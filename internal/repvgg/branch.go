package repvgg

import (
	"fmt"

	"github.com/born-ml/repvgg/internal/nn"
	"github.com/born-ml/repvgg/internal/tensor"
)

// BranchKind tags the variants of Branch.
type BranchKind int

// Branch kinds.
const (
	KindAbsent BranchKind = iota
	KindConvBN
	KindIdentityBN
)

// String returns a human-readable kind name.
func (k BranchKind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindConvBN:
		return "conv_bn"
	case KindIdentityBN:
		return "identity_bn"
	default:
		return fmt.Sprintf("BranchKind(%d)", int(k))
	}
}

// Branch is one parallel path of a training-mode block.
//
// The set of implementations is closed: *ConvBN, *IdentityBN and Absent.
type Branch interface {
	// Kind returns the variant tag.
	Kind() BranchKind

	// Apply evaluates the branch. Absent returns a nil tensor, which callers
	// treat as an additive zero.
	Apply(x *tensor.Tensor) (*tensor.Tensor, error)

	// NamedParameters returns the branch parameters under prefix.
	NamedParameters(prefix string) []NamedParameter

	cloneBranch() Branch
}

// NamedParameter pairs a parameter with its dotted path inside a model.
type NamedParameter struct {
	Name  string
	Param *nn.Parameter
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func prefixed(prefix string, params []*nn.Parameter) []NamedParameter {
	out := make([]NamedParameter, 0, len(params))
	for _, p := range params {
		out = append(out, NamedParameter{Name: join(prefix, p.Name()), Param: p})
	}
	return out
}

// ConvBN is a convolution without bias followed by batch normalization.
//
// The two stay separate operators so the training framework can update both;
// fusion happens only on Convert.
type ConvBN struct {
	conv *nn.Conv2D
	bn   *nn.BatchNorm2D
}

// NewConvBN creates a conv+BN branch. cfg.UseBias is ignored (always false).
func NewConvBN(cfg nn.Conv2DConfig, eps float64, backend tensor.Backend) (*ConvBN, error) {
	cfg.UseBias = false
	conv, err := nn.NewConv2D(cfg, backend)
	if err != nil {
		return nil, err
	}
	bn, err := nn.NewBatchNorm2D(cfg.OutChannels, eps, backend)
	if err != nil {
		return nil, err
	}
	return &ConvBN{conv: conv, bn: bn}, nil
}

// Kind implements Branch.
func (b *ConvBN) Kind() BranchKind { return KindConvBN }

// Apply computes bn(conv(x)).
func (b *ConvBN) Apply(x *tensor.Tensor) (*tensor.Tensor, error) {
	y, err := b.conv.Forward(x)
	if err != nil {
		return nil, err
	}
	return b.bn.Forward(y)
}

// NamedParameters implements Branch.
func (b *ConvBN) NamedParameters(prefix string) []NamedParameter {
	return append(prefixed(join(prefix, "conv"), b.conv.Parameters()),
		prefixed(join(prefix, "bn"), b.bn.Parameters())...)
}

// Conv returns the convolution.
func (b *ConvBN) Conv() *nn.Conv2D { return b.conv }

// BN returns the batch normalization.
func (b *ConvBN) BN() *nn.BatchNorm2D { return b.bn }

func (b *ConvBN) cloneBranch() Branch {
	return &ConvBN{conv: b.conv.Clone(), bn: b.bn.Clone()}
}

// IdentityBN is a bare batch normalization on the block input. It exists
// only when the block keeps its channel count and resolution.
type IdentityBN struct {
	bn     *nn.BatchNorm2D
	groups int

	// idKernel is the per-channel identity expressed as a 3x3 kernel,
	// built on first fusion and owned by the branch.
	idKernel *tensor.Tensor
}

// NewIdentityBN creates an identity branch over channels for a block
// convolving with the given number of groups.
func NewIdentityBN(channels, groups int, eps float64, backend tensor.Backend) (*IdentityBN, error) {
	if groups <= 0 || channels%groups != 0 {
		return nil, fmt.Errorf("%w: %d channels not divisible by groups=%d", ErrInvalidConfiguration, channels, groups)
	}
	bn, err := nn.NewBatchNorm2D(channels, eps, backend)
	if err != nil {
		return nil, err
	}
	return &IdentityBN{bn: bn, groups: groups}, nil
}

// Kind implements Branch.
func (b *IdentityBN) Kind() BranchKind { return KindIdentityBN }

// Apply computes bn(x).
func (b *IdentityBN) Apply(x *tensor.Tensor) (*tensor.Tensor, error) {
	return b.bn.Forward(x)
}

// NamedParameters implements Branch.
func (b *IdentityBN) NamedParameters(prefix string) []NamedParameter {
	return prefixed(prefix, b.bn.Parameters())
}

// BN returns the batch normalization.
func (b *IdentityBN) BN() *nn.BatchNorm2D { return b.bn }

// Groups returns the group count of the block this branch belongs to.
func (b *IdentityBN) Groups() int { return b.groups }

// IdentityKernel returns the memoized identity kernel
// [C, C/groups, 3, 3] with kernel[i, i mod (C/groups), 1, 1] = 1.
func (b *IdentityBN) IdentityKernel() *tensor.Tensor {
	if b.idKernel == nil {
		b.idKernel = identityKernel(b.bn.NumFeatures(), b.groups)
	}
	return b.idKernel
}

func (b *IdentityBN) cloneBranch() Branch {
	// The memoized kernel is derived state and is rebuilt on demand.
	return &IdentityBN{bn: b.bn.Clone(), groups: b.groups}
}

// Absent is the missing identity branch. It contributes an additive zero.
type Absent struct{}

// Kind implements Branch.
func (Absent) Kind() BranchKind { return KindAbsent }

// Apply returns a nil tensor.
func (Absent) Apply(*tensor.Tensor) (*tensor.Tensor, error) { return nil, nil }

// NamedParameters returns nil.
func (Absent) NamedParameters(string) []NamedParameter { return nil }

func (Absent) cloneBranch() Branch { return Absent{} }

// identityKernel builds the 3x3 kernel that maps every channel to itself
// through a grouped convolution.
func identityKernel(channels, groups int) *tensor.Tensor {
	inputDim := channels / groups
	k := tensor.Zeros(tensor.Shape{channels, inputDim, 3, 3})
	for i := 0; i < channels; i++ {
		k.Set(1, i, i%inputDim, 1, 1)
	}
	return k
}
