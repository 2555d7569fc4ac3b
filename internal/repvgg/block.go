package repvgg

import (
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/repvgg/internal/nn"
	"github.com/born-ml/repvgg/internal/tensor"
)

// initStd is the standard deviation of the truncated-normal weight init.
const initStd = 0.02

// Mode is the representation a block (or network) is in.
type Mode int

// Modes. Mixed is only reported by networks.
const (
	Training Mode = iota
	Deployed
	Mixed
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case Training:
		return "training"
	case Deployed:
		return "deployed"
	case Mixed:
		return "mixed"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// IdentityPolicy controls whether a block gets an identity branch.
type IdentityPolicy int

// Identity policies.
const (
	// IdentityAuto adds the branch iff in == out and stride == 1.
	IdentityAuto IdentityPolicy = iota
	// IdentityRequired fails construction when the branch is not possible.
	IdentityRequired
	// IdentityDisabled never adds the branch.
	IdentityDisabled
)

// BlockConfig describes a RepVGG block. The kernel is always 3x3 with
// padding 1; the parallel 1x1 branch uses padding 0.
type BlockConfig struct {
	InChannels  int
	OutChannels int
	Stride      int
	Groups      int

	// UseSE adds a squeeze-and-excitation gate before the nonlinearity.
	UseSE bool
	// SEInternal overrides the SE bottleneck width (default out/16, min 1).
	SEInternal int

	Identity IdentityPolicy

	// Deploy builds the fused single-conv form directly.
	Deploy bool

	// Eps is the batch norm epsilon (default nn.DefaultBatchNormEps).
	Eps float64
}

func (c BlockConfig) withDefaults() BlockConfig {
	if c.Stride == 0 {
		c.Stride = 1
	}
	if c.Groups == 0 {
		c.Groups = 1
	}
	if c.Eps == 0 {
		c.Eps = nn.DefaultBatchNormEps
	}
	if c.UseSE && c.SEInternal == 0 {
		c.SEInternal = max(c.OutChannels/16, 1)
	}
	return c
}

func (c BlockConfig) hasIdentity() (bool, error) {
	compatible := c.InChannels == c.OutChannels && c.Stride == 1
	switch c.Identity {
	case IdentityAuto:
		return compatible, nil
	case IdentityDisabled:
		return false, nil
	case IdentityRequired:
		if !compatible {
			return false, fmt.Errorf("%w: identity branch requires in == out and stride 1 (in=%d out=%d stride=%d)",
				ErrInvalidConfiguration, c.InChannels, c.OutChannels, c.Stride)
		}
		return true, nil
	default:
		return false, fmt.Errorf("%w: unknown identity policy %d", ErrInvalidConfiguration, c.Identity)
	}
}

func (c BlockConfig) denseConfig() nn.Conv2DConfig {
	return nn.Conv2DConfig{
		InChannels:  c.InChannels,
		OutChannels: c.OutChannels,
		KernelSize:  3,
		Stride:      c.Stride,
		Padding:     1,
		Dilation:    1,
		Groups:      c.Groups,
	}
}

// blockState is the representation of a block: *trainingState or
// *deployedState.
type blockState interface {
	mode() Mode
	forward(b tensor.Backend, x *tensor.Tensor) (*tensor.Tensor, error)
	namedParameters(prefix string) []NamedParameter
	clone() blockState
}

type trainingState struct {
	branches BranchSet
}

func (s *trainingState) mode() Mode { return Training }

func (s *trainingState) forward(b tensor.Backend, x *tensor.Tensor) (*tensor.Tensor, error) {
	y, err := s.branches.Dense.Apply(x)
	if err != nil {
		return nil, err
	}
	y1, err := s.branches.Pointwise.Apply(x)
	if err != nil {
		return nil, err
	}
	if y, err = b.Add(y, y1); err != nil {
		return nil, err
	}
	yid, err := s.branches.Identity.Apply(x)
	if err != nil {
		return nil, err
	}
	if yid != nil {
		return b.Add(y, yid)
	}
	return y, nil
}

func (s *trainingState) namedParameters(prefix string) []NamedParameter {
	params := s.branches.Dense.NamedParameters(join(prefix, "rbr_dense"))
	params = append(params, s.branches.Pointwise.NamedParameters(join(prefix, "rbr_1x1"))...)
	return append(params, s.branches.Identity.NamedParameters(join(prefix, "rbr_identity"))...)
}

func (s *trainingState) clone() blockState {
	return &trainingState{branches: BranchSet{
		Dense:     s.branches.Dense.cloneBranch(),
		Pointwise: s.branches.Pointwise.cloneBranch(),
		Identity:  s.branches.Identity.cloneBranch(),
	}}
}

type deployedState struct {
	fused *nn.Conv2D
}

func (s *deployedState) mode() Mode { return Deployed }

func (s *deployedState) forward(_ tensor.Backend, x *tensor.Tensor) (*tensor.Tensor, error) {
	return s.fused.Forward(x)
}

func (s *deployedState) namedParameters(prefix string) []NamedParameter {
	return prefixed(join(prefix, "rbr_reparam"), s.fused.Parameters())
}

func (s *deployedState) clone() blockState {
	return &deployedState{fused: s.fused.Clone()}
}

// Block is a RepVGG block.
//
// In Training mode it evaluates relu(se(dense(x) + pointwise(x) + identity(x))).
// After Convert it evaluates relu(se(fused(x))) with a single 3x3 conv and
// produces the same output up to floating-point rounding.
//
// A Block is not safe for concurrent use while converting.
type Block struct {
	cfg   BlockConfig
	state blockState
	se    *nn.SqueezeExcite // nil when disabled
	relu  *nn.ReLU

	backend tensor.Backend
}

// NewBlock creates a block. When rng is non-nil every conv weight is drawn
// from a truncated normal; otherwise weights start at zero.
func NewBlock(cfg BlockConfig, backend tensor.Backend, rng *rand.Rand) (*Block, error) {
	cfg = cfg.withDefaults()
	if err := cfg.denseConfig().Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	withIdentity, err := cfg.hasIdentity()
	if err != nil {
		return nil, err
	}

	b := &Block{cfg: cfg, relu: nn.NewReLU(backend), backend: backend}

	if cfg.Deploy {
		fc := cfg.denseConfig()
		fc.UseBias = true
		fused, err := nn.NewConv2D(fc, backend)
		if err != nil {
			return nil, err
		}
		initWeight(rng, fused.Weight())
		b.state = &deployedState{fused: fused}
	} else {
		dense, err := NewConvBN(cfg.denseConfig(), cfg.Eps, backend)
		if err != nil {
			return nil, err
		}
		pc := cfg.denseConfig()
		pc.KernelSize, pc.Padding = 1, 0
		pointwise, err := NewConvBN(pc, cfg.Eps, backend)
		if err != nil {
			return nil, err
		}
		initWeight(rng, dense.conv.Weight())
		initWeight(rng, pointwise.conv.Weight())

		var identity Branch = Absent{}
		if withIdentity {
			if identity, err = NewIdentityBN(cfg.OutChannels, cfg.Groups, cfg.Eps, backend); err != nil {
				return nil, err
			}
		}
		b.state = &trainingState{branches: BranchSet{Dense: dense, Pointwise: pointwise, Identity: identity}}
	}

	if cfg.UseSE {
		if b.se, err = nn.NewSqueezeExcite(cfg.OutChannels, cfg.SEInternal, backend); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
		}
		initWeight(rng, b.se.Down().Weight())
		initWeight(rng, b.se.Up().Weight())
	}
	return b, nil
}

func initWeight(rng *rand.Rand, w *tensor.Tensor) {
	if rng == nil {
		return
	}
	copy(w.Data(), nn.TruncatedNormal(rng, w.Shape(), initStd).Data())
}

// Forward evaluates the block on x [N, in, H, W].
func (b *Block) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := tensor.CheckNCHW("repvgg_block", x.Shape(), b.cfg.InChannels); err != nil {
		return nil, err
	}
	y, err := b.state.forward(b.backend, x)
	if err != nil {
		return nil, err
	}
	if b.se != nil {
		if y, err = b.se.Forward(y); err != nil {
			return nil, err
		}
	}
	return b.relu.Forward(y)
}

// Convert switches the block to Deployed mode by fusing its branches into a
// single 3x3 convolution with bias. It is a no-op on a deployed block. On
// error the block is left unchanged in Training mode.
func (b *Block) Convert() error {
	ts, ok := b.state.(*trainingState)
	if !ok {
		return nil
	}
	kernel, bias, err := FuseBranchSet(ts.branches)
	if err != nil {
		return err
	}
	dense := ts.branches.Dense.(*ConvBN)
	fused, err := nn.NewConv2DFromTensors(kernel, bias, dense.conv.Options(), b.backend)
	if err != nil {
		return err
	}
	b.state = &deployedState{fused: fused}
	return nil
}

// Mode reports the block representation.
func (b *Block) Mode() Mode { return b.state.mode() }

// Config returns the block configuration with defaults applied.
func (b *Block) Config() BlockConfig { return b.cfg }

// Branches returns the branch set of a training block.
func (b *Block) Branches() (BranchSet, error) {
	ts, ok := b.state.(*trainingState)
	if !ok {
		return BranchSet{}, ErrNotTraining
	}
	return ts.branches, nil
}

// EquivalentKernelBias returns the kernel and bias of the single conv that
// reproduces the branch sum. On a deployed block it returns copies of the
// fused parameters.
func (b *Block) EquivalentKernelBias() (kernel, bias *tensor.Tensor, err error) {
	switch s := b.state.(type) {
	case *trainingState:
		return FuseBranchSet(s.branches)
	case *deployedState:
		return s.fused.Weight().Clone(), s.fused.Bias().Clone(), nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown block state %T", ErrUnsupportedBranch, b.state)
	}
}

// NamedParameters returns the block parameters under prefix. Training blocks
// expose rbr_dense, rbr_1x1 and rbr_identity; deployed blocks expose
// rbr_reparam. The SE gate, if any, follows under se.down and se.up.
func (b *Block) NamedParameters(prefix string) []NamedParameter {
	params := b.state.namedParameters(prefix)
	if b.se != nil {
		params = append(params, prefixed(join(prefix, "se.down"), b.se.Down().Parameters())...)
		params = append(params, prefixed(join(prefix, "se.up"), b.se.Up().Parameters())...)
	}
	return params
}

// Parameters implements nn.Module.
func (b *Block) Parameters() []*nn.Parameter {
	named := b.NamedParameters("")
	params := make([]*nn.Parameter, len(named))
	for i, np := range named {
		params[i] = np.Param
	}
	return params
}

// NumParameters returns the number of scalar parameters, including batch
// norm running statistics.
func (b *Block) NumParameters() int {
	return nn.CountParameters(b.Parameters())
}

// Convs returns the main-path convolutions (SE excluded).
func (b *Block) Convs() []*nn.Conv2D {
	switch s := b.state.(type) {
	case *trainingState:
		return []*nn.Conv2D{s.branches.Dense.(*ConvBN).conv, s.branches.Pointwise.(*ConvBN).conv}
	case *deployedState:
		return []*nn.Conv2D{s.fused}
	}
	return nil
}

// BatchNorms returns the batch normalizations of a training block; a
// deployed block has none.
func (b *Block) BatchNorms() []*nn.BatchNorm2D {
	ts, ok := b.state.(*trainingState)
	if !ok {
		return nil
	}
	bns := []*nn.BatchNorm2D{ts.branches.Dense.(*ConvBN).bn, ts.branches.Pointwise.(*ConvBN).bn}
	if id, ok := ts.branches.Identity.(*IdentityBN); ok {
		bns = append(bns, id.bn)
	}
	return bns
}

// SE returns the squeeze-and-excitation gate, or nil.
func (b *Block) SE() *nn.SqueezeExcite { return b.se }

// Clone returns a deep copy sharing only the backend.
func (b *Block) Clone() *Block {
	c := &Block{cfg: b.cfg, state: b.state.clone(), relu: b.relu, backend: b.backend}
	if b.se != nil {
		c.se = b.se.Clone()
	}
	return c
}

// String returns a short description of the block.
func (b *Block) String() string {
	return fmt.Sprintf("RepVGGBlock(in=%d, out=%d, stride=%d, groups=%d, se=%t, mode=%s)",
		b.cfg.InChannels, b.cfg.OutChannels, b.cfg.Stride, b.cfg.Groups, b.cfg.UseSE, b.Mode())
}
