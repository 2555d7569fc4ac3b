package repvgg

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/born-ml/repvgg/internal/nn"
	"github.com/born-ml/repvgg/internal/tensor"
)

// NumStages is the number of body stages after the stem.
const NumStages = 4

var stageBaseWidths = [NumStages]int{64, 128, 256, 512}

// NetworkConfig describes a RepVGG classifier.
//
// Layers are numbered from 1 across the four stages for OverrideGroups;
// layer 0 is the stem, which always uses one group.
type NetworkConfig struct {
	Name            string             `json:"name,omitempty" yaml:"name,omitempty"`
	NumBlocks       [NumStages]int     `json:"num_blocks" yaml:"num_blocks"`
	WidthMultiplier [NumStages]float64 `json:"width_multiplier" yaml:"width_multiplier"`
	OverrideGroups  map[int]int        `json:"override_groups,omitempty" yaml:"override_groups,omitempty"`
	NumClasses      int                `json:"num_classes" yaml:"num_classes"`
	InChannels      int                `json:"in_channels" yaml:"in_channels"`
	UseSE           bool               `json:"use_se,omitempty" yaml:"use_se,omitempty"`
	Deploy          bool               `json:"deploy,omitempty" yaml:"deploy,omitempty"`
	Seed            uint64             `json:"seed" yaml:"seed"`
}

func (c NetworkConfig) withDefaults() NetworkConfig {
	if c.InChannels == 0 {
		c.InChannels = 3
	}
	return c
}

// Validate checks the configuration without building anything.
func (c NetworkConfig) Validate() error {
	c = c.withDefaults()
	var errs []error
	if c.NumClasses <= 0 {
		errs = append(errs, fmt.Errorf("num_classes must be positive, got %d", c.NumClasses))
	}
	if c.InChannels <= 0 {
		errs = append(errs, fmt.Errorf("in_channels must be positive, got %d", c.InChannels))
	}
	for i := range NumStages {
		if c.NumBlocks[i] <= 0 {
			errs = append(errs, fmt.Errorf("stage %d: num_blocks must be positive, got %d", i+1, c.NumBlocks[i]))
		}
		if int(float64(stageBaseWidths[i])*c.WidthMultiplier[i]) <= 0 {
			errs = append(errs, fmt.Errorf("stage %d: width multiplier %g gives no channels", i+1, c.WidthMultiplier[i]))
		}
	}
	for layer, groups := range c.OverrideGroups {
		if layer <= 0 {
			errs = append(errs, fmt.Errorf("override_groups: layer %d cannot be overridden", layer))
		}
		if groups <= 0 {
			errs = append(errs, fmt.Errorf("override_groups: layer %d has groups=%d", layer, groups))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, errors.Join(errs...))
	}
	return nil
}

// StemWidth returns the stem output channels, min(64, 64*w0).
func (c NetworkConfig) StemWidth() int {
	return min(64, int(64*c.WidthMultiplier[0]))
}

// StageWidth returns the channels of stage i (0-based).
func (c NetworkConfig) StageWidth(i int) int {
	return int(float64(stageBaseWidths[i]) * c.WidthMultiplier[i])
}

// Network is a RepVGG classifier: a stride-2 stem block, four stages of
// blocks (each starting with stride 2), global average pooling and a
// linear head.
//
// Forward has the same signature and, up to rounding, the same result in
// every mode. A Network is not safe for concurrent use while converting.
type Network struct {
	cfg    NetworkConfig
	stem   *Block
	stages [NumStages][]*Block
	gap    *nn.GlobalAvgPool
	linear *nn.Linear

	backend tensor.Backend
}

// NewNetwork builds a network. Weights are drawn from a truncated normal
// (sigma 0.02) seeded by cfg.Seed; the head bias starts at zero.
func NewNetwork(cfg NetworkConfig, backend tensor.Backend) (*Network, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rng := nn.NewRand(cfg.Seed)

	n := &Network{cfg: cfg, gap: nn.NewGlobalAvgPool(backend), backend: backend}

	inPlanes := cfg.StemWidth()
	stem, err := NewBlock(BlockConfig{
		InChannels:  cfg.InChannels,
		OutChannels: inPlanes,
		Stride:      2,
		UseSE:       cfg.UseSE,
		Deploy:      cfg.Deploy,
	}, backend, rng)
	if err != nil {
		return nil, fmt.Errorf("stage0: %w", err)
	}
	n.stem = stem

	layer := 1
	for s := range NumStages {
		planes := cfg.StageWidth(s)
		for i := range cfg.NumBlocks[s] {
			stride := 1
			if i == 0 {
				stride = 2
			}
			groups := 1
			if g, ok := cfg.OverrideGroups[layer]; ok {
				groups = g
			}
			blk, err := NewBlock(BlockConfig{
				InChannels:  inPlanes,
				OutChannels: planes,
				Stride:      stride,
				Groups:      groups,
				UseSE:       cfg.UseSE,
				Deploy:      cfg.Deploy,
			}, backend, rng)
			if err != nil {
				return nil, fmt.Errorf("stage%d.%d: %w", s+1, i, err)
			}
			n.stages[s] = append(n.stages[s], blk)
			inPlanes = planes
			layer++
		}
	}

	if n.linear, err = nn.NewLinear(inPlanes, cfg.NumClasses, backend); err != nil {
		return nil, err
	}
	initWeight(rng, n.linear.Weight())
	return n, nil
}

// Config returns the network configuration.
func (n *Network) Config() NetworkConfig { return n.cfg }

// Forward maps images [N, in, H, W] to logits [N, NumClasses].
func (n *Network) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	var err error
	for _, b := range n.Blocks() {
		if x, err = b.Forward(x); err != nil {
			return nil, err
		}
	}
	if x, err = n.gap.Forward(x); err != nil {
		return nil, err
	}
	return n.linear.Forward(x)
}

// Blocks returns every block in evaluation order, stem first.
func (n *Network) Blocks() []*Block {
	blocks := []*Block{n.stem}
	for _, stage := range n.stages {
		blocks = append(blocks, stage...)
	}
	return blocks
}

// BlockNames returns the parameter prefix of every block, aligned with Blocks.
func (n *Network) BlockNames() []string {
	names := []string{"stage0"}
	for s, stage := range n.stages {
		for i := range stage {
			names = append(names, fmt.Sprintf("stage%d.%d", s+1, i))
		}
	}
	return names
}

// Mode is Training or Deployed when every block agrees and Mixed otherwise.
func (n *Network) Mode() Mode {
	blocks := n.Blocks()
	mode := blocks[0].Mode()
	for _, b := range blocks[1:] {
		if b.Mode() != mode {
			return Mixed
		}
	}
	return mode
}

// Head returns the classifier.
func (n *Network) Head() *nn.Linear { return n.linear }

// Clone returns a deep copy sharing only the backend.
func (n *Network) Clone() *Network {
	c := &Network{cfg: n.cfg, stem: n.stem.Clone(), gap: n.gap, linear: n.linear.Clone(), backend: n.backend}
	c.cfg.OverrideGroups = maps.Clone(n.cfg.OverrideGroups)
	for s, stage := range n.stages {
		for _, b := range stage {
			c.stages[s] = append(c.stages[s], b.Clone())
		}
	}
	return c
}

// NamedParameters returns every parameter with its dotted name.
func (n *Network) NamedParameters() []NamedParameter {
	var params []NamedParameter
	names := n.BlockNames()
	for i, b := range n.Blocks() {
		params = append(params, b.NamedParameters(names[i])...)
	}
	return append(params, prefixed("linear", n.linear.Parameters())...)
}

// Parameters implements nn.Module.
func (n *Network) Parameters() []*nn.Parameter {
	named := n.NamedParameters()
	params := make([]*nn.Parameter, len(named))
	for i, np := range named {
		params[i] = np.Param
	}
	return params
}

// NumParameters returns the number of scalar parameters.
func (n *Network) NumParameters() int {
	return nn.CountParameters(n.Parameters())
}

// CustomL2 sums the structural penalty over training-mode blocks. It
// returns ErrNotTraining when no block is in training mode.
func (n *Network) CustomL2() (float64, error) {
	var total float64
	found := false
	for _, b := range n.Blocks() {
		if b.Mode() != Training {
			continue
		}
		l2, err := b.CustomL2()
		if err != nil {
			return 0, err
		}
		total += l2
		found = true
	}
	if !found {
		return 0, ErrNotTraining
	}
	return total, nil
}

// StateDict returns a copy of every parameter keyed by name.
func (n *Network) StateDict() map[string]*tensor.Tensor {
	named := n.NamedParameters()
	sd := make(map[string]*tensor.Tensor, len(named))
	for _, np := range named {
		sd[np.Name] = np.Param.Tensor().Clone()
	}
	return sd
}

// LoadStateDict copies values into the network's parameters. The names and
// shapes must match exactly; on mismatch nothing is modified.
func (n *Network) LoadStateDict(sd map[string]*tensor.Tensor) error {
	named := n.NamedParameters()
	var missing, mismatched []string
	seen := make(map[string]bool, len(named))
	for _, np := range named {
		seen[np.Name] = true
		t, ok := sd[np.Name]
		if !ok {
			missing = append(missing, np.Name)
			continue
		}
		if !t.Shape().Equal(np.Param.Tensor().Shape()) {
			mismatched = append(mismatched, fmt.Sprintf("%s (got %v, want %v)", np.Name, t.Shape(), np.Param.Tensor().Shape()))
		}
	}
	var unexpected []string
	for name := range sd {
		if !seen[name] {
			unexpected = append(unexpected, name)
		}
	}

	if len(missing)+len(mismatched)+len(unexpected) > 0 {
		slices.Sort(unexpected)
		var parts []string
		if len(missing) > 0 {
			parts = append(parts, "missing: "+strings.Join(missing, ", "))
		}
		if len(unexpected) > 0 {
			parts = append(parts, "unexpected: "+strings.Join(unexpected, ", "))
		}
		if len(mismatched) > 0 {
			parts = append(parts, "shape mismatch: "+strings.Join(mismatched, ", "))
		}
		return fmt.Errorf("%w: %s", ErrStateDict, strings.Join(parts, "; "))
	}

	for _, np := range named {
		copy(np.Param.Tensor().Data(), sd[np.Name].Data())
	}
	return nil
}

// String returns a short description of the network.
func (n *Network) String() string {
	return fmt.Sprintf("RepVGG(blocks=%v, width=%v, classes=%d, mode=%s)",
		n.cfg.NumBlocks, n.cfg.WidthMultiplier, n.cfg.NumClasses, n.Mode())
}
