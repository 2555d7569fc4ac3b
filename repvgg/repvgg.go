// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package repvgg

import (
	"math/rand/v2"

	"github.com/born-ml/repvgg/internal/nn"
	"github.com/born-ml/repvgg/internal/repvgg"
	"github.com/born-ml/repvgg/internal/tensor"
)

// Errors
var (
	ErrUnsupportedBranch    = repvgg.ErrUnsupportedBranch
	ErrInvalidConfiguration = repvgg.ErrInvalidConfiguration
	ErrDegenerateVariance   = repvgg.ErrDegenerateVariance
	ErrNotTraining          = repvgg.ErrNotTraining
	ErrUnknownPreset        = repvgg.ErrUnknownPreset
	ErrStateDict            = repvgg.ErrStateDict
)

// Mode is the representation a block or network is in.
type Mode = repvgg.Mode

// Modes. Mixed is only reported by networks.
const (
	Training = repvgg.Training
	Deployed = repvgg.Deployed
	Mixed    = repvgg.Mixed
)

// IdentityPolicy controls whether a block gets an identity branch.
type IdentityPolicy = repvgg.IdentityPolicy

// Identity policies.
const (
	IdentityAuto     = repvgg.IdentityAuto
	IdentityRequired = repvgg.IdentityRequired
	IdentityDisabled = repvgg.IdentityDisabled
)

// Branches

// Branch is one parallel path of a training-mode block.
type Branch = repvgg.Branch

// BranchKind identifies the variant of a Branch.
type BranchKind = repvgg.BranchKind

// Branch kinds.
const (
	KindAbsent     = repvgg.KindAbsent
	KindConvBN     = repvgg.KindConvBN
	KindIdentityBN = repvgg.KindIdentityBN
)

// ConvBN is a convolution without bias followed by batch norm.
type ConvBN = repvgg.ConvBN

// IdentityBN is a batch norm applied to the block input.
type IdentityBN = repvgg.IdentityBN

// Absent is the missing identity branch.
type Absent = repvgg.Absent

// BranchSet is the dense, pointwise and identity branches of one block.
type BranchSet = repvgg.BranchSet

// NamedParameter pairs a parameter with its state dict name.
type NamedParameter = repvgg.NamedParameter

// NewConvBN builds a conv+BN branch with zero weights and identity BN.
func NewConvBN(cfg nn.Conv2DConfig, eps float64, backend tensor.Backend) (*ConvBN, error) {
	return repvgg.NewConvBN(cfg, eps, backend)
}

// NewIdentityBN builds an identity branch over channels split into groups.
func NewIdentityBN(channels, groups int, eps float64, backend tensor.Backend) (*IdentityBN, error) {
	return repvgg.NewIdentityBN(channels, groups, eps, backend)
}

// Fusion

// FuseBranch folds one branch into an equivalent kernel and bias.
func FuseBranch(b Branch) (kernel, bias *tensor.Tensor, err error) {
	return repvgg.FuseBranch(b)
}

// FuseBranchSet validates a branch set and returns the single 3x3 kernel
// and bias equivalent to the sum of its branches.
func FuseBranchSet(s BranchSet) (kernel, bias *tensor.Tensor, err error) {
	return repvgg.FuseBranchSet(s)
}

// EquivalentKernelBias is FuseBranchSet over explicit branches. identity
// may be nil.
func EquivalentKernelBias(dense, pointwise, identity Branch) (kernel, bias *tensor.Tensor, err error) {
	return repvgg.EquivalentKernelBias(dense, pointwise, identity)
}

// PadTo3x3 embeds a 1x1 kernel at the centre of a zero 3x3 kernel.
func PadTo3x3(k *tensor.Tensor) (*tensor.Tensor, error) {
	return repvgg.PadTo3x3(k)
}

// Blocks

// BlockConfig describes a RepVGG block.
type BlockConfig = repvgg.BlockConfig

// Block is a RepVGG block in training or deployed form.
type Block = repvgg.Block

// NewBlock builds a block. A nil rng leaves the convolution weights at zero.
func NewBlock(cfg BlockConfig, backend tensor.Backend, rng *rand.Rand) (*Block, error) {
	return repvgg.NewBlock(cfg, backend, rng)
}

// Networks

// NumStages is the number of body stages after the stem.
const NumStages = repvgg.NumStages

// NetworkConfig describes a RepVGG classifier.
type NetworkConfig = repvgg.NetworkConfig

// Network is a RepVGG classifier.
type Network = repvgg.Network

// NewNetwork builds a network with seeded truncated-normal weights.
func NewNetwork(cfg NetworkConfig, backend tensor.Backend) (*Network, error) {
	return repvgg.NewNetwork(cfg, backend)
}

// ConvertOptions configures ConvertNetwork.
type ConvertOptions = repvgg.ConvertOptions

// ConvertNetwork switches every training-mode block to its fused form.
func ConvertNetwork(net *Network, opts ConvertOptions) (*Network, error) {
	return repvgg.ConvertNetwork(net, opts)
}

// Presets

// Preset returns the named configuration, e.g. "RepVGG-A0" or "b1g2".
func Preset(name string, numClasses int) (NetworkConfig, error) {
	return repvgg.Preset(name, numClasses)
}

// PresetNames returns the known preset names in sorted order.
func PresetNames() []string {
	return repvgg.PresetNames()
}

// A0 returns the RepVGG-A0 configuration.
func A0(numClasses int) NetworkConfig { return repvgg.A0(numClasses) }

// A1 returns the RepVGG-A1 configuration.
func A1(numClasses int) NetworkConfig { return repvgg.A1(numClasses) }

// A2 returns the RepVGG-A2 configuration.
func A2(numClasses int) NetworkConfig { return repvgg.A2(numClasses) }

// B0 returns the RepVGG-B0 configuration.
func B0(numClasses int) NetworkConfig { return repvgg.B0(numClasses) }

// B1 returns the RepVGG-B1 configuration.
func B1(numClasses int) NetworkConfig { return repvgg.B1(numClasses) }

// B1g2 returns RepVGG-B1 with two groups on every even layer.
func B1g2(numClasses int) NetworkConfig { return repvgg.B1g2(numClasses) }

// B1g4 returns RepVGG-B1 with four groups on every even layer.
func B1g4(numClasses int) NetworkConfig { return repvgg.B1g4(numClasses) }

// Checkpoints

// Save writes the network's weights and configuration to a .born file.
func Save(path string, net *Network) error {
	return repvgg.Save(path, net)
}

// Load rebuilds a network from a .born file written by Save.
func Load(path string, backend tensor.Backend) (*Network, error) {
	return repvgg.Load(path, backend)
}
