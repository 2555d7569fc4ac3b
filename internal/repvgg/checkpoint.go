package repvgg

import (
	"fmt"
	"slices"
	"strings"

	"github.com/goccy/go-json"

	"github.com/born-ml/repvgg/internal/serialization"
	"github.com/born-ml/repvgg/internal/tensor"
)

// Checkpoint metadata keys.
const (
	ModelType          = "RepVGG"
	MetaConfig         = "repvgg.config"
	MetaMode           = "repvgg.mode"
	MetaDeployedBlocks = "repvgg.deployed_blocks"
	MetaParameterCount = "repvgg.num_parameters"
	deployedBlocksSep  = ","
)

// CheckpointHeader builds the .born header describing net.
func CheckpointHeader(net *Network) (serialization.Header, error) {
	cfg, err := json.Marshal(net.Config())
	if err != nil {
		return serialization.Header{}, fmt.Errorf("encode config: %w", err)
	}

	var deployed []string
	names := net.BlockNames()
	for i, b := range net.Blocks() {
		if b.Mode() == Deployed {
			deployed = append(deployed, names[i])
		}
	}

	return serialization.Header{
		ModelType: ModelType,
		Metadata: map[string]string{
			MetaConfig:         string(cfg),
			MetaMode:           net.Mode().String(),
			MetaDeployedBlocks: strings.Join(deployed, deployedBlocksSep),
			MetaParameterCount: fmt.Sprint(net.NumParameters()),
		},
	}, nil
}

// Save writes the network's state dict and configuration to a .born file.
func Save(path string, net *Network) error {
	header, err := CheckpointHeader(net)
	if err != nil {
		return err
	}
	return serialization.WriteFile(path, net.StateDict(), header)
}

// Load rebuilds a network from a .born file written by Save.
func Load(path string, backend tensor.Backend) (*Network, error) {
	header, sd, err := serialization.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromCheckpoint(header, sd, backend)
}

// FromCheckpoint rebuilds a network from a decoded checkpoint.
func FromCheckpoint(header serialization.Header, sd map[string]*tensor.Tensor, backend tensor.Backend) (*Network, error) {
	if header.ModelType != ModelType {
		return nil, fmt.Errorf("%w: model type %q, want %q", ErrStateDict, header.ModelType, ModelType)
	}
	raw, ok := header.Metadata[MetaConfig]
	if !ok {
		return nil, fmt.Errorf("%w: checkpoint has no %s metadata", ErrStateDict, MetaConfig)
	}
	var cfg NetworkConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, fmt.Errorf("%w: decode config: %w", ErrStateDict, err)
	}

	net, err := NewNetwork(cfg, backend)
	if err != nil {
		return nil, err
	}

	// Deployed blocks are converted before loading so the parameter names
	// line up; the fused values are then overwritten by the checkpoint.
	var deployed []string
	if s := header.Metadata[MetaDeployedBlocks]; s != "" {
		deployed = strings.Split(s, deployedBlocksSep)
	}
	names := net.BlockNames()
	for i, b := range net.Blocks() {
		if slices.Contains(deployed, names[i]) {
			if err := b.Convert(); err != nil {
				return nil, fmt.Errorf("convert %s: %w", names[i], err)
			}
		}
	}

	if err := net.LoadStateDict(sd); err != nil {
		return nil, err
	}
	return net, nil
}
