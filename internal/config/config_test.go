package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/repvgg/internal/repvgg"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Nil(t, cfg.Preset)
	assert.Nil(t, cfg.Network)
	assert.Empty(t, cfg.ServerAddress)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Nil(t, cfg.NumClasses)
}

func TestLoadPreset(t *testing.T) {
	path := writeConfig(t, `
preset: b1g2
num_classes: 10
seed: 3
use_se: true
checkpoint: model.born
log_level: debug
log_format: json
server_address: 0.0.0.0:9000
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Preset)
	assert.Equal(t, "b1g2", *cfg.Preset)
	assert.Equal(t, "model.born", cfg.Checkpoint)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "0.0.0.0:9000", cfg.ServerAddress)

	nc, err := cfg.NetworkConfig()
	require.NoError(t, err)
	assert.Equal(t, "RepVGG-B1g2", nc.Name)
	assert.Equal(t, 10, nc.NumClasses)
	assert.Equal(t, uint64(3), nc.Seed)
	assert.True(t, nc.UseSE)
	assert.Equal(t, 2, nc.OverrideGroups[2])
}

func TestLoadExplicitNetwork(t *testing.T) {
	path := writeConfig(t, `
preset: A0
network:
  name: tiny
  num_blocks: [1, 2, 1, 1]
  width_multiplier: [0.125, 0.125, 0.125, 0.0625]
  override_groups:
    2: 2
  num_classes: 5
  in_channels: 1
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	nc, err := cfg.NetworkConfig()
	require.NoError(t, err)
	assert.Equal(t, "tiny", nc.Name)
	assert.Equal(t, [repvgg.NumStages]int{1, 2, 1, 1}, nc.NumBlocks)
	assert.Equal(t, 1, nc.InChannels)
	assert.Equal(t, 5, nc.NumClasses)
	assert.Equal(t, map[int]int{2: 2}, nc.OverrideGroups)
}

func TestLoadMalformed(t *testing.T) {
	path := writeConfig(t, "preset: [unterminated\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestNetworkErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{
			name: "unknown preset",
			cfg:  Config{Preset: ptr("RepVGG-Z9")},
			want: repvgg.ErrUnknownPreset,
		},
		{
			name: "zero classes",
			cfg:  Config{NumClasses: ptr(0)},
			want: repvgg.ErrInvalidConfiguration,
		},
		{
			name: "empty network block",
			cfg:  Config{Network: &repvgg.NetworkConfig{}},
			want: repvgg.ErrInvalidConfiguration,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.cfg.NetworkConfig()
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func ptr[T any](v T) *T { return &v }
