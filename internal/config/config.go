// Package config reads the repvgg YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/repvgg/internal/repvgg"
)

// Defaults used when neither the file nor a flag sets a value.
const (
	DefaultPreset        = "RepVGG-A0"
	DefaultNumClasses    = 1000
	DefaultServerAddress = "127.0.0.1:8080"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
)

// Config represents the repvgg configuration file (~/.config/repvgg/config.yaml).
// Scalar fields are pointers so "not set" can be told apart from zero values.
type Config struct {
	// Model selection. Network, when present, takes precedence over Preset.
	Preset     *string               `yaml:"preset"`
	Network    *repvgg.NetworkConfig `yaml:"network"`
	NumClasses *int                  `yaml:"num_classes"`
	Seed       *uint64               `yaml:"seed"`
	UseSE      *bool                 `yaml:"use_se"`

	// Checkpoint is the default .born file for convert, inspect and serve.
	Checkpoint string `yaml:"checkpoint"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`
}

// DefaultPath returns the per-user config location, or "" when the user
// config directory is unknown.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "repvgg", "config.yaml")
}

// Load reads the config file at path. A missing file yields a zero Config
// and no error; a malformed one is an error.
func Load(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// NetworkConfig resolves the network configuration: the explicit network block
// if present, otherwise the preset. NumClasses, Seed and UseSE override
// the resolved values when set.
func (c Config) NetworkConfig() (repvgg.NetworkConfig, error) {
	var nc repvgg.NetworkConfig
	if c.Network != nil {
		nc = *c.Network
	} else {
		name := DefaultPreset
		if c.Preset != nil {
			name = *c.Preset
		}
		numClasses := DefaultNumClasses
		if c.NumClasses != nil {
			numClasses = *c.NumClasses
		}
		var err error
		if nc, err = repvgg.Preset(name, numClasses); err != nil {
			return repvgg.NetworkConfig{}, err
		}
	}

	if c.NumClasses != nil {
		nc.NumClasses = *c.NumClasses
	}
	if c.Seed != nil {
		nc.Seed = *c.Seed
	}
	if c.UseSE != nil {
		nc.UseSE = *c.UseSE
	}
	if err := nc.Validate(); err != nil {
		return repvgg.NetworkConfig{}, err
	}
	return nc, nil
}
