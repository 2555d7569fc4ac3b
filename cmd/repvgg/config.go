package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/born-ml/repvgg/internal/config"
	"github.com/born-ml/repvgg/internal/logger"
	"github.com/born-ml/repvgg/internal/repvgg"
)

func loadConfig(cmd *cli.Command) (config.Config, error) {
	return config.Load(cmd.String("config"))
}

// setupLogger builds the logger from flags and the config file and stores
// it in the context for the subcommands.
func setupLogger(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return ctx, err
	}

	level := cmd.String("log-level")
	if cfg.LogLevel != "" && !cmd.IsSet("log-level") {
		level = cfg.LogLevel
	}
	if cmd.Bool("debug") {
		level = "debug"
	}
	format := cmd.String("log-format")
	if cfg.LogFormat != "" && !cmd.IsSet("log-format") {
		format = cfg.LogFormat
	}

	lvl := logger.ParseLevel(level)
	var log logger.Logger
	switch strings.ToLower(format) {
	case "json":
		log = logger.JSON(os.Stderr, lvl)
	case "text", "":
		log = logger.Text(os.Stderr, lvl)
	default:
		return ctx, fmt.Errorf("unknown log format %q", format)
	}
	return logger.WithContext(ctx, log), nil
}

// networkConfig merges the model flags over the config file. A preset given
// on the command line replaces a network block from the file.
func networkConfig(c *cli.Command, cfg config.Config, preset string, numClasses int, seed int64, useSE bool) (repvgg.NetworkConfig, error) {
	if c.IsSet("preset") {
		cfg.Preset = &preset
		cfg.Network = nil
	}
	if c.IsSet("num-classes") {
		cfg.NumClasses = &numClasses
	}
	if c.IsSet("seed") {
		if seed < 0 {
			return repvgg.NetworkConfig{}, fmt.Errorf("seed must be non-negative, got %d", seed)
		}
		s := uint64(seed)
		cfg.Seed = &s
	}
	if c.IsSet("se") {
		cfg.UseSE = &useSE
	}
	return cfg.NetworkConfig()
}

// applyCheckpointConfig falls back to the config file checkpoint.
func applyCheckpointConfig(c *cli.Command, cfg config.Config, path *string) {
	if cfg.Checkpoint != "" && !c.IsSet("checkpoint") {
		*path = cfg.Checkpoint
	}
}

// applyServeConfig applies config file defaults to serve command variables.
func applyServeConfig(c *cli.Command, cfg config.Config, addr *string) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
}

func stdout(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}
