package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/born-ml/repvgg/internal/backend/cpu"
	"github.com/born-ml/repvgg/internal/logger"
	"github.com/born-ml/repvgg/internal/repvgg"
)

func initCmd() *cli.Command {
	var (
		out        string
		preset     string
		numClasses int
		seed       int64
		useSE      bool
		deploy     bool
	)

	return &cli.Command{
		Name:  "init",
		Usage: "Build a network from a preset or config file and save it as a checkpoint",
		Flags: append(modelFlags(&preset, &numClasses, &seed, &useSE),
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "output .born path (defaults to the config checkpoint)",
				Destination: &out,
			},
			&cli.BoolFlag{
				Name:        "deploy",
				Usage:       "build every block directly in deployed form",
				Destination: &deploy,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if out == "" {
				out = cfg.Checkpoint
			}
			if out == "" {
				return errors.New("no output path: pass --out or set checkpoint in the config file")
			}

			nc, err := networkConfig(cmd, cfg, preset, numClasses, seed, useSE)
			if err != nil {
				return err
			}
			if deploy {
				nc.Deploy = true
			}

			net, err := repvgg.NewNetwork(nc, cpu.New())
			if err != nil {
				return err
			}
			if err := repvgg.Save(out, net); err != nil {
				return fmt.Errorf("save %s: %w", out, err)
			}
			log.Info("network initialized",
				"name", nc.Name,
				"mode", net.Mode(),
				"parameters", net.NumParameters(),
				"path", out,
			)
			_, _ = fmt.Fprintln(stdout(cmd), net)
			return nil
		},
	}
}
