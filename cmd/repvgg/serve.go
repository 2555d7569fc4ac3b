package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/born-ml/repvgg/internal/api"
	"github.com/born-ml/repvgg/internal/backend/cpu"
	"github.com/born-ml/repvgg/internal/config"
	"github.com/born-ml/repvgg/internal/logger"
	"github.com/born-ml/repvgg/internal/repvgg"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
		path        string
		deploy      bool
		preset      string
		numClasses  int
		seed        int64
		useSE       bool
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the classification API",
		Flags: append(modelFlags(&preset, &numClasses, &seed, &useSE),
			checkpointFlag("checkpoint to serve (a fresh network is built when empty)", &path),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       config.DefaultServerAddress,
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
			&cli.BoolFlag{
				Name:        "deploy",
				Usage:       "convert the network before serving",
				Destination: &deploy,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applyServeConfig(cmd, cfg, &addr)
			applyCheckpointConfig(cmd, cfg, &path)

			backend := cpu.New()
			var net *repvgg.Network
			if path != "" {
				net, err = repvgg.Load(path, backend)
			} else {
				var nc repvgg.NetworkConfig
				if nc, err = networkConfig(cmd, cfg, preset, numClasses, seed, useSE); err == nil {
					net, err = repvgg.NewNetwork(nc, backend)
				}
			}
			if err != nil {
				return err
			}
			if deploy {
				if net, err = repvgg.ConvertNetwork(net, repvgg.ConvertOptions{Logger: log}); err != nil {
					return err
				}
			}

			server := api.NewServer(net, backend, log)
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "address", addr, "mode", net.Mode(), "parameters", net.NumParameters())
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
