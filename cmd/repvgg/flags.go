package main

import (
	"github.com/urfave/cli/v3"

	"github.com/born-ml/repvgg/internal/config"
)

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "log level (debug, info, warn, error)",
			Value: config.DefaultLogLevel,
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "log format (text, json)",
			Value: config.DefaultLogFormat,
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "enable debug logging (shorthand for --log-level=debug)",
		},
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "config",
		Usage: "path to config.yaml",
		Value: config.DefaultPath(),
	}
}

func checkpointFlag(usage string, dest *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "checkpoint",
		Aliases:     []string{"i"},
		Usage:       usage,
		Destination: dest,
	}
}

// modelFlags are the network selection flags shared by init and serve.
func modelFlags(preset *string, numClasses *int, seed *int64, useSE *bool) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "preset",
			Aliases:     []string{"p"},
			Usage:       "network preset (RepVGG-A0 .. RepVGG-B1g4)",
			Value:       config.DefaultPreset,
			Destination: preset,
		},
		&cli.IntFlag{
			Name:        "num-classes",
			Usage:       "number of output classes",
			Value:       config.DefaultNumClasses,
			Destination: numClasses,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "weight initialization seed",
			Destination: seed,
		},
		&cli.BoolFlag{
			Name:        "se",
			Usage:       "add squeeze-and-excitation gates to every block",
			Destination: useSE,
		},
	}
}
