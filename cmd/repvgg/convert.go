package main

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/urfave/cli/v3"

	"github.com/born-ml/repvgg/internal/backend/cpu"
	"github.com/born-ml/repvgg/internal/logger"
	"github.com/born-ml/repvgg/internal/nn"
	"github.com/born-ml/repvgg/internal/onnx"
	"github.com/born-ml/repvgg/internal/repvgg"
	"github.com/born-ml/repvgg/internal/tensor"
)

// ErrNotEquivalent is returned by --verify when the converted network
// drifts from the original beyond the tolerance.
var ErrNotEquivalent = errors.New("converted network is not equivalent")

func convertCmd() *cli.Command {
	var (
		in          string
		out         string
		onnxPath    string
		onnxSize    int
		verify      bool
		verifyBatch int
		verifySize  int
		tolerance   float64
		seed        int64
	)

	return &cli.Command{
		Name:  "convert",
		Usage: "Fuse every block of a training checkpoint into its deployed form",
		Flags: []cli.Flag{
			checkpointFlag("training .born checkpoint", &in),
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "output .born path for the deployed network",
				Required:    true,
				Destination: &out,
			},
			&cli.BoolFlag{
				Name:        "verify",
				Usage:       "compare outputs before and after conversion on a random batch",
				Destination: &verify,
			},
			&cli.IntFlag{
				Name:        "verify-batch",
				Usage:       "batch size of the verification input",
				Value:       2,
				Destination: &verifyBatch,
			},
			&cli.IntFlag{
				Name:        "verify-size",
				Usage:       "spatial size of the verification input",
				Value:       32,
				Destination: &verifySize,
			},
			&cli.Float64Flag{
				Name:        "tolerance",
				Usage:       "maximum relative error accepted by --verify",
				Value:       1e-4,
				Destination: &tolerance,
			},
			&cli.Int64Flag{
				Name:        "seed",
				Usage:       "seed of the verification input",
				Destination: &seed,
			},
			&cli.StringFlag{
				Name:        "onnx",
				Usage:       "also export the deployed network to this .onnx path",
				Destination: &onnxPath,
			},
			&cli.IntFlag{
				Name:        "onnx-size",
				Usage:       "fixed input height and width for the ONNX graph (0 = symbolic)",
				Destination: &onnxSize,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applyCheckpointConfig(cmd, cfg, &in)
			if in == "" {
				return errors.New("no input checkpoint: pass --checkpoint or set it in the config file")
			}

			backend := cpu.New()
			net, err := repvgg.Load(in, backend)
			if err != nil {
				return fmt.Errorf("load %s: %w", in, err)
			}
			log.Info("checkpoint loaded", "path", in, "mode", net.Mode(), "parameters", net.NumParameters())

			var ref *repvgg.Network
			if verify {
				ref = net.Clone()
			}
			deployed, err := repvgg.ConvertNetwork(net, repvgg.ConvertOptions{Logger: log})
			if err != nil {
				return err
			}

			if verify {
				relErr, err := compareOutputs(ref, deployed, verifyBatch, verifySize, uint64(seed))
				if err != nil {
					return err
				}
				if relErr > tolerance {
					return fmt.Errorf("%w: relative error %.3g exceeds %.3g", ErrNotEquivalent, relErr, tolerance)
				}
				log.Info("equivalence verified", "relative_error", relErr, "tolerance", tolerance)
			}

			if err := repvgg.Save(out, deployed); err != nil {
				return fmt.Errorf("save %s: %w", out, err)
			}
			log.Info("deployed checkpoint written", "path", out, "parameters", deployed.NumParameters())

			if onnxPath != "" {
				opts := onnx.ExportOptions{Height: onnxSize, Width: onnxSize}
				if err := onnx.ExportFile(onnxPath, deployed, opts); err != nil {
					return err
				}
				model, err := onnx.ParseFile(onnxPath)
				if err != nil {
					return fmt.Errorf("re-read %s: %w", onnxPath, err)
				}
				if model.Graph == nil {
					return fmt.Errorf("re-read %s: model has no graph", onnxPath)
				}
				log.Info("onnx exported",
					"path", onnxPath,
					"nodes", len(model.Graph.Nodes),
					"initializers", len(model.Graph.Initializers),
				)
			}

			_, _ = fmt.Fprintln(stdout(cmd), deployed)
			return nil
		},
	}
}

// compareOutputs runs both networks on the same seeded batch and returns
// max|a-b| / max|a|.
func compareOutputs(ref, got *repvgg.Network, batch, size int, seed uint64) (float64, error) {
	if batch <= 0 || size <= 0 {
		return 0, fmt.Errorf("verification input must be non-empty, got batch=%d size=%d", batch, size)
	}
	inChannels := ref.Blocks()[0].Config().InChannels
	rng := nn.NewRand(seed)
	x := tensor.Zeros(tensor.Shape{batch, inChannels, size, size})
	data := x.Data()
	for i := range data {
		data[i] = float32(rng.NormFloat64())
	}

	want, err := ref.Forward(x)
	if err != nil {
		return 0, fmt.Errorf("reference forward: %w", err)
	}
	have, err := got.Forward(x)
	if err != nil {
		return 0, fmt.Errorf("converted forward: %w", err)
	}
	diff, err := want.MaxAbsDiff(have)
	if err != nil {
		return 0, err
	}
	var scale float64
	for _, v := range want.Data() {
		scale = max(scale, math.Abs(float64(v)))
	}
	if scale == 0 {
		return diff, nil
	}
	return diff / scale, nil
}
