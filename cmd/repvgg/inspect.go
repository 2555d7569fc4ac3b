package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/born-ml/repvgg/internal/backend/cpu"
	"github.com/born-ml/repvgg/internal/repvgg"
	"github.com/born-ml/repvgg/internal/serialization"
)

func inspectCmd() *cli.Command {
	var (
		path        string
		showTensors bool
		showBlocks  bool
		asJSON      bool
		limit       int
		filter      string
	)

	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect the contents of a .born checkpoint",
		Flags: []cli.Flag{
			checkpointFlag("path to .born file", &path),
			&cli.BoolFlag{Name: "tensors", Usage: "list tensors", Destination: &showTensors},
			&cli.BoolFlag{Name: "blocks", Usage: "rebuild the network and list its blocks", Destination: &showBlocks},
			&cli.BoolFlag{Name: "json", Usage: "print the raw JSON header", Destination: &asJSON},
			&cli.IntFlag{Name: "limit", Usage: "limit tensor listing (0 = no limit)", Value: 50, Destination: &limit},
			&cli.StringFlag{Name: "filter", Usage: "substring filter for tensor listing", Destination: &filter},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			applyCheckpointConfig(cmd, cfg, &path)
			if path == "" {
				return errors.New("no checkpoint: pass --checkpoint or set it in the config file")
			}

			r, err := serialization.NewBornReader(path)
			if err != nil {
				return err
			}
			defer func() { _ = r.Close() }()

			w := stdout(cmd)
			h := r.Header()
			if asJSON {
				b, err := json.MarshalIndent(h, "", "  ")
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(w, string(b))
				return nil
			}

			printSummary(w, path, r)
			if showTensors {
				printTensors(w, h.Tensors, filter, limit)
			}
			if showBlocks {
				sd, err := r.ReadStateDict()
				if err != nil {
					return err
				}
				net, err := repvgg.FromCheckpoint(h, sd, cpu.New())
				if err != nil {
					return err
				}
				printBlocks(w, net)
			}
			return nil
		},
	}
}

func printSummary(w io.Writer, path string, r *serialization.BornReader) {
	h := r.Header()
	sum := r.Checksum()
	var params int64
	for _, t := range h.Tensors {
		params += t.NumElements()
	}

	_, _ = fmt.Fprintf(w, "file:           %s\n", path)
	_, _ = fmt.Fprintf(w, "format:         v%d (writer %s)\n", h.FormatVersion, h.WriterVersion)
	_, _ = fmt.Fprintf(w, "model type:     %s\n", h.ModelType)
	if !h.CreatedAt.IsZero() {
		_, _ = fmt.Fprintf(w, "created:        %s\n", h.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	}
	_, _ = fmt.Fprintf(w, "checksum:       %s\n", hex.EncodeToString(sum[:]))
	_, _ = fmt.Fprintf(w, "tensors:        %d\n", len(h.Tensors))
	_, _ = fmt.Fprintf(w, "parameters:     %d\n", params)
	if len(h.Metadata) > 0 {
		_, _ = fmt.Fprintln(w, "metadata:")
		for _, k := range slices.Sorted(maps.Keys(h.Metadata)) {
			_, _ = fmt.Fprintf(w, "  %s = %s\n", k, h.Metadata[k])
		}
	}
}

func printTensors(w io.Writer, tensors []serialization.TensorMeta, filter string, limit int) {
	_, _ = fmt.Fprintln(w, "tensors:")
	shown := 0
	for _, t := range tensors {
		if filter != "" && !strings.Contains(t.Name, filter) {
			continue
		}
		if limit > 0 && shown == limit {
			_, _ = fmt.Fprintf(w, "  ... (limit %d reached)\n", limit)
			return
		}
		_, _ = fmt.Fprintf(w, "  %-48s %-8s %-20v %d bytes\n", t.Name, t.DType, t.Shape, t.Size)
		shown++
	}
}

func printBlocks(w io.Writer, net *repvgg.Network) {
	_, _ = fmt.Fprintf(w, "network:        %s\n", net)
	names := net.BlockNames()
	for i, b := range net.Blocks() {
		c := b.Config()
		_, _ = fmt.Fprintf(w, "  %-10s %-9s in=%-4d out=%-4d stride=%d groups=%d params=%d\n",
			names[i], b.Mode(), c.InChannels, c.OutChannels, c.Stride, c.Groups, b.NumParameters())
	}
}
