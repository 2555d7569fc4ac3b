package repvgg

import (
	"fmt"

	"github.com/born-ml/repvgg/internal/logger"
)

// ConvertOptions configures ConvertNetwork.
type ConvertOptions struct {
	// Copy converts a deep clone and leaves the input untouched.
	Copy bool

	// Logger receives one debug record per converted block. Nil discards.
	Logger logger.Logger
}

// ConvertNetwork switches every training-mode block of net to its fused
// form and returns the converted network (net itself unless opts.Copy).
// Blocks that are already deployed are skipped.
//
// Without Copy a failure leaves net in Mixed mode: the blocks before the
// failing one are converted, the rest are untouched.
func ConvertNetwork(net *Network, opts ConvertOptions) (*Network, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}
	if opts.Copy {
		net = net.Clone()
	}

	before := net.NumParameters()
	names := net.BlockNames()
	converted := 0
	for i, b := range net.Blocks() {
		if b.Mode() == Deployed {
			continue
		}
		paramsBefore := b.NumParameters()
		if err := b.Convert(); err != nil {
			return nil, fmt.Errorf("convert %s: %w", names[i], err)
		}
		converted++
		log.Debug("block converted",
			"block", names[i],
			"params_before", paramsBefore,
			"params_after", b.NumParameters(),
		)
	}

	log.Info("network converted",
		"blocks", converted,
		"params_before", before,
		"params_after", net.NumParameters(),
	)
	return net, nil
}
