package cpu

import (
	"github.com/born-ml/repvgg/internal/parallel"
	"github.com/born-ml/repvgg/internal/tensor"
)

// CPUBackend implements tensor operations on CPU.
type CPUBackend struct {
	par parallel.Config
}

// New creates a new CPU backend using all available cores.
func New() *CPUBackend {
	return &CPUBackend{
		par: parallel.DefaultConfig().Coarse(),
	}
}

// NewWithConfig creates a CPU backend with explicit parallelism settings.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{par: cfg}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

var _ tensor.Backend = (*CPUBackend)(nil)
