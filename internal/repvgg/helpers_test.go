package repvgg

import (
	"math"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/born-ml/repvgg/internal/backend/cpu"
	"github.com/born-ml/repvgg/internal/nn"
	"github.com/born-ml/repvgg/internal/tensor"
)

func testBackend() tensor.Backend {
	return cpu.New()
}

func testRand() *rand.Rand {
	return nn.NewRand(42)
}

// randomize gives every parameter a non-trivial value so that batch norm
// folding actually changes something.
func randomize(rng *rand.Rand, params []NamedParameter) {
	for _, p := range params {
		data := p.Param.Tensor().Data()
		for i := range data {
			switch {
			case strings.HasSuffix(p.Name, "gamma"):
				data[i] = float32(0.5 + rng.Float64())
			case strings.HasSuffix(p.Name, "moving_variance"):
				data[i] = float32(0.25 + rng.Float64())
			case strings.HasSuffix(p.Name, "moving_mean"), strings.HasSuffix(p.Name, "beta"),
				strings.HasSuffix(p.Name, "bias"):
				data[i] = float32(0.2 * rng.NormFloat64())
			default:
				data[i] = float32(0.3 * rng.NormFloat64())
			}
		}
	}
}

func randomInput(rng *rand.Rand, shape tensor.Shape) *tensor.Tensor {
	x := tensor.Zeros(shape)
	for i := range x.Data() {
		x.Data()[i] = float32(rng.NormFloat64())
	}
	return x
}

// relErr returns max|a-b| / max|b|.
func relErr(t *testing.T, a, b *tensor.Tensor) float64 {
	t.Helper()
	diff, err := a.MaxAbsDiff(b)
	require.NoError(t, err)
	var scale float64
	for _, v := range b.Data() {
		scale = math.Max(scale, math.Abs(float64(v)))
	}
	if scale == 0 {
		return diff
	}
	return diff / scale
}

func newTestBlock(t *testing.T, cfg BlockConfig) *Block {
	t.Helper()
	rng := testRand()
	b, err := NewBlock(cfg, testBackend(), rng)
	require.NoError(t, err)
	randomize(rng, b.NamedParameters(""))
	return b
}

func setBN(bn *nn.BatchNorm2D, gamma, beta, mean, variance float32) {
	fill := func(t *tensor.Tensor, v float32) {
		for i := range t.Data() {
			t.Data()[i] = v
		}
	}
	fill(bn.Gamma(), gamma)
	fill(bn.Beta(), beta)
	fill(bn.RunningMean(), mean)
	fill(bn.RunningVar(), variance)
}

func names(params []NamedParameter) []string {
	out := make([]string, len(params))
	for i, p := range params {
		out[i] = p.Name
	}
	return out
}
