package nn

import (
	"math/rand/v2"

	"github.com/born-ml/repvgg/internal/tensor"
)

// TruncatedNormal fills a new tensor with values drawn from N(0, sigma²),
// redrawing any sample that falls outside [-2σ, 2σ].
//
// The random source is explicit so network construction is reproducible
// from a seed.
func TruncatedNormal(rng *rand.Rand, shape tensor.Shape, sigma float64) *tensor.Tensor {
	t := tensor.Zeros(shape)
	data := t.Data()
	for i := range data {
		v := rng.NormFloat64()
		for v < -2 || v > 2 {
			v = rng.NormFloat64()
		}
		data[i] = float32(v * sigma)
	}
	return t
}

// Zeros creates a tensor filled with zeros.
//
// This is commonly used for bias initialization.
func Zeros(shape tensor.Shape) *tensor.Tensor {
	return tensor.Zeros(shape)
}

// Ones creates a tensor filled with ones.
func Ones(shape tensor.Shape) *tensor.Tensor {
	return tensor.Full(shape, 1)
}

// NewRand returns a deterministic random source for the given seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
