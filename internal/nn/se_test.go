package nn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/repvgg/internal/backend/cpu"
	"github.com/born-ml/repvgg/internal/tensor"
)

func TestSqueezeExcite_ZeroWeightsHalveInput(t *testing.T) {
	se, err := NewSqueezeExcite(4, 1, cpu.New())
	require.NoError(t, err)
	assert.Len(t, se.Parameters(), 4)

	// With zero weights and biases the gate is sigmoid(0) = 0.5 everywhere.
	x := tensor.Full(tensor.Shape{2, 4, 3, 3}, 2)
	y, err := se.Forward(x)
	require.NoError(t, err)
	for _, v := range y.Data() {
		assert.InDelta(t, 1.0, v, 1e-6)
	}
}

func TestSqueezeExcite_GateFollowsChannelMean(t *testing.T) {
	se, err := NewSqueezeExcite(2, 1, cpu.New())
	require.NoError(t, err)

	// down: internal = mean0 - mean1; up: channel0 = +h, channel1 = -h.
	copy(se.Down().Weight().Data(), []float32{1, -1})
	copy(se.Up().Weight().Data(), []float32{1, -1})

	x, _ := tensor.FromSlice([]float32{3, 3, 1, 1}, tensor.Shape{1, 2, 2, 1})
	y, err := se.Forward(x)
	require.NoError(t, err)

	g0 := 1 / (1 + math.Exp(-2))
	g1 := 1 / (1 + math.Exp(2))
	assert.InDelta(t, 3*g0, y.Data()[0], 1e-6)
	assert.InDelta(t, 1*g1, y.Data()[2], 1e-6)
}

func TestSqueezeExcite_Invalid(t *testing.T) {
	_, err := NewSqueezeExcite(4, 0, cpu.New())
	assert.Error(t, err)

	se, err := NewSqueezeExcite(4, 1, cpu.New())
	require.NoError(t, err)
	_, err = se.Forward(tensor.Zeros(tensor.Shape{1, 2, 2, 2}))
	var shapeErr *tensor.ShapeError
	assert.ErrorAs(t, err, &shapeErr)
}

func TestTruncatedNormal(t *testing.T) {
	rng := NewRand(7)
	w := TruncatedNormal(rng, tensor.Shape{64, 3, 3, 3}, 0.02)

	for _, v := range w.Data() {
		assert.LessOrEqual(t, math.Abs(float64(v)), 0.04+1e-7)
	}
	assert.NotZero(t, w.Sum())

	again := TruncatedNormal(NewRand(7), tensor.Shape{64, 3, 3, 3}, 0.02)
	assert.Equal(t, w.Data(), again.Data(), "same seed must give same weights")
}

func TestLinearAndActivations(t *testing.T) {
	backend := cpu.New()
	l, err := NewLinear(2, 2, backend)
	require.NoError(t, err)
	copy(l.Weight().Data(), []float32{1, 0, 0, -1})
	copy(l.Bias().Data(), []float32{0, 1})

	x, _ := tensor.FromSlice([]float32{3, 4}, tensor.Shape{1, 2})
	y, err := l.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, -3}, y.Data())

	r, err := NewReLU(backend).Forward(y)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 0}, r.Data())
	assert.Nil(t, NewReLU(backend).Parameters())

	p, err := NewGlobalAvgPool(backend).Forward(tensor.Full(tensor.Shape{1, 2, 2, 2}, 5))
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 5}, p.Data())

	_, err = NewLinear(0, 2, backend)
	assert.Error(t, err)
}
