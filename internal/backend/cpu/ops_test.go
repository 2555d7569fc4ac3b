package cpu

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/repvgg/internal/tensor"
)

func TestScaleShift(t *testing.T) {
	backend := New()
	x, _ := tensor.FromSlice(seq(8, 0), tensor.Shape{1, 2, 2, 2})
	scale, _ := tensor.FromSlice([]float32{2, -1}, tensor.Shape{2})
	shift, _ := tensor.FromSlice([]float32{1, 0.5}, tensor.Shape{2})

	y, err := backend.ScaleShift(x, scale, shift)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 3, 5, 7, -3.5, -4.5, -5.5, -6.5}, y.Data())
	assert.Equal(t, float32(0), x.Data()[0], "input must not be modified")

	_, err = backend.ScaleShift(x, tensor.Zeros(tensor.Shape{3}), shift)
	assert.Error(t, err)
}

func TestAddBiasAndAdd(t *testing.T) {
	backend := New()
	x := tensor.Full(tensor.Shape{2, 2, 1, 1}, 1)
	bias, _ := tensor.FromSlice([]float32{10, 20}, tensor.Shape{2})

	y, err := backend.AddBias(x, bias)
	require.NoError(t, err)
	assert.Equal(t, []float32{11, 21, 11, 21}, y.Data())

	z, err := backend.Add(x, y)
	require.NoError(t, err)
	assert.Equal(t, []float32{12, 22, 12, 22}, z.Data())

	_, err = backend.Add(x, tensor.Zeros(tensor.Shape{2, 2}))
	assert.Error(t, err)
}

func TestChannelGate(t *testing.T) {
	backend := New()
	x := tensor.Full(tensor.Shape{1, 2, 2, 1}, 3)
	gate, _ := tensor.FromSlice([]float32{0.5, 2}, tensor.Shape{1, 2})

	y, err := backend.ChannelGate(x, gate)
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5, 1.5, 6, 6}, y.Data())

	_, err = backend.ChannelGate(x, tensor.Zeros(tensor.Shape{2}))
	assert.Error(t, err)
}

func TestMeanSpatial(t *testing.T) {
	backend := New()
	x, _ := tensor.FromSlice(seq(8, 1), tensor.Shape{1, 2, 2, 2})

	m, err := backend.MeanSpatial(x)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 2}, m.Shape())
	assert.Equal(t, []float32{2.5, 6.5}, m.Data())
}

func TestActivations(t *testing.T) {
	backend := New()
	x, _ := tensor.FromSlice([]float32{-2, 0, 3}, tensor.Shape{3})

	assert.Equal(t, []float32{0, 0, 3}, backend.ReLU(x).Data())

	s := backend.Sigmoid(x).Data()
	assert.InDelta(t, 1/(1+math.Exp(2)), s[0], 1e-6)
	assert.InDelta(t, 0.5, s[1], 1e-7)
}

func TestLinear(t *testing.T) {
	backend := New()
	x, _ := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	w, _ := tensor.FromSlice([]float32{1, 0, 1, 1, 0, -1}, tensor.Shape{3, 2})
	b, _ := tensor.FromSlice([]float32{0, 1, 2}, tensor.Shape{3})

	y, err := backend.Linear(x, w, b)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3}, y.Shape())
	assert.Equal(t, []float32{1, 4, 0, 3, 8, -2}, y.Data())

	y, err = backend.Linear(x, w, nil)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 3, -2, 3, 7, -4}, y.Data())

	_, err = backend.Linear(tensor.Zeros(tensor.Shape{2, 3}), w, nil)
	assert.Error(t, err)
}
