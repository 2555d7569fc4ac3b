// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/repvgg/backend/cpu"
	"github.com/born-ml/repvgg/tensor"
)

// TestBackendInterface verifies that the CPU backend implements tensor.Backend.
func TestBackendInterface(_ *testing.T) {
	var _ tensor.Backend = cpu.New()
}

func TestCreation(t *testing.T) {
	x, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3}, x.Shape())
	assert.InDelta(t, 21.0, x.Sum(), 1e-9)

	_, err = tensor.FromSlice([]float32{1, 2}, tensor.Shape{2, 3})
	require.Error(t, err)

	z := tensor.Zeros(tensor.Shape{2, 2})
	assert.InDelta(t, 0.0, z.Sum(), 1e-9)

	f := tensor.Full(tensor.Shape{3}, 2)
	assert.InDelta(t, 6.0, f.Sum(), 1e-9)

	back, err := tensor.FromBytes(x.Bytes(), x.Shape())
	require.NoError(t, err)
	assert.True(t, back.AllClose(x, 0, 0))
}

func TestConvThroughBackend(t *testing.T) {
	backend := cpu.New()
	x := tensor.Full(tensor.Shape{1, 2, 4, 4}, 1)
	k := tensor.Full(tensor.Shape{3, 2, 3, 3}, 1)

	y, err := backend.Conv2D(x, k, tensor.ConvOptions{Padding: 1})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 3, 4, 4}, y.Shape())
	// Centre pixel sees the full 3x3 window over both channels.
	assert.InDelta(t, 18.0, y.At(0, 0, 1, 1), 1e-6)
	// Corner pixel sees a 2x2 window.
	assert.InDelta(t, 8.0, y.At(0, 0, 0, 0), 1e-6)
}

func TestShapeError(t *testing.T) {
	err := tensor.CheckNCHW("conv", tensor.Shape{1, 3, 4}, 3)
	var shapeErr *tensor.ShapeError
	require.True(t, errors.As(err, &shapeErr))

	require.NoError(t, tensor.CheckNCHW("conv", tensor.Shape{1, 3, 4, 4}, 3))
}
