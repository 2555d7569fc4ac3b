package tensor

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Float32Size is the byte size of one element.
const Float32Size = 4

// Bytes encodes the tensor data as little-endian float32 values.
func (t *Tensor) Bytes() []byte {
	buf := make([]byte, len(t.data)*Float32Size)
	for i, v := range t.data {
		binary.LittleEndian.PutUint32(buf[i*Float32Size:], math.Float32bits(v))
	}
	return buf
}

// FromBytes decodes little-endian float32 values into a tensor of the given shape.
func FromBytes(buf []byte, shape Shape) (*Tensor, error) {
	n := shape.NumElements()
	if len(buf) != n*Float32Size {
		return nil, fmt.Errorf("shape %v requires %d bytes, but got %d", shape, n*Float32Size, len(buf))
	}
	t, err := New(shape)
	if err != nil {
		return nil, err
	}
	for i := range t.data {
		t.data[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*Float32Size:]))
	}
	return t, nil
}
