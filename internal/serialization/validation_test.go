package serialization

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTensorOffsets(t *testing.T) {
	tests := []struct {
		name     string
		tensors  []TensorMeta
		dataSize int64
		want     error
	}{
		{
			name: "valid non-overlapping",
			tensors: []TensorMeta{
				{Name: "b", Offset: 16, Size: 16},
				{Name: "a", Offset: 0, Size: 16},
			},
			dataSize: 32,
		},
		{
			name:     "out of bounds",
			tensors:  []TensorMeta{{Name: "a", Offset: 0, Size: 64}},
			dataSize: 32,
			want:     ErrOutOfBounds,
		},
		{
			name: "overlap",
			tensors: []TensorMeta{
				{Name: "a", Offset: 0, Size: 20},
				{Name: "b", Offset: 16, Size: 16},
			},
			dataSize: 64,
			want:     ErrOffsetOverlap,
		},
		{
			name:     "negative",
			tensors:  []TensorMeta{{Name: "a", Offset: -4, Size: 4}},
			dataSize: 64,
			want:     ErrNegativeOffset,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTensorOffsets(tt.tensors, tt.dataSize)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			var ve *ValidationError
			assert.True(t, errors.As(err, &ve))
		})
	}
}

func TestValidateTensorName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"dotted path", "stage1.0.rbr_dense.conv.weight", nil},
		{"empty", "", ErrInvalidTensorName},
		{"traversal", "../weights", ErrInvalidTensorName},
		{"slash", "a/b", ErrInvalidTensorName},
		{"backslash", `a\b`, ErrInvalidTensorName},
		{"null byte", "a\x00b", ErrInvalidTensorName},
		{"too long", strings.Repeat("x", MaxTensorNameLen+1), ErrTensorNameTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTensorName(tt.in)
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestValidateTensorMeta(t *testing.T) {
	ok := TensorMeta{Name: "w", DType: DTypeFloat32, Shape: []int{2, 3}, Size: 24}
	assert.NoError(t, ValidateTensorMeta(ok))

	bad := []TensorMeta{
		{Name: "w", DType: "float64", Shape: []int{2, 3}, Size: 48},
		{Name: "w", DType: DTypeFloat32, Shape: []int{2, 0}, Size: 0},
		{Name: "w", DType: DTypeFloat32, Shape: []int{2, 3}, Size: 20},
	}
	for _, m := range bad {
		assert.ErrorIs(t, ValidateTensorMeta(m), ErrInvalidTensorMeta, "%+v", m)
	}
}

func TestValidateHeaderLevels(t *testing.T) {
	h := &Header{Tensors: []TensorMeta{
		{Name: "a", DType: DTypeFloat32, Shape: []int{4}, Offset: 0, Size: 16},
		{Name: "a", DType: DTypeFloat32, Shape: []int{4}, Offset: 16, Size: 16},
	}}
	assert.ErrorIs(t, ValidateHeader(h, 32, ValidationNormal), ErrInvalidTensorName)
	assert.NoError(t, ValidateHeader(h, 32, ValidationNone))

	h.Tensors[1].Name = "b"
	assert.NoError(t, ValidateHeader(h, 32, ValidationStrict))
	assert.ErrorIs(t, ValidateHeader(h, 16, ValidationStrict), ErrOutOfBounds)
	assert.NoError(t, ValidateHeader(h, 16, ValidationNormal))
}

func TestReaderRejectsOversizedDataSection(t *testing.T) {
	headerJSON := []byte(`{"format_version":2,"tensors":[]}`)
	for _, dataSize := range []uint64{1 << 63, ^uint64(0), 1 << 40} {
		buf := make([]byte, FixedHeaderSize, FixedHeaderSize+len(headerJSON))
		copy(buf[0:4], MagicBytes)
		binary.LittleEndian.PutUint32(buf[4:8], FormatVersion)
		binary.LittleEndian.PutUint64(buf[16:24], uint64(len(headerJSON)))
		binary.LittleEndian.PutUint64(buf[24:32], dataSize)
		buf = append(buf, headerJSON...)

		var err error
		require.NotPanics(t, func() {
			_, err = NewReader(bytes.NewReader(buf), ReaderOptions{ValidationLevel: ValidationStrict})
		}, "data size %d", dataSize)
		assert.ErrorIs(t, err, ErrOutOfBounds, "data size %d", dataSize)
	}
}
