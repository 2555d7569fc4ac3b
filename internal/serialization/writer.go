package serialization

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/goccy/go-json"

	"github.com/born-ml/repvgg/internal/tensor"
)

// BornWriter writes a state dict to a .born file.
type BornWriter struct {
	file   *os.File
	closed bool
}

// NewBornWriter creates (or truncates) the file at path.
func NewBornWriter(path string) (*BornWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	return &BornWriter{
		file:   file,
		closed: false,
	}, nil
}

// WriteStateDict writes stateDict with the given header. Tensors are stored
// in name order; FormatVersion, WriterVersion, CreatedAt (when zero) and
// Tensors are filled in by the writer.
func (w *BornWriter) WriteStateDict(stateDict map[string]*tensor.Tensor, header Header) error {
	if w.closed {
		return ErrClosed
	}
	return Encode(w.file, stateDict, header)
}

// Close closes the file.
func (w *BornWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}

// Encode writes a complete .born stream to out.
func Encode(out io.Writer, stateDict map[string]*tensor.Tensor, header Header) error {
	header.FormatVersion = FormatVersion
	header.WriterVersion = WriterVersion
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now().UTC()
	}
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}

	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		names = append(names, name)
	}
	slices.Sort(names)

	var currentOffset int64
	header.Tensors = make([]TensorMeta, 0, len(names))
	tensorData := make([]byte, 0)
	for _, name := range names {
		t := stateDict[name]
		data := t.Bytes()
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  DTypeFloat32,
			Shape:  []int(t.Shape().Clone()),
			Offset: currentOffset,
			Size:   int64(len(data)),
		})
		tensorData = append(tensorData, data...)
		currentOffset += int64(len(data))
	}

	checksum := ComputeChecksum(tensorData)

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if len(headerJSON) > MaxHeaderSize {
		return fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, len(headerJSON))
	}

	fixedHeader := make([]byte, FixedHeaderSize)
	copy(fixedHeader[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixedHeader[4:8], uint32(FormatVersion))

	flags := uint32(0)
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	binary.LittleEndian.PutUint32(fixedHeader[8:12], flags)
	// Bytes 12-16 are reserved.
	binary.LittleEndian.PutUint64(fixedHeader[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixedHeader[24:32], uint64(len(tensorData)))
	copy(fixedHeader[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	if _, err := out.Write(fixedHeader); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}
	if _, err := out.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header JSON: %w", err)
	}

	padding := alignedPadding(int64(FixedHeaderSize) + int64(len(headerJSON)))
	if padding > 0 {
		if _, err := out.Write(make([]byte, padding)); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}

	if _, err := out.Write(tensorData); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}
	return nil
}

// WriteFile writes stateDict to path.
func WriteFile(path string, stateDict map[string]*tensor.Tensor, header Header) error {
	w, err := NewBornWriter(path)
	if err != nil {
		return err
	}
	if err := w.WriteStateDict(stateDict, header); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
