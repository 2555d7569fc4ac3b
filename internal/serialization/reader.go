package serialization

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"

	"github.com/born-ml/repvgg/internal/tensor"
)

// BornReader reads tensors from a .born stream.
type BornReader struct {
	src        io.ReadSeeker
	header     Header
	flags      uint32
	version    uint32
	dataOffset int64    // Offset where tensor data starts
	dataSize   int64    // Size of the data section
	checksum   [32]byte // SHA-256 checksum of the data section
	opts       ReaderOptions
	closed     bool
}

// ReaderOptions configures reading behavior.
type ReaderOptions struct {
	SkipChecksumValidation bool            // Skip checksum validation (faster but less safe)
	ValidationLevel        ValidationLevel // Validation strictness level
}

// NewBornReader opens a .born file with strict validation.
func NewBornReader(path string) (*BornReader, error) {
	return NewBornReaderWithOptions(path, ReaderOptions{
		ValidationLevel: ValidationStrict,
	})
}

// NewBornReaderWithOptions opens a .born file with custom options.
func NewBornReaderWithOptions(path string, opts ReaderOptions) (*BornReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	r, err := NewReader(file, opts)
	if err != nil {
		_ = file.Close() // Best effort close on error
		return nil, err
	}
	return r, nil
}

// NewReader parses and validates the header of a .born stream. If src is
// an io.Closer, Close closes it.
func NewReader(src io.ReadSeeker, opts ReaderOptions) (*BornReader, error) {
	r := &BornReader{src: src, opts: opts}
	if err := r.parseHeader(); err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}
	if err := ValidateHeader(&r.header, r.dataSize, opts.ValidationLevel); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return r, nil
}

func (r *BornReader) parseHeader() error {
	if _, err := r.src.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to start: %w", err)
	}

	fixedHeader := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r.src, fixedHeader); err != nil {
		if string(fixedHeader[:4]) != MagicBytes {
			return ErrInvalidMagic
		}
		return fmt.Errorf("failed to read fixed header: %w", err)
	}

	if string(fixedHeader[0:4]) != MagicBytes {
		return ErrInvalidMagic
	}

	r.version = binary.LittleEndian.Uint32(fixedHeader[4:8])
	if r.version != FormatVersion {
		return fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, r.version, FormatVersion)
	}

	r.flags = binary.LittleEndian.Uint32(fixedHeader[8:12])
	headerSize := binary.LittleEndian.Uint64(fixedHeader[16:24])
	dataSize := binary.LittleEndian.Uint64(fixedHeader[24:32])
	copy(r.checksum[:], fixedHeader[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if headerSize > MaxHeaderSize {
		return ErrHeaderTooLarge
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r.src, headerBytes); err != nil {
		return fmt.Errorf("failed to read header JSON: %w", err)
	}
	if err := json.Unmarshal(headerBytes, &r.header); err != nil {
		return fmt.Errorf("failed to parse header JSON: %w", err)
	}

	currentPos := int64(FixedHeaderSize) + int64(headerSize)
	r.dataOffset = currentPos + alignedPadding(currentPos)

	end, err := r.src.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}
	available := end - r.dataOffset
	if available < 0 || dataSize > uint64(available) {
		return fmt.Errorf("%w: data section is %d bytes, file holds %d", ErrOutOfBounds, dataSize, available)
	}
	r.dataSize = int64(dataSize)

	if !r.opts.SkipChecksumValidation {
		tensorData := make([]byte, r.dataSize)
		if _, err := r.src.Seek(r.dataOffset, io.SeekStart); err != nil {
			return fmt.Errorf("failed to seek to tensor data: %w", err)
		}
		if _, err := io.ReadFull(r.src, tensorData); err != nil {
			return fmt.Errorf("failed to read tensor data for checksum: %w", err)
		}
		if err := ValidateChecksum(ComputeChecksum(tensorData), r.checksum); err != nil {
			return err
		}
	}

	return nil
}

// Header returns the parsed JSON header.
func (r *BornReader) Header() Header {
	return r.header
}

// Metadata returns the custom metadata.
func (r *BornReader) Metadata() map[string]string {
	return r.header.Metadata
}

// Flags returns the fixed-header flags.
func (r *BornReader) Flags() uint32 {
	return r.flags
}

// Checksum returns the stored SHA-256 of the data section.
func (r *BornReader) Checksum() [32]byte {
	return r.checksum
}

// TensorNames returns the tensor names in file order.
func (r *BornReader) TensorNames() []string {
	names := make([]string, len(r.header.Tensors))
	for i, meta := range r.header.Tensors {
		names[i] = meta.Name
	}
	return names
}

// TensorInfo returns metadata for the named tensor.
func (r *BornReader) TensorInfo(name string) (*TensorMeta, error) {
	for _, meta := range r.header.Tensors {
		if meta.Name == name {
			return &meta, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrTensorNotFound, name)
}

// LoadTensor reads the named tensor.
func (r *BornReader) LoadTensor(name string) (*tensor.Tensor, error) {
	if r.closed {
		return nil, ErrClosed
	}

	meta, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}
	if err := ValidateTensorMeta(*meta); err != nil {
		return nil, err
	}
	if meta.Offset < 0 || meta.Offset+meta.Size > r.dataSize {
		return nil, fmt.Errorf("%w: tensor %s", ErrOutOfBounds, name)
	}

	if _, err := r.src.Seek(r.dataOffset+meta.Offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek to tensor data: %w", err)
	}
	data := make([]byte, meta.Size)
	if _, err := io.ReadFull(r.src, data); err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}

	t, err := tensor.FromBytes(data, tensor.Shape(meta.Shape))
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}
	return t, nil
}

// ReadStateDict loads every tensor.
func (r *BornReader) ReadStateDict() (map[string]*tensor.Tensor, error) {
	if r.closed {
		return nil, ErrClosed
	}

	stateDict := make(map[string]*tensor.Tensor, len(r.header.Tensors))
	for _, meta := range r.header.Tensors {
		t, err := r.LoadTensor(meta.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to load tensor %s: %w", meta.Name, err)
		}
		stateDict[meta.Name] = t
	}
	return stateDict, nil
}

// Close releases the underlying source.
func (r *BornReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if c, ok := r.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// ReadFile reads the header and every tensor of a .born file.
func ReadFile(path string) (Header, map[string]*tensor.Tensor, error) {
	r, err := NewBornReader(path)
	if err != nil {
		return Header{}, nil, err
	}
	defer r.Close()

	sd, err := r.ReadStateDict()
	if err != nil {
		return Header{}, nil, err
	}
	return r.Header(), sd, nil
}
