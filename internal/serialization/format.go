package serialization

import (
	"time"
)

// Format constants.
const (
	MagicBytes       = "BORN"
	FormatVersion    = 2    // v2: fixed header with SHA-256 checksum
	HeaderAlignment  = 64   // Align tensor data to 64 bytes
	FixedHeaderSize  = 64   // Fixed header size (0x40 bytes)
	ChecksumSize     = 32   // SHA-256 checksum size
	ChecksumOffset   = 0x20 // Checksum offset in the fixed header
	DTypeFloat32     = "float32"
	float32ByteWidth = 4
)

// Flags for the .born format.
const (
	FlagHasMetadata uint32 = 1 << 2 // bit 2: custom metadata included
)

// WriterVersion identifies the library version that wrote a file.
const WriterVersion = "0.3.0"

// Header represents the JSON header in a .born file.
type Header struct {
	FormatVersion int               `json:"format_version"` // Version of the .born format
	WriterVersion string            `json:"writer_version"` // Version of the writer that created this file
	ModelType     string            `json:"model_type"`     // Type of model (e.g., "RepVGG")
	CreatedAt     time.Time         `json:"created_at"`     // When the file was created
	Tensors       []TensorMeta      `json:"tensors"`        // Tensor metadata, sorted by name
	Metadata      map[string]string `json:"metadata"`       // Custom metadata
}

// TensorMeta describes a tensor in the .born file.
type TensorMeta struct {
	Name   string `json:"name"`   // Tensor name (e.g., "stage1.0.rbr_dense.conv.weight")
	DType  string `json:"dtype"`  // Data type, always "float32"
	Shape  []int  `json:"shape"`  // Tensor shape
	Offset int64  `json:"offset"` // Offset in the data section
	Size   int64  `json:"size"`   // Size in bytes
}

// NumElements returns the number of scalars the shape describes.
func (m TensorMeta) NumElements() int64 {
	n := int64(1)
	for _, d := range m.Shape {
		n *= int64(d)
	}
	return n
}

func alignedPadding(pos int64) int64 {
	return (HeaderAlignment - (pos % HeaderAlignment)) % HeaderAlignment
}
