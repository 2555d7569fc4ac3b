package serialization

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeChecksum returns the SHA-256 of the tensor data section.
func ComputeChecksum(data []byte) [ChecksumSize]byte {
	return sha256.Sum256(data)
}

// ValidateChecksum reports ErrChecksumMismatch, with both digests
// abbreviated, when the data section does not match the header.
func ValidateChecksum(computed, stored [ChecksumSize]byte) error {
	if computed == stored {
		return nil
	}
	return fmt.Errorf("%w: header %s, data %s", ErrChecksumMismatch,
		hex.EncodeToString(stored[:8]), hex.EncodeToString(computed[:8]))
}
