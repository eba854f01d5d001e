package compress

import (
	"fmt"

	"github.com/arloliu/qgraph/format"
)

// NoOpCompressor stores blocks uncompressed.
//
// This compressor is useful for:
//   - Data that is already compressed, such as opaque host blobs
//   - Debugging the wire layout with a hex dump
//   - Baseline performance measurements
type NoOpCompressor struct{}

var _ Codec = (*NoOpCompressor)(nil)

// NewNoOpCompressor creates a new no-operation compressor that bypasses data.
//
// Returns:
//   - NoOpCompressor: New no-op compressor instance
func NewNoOpCompressor() NoOpCompressor {
	return NoOpCompressor{}
}

// Algorithm returns format.CompressionNone.
func (c NoOpCompressor) Algorithm() format.Algorithm {
	return format.CompressionNone
}

func (c NoOpCompressor) CompressBound(n int) int {
	return n
}

// Compress appends src to dst unchanged.
//
// Unlike the other codecs the frame is a plain copy, so a block's frame length
// equals its uncompressed length.
func (c NoOpCompressor) Compress(dst, src []byte) ([]byte, error) {
	return append(dst, src...), nil
}

// Decompress copies src into dst.
func (c NoOpCompressor) Decompress(dst, src []byte) (int, error) {
	if len(src) > len(dst) {
		return 0, fmt.Errorf("none: %w: %d > %d", ErrShortBuffer, len(src), len(dst))
	}

	return copy(dst, src), nil
}
