package compress

import "github.com/arloliu/qgraph/format"

// ZstdCompressor provides Zstandard block compression.
//
// This compressor is designed for scenarios where compression ratio is more important
// than compression speed. Paired with the shuffle filter it gives the best ratio on
// numeric arrays.
//
// Two backends exist: the pure Go klauspost/compress implementation (default) and
// the cgo libzstd binding, selected with the gozstd build tag.
type ZstdCompressor struct {
	level int
}

var _ Codec = (*ZstdCompressor)(nil)

// NewZstdCompressor creates a new Zstd compressor at the given zstd level (1-22).
//
// Example:
//
//	codec := NewZstdCompressor(3)
//	frame, err := codec.Compress(scratch[:0], block)
//	if err != nil {
//		return err
//	}
func NewZstdCompressor(level int) ZstdCompressor {
	return ZstdCompressor{level: level}
}

// Algorithm returns format.CompressionZstd.
func (c ZstdCompressor) Algorithm() format.Algorithm {
	return format.CompressionZstd
}

// Level returns the configured zstd level.
func (c ZstdCompressor) Level() int {
	return c.level
}

// CompressBound returns the zstd worst-case output size (ZSTD_COMPRESSBOUND).
func (c ZstdCompressor) CompressBound(n int) int {
	bound := n + n>>8
	if n < 128<<10 {
		bound += (128<<10 - n) >> 11
	}

	return bound
}
