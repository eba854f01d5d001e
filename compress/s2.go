package compress

import (
	"fmt"

	"github.com/klauspost/compress/s2"

	"github.com/arloliu/qgraph/format"
)

// S2 levels. S2 has no numeric levels; these pick one of its three encoders.
const (
	S2LevelDefault = 1
	S2LevelBetter  = 2
	S2LevelBest    = 3
)

type S2Compressor struct {
	level int
}

var _ Codec = (*S2Compressor)(nil)

// NewS2Compressor creates a new S2 compressor. level selects the encoder:
// S2LevelDefault, S2LevelBetter or S2LevelBest.
func NewS2Compressor(level int) S2Compressor {
	return S2Compressor{level: level}
}

// Algorithm returns format.CompressionS2.
func (c S2Compressor) Algorithm() format.Algorithm {
	return format.CompressionS2
}

func (c S2Compressor) CompressBound(n int) int {
	bound := s2.MaxEncodedLen(n)
	if bound < 0 {
		return n + n/6 + 32
	}

	return bound
}

// Compress appends the S2 block of src to dst.
func (c S2Compressor) Compress(dst, src []byte) ([]byte, error) {
	if len(src) == 0 {
		return dst, nil
	}

	start := len(dst)
	bound := s2.MaxEncodedLen(len(src))
	if bound < 0 {
		return dst, fmt.Errorf("s2: block of %d bytes is too large", len(src))
	}
	dst = grow(dst, bound)

	// the encoders write into the provided slice when it is at least
	// MaxEncodedLen long, so the result aliases dst[start:]
	var out []byte
	switch c.level {
	case S2LevelBetter:
		out = s2.EncodeBetter(dst[start:], src)
	case S2LevelBest:
		out = s2.EncodeBest(dst[start:], src)
	default:
		out = s2.Encode(dst[start:], src)
	}

	return dst[:start+len(out)], nil
}

// Decompress decodes an S2 block into dst.
func (c S2Compressor) Decompress(dst, src []byte) (int, error) {
	if len(src) == 0 {
		return 0, nil
	}

	n, err := s2.DecodedLen(src)
	if err != nil {
		return 0, fmt.Errorf("s2 decompression failed: %w", err)
	}
	if n > len(dst) {
		return 0, fmt.Errorf("s2: %w: %d > %d", ErrShortBuffer, n, len(dst))
	}

	if _, err := s2.Decode(dst[:n], src); err != nil {
		return 0, fmt.Errorf("s2 decompression failed: %w", err)
	}

	return n, nil
}
