package compress

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pierrec/lz4/v4"

	"github.com/arloliu/qgraph/format"
)

// lz4CompressorPool pools lz4.Compressor instances for reuse.
// The lz4.Compressor maintains internal state that benefits from reuse.
var lz4CompressorPool = sync.Pool{
	New: func() any {
		return &lz4.Compressor{}
	},
}

// lz4HCCompressorPool pools lz4.CompressorHC instances; the level is set per call.
var lz4HCCompressorPool = sync.Pool{
	New: func() any {
		return &lz4.CompressorHC{}
	},
}

var lz4HCLevels = [...]lz4.CompressionLevel{
	lz4.Level1, lz4.Level2, lz4.Level3,
	lz4.Level4, lz4.Level5, lz4.Level6,
	lz4.Level7, lz4.Level8, lz4.Level9,
}

// lz4Level maps a 1-9 level onto the pierrec level constants.
func lz4Level(level int) lz4.CompressionLevel {
	if level < 1 {
		return lz4.Fast
	}
	if level > len(lz4HCLevels) {
		level = len(lz4HCLevels)
	}

	return lz4HCLevels[level-1]
}

type LZ4Compressor struct{}

var _ Codec = (*LZ4Compressor)(nil)

// NewLZ4Compressor creates a new LZ4 compressor.
//
// Returns:
//   - LZ4Compressor: New LZ4 compressor instance
func NewLZ4Compressor() LZ4Compressor {
	return LZ4Compressor{}
}

// Algorithm returns format.CompressionLZ4.
func (c LZ4Compressor) Algorithm() format.Algorithm {
	return format.CompressionLZ4
}

func (c LZ4Compressor) CompressBound(n int) int {
	return lz4.CompressBlockBound(n)
}

// Compress appends the LZ4 block of src to dst.
//
// Uses a pooled lz4.Compressor for better performance.
//
// Parameters:
//   - dst: Destination slice, appended to
//   - src: Input data to compress
//
// Returns:
//   - []byte: dst extended by the compressed block
//   - error: Compression error if any
func (c LZ4Compressor) Compress(dst, src []byte) ([]byte, error) {
	lc, _ := lz4CompressorPool.Get().(*lz4.Compressor)
	defer lz4CompressorPool.Put(lc)

	return appendLZ4(dst, src, lc.CompressBlock)
}

func (c LZ4Compressor) Decompress(dst, src []byte) (int, error) {
	return decompressLZ4(dst, src)
}

// LZ4HCCompressor is LZ4 in high-compression mode. The output is a regular
// LZ4 block, so decompression is shared with LZ4Compressor.
type LZ4HCCompressor struct {
	level int
}

var _ Codec = (*LZ4HCCompressor)(nil)

// NewLZ4HCCompressor creates an LZ4 high-compression codec at level 1-9.
func NewLZ4HCCompressor(level int) LZ4HCCompressor {
	return LZ4HCCompressor{level: level}
}

// Algorithm returns format.CompressionLZ4HC.
func (c LZ4HCCompressor) Algorithm() format.Algorithm {
	return format.CompressionLZ4HC
}

func (c LZ4HCCompressor) CompressBound(n int) int {
	return lz4.CompressBlockBound(n)
}

// Compress appends the LZ4HC block of src to dst.
func (c LZ4HCCompressor) Compress(dst, src []byte) ([]byte, error) {
	hc, _ := lz4HCCompressorPool.Get().(*lz4.CompressorHC)
	defer lz4HCCompressorPool.Put(hc)

	hc.Level = lz4Level(c.level)

	return appendLZ4(dst, src, hc.CompressBlock)
}

func (c LZ4HCCompressor) Decompress(dst, src []byte) (int, error) {
	return decompressLZ4(dst, src)
}

func appendLZ4(dst, src []byte, compress func(src, dst []byte) (int, error)) ([]byte, error) {
	if len(src) == 0 {
		return dst, nil
	}

	start := len(dst)
	bound := lz4.CompressBlockBound(len(src))
	dst = grow(dst, bound)

	n, err := compress(src, dst[start:])
	if err != nil {
		return dst[:start], fmt.Errorf("lz4 compression failed: %w", err)
	}
	// a zero result only happens for a destination smaller than the bound
	if n == 0 && len(src) > 0 {
		return dst[:start], fmt.Errorf("lz4 compression produced no output for %d bytes", len(src))
	}

	return dst[:start+n], nil
}

func decompressLZ4(dst, src []byte) (int, error) {
	if len(src) == 0 {
		return 0, nil
	}

	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		if errors.Is(err, lz4.ErrInvalidSourceShortBuffer) {
			return 0, fmt.Errorf("lz4: %w", ErrShortBuffer)
		}

		return 0, fmt.Errorf("lz4 decompression failed: %w", err)
	}

	return n, nil
}
