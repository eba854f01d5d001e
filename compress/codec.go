package compress

import (
	"errors"
	"fmt"

	"github.com/arloliu/qgraph/errs"
	"github.com/arloliu/qgraph/format"
)

// ErrShortBuffer is returned by Decompress when the decompressed data would
// not fit in the destination.
var ErrShortBuffer = errors.New("compress: decompressed data exceeds destination buffer")

// Compressor compresses one block at a time.
//
// The interface is shaped for the block pipeline where every worker owns a
// reusable scratch buffer:
//   - Compress appends to dst, so callers pass dst[:0] of a scratch buffer
//   - CompressBound lets callers size that scratch buffer once
type Compressor interface {
	// Compress appends the compressed form of src to dst and returns the
	// extended slice. src is not modified.
	Compress(dst, src []byte) ([]byte, error)

	// CompressBound returns the worst-case compressed size of n input bytes.
	CompressBound(n int) int
}

// Decompressor decompresses one block at a time.
//
// Thread Safety: implementations are safe for concurrent use; the block
// pipeline calls Decompress from several workers at once.
type Decompressor interface {
	// Decompress decompresses src into dst and returns the number of bytes
	// written. It fails with ErrShortBuffer, wrapped, rather than growing
	// dst when the output would exceed len(dst).
	Decompress(dst, src []byte) (int, error)
}

// Codec combines both compression and decompression capabilities.
type Codec interface {
	Compressor
	Decompressor

	// Algorithm reports the algorithm id recorded in the file metadata.
	Algorithm() format.Algorithm
}

// CompressionStats summarizes the blocks written by one encode call.
type CompressionStats struct {
	// Algorithm identifies the compression algorithm used
	Algorithm format.Algorithm

	// Blocks is the number of frames written
	Blocks uint64

	// OriginalSize is the number of uncompressed bytes
	OriginalSize int64

	// CompressedSize is the number of compressed bytes, frame headers excluded
	CompressedSize int64
}

// CompressionRatio returns the compression ratio (compressed size / original size).
//
// Values less than 1.0 indicate successful compression.
//
// Returns:
//   - float64: Compression ratio (0.0 if original size is zero)
func (s CompressionStats) CompressionRatio() float64 {
	if s.OriginalSize == 0 {
		return 0.0
	}

	return float64(s.CompressedSize) / float64(s.OriginalSize)
}

// SpaceSavings returns the space savings as a percentage (0-100%).
func (s CompressionStats) SpaceSavings() float64 {
	return (1.0 - s.CompressionRatio()) * 100.0
}

// LevelRange describes the accepted compression levels of an algorithm.
type LevelRange struct {
	Min     int
	Max     int
	Default int
}

var levelRanges = map[format.Algorithm]LevelRange{
	format.CompressionNone:  {Min: 0, Max: 0, Default: 0},
	format.CompressionZstd:  {Min: 1, Max: 22, Default: 3},
	format.CompressionLZ4:   {Min: 1, Max: 1, Default: 1},
	format.CompressionLZ4HC: {Min: 1, Max: 9, Default: 9},
	format.CompressionS2:    {Min: 1, Max: 3, Default: 1},
}

// Levels returns the level range of alg.
func Levels(alg format.Algorithm) (LevelRange, error) {
	r, ok := levelRanges[alg]
	if !ok {
		return LevelRange{}, fmt.Errorf("%w: %s", errs.ErrUnsupportedCodec, alg)
	}

	return r, nil
}

// ResolveLevel validates level for alg. Level 0 selects the algorithm's default.
func ResolveLevel(alg format.Algorithm, level int) (int, error) {
	r, err := Levels(alg)
	if err != nil {
		return 0, err
	}
	if level == 0 {
		return r.Default, nil
	}
	if level < r.Min || level > r.Max {
		return 0, fmt.Errorf("%w: %s accepts %d..%d, got %d", errs.ErrInvalidLevel, alg, r.Min, r.Max, level)
	}

	return level, nil
}

// CreateCodec is a factory function that creates a Codec for the algorithm and level.
//
// Parameters:
//   - alg: compression algorithm
//   - level: compression level, 0 for the algorithm default
//
// Returns:
//   - Codec: codec instance for the algorithm
//   - error: ErrUnsupportedCodec or ErrInvalidLevel
func CreateCodec(alg format.Algorithm, level int) (Codec, error) {
	level, err := ResolveLevel(alg, level)
	if err != nil {
		return nil, err
	}

	switch alg {
	case format.CompressionNone:
		return NewNoOpCompressor(), nil
	case format.CompressionZstd:
		return NewZstdCompressor(level), nil
	case format.CompressionLZ4:
		return NewLZ4Compressor(), nil
	case format.CompressionLZ4HC:
		return NewLZ4HCCompressor(level), nil
	case format.CompressionS2:
		return NewS2Compressor(level), nil
	default:
		return nil, fmt.Errorf("%w: %s", errs.ErrUnsupportedCodec, alg)
	}
}

// GetDecompressor returns a decompressor for alg. Decompression does not
// depend on the level a block was written with.
func GetDecompressor(alg format.Algorithm) (Codec, error) {
	return CreateCodec(alg, 0)
}

// MaxCompressedSize returns the largest frame alg can produce for a block of
// blockSize bytes. Readers reject longer frames before reading them.
func MaxCompressedSize(alg format.Algorithm, blockSize int) int {
	codec, err := GetDecompressor(alg)
	if err != nil {
		return blockSize
	}

	return codec.CompressBound(blockSize)
}

// grow returns dst extended by n bytes of length, reallocating when needed.
func grow(dst []byte, n int) []byte {
	if cap(dst)-len(dst) < n {
		next := make([]byte, len(dst), len(dst)+n)
		copy(next, dst)
		dst = next
	}

	return dst[:len(dst)+n]
}
