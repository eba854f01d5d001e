package compress

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/arloliu/qgraph/errs"
	"github.com/arloliu/qgraph/format"
)

// NewStreamWriter wraps w in a streaming compressor for alg.
//
// Closing the returned writer flushes the compressed stream but never closes w.
// concurrency is handed to codecs that can compress a single stream with
// several goroutines (zstd, lz4, s2); values below 1 mean 1.
//
// Parameters:
//   - w: destination of the compressed stream
//   - alg: compression algorithm
//   - level: compression level, 0 for the algorithm default
//   - concurrency: encoder goroutines
//
// Returns:
//   - io.WriteCloser: writer accepting uncompressed bytes
//   - error: ErrUnsupportedCodec, ErrInvalidLevel or a codec setup error
func NewStreamWriter(w io.Writer, alg format.Algorithm, level, concurrency int) (io.WriteCloser, error) {
	level, err := ResolveLevel(alg, level)
	if err != nil {
		return nil, err
	}
	if concurrency < 1 {
		concurrency = 1
	}

	switch alg {
	case format.CompressionNone:
		return nopWriteCloser{w}, nil
	case format.CompressionZstd:
		enc, err := zstd.NewWriter(w,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
			zstd.WithEncoderConcurrency(concurrency),
		)
		if err != nil {
			return nil, fmt.Errorf("zstd stream writer: %w", err)
		}

		return enc, nil
	case format.CompressionLZ4, format.CompressionLZ4HC:
		lvl := lz4.Fast
		if alg == format.CompressionLZ4HC {
			lvl = lz4Level(level)
		}
		zw := lz4.NewWriter(w)
		if err := zw.Apply(lz4.CompressionLevelOption(lvl), lz4.ConcurrencyOption(concurrency)); err != nil {
			return nil, fmt.Errorf("lz4 stream writer: %w", err)
		}

		return zw, nil
	case format.CompressionS2:
		opts := []s2.WriterOption{s2.WriterConcurrency(concurrency)}
		switch level {
		case S2LevelBetter:
			opts = append(opts, s2.WriterBetterCompression())
		case S2LevelBest:
			opts = append(opts, s2.WriterBestCompression())
		}

		return s2.NewWriter(w, opts...), nil
	default:
		return nil, fmt.Errorf("%w: %s", errs.ErrUnsupportedCodec, alg)
	}
}

// NewStreamReader wraps r in a streaming decompressor for alg.
//
// Closing the returned reader releases decoder resources but never closes r.
func NewStreamReader(r io.Reader, alg format.Algorithm) (io.ReadCloser, error) {
	switch alg {
	case format.CompressionNone:
		return io.NopCloser(r), nil
	case format.CompressionZstd:
		dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("zstd stream reader: %w", err)
		}

		return dec.IOReadCloser(), nil
	case format.CompressionLZ4, format.CompressionLZ4HC:
		return io.NopCloser(lz4.NewReader(r)), nil
	case format.CompressionS2:
		return io.NopCloser(s2.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("%w: %s", errs.ErrUnsupportedCodec, alg)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
