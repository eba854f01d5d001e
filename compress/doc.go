// Package compress provides the block and stream codecs applied to serialized graphs.
//
// The serializer first produces an uncompressed byte stream (headers followed by
// array payloads, optionally shuffled). That stream is cut into fixed-size blocks
// and every block is compressed independently, or, in streaming mode, the whole
// stream is fed through one streaming compressor.
//
// # Architecture
//
// The package defines three core interfaces:
//
//	type Compressor interface {
//	    Compress(dst, src []byte) ([]byte, error)
//	    CompressBound(n int) int
//	}
//
//	type Decompressor interface {
//	    Decompress(dst, src []byte) (int, error)
//	}
//
//	type Codec interface {
//	    Compressor
//	    Decompressor
//	    Algorithm() format.Algorithm
//	}
//
// Compress appends to a caller-owned scratch buffer and Decompress writes into a
// caller-owned block buffer, so pipeline workers allocate once and reuse.
//
// # Supported Algorithms
//
// **NoOp** (format.CompressionNone): frames are plain copies. Level 0 only.
//
// **Zstandard** (format.CompressionZstd): best ratio, especially after shuffling.
// Levels 1-22, default 3. Pure Go by default; build with -tags gozstd (and cgo)
// to use libzstd through github.com/valyala/gozstd.
//
//	codec, _ := compress.CreateCodec(format.CompressionZstd, 3)
//	frame, _ := codec.Compress(scratch[:0], block)
//	n, _ := codec.Decompress(out, frame)
//
// **LZ4** (format.CompressionLZ4): fastest decompression. Level 1 only.
//
// **LZ4HC** (format.CompressionLZ4HC): LZ4 output produced by the slower
// high-compression matcher. Levels 1-9, default 9.
//
// **S2** (format.CompressionS2): Snappy-compatible, fast with good ratio.
// Levels 1 (default), 2 (better) and 3 (best).
//
// # Streaming
//
// NewStreamWriter and NewStreamReader wrap an io.Writer / io.Reader with the
// streaming variant of an algorithm (zstd frames, LZ4 frames, S2 streams). The
// streaming writers accept a concurrency hint and compress with several
// goroutines internally.
//
// # Thread Safety
//
// All codecs are stateless values backed by sync.Pool encoders and are safe for
// concurrent use. Stream writers and readers are not.
package compress
