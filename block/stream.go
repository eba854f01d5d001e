package block

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/arloliu/qgraph/compress"
	"github.com/arloliu/qgraph/encoding"
	"github.com/arloliu/qgraph/errs"
	"github.com/arloliu/qgraph/internal/hash"
	"github.com/arloliu/qgraph/section"
)

// StreamWriter is the streaming mode Sink: every byte goes through one
// streaming compressor, without frames or a frame count.
type StreamWriter struct {
	out    io.Writer
	cw     *countingWriter
	zw     io.WriteCloser
	sum    *hash.Checksum
	logger *zap.Logger

	stats  compress.CompressionStats
	closed bool
}

var _ Output = (*StreamWriter)(nil)

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)

	return n, err
}

func newStreamWriter(w io.Writer, cfg WriterConfig) (*StreamWriter, error) {
	meta := cfg.metadata().Bytes()
	if _, err := w.Write(meta[:]); err != nil {
		return nil, fmt.Errorf("write metadata: %w", err)
	}

	cw := &countingWriter{w: w}
	zw, err := compress.NewStreamWriter(cw, cfg.Algorithm, cfg.Level, cfg.Threads)
	if err != nil {
		return nil, err
	}

	sw := &StreamWriter{
		out:    w,
		cw:     cw,
		zw:     zw,
		logger: cfg.Logger,
		stats:  compress.CompressionStats{Algorithm: cfg.Algorithm},
	}
	if cfg.Checksum {
		sw.sum = hash.NewChecksum()
	}

	return sw, nil
}

// Append implements Sink. Streams have no block boundaries, so contiguous
// is irrelevant.
func (w *StreamWriter) Append(p []byte, _ bool) error {
	if w.closed {
		return errs.ErrClosed
	}
	if w.sum != nil {
		_, _ = w.sum.Write(p)
	}
	w.stats.OriginalSize += int64(len(p))

	if _, err := w.zw.Write(p); err != nil {
		return fmt.Errorf("write stream: %w", err)
	}

	return nil
}

// AppendShuffled implements Sink.
func (w *StreamWriter) AppendShuffled(p []byte, width int) error {
	return appendShuffled(w, p, width)
}

// Close implements Sink.
func (w *StreamWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.zw.Close(); err != nil {
		return fmt.Errorf("close stream: %w", err)
	}
	w.stats.CompressedSize = w.cw.n

	if w.sum != nil {
		if _, err := w.out.Write(section.AppendChecksum(nil, w.sum.Sum32())); err != nil {
			return fmt.Errorf("write checksum: %w", err)
		}
	}

	w.logger.Debug("stream writer closed",
		zap.Stringer("algorithm", w.stats.Algorithm),
		zap.Int64("bytes", w.stats.OriginalSize),
		zap.Int64("compressed_bytes", w.stats.CompressedSize),
	)

	return nil
}

// Stats implements Output.
func (w *StreamWriter) Stats() compress.CompressionStats {
	return w.stats
}

// StreamReader is the streaming mode Source.
type StreamReader struct {
	meta   section.Metadata
	tr     *trailerReader // nil without a checksum trailer
	zr     io.ReadCloser
	br     *bufio.Reader
	sum    *hash.Checksum
	logger *zap.Logger

	stats    ReadStats
	finished bool
	closed   bool
}

var _ Input = (*StreamReader)(nil)

func newStreamReader(r io.Reader, meta section.Metadata, cfg ReaderConfig) (*StreamReader, error) {
	sr := &StreamReader{meta: meta, logger: cfg.Logger}
	sr.stats.ChecksumPresent = meta.Checksum

	src := r
	if meta.Checksum {
		sr.tr = newTrailerReader(r, section.ChecksumSize)
		src = sr.tr
	}

	zr, err := compress.NewStreamReader(src, meta.Algorithm)
	if err != nil {
		return nil, err
	}
	sr.zr = zr

	var plain io.Reader = zr
	if meta.Checksum && cfg.VerifyChecksum {
		sr.sum = hash.NewChecksum()
		plain = io.TeeReader(zr, sr.sum)
	}
	sr.br = bufio.NewReaderSize(plain, meta.BlockSize)

	return sr, nil
}

// Metadata implements Input.
func (r *StreamReader) Metadata() section.Metadata {
	return r.meta
}

// Remaining implements Input. A stream does not record its length.
func (r *StreamReader) Remaining() int64 {
	return -1
}

// Peek implements Source. It returns at most encoding.MaxHeaderSize bytes.
func (r *StreamReader) Peek() ([]byte, error) {
	b, err := r.br.Peek(encoding.MaxHeaderSize)
	if len(b) > 0 {
		return b, nil
	}

	return nil, r.wrap(err)
}

// Discard implements Source.
func (r *StreamReader) Discard(n int) {
	d, _ := r.br.Discard(n)
	r.stats.Bytes += int64(d)
}

// ReadFull implements Source.
func (r *StreamReader) ReadFull(dst []byte) error {
	n, err := io.ReadFull(r.br, dst)
	r.stats.Bytes += int64(n)

	return r.wrap(err)
}

// ReadShuffled implements Source.
func (r *StreamReader) ReadShuffled(dst []byte, width int) error {
	return readShuffled(r, dst, width)
}

// wrap classifies a read error: running out of data is a FormatError,
// anything the decompressor reports is a DecompressionError.
func (r *StreamReader) wrap(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return errs.NewFormatError("unexpected end of stream after %d bytes", r.stats.Bytes)
	case errors.Is(err, errs.ErrFormat):
		return err
	default:
		return &errs.DecompressionError{Algorithm: r.meta.Algorithm.String(), Err: err}
	}
}

// Finish implements Input.
func (r *StreamReader) Finish() (ReadStats, error) {
	if r.finished {
		return r.stats, nil
	}
	r.finished = true

	if _, err := r.br.Peek(1); err == nil {
		return r.stats, fmt.Errorf("%w: stream continues after %d bytes", errs.ErrTrailingData, r.stats.Bytes)
	} else if !errors.Is(err, io.EOF) {
		return r.stats, r.wrap(err)
	}

	if r.tr == nil {
		return r.stats, nil
	}

	// the decompressor may stop at its end marker; anything before the
	// trailer is garbage
	if n, err := io.Copy(io.Discard, r.tr); err != nil {
		return r.stats, err
	} else if n > 0 {
		return r.stats, fmt.Errorf("%w: %d bytes after the compressed stream", errs.ErrTrailingData, n)
	}

	trailer, err := r.tr.Trailer()
	if err != nil {
		return r.stats, err
	}
	if r.sum == nil {
		return r.stats, nil
	}

	r.stats.ChecksumVerified = true
	stored := section.ParseChecksum(trailer)
	if computed := r.sum.Sum32(); computed != stored {
		r.stats.ChecksumMismatch = true
		return r.stats, &errs.ChecksumMismatchError{Stored: stored, Computed: computed}
	}

	return r.stats, nil
}

// Close implements Input.
func (r *StreamReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	r.logger.Debug("stream reader closed", zap.Int64("bytes", r.stats.Bytes))

	return r.zr.Close()
}

func (r *StreamReader) drain() ([][]byte, error) {
	all, err := io.ReadAll(r.br)
	r.stats.Bytes += int64(len(all))
	if err != nil {
		return nil, r.wrap(err)
	}

	return [][]byte{all}, nil
}

// trailerReader passes r through while always withholding the last size
// bytes, so a fixed-size trailer is never handed to the decompressor.
type trailerReader struct {
	r     io.Reader
	size  int
	store []byte
	start int
	end   int
	eof   bool
}

const trailerReaderBuffer = 32 * 1024

func newTrailerReader(r io.Reader, size int) *trailerReader {
	return &trailerReader{
		r:     r,
		size:  size,
		store: make([]byte, trailerReaderBuffer+size),
	}
}

func (t *trailerReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	for t.end-t.start <= t.size && !t.eof {
		if err := t.fill(); err != nil {
			return 0, err
		}
	}

	avail := t.end - t.start - t.size
	if avail <= 0 {
		if t.end-t.start < t.size {
			return 0, errs.NewFormatError("input ends before its %d-byte trailer", t.size)
		}

		return 0, io.EOF
	}

	n := copy(p, t.store[t.start:t.start+avail])
	t.start += n

	return n, nil
}

func (t *trailerReader) fill() error {
	if t.start > 0 {
		copy(t.store, t.store[t.start:t.end])
		t.end -= t.start
		t.start = 0
	}

	n, err := t.r.Read(t.store[t.end:])
	t.end += n
	if errors.Is(err, io.EOF) {
		t.eof = true
		return nil
	}

	return err
}

// Trailer returns the withheld bytes once the underlying reader is exhausted.
func (t *trailerReader) Trailer() ([]byte, error) {
	for !t.eof {
		if t.end-t.start > t.size {
			return nil, fmt.Errorf("%w: trailer requested before end of input", errs.ErrTrailingData)
		}
		if err := t.fill(); err != nil {
			return nil, err
		}
	}
	if t.end-t.start != t.size {
		if t.end-t.start < t.size {
			return nil, errs.NewFormatError("input ends before its %d-byte trailer", t.size)
		}

		return nil, fmt.Errorf("%w: %d bytes before the trailer", errs.ErrTrailingData, t.end-t.start-t.size)
	}

	return t.store[t.start:t.end], nil
}
