package block

import (
	"fmt"
	"io"
	"math"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/arloliu/qgraph/compress"
	"github.com/arloliu/qgraph/errs"
	"github.com/arloliu/qgraph/internal/hash"
	"github.com/arloliu/qgraph/internal/pipeline"
	"github.com/arloliu/qgraph/internal/pool"
	"github.com/arloliu/qgraph/section"
	"github.com/arloliu/qgraph/shuffle"
)

// Reader is the block mode Source.
type Reader struct {
	r      io.Reader
	meta   section.Metadata
	codec  compress.Codec
	logger *zap.Logger
	bound  int

	frames uint64 // frames in the input
	loaded uint64 // frames consumed so far

	block []byte // current decompressed block
	pos   int

	// single-threaded buffers
	buf   []byte
	frame []byte

	pipe *pipeline.Decompressor
	sum  *hash.Checksum

	stats    ReadStats
	finished bool
	closed   bool
}

var _ Input = (*Reader)(nil)

func newReader(r io.Reader, meta section.Metadata, cfg ReaderConfig) (*Reader, error) {
	codec, err := compress.GetDecompressor(meta.Algorithm)
	if err != nil {
		return nil, err
	}

	frames, err := section.ReadFrameCount(r)
	if err != nil {
		return nil, err
	}

	br := &Reader{
		r:      r,
		meta:   meta,
		codec:  codec,
		logger: cfg.Logger,
		bound:  codec.CompressBound(meta.BlockSize),
		frames: frames,
	}
	br.stats.ChecksumPresent = meta.Checksum
	if meta.Checksum && cfg.VerifyChecksum {
		br.sum = hash.NewChecksum()
	}

	if cfg.Threads > 1 && frames > 1 {
		br.pipe, err = pipeline.NewDecompressor(r, codec, meta.Algorithm, meta.BlockSize, frames, cfg.Threads, cfg.Logger)
		if err != nil {
			return nil, err
		}
	} else {
		br.buf = make([]byte, meta.BlockSize)
	}

	return br, nil
}

// Metadata implements Input.
func (r *Reader) Metadata() section.Metadata {
	return r.meta
}

// Remaining implements Input.
func (r *Reader) Remaining() int64 {
	rest := int64(len(r.block) - r.pos)
	left := r.frames - r.loaded
	if left > uint64(math.MaxInt64-rest)/uint64(r.meta.BlockSize) {
		return math.MaxInt64
	}

	return rest + int64(left)*int64(r.meta.BlockSize)
}

// Peek implements Source.
func (r *Reader) Peek() ([]byte, error) {
	for r.pos == len(r.block) {
		if err := r.loadNext(); err != nil {
			return nil, err
		}
	}

	return r.block[r.pos:], nil
}

// Discard implements Source.
func (r *Reader) Discard(n int) {
	r.pos += n
}

// ReadFull implements Source.
//
// When the cursor sits on a block boundary and dst still needs a whole
// block, the single-threaded reader decompresses the next frame straight
// into dst.
func (r *Reader) ReadFull(dst []byte) error {
	for len(dst) > 0 {
		if r.pos < len(r.block) {
			n := copy(dst, r.block[r.pos:])
			r.pos += n
			dst = dst[n:]

			continue
		}

		if r.pipe == nil && len(dst) >= r.meta.BlockSize && r.loaded < r.frames {
			n, err := r.decompressFrame(dst[:r.meta.BlockSize])
			if err != nil {
				return err
			}
			r.stats.DirectBlocks++
			dst = dst[n:]

			continue
		}

		if err := r.loadNext(); err != nil {
			return err
		}
	}

	return nil
}

// ReadShuffled implements Source.
func (r *Reader) ReadShuffled(dst []byte, width int) error {
	return readShuffled(r, dst, width)
}

func readShuffled(s Source, dst []byte, width int) error {
	tmp := pool.GetScratch(len(dst))
	defer pool.PutScratch(tmp)

	if err := s.ReadFull(tmp.B); err != nil {
		return err
	}

	return shuffle.Unshuffle(dst, tmp.B, width)
}

// loadNext makes the next frame the current block.
func (r *Reader) loadNext() error {
	if r.loaded >= r.frames {
		return errs.NewFormatError("unexpected end of input after %d blocks", r.loaded)
	}

	if r.pipe != nil {
		b, err := r.pipe.NextBlock()
		if err != nil {
			return err
		}
		r.loaded++
		r.account(b)
		r.block, r.pos = b, 0

		return nil
	}

	n, err := r.decompressFrame(r.buf)
	if err != nil {
		return err
	}
	r.block, r.pos = r.buf[:n], 0

	return nil
}

// decompressFrame reads one frame and decompresses it into dst.
func (r *Reader) decompressFrame(dst []byte) (int, error) {
	frame, err := section.ReadFrame(r.r, r.frame, r.bound)
	if err != nil {
		return 0, fmt.Errorf("block %d: %w", r.loaded, err)
	}
	r.frame = frame

	n, err := r.codec.Decompress(dst, frame)
	if err != nil {
		return 0, &errs.DecompressionError{Algorithm: r.meta.Algorithm.String(), Err: fmt.Errorf("block %d: %w", r.loaded, err)}
	}
	r.loaded++
	r.account(dst[:n])

	return n, nil
}

func (r *Reader) account(b []byte) {
	if r.sum != nil {
		_, _ = r.sum.Write(b)
	}
	r.stats.Blocks++
	r.stats.Bytes += int64(len(b))
}

// Finish implements Input.
func (r *Reader) Finish() (ReadStats, error) {
	if r.finished {
		return r.stats, nil
	}
	r.finished = true

	if r.pos < len(r.block) || r.loaded < r.frames {
		return r.stats, fmt.Errorf("%w: %d bytes and %d blocks unread", errs.ErrTrailingData, len(r.block)-r.pos, r.frames-r.loaded)
	}
	// the pipeline shares r.r; stop it before reading the trailer
	if err := r.Close(); err != nil {
		return r.stats, err
	}

	if !r.meta.Checksum {
		return r.stats, nil
	}

	stored, err := section.ReadChecksum(r.r)
	if err != nil {
		return r.stats, err
	}

	return r.verify(stored)
}

func (r *Reader) verify(stored uint32) (ReadStats, error) {
	if r.sum == nil {
		return r.stats, nil
	}

	r.stats.ChecksumVerified = true
	if computed := r.sum.Sum32(); computed != stored {
		r.stats.ChecksumMismatch = true
		return r.stats, &errs.ChecksumMismatchError{Stored: stored, Computed: computed}
	}

	return r.stats, nil
}

// Close implements Input.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	var err error
	if r.pipe != nil {
		err = multierr.Append(err, r.pipe.Close())
	}
	r.logger.Debug("block reader closed",
		zap.Uint64("blocks", r.stats.Blocks),
		zap.Uint64("direct_blocks", r.stats.DirectBlocks),
		zap.Int64("bytes", r.stats.Bytes),
	)

	return err
}

func (r *Reader) drain() ([][]byte, error) {
	var blocks [][]byte
	if r.pos < len(r.block) {
		blocks = append(blocks, append([]byte(nil), r.block[r.pos:]...))
		r.pos = len(r.block)
	}

	for r.loaded < r.frames {
		if err := r.loadNext(); err != nil {
			return nil, err
		}
		blocks = append(blocks, append([]byte(nil), r.block...))
		r.pos = len(r.block)
	}

	return blocks, nil
}
