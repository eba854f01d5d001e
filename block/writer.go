package block

import (
	"fmt"
	"io"

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

// Writer is the block mode Sink.
//
// The frame count precedes the frames, so it is only known at Close. When the
// destination is an io.WriteSeeker the count slot is written as zero and
// patched; otherwise frames are spooled in memory and written at Close.
type Writer struct {
	out    io.Writer
	frames io.Writer // out or spool
	seeker io.WriteSeeker
	// countPos is the offset of the frame count slot in seeker
	countPos int64
	spool    *pool.ByteBuffer

	meta   section.Metadata
	codec  compress.Codec
	logger *zap.Logger

	block   []byte // current block, len == capacity
	used    int
	scratch []byte
	pipe    *pipeline.Compressor
	sum     *hash.Checksum

	stats  compress.CompressionStats
	closed bool
}

var _ Output = (*Writer)(nil)

func newWriter(w io.Writer, cfg WriterConfig) (*Writer, error) {
	codec, err := compress.CreateCodec(cfg.Algorithm, cfg.Level)
	if err != nil {
		return nil, err
	}

	bw := &Writer{
		out:    w,
		meta:   cfg.metadata(),
		codec:  codec,
		logger: cfg.Logger,
		stats:  compress.CompressionStats{Algorithm: cfg.Algorithm},
	}
	if cfg.Checksum {
		bw.sum = hash.NewChecksum()
	}

	if err := bw.writePrologue(); err != nil {
		return nil, err
	}

	if cfg.Threads > 1 {
		bw.pipe, err = pipeline.NewCompressor(bw.frames, codec, cfg.BlockSize, cfg.Threads, cfg.Logger)
		if err != nil {
			return nil, err
		}
	} else {
		bw.block = make([]byte, cfg.BlockSize)
		bw.scratch = make([]byte, 0, section.FrameHeaderSize+codec.CompressBound(cfg.BlockSize))
	}

	return bw, nil
}

// writePrologue writes the metadata and a placeholder count when the
// destination can seek, and selects the frame destination.
func (w *Writer) writePrologue() error {
	ws, ok := w.out.(io.WriteSeeker)
	if ok {
		pos, err := ws.Seek(0, io.SeekCurrent)
		ok = err == nil
		w.countPos = pos + section.MetadataSize
	}

	if !ok {
		w.spool = pool.GetSpool()
		w.frames = w.spool

		return nil
	}

	w.seeker = ws
	w.frames = ws
	meta := w.meta.Bytes()
	hdr := section.AppendFrameCount(meta[:], 0)
	if _, err := ws.Write(hdr); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	return nil
}

// Append implements Sink.
func (w *Writer) Append(p []byte, contiguous bool) error {
	if w.closed {
		return errs.ErrClosed
	}

	if contiguous && w.used > w.meta.BlockSize-section.BlockReserve {
		if err := w.flush(); err != nil {
			return err
		}
	}

	for len(p) > 0 {
		if w.block == nil {
			buf, err := w.pipe.NextBlock()
			if err != nil {
				return err
			}
			w.block = buf
		}

		n := copy(w.block[w.used:], p)
		w.used += n
		p = p[n:]

		if w.used == len(w.block) {
			if err := w.flush(); err != nil {
				return err
			}
		}
	}

	return nil
}

// AppendShuffled implements Sink.
func (w *Writer) AppendShuffled(p []byte, width int) error {
	return appendShuffled(w, p, width)
}

func appendShuffled(s Sink, p []byte, width int) error {
	tmp := pool.GetScratch(len(p))
	defer pool.PutScratch(tmp)

	if err := shuffle.Shuffle(tmp.B, p, width); err != nil {
		return err
	}

	return s.Append(tmp.B, false)
}

// flush compresses and emits the current block, if it holds any data.
func (w *Writer) flush() error {
	if w.used == 0 {
		return nil
	}

	data := w.block[:w.used]
	if w.sum != nil {
		_, _ = w.sum.Write(data)
	}
	w.stats.OriginalSize += int64(w.used)
	w.stats.Blocks++

	if w.pipe != nil {
		w.block = nil
		n := w.used
		w.used = 0

		return w.pipe.Push(n)
	}

	frame, err := w.codec.Compress(w.scratch[:section.FrameHeaderSize], data)
	if err != nil {
		return fmt.Errorf("compress block %d: %w", w.stats.Blocks-1, err)
	}
	section.PutFrameHeader(frame, len(frame)-section.FrameHeaderSize)
	w.scratch = frame[:0]
	w.used = 0

	if _, err := w.frames.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	w.stats.CompressedSize += int64(len(frame) - section.FrameHeaderSize)

	return nil
}

// Close implements Sink. It flushes the last block, writes or patches the
// frame count and appends the checksum trailer.
func (w *Writer) Close() (err error) {
	if w.closed {
		return nil
	}
	w.closed = true

	defer func() {
		if w.spool != nil {
			pool.PutSpool(w.spool)
			w.spool = nil
		}
	}()

	err = w.flush()
	if w.pipe != nil {
		err = multierr.Append(err, w.pipe.Finish())
		w.stats.CompressedSize = w.pipe.CompressedSize()
	}
	if err != nil {
		return err
	}

	if err := w.writeEpilogue(); err != nil {
		return err
	}

	w.logger.Debug("block writer closed",
		zap.Stringer("algorithm", w.stats.Algorithm),
		zap.Uint64("blocks", w.stats.Blocks),
		zap.Int64("bytes", w.stats.OriginalSize),
		zap.Int64("compressed_bytes", w.stats.CompressedSize),
		zap.Float64("ratio", w.stats.CompressionRatio()),
	)

	return nil
}

func (w *Writer) writeEpilogue() error {
	if w.seeker != nil {
		end, err := w.seeker.Seek(0, io.SeekCurrent)
		if err != nil {
			return fmt.Errorf("patch frame count: %w", err)
		}
		if _, err := w.seeker.Seek(w.countPos, io.SeekStart); err != nil {
			return fmt.Errorf("patch frame count: %w", err)
		}
		if _, err := w.seeker.Write(section.AppendFrameCount(nil, w.stats.Blocks)); err != nil {
			return fmt.Errorf("patch frame count: %w", err)
		}
		if _, err := w.seeker.Seek(end, io.SeekStart); err != nil {
			return fmt.Errorf("patch frame count: %w", err)
		}
	} else {
		meta := w.meta.Bytes()
		hdr := section.AppendFrameCount(meta[:], w.stats.Blocks)
		if _, err := w.out.Write(hdr); err != nil {
			return fmt.Errorf("write metadata: %w", err)
		}
		if _, err := w.spool.WriteTo(w.out); err != nil {
			return fmt.Errorf("write frames: %w", err)
		}
	}

	if w.sum != nil {
		if _, err := w.out.Write(section.AppendChecksum(nil, w.sum.Sum32())); err != nil {
			return fmt.Errorf("write checksum: %w", err)
		}
	}

	return nil
}

// Stats implements Output.
func (w *Writer) Stats() compress.CompressionStats {
	return w.stats
}
