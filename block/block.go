package block

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/arloliu/qgraph/compress"
	"github.com/arloliu/qgraph/errs"
	"github.com/arloliu/qgraph/format"
	"github.com/arloliu/qgraph/section"
)

// Sink receives the uncompressed stream.
type Sink interface {
	// Append writes p. When contiguous is set, p must not exceed
	// section.BlockReserve bytes and is never split across blocks.
	Append(p []byte, contiguous bool) error
	// AppendShuffled writes p through the shuffle filter with the given
	// element width.
	AppendShuffled(p []byte, width int) error
	// Close flushes pending data and writes the trailer.
	Close() error
}

// Source serves the uncompressed stream.
type Source interface {
	// Peek returns the unread bytes available without crossing into another
	// block. It fails when the stream is exhausted.
	Peek() ([]byte, error)
	// Discard consumes n bytes previously returned by Peek.
	Discard(n int)
	// ReadFull fills dst, crossing block boundaries as needed.
	ReadFull(dst []byte) error
	// ReadShuffled fills dst with the unshuffled form of the next len(dst)
	// bytes.
	ReadShuffled(dst []byte, width int) error
}

// Output is a Sink bound to a destination.
type Output interface {
	Sink
	// Stats reports blocks and bytes written so far; final after Close.
	Stats() compress.CompressionStats
}

// Input is a Source opened on serialized input.
type Input interface {
	Source
	// Metadata returns the parsed metadata header.
	Metadata() section.Metadata
	// Remaining returns an upper bound on the unread stream bytes, or -1
	// when the input cannot tell.
	Remaining() int64
	// Finish checks that the input was consumed exactly and verifies the
	// checksum trailer. A mismatch is reported as *errs.ChecksumMismatchError
	// together with valid stats.
	Finish() (ReadStats, error)
	// Close releases workers and decoders. It is safe after Finish.
	Close() error

	// drain returns every remaining block.
	drain() ([][]byte, error)
}

// ReadStats describes one read.
type ReadStats struct {
	// Blocks is the number of frames decompressed
	Blocks uint64
	// DirectBlocks is how many of those were decompressed straight into the
	// caller's buffer
	DirectBlocks uint64
	// Bytes is the uncompressed stream length
	Bytes int64
	// ChecksumPresent reports whether the input carries a trailer
	ChecksumPresent bool
	// ChecksumVerified reports whether the trailer was compared
	ChecksumVerified bool
	// ChecksumMismatch is set when the comparison failed
	ChecksumMismatch bool
}

// WriterConfig configures NewOutput.
type WriterConfig struct {
	Algorithm format.Algorithm
	Level     int
	Shuffle   format.ShuffleMask
	BlockSize int
	Threads   int
	Checksum  bool
	Streaming bool
	Logger    *zap.Logger
}

// ReaderConfig configures Open.
type ReaderConfig struct {
	Threads        int
	VerifyChecksum bool
	Logger         *zap.Logger
}

func (c WriterConfig) metadata() section.Metadata {
	m := section.NewMetadata(c.Algorithm, c.Shuffle, c.BlockSize)
	m.Streaming = c.Streaming
	m.Checksum = c.Checksum

	return m
}

func (c WriterConfig) validate() error {
	if err := c.metadata().Validate(); err != nil {
		return err
	}
	if c.Threads < 1 {
		return fmt.Errorf("%w: %d", errs.ErrInvalidThreadCount, c.Threads)
	}
	if _, err := compress.ResolveLevel(c.Algorithm, c.Level); err != nil {
		return err
	}

	return nil
}

// NewOutput writes the metadata header to w and returns the Sink for the
// configured mode.
func NewOutput(w io.Writer, cfg WriterConfig) (Output, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.Streaming {
		return newStreamWriter(w, cfg)
	}

	return newWriter(w, cfg)
}

// Open reads the metadata header from r and returns the Source for the mode
// it records. Input produced on a host of the other byte order is refused.
func Open(r io.Reader, cfg ReaderConfig) (Input, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Threads < 1 {
		return nil, fmt.Errorf("%w: %d", errs.ErrInvalidThreadCount, cfg.Threads)
	}

	var hdr [section.MetadataSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, errs.NewFormatError("input shorter than the metadata header")
		}

		return nil, fmt.Errorf("read metadata: %w", err)
	}

	meta, err := section.ParseMetadata(hdr[:])
	if err != nil {
		return nil, err
	}
	if err := meta.CheckNative(); err != nil {
		return nil, err
	}

	if meta.Streaming {
		return newStreamReader(r, meta, cfg)
	}

	return newReader(r, meta, cfg)
}

// DumpBlocks returns the decompressed blocks of r. Streaming input yields
// one block holding the whole stream. The checksum is verified when present;
// on a mismatch the blocks are returned together with the error.
func DumpBlocks(r io.Reader, cfg ReaderConfig) ([][]byte, error) {
	in, err := Open(r, cfg)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	blocks, err := in.drain()
	if err != nil {
		return nil, err
	}
	if _, err := in.Finish(); err != nil {
		return blocks, err
	}

	return blocks, nil
}
