package graph

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/arloliu/qgraph/block"
	"github.com/arloliu/qgraph/compress"
	"github.com/arloliu/qgraph/errs"
	"github.com/arloliu/qgraph/format"
	"github.com/arloliu/qgraph/internal/options"
	"github.com/arloliu/qgraph/section"
)

// DefaultMaxDepth is the default limit on how deeply nodes may nest, counted
// in nodes from the root down. References and Null leaves count as nodes.
const DefaultMaxDepth = 10_000

// EncoderConfig holds the write settings of an Encoder.
type EncoderConfig struct {
	algorithm format.Algorithm
	level     int
	shuffle   format.ShuffleMask
	blockSize int
	threads   int
	maxDepth  int
	checksum  bool
	streaming bool
	logger    *zap.Logger
}

// NewEncoderConfig returns the default write settings: zstd at its default
// level, every primitive kind shuffled, checksum on, one thread, 512 KiB
// blocks, counted (non-streaming) layout.
func NewEncoderConfig() *EncoderConfig {
	return &EncoderConfig{
		algorithm: format.CompressionZstd,
		shuffle:   format.ShuffleAll,
		blockSize: section.DefaultBlockSize,
		threads:   1,
		maxDepth:  DefaultMaxDepth,
		checksum:  true,
		logger:    zap.NewNop(),
	}
}

func (c *EncoderConfig) setAlgorithm(alg format.Algorithm) error {
	if !alg.IsValid() {
		return fmt.Errorf("%w: %d", errs.ErrUnsupportedCodec, alg)
	}
	c.algorithm = alg

	return nil
}

func (c *EncoderConfig) setShuffle(mask format.ShuffleMask) error {
	if !mask.IsValid() {
		return fmt.Errorf("%w: 0x%x", errs.ErrInvalidShuffleMask, uint8(mask))
	}
	c.shuffle = mask

	return nil
}

func (c *EncoderConfig) setThreads(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: %d", errs.ErrInvalidThreadCount, n)
	}
	c.threads = n

	return nil
}

func (c *EncoderConfig) setBlockSize(n int) error {
	if err := section.ValidateBlockSize(n); err != nil {
		return err
	}
	c.blockSize = n

	return nil
}

func checkMaxDepth(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: %d", errs.ErrInvalidMaxDepth, n)
	}

	return nil
}

// validate checks the settings that depend on each other.
func (c *EncoderConfig) validate() error {
	_, err := compress.ResolveLevel(c.algorithm, c.level)
	return err
}

func (c *EncoderConfig) writerConfig() block.WriterConfig {
	return block.WriterConfig{
		Algorithm: c.algorithm,
		Level:     c.level,
		Shuffle:   c.shuffle,
		BlockSize: c.blockSize,
		Threads:   c.threads,
		Checksum:  c.checksum,
		Streaming: c.streaming,
		Logger:    c.logger,
	}
}

// EncoderOption configures an EncoderConfig.
type EncoderOption = options.Option[*EncoderConfig]

// WithAlgorithm selects the compression algorithm.
func WithAlgorithm(alg format.Algorithm) EncoderOption {
	return options.New(func(c *EncoderConfig) error {
		return c.setAlgorithm(alg)
	})
}

// WithCompressionLevel sets the compression level. Zero selects the
// algorithm's default; the valid range is reported by compress.Levels.
func WithCompressionLevel(level int) EncoderOption {
	return options.NoError(func(c *EncoderConfig) {
		c.level = level
	})
}

// WithShuffleMask selects which primitive array kinds are shuffled before
// compression.
func WithShuffleMask(mask format.ShuffleMask) EncoderOption {
	return options.New(func(c *EncoderConfig) error {
		return c.setShuffle(mask)
	})
}

// WithChecksum enables or disables the checksum trailer.
func WithChecksum(enabled bool) EncoderOption {
	return options.NoError(func(c *EncoderConfig) {
		c.checksum = enabled
	})
}

// WithThreads sets the number of compression workers. Output is identical
// for every thread count.
func WithThreads(n int) EncoderOption {
	return options.New(func(c *EncoderConfig) error {
		return c.setThreads(n)
	})
}

// WithBlockSize sets the block size, a power of two between 4 KiB and 64 MiB.
func WithBlockSize(n int) EncoderOption {
	return options.New(func(c *EncoderConfig) error {
		return c.setBlockSize(n)
	})
}

// WithMaxDepth limits how deeply the written graph may nest. Deeper graphs
// fail validation with *errs.CapacityError.
func WithMaxDepth(n int) EncoderOption {
	return options.New(func(c *EncoderConfig) error {
		if err := checkMaxDepth(n); err != nil {
			return err
		}
		c.maxDepth = n

		return nil
	})
}

// WithStreaming writes one compressed stream instead of counted frames.
func WithStreaming(enabled bool) EncoderOption {
	return options.NoError(func(c *EncoderConfig) {
		c.streaming = enabled
	})
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(logger *zap.Logger) EncoderOption {
	return options.NoError(func(c *EncoderConfig) {
		if logger == nil {
			logger = zap.NewNop()
		}
		c.logger = logger
	})
}

// DecoderConfig holds the read settings of a Decoder.
type DecoderConfig struct {
	threads        int
	maxDepth       int
	strictChecksum bool
	verifyChecksum bool
	logger         *zap.Logger
}

// NewDecoderConfig returns the default read settings: one thread, checksum
// verified, a mismatch logged rather than returned.
func NewDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		threads:        1,
		maxDepth:       DefaultMaxDepth,
		verifyChecksum: true,
		logger:         zap.NewNop(),
	}
}

func (c *DecoderConfig) readerConfig() block.ReaderConfig {
	return block.ReaderConfig{
		Threads:        c.threads,
		VerifyChecksum: c.verifyChecksum,
		Logger:         c.logger,
	}
}

// DecoderOption configures a DecoderConfig.
type DecoderOption = options.Option[*DecoderConfig]

// WithStrictChecksum makes a checksum mismatch a decode error instead of a
// logged warning.
func WithStrictChecksum(strict bool) DecoderOption {
	return options.NoError(func(c *DecoderConfig) {
		c.strictChecksum = strict
	})
}

// WithVerifyChecksum enables or disables checksum verification.
func WithVerifyChecksum(enabled bool) DecoderOption {
	return options.NoError(func(c *DecoderConfig) {
		c.verifyChecksum = enabled
	})
}

// WithReadThreads sets the number of decompression workers.
func WithReadThreads(n int) DecoderOption {
	return options.New(func(c *DecoderConfig) error {
		if n < 1 {
			return fmt.Errorf("%w: %d", errs.ErrInvalidThreadCount, n)
		}
		c.threads = n

		return nil
	})
}

// WithReadMaxDepth limits how deeply the decoded graph may nest. Deeper
// input is rejected as malformed.
func WithReadMaxDepth(n int) DecoderOption {
	return options.New(func(c *DecoderConfig) error {
		if err := checkMaxDepth(n); err != nil {
			return err
		}
		c.maxDepth = n

		return nil
	})
}

// WithReadLogger sets the decoder logger. A nil logger disables logging.
func WithReadLogger(logger *zap.Logger) DecoderOption {
	return options.NoError(func(c *DecoderConfig) {
		if logger == nil {
			logger = zap.NewNop()
		}
		c.logger = logger
	})
}
