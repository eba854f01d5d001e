package section

import "math"

// Layout byte (metadata byte 1) bit masks.
const (
	BlockSizeLog2Mask = 0x3F // bits 0-5: log2 of the block size
	StreamingMask     = 0x40 // bit 6: streaming mode, no frame count
	ChecksumMask      = 0x80 // bit 7: a 4-byte checksum trailer follows the payload
)

// Codec byte (metadata byte 2) bit masks.
const (
	ShuffleNibbleMask   = 0x0F // bits 0-3: shuffle mask
	AlgorithmNibbleMask = 0xF0 // bits 4-7: compression algorithm id
	AlgorithmShift      = 4
)

// Sizes of the fixed file sections, in bytes.
const (
	MetadataSize    = 4
	FrameCountSize  = 8
	FrameHeaderSize = 4
	ChecksumSize    = 4
)

// FormatVersion is the metadata version byte written by this package.
const FormatVersion = 1

// Block size bounds. Block sizes are powers of two.
const (
	MinBlockSizeLog2 = 12 // 4 KiB
	MaxBlockSizeLog2 = 26 // 64 MiB

	MinBlockSize     = 1 << MinBlockSizeLog2
	MaxBlockSize     = 1 << MaxBlockSizeLog2
	DefaultBlockSize = 1 << 19 // 512 KiB

	// BlockReserve is the free space a contiguous write needs in the current
	// block. Contiguous writes are never larger than this.
	BlockReserve = 64
)

// MaxFrameSize bounds a frame length read from input, independent of codec.
const MaxFrameSize = math.MaxUint32
