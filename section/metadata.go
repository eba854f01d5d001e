package section

import (
	"fmt"
	"math/bits"

	"github.com/arloliu/qgraph/endian"
	"github.com/arloliu/qgraph/errs"
	"github.com/arloliu/qgraph/format"
)

// Metadata is the 4-byte header preceding every serialized graph.
//
// Layout:
//
//	byte 0: format version
//	byte 1: log2(block size) | streaming<<6 | checksum<<7
//	byte 2: shuffle mask | algorithm<<4
//	byte 3: 1 if the producer was big-endian, else 0
//
// Writers that leave bytes 0 and 1 reserved (zero) produce headers this
// package rejects: it stores the version and the block layout there so a
// reader needs no out-of-band settings.
type Metadata struct {
	Version   uint8
	BlockSize int
	Streaming bool
	Checksum  bool
	Shuffle   format.ShuffleMask
	Algorithm format.Algorithm
	BigEndian bool
}

// NewMetadata returns metadata for the host byte order with the given layout.
func NewMetadata(alg format.Algorithm, shuffle format.ShuffleMask, blockSize int) Metadata {
	return Metadata{
		Version:   FormatVersion,
		BlockSize: blockSize,
		Shuffle:   shuffle,
		Algorithm: alg,
		BigEndian: endian.IsNativeBigEndian(),
	}
}

// ValidateBlockSize checks that n is a power of two between MinBlockSize and MaxBlockSize.
func ValidateBlockSize(n int) error {
	if n < MinBlockSize || n > MaxBlockSize || n&(n-1) != 0 {
		return fmt.Errorf("%w: %d is not a power of two in [%d, %d]", errs.ErrInvalidBlockSize, n, MinBlockSize, MaxBlockSize)
	}

	return nil
}

// Validate checks every field for a value the layout can carry.
func (m Metadata) Validate() error {
	if m.Version != FormatVersion {
		return fmt.Errorf("%w: unsupported version %d", errs.ErrInvalidMetadata, m.Version)
	}
	if err := ValidateBlockSize(m.BlockSize); err != nil {
		return err
	}
	if !m.Shuffle.IsValid() {
		return fmt.Errorf("%w: 0x%x", errs.ErrInvalidShuffleMask, uint8(m.Shuffle))
	}
	if !m.Algorithm.IsValid() {
		return fmt.Errorf("%w: id %d", errs.ErrUnsupportedCodec, uint8(m.Algorithm))
	}

	return nil
}

// Bytes serializes the metadata. It assumes m is valid.
func (m Metadata) Bytes() [MetadataSize]byte {
	var b [MetadataSize]byte

	b[0] = m.Version
	b[1] = byte(bits.TrailingZeros(uint(m.BlockSize))) & BlockSizeLog2Mask
	if m.Streaming {
		b[1] |= StreamingMask
	}
	if m.Checksum {
		b[1] |= ChecksumMask
	}
	b[2] = byte(m.Shuffle)&ShuffleNibbleMask | byte(m.Algorithm)<<AlgorithmShift
	if m.BigEndian {
		b[3] = 1
	}

	return b
}

// ParseMetadata parses and validates the metadata header.
//
// Parameters:
//   - data: at least MetadataSize bytes
//
// Returns:
//   - Metadata: parsed header
//   - error: FormatError for short or malformed input
func ParseMetadata(data []byte) (Metadata, error) {
	if len(data) < MetadataSize {
		return Metadata{}, &errs.FormatError{Offset: 0, Reason: fmt.Sprintf("metadata header needs %d bytes, got %d", MetadataSize, len(data))}
	}

	log2 := int(data[1] & BlockSizeLog2Mask)
	m := Metadata{
		Version:   data[0],
		Streaming: data[1]&StreamingMask != 0,
		Checksum:  data[1]&ChecksumMask != 0,
		Shuffle:   format.ShuffleMask(data[2] & ShuffleNibbleMask),
		Algorithm: format.Algorithm(data[2] >> AlgorithmShift),
	}
	if log2 < MinBlockSizeLog2 || log2 > MaxBlockSizeLog2 {
		return Metadata{}, &errs.FormatError{Offset: 1, Reason: fmt.Sprintf("block size exponent %d out of range", log2)}
	}
	m.BlockSize = 1 << log2

	switch data[3] {
	case 0:
	case 1:
		m.BigEndian = true
	default:
		return Metadata{}, &errs.FormatError{Offset: 3, Reason: fmt.Sprintf("invalid endian flag 0x%02x", data[3])}
	}

	if err := m.Validate(); err != nil {
		return Metadata{}, &errs.FormatError{Offset: 0, Reason: err.Error()}
	}

	return m, nil
}

// CheckNative returns an EndiannessMismatchError when the producer's byte
// order differs from the host's.
func (m Metadata) CheckNative() error {
	if m.BigEndian != endian.IsNativeBigEndian() {
		return &errs.EndiannessMismatchError{ProducerBigEndian: m.BigEndian}
	}

	return nil
}
