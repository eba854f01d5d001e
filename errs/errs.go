// Package errs defines the errors reported by the qgraph codec.
//
// Sentinel errors are matched with errors.Is. The typed errors carry the
// detail of a failure and unwrap to their sentinel, so callers can match
// either way:
//
//	var fe *errs.FormatError
//	if errors.As(err, &fe) {
//	    log.Printf("corrupt input at offset %d", fe.Offset)
//	}
//	if errors.Is(err, errs.ErrFormat) { ... }
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat reports an unrecognized tag byte or malformed header. It is never recovered.
	ErrFormat = errors.New("qgraph: malformed input")
	// ErrDecompression reports a failed decompression or an implausible decompressed size.
	ErrDecompression = errors.New("qgraph: decompression failed")
	// ErrEndiannessMismatch reports input written on a host with the opposite byte order.
	ErrEndiannessMismatch = errors.New("qgraph: endianness mismatch")
	// ErrChecksumMismatch reports a trailing checksum that does not match the decoded stream.
	ErrChecksumMismatch = errors.New("qgraph: checksum mismatch")
	// ErrCapacity reports a value that cannot be represented by the wire format.
	ErrCapacity = errors.New("qgraph: capacity exceeded")

	ErrInvalidNode        = errors.New("qgraph: invalid node")
	ErrInvalidMetadata    = errors.New("qgraph: invalid metadata header")
	ErrInvalidBlockSize   = errors.New("qgraph: invalid block size")
	ErrInvalidThreadCount = errors.New("qgraph: invalid thread count")
	ErrInvalidShuffleMask = errors.New("qgraph: invalid shuffle mask")
	ErrInvalidMaxDepth    = errors.New("qgraph: invalid maximum nesting depth")
	ErrInvalidLevel       = errors.New("qgraph: invalid compression level")
	ErrUnsupportedCodec   = errors.New("qgraph: unsupported compression algorithm")
	ErrUnsupportedWidth   = errors.New("qgraph: unsupported shuffle element width")
	ErrTrailingData       = errors.New("qgraph: trailing data after root node")
	ErrClosed             = errors.New("qgraph: use of closed pipeline")
)

// FormatError describes where and why the input could not be parsed.
type FormatError struct {
	// Offset is the byte offset inside the current block, or -1 when unknown.
	Offset int64
	Reason string
}

// NewFormatError returns a FormatError with an unknown offset.
func NewFormatError(format string, args ...any) *FormatError {
	return &FormatError{Offset: -1, Reason: fmt.Sprintf(format, args...)}
}

func (e *FormatError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("%s: %s", ErrFormat, e.Reason)
	}

	return fmt.Sprintf("%s: %s (offset %d)", ErrFormat, e.Reason, e.Offset)
}

func (e *FormatError) Unwrap() error { return ErrFormat }

// DecompressionError wraps the failure reported by a compression algorithm.
type DecompressionError struct {
	Algorithm string
	Err       error
}

func (e *DecompressionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrDecompression, e.Algorithm, e.Err)
}

func (e *DecompressionError) Unwrap() []error { return []error{ErrDecompression, e.Err} }

// EndiannessMismatchError is returned when opening input produced on a host
// with the opposite byte order.
type EndiannessMismatchError struct {
	ProducerBigEndian bool
}

func (e *EndiannessMismatchError) Error() string {
	producer, consumer := "little-endian", "big-endian"
	if e.ProducerBigEndian {
		producer, consumer = consumer, producer
	}

	return fmt.Sprintf("%s: input is %s, host is %s", ErrEndiannessMismatch, producer, consumer)
}

func (e *EndiannessMismatchError) Unwrap() error { return ErrEndiannessMismatch }

// ChecksumMismatchError carries the stored and computed checksums.
type ChecksumMismatchError struct {
	Stored   uint32
	Computed uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("%s: stored 0x%08x, computed 0x%08x", ErrChecksumMismatch, e.Stored, e.Computed)
}

func (e *ChecksumMismatchError) Unwrap() error { return ErrChecksumMismatch }

// CapacityError reports a length that exceeds what the format can represent.
type CapacityError struct {
	What   string
	Length uint64
	Max    uint64
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s: %s length %d exceeds maximum %d", ErrCapacity, e.What, e.Length, e.Max)
}

func (e *CapacityError) Unwrap() error { return ErrCapacity }
