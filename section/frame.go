package section

import (
	"errors"
	"fmt"
	"io"

	"github.com/arloliu/qgraph/endian"
	"github.com/arloliu/qgraph/errs"
)

var le = endian.GetLittleEndianEngine()

// PutFrameHeader writes the frame length prefix into the first
// FrameHeaderSize bytes of b.
func PutFrameHeader(b []byte, length int) {
	le.PutUint32(b[:FrameHeaderSize], uint32(length)) //nolint:gosec
}

// AppendFrameCount appends the 8-byte little-endian frame count.
func AppendFrameCount(dst []byte, count uint64) []byte {
	return le.AppendUint64(dst, count)
}

// PutFrameCount overwrites an 8-byte frame count slot.
func PutFrameCount(b []byte, count uint64) {
	le.PutUint64(b[:FrameCountSize], count)
}

// AppendChecksum appends the 4-byte little-endian checksum trailer.
func AppendChecksum(dst []byte, sum uint32) []byte {
	return le.AppendUint32(dst, sum)
}

// ParseChecksum decodes a checksum trailer.
func ParseChecksum(b []byte) uint32 {
	return le.Uint32(b[:ChecksumSize])
}

// ReadFrameCount reads the frame count following the metadata.
func ReadFrameCount(r io.Reader) (uint64, error) {
	var b [FrameCountSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, truncated("frame count", err)
	}

	return le.Uint64(b[:]), nil
}

// ReadChecksum reads the 4-byte checksum trailer.
func ReadChecksum(r io.Reader) (uint32, error) {
	var b [ChecksumSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, truncated("checksum trailer", err)
	}

	return ParseChecksum(b[:]), nil
}

// ReadFrame reads one length-prefixed frame into buf, growing it when
// needed, and returns the frame payload.
//
// Frames longer than maxLen are rejected before any payload is read.
func ReadFrame(r io.Reader, buf []byte, maxLen int) ([]byte, error) {
	var hdr [FrameHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, truncated("frame header", err)
	}

	n := int(le.Uint32(hdr[:]))
	if n > maxLen {
		return nil, errs.NewFormatError("frame length %d exceeds bound %d", n, maxLen)
	}
	if cap(buf) < n {
		buf = make([]byte, n)
	}
	buf = buf[:n]

	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, truncated("frame payload", err)
	}

	return buf, nil
}

// truncated turns a short read into a FormatError and passes I/O errors through.
func truncated(what string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return errs.NewFormatError("truncated %s", what)
	}

	return fmt.Errorf("read %s: %w", what, err)
}
