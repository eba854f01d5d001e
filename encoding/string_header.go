package encoding

import (
	"math"

	"github.com/arloliu/qgraph/errs"
	"github.com/arloliu/qgraph/format"
)

// String header layout: bits 6-7 carry the encoding. A set 0x20 bit marks the
// short form with the length in bits 0-4; otherwise bits 0-4 select the width
// of the length field that follows.
const (
	stringNA      = 0x0F
	stringShort   = 0x20
	string8Field  = 0x01
	string16Field = 0x02
	string32Field = 0x03

	stringEncShift = 6
	stringEncMask  = 0xC0
)

// MaxStringLength is the longest string a string header can describe.
// math.MaxUint32 itself is reserved as the in-memory NA length.
const MaxStringLength = math.MaxUint32 - 1

// StringHeader is a decoded string element header.
type StringHeader struct {
	NA       bool
	Encoding format.StringEncoding
	Length   uint32
}

// AppendNAString appends the one-byte NA string marker.
func (c HeaderCodec) AppendNAString(dst []byte) []byte {
	return append(dst, stringNA)
}

// AppendStringHeader appends the header of a non-NA string.
//
// Returns:
//   - []byte: dst with the header appended
//   - error: CapacityError when length exceeds MaxStringLength
func (c HeaderCodec) AppendStringHeader(dst []byte, enc format.StringEncoding, length uint64) ([]byte, error) {
	if length > MaxStringLength {
		return dst, &errs.CapacityError{What: "string", Length: length, Max: MaxStringLength}
	}

	encBits := byte(enc&0x3) << stringEncShift
	switch {
	case length < shortLimit:
		return append(dst, encBits|stringShort|byte(length)), nil
	case length <= math.MaxUint8:
		return append(dst, encBits|string8Field, byte(length)), nil
	case length <= math.MaxUint16:
		return c.engine.AppendUint16(append(dst, encBits|string16Field), uint16(length)), nil
	default:
		return c.engine.AppendUint32(append(dst, encBits|string32Field), uint32(length)), nil
	}
}

// DecodeStringHeader decodes the string header at the start of b.
func (c HeaderCodec) DecodeStringHeader(b []byte) (StringHeader, int, error) {
	if len(b) == 0 {
		return StringHeader{}, 0, errs.NewFormatError("empty string header")
	}

	b0 := b[0]
	if b0 == stringNA {
		return StringHeader{NA: true}, 1, nil
	}

	h := StringHeader{Encoding: format.StringEncoding(b0 >> stringEncShift)}
	if b0&stringShort != 0 {
		h.Length = uint32(b0 & shortLength)
		return h, 1, nil
	}

	var width int
	switch b0 &^ stringEncMask {
	case string8Field:
		width = 1
	case string16Field:
		width = 2
	case string32Field:
		width = 4
	default:
		return StringHeader{}, 0, errs.NewFormatError("unknown string header byte 0x%02x", b0)
	}

	v, err := c.readUint(b[1:], width)
	if err != nil {
		return StringHeader{}, 0, err
	}
	if v > MaxStringLength {
		return StringHeader{}, 0, errs.NewFormatError("string length %d is the NA sentinel", v)
	}
	h.Length = uint32(v)

	return h, 1 + width, nil
}
