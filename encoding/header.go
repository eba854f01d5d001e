package encoding

import (
	"fmt"
	"math"

	"github.com/arloliu/qgraph/endian"
	"github.com/arloliu/qgraph/errs"
)

// Tag is the wire-level kind of a header. It is finer grained than
// format.Kind: attribute blocks and references only exist on the wire.
type Tag uint8

const (
	TagNull Tag = iota
	TagList
	TagNumeric
	TagInteger
	TagLogical
	TagComplex
	TagRaw
	TagString
	TagOpaque
	TagAttributes
	TagSymbol
	TagPair
	TagLang
	TagClosure
	TagPromise
	TagDots
	TagEnvironment
	TagReference
)

var tagNames = [...]string{
	TagNull:        "Null",
	TagList:        "List",
	TagNumeric:     "Numeric",
	TagInteger:     "Integer",
	TagLogical:     "Logical",
	TagComplex:     "Complex",
	TagRaw:         "Raw",
	TagString:      "String",
	TagOpaque:      "Opaque",
	TagAttributes:  "Attributes",
	TagSymbol:      "Symbol",
	TagPair:        "Pair",
	TagLang:        "Lang",
	TagClosure:     "Closure",
	TagPromise:     "Promise",
	TagDots:        "Dots",
	TagEnvironment: "Environment",
	TagReference:   "Reference",
}

func (t Tag) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}

	return "Unknown"
}

// IsExtension reports whether headers of tag t use the two-byte lead-in.
func (t Tag) IsExtension() bool {
	return t >= TagSymbol
}

// Short-form high bits. The low 5 bits carry the length.
const (
	shortList       = 0x20
	shortNumeric    = 0x40
	shortInteger    = 0x60
	shortLogical    = 0x80
	shortString     = 0xA0
	shortAttributes = 0xE0

	shortMask   = 0xE0
	shortLength = 0x1F
	shortLimit  = 32
)

// Full tag bytes, followed by a length field of the indicated width.
const (
	nullHeader = 0x00

	list8  = 0x01
	list16 = 0x02
	list32 = 0x03
	list64 = 0x04

	numeric8  = 0x05
	numeric16 = 0x06
	numeric32 = 0x07
	numeric64 = 0x08

	integer8  = 0x09
	integer16 = 0x0A
	integer32 = 0x0B
	integer64 = 0x0C

	logical8  = 0x0D
	logical16 = 0x0E
	logical32 = 0x0F
	logical64 = 0x10

	string8  = 0x11
	string16 = 0x12
	string32 = 0x13
	string64 = 0x14

	complex32 = 0x15
	complex64 = 0x16
	raw32     = 0x17
	raw64     = 0x18
	opaque32  = 0x19
	opaque64  = 0x1A

	// ExtensionMarker introduces a two-byte extension lead-in.
	ExtensionMarker = 0x1B

	attributes8  = 0x1E
	attributes32 = 0x1F
)

// Extension sub-tags (low 6 bits of the second lead-in byte).
const (
	extSymbol      = 0x01
	extPair        = 0x02
	extPairWF      = 0x03
	extLang        = 0x04
	extLangWF      = 0x05
	extClosure     = 0x06
	extClosureWF   = 0x07
	extPromise     = 0x08
	extPromiseWF   = 0x09
	extDots        = 0x0A
	extDotsWF      = 0x0B
	extEnvUnlocked = 0x0C
	extEnvLocked   = 0x0D
	extReference   = 0x0E

	extKindMask   = 0x3F
	extWidthShift = 6
)

// MaxHeaderSize is the largest encoded header: extension lead-in, flags and a 64-bit field.
const MaxHeaderSize = 2 + 4 + 8

// MaxAttributes is the largest attribute count an attribute header can carry.
const MaxAttributes = math.MaxUint32

// Header is a decoded header.
type Header struct {
	Tag Tag
	// Length is the element count for arrays and lists, the attribute count
	// for TagAttributes, the element count for pair lists, and the reference
	// index for TagEnvironment and TagReference.
	Length uint64
	// Flags is set for pair lists, closures and promises written with the
	// with-flags variant.
	Flags uint32
	// HasFlags reports that the with-flags variant was used.
	HasFlags bool
	// Locked is set on locked environments.
	Locked bool
}

// HeaderCodec encodes and decodes headers with a fixed byte order.
type HeaderCodec struct {
	engine endian.EndianEngine
}

// NewHeaderCodec creates a codec writing length fields with the given engine.
func NewHeaderCodec(engine endian.EndianEngine) HeaderCodec {
	return HeaderCodec{engine: engine}
}

// NativeHeaderCodec returns a codec using the host byte order.
func NativeHeaderCodec() HeaderCodec {
	return NewHeaderCodec(endian.Native())
}

type tierTags struct {
	short byte
	t8    byte
	t16   byte
	t32   byte
	t64   byte
}

var tiered = map[Tag]tierTags{
	TagList:    {shortList, list8, list16, list32, list64},
	TagNumeric: {shortNumeric, numeric8, numeric16, numeric32, numeric64},
	TagInteger: {shortInteger, integer8, integer16, integer32, integer64},
	TagLogical: {shortLogical, logical8, logical16, logical32, logical64},
	TagString:  {shortString, string8, string16, string32, string64},
}

var wide = map[Tag][2]byte{
	TagComplex: {complex32, complex64},
	TagRaw:     {raw32, raw64},
	TagOpaque:  {opaque32, opaque64},
}

// AppendHeader appends the header of a primary (non-extension) tag.
//
// Parameters:
//   - dst: buffer to append to
//   - tag: TagNull, an array tag, TagList, TagOpaque or TagAttributes
//   - length: element count (ignored for TagNull)
//
// Returns:
//   - []byte: dst with the header appended
//   - error: CapacityError when an attribute count exceeds MaxAttributes,
//     ErrInvalidNode for extension tags
func (c HeaderCodec) AppendHeader(dst []byte, tag Tag, length uint64) ([]byte, error) {
	if tag == TagNull {
		return append(dst, nullHeader), nil
	}

	if tags, ok := tiered[tag]; ok {
		return c.appendTiered(dst, tags, length), nil
	}

	if tags, ok := wide[tag]; ok {
		if length <= math.MaxUint32 {
			return c.engine.AppendUint32(append(dst, tags[0]), uint32(length)), nil
		}

		return c.engine.AppendUint64(append(dst, tags[1]), length), nil
	}

	if tag == TagAttributes {
		return c.appendAttributes(dst, length)
	}

	return dst, fmt.Errorf("%w: tag %s has no primary header", errs.ErrInvalidNode, tag)
}

func (c HeaderCodec) appendTiered(dst []byte, tags tierTags, length uint64) []byte {
	switch {
	case length < shortLimit:
		return append(dst, tags.short|byte(length))
	case length <= math.MaxUint8:
		return append(dst, tags.t8, byte(length))
	case length <= math.MaxUint16:
		return c.engine.AppendUint16(append(dst, tags.t16), uint16(length))
	case length <= math.MaxUint32:
		return c.engine.AppendUint32(append(dst, tags.t32), uint32(length))
	default:
		return c.engine.AppendUint64(append(dst, tags.t64), length)
	}
}

func (c HeaderCodec) appendAttributes(dst []byte, count uint64) ([]byte, error) {
	switch {
	case count < shortLimit:
		return append(dst, shortAttributes|byte(count)), nil
	case count <= math.MaxUint8:
		return append(dst, attributes8, byte(count)), nil
	case count <= MaxAttributes:
		return c.engine.AppendUint32(append(dst, attributes32), uint32(count)), nil
	default:
		return dst, &errs.CapacityError{What: "attribute count", Length: count, Max: MaxAttributes}
	}
}

// AppendExtension appends the header of an extension tag. Flags are written
// when h.Flags is non-zero; h.Length is written for pair lists, environments
// and references.
func (c HeaderCodec) AppendExtension(dst []byte, h Header) ([]byte, error) {
	var sub byte
	withFlags := h.Flags != 0
	hasField := true

	switch h.Tag { //nolint: exhaustive
	case TagSymbol:
		sub, withFlags, hasField = extSymbol, false, false
	case TagPair:
		sub = pick(withFlags, extPairWF, extPair)
	case TagLang:
		sub = pick(withFlags, extLangWF, extLang)
	case TagDots:
		sub = pick(withFlags, extDotsWF, extDots)
	case TagClosure:
		sub, hasField = pick(withFlags, extClosureWF, extClosure), false
	case TagPromise:
		sub, hasField = pick(withFlags, extPromiseWF, extPromise), false
	case TagEnvironment:
		sub, withFlags = pick(h.Locked, extEnvLocked, extEnvUnlocked), false
	case TagReference:
		sub, withFlags = extReference, false
	default:
		return dst, fmt.Errorf("%w: tag %s is not an extension tag", errs.ErrInvalidNode, h.Tag)
	}

	width := 0
	if hasField {
		width = widthCode(h.Length)
	}

	dst = append(dst, ExtensionMarker, sub|byte(width<<extWidthShift))
	if withFlags {
		dst = c.engine.AppendUint32(dst, h.Flags)
	}
	if !hasField {
		return dst, nil
	}

	switch width {
	case 0:
		return append(dst, byte(h.Length)), nil
	case 1:
		return c.engine.AppendUint16(dst, uint16(h.Length)), nil
	case 2:
		return c.engine.AppendUint32(dst, uint32(h.Length)), nil
	default:
		return c.engine.AppendUint64(dst, h.Length), nil
	}
}

func pick(cond bool, yes, no byte) byte {
	if cond {
		return yes
	}

	return no
}

// widthCode returns 0..3 for a 1, 2, 4 or 8 byte field.
func widthCode(v uint64) int {
	switch {
	case v <= math.MaxUint8:
		return 0
	case v <= math.MaxUint16:
		return 1
	case v <= math.MaxUint32:
		return 2
	default:
		return 3
	}
}

// DecodeHeader decodes the header at the start of b.
//
// Parameters:
//   - b: bytes starting at the header; may extend past it
//
// Returns:
//   - Header: the decoded header
//   - int: number of bytes consumed
//   - error: FormatError on an unknown tag or when b ends inside the header
func (c HeaderCodec) DecodeHeader(b []byte) (Header, int, error) {
	if len(b) == 0 {
		return Header{}, 0, errs.NewFormatError("empty header")
	}

	b0 := b[0]
	if b0 == ExtensionMarker {
		return c.decodeExtension(b)
	}

	if b0&shortMask != 0 {
		length := uint64(b0 & shortLength)
		switch b0 & shortMask {
		case shortList:
			return Header{Tag: TagList, Length: length}, 1, nil
		case shortNumeric:
			return Header{Tag: TagNumeric, Length: length}, 1, nil
		case shortInteger:
			return Header{Tag: TagInteger, Length: length}, 1, nil
		case shortLogical:
			return Header{Tag: TagLogical, Length: length}, 1, nil
		case shortString:
			return Header{Tag: TagString, Length: length}, 1, nil
		case shortAttributes:
			return Header{Tag: TagAttributes, Length: length}, 1, nil
		default:
			return Header{}, 0, errs.NewFormatError("unknown short-form header byte 0x%02x", b0)
		}
	}

	switch b0 {
	case nullHeader:
		return Header{Tag: TagNull}, 1, nil
	case list8, numeric8, integer8, logical8, string8, attributes8:
		return c.field(b, tagOf(b0), 1)
	case list16, numeric16, integer16, logical16, string16:
		return c.field(b, tagOf(b0), 2)
	case list32, numeric32, integer32, logical32, string32, complex32, raw32, opaque32, attributes32:
		return c.field(b, tagOf(b0), 4)
	case list64, numeric64, integer64, logical64, string64, complex64, raw64, opaque64:
		return c.field(b, tagOf(b0), 8)
	default:
		return Header{}, 0, errs.NewFormatError("unknown header byte 0x%02x", b0)
	}
}

func tagOf(b0 byte) Tag {
	switch b0 {
	case list8, list16, list32, list64:
		return TagList
	case numeric8, numeric16, numeric32, numeric64:
		return TagNumeric
	case integer8, integer16, integer32, integer64:
		return TagInteger
	case logical8, logical16, logical32, logical64:
		return TagLogical
	case string8, string16, string32, string64:
		return TagString
	case complex32, complex64:
		return TagComplex
	case raw32, raw64:
		return TagRaw
	case opaque32, opaque64:
		return TagOpaque
	default:
		return TagAttributes
	}
}

// field decodes a tag byte followed by a length of the given width.
func (c HeaderCodec) field(b []byte, tag Tag, width int) (Header, int, error) {
	v, err := c.readUint(b[1:], width)
	if err != nil {
		return Header{}, 0, err
	}

	return Header{Tag: tag, Length: v}, 1 + width, nil
}

func (c HeaderCodec) readUint(b []byte, width int) (uint64, error) {
	if len(b) < width {
		return 0, errs.NewFormatError("header truncated: need %d bytes, have %d", width, len(b))
	}

	switch width {
	case 1:
		return uint64(b[0]), nil
	case 2:
		return uint64(c.engine.Uint16(b)), nil
	case 4:
		return uint64(c.engine.Uint32(b)), nil
	default:
		return c.engine.Uint64(b), nil
	}
}

func (c HeaderCodec) decodeExtension(b []byte) (Header, int, error) {
	if len(b) < 2 {
		return Header{}, 0, errs.NewFormatError("extension header truncated")
	}

	sub := b[1]
	width := 1 << (sub >> extWidthShift)
	h := Header{}
	hasField := true

	switch sub & extKindMask {
	case extSymbol:
		h.Tag, hasField = TagSymbol, false
	case extPair:
		h.Tag = TagPair
	case extPairWF:
		h.Tag, h.HasFlags = TagPair, true
	case extLang:
		h.Tag = TagLang
	case extLangWF:
		h.Tag, h.HasFlags = TagLang, true
	case extDots:
		h.Tag = TagDots
	case extDotsWF:
		h.Tag, h.HasFlags = TagDots, true
	case extClosure:
		h.Tag, hasField = TagClosure, false
	case extClosureWF:
		h.Tag, h.HasFlags, hasField = TagClosure, true, false
	case extPromise:
		h.Tag, hasField = TagPromise, false
	case extPromiseWF:
		h.Tag, h.HasFlags, hasField = TagPromise, true, false
	case extEnvUnlocked:
		h.Tag = TagEnvironment
	case extEnvLocked:
		h.Tag, h.Locked = TagEnvironment, true
	case extReference:
		h.Tag = TagReference
	default:
		return Header{}, 0, errs.NewFormatError("unknown extension sub-tag 0x%02x", sub)
	}

	if !hasField && sub>>extWidthShift != 0 {
		return Header{}, 0, errs.NewFormatError("extension sub-tag 0x%02x carries a width on a fixed-size kind", sub)
	}

	n := 2
	if h.HasFlags {
		flags, err := c.readUint(b[n:], 4)
		if err != nil {
			return Header{}, 0, err
		}
		h.Flags = uint32(flags)
		n += 4
	}

	if hasField {
		v, err := c.readUint(b[n:], width)
		if err != nil {
			return Header{}, 0, err
		}
		h.Length = v
		n += width
	}

	return h, n, nil
}
