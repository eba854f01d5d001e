package format

import "fmt"

type (
	// Kind identifies the variant of a graph node.
	Kind uint8
	// Algorithm identifies the compression algorithm applied to blocks or streams.
	Algorithm uint8
	// StringEncoding identifies the character encoding carried by a single string.
	StringEncoding uint8
	// ShuffleMask selects which primitive array kinds pass through the shuffle filter.
	ShuffleMask uint8
)

const (
	KindNull        Kind = iota // KindNull is the empty value.
	KindNumeric                 // KindNumeric is a float64 array.
	KindInteger                 // KindInteger is an int32 array.
	KindLogical                 // KindLogical is a logical array stored as int32.
	KindComplex                 // KindComplex is a complex128 array.
	KindRaw                     // KindRaw is an uninterpreted byte array.
	KindString                  // KindString is an array of individually encoded strings.
	KindList                    // KindList is a generic container of child nodes.
	KindSymbol                  // KindSymbol is an interned name.
	KindPair                    // KindPair is a linked-pair list.
	KindLang                    // KindLang is a language call object (pair list shaped).
	KindClosure                 // KindClosure is a function: formals, body, environment.
	KindPromise                 // KindPromise is a delayed evaluation: value, expression, environment.
	KindDots                    // KindDots is a dots list (pair list shaped).
	KindEnvironment             // KindEnvironment is a mutable environment with reference identity.
	KindOpaque                  // KindOpaque is a blob produced by the host's own serializer.
)

const (
	CompressionNone  Algorithm = 0x0 // CompressionNone stores blocks uncompressed.
	CompressionZstd  Algorithm = 0x1 // CompressionZstd represents Zstandard compression.
	CompressionLZ4   Algorithm = 0x2 // CompressionLZ4 represents LZ4 block compression.
	CompressionLZ4HC Algorithm = 0x3 // CompressionLZ4HC represents LZ4 high-compression mode.
	CompressionS2    Algorithm = 0x4 // CompressionS2 represents S2 compression.
)

const (
	EncodingNative StringEncoding = 0x0 // EncodingNative is the producer's native encoding.
	EncodingUTF8   StringEncoding = 0x1 // EncodingUTF8 marks UTF-8 text.
	EncodingLatin1 StringEncoding = 0x2 // EncodingLatin1 marks ISO-8859-1 text.
	EncodingBytes  StringEncoding = 0x3 // EncodingBytes marks uninterpreted bytes.
)

const (
	ShuffleLogical ShuffleMask = 0x1 // ShuffleLogical shuffles logical arrays.
	ShuffleInteger ShuffleMask = 0x2 // ShuffleInteger shuffles integer arrays.
	ShuffleReal    ShuffleMask = 0x4 // ShuffleReal shuffles numeric arrays.
	ShuffleComplex ShuffleMask = 0x8 // ShuffleComplex shuffles complex arrays.

	ShuffleNone ShuffleMask = 0x0
	ShuffleAll  ShuffleMask = ShuffleLogical | ShuffleInteger | ShuffleReal | ShuffleComplex
)

var kindNames = [...]string{
	KindNull:        "Null",
	KindNumeric:     "Numeric",
	KindInteger:     "Integer",
	KindLogical:     "Logical",
	KindComplex:     "Complex",
	KindRaw:         "Raw",
	KindString:      "String",
	KindList:        "List",
	KindSymbol:      "Symbol",
	KindPair:        "Pair",
	KindLang:        "Lang",
	KindClosure:     "Closure",
	KindPromise:     "Promise",
	KindDots:        "Dots",
	KindEnvironment: "Environment",
	KindOpaque:      "Opaque",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}

	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// IsValid reports whether k is one of the defined node kinds.
func (k Kind) IsValid() bool {
	return k <= KindOpaque
}

// IsPairList reports whether nodes of kind k are laid out as tagged element lists.
func (k Kind) IsPairList() bool {
	return k == KindPair || k == KindLang || k == KindDots
}

// IsTriple reports whether nodes of kind k carry exactly three components.
func (k Kind) IsTriple() bool {
	return k == KindClosure || k == KindPromise || k == KindEnvironment
}

// HasFlags reports whether nodes of kind k may carry packed host flags.
func (k Kind) HasFlags() bool {
	return k.IsPairList() || k == KindClosure || k == KindPromise
}

func (a Algorithm) String() string {
	switch a {
	case CompressionNone:
		return "None"
	case CompressionZstd:
		return "Zstd"
	case CompressionLZ4:
		return "LZ4"
	case CompressionLZ4HC:
		return "LZ4HC"
	case CompressionS2:
		return "S2"
	default:
		return "Unknown"
	}
}

// IsValid reports whether a is a known algorithm id.
func (a Algorithm) IsValid() bool {
	return a <= CompressionS2
}

// ParseAlgorithm maps a lower-case algorithm name to its id.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	case "lz4hc":
		return CompressionLZ4HC, nil
	case "s2":
		return CompressionS2, nil
	default:
		return 0, fmt.Errorf("unknown compression algorithm: %q", name)
	}
}

func (e StringEncoding) String() string {
	switch e {
	case EncodingNative:
		return "native"
	case EncodingUTF8:
		return "utf8"
	case EncodingLatin1:
		return "latin1"
	case EncodingBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// Has reports whether every bit of flag is set in m.
func (m ShuffleMask) Has(flag ShuffleMask) bool {
	return m&flag == flag
}

// IsValid reports whether m only uses the four defined bits.
func (m ShuffleMask) IsValid() bool {
	return m&^ShuffleAll == 0
}

// ShuffleBitFor returns the mask bit controlling arrays of kind k, or
// ShuffleNone for kinds that are never shuffled.
func ShuffleBitFor(k Kind) ShuffleMask {
	switch k { //nolint: exhaustive
	case KindLogical:
		return ShuffleLogical
	case KindInteger:
		return ShuffleInteger
	case KindNumeric:
		return ShuffleReal
	case KindComplex:
		return ShuffleComplex
	default:
		return ShuffleNone
	}
}

// Enabled reports whether arrays of kind k are shuffled under m.
func (m ShuffleMask) Enabled(k Kind) bool {
	bit := ShuffleBitFor(k)
	return bit != ShuffleNone && m.Has(bit)
}
