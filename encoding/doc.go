// Package encoding implements the compact tag/header format that precedes
// every value in a qgraph stream.
//
// A header describes the kind of the value that follows and its length. The
// width of a header depends on the magnitude of the length:
//
//   - length < 32: one byte, the kind's 3 high bits OR'ed with the length
//   - length < 256: tag byte + uint8
//   - length < 65536: tag byte + uint16
//   - length < 2^32: tag byte + uint32
//   - otherwise: tag byte + uint64
//
// Kinds that do not fit in the short-form space (symbols, pair lists,
// closures, promises, dots lists, environments and references) use a two-byte
// lead-in: the extension marker followed by a sub-tag whose 2 high bits
// select the width of the trailing numeric field.
//
// Strings inside a string array carry their own header with a 2-bit encoding
// tag; a single 0x0F byte marks an NA string.
//
// Length fields are written in the byte order of the HeaderCodec's engine,
// which is the host's native order for everything the codec writes.
//
// Decoding never guesses: any byte pattern that is not part of the format is
// reported as an errs.FormatError.
package encoding
