// Package endian provides byte order utilities for the qgraph wire format.
//
// Array payloads and header length fields are written in the producer's
// native byte order; the metadata header records which order that was, and a
// consumer on a host with the opposite order refuses the input instead of
// byte-swapping. Frame lengths and the frame count are always little-endian.
//
// # Basic Usage
//
//	engine := endian.Native()
//	buf = engine.AppendUint32(buf, length)
//
// # Thread Safety
//
// All functions in this package are safe for concurrent use. The returned
// EndianEngine values are immutable and stateless.
package endian

import (
	"encoding/binary"
	"unsafe"
)

// EndianEngine combines ByteOrder and AppendByteOrder from encoding/binary
// into a single interface.
//
// binary.LittleEndian and binary.BigEndian both satisfy it.
type EndianEngine interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

var nativeBigEndian = detectBigEndian()

// detectBigEndian inspects the in-memory layout of a known 16-bit value.
func detectBigEndian() bool {
	// 0x0100 is 256: a big-endian host stores the 0x01 byte first.
	var i uint16 = 0x0100
	b := (*[2]byte)(unsafe.Pointer(&i))

	return b[0] == 0x01
}

// IsNativeBigEndian reports whether the host stores multi-byte values big-endian first.
func IsNativeBigEndian() bool {
	return nativeBigEndian
}

// IsNativeLittleEndian reports whether the host stores multi-byte values little-endian first.
func IsNativeLittleEndian() bool {
	return !nativeBigEndian
}

// Native returns the engine matching the host byte order.
func Native() EndianEngine {
	if nativeBigEndian {
		return binary.BigEndian
	}

	return binary.LittleEndian
}

// Flag returns the metadata endian byte for the host: 1 for big-endian, 0 otherwise.
func Flag() uint8 {
	if nativeBigEndian {
		return 1
	}

	return 0
}

// MatchesNative reports whether a metadata endian byte was produced on a host
// with the same byte order as this one.
func MatchesNative(flag uint8) bool {
	return (flag != 0) == nativeBigEndian
}

// GetLittleEndianEngine returns the little-endian engine used for frame fields.
func GetLittleEndianEngine() EndianEngine {
	return binary.LittleEndian
}
