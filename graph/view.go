package graph

import "unsafe"

// Element widths on the wire, in bytes.
const (
	realWidth    = 8
	intWidth     = 4
	complexWidth = 16
	// complexes are shuffled as pairs of float64
	complexShuffleWidth = 8
)

// byteView returns the memory of s as bytes in host order. Arrays are
// written in host order; the metadata records it and readers on the other
// byte order refuse the input.
func byteView[T byte | int32 | float64 | complex128](s []T) []byte {
	if len(s) == 0 {
		return nil
	}

	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*int(unsafe.Sizeof(s[0])))
}

// stringView returns the bytes of s without copying. The result must not be
// modified.
func stringView(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
