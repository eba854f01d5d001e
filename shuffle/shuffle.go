package shuffle

import (
	"encoding/binary"
	"fmt"

	"github.com/arloliu/qgraph/errs"
)

// MinElements is the smallest element count worth shuffling. Shorter arrays
// are stored as-is.
const MinElements = 4

// ShouldShuffle reports whether an array of n elements goes through the filter.
func ShouldShuffle(n int) bool {
	return n >= MinElements
}

func checkArgs(dst, src []byte, width int) error {
	if width != 4 && width != 8 {
		return fmt.Errorf("%w: %d", errs.ErrUnsupportedWidth, width)
	}
	if len(dst) < len(src) {
		return fmt.Errorf("shuffle: destination too short: %d < %d", len(dst), len(src))
	}

	return nil
}

// Shuffle transposes src into byte-plane order in dst.
//
// Parameters:
//   - dst: destination, at least len(src) bytes; must not overlap src
//   - src: elements of width bytes, optionally followed by a partial element
//   - width: element width, 4 or 8
//
// Returns:
//   - error: ErrUnsupportedWidth for other widths, or a short destination
func Shuffle(dst, src []byte, width int) error {
	if err := checkArgs(dst, src, width); err != nil {
		return err
	}

	n := len(src) / width
	done := 0
	if width == 8 {
		done = shuffle8(dst, src, n)
	} else {
		done = shuffle4(dst, src, n)
	}
	shuffleTail(dst, src, width, n, done)
	copy(dst[n*width:len(src)], src[n*width:])

	return nil
}

// Unshuffle restores element order from a byte-plane layout produced by Shuffle.
func Unshuffle(dst, src []byte, width int) error {
	if err := checkArgs(dst, src, width); err != nil {
		return err
	}

	n := len(src) / width
	done := 0
	if width == 8 {
		done = unshuffle8(dst, src, n)
	} else {
		done = unshuffle4(dst, src, n)
	}
	unshuffleTail(dst, src, width, n, done)
	copy(dst[n*width:len(src)], src[n*width:])

	return nil
}

// ShuffleScalar is the element-at-a-time reference implementation of Shuffle.
func ShuffleScalar(dst, src []byte, width int) error {
	if err := checkArgs(dst, src, width); err != nil {
		return err
	}

	n := len(src) / width
	shuffleTail(dst, src, width, n, 0)
	copy(dst[n*width:len(src)], src[n*width:])

	return nil
}

// UnshuffleScalar is the element-at-a-time reference implementation of Unshuffle.
func UnshuffleScalar(dst, src []byte, width int) error {
	if err := checkArgs(dst, src, width); err != nil {
		return err
	}

	n := len(src) / width
	unshuffleTail(dst, src, width, n, 0)
	copy(dst[n*width:len(src)], src[n*width:])

	return nil
}

func shuffleTail(dst, src []byte, width, n, from int) {
	for plane := 0; plane < width; plane++ {
		out := dst[plane*n : (plane+1)*n]
		for i := from; i < n; i++ {
			out[i] = src[i*width+plane]
		}
	}
}

func unshuffleTail(dst, src []byte, width, n, from int) {
	for plane := 0; plane < width; plane++ {
		in := src[plane*n : (plane+1)*n]
		for i := from; i < n; i++ {
			dst[i*width+plane] = in[i]
		}
	}
}

// transpose8x8 transposes an 8x8 byte matrix held as eight little-endian
// rows: on return byte i of r[j] is what byte j of r[i] was.
func transpose8x8(r *[8]uint64) {
	const (
		m1 = 0x00FF00FF00FF00FF
		m2 = 0x0000FFFF0000FFFF
		m4 = 0x00000000FFFFFFFF
	)
	for i := 0; i < 8; i += 2 {
		t := ((r[i] >> 8) ^ r[i+1]) & m1
		r[i+1] ^= t
		r[i] ^= t << 8
	}
	for _, i := range [4]int{0, 1, 4, 5} {
		t := ((r[i] >> 16) ^ r[i+2]) & m2
		r[i+2] ^= t
		r[i] ^= t << 16
	}
	for i := 0; i < 4; i++ {
		t := ((r[i] >> 32) ^ r[i+4]) & m4
		r[i+4] ^= t
		r[i] ^= t << 32
	}
}

// transpose4x4 is the 32-bit analogue of transpose8x8.
func transpose4x4(r *[4]uint32) {
	const (
		m1 = 0x00FF00FF
		m2 = 0x0000FFFF
	)
	for i := 0; i < 4; i += 2 {
		t := ((r[i] >> 8) ^ r[i+1]) & m1
		r[i+1] ^= t
		r[i] ^= t << 8
	}
	for i := 0; i < 2; i++ {
		t := ((r[i] >> 16) ^ r[i+2]) & m2
		r[i+2] ^= t
		r[i] ^= t << 16
	}
}

// shuffle8 handles whole groups of 8 elements and returns how many elements it consumed.
func shuffle8(dst, src []byte, n int) int {
	le := binary.LittleEndian
	var rows [8]uint64
	i := 0
	for ; i+8 <= n; i += 8 {
		base := i * 8
		for k := range rows {
			rows[k] = le.Uint64(src[base+k*8:])
		}
		transpose8x8(&rows)
		for plane := range rows {
			le.PutUint64(dst[plane*n+i:], rows[plane])
		}
	}

	return i
}

func unshuffle8(dst, src []byte, n int) int {
	le := binary.LittleEndian
	var rows [8]uint64
	i := 0
	for ; i+8 <= n; i += 8 {
		for plane := range rows {
			rows[plane] = le.Uint64(src[plane*n+i:])
		}
		transpose8x8(&rows)
		base := i * 8
		for k := range rows {
			le.PutUint64(dst[base+k*8:], rows[k])
		}
	}

	return i
}

// shuffle4 handles whole groups of 4 elements and returns how many elements it consumed.
func shuffle4(dst, src []byte, n int) int {
	le := binary.LittleEndian
	var rows [4]uint32
	i := 0
	for ; i+4 <= n; i += 4 {
		base := i * 4
		for k := range rows {
			rows[k] = le.Uint32(src[base+k*4:])
		}
		transpose4x4(&rows)
		for plane := range rows {
			le.PutUint32(dst[plane*n+i:], rows[plane])
		}
	}

	return i
}

func unshuffle4(dst, src []byte, n int) int {
	le := binary.LittleEndian
	var rows [4]uint32
	i := 0
	for ; i+4 <= n; i += 4 {
		for plane := range rows {
			rows[plane] = le.Uint32(src[plane*n+i:])
		}
		transpose4x4(&rows)
		base := i * 4
		for k := range rows {
			le.PutUint32(dst[base+k*4:], rows[k])
		}
	}

	return i
}
