//go:build cgo && gozstd

package compress

import (
	"fmt"

	"github.com/valyala/gozstd"
)

// Compress appends the zstd frame of src to dst using libzstd.
func (c ZstdCompressor) Compress(dst, src []byte) ([]byte, error) {
	if len(src) == 0 {
		return dst, nil
	}
	return gozstd.CompressLevel(dst, src, c.level), nil
}

// Decompress decodes a zstd frame into dst using libzstd.
func (c ZstdCompressor) Decompress(dst, src []byte) (int, error) {
	if len(src) == 0 {
		return 0, nil
	}
	out, err := gozstd.Decompress(dst[:0:len(dst)], src)
	if err != nil {
		return 0, fmt.Errorf("zstd decompression failed: %w", err)
	}
	if len(out) > len(dst) {
		return 0, fmt.Errorf("zstd: %w: %d > %d", ErrShortBuffer, len(out), len(dst))
	}

	return len(out), nil
}
