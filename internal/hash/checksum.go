// Package hash computes the trailing checksum of a serialized stream.
package hash

import "github.com/cespare/xxhash/v2"

// Checksum is a running checksum over the uncompressed stream: the low 32
// bits of its xxHash64. Bytes must be written in stream order.
type Checksum struct {
	d *xxhash.Digest
}

// NewChecksum returns an empty running checksum.
func NewChecksum() *Checksum {
	return &Checksum{d: xxhash.New()}
}

// Write adds p to the checksum. It never fails.
func (c *Checksum) Write(p []byte) (int, error) {
	return c.d.Write(p)
}

// Sum32 returns the checksum of everything written so far.
func (c *Checksum) Sum32() uint32 {
	return uint32(c.d.Sum64()) //nolint:gosec
}

// Reset clears the checksum.
func (c *Checksum) Reset() {
	c.d.Reset()
}

// Sum32 returns the checksum of data in one call.
func Sum32(data []byte) uint32 {
	return uint32(xxhash.Sum64(data)) //nolint:gosec
}
