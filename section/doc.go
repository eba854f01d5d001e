// Package section defines the fixed binary sections of a serialized graph:
// the metadata header, the frame count, frame length prefixes and the
// checksum trailer.
//
// # File Structure
//
// A counted (block mode) file:
//
//	┌──────────────────────────────────────────────────────┐
//	│ Metadata (4 bytes)                                   │
//	│  - version                                           │
//	│  - log2(block size) | streaming<<6 | checksum<<7     │
//	│  - shuffle mask | algorithm<<4                       │
//	│  - endian flag (1 = big-endian producer)             │
//	├──────────────────────────────────────────────────────┤
//	│ Frame count (8 bytes, little-endian)                 │
//	├──────────────────────────────────────────────────────┤
//	│ Frame × count                                        │
//	│  - length (4 bytes, little-endian)                   │
//	│  - compressed block (length bytes)                   │
//	├──────────────────────────────────────────────────────┤
//	│ Checksum (4 bytes, little-endian, optional)          │
//	└──────────────────────────────────────────────────────┘
//
// A streaming file replaces the frame count and frames with a single stream
// produced by the algorithm's streaming compressor.
//
// Every block decompresses to at most the block size recorded in the
// metadata; only the last block may be shorter.
package section
