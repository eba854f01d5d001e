// Package block turns the uncompressed byte stream of a serialized graph into
// compressed frames and back.
//
// The graph encoder writes into a Sink and the decoder reads from a Source;
// neither knows how the bytes are compressed. Two layouts exist:
//
//   - Block mode: the stream is cut into fixed-size blocks, each compressed
//     into its own frame. Blocks can be compressed and decompressed by a pool
//     of workers (see internal/pipeline).
//   - Streaming mode: the whole stream goes through one streaming compressor,
//     for destinations where the frame count cannot be patched or buffered.
//
// # Contiguous writes
//
// Headers are written with contiguous set. A contiguous write never straddles
// a block boundary: when less than BlockReserve bytes are left in the current
// block, the block is flushed first. Array and string payloads are written
// non-contiguous and fill blocks exactly, spanning as many as they need.
// Readers rely on this: Peek always returns a complete header.
//
// # Shuffling
//
// AppendShuffled and ReadShuffled apply the byte-shuffle filter on the way in
// and out. Whether a payload is shuffled is the caller's decision; both sides
// must agree.
package block
