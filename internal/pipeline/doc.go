// Package pipeline runs block compression and decompression on a fixed pool
// of worker goroutines while keeping blocks in order.
//
// # Write side
//
// Compressor hands out the input buffer of worker k mod N for block k. The
// caller fills it and pushes it back; the worker compresses it and writes the
// frame once every earlier frame is written. A turn token circulating through
// the worker ring enforces the order, so frames leave in submission order
// whatever order compression finishes in.
//
// # Read side
//
// Decompressor workers take turns reading frames from the shared input, then
// decompress them into one of two alternating buffers. The caller asks for
// blocks in order; an OrderedCounter tells it when block k is complete without
// taking a lock.
//
// # Errors
//
// Workers run under an errgroup. The first failure cancels the group's
// context, every blocked worker and the caller observe the cancellation, and
// the original error is returned from the next call on the pipeline.
package pipeline
