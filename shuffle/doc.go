// Package shuffle implements the byte-transpose filter applied to fixed-width
// numeric arrays before compression.
//
// An array of n elements of width w bytes is rearranged into w byte planes:
//
//	dst[plane*n + i] = src[i*w + plane]
//
// so that the most significant bytes of slowly varying values end up next to
// each other, which general-purpose compressors exploit much better than the
// interleaved layout. For example with w=4:
//
//	src: [a0 a1 a2 a3][b0 b1 b2 b3][c0 c1 c2 c3]
//	dst: [a0 b0 c0][a1 b1 c1][a2 b2 c2][a3 b3 c3]
//
// Trailing bytes that do not form a whole element are copied through
// unchanged by both Shuffle and Unshuffle.
//
// Two implementations are provided. Shuffle and Unshuffle transpose groups of
// elements inside 64-bit words and fall back to an element-at-a-time loop for
// the tail. ShuffleScalar and UnshuffleScalar are the plain reference loops.
// Both produce identical output for every input.
package shuffle
