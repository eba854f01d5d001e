// Package qgraph serializes object graphs into a compact block-compressed
// binary format.
//
// A graph is built from *graph.Node values: primitive arrays, string arrays,
// lists, symbols, pair lists, closures, promises, opaque blobs and
// environments. Environments keep their identity: one reached several times,
// or from inside its own frame, is written once and read back as a single
// shared node.
//
// # Core Features
//
//   - Compact one-byte headers for short arrays and lists
//   - Byte-shuffle filter for numeric, integer, logical and complex arrays
//   - Block compression with zstd, LZ4, LZ4HC, S2 or none
//   - Multi-threaded compression and decompression with output identical to
//     the single-threaded path
//   - Optional streaming layout for pipes and sockets
//   - xxHash64 based checksum trailer with strict or lenient verification
//
// # Basic Usage
//
//	root := graph.List(graph.Numeric(1, 2, 3), graph.Strings(graph.Str("x")))
//	root.SetAttr("names", graph.Strings(graph.Str("a"), graph.Str("b")))
//
//	data, err := qgraph.Marshal(root,
//	    graph.WithAlgorithm(format.CompressionZstd),
//	    graph.WithThreads(4),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	back, err := qgraph.Unmarshal(data)
//
// # Package Structure
//
// This package wraps the graph package for the common cases. Use graph
// directly for encoder and decoder statistics, and block for raw access to
// the uncompressed stream.
package qgraph

import (
	"bytes"
	"io"

	"github.com/arloliu/qgraph/graph"
	"github.com/arloliu/qgraph/shuffle"
)

// Write encodes root to w.
//
// Parameters:
//   - w: destination; an io.WriteSeeker such as *os.File avoids buffering
//     the frames until the frame count is known
//   - root: graph to write; nil writes a Null node
//   - opts: write options, see graph.WithAlgorithm and friends
//
// Returns an error when an option is invalid, the graph cannot be
// represented (nothing is written in that case), or w fails.
func Write(w io.Writer, root *graph.Node, opts ...graph.EncoderOption) error {
	enc, err := graph.NewEncoder(w, opts...)
	if err != nil {
		return err
	}

	return enc.Encode(root)
}

// Marshal returns the encoding of root.
func Marshal(root *graph.Node, opts ...graph.EncoderOption) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, root, opts...); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Read decodes one graph from r. The compression algorithm, block size,
// shuffle mask and layout are taken from the input's metadata header.
//
// Example:
//
//	f, _ := os.Open("session.qg")
//	defer f.Close()
//	root, err := qgraph.Read(f, graph.WithReadThreads(4), graph.WithStrictChecksum(true))
func Read(r io.Reader, opts ...graph.DecoderOption) (*graph.Node, error) {
	dec, err := graph.NewDecoder(r, opts...)
	if err != nil {
		return nil, err
	}

	return dec.Decode()
}

// Unmarshal decodes the graph encoded in data.
func Unmarshal(data []byte, opts ...graph.DecoderOption) (*graph.Node, error) {
	return Read(bytes.NewReader(data), opts...)
}

// DumpBlocks returns the decompressed blocks of r for inspection. Streaming
// input yields one block holding the whole stream.
func DumpBlocks(r io.Reader, opts ...graph.DecoderOption) ([][]byte, error) {
	return graph.DumpBlocks(r, opts...)
}

// CheckCapabilities reports the vector support of the running host.
func CheckCapabilities() shuffle.Capabilities {
	return shuffle.CheckCapabilities()
}
