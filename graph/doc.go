// Package graph walks object graphs to and from the qgraph wire format.
//
// A graph is a tree of *Node values in which environments may be shared and
// may refer back to themselves. The Encoder writes each node as a header
// followed by its payload; an environment reached a second time is written
// as a reference to its first occurrence. The Decoder rebuilds the graph and
// resolves those references to a single *Node.
//
// # Writing
//
//	enc, err := graph.NewEncoder(f,
//	    graph.WithAlgorithm(format.CompressionZstd),
//	    graph.WithThreads(4),
//	)
//	if err != nil {
//	    return err
//	}
//	err = enc.Encode(graph.List(graph.Numeric(1, 2, 3), graph.Strings(graph.Str("x"))))
//
// # Reading
//
//	dec, err := graph.NewDecoder(f, graph.WithReadThreads(4))
//	if err != nil {
//	    return err
//	}
//	root, err := dec.Decode()
//
// Primitive arrays are written in host byte order. Reading input produced on
// a host of the other byte order fails with errs.ErrEndiannessMismatch.
package graph
