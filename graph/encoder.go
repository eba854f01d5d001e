package graph

import (
	"fmt"
	"io"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/arloliu/qgraph/block"
	"github.com/arloliu/qgraph/compress"
	"github.com/arloliu/qgraph/encoding"
	"github.com/arloliu/qgraph/errs"
	"github.com/arloliu/qgraph/format"
	"github.com/arloliu/qgraph/internal/options"
	"github.com/arloliu/qgraph/shuffle"
)

// EncodeStats describes one Encode call.
type EncodeStats struct {
	compress.CompressionStats
	// Nodes is the number of nodes written, counting each environment once
	Nodes uint64
	// Environments is the number of distinct environments written
	Environments uint64
	// References is the number of back-references to environments
	References uint64
}

// Encoder writes one object graph to an io.Writer.
//
// Note: an Encoder is NOT reusable. Create a new one for every graph.
type Encoder struct {
	w     io.Writer
	cfg   *EncoderConfig
	codec encoding.HeaderCodec
	out   block.Output
	hdr   []byte
	refs  map[*Node]uint32
	used  bool
	stats EncodeStats
}

// NewEncoder creates an encoder writing to w.
//
// Parameters:
//   - w: destination; an io.WriteSeeker lets counted output be written
//     without buffering the frames
//   - opts: write options (WithAlgorithm, WithThreads, ...)
//
// Returns:
//   - *Encoder: encoder ready for Encode
//   - error: an invalid option
func NewEncoder(w io.Writer, opts ...EncoderOption) (*Encoder, error) {
	cfg := NewEncoderConfig()
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &Encoder{
		w:     w,
		cfg:   cfg,
		codec: encoding.NativeHeaderCodec(),
		hdr:   make([]byte, 0, encoding.MaxHeaderSize),
		refs:  make(map[*Node]uint32),
	}, nil
}

// Encode validates root and writes it with its metadata header, frames and
// checksum trailer. Nothing is written when validation fails.
func (e *Encoder) Encode(root *Node) (err error) {
	if e.used {
		return fmt.Errorf("%w: encoder already used", errs.ErrClosed)
	}
	e.used = true

	if err := validate(root, e.cfg.maxDepth); err != nil {
		return err
	}

	e.out, err = block.NewOutput(e.w, e.cfg.writerConfig())
	if err != nil {
		return err
	}

	if err := e.writeNode(root); err != nil {
		return multierr.Append(err, e.out.Close())
	}
	if err := e.out.Close(); err != nil {
		return err
	}

	e.stats.CompressionStats = e.out.Stats()
	e.cfg.logger.Debug("graph encoded",
		zap.Stringer("algorithm", e.cfg.algorithm),
		zap.Uint64("nodes", e.stats.Nodes),
		zap.Uint64("environments", e.stats.Environments),
		zap.Uint64("blocks", e.stats.Blocks),
		zap.Int64("bytes", e.stats.OriginalSize),
		zap.Int64("compressed", e.stats.CompressedSize),
	)

	return nil
}

// Stats returns what the last Encode wrote.
func (e *Encoder) Stats() EncodeStats {
	return e.stats
}

func (e *Encoder) header(tag encoding.Tag, length uint64) error {
	var err error
	if e.hdr, err = e.codec.AppendHeader(e.hdr[:0], tag, length); err != nil {
		return err
	}

	return e.out.Append(e.hdr, true)
}

func (e *Encoder) extension(h encoding.Header) error {
	var err error
	if e.hdr, err = e.codec.AppendExtension(e.hdr[:0], h); err != nil {
		return err
	}

	return e.out.Append(e.hdr, true)
}

func (e *Encoder) str(s string, enc format.StringEncoding) error {
	var err error
	if e.hdr, err = e.codec.AppendStringHeader(e.hdr[:0], enc, uint64(len(s))); err != nil {
		return err
	}
	if err := e.out.Append(e.hdr, true); err != nil {
		return err
	}
	if len(s) == 0 {
		return nil
	}

	return e.out.Append(stringView(s), false)
}

func (e *Encoder) writeNode(n *Node) error {
	e.stats.Nodes++

	if n.IsNull() {
		return e.header(encoding.TagNull, 0)
	}
	if n.Kind == format.KindEnvironment {
		return e.writeEnvironment(n)
	}

	if len(n.Attributes) > 0 {
		if err := e.header(encoding.TagAttributes, uint64(len(n.Attributes))); err != nil {
			return err
		}
	}
	if err := e.writeBody(n); err != nil {
		return err
	}

	return e.writeAttributes(n.Attributes)
}

func (e *Encoder) writeAttributes(attrs []Attribute) error {
	for _, a := range attrs {
		if err := e.str(a.Name, format.EncodingUTF8); err != nil {
			return err
		}
		if err := e.writeNode(a.Value); err != nil {
			return err
		}
	}

	return nil
}

func (e *Encoder) writeBody(n *Node) error {
	switch n.Kind { //nolint: exhaustive
	case format.KindNumeric:
		return e.writeArray(encoding.TagNumeric, n.Kind, byteView(n.Reals), len(n.Reals), realWidth)
	case format.KindInteger:
		return e.writeArray(encoding.TagInteger, n.Kind, byteView(n.Ints), len(n.Ints), intWidth)
	case format.KindLogical:
		return e.writeArray(encoding.TagLogical, n.Kind, byteView(n.Ints), len(n.Ints), intWidth)
	case format.KindComplex:
		return e.writeArray(encoding.TagComplex, n.Kind, byteView(n.Complexes), len(n.Complexes), complexShuffleWidth)
	case format.KindRaw:
		return e.writeBytes(encoding.TagRaw, n.Bytes)
	case format.KindOpaque:
		return e.writeBytes(encoding.TagOpaque, n.Bytes)
	case format.KindString:
		return e.writeStrings(n.Strings)
	case format.KindList:
		if err := e.header(encoding.TagList, uint64(len(n.Children))); err != nil {
			return err
		}
		for _, c := range n.Children {
			if err := e.writeNode(c); err != nil {
				return err
			}
		}

		return nil
	case format.KindSymbol:
		if err := e.extension(encoding.Header{Tag: encoding.TagSymbol}); err != nil {
			return err
		}

		return e.str(n.Name, format.EncodingUTF8)
	case format.KindPair, format.KindLang, format.KindDots:
		return e.writePairList(n)
	case format.KindClosure, format.KindPromise:
		if err := e.extension(encoding.Header{Tag: tagOfKind(n.Kind), Flags: n.Flags}); err != nil {
			return err
		}

		return e.writeComponents(n)
	default:
		return fmt.Errorf("%w: unknown kind %d", errs.ErrInvalidNode, n.Kind)
	}
}

// writeArray writes a primitive array, through the shuffle filter when the
// mask enables its kind and the array is long enough to benefit.
func (e *Encoder) writeArray(tag encoding.Tag, kind format.Kind, data []byte, n int, width int) error {
	if err := e.header(tag, uint64(n)); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	if e.cfg.shuffle.Enabled(kind) && shuffle.ShouldShuffle(n) {
		return e.out.AppendShuffled(data, width)
	}

	return e.out.Append(data, false)
}

func (e *Encoder) writeBytes(tag encoding.Tag, b []byte) error {
	if err := e.header(tag, uint64(len(b))); err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}

	return e.out.Append(b, false)
}

func (e *Encoder) writeStrings(strs []String) error {
	if err := e.header(encoding.TagString, uint64(len(strs))); err != nil {
		return err
	}

	for _, s := range strs {
		if s.NA {
			e.hdr = e.codec.AppendNAString(e.hdr[:0])
			if err := e.out.Append(e.hdr, true); err != nil {
				return err
			}

			continue
		}
		if err := e.str(s.Value, s.Encoding); err != nil {
			return err
		}
	}

	return nil
}

func (e *Encoder) writePairList(n *Node) error {
	h := encoding.Header{Tag: tagOfKind(n.Kind), Length: uint64(len(n.Children)), Flags: n.Flags}
	if err := e.extension(h); err != nil {
		return err
	}

	for i, c := range n.Children {
		if err := e.writeNode(n.Tag(i)); err != nil {
			return err
		}
		if err := e.writeNode(c); err != nil {
			return err
		}
	}

	return nil
}

func (e *Encoder) writeComponents(n *Node) error {
	for i := range 3 {
		if err := e.writeNode(n.Component(i)); err != nil {
			return err
		}
	}

	return nil
}

// writeEnvironment writes a back-reference to an environment seen earlier,
// or registers n and writes its components followed by its attribute block.
// Registration comes first so frames that refer back to n terminate.
func (e *Encoder) writeEnvironment(n *Node) error {
	if idx, ok := e.refs[n]; ok {
		e.stats.References++
		return e.extension(encoding.Header{Tag: encoding.TagReference, Length: uint64(idx)})
	}

	idx := uint32(len(e.refs) + 1)
	e.refs[n] = idx
	e.stats.Environments++

	if err := e.extension(encoding.Header{Tag: encoding.TagEnvironment, Length: uint64(idx), Locked: n.Locked}); err != nil {
		return err
	}
	if err := e.writeComponents(n); err != nil {
		return err
	}
	if err := e.header(encoding.TagAttributes, uint64(len(n.Attributes))); err != nil {
		return err
	}

	return e.writeAttributes(n.Attributes)
}

var kindTags = map[format.Kind]encoding.Tag{
	format.KindPair:    encoding.TagPair,
	format.KindLang:    encoding.TagLang,
	format.KindDots:    encoding.TagDots,
	format.KindClosure: encoding.TagClosure,
	format.KindPromise: encoding.TagPromise,
}

func tagOfKind(k format.Kind) encoding.Tag {
	return kindTags[k]
}
