package graph

import (
	"errors"
	"fmt"
	"io"
	"math"
	"slices"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/arloliu/qgraph/block"
	"github.com/arloliu/qgraph/encoding"
	"github.com/arloliu/qgraph/errs"
	"github.com/arloliu/qgraph/format"
	"github.com/arloliu/qgraph/internal/options"
	"github.com/arloliu/qgraph/shuffle"
)

// DecodeStats describes one Decode call.
type DecodeStats struct {
	block.ReadStats
	// Nodes is the number of nodes materialized
	Nodes uint64
	// Environments is the number of distinct environments read
	Environments uint64
	// References is the number of resolved back-references
	References uint64
}

const (
	// preallocLimit caps the capacity reserved from an untrusted length.
	preallocLimit = 1 << 16
	// chunkSize is the growth step of arrays read from unbounded input.
	chunkSize = 1 << 20
)

// Decoder reads one object graph from an io.Reader.
//
// Note: a Decoder is NOT reusable. Create a new one for every input.
type Decoder struct {
	r       io.Reader
	cfg     *DecoderConfig
	codec   encoding.HeaderCodec
	in      block.Input
	shuffle format.ShuffleMask
	refs    []*Node
	buf     []byte
	depth   int
	used    bool
	stats   DecodeStats
}

// NewDecoder creates a decoder reading from r.
func NewDecoder(r io.Reader, opts ...DecoderOption) (*Decoder, error) {
	cfg := NewDecoderConfig()
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	return &Decoder{
		r:     r,
		cfg:   cfg,
		codec: encoding.NativeHeaderCodec(),
	}, nil
}

// Decode reads the metadata header and the root node, then checks that the
// input ends exactly after the root and its checksum trailer.
//
// A checksum mismatch is returned as *errs.ChecksumMismatchError under
// WithStrictChecksum. Otherwise it is logged, the graph is returned and
// Stats().ChecksumMismatch is set.
func (d *Decoder) Decode() (root *Node, err error) {
	if d.used {
		return nil, fmt.Errorf("%w: decoder already used", errs.ErrClosed)
	}
	d.used = true

	in, err := block.Open(d.r, d.cfg.readerConfig())
	if err != nil {
		return nil, err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(in))

	d.in = in
	d.shuffle = in.Metadata().Shuffle

	root, err = d.readNode()
	if err != nil {
		return nil, err
	}

	stats, err := in.Finish()
	d.stats.ReadStats = stats
	if err != nil {
		var mismatch *errs.ChecksumMismatchError
		if !errors.As(err, &mismatch) || d.cfg.strictChecksum {
			return nil, err
		}
		d.cfg.logger.Warn("checksum mismatch, decoded graph may be corrupt",
			zap.Uint32("stored", mismatch.Stored),
			zap.Uint32("computed", mismatch.Computed),
		)
	}

	d.cfg.logger.Debug("graph decoded",
		zap.Uint64("nodes", d.stats.Nodes),
		zap.Uint64("environments", d.stats.Environments),
		zap.Uint64("blocks", d.stats.Blocks),
		zap.Uint64("direct_blocks", d.stats.DirectBlocks),
		zap.Int64("bytes", d.stats.Bytes),
	)

	return root, nil
}

// Stats returns what the last Decode read.
func (d *Decoder) Stats() DecodeStats {
	return d.stats
}

func (d *Decoder) readHeader() (encoding.Header, error) {
	b, err := d.in.Peek()
	if err != nil {
		return encoding.Header{}, err
	}

	h, n, err := d.codec.DecodeHeader(b)
	if err != nil {
		return encoding.Header{}, err
	}
	d.in.Discard(n)

	return h, nil
}

func (d *Decoder) readString() (String, error) {
	b, err := d.in.Peek()
	if err != nil {
		return String{}, err
	}

	h, n, err := d.codec.DecodeStringHeader(b)
	if err != nil {
		return String{}, err
	}
	d.in.Discard(n)

	if h.NA {
		return NA(), nil
	}
	if h.Length == 0 {
		return String{Encoding: h.Encoding}, nil
	}

	size := int(h.Length)
	if size > chunkSize {
		b, err := readArray[byte](d, format.KindRaw, uint64(h.Length), 1, 1)
		if err != nil {
			return String{}, err
		}

		return String{Value: string(b), Encoding: h.Encoding}, nil
	}
	if cap(d.buf) < size {
		d.buf = make([]byte, size)
	}
	if err := d.in.ReadFull(d.buf[:size]); err != nil {
		return String{}, err
	}

	return String{Value: string(d.buf[:size]), Encoding: h.Encoding}, nil
}

// count converts a header length to an int, refusing lengths that cannot
// fit in the remaining input when each element needs at least width bytes.
func (d *Decoder) count(length uint64, width uint64, what string) (int, error) {
	if length > math.MaxInt/width {
		return 0, errs.NewFormatError("%s length %d is not addressable", what, length)
	}
	if rem := d.in.Remaining(); rem >= 0 && length*width > uint64(rem) {
		return 0, errs.NewFormatError("%s length %d exceeds the %d bytes left in the input", what, length, rem)
	}

	return int(length), nil
}

func (d *Decoder) readNode() (*Node, error) {
	if d.depth >= d.cfg.maxDepth {
		return nil, errs.NewFormatError("nesting deeper than %d", d.cfg.maxDepth)
	}
	d.depth++
	defer func() { d.depth-- }()

	h, err := d.readHeader()
	if err != nil {
		return nil, err
	}
	d.stats.Nodes++

	switch h.Tag { //nolint: exhaustive
	case encoding.TagNull:
		return Null(), nil
	case encoding.TagEnvironment:
		return d.readEnvironment(h)
	case encoding.TagReference:
		if h.Length == 0 || h.Length > uint64(len(d.refs)) {
			return nil, errs.NewFormatError("reference %d out of range, %d environments read", h.Length, len(d.refs))
		}
		d.stats.References++

		return d.refs[h.Length-1], nil
	case encoding.TagAttributes:
		return d.readAttributed(h.Length)
	default:
		return d.readBody(h)
	}
}

// readAttributed reads the node that follows an attribute count header and
// then its attributes.
func (d *Decoder) readAttributed(count uint64) (*Node, error) {
	h, err := d.readHeader()
	if err != nil {
		return nil, err
	}

	switch h.Tag { //nolint: exhaustive
	case encoding.TagNull, encoding.TagSymbol, encoding.TagAttributes, encoding.TagEnvironment, encoding.TagReference:
		return nil, errs.NewFormatError("attribute header followed by %s", h.Tag)
	}

	n, err := d.readBody(h)
	if err != nil {
		return nil, err
	}
	if err := d.readAttributes(n, count); err != nil {
		return nil, err
	}

	return n, nil
}

func (d *Decoder) readAttributes(n *Node, count uint64) error {
	if count == 0 {
		return nil
	}

	size, err := d.count(count, 2, "attribute")
	if err != nil {
		return err
	}

	n.Attributes = make([]Attribute, 0, min(size, preallocLimit))
	for range size {
		name, err := d.readString()
		if err != nil {
			return err
		}
		if name.NA {
			return errs.NewFormatError("missing attribute name")
		}
		value, err := d.readNode()
		if err != nil {
			return err
		}
		n.Attributes = append(n.Attributes, Attribute{Name: name.Value, Value: value})
	}
	n.Classed = hasClass(n.Attributes)

	return nil
}

func (d *Decoder) readBody(h encoding.Header) (*Node, error) {
	switch h.Tag { //nolint: exhaustive
	case encoding.TagNumeric:
		reals, err := readArray[float64](d, format.KindNumeric, h.Length, realWidth, realWidth)
		if err != nil {
			return nil, err
		}

		return &Node{Kind: format.KindNumeric, Reals: reals}, nil
	case encoding.TagInteger, encoding.TagLogical:
		kind := format.KindInteger
		if h.Tag == encoding.TagLogical {
			kind = format.KindLogical
		}
		ints, err := readArray[int32](d, kind, h.Length, intWidth, intWidth)
		if err != nil {
			return nil, err
		}

		return &Node{Kind: kind, Ints: ints}, nil
	case encoding.TagComplex:
		cplx, err := readArray[complex128](d, format.KindComplex, h.Length, complexWidth, complexShuffleWidth)
		if err != nil {
			return nil, err
		}

		return &Node{Kind: format.KindComplex, Complexes: cplx}, nil
	case encoding.TagRaw, encoding.TagOpaque:
		kind := format.KindRaw
		if h.Tag == encoding.TagOpaque {
			kind = format.KindOpaque
		}
		b, err := readArray[byte](d, kind, h.Length, 1, 1)
		if err != nil {
			return nil, err
		}

		return &Node{Kind: kind, Bytes: b}, nil
	case encoding.TagString:
		return d.readStrings(h.Length)
	case encoding.TagList:
		size, err := d.count(h.Length, 1, "list")
		if err != nil {
			return nil, err
		}
		n := &Node{Kind: format.KindList, Children: make([]*Node, 0, min(size, preallocLimit))}
		for range size {
			c, err := d.readNode()
			if err != nil {
				return nil, err
			}
			n.Children = append(n.Children, c)
		}

		return n, nil
	case encoding.TagSymbol:
		name, err := d.readString()
		if err != nil {
			return nil, err
		}
		if name.NA {
			return nil, errs.NewFormatError("missing symbol name")
		}

		return Symbol(name.Value), nil
	case encoding.TagPair, encoding.TagLang, encoding.TagDots:
		return d.readPairList(h)
	case encoding.TagClosure, encoding.TagPromise:
		kind := format.KindClosure
		if h.Tag == encoding.TagPromise {
			kind = format.KindPromise
		}
		n := &Node{Kind: kind, Flags: h.Flags}

		return n, d.readComponents(n)
	default:
		return nil, errs.NewFormatError("unexpected %s header", h.Tag)
	}
}

func (d *Decoder) readStrings(length uint64) (*Node, error) {
	size, err := d.count(length, 1, "string array")
	if err != nil {
		return nil, err
	}

	n := &Node{Kind: format.KindString, Strings: make([]String, 0, min(size, preallocLimit))}
	for range size {
		str, err := d.readString()
		if err != nil {
			return nil, err
		}
		n.Strings = append(n.Strings, str)
	}

	return n, nil
}

var pairKinds = map[encoding.Tag]format.Kind{
	encoding.TagPair: format.KindPair,
	encoding.TagLang: format.KindLang,
	encoding.TagDots: format.KindDots,
}

// readPairList reads tag/value pairs. Tags stays nil while every element is
// untagged.
func (d *Decoder) readPairList(h encoding.Header) (*Node, error) {
	size, err := d.count(h.Length, 2, "pair list")
	if err != nil {
		return nil, err
	}

	n := &Node{Kind: pairKinds[h.Tag], Flags: h.Flags, Children: make([]*Node, 0, min(size, preallocLimit))}
	for i := range size {
		tag, err := d.readNode()
		if err != nil {
			return nil, err
		}
		if !tag.IsNull() {
			if tag.Kind != format.KindSymbol {
				return nil, errs.NewFormatError("%s tag is a %s", n.Kind, tag.Kind)
			}
			if n.Tags == nil {
				n.Tags = make([]*Node, i, max(i, min(size, preallocLimit)))
			}
		}
		if n.Tags != nil {
			n.Tags = append(n.Tags, tag)
		}

		value, err := d.readNode()
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, value)
	}

	return n, nil
}

func (d *Decoder) readComponents(n *Node) error {
	n.Children = make([]*Node, 3)
	for i := range n.Children {
		c, err := d.readNode()
		if err != nil {
			return err
		}
		n.Children[i] = c
	}

	return nil
}

// readEnvironment registers the environment before reading its components
// so references from inside its frame resolve to it.
func (d *Decoder) readEnvironment(h encoding.Header) (*Node, error) {
	if h.Length != uint64(len(d.refs))+1 {
		return nil, errs.NewFormatError("environment index %d, expected %d", h.Length, len(d.refs)+1)
	}

	n := &Node{Kind: format.KindEnvironment, Locked: h.Locked}
	d.refs = append(d.refs, n)
	d.stats.Environments++

	if err := d.readComponents(n); err != nil {
		return nil, err
	}

	ah, err := d.readHeader()
	if err != nil {
		return nil, err
	}
	if ah.Tag != encoding.TagAttributes {
		return nil, errs.NewFormatError("environment %d: expected attribute block, got %s", h.Length, ah.Tag)
	}
	if err := d.readAttributes(n, ah.Length); err != nil {
		return nil, err
	}

	return n, nil
}

// readArray reads a primitive array of length elements. When the input does
// not bound its own length the array grows as data arrives, so a corrupt
// length fails at the end of the input instead of on allocation.
func readArray[T byte | int32 | float64 | complex128](d *Decoder, kind format.Kind, length uint64, size, width int) ([]T, error) {
	n, err := d.count(length, uint64(size), kind.String())
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []T{}, nil
	}

	shuffled := d.shuffle.Enabled(kind) && shuffle.ShouldShuffle(n)
	if d.in.Remaining() >= 0 || n*size <= chunkSize {
		s := make([]T, n)
		if shuffled {
			return s, d.in.ReadShuffled(byteView(s), width)
		}

		return s, d.in.ReadFull(byteView(s))
	}

	s := make([]T, 0, chunkSize/size)
	for len(s) < n {
		from := len(s)
		s = slices.Grow(s, min(n-from, max(from, chunkSize/size)))
		s = s[:min(n, cap(s))]
		if err := d.in.ReadFull(byteView(s[from:])); err != nil {
			return nil, err
		}
	}
	if !shuffled {
		return s, nil
	}

	out := make([]T, n)
	if err := shuffle.Unshuffle(byteView(out), byteView(s), width); err != nil {
		return nil, err
	}

	return out, nil
}

// DumpBlocks returns the decompressed blocks of r without decoding them.
// Streaming input yields a single block holding the whole stream. When the
// checksum does not match, the blocks are returned with the error.
func DumpBlocks(r io.Reader, opts ...DecoderOption) ([][]byte, error) {
	cfg := NewDecoderConfig()
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	return block.DumpBlocks(r, cfg.readerConfig())
}
