package graph

import (
	"github.com/arloliu/qgraph/format"
)

// ClassAttribute is the attribute name that marks a node as classed.
const ClassAttribute = "class"

// Node is one value of an object graph.
//
// Which payload fields are meaningful depends on Kind:
//   - KindNumeric: Reals
//   - KindInteger, KindLogical: Ints
//   - KindComplex: Complexes
//   - KindRaw, KindOpaque: Bytes
//   - KindString: Strings
//   - KindList: Children
//   - KindSymbol: Name
//   - KindPair, KindLang, KindDots: Children with per-element Tags
//   - KindClosure: Children = formals, body, environment
//   - KindPromise: Children = value, expression, environment
//   - KindEnvironment: Children = enclosure, frame, hash table; Locked
//
// A nil *Node is equivalent to a Null node wherever a child is expected.
// Environments are identified by pointer: the same *Node reached twice is
// written once and decoded back into a single shared *Node.
type Node struct {
	Kind  format.Kind
	Flags uint32

	Reals     []float64
	Ints      []int32
	Complexes []complex128
	Bytes     []byte
	Strings   []String

	Children []*Node
	Tags     []*Node

	Name   string
	Locked bool

	Attributes []Attribute
	// Classed is set by the decoder when a "class" attribute is present.
	// The encoder ignores it.
	Classed bool
}

// String is one element of a string array.
type String struct {
	Value    string
	Encoding format.StringEncoding
	NA       bool
}

// Attribute is a named value attached to a node.
type Attribute struct {
	Name  string
	Value *Node
}

// NA returns the missing string element.
func NA() String {
	return String{NA: true}
}

// Str returns a UTF-8 string element.
func Str(s string) String {
	return String{Value: s, Encoding: format.EncodingUTF8}
}

// Null returns a Null node.
func Null() *Node {
	return &Node{Kind: format.KindNull}
}

// Numeric returns a numeric array node.
func Numeric(v ...float64) *Node {
	return &Node{Kind: format.KindNumeric, Reals: v}
}

// Integer returns an integer array node.
func Integer(v ...int32) *Node {
	return &Node{Kind: format.KindInteger, Ints: v}
}

// Logical returns a logical array node. Values follow the host convention
// (0 false, 1 true, anything else missing).
func Logical(v ...int32) *Node {
	return &Node{Kind: format.KindLogical, Ints: v}
}

// Complex returns a complex array node.
func Complex(v ...complex128) *Node {
	return &Node{Kind: format.KindComplex, Complexes: v}
}

// Raw returns a raw byte array node.
func Raw(b []byte) *Node {
	return &Node{Kind: format.KindRaw, Bytes: b}
}

// Opaque returns a node holding a blob produced by the host's own serializer.
func Opaque(b []byte) *Node {
	return &Node{Kind: format.KindOpaque, Bytes: b}
}

// Strings returns a string array node.
func Strings(v ...String) *Node {
	return &Node{Kind: format.KindString, Strings: v}
}

// List returns a generic list node.
func List(children ...*Node) *Node {
	return &Node{Kind: format.KindList, Children: children}
}

// Symbol returns a symbol node.
func Symbol(name string) *Node {
	return &Node{Kind: format.KindSymbol, Name: name}
}

// PairList returns a pair-list shaped node of kind KindPair, KindLang or
// KindDots. tags may be nil, in which case every element is untagged.
func PairList(kind format.Kind, tags, values []*Node) *Node {
	return &Node{Kind: kind, Tags: tags, Children: values}
}

// Closure returns a closure node.
func Closure(formals, body, env *Node) *Node {
	return &Node{Kind: format.KindClosure, Children: []*Node{formals, body, env}}
}

// Promise returns a promise node.
func Promise(value, expr, env *Node) *Node {
	return &Node{Kind: format.KindPromise, Children: []*Node{value, expr, env}}
}

// Environment returns an environment node. The frame and hash table are
// usually pair lists or Null.
func Environment(enclosure, frame, hashtab *Node) *Node {
	return &Node{Kind: format.KindEnvironment, Children: []*Node{enclosure, frame, hashtab}}
}

// IsNull reports whether n is nil or a Null node.
func (n *Node) IsNull() bool {
	return n == nil || n.Kind == format.KindNull
}

// Len returns the element count written in the node's header.
func (n *Node) Len() int {
	if n == nil {
		return 0
	}

	switch n.Kind { //nolint: exhaustive
	case format.KindNumeric:
		return len(n.Reals)
	case format.KindInteger, format.KindLogical:
		return len(n.Ints)
	case format.KindComplex:
		return len(n.Complexes)
	case format.KindRaw, format.KindOpaque:
		return len(n.Bytes)
	case format.KindString:
		return len(n.Strings)
	case format.KindList, format.KindPair, format.KindLang, format.KindDots:
		return len(n.Children)
	default:
		return 0
	}
}

// Attr returns the value of the named attribute, or nil.
func (n *Node) Attr(name string) *Node {
	if n == nil {
		return nil
	}

	for _, a := range n.Attributes {
		if a.Name == name {
			return a.Value
		}
	}

	return nil
}

// SetAttr sets or replaces the named attribute and returns n.
func (n *Node) SetAttr(name string, value *Node) *Node {
	for i := range n.Attributes {
		if n.Attributes[i].Name == name {
			n.Attributes[i].Value = value
			return n
		}
	}
	n.Attributes = append(n.Attributes, Attribute{Name: name, Value: value})

	return n
}

// Component returns the i-th component of a closure, promise or environment,
// or nil when it is absent.
func (n *Node) Component(i int) *Node {
	if n == nil || i >= len(n.Children) {
		return nil
	}

	return n.Children[i]
}

// Tag returns the tag of the i-th element of a pair list, or nil.
func (n *Node) Tag(i int) *Node {
	if n == nil || i >= len(n.Tags) {
		return nil
	}

	return n.Tags[i]
}

func hasClass(attrs []Attribute) bool {
	for _, a := range attrs {
		if a.Name == ClassAttribute {
			return true
		}
	}

	return false
}
