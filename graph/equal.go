package graph

import (
	"bytes"
	"math"
	"slices"

	"github.com/arloliu/qgraph/format"
)

// Equal reports whether a and b describe the same graph.
//
// Nil and Null are interchangeable, floating point values are compared bit
// for bit so NaN payloads must match, and Classed is ignored since it is
// derived from the attributes. Environments compare by shape and by
// sharing: an environment reached twice in a must correspond to a single
// environment reached at the same places in b. Cycles through environments
// are followed once.
func Equal(a, b *Node) bool {
	c := comparer{
		ab: make(map[*Node]*Node),
		ba: make(map[*Node]*Node),
	}

	return c.equal(a, b)
}

type comparer struct {
	ab map[*Node]*Node
	ba map[*Node]*Node
}

func (c *comparer) equal(a, b *Node) bool {
	if a.IsNull() || b.IsNull() {
		return a.IsNull() && b.IsNull()
	}
	if a.Kind != b.Kind || a.Flags != b.Flags {
		return false
	}

	if a.Kind == format.KindEnvironment {
		mb, seenA := c.ab[a]
		ma, seenB := c.ba[b]
		if seenA || seenB {
			return mb == b && ma == a
		}
		c.ab[a], c.ba[b] = b, a

		if a.Locked != b.Locked {
			return false
		}
		for i := range 3 {
			if !c.equal(a.Component(i), b.Component(i)) {
				return false
			}
		}

		return c.attributes(a.Attributes, b.Attributes)
	}

	return c.body(a, b) && c.attributes(a.Attributes, b.Attributes)
}

func (c *comparer) body(a, b *Node) bool {
	switch a.Kind { //nolint: exhaustive
	case format.KindNumeric:
		return slices.EqualFunc(a.Reals, b.Reals, func(x, y float64) bool {
			return math.Float64bits(x) == math.Float64bits(y)
		})
	case format.KindInteger, format.KindLogical:
		return slices.Equal(a.Ints, b.Ints)
	case format.KindComplex:
		return slices.EqualFunc(a.Complexes, b.Complexes, func(x, y complex128) bool {
			return math.Float64bits(real(x)) == math.Float64bits(real(y)) &&
				math.Float64bits(imag(x)) == math.Float64bits(imag(y))
		})
	case format.KindRaw, format.KindOpaque:
		return bytes.Equal(a.Bytes, b.Bytes)
	case format.KindString:
		return slices.EqualFunc(a.Strings, b.Strings, func(x, y String) bool {
			if x.NA || y.NA {
				return x.NA == y.NA
			}

			return x.Value == y.Value && x.Encoding == y.Encoding
		})
	case format.KindSymbol:
		return a.Name == b.Name
	case format.KindList:
		return slices.EqualFunc(a.Children, b.Children, c.equal)
	case format.KindPair, format.KindLang, format.KindDots:
		if len(a.Children) != len(b.Children) {
			return false
		}
		for i := range a.Children {
			if !c.equal(a.Tag(i), b.Tag(i)) || !c.equal(a.Children[i], b.Children[i]) {
				return false
			}
		}

		return true
	case format.KindClosure, format.KindPromise:
		for i := range 3 {
			if !c.equal(a.Component(i), b.Component(i)) {
				return false
			}
		}

		return true
	default:
		return false
	}
}

func (c *comparer) attributes(a, b []Attribute) bool {
	return slices.EqualFunc(a, b, func(x, y Attribute) bool {
		return x.Name == y.Name && c.equal(x.Value, y.Value)
	})
}
