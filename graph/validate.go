package graph

import (
	"fmt"

	"github.com/arloliu/qgraph/encoding"
	"github.com/arloliu/qgraph/errs"
	"github.com/arloliu/qgraph/format"
)

// Validate checks that root can be written. The encoder runs it before the
// first byte is produced, so a failing graph never leaves partial output.
//
// Returns:
//   - *errs.CapacityError: a string, symbol name or attribute count beyond
//     what the format can carry, or nesting deeper than DefaultMaxDepth
//   - errs.ErrInvalidNode: an unknown kind, attributes on Null or Symbol,
//     flags on a kind that has none, a composite with more than three
//     components, pair-list tags that do not match the values, a tag that
//     is not a symbol, or a cycle that does not pass through an environment
func Validate(root *Node) error {
	return validate(root, DefaultMaxDepth)
}

func validate(root *Node, maxDepth int) error {
	v := validator{
		envs:     make(map[*Node]struct{}),
		onStack:  make(map[*Node]struct{}),
		maxDepth: maxDepth,
	}

	return v.node(root)
}

type validator struct {
	envs     map[*Node]struct{}
	onStack  map[*Node]struct{}
	depth    int
	maxDepth int
}

// node counts nil as a level, since it is written as a Null node.
func (v *validator) node(n *Node) error {
	if v.depth >= v.maxDepth {
		return &errs.CapacityError{What: "nesting depth", Length: uint64(v.depth) + 1, Max: uint64(v.maxDepth)} //nolint:gosec
	}
	if n == nil {
		return nil
	}
	v.depth++
	defer func() { v.depth-- }()
	if !n.Kind.IsValid() {
		return fmt.Errorf("%w: unknown kind %d", errs.ErrInvalidNode, n.Kind)
	}
	if n.Flags != 0 && !n.Kind.HasFlags() {
		return fmt.Errorf("%w: %s node cannot carry flags", errs.ErrInvalidNode, n.Kind)
	}

	switch n.Kind { //nolint: exhaustive
	case format.KindNull:
		if len(n.Attributes) > 0 {
			return fmt.Errorf("%w: Null node cannot carry attributes", errs.ErrInvalidNode)
		}

		return nil
	case format.KindSymbol:
		if len(n.Attributes) > 0 {
			return fmt.Errorf("%w: Symbol %q cannot carry attributes", errs.ErrInvalidNode, n.Name)
		}

		return checkString(n.Name, "symbol name")
	case format.KindEnvironment:
		if _, ok := v.envs[n]; ok {
			return nil
		}
		v.envs[n] = struct{}{}

		return v.children(n)
	}

	if _, ok := v.onStack[n]; ok {
		return fmt.Errorf("%w: cycle through %s node outside an environment", errs.ErrInvalidNode, n.Kind)
	}
	v.onStack[n] = struct{}{}
	defer delete(v.onStack, n)

	return v.children(n)
}

func (v *validator) children(n *Node) error {
	if err := v.payload(n); err != nil {
		return err
	}

	if uint64(len(n.Attributes)) > encoding.MaxAttributes {
		return &errs.CapacityError{What: "attribute count", Length: uint64(len(n.Attributes)), Max: encoding.MaxAttributes}
	}
	for _, a := range n.Attributes {
		if err := checkString(a.Name, "attribute name"); err != nil {
			return err
		}
		if err := v.node(a.Value); err != nil {
			return err
		}
	}

	return nil
}

func (v *validator) payload(n *Node) error {
	switch {
	case n.Kind == format.KindString:
		for _, s := range n.Strings {
			if s.NA {
				continue
			}
			if s.Encoding > format.EncodingBytes {
				return fmt.Errorf("%w: string encoding %d", errs.ErrInvalidNode, s.Encoding)
			}
			if err := checkString(s.Value, "string"); err != nil {
				return err
			}
		}
	case n.Kind == format.KindList:
		for _, c := range n.Children {
			if err := v.node(c); err != nil {
				return err
			}
		}
	case n.Kind.IsPairList():
		if len(n.Tags) != 0 && len(n.Tags) != len(n.Children) {
			return fmt.Errorf("%w: %s has %d tags for %d values", errs.ErrInvalidNode, n.Kind, len(n.Tags), len(n.Children))
		}
		for i, c := range n.Children {
			t := n.Tag(i)
			if !t.IsNull() && t.Kind != format.KindSymbol {
				return fmt.Errorf("%w: %s tag must be a Symbol, got %s", errs.ErrInvalidNode, n.Kind, t.Kind)
			}
			if err := v.node(t); err != nil {
				return err
			}
			if err := v.node(c); err != nil {
				return err
			}
		}
	case n.Kind.IsTriple():
		if len(n.Children) > 3 {
			return fmt.Errorf("%w: %s has %d components", errs.ErrInvalidNode, n.Kind, len(n.Children))
		}
		for i := range 3 {
			if err := v.node(n.Component(i)); err != nil {
				return err
			}
		}
	}

	return nil
}

func checkString(s string, what string) error {
	if uint64(len(s)) > encoding.MaxStringLength {
		return &errs.CapacityError{What: what, Length: uint64(len(s)), Max: encoding.MaxStringLength}
	}

	return nil
}
