package graph

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/qgraph/format"
)

func TestEqual(t *testing.T) {
	envA := Environment(nil, nil, nil)
	envB := Environment(nil, nil, nil)

	tests := []struct {
		name string
		a, b *Node
		want bool
	}{
		{"nil and null", nil, Null(), true},
		{"null and empty list", Null(), List(), false},
		{"same numbers", Numeric(1, 2), Numeric(1, 2), true},
		{"different numbers", Numeric(1, 2), Numeric(1, 3), false},
		{"nan bits", Numeric(math.NaN()), Numeric(math.NaN()), true},
		{"signed zero", Numeric(0), Numeric(math.Copysign(0, -1)), false},
		{"integer vs logical", Integer(1), Logical(1), false},
		{"nil and empty bytes", Raw(nil), Raw([]byte{}), true},
		{"string encoding", Strings(Str("x")), Strings(String{Value: "x", Encoding: format.EncodingLatin1}), false},
		{"na ignores value", Strings(String{NA: true, Value: "x"}), Strings(NA()), true},
		{"flags", &Node{Kind: format.KindPair, Flags: 1}, &Node{Kind: format.KindPair}, false},
		{"missing tags", PairList(format.KindPair, nil, []*Node{Numeric(1)}), PairList(format.KindPair, []*Node{Null()}, []*Node{Numeric(1)}), true},
		{"tag names", PairList(format.KindPair, []*Node{Symbol("a")}, []*Node{Null()}), PairList(format.KindPair, []*Node{Symbol("b")}, []*Node{Null()}), false},
		{"missing components", &Node{Kind: format.KindClosure}, Closure(nil, nil, nil), true},
		{"attribute order", Numeric(1).SetAttr("a", nil).SetAttr("b", nil), Numeric(1).SetAttr("b", nil).SetAttr("a", nil), false},
		{"classed ignored", &Node{Kind: format.KindList, Classed: true}, List(), true},
		{"distinct environments", List(envA, envA), List(envA, envB), false},
		{"shared environments", List(envA, envA), List(envB, envB), true},
		{"locked", &Node{Kind: format.KindEnvironment, Locked: true}, &Node{Kind: format.KindEnvironment}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Equal(tt.a, tt.b))
			require.Equal(t, tt.want, Equal(tt.b, tt.a))
		})
	}
}

func TestNode_Accessors(t *testing.T) {
	n := Numeric(1, 2, 3)
	require.Equal(t, 3, n.Len())
	require.Nil(t, n.Attr("names"))

	n.SetAttr("names", Strings(Str("a")))
	n.SetAttr("names", Strings(Str("b")))
	require.Len(t, n.Attributes, 1)
	require.Equal(t, "b", n.Attr("names").Strings[0].Value)

	var null *Node
	require.True(t, null.IsNull())
	require.Zero(t, null.Len())
	require.Nil(t, null.Component(0))
	require.Nil(t, null.Tag(0))

	p := Promise(Numeric(1), nil, nil)
	require.Equal(t, 1, p.Component(0).Len())
	require.Nil(t, p.Component(1))
	require.Nil(t, p.Component(5))
}
