package qgraph

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/qgraph/errs"
	"github.com/arloliu/qgraph/format"
	"github.com/arloliu/qgraph/graph"
)

func namedList() *graph.Node {
	root := graph.List(graph.Numeric(1, 2, 3), graph.Strings(graph.Str("x")))
	root.SetAttr("names", graph.Strings(graph.Str("a"), graph.Str("b")))

	return root
}

// TestMarshalUnmarshal verifies the byte slice helpers round-trip
func TestMarshalUnmarshal(t *testing.T) {
	root := namedList()

	data, err := Marshal(root, graph.WithAlgorithm(format.CompressionLZ4))
	require.NoError(t, err)
	require.Equal(t, byte(format.CompressionLZ4)<<4|byte(format.ShuffleAll), data[2])

	got, err := Unmarshal(data)
	require.NoError(t, err)
	require.True(t, graph.Equal(root, got))
}

// TestWriteRead verifies the io helpers round-trip through a file
func TestWriteRead(t *testing.T) {
	root := namedList()
	path := filepath.Join(t.TempDir(), "named.qg")

	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, Write(f, root, graph.WithThreads(2), graph.WithStreaming(true)))
	require.NoError(t, f.Close())

	f, err = os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	got, err := Read(f, graph.WithReadThreads(2), graph.WithStrictChecksum(true))
	require.NoError(t, err)
	require.True(t, graph.Equal(root, got))
}

// TestMarshal_Errors verifies option and graph errors surface before output
func TestMarshal_Errors(t *testing.T) {
	_, err := Marshal(nil, graph.WithThreads(0))
	require.ErrorIs(t, err, errs.ErrInvalidThreadCount)

	_, err = Marshal(graph.Null().SetAttr("a", nil))
	require.ErrorIs(t, err, errs.ErrInvalidNode)

	_, err = Unmarshal([]byte{1, 2})
	require.ErrorIs(t, err, errs.ErrFormat)
}

// TestDumpBlocks verifies raw blocks concatenate to the same stream in
// both layouts
func TestDumpBlocks(t *testing.T) {
	reals := make([]float64, 4096)
	for i := range reals {
		reals[i] = float64(i)
	}
	root := graph.List(graph.Numeric(reals...), namedList())

	counted, err := Marshal(root, graph.WithBlockSize(4096))
	require.NoError(t, err)
	streamed, err := Marshal(root, graph.WithBlockSize(4096), graph.WithStreaming(true))
	require.NoError(t, err)

	blocks, err := DumpBlocks(bytes.NewReader(counted))
	require.NoError(t, err)
	require.Greater(t, len(blocks), 8)

	single, err := DumpBlocks(bytes.NewReader(streamed))
	require.NoError(t, err)
	require.Len(t, single, 1)
	require.Equal(t, bytes.Join(blocks, nil), single[0])
}

// TestCheckCapabilities verifies the host probe reports a usable width
func TestCheckCapabilities(t *testing.T) {
	caps := CheckCapabilities()
	require.NotEmpty(t, caps.Arch)
	require.GreaterOrEqual(t, caps.SIMDWidth, 8)
}
