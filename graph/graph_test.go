package graph

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/arloliu/qgraph/block"
	"github.com/arloliu/qgraph/errs"
	"github.com/arloliu/qgraph/format"
	"github.com/arloliu/qgraph/section"
)

var allAlgorithms = []format.Algorithm{
	format.CompressionNone,
	format.CompressionZstd,
	format.CompressionLZ4,
	format.CompressionLZ4HC,
	format.CompressionS2,
}

func encode(t *testing.T, root *Node, opts ...EncoderOption) []byte {
	t.Helper()

	var buf bytes.Buffer
	opts = append([]EncoderOption{WithLogger(zaptest.NewLogger(t))}, opts...)
	enc, err := NewEncoder(&buf, opts...)
	require.NoError(t, err)
	require.NoError(t, enc.Encode(root))

	return buf.Bytes()
}

func decode(t *testing.T, data []byte, opts ...DecoderOption) (*Node, DecodeStats) {
	t.Helper()

	opts = append([]DecoderOption{WithReadLogger(zaptest.NewLogger(t))}, opts...)
	dec, err := NewDecoder(bytes.NewReader(data), opts...)
	require.NoError(t, err)
	root, err := dec.Decode()
	require.NoError(t, err)

	return root, dec.Stats()
}

func firstBlock(t *testing.T, data []byte) []byte {
	t.Helper()

	blocks, err := block.DumpBlocks(bytes.NewReader(data), block.ReaderConfig{Threads: 1, VerifyChecksum: true})
	require.NoError(t, err)
	require.NotEmpty(t, blocks)

	return blocks[0]
}

// sampleGraph returns a graph holding every node kind, a shared locked
// environment and attributes.
func sampleGraph() *Node {
	env := Environment(nil, PairList(format.KindPair, []*Node{Symbol("x")}, []*Node{Numeric(1.5)}), nil)
	env.Locked = true
	env.SetAttr("name", Strings(Str("globals")))

	closure := Closure(PairList(format.KindPair, []*Node{Symbol("x")}, []*Node{Null()}), Symbol("body"), env)
	closure.Flags = 0x10

	root := List(
		Numeric(1, 2, math.NaN(), math.Inf(-1), 5),
		Integer(1, -2, math.MinInt32, 4),
		Logical(1, 0, math.MinInt32),
		Complex(1+2i, 3-4i, 0, complex(math.Inf(1), 1), 5i),
		Raw([]byte{0, 1, 2, 255}),
		Strings(
			Str("a"),
			NA(),
			Str(""),
			String{Value: "\xe9t\xe9", Encoding: format.EncodingLatin1},
			String{Value: "\x00\xff", Encoding: format.EncodingBytes},
			String{Value: "native", Encoding: format.EncodingNative},
		),
		Symbol("sym"),
		PairList(format.KindLang, []*Node{nil, Symbol("arg")}, []*Node{Symbol("f"), Numeric(2)}),
		PairList(format.KindDots, nil, []*Node{Integer(7)}),
		&Node{Kind: format.KindPair, Flags: 0xdeadbeef, Children: []*Node{Null()}},
		closure,
		Promise(Numeric(42), Symbol("expr"), env),
		Opaque([]byte("written by the host serializer")),
		Null(),
		nil,
	)
	root.SetAttr("class", Strings(Str("sample")))
	root.Children[0].SetAttr("dim", Integer(5, 1))

	return root
}

// bigGraph returns a graph spanning many 4 KiB blocks.
func bigGraph(n int) *Node {
	rng := rand.New(rand.NewSource(42))

	reals := make([]float64, n)
	ints := make([]int32, n)
	strs := make([]String, n/8)
	for i := range reals {
		reals[i] = float64(i) * 0.25
		ints[i] = int32(rng.Intn(1000))
	}
	for i := range strs {
		strs[i] = Str(fmt.Sprintf("value-%d", i))
	}

	children := make([]*Node, 0, 64)
	for i := range 64 {
		children = append(children, Numeric(float64(i), float64(i*2)))
	}

	return List(Numeric(reals...), Integer(ints...), Strings(strs...), List(children...), Raw(bytes.Repeat([]byte("raw"), n)))
}

func TestRoundTrip_AllKinds(t *testing.T) {
	for _, alg := range allAlgorithms {
		for _, threads := range []int{1, 4} {
			for _, streaming := range []bool{false, true} {
				name := fmt.Sprintf("%s/threads=%d/streaming=%t", alg, threads, streaming)
				t.Run(name, func(t *testing.T) {
					for _, root := range []*Node{sampleGraph(), bigGraph(5000)} {
						data := encode(t, root,
							WithAlgorithm(alg),
							WithThreads(threads),
							WithStreaming(streaming),
							WithBlockSize(section.MinBlockSize),
						)
						got, stats := decode(t, data, WithReadThreads(threads))
						require.True(t, Equal(root, got))
						require.True(t, stats.ChecksumPresent)
						require.True(t, stats.ChecksumVerified)
						require.False(t, stats.ChecksumMismatch)
					}
				})
			}
		}
	}
}

func TestRoundTrip_LengthThresholds(t *testing.T) {
	for _, n := range []int{0, 1, 31, 32, 255, 256, 65535, 65536} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			reals := make([]float64, n)
			ints := make([]int32, n)
			strs := make([]String, n)
			nulls := make([]*Node, n)
			for i := range n {
				reals[i] = float64(i)
				ints[i] = int32(i)
				strs[i] = Str(string(rune('a' + i%26)))
			}

			for _, root := range []*Node{
				Numeric(reals...),
				Integer(ints...),
				Logical(ints...),
				Strings(strs...),
				List(nulls...),
				Raw(make([]byte, n)),
				PairList(format.KindPair, nil, nulls),
			} {
				data := encode(t, root, WithBlockSize(section.MinBlockSize))
				got, _ := decode(t, data)
				require.True(t, Equal(root, got), "%s of %d", root.Kind, n)
				require.Equal(t, n, got.Len())
			}
		})
	}
}

func TestSharedEnvironment(t *testing.T) {
	env := Environment(nil, PairList(format.KindPair, []*Node{Symbol("x")}, []*Node{Numeric(1)}), nil)
	root := List(
		Closure(Null(), Symbol("f"), env),
		Promise(Numeric(1), Symbol("e"), env),
		env,
	)

	var buf bytes.Buffer
	enc, err := NewEncoder(&buf)
	require.NoError(t, err)
	require.NoError(t, enc.Encode(root))
	require.Equal(t, uint64(1), enc.Stats().Environments)
	require.Equal(t, uint64(2), enc.Stats().References)

	got, stats := decode(t, buf.Bytes())
	require.True(t, Equal(root, got))
	require.Equal(t, uint64(1), stats.Environments)
	require.Equal(t, uint64(2), stats.References)

	shared := got.Children[0].Component(2)
	require.Equal(t, format.KindEnvironment, shared.Kind)
	require.Same(t, shared, got.Children[1].Component(2))
	require.Same(t, shared, got.Children[2])
}

func TestSelfReferencingEnvironment(t *testing.T) {
	env := Environment(nil, nil, nil)
	env.Children[1] = PairList(format.KindPair, []*Node{Symbol("self")}, []*Node{env})
	env.SetAttr("class", Strings(Str("frame")))

	data := encode(t, env)
	got, stats := decode(t, data)
	require.Equal(t, uint64(1), stats.Environments)
	require.Equal(t, uint64(1), stats.References)
	require.Same(t, got, got.Component(1).Children[0])
	require.True(t, got.Classed)
	require.True(t, Equal(env, got))
}

func TestEmptyContainers(t *testing.T) {
	tests := []struct {
		name string
		root *Node
		want []byte
	}{
		{"null", Null(), []byte{0x00}},
		{"nil root", nil, []byte{0x00}},
		{"list", List(), []byte{0x20}},
		{"numeric", Numeric(), []byte{0x40}},
		{"integer", Integer(), []byte{0x60}},
		{"logical", Logical(), []byte{0x80}},
		{"strings", Strings(), []byte{0xA0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := encode(t, tt.root)
			require.Equal(t, tt.want, firstBlock(t, data))

			got, _ := decode(t, data)
			require.True(t, Equal(tt.root, got))
			require.Equal(t, 0, got.Len())
		})
	}
}

func TestNamedListLayout(t *testing.T) {
	root := List(Numeric(1, 2, 3), Strings(Str("x")))
	root.SetAttr("names", Strings(Str("a"), Str("b")))

	data := encode(t, root,
		WithAlgorithm(format.CompressionZstd),
		WithCompressionLevel(3),
		WithShuffleMask(format.ShuffleReal),
	)
	require.Equal(t, byte(section.FormatVersion), data[0])
	require.Equal(t, byte(0x14), data[2])
	require.NotZero(t, data[2]&byte(format.ShuffleReal))

	want := []byte{0xE1, 0x22, 0x43}
	for _, v := range []float64{1, 2, 3} {
		want = binary.NativeEndian.AppendUint64(want, math.Float64bits(v))
	}
	want = append(want, 0xA1, 0x61, 'x')
	want = append(want, 0x65, 'n', 'a', 'm', 'e', 's')
	want = append(want, 0xA2, 0x61, 'a', 0x61, 'b')
	require.Equal(t, want, firstBlock(t, data))

	got, _ := decode(t, data)
	require.True(t, Equal(root, got))
	require.False(t, got.Classed)
	require.Equal(t, []float64{1, 2, 3}, got.Children[0].Reals)
}

func TestStrings_NAAndEmptyAreDistinct(t *testing.T) {
	root := Strings(NA(), Str(""), Str("x"), NA())

	got, _ := decode(t, encode(t, root))
	require.Len(t, got.Strings, 4)
	require.True(t, got.Strings[0].NA)
	require.False(t, got.Strings[1].NA)
	require.Empty(t, got.Strings[1].Value)
	require.Equal(t, format.EncodingUTF8, got.Strings[1].Encoding)
	require.Equal(t, "x", got.Strings[2].Value)
	require.True(t, got.Strings[3].NA)

	require.False(t, Equal(Strings(NA()), Strings(Str(""))))
}

func TestClassed(t *testing.T) {
	classed := Numeric(1).SetAttr("class", Strings(Str("units")))
	plain := Numeric(1).SetAttr("units", Strings(Str("m")))

	got, _ := decode(t, encode(t, List(classed, plain)))
	require.True(t, got.Children[0].Classed)
	require.False(t, got.Children[1].Classed)
	require.Equal(t, "units", got.Children[0].Attr("class").Strings[0].Value)
}

func TestDecode_EndiannessMismatch(t *testing.T) {
	data := encode(t, sampleGraph())
	data[3] ^= 1

	dec, err := NewDecoder(bytes.NewReader(data))
	require.NoError(t, err)
	_, err = dec.Decode()
	require.ErrorIs(t, err, errs.ErrEndiannessMismatch)

	var mismatch *errs.EndiannessMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestDecode_ChecksumMismatch(t *testing.T) {
	data := encode(t, sampleGraph())
	data[len(data)-1] ^= 0xFF

	t.Run("lenient", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		dec, err := NewDecoder(bytes.NewReader(data), WithReadLogger(zap.New(core)))
		require.NoError(t, err)

		got, err := dec.Decode()
		require.NoError(t, err)
		require.True(t, Equal(sampleGraph(), got))
		require.True(t, dec.Stats().ChecksumMismatch)
		require.Equal(t, 1, logs.FilterMessage("checksum mismatch, decoded graph may be corrupt").Len())
	})

	t.Run("strict", func(t *testing.T) {
		dec, err := NewDecoder(bytes.NewReader(data), WithStrictChecksum(true))
		require.NoError(t, err)

		got, err := dec.Decode()
		require.Nil(t, got)
		var mismatch *errs.ChecksumMismatchError
		require.ErrorAs(t, err, &mismatch)
		require.NotEqual(t, mismatch.Stored, mismatch.Computed)
	})

	t.Run("not verified", func(t *testing.T) {
		got, stats := decode(t, data, WithStrictChecksum(true), WithVerifyChecksum(false))
		require.True(t, Equal(sampleGraph(), got))
		require.True(t, stats.ChecksumPresent)
		require.False(t, stats.ChecksumVerified)
	})
}

func TestEncode_ThreadsProduceIdenticalBytes(t *testing.T) {
	root := bigGraph(20000)
	for _, alg := range []format.Algorithm{format.CompressionZstd, format.CompressionLZ4HC, format.CompressionS2} {
		t.Run(alg.String(), func(t *testing.T) {
			single := encode(t, root, WithAlgorithm(alg), WithThreads(1), WithBlockSize(section.MinBlockSize))
			multi := encode(t, root, WithAlgorithm(alg), WithThreads(8), WithBlockSize(section.MinBlockSize))
			require.Equal(t, single, multi)

			got, stats := decode(t, multi, WithReadThreads(8))
			require.True(t, Equal(root, got))
			require.Greater(t, stats.Blocks, uint64(8))
		})
	}
}

func TestEncode_SeekableDestination(t *testing.T) {
	root := bigGraph(3000)
	path := filepath.Join(t.TempDir(), "graph.qg")

	f, err := os.Create(path)
	require.NoError(t, err)
	enc, err := NewEncoder(f, WithBlockSize(section.MinBlockSize), WithThreads(2))
	require.NoError(t, err)
	require.NoError(t, enc.Encode(root))
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, encode(t, root, WithBlockSize(section.MinBlockSize)), data)

	stats := enc.Stats()
	require.Equal(t, int64(len(data)), stats.CompressedSize+section.MetadataSize+section.FrameCountSize+
		int64(stats.Blocks)*section.FrameHeaderSize+section.ChecksumSize)

	f, err = os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	dec, err := NewDecoder(f)
	require.NoError(t, err)
	got, err := dec.Decode()
	require.NoError(t, err)
	require.True(t, Equal(root, got))
}

func TestEncoderDecoder_SingleUse(t *testing.T) {
	var buf bytes.Buffer
	enc, err := NewEncoder(&buf)
	require.NoError(t, err)
	require.NoError(t, enc.Encode(Null()))
	require.ErrorIs(t, enc.Encode(Null()), errs.ErrClosed)

	dec, err := NewDecoder(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	_, err = dec.Decode()
	require.NoError(t, err)
	_, err = dec.Decode()
	require.ErrorIs(t, err, errs.ErrClosed)
}

func TestOptions_Invalid(t *testing.T) {
	encTests := []struct {
		name string
		opt  EncoderOption
		want error
	}{
		{"algorithm", WithAlgorithm(format.Algorithm(9)), errs.ErrUnsupportedCodec},
		{"shuffle mask", WithShuffleMask(0x10), errs.ErrInvalidShuffleMask},
		{"threads", WithThreads(0), errs.ErrInvalidThreadCount},
		{"block size", WithBlockSize(1000), errs.ErrInvalidBlockSize},
		{"level", WithCompressionLevel(23), errs.ErrInvalidLevel},
		{"max depth", WithMaxDepth(0), errs.ErrInvalidMaxDepth},
	}
	for _, tt := range encTests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEncoder(&bytes.Buffer{}, tt.opt)
			require.ErrorIs(t, err, tt.want)
		})
	}

	_, err := NewDecoder(bytes.NewReader(nil), WithReadThreads(0))
	require.ErrorIs(t, err, errs.ErrInvalidThreadCount)

	_, err = NewDecoder(bytes.NewReader(nil), WithReadMaxDepth(-1))
	require.ErrorIs(t, err, errs.ErrInvalidMaxDepth)
}

func TestEncode_InvalidGraphWritesNothing(t *testing.T) {
	a := List()
	a.Children = append(a.Children, a)

	var buf bytes.Buffer
	enc, err := NewEncoder(&buf)
	require.NoError(t, err)
	require.ErrorIs(t, enc.Encode(a), errs.ErrInvalidNode)
	require.Zero(t, buf.Len())
}

// rawInput wraps payload in an uncompressed file without checksum.
func rawInput(t *testing.T, streaming bool, payload []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	out, err := block.NewOutput(&buf, block.WriterConfig{
		Algorithm: format.CompressionNone,
		BlockSize: section.MinBlockSize,
		Threads:   1,
		Streaming: streaming,
	})
	require.NoError(t, err)
	require.NoError(t, out.Append(payload, false))
	require.NoError(t, out.Close())

	return buf.Bytes()
}

func TestDecode_Malformed(t *testing.T) {
	huge := binary.NativeEndian.AppendUint64([]byte{0x08}, 1<<40)

	tests := []struct {
		name    string
		payload []byte
		want    error
	}{
		{"unknown header byte", []byte{0x1C}, errs.ErrFormat},
		{"reference before environment", []byte{0x1B, 0x0E, 0x01}, errs.ErrFormat},
		{"reference zero", []byte{0x22, 0x1B, 0x0C, 0x01, 0x00, 0x00, 0x00, 0xE0, 0x1B, 0x0E, 0x00}, errs.ErrFormat},
		{"environment index skipped", []byte{0x1B, 0x0C, 0x02, 0x00, 0x00, 0x00, 0xE0}, errs.ErrFormat},
		{"environment without attribute block", []byte{0x1B, 0x0C, 0x01, 0x00, 0x00, 0x00, 0x00}, errs.ErrFormat},
		{"attributes on null", []byte{0xE1, 0x00}, errs.ErrFormat},
		{"list shorter than its length", []byte{0x23, 0x00}, errs.ErrFormat},
		{"huge numeric length", huge, errs.ErrFormat},
		{"tag is not a symbol", []byte{0x1B, 0x02, 0x01, 0x41, 0, 0, 0, 0, 0, 0, 0, 0, 0x00}, errs.ErrFormat},
		{"two roots", []byte{0x00, 0x00}, errs.ErrTrailingData},
		{"nesting deeper than the limit", bytes.Repeat([]byte{0x21}, 1<<20), errs.ErrFormat},
		{"empty", nil, errs.ErrFormat},
	}

	for _, tt := range tests {
		for _, streaming := range []bool{false, true} {
			t.Run(fmt.Sprintf("%s/streaming=%t", tt.name, streaming), func(t *testing.T) {
				dec, err := NewDecoder(bytes.NewReader(rawInput(t, streaming, tt.payload)))
				require.NoError(t, err)
				got, err := dec.Decode()
				require.Nil(t, got)
				require.ErrorIs(t, err, tt.want)
			})
		}
	}
}

// nestedLists returns a chain of depth nodes: depth-1 one-element lists
// around a Null leaf.
func nestedLists(depth int) *Node {
	n := Null()
	for range depth - 1 {
		n = List(n)
	}

	return n
}

func TestMaxDepth(t *testing.T) {
	const limit = 8

	t.Run("at the limit", func(t *testing.T) {
		root := nestedLists(limit)
		got, _ := decode(t, encode(t, root, WithMaxDepth(limit)), WithReadMaxDepth(limit))
		require.True(t, Equal(root, got))
	})

	t.Run("encoder rejects deeper graphs", func(t *testing.T) {
		var buf bytes.Buffer
		enc, err := NewEncoder(&buf, WithMaxDepth(limit))
		require.NoError(t, err)

		var capErr *errs.CapacityError
		require.ErrorAs(t, enc.Encode(nestedLists(limit+1)), &capErr)
		require.Equal(t, uint64(limit), capErr.Max)
		require.Zero(t, buf.Len())
	})

	t.Run("missing components count as levels", func(t *testing.T) {
		root := nestedLists(limit)
		leaf := root
		for len(leaf.Children) > 0 {
			leaf = leaf.Children[0]
		}
		*leaf = Node{Kind: format.KindPromise}

		require.ErrorIs(t, validate(root, limit), errs.ErrCapacity)
		require.NoError(t, validate(root, limit+1))
	})

	for _, streaming := range []bool{false, true} {
		t.Run(fmt.Sprintf("decoder rejects deeper input/streaming=%t", streaming), func(t *testing.T) {
			data := encode(t, nestedLists(limit+1), WithStreaming(streaming))

			dec, err := NewDecoder(bytes.NewReader(data), WithReadMaxDepth(limit))
			require.NoError(t, err)
			got, err := dec.Decode()
			require.Nil(t, got)
			require.ErrorIs(t, err, errs.ErrFormat)

			got, _ = decode(t, data, WithReadMaxDepth(limit+1))
			require.True(t, Equal(nestedLists(limit+1), got))
		})
	}
}

func TestDecode_DirectBlocks(t *testing.T) {
	reals := make([]float64, 16*section.MinBlockSize/realWidth)
	for i := range reals {
		reals[i] = float64(i) / 3
	}
	root := List(Numeric(reals...))
	data := encode(t, root, WithBlockSize(section.MinBlockSize))

	got, single := decode(t, data)
	require.True(t, Equal(root, got))
	require.Positive(t, single.DirectBlocks, "large arrays skip the block buffer on one thread")

	got, threaded := decode(t, data, WithReadThreads(4))
	require.True(t, Equal(root, got))
	require.Zero(t, threaded.DirectBlocks, "workers always hand over completed blocks")
	require.Equal(t, single.Blocks, threaded.Blocks)
}
