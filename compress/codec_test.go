package compress

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/qgraph/errs"
	"github.com/arloliu/qgraph/format"
)

func getAllCodecs() map[string]Codec {
	return map[string]Codec{
		"NoOp":  NewNoOpCompressor(),
		"LZ4":   NewLZ4Compressor(),
		"LZ4HC": NewLZ4HCCompressor(9),
		"S2":    NewS2Compressor(S2LevelDefault),
		"Zstd":  NewZstdCompressor(3),
	}
}

func generateTestPayloads() []struct {
	name string
	data []byte
} {
	return []struct {
		name string
		data []byte
	}{
		{name: "empty", data: []byte{}},
		{name: "single_byte", data: []byte{0x42}},
		{name: "small_text", data: []byte("Hello, World!")},
		{name: "repeated_pattern", data: bytes.Repeat([]byte("ABCD"), 100)},
		{name: "binary_data", data: []byte{0x00, 0x01, 0x02, 0x03, 0xFF, 0xFE, 0xFD, 0xFC}},
		{name: "semi_compressible", data: generateBenchmarkData(4096, "semi_compressible")},
		{name: "incompressible", data: generateBenchmarkData(64*1024, "incompressible")},
		{name: "block_of_zeros", data: make([]byte, 512*1024)},
	}
}

func TestAlgorithmReporting(t *testing.T) {
	require.Equal(t, format.CompressionNone, NewNoOpCompressor().Algorithm())
	require.Equal(t, format.CompressionZstd, NewZstdCompressor(1).Algorithm())
	require.Equal(t, format.CompressionLZ4, NewLZ4Compressor().Algorithm())
	require.Equal(t, format.CompressionLZ4HC, NewLZ4HCCompressor(4).Algorithm())
	require.Equal(t, format.CompressionS2, NewS2Compressor(S2LevelBest).Algorithm())
}

func TestCreateCodec(t *testing.T) {
	tests := []struct {
		alg     format.Algorithm
		level   int
		wantErr error
	}{
		{format.CompressionNone, 0, nil},
		{format.CompressionNone, 1, errs.ErrInvalidLevel},
		{format.CompressionZstd, 0, nil},
		{format.CompressionZstd, 1, nil},
		{format.CompressionZstd, 22, nil},
		{format.CompressionZstd, 23, errs.ErrInvalidLevel},
		{format.CompressionZstd, -1, errs.ErrInvalidLevel},
		{format.CompressionLZ4, 1, nil},
		{format.CompressionLZ4, 2, errs.ErrInvalidLevel},
		{format.CompressionLZ4HC, 9, nil},
		{format.CompressionLZ4HC, 10, errs.ErrInvalidLevel},
		{format.CompressionS2, 3, nil},
		{format.CompressionS2, 4, errs.ErrInvalidLevel},
		{format.Algorithm(9), 0, errs.ErrUnsupportedCodec},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_%d", tt.alg, tt.level), func(t *testing.T) {
			codec, err := CreateCodec(tt.alg, tt.level)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				require.Nil(t, codec)

				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.alg, codec.Algorithm())
		})
	}
}

func TestResolveLevel_Defaults(t *testing.T) {
	lvl, err := ResolveLevel(format.CompressionZstd, 0)
	require.NoError(t, err)
	require.Equal(t, 3, lvl)

	lvl, err = ResolveLevel(format.CompressionLZ4HC, 0)
	require.NoError(t, err)
	require.Equal(t, 9, lvl)

	codec, err := CreateCodec(format.CompressionZstd, 0)
	require.NoError(t, err)
	require.Equal(t, 3, codec.(ZstdCompressor).Level())
}

func TestCompressionStats_Calculations(t *testing.T) {
	stats := CompressionStats{Algorithm: format.CompressionZstd, OriginalSize: 1000, CompressedSize: 250, Blocks: 1}
	require.InDelta(t, 0.25, stats.CompressionRatio(), 1e-9)
	require.InDelta(t, 75.0, stats.SpaceSavings(), 1e-9)

	empty := CompressionStats{}
	require.Zero(t, empty.CompressionRatio())
}

func TestAllCodecs_RoundTrip(t *testing.T) {
	for codecName, codec := range getAllCodecs() {
		t.Run(codecName, func(t *testing.T) {
			for _, tc := range generateTestPayloads() {
				t.Run(tc.name, func(t *testing.T) {
					compressed, err := codec.Compress(nil, tc.data)
					require.NoError(t, err)
					require.LessOrEqual(t, len(compressed), codec.CompressBound(len(tc.data)))

					out := make([]byte, len(tc.data))
					n, err := codec.Decompress(out, compressed)
					require.NoError(t, err)
					require.Equal(t, len(tc.data), n)
					require.True(t, bytes.Equal(tc.data, out[:n]))
				})
			}
		})
	}
}

func TestAllCodecs_CompressAppends(t *testing.T) {
	data := bytes.Repeat([]byte("graph payload "), 200)

	for codecName, codec := range getAllCodecs() {
		t.Run(codecName, func(t *testing.T) {
			prefix := []byte{0xAA, 0xBB, 0xCC}
			scratch := make([]byte, len(prefix), len(prefix)+codec.CompressBound(len(data)))
			copy(scratch, prefix)

			out, err := codec.Compress(scratch, data)
			require.NoError(t, err)
			require.Equal(t, prefix, out[:len(prefix)])
			if codec.Algorithm() != format.CompressionZstd {
				// a large enough scratch buffer is reused, not reallocated
				require.Same(t, &scratch[0], &out[0])
			}

			dst := make([]byte, len(data))
			n, err := codec.Decompress(dst, out[len(prefix):])
			require.NoError(t, err)
			require.Equal(t, data, dst[:n])
		})
	}
}

func TestAllCodecs_ShortDestination(t *testing.T) {
	data := generateBenchmarkData(4096, "compressible")

	for codecName, codec := range getAllCodecs() {
		t.Run(codecName, func(t *testing.T) {
			compressed, err := codec.Compress(nil, data)
			require.NoError(t, err)

			_, err = codec.Decompress(make([]byte, 100), compressed)
			require.ErrorIs(t, err, ErrShortBuffer)
		})
	}
}

func TestAllCodecs_InvalidData(t *testing.T) {
	data := generateBenchmarkData(64*1024, "semi_compressible")

	for codecName, codec := range getAllCodecs() {
		t.Run(codecName, func(t *testing.T) {
			// NoOp codec doesn't validate data
			if codecName == "NoOp" {
				t.Skip("NoOp codec doesn't validate data")
			}

			compressed, err := codec.Compress(nil, data)
			require.NoError(t, err)

			dst := make([]byte, len(data))
			n, err := codec.Decompress(dst, compressed[:len(compressed)/2])
			if err == nil {
				require.NotEqual(t, len(data), n, "truncated frame must not decode fully")
			}
		})
	}
}

func TestZstd_RejectsGarbage(t *testing.T) {
	codec := NewZstdCompressor(3)
	for _, input := range [][]byte{
		{0xFF, 0xFF, 0xFF, 0xFF},
		[]byte("this is not compressed data"),
	} {
		_, err := codec.Decompress(make([]byte, 1024), input)
		require.Error(t, err)
	}
}

func TestZstd_LevelsShareFormat(t *testing.T) {
	data := generateBenchmarkData(32*1024, "compressible")
	reader := NewZstdCompressor(1)

	for _, level := range []int{1, 3, 7, 12, 19} {
		compressed, err := NewZstdCompressor(level).Compress(nil, data)
		require.NoError(t, err)

		out := make([]byte, len(data))
		n, err := reader.Decompress(out, compressed)
		require.NoError(t, err)
		require.Equal(t, data, out[:n])
	}
}

func TestS2_Levels(t *testing.T) {
	data := generateBenchmarkData(64*1024, "compressible")
	for _, level := range []int{S2LevelDefault, S2LevelBetter, S2LevelBest} {
		codec := NewS2Compressor(level)
		compressed, err := codec.Compress(nil, data)
		require.NoError(t, err)

		out := make([]byte, len(data))
		n, err := codec.Decompress(out, compressed)
		require.NoError(t, err)
		require.Equal(t, data, out[:n])
	}
}

func TestAllCodecs_ConcurrentUsage(t *testing.T) {
	const numGoroutines = 20
	data := generateBenchmarkData(16*1024, "semi_compressible")

	for codecName, codec := range getAllCodecs() {
		t.Run(codecName, func(t *testing.T) {
			var wg sync.WaitGroup
			errCh := make(chan error, numGoroutines)

			for range numGoroutines {
				wg.Add(1)
				go func() {
					defer wg.Done()

					compressed, err := codec.Compress(nil, data)
					if err != nil {
						errCh <- err
						return
					}
					out := make([]byte, len(data))
					n, err := codec.Decompress(out, compressed)
					if err != nil {
						errCh <- err
						return
					}
					if !bytes.Equal(data, out[:n]) {
						errCh <- fmt.Errorf("round trip mismatch")
					}
				}()
			}
			wg.Wait()
			close(errCh)

			for err := range errCh {
				require.NoError(t, err)
			}
		})
	}
}

func TestStream_RoundTrip(t *testing.T) {
	data := generateBenchmarkData(3*1024*1024+17, "semi_compressible")

	algorithms := []format.Algorithm{
		format.CompressionNone,
		format.CompressionZstd,
		format.CompressionLZ4,
		format.CompressionLZ4HC,
		format.CompressionS2,
	}

	for _, alg := range algorithms {
		for _, concurrency := range []int{1, 4} {
			t.Run(fmt.Sprintf("%s_c%d", alg, concurrency), func(t *testing.T) {
				var buf bytes.Buffer
				w, err := NewStreamWriter(&buf, alg, 0, concurrency)
				require.NoError(t, err)

				// odd-sized writes exercise the codecs' internal buffering
				for off := 0; off < len(data); off += 7777 {
					end := min(off+7777, len(data))
					_, err = w.Write(data[off:end])
					require.NoError(t, err)
				}
				require.NoError(t, w.Close())

				r, err := NewStreamReader(&buf, alg)
				require.NoError(t, err)
				defer r.Close()

				got, err := io.ReadAll(r)
				require.NoError(t, err)
				require.True(t, bytes.Equal(data, got))
			})
		}
	}
}

func TestStream_InvalidConfig(t *testing.T) {
	_, err := NewStreamWriter(io.Discard, format.Algorithm(7), 0, 1)
	require.ErrorIs(t, err, errs.ErrUnsupportedCodec)

	_, err = NewStreamWriter(io.Discard, format.CompressionZstd, 40, 1)
	require.ErrorIs(t, err, errs.ErrInvalidLevel)

	_, err = NewStreamReader(bytes.NewReader(nil), format.Algorithm(7))
	require.ErrorIs(t, err, errs.ErrUnsupportedCodec)
}
