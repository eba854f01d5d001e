package shuffle

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/qgraph/errs"
)

var testLengths = []int{0, 1, 2, 3, 4, 5, 16, 17, 4096, 4099}

func randomBytes(rng *rand.Rand, n int) []byte {
	b := make([]byte, n)
	rng.Read(b)

	return b
}

func TestShuffleLayout(t *testing.T) {
	// [a0 a1 a2 a3][b0 b1 b2 b3][c0 c1 c2 c3] + 2 remainder bytes
	src := []byte{
		0xA0, 0xA1, 0xA2, 0xA3,
		0xB0, 0xB1, 0xB2, 0xB3,
		0xC0, 0xC1, 0xC2, 0xC3,
		0xEE, 0xFF,
	}
	want := []byte{
		0xA0, 0xB0, 0xC0,
		0xA1, 0xB1, 0xC1,
		0xA2, 0xB2, 0xC2,
		0xA3, 0xB3, 0xC3,
		0xEE, 0xFF,
	}

	dst := make([]byte, len(src))
	require.NoError(t, Shuffle(dst, src, 4))
	require.Equal(t, want, dst)

	back := make([]byte, len(src))
	require.NoError(t, Unshuffle(back, dst, 4))
	require.Equal(t, src, back)
}

func TestShuffleInverse(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, width := range []int{4, 8} {
		for _, elems := range testLengths {
			for _, extra := range []int{0, 1, width - 1} {
				size := elems*width + extra
				src := randomBytes(rng, size)

				shuffled := make([]byte, size)
				require.NoError(t, Shuffle(shuffled, src, width))

				restored := make([]byte, size)
				require.NoError(t, Unshuffle(restored, shuffled, width))
				require.Equal(t, src, restored, "width=%d elems=%d extra=%d", width, elems, extra)

				// remainder bytes are never moved
				require.Equal(t, src[elems*width:], shuffled[elems*width:])
			}
		}
	}
}

func TestShuffleMatchesScalar(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for iter := 0; iter < 200; iter++ {
		width := []int{4, 8}[iter%2]
		size := rng.Intn(5000)
		src := randomBytes(rng, size)

		fast := make([]byte, size)
		slow := make([]byte, size)
		require.NoError(t, Shuffle(fast, src, width))
		require.NoError(t, ShuffleScalar(slow, src, width))
		require.Equal(t, slow, fast, "shuffle size=%d width=%d", size, width)

		require.NoError(t, Unshuffle(fast, src, width))
		require.NoError(t, UnshuffleScalar(slow, src, width))
		require.Equal(t, slow, fast, "unshuffle size=%d width=%d", size, width)
	}
}

func TestShuffleDefinition(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for _, width := range []int{4, 8} {
		for _, elems := range testLengths {
			src := randomBytes(rng, elems*width)
			dst := make([]byte, len(src))
			require.NoError(t, Shuffle(dst, src, width))
			for plane := 0; plane < width; plane++ {
				for i := 0; i < elems; i++ {
					require.Equal(t, src[i*width+plane], dst[plane*elems+i])
				}
			}
		}
	}
}

func TestShuffleErrors(t *testing.T) {
	src := make([]byte, 16)

	require.ErrorIs(t, Shuffle(make([]byte, 16), src, 2), errs.ErrUnsupportedWidth)
	require.ErrorIs(t, Unshuffle(make([]byte, 16), src, 16), errs.ErrUnsupportedWidth)
	require.Error(t, Shuffle(make([]byte, 8), src, 4))
}

func TestShouldShuffle(t *testing.T) {
	require.False(t, ShouldShuffle(0))
	require.False(t, ShouldShuffle(3))
	require.True(t, ShouldShuffle(4))
	require.True(t, ShouldShuffle(1000))
}

func TestCheckCapabilities(t *testing.T) {
	c := CheckCapabilities()

	require.NotEmpty(t, c.Arch)
	require.Contains(t, []int{8, 16, 32, 64}, c.SIMDWidth)
	require.Equal(t, "swar64", c.Path)
}

func BenchmarkShuffle8(b *testing.B) {
	src := randomBytes(rand.New(rand.NewSource(1)), 1<<19)
	dst := make([]byte, len(src))
	b.SetBytes(int64(len(src)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Shuffle(dst, src, 8)
	}
}

func BenchmarkShuffleScalar8(b *testing.B) {
	src := randomBytes(rand.New(rand.NewSource(1)), 1<<19)
	dst := make([]byte, len(src))
	b.SetBytes(int64(len(src)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = ShuffleScalar(dst, src, 8)
	}
}
