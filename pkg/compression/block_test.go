package compression

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/ajitpratap0/clmn/pkg/clmnerrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateBlock(size int) []byte {
	rng := rand.New(rand.NewSource(42))
	words := [][]byte{[]byte("Alice"), []byte("Bob"), []byte("Carol"), {0, 0, 0, 30}}
	var buf bytes.Buffer
	for buf.Len() < size {
		buf.Write(words[rng.Intn(len(words))])
	}
	return buf.Bytes()[:size]
}

func TestBlockCodecRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		size   int
		config BlockConfig
	}{
		{"single byte", 1, DefaultBlockConfig()},
		{"worked example", 14, DefaultBlockConfig()},
		{"one chunk", DefaultChunkSize, DefaultBlockConfig()},
		{"many chunks", 10 * DefaultChunkSize, DefaultBlockConfig()},
		{"small chunks", 5000, BlockConfig{Level: Default, ChunkSize: 7}},
		{"fastest", 50000, BlockConfig{Level: Fastest}},
		{"best", 50000, BlockConfig{Level: Best, ChunkSize: 1024}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codec := NewBlockCodec(tt.config)
			data := generateBlock(tt.size)

			compressed, err := codec.Compress(data)
			require.NoError(t, err)
			require.NotEmpty(t, compressed)

			out, err := codec.Decompress(compressed, len(data))
			require.NoError(t, err)
			assert.Equal(t, data, out)
		})
	}
}

func TestBlockCodecEmpty(t *testing.T) {
	codec := NewBlockCodec(DefaultBlockConfig())

	compressed, err := codec.Compress(nil)
	require.NoError(t, err)
	assert.Empty(t, compressed)

	out, err := codec.Decompress(compressed, 0)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestBlockCodecEmptyInputWithExpectedSize(t *testing.T) {
	codec := NewBlockCodec(DefaultBlockConfig())

	_, err := codec.Decompress(nil, 5)
	require.Error(t, err)
	assert.True(t, clmnerrors.IsType(err, clmnerrors.ErrorTypeSizeMismatch))
	assert.Equal(t, 5, clmnerrors.Details(err)["expected"])
	assert.Equal(t, 0, clmnerrors.Details(err)["actual"])
}

func TestBlockCodecSizeMismatch(t *testing.T) {
	codec := NewBlockCodec(BlockConfig{ChunkSize: 16})
	data := generateBlock(1000)

	compressed, err := codec.Compress(data)
	require.NoError(t, err)

	t.Run("shorter than declared", func(t *testing.T) {
		_, err := codec.Decompress(compressed, len(data)+1)
		require.Error(t, err)
		assert.True(t, clmnerrors.IsType(err, clmnerrors.ErrorTypeSizeMismatch))
		assert.Equal(t, len(data), clmnerrors.Details(err)["actual"])
	})

	t.Run("longer than declared", func(t *testing.T) {
		_, err := codec.Decompress(compressed, len(data)-1)
		require.Error(t, err)
		assert.True(t, clmnerrors.IsType(err, clmnerrors.ErrorTypeSizeMismatch))
	})

	t.Run("stops after first oversized chunk", func(t *testing.T) {
		_, err := codec.Decompress(compressed, 3)
		require.Error(t, err)
		actual := clmnerrors.Details(err)["actual"].(int)
		assert.LessOrEqual(t, actual, 3+16)
	})
}

func TestBlockCodecCorruptData(t *testing.T) {
	codec := NewBlockCodec(DefaultBlockConfig())
	data := generateBlock(4096)

	compressed, err := codec.Compress(data)
	require.NoError(t, err)

	tests := []struct {
		name  string
		input []byte
	}{
		{"garbage", []byte("definitely not zlib")},
		{"truncated", compressed[:len(compressed)/2]},
		{"bad checksum", func() []byte {
			c := append([]byte(nil), compressed...)
			c[len(c)-1] ^= 0xFF
			return c
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Decompress(tt.input, len(data))
			require.Error(t, err)
			assert.True(t, clmnerrors.IsType(err, clmnerrors.ErrorTypeCorruptData), "got %v", err)
		})
	}
}

func TestBlockCodecTrailingBytes(t *testing.T) {
	codec := NewBlockCodec(DefaultBlockConfig())
	data := generateBlock(512)

	compressed, err := codec.Compress(data)
	require.NoError(t, err)

	padded := append(append([]byte(nil), compressed...), "junk"...)
	_, err = codec.Decompress(padded, len(data))
	require.Error(t, err)
	assert.True(t, clmnerrors.IsType(err, clmnerrors.ErrorTypeCorruptData), "got %v", err)
	assert.Equal(t, 4, clmnerrors.Details(err)["trailing"])

	out, err := codec.Decompress(compressed, len(data))
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestBlockCodecNegativeExpected(t *testing.T) {
	codec := NewBlockCodec(DefaultBlockConfig())
	_, err := codec.Decompress([]byte{1}, -1)
	require.Error(t, err)
	assert.True(t, clmnerrors.IsType(err, clmnerrors.ErrorTypeValidation))
}

func TestBlockCodecConcurrent(t *testing.T) {
	codec := NewBlockCodec(DefaultBlockConfig())
	data := generateBlock(20000)

	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			compressed, err := codec.Compress(data)
			if err != nil {
				errs <- err
				return
			}
			out, err := codec.Decompress(compressed, len(data))
			if err == nil && !bytes.Equal(out, data) {
				err = clmnerrors.New(clmnerrors.ErrorTypeInternal, "round trip mismatch")
			}
			errs <- err
		}()
	}
	for i := 0; i < 8; i++ {
		require.NoError(t, <-errs)
	}
}

func TestMapZlibLevel(t *testing.T) {
	assert.Equal(t, -1, mapZlibLevel(Default))
	assert.Equal(t, 1, mapZlibLevel(Fastest))
	assert.Equal(t, 7, mapZlibLevel(Better))
	assert.Equal(t, 9, mapZlibLevel(Best))
	assert.Equal(t, -1, mapZlibLevel(Level(0)))
	assert.Equal(t, -1, mapZlibLevel(Level(12)))
}

func BenchmarkBlockCodec(b *testing.B) {
	codec := NewBlockCodec(DefaultBlockConfig())
	data := generateBlock(1 << 20)

	b.Run("Compress", func(b *testing.B) {
		b.SetBytes(int64(len(data)))
		for i := 0; i < b.N; i++ {
			if _, err := codec.Compress(data); err != nil {
				b.Fatal(err)
			}
		}
	})

	compressed, _ := codec.Compress(data)
	b.Run("Decompress", func(b *testing.B) {
		b.SetBytes(int64(len(data)))
		for i := 0; i < b.N; i++ {
			if _, err := codec.Decompress(compressed, len(data)); err != nil {
				b.Fatal(err)
			}
		}
	})
}
