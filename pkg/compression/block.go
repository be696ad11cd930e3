package compression

import (
	"bytes"
	"io"
	"sync"

	"github.com/ajitpratap0/clmn/pkg/bufpool"
	"github.com/ajitpratap0/clmn/pkg/clmnerrors"
	"github.com/klauspost/compress/zlib"
)

// DefaultChunkSize is the inflate buffer used when BlockConfig.ChunkSize is
// unset.
const DefaultChunkSize = 8 * 1024

// maxInitialCapacity bounds the up-front allocation made from a header's
// declared size.
const maxInitialCapacity = 64 << 20

// BlockConfig configures the column block codec.
type BlockConfig struct {
	Level     Level // zlib level; Default selects the zlib default
	ChunkSize int   // inflate buffer size in bytes
}

// DefaultBlockConfig returns the balanced zlib level with 8KB inflate chunks.
func DefaultBlockConfig() BlockConfig {
	return BlockConfig{
		Level:     Default,
		ChunkSize: DefaultChunkSize,
	}
}

// BlockCodec compresses and decompresses individual column blocks with zlib.
// Decompression is checked against the size recorded in the file header.
//
// BlockCodec is safe for concurrent use.
type BlockCodec struct {
	config     BlockConfig
	writerPool sync.Pool
}

// NewBlockCodec creates a block codec. A zero ChunkSize selects
// DefaultChunkSize.
func NewBlockCodec(config BlockConfig) *BlockCodec {
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultChunkSize
	}
	level := mapZlibLevel(config.Level)

	bc := &BlockCodec{config: config}
	bc.writerPool.New = func() interface{} {
		w, _ := zlib.NewWriterLevel(nil, level)
		return w
	}
	return bc
}

// Config returns the codec configuration.
func (bc *BlockCodec) Config() BlockConfig {
	return bc.config
}

// Compress deflates data into a zlib stream. Empty input compresses to empty
// output.
func (bc *BlockCodec) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return []byte{}, nil
	}

	size := bufpool.SizeFor(len(data))
	buf := bufpool.Get(size)
	defer bufpool.Put(buf, size)

	w := bc.writerPool.Get().(*zlib.Writer)
	defer bc.writerPool.Put(w)

	w.Reset(buf)
	if _, err := w.Write(data); err != nil {
		return nil, clmnerrors.Wrap(err, clmnerrors.ErrorTypeInternal, "failed to deflate block")
	}
	if err := w.Close(); err != nil {
		return nil, clmnerrors.Wrap(err, clmnerrors.ErrorTypeInternal, "failed to finish deflate stream")
	}

	return buf.Clone(), nil
}

// Decompress inflates data and verifies that it yields exactly expected bytes.
// Inflation stops as soon as the output exceeds expected.
//
// Errors:
//   - ErrorTypeSizeMismatch: the output is shorter or longer than expected,
//     including empty input when expected > 0
//   - ErrorTypeCorruptData: data is not a valid zlib stream
func (bc *BlockCodec) Decompress(data []byte, expected int) ([]byte, error) {
	if expected < 0 {
		return nil, clmnerrors.Newf(clmnerrors.ErrorTypeValidation, "negative expected size %d", expected)
	}
	if len(data) == 0 {
		if expected == 0 {
			return []byte{}, nil
		}
		return nil, sizeMismatch(expected, 0, "no compressed data")
	}

	src := bytes.NewReader(data)
	r, err := zlib.NewReader(src)
	if err != nil {
		return nil, clmnerrors.Wrap(err, clmnerrors.ErrorTypeCorruptData, "invalid zlib stream").
			WithDetail("compressed_size", len(data))
	}
	defer r.Close()

	initial := expected
	if initial > maxInitialCapacity {
		initial = maxInitialCapacity
	}
	out := make([]byte, 0, initial)
	chunk := make([]byte, bc.config.ChunkSize)

	for {
		n, err := r.Read(chunk)
		if n > 0 {
			if len(out)+n > expected {
				return nil, sizeMismatch(expected, len(out)+n, "decompressed data exceeds expected size")
			}
			out = append(out, chunk[:n]...)
		}
		if err == io.EOF {
			if src.Len() > 0 {
				return nil, clmnerrors.Newf(clmnerrors.ErrorTypeCorruptData, "%d trailing bytes after zlib stream", src.Len()).
					WithDetail("compressed_size", len(data)).
					WithDetail("trailing", src.Len())
			}
			break
		}
		if err != nil {
			return nil, clmnerrors.Wrap(err, clmnerrors.ErrorTypeCorruptData, "failed to inflate block").
				WithDetail("compressed_size", len(data)).
				WithDetail("inflated", len(out))
		}
	}

	if len(out) != expected {
		return nil, sizeMismatch(expected, len(out), "decompressed data shorter than expected size")
	}
	return out, nil
}

func sizeMismatch(expected, actual int, message string) *clmnerrors.Error {
	return clmnerrors.New(clmnerrors.ErrorTypeSizeMismatch, message).
		WithDetail("expected", expected).
		WithDetail("actual", actual)
}

// mapZlibLevel maps Default to the zlib default and passes explicit levels
// 1 through 9 through unchanged.
func mapZlibLevel(level Level) int {
	switch {
	case level == Default:
		return zlib.DefaultCompression
	case level >= 1 && level <= 9:
		return int(level)
	default:
		return zlib.DefaultCompression
	}
}
