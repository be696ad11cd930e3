// Package compression provides the compression layers used by clmn.
//
// # Overview
//
// Two independent codecs live here:
//   - BlockCodec: the zlib (DEFLATE) codec applied to every column block of a
//     CLMN file, with exact-size verification on decompression
//   - StreamCodec: whole-stream compression for CSV input and output
//     (gzip, zstd, lz4, s2, snappy), selected from the file extension
//
// # Block Usage
//
//	codec := compression.NewBlockCodec(compression.DefaultBlockConfig())
//	compressed, err := codec.Compress(encoded)
//	original, err := codec.Decompress(compressed, len(encoded))
//
// # Stream Usage
//
//	alg := compression.DetectAlgorithm("data.csv.zst")
//	codec, err := compression.NewStreamCodec(alg, compression.Default)
//	r, err := codec.NewReader(file)
//	defer r.Close()
package compression

import (
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ajitpratap0/clmn/pkg/clmnerrors"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm represents a stream compression algorithm.
type Algorithm string

const (
	// None represents no compression
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Snappy represents snappy framed compression
	Snappy Algorithm = "snappy"
	// LZ4 represents lz4 frame compression
	LZ4 Algorithm = "lz4"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// S2 represents s2 compression (Snappy compatible)
	S2 Algorithm = "s2"
)

// Level represents compression level, controlling the trade-off between
// compression speed and compression ratio.
type Level int

const (
	// Fastest prioritizes speed over compression ratio.
	Fastest Level = 1
	// Default balances speed and compression.
	Default Level = 5
	// Better improves compression at cost of speed.
	Better Level = 7
	// Best maximizes compression ratio.
	Best Level = 9
)

// String returns the level name, or its number for levels without one.
func (l Level) String() string {
	switch l {
	case Fastest:
		return "fastest"
	case Default:
		return "default"
	case Better:
		return "better"
	case Best:
		return "best"
	default:
		return strconv.Itoa(int(l))
	}
}

var extensions = map[string]Algorithm{
	".gz":   Gzip,
	".gzip": Gzip,
	".zst":  Zstd,
	".zstd": Zstd,
	".lz4":  LZ4,
	".s2":   S2,
	".sz":   Snappy,
}

// DetectAlgorithm returns the stream algorithm implied by the extension of
// path, or None.
func DetectAlgorithm(path string) Algorithm {
	if alg, ok := extensions[strings.ToLower(filepath.Ext(path))]; ok {
		return alg
	}
	return None
}

// ParseAlgorithm converts a configured algorithm name. The empty string and
// "auto" select detection by extension and are reported as ok=false.
func ParseAlgorithm(name string) (Algorithm, bool, error) {
	switch alg := Algorithm(strings.ToLower(strings.TrimSpace(name))); alg {
	case "", "auto":
		return None, false, nil
	case None, Gzip, Snappy, LZ4, Zstd, S2:
		return alg, true, nil
	default:
		return None, false, clmnerrors.Newf(clmnerrors.ErrorTypeConfig, "unsupported compression algorithm: %s", name)
	}
}

// StreamCodec wraps readers and writers with a compression algorithm.
// Implementations are safe for concurrent use; the readers and writers they
// return are not.
type StreamCodec interface {
	// NewReader returns a reader that decompresses src.
	NewReader(src io.Reader) (io.ReadCloser, error)

	// NewWriter returns a writer that compresses into dst. Close flushes the
	// compressed stream but does not close dst.
	NewWriter(dst io.Writer) (io.WriteCloser, error)

	// Algorithm returns the compression algorithm used.
	Algorithm() Algorithm

	// Level returns the compression level configured.
	Level() Level
}

// NewStreamCodec creates the stream codec for alg.
func NewStreamCodec(alg Algorithm, level Level) (StreamCodec, error) {
	base := baseCodec{algorithm: alg, level: level}
	switch alg {
	case None, "":
		base.algorithm = None
		return &noneCodec{base}, nil
	case Gzip:
		return &gzipCodec{base}, nil
	case Snappy:
		return &snappyCodec{base}, nil
	case LZ4:
		return &lz4Codec{base}, nil
	case Zstd:
		return &zstdCodec{base}, nil
	case S2:
		return &s2Codec{base}, nil
	default:
		return nil, clmnerrors.Newf(clmnerrors.ErrorTypeConfig, "unsupported compression algorithm: %s", alg)
	}
}

type baseCodec struct {
	algorithm Algorithm
	level     Level
}

func (bc baseCodec) Algorithm() Algorithm { return bc.algorithm }
func (bc baseCodec) Level() Level         { return bc.level }

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// None codec (pass-through)
type noneCodec struct {
	baseCodec
}

func (nc *noneCodec) NewReader(src io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(src), nil
}

func (nc *noneCodec) NewWriter(dst io.Writer) (io.WriteCloser, error) {
	return nopWriteCloser{dst}, nil
}

// Gzip codec
type gzipCodec struct {
	baseCodec
}

func (gc *gzipCodec) NewReader(src io.Reader) (io.ReadCloser, error) {
	r, err := gzip.NewReader(src)
	if err != nil {
		return nil, clmnerrors.Wrap(err, clmnerrors.ErrorTypeCorruptData, "invalid gzip stream")
	}
	return r, nil
}

func (gc *gzipCodec) NewWriter(dst io.Writer) (io.WriteCloser, error) {
	w, err := gzip.NewWriterLevel(dst, mapGzipLevel(gc.level))
	if err != nil {
		return nil, clmnerrors.Wrap(err, clmnerrors.ErrorTypeConfig, "failed to create gzip writer")
	}
	return w, nil
}

// Snappy codec (framing format)
type snappyCodec struct {
	baseCodec
}

func (sc *snappyCodec) NewReader(src io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(snappy.NewReader(src)), nil
}

func (sc *snappyCodec) NewWriter(dst io.Writer) (io.WriteCloser, error) {
	return snappy.NewBufferedWriter(dst), nil
}

// LZ4 codec
type lz4Codec struct {
	baseCodec
}

func (lc *lz4Codec) NewReader(src io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(lz4.NewReader(src)), nil
}

func (lc *lz4Codec) NewWriter(dst io.Writer) (io.WriteCloser, error) {
	w := lz4.NewWriter(dst)
	if err := w.Apply(lz4.CompressionLevelOption(mapLZ4Level(lc.level))); err != nil {
		return nil, clmnerrors.Wrap(err, clmnerrors.ErrorTypeConfig, "failed to configure lz4 writer")
	}
	return w, nil
}

// Zstd codec
type zstdCodec struct {
	baseCodec
}

func (zc *zstdCodec) NewReader(src io.Reader) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(src)
	if err != nil {
		return nil, clmnerrors.Wrap(err, clmnerrors.ErrorTypeCorruptData, "invalid zstd stream")
	}
	return dec.IOReadCloser(), nil
}

func (zc *zstdCodec) NewWriter(dst io.Writer) (io.WriteCloser, error) {
	enc, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(mapZstdLevel(zc.level)))
	if err != nil {
		return nil, clmnerrors.Wrap(err, clmnerrors.ErrorTypeConfig, "failed to create zstd writer")
	}
	return enc, nil
}

// S2 codec (Snappy-compatible but better compression)
type s2Codec struct {
	baseCodec
}

func (sc *s2Codec) NewReader(src io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(s2.NewReader(src)), nil
}

func (sc *s2Codec) NewWriter(dst io.Writer) (io.WriteCloser, error) {
	return s2.NewWriter(dst, mapS2Level(sc.level)...), nil
}

// Helper functions to map compression levels

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

func mapS2Level(level Level) []s2.WriterOption {
	switch level {
	case Better:
		return []s2.WriterOption{s2.WriterBetterCompression()}
	case Best:
		return []s2.WriterOption{s2.WriterBestCompression()}
	default:
		return nil
	}
}
