package columnar

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"
	"unicode/utf8"

	"github.com/ajitpratap0/clmn/pkg/clmnerrors"
	"github.com/ajitpratap0/clmn/pkg/compression"
	"github.com/ajitpratap0/clmn/pkg/metrics"
	"github.com/ajitpratap0/clmn/pkg/observability"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// WriterConfig configures a Writer.
type WriterConfig struct {
	Block   compression.BlockConfig
	Workers int                   // parallel column encoders; <= 0 means NumCPU
	Types   map[string]ColumnType // declared types; other columns are inferred
	Metrics *metrics.CodecMetrics // optional
}

// DefaultWriterConfig returns the default zlib settings with one encoder per
// CPU.
func DefaultWriterConfig() *WriterConfig {
	return &WriterConfig{
		Block:   compression.DefaultBlockConfig(),
		Workers: runtime.NumCPU(),
	}
}

// Writer encodes tables into CLMN files. A Writer may be reused and shared
// between goroutines; each output file must have a single writer.
type Writer struct {
	config *WriterConfig
	codec  *compression.BlockCodec
	logger *zap.Logger
}

// NewWriter creates a writer. A nil config selects DefaultWriterConfig and a
// nil logger discards log output.
func NewWriter(config *WriterConfig, logger *zap.Logger) *Writer {
	if config == nil {
		config = DefaultWriterConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		config: config,
		codec:  compression.NewBlockCodec(config.Block),
		logger: logger.With(zap.String("component", "columnar_writer")),
	}
}

// EncodedFile is a fully encoded CLMN file held in memory.
type EncodedFile struct {
	Header *FileHeader
	Blocks [][]byte // compressed blocks in schema order
}

// WriteTo writes the header followed by every block. It implements
// io.WriterTo.
func (f *EncodedFile) WriteTo(w io.Writer) (int64, error) {
	header := f.Header.AppendBinary(nil)
	var total int64

	n, err := w.Write(header)
	total += int64(n)
	if err != nil {
		return total, clmnerrors.Wrap(err, clmnerrors.ErrorTypeFile, "failed to write header")
	}
	for i, block := range f.Blocks {
		n, err := w.Write(block)
		total += int64(n)
		if err != nil {
			return total, clmnerrors.Wrap(err, clmnerrors.ErrorTypeFile, "failed to write column block").
				WithDetail("column", f.Header.Column(i).Name())
		}
	}
	return total, nil
}

type encodedBlock struct {
	typ          ColumnType
	uncompressed int
	compressed   []byte
}

// Encode encodes and compresses every column of table and lays out the file.
// Columns are processed in parallel; the result does not depend on
// scheduling.
func (w *Writer) Encode(ctx context.Context, table *Table) (result *EncodedFile, err error) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "columnar.encode")
	defer func() {
		if err != nil {
			w.config.Metrics.RecordError(metrics.OpEncode, string(clmnerrors.TypeOf(err)))
		}
		span.Finish(err)
	}()

	if err := w.validateTable(table); err != nil {
		return nil, err
	}
	names := table.Names()
	rowCount := table.RowCount()
	span.SetAttribute("columns", len(names))
	span.SetAttribute("rows", rowCount)

	for name := range w.config.Types {
		if _, ok := table.Column(name); !ok {
			w.logger.Warn("declared type for unknown column ignored", zap.String("column", name))
		}
	}

	blocks := make([]encodedBlock, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.workers())
	for i, name := range names {
		g.Go(func() error {
			values, _ := table.Column(name)
			block, err := w.encodeColumn(gctx, name, values)
			if err != nil {
				return err
			}
			blocks[i] = block
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	builder := newHeaderBuilder(int64(rowCount), len(names))
	for i, name := range names {
		if err := builder.add(name, blocks[i].typ, blocks[i].uncompressed, len(blocks[i].compressed)); err != nil {
			return nil, err
		}
	}
	header, err := builder.build()
	if err != nil {
		return nil, err
	}

	result = &EncodedFile{Header: header, Blocks: make([][]byte, len(blocks))}
	for i := range blocks {
		result.Blocks[i] = blocks[i].compressed
	}

	w.config.Metrics.AddRows(metrics.OpEncode, int64(rowCount))
	w.logger.Info("encoded table",
		zap.Int("rows", rowCount),
		zap.Int("columns", len(names)),
		zap.Int64("header_size", header.Size()),
		zap.Int64("uncompressed_size", header.TotalUncompressedSize()),
		zap.Int64("compressed_size", header.TotalCompressedSize()),
		zap.Float64("compression_ratio", header.CompressionRatio()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

func (w *Writer) encodeColumn(ctx context.Context, name string, values []string) (block encodedBlock, err error) {
	start := time.Now()
	_, span := observability.StartSpan(ctx, "columnar.encode_column")
	defer func() { span.Finish(err) }()

	t, declared := w.config.Types[name]
	if !declared {
		t = InferType(values[0])
	}
	span.SetAttribute("column", name)
	span.SetAttribute("type", t)
	span.SetAttribute("declared", declared)

	encoded, err := EncodeColumn(values, t)
	if err != nil {
		return encodedBlock{}, clmnerrors.Wrapf(err, clmnerrors.TypeOf(err), "failed to encode column %q", name).
			WithDetail("column", name)
	}
	compressed, err := w.codec.Compress(encoded)
	if err != nil {
		return encodedBlock{}, clmnerrors.Wrapf(err, clmnerrors.TypeOf(err), "failed to compress column %q", name).
			WithDetail("column", name)
	}

	elapsed := time.Since(start)
	w.config.Metrics.ObserveColumn(metrics.OpEncode, t.String(), int64(len(encoded)), int64(len(compressed)), elapsed)
	w.logger.Debug("encoded column",
		zap.String("column", name),
		zap.Stringer("type", t),
		zap.Bool("declared", declared),
		zap.Int("uncompressed_size", len(encoded)),
		zap.Int("compressed_size", len(compressed)),
		zap.Duration("elapsed", elapsed),
	)
	return encodedBlock{typ: t, uncompressed: len(encoded), compressed: compressed}, nil
}

// validateTable checks every precondition that can be checked before any
// column is encoded.
func (w *Writer) validateTable(table *Table) error {
	if table == nil || table.ColumnCount() == 0 {
		return clmnerrors.New(clmnerrors.ErrorTypeValidation, "table must contain at least one column")
	}
	if table.RowCount() == 0 {
		return clmnerrors.New(clmnerrors.ErrorTypeValidation, "table must contain at least one row")
	}
	for _, name := range table.Names() {
		switch {
		case name == "":
			return clmnerrors.New(clmnerrors.ErrorTypeValidation, "column name must not be empty")
		case len(name) > MaxNameLength:
			return clmnerrors.Newf(clmnerrors.ErrorTypeValidation, "column name of %d bytes exceeds maximum of %d", len(name), MaxNameLength)
		case !utf8.ValidString(name):
			return clmnerrors.Newf(clmnerrors.ErrorTypeValidation, "column name %q is not valid UTF-8", name).
				WithDetail("column", name)
		}
	}
	for name, t := range w.config.Types {
		if !t.Valid() {
			return clmnerrors.Wrap(invalidType(t), clmnerrors.ErrorTypeValidation, "invalid declared type").
				WithDetail("column", name)
		}
	}
	return nil
}

func (w *Writer) workers() int {
	if w.config.Workers > 0 {
		return w.config.Workers
	}
	return runtime.NumCPU()
}

// WriteTo encodes table and writes the complete file to dst. Nothing is
// written if encoding fails.
func (w *Writer) WriteTo(ctx context.Context, dst io.Writer, table *Table) (*FileHeader, error) {
	encoded, err := w.Encode(ctx, table)
	if err != nil {
		return nil, err
	}
	if _, err := encoded.WriteTo(dst); err != nil {
		return nil, err
	}
	return encoded.Header, nil
}

// WriteFile encodes table and publishes it at path atomically: the file is
// written to a temporary sibling, synced, and renamed into place. On failure
// the destination is left untouched.
func (w *Writer) WriteFile(ctx context.Context, path string, table *Table) (*FileHeader, error) {
	encoded, err := w.Encode(ctx, table)
	if err != nil {
		return nil, err
	}

	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return nil, clmnerrors.Wrap(err, clmnerrors.ErrorTypeFile, "failed to create temporary file").
			WithDetail("path", path)
	}
	tmpName := tmp.Name()
	published := false
	defer func() {
		if !published {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := encoded.WriteTo(tmp); err != nil {
		return nil, clmnerrors.Wrap(err, clmnerrors.ErrorTypeFile, "failed to write file").WithDetail("path", path)
	}
	if err := tmp.Sync(); err != nil {
		return nil, clmnerrors.Wrap(err, clmnerrors.ErrorTypeFile, "failed to sync file").WithDetail("path", path)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return nil, clmnerrors.Wrap(err, clmnerrors.ErrorTypeFile, "failed to set file mode").WithDetail("path", path)
	}
	if err := tmp.Close(); err != nil {
		return nil, clmnerrors.Wrap(err, clmnerrors.ErrorTypeFile, "failed to close file").WithDetail("path", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return nil, clmnerrors.Wrap(err, clmnerrors.ErrorTypeFile, "failed to publish file").WithDetail("path", path)
	}
	published = true

	w.logger.Info("wrote file",
		zap.String("path", path),
		zap.Int64("size", encoded.Header.FileSize()),
	)
	return encoded.Header, nil
}
