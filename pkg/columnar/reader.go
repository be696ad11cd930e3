package columnar

import (
	"context"
	"errors"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/ajitpratap0/clmn/pkg/clmnerrors"
	"github.com/ajitpratap0/clmn/pkg/compression"
	"github.com/ajitpratap0/clmn/pkg/metrics"
	"github.com/ajitpratap0/clmn/pkg/mmap"
	"github.com/ajitpratap0/clmn/pkg/observability"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ReaderConfig configures a Reader.
type ReaderConfig struct {
	Block   compression.BlockConfig
	Workers int                   // parallel column decoders; <= 0 means NumCPU
	Metrics *metrics.CodecMetrics // optional
	// Mmap makes Open map the file into memory instead of issuing a read
	// system call per block
	Mmap bool
}

// DefaultReaderConfig returns 8KB inflate chunks with one decoder per CPU.
func DefaultReaderConfig() *ReaderConfig {
	return &ReaderConfig{
		Block:   compression.DefaultBlockConfig(),
		Workers: runtime.NumCPU(),
	}
}

// Reader reads columns from a CLMN file. The header is parsed once when the
// reader is created; each read fetches only the blocks it needs with
// positioned reads, so a Reader is safe for concurrent use.
type Reader struct {
	ra     io.ReaderAt
	size   int64
	header *FileHeader
	config *ReaderConfig
	codec  *compression.BlockCodec
	logger *zap.Logger
	closer io.Closer
}

// Open opens the CLMN file at path.
func Open(path string, config *ReaderConfig, logger *zap.Logger) (*Reader, error) {
	if config == nil {
		config = DefaultReaderConfig()
	}

	var (
		ra     io.ReaderAt
		size   int64
		closer io.Closer
	)
	if config.Mmap {
		m, err := mmap.Open(path)
		if err != nil {
			return nil, err
		}
		ra, size, closer = m, m.Len(), m
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, clmnerrors.Wrap(err, clmnerrors.ErrorTypeFile, "failed to open file").
				WithDetail("path", path)
		}
		info, err := f.Stat()
		if err != nil {
			_ = f.Close()
			return nil, clmnerrors.Wrap(err, clmnerrors.ErrorTypeFile, "failed to stat file").
				WithDetail("path", path)
		}
		ra, size, closer = f, info.Size(), f
	}

	r, err := NewReader(ra, size, config, logger)
	if err != nil {
		_ = closer.Close()
		return nil, clmnerrors.Wrapf(err, clmnerrors.TypeOf(err), "failed to open %s", path).
			WithDetail("path", path)
	}
	r.closer = closer
	r.logger = r.logger.With(zap.String("path", path), zap.Bool("mmap", config.Mmap))
	return r, nil
}

// NewReader parses the header of the size-byte file behind ra and checks that
// every block lies inside it. Only header bytes are read.
func NewReader(ra io.ReaderAt, size int64, config *ReaderConfig, logger *zap.Logger) (*Reader, error) {
	if config == nil {
		config = DefaultReaderConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	header, err := ReadHeader(io.NewSectionReader(ra, 0, size))
	if err != nil {
		return nil, err
	}
	for _, c := range header.columns {
		if c.End() > uint64(size) {
			return nil, clmnerrors.Newf(clmnerrors.ErrorTypeCorruptData, "column %q block extends past end of file", c.name).
				WithDetail("column", c.name).
				WithDetail("offset", c.offset).
				WithDetail("end", c.End()).
				WithDetail("file_size", size)
		}
	}

	logger = logger.With(zap.String("component", "columnar_reader"))
	logger.Debug("parsed header",
		zap.Int("columns", header.ColumnCount()),
		zap.Int64("rows", header.RowCount()),
		zap.Int64("header_size", header.Size()),
	)

	return &Reader{
		ra:     ra,
		size:   size,
		header: header,
		config: config,
		codec:  compression.NewBlockCodec(config.Block),
		logger: logger,
	}, nil
}

// Header returns the parsed file header.
func (r *Reader) Header() *FileHeader {
	return r.header
}

// Close releases the underlying file when the reader was created by Open.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}

// ReadAll reads every column into a table.
func (r *Reader) ReadAll(ctx context.Context) (*Table, error) {
	cols, err := r.ReadAllColumns(ctx)
	if err != nil {
		return nil, err
	}
	return TableFromColumns(cols)
}

// ReadAllColumns decodes every column in file order.
func (r *Reader) ReadAllColumns(ctx context.Context) ([]*Column, error) {
	indices := make([]int, r.header.ColumnCount())
	for i := range indices {
		indices[i] = i
	}
	return r.readIndices(ctx, "columnar.read_all", indices)
}

// ReadColumns reads the named columns into a table, in the requested order.
func (r *Reader) ReadColumns(ctx context.Context, names []string) (*Table, error) {
	cols, err := r.ReadSelectedColumns(ctx, names)
	if err != nil {
		return nil, err
	}
	return TableFromColumns(cols)
}

// ReadSelectedColumns decodes the named columns in the requested order. Every
// name is resolved before any block is read.
//
// Errors:
//   - ErrorTypeValidation: names is empty or repeats a column
//   - ErrorTypeColumnNotFound: a name is absent; details list the available
//     columns
func (r *Reader) ReadSelectedColumns(ctx context.Context, names []string) ([]*Column, error) {
	indices, err := r.resolve(names)
	if err != nil {
		return nil, err
	}
	return r.readIndices(ctx, "columnar.read_columns", indices)
}

// ReadColumn decodes a single column.
func (r *Reader) ReadColumn(ctx context.Context, name string) (*Column, error) {
	cols, err := r.ReadSelectedColumns(ctx, []string{name})
	if err != nil {
		return nil, err
	}
	return cols[0], nil
}

func (r *Reader) resolve(names []string) ([]int, error) {
	if len(names) == 0 {
		return nil, clmnerrors.New(clmnerrors.ErrorTypeValidation, "at least one column must be requested")
	}
	indices := make([]int, len(names))
	seen := make(map[string]struct{}, len(names))
	for i, name := range names {
		if _, dup := seen[name]; dup {
			return nil, clmnerrors.Newf(clmnerrors.ErrorTypeValidation, "column %q requested more than once", name).
				WithDetail("column", name)
		}
		seen[name] = struct{}{}

		_, idx, ok := r.header.Lookup(name)
		if !ok {
			return nil, columnNotFound(name, r.header.Names())
		}
		indices[i] = idx
	}
	return indices, nil
}

func (r *Reader) readIndices(ctx context.Context, operation string, indices []int) (cols []*Column, err error) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, operation)
	defer func() {
		if err != nil {
			r.config.Metrics.RecordError(metrics.OpDecode, string(clmnerrors.TypeOf(err)))
		}
		span.Finish(err)
	}()
	span.SetAttribute("columns", len(indices))
	span.SetAttribute("rows", r.header.RowCount())

	cols = make([]*Column, len(indices))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers())
	for i, idx := range indices {
		g.Go(func() error {
			col, err := r.readColumnAt(gctx, idx)
			if err != nil {
				return err
			}
			cols[i] = col
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.config.Metrics.AddRows(metrics.OpDecode, r.header.RowCount())
	r.logger.Debug("read columns",
		zap.Int("columns", len(indices)),
		zap.Int64("rows", r.header.RowCount()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return cols, nil
}

func (r *Reader) readColumnAt(ctx context.Context, idx int) (col *Column, err error) {
	start := time.Now()
	s := r.header.columns[idx]
	_, span := observability.StartSpan(ctx, "columnar.read_column")
	defer func() { span.Finish(err) }()
	span.SetAttribute("column", s.name)
	span.SetAttribute("type", s.typ)
	span.SetAttribute("offset", int64(s.offset))
	span.SetAttribute("compressed_size", s.compressedSize)

	block := make([]byte, s.compressedSize)
	if len(block) > 0 {
		n, err := r.ra.ReadAt(block, int64(s.offset))
		if n < len(block) {
			if err == nil || errors.Is(err, io.EOF) {
				return nil, clmnerrors.Newf(clmnerrors.ErrorTypeCorruptData, "truncated block for column %q", s.name).
					WithDetail("column", s.name).
					WithDetail("offset", s.offset).
					WithDetail("expected", len(block)).
					WithDetail("actual", n)
			}
			return nil, clmnerrors.Wrapf(err, clmnerrors.ErrorTypeFile, "failed to read block for column %q", s.name).
				WithDetail("column", s.name).
				WithDetail("offset", s.offset)
		}
	}

	data, err := r.codec.Decompress(block, int(s.uncompressedSize))
	if err != nil {
		return nil, clmnerrors.Wrapf(err, clmnerrors.TypeOf(err), "failed to decompress column %q", s.name).
			WithDetail("column", s.name).
			WithDetail("offset", s.offset)
	}
	col, err = DecodeColumn(data, s.typ, r.header.rowCount)
	if err != nil {
		return nil, clmnerrors.Wrapf(err, clmnerrors.TypeOf(err), "failed to decode column %q", s.name).
			WithDetail("column", s.name)
	}
	col.Name = s.name

	elapsed := time.Since(start)
	r.config.Metrics.ObserveColumn(metrics.OpDecode, s.typ.String(), int64(s.uncompressedSize), int64(s.compressedSize), elapsed)
	r.logger.Debug("decoded column",
		zap.String("column", s.name),
		zap.Stringer("type", s.typ),
		zap.Uint64("offset", s.offset),
		zap.Uint32("compressed_size", s.compressedSize),
		zap.Uint32("uncompressed_size", s.uncompressedSize),
		zap.Duration("elapsed", elapsed),
	)
	return col, nil
}

func (r *Reader) workers() int {
	if r.config.Workers > 0 {
		return r.config.Workers
	}
	return runtime.NumCPU()
}
