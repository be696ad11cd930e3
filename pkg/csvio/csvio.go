// Package csvio reads and writes the CSV side of a conversion. The first
// record is the header; every following record is a data row with exactly as
// many fields as the header. Files may be wrapped in gzip, zstd, lz4, s2 or
// snappy, chosen from the extension unless configured explicitly.
package csvio

import (
	"bufio"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/ajitpratap0/clmn/pkg/clmnerrors"
	"github.com/ajitpratap0/clmn/pkg/columnar"
	"github.com/ajitpratap0/clmn/pkg/compression"
)

const bufferSize = 64 * 1024

// Options controls CSV parsing and output.
type Options struct {
	Delimiter rune
	TrimSpace bool
	// Compression wraps the stream; empty detects it from the file name
	// (files only) and None disables it
	Compression compression.Algorithm
	Level       compression.Level
}

// DefaultOptions returns comma-separated, trimmed fields with compression
// detected from the file extension.
func DefaultOptions() Options {
	return Options{
		Delimiter: ',',
		TrimSpace: true,
		Level:     compression.Default,
	}
}

// ResolveCompression turns a configured stream compression setting into the
// algorithm for path. "auto" and "" fall back to the extension.
func ResolveCompression(path, setting string) (compression.Algorithm, error) {
	alg, explicit, err := compression.ParseAlgorithm(setting)
	if err != nil {
		return compression.None, err
	}
	if !explicit {
		return compression.DetectAlgorithm(path), nil
	}
	return alg, nil
}

func (o Options) forPath(path string) Options {
	if o.Compression == "" {
		o.Compression = compression.DetectAlgorithm(path)
	}
	return o
}

// ReadFile reads the CSV file at path into a table.
func ReadFile(path string, opts Options) (*columnar.Table, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is an operator-supplied input file
	if err != nil {
		return nil, clmnerrors.Wrap(err, clmnerrors.ErrorTypeFile, "failed to open CSV file").
			WithDetail("path", path)
	}
	defer f.Close()

	table, err := Read(f, opts.forPath(path))
	if err != nil {
		return nil, clmnerrors.Wrapf(err, clmnerrors.TypeOf(err), "failed to read CSV file %s", path).
			WithDetail("path", path)
	}
	return table, nil
}

// Read parses CSV from r into a table.
func Read(r io.Reader, opts Options) (*columnar.Table, error) {
	codec, err := compression.NewStreamCodec(opts.Compression, opts.Level)
	if err != nil {
		return nil, err
	}
	src, err := codec.NewReader(bufio.NewReaderSize(r, bufferSize))
	if err != nil {
		return nil, err
	}
	defer src.Close()

	cr := csv.NewReader(src)
	cr.Comma = delimiter(opts)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, clmnerrors.New(clmnerrors.ErrorTypeData, "CSV input has no header")
		}
		return nil, parseError(err)
	}
	names := make([]string, len(header))
	for i, h := range header {
		names[i] = field(h, opts)
	}
	if len(names) == 0 || (len(names) == 1 && names[0] == "") {
		return nil, clmnerrors.New(clmnerrors.ErrorTypeData, "CSV input has no columns")
	}

	columns := make([][]string, len(names))
	for row := 1; ; row++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, parseError(err).WithDetail("row", row)
		}
		if len(record) != len(names) {
			return nil, clmnerrors.Newf(clmnerrors.ErrorTypeData, "row %d has %d columns, expected %d", row, len(record), len(names)).
				WithDetail("row", row).
				WithDetail("expected", len(names)).
				WithDetail("actual", len(record))
		}
		for i, v := range record {
			columns[i] = append(columns[i], field(v, opts))
		}
	}
	if len(columns[0]) == 0 {
		return nil, clmnerrors.New(clmnerrors.ErrorTypeData, "CSV input has no data rows")
	}

	table := columnar.NewTable()
	for i, name := range names {
		if err := table.Add(name, columns[i]); err != nil {
			return nil, clmnerrors.Wrap(err, clmnerrors.ErrorTypeData, "invalid CSV header")
		}
	}
	return table, nil
}

// WriteFile writes table to path as CSV. A partially written file is removed
// on failure.
func WriteFile(path string, table *columnar.Table, opts Options) (err error) {
	f, err := os.Create(path) //nolint:gosec // G304: path is an operator-supplied output file
	if err != nil {
		return clmnerrors.Wrap(err, clmnerrors.ErrorTypeFile, "failed to create CSV file").
			WithDetail("path", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = clmnerrors.Wrap(cerr, clmnerrors.ErrorTypeFile, "failed to close CSV file").
				WithDetail("path", path)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	if err := Write(f, table, opts.forPath(path)); err != nil {
		return clmnerrors.Wrapf(err, clmnerrors.TypeOf(err), "failed to write CSV file %s", path).
			WithDetail("path", path)
	}
	return nil
}

// Write writes the header row followed by every data row.
func Write(w io.Writer, table *columnar.Table, opts Options) error {
	codec, err := compression.NewStreamCodec(opts.Compression, opts.Level)
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(w, bufferSize)
	dst, err := codec.NewWriter(bw)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(dst)
	cw.Comma = delimiter(opts)
	if err := cw.Write(table.Names()); err != nil {
		return clmnerrors.Wrap(err, clmnerrors.ErrorTypeFile, "failed to write CSV header")
	}
	for i := 0; i < table.RowCount(); i++ {
		if err := cw.Write(table.Row(i)); err != nil {
			return clmnerrors.Wrap(err, clmnerrors.ErrorTypeFile, "failed to write CSV row").
				WithDetail("row", i+1)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return clmnerrors.Wrap(err, clmnerrors.ErrorTypeFile, "failed to flush CSV")
	}
	if err := dst.Close(); err != nil {
		return clmnerrors.Wrap(err, clmnerrors.ErrorTypeFile, "failed to finish compressed stream")
	}
	if err := bw.Flush(); err != nil {
		return clmnerrors.Wrap(err, clmnerrors.ErrorTypeFile, "failed to flush output")
	}
	return nil
}

func delimiter(opts Options) rune {
	if opts.Delimiter == 0 {
		return ','
	}
	return opts.Delimiter
}

func field(v string, opts Options) string {
	if opts.TrimSpace {
		return strings.TrimSpace(v)
	}
	return v
}

func parseError(err error) *clmnerrors.Error {
	e := clmnerrors.Wrap(err, clmnerrors.ErrorTypeData, "malformed CSV")
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		e = e.WithDetail("line", pe.Line).WithDetail("field", pe.Column)
	}
	return e
}
