package pipeline

import (
	"context"
	"os"
	"time"

	"github.com/ajitpratap0/clmn/pkg/clmnerrors"
	"github.com/ajitpratap0/clmn/pkg/columnar"
	"github.com/ajitpratap0/clmn/pkg/compression"
	"github.com/ajitpratap0/clmn/pkg/csvio"
	"github.com/ajitpratap0/clmn/pkg/formats"
	"github.com/ajitpratap0/clmn/pkg/metrics"
	"github.com/ajitpratap0/clmn/pkg/observability"
	"go.uber.org/zap"
)

// opExport labels errors raised while writing non-CSV exports.
const opExport = "export"

// DecodeOptions selects what Decode writes.
type DecodeOptions struct {
	// Format of the output; empty detects it from the output extension
	Format formats.Format
	// Columns to export, in order; empty exports every column
	Columns []string
	// Compression is the format-internal codec for Arrow, Parquet and Avro
	Compression string
}

// DecodeResult summarizes a CLMN export.
type DecodeResult struct {
	Input      string
	Output     string
	Format     formats.Format
	Columns    []string
	Rows       int64
	OutputSize int64
	Elapsed    time.Duration
	RowsPerSec float64
}

// Decode reads the CLMN file at input and writes the selected columns to
// output. Unknown column names fail before any block is read.
func (p *Pipeline) Decode(ctx context.Context, input, output string, opts DecodeOptions) (result *DecodeResult, err error) {
	timer := metrics.NewTimer("decode")
	ctx, span := observability.StartSpan(ctx, "pipeline.decode")
	defer func() { span.Finish(err) }()

	format := opts.Format
	if format == "" {
		format = formats.DetectFormat(output)
	}
	span.SetAttribute("input", input)
	span.SetAttribute("output", output)
	span.SetAttribute("format", string(format))

	logger := p.logger.With(zap.String("input", input), zap.String("output", output))

	r, err := p.open(ctx, input)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var cols []*columnar.Column
	if len(opts.Columns) == 0 {
		cols, err = r.ReadAllColumns(ctx)
	} else {
		cols, err = r.ReadSelectedColumns(ctx, opts.Columns)
	}
	if err != nil {
		return nil, err
	}

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	logger.Debug("decoded columns", zap.Strings("columns", names))

	if err := p.export(output, format, opts.Compression, cols); err != nil {
		return nil, err
	}

	elapsed := timer.Stop()
	rows := r.Header().RowCount()
	result = &DecodeResult{
		Input:      input,
		Output:     output,
		Format:     format,
		Columns:    names,
		Rows:       rows,
		OutputSize: fileSize(output),
		Elapsed:    elapsed,
		RowsPerSec: rate(rows, elapsed),
	}
	p.metrics.SetThroughput(metrics.OpDecode, rows, elapsed)

	logger.Info("export complete",
		zap.String("format", string(format)),
		zap.Int64("rows", rows),
		zap.Int("columns", len(cols)),
		zap.Int64("output_size", result.OutputSize),
		zap.Duration("elapsed", elapsed),
		zap.Float64("rows_per_sec", result.RowsPerSec),
	)
	return result, nil
}

// export writes cols to path. CSV and JSONL honour stream compression by
// extension; the binary formats compress internally.
func (p *Pipeline) export(path string, format formats.Format, codecName string, cols []*columnar.Column) error {
	if format == formats.CSV {
		table, err := columnar.TableFromColumns(cols)
		if err != nil {
			return err
		}
		opts, err := p.csvOptions(path)
		if err != nil {
			return err
		}
		if err := csvio.WriteFile(path, table, opts); err != nil {
			return p.fail(opCSV, err)
		}
		return nil
	}

	enc, err := p.newEncoder(format, codecName)
	if err != nil {
		return err
	}
	if err := p.writeExport(path, format, enc, cols); err != nil {
		_ = os.Remove(path)
		return p.fail(opExport, err)
	}
	return nil
}

func (p *Pipeline) writeExport(path string, format formats.Format, enc formats.Encoder, cols []*columnar.Column) (err error) {
	f, err := os.Create(path) //nolint:gosec // G304: path is an operator-supplied output file
	if err != nil {
		return clmnerrors.Wrap(err, clmnerrors.ErrorTypeFile, "failed to create output file").
			WithDetail("path", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = clmnerrors.Wrap(cerr, clmnerrors.ErrorTypeFile, "failed to close output file").
				WithDetail("path", path)
		}
	}()

	alg := compression.None
	if format == formats.JSONL {
		if alg, err = csvio.ResolveCompression(path, p.config.CSV.StreamCompression); err != nil {
			return err
		}
	}
	codec, err := compression.NewStreamCodec(alg, compression.Level(p.config.CSV.StreamLevel))
	if err != nil {
		return err
	}
	w, err := codec.NewWriter(f)
	if err != nil {
		return err
	}
	if err := enc.Encode(w, cols); err != nil {
		return clmnerrors.Wrapf(err, clmnerrors.TypeOf(err), "failed to export %s", format).
			WithDetail("path", path)
	}
	if err := w.Close(); err != nil {
		return clmnerrors.Wrap(err, clmnerrors.ErrorTypeFile, "failed to finish compressed stream").
			WithDetail("path", path)
	}
	return nil
}
