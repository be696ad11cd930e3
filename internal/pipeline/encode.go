package pipeline

import (
	"context"
	"time"

	"github.com/ajitpratap0/clmn/pkg/columnar"
	"github.com/ajitpratap0/clmn/pkg/csvio"
	"github.com/ajitpratap0/clmn/pkg/metrics"
	"github.com/ajitpratap0/clmn/pkg/observability"
	"go.uber.org/zap"
)

// opCSV labels errors raised while reading or writing CSV.
const opCSV = "csv"

// EncodeResult summarizes a CSV to CLMN conversion.
type EncodeResult struct {
	Input      string
	Output     string
	Header     *columnar.FileHeader
	InputSize  int64
	OutputSize int64
	Elapsed    time.Duration
	RowsPerSec float64
}

// Encode converts the CSV file at input into the CLMN file at output. The
// output is published atomically and is left untouched on failure.
func (p *Pipeline) Encode(ctx context.Context, input, output string) (result *EncodeResult, err error) {
	timer := metrics.NewTimer("encode")
	ctx, span := observability.StartSpan(ctx, "pipeline.encode")
	defer func() { span.Finish(err) }()
	span.SetAttribute("input", input)
	span.SetAttribute("output", output)

	logger := p.logger.With(zap.String("input", input), zap.String("output", output))
	logger.Info("reading CSV")

	opts, err := p.csvOptions(input)
	if err != nil {
		return nil, err
	}
	table, err := csvio.ReadFile(input, opts)
	if err != nil {
		return nil, p.fail(opCSV, err)
	}
	logger.Debug("parsed CSV",
		zap.Int("rows", table.RowCount()),
		zap.Int("columns", table.ColumnCount()),
		zap.String("stream_compression", string(opts.Compression)),
	)

	header, err := columnar.NewWriter(p.writerConfig(), p.logger).WriteFile(ctx, output, table)
	if err != nil {
		return nil, err
	}

	elapsed := timer.Stop()
	result = &EncodeResult{
		Input:      input,
		Output:     output,
		Header:     header,
		InputSize:  fileSize(input),
		OutputSize: header.FileSize(),
		Elapsed:    elapsed,
		RowsPerSec: rate(header.RowCount(), elapsed),
	}
	p.metrics.SetThroughput(metrics.OpEncode, header.RowCount(), elapsed)
	span.SetAttribute("rows", header.RowCount())

	logger.Info("conversion complete",
		zap.Int64("rows", header.RowCount()),
		zap.Int("columns", header.ColumnCount()),
		zap.Int64("header_size", header.Size()),
		zap.Int64("uncompressed_size", header.TotalUncompressedSize()),
		zap.Int64("compressed_size", header.TotalCompressedSize()),
		zap.Float64("compression_ratio", header.CompressionRatio()),
		zap.Int64("input_size", result.InputSize),
		zap.Int64("output_size", result.OutputSize),
		zap.Duration("elapsed", elapsed),
		zap.Float64("rows_per_sec", result.RowsPerSec),
	)
	return result, nil
}

func rate(rows int64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(rows) / elapsed.Seconds()
}
