package formats

import (
	"bytes"
	"context"
	"io"

	"github.com/ajitpratap0/clmn/pkg/clmnerrors"
	"github.com/ajitpratap0/clmn/pkg/columnar"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

type parquetEncoder struct {
	config *EncoderConfig
	codec  compress.Compression
}

func newParquetEncoder(config *EncoderConfig) (*parquetEncoder, error) {
	codec, err := getParquetCompression(config.Compression)
	if err != nil {
		return nil, err
	}
	return &parquetEncoder{config: config, codec: codec}, nil
}

func getParquetCompression(name string) (compress.Compression, error) {
	switch name {
	case "", "snappy":
		return compress.Codecs.Snappy, nil
	case "none", "uncompressed":
		return compress.Codecs.Uncompressed, nil
	case "gzip":
		return compress.Codecs.Gzip, nil
	case "zstd":
		return compress.Codecs.Zstd, nil
	case "brotli":
		return compress.Codecs.Brotli, nil
	default:
		return compress.Codecs.Uncompressed, clmnerrors.Newf(clmnerrors.ErrorTypeConfig, "unsupported Parquet compression: %s", name)
	}
}

func (e *parquetEncoder) Format() Format { return Parquet }

func (e *parquetEncoder) Encode(w io.Writer, cols []*columnar.Column) error {
	n, err := rowCount(cols)
	if err != nil {
		return err
	}
	schema, err := toArrowSchema(cols)
	if err != nil {
		return err
	}

	mem := memory.NewGoAllocator()
	rowGroup := e.config.RowGroupSize
	if rowGroup <= 0 {
		rowGroup = parquet.DefaultMaxRowGroupLen
	}
	props := parquet.NewWriterProperties(
		parquet.WithCompression(e.codec),
		parquet.WithMaxRowGroupLength(rowGroup),
		parquet.WithCreatedBy("clmn"),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(
		pqarrow.WithAllocator(mem),
		pqarrow.WithStoreSchema(),
	)

	// The parquet writer closes its sink; the caller owns w.
	fw, err := pqarrow.NewFileWriter(schema, writerOnly{w}, props, arrowProps)
	if err != nil {
		return encodeError(err, Parquet)
	}

	builder := array.NewRecordBuilder(mem, schema)
	defer builder.Release()

	batch := batchSize(e.config.BatchSize, n)
	for lo := 0; lo < n; lo += batch {
		appendArrowBatch(builder, cols, lo, min(lo+batch, n))
		rec := builder.NewRecord()
		err := fw.WriteBuffered(rec)
		rec.Release()
		if err != nil {
			_ = fw.Close()
			return encodeError(err, Parquet)
		}
	}
	if err := fw.Close(); err != nil {
		return encodeError(err, Parquet)
	}
	return nil
}

type parquetDecoder struct{}

func (parquetDecoder) Format() Format { return Parquet }

func (parquetDecoder) Decode(r io.Reader) ([]*columnar.Column, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, clmnerrors.Wrap(err, clmnerrors.ErrorTypeFile, "failed to read Parquet data")
	}

	table, err := pqarrow.ReadTable(context.Background(), bytes.NewReader(data),
		parquet.NewReaderProperties(memory.DefaultAllocator), pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return nil, decodeError(err, Parquet)
	}
	defer table.Release()

	cols, err := fromArrowSchema(table.Schema())
	if err != nil {
		return nil, err
	}
	for j, c := range cols {
		for _, chunk := range table.Column(j).Data().Chunks() {
			if err := appendArrowArray(c, chunk); err != nil {
				return nil, err
			}
		}
	}
	return cols, nil
}
