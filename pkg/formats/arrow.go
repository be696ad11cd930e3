package formats

import (
	"bytes"
	"io"
	"strings"

	"github.com/ajitpratap0/clmn/pkg/clmnerrors"
	"github.com/ajitpratap0/clmn/pkg/columnar"
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// arrowEncoder writes the Arrow IPC file format, one record batch per
// BatchSize rows.
type arrowEncoder struct {
	config *EncoderConfig
	opts   []ipc.Option
}

func newArrowEncoder(config *EncoderConfig) (*arrowEncoder, error) {
	var opts []ipc.Option
	switch config.Compression {
	case "", "none":
	case "zstd":
		opts = append(opts, ipc.WithZstd())
	case "lz4":
		opts = append(opts, ipc.WithLZ4())
	default:
		return nil, clmnerrors.Newf(clmnerrors.ErrorTypeConfig, "unsupported Arrow compression: %s", config.Compression)
	}
	return &arrowEncoder{config: config, opts: opts}, nil
}

func (e *arrowEncoder) Format() Format { return Arrow }

func (e *arrowEncoder) Encode(w io.Writer, cols []*columnar.Column) error {
	n, err := rowCount(cols)
	if err != nil {
		return err
	}
	schema, err := toArrowSchema(cols)
	if err != nil {
		return err
	}

	mem := memory.NewGoAllocator()
	opts := append([]ipc.Option{ipc.WithSchema(schema), ipc.WithAllocator(mem)}, e.opts...)
	fw, err := ipc.NewFileWriter(w, opts...)
	if err != nil {
		return encodeError(err, Arrow)
	}

	builder := array.NewRecordBuilder(mem, schema)
	defer builder.Release()

	batch := batchSize(e.config.BatchSize, n)
	for lo := 0; lo < n; lo += batch {
		hi := min(lo+batch, n)
		appendArrowBatch(builder, cols, lo, hi)
		rec := builder.NewRecord()
		err := fw.Write(rec)
		rec.Release()
		if err != nil {
			return encodeError(err, Arrow)
		}
	}
	if err := fw.Close(); err != nil {
		return encodeError(err, Arrow)
	}
	return nil
}

func batchSize(configured, rows int) int {
	if configured <= 0 {
		configured = 64 * 1024
	}
	return max(1, min(configured, rows))
}

func toArrowSchema(cols []*columnar.Column) (*arrow.Schema, error) {
	fields := make([]arrow.Field, len(cols))
	for i, c := range cols {
		var dt arrow.DataType
		switch c.Type {
		case columnar.TypeInt32:
			dt = arrow.PrimitiveTypes.Int32
		case columnar.TypeInt64:
			dt = arrow.PrimitiveTypes.Int64
		case columnar.TypeFloat64:
			dt = arrow.PrimitiveTypes.Float64
		case columnar.TypeString:
			dt = arrow.BinaryTypes.String
		default:
			return nil, clmnerrors.Newf(clmnerrors.ErrorTypeInvalidTypeCode, "column %q has invalid type %s", c.Name, c.Type).
				WithDetail("column", c.Name)
		}
		fields[i] = arrow.Field{Name: c.Name, Type: dt}
	}
	return arrow.NewSchema(fields, nil), nil
}

func appendArrowBatch(b *array.RecordBuilder, cols []*columnar.Column, lo, hi int) {
	for j, c := range cols {
		switch fb := b.Field(j).(type) {
		case *array.Int32Builder:
			fb.AppendValues(c.Int32s[lo:hi], nil)
		case *array.Int64Builder:
			fb.AppendValues(c.Int64s[lo:hi], nil)
		case *array.Float64Builder:
			fb.AppendValues(c.Float64s[lo:hi], nil)
		case *array.StringBuilder:
			fb.AppendValues(c.Strings[lo:hi], nil)
		}
	}
}

// fromArrowSchema creates empty columns matching schema.
func fromArrowSchema(schema *arrow.Schema) ([]*columnar.Column, error) {
	cols := make([]*columnar.Column, schema.NumFields())
	for i, f := range schema.Fields() {
		c := &columnar.Column{Name: f.Name}
		switch f.Type.ID() {
		case arrow.INT32:
			c.Type = columnar.TypeInt32
		case arrow.INT64:
			c.Type = columnar.TypeInt64
		case arrow.FLOAT64:
			c.Type = columnar.TypeFloat64
		case arrow.STRING, arrow.LARGE_STRING:
			c.Type = columnar.TypeString
		default:
			return nil, clmnerrors.Newf(clmnerrors.ErrorTypeSchema, "column %q has unsupported type %s", f.Name, f.Type).
				WithDetail("column", f.Name)
		}
		cols[i] = c
	}
	return cols, nil
}

// appendArrowArray appends the values of arr to c.
func appendArrowArray(c *columnar.Column, arr arrow.Array) error {
	if arr.NullN() > 0 {
		return clmnerrors.Newf(clmnerrors.ErrorTypeData, "column %q contains nulls", c.Name).
			WithDetail("column", c.Name)
	}
	switch a := arr.(type) {
	case *array.Int32:
		c.Int32s = append(c.Int32s, a.Int32Values()...)
	case *array.Int64:
		c.Int64s = append(c.Int64s, a.Int64Values()...)
	case *array.Float64:
		c.Float64s = append(c.Float64s, a.Float64Values()...)
	case *array.String:
		for i := 0; i < a.Len(); i++ {
			c.Strings = append(c.Strings, strings.Clone(a.Value(i)))
		}
	case *array.LargeString:
		for i := 0; i < a.Len(); i++ {
			c.Strings = append(c.Strings, strings.Clone(a.Value(i)))
		}
	default:
		return clmnerrors.Newf(clmnerrors.ErrorTypeSchema, "column %q has unexpected array %s", c.Name, arr.DataType()).
			WithDetail("column", c.Name)
	}
	return nil
}

type arrowDecoder struct{}

func (arrowDecoder) Format() Format { return Arrow }

func (arrowDecoder) Decode(r io.Reader) ([]*columnar.Column, error) {
	// The file footer is at the end; the IPC reader needs random access.
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, clmnerrors.Wrap(err, clmnerrors.ErrorTypeFile, "failed to read Arrow data")
	}
	fr, err := ipc.NewFileReader(bytes.NewReader(data), ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, decodeError(err, Arrow)
	}
	defer fr.Close()

	cols, err := fromArrowSchema(fr.Schema())
	if err != nil {
		return nil, err
	}
	for i := 0; i < fr.NumRecords(); i++ {
		rec, err := fr.Record(i)
		if err != nil {
			return nil, decodeError(err, Arrow).WithDetail("batch", i)
		}
		for j, c := range cols {
			if err := appendArrowArray(c, rec.Column(j)); err != nil {
				return nil, err
			}
		}
	}
	return cols, nil
}
