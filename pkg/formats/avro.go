package formats

import (
	"io"
	"strconv"
	"strings"

	"github.com/ajitpratap0/clmn/pkg/clmnerrors"
	"github.com/ajitpratap0/clmn/pkg/columnar"
	"github.com/goccy/go-json"
	"github.com/linkedin/goavro/v2"
)

// avroColumnsKey is the OCF metadata entry holding the original column names,
// since Avro field names are restricted to [A-Za-z_][A-Za-z0-9_]*.
const avroColumnsKey = "clmn.columns"

type avroEncoder struct {
	config      *EncoderConfig
	compression string
}

func newAvroEncoder(config *EncoderConfig) (*avroEncoder, error) {
	compression, err := getAvroCompression(config.Compression)
	if err != nil {
		return nil, err
	}
	return &avroEncoder{config: config, compression: compression}, nil
}

func getAvroCompression(name string) (string, error) {
	switch name {
	case "", "deflate":
		return goavro.CompressionDeflateLabel, nil
	case "snappy":
		return goavro.CompressionSnappyLabel, nil
	case "none", "null":
		return goavro.CompressionNullLabel, nil
	default:
		return "", clmnerrors.Newf(clmnerrors.ErrorTypeConfig, "unsupported Avro compression: %s", name)
	}
}

func (e *avroEncoder) Format() Format { return Avro }

func (e *avroEncoder) Encode(w io.Writer, cols []*columnar.Column) error {
	n, err := rowCount(cols)
	if err != nil {
		return err
	}

	fieldNames := avroFieldNames(cols)
	schema, err := toAvroSchema(cols, fieldNames)
	if err != nil {
		return err
	}
	codec, err := goavro.NewCodec(schema)
	if err != nil {
		return encodeError(err, Avro)
	}

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	meta, err := json.Marshal(names)
	if err != nil {
		return encodeError(err, Avro)
	}

	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Codec:           codec,
		CompressionName: e.compression,
		MetaData:        map[string][]byte{avroColumnsKey: meta},
	})
	if err != nil {
		return encodeError(err, Avro)
	}

	batch := batchSize(e.config.BatchSize, n)
	block := make([]interface{}, 0, batch)
	for i := 0; i < n; i++ {
		record := make(map[string]interface{}, len(cols))
		for j, c := range cols {
			record[fieldNames[j]] = c.Value(i)
		}
		block = append(block, record)
		if len(block) == batch || i == n-1 {
			if err := ocf.Append(block); err != nil {
				return encodeError(err, Avro).WithDetail("row", i+1)
			}
			block = block[:0]
		}
	}
	return nil
}

func toAvroSchema(cols []*columnar.Column, fieldNames []string) (string, error) {
	type avroField struct {
		Name string `json:"name"`
		Type string `json:"type"`
	}
	fields := make([]avroField, len(cols))
	for i, c := range cols {
		var t string
		switch c.Type {
		case columnar.TypeInt32:
			t = "int"
		case columnar.TypeInt64:
			t = "long"
		case columnar.TypeFloat64:
			t = "double"
		case columnar.TypeString:
			t = "string"
		default:
			return "", clmnerrors.Newf(clmnerrors.ErrorTypeInvalidTypeCode, "column %q has invalid type %s", c.Name, c.Type).
				WithDetail("column", c.Name)
		}
		fields[i] = avroField{Name: fieldNames[i], Type: t}
	}
	schema, err := json.Marshal(map[string]interface{}{
		"type":      "record",
		"name":      "Row",
		"namespace": "clmn",
		"fields":    fields,
	})
	if err != nil {
		return "", encodeError(err, Avro)
	}
	return string(schema), nil
}

// avroFieldNames maps column names to unique valid Avro names.
func avroFieldNames(cols []*columnar.Column) []string {
	names := make([]string, len(cols))
	used := make(map[string]bool, len(cols))
	for i, c := range cols {
		base := sanitizeAvroName(c.Name)
		name := base
		for k := 2; used[name]; k++ {
			name = base + "_" + strconv.Itoa(k)
		}
		used[name] = true
		names[i] = name
	}
	return names
}

func sanitizeAvroName(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

type avroDecoder struct{}

func (avroDecoder) Format() Format { return Avro }

func (avroDecoder) Decode(r io.Reader) ([]*columnar.Column, error) {
	ocf, err := goavro.NewOCFReader(r)
	if err != nil {
		return nil, decodeError(err, Avro)
	}

	var schema struct {
		Fields []struct {
			Name string      `json:"name"`
			Type interface{} `json:"type"`
		} `json:"fields"`
	}
	if err := json.Unmarshal([]byte(ocf.Codec().Schema()), &schema); err != nil {
		return nil, decodeError(err, Avro)
	}

	var names []string
	if meta, ok := ocf.MetaData()[avroColumnsKey]; ok {
		if err := json.Unmarshal(meta, &names); err != nil {
			return nil, decodeError(err, Avro)
		}
	}
	if len(names) != len(schema.Fields) {
		names = make([]string, len(schema.Fields))
		for i, f := range schema.Fields {
			names[i] = f.Name
		}
	}

	cols := make([]*columnar.Column, len(schema.Fields))
	for i, f := range schema.Fields {
		c := &columnar.Column{Name: names[i]}
		switch f.Type {
		case "int":
			c.Type = columnar.TypeInt32
		case "long":
			c.Type = columnar.TypeInt64
		case "double":
			c.Type = columnar.TypeFloat64
		case "string":
			c.Type = columnar.TypeString
		default:
			return nil, clmnerrors.Newf(clmnerrors.ErrorTypeSchema, "field %q has unsupported Avro type %v", f.Name, f.Type).
				WithDetail("column", names[i])
		}
		cols[i] = c
	}

	for row := 1; ocf.Scan(); row++ {
		datum, err := ocf.Read()
		if err != nil {
			return nil, decodeError(err, Avro).WithDetail("row", row)
		}
		record, ok := datum.(map[string]interface{})
		if !ok {
			return nil, clmnerrors.Newf(clmnerrors.ErrorTypeCorruptData, "unexpected Avro datum %T", datum).
				WithDetail("row", row)
		}
		for i, f := range schema.Fields {
			if err := appendAvroValue(cols[i], record[f.Name]); err != nil {
				return nil, err.WithDetail("row", row)
			}
		}
	}
	if err := ocf.Err(); err != nil {
		return nil, decodeError(err, Avro)
	}
	return cols, nil
}

func appendAvroValue(c *columnar.Column, v interface{}) *clmnerrors.Error {
	ok := false
	switch c.Type {
	case columnar.TypeInt32:
		var x int32
		if x, ok = v.(int32); ok {
			c.Int32s = append(c.Int32s, x)
		}
	case columnar.TypeInt64:
		var x int64
		if x, ok = v.(int64); ok {
			c.Int64s = append(c.Int64s, x)
		}
	case columnar.TypeFloat64:
		var x float64
		if x, ok = v.(float64); ok {
			c.Float64s = append(c.Float64s, x)
		}
	case columnar.TypeString:
		var x string
		if x, ok = v.(string); ok {
			c.Strings = append(c.Strings, x)
		}
	}
	if !ok {
		return clmnerrors.Newf(clmnerrors.ErrorTypeCorruptData, "column %q holds %T, expected %s", c.Name, v, c.Type).
			WithDetail("column", c.Name)
	}
	return nil
}
