package columnar

import (
	"github.com/ajitpratap0/clmn/pkg/clmnerrors"
)

type pendingColumn struct {
	name         string
	typ          ColumnType
	uncompressed int
	compressed   int
}

// headerBuilder collects column sizes during encoding and lays out offsets
// once every column is known. It never exposes a partial FileHeader.
type headerBuilder struct {
	rowCount int64
	columns  []pendingColumn
}

func newHeaderBuilder(rowCount int64, capacity int) *headerBuilder {
	return &headerBuilder{
		rowCount: rowCount,
		columns:  make([]pendingColumn, 0, capacity),
	}
}

func (b *headerBuilder) add(name string, t ColumnType, uncompressed, compressed int) error {
	for _, field := range []struct {
		label string
		size  int
	}{{"uncompressed", uncompressed}, {"compressed", compressed}} {
		if field.size > MaxBlockSize {
			return clmnerrors.Newf(clmnerrors.ErrorTypeEncoding, "%s block of %d bytes exceeds maximum of %d", field.label, field.size, MaxBlockSize).
				WithDetail("column", name).
				WithDetail("size", field.size)
		}
	}
	b.columns = append(b.columns, pendingColumn{
		name:         name,
		typ:          t,
		uncompressed: uncompressed,
		compressed:   compressed,
	})
	return nil
}

// headerSize is the fixed header plus one entry per column.
func (b *headerBuilder) headerSize() int64 {
	size := int64(FixedHeaderSize)
	for _, c := range b.columns {
		size += SchemaEntryFixedSize + int64(len(c.name))
	}
	return size
}

// build assigns contiguous offsets starting at the header size and validates
// the result.
func (b *headerBuilder) build() (*FileHeader, error) {
	offset := uint64(b.headerSize())
	schemas := make([]ColumnSchema, len(b.columns))
	for i, c := range b.columns {
		schemas[i] = NewColumnSchema(c.name, c.typ, uint32(c.uncompressed), uint32(c.compressed), offset)
		offset += uint64(c.compressed)
	}

	h, err := NewFileHeader(b.rowCount, schemas)
	if err != nil {
		return nil, clmnerrors.Wrap(err, clmnerrors.ErrorTypeInternal, "writer produced an invalid header")
	}
	return h, nil
}
