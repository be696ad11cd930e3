package columnar

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ajitpratap0/clmn/pkg/clmnerrors"
	"github.com/ajitpratap0/clmn/pkg/metrics"
	"github.com/ajitpratap0/clmn/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeBytes(t *testing.T, table *Table) []byte {
	t.Helper()
	var buf bytes.Buffer
	_, err := NewWriter(nil, nil).WriteTo(context.Background(), &buf, table)
	require.NoError(t, err)
	return buf.Bytes()
}

func newRecordingReader(t *testing.T, data []byte) (*Reader, *testutil.RecordingReaderAt) {
	t.Helper()
	rec := testutil.NewRecordingReaderAt(bytes.NewReader(data))
	r, err := NewReader(rec, int64(len(data)), nil, testutil.TestLogger(t))
	require.NoError(t, err)
	return r, rec
}

func TestFileRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "wide.clmn")
	table := wideTable(t, 9, 1000)

	_, err := NewWriter(nil, testutil.TestLogger(t)).WriteFile(ctx, path, table)
	require.NoError(t, err)

	r, err := Open(path, nil, testutil.TestLogger(t))
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, int64(1000), r.Header().RowCount())
	got, err := r.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, table.Names(), got.Names())
	assert.Equal(t, table.Rows(), got.Rows())

	cols, err := r.ReadAllColumns(ctx)
	require.NoError(t, err)
	require.Len(t, cols, 9)
	assert.Equal(t, TypeInt32, cols[0].Type)
	assert.Equal(t, TypeInt64, cols[1].Type)
	assert.Equal(t, TypeFloat64, cols[2].Type)
	assert.Equal(t, TypeString, cols[3].Type)
	assert.Equal(t, int64(3_000_000_000), cols[1].Int64s[0])
}

func TestMmapOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "mapped.clmn")
	table := wideTable(t, 5, 300)
	_, err := NewWriter(nil, testutil.TestLogger(t)).WriteFile(ctx, path, table)
	require.NoError(t, err)

	r, err := Open(path, &ReaderConfig{Mmap: true}, testutil.TestLogger(t))
	require.NoError(t, err)

	got, err := r.ReadColumns(ctx, []string{"col_3", "col_0"})
	require.NoError(t, err)
	want, err := table.Project([]string{"col_3", "col_0"})
	require.NoError(t, err)
	assert.Equal(t, want.Rows(), got.Rows())
	require.NoError(t, r.Close())

	_, err = Open(filepath.Join(t.TempDir(), "missing.clmn"), &ReaderConfig{Mmap: true}, nil)
	assert.True(t, clmnerrors.IsType(err, clmnerrors.ErrorTypeFile))
}

func TestSelectedColumnsMatchProjection(t *testing.T) {
	ctx := context.Background()
	table := wideTable(t, 8, 200)
	data := encodeBytes(t, table)
	r, _ := newRecordingReader(t, data)

	for _, names := range [][]string{
		{"col_0"},
		{"col_7", "col_2"},
		{"col_3", "col_1", "col_6", "col_0"},
	} {
		got, err := r.ReadColumns(ctx, names)
		require.NoError(t, err)
		want, err := table.Project(names)
		require.NoError(t, err)
		assert.Equal(t, want.Names(), got.Names())
		assert.Equal(t, want.Rows(), got.Rows())
	}
}

func TestSelectiveReadTouchesOnlyRequestedBlocks(t *testing.T) {
	data := encodeBytes(t, sampleTable(t))
	r, rec := newRecordingReader(t, data)
	h := r.Header()

	for _, read := range rec.Reads() {
		assert.LessOrEqual(t, read.End(), h.Size(), "opening must only read the header")
	}
	rec.Reset()

	col, err := r.ReadColumn(context.Background(), "age")
	require.NoError(t, err)
	assert.Equal(t, []int32{30, 25}, col.Int32s)
	assert.Equal(t, "age", col.Name)

	for i, c := range h.Columns() {
		touched := rec.Touched(int64(c.Offset()), int64(c.End()))
		assert.Equal(t, c.Name() == "age", touched, "column %d %s", i, c.Name())
	}
	assert.False(t, rec.Touched(0, h.Size()), "header must not be re-read")
}

func TestColumnNotFoundReadsNothing(t *testing.T) {
	r, rec := newRecordingReader(t, encodeBytes(t, sampleTable(t)))
	rec.Reset()

	_, err := r.ReadColumns(context.Background(), []string{"id", "salary"})
	require.Error(t, err)
	assert.True(t, clmnerrors.IsType(err, clmnerrors.ErrorTypeColumnNotFound))
	assert.Equal(t, "salary", clmnerrors.Details(err)["column"])
	assert.Equal(t, []string{"id", "name", "age"}, clmnerrors.Details(err)["available"])
	assert.Empty(t, rec.Reads())
}

func TestInvalidColumnRequests(t *testing.T) {
	r, rec := newRecordingReader(t, encodeBytes(t, sampleTable(t)))
	rec.Reset()
	ctx := context.Background()

	_, err := r.ReadColumns(ctx, nil)
	assert.True(t, clmnerrors.IsType(err, clmnerrors.ErrorTypeValidation))

	_, err = r.ReadColumns(ctx, []string{"id", "id"})
	assert.True(t, clmnerrors.IsType(err, clmnerrors.ErrorTypeValidation))
	assert.Equal(t, "id", clmnerrors.Details(err)["column"])

	assert.Empty(t, rec.Reads())
}

func TestReaderSizeMismatch(t *testing.T) {
	data := encodeBytes(t, sampleTable(t))

	// The "name" entry starts after the 18-byte fixed header and the 21-byte
	// "id" entry; its uncompressed size follows the 2-byte length, the name
	// and the type code.
	sizeOffset := FixedHeaderSize + SchemaEntryFixedSize + len("id") + 2 + len("name") + 1
	require.Equal(t, uint32(12), binary.BigEndian.Uint32(data[sizeOffset:]))
	binary.BigEndian.PutUint32(data[sizeOffset:], 14)

	r, _ := newRecordingReader(t, data)
	ctx := context.Background()

	_, err := r.ReadColumn(ctx, "name")
	require.Error(t, err)
	assert.True(t, clmnerrors.IsType(err, clmnerrors.ErrorTypeSizeMismatch))
	assert.Equal(t, "name", clmnerrors.Details(err)["column"])

	// Other columns are unaffected.
	col, err := r.ReadColumn(ctx, "id")
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2}, col.Int32s)
}

func TestReaderCorruptBlock(t *testing.T) {
	data := encodeBytes(t, sampleTable(t))
	r, _ := newRecordingReader(t, data)
	id := r.Header().Column(0)

	corrupted := append([]byte(nil), data...)
	corrupted[id.End()-1] ^= 0xFF

	r, _ = newRecordingReader(t, corrupted)
	_, err := r.ReadColumn(context.Background(), "id")
	require.Error(t, err)
	assert.True(t, clmnerrors.IsType(err, clmnerrors.ErrorTypeCorruptData))
	assert.Equal(t, "id", clmnerrors.Details(err)["column"])
}

func TestReaderTruncatedFile(t *testing.T) {
	data := encodeBytes(t, sampleTable(t))

	tests := []struct {
		name   string
		length int
	}{
		{"missing last byte", len(data) - 1},
		{"header only", 84},
		{"inside schema", 40},
		{"inside fixed header", 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			truncated := data[:tt.length]
			_, err := NewReader(bytes.NewReader(truncated), int64(len(truncated)), nil, nil)
			require.Error(t, err)
			assert.True(t, clmnerrors.IsType(err, clmnerrors.ErrorTypeCorruptData), "got %v", err)
		})
	}
}

func TestReaderBadMagic(t *testing.T) {
	data := encodeBytes(t, sampleTable(t))
	data[0] = 'X'
	_, err := NewReader(bytes.NewReader(data), int64(len(data)), nil, nil)
	require.Error(t, err)
	assert.True(t, clmnerrors.IsType(err, clmnerrors.ErrorTypeFormat))
}

func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Open(filepath.Join(dir, "absent.clmn"), nil, nil)
	assert.True(t, clmnerrors.IsType(err, clmnerrors.ErrorTypeFile))

	path := filepath.Join(dir, "bogus.clmn")
	require.NoError(t, os.WriteFile(path, []byte(testutil.SampleCSV), 0o644))
	_, err = Open(path, nil, nil)
	require.Error(t, err)
	assert.True(t, clmnerrors.IsType(err, clmnerrors.ErrorTypeFormat))
	assert.Equal(t, path, clmnerrors.Details(err)["path"])
}

func TestReaderTrailingBytesIgnored(t *testing.T) {
	data := append(encodeBytes(t, sampleTable(t)), 0xDE, 0xAD)
	r, _ := newRecordingReader(t, data)
	got, err := r.ReadAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, sampleTable(t).Rows(), got.Rows())
}

func TestReaderConcurrentReads(t *testing.T) {
	table := wideTable(t, 6, 300)
	r, _ := newRecordingReader(t, encodeBytes(t, table))
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 24)
	for i := 0; i < 24; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := table.Names()[i%6]
			col, err := r.ReadColumn(ctx, name)
			if err != nil {
				errs <- err
				return
			}
			want, _ := table.Column(name)
			if !assert.Equal(t, want, col.TextValues()) {
				errs <- assert.AnError
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestReaderMetrics(t *testing.T) {
	m := metrics.NewCodecMetrics()
	data := encodeBytes(t, sampleTable(t))
	r, err := NewReader(bytes.NewReader(data), int64(len(data)), &ReaderConfig{Metrics: m}, nil)
	require.NoError(t, err)

	_, err = r.ReadColumns(context.Background(), []string{"name"})
	require.NoError(t, err)
	_, err = r.ReadColumns(context.Background(), []string{"missing"})
	require.Error(t, err)

	var buf bytes.Buffer
	require.NoError(t, m.WriteText(&buf))
	out := buf.String()
	assert.Contains(t, out, `clmn_columns_total{operation="decode",type="STRING"} 1`)
	assert.Contains(t, out, `clmn_uncompressed_bytes_total{operation="decode"} 12`)
}
