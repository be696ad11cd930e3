package csvio

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ajitpratap0/clmn/pkg/clmnerrors"
	"github.com/ajitpratap0/clmn/pkg/columnar"
	"github.com/ajitpratap0/clmn/pkg/compression"
	"github.com/ajitpratap0/clmn/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead(t *testing.T) {
	table, err := Read(strings.NewReader(testutil.SampleCSV), DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name", "age"}, table.Names())
	assert.Equal(t, 2, table.RowCount())
	assert.Equal(t, []string{"1", "Alice", "30"}, table.Row(0))
}

func TestReadTrimsAndQuotes(t *testing.T) {
	input := " id , note \n 1 ,\"hello, world\"\n2,  padded  \n"

	table, err := Read(strings.NewReader(input), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "note"}, table.Names())
	notes, _ := table.Column("note")
	assert.Equal(t, []string{"hello, world", "padded"}, notes)

	opts := DefaultOptions()
	opts.TrimSpace = false
	table, err = Read(strings.NewReader("a,b\n 1,2 \n"), opts)
	require.NoError(t, err)
	assert.Equal(t, []string{" 1", "2 "}, table.Row(0))
}

func TestReadDelimiter(t *testing.T) {
	opts := DefaultOptions()
	opts.Delimiter = ';'
	table, err := Read(strings.NewReader("a;b\n1,5;x\n"), opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"1,5", "x"}, table.Row(0))
}

func TestReadErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		row     interface{}
		errType clmnerrors.ErrorType
	}{
		{"empty input", "", nil, clmnerrors.ErrorTypeData},
		{"header only", "a,b\n", nil, clmnerrors.ErrorTypeData},
		{"short row", "a,b\n1,2\n3\n", 2, clmnerrors.ErrorTypeData},
		{"long row", "a,b\n1,2,3\n", 1, clmnerrors.ErrorTypeData},
		{"bare quote", "a,b\n1,x\"y\n", 1, clmnerrors.ErrorTypeData},
		{"duplicate header", "a,a\n1,2\n", nil, clmnerrors.ErrorTypeData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Read(strings.NewReader(tt.input), DefaultOptions())
			require.Error(t, err)
			assert.True(t, clmnerrors.IsType(err, tt.errType), "got %v", err)
			if tt.row != nil {
				assert.Equal(t, tt.row, clmnerrors.Details(err)["row"])
			}
		})
	}
}

func TestWrite(t *testing.T) {
	table := columnar.NewTable()
	require.NoError(t, table.Add("id", []string{"1", "2"}))
	require.NoError(t, table.Add("note", []string{"plain", "with, comma"}))

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, table, DefaultOptions()))
	assert.Equal(t, "id,note\n1,plain\n2,\"with, comma\"\n", buf.String())
}

func TestFileRoundTripCompressed(t *testing.T) {
	dir := t.TempDir()
	source, err := Read(strings.NewReader(testutil.GenerateCSV(300)), DefaultOptions())
	require.NoError(t, err)

	for _, name := range []string{"out.csv", "out.csv.gz", "out.csv.zst", "out.csv.lz4", "out.csv.s2", "out.csv.sz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, WriteFile(path, source, DefaultOptions()))

			got, err := ReadFile(path, DefaultOptions())
			require.NoError(t, err)
			assert.Equal(t, source.Names(), got.Names())
			assert.Equal(t, source.Rows(), got.Rows())
		})
	}

	raw, err := os.ReadFile(filepath.Join(dir, "out.csv.gz"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1f, 0x8b}, raw[:2], "gzip magic")
}

func TestExplicitCompressionOverridesExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	table, err := Read(strings.NewReader(testutil.SampleCSV), DefaultOptions())
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Compression = compression.Zstd
	require.NoError(t, WriteFile(path, table, opts))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x28, 0xb5, 0x2f, 0xfd}, raw[:4], "zstd magic")

	got, err := ReadFile(path, opts)
	require.NoError(t, err)
	assert.Equal(t, table.Rows(), got.Rows())
}

func TestResolveCompression(t *testing.T) {
	alg, err := ResolveCompression("x.csv.gz", "auto")
	require.NoError(t, err)
	assert.Equal(t, compression.Gzip, alg)

	alg, err = ResolveCompression("x.csv.gz", "none")
	require.NoError(t, err)
	assert.Equal(t, compression.None, alg)

	alg, err = ResolveCompression("x.csv", "")
	require.NoError(t, err)
	assert.Equal(t, compression.None, alg)

	_, err = ResolveCompression("x.csv", "rar")
	assert.True(t, clmnerrors.IsType(err, clmnerrors.ErrorTypeConfig))
}

func TestFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadFile(filepath.Join(dir, "missing.csv"), DefaultOptions())
	assert.True(t, clmnerrors.IsType(err, clmnerrors.ErrorTypeFile))

	table, err := Read(strings.NewReader(testutil.SampleCSV), DefaultOptions())
	require.NoError(t, err)
	err = WriteFile(filepath.Join(dir, "no", "such", "dir.csv"), table, DefaultOptions())
	assert.True(t, clmnerrors.IsType(err, clmnerrors.ErrorTypeFile))

	path := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n1\n"), 0o644))
	_, err = ReadFile(path, DefaultOptions())
	require.Error(t, err)
	assert.Equal(t, path, clmnerrors.Details(err)["path"])
	assert.Equal(t, 1, clmnerrors.Details(err)["row"])
}
