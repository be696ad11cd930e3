package pipeline

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/ajitpratap0/clmn/pkg/clmnerrors"
	"github.com/ajitpratap0/clmn/pkg/columnar"
	"github.com/ajitpratap0/clmn/pkg/config"
	"github.com/ajitpratap0/clmn/pkg/csvio"
	"github.com/ajitpratap0/clmn/pkg/formats"
	"github.com/ajitpratap0/clmn/pkg/metrics"
	"github.com/ajitpratap0/clmn/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zapcore"
)

type PipelineSuite struct {
	testutil.IntegrationTestSuite
	metrics  *metrics.CodecMetrics
	pipeline *Pipeline
}

func TestPipelineSuite(t *testing.T) {
	testutil.IntegrationTest(t)
	suite.Run(t, new(PipelineSuite))
}

func (s *PipelineSuite) SetupTest() {
	s.metrics = metrics.NewCodecMetrics()
	p, err := New(config.Default(), s.metrics, testutil.TestLogger(s.T()))
	s.Require().NoError(err)
	s.pipeline = p
}

func (s *PipelineSuite) TestEncodeSample() {
	input := s.CreateTempFile("sample.csv", []byte(testutil.SampleCSV))
	output := s.Path("sample.clmn")

	result, err := s.pipeline.Encode(s.Context(), input, output)
	s.Require().NoError(err)

	h := result.Header
	s.Equal(int64(2), h.RowCount())
	s.Equal([]string{"id", "name", "age"}, h.Names())
	s.Equal(int64(84), h.Size())
	s.Equal(h.FileSize(), result.OutputSize)
	s.Equal(int64(len(testutil.SampleCSV)), result.InputSize)

	info, err := os.Stat(output)
	s.Require().NoError(err)
	s.Equal(h.FileSize(), info.Size())
}

func (s *PipelineSuite) TestEncodeDecodeRoundTrip() {
	input := testutil.WriteCSV(s.T(), s.TempDir(), "gen.csv", 2500)
	clmn := s.Path("gen.clmn")
	output := s.Path("gen_out.csv")

	_, err := s.pipeline.Encode(s.Context(), input, clmn)
	s.Require().NoError(err)

	result, err := s.pipeline.Decode(s.Context(), clmn, output, DecodeOptions{})
	s.Require().NoError(err)
	s.Equal(formats.CSV, result.Format)
	s.Equal(int64(2500), result.Rows)
	s.Equal([]string{"id", "name", "score", "total"}, result.Columns)

	original, err := csvio.ReadFile(input, csvio.DefaultOptions())
	s.Require().NoError(err)
	decoded, err := csvio.ReadFile(output, csvio.DefaultOptions())
	s.Require().NoError(err)

	// Integer and string columns come back verbatim; floats in canonical form.
	for _, name := range []string{"id", "name", "total"} {
		want, _ := original.Column(name)
		got, _ := decoded.Column(name)
		s.Equal(want, got, name)
	}
	scores, _ := decoded.Column("score")
	s.Equal("0.0", scores[0])
	s.Equal("1.01", scores[1])
}

func (s *PipelineSuite) TestCompressedCSV() {
	input := s.Path("gen.csv.gz")
	table, err := csvio.Read(strings.NewReader(testutil.GenerateCSV(100)), csvio.DefaultOptions())
	s.Require().NoError(err)
	s.Require().NoError(csvio.WriteFile(input, table, csvio.DefaultOptions()))

	clmn := s.Path("gz.clmn")
	result, err := s.pipeline.Encode(s.Context(), input, clmn)
	s.Require().NoError(err)
	s.Equal(int64(100), result.Header.RowCount())

	out := s.Path("gz_out.csv.zst")
	_, err = s.pipeline.Decode(s.Context(), clmn, out, DecodeOptions{Columns: []string{"name"}})
	s.Require().NoError(err)

	decoded, err := csvio.ReadFile(out, csvio.DefaultOptions())
	s.Require().NoError(err)
	s.Equal([]string{"name"}, decoded.Names())
	s.Equal(100, decoded.RowCount())
}

func (s *PipelineSuite) TestDecodeFormats() {
	input := s.CreateTempFile("fmt.csv", []byte(testutil.SampleCSV))
	clmn := s.Path("fmt.clmn")
	_, err := s.pipeline.Encode(s.Context(), input, clmn)
	s.Require().NoError(err)

	for _, f := range []formats.Format{formats.Arrow, formats.Parquet, formats.Avro} {
		out := s.Path("fmt." + string(f))
		result, err := s.pipeline.Decode(s.Context(), clmn, out, DecodeOptions{Columns: []string{"age", "name"}})
		s.Require().NoError(err, f)
		s.Equal(f, result.Format)

		data, err := os.ReadFile(out)
		s.Require().NoError(err)
		dec, err := formats.NewDecoder(f)
		s.Require().NoError(err)
		cols, err := dec.Decode(bytes.NewReader(data))
		s.Require().NoError(err, f)
		s.Require().Len(cols, 2)
		s.Equal("age", cols[0].Name)
		s.Equal([]int32{30, 25}, cols[0].Int32s)
		s.Equal([]string{"Alice", "Bob"}, cols[1].Strings)
	}

	out := s.Path("fmt.out")
	_, err = s.pipeline.Decode(s.Context(), clmn, out, DecodeOptions{Format: formats.JSONL})
	s.Require().NoError(err)
	data, err := os.ReadFile(out)
	s.Require().NoError(err)
	s.Equal("{\"id\":1,\"name\":\"Alice\",\"age\":30}\n{\"id\":2,\"name\":\"Bob\",\"age\":25}\n", string(data))
}

func (s *PipelineSuite) TestDecodeUnknownColumn() {
	input := s.CreateTempFile("unknown.csv", []byte(testutil.SampleCSV))
	clmn := s.Path("unknown.clmn")
	_, err := s.pipeline.Encode(s.Context(), input, clmn)
	s.Require().NoError(err)

	out := s.Path("unknown_out.csv")
	_, err = s.pipeline.Decode(s.Context(), clmn, out, DecodeOptions{Columns: []string{"salary"}})
	s.Require().Error(err)
	s.True(clmnerrors.IsType(err, clmnerrors.ErrorTypeColumnNotFound))
	_, statErr := os.Stat(out)
	s.True(os.IsNotExist(statErr), "no output is created")
}

func (s *PipelineSuite) TestRead() {
	input := testutil.WriteCSV(s.T(), s.TempDir(), "read.csv", 25)
	clmn := s.Path("read.clmn")
	_, err := s.pipeline.Encode(s.Context(), input, clmn)
	s.Require().NoError(err)

	preview, err := s.pipeline.Read(s.Context(), clmn, []string{"name", "id"}, 0)
	s.Require().NoError(err)
	s.Equal([]string{"name", "id"}, preview.Names)
	s.Len(preview.Rows, DefaultPreviewRows)
	s.Equal(int64(25), preview.TotalRows)
	s.Equal(int64(15), preview.Remaining())
	s.Equal([]string{"User_0", "1"}, preview.Rows[0])

	var buf bytes.Buffer
	s.Require().NoError(preview.Render(&buf))
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	s.Equal("name | id", lines[0])
	s.Equal(strings.Repeat("-", 50), lines[1])
	s.Equal("User_0 | 1", lines[2])
	s.Equal("... (15 more rows)", lines[len(lines)-1])

	all, err := s.pipeline.Read(s.Context(), clmn, nil, 100)
	s.Require().NoError(err)
	s.Len(all.Rows, 25)
	s.Zero(all.Remaining())
}

func (s *PipelineSuite) TestInspect() {
	input := s.CreateTempFile("inspect.csv", []byte(testutil.SampleCSV))
	clmn := s.Path("inspect.clmn")
	_, err := s.pipeline.Encode(s.Context(), input, clmn)
	s.Require().NoError(err)

	report, err := s.pipeline.Inspect(s.Context(), clmn)
	s.Require().NoError(err)
	s.Equal(uint16(1), report.Version)
	s.Equal(int64(2), report.Rows)
	s.Equal(int64(84), report.HeaderSize)
	s.Equal(int64(28), report.TotalUncompressedSize)
	s.Require().Len(report.Columns, 3)
	s.Equal("STRING", report.Columns[1].Type)
	s.Equal(uint32(12), report.Columns[1].UncompressedSize)
	s.Equal(uint64(84), report.Columns[0].Offset)
	s.Equal(report.FileSize, report.Header.FileSize())
}

func (s *PipelineSuite) TestEncodeErrors() {
	_, err := s.pipeline.Encode(s.Context(), s.Path("missing.csv"), s.Path("missing.clmn"))
	s.True(clmnerrors.IsType(err, clmnerrors.ErrorTypeFile))

	ragged := s.CreateTempFile("ragged.csv", []byte("a,b\n1,2\n3\n"))
	_, err = s.pipeline.Encode(s.Context(), ragged, s.Path("ragged.clmn"))
	s.Require().Error(err)
	s.True(clmnerrors.IsType(err, clmnerrors.ErrorTypeData))
	s.Equal(2, clmnerrors.Details(err)["row"])

	mixed := s.CreateTempFile("mixed.csv", []byte("n\n1\nabc\n"))
	_, err = s.pipeline.Encode(s.Context(), mixed, s.Path("mixed.clmn"))
	s.Require().Error(err)
	s.True(clmnerrors.IsType(err, clmnerrors.ErrorTypeEncoding))
	s.Equal("n", clmnerrors.Details(err)["column"])

	var out bytes.Buffer
	s.Require().NoError(s.metrics.WriteText(&out))
	s.Contains(out.String(), `clmn_errors_total{error_type="data",operation="csv"} 1`)
	s.Contains(out.String(), `clmn_errors_total{error_type="encoding",operation="encode"} 1`)
}

func TestDeclaredTypes(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteCSV(t, dir, "typed.csv", 10)

	cfg := config.Default()
	cfg.Types = map[string]string{"id": "int64", "name": "string"}
	p, err := New(cfg, nil, testutil.TestLogger(t))
	require.NoError(t, err)

	result, err := p.Encode(context.Background(), input, dir+"/typed.clmn")
	require.NoError(t, err)
	id, _, _ := result.Header.Lookup("id")
	assert.Equal(t, columnar.TypeInt64, id.Type())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Types = map[string]string{"id": "decimal"}
	_, err := New(cfg, nil, nil)
	assert.True(t, clmnerrors.IsType(err, clmnerrors.ErrorTypeConfig))
}

func TestEncodeSummaryLog(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteCSV(t, dir, "log.csv", 5)
	logger, logs := testutil.ObservedLogger(zapcore.InfoLevel)

	p, err := New(nil, nil, logger)
	require.NoError(t, err)
	_, err = p.Encode(context.Background(), input, dir+"/log.clmn")
	require.NoError(t, err)

	entries := logs.FilterMessage("conversion complete").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(5), fields["rows"])
	assert.Equal(t, int64(4), fields["columns"])
	assert.Contains(t, fields, "compression_ratio")
}

func TestMmapRead(t *testing.T) {
	dir := t.TempDir()
	input := testutil.WriteCSV(t, dir, "mapped.csv", 40)

	cfg := config.Default()
	cfg.Performance.Mmap = true
	p, err := New(cfg, nil, testutil.TestLogger(t))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = p.Encode(ctx, input, dir+"/mapped.clmn")
	require.NoError(t, err)

	preview, err := p.Read(ctx, dir+"/mapped.clmn", []string{"total"}, 2)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"5000000000"}, {"10000000000"}}, preview.Rows)
	assert.Equal(t, int64(38), preview.Remaining())
}
