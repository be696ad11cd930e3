package formats

import (
	"bufio"
	"io"

	"github.com/ajitpratap0/clmn/pkg/columnar"
	"github.com/ajitpratap0/clmn/pkg/compression"
	"github.com/ajitpratap0/clmn/pkg/csvio"
	"github.com/goccy/go-json"
)

type csvEncoder struct {
	opts csvio.Options
}

func newCSVEncoder(config *EncoderConfig) *csvEncoder {
	opts := csvio.DefaultOptions()
	opts.Compression = compression.None
	if config.CSVDelimiter != 0 {
		opts.Delimiter = config.CSVDelimiter
	}
	return &csvEncoder{opts: opts}
}

func (e *csvEncoder) Format() Format { return CSV }

func (e *csvEncoder) Encode(w io.Writer, cols []*columnar.Column) error {
	if _, err := rowCount(cols); err != nil {
		return err
	}
	table, err := columnar.TableFromColumns(cols)
	if err != nil {
		return err
	}
	return csvio.Write(w, table, e.opts)
}

// jsonlEncoder writes one object per row. Keys keep column order, which a
// map would lose.
type jsonlEncoder struct{}

func (e *jsonlEncoder) Format() Format { return JSONL }

func (e *jsonlEncoder) Encode(w io.Writer, cols []*columnar.Column) error {
	n, err := rowCount(cols)
	if err != nil {
		return err
	}

	keys := make([][]byte, len(cols))
	for j, c := range cols {
		if keys[j], err = json.Marshal(c.Name); err != nil {
			return encodeError(err, JSONL)
		}
	}

	bw := bufio.NewWriter(w)
	for i := 0; i < n; i++ {
		_ = bw.WriteByte('{')
		for j, c := range cols {
			if j > 0 {
				_ = bw.WriteByte(',')
			}
			_, _ = bw.Write(keys[j])
			_ = bw.WriteByte(':')
			value, err := json.Marshal(c.Value(i))
			if err != nil {
				return encodeError(err, JSONL).WithDetail("column", c.Name).WithDetail("row", i+1)
			}
			_, _ = bw.Write(value)
		}
		_ = bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		return encodeError(err, JSONL)
	}
	return nil
}
