package pipeline

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ajitpratap0/clmn/pkg/columnar"
	"github.com/ajitpratap0/clmn/pkg/observability"
	"go.uber.org/zap"
)

// DefaultPreviewRows is the number of rows Read returns when no limit is
// given.
const DefaultPreviewRows = 10

// Preview holds the first rows of selected columns.
type Preview struct {
	Names     []string
	Rows      [][]string
	TotalRows int64
	Elapsed   time.Duration
}

// Remaining returns how many rows were not included.
func (p *Preview) Remaining() int64 {
	return p.TotalRows - int64(len(p.Rows))
}

// Render prints the preview as " | " separated rows under a header line.
func (p *Preview) Render(w io.Writer) error {
	var b strings.Builder
	b.WriteString(strings.Join(p.Names, " | "))
	b.WriteByte('\n')
	b.WriteString(strings.Repeat("-", 50))
	b.WriteByte('\n')
	for _, row := range p.Rows {
		b.WriteString(strings.Join(row, " | "))
		b.WriteByte('\n')
	}
	if k := p.Remaining(); k > 0 {
		fmt.Fprintf(&b, "... (%d more rows)\n", k)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Read decodes the named columns of the CLMN file at path and keeps the first
// limit rows. No columns selects all of them; limit <= 0 selects
// DefaultPreviewRows.
func (p *Pipeline) Read(ctx context.Context, path string, columns []string, limit int) (preview *Preview, err error) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, "pipeline.read")
	defer func() { span.Finish(err) }()
	span.SetAttribute("path", path)
	span.SetAttribute("columns", columns)

	if limit <= 0 {
		limit = DefaultPreviewRows
	}

	r, err := p.open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var table *columnar.Table
	if len(columns) == 0 {
		table, err = r.ReadAll(ctx)
	} else {
		table, err = r.ReadColumns(ctx, columns)
	}
	if err != nil {
		return nil, err
	}

	n := min(limit, table.RowCount())
	rows := make([][]string, n)
	for i := range rows {
		rows[i] = table.Row(i)
	}
	preview = &Preview{
		Names:     table.Names(),
		Rows:      rows,
		TotalRows: r.Header().RowCount(),
		Elapsed:   time.Since(start),
	}

	p.logger.Info("read columns",
		zap.String("path", path),
		zap.Strings("columns", preview.Names),
		zap.Int64("rows", preview.TotalRows),
		zap.Duration("elapsed", preview.Elapsed),
	)
	return preview, nil
}
