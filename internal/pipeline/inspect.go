package pipeline

import (
	"context"

	"github.com/ajitpratap0/clmn/pkg/columnar"
)

// ColumnReport describes one schema entry.
type ColumnReport struct {
	Name             string  `json:"name"`
	Type             string  `json:"type"`
	TypeCode         uint8   `json:"type_code"`
	UncompressedSize uint32  `json:"uncompressed_size"`
	CompressedSize   uint32  `json:"compressed_size"`
	Offset           uint64  `json:"offset"`
	CompressionRatio float64 `json:"compression_ratio"`
}

// InspectReport describes a CLMN file without decoding any block.
type InspectReport struct {
	Path                  string         `json:"path"`
	Version               uint16         `json:"version"`
	Rows                  int64          `json:"rows"`
	HeaderSize            int64          `json:"header_size"`
	FileSize              int64          `json:"file_size"`
	TotalUncompressedSize int64          `json:"total_uncompressed_size"`
	TotalCompressedSize   int64          `json:"total_compressed_size"`
	CompressionRatio      float64        `json:"compression_ratio"`
	Columns               []ColumnReport `json:"columns"`

	// Header is the parsed header, for the detailed text form
	Header *columnar.FileHeader `json:"-"`
}

// Inspect parses the header of the CLMN file at path.
func (p *Pipeline) Inspect(ctx context.Context, path string) (*InspectReport, error) {
	r, err := p.open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	h := r.Header()
	report := &InspectReport{
		Path:                  path,
		Version:               columnar.Version,
		Rows:                  h.RowCount(),
		HeaderSize:            h.Size(),
		FileSize:              fileSize(path),
		TotalUncompressedSize: h.TotalUncompressedSize(),
		TotalCompressedSize:   h.TotalCompressedSize(),
		CompressionRatio:      h.CompressionRatio(),
		Columns:               make([]ColumnReport, h.ColumnCount()),
		Header:                h,
	}
	for i, c := range h.Columns() {
		report.Columns[i] = ColumnReport{
			Name:             c.Name(),
			Type:             c.Type().String(),
			TypeCode:         c.Type().Code(),
			UncompressedSize: c.UncompressedSize(),
			CompressedSize:   c.CompressedSize(),
			Offset:           c.Offset(),
			CompressionRatio: c.CompressionRatio(),
		}
	}
	return report, nil
}
