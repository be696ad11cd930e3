package main

import (
	"fmt"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/ajitpratap0/clmn/internal/pipeline"
	"github.com/ajitpratap0/clmn/pkg/formats"
)

func (a *app) encodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "csv_to_custom <input.csv> <output.clmn>",
		Aliases: []string{"encode"},
		Short:   "Convert a CSV file to CLMN",
		Long: `Convert a CSV file to CLMN. The first record is the header; column types
are inferred from the first data row unless declared with --type or the
config "types" section. Compressed input (.gz, .zst, .lz4, .s2, .sz) is
detected by extension.

Example:
  clmn csv_to_custom data.csv data.clmn --type zip=string`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.pipeline()
			if err != nil {
				return err
			}
			result, err := p.Encode(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			h := result.Header
			fmt.Printf("Converted %s -> %s\n", result.Input, result.Output)
			fmt.Printf("  %d rows, %d columns, %d bytes (%d bytes input, ratio %.3f) in %s\n",
				h.RowCount(), h.ColumnCount(), result.OutputSize, result.InputSize,
				h.CompressionRatio(), result.Elapsed)
			return nil
		},
	}
}

func (a *app) decodeCommand() *cobra.Command {
	var format, compression string
	var columns []string

	cmd := &cobra.Command{
		Use:     "custom_to_csv <input.clmn> <output>",
		Aliases: []string{"decode"},
		Short:   "Convert a CLMN file to CSV or another format",
		Long: `Convert a CLMN file to CSV, JSON lines, Arrow IPC, Parquet or Avro. The output
format is taken from --format or the output extension. With --columns only
the named columns are read from the file.

Example:
  clmn custom_to_csv data.clmn subset.parquet --columns id,name`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := pipeline.DecodeOptions{Columns: columns, Compression: compression}
			if format != "" {
				f, err := formats.ParseFormat(format)
				if err != nil {
					return err
				}
				opts.Format = f
			}
			p, err := a.pipeline()
			if err != nil {
				return err
			}
			result, err := p.Decode(cmd.Context(), args[0], args[1], opts)
			if err != nil {
				return err
			}
			fmt.Printf("Converted %s -> %s (%s)\n", result.Input, result.Output, result.Format)
			fmt.Printf("  %d rows, %d columns, %d bytes in %s\n",
				result.Rows, len(result.Columns), result.OutputSize, result.Elapsed)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format (csv, jsonl, arrow, parquet, avro); default from extension")
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "Comma-separated columns to export, in order")
	cmd.Flags().StringVar(&compression, "compression", "", "Codec inside Arrow, Parquet or Avro output")
	return cmd
}

func (a *app) readCommand() *cobra.Command {
	var columns []string
	var limit int

	cmd := &cobra.Command{
		Use:   "read <input.clmn>",
		Short: "Print the first rows of selected columns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.pipeline()
			if err != nil {
				return err
			}
			preview, err := p.Read(cmd.Context(), args[0], columns, limit)
			if err != nil {
				return err
			}
			return preview.Render(os.Stdout)
		},
	}
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "Comma-separated columns to read; default all")
	cmd.Flags().IntVarP(&limit, "limit", "n", pipeline.DefaultPreviewRows, "Number of rows to print")
	return cmd
}

func (a *app) inspectCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect <input.clmn>",
		Short: "Show the header of a CLMN file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.pipeline()
			if err != nil {
				return err
			}
			report, err := p.Inspect(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				data, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}
			fmt.Print(report.Header.String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the header as JSON")
	return cmd
}
