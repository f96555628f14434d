package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ruslano69/csvnorm/pkg/etl"
)

// maxCellWidth caps a preview column; longer values are truncated with "…"
const maxCellWidth = 32

func newPreviewCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Print the first normalized records as a table",
		Long: `Parse and normalize the beginning of the input and print it as an
aligned table. Wide characters (CJK, emoji) are measured by display width.

Examples:
  csvnorm preview -i data/users.csv
  csvnorm preview -i users.csv.zst --limit 50 --rules rules.yaml`,
		Args:    cobra.NoArgs,
		PreRunE: bindFlags(v),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPreview(cmd, v)
		},
	}

	f := cmd.Flags()
	f.StringP("input", "i", "", "input file, s3://bucket/key or - for stdin")
	f.IntP("limit", "n", etl.DefaultPreviewLimit, "number of records to show")
	f.String("separator", "", `input field separator (default ",")`)
	f.Bool("quoted", false, "honour double quotes inside input lines")
	f.String("rules", "", "processor rules file (YAML)")

	return cmd
}

func runPreview(cmd *cobra.Command, v *viper.Viper) error {
	ctx := cmd.Context()

	cfg := &etl.PipelineConfig{
		Name:      "preview",
		Source:    etl.SourceConfig{Path: v.GetString("input")},
		Parser:    etl.ParserConfig{Separator: v.GetString("separator"), Quoted: v.GetBool("quoted")},
		Transform: etl.TransformConfig{Rules: v.GetString("rules")},
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	records, err := etl.Preview(ctx, cfg, cmd.InOrStdin(), v.GetInt("limit"))
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "(no records)")
		return nil
	}

	rows := make([][]string, len(records))
	for i, rec := range records {
		rows[i] = rec.Values()
	}
	printTable(cmd.OutOrStdout(), records[0].Keys(), rows)
	return nil
}

// printTable renders rows with columns padded to their display width
func printTable(w io.Writer, header []string, rows [][]string) {
	widths := make([]int, len(header))
	measure := func(cells []string) {
		for i, cell := range cells {
			widths[i] = max(widths[i], min(runewidth.StringWidth(cell), maxCellWidth))
		}
	}
	measure(header)
	for _, row := range rows {
		measure(row)
	}

	line := func(cells []string) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			cell = runewidth.Truncate(cell, maxCellWidth, "…")
			parts[i] = runewidth.FillRight(cell, widths[i])
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, " │ "), " "))
	}

	line(header)
	rule := make([]string, len(widths))
	for i, width := range widths {
		rule[i] = strings.Repeat("─", width)
	}
	fmt.Fprintln(w, strings.Join(rule, "─┼─"))
	for _, row := range rows {
		line(row)
	}
}
