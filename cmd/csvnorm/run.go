package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ruslano69/csvnorm/pkg/etl"
	"github.com/ruslano69/csvnorm/pkg/objectstore"
)

func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Normalize a file or run a configured pipeline",
		Long: `Run the pipeline source → parser → processors → output.

Flags override the values of the --config file. Without --config the
input is read from --input (or stdin) and written as text to --output
(or stdout). An output path ending in .xlsx writes a workbook, an
s3://bucket/key path uploads to S3.

Examples:
  csvnorm run -i data/users.csv -o data/users_transformed.csv
  csvnorm run -i users.csv.zst -o - --output-separator ", "
  csvnorm run -i users.csv -o users.csv.zst --compress
  csvnorm run --config pipeline.yaml --rules rules.yaml
  cat users.csv | csvnorm run --strict > out.csv`,
		Args:    cobra.NoArgs,
		PreRunE: bindFlags(v),
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := buildPipelineConfig(v)
			if err != nil {
				return err
			}
			return runPipeline(cmd, cfg)
		},
	}

	f := cmd.Flags()
	f.StringP("input", "i", "", "input file, s3://bucket/key or - for stdin")
	f.StringP("output", "o", "", "output file, s3://bucket/key or - for stdout")
	f.String("name", "", "pipeline name for audit and result log")
	f.String("separator", "", `input field separator (default ",")`)
	f.String("output-separator", "", `output field separator (default ",")`)
	f.Bool("strict", false, "fail on column count mismatch and duplicate header fields")
	f.Bool("quoted", false, "honour double quotes inside input lines")
	f.Bool("trim-space", false, "trim spaces around input values")
	f.Bool("compress", false, "compress text output with zstd")
	f.Int("chunk-size", 0, "bytes per source read (default 65536)")
	f.Int("batch-size", 0, "records per SQL transaction or broker request")
	f.String("rules", "", "processor rules file (YAML)")
	f.String("audit", "", "append a JSON Lines audit entry to this file")

	return cmd
}

// buildPipelineConfig loads --config (if any) and applies flag overrides
func buildPipelineConfig(v *viper.Viper) (*etl.PipelineConfig, error) {
	cfg := &etl.PipelineConfig{Name: "csvnorm"}
	if path := v.GetString("config"); path != "" {
		loaded, err := etl.LoadConfig(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load pipeline config: %w", err)
		}
		cfg = loaded
	}

	if v.IsSet("name") {
		cfg.Name = v.GetString("name")
	}
	if v.IsSet("input") {
		cfg.Source.Path = v.GetString("input")
		cfg.Source.Type = ""
	}
	if v.IsSet("output") {
		cfg.Output.Path = v.GetString("output")
		cfg.Output.Type = outputTypeFor(cfg.Output.Path)
	}
	if v.IsSet("separator") {
		cfg.Parser.Separator = v.GetString("separator")
	}
	if v.IsSet("output-separator") {
		cfg.Output.Separator = v.GetString("output-separator")
	}
	if v.GetBool("strict") {
		cfg.Parser.Strict = true
	}
	if v.GetBool("quoted") {
		cfg.Parser.Quoted = true
	}
	if v.GetBool("trim-space") {
		cfg.Parser.TrimSpace = true
	}
	if v.GetBool("compress") {
		cfg.Output.Compression = "zstd"
	}
	if n := v.GetInt("chunk-size"); n > 0 {
		cfg.Performance.ChunkSize = n
	}
	if n := v.GetInt("batch-size"); n > 0 {
		cfg.Performance.BatchSize = n
		cfg.Output.BatchSize = n
	}
	if rules := v.GetString("rules"); rules != "" {
		cfg.Transform.Rules = rules
	}
	if path := v.GetString("audit"); path != "" {
		cfg.Audit.Enabled = true
		cfg.Audit.File = path
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// outputTypeFor picks the output type from the path
func outputTypeFor(path string) string {
	switch {
	case objectstore.IsURL(path):
		return "s3"
	case strings.EqualFold(filepath.Ext(path), ".xlsx"):
		return "xlsx"
	default:
		return "text"
	}
}

// runPipeline executes the pipeline and reports progress on stderr
func runPipeline(cmd *cobra.Command, cfg *etl.PipelineConfig) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.New(cmd.ErrOrStderr(), "", 0)

	p := etl.NewProcessor(cfg, etl.Options{
		Stdin:  cmd.InOrStdin(),
		Stdout: cmd.OutOrStdout(),
		OnRetry: func(attempt int, err error, delay time.Duration) {
			logger.Printf("⚠ Attempt %d failed: %v (retrying in %v)", attempt, err, delay.Round(time.Millisecond))
		},
	})

	err := p.Execute(ctx)
	stats := p.GetStats()

	for _, e := range stats.Errors {
		logger.Printf("⚠ %v", e)
	}
	if stats.RecordsFailed > 0 {
		logger.Printf("⚠ %d records sent to the dead letter queue", stats.RecordsFailed)
	}
	if err != nil {
		return err
	}

	logger.Printf("✓ Pipeline %s: %d records read, %d written", cfg.Name, stats.RecordsRead, stats.RecordsWritten)
	logger.Printf("  %s → %s (%v)", stats.Source, stats.Target, stats.Duration.Round(time.Millisecond))
	if stats.Checksum != "" {
		logger.Printf("  xxh3: %s (%d bytes)", stats.Checksum, stats.BytesWritten)
	}
	return nil
}
