package etl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruslano69/csvnorm/pkg/adapters"
	_ "github.com/ruslano69/csvnorm/pkg/adapters/sqlite" // Register sqlite
	"github.com/ruslano69/csvnorm/pkg/audit"
	"github.com/ruslano69/csvnorm/pkg/core/csvstream"
	"github.com/ruslano69/csvnorm/pkg/processors"
	"github.com/ruslano69/csvnorm/pkg/sinks"
	"github.com/ruslano69/csvnorm/pkg/xlsx"
)

const sampleOutput = `name,email,phone,birthdate,city
  John Doe,john.doe@example.com,(123) 456-7890,1990-12-25,New York
  Jane Smith,jane.smith@gmail.com,(555) 123-4567,1985-03-15,Los Angeles
  Bob Johnson,bob@test.com,INVALID,1992-03-22,Chicago
  Alice Brown,alice.brown@company.org,(987) 654-3210,1988-07-04,Houston
`

func TestProcessStream_Sample(t *testing.T) {
	var out bytes.Buffer
	stats, err := ProcessStream(context.Background(), strings.NewReader(SampleData), &out, StreamOptions{})
	require.NoError(t, err)

	assert.Equal(t, sampleOutput, out.String())
	assert.Equal(t, int64(4), stats.RecordsRead)
	assert.Equal(t, int64(4), stats.RecordsWritten)
	assert.Equal(t, processors.ComputeChecksum(out.Bytes()), stats.Checksum)
}

func TestProcessStream_SampleProperties(t *testing.T) {
	var out bytes.Buffer
	_, err := ProcessStream(context.Background(), strings.NewReader(SampleData), &out, StreamOptions{})
	require.NoError(t, err)

	phoneRe := regexp.MustCompile(`^\(\d{3}\) \d{3}-\d{4}$`)
	dateRe := regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	for _, line := range lines[1:] {
		fields := strings.Split(line, ",")
		require.Len(t, fields, 5, line)

		assert.Equal(t, strings.ToLower(fields[1]), fields[1], "email must be lowercase")
		assert.True(t, fields[2] == processors.InvalidMarker || phoneRe.MatchString(fields[2]), "phone %q", fields[2])
		assert.Regexp(t, dateRe, fields[3])
	}
}

func TestProcessStream_ChunkBoundaries(t *testing.T) {
	for _, size := range []int{1, 2, 3, 7, 64} {
		var out bytes.Buffer
		_, err := ProcessStream(context.Background(), strings.NewReader(SampleData), &out, StreamOptions{ChunkSize: size})
		require.NoError(t, err, "chunk size %d", size)
		assert.Equal(t, sampleOutput, out.String(), "chunk size %d", size)
	}
}

func TestProcessStream_HeaderOnly(t *testing.T) {
	var out bytes.Buffer
	stats, err := ProcessStream(context.Background(), strings.NewReader("name,email\n"), &out, StreamOptions{})
	require.NoError(t, err)

	assert.Zero(t, stats.RecordsRead)
	assert.Empty(t, out.String())
}

func TestProcessStream_CompatibilitySeparator(t *testing.T) {
	var out bytes.Buffer
	_, err := ProcessStream(context.Background(),
		strings.NewReader("name,note\njohn doe,\"He said \"\"hi\"\", ok\"\n"),
		&out, StreamOptions{
			Parser:     csvstream.ParserOptions{Quoted: true},
			Serializer: csvstream.SerializerOptions{Separator: ", "},
		})
	require.NoError(t, err)

	assert.Equal(t, "name, note\nJohn Doe, \"He said \"\"hi\"\", ok\"\n", out.String())
}

func TestProcessStream_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("no input", func(t *testing.T) {
		_, err := ProcessStream(ctx, nil, &bytes.Buffer{}, StreamOptions{})
		assert.ErrorIs(t, err, ErrNoInput)
	})

	t.Run("strict parse", func(t *testing.T) {
		_, err := ProcessStream(ctx, strings.NewReader("a,b\n1,2,3\n"), &bytes.Buffer{}, StreamOptions{
			Parser: csvstream.ParserOptions{Strict: true},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to process CSV stream: failed to parse input")
		assert.ErrorIs(t, err, csvstream.ErrColumnCount)

		var lineErr *csvstream.LineError
		require.ErrorAs(t, err, &lineErr)
		assert.Equal(t, 2, lineErr.Line)
	})

	t.Run("transform", func(t *testing.T) {
		validator, err := processors.CreateProcessor(processors.Config{
			Type:   "field_validator",
			Params: map[string]any{"rules": map[string]any{"email": "email"}},
		})
		require.NoError(t, err)

		_, err = ProcessStream(ctx, strings.NewReader("email\nnope\n"), &bytes.Buffer{}, StreamOptions{
			Chain: processors.NewChain(validator),
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to transform record 1")
		assert.ErrorIs(t, err, processors.ErrValidation)
	})

	t.Run("sink", func(t *testing.T) {
		_, err := ProcessStream(ctx, strings.NewReader(SampleData), failingWriter{}, StreamOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to process CSV stream")
		assert.Contains(t, err.Error(), "disk full")
	})

	t.Run("source read", func(t *testing.T) {
		cause := errors.New("connection reset by peer")
		src := io.MultiReader(strings.NewReader("name,email\njohn doe,JOHN@EXAMPLE.COM\n"), iotest.ErrReader(cause))

		var out bytes.Buffer
		stats, err := ProcessStream(ctx, src, &out, StreamOptions{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to process CSV stream: failed to read source")
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, int64(1), stats.RecordsRead)
		assert.Equal(t, "name,email\nJohn Doe,john@example.com\n", out.String())
	})

	t.Run("cancelled", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := ProcessStream(cancelled, strings.NewReader(SampleData), &bytes.Buffer{}, StreamOptions{})
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestProcessFile(t *testing.T) {
	dir := t.TempDir()
	in, err := WriteSampleData(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, SampleFileName), in)

	out := filepath.Join(dir, "users_transformed.csv")
	stats, err := ProcessFile(context.Background(), in, out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, sampleOutput, string(data))
	assert.Equal(t, processors.ComputeChecksum(data), stats.Checksum)
	assert.Equal(t, in, stats.Source)
	assert.Equal(t, out, stats.Target)

	_, err = ProcessFile(context.Background(), "", out)
	assert.ErrorIs(t, err, ErrNoInput)

	_, err = ProcessFile(context.Background(), filepath.Join(dir, "missing.csv"), out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to process CSV stream: failed to open source")
}

func readAudit(t *testing.T, path string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var e map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &e))
		entries = append(entries, e)
	}
	return entries
}

func TestProcessor_ZstdToSQLite(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	var compressed bytes.Buffer
	cw, err := processors.NewCompressWriter(&compressed, 3)
	require.NoError(t, err)
	_, err = cw.Write([]byte(SampleData))
	require.NoError(t, err)
	require.NoError(t, cw.Close())
	in := filepath.Join(dir, "users.csv.zst")
	require.NoError(t, os.WriteFile(in, compressed.Bytes(), 0o644))

	dsn := filepath.Join(dir, "users.db")
	auditPath := filepath.Join(dir, "audit.jsonl")

	cfg := &PipelineConfig{
		Name:   "users-to-sqlite",
		Source: SourceConfig{Path: in},
		Output: sinks.Config{
			Type:     "sql",
			Database: adapters.Config{Type: "sqlite", DSN: dsn},
			Table:    "users",
		},
		Performance: PerformanceConfig{BatchSize: 3},
		Audit:       audit.Config{Enabled: true, Level: "full", File: auditPath},
	}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())

	p := NewProcessor(cfg, Options{})
	require.NoError(t, p.Validate())
	require.NoError(t, p.Execute(ctx))

	stats := p.GetStats()
	assert.Equal(t, int64(4), stats.RecordsRead)
	assert.Equal(t, int64(4), stats.RecordsWritten)
	assert.Equal(t, "sqlite:users", stats.Target)
	assert.Empty(t, stats.Errors)

	check, err := adapters.New(ctx, adapters.Config{Type: "sqlite", DSN: dsn})
	require.NoError(t, err)
	defer check.Close(ctx)

	count, err := check.CountRows(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	entries := readAudit(t, auditPath)
	require.Len(t, entries, 1)
	assert.Equal(t, "run", entries[0]["operation"])
	assert.Equal(t, "success", entries[0]["status"])
	assert.Equal(t, float64(4), entries[0]["records_written"])
	sample, ok := entries[0]["sample"].(map[string]any)
	require.True(t, ok, "full level keeps the first record")
	assert.Equal(t, "john.doe@example.com", sample["email"])
}

func TestProcessor_XLSX(t *testing.T) {
	dir := t.TempDir()
	in, err := WriteSampleData(dir)
	require.NoError(t, err)
	out := filepath.Join(dir, "users.xlsx")

	cfg := &PipelineConfig{
		Name:   "users-to-xlsx",
		Source: SourceConfig{Path: in},
		Output: sinks.Config{Type: "xlsx", Path: out, Sheet: "Users"},
	}
	cfg.SetDefaults()

	require.NoError(t, NewProcessor(cfg, Options{}).Execute(context.Background()))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()

	rows, err := xlsx.ReadSheet(f, "Users")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"name", "email", "phone", "birthdate", "city"}, rows[0])
	assert.Equal(t, "INVALID", rows[3][2])
}

func TestProcessor_StdinRulesAndFailureAudit(t *testing.T) {
	dir := t.TempDir()
	rules := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(rules, []byte(`processors:
  - type: field_masker
    params:
      fields:
        email: partial
`), 0o644))

	var stdout bytes.Buffer
	cfg := &PipelineConfig{
		Name:      "stdin-masked",
		Transform: TransformConfig{Rules: rules},
		Output:    sinks.Config{Separator: ";"},
	}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())

	p := NewProcessor(cfg, Options{Stdin: strings.NewReader("name,email\nada lovelace,ADA@EXAMPLE.COM\n"), Stdout: &stdout})
	require.NoError(t, p.Execute(context.Background()))
	assert.Equal(t, "name;email\nAda Lovelace;a***@example.com\n", stdout.String())
	assert.Equal(t, "stdin", p.GetStats().Source)

	// Ошибка этапа попадает в аудит со статусом failure
	auditPath := filepath.Join(dir, "audit.jsonl")
	cfg.Parser.Strict = true
	cfg.Audit = audit.Config{Enabled: true, File: auditPath}

	p = NewProcessor(cfg, Options{Stdin: strings.NewReader("a,b\n1\n"), Stdout: &stdout})
	err := p.Execute(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, csvstream.ErrColumnCount)

	entries := readAudit(t, auditPath)
	require.Len(t, entries, 1)
	assert.Equal(t, "failure", entries[0]["status"])
	assert.Contains(t, entries[0]["error_message"], "failed to parse input")
}

func TestProcessor_SourceReadError(t *testing.T) {
	cause := errors.New("unexpected EOF from upstream")
	cfg := &PipelineConfig{Name: "broken-source"}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())

	var stdout bytes.Buffer
	stdin := io.MultiReader(strings.NewReader(SampleData[:60]), iotest.ErrReader(cause))
	p := NewProcessor(cfg, Options{Stdin: stdin, Stdout: &stdout})

	err := p.Execute(context.Background())
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "failed to process CSV stream: failed to read source"), err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Zero(t, p.GetStats().RecordsRead)
}
