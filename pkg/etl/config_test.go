package etl

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfig(t *testing.T) {
	// Создаем временную директорию для тестовых файлов
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		errMsg  string
	}{
		{
			name: "Valid minimal config",
			yaml: `
name: "users"
source:
  path: "data/users.csv"
`,
			wantErr: false,
		},
		{
			name: "Valid full config",
			yaml: `
name: "users-to-db"
version: "2.0"
description: "Normalize users and load into SQLite"
source:
  type: file
  path: "data/users.csv.zst"
parser:
  separator: ";"
  strict: true
  quoted: true
transform:
  language: "en"
  processors:
    - type: field_masker
      params:
        fields:
          phone: middle
output:
  type: sql
  database:
    type: sqlite
    dsn: "out/users.db"
  table: users
  strategy: replace
performance:
  chunk_size: 4096
  batch_size: 250
audit:
  enabled: true
  level: full
  file: "logs/audit.jsonl"
error_handling:
  enabled: true
  max_attempts: 5
  initial_delay: 100ms
  max_delay: 2s
  backoff: exponential
  dlq:
    enabled: true
    file: "logs/dlq.jsonl"
result_log:
  type: redis
  address: "127.0.0.1:6379"
`,
			wantErr: false,
		},
		{
			name:    "Missing name",
			yaml:    "source:\n  path: in.csv\n",
			wantErr: true,
			errMsg:  "pipeline name is required",
		},
		{
			name:    "Unsupported source type",
			yaml:    "name: x\nsource:\n  type: ftp\n  path: in.csv\n",
			wantErr: true,
			errMsg:  "unsupported type 'ftp'",
		},
		{
			name:    "Unsupported output type",
			yaml:    "name: x\noutput:\n  type: parquet\n",
			wantErr: true,
			errMsg:  "unsupported output type",
		},
		{
			name:    "Invalid language",
			yaml:    "name: x\ntransform:\n  language: \"not a tag!\"\n",
			wantErr: true,
			errMsg:  "invalid language",
		},
		{
			name:    "Bad audit level",
			yaml:    "name: x\naudit:\n  level: verbose\n",
			wantErr: true,
			errMsg:  "audit",
		},
		{
			name:    "Unsupported result log",
			yaml:    "name: x\nresult_log:\n  type: etcd\n",
			wantErr: true,
			errMsg:  "unsupported result_log type",
		},
		{
			name:    "Invalid YAML",
			yaml:    "name: [unclosed",
			wantErr: true,
			errMsg:  "failed to parse YAML",
		},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, "pipeline_"+string(rune('a'+i))+".yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o644); err != nil {
				t.Fatalf("Failed to write config: %v", err)
			}

			_, err := LoadConfig(path)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error containing %q, got nil", tt.errMsg)
				}
				if !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("Expected error containing %q, got %q", tt.errMsg, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
		})
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("Expected read error, got %v", err)
	}
}

func TestSetDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
name: defaults
source:
  path: in.csv
output:
  compression: zstd
performance:
  batch_size: 50
error_handling:
  enabled: true
  dlq:
    enabled: true
result_log:
  type: redis
  address: localhost:6379
`))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"version", cfg.Version, "1.0"},
		{"source type", cfg.Source.Type, "file"},
		{"parser separator", cfg.Parser.Separator, ","},
		{"output type", cfg.Output.Type, "text"},
		{"output path", cfg.Output.Path, "-"},
		{"output separator", cfg.Output.Separator, ","},
		{"compression level", cfg.Output.CompressionLevel, 3},
		{"output batch", cfg.Output.BatchSize, 50},
		{"chunk size", cfg.Performance.ChunkSize, DefaultChunkSize},
		{"audit level", cfg.Audit.Level, "standard"},
		{"retry attempts", cfg.ErrorHandling.MaxAttempts, 3},
		{"retry delay", cfg.ErrorHandling.InitialDelay, 500 * time.Millisecond},
		{"dlq file", cfg.ErrorHandling.DLQ.FilePath, "./dlq.jsonl"},
		{"result name", cfg.ResultLog.Name, "defaults"},
		{"result ttl", cfg.ResultLog.TTL, 3600},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: expected %v, got %v", c.name, c.want, c.got)
		}
	}
}

func TestSetDefaults_SourceKinds(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"", "stdin"},
		{"-", "stdin"},
		{"s3://bucket/users.csv", "s3"},
		{"users.csv", "file"},
	}

	for _, tt := range tests {
		cfg := &PipelineConfig{Name: "x", Source: SourceConfig{Path: tt.path}}
		cfg.SetDefaults()
		if cfg.Source.Type != tt.want {
			t.Errorf("path %q: expected source type %s, got %s", tt.path, tt.want, cfg.Source.Type)
		}
	}
}

func TestSourceValidate_NoInput(t *testing.T) {
	src := SourceConfig{Type: "file"}
	if err := src.Validate(); !errors.Is(err, ErrNoInput) {
		t.Errorf("Expected ErrNoInput, got %v", err)
	}
}
