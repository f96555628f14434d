package etl

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/ruslano69/csvnorm/pkg/audit"
	"github.com/ruslano69/csvnorm/pkg/core/csvstream"
	"github.com/ruslano69/csvnorm/pkg/objectstore"
	"github.com/ruslano69/csvnorm/pkg/processors"
	"github.com/ruslano69/csvnorm/pkg/resultlog"
	"github.com/ruslano69/csvnorm/pkg/retry"
	"github.com/ruslano69/csvnorm/pkg/sinks"
)

// PipelineConfig содержит полную конфигурацию пайплайна нормализации
type PipelineConfig struct {
	Name          string            `yaml:"name"`
	Version       string            `yaml:"version"`
	Description   string            `yaml:"description"`
	Source        SourceConfig      `yaml:"source"`
	Parser        ParserConfig      `yaml:"parser"`
	Transform     TransformConfig   `yaml:"transform"`
	Output        sinks.Config      `yaml:"output"`
	Performance   PerformanceConfig `yaml:"performance"`
	Audit         audit.Config      `yaml:"audit"`
	ErrorHandling retry.Config      `yaml:"error_handling"`
	ResultLog     resultlog.Config  `yaml:"result_log"`
}

// SourceConfig определяет источник текста с разделителями
type SourceConfig struct {
	Type        string             `yaml:"type"`        // file, stdin, s3
	Path        string             `yaml:"path"`        // Путь к файлу или s3://bucket/key
	Compression string             `yaml:"compression"` // "" (по расширению .zst), none, zstd
	S3          objectstore.Config `yaml:"s3"`
}

// ParserConfig - параметры разбора входа
type ParserConfig struct {
	Separator string `yaml:"separator"`  // По умолчанию ","
	Strict    bool   `yaml:"strict"`     // Ошибка на несовпадение числа колонок
	Quoted    bool   `yaml:"quoted"`     // Учитывать кавычки внутри строки
	TrimSpace bool   `yaml:"trim_space"` // Обрезать пробелы вокруг значений
}

// TransformConfig определяет цепочку процессоров
type TransformConfig struct {
	// SkipDefaults - не добавлять нормализатор с правилами по умолчанию
	SkipDefaults bool `yaml:"skip_defaults"`

	// Language - язык для регистра имен (BCP 47, например "tr")
	Language string `yaml:"language"`

	// Rules - YAML файл с цепочкой процессоров (processors: [...])
	Rules string `yaml:"rules"`

	// Processors - процессоры, заданные прямо в конфигурации
	Processors []processors.Config `yaml:"processors"`
}

// PerformanceConfig определяет параметры производительности
type PerformanceConfig struct {
	ChunkSize int `yaml:"chunk_size"` // Байт за одно чтение источника
	BatchSize int `yaml:"batch_size"` // Записей в пачке SQL / брокера
}

// DefaultChunkSize - размер чтения источника по умолчанию
const DefaultChunkSize = 64 * 1024

// LoadConfig загружает конфигурацию из YAML файла
func LoadConfig(path string) (*PipelineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig разбирает конфигурацию из YAML
func ParseConfig(data []byte) (*PipelineConfig, error) {
	var config PipelineConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Значения по умолчанию нужны до валидации: пустой type = file/text
	config.SetDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate проверяет корректность конфигурации
func (c *PipelineConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("pipeline name is required")
	}

	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("source: %w", err)
	}

	if err := c.Parser.Validate(); err != nil {
		return fmt.Errorf("parser: %w", err)
	}

	if err := c.Transform.Validate(); err != nil {
		return fmt.Errorf("transform: %w", err)
	}

	if err := c.Output.Validate(); err != nil {
		return fmt.Errorf("output: %w", err)
	}

	if c.Performance.ChunkSize < 0 || c.Performance.BatchSize < 0 {
		return fmt.Errorf("performance: chunk_size and batch_size must not be negative")
	}

	if _, err := audit.ParseLevel(c.Audit.Level); err != nil {
		return fmt.Errorf("audit: %w", err)
	}

	if err := c.ErrorHandling.Validate(); err != nil {
		return fmt.Errorf("error_handling: %w", err)
	}

	if err := c.ResultLog.Validate(); err != nil {
		return fmt.Errorf("result_log: %w", err)
	}

	return nil
}

// Validate проверяет корректность SourceConfig
func (s *SourceConfig) Validate() error {
	switch s.Type {
	case "file":
		if s.Path == "" {
			return ErrNoInput
		}
	case "stdin":
	case "s3":
		if _, err := objectstore.ParseURL(s.Path); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported type '%s', must be one of: file, stdin, s3", s.Type)
	}

	switch s.Compression {
	case "", "none", "zstd":
	default:
		return fmt.Errorf("unsupported compression '%s', must be 'none' or 'zstd'", s.Compression)
	}

	return nil
}

// Validate проверяет корректность ParserConfig
func (p *ParserConfig) Validate() error {
	if strings.ContainsAny(p.Separator, "\n\r\"") {
		return fmt.Errorf("separator must not contain quotes or line breaks")
	}
	return nil
}

// Validate проверяет корректность TransformConfig
func (t *TransformConfig) Validate() error {
	if t.Language != "" {
		if _, err := language.Parse(t.Language); err != nil {
			return fmt.Errorf("invalid language '%s': %w", t.Language, err)
		}
	}
	for i, p := range t.Processors {
		if p.Type == "" {
			return fmt.Errorf("processors[%d]: type is required", i)
		}
	}
	return nil
}

// ParserOptions переводит секцию parser в настройки csvstream
func (p ParserConfig) ParserOptions() csvstream.ParserOptions {
	return csvstream.ParserOptions{
		Separator: p.Separator,
		Strict:    p.Strict,
		Quoted:    p.Quoted,
		TrimSpace: p.TrimSpace,
	}
}

// SetDefaults устанавливает значения по умолчанию для необязательных полей
func (c *PipelineConfig) SetDefaults() {
	if c.Version == "" {
		c.Version = "1.0"
	}

	// Defaults для source
	c.Source.Type = strings.ToLower(c.Source.Type)
	if c.Source.Type == "" {
		switch {
		case c.Source.Path == "" || c.Source.Path == "-":
			c.Source.Type = "stdin"
		case objectstore.IsURL(c.Source.Path):
			c.Source.Type = "s3"
		default:
			c.Source.Type = "file"
		}
	}

	// Defaults для parser
	if c.Parser.Separator == "" {
		c.Parser.Separator = csvstream.DefaultSeparator
	}

	// Defaults для output
	c.Output.Type = strings.ToLower(c.Output.Type)
	if c.Output.Type == "" {
		if objectstore.IsURL(c.Output.Path) {
			c.Output.Type = "s3"
		} else {
			c.Output.Type = "text"
		}
	}
	if c.Output.Type == "text" && c.Output.Path == "" {
		c.Output.Path = "-"
	}
	if c.Output.Separator == "" {
		c.Output.Separator = csvstream.DefaultSeparator
	}
	if c.Output.Compression == "zstd" && c.Output.CompressionLevel == 0 {
		c.Output.CompressionLevel = processors.DefaultCompressionLevel
	}
	if c.Output.S3 == (objectstore.Config{}) {
		c.Output.S3 = c.Source.S3
	}

	// Defaults для performance
	if c.Performance.ChunkSize == 0 {
		c.Performance.ChunkSize = DefaultChunkSize
	}
	if c.Output.BatchSize == 0 {
		c.Output.BatchSize = c.Performance.BatchSize
	}

	// Defaults для audit
	if c.Audit.Level == "" {
		c.Audit.Level = "standard"
	}

	// Defaults для error handling: включенный retry без параметров
	// получает значения retry.DefaultConfig
	if c.ErrorHandling.Enabled {
		def := retry.DefaultConfig()
		if c.ErrorHandling.MaxAttempts == 0 {
			c.ErrorHandling.MaxAttempts = def.MaxAttempts
		}
		if c.ErrorHandling.InitialDelay == 0 {
			c.ErrorHandling.InitialDelay = def.InitialDelay
		}
		if c.ErrorHandling.MaxDelay == 0 {
			c.ErrorHandling.MaxDelay = def.MaxDelay
		}
		if c.ErrorHandling.BackoffStrategy == "" {
			c.ErrorHandling.BackoffStrategy = def.BackoffStrategy
		}
		if c.ErrorHandling.DLQ.Enabled && c.ErrorHandling.DLQ.FilePath == "" {
			c.ErrorHandling.DLQ.FilePath = def.DLQ.FilePath
		}
	}

	// Defaults для result_log
	if c.ResultLog.Name == "" {
		c.ResultLog.Name = c.Name
	}
	if c.ResultLog.Type == "redis" && c.ResultLog.TTL == 0 {
		c.ResultLog.TTL = 3600 // 1 час по умолчанию
	}
}
