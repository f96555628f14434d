// Package sinks - получатели нормализованных записей: текстовый CSV
// (файл, stdout, S3), XLSX, таблица СУБД и брокеры сообщений.
package sinks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ruslano69/csvnorm/pkg/adapters"
	"github.com/ruslano69/csvnorm/pkg/brokers"
	"github.com/ruslano69/csvnorm/pkg/core/record"
	"github.com/ruslano69/csvnorm/pkg/objectstore"
	"github.com/ruslano69/csvnorm/pkg/retry"
)

// ErrClosed - запись в закрытый sink
var ErrClosed = errors.New("sink is closed")

// Sink принимает записи в порядке поступления
type Sink interface {
	// Write пишет одну запись
	Write(ctx context.Context, rec *record.Record) error

	// Close дописывает буферы и освобождает ресурсы.
	// Вызывается и при успехе, и при ошибке пайплайна.
	Close(ctx context.Context) error

	// Type возвращает тип sink (text, s3, xlsx, sql, kafka, rabbitmq)
	Type() string

	// Stats возвращает счетчики записанного
	Stats() Stats
}

// Stats - итог работы sink
type Stats struct {
	Records  int64  // Записей принято получателем
	Bytes    int64  // Байт записано (text, xlsx)
	Checksum string // xxh3 записанных байт (text)
	Target   string // Путь, s3:// URL, таблица или topic
}

// Config - секция output конфигурации пайплайна
type Config struct {
	Type string `yaml:"type"` // text, s3, xlsx, sql, kafka, rabbitmq

	// Path - файл, "-" для stdout или s3://bucket/key (text, s3, xlsx)
	Path string `yaml:"path"`

	// Text
	Separator        string `yaml:"separator"`
	Newline          string `yaml:"newline"`
	Compression      string `yaml:"compression"` // "" или zstd
	CompressionLevel int    `yaml:"compression_level"`

	// XLSX
	Sheet string `yaml:"sheet"`

	// SQL
	Database adapters.Config `yaml:"database"`
	Table    string          `yaml:"table"`
	Strategy string          `yaml:"strategy"` // append, replace, fail

	// Брокеры
	Broker   brokers.Config `yaml:"broker"`
	KeyField string         `yaml:"key_field"` // Поле записи для ключа сообщения

	// BatchSize - записей в одной транзакции SQL / одном запросе к брокеру
	BatchSize int `yaml:"batch_size"`

	// S3 - параметры хранилища для s3:// путей
	S3 objectstore.Config `yaml:"s3"`
}

// Validate проверяет параметры выбранного типа
func (c Config) Validate() error {
	switch c.Type {
	case "text", "xlsx":
		if c.Path == "" {
			return fmt.Errorf("output.path is required for %s output", c.Type)
		}
	case "s3":
		if _, err := objectstore.ParseURL(c.Path); err != nil {
			return fmt.Errorf("output.path: %w", err)
		}
	case "sql":
		if err := c.Database.Validate(); err != nil {
			return fmt.Errorf("output.database: %w", err)
		}
		if c.Table == "" {
			return fmt.Errorf("output.table is required for sql output")
		}
		if _, err := adapters.ParseStrategy(c.Strategy); err != nil {
			return fmt.Errorf("output.strategy: %w", err)
		}
	case "kafka", "rabbitmq":
		broker := c.Broker
		broker.Type = c.Type
		if err := broker.Validate(); err != nil {
			return fmt.Errorf("output.broker: %w", err)
		}
	default:
		return fmt.Errorf("unsupported output type: %s (supported: text, s3, xlsx, sql, kafka, rabbitmq)", c.Type)
	}

	switch c.Compression {
	case "", "none", "zstd":
	default:
		return fmt.Errorf("unsupported output compression: %s", c.Compression)
	}

	return nil
}

// Options - зависимости sink, создаваемые вызывающим
type Options struct {
	// Stdout - куда пишет path "-" (nil = os.Stdout)
	Stdout io.Writer

	// Retryer - повторы для SQL и брокеров (nil = без повторов)
	Retryer *retry.Retryer

	// S3Client - клиент для s3:// путей (nil = создать по Config.S3)
	S3Client objectstore.Client

	// Publisher - готовый publisher для брокеров (nil = brokers.New)
	Publisher brokers.Publisher
}

// New создает sink по конфигурации
func New(ctx context.Context, cfg Config, opts Options) (Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Retryer == nil {
		opts.Retryer, _ = retry.NewRetryer(retry.Config{})
	}

	switch cfg.Type {
	case "text", "s3":
		dest, target, err := openDestination(ctx, cfg, opts, "text/csv")
		if err != nil {
			return nil, err
		}
		return NewTextSink(dest, target, cfg)
	case "xlsx":
		dest, target, err := openDestination(ctx, cfg, opts,
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		if err != nil {
			return nil, err
		}
		return NewXLSXSink(dest, target, cfg.Sheet)
	case "sql":
		return NewSQLSink(ctx, cfg, opts.Retryer)
	default:
		publisher := opts.Publisher
		if publisher == nil {
			broker := cfg.Broker
			broker.Type = cfg.Type
			var err error
			if publisher, err = brokers.New(broker); err != nil {
				return nil, err
			}
		}
		return NewBrokerSink(ctx, publisher, cfg, opts.Retryer)
	}
}

// abortable - назначение, которое умеет отменить запись целиком (загрузка в S3)
type abortable interface {
	Abort(cause error) error
}

// Abort завершает sink после неудачного прогона. Загрузка в S3 отменяется,
// и обрезанный объект не появляется в бакете. Остальные получатели
// закрываются как обычно: частичный вывод не откатывается.
func Abort(ctx context.Context, s Sink, cause error) error {
	if a, ok := s.(interface {
		Abort(ctx context.Context, cause error) error
	}); ok {
		return a.Abort(ctx, cause)
	}
	return s.Close(ctx)
}

// openDestination открывает файл, stdout или загрузку в S3
func openDestination(ctx context.Context, cfg Config, opts Options, contentType string) (io.WriteCloser, string, error) {
	path := cfg.Path

	switch {
	case path == "-":
		out := opts.Stdout
		if out == nil {
			out = os.Stdout
		}
		return nopCloser{out}, "stdout", nil

	case objectstore.IsURL(path):
		loc, err := objectstore.ParseURL(path)
		if err != nil {
			return nil, "", err
		}
		client := opts.S3Client
		if client == nil {
			c, err := objectstore.NewClient(ctx, cfg.S3)
			if err != nil {
				return nil, "", err
			}
			client = c
		}
		return objectstore.NewUploadWriter(ctx, client, loc, contentType), loc.String(), nil

	default:
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, "", fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		f, err := os.Create(path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create output file: %w", err)
		}
		return f, path, nil
	}
}

// nopCloser не закрывает stdout
type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
