package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Logger - интерфейс аудита, которым пользуется пайплайн
type Logger interface {
	Log(ctx context.Context, entry *Entry) error
	Flush() error
	Close() error
}

// AuditLogger - логгер аудита с синхронным или асинхронным режимом
type AuditLogger struct {
	mu        sync.RWMutex
	appenders []Appender
	config    LoggerConfig

	entryChannel chan *Entry
	done         chan struct{}
	closeOnce    sync.Once
	wg           sync.WaitGroup
}

// LoggerConfig - конфигурация логгера
type LoggerConfig struct {
	// AsyncMode - запись в appenders в отдельной goroutine
	AsyncMode bool

	// BufferSize - размер буфера для асинхронного режима
	BufferSize int

	// DefaultUser - пользователь, если не указан в entry
	DefaultUser string

	// DefaultPipeline - имя пайплайна, если не указано в entry
	DefaultPipeline string

	// OnError - callback при ошибке записи
	OnError func(error)
}

// Config - секция audit в YAML конфигурации пайплайна
type Config struct {
	Enabled    bool   `yaml:"enabled"`
	Level      string `yaml:"level"` // minimal, standard, full
	File       string `yaml:"file"`  // JSON Lines
	MaxSizeMB  int64  `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	Console    bool   `yaml:"console"`
	Async      bool   `yaml:"async"`

	// SQL - дополнительная запись в таблицу
	SQL *SQLConfig `yaml:"sql,omitempty"`
}

// SQLConfig - параметры SQL appender
type SQLConfig struct {
	Driver string `yaml:"driver"` // sqlite, pgx, mysql, sqlserver
	DSN    string `yaml:"dsn"`
	Table  string `yaml:"table"`
	Batch  int    `yaml:"batch"`
}

// NewLogger - создать новый audit logger
func NewLogger(config LoggerConfig, appenders ...Appender) *AuditLogger {
	if config.BufferSize <= 0 {
		config.BufferSize = 1000
	}

	logger := &AuditLogger{
		appenders: appenders,
		config:    config,
		done:      make(chan struct{}),
	}

	if config.AsyncMode {
		logger.entryChannel = make(chan *Entry, config.BufferSize)
		logger.wg.Add(1)
		go logger.processEntries()
	}

	return logger
}

// Open собирает логгер из YAML секции. Выключенный аудит дает NullLogger.
// placeholder используется SQL appender (nil = "?").
func Open(ctx context.Context, cfg Config, base LoggerConfig, placeholder func(int) string) (Logger, error) {
	if !cfg.Enabled {
		return NewNullLogger(), nil
	}

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var appenders []Appender
	closeAll := func() {
		for _, a := range appenders {
			a.Close()
		}
	}

	if cfg.File != "" {
		fa, err := NewFileAppender(FileAppenderConfig{
			FilePath:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Level:      level,
		})
		if err != nil {
			return nil, err
		}
		appenders = append(appenders, fa)
	}

	if cfg.Console {
		appenders = append(appenders, NewConsoleAppender(nil, level))
	}

	if cfg.SQL != nil {
		db, err := sql.Open(cfg.SQL.Driver, cfg.SQL.DSN)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to open audit database: %w", err)
		}
		sa, err := NewSQLAppender(ctx, SQLAppenderConfig{
			DB:              db,
			TableName:       cfg.SQL.Table,
			Level:           level,
			BatchSize:       cfg.SQL.Batch,
			Placeholder:     placeholder,
			AutoCreateTable: true,
		})
		if err != nil {
			db.Close()
			closeAll()
			return nil, err
		}
		appenders = append(appenders, &ownedDB{SQLAppender: sa, db: db})
	}

	if len(appenders) == 0 {
		return nil, fmt.Errorf("audit is enabled but no file, console or sql target is configured")
	}

	base.AsyncMode = cfg.Async
	return NewLogger(base, appenders...), nil
}

// ownedDB закрывает соединение, открытое в Open
type ownedDB struct {
	*SQLAppender
	db *sql.DB
}

func (o *ownedDB) Close() error {
	return errors.Join(o.SQLAppender.Close(), o.db.Close())
}

// Log - записать audit entry
func (l *AuditLogger) Log(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return fmt.Errorf("entry is nil")
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.ID == "" {
		entry.ID = generateID()
	}
	if entry.User == "" {
		entry.User = l.config.DefaultUser
	}
	if entry.Pipeline == "" {
		entry.Pipeline = l.config.DefaultPipeline
	}

	if l.config.AsyncMode {
		select {
		case <-l.done:
			return fmt.Errorf("logger is closed")
		default:
		}

		select {
		case l.entryChannel <- entry:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
			// Буфер переполнен, записываем синхронно
			return l.writeEntry(ctx, entry)
		}
	}

	return l.writeEntry(ctx, entry)
}

// writeEntry - записать entry во все appenders
func (l *AuditLogger) writeEntry(ctx context.Context, entry *Entry) error {
	l.mu.RLock()
	appenders := l.appenders
	l.mu.RUnlock()

	var firstError error
	for _, appender := range appenders {
		if err := appender.Append(ctx, entry); err != nil {
			if firstError == nil {
				firstError = err
			}
			l.handleError(fmt.Errorf("appender failed: %w", err))
		}
	}

	return firstError
}

// processEntries - обработка entries в асинхронном режиме
func (l *AuditLogger) processEntries() {
	defer l.wg.Done()

	for {
		select {
		case entry := <-l.entryChannel:
			l.writeEntry(context.Background(), entry)
		case <-l.done:
			// Обрабатываем оставшиеся entries
			for {
				select {
				case entry := <-l.entryChannel:
					l.writeEntry(context.Background(), entry)
				default:
					return
				}
			}
		}
	}
}

// Flush - сбросить буферы appenders, которые это поддерживают
func (l *AuditLogger) Flush() error {
	l.mu.RLock()
	appenders := l.appenders
	l.mu.RUnlock()

	var firstError error
	for _, appender := range appenders {
		if flusher, ok := appender.(interface{ Flush() error }); ok {
			if err := flusher.Flush(); err != nil {
				if firstError == nil {
					firstError = err
				}
				l.handleError(fmt.Errorf("flush failed: %w", err))
			}
		}
	}

	return firstError
}

// Close - дождаться записи очереди и закрыть appenders
func (l *AuditLogger) Close() error {
	var firstError error

	l.closeOnce.Do(func() {
		close(l.done)
		l.wg.Wait()

		l.mu.RLock()
		appenders := l.appenders
		l.mu.RUnlock()

		// SQL appender сбрасывает batch в Close
		for _, appender := range appenders {
			if err := appender.Close(); err != nil {
				if firstError == nil {
					firstError = err
				}
				l.handleError(fmt.Errorf("close failed: %w", err))
			}
		}
	})

	return firstError
}

// AddAppender - добавить appender
func (l *AuditLogger) AddAppender(appender Appender) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.appenders = append(l.appenders, appender)
}

// handleError - обработка ошибки
func (l *AuditLogger) handleError(err error) {
	if l.config.OnError != nil {
		l.config.OnError(err)
	}
}

// NullLogger - пустой logger (аудит выключен)
type NullLogger struct{}

// NewNullLogger - создать null logger
func NewNullLogger() *NullLogger {
	return &NullLogger{}
}

// Log - ничего не делает
func (nl *NullLogger) Log(ctx context.Context, entry *Entry) error {
	return nil
}

// Flush - ничего не делает
func (nl *NullLogger) Flush() error {
	return nil
}

// Close - ничего не делает
func (nl *NullLogger) Close() error {
	return nil
}
