package audit

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// FileAppender - запись JSON Lines в файл с ротацией по размеру
type FileAppender struct {
	mu          sync.Mutex
	file        *os.File
	filePath    string
	maxSize     int64 // Максимальный размер файла в байтах
	maxBackups  int   // Количество backup файлов
	currentSize int64
	level       Level
}

// FileAppenderConfig - конфигурация file appender
type FileAppenderConfig struct {
	FilePath   string
	MaxSize    int64 // В мегабайтах
	MaxBackups int
	Level      Level
}

// NewFileAppender - создать file appender
func NewFileAppender(config FileAppenderConfig) (*FileAppender, error) {
	if config.FilePath == "" {
		return nil, fmt.Errorf("audit file path is required")
	}

	if err := os.MkdirAll(filepath.Dir(config.FilePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}

	fileInfo, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	maxSize := config.MaxSize
	if maxSize <= 0 {
		maxSize = 100 // По умолчанию 100 MB
	}

	maxBackups := config.MaxBackups
	if maxBackups <= 0 {
		maxBackups = 5
	}

	return &FileAppender{
		file:        file,
		filePath:    config.FilePath,
		maxSize:     maxSize * 1024 * 1024,
		maxBackups:  maxBackups,
		currentSize: fileInfo.Size(),
		level:       config.Level,
	}, nil
}

// Append - записать entry в файл одной строкой JSON
func (fa *FileAppender) Append(ctx context.Context, entry *Entry) error {
	data, err := entry.FilterByLevel(fa.level).ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}
	data = append(data, '\n')

	fa.mu.Lock()
	defer fa.mu.Unlock()

	if fa.file == nil {
		return fmt.Errorf("audit file %s is closed", fa.filePath)
	}

	if fa.currentSize > 0 && fa.currentSize+int64(len(data)) > fa.maxSize {
		if err := fa.rotate(); err != nil {
			return fmt.Errorf("failed to rotate file: %w", err)
		}
	}

	n, err := fa.file.Write(data)
	fa.currentSize += int64(n)
	if err != nil {
		return fmt.Errorf("failed to write entry: %w", err)
	}

	return nil
}

// rotate - audit.jsonl -> audit.jsonl.1 -> audit.jsonl.2 ...
func (fa *FileAppender) rotate() error {
	if err := fa.file.Close(); err != nil {
		return err
	}
	fa.file = nil

	// Самый старый backup удаляется
	oldest := fmt.Sprintf("%s.%d", fa.filePath, fa.maxBackups)
	if err := os.Remove(oldest); err != nil && !os.IsNotExist(err) {
		return err
	}

	for i := fa.maxBackups - 1; i > 0; i-- {
		oldPath := fmt.Sprintf("%s.%d", fa.filePath, i)
		if _, err := os.Stat(oldPath); err == nil {
			if err := os.Rename(oldPath, fmt.Sprintf("%s.%d", fa.filePath, i+1)); err != nil {
				return err
			}
		}
	}

	if err := os.Rename(fa.filePath, fa.filePath+".1"); err != nil {
		return err
	}

	file, err := os.OpenFile(fa.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}

	fa.file = file
	fa.currentSize = 0

	return nil
}

// Close - закрыть файл
func (fa *FileAppender) Close() error {
	fa.mu.Lock()
	defer fa.mu.Unlock()

	if fa.file == nil {
		return nil
	}
	err := fa.file.Close()
	fa.file = nil
	return err
}

// Flush - сбросить данные на диск
func (fa *FileAppender) Flush() error {
	fa.mu.Lock()
	defer fa.mu.Unlock()

	if fa.file != nil {
		return fa.file.Sync()
	}

	return nil
}

// CurrentSize - текущий размер файла
func (fa *FileAppender) CurrentSize() int64 {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	return fa.currentSize
}

// FilePath - путь к файлу
func (fa *FileAppender) FilePath() string {
	return fa.filePath
}

// ConsoleAppender - человекочитаемые строки в writer (обычно stderr)
type ConsoleAppender struct {
	mu    sync.Mutex
	w     io.Writer
	level Level
}

// NewConsoleAppender - создать console appender. nil writer = os.Stderr.
func NewConsoleAppender(w io.Writer, level Level) *ConsoleAppender {
	if w == nil {
		w = os.Stderr
	}
	return &ConsoleAppender{
		w:     w,
		level: level,
	}
}

// Append - записать строку
func (ca *ConsoleAppender) Append(ctx context.Context, entry *Entry) error {
	line := entry.FilterByLevel(ca.level).String()

	ca.mu.Lock()
	defer ca.mu.Unlock()

	if _, err := fmt.Fprintln(ca.w, line); err != nil {
		return fmt.Errorf("failed to write audit line: %w", err)
	}
	return nil
}

// Close - закрыть console appender (noop)
func (ca *ConsoleAppender) Close() error {
	return nil
}
