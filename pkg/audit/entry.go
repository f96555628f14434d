package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// Level - уровень детализации аудита
type Level int

const (
	// LevelMinimal - только счетчики и статус
	LevelMinimal Level = iota + 1

	// LevelStandard - плюс метаданные
	LevelStandard

	// LevelFull - плюс пример обработанной записи
	LevelFull
)

// String - строковое представление уровня
func (l Level) String() string {
	switch l {
	case LevelMinimal:
		return "minimal"
	case LevelStandard:
		return "standard"
	case LevelFull:
		return "full"
	default:
		return fmt.Sprintf("unknown(%d)", l)
	}
}

// ParseLevel разбирает уровень из конфигурации. Пустая строка = standard.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minimal":
		return LevelMinimal, nil
	case "", "standard":
		return LevelStandard, nil
	case "full":
		return LevelFull, nil
	default:
		return 0, fmt.Errorf("unknown audit level: %s (supported: minimal, standard, full)", s)
	}
}

// Operation - тип операции пайплайна
type Operation string

const (
	OpRun        Operation = "run"         // Полный прогон пайплайна
	OpParse      Operation = "parse"       // Разбор источника
	OpNormalize  Operation = "normalize"   // Цепочка процессоров
	OpExport     Operation = "export"      // Запись в sink
	OpDeadLetter Operation = "dead_letter" // Запись ушла в DLQ
	OpSample     Operation = "sample"      // Генерация тестового файла
)

// Status - статус выполнения операции
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusPartial Status = "partial" // Часть записей отклонена
)

// Entry - запись в audit логе
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Operation Operation `json:"operation"`
	Status    Status    `json:"status"`

	// User - пользователь ОС, запустивший пайплайн
	User string `json:"user,omitempty"`

	// Pipeline - имя пайплайна из конфигурации
	Pipeline string `json:"pipeline,omitempty"`

	// Source/Target - откуда читали и куда писали (путь, s3://, kafka topic)
	Source string `json:"source,omitempty"`
	Target string `json:"target,omitempty"`

	RecordsRead    int64 `json:"records_read"`
	RecordsWritten int64 `json:"records_written"`
	RecordsFailed  int64 `json:"records_failed,omitempty"`
	BytesWritten   int64 `json:"bytes_written,omitempty"`

	Duration time.Duration `json:"duration,omitempty"`

	// Checksum - xxh3 выходного потока (для text sink)
	Checksum string `json:"checksum,omitempty"`

	ErrorMessage string `json:"error_message,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`

	// Sample - первая записанная запись (только для LevelFull)
	Sample any `json:"sample,omitempty"`
}

var idSeq atomic.Uint64

// NewEntry - создать новую audit запись
func NewEntry(operation Operation, status Status) *Entry {
	return &Entry{
		ID:        generateID(),
		Timestamp: time.Now(),
		Operation: operation,
		Status:    status,
		Metadata:  make(map[string]any),
	}
}

// WithUser - установить пользователя
func (e *Entry) WithUser(user string) *Entry {
	e.User = user
	return e
}

// WithPipeline - установить имя пайплайна
func (e *Entry) WithPipeline(name string) *Entry {
	e.Pipeline = name
	return e
}

// WithSource - установить источник
func (e *Entry) WithSource(source string) *Entry {
	e.Source = source
	return e
}

// WithTarget - установить получателя
func (e *Entry) WithTarget(target string) *Entry {
	e.Target = target
	return e
}

// WithCounts - установить счетчики записей
func (e *Entry) WithCounts(read, written, failed int64) *Entry {
	e.RecordsRead = read
	e.RecordsWritten = written
	e.RecordsFailed = failed
	if failed > 0 && e.Status == StatusSuccess {
		e.Status = StatusPartial
	}
	return e
}

// WithBytes - установить объем записанных данных
func (e *Entry) WithBytes(n int64) *Entry {
	e.BytesWritten = n
	return e
}

// WithDuration - установить длительность
func (e *Entry) WithDuration(duration time.Duration) *Entry {
	e.Duration = duration
	return e
}

// WithChecksum - установить контрольную сумму выхода
func (e *Entry) WithChecksum(sum string) *Entry {
	e.Checksum = sum
	return e
}

// WithError - установить ошибку (статус становится failure)
func (e *Entry) WithError(err error) *Entry {
	if err != nil {
		e.ErrorMessage = err.Error()
		e.Status = StatusFailure
	}
	return e
}

// WithMetadata - добавить метаданные
func (e *Entry) WithMetadata(key string, value any) *Entry {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}
	e.Metadata[key] = value
	return e
}

// WithSample - приложить пример записи
func (e *Entry) WithSample(sample any) *Entry {
	e.Sample = sample
	return e
}

// ToJSON - преобразовать в JSON
func (e *Entry) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// String - строковое представление для консоли
func (e *Entry) String() string {
	s := fmt.Sprintf("[%s] %s %s pipeline=%s read=%d written=%d failed=%d duration=%v",
		e.Timestamp.Format(time.RFC3339),
		e.Operation,
		e.Status,
		e.Pipeline,
		e.RecordsRead,
		e.RecordsWritten,
		e.RecordsFailed,
		e.Duration.Round(time.Millisecond),
	)
	if e.ErrorMessage != "" {
		s += " error=" + e.ErrorMessage
	}
	return s
}

// Clone - создать копию записи
func (e *Entry) Clone() *Entry {
	clone := *e

	if e.Metadata != nil {
		clone.Metadata = make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			clone.Metadata[k] = v
		}
	}

	return &clone
}

// FilterByLevel - убрать поля, не положенные уровню
func (e *Entry) FilterByLevel(level Level) *Entry {
	filtered := e.Clone()

	switch level {
	case LevelMinimal:
		filtered.Metadata = nil
		filtered.Sample = nil
	case LevelFull:
		// Ничего не фильтруем
	default:
		filtered.Sample = nil
	}

	return filtered
}

// generateID - уникальный в пределах процесса ID
func generateID() string {
	return fmt.Sprintf("audit-%d-%d", time.Now().UnixNano(), idSeq.Add(1))
}
