package retry

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

// DLQEntry представляет запись в Dead Letter Queue
type DLQEntry struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Attempts    int       `json:"attempts"`
	LastError   string    `json:"last_error"`
	FailureType string    `json:"failure_type"` // max_attempts_exceeded, non_retryable, context_cancelled
	Data        any       `json:"data,omitempty"`
}

// DLQ - Dead Letter Queue для записей, которые не удалось доставить.
//
// Файл в формате JSON Lines: каждая запись дописывается в конец сразу,
// поэтому содержимое переживает аварийное завершение пайплайна.
type DLQ struct {
	mu      sync.RWMutex
	config  DLQConfig
	file    *os.File
	entries []DLQEntry // Последние MaxSize записей для статистики
	total   int
	counter int
}

// NewDLQ открывает (или создает) файл DLQ и загружает существующие записи
func NewDLQ(config DLQConfig) (*DLQ, error) {
	dlq := &DLQ{config: config}

	if err := dlq.Load(); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open DLQ file: %w", err)
	}
	dlq.file = f

	return dlq, nil
}

// Add дописывает запись в файл DLQ
func (d *DLQ) Add(entry DLQEntry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.counter++
	entry.ID = fmt.Sprintf("dlq-%d-%d", time.Now().Unix(), d.counter)

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ entry: %w", err)
	}

	if d.file != nil {
		if _, err := d.file.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("failed to write DLQ entry: %w", err)
		}
	}

	d.remember(entry)
	return nil
}

// remember добавляет запись в память с учетом лимита MaxSize
func (d *DLQ) remember(entry DLQEntry) {
	d.total++
	d.entries = append(d.entries, entry)
	if d.config.MaxSize > 0 && len(d.entries) > d.config.MaxSize {
		d.entries = d.entries[len(d.entries)-d.config.MaxSize:]
	}
}

// Get возвращает записи, находящиеся в памяти
func (d *DLQ) Get() []DLQEntry {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]DLQEntry, len(d.entries))
	copy(result, d.entries)
	return result
}

// Size возвращает общее количество записей в DLQ
func (d *DLQ) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.total
}

// Load читает существующий файл DLQ. Отсутствующий файл - не ошибка.
func (d *DLQ) Load() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	f, err := os.Open(d.config.FilePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read DLQ file: %w", err)
	}
	defer f.Close()

	d.entries = nil
	d.total = 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var entry DLQEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return fmt.Errorf("failed to unmarshal DLQ line %d: %w", lineNo, err)
		}
		d.remember(entry)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read DLQ file: %w", err)
	}

	return nil
}

// Compact переписывает файл, оставляя только записи из памяти (последние MaxSize)
// моложе RetentionPeriod. Возвращает количество удаленных записей.
func (d *DLQ) Compact() (int, error) {
	if d.config.RetentionPeriod == 0 {
		return 0, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	cutoff := time.Now().Add(-d.config.RetentionPeriod)
	kept := make([]DLQEntry, 0, len(d.entries))
	for _, entry := range d.entries {
		if entry.Timestamp.After(cutoff) {
			kept = append(kept, entry)
		}
	}
	removed := d.total - len(kept)
	if removed == 0 {
		return 0, nil
	}

	tmp := d.config.FilePath + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("failed to create DLQ temp file: %w", err)
	}
	w := bufio.NewWriter(out)
	enc := json.NewEncoder(w)
	for _, entry := range kept {
		if err := enc.Encode(entry); err != nil {
			out.Close()
			return 0, fmt.Errorf("failed to write DLQ entry: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		out.Close()
		return 0, fmt.Errorf("failed to flush DLQ file: %w", err)
	}
	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("failed to close DLQ temp file: %w", err)
	}

	if d.file != nil {
		d.file.Close()
	}
	if err := os.Rename(tmp, d.config.FilePath); err != nil {
		return 0, fmt.Errorf("failed to replace DLQ file: %w", err)
	}
	d.file, err = os.OpenFile(d.config.FilePath, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("failed to reopen DLQ file: %w", err)
	}

	d.entries = kept
	d.total = len(kept)
	return removed, nil
}

// Close закрывает файл DLQ
func (d *DLQ) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

// GetStats возвращает статистику DLQ
func (d *DLQ) GetStats() DLQStats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stats := DLQStats{
		TotalEntries: d.total,
		FailureTypes: make(map[string]int),
	}

	if len(d.entries) == 0 {
		return stats
	}

	stats.OldestEntry = d.entries[0].Timestamp
	stats.NewestEntry = d.entries[len(d.entries)-1].Timestamp

	for _, entry := range d.entries {
		stats.FailureTypes[entry.FailureType]++
	}

	return stats
}

// DLQStats содержит статистику DLQ
type DLQStats struct {
	TotalEntries int
	OldestEntry  time.Time
	NewestEntry  time.Time
	FailureTypes map[string]int
}
