package adapters

import (
	"context"
	"fmt"
	"slices"

	"github.com/ruslano69/csvnorm/pkg/core/record"
	"github.com/ruslano69/csvnorm/pkg/security"
)

// TableWriter накапливает записи и пишет их в таблицу пачками.
// Таблица создается по ключам первой записи; имена колонок
// приводятся к безопасным SQL идентификаторам.
type TableWriter struct {
	adapter   Adapter
	table     string
	strategy  ImportStrategy
	batchSize int

	keys    []string // Ключи записей в порядке заголовка
	columns []string // Санированные имена колонок
	pending [][]any
	written int64
}

// DefaultBatchSize - строк в одной транзакции
const DefaultBatchSize = 500

// NewTableWriter создает writer. table санируется так же, как колонки.
func NewTableWriter(adapter Adapter, table string, strategy ImportStrategy, batchSize int) (*TableWriter, error) {
	if table == "" {
		return nil, fmt.Errorf("table name is required")
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &TableWriter{
		adapter:   adapter,
		table:     security.SanitizeIdentifier(table),
		strategy:  strategy,
		batchSize: batchSize,
	}, nil
}

// Adapter возвращает адаптер, в который пишет writer
func (w *TableWriter) Adapter() Adapter {
	return w.adapter
}

// Table возвращает итоговое имя таблицы
func (w *TableWriter) Table() string {
	return w.table
}

// Columns возвращает имена колонок (после первой записи)
func (w *TableWriter) Columns() []string {
	return w.columns
}

// Written возвращает количество строк, зафиксированных в БД
func (w *TableWriter) Written() int64 {
	return w.written
}

// Write добавляет запись; при заполнении пачки пишет ее в БД
func (w *TableWriter) Write(ctx context.Context, rec *record.Record) error {
	if err := w.Add(ctx, rec); err != nil {
		return err
	}
	if w.Full() {
		return w.Flush(ctx)
	}
	return nil
}

// Add ставит запись в буфер без записи в БД.
// Первая запись определяет колонки и готовит таблицу.
func (w *TableWriter) Add(ctx context.Context, rec *record.Record) error {
	if w.columns == nil {
		w.keys = rec.Keys()
		w.columns = security.SanitizeIdentifiers(w.keys)
		if err := PrepareTable(ctx, w.adapter, w.table, w.columns, w.strategy); err != nil {
			w.columns = nil
			return err
		}
	}

	w.pending = append(w.pending, w.row(rec))
	return nil
}

// Full сообщает, что буфер достиг размера пачки
func (w *TableWriter) Full() bool {
	return len(w.pending) >= w.batchSize
}

// row - значения по ключам первой записи; отсутствующие поля = NULL
func (w *TableWriter) row(rec *record.Record) []any {
	row := make([]any, len(w.keys))
	if slices.Equal(rec.Keys(), w.keys) {
		i := 0
		rec.Each(func(_, value string, present bool) {
			if present {
				row[i] = value
			}
			i++
		})
		return row
	}
	for i, key := range w.keys {
		if v, ok := rec.Get(key); ok {
			row[i] = v
		}
	}
	return row
}

// Pending возвращает количество записей, ожидающих записи
func (w *TableWriter) Pending() int {
	return len(w.pending)
}

// PendingRows возвращает копию буфера (для DLQ при ошибке)
func (w *TableWriter) PendingRows() [][]any {
	return slices.Clone(w.pending)
}

// Flush пишет накопленные строки одной транзакцией.
// При ошибке буфер сохраняется, повторный Flush пишет его снова.
func (w *TableWriter) Flush(ctx context.Context) error {
	if len(w.pending) == 0 {
		return nil
	}
	if err := w.adapter.InsertRows(ctx, w.table, w.columns, w.pending); err != nil {
		return fmt.Errorf("failed to write %d rows to %s: %w", len(w.pending), w.table, err)
	}
	w.written += int64(len(w.pending))
	w.pending = w.pending[:0]
	return nil
}

// Discard очищает буфер без записи
func (w *TableWriter) Discard() {
	w.pending = w.pending[:0]
}
