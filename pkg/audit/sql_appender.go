package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// SQLAppender - запись аудита в таблицу SQL базы (batch в транзакции)
type SQLAppender struct {
	mu          sync.Mutex
	db          *sql.DB
	tableName   string
	level       Level
	batchSize   int
	batchQueue  []*Entry
	placeholder func(n int) string
	insertSQL   string
}

// SQLAppenderConfig - конфигурация SQL appender
type SQLAppenderConfig struct {
	// DB - подключение к базе данных
	DB *sql.DB

	// TableName - имя таблицы (по умолчанию csvnorm_audit)
	TableName string

	Level Level

	// BatchSize - размер batch (0 = запись сразу)
	BatchSize int

	// Placeholder - плейсхолдер параметра n (1-based): "?", "$1", "@p1".
	// nil = "?" (sqlite, mysql)
	Placeholder func(n int) string

	// AutoCreateTable - создать таблицу если не существует
	AutoCreateTable bool
}

var auditColumns = []string{
	"id", "ts", "operation", "status", "user_name", "pipeline", "source", "target",
	"records_read", "records_written", "records_failed", "bytes_written",
	"duration_ms", "checksum", "error_message", "metadata",
}

// NewSQLAppender - создать SQL appender
func NewSQLAppender(ctx context.Context, config SQLAppenderConfig) (*SQLAppender, error) {
	if config.DB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if config.TableName == "" {
		config.TableName = "csvnorm_audit"
	}
	if config.Placeholder == nil {
		config.Placeholder = func(int) string { return "?" }
	}

	sa := &SQLAppender{
		db:          config.DB,
		tableName:   config.TableName,
		level:       config.Level,
		batchSize:   config.BatchSize,
		placeholder: config.Placeholder,
	}
	sa.insertSQL = sa.buildInsert()

	if config.AutoCreateTable {
		if err := sa.createTable(ctx); err != nil {
			return nil, fmt.Errorf("failed to create audit table: %w", err)
		}
	}

	return sa, nil
}

// createTable - таблица из переносимых типов (VARCHAR/BIGINT/TEXT)
func (sa *SQLAppender) createTable(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id VARCHAR(64) PRIMARY KEY,
		ts VARCHAR(40) NOT NULL,
		operation VARCHAR(32) NOT NULL,
		status VARCHAR(16) NOT NULL,
		user_name VARCHAR(255),
		pipeline VARCHAR(255),
		source VARCHAR(1024),
		target VARCHAR(1024),
		records_read BIGINT,
		records_written BIGINT,
		records_failed BIGINT,
		bytes_written BIGINT,
		duration_ms BIGINT,
		checksum VARCHAR(32),
		error_message TEXT,
		metadata TEXT
	)`, sa.tableName)

	_, err := sa.db.ExecContext(ctx, query)
	return err
}

func (sa *SQLAppender) buildInsert() string {
	params := make([]string, len(auditColumns))
	for i := range params {
		params[i] = sa.placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		sa.tableName, strings.Join(auditColumns, ", "), strings.Join(params, ", "))
}

// args - значения колонок в порядке auditColumns
func entryArgs(entry *Entry) []any {
	metadata := "{}"
	if len(entry.Metadata) > 0 {
		if data, err := json.Marshal(entry.Metadata); err == nil {
			metadata = string(data)
		}
	}

	return []any{
		entry.ID,
		entry.Timestamp.UTC().Format(time.RFC3339Nano),
		string(entry.Operation),
		string(entry.Status),
		entry.User,
		entry.Pipeline,
		entry.Source,
		entry.Target,
		entry.RecordsRead,
		entry.RecordsWritten,
		entry.RecordsFailed,
		entry.BytesWritten,
		entry.Duration.Milliseconds(),
		entry.Checksum,
		entry.ErrorMessage,
		metadata,
	}
}

// Append - записать entry (или поставить в batch)
func (sa *SQLAppender) Append(ctx context.Context, entry *Entry) error {
	filtered := entry.FilterByLevel(sa.level)

	sa.mu.Lock()
	defer sa.mu.Unlock()

	if sa.batchSize > 0 {
		sa.batchQueue = append(sa.batchQueue, filtered)
		if len(sa.batchQueue) >= sa.batchSize {
			return sa.flushBatch(ctx)
		}
		return nil
	}

	if _, err := sa.db.ExecContext(ctx, sa.insertSQL, entryArgs(filtered)...); err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// flushBatch - записать очередь в одной транзакции
func (sa *SQLAppender) flushBatch(ctx context.Context) error {
	if len(sa.batchQueue) == 0 {
		return nil
	}

	tx, err := sa.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, sa.insertSQL)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, entry := range sa.batchQueue {
		if _, err := stmt.ExecContext(ctx, entryArgs(entry)...); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert audit entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	sa.batchQueue = sa.batchQueue[:0]
	return nil
}

// Flush - сбросить batch queue
func (sa *SQLAppender) Flush() error {
	sa.mu.Lock()
	defer sa.mu.Unlock()
	return sa.flushBatch(context.Background())
}

// Close - сбросить остаток. Соединение принадлежит вызывающему.
func (sa *SQLAppender) Close() error {
	return sa.Flush()
}

// QueryFilter - фильтр для чтения аудита
type QueryFilter struct {
	Pipeline  string
	Operation Operation
	Status    Status
	Limit     int
}

// Query - прочитать записи аудита, новые первыми
func (sa *SQLAppender) Query(ctx context.Context, filter QueryFilter) ([]*Entry, error) {
	var (
		where []string
		args  []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		where = append(where, fmt.Sprintf("%s = %s", column, sa.placeholder(len(args))))
	}
	if filter.Pipeline != "" {
		add("pipeline", filter.Pipeline)
	}
	if filter.Operation != "" {
		add("operation", string(filter.Operation))
	}
	if filter.Status != "" {
		add("status", string(filter.Status))
	}

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(auditColumns, ", "), sa.tableName)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY ts DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := sa.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var (
			entry      Entry
			ts         string
			operation  string
			status     string
			durationMs int64
			metadata   sql.NullString
			user       sql.NullString
			pipeline   sql.NullString
			source     sql.NullString
			target     sql.NullString
			checksum   sql.NullString
			errMessage sql.NullString
		)

		if err := rows.Scan(
			&entry.ID, &ts, &operation, &status, &user, &pipeline, &source, &target,
			&entry.RecordsRead, &entry.RecordsWritten, &entry.RecordsFailed, &entry.BytesWritten,
			&durationMs, &checksum, &errMessage, &metadata,
		); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		entry.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		entry.Operation = Operation(operation)
		entry.Status = Status(status)
		entry.User = user.String
		entry.Pipeline = pipeline.String
		entry.Source = source.String
		entry.Target = target.String
		entry.Checksum = checksum.String
		entry.ErrorMessage = errMessage.String
		entry.Duration = time.Duration(durationMs) * time.Millisecond
		if metadata.Valid && metadata.String != "" && metadata.String != "{}" {
			_ = json.Unmarshal([]byte(metadata.String), &entry.Metadata)
		}

		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return entries, nil
}
