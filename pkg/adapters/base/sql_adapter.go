package base

import (
	"context"
	"database/sql"
	"fmt"
)

// SQLAdapter - общая реализация записи таблиц поверх database/sql.
// Драйверные пакеты встраивают его и добавляют Connect и метаданные.
type SQLAdapter struct {
	DB      *sql.DB
	Dialect Dialect
	Schema  string

	// ExistsQuery - запрос с одним параметром (имя таблицы), возвращающий COUNT
	ExistsQuery string
}

// Close закрывает соединение с БД
func (a *SQLAdapter) Close(ctx context.Context) error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}

// Ping проверяет доступность БД
func (a *SQLAdapter) Ping(ctx context.Context) error {
	if a.DB == nil {
		return fmt.Errorf("adapter not connected")
	}
	return a.DB.PingContext(ctx)
}

// Name возвращает квалифицированное имя таблицы
func (a *SQLAdapter) Name(table string) string {
	return a.Dialect.QualifiedName(a.Schema, table)
}

// TableExists проверяет существование таблицы через ExistsQuery
func (a *SQLAdapter) TableExists(ctx context.Context, table string) (bool, error) {
	var count int
	if err := a.DB.QueryRowContext(ctx, a.ExistsQuery, table).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check table existence: %w", err)
	}
	return count > 0, nil
}

// CreateTable создает таблицу с текстовыми колонками
func (a *SQLAdapter) CreateTable(ctx context.Context, table string, columns []string) error {
	if !a.Dialect.CreateIfNotExists {
		exists, err := a.TableExists(ctx, table)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
	}

	if _, err := a.DB.ExecContext(ctx, a.Dialect.CreateTableSQL(a.Name(table), columns)); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// DropTable удаляет таблицу
func (a *SQLAdapter) DropTable(ctx context.Context, table string) error {
	exists, err := a.TableExists(ctx, table)
	if err != nil || !exists {
		return err
	}
	_, err = a.DB.ExecContext(ctx, "DROP TABLE "+a.Name(table))
	return err
}

// InsertRows вставляет строки многострочными INSERT в одной транзакции
func (a *SQLAdapter) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := a.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	name := a.Name(table)
	per := a.Dialect.RowsPerStatement(len(columns))

	// Полные пачки используют один подготовленный statement
	var full *sql.Stmt
	if len(rows) >= per {
		full, err = tx.PrepareContext(ctx, a.Dialect.InsertSQL(name, columns, per))
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer full.Close()
	}

	for start := 0; start < len(rows); start += per {
		end := min(start+per, len(rows))
		args := FlattenRows(rows[start:end], len(columns))

		if end-start == per {
			_, err = full.ExecContext(ctx, args...)
		} else {
			_, err = tx.ExecContext(ctx, a.Dialect.InsertSQL(name, columns, end-start), args...)
		}
		if err != nil {
			return fmt.Errorf("failed to insert rows %d-%d: %w", start, end-1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CountRows возвращает количество строк в таблице
func (a *SQLAdapter) CountRows(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := a.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+a.Name(table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return n, nil
}

// FlattenRows разворачивает строки в плоский список аргументов.
// Короткие строки дополняются nil (NULL).
func FlattenRows(rows [][]any, width int) []any {
	args := make([]any, 0, len(rows)*width)
	for _, row := range rows {
		for c := 0; c < width; c++ {
			if c < len(row) {
				args = append(args, row[c])
			} else {
				args = append(args, nil)
			}
		}
	}
	return args
}
