package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ruslano69/csvnorm/pkg/adapters"
	"github.com/ruslano69/csvnorm/pkg/adapters/base"
)

// Compile-time check: Adapter должен реализовывать интерфейс adapters.Adapter
var _ adapters.Adapter = (*Adapter)(nil)

// Регистрация адаптера в глобальной фабрике
func init() {
	adapters.Register("postgres", func() adapters.Adapter {
		return &Adapter{}
	})
}

// Dialect используется только для DDL; строки пишутся через COPY
var Dialect = base.Dialect{
	Name:              "postgres",
	QuoteOpen:         `"`,
	QuoteClose:        `"`,
	TextType:          "TEXT",
	Placeholder:       base.DollarPlaceholder,
	MaxParams:         65535,
	CreateIfNotExists: true,
}

// Adapter представляет адаптер для работы с PostgreSQL через pgxpool
type Adapter struct {
	pool   *pgxpool.Pool
	schema string // public, custom, etc.
}

// Connect устанавливает подключение к PostgreSQL
func (a *Adapter) Connect(ctx context.Context, cfg adapters.Config) error {
	config, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to parse connection string: %w", err)
	}

	if cfg.MaxConns > 0 {
		config.MaxConns = int32(cfg.MaxConns)
	} else {
		config.MaxConns = 4
	}
	if cfg.Timeout > 0 {
		config.ConnConfig.ConnectTimeout = cfg.Timeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	a.pool = pool
	a.schema = cfg.Schema
	if a.schema == "" {
		a.schema = "public"
	}

	return nil
}

// Close закрывает пул соединений
func (a *Adapter) Close(ctx context.Context) error {
	if a.pool != nil {
		a.pool.Close()
	}
	return nil
}

// Ping проверяет доступность БД
func (a *Adapter) Ping(ctx context.Context) error {
	if a.pool == nil {
		return fmt.Errorf("adapter not connected")
	}
	return a.pool.Ping(ctx)
}

func (a *Adapter) name(table string) string {
	return Dialect.QualifiedName(a.schema, table)
}

// TableExists проверяет существование таблицы в схеме
func (a *Adapter) TableExists(ctx context.Context, table string) (bool, error) {
	var exists bool
	err := a.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = $1 AND table_name = $2)",
		a.schema, table,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check table existence: %w", err)
	}
	return exists, nil
}

// CreateTable создает таблицу с TEXT колонками
func (a *Adapter) CreateTable(ctx context.Context, table string, columns []string) error {
	if _, err := a.pool.Exec(ctx, Dialect.CreateTableSQL(a.name(table), columns)); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

// DropTable удаляет таблицу
func (a *Adapter) DropTable(ctx context.Context, table string) error {
	_, err := a.pool.Exec(ctx, "DROP TABLE IF EXISTS "+a.name(table))
	return err
}

// InsertRows пишет строки через COPY FROM в транзакции
func (a *Adapter) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// COPY требует ровно len(columns) значений в строке
	padded := make([][]any, len(rows))
	for i, row := range rows {
		padded[i] = base.FlattenRows([][]any{row}, len(columns))
	}

	count, err := tx.CopyFrom(ctx, pgx.Identifier{a.schema, table}, columns, pgx.CopyFromRows(padded))
	if err != nil {
		return fmt.Errorf("failed to COPY data: %w", err)
	}
	if int(count) != len(rows) {
		return fmt.Errorf("expected to copy %d rows, but copied %d", len(rows), count)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CountRows возвращает количество строк в таблице
func (a *Adapter) CountRows(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := a.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+a.name(table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return n, nil
}

// GetDatabaseType возвращает тип СУБД
func (a *Adapter) GetDatabaseType() string {
	return "postgres"
}

// GetDatabaseVersion возвращает версию PostgreSQL
func (a *Adapter) GetDatabaseVersion(ctx context.Context) (string, error) {
	var version string
	if err := a.pool.QueryRow(ctx, "SHOW server_version").Scan(&version); err != nil {
		return "", fmt.Errorf("failed to get version: %w", err)
	}
	return "PostgreSQL " + strings.TrimSpace(version), nil
}
