package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ruslano69/csvnorm/pkg/adapters"
	"github.com/ruslano69/csvnorm/pkg/adapters/base"
	_ "modernc.org/sqlite"
)

const driverSqlite = "sqlite"

// Compile-time check: Adapter должен реализовывать интерфейс adapters.Adapter
var _ adapters.Adapter = (*Adapter)(nil)

// Регистрация адаптера в глобальной фабрике
func init() {
	adapters.Register("sqlite", func() adapters.Adapter {
		return &Adapter{}
	})
}

// Dialect - SQLite: двойные кавычки, "?" и лимит 32766 параметров
var Dialect = base.Dialect{
	Name:              "sqlite",
	QuoteOpen:         `"`,
	QuoteClose:        `"`,
	TextType:          "TEXT",
	Placeholder:       base.QuestionPlaceholder,
	MaxParams:         32766,
	CreateIfNotExists: true,
}

// Adapter представляет адаптер для работы с SQLite
type Adapter struct {
	base.SQLAdapter
}

// Connect устанавливает подключение к SQLite
func (a *Adapter) Connect(ctx context.Context, cfg adapters.Config) error {
	db, err := sql.Open(driverSqlite, cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite пишет в один поток; одно соединение сохраняет :memory: базу
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	a.SQLAdapter = base.SQLAdapter{
		DB:          db,
		Dialect:     Dialect,
		ExistsQuery: "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?",
	}

	if err := a.applyPragmaOptimizations(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to apply PRAGMA optimizations: %w", err)
	}

	return nil
}

// applyPragmaOptimizations - настройки для массовой вставки
func (a *Adapter) applyPragmaOptimizations(ctx context.Context) error {
	pragmas := []string{
		// WAL: запись не блокирует читателей
		"PRAGMA journal_mode = WAL",

		// fsync только на checkpoint; безопасно при WAL
		"PRAGMA synchronous = NORMAL",

		// 64 MB кеша страниц
		"PRAGMA cache_size = -64000",

		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := a.DB.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

// GetDatabaseType возвращает тип СУБД
func (a *Adapter) GetDatabaseType() string {
	return "sqlite"
}

// GetDatabaseVersion возвращает версию SQLite
func (a *Adapter) GetDatabaseVersion(ctx context.Context) (string, error) {
	var version string
	if err := a.DB.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&version); err != nil {
		return "", fmt.Errorf("failed to get version: %w", err)
	}
	return "SQLite " + version, nil
}
