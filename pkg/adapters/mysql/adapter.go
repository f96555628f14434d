package mysql

import (
	"context"
	"database/sql"
	"fmt"

	gomysql "github.com/go-sql-driver/mysql" // MySQL driver

	"github.com/ruslano69/csvnorm/pkg/adapters"
	"github.com/ruslano69/csvnorm/pkg/adapters/base"
)

// AdapterType идентификатор MySQL адаптера
const AdapterType = "mysql"

var _ adapters.Adapter = (*Adapter)(nil)

func init() {
	// Регистрируем MySQL адаптер в фабрике
	adapters.Register(AdapterType, func() adapters.Adapter {
		return &Adapter{}
	})
}

// Dialect - MySQL: обратные кавычки, "?", лимит 65535 параметров.
// TEXT нельзя индексировать без длины, поэтому колонки VARCHAR(1024).
var Dialect = base.Dialect{
	Name:              AdapterType,
	QuoteOpen:         "`",
	QuoteClose:        "`",
	TextType:          "VARCHAR(1024)",
	Placeholder:       base.QuestionPlaceholder,
	MaxParams:         65535,
	CreateIfNotExists: true,
}

// Adapter реализует adapters.Adapter для MySQL
type Adapter struct {
	base.SQLAdapter
	config adapters.Config
}

// Connect подключается к MySQL базе данных
func (a *Adapter) Connect(ctx context.Context, cfg adapters.Config) error {
	dsn, err := prepareDSN(cfg)
	if err != nil {
		return err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	a.SQLAdapter = base.SQLAdapter{
		DB:          db,
		Dialect:     Dialect,
		ExistsQuery: "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?",
	}
	a.config = cfg

	return nil
}

// prepareDSN проверяет DSN и включает параметры, нужные для пакетной вставки
func prepareDSN(cfg adapters.Config) (string, error) {
	mc, err := gomysql.ParseDSN(cfg.DSN)
	if err != nil {
		return "", fmt.Errorf("invalid mysql dsn: %w", err)
	}
	if mc.DBName == "" {
		return "", fmt.Errorf("mysql dsn must name a database")
	}

	// Клиентская подстановка параметров: один round trip на пачку строк
	mc.InterpolateParams = true
	if cfg.Timeout > 0 {
		mc.Timeout = cfg.Timeout
	}
	if mc.Params == nil {
		mc.Params = map[string]string{}
	}
	if _, ok := mc.Params["charset"]; !ok {
		mc.Params["charset"] = "utf8mb4"
	}

	return mc.FormatDSN(), nil
}

// GetDatabaseType возвращает тип базы данных
func (a *Adapter) GetDatabaseType() string {
	return AdapterType
}

// GetDatabaseVersion возвращает версию MySQL
func (a *Adapter) GetDatabaseVersion(ctx context.Context) (string, error) {
	var version string
	if err := a.DB.QueryRowContext(ctx, "SELECT VERSION()").Scan(&version); err != nil {
		return "", fmt.Errorf("failed to get version: %w", err)
	}
	return "MySQL " + version, nil
}
