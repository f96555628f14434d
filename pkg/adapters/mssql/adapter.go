package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/denisenkom/go-mssqldb" // MS SQL Server driver

	"github.com/ruslano69/csvnorm/pkg/adapters"
	"github.com/ruslano69/csvnorm/pkg/adapters/base"
)

// AdapterType identifies the MS SQL Server adapter.
const AdapterType = "mssql"

var _ adapters.Adapter = (*Adapter)(nil)

func init() {
	adapters.Register(AdapterType, func() adapters.Adapter {
		return &Adapter{}
	})
}

// Dialect: brackets, @pN, at most 2100 parameters and 1000 rows per VALUES.
var Dialect = base.Dialect{
	Name:             AdapterType,
	QuoteOpen:        "[",
	QuoteClose:       "]",
	TextType:         "NVARCHAR(MAX)",
	Placeholder:      base.AtPPlaceholder,
	MaxParams:        2000,
	MaxRowsPerInsert: 1000,
}

// Adapter implements adapters.Adapter for Microsoft SQL Server.
type Adapter struct {
	base.SQLAdapter
	serverVersion string
}

// Connect opens the connection and reads the server version.
func (a *Adapter) Connect(ctx context.Context, cfg adapters.Config) error {
	db, err := sql.Open("sqlserver", cfg.DSN)
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

	schema := cfg.Schema
	if schema == "" {
		schema = "dbo"
	}

	a.SQLAdapter = base.SQLAdapter{
		DB:      db,
		Dialect: Dialect,
		Schema:  schema,
		ExistsQuery: "SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = '" +
			strings.ReplaceAll(schema, "'", "''") + "' AND TABLE_NAME = @p1",
	}

	if err := db.QueryRowContext(ctx, "SELECT CAST(SERVERPROPERTY('ProductVersion') AS NVARCHAR(128))").Scan(&a.serverVersion); err != nil {
		db.Close()
		return fmt.Errorf("failed to detect server version: %w", err)
	}

	return nil
}

// GetDatabaseType returns the adapter type.
func (a *Adapter) GetDatabaseType() string {
	return AdapterType
}

// GetDatabaseVersion returns the version detected on Connect.
func (a *Adapter) GetDatabaseVersion(ctx context.Context) (string, error) {
	if a.serverVersion == "" {
		return "", fmt.Errorf("adapter not connected")
	}
	return "SQL Server " + a.serverVersion, nil
}
