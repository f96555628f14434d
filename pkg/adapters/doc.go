/*
Package adapters записывает поток CSV записей в таблицы СУБД.

# Архитектура двухуровневого адаптера

	┌─────────────────────────────────────────┐
	│    Pipeline (pkg/etl, pkg/sinks)        │
	│  - record.Record                        │
	└─────────────────┬───────────────────────┘
	                  │
	┌─────────────────▼───────────────────────┐
	│  TableWriter                            │  ← pkg/adapters/table.go
	│  пачки строк, санированные колонки      │
	└─────────────────┬───────────────────────┘
	                  │
	┌─────────────────▼───────────────────────┐
	│  Level 1: Adapter interface             │  ← pkg/adapters/adapter.go
	└─────────────────┬───────────────────────┘
	                  │
	   ┌──────────┬───┴──────┬──────────┐
	┌──▼─────┐ ┌──▼─────┐ ┌──▼────┐ ┌───▼───┐
	│ SQLite │ │Postgres│ │ MySQL │ │MS SQL │  ← Level 2
	└────────┘ └────────┘ └───────┘ └───────┘

SQLite, MySQL и MS SQL пишут многострочными INSERT через общий
base.SQLAdapter; PostgreSQL использует COPY FROM через pgxpool.

Адаптеры регистрируются в фабрике из init(), поэтому драйвер подключается
blank import'ом:

	import _ "github.com/ruslano69/csvnorm/pkg/adapters/sqlite"

	adapter, err := adapters.New(ctx, adapters.Config{Type: "sqlite", DSN: "users.db"})
*/
package adapters
