package base

import (
	"fmt"
	"strings"
)

// Dialect описывает различия SQL синтаксиса СУБД, важные для записи таблиц
type Dialect struct {
	// Name - тип СУБД ("sqlite", "mysql", "mssql", "postgres")
	Name string

	// QuoteOpen/QuoteClose - символы квотирования идентификаторов
	QuoteOpen  string
	QuoteClose string

	// TextType - тип колонки для строковых значений
	TextType string

	// Placeholder возвращает плейсхолдер параметра n (1-based)
	Placeholder func(n int) string

	// MaxParams - ограничение драйвера на количество параметров в запросе
	MaxParams int

	// MaxRowsPerInsert - ограничение на строки в одном VALUES (0 = нет)
	MaxRowsPerInsert int

	// CreateIfNotExists - поддерживается CREATE TABLE IF NOT EXISTS
	CreateIfNotExists bool
}

// QuestionPlaceholder - "?" (SQLite, MySQL)
func QuestionPlaceholder(int) string { return "?" }

// DollarPlaceholder - "$1" (PostgreSQL)
func DollarPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

// AtPPlaceholder - "@p1" (MS SQL)
func AtPPlaceholder(n int) string { return fmt.Sprintf("@p%d", n) }

// Quote квотирует идентификатор, удваивая закрывающий символ внутри
func (d Dialect) Quote(ident string) string {
	escaped := strings.ReplaceAll(ident, d.QuoteClose, d.QuoteClose+d.QuoteClose)
	return d.QuoteOpen + escaped + d.QuoteClose
}

// QualifiedName - schema.table или table
func (d Dialect) QualifiedName(schema, table string) string {
	if schema == "" {
		return d.Quote(table)
	}
	return d.Quote(schema) + "." + d.Quote(table)
}

// CreateTableSQL строит CREATE TABLE с текстовыми колонками
func (d Dialect) CreateTableSQL(name string, columns []string) string {
	defs := make([]string, len(columns))
	for i, col := range columns {
		defs[i] = fmt.Sprintf("%s %s", d.Quote(col), d.TextType)
	}

	ifNotExists := ""
	if d.CreateIfNotExists {
		ifNotExists = "IF NOT EXISTS "
	}

	return fmt.Sprintf("CREATE TABLE %s%s (\n  %s\n)", ifNotExists, name, strings.Join(defs, ",\n  "))
}

// RowsPerStatement - сколько строк помещается в один многострочный INSERT
func (d Dialect) RowsPerStatement(columns int) int {
	if columns <= 0 {
		return 1
	}
	rows := d.MaxParams / columns
	if d.MaxRowsPerInsert > 0 && rows > d.MaxRowsPerInsert {
		rows = d.MaxRowsPerInsert
	}
	if rows < 1 {
		rows = 1
	}
	return rows
}

// InsertSQL строит INSERT INTO name (cols) VALUES (...), (...) для rows строк
func (d Dialect) InsertSQL(name string, columns []string, rows int) string {
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = d.Quote(col)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", name, strings.Join(quoted, ", "))

	n := 1
	for r := 0; r < rows; r++ {
		if r > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for c := range columns {
			if c > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(d.Placeholder(n))
			n++
		}
		sb.WriteByte(')')
	}

	return sb.String()
}
