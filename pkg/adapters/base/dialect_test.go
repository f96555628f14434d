package base

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var testDialect = Dialect{
	Name:              "test",
	QuoteOpen:         `"`,
	QuoteClose:        `"`,
	TextType:          "TEXT",
	Placeholder:       DollarPlaceholder,
	MaxParams:         10,
	CreateIfNotExists: true,
}

func TestDialect_Quote(t *testing.T) {
	assert.Equal(t, `"name"`, testDialect.Quote("name"))
	assert.Equal(t, `"a""b"`, testDialect.Quote(`a"b`))

	brackets := Dialect{QuoteOpen: "[", QuoteClose: "]"}
	assert.Equal(t, "[a]]b]", brackets.Quote("a]b"))
	assert.Equal(t, "[dbo].[users]", brackets.QualifiedName("dbo", "users"))
	assert.Equal(t, `"users"`, testDialect.QualifiedName("", "users"))
}

func TestDialect_CreateTableSQL(t *testing.T) {
	got := testDialect.CreateTableSQL(`"users"`, []string{"name", "email"})
	assert.Equal(t, "CREATE TABLE IF NOT EXISTS \"users\" (\n  \"name\" TEXT,\n  \"email\" TEXT\n)", got)
}

func TestDialect_InsertSQL(t *testing.T) {
	got := testDialect.InsertSQL(`"users"`, []string{"name", "email"}, 2)
	assert.Equal(t, `INSERT INTO "users" ("name", "email") VALUES ($1, $2), ($3, $4)`, got)

	q := Dialect{QuoteOpen: "`", QuoteClose: "`", Placeholder: QuestionPlaceholder}
	assert.Equal(t, "INSERT INTO t (`a`) VALUES (?)", q.InsertSQL("t", []string{"a"}, 1))
	assert.Equal(t, "@p3", AtPPlaceholder(3))
}

func TestDialect_RowsPerStatement(t *testing.T) {
	assert.Equal(t, 5, testDialect.RowsPerStatement(2))
	assert.Equal(t, 1, testDialect.RowsPerStatement(20))
	assert.Equal(t, 1, testDialect.RowsPerStatement(0))

	mssql := Dialect{MaxParams: 2000, MaxRowsPerInsert: 1000}
	assert.Equal(t, 1000, mssql.RowsPerStatement(1))
	assert.Equal(t, 400, mssql.RowsPerStatement(5))
}

func TestFlattenRows(t *testing.T) {
	got := FlattenRows([][]any{{"a", "b"}, {"c"}}, 2)
	assert.Equal(t, []any{"a", "b", "c", nil}, got)
}
