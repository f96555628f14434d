package csvstream

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/ruslano69/csvnorm/pkg/core/record"
)

// SerializerOptions - настройки сериализатора
type SerializerOptions struct {
	// Separator - разделитель полей при записи (по умолчанию ",").
	// Значение ", " воспроизводит исторический формат с пробелом после запятой.
	Separator string

	// Newline - окончание строки (по умолчанию "\n")
	Newline string
}

// SerializerState - состояние одной сессии записи
type SerializerState struct {
	HeaderWritten bool
	Header        []string // Имена полей из первой записи
	Lines         int      // Записано строк, включая заголовок
}

// Serializer превращает записи обратно в строки текста с разделителями
type Serializer struct {
	opts      SerializerOptions
	delimiter string // Символ(ы) разделителя без пробелов - триггер экранирования
}

// NewSerializer создает новый сериализатор
func NewSerializer(opts SerializerOptions) *Serializer {
	if opts.Separator == "" {
		opts.Separator = DefaultSeparator
	}
	if opts.Newline == "" {
		opts.Newline = "\n"
	}

	delimiter := strings.TrimSpace(opts.Separator)
	if delimiter == "" {
		delimiter = opts.Separator
	}

	return &Serializer{opts: opts, delimiter: delimiter}
}

// Options возвращает настройки сериализатора
func (s *Serializer) Options() SerializerOptions {
	return s.opts
}

// Serialize записывает запись в w. Перед первой записью пишется заголовок
// из имен ее полей. Каждая строка пишется в w одним вызовом Write, в порядке вызовов.
func (s *Serializer) Serialize(state *SerializerState, rec *record.Record, w io.Writer) error {
	if !state.HeaderWritten {
		state.Header = rec.Keys()
		if _, err := io.WriteString(w, s.FormatLine(state.Header)); err != nil {
			return fmt.Errorf("failed to write header line: %w", err)
		}
		state.HeaderWritten = true
		state.Lines++
	}

	if _, err := io.WriteString(w, s.FormatLine(s.valuesFor(state, rec))); err != nil {
		return fmt.Errorf("failed to write line %d: %w", state.Lines+1, err)
	}
	state.Lines++
	return nil
}

// valuesFor возвращает значения записи в порядке заголовка сессии.
// Отсутствующие значения пишутся пустой строкой.
func (s *Serializer) valuesFor(state *SerializerState, rec *record.Record) []string {
	if slices.Equal(rec.Keys(), state.Header) {
		return rec.Values()
	}

	values := make([]string, len(state.Header))
	for i, name := range state.Header {
		values[i], _ = rec.Get(name)
	}
	return values
}

// FormatLine собирает строку с экранированием и окончанием строки
func (s *Serializer) FormatLine(values []string) string {
	var b strings.Builder
	for i, v := range values {
		if i > 0 {
			b.WriteString(s.opts.Separator)
		}
		b.WriteString(s.EscapeField(v))
	}
	b.WriteString(s.opts.Newline)
	return b.String()
}

// EscapeField оборачивает значение в кавычки (удваивая внутренние кавычки),
// если оно содержит разделитель, кавычку или перевод строки.
func (s *Serializer) EscapeField(value string) string {
	if !s.needsQuotes(value) {
		return value
	}
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func (s *Serializer) needsQuotes(value string) bool {
	return strings.Contains(value, s.delimiter) || strings.ContainsAny(value, "\"\n\r")
}
