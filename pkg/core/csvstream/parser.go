package csvstream

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ruslano69/csvnorm/pkg/core/record"
)

// DefaultSeparator - разделитель полей по умолчанию (чтение и запись)
const DefaultSeparator = ","

var (
	// ErrColumnCount - количество значений в строке не совпадает с заголовком (strict режим)
	ErrColumnCount = errors.New("column count mismatch")

	// ErrDuplicateHeader - повторяющееся имя колонки в заголовке (strict режим)
	ErrDuplicateHeader = errors.New("duplicate header field")
)

// LineError описывает ошибку разбора конкретной строки входа
type LineError struct {
	Line     int // Номер строки (1-based, считая заголовок)
	Expected int
	Got      int
	Err      error
}

func (e *LineError) Error() string {
	if e.Expected > 0 || e.Got > 0 {
		return fmt.Sprintf("line %d: %v: expected %d fields, got %d", e.Line, e.Err, e.Expected, e.Got)
	}
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// ParserOptions - настройки парсера
type ParserOptions struct {
	// Separator - разделитель полей (по умолчанию ",")
	Separator string

	// Strict - ошибка при несовпадении количества колонок и дублях в заголовке.
	// По умолчанию парсер снисходителен: короткие строки дают отсутствующие поля,
	// лишние значения отбрасываются.
	Strict bool

	// Quoted - учитывать кавычки внутри строки ("a,b" - одно поле, "" - кавычка).
	// Перевод строки внутри кавычек не поддерживается: разбиение идет по \n.
	Quoted bool

	// TrimSpace - обрезать пробелы по краям значений и имен колонок
	TrimSpace bool
}

// ParserState - состояние одной сессии разбора.
// Принадлежит оркестратору и не может разделяться между запусками.
type ParserState struct {
	Pending []byte         // Незавершенный хвост строки между чанками
	Header  *record.Header // Заголовок (nil до первой непустой строки)
	Line    int            // Номер последней обработанной строки
	Records int            // Количество выданных записей
}

// EmitFunc получает очередную запись. Ошибка останавливает разбор.
type EmitFunc func(rec *record.Record) error

// Parser превращает поток текста с разделителями в последовательность записей.
// Сам Parser не хранит состояния и может использоваться несколькими сессиями.
type Parser struct {
	opts ParserOptions
}

// NewParser создает новый парсер
func NewParser(opts ParserOptions) *Parser {
	if opts.Separator == "" {
		opts.Separator = DefaultSeparator
	}
	return &Parser{opts: opts}
}

// Options возвращает настройки парсера
func (p *Parser) Options() ParserOptions {
	return p.opts
}

// Push добавляет чанк к буферу и обрабатывает все завершенные строки.
// Незавершенный фрагмент остается в state.Pending до следующего чанка.
func (p *Parser) Push(state *ParserState, chunk []byte, emit EmitFunc) error {
	state.Pending = append(state.Pending, chunk...)

	offset := 0
	for {
		i := bytes.IndexByte(state.Pending[offset:], '\n')
		if i < 0 {
			break
		}
		line := string(state.Pending[offset : offset+i])
		offset += i + 1

		if err := p.processLine(state, line, emit); err != nil {
			// Сохраняем необработанный остаток, чтобы состояние оставалось согласованным
			state.Pending = compact(state.Pending, offset)
			return err
		}
	}

	state.Pending = compact(state.Pending, offset)
	return nil
}

// Flush разбирает оставшийся фрагмент как последнюю строку.
// Вызывается один раз в конце входа.
func (p *Parser) Flush(state *ParserState, emit EmitFunc) error {
	if len(state.Pending) == 0 {
		return nil
	}
	line := string(state.Pending)
	state.Pending = state.Pending[:0]
	return p.processLine(state, line, emit)
}

// processLine обрабатывает одну полную строку
func (p *Parser) processLine(state *ParserState, line string, emit EmitFunc) error {
	state.Line++

	// CRLF: отрезаем \r перед \n
	line = strings.TrimSuffix(line, "\r")
	if line == "" {
		return nil
	}

	fields := p.SplitLine(line)

	if state.Header == nil {
		header := record.NewHeader(fields)
		if p.opts.Strict && len(header.Duplicates()) > 0 {
			return &LineError{
				Line: state.Line,
				Err:  fmt.Errorf("%w: %s", ErrDuplicateHeader, strings.Join(header.Duplicates(), ", ")),
			}
		}
		state.Header = header
		return nil
	}

	if p.opts.Strict && len(fields) != state.Header.Columns() {
		return &LineError{
			Line:     state.Line,
			Expected: state.Header.Columns(),
			Got:      len(fields),
			Err:      ErrColumnCount,
		}
	}

	state.Records++
	return emit(record.FromValues(state.Header, fields))
}

// SplitLine разбивает строку на значения согласно настройкам
func (p *Parser) SplitLine(line string) []string {
	var fields []string
	if p.opts.Quoted {
		fields = splitQuoted(line, p.opts.Separator)
	} else {
		fields = strings.Split(line, p.opts.Separator)
	}

	if p.opts.TrimSpace {
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
	}
	return fields
}

// splitQuoted разбивает строку с учетом кавычек.
// Кавычка открывает поле только в его начале; "" внутри кавычек - literal ".
// Незакрытая кавычка захватывает остаток строки.
func splitQuoted(line, sep string) []string {
	var (
		fields     []string
		b          strings.Builder
		inQuotes   bool
		fieldStart = true
	)

	for i := 0; i < len(line); {
		c := line[i]

		if inQuotes {
			if c == '"' {
				if i+1 < len(line) && line[i+1] == '"' {
					b.WriteByte('"')
					i += 2
					continue
				}
				inQuotes = false
				i++
				continue
			}
			b.WriteByte(c)
			i++
			continue
		}

		switch {
		case strings.HasPrefix(line[i:], sep):
			fields = append(fields, b.String())
			b.Reset()
			i += len(sep)
			fieldStart = true
		case c == '"' && fieldStart:
			inQuotes = true
			fieldStart = false
			i++
		default:
			b.WriteByte(c)
			fieldStart = false
			i++
		}
	}

	return append(fields, b.String())
}

// compact сдвигает необработанный остаток в начало буфера
func compact(buf []byte, offset int) []byte {
	if offset == 0 {
		return buf
	}
	n := copy(buf, buf[offset:])
	return buf[:n]
}
