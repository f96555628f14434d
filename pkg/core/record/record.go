package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Header - упорядоченный список имен полей, полученный из первой строки входа.
//
// Колонки входа отображаются на позиции полей. Если имя колонки повторяется,
// ключ в записи остается один (на позиции первого вхождения), а значение
// берется из последней такой колонки. Если строка до нее не дотягивается,
// поле отсутствует, даже когда более ранняя колонка заполнена.
type Header struct {
	names      []string
	index      map[string]int // имя поля -> позиция
	columns    []int          // колонка входа -> позиция поля
	last       []int          // позиция поля -> последняя колонка с этим именем
	duplicates []string
}

// NewHeader создает заголовок из имен колонок в порядке следования
func NewHeader(columns []string) *Header {
	h := &Header{
		names:   make([]string, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
		columns: make([]int, len(columns)),
		last:    make([]int, 0, len(columns)),
	}

	for i, name := range columns {
		if pos, ok := h.index[name]; ok {
			h.columns[i] = pos
			h.last[pos] = i
			h.duplicates = append(h.duplicates, name)
			continue
		}
		pos := len(h.names)
		h.names = append(h.names, name)
		h.index[name] = pos
		h.columns[i] = pos
		h.last = append(h.last, i)
	}

	return h
}

// Names возвращает копию имен полей
func (h *Header) Names() []string {
	out := make([]string, len(h.names))
	copy(out, h.names)
	return out
}

// Len возвращает количество уникальных полей
func (h *Header) Len() int {
	return len(h.names)
}

// Columns возвращает количество колонок в строке заголовка (с учетом дублей)
func (h *Header) Columns() int {
	return len(h.columns)
}

// Index возвращает позицию поля по имени
func (h *Header) Index(name string) (int, bool) {
	pos, ok := h.index[name]
	return pos, ok
}

// Duplicates возвращает имена колонок, встретившихся повторно
func (h *Header) Duplicates() []string {
	return h.duplicates
}

// Record - одна строка данных: имя поля -> значение.
// Значение может отсутствовать (строка входа короче заголовка).
type Record struct {
	header  *Header
	values  []string
	present []bool
}

// New создает запись, в которой все поля отсутствуют
func New(h *Header) *Record {
	return &Record{
		header:  h,
		values:  make([]string, h.Len()),
		present: make([]bool, h.Len()),
	}
}

// FromValues сопоставляет значения с заголовком по позиции колонки.
// Недостающие значения остаются отсутствующими, лишние отбрасываются.
func FromValues(h *Header, values []string) *Record {
	r := New(h)
	for pos, col := range h.last {
		if col < len(values) {
			r.values[pos] = values[col]
			r.present[pos] = true
		}
	}
	return r
}

// Header возвращает заголовок записи
func (r *Record) Header() *Header {
	return r.header
}

// Len возвращает количество ключей записи (всегда равно Header().Len())
func (r *Record) Len() int {
	return len(r.values)
}

// Keys возвращает имена полей в порядке заголовка
func (r *Record) Keys() []string {
	return r.header.Names()
}

// Get возвращает значение поля и признак его наличия
func (r *Record) Get(name string) (string, bool) {
	pos, ok := r.header.index[name]
	if !ok || !r.present[pos] {
		return "", false
	}
	return r.values[pos], true
}

// Set заменяет значение поля. Возвращает false, если поля нет в заголовке.
func (r *Record) Set(name, value string) bool {
	pos, ok := r.header.index[name]
	if !ok {
		return false
	}
	r.values[pos] = value
	r.present[pos] = true
	return true
}

// At возвращает поле по позиции
func (r *Record) At(i int) (name, value string, present bool) {
	return r.header.names[i], r.values[i], r.present[i]
}

// Each обходит поля в порядке заголовка
func (r *Record) Each(fn func(name, value string, present bool)) {
	for i, name := range r.header.names {
		fn(name, r.values[i], r.present[i])
	}
}

// Values возвращает значения в порядке заголовка; отсутствующие - пустая строка
func (r *Record) Values() []string {
	out := make([]string, len(r.values))
	copy(out, r.values)
	for i, ok := range r.present {
		if !ok {
			out[i] = ""
		}
	}
	return out
}

// Clone создает независимую копию записи (заголовок общий)
func (r *Record) Clone() *Record {
	c := &Record{
		header:  r.header,
		values:  make([]string, len(r.values)),
		present: make([]bool, len(r.present)),
	}
	copy(c.values, r.values)
	copy(c.present, r.present)
	return c
}

// Equal сравнивает ключи, значения и наличие значений
func (r *Record) Equal(o *Record) bool {
	if o == nil || len(r.values) != len(o.values) {
		return false
	}
	for i := range r.values {
		if r.header.names[i] != o.header.names[i] || r.present[i] != o.present[i] {
			return false
		}
		if r.present[i] && r.values[i] != o.values[i] {
			return false
		}
	}
	return true
}

// MarshalJSON кодирует запись как JSON объект с сохранением порядка полей.
// Отсутствующие значения кодируются как null.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range r.header.names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, fmt.Errorf("failed to encode key %q: %w", name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		if !r.present[i] {
			buf.WriteString("null")
			continue
		}
		val, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, fmt.Errorf("failed to encode value of %q: %w", name, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// String - отладочное представление вида {name=John, email=<absent>}
func (r *Record) String() string {
	parts := make([]string, 0, len(r.values))
	r.Each(func(name, value string, present bool) {
		if !present {
			value = "<absent>"
		}
		parts = append(parts, name+"="+value)
	})
	return "{" + strings.Join(parts, ", ") + "}"
}
