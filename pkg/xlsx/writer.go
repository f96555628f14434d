package xlsx

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// DefaultSheet - имя листа по умолчанию
const DefaultSheet = "Sheet1"

// Writer пишет строки в один лист XLSX через excelize.StreamWriter.
// Строки держатся во временном файле excelize, а не в памяти, поэтому
// размер выхода не ограничен объемом RAM.
type Writer struct {
	file      *excelize.File
	stream    *excelize.StreamWriter
	sheet     string
	textStyle int
	row       int // Номер следующей строки (1-based)
	columns   int
}

// NewWriter создает книгу с одним листом
//
// Example:
//
//	w, err := xlsx.NewWriter("Users")
//	w.WriteHeader([]string{"name", "email"})
//	w.WriteRow([]string{"John Doe", "john@example.com"})
//	w.WriteTo(out)
func NewWriter(sheet string) (*Writer, error) {
	if sheet == "" {
		sheet = DefaultSheet
	}

	f := excelize.NewFile()
	if sheet != DefaultSheet {
		if err := f.SetSheetName(DefaultSheet, sheet); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create sheet: %w", err)
		}
	}

	stream, err := f.NewStreamWriter(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create stream writer: %w", err)
	}

	// Формат "@" (49): Excel не превращает телефоны и даты в числа
	textStyle, err := f.NewStyle(&excelize.Style{NumFmt: 49})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create cell style: %w", err)
	}

	return &Writer{
		file:      f,
		stream:    stream,
		sheet:     sheet,
		textStyle: textStyle,
		row:       1,
	}, nil
}

// WriteHeader пишет строку заголовка со стилем и задает ширину колонок.
// Должен вызываться до первой строки данных.
func (w *Writer) WriteHeader(names []string) error {
	if w.row != 1 {
		return fmt.Errorf("header must be the first row")
	}

	headerStyle, err := w.file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if len(names) > 0 {
		if err := w.stream.SetColWidth(1, len(names), 20); err != nil {
			return fmt.Errorf("failed to set column width: %w", err)
		}
	}

	cells := make([]any, len(names))
	for i, name := range names {
		cells[i] = excelize.Cell{StyleID: headerStyle, Value: name}
	}

	w.columns = len(names)
	return w.setRow(cells)
}

// WriteRow пишет строку значений как текстовые ячейки
func (w *Writer) WriteRow(values []string) error {
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = excelize.Cell{StyleID: w.textStyle, Value: v}
	}
	return w.setRow(cells)
}

func (w *Writer) setRow(cells []any) error {
	if err := w.stream.SetRow(ColumnName(1)+strconv.Itoa(w.row), cells); err != nil {
		return fmt.Errorf("failed to write row %d: %w", w.row, err)
	}
	w.row++
	return nil
}

// Rows возвращает количество записанных строк (включая заголовок)
func (w *Writer) Rows() int {
	return w.row - 1
}

// WriteTo завершает лист и сериализует книгу в out
func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	if err := w.stream.Flush(); err != nil {
		return 0, fmt.Errorf("failed to flush sheet: %w", err)
	}
	// excelize при прямой записи возвращает 0, поэтому байты считаем сами
	cw := &countingWriter{w: out}
	if _, err := w.file.WriteTo(cw); err != nil {
		return cw.n, fmt.Errorf("failed to write workbook: %w", err)
	}
	return cw.n, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Close освобождает временные файлы excelize
func (w *Writer) Close() error {
	return w.file.Close()
}

// ReadSheet читает все строки листа (пустое имя = первый лист)
func ReadSheet(r io.Reader, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return rows, nil
}

// ColumnName - номер колонки в имя Excel (1 → A, 27 → AA)
func ColumnName(col int) string {
	name := ""
	for col > 0 {
		col--
		name = string(rune('A'+col%26)) + name
		col /= 26
	}
	return name
}
