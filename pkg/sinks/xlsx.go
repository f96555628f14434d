package sinks

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ruslano69/csvnorm/pkg/core/record"
	"github.com/ruslano69/csvnorm/pkg/processors"
	"github.com/ruslano69/csvnorm/pkg/xlsx"
)

// XLSXSink пишет записи на лист Excel. Книга собирается потоково
// и выгружается в назначение при Close.
type XLSXSink struct {
	dest   io.WriteCloser
	target string
	book   *xlsx.Writer

	records  int64
	bytes    int64
	checksum string
	closed   bool
}

// NewXLSXSink создает sink; пустой sheet = "Sheet1"
func NewXLSXSink(dest io.WriteCloser, target, sheet string) (*XLSXSink, error) {
	book, err := xlsx.NewWriter(sheet)
	if err != nil {
		dest.Close()
		return nil, err
	}
	return &XLSXSink{dest: dest, target: target, book: book}, nil
}

// Write добавляет строку; первая запись также пишет заголовок
func (s *XLSXSink) Write(ctx context.Context, rec *record.Record) error {
	if s.closed {
		return ErrClosed
	}
	if s.records == 0 {
		if err := s.book.WriteHeader(rec.Keys()); err != nil {
			return err
		}
	}
	if err := s.book.WriteRow(rec.Values()); err != nil {
		return err
	}
	s.records++
	return nil
}

// Close сохраняет книгу в назначение
func (s *XLSXSink) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	cw := processors.NewChecksumWriter(s.dest)
	_, err := s.book.WriteTo(cw)
	s.bytes = cw.BytesWritten()
	s.checksum = cw.Sum()
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to write workbook: %w", err))
	}
	if err := s.book.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.dest.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close output: %w", err))
	}
	return errors.Join(errs...)
}

// Abort отменяет выгрузку книги, если назначение это поддерживает, иначе - Close
func (s *XLSXSink) Abort(ctx context.Context, cause error) error {
	a, ok := s.dest.(abortable)
	if !ok || s.closed {
		return s.Close(ctx)
	}
	s.closed = true
	return errors.Join(s.book.Close(), a.Abort(cause))
}

// Type возвращает тип sink
func (s *XLSXSink) Type() string {
	return "xlsx"
}

// Stats возвращает счетчики
func (s *XLSXSink) Stats() Stats {
	return Stats{Records: s.records, Bytes: s.bytes, Checksum: s.checksum, Target: s.target}
}
