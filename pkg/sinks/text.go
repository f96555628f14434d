package sinks

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ruslano69/csvnorm/pkg/core/csvstream"
	"github.com/ruslano69/csvnorm/pkg/core/record"
	"github.com/ruslano69/csvnorm/pkg/processors"
)

// TextSink пишет записи как CSV строки через Serializer.
// Цепочка: Serializer → bufio → [zstd] → xxh3 → назначение.
// Контрольная сумма считается по байтам, попавшим в назначение.
type TextSink struct {
	dest     io.WriteCloser
	target   string
	buf      *bufio.Writer
	compress *processors.CompressWriter
	checksum *processors.ChecksumWriter

	serializer *csvstream.Serializer
	state      csvstream.SerializerState
	records    int64
	closed     bool
}

// NewTextSink создает текстовый sink поверх dest
func NewTextSink(dest io.WriteCloser, target string, cfg Config) (*TextSink, error) {
	s := &TextSink{
		dest:     dest,
		target:   target,
		checksum: processors.NewChecksumWriter(dest),
		serializer: csvstream.NewSerializer(csvstream.SerializerOptions{
			Separator: cfg.Separator,
			Newline:   cfg.Newline,
		}),
	}

	var w io.Writer = s.checksum
	if cfg.Compression == "zstd" {
		cw, err := processors.NewCompressWriter(s.checksum, cfg.CompressionLevel)
		if err != nil {
			dest.Close()
			return nil, err
		}
		s.compress = cw
		w = cw
	}
	s.buf = bufio.NewWriterSize(w, 64*1024)

	return s, nil
}

// Write сериализует запись; первая запись также пишет заголовок
func (s *TextSink) Write(ctx context.Context, rec *record.Record) error {
	if s.closed {
		return ErrClosed
	}
	if err := s.serializer.Serialize(&s.state, rec, s.buf); err != nil {
		return err
	}
	s.records++
	return nil
}

// Close сбрасывает буфер, завершает zstd фрейм и закрывает назначение
func (s *TextSink) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if err := s.buf.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("failed to flush output: %w", err))
	}
	if s.compress != nil {
		if err := s.compress.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to finish zstd frame: %w", err))
		}
	}
	if err := s.dest.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close output: %w", err))
	}
	return errors.Join(errs...)
}

// Abort отменяет выгрузку, если назначение это поддерживает, иначе - Close
func (s *TextSink) Abort(ctx context.Context, cause error) error {
	a, ok := s.dest.(abortable)
	if !ok || s.closed {
		return s.Close(ctx)
	}
	s.closed = true
	err := a.Abort(cause)
	if s.compress != nil {
		// Назначение уже закрыто, нужно только освободить кодировщик
		_ = s.compress.Close()
	}
	return err
}

// Type возвращает тип sink
func (s *TextSink) Type() string {
	return "text"
}

// Stats возвращает счетчики. Checksum окончателен после Close.
func (s *TextSink) Stats() Stats {
	return Stats{
		Records:  s.records,
		Bytes:    s.checksum.BytesWritten(),
		Checksum: s.checksum.Sum(),
		Target:   s.target,
	}
}

// Lines возвращает количество строк данных (без заголовка)
func (s *TextSink) Lines() int {
	return s.state.Lines
}
