package sinks

import (
	"context"
	"errors"
	"fmt"

	"github.com/ruslano69/csvnorm/pkg/adapters"
	"github.com/ruslano69/csvnorm/pkg/core/record"
	"github.com/ruslano69/csvnorm/pkg/retry"
)

// SQLSink пишет записи в таблицу через адаптер СУБД.
// Каждая пачка - одна транзакция; неудачная пачка повторяется
// через Retryer и после исчерпания попыток уходит в DLQ.
type SQLSink struct {
	adapter adapters.Adapter
	writer  *adapters.TableWriter
	retryer *retry.Retryer
	target  string

	records int64
	failed  int64
	closed  bool
}

// NewSQLSink подключается к СУБД по cfg.Database
func NewSQLSink(ctx context.Context, cfg Config, retryer *retry.Retryer) (*SQLSink, error) {
	writer, err := adapters.OpenTable(ctx, cfg.Database, cfg.Table, cfg.Strategy, cfg.BatchSize)
	if err != nil {
		return nil, err
	}
	return newSQLSink(writer, retryer), nil
}

func newSQLSink(writer *adapters.TableWriter, retryer *retry.Retryer) *SQLSink {
	if retryer == nil {
		retryer, _ = retry.NewRetryer(retry.Config{})
	}

	return &SQLSink{
		adapter: writer.Adapter(),
		writer:  writer,
		retryer: retryer,
		target:  writer.Adapter().GetDatabaseType() + ":" + writer.Table(),
	}
}

// Write буферизует запись и пишет пачку, когда она заполнена
func (s *SQLSink) Write(ctx context.Context, rec *record.Record) error {
	if s.closed {
		return ErrClosed
	}
	if err := s.writer.Add(ctx, rec); err != nil {
		return err
	}
	s.records++

	if s.writer.Full() {
		return s.flush(ctx)
	}
	return nil
}

// flush пишет буфер с повторами. Пачка, исчерпавшая попытки,
// сохраняется в DLQ (если включен) и отбрасывается из буфера;
// ошибка возвращается вызывающему в любом случае.
func (s *SQLSink) flush(ctx context.Context) error {
	if s.writer.Pending() == 0 {
		return nil
	}

	batch := map[string]any{
		"table":   s.writer.Table(),
		"columns": s.writer.Columns(),
		"rows":    s.writer.PendingRows(),
	}
	err := s.retryer.DoWithData(ctx, s.writer.Flush, batch)
	if err != nil {
		s.failed += int64(s.writer.Pending())
		s.writer.Discard()
		return err
	}
	return nil
}

// Close дописывает последнюю пачку и закрывает соединение
func (s *SQLSink) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if err := s.flush(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.adapter.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	}
	return errors.Join(errs...)
}

// Type возвращает тип sink
func (s *SQLSink) Type() string {
	return "sql"
}

// Stats возвращает счетчики. Records - строки, зафиксированные в БД.
func (s *SQLSink) Stats() Stats {
	return Stats{Records: s.writer.Written(), Target: s.target}
}

// Failed возвращает количество строк, не попавших в БД
func (s *SQLSink) Failed() int64 {
	return s.failed
}
