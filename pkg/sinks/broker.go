package sinks

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ruslano69/csvnorm/pkg/brokers"
	"github.com/ruslano69/csvnorm/pkg/core/record"
	"github.com/ruslano69/csvnorm/pkg/retry"
)

// DefaultMessageBatch - сообщений в одном Send
const DefaultMessageBatch = 100

// BrokerSink публикует каждую запись отдельным JSON сообщением.
// Отсутствующие поля кодируются как null.
type BrokerSink struct {
	publisher brokers.Publisher
	retryer   *retry.Retryer
	keyField  string
	batchSize int
	target    string

	pending []brokers.Message
	seq     int64
	records int64
	failed  int64
	bytes   int64
	closed  bool
}

// NewBrokerSink подключает publisher и возвращает sink
func NewBrokerSink(ctx context.Context, publisher brokers.Publisher, cfg Config, retryer *retry.Retryer) (*BrokerSink, error) {
	if err := publisher.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", publisher.GetBrokerType(), err)
	}
	if retryer == nil {
		retryer, _ = retry.NewRetryer(retry.Config{})
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultMessageBatch
	}

	target := cfg.Broker.Topic
	if target == "" {
		target = cfg.Broker.Queue
	}

	return &BrokerSink{
		publisher: publisher,
		retryer:   retryer,
		keyField:  cfg.KeyField,
		batchSize: batchSize,
		target:    publisher.GetBrokerType() + ":" + target,
	}, nil
}

// Write кодирует запись и отправляет пачку, когда она заполнена
func (s *BrokerSink) Write(ctx context.Context, rec *record.Record) error {
	if s.closed {
		return ErrClosed
	}

	body, err := rec.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	s.seq++
	s.pending = append(s.pending, brokers.Message{
		Key:  s.messageKey(rec),
		Body: body,
		Time: time.Now(),
	})

	if len(s.pending) >= s.batchSize {
		return s.flush(ctx)
	}
	return nil
}

// messageKey - значение key_field или порядковый номер записи
func (s *BrokerSink) messageKey(rec *record.Record) []byte {
	if s.keyField != "" {
		if v, ok := rec.Get(s.keyField); ok && v != "" {
			return []byte(v)
		}
	}
	return []byte("csvnorm-" + strconv.FormatInt(s.seq, 10))
}

// flush отправляет накопленные сообщения с повторами.
// При отказе пачка уходит в DLQ, как у SQLSink.
func (s *BrokerSink) flush(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}

	batch := s.pending
	s.pending = nil

	err := s.retryer.DoWithData(ctx, func(ctx context.Context) error {
		return s.publisher.Send(ctx, batch...)
	}, deadLetterMessages(batch))
	if err != nil {
		s.failed += int64(len(batch))
		return err
	}

	s.records += int64(len(batch))
	for _, m := range batch {
		s.bytes += int64(len(m.Body))
	}
	return nil
}

// deadLetterMessages - представление пачки для DLQ
func deadLetterMessages(batch []brokers.Message) []map[string]string {
	out := make([]map[string]string, len(batch))
	for i, m := range batch {
		out[i] = map[string]string{"key": string(m.Key), "body": string(m.Body)}
	}
	return out
}

// Close отправляет остаток и закрывает соединение
func (s *BrokerSink) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if err := s.flush(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close %s: %w", s.publisher.GetBrokerType(), err))
	}
	return errors.Join(errs...)
}

// Type возвращает тип брокера
func (s *BrokerSink) Type() string {
	return s.publisher.GetBrokerType()
}

// Stats возвращает счетчики доставленных сообщений
func (s *BrokerSink) Stats() Stats {
	return Stats{Records: s.records, Bytes: s.bytes, Target: s.target}
}

// Failed возвращает количество сообщений, не доставленных брокеру
func (s *BrokerSink) Failed() int64 {
	return s.failed
}
