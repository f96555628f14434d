package brokers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// Kafka реализует Publisher для Apache Kafka
type Kafka struct {
	config Config
	writer *kafka.Writer
}

// NewKafka создает новый Kafka publisher
func NewKafka(cfg Config) (*Kafka, error) {
	cfg.Type = "kafka"
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Kafka{
		config: cfg,
	}, nil
}

// Connect создает writer и проверяет доступность брокера
func (k *Kafka) Connect(ctx context.Context) error {
	compression, err := kafkaCompression(k.config.Compression)
	if err != nil {
		return err
	}

	k.writer = &kafka.Writer{
		Addr:         kafka.TCP(k.config.Brokers...),
		Topic:        k.config.Topic,
		Balancer:     &kafka.Hash{},     // Одинаковый ключ - одна партиция, порядок сохраняется
		RequiredAcks: kafka.RequireAll,  // Ждем подтверждения от всех реплик
		Async:        false,             // Синхронная отправка: ошибка доходит до пайплайна
		Compression:  compression,
		MaxAttempts:  1,                 // Повторы выполняет pkg/retry
		WriteTimeout: k.config.writeTimeout(),
	}

	return k.Ping(ctx)
}

// kafkaCompression переводит имя кодека в kafka.Compression
func kafkaCompression(name string) (kafka.Compression, error) {
	switch strings.ToLower(name) {
	case "", "snappy":
		return kafka.Snappy, nil
	case "none":
		return 0, nil
	case "gzip":
		return kafka.Gzip, nil
	case "lz4":
		return kafka.Lz4, nil
	case "zstd":
		return kafka.Zstd, nil
	default:
		return 0, fmt.Errorf("unsupported kafka compression: %s", name)
	}
}

// Close закрывает writer
func (k *Kafka) Close() error {
	if k.writer == nil {
		return nil
	}
	if err := k.writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	k.writer = nil
	return nil
}

// Send отправляет сообщения в Kafka topic одним запросом
func (k *Kafka) Send(ctx context.Context, messages ...Message) error {
	if k.writer == nil {
		return fmt.Errorf("not connected to Kafka")
	}
	if len(messages) == 0 {
		return nil
	}

	batch := make([]kafka.Message, len(messages))
	for i, m := range messages {
		batch[i] = k.toKafkaMessage(m)
	}

	if err := k.writer.WriteMessages(ctx, batch...); err != nil {
		return fmt.Errorf("failed to write %d messages to Kafka: %w", len(batch), err)
	}

	return nil
}

// toKafkaMessage строит kafka.Message с заголовками content-type и producer
func (k *Kafka) toKafkaMessage(m Message) kafka.Message {
	ts := m.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	headers := []kafka.Header{
		{Key: "content-type", Value: []byte(k.config.contentType())},
		{Key: "producer", Value: []byte("csvnorm")},
	}
	for key, value := range m.Headers {
		headers = append(headers, kafka.Header{Key: key, Value: []byte(value)})
	}

	return kafka.Message{
		Key:     m.Key,
		Value:   m.Body,
		Time:    ts,
		Headers: headers,
	}
}

// Ping проверяет доступность Kafka и существование topic
func (k *Kafka) Ping(ctx context.Context) error {
	conn, err := kafka.DialContext(ctx, "tcp", k.config.Brokers[0])
	if err != nil {
		return fmt.Errorf("failed to dial Kafka broker: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ReadPartitions(k.config.Topic); err != nil {
		return fmt.Errorf("failed to read topic partitions: %w", err)
	}

	return nil
}

// GetBrokerType возвращает тип брокера
func (k *Kafka) GetBrokerType() string {
	return "kafka"
}

// GetStats возвращает статистику Kafka writer
func (k *Kafka) GetStats() kafka.WriterStats {
	if k.writer == nil {
		return kafka.WriterStats{}
	}
	return k.writer.Stats()
}
