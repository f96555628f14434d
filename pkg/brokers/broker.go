package brokers

import (
	"context"
	"fmt"
	"time"
)

// Message - одно сообщение для брокера (обычно одна запись в JSON)
type Message struct {
	Key     []byte
	Body    []byte
	Headers map[string]string
	Time    time.Time
}

// Publisher представляет универсальный интерфейс публикации в очереди сообщений.
// Поддерживает RabbitMQ и Apache Kafka.
type Publisher interface {
	// Connect устанавливает соединение с брокером
	Connect(ctx context.Context) error

	// Close закрывает соединение с брокером
	Close() error

	// Send отправляет сообщения. Для Kafka пачка уходит одним запросом,
	// для RabbitMQ - последовательными publish в одном канале.
	Send(ctx context.Context, messages ...Message) error

	// Ping проверяет доступность брокера
	Ping(ctx context.Context) error

	// GetBrokerType возвращает тип брокера (rabbitmq, kafka)
	GetBrokerType() string
}

// Config содержит параметры подключения к message broker
type Config struct {
	Type string `yaml:"type"` // rabbitmq, kafka

	// RabbitMQ
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	Queue      string `yaml:"queue"`
	VHost      string `yaml:"vhost"`       // Virtual host (по умолчанию "/")
	UseTLS     bool   `yaml:"tls"`         // amqps://
	Exchange   string `yaml:"exchange"`    // Пустая строка = default exchange
	RoutingKey string `yaml:"routing_key"` // Если пустой, используется имя очереди

	// Параметры очереди RabbitMQ (должны совпадать с существующей очередью)
	Durable    bool `yaml:"durable"`
	AutoDelete bool `yaml:"auto_delete"`
	Exclusive  bool `yaml:"exclusive"`

	// Kafka
	Brokers     []string `yaml:"brokers"` // ["localhost:9092", "localhost:9093"]
	Topic       string   `yaml:"topic"`
	Compression string   `yaml:"compression"` // none, snappy, gzip, lz4, zstd (по умолчанию snappy)

	// Общие
	ContentType  string        `yaml:"content_type"`  // По умолчанию application/json
	WriteTimeout time.Duration `yaml:"write_timeout"` // По умолчанию 10s
}

// Validate проверяет обязательные параметры для выбранного брокера
func (c Config) Validate() error {
	switch c.Type {
	case "rabbitmq":
		if c.Queue == "" && c.Exchange == "" {
			return fmt.Errorf("queue or exchange is required for RabbitMQ")
		}
	case "kafka":
		if c.Topic == "" {
			return fmt.Errorf("topic name is required for Kafka")
		}
		if len(c.Brokers) == 0 {
			return fmt.Errorf("at least one broker address is required for Kafka")
		}
	default:
		return fmt.Errorf("unsupported broker type: %s (supported: rabbitmq, kafka)", c.Type)
	}
	return nil
}

func (c Config) contentType() string {
	if c.ContentType == "" {
		return "application/json"
	}
	return c.ContentType
}

func (c Config) writeTimeout() time.Duration {
	if c.WriteTimeout <= 0 {
		return 10 * time.Second
	}
	return c.WriteTimeout
}

// New создает новый Publisher на основе конфигурации
func New(cfg Config) (Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Type {
	case "rabbitmq":
		return NewRabbitMQ(cfg)
	default:
		return NewKafka(cfg)
	}
}
