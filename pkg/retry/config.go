package retry

import (
	"fmt"
	"time"
)

// BackoffStrategy определяет стратегию задержки между повторами
type BackoffStrategy string

const (
	// BackoffConstant - постоянная задержка
	BackoffConstant BackoffStrategy = "constant"
	// BackoffLinear - линейное увеличение задержки
	BackoffLinear BackoffStrategy = "linear"
	// BackoffExponential - экспоненциальное увеличение задержки
	BackoffExponential BackoffStrategy = "exponential"
)

// Config содержит конфигурацию повторов для записи во внешние системы
// (SQL, Kafka, RabbitMQ, S3)
type Config struct {
	// Enabled - включить retry механизм
	Enabled bool `yaml:"enabled"`

	// MaxAttempts - максимальное количество попыток (включая первую)
	// 0 = бесконечные попытки (не рекомендуется)
	MaxAttempts int `yaml:"max_attempts"`

	// InitialDelay - начальная задержка перед первым retry
	InitialDelay time.Duration `yaml:"initial_delay"`

	// MaxDelay - максимальная задержка между попытками
	MaxDelay time.Duration `yaml:"max_delay"`

	// BackoffStrategy - стратегия увеличения задержки
	BackoffStrategy BackoffStrategy `yaml:"backoff"`

	// BackoffMultiplier - множитель для exponential backoff (обычно 2.0)
	BackoffMultiplier float64 `yaml:"multiplier"`

	// Jitter - добавлять случайность к задержке (0.0 - 1.0)
	Jitter float64 `yaml:"jitter"`

	// RetryableErrors - подстроки ошибок, для которых нужен retry.
	// Пустой список = retry для всех ошибок, кроме помеченных Permanent.
	RetryableErrors []string `yaml:"retryable_errors"`

	// OnRetry - callback функция, вызываемая перед каждым retry
	OnRetry func(attempt int, err error, delay time.Duration) `yaml:"-"`

	// DLQ - куда складывать записи, исчерпавшие попытки
	DLQ DLQConfig `yaml:"dlq"`
}

// DLQConfig содержит конфигурацию Dead Letter Queue
type DLQConfig struct {
	// Enabled - включить DLQ
	Enabled bool `yaml:"enabled"`

	// FilePath - JSON Lines файл, одна отказавшая запись на строку
	FilePath string `yaml:"file"`

	// MaxSize - сколько записей держать в памяти для статистики
	MaxSize int `yaml:"max_size"`

	// RetentionPeriod - как долго хранить записи при компактификации файла
	RetentionPeriod time.Duration `yaml:"retention"`
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil // Если не включено, валидация не нужна
	}

	if c.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts must be >= 0, got %d", c.MaxAttempts)
	}

	if c.InitialDelay < 0 {
		return fmt.Errorf("initial_delay must be >= 0")
	}

	if c.MaxDelay < c.InitialDelay {
		return fmt.Errorf("max_delay (%v) must be >= initial_delay (%v)", c.MaxDelay, c.InitialDelay)
	}

	switch c.BackoffStrategy {
	case BackoffConstant, BackoffLinear, BackoffExponential:
	default:
		return fmt.Errorf("invalid backoff strategy: %s", c.BackoffStrategy)
	}

	if c.BackoffMultiplier <= 0 {
		c.BackoffMultiplier = 2.0 // Default
	}

	if c.Jitter < 0 || c.Jitter > 1.0 {
		return fmt.Errorf("jitter must be between 0.0 and 1.0, got %f", c.Jitter)
	}

	if c.DLQ.Enabled && c.DLQ.FilePath == "" {
		return fmt.Errorf("dlq.file is required when dlq is enabled")
	}

	return nil
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() Config {
	return Config{
		Enabled:           false,
		MaxAttempts:       3,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          10 * time.Second,
		BackoffStrategy:   BackoffExponential,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
		RetryableErrors:   []string{},
		DLQ: DLQConfig{
			Enabled:         false,
			FilePath:        "./dlq.jsonl",
			MaxSize:         10000,
			RetentionPeriod: 7 * 24 * time.Hour,
		},
	}
}

// EnableRetry создает конфигурацию с включенным retry
func EnableRetry(maxAttempts int, initialDelay time.Duration) Config {
	config := DefaultConfig()
	config.Enabled = true
	config.MaxAttempts = maxAttempts
	config.InitialDelay = initialDelay
	if config.MaxDelay < initialDelay {
		config.MaxDelay = initialDelay
	}
	return config
}

// EnableRetryWithDLQ создает конфигурацию с retry и DLQ
func EnableRetryWithDLQ(maxAttempts int, initialDelay time.Duration, dlqPath string) Config {
	config := EnableRetry(maxAttempts, initialDelay)
	config.DLQ.Enabled = true
	config.DLQ.FilePath = dlqPath
	return config
}
