package resultlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix - префикс всех ключей и каналов
const KeyPrefix = "csvnorm:pipeline:"

// Config определяет параметры публикации результата прогона
type Config struct {
	Type     string `yaml:"type"`    // redis (пусто = выключено)
	Address  string `yaml:"address"` // host:port
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Name     string `yaml:"name"` // Имя в ключе; по умолчанию имя пайплайна
	TTL      int    `yaml:"ttl"`  // Секунды; 0 = без истечения
}

// Enabled сообщает, настроена ли публикация
func (c Config) Enabled() bool {
	return c.Type != ""
}

// Validate проверяет конфигурацию
func (c Config) Validate() error {
	switch c.Type {
	case "":
		return nil
	case "redis":
		if c.Address == "" {
			return fmt.Errorf("result_log.address is required for redis")
		}
		if c.TTL < 0 {
			return fmt.Errorf("result_log.ttl must not be negative")
		}
		return nil
	default:
		return fmt.Errorf("unsupported result_log type: %s (supported: redis)", c.Type)
	}
}

// PipelineResult представляет состояние пайплайна, публикуемое в Redis
// после завершения прогона (успешного или с ошибкой).
//
// Redis-ключи:
//
//	SET  csvnorm:pipeline:<name>:state  <JSON>  EX <ttl>  (для опроса)
//	PUB  csvnorm:pipeline:<name>                          (для подписки)
type PipelineResult struct {
	PipelineName   string    `json:"pipeline_name"`
	ResultName     string    `json:"result_name"`
	Status         string    `json:"status"` // "success" | "failed"
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	DurationMs     int64     `json:"duration_ms"`
	RecordsRead    int64     `json:"records_read"`
	RecordsWritten int64     `json:"records_written"`
	RecordsFailed  int64     `json:"records_failed"`
	Checksum       string    `json:"checksum,omitempty"`
	Error          *string   `json:"error,omitempty"`
}

// NewResult собирает результат. execErr == nil означает успешный прогон.
func NewResult(pipeline string, started, finished time.Time, read, written, failed int64, execErr error) PipelineResult {
	result := PipelineResult{
		PipelineName:   pipeline,
		ResultName:     pipeline,
		Status:         "success",
		StartedAt:      started,
		FinishedAt:     finished,
		DurationMs:     finished.Sub(started).Milliseconds(),
		RecordsRead:    read,
		RecordsWritten: written,
		RecordsFailed:  failed,
	}
	if execErr != nil {
		result.Status = "failed"
		errStr := execErr.Error()
		result.Error = &errStr
	}
	return result
}

// StateKey возвращает ключ состояния
func StateKey(name string) string {
	return KeyPrefix + name + ":state"
}

// EventChannel возвращает канал pub/sub
func EventChannel(name string) string {
	return KeyPrefix + name
}

// RedisPublisher публикует результат прогона в Redis
type RedisPublisher struct {
	client *redis.Client
	config Config
}

// NewRedisPublisher создает новый Redis publisher на основе конфигурации
func NewRedisPublisher(config Config) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
	})
	return &RedisPublisher{client: client, config: config}
}

// Publish публикует результат: SET с TTL и PUBLISH с тем же JSON.
// Вызывается независимо от исхода прогона.
func (p *RedisPublisher) Publish(ctx context.Context, result PipelineResult) error {
	name := p.config.Name
	if name == "" {
		name = result.PipelineName
	}
	result.ResultName = name

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	ttl := time.Duration(p.config.TTL) * time.Second

	// Обе команды уходят одним round trip
	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, StateKey(name), payload, ttl)
		pipe.Publish(ctx, EventChannel(name), payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to publish pipeline state to redis: %w", err)
	}

	return nil
}

// Last читает последнее опубликованное состояние
func (p *RedisPublisher) Last(ctx context.Context, name string) (*PipelineResult, error) {
	payload, err := p.client.Get(ctx, StateKey(name)).Bytes()
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline state: %w", err)
	}

	var result PipelineResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("failed to decode pipeline state: %w", err)
	}
	return &result, nil
}

// Close закрывает соединение с Redis
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
