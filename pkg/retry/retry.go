package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

// RetryableFunc - функция которую можно retry
type RetryableFunc func(ctx context.Context) error

// permanentError помечает ошибку, повтор которой не имеет смысла
// (неверный идентификатор, отказ в доступе, ошибка кодирования)
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent оборачивает ошибку, чтобы Retryer не повторял попытку
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent проверяет, помечена ли ошибка как постоянная
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Retryer выполняет retry логику
type Retryer struct {
	config Config
	dlq    *DLQ
}

// NewRetryer создает новый Retryer
func NewRetryer(config Config) (*Retryer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry config: %w", err)
	}

	var dlq *DLQ
	if config.DLQ.Enabled {
		var err error
		dlq, err = NewDLQ(config.DLQ)
		if err != nil {
			return nil, fmt.Errorf("failed to create DLQ: %w", err)
		}
	}

	return &Retryer{
		config: config,
		dlq:    dlq,
	}, nil
}

// Do выполняет функцию с retry
func (r *Retryer) Do(ctx context.Context, fn RetryableFunc) error {
	return r.DoWithData(ctx, fn, nil)
}

// DoWithData выполняет функцию с retry и сохраняет data в DLQ при окончательном сбое
func (r *Retryer) DoWithData(ctx context.Context, fn RetryableFunc, data any) error {
	if !r.config.Enabled {
		// Retry отключен, просто выполняем функцию
		return fn(ctx)
	}

	attempts := 0
	for {
		attempts++

		err := fn(ctx)
		if err == nil {
			return nil
		}

		if !r.isRetryableError(err) {
			r.deadLetter(attempts, err, "non_retryable", data)
			return fmt.Errorf("non-retryable error: %w", err)
		}

		if r.config.MaxAttempts > 0 && attempts >= r.config.MaxAttempts {
			r.deadLetter(attempts, err, "max_attempts_exceeded", data)
			return fmt.Errorf("max retry attempts (%d) exceeded: %w", r.config.MaxAttempts, err)
		}

		if ctx.Err() != nil {
			r.deadLetter(attempts, err, "context_cancelled", data)
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		}

		delay := r.calculateDelay(attempts)

		if r.config.OnRetry != nil {
			r.config.OnRetry(attempts, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			r.deadLetter(attempts, err, "context_cancelled", data)
			return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		}
	}
}

// deadLetter сохраняет данные в DLQ (если включен и есть что сохранять)
func (r *Retryer) deadLetter(attempts int, err error, failureType string, data any) {
	if r.dlq == nil || data == nil {
		return
	}
	// Ошибка записи DLQ не должна скрывать исходную ошибку
	_ = r.dlq.Add(DLQEntry{
		Timestamp:   time.Now(),
		Attempts:    attempts,
		LastError:   err.Error(),
		FailureType: failureType,
		Data:        data,
	})
}

// calculateDelay вычисляет задержку для текущей попытки
func (r *Retryer) calculateDelay(attempt int) time.Duration {
	var delay time.Duration

	switch r.config.BackoffStrategy {
	case BackoffConstant:
		delay = r.config.InitialDelay

	case BackoffLinear:
		// Linear: delay = initial * attempt
		delay = r.config.InitialDelay * time.Duration(attempt)

	case BackoffExponential:
		// Exponential: delay = initial * multiplier^(attempt-1)
		multiplier := math.Pow(r.config.BackoffMultiplier, float64(attempt-1))
		delay = time.Duration(float64(r.config.InitialDelay) * multiplier)

	default:
		delay = r.config.InitialDelay
	}

	if delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}

	if r.config.Jitter > 0 {
		jitter := time.Duration(float64(delay) * r.config.Jitter * (rand.Float64()*2 - 1))
		delay += jitter
		if delay < 0 {
			delay = r.config.InitialDelay
		}
	}

	return delay
}

// isRetryableError проверяет нужен ли retry для ошибки
func (r *Retryer) isRetryableError(err error) bool {
	if err == nil || IsPermanent(err) {
		return false
	}

	// Если список retryable errors пуст, retry все ошибки
	if len(r.config.RetryableErrors) == 0 {
		return true
	}

	errStr := err.Error()
	for _, pattern := range r.config.RetryableErrors {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// GetDLQ возвращает DLQ если он включен
func (r *Retryer) GetDLQ() *DLQ {
	return r.dlq
}

// Close закрывает файл DLQ
func (r *Retryer) Close() error {
	if r.dlq != nil {
		return r.dlq.Close()
	}
	return nil
}
