package etl

import (
	"context"
	"fmt"

	"github.com/ruslano69/csvnorm/pkg/sinks"
)

// Exporter отвечает за создание получателя результатов
type Exporter struct {
	config  sinks.Config
	options sinks.Options
}

// NewExporter создает новый экспортер
func NewExporter(config sinks.Config, options sinks.Options) *Exporter {
	return &Exporter{config: config, options: options}
}

// Open создает sink по секции output
func (e *Exporter) Open(ctx context.Context) (sinks.Sink, error) {
	sink, err := sinks.New(ctx, e.config, e.options)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s output: %w", e.config.Type, err)
	}
	return sink, nil
}

// ValidateConfig проверяет секцию output без открытия соединений
func (e *Exporter) ValidateConfig() error {
	return e.config.Validate()
}

// failedCount - записи, отвергнутые получателем (SQL, брокеры)
func failedCount(sink sinks.Sink) int64 {
	if f, ok := sink.(interface{ Failed() int64 }); ok {
		return f.Failed()
	}
	return 0
}
