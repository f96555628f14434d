package processors

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ruslano69/csvnorm/pkg/core/record"
)

// Processor определяет интерфейс для обработки записей
type Processor interface {
	// Name возвращает имя процессора
	Name() string

	// Process обрабатывает одну запись.
	// Процессор может изменить значения полей на месте, набор полей не меняется.
	// Ошибка означает отказ от записи и останавливает пайплайн.
	Process(ctx context.Context, rec *record.Record) (*record.Record, error)
}

// Config содержит конфигурацию процессора
type Config struct {
	Type   string         `yaml:"type"`   // Тип процессора (field_normalizer, field_masker, etc)
	Params map[string]any `yaml:"params"` // Параметры процессора
}

// ChainConfig - файл правил: упорядоченный список процессоров
type ChainConfig struct {
	Processors []Config `yaml:"processors"`
}

// LoadChainConfig читает файл правил
func LoadChainConfig(path string) (*ChainConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var cfg ChainConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse rules YAML: %w", err)
	}

	if len(cfg.Processors) == 0 {
		return nil, fmt.Errorf("rules file %s defines no processors", path)
	}

	return &cfg, nil
}
