package etl

import (
	"fmt"

	"golang.org/x/text/language"

	"github.com/ruslano69/csvnorm/pkg/processors"
)

// BuildChain собирает цепочку процессоров: нормализатор по умолчанию,
// затем процессоры из файла rules, затем заданные в конфигурации.
func BuildChain(cfg TransformConfig) (*processors.Chain, error) {
	chain := processors.NewChain()

	if !cfg.SkipDefaults {
		normalizer := processors.NewDefaultFieldNormalizer()
		if cfg.Language != "" {
			tag, err := language.Parse(cfg.Language)
			if err != nil {
				return nil, fmt.Errorf("invalid language '%s': %w", cfg.Language, err)
			}
			normalizer = normalizer.WithLanguage(tag)
		}
		chain.Add(normalizer)
	}

	configs := make([]processors.Config, 0, len(cfg.Processors))
	if cfg.Rules != "" {
		rules, err := processors.LoadChainConfig(cfg.Rules)
		if err != nil {
			return nil, err
		}
		configs = append(configs, rules.Processors...)
	}
	configs = append(configs, cfg.Processors...)

	for i, pc := range configs {
		p, err := processors.CreateProcessor(pc)
		if err != nil {
			return nil, fmt.Errorf("failed to create processor %d: %w", i, err)
		}
		chain.Add(p)
	}

	return chain, nil
}
