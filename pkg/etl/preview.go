package etl

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/ruslano69/csvnorm/pkg/core/csvstream"
	"github.com/ruslano69/csvnorm/pkg/core/record"
	"github.com/ruslano69/csvnorm/pkg/sinks"
)

// DefaultPreviewLimit - сколько записей показывает Preview по умолчанию
const DefaultPreviewLimit = 10

// errLimitReached останавливает поток, когда набрано нужное число записей
var errLimitReached = errors.New("record limit reached")

// Preview разбирает и нормализует начало источника и возвращает первые
// limit записей. Источник дочитывается только до нужной строки, вывод не пишется.
func Preview(ctx context.Context, cfg *PipelineConfig, stdin io.Reader, limit int) ([]*record.Record, error) {
	if limit <= 0 {
		limit = DefaultPreviewLimit
	}

	chain, err := BuildChain(cfg.Transform)
	if err != nil {
		return nil, fmt.Errorf("failed to build transform chain: %w", err)
	}

	src, err := NewLoader(cfg.Source, stdin, nil).Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open source: %w", err)
	}
	defer src.Close()

	sink := &memorySink{}
	s := &streamer{
		parser:    csvstream.NewParser(cfg.Parser.ParserOptions()),
		chain:     chain,
		sink:      sink,
		chunkSize: cfg.Performance.ChunkSize,
		limit:     int64(limit),
	}
	if err := s.run(ctx, src); err != nil {
		return nil, err
	}
	return sink.records, nil
}

// memorySink собирает записи в памяти
type memorySink struct {
	records []*record.Record
}

func (m *memorySink) Write(_ context.Context, rec *record.Record) error {
	m.records = append(m.records, rec.Clone())
	return nil
}

func (m *memorySink) Close(context.Context) error { return nil }

func (m *memorySink) Type() string { return "memory" }

func (m *memorySink) Stats() sinks.Stats {
	return sinks.Stats{Records: int64(len(m.records)), Target: "memory"}
}
