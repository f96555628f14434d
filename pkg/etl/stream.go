package etl

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ruslano69/csvnorm/pkg/core/csvstream"
	"github.com/ruslano69/csvnorm/pkg/processors"
	"github.com/ruslano69/csvnorm/pkg/sinks"
)

// StreamOptions - настройки ProcessStream
type StreamOptions struct {
	Parser     csvstream.ParserOptions
	Serializer csvstream.SerializerOptions

	// Chain - цепочка процессоров (nil = нормализатор по умолчанию)
	Chain *processors.Chain

	// ChunkSize - байт за одно чтение r (0 = DefaultChunkSize)
	ChunkSize int
}

// ProcessStream нормализует текст из r и пишет результат в w.
// w не закрывается. Каждый вызов получает собственное состояние парсера,
// поэтому вызовы могут выполняться параллельно.
func ProcessStream(ctx context.Context, r io.Reader, w io.Writer, opts StreamOptions) (ProcessorStats, error) {
	stats := ProcessorStats{StartTime: time.Now(), Source: "stream", Target: "stream"}
	if r == nil {
		return stats, fmt.Errorf("failed to process CSV stream: %w", ErrNoInput)
	}
	if w == nil {
		return stats, fmt.Errorf("failed to process CSV stream: output writer is nil")
	}

	chain := opts.Chain
	if chain == nil {
		chain = processors.NewChain(processors.NewDefaultFieldNormalizer())
	}

	sink, err := sinks.NewTextSink(writerCloser{w}, "stream", sinks.Config{
		Separator: opts.Serializer.Separator,
		Newline:   opts.Serializer.Newline,
	})
	if err != nil {
		return stats, fmt.Errorf("failed to process CSV stream: %w", err)
	}

	s := &streamer{
		parser:    csvstream.NewParser(opts.Parser),
		chain:     chain,
		sink:      sink,
		chunkSize: opts.ChunkSize,
	}
	runErr := s.run(ctx, r)
	if cerr := sink.Close(ctx); cerr != nil && runErr == nil {
		runErr = fmt.Errorf("failed to close output: %w", cerr)
	}

	st := sink.Stats()
	stats.RecordsRead = s.read
	stats.RecordsWritten = st.Records
	stats.BytesWritten = st.Bytes
	stats.Checksum = st.Checksum
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	if runErr != nil {
		return stats, fmt.Errorf("failed to process CSV stream: %w", runErr)
	}
	return stats, nil
}

// ProcessFile нормализует файл in в файл out с настройками по умолчанию.
// out == "-" пишет в stdout; файлы .zst распаковываются.
func ProcessFile(ctx context.Context, in, out string) (ProcessorStats, error) {
	if in == "" {
		return ProcessorStats{}, fmt.Errorf("failed to process CSV stream: %w", ErrNoInput)
	}

	cfg := &PipelineConfig{
		Name:   "csvnorm",
		Source: SourceConfig{Type: "file", Path: in},
		Output: sinks.Config{Type: "text", Path: out},
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return ProcessorStats{}, fmt.Errorf("failed to process CSV stream: %w", err)
	}

	p := NewProcessor(cfg, Options{})
	err := p.Execute(ctx)
	return p.GetStats(), err
}

// writerCloser не закрывает writer вызывающего
type writerCloser struct {
	io.Writer
}

func (writerCloser) Close() error { return nil }
