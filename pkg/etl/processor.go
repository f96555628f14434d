package etl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ruslano69/csvnorm/pkg/adapters/base"
	"github.com/ruslano69/csvnorm/pkg/audit"
	"github.com/ruslano69/csvnorm/pkg/brokers"
	"github.com/ruslano69/csvnorm/pkg/core/csvstream"
	"github.com/ruslano69/csvnorm/pkg/core/record"
	"github.com/ruslano69/csvnorm/pkg/objectstore"
	"github.com/ruslano69/csvnorm/pkg/processors"
	"github.com/ruslano69/csvnorm/pkg/resultlog"
	"github.com/ruslano69/csvnorm/pkg/retry"
	"github.com/ruslano69/csvnorm/pkg/security"
	"github.com/ruslano69/csvnorm/pkg/sinks"
)

// ProcessorStats представляет статистику выполнения пайплайна
type ProcessorStats struct {
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	RecordsRead    int64  // Записей, выданных парсером
	RecordsWritten int64  // Записей, принятых получателем
	RecordsFailed  int64  // Записей, отвергнутых получателем (ушли в DLQ)
	BytesWritten   int64  // Байт в назначении (text, xlsx, брокеры)
	Checksum       string // xxh3 выходного потока (text, s3)
	Source         string
	Target         string
	Errors         []error // Ошибки аудита и публикации результата; на исход прогона не влияют
}

// Options - внешние зависимости пайплайна. Пустые поля создаются из конфигурации.
type Options struct {
	Stdin     io.Reader
	Stdout    io.Writer
	S3Client  objectstore.Client
	Publisher brokers.Publisher

	// Audit - готовый журнал аудита (nil = открыть по секции audit)
	Audit audit.Logger

	// OnRetry вызывается перед повтором записи в SQL или брокер
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Processor представляет главный процессор пайплайна:
// источник → Parser → цепочка процессоров → sink.
// Один Processor - один прогон; состояние парсера создается заново в Execute.
type Processor struct {
	config *PipelineConfig
	opts   Options
	stats  ProcessorStats
	sample *record.Record
}

// NewProcessor создает новый процессор
func NewProcessor(config *PipelineConfig, opts Options) *Processor {
	return &Processor{
		config: config,
		opts:   opts,
	}
}

// Execute выполняет весь пайплайн. Sink закрывается при любом исходе;
// частично записанный результат не откатывается.
func (p *Processor) Execute(ctx context.Context) error {
	p.stats = ProcessorStats{StartTime: time.Now()}

	logger, closeLogger, err := p.openAudit(ctx)
	if err != nil {
		return fmt.Errorf("failed to process CSV stream: failed to open audit log: %w", err)
	}
	defer closeLogger()

	err = p.execute(ctx)

	p.stats.EndTime = time.Now()
	p.stats.Duration = p.stats.EndTime.Sub(p.stats.StartTime)

	if err != nil {
		err = fmt.Errorf("failed to process CSV stream: %w", err)
	}

	// Отчет отправляется и после отмены контекста
	report := context.WithoutCancel(ctx)
	p.writeAudit(report, logger, err)
	p.publishResult(report, err)

	return err
}

// execute - этапы прогона без учета отчетности
func (p *Processor) execute(ctx context.Context) (err error) {
	// 1. Цепочка процессоров
	chain, err := BuildChain(p.config.Transform)
	if err != nil {
		return fmt.Errorf("failed to build transform chain: %w", err)
	}

	// 2. Повторы и DLQ для записи во внешние системы
	retryCfg := p.config.ErrorHandling
	retryCfg.OnRetry = p.opts.OnRetry
	retryer, err := retry.NewRetryer(retryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize retry: %w", err)
	}
	defer retryer.Close()

	// 3. Источник
	loader := NewLoader(p.config.Source, p.opts.Stdin, p.opts.S3Client)
	p.stats.Source = loader.Describe()
	src, err := loader.Open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer src.Close()

	// 4. Получатель
	exporter := NewExporter(p.config.Output, sinks.Options{
		Stdout:    p.opts.Stdout,
		Retryer:   retryer,
		S3Client:  p.opts.S3Client,
		Publisher: p.opts.Publisher,
	})
	sink, err := exporter.Open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		var cerr error
		if err != nil {
			cerr = sinks.Abort(ctx, sink, err)
		} else {
			cerr = sink.Close(ctx)
		}
		if cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close output: %w", cerr))
		}
		p.collectSinkStats(sink)
	}()

	// 5. Поток
	s := &streamer{
		parser:    csvstream.NewParser(p.config.Parser.ParserOptions()),
		chain:     chain,
		sink:      sink,
		chunkSize: p.config.Performance.ChunkSize,
		onFirst: func(rec *record.Record) {
			p.sample = rec.Clone()
		},
	}
	err = s.run(ctx, src)
	p.stats.RecordsRead = s.read
	return err
}

// collectSinkStats переносит счетчики sink в статистику прогона
func (p *Processor) collectSinkStats(sink sinks.Sink) {
	st := sink.Stats()
	p.stats.RecordsWritten = st.Records
	p.stats.RecordsFailed = failedCount(sink)
	p.stats.BytesWritten = st.Bytes
	p.stats.Checksum = st.Checksum
	p.stats.Target = st.Target
}

// openAudit открывает журнал аудита по конфигурации
func (p *Processor) openAudit(ctx context.Context) (audit.Logger, func(), error) {
	if p.opts.Audit != nil {
		return p.opts.Audit, func() {}, nil
	}

	logger, err := audit.Open(ctx, p.config.Audit, audit.LoggerConfig{
		DefaultUser:     security.GetCurrentUser(),
		DefaultPipeline: p.config.Name,
		OnError: func(err error) {
			p.stats.Errors = append(p.stats.Errors, err)
		},
	}, auditPlaceholder(p.config.Audit))
	if err != nil {
		return nil, nil, err
	}

	return logger, func() {
		if err := logger.Close(); err != nil {
			p.stats.Errors = append(p.stats.Errors, fmt.Errorf("failed to close audit log: %w", err))
		}
	}, nil
}

// auditPlaceholder подбирает плейсхолдеры под драйвер аудита
func auditPlaceholder(cfg audit.Config) func(int) string {
	if cfg.SQL == nil {
		return nil
	}
	switch cfg.SQL.Driver {
	case "pgx", "postgres":
		return base.DollarPlaceholder
	case "sqlserver", "mssql":
		return base.AtPPlaceholder
	default:
		return base.QuestionPlaceholder
	}
}

// writeAudit пишет одну запись аудита о прогоне
func (p *Processor) writeAudit(ctx context.Context, logger audit.Logger, execErr error) {
	entry := audit.NewEntry(audit.OpRun, audit.StatusSuccess).
		WithPipeline(p.config.Name).
		WithSource(p.stats.Source).
		WithTarget(p.stats.Target).
		WithCounts(p.stats.RecordsRead, p.stats.RecordsWritten, p.stats.RecordsFailed).
		WithBytes(p.stats.BytesWritten).
		WithDuration(p.stats.Duration).
		WithChecksum(p.stats.Checksum).
		WithMetadata("output_type", p.config.Output.Type).
		WithError(execErr)
	if p.sample != nil {
		entry.WithSample(p.sample)
	}

	if err := logger.Log(ctx, entry); err != nil {
		p.stats.Errors = append(p.stats.Errors, fmt.Errorf("failed to write audit entry: %w", err))
	}
}

// publishResult публикует итог прогона в Redis (если настроено)
func (p *Processor) publishResult(ctx context.Context, execErr error) {
	if !p.config.ResultLog.Enabled() {
		return
	}

	publisher := resultlog.NewRedisPublisher(p.config.ResultLog)
	defer publisher.Close()

	result := resultlog.NewResult(p.config.Name, p.stats.StartTime, p.stats.EndTime,
		p.stats.RecordsRead, p.stats.RecordsWritten, p.stats.RecordsFailed, execErr)
	result.Checksum = p.stats.Checksum

	if err := publisher.Publish(ctx, result); err != nil {
		p.stats.Errors = append(p.stats.Errors, err)
	}
}

// GetStats возвращает статистику выполнения
func (p *Processor) GetStats() ProcessorStats {
	return p.stats
}

// Validate проверяет конфигурацию процессора перед выполнением
func (p *Processor) Validate() error {
	if p.config == nil {
		return fmt.Errorf("config is nil")
	}

	if err := p.config.Validate(); err != nil {
		return err
	}

	if _, err := BuildChain(p.config.Transform); err != nil {
		return fmt.Errorf("transform validation failed: %w", err)
	}

	return nil
}

// GetConfig возвращает конфигурацию процессора
func (p *Processor) GetConfig() *PipelineConfig {
	return p.config
}

// streamer - цикл одного прогона: чтение чанков, разбор, обработка, запись.
// Все этапы вызываются синхронно: медленный sink тормозит чтение источника.
type streamer struct {
	parser    *csvstream.Parser
	chain     *processors.Chain
	sink      sinks.Sink
	chunkSize int
	limit     int64 // 0 = без ограничения
	onFirst   func(rec *record.Record)

	read    int64
	emitErr error
}

// run прогоняет источник до конца и сбрасывает хвост парсера
func (s *streamer) run(ctx context.Context, r io.Reader) error {
	var state csvstream.ParserState

	emit := func(rec *record.Record) error {
		s.read++
		out, err := s.chain.Process(ctx, rec)
		if err != nil {
			s.emitErr = fmt.Errorf("failed to transform record %d: %w", s.read, err)
			return s.emitErr
		}
		if s.read == 1 && s.onFirst != nil {
			s.onFirst(out)
		}
		if err := s.sink.Write(ctx, out); err != nil {
			s.emitErr = fmt.Errorf("failed to write record %d: %w", s.read, err)
			return s.emitErr
		}
		if s.limit > 0 && s.read >= s.limit {
			return errLimitReached
		}
		return nil
	}

	chunkSize := s.chunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	buf := make([]byte, chunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline cancelled: %w", err)
		}

		n, err := r.Read(buf)
		if n > 0 {
			if perr := s.parser.Push(&state, buf[:n], emit); perr != nil {
				if errors.Is(perr, errLimitReached) {
					return nil
				}
				return s.stageError(perr)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read source: %w", err)
		}
	}

	if err := s.parser.Flush(&state, emit); err != nil && !errors.Is(err, errLimitReached) {
		return s.stageError(err)
	}
	return nil
}

// stageError отделяет ошибки разбора от ошибок обработки и записи
func (s *streamer) stageError(err error) error {
	if s.emitErr != nil {
		return err
	}
	return fmt.Errorf("failed to parse input: %w", err)
}
