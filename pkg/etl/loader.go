package etl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ruslano69/csvnorm/pkg/objectstore"
	"github.com/ruslano69/csvnorm/pkg/processors"
)

// ErrNoInput - источник не задан
var ErrNoInput = errors.New("no input source")

// Loader открывает источник пайплайна как поток байт
type Loader struct {
	config   SourceConfig
	stdin    io.Reader
	s3Client objectstore.GetObjectAPI
}

// NewLoader создает загрузчик. stdin и s3Client могут быть nil:
// тогда используются os.Stdin и клиент из config.S3.
func NewLoader(config SourceConfig, stdin io.Reader, s3Client objectstore.GetObjectAPI) *Loader {
	if stdin == nil {
		stdin = os.Stdin
	}
	return &Loader{config: config, stdin: stdin, s3Client: s3Client}
}

// Describe возвращает человекочитаемое имя источника (для аудита и логов)
func (l *Loader) Describe() string {
	if l.config.Type == "stdin" {
		return "stdin"
	}
	return l.config.Path
}

// Open открывает источник. Сжатый zstd поток распаковывается прозрачно.
func (l *Loader) Open(ctx context.Context) (io.ReadCloser, error) {
	raw, err := l.openRaw(ctx)
	if err != nil {
		return nil, err
	}

	compressed, br, err := l.detectCompression(raw)
	if err != nil {
		raw.Close()
		return nil, err
	}
	if !compressed {
		return readCloser{Reader: br, Closer: raw}, nil
	}

	zr, err := processors.NewDecompressReader(br)
	if err != nil {
		raw.Close()
		return nil, err
	}
	return readCloser{Reader: zr, Closer: closeBoth{zr, raw}}, nil
}

// openRaw открывает файл, stdin или объект S3
func (l *Loader) openRaw(ctx context.Context) (io.ReadCloser, error) {
	switch l.config.Type {
	case "stdin":
		return io.NopCloser(l.stdin), nil

	case "s3":
		loc, err := objectstore.ParseURL(l.config.Path)
		if err != nil {
			return nil, err
		}
		client := l.s3Client
		if client == nil {
			c, err := objectstore.NewClient(ctx, l.config.S3)
			if err != nil {
				return nil, err
			}
			client = c
		}
		return objectstore.Open(ctx, client, loc)

	case "file":
		if l.config.Path == "" {
			return nil, ErrNoInput
		}
		f, err := os.Open(l.config.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open input file: %w", err)
		}
		return f, nil

	default:
		return nil, fmt.Errorf("unsupported source type: %s", l.config.Type)
	}
}

// detectCompression решает, нужно ли распаковывать поток.
// Без явной настройки решают расширение .zst и магические байты zstd.
func (l *Loader) detectCompression(r io.Reader) (bool, *bufio.Reader, error) {
	br := bufio.NewReader(r)

	switch l.config.Compression {
	case "zstd":
		return true, br, nil
	case "none":
		return false, br, nil
	}

	if processors.IsCompressedPath(l.config.Path) {
		return true, br, nil
	}

	head, err := br.Peek(4)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return false, nil, fmt.Errorf("failed to read input: %w", err)
	}
	return processors.HasZstdMagic(head), br, nil
}

type readCloser struct {
	io.Reader
	io.Closer
}

// closeBoth закрывает распаковщик и исходный поток
type closeBoth struct {
	inner io.Closer
	outer io.Closer
}

func (c closeBoth) Close() error {
	return errors.Join(c.inner.Close(), c.outer.Close())
}
