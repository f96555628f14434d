// Package objectstore читает и пишет объекты S3 (и совместимых хранилищ:
// MinIO, Ceph, Yandex Object Storage) потоково, без временных файлов.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Config - параметры подключения к S3
type Config struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"` // Пусто = AWS; для MinIO http://localhost:9000
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	UsePathStyle    bool   `yaml:"use_path_style"` // MinIO требует path-style
}

// Location - bucket и ключ объекта
type Location struct {
	Bucket string
	Key    string
}

// String возвращает s3://bucket/key
func (l Location) String() string {
	return "s3://" + l.Bucket + "/" + l.Key
}

// ParseURL разбирает s3://bucket/path/to/key
func ParseURL(raw string) (Location, error) {
	rest, ok := strings.CutPrefix(raw, "s3://")
	if !ok {
		return Location{}, fmt.Errorf("invalid s3 url %q: expected s3://bucket/key", raw)
	}
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return Location{}, fmt.Errorf("invalid s3 url %q: bucket and key are required", raw)
	}
	return Location{Bucket: bucket, Key: key}, nil
}

// IsURL сообщает, является ли путь s3:// ссылкой
func IsURL(path string) bool {
	return strings.HasPrefix(path, "s3://")
}

// GetObjectAPI - часть клиента S3, нужная для чтения
type GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Client объединяет операции чтения и multipart загрузки
type Client interface {
	GetObjectAPI
	manager.UploadAPIClient
}

// NewClient создает клиента S3. Без явных ключей используется цепочка
// по умолчанию (переменные окружения, ~/.aws, IAM роль).
func NewClient(ctx context.Context, cfg Config) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// Open открывает объект на чтение. Вызывающий закрывает reader.
func Open(ctx context.Context, client GetObjectAPI, loc Location) (io.ReadCloser, error) {
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", loc, err)
	}
	return out.Body, nil
}

// UploadWriter - io.WriteCloser, данные которого уходят в S3 через
// manager.Uploader по мере записи (multipart для больших объектов).
type UploadWriter struct {
	pw   *io.PipeWriter
	done chan error
	loc  Location
}

// NewUploadWriter запускает загрузку в фоне. Close дожидается ее завершения.
func NewUploadWriter(ctx context.Context, client manager.UploadAPIClient, loc Location, contentType string) *UploadWriter {
	pr, pw := io.Pipe()
	w := &UploadWriter{
		pw:   pw,
		done: make(chan error, 1),
		loc:  loc,
	}

	uploader := manager.NewUploader(client)
	go func() {
		_, err := uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(loc.Bucket),
			Key:         aws.String(loc.Key),
			Body:        pr,
			ContentType: aws.String(contentType),
		})
		// Разблокировать писателя, если загрузка упала раньше конца данных
		pr.CloseWithError(err)
		w.done <- err
	}()

	return w
}

// Write передает данные загрузчику
func (w *UploadWriter) Write(p []byte) (int, error) {
	n, err := w.pw.Write(p)
	if err != nil {
		return n, fmt.Errorf("failed to upload %s: %w", w.loc, err)
	}
	return n, nil
}

// Close завершает поток и ждет подтверждения загрузки
func (w *UploadWriter) Close() error {
	w.pw.Close()
	if err := <-w.done; err != nil {
		return fmt.Errorf("failed to upload %s: %w", w.loc, err)
	}
	return nil
}

// Abort прерывает загрузку: объект не создается, незавершенный multipart
// отменяется загрузчиком. Ошибка загрузки, вызванная самой отменой, не возвращается.
func (w *UploadWriter) Abort(cause error) error {
	if cause == nil {
		cause = errUploadAborted
	}
	w.pw.CloseWithError(cause)
	<-w.done
	return nil
}

var errUploadAborted = errors.New("upload aborted")
