package processors

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// DefaultCompressionLevel - уровень zstd по умолчанию (хороший баланс скорость/размер)
const DefaultCompressionLevel = 3

// zstdMagic - первые байты zstd фрейма
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// --- Compression ---

// CompressWriter сжимает поток с помощью zstd.
// Close завершает фрейм, но не закрывает нижележащий writer.
type CompressWriter struct {
	encoder *zstd.Encoder
	written int64 // Байт до сжатия
}

// NewCompressWriter создает writer сжатия поверх w.
// level: 1 (самый быстрый) - 22 (лучшее сжатие).
func NewCompressWriter(w io.Writer, level int) (*CompressWriter, error) {
	if level <= 0 {
		level = DefaultCompressionLevel
	}

	opts := []zstd.EOption{
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
		zstd.WithEncoderConcurrency(1), // Строки пишутся последовательно
	}

	encoder, err := zstd.NewWriter(w, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}

	return &CompressWriter{encoder: encoder}, nil
}

// Write сжимает блок данных
func (c *CompressWriter) Write(p []byte) (int, error) {
	n, err := c.encoder.Write(p)
	c.written += int64(n)
	return n, err
}

// Close завершает zstd фрейм
func (c *CompressWriter) Close() error {
	return c.encoder.Close()
}

// BytesIn возвращает количество байт до сжатия
func (c *CompressWriter) BytesIn() int64 {
	return c.written
}

// --- Decompression ---

// decompressReader распаковывает поток и освобождает декодер при Close
type decompressReader struct {
	decoder *zstd.Decoder
	source  io.Closer
}

// NewDecompressReader создает reader распаковки поверх r.
// Если r реализует io.Closer, Close закрывает и его.
func NewDecompressReader(r io.Reader) (io.ReadCloser, error) {
	decoder, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	dr := &decompressReader{decoder: decoder}
	if c, ok := r.(io.Closer); ok {
		dr.source = c
	}
	return dr, nil
}

func (d *decompressReader) Read(p []byte) (int, error) {
	return d.decoder.Read(p)
}

func (d *decompressReader) Close() error {
	d.decoder.Close()
	if d.source != nil {
		return d.source.Close()
	}
	return nil
}

// IsCompressedPath определяет сжатый файл по расширению
func IsCompressedPath(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".zst")
}

// HasZstdMagic проверяет сигнатуру zstd фрейма
func HasZstdMagic(head []byte) bool {
	if len(head) < len(zstdMagic) {
		return false
	}
	for i, b := range zstdMagic {
		if head[i] != b {
			return false
		}
	}
	return true
}
