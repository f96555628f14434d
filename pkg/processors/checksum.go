package processors

import (
	"encoding/hex"
	"io"

	"github.com/zeebo/xxh3"
)

// ChecksumWriter считает xxh3 (64-bit) хеш всех байт, прошедших через него.
// Если задан нижележащий writer, данные передаются ему без изменений.
type ChecksumWriter struct {
	w      io.Writer
	hasher *xxh3.Hasher
	n      int64
}

// NewChecksumWriter создает writer контрольной суммы. w может быть nil.
func NewChecksumWriter(w io.Writer) *ChecksumWriter {
	return &ChecksumWriter{
		w:      w,
		hasher: xxh3.New(),
	}
}

// Write передает данные дальше и добавляет записанную часть в хеш
func (c *ChecksumWriter) Write(p []byte) (int, error) {
	n := len(p)
	var err error
	if c.w != nil {
		n, err = c.w.Write(p)
	}
	// Хешируем только реально записанные байты
	_, _ = c.hasher.Write(p[:n])
	c.n += int64(n)
	return n, err
}

// Sum возвращает hex-encoded хеш (16 символов)
func (c *ChecksumWriter) Sum() string {
	return hex.EncodeToString(uint64ToBytes(c.hasher.Sum64()))
}

// BytesWritten возвращает количество байт, прошедших через writer
func (c *ChecksumWriter) BytesWritten() int64 {
	return c.n
}

// uint64ToBytes конвертирует uint64 в байтовый массив (big-endian).
func uint64ToBytes(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

// --- Helper Functions ---

// ComputeChecksum вычисляет xxh3 хеш данных и возвращает hex-encoded строку.
func ComputeChecksum(data []byte) string {
	return hex.EncodeToString(uint64ToBytes(xxh3.Hash(data)))
}
