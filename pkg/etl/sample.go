package etl

import (
	"fmt"
	"os"
	"path/filepath"
)

// SampleFileName - имя файла с примером входных данных
const SampleFileName = "users.csv"

// SampleData - четыре строки пользователей со смешанным регистром и форматами.
// Последняя строка без перевода строки: она приходит в парсер хвостом потока.
const SampleData = `name,email,phone,birthdate,city
  john doe,JOHN.DOE@EXAMPLE.COM,1234567890,12/25/1990,new york
  jane smith,Jane.Smith@Gmail.Com,555-123-4567,1985-03-15,los angeles
  bob johnson,BOB@TEST.COM,invalid-phone,03/22/1992,chicago
  alice brown,alice.brown@company.org,9876543210,1988/07/04,houston`

// WriteSampleData создает dir (если нужно) и пишет в него users.csv.
// Возвращает путь к файлу.
func WriteSampleData(dir string) (string, error) {
	if dir == "" {
		dir = "data"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create sample directory: %w", err)
	}

	path := filepath.Join(dir, SampleFileName)
	if err := os.WriteFile(path, []byte(SampleData), 0o644); err != nil {
		return "", fmt.Errorf("failed to write sample data: %w", err)
	}
	return path, nil
}
