package security

import (
	"os"
	"os/user"
)

// GetCurrentUser возвращает имя текущего пользователя для журнала аудита
func GetCurrentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	// Пытаемся получить из переменных окружения
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	if name := os.Getenv("USERNAME"); name != "" {
		return name
	}
	return "unknown"
}
