package security

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxIdentifierLength - максимальная длина идентификатора (ограничение PostgreSQL)
const MaxIdentifierLength = 63

var identifierRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// reservedWords - ключевые слова, которые нельзя использовать как имя таблицы или колонки без кавычек
var reservedWords = map[string]struct{}{
	// DML
	"SELECT": {}, "INSERT": {}, "UPDATE": {}, "DELETE": {}, "TRUNCATE": {}, "MERGE": {},
	// DDL
	"DROP": {}, "CREATE": {}, "ALTER": {}, "RENAME": {}, "TABLE": {}, "INDEX": {},
	// DCL
	"GRANT": {}, "REVOKE": {},
	// Выполнение
	"EXECUTE": {}, "EXEC": {}, "CALL": {},
	// SQLite специфичные команды
	"PRAGMA": {}, "ATTACH": {}, "DETACH": {},
	// Транзакции
	"BEGIN": {}, "COMMIT": {}, "ROLLBACK": {},
	// Части запросов
	"FROM": {}, "WHERE": {}, "AND": {}, "OR": {}, "NOT": {}, "NULL": {},
	"ORDER": {}, "GROUP": {}, "BY": {}, "USER": {}, "KEY": {}, "PRIMARY": {},
}

// ValidateIdentifier проверяет имя таблицы или колонки перед подстановкой в DDL/DML.
//
// Разрешены только латинские буквы, цифры и подчеркивание, первым символом
// не может быть цифра. Ключевые слова SQL запрещены.
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("identifier is empty")
	}

	if len(name) > MaxIdentifierLength {
		return fmt.Errorf("identifier '%s' is longer than %d characters", name, MaxIdentifierLength)
	}

	if !identifierRegex.MatchString(name) {
		return fmt.Errorf("identifier '%s' contains forbidden characters", name)
	}

	if IsReservedWord(name) {
		return fmt.Errorf("identifier '%s' is a reserved SQL keyword", name)
	}

	return nil
}

// IsReservedWord проверяет, является ли имя ключевым словом SQL
func IsReservedWord(name string) bool {
	_, ok := reservedWords[strings.ToUpper(name)]
	return ok
}

// SanitizeIdentifier превращает имя колонки CSV в допустимый идентификатор.
//
// Примеры:
//   - "Birth Date" → "birth_date"
//   - "e-mail" → "e_mail"
//   - "2nd phone" → "c_2nd_phone"
//   - "order" → "order_"
func SanitizeIdentifier(name string) string {
	var b strings.Builder
	lastUnderscore := false

	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore:
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	result := strings.Trim(b.String(), "_")
	if result == "" {
		result = "col"
	}
	if result[0] >= '0' && result[0] <= '9' {
		result = "c_" + result
	}
	if IsReservedWord(result) {
		result += "_"
	}
	if len(result) > MaxIdentifierLength {
		result = result[:MaxIdentifierLength]
	}

	return result
}

// SanitizeIdentifiers приводит список имен колонок к уникальным идентификаторам.
// Совпадения после очистки получают суффикс _2, _3 и т.д.; суффикс
// подбирается, пока имя не станет свободным, и укладывается в MaxIdentifierLength.
func SanitizeIdentifiers(names []string) []string {
	out := make([]string, len(names))
	used := make(map[string]struct{}, len(names))
	next := make(map[string]int, len(names))

	for i, name := range names {
		id := SanitizeIdentifier(name)
		if _, taken := used[id]; taken {
			base := id
			n := next[base]
			if n < 2 {
				n = 2
			}
			for {
				id = withSuffix(base, n)
				if _, taken := used[id]; !taken {
					break
				}
				n++
			}
			next[base] = n + 1
		}
		used[id] = struct{}{}
		out[i] = id
	}

	return out
}

func withSuffix(base string, n int) string {
	suffix := fmt.Sprintf("_%d", n)
	if len(base)+len(suffix) > MaxIdentifierLength {
		base = base[:MaxIdentifierLength-len(suffix)]
	}
	return base + suffix
}
