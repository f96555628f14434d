package processors

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ruslano69/csvnorm/pkg/core/record"
)

// MaskPattern определяет тип маскирования
type MaskPattern string

const (
	// MaskPartial маскирует среднюю часть (email: j***@example.com)
	MaskPartial MaskPattern = "partial"
	// MaskMiddle маскирует середину (phone: (555) 1XX-4567)
	MaskMiddle MaskPattern = "middle"
	// MaskStars заменяет все на звездочки (**** *****)
	MaskStars MaskPattern = "stars"
	// MaskFirst2Last2 показывает только первые 2 и последние 2 символа (1234 5678 → 12** **78)
	MaskFirst2Last2 MaskPattern = "first2_last2"
)

// FieldMasker маскирует чувствительные данные в указанных полях.
// Ставится после нормализатора, когда результат уходит во внешние системы.
type FieldMasker struct {
	name         string
	fieldsToMask map[string]MaskPattern // field_name -> mask_pattern

	// Предкомпилированные регулярные выражения
	emailRegex *regexp.Regexp
	digitRegex *regexp.Regexp
}

// NewFieldMasker создает новый маскировщик полей
func NewFieldMasker(fieldsToMask map[string]MaskPattern) *FieldMasker {
	return &FieldMasker{
		name:         "field_masker",
		fieldsToMask: fieldsToMask,
		emailRegex:   regexp.MustCompile(`^([a-zA-Z0-9._%+-]+)@([a-zA-Z0-9.-]+\.[a-zA-Z]{2,})$`),
		digitRegex:   regexp.MustCompile(`\D`),
	}
}

// Name возвращает имя процессора
func (m *FieldMasker) Name() string {
	return m.name
}

// Process реализует интерфейс Processor
func (m *FieldMasker) Process(ctx context.Context, rec *record.Record) (*record.Record, error) {
	for field, pattern := range m.fieldsToMask {
		value, ok := rec.Get(field)
		if !ok || value == "" {
			continue
		}
		rec.Set(field, m.maskValue(value, pattern))
	}

	return rec, nil
}

// maskValue применяет маскирование к значению
func (m *FieldMasker) maskValue(value string, pattern MaskPattern) string {
	switch pattern {
	case MaskPartial:
		return m.maskPartial(value)
	case MaskMiddle:
		return m.maskMiddle(value)
	case MaskStars:
		return m.maskStars(value)
	case MaskFirst2Last2:
		return m.maskFirst2Last2(value)
	default:
		return m.maskStars(value)
	}
}

// maskPartial маскирует среднюю часть значения
// Примеры:
//   - Email: john.doe@example.com → j***@example.com
//   - Text: "Hello World" → "H***d"
func (m *FieldMasker) maskPartial(value string) string {
	if matches := m.emailRegex.FindStringSubmatch(value); len(matches) == 3 {
		return matches[1][:1] + "***@" + matches[2]
	}

	runes := []rune(value)
	if len(runes) <= 2 {
		return "***"
	}

	return string(runes[0]) + "***" + string(runes[len(runes)-1])
}

// maskMiddle маскирует средние цифры, оставляя начало и конец
// Примеры:
//   - Phone: (555) 123-4567 → (555) 1XX-4567
//   - Card: 1234 5678 9012 3456 → 1234 XXXX XXXX 3456
func (m *FieldMasker) maskMiddle(value string) string {
	digitsOnly := m.digitRegex.ReplaceAllString(value, "")

	if len(digitsOnly) <= 4 {
		return strings.Repeat("X", len([]rune(value)))
	}

	visibleDigits := 4
	if len(digitsOnly) < 8 {
		visibleDigits = len(digitsOnly) / 2
	}

	runes := []rune(value)
	digitsSeen := 0
	for i, r := range runes {
		if r >= '0' && r <= '9' {
			digitsSeen++
			if digitsSeen > visibleDigits && digitsSeen <= len(digitsOnly)-visibleDigits {
				runes[i] = 'X'
			}
		}
	}

	return string(runes)
}

// maskStars заменяет все символы на звездочки, сохраняя разделители
// Примеры:
//   - "MyPassword123" → "*************"
//   - "123-45-6789" → "***-**-****"
func (m *FieldMasker) maskStars(value string) string {
	runes := []rune(value)
	for i, r := range runes {
		if r != ' ' && r != '-' && r != '(' && r != ')' && r != '.' && r != '/' {
			runes[i] = '*'
		}
	}
	return string(runes)
}

// maskFirst2Last2 показывает только первые 2 и последние 2 символа
// Примеры:
//   - "1234 567890" → "12** ****90"
//   - "40817810123456789012" → "40**************12"
func (m *FieldMasker) maskFirst2Last2(value string) string {
	cleaned := []rune(strings.ReplaceAll(value, " ", ""))

	if len(cleaned) <= 4 {
		return strings.Repeat("*", len([]rune(value)))
	}

	masked := make([]rune, len(cleaned))
	for i, r := range cleaned {
		if i < 2 || i >= len(cleaned)-2 {
			masked[i] = r
		} else {
			masked[i] = '*'
		}
	}

	// Восстанавливаем пробелы в исходных позициях
	result := make([]rune, 0, len(value))
	idx := 0
	for _, r := range value {
		if r == ' ' {
			result = append(result, ' ')
			continue
		}
		result = append(result, masked[idx])
		idx++
	}

	return string(result)
}

// NewFieldMaskerFromConfig создает FieldMasker из конфигурации
func NewFieldMaskerFromConfig(params map[string]any) (*FieldMasker, error) {
	fieldsToMask := make(map[string]MaskPattern)

	fields, ok := params["fields"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("missing or invalid 'fields' parameter")
	}

	for fieldName, patternStr := range fields {
		pattern := MaskPattern(fmt.Sprintf("%v", patternStr))
		switch pattern {
		case MaskPartial, MaskMiddle, MaskStars, MaskFirst2Last2:
			fieldsToMask[fieldName] = pattern
		default:
			return nil, fmt.Errorf("invalid mask pattern '%s' for field '%s'", pattern, fieldName)
		}
	}

	return NewFieldMasker(fieldsToMask), nil
}
