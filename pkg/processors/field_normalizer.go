package processors

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/ruslano69/csvnorm/pkg/core/record"
)

// NormalizeRule определяет правило нормализации
type NormalizeRule string

const (
	// NormalizeName - каждая часть имени с заглавной буквы ("mary-jane smith" → "Mary-Jane Smith")
	NormalizeName NormalizeRule = "name"
	// NormalizePhone приводит телефон к формату (XXX) XXX-XXXX
	NormalizePhone NormalizeRule = "phone"
	// NormalizeEmail приводит email к нижнему регистру
	NormalizeEmail NormalizeRule = "email"
	// NormalizeWhitespace убирает лишние пробелы
	NormalizeWhitespace NormalizeRule = "whitespace"
	// NormalizeUpperCase приводит к верхнему регистру
	NormalizeUpperCase NormalizeRule = "uppercase"
	// NormalizeLowerCase приводит к нижнему регистру
	NormalizeLowerCase NormalizeRule = "lowercase"
	// NormalizeDate приводит дату к формату YYYY-MM-DD
	NormalizeDate NormalizeRule = "date"
	// NormalizeASCIIFold убирает диакритику ("José" → "Jose")
	NormalizeASCIIFold NormalizeRule = "ascii_fold"
)

// InvalidMarker подставляется вместо значения, которое не удалось нормализовать
const InvalidMarker = "INVALID"

// DefaultFieldRules - правила по умолчанию для типовых имен колонок
var DefaultFieldRules = map[string]NormalizeRule{
	"name":       NormalizeName,
	"first_name": NormalizeName,
	"last_name":  NormalizeName,
	"city":       NormalizeName,
	"email":      NormalizeEmail,
	"phone":      NormalizePhone,
	"mobile":     NormalizePhone,
	"date":       NormalizeDate,
	"birthdate":  NormalizeDate,
	"birth_date": NormalizeDate,
	"dob":        NormalizeDate,
}

// FieldNormalizer нормализует данные в указанных полях.
// Применяется только к присутствующим непустым значениям.
// Нераспознанные значения не приводят к ошибке: правило возвращает
// исходное значение или InvalidMarker.
type FieldNormalizer struct {
	name              string
	fieldsToNormalize map[string]NormalizeRule // field_name -> normalize_rule
	lang              language.Tag

	// Предкомпилированные регулярные выражения
	whitespaceRegex *regexp.Regexp
	dateSplitRegex  *regexp.Regexp
}

// NewFieldNormalizer создает новый нормализатор полей
func NewFieldNormalizer(fieldsToNormalize map[string]NormalizeRule) *FieldNormalizer {
	return &FieldNormalizer{
		name:              "field_normalizer",
		fieldsToNormalize: fieldsToNormalize,
		lang:              language.Und,
		whitespaceRegex:   regexp.MustCompile(`\s+`),
		dateSplitRegex:    regexp.MustCompile(`[-/]`),
	}
}

// NewDefaultFieldNormalizer создает нормализатор с DefaultFieldRules
func NewDefaultFieldNormalizer() *FieldNormalizer {
	rules := make(map[string]NormalizeRule, len(DefaultFieldRules))
	for field, rule := range DefaultFieldRules {
		rules[field] = rule
	}
	return NewFieldNormalizer(rules)
}

// WithLanguage задает язык для правил, меняющих регистр (например, "tr" для турецкой i)
func (n *FieldNormalizer) WithLanguage(tag language.Tag) *FieldNormalizer {
	n.lang = tag
	return n
}

// Name возвращает имя процессора
func (n *FieldNormalizer) Name() string {
	return n.name
}

// Rules возвращает правило для каждого поля
func (n *FieldNormalizer) Rules() map[string]NormalizeRule {
	return n.fieldsToNormalize
}

// Process реализует интерфейс Processor. Значения заменяются на месте.
func (n *FieldNormalizer) Process(ctx context.Context, rec *record.Record) (*record.Record, error) {
	if len(n.fieldsToNormalize) == 0 {
		return rec, nil
	}

	for field, rule := range n.fieldsToNormalize {
		value, ok := rec.Get(field)
		if !ok || value == "" {
			continue
		}
		rec.Set(field, n.NormalizeValue(value, rule))
	}

	return rec, nil
}

// NormalizeValue применяет правило нормализации к значению
func (n *FieldNormalizer) NormalizeValue(value string, rule NormalizeRule) string {
	switch rule {
	case NormalizeName:
		return n.normalizeName(value)
	case NormalizePhone:
		return n.normalizePhone(value)
	case NormalizeEmail:
		return n.normalizeEmail(value)
	case NormalizeWhitespace:
		return n.normalizeWhitespace(value)
	case NormalizeUpperCase:
		return cases.Upper(n.lang).String(value)
	case NormalizeLowerCase:
		return cases.Lower(n.lang).String(value)
	case NormalizeDate:
		return n.normalizeDate(value)
	case NormalizeASCIIFold:
		return n.foldASCII(value)
	default:
		return value
	}
}

// normalizeName делает первую букву каждой части заглавной, остальные строчными.
// Части разделяются пробелами, внутри слова - дефисами.
// Примеры:
//   - "john doe" → "John Doe"
//   - "mary-jane smith" → "Mary-Jane Smith"
//   - "NEW YORK" → "New York"
func (n *FieldNormalizer) normalizeName(value string) string {
	lower := cases.Lower(n.lang)

	words := strings.Split(value, " ")
	for i, word := range words {
		parts := strings.Split(word, "-")
		for j, part := range parts {
			if part == "" {
				continue
			}
			r, size := utf8.DecodeRuneInString(part)
			if r == utf8.RuneError && size == 1 {
				// Невалидный байт UTF-8 оставляем как есть
				parts[j] = part[:1] + lower.String(part[1:])
				continue
			}
			parts[j] = string(unicode.ToTitle(r)) + lower.String(part[size:])
		}
		words[i] = strings.Join(parts, "-")
	}

	return strings.Join(words, " ")
}

// normalizePhone оставляет только цифры и форматирует 10-значный номер.
// Примеры:
//   - "123-456-7890" → "(123) 456-7890"
//   - "(555) 123 4567" → "(555) 123-4567"
//   - "555-1234" → "INVALID"
func (n *FieldNormalizer) normalizePhone(value string) string {
	digits := make([]byte, 0, len(value))
	for i := 0; i < len(value); i++ {
		if c := value[i]; c >= '0' && c <= '9' {
			digits = append(digits, c)
		}
	}

	if len(digits) != 10 {
		return InvalidMarker
	}

	return fmt.Sprintf("(%s) %s-%s", digits[0:3], digits[3:6], digits[6:10])
}

// normalizeEmail приводит email к нижнему регистру и убирает пробелы
// Примеры:
//   - "John.Doe@Example.COM" → "john.doe@example.com"
//   - " test@test.com " → "test@test.com"
//   - "not-an-email" → "not-an-email"
func (n *FieldNormalizer) normalizeEmail(value string) string {
	// Базовая проверка: без @ или точки значение не трогаем
	if !strings.Contains(value, "@") || !strings.Contains(value, ".") {
		return value
	}

	return strings.ToLower(strings.TrimSpace(value))
}

// normalizeWhitespace убирает лишние пробелы и приводит к одному пробелу
// Примеры:
//   - "Hello    World" → "Hello World"
//   - "  Test  String  " → "Test String"
//   - "Line1\n\nLine2" → "Line1 Line2"
func (n *FieldNormalizer) normalizeWhitespace(value string) string {
	return n.whitespaceRegex.ReplaceAllString(strings.TrimSpace(value), " ")
}

// normalizeDate приводит дату к формату YYYY-MM-DD.
// Год первым: YYYY-M-D, YYYY/MM/DD. Иначе ожидается MM-DD-YYYY.
// Значение, которое не делится ровно на 3 части, возвращается без изменений.
// Примеры:
//   - "12/25/1990" → "1990-12-25"
//   - "1988/07/04" → "1988-07-04"
//   - "1985-3-5" → "1985-03-05"
//   - "2020" → "2020"
func (n *FieldNormalizer) normalizeDate(value string) string {
	parts := n.dateSplitRegex.Split(value, -1)
	if len(parts) != 3 {
		return value
	}

	if len(parts[0]) == 4 {
		return parts[0] + "-" + padLeft(parts[1], 2) + "-" + padLeft(parts[2], 2)
	}

	// Год последним; без четырехзначного года результат нельзя
	// отличить от уже нормализованной даты
	if len(parts[2]) != 4 {
		return value
	}

	return parts[2] + "-" + padLeft(parts[0], 2) + "-" + padLeft(parts[1], 2)
}

// foldASCII убирает диакритические знаки
// Примеры:
//   - "José Müller" → "Jose Muller"
//   - "Ångström" → "Angstrom"
func (n *FieldNormalizer) foldASCII(value string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, value)
	if err != nil {
		return value
	}
	return folded
}

// padLeft дополняет строку нулями слева до нужной длины
func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

// ParseNormalizeRule проверяет имя правила
func ParseNormalizeRule(s string) (NormalizeRule, error) {
	rule := NormalizeRule(s)
	switch rule {
	case NormalizeName, NormalizePhone, NormalizeEmail, NormalizeWhitespace,
		NormalizeUpperCase, NormalizeLowerCase, NormalizeDate, NormalizeASCIIFold:
		return rule, nil
	default:
		return "", fmt.Errorf("unknown normalize rule: %s", s)
	}
}

// NewFieldNormalizerFromConfig создает FieldNormalizer из конфигурации
//
// Параметры:
//   - fields: map поле -> правило
//   - defaults: true - добавить DefaultFieldRules (явные fields имеют приоритет)
//   - language: BCP 47 тег для смены регистра (по умолчанию und)
func NewFieldNormalizerFromConfig(params map[string]any) (*FieldNormalizer, error) {
	fieldsToNormalize := make(map[string]NormalizeRule)

	useDefaults, _ := params["defaults"].(bool)
	if useDefaults {
		for field, rule := range DefaultFieldRules {
			fieldsToNormalize[field] = rule
		}
	}

	fields, ok := params["fields"].(map[string]any)
	if !ok && !useDefaults {
		return nil, fmt.Errorf("missing or invalid 'fields' parameter")
	}

	for fieldName, ruleStr := range fields {
		rule, err := ParseNormalizeRule(fmt.Sprintf("%v", ruleStr))
		if err != nil {
			return nil, fmt.Errorf("invalid normalize rule '%v' for field '%s'", ruleStr, fieldName)
		}
		fieldsToNormalize[fieldName] = rule
	}

	normalizer := NewFieldNormalizer(fieldsToNormalize)

	if lang, ok := params["language"].(string); ok && lang != "" {
		tag, err := language.Parse(lang)
		if err != nil {
			return nil, fmt.Errorf("invalid language '%s': %w", lang, err)
		}
		normalizer.WithLanguage(tag)
	}

	return normalizer, nil
}
