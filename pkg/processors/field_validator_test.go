package processors

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ruslano69/csvnorm/pkg/core/record"
)

// single создает запись из одного поля
func single(field, value string) *record.Record {
	return record.FromValues(record.NewHeader([]string{field}), []string{value})
}

func TestFieldValidator_Rules(t *testing.T) {
	tests := []struct {
		name    string
		rule    FieldValidationRule
		value   string
		wantErr bool
	}{
		{"valid email", FieldValidationRule{Type: ValidateEmail}, "john@example.com", false},
		{"email without @", FieldValidationRule{Type: ValidateEmail}, "john.example.com", true},
		{"email without domain", FieldValidationRule{Type: ValidateEmail}, "john@", true},

		{"age in range", FieldValidationRule{Type: ValidateRange, Param: "18-65"}, "25", false},
		{"age too young", FieldValidationRule{Type: ValidateRange, Param: "18-65"}, "17", true},
		{"age not a number", FieldValidationRule{Type: ValidateRange, Param: "18-65"}, "abc", true},

		{"enum allowed", FieldValidationRule{Type: ValidateEnum, Param: "active,inactive"}, "active", false},
		{"enum rejected", FieldValidationRule{Type: ValidateEnum, Param: "active,inactive"}, "deleted", true},

		{"required present", FieldValidationRule{Type: ValidateRequired}, "John Doe", false},
		{"required empty", FieldValidationRule{Type: ValidateRequired}, "", true},
		{"required whitespace", FieldValidationRule{Type: ValidateRequired}, "   ", true},

		{"length ok", FieldValidationRule{Type: ValidateLength, Param: "3-5"}, "john", false},
		{"length counts runes", FieldValidationRule{Type: ValidateLength, Param: "3-5"}, "Йозеф", false},
		{"length too long", FieldValidationRule{Type: ValidateLength, Param: "3-5"}, "johnny", true},

		{"normalized phone", FieldValidationRule{Type: ValidatePhone}, "(123) 456-7890", false},
		{"short phone", FieldValidationRule{Type: ValidatePhone}, "12345", true},

		{"iso date", FieldValidationRule{Type: ValidateDate}, "1990-12-25", false},
		{"us date", FieldValidationRule{Type: ValidateDate}, "12/25/1990", true},
		{"february 30", FieldValidationRule{Type: ValidateDate}, "2023-02-30", true},
		{"year out of range", FieldValidationRule{Type: ValidateDate}, "1850-01-01", true},

		{"url", FieldValidationRule{Type: ValidateURL}, "https://example.com/a", false},
		{"not url", FieldValidationRule{Type: ValidateURL}, "example", true},

		{"normalized value", FieldValidationRule{Type: ValidateNormalized}, "(123) 456-7890", false},
		{"invalid marker", FieldValidationRule{Type: ValidateNormalized}, InvalidMarker, true},

		{"regex match", FieldValidationRule{Type: ValidateRegex, Param: `^[A-Z]{3}$`}, "ABC", false},
		{"regex mismatch", FieldValidationRule{Type: ValidateRegex, Param: `^[A-Z]{3}$`}, "abc", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator, err := NewFieldValidator(map[string][]FieldValidationRule{
				"f": {tt.rule},
			}, false)
			if err != nil {
				t.Fatalf("Failed to create validator: %v", err)
			}

			_, err = validator.Process(context.Background(), single("f", tt.value))
			if (err != nil) != tt.wantErr {
				t.Errorf("Process() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("Process() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestFieldValidator_AbsentField(t *testing.T) {
	h := record.NewHeader([]string{"name", "email"})
	rec := record.FromValues(h, []string{"John"})

	// email отсутствует: проверка формата пропускается
	lenient, _ := NewFieldValidator(map[string][]FieldValidationRule{
		"email": {{Type: ValidateEmail}},
	}, false)
	if _, err := lenient.Process(context.Background(), rec); err != nil {
		t.Errorf("absent field must skip format rules, got %v", err)
	}

	// ...но required срабатывает
	required, _ := NewFieldValidator(map[string][]FieldValidationRule{
		"email": {{Type: ValidateRequired}, {Type: ValidateEmail}},
	}, false)
	_, err := required.Process(context.Background(), rec)
	if err == nil {
		t.Fatal("expected required error for absent field")
	}
	if !strings.Contains(err.Error(), "field 'email'") {
		t.Errorf("error should name the field, got %v", err)
	}
}

func TestFieldValidator_MultipleErrors(t *testing.T) {
	h := record.NewHeader([]string{"email", "phone"})
	rec := record.FromValues(h, []string{"bad", "1"})

	rules := map[string][]FieldValidationRule{
		"email": {{Type: ValidateEmail}},
		"phone": {{Type: ValidatePhone, ErrMsg: "phone looks wrong"}},
	}

	collectAll, _ := NewFieldValidator(rules, false)
	_, err := collectAll.Process(context.Background(), rec)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "2 errors") {
		t.Errorf("expected 2 errors, got %v", err)
	}
	if !strings.Contains(err.Error(), "phone looks wrong") {
		t.Errorf("custom message missing: %v", err)
	}

	stopFirst, _ := NewFieldValidator(rules, true)
	_, err = stopFirst.Process(context.Background(), rec)
	if err == nil {
		t.Fatal("expected error")
	}
	// поля обходятся в порядке заголовка
	if !strings.Contains(err.Error(), "field 'email'") || strings.Contains(err.Error(), "phone") {
		t.Errorf("expected only the email error, got %v", err)
	}
}

func TestFieldValidator_FromConfig(t *testing.T) {
	params := map[string]any{
		"stop_on_first_error": true,
		"rules": map[string]any{
			"email": "email",
			"age":   []any{"required", "range:0-150"},
			"code": map[string]any{
				"type":  "regex:^[A-Z]+$",
				"error": "code must be uppercase",
			},
		},
	}

	validator, err := NewFieldValidatorFromConfig(params)
	if err != nil {
		t.Fatalf("NewFieldValidatorFromConfig() error = %v", err)
	}

	h := record.NewHeader([]string{"email", "age", "code"})
	if _, err := validator.Process(context.Background(), record.FromValues(h, []string{"a@b.com", "30", "XY"})); err != nil {
		t.Errorf("valid record rejected: %v", err)
	}

	_, err = validator.Process(context.Background(), record.FromValues(h, []string{"a@b.com", "30", "xy"}))
	if err == nil || !strings.Contains(err.Error(), "code must be uppercase") {
		t.Errorf("expected custom error, got %v", err)
	}

	if _, err := NewFieldValidatorFromConfig(map[string]any{"rules": map[string]any{"x": "bogus"}}); err == nil {
		t.Error("expected error for unknown rule type")
	}
	if _, err := NewFieldValidatorFromConfig(map[string]any{}); err == nil {
		t.Error("expected error for missing rules")
	}
}
