package processors

import (
	"context"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/ruslano69/csvnorm/pkg/core/record"
)

func TestFieldNormalizer_Values(t *testing.T) {
	n := NewFieldNormalizer(nil)

	tests := []struct {
		rule  NormalizeRule
		input string
		want  string
	}{
		{NormalizeName, "john doe", "John Doe"},
		{NormalizeName, "mary-jane smith", "Mary-Jane Smith"},
		{NormalizeName, "NEW YORK", "New York"},
		{NormalizeName, "  john doe", "  John Doe"},
		{NormalizeName, "élise o'neil", "Élise O'neil"},
		{NormalizeName, "a--b", "A--B"},
		{NormalizeName, "\xff\xfejohn", "\xff\xfejohn"},
		{NormalizeName, "\xffJOHN doe", "\xffjohn Doe"},

		{NormalizeEmail, "JOHN.DOE@EXAMPLE.COM", "john.doe@example.com"},
		{NormalizeEmail, " Jane.Smith@Gmail.Com ", "jane.smith@gmail.com"},
		{NormalizeEmail, "NOT-AN-EMAIL", "NOT-AN-EMAIL"},
		{NormalizeEmail, "USER@LOCALHOST", "USER@LOCALHOST"},

		{NormalizePhone, "123-456-7890", "(123) 456-7890"},
		{NormalizePhone, "1234567890", "(123) 456-7890"},
		{NormalizePhone, "(555) 123 4567", "(555) 123-4567"},
		{NormalizePhone, "555-1234", InvalidMarker},
		{NormalizePhone, "invalid-phone", InvalidMarker},
		{NormalizePhone, "+1 555 123 4567", InvalidMarker},

		{NormalizeDate, "12/25/1990", "1990-12-25"},
		{NormalizeDate, "1988/07/04", "1988-07-04"},
		{NormalizeDate, "1985-03-15", "1985-03-15"},
		{NormalizeDate, "1985-3-5", "1985-03-05"},
		{NormalizeDate, "3/22/1992", "1992-03-22"},
		{NormalizeDate, "2020", "2020"},
		{NormalizeDate, "2020-01", "2020-01"},
		{NormalizeDate, "1/2/3", "1/2/3"},
		{NormalizeDate, "1-2-3-4", "1-2-3-4"},

		{NormalizeWhitespace, "  Hello    World ", "Hello World"},
		{NormalizeUpperCase, "straße", "STRASSE"},
		{NormalizeLowerCase, "HeLLo", "hello"},
		{NormalizeASCIIFold, "José Müller", "Jose Muller"},
		{NormalizeASCIIFold, "Ångström", "Angstrom"},

		{NormalizeRule("unknown"), "Keep", "Keep"},
	}

	for _, tt := range tests {
		t.Run(string(tt.rule)+"/"+tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, n.NormalizeValue(tt.input, tt.rule))
		})
	}
}

func TestFieldNormalizer_Language(t *testing.T) {
	n := NewFieldNormalizer(nil).WithLanguage(language.Turkish)
	assert.Equal(t, "İSTANBUL", n.NormalizeValue("istanbul", NormalizeUpperCase))
}

func TestFieldNormalizer_Process(t *testing.T) {
	h := record.NewHeader([]string{"name", "email", "phone", "birthdate", "city", "note"})
	rec := record.FromValues(h, []string{"bob johnson", "BOB@TEST.COM", "invalid-phone", "03/22/1992", "", "as is"})

	out, err := NewDefaultFieldNormalizer().Process(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, []string{"Bob Johnson", "bob@test.com", InvalidMarker, "1992-03-22", "", "as is"}, out.Values())
	assert.Equal(t, h.Names(), out.Keys(), "field set must not change")
}

func TestFieldNormalizer_SkipsAbsent(t *testing.T) {
	h := record.NewHeader([]string{"name", "phone"})
	rec := record.FromValues(h, []string{"ann"})

	out, err := NewDefaultFieldNormalizer().Process(context.Background(), rec)
	require.NoError(t, err)

	_, ok := out.Get("phone")
	assert.False(t, ok, "absent phone must stay absent, not become INVALID")
}

func TestFieldNormalizer_FromConfig(t *testing.T) {
	tests := []struct {
		name    string
		params  map[string]any
		wantErr bool
		check   func(t *testing.T, n *FieldNormalizer)
	}{
		{
			name:   "explicit fields",
			params: map[string]any{"fields": map[string]any{"full_name": "name"}},
			check: func(t *testing.T, n *FieldNormalizer) {
				assert.Equal(t, map[string]NormalizeRule{"full_name": NormalizeName}, n.Rules())
			},
		},
		{
			name:   "defaults with override",
			params: map[string]any{"defaults": true, "fields": map[string]any{"city": "uppercase"}},
			check: func(t *testing.T, n *FieldNormalizer) {
				assert.Equal(t, NormalizeUpperCase, n.Rules()["city"])
				assert.Equal(t, NormalizeEmail, n.Rules()["email"])
			},
		},
		{
			name:    "missing fields",
			params:  map[string]any{},
			wantErr: true,
		},
		{
			name:    "unknown rule",
			params:  map[string]any{"fields": map[string]any{"x": "reverse"}},
			wantErr: true,
		},
		{
			name:    "bad language",
			params:  map[string]any{"defaults": true, "language": "!!"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := NewFieldNormalizerFromConfig(tt.params)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, n)
		})
	}
}

// normalize(normalize(v)) == normalize(v) для каждого правила
func TestFieldNormalizer_Idempotence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	n := NewFieldNormalizer(nil)

	// Значения из букв, цифр и разделителей, встречающихся в именах, телефонах и датах
	alphabet := []rune("aZbYéÜ019-/ .@()+")
	value := gen.SliceOf(gen.IntRange(0, len(alphabet)-1)).Map(func(idx []int) string {
		var sb strings.Builder
		for _, i := range idx {
			sb.WriteRune(alphabet[i])
		}
		return sb.String()
	})

	rules := []NormalizeRule{
		NormalizeName, NormalizeEmail, NormalizePhone, NormalizeDate,
		NormalizeWhitespace, NormalizeUpperCase, NormalizeLowerCase, NormalizeASCIIFold,
	}

	for _, rule := range rules {
		rule := rule
		properties.Property(string(rule)+" is idempotent", prop.ForAll(
			func(v string) bool {
				once := n.NormalizeValue(v, rule)
				return n.NormalizeValue(once, rule) == once
			},
			value,
		))
	}

	properties.Property("date idempotent on numeric triples", prop.ForAll(
		func(a, b, c int, sep bool) bool {
			s := "-"
			if sep {
				s = "/"
			}
			v := strings.Join([]string{itoa(a), itoa(b), itoa(c)}, s)
			once := n.NormalizeValue(v, NormalizeDate)
			return n.NormalizeValue(once, NormalizeDate) == once
		},
		gen.IntRange(0, 3000), gen.IntRange(0, 3000), gen.IntRange(0, 3000), gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestFieldNormalizer_RecordIdempotence(t *testing.T) {
	h := record.NewHeader([]string{"name", "email", "phone", "birthdate", "city"})
	rec := record.FromValues(h, []string{"  jane smith", "Jane.Smith@Gmail.Com", "555-123-4567", "1985-3-15", "los angeles"})

	n := NewDefaultFieldNormalizer()
	once, err := n.Process(context.Background(), rec.Clone())
	require.NoError(t, err)
	twice, err := n.Process(context.Background(), once.Clone())
	require.NoError(t, err)

	assert.True(t, once.Equal(twice), "%s != %s", once, twice)
}

func itoa(i int) string {
	const digits = "0123456789"
	if i == 0 {
		return "0"
	}
	var b []byte
	for ; i > 0; i /= 10 {
		b = append([]byte{digits[i%10]}, b...)
	}
	return string(b)
}
