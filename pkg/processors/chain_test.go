package processors

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruslano69/csvnorm/pkg/core/record"
)

type failingProcessor struct{}

func (failingProcessor) Name() string { return "failing" }

func (failingProcessor) Process(context.Context, *record.Record) (*record.Record, error) {
	return nil, errors.New("boom")
}

func TestChain_Order(t *testing.T) {
	chain := NewChain(
		NewFieldNormalizer(map[string]NormalizeRule{"email": NormalizeEmail}),
		NewFieldMasker(map[string]MaskPattern{"email": MaskPartial}),
	)

	assert.Equal(t, 2, chain.Len())
	assert.Equal(t, []string{"field_normalizer", "field_masker"}, chain.Names())

	rec := single("email", "JOHN.DOE@EXAMPLE.COM")
	out, err := chain.Process(context.Background(), rec)
	require.NoError(t, err)

	v, _ := out.Get("email")
	assert.Equal(t, "j***@example.com", v)
}

func TestChain_Error(t *testing.T) {
	chain := NewChain(NewDefaultFieldNormalizer())
	chain.Add(failingProcessor{})

	_, err := chain.Process(context.Background(), single("name", "x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "processor 1 (failing) failed")
}

func TestChain_Empty(t *testing.T) {
	chain := NewChain()
	assert.True(t, chain.IsEmpty())

	rec := single("a", "1")
	out, err := chain.Process(context.Background(), rec)
	require.NoError(t, err)
	assert.Same(t, rec, out)
}

func TestFactory_CreateChain(t *testing.T) {
	chain, err := CreateChainFromConfigs([]Config{
		{Type: "field_normalizer", Params: map[string]any{"defaults": true}},
		{Type: "field_validator", Params: map[string]any{"rules": map[string]any{"phone": "normalized"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, chain.Len())

	_, err = chain.Process(context.Background(), single("phone", "555-1234"))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = DefaultFactory.Create(Config{Type: "nope"})
	assert.EqualError(t, err, "unknown processor type: nope")

	_, err = DefaultFactory.CreateChain([]Config{{Type: "field_masker"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create processor 0")
}

func TestFactory_Register(t *testing.T) {
	f := NewFactory()
	f.Register("failing", func(map[string]any) (Processor, error) {
		return failingProcessor{}, nil
	})

	assert.ElementsMatch(t, []string{"field_masker", "field_normalizer", "field_validator", "failing"}, f.Types())

	p, err := f.Create(Config{Type: "failing"})
	require.NoError(t, err)
	assert.Equal(t, "failing", p.Name())
}

func TestLoadChainConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")

	content := `processors:
  - type: field_normalizer
    params:
      defaults: true
      fields:
        country: uppercase
  - type: field_masker
    params:
      fields:
        phone: middle
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadChainConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Processors, 2)
	assert.Equal(t, "field_normalizer", cfg.Processors[0].Type)

	chain, err := CreateChainFromConfigs(cfg.Processors)
	require.NoError(t, err)

	h := record.NewHeader([]string{"country", "phone"})
	out, err := chain.Process(context.Background(), record.FromValues(h, []string{"us", "1234567890"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"US", "(123) 4XX-7890"}, out.Values())

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("processors: []\n"), 0o644))
	_, err = LoadChainConfig(empty)
	assert.Error(t, err)

	_, err = LoadChainConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestFieldMasker(t *testing.T) {
	m := NewFieldMasker(nil)

	tests := []struct {
		pattern MaskPattern
		input   string
		want    string
	}{
		{MaskPartial, "john.doe@example.com", "j***@example.com"},
		{MaskPartial, "Hello World", "H***d"},
		{MaskPartial, "ab", "***"},
		{MaskMiddle, "(555) 123-4567", "(555) 1XX-4567"},
		{MaskMiddle, "1234 5678 9012 3456", "1234 XXXX XXXX 3456"},
		{MaskMiddle, "123", "XXX"},
		{MaskStars, "123-45-6789", "***-**-****"},
		{MaskFirst2Last2, "1234 567890", "12** ****90"},
		{MaskFirst2Last2, "abc", "***"},
	}

	for _, tt := range tests {
		t.Run(string(tt.pattern)+"/"+tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, m.maskValue(tt.input, tt.pattern))
		})
	}

	_, err := NewFieldMaskerFromConfig(map[string]any{"fields": map[string]any{"x": "blur"}})
	assert.Error(t, err)
}
