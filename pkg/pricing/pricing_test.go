package pricing

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/loom/pkg/llm"
)

func TestLookup(t *testing.T) {
	table := Default()

	t.Run("should resolve exact model", func(t *testing.T) {
		r := table.Lookup("openai", "gpt-4o")
		assert.Equal(t, 2.50, r.Input)
		assert.Equal(t, 10.0, r.Output)
	})

	t.Run("should resolve dated release through family prefix", func(t *testing.T) {
		r := table.Lookup("anthropic", "claude-3-5-sonnet-20241022")
		assert.Equal(t, 3.0, r.Input)
		assert.Equal(t, 15.0, r.Output)
	})

	t.Run("should prefer the longest prefix", func(t *testing.T) {
		table := New()
		table.Set("openai", "gpt-4", Rate{Input: 30, Output: 60})
		table.Set("openai", "gpt-4o", Rate{Input: 2.5, Output: 10})

		r := table.Lookup("openai", "gpt-4o-2024-08-06")
		assert.Equal(t, 2.5, r.Input)
	})

	t.Run("should return zero rate for unknown model", func(t *testing.T) {
		r := table.Lookup("openai", "some-future-model")
		assert.True(t, r.IsZero())
	})

	t.Run("should return zero rate for unknown provider", func(t *testing.T) {
		r := table.Lookup("mistral", "mistral-large")
		assert.True(t, r.IsZero())
	})
}

func TestCost(t *testing.T) {
	table := Default()

	t.Run("should price usage per million tokens", func(t *testing.T) {
		usage := llm.Usage{InputTokens: 1_000_000, OutputTokens: 1_000_000}
		cost := table.Cost("openai", "gpt-4o", usage)
		assert.InDelta(t, 12.50, cost, 1e-9)
	})

	t.Run("should cost zero for unknown model", func(t *testing.T) {
		usage := llm.Usage{InputTokens: 1000, OutputTokens: 1000}
		assert.Equal(t, 0.0, table.Cost("openai", "unknown", usage))
	})

	t.Run("should scale fractional usage", func(t *testing.T) {
		usage := llm.Usage{InputTokens: 1000, OutputTokens: 500}
		cost := table.Cost("anthropic", "claude-3-5-sonnet", usage)
		assert.InDelta(t, 0.003+0.0075, cost, 1e-9)
	})
}

func TestLoadAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pricing.json")

	content := `{
		"anthropic": {"claude-3-5-sonnet": {"input": 1.0, "output": 2.0}}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	table, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1.0, table.Lookup("anthropic", "claude-3-5-sonnet").Input)

	t.Run("reload replaces contents", func(t *testing.T) {
		updated := `{
			"anthropic": {"claude-3-5-sonnet": {"input": 5.0, "output": 9.0}}
		}`
		require.NoError(t, os.WriteFile(path, []byte(updated), 0644))
		require.NoError(t, table.Reload(path))
		assert.Equal(t, 5.0, table.Lookup("anthropic", "claude-3-5-sonnet").Input)
	})

	t.Run("reload keeps previous rates on bad file", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("{bad"), 0644))
		assert.Error(t, table.Reload(path))
		assert.Equal(t, 5.0, table.Lookup("anthropic", "claude-3-5-sonnet").Input)
	})

	t.Run("load fails on missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "missing.json"))
		assert.Error(t, err)
	})
}

func TestWatcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pricing.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"openai": {"gpt-4o": {"input": 1, "output": 1}}}`), 0644))

	table, err := Load(path)
	require.NoError(t, err)

	w, err := Watch(table, path, zerolog.Nop())
	require.NoError(t, err)
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte(`{"openai": {"gpt-4o": {"input": 7, "output": 7}}}`), 0644))

	assert.Eventually(t, func() bool {
		return table.Lookup("openai", "gpt-4o").Input == 7
	}, 5*time.Second, 50*time.Millisecond)
}
