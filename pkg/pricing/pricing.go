// Package pricing maintains per-model token rates used for cost tracking.
//
// Rates are expressed in USD per million tokens. A Table can be seeded from
// the built-in defaults, loaded from a JSON file, and hot-reloaded while the
// process runs.
package pricing

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/harun/loom/pkg/llm"
)

// Rate holds the input and output prices for one model, in USD per million
// tokens.
type Rate struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
}

// IsZero reports whether the rate carries no pricing information.
func (r Rate) IsZero() bool {
	return r.Input == 0 && r.Output == 0
}

// Table maps (provider, model) to rates. It is safe for concurrent use and
// may be swapped wholesale by Reload while lookups are in flight.
type Table struct {
	mu    sync.RWMutex
	rates map[string]map[string]Rate
}

// New creates an empty table.
func New() *Table {
	return &Table{rates: make(map[string]map[string]Rate)}
}

// Default returns a table seeded with published rates for the common
// Anthropic and OpenAI models.
func Default() *Table {
	t := New()
	t.Set("anthropic", "claude-3-5-sonnet", Rate{Input: 3.0, Output: 15.0})
	t.Set("anthropic", "claude-3-5-haiku", Rate{Input: 0.80, Output: 4.0})
	t.Set("anthropic", "claude-3-opus", Rate{Input: 15.0, Output: 75.0})
	t.Set("anthropic", "claude-3-haiku", Rate{Input: 0.25, Output: 1.25})
	t.Set("openai", "gpt-4o", Rate{Input: 2.50, Output: 10.0})
	t.Set("openai", "gpt-4o-mini", Rate{Input: 0.15, Output: 0.60})
	t.Set("openai", "gpt-4-turbo", Rate{Input: 10.0, Output: 30.0})
	t.Set("openai", "gpt-3.5-turbo", Rate{Input: 0.50, Output: 1.50})
	return t
}

// Set stores the rate for a (provider, model) pair.
func (t *Table) Set(provider, model string, r Rate) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rates[provider] == nil {
		t.rates[provider] = make(map[string]Rate)
	}
	t.rates[provider][model] = r
}

// Lookup resolves the rate for a model. Exact matches win; otherwise the
// longest configured prefix of the model name is used, so dated releases like
// claude-3-5-sonnet-20241022 resolve through their family entry. Unknown
// models return a zero rate.
func (t *Table) Lookup(provider, model string) Rate {
	t.mu.RLock()
	defer t.mu.RUnlock()

	models := t.rates[provider]
	if models == nil {
		return Rate{}
	}
	if r, ok := models[model]; ok {
		return r
	}

	var best string
	for name := range models {
		if strings.HasPrefix(model, name) && len(name) > len(best) {
			best = name
		}
	}
	if best != "" {
		return models[best]
	}
	return Rate{}
}

// Cost computes the USD cost of a usage record for a model.
func (t *Table) Cost(provider, model string, usage llm.Usage) float64 {
	r := t.Lookup(provider, model)
	return (float64(usage.InputTokens)*r.Input + float64(usage.OutputTokens)*r.Output) / 1e6
}

// fileFormat is the on-disk structure: provider -> model -> rate.
type fileFormat map[string]map[string]Rate

// Load reads a pricing file into a new table.
func Load(path string) (*Table, error) {
	t := New()
	if err := t.Reload(path); err != nil {
		return nil, err
	}
	return t, nil
}

// Reload replaces the table contents from a pricing file. On parse errors the
// previous contents are kept.
func (t *Table) Reload(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read pricing file: %w", err)
	}

	var parsed fileFormat
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse pricing file: %w", err)
	}

	fresh := make(map[string]map[string]Rate, len(parsed))
	for provider, models := range parsed {
		fresh[provider] = make(map[string]Rate, len(models))
		for model, rate := range models {
			fresh[provider][model] = rate
		}
	}

	t.mu.Lock()
	t.rates = fresh
	t.mu.Unlock()

	return nil
}

// Providers returns the provider names present in the table.
func (t *Table) Providers() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.rates))
	for p := range t.rates {
		out = append(out, p)
	}
	return out
}
