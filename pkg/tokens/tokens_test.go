package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/loom/pkg/llm"
)

func TestCountText(t *testing.T) {
	e := NewEstimator()

	t.Run("should count tokens for gpt-4o", func(t *testing.T) {
		n, err := e.CountText("gpt-4o", "hello world")
		require.NoError(t, err)
		assert.Greater(t, n, 0)
		assert.Less(t, n, 10)
	})

	t.Run("should return zero for empty text", func(t *testing.T) {
		n, err := e.CountText("gpt-4o", "")
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("should handle claude models via fallback encoding", func(t *testing.T) {
		n, err := e.CountText("claude-3-5-sonnet-20241022", "hello world")
		require.NoError(t, err)
		assert.Greater(t, n, 0)
	})

	t.Run("longer text should count more tokens", func(t *testing.T) {
		short, err := e.CountText("gpt-4", "hi")
		require.NoError(t, err)
		long, err := e.CountText("gpt-4", "this is a considerably longer sentence with many more words in it")
		require.NoError(t, err)
		assert.Greater(t, long, short)
	})
}

func TestCountMessages(t *testing.T) {
	e := NewEstimator()

	t.Run("should include per-message overhead", func(t *testing.T) {
		one, err := e.CountMessages("gpt-4o", []llm.Message{llm.UserMessage("hi")})
		require.NoError(t, err)
		two, err := e.CountMessages("gpt-4o", []llm.Message{
			llm.UserMessage("hi"),
			llm.AssistantMessage("hi"),
		})
		require.NoError(t, err)
		assert.Greater(t, two, one)
	})

	t.Run("should count tool call payloads", func(t *testing.T) {
		plain := []llm.Message{llm.AssistantMessage("checking")}
		withCall := []llm.Message{{
			Role:    llm.RoleAssistant,
			Content: "checking",
			ToolCalls: []llm.ToolCall{{
				ID:        "c1",
				Name:      "search",
				Arguments: map[string]interface{}{"query": "golang generics tutorial"},
			}},
		}}

		base, err := e.CountMessages("gpt-4o", plain)
		require.NoError(t, err)
		withTools, err := e.CountMessages("gpt-4o", withCall)
		require.NoError(t, err)
		assert.Greater(t, withTools, base)
	})
}

func TestEstimateUsage(t *testing.T) {
	e := NewEstimator()

	usage := e.EstimateUsage("gpt-4o", []llm.Message{llm.UserMessage("what is the capital of France")}, "Paris is the capital of France.")
	assert.Greater(t, usage.InputTokens, 0)
	assert.Greater(t, usage.OutputTokens, 0)
	assert.Equal(t, usage.InputTokens+usage.OutputTokens, usage.TotalTokens)
}

func TestEncodingForModel(t *testing.T) {
	tests := []struct {
		model string
		want  string
	}{
		{"gpt-4o", "o200k_base"},
		{"gpt-4o-mini", "o200k_base"},
		{"o1-preview", "o200k_base"},
		{"gpt-4", "cl100k_base"},
		{"gpt-3.5-turbo", "cl100k_base"},
		{"claude-3-5-haiku", "o200k_base"},
		{"unknown-model", "o200k_base"},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, string(encodingForModel(tt.model)))
		})
	}
}
