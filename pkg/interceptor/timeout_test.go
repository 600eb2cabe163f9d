package interceptor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/loom/pkg/llm"
	"github.com/harun/loom/pkg/llm/llmtest"
)

func TestTimeout(t *testing.T) {
	t.Run("should publish the budget into call metadata", func(t *testing.T) {
		call := newContext(llmtest.NewScripted(), nil, llm.ChatOptions{})

		err := NewTimeout(5 * time.Second).OnEnter(context.Background(), call)

		require.NoError(t, err)
		budget, ok := call.TimeoutBudget()
		assert.True(t, ok)
		assert.Equal(t, 5*time.Second, budget)
	})

	t.Run("should fall back to the default budget", func(t *testing.T) {
		call := newContext(llmtest.NewScripted(), nil, llm.ChatOptions{})

		require.NoError(t, NewTimeout(0).OnEnter(context.Background(), call))

		budget, ok := call.TimeoutBudget()
		assert.True(t, ok)
		assert.Equal(t, DefaultTimeout, budget)
	})

	t.Run("should leave calls without the interceptor unbounded", func(t *testing.T) {
		call := newContext(llmtest.NewScripted(), nil, llm.ChatOptions{})

		_, ok := call.TimeoutBudget()
		assert.False(t, ok)
	})
}
