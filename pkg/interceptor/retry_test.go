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

func fastRetry(maxAttempts int) *Retry {
	return NewRetry(RetryConfig{
		MaxAttempts:  maxAttempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
	})
}

func TestRetry(t *testing.T) {
	t.Run("should recover after a rate limit", func(t *testing.T) {
		model := llmtest.NewScripted(
			llmtest.Fail(&llm.RateLimitError{Provider: "test"}),
			llmtest.Reply("ok"),
		)
		exec := NewExecutor(ExecutorConfig{Interceptors: []Interceptor{fastRetry(3)}})

		resp, err := exec.Execute(context.Background(), model, []llm.Message{llm.UserMessage("hi")}, llm.ChatOptions{})

		require.NoError(t, err)
		assert.Equal(t, "ok", resp.Text())
		assert.Equal(t, 2, model.CallCount())
	})

	t.Run("should not retry permanent errors", func(t *testing.T) {
		model := llmtest.NewScripted(
			llmtest.Fail(&llm.AuthError{Provider: "test", StatusCode: 401, Message: "bad key"}),
		)
		exec := NewExecutor(ExecutorConfig{Interceptors: []Interceptor{fastRetry(3)}})

		_, err := exec.Execute(context.Background(), model, nil, llm.ChatOptions{})

		var authErr *llm.AuthError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, 1, model.CallCount())
	})

	t.Run("should give up after max attempts", func(t *testing.T) {
		model := llmtest.NewScripted(
			llmtest.Fail(&llm.ProviderError{Provider: "test", StatusCode: 500, Message: "a"}),
			llmtest.Fail(&llm.ProviderError{Provider: "test", StatusCode: 502, Message: "b"}),
			llmtest.Fail(&llm.ProviderError{Provider: "test", StatusCode: 503, Message: "c"}),
		)
		exec := NewExecutor(ExecutorConfig{Interceptors: []Interceptor{fastRetry(3)}})

		_, err := exec.Execute(context.Background(), model, nil, llm.ChatOptions{})

		var provErr *llm.ProviderError
		require.ErrorAs(t, err, &provErr)
		assert.Equal(t, 503, provErr.StatusCode, "the last error should win")
		assert.Equal(t, 3, model.CallCount())
	})

	t.Run("should retry a timed out call without the deadline", func(t *testing.T) {
		model := llmtest.NewScripted(llmtest.Reply("ok"))
		model.Delay = 30 * time.Millisecond
		exec := NewExecutor(ExecutorConfig{Interceptors: []Interceptor{
			NewTimeout(10 * time.Millisecond),
			fastRetry(2),
		}})

		resp, err := exec.Execute(context.Background(), model, nil, llm.ChatOptions{})

		require.NoError(t, err)
		assert.Equal(t, "ok", resp.Text())
	})

	t.Run("should stop retrying when the context is canceled", func(t *testing.T) {
		model := llmtest.NewScripted(
			llmtest.Fail(&llm.RateLimitError{Provider: "test"}),
			llmtest.Reply("unreachable"),
		)
		exec := NewExecutor(ExecutorConfig{Interceptors: []Interceptor{
			NewRetry(RetryConfig{MaxAttempts: 3, InitialDelay: 200 * time.Millisecond}),
		}})

		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(5*time.Millisecond, cancel)

		start := time.Now()
		_, err := exec.Execute(ctx, model, nil, llm.ChatOptions{})

		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, model.CallCount())
		assert.Less(t, time.Since(start), 150*time.Millisecond)
	})
}

func TestRetryBackoff(t *testing.T) {
	t.Run("should grow exponentially within the cap", func(t *testing.T) {
		r := NewRetry(RetryConfig{
			MaxAttempts:  5,
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     300 * time.Millisecond,
			Multiplier:   2,
			Jitter:       0.1,
		})

		within := func(d time.Duration, base time.Duration) {
			t.Helper()
			low := time.Duration(float64(base) * 0.9)
			high := time.Duration(float64(base) * 1.1)
			assert.GreaterOrEqual(t, d, low)
			assert.LessOrEqual(t, d, high)
		}

		within(r.backoff(0), 100*time.Millisecond)
		within(r.backoff(1), 200*time.Millisecond)
		within(r.backoff(2), 300*time.Millisecond)
		within(r.backoff(3), 300*time.Millisecond)
	})

	t.Run("should fill defaults for zero config", func(t *testing.T) {
		r := NewRetry(RetryConfig{})

		assert.Equal(t, 3, r.cfg.MaxAttempts)
		assert.Equal(t, 500*time.Millisecond, r.cfg.InitialDelay)
		assert.Equal(t, 30*time.Second, r.cfg.MaxDelay)
		assert.Equal(t, 2.0, r.cfg.Multiplier)
		assert.Equal(t, 0.1, r.cfg.Jitter)
	})
}
