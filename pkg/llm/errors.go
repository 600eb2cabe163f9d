package llm

import (
	"errors"
	"fmt"
	"time"
)

// ProviderError reports a failed provider API call.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: provider error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: provider error: %s", e.Provider, e.Message)
}

// AuthError reports rejected credentials. It unwraps to a ProviderError so
// callers matching the broad kind still catch it.
type AuthError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: authentication failed: %s", e.Provider, e.Message)
}

func (e *AuthError) Unwrap() error {
	return &ProviderError{Provider: e.Provider, StatusCode: e.StatusCode, Message: e.Message}
}

// RateLimitError reports a provider rate-limit rejection. RetryAfter is zero
// when the provider gave no hint.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited (retry after %s)", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("%s: rate limited: %s", e.Provider, e.Message)
}

func (e *RateLimitError) Unwrap() error {
	return &ProviderError{Provider: e.Provider, StatusCode: 429, Message: e.Message}
}

// TimeoutError reports that a call exceeded its time budget.
type TimeoutError struct {
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("call timed out after %s", e.Budget)
}

// ValidationError reports tool arguments that failed schema validation.
type ValidationError struct {
	Tool    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("tool %q: invalid arguments: %s", e.Tool, e.Message)
}

// ToolExecutionError reports a tool that was invoked and failed.
type ToolExecutionError struct {
	Tool string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %q: execution failed: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error {
	return e.Err
}

// MaxIterationsError reports an agent loop that hit its iteration bound
// before the model produced a final answer.
type MaxIterationsError struct {
	Limit int
}

func (e *MaxIterationsError) Error() string {
	return fmt.Sprintf("agent loop exceeded %d iterations", e.Limit)
}

// IsRetryable reports whether an error is worth retrying: rate limits,
// timeouts and provider-side 5xx failures. Everything else, auth rejections
// included, is permanent.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return false
	}
	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}
	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return true
	}
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.StatusCode >= 500 && provErr.StatusCode < 600
	}
	return false
}
