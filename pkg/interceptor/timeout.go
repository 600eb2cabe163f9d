package interceptor

import (
	"context"
	"time"
)

// DefaultTimeout is the per-call budget used when none is configured.
const DefaultTimeout = 2 * time.Minute

// Timeout publishes a per-call time budget into call metadata. The executor
// enforces it around the model invocation; the interceptor itself holds no
// state and never fails.
type Timeout struct {
	Base
	budget time.Duration
}

// NewTimeout creates a Timeout interceptor. Non-positive durations fall back
// to DefaultTimeout.
func NewTimeout(budget time.Duration) *Timeout {
	if budget <= 0 {
		budget = DefaultTimeout
	}
	return &Timeout{budget: budget}
}

func (t *Timeout) Name() string { return "timeout" }

func (t *Timeout) OnEnter(ctx context.Context, call *Context) error {
	call.SetTimeout(t.budget)
	return nil
}
