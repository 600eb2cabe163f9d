package interceptor

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/harun/loom/internal/observability"
	"github.com/harun/loom/pkg/llm"
)

// RetryConfig configures the Retry interceptor.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the initial
	// call. Defaults to 3.
	MaxAttempts int
	// InitialDelay is the backoff before the first retry. Defaults to 500ms.
	InitialDelay time.Duration
	// MaxDelay caps the backoff. Defaults to 30s.
	MaxDelay time.Duration
	// Multiplier grows the backoff between retries. Defaults to 2.
	Multiplier float64
	// Jitter randomizes each delay by the given fraction in both
	// directions. Defaults to 0.1.
	Jitter float64
}

// Retry reissues failed model calls with exponential backoff. Only errors
// classified retryable by llm.IsRetryable are reattempted.
type Retry struct {
	Base
	cfg RetryConfig
}

// NewRetry creates a Retry interceptor, filling defaults for zero fields.
func NewRetry(cfg RetryConfig) *Retry {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 2
	}
	if cfg.Jitter <= 0 || cfg.Jitter > 1 {
		cfg.Jitter = 0.1
	}
	return &Retry{cfg: cfg}
}

func (r *Retry) Name() string { return "retry" }

// OnError reattempts the model call while the pending error stays retryable
// and attempts remain. Success clears the error and stores the fresh
// response. Exhaustion leaves the last error in place.
func (r *Retry) OnError(ctx context.Context, call *Context) error {
	info := call.Model().Describe()

	for attempt := 1; attempt < r.cfg.MaxAttempts; attempt++ {
		if !llm.IsRetryable(call.Err()) {
			return nil
		}

		delay := r.backoff(attempt - 1)
		log.Debug().
			Str("call_id", call.ID()).
			Int("attempt", attempt).
			Dur("delay", delay).
			Err(call.Err()).
			Msg("Retrying model call")
		if err := sleepCtx(ctx, delay); err != nil {
			return err
		}

		call.Set(MetaRetryAttempts, attempt)
		observability.RecordRetry(info.Provider)

		resp, err := call.Model().Send(ctx, call.EffectiveMessages(), call.EffectiveOptions())
		if err == nil {
			call.SetResponse(resp)
			call.SetErr(nil)
			return nil
		}
		call.SetErr(err)
	}
	return nil
}

// backoff computes the delay before retry n (zero-based), exponentially
// grown, capped, and jittered.
func (r *Retry) backoff(n int) time.Duration {
	delay := float64(r.cfg.InitialDelay) * math.Pow(r.cfg.Multiplier, float64(n))
	delay = math.Min(delay, float64(r.cfg.MaxDelay))
	if r.cfg.Jitter > 0 {
		delay += delay * r.cfg.Jitter * (2*rand.Float64() - 1)
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// sleepCtx sleeps for d unless the context is canceled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
