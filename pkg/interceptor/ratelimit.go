package interceptor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/harun/loom/internal/observability"
)

// RateLimiterConfig configures the RateLimiter interceptor.
type RateLimiterConfig struct {
	// MaxRequests is the bucket capacity. Defaults to 60.
	MaxRequests int
	// Window is the horizon over which the bucket refills. Defaults to one
	// minute.
	Window time.Duration
}

// RateLimiter delays calls that would exceed MaxRequests per Window. It is a
// token bucket with proportional refill; calls wait for capacity instead of
// being rejected. Share one instance across executors to enforce a global
// limit.
type RateLimiter struct {
	Base
	maxRequests float64
	window      time.Duration

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
	history    []time.Time
}

// NewRateLimiter creates a RateLimiter with a full bucket.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 60
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &RateLimiter{
		maxRequests: float64(cfg.MaxRequests),
		window:      cfg.Window,
		tokens:      float64(cfg.MaxRequests),
		lastRefill:  time.Now(),
	}
}

func (r *RateLimiter) Name() string { return "rate_limiter" }

// OnEnter consumes one token, sleeping until one is available. The first
// wait runs until the oldest recorded call leaves the window; if the bucket
// is still empty after that, a full window is waited out. Sleeps happen
// outside the lock so unrelated calls are not blocked.
func (r *RateLimiter) OnEnter(ctx context.Context, call *Context) error {
	waited := false

	r.mu.Lock()
	r.refillLocked(time.Now())
	if r.tokens < 1 {
		wait := r.drainDelayLocked(time.Now())
		r.mu.Unlock()

		waited = true
		info := call.Model().Describe()
		observability.RecordRateLimitWait(info.Provider)
		log.Debug().
			Str("call_id", call.ID()).
			Dur("wait", wait).
			Msg("Rate limit reached, delaying call")
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}

		r.mu.Lock()
		r.refillLocked(time.Now())
		if r.tokens < 1 {
			r.mu.Unlock()
			if err := sleepCtx(ctx, r.window); err != nil {
				return err
			}
			r.mu.Lock()
			r.refillLocked(time.Now())
		}
	}
	r.tokens--
	r.history = append(r.history, time.Now())
	r.mu.Unlock()

	if waited {
		call.Set(MetaRateLimited, true)
	}
	return nil
}

// refillLocked adds tokens proportionally to the time elapsed since the last
// refill and drops history entries that left the window. A whole elapsed
// window resets the bucket.
func (r *RateLimiter) refillLocked(now time.Time) {
	elapsed := now.Sub(r.lastRefill)
	if elapsed <= 0 {
		return
	}
	if elapsed >= r.window {
		r.tokens = r.maxRequests
		r.history = nil
		r.lastRefill = now
		return
	}
	r.tokens += r.maxRequests * float64(elapsed) / float64(r.window)
	if r.tokens > r.maxRequests {
		r.tokens = r.maxRequests
	}
	r.lastRefill = now

	cutoff := now.Add(-r.window)
	i := 0
	for i < len(r.history) && !r.history[i].After(cutoff) {
		i++
	}
	if i > 0 {
		r.history = append(r.history[:0], r.history[i:]...)
	}
}

// drainDelayLocked returns how long to wait for the oldest recorded call to
// leave the window, or a full window when no history is available.
func (r *RateLimiter) drainDelayLocked(now time.Time) time.Duration {
	if len(r.history) > 0 {
		if d := r.history[0].Add(r.window).Sub(now); d > 0 {
			return d
		}
	}
	return r.window
}
