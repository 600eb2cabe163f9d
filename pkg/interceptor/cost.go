package interceptor

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/harun/loom/internal/observability"
	"github.com/harun/loom/pkg/llm"
	"github.com/harun/loom/pkg/pricing"
	"github.com/harun/loom/pkg/tokens"
)

// CostConfig configures the CostTracker interceptor.
type CostConfig struct {
	// Table maps provider and model to per-token rates. Defaults to the
	// built-in table.
	Table *pricing.Table
	// OnCost, when set, is invoked after every priced call.
	OnCost func(cost float64, usage llm.Usage)
	// Estimator counts tokens for responses that carry no usage. Defaults
	// to a fresh estimator.
	Estimator *tokens.Estimator
}

// CostStats is a snapshot of accumulated spend.
type CostStats struct {
	TotalCost float64
	Requests  int
	Usage     llm.Usage
}

// CostTracker prices each successful call and accumulates running totals.
// Unknown models price at zero rather than failing the call.
type CostTracker struct {
	Base
	table  *pricing.Table
	onCost func(cost float64, usage llm.Usage)
	est    *tokens.Estimator

	mu    sync.Mutex
	stats CostStats
}

// NewCostTracker creates a CostTracker.
func NewCostTracker(cfg CostConfig) *CostTracker {
	if cfg.Table == nil {
		cfg.Table = pricing.Default()
	}
	if cfg.Estimator == nil {
		cfg.Estimator = tokens.NewEstimator()
	}
	return &CostTracker{table: cfg.Table, onCost: cfg.OnCost, est: cfg.Estimator}
}

func (c *CostTracker) Name() string { return "cost_tracker" }

// OnLeave prices the response. Responses without usage are estimated from
// the prompt and response text, and the call is marked as estimated.
func (c *CostTracker) OnLeave(ctx context.Context, call *Context) error {
	resp := call.Response()
	if call.Err() != nil || resp == nil {
		return nil
	}

	info := call.Model().Describe()
	var usage llm.Usage
	if resp.Usage != nil {
		usage = *resp.Usage
	} else {
		usage = c.est.EstimateUsage(info.Model, call.EffectiveMessages(), resp.Text())
		call.Set(MetaCostEstimated, true)
	}

	cost := c.table.Cost(info.Provider, info.Model, usage)

	c.mu.Lock()
	c.stats.TotalCost += cost
	c.stats.Requests++
	c.stats.Usage.Add(usage)
	total := c.stats.TotalCost
	c.mu.Unlock()

	call.Set(MetaCost, cost)
	call.Set(MetaCostTotal, total)
	observability.RecordCost(info.Provider, info.Model, cost)

	if c.onCost != nil {
		c.onCost(cost, usage)
	}
	log.Debug().
		Str("call_id", call.ID()).
		Str("model", info.Model).
		Float64("cost_usd", cost).
		Float64("total_usd", total).
		Msg("Priced model call")
	return nil
}

// Stats returns a snapshot of accumulated totals.
func (c *CostTracker) Stats() CostStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
