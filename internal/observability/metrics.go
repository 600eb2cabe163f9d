// Package observability exposes Prometheus metrics for model calls, the
// interceptor chain, tool execution and agent runs.
package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	tokensTotal     *prometheus.CounterVec
	costTotal       *prometheus.CounterVec

	cacheTotal         *prometheus.CounterVec
	retryTotal         *prometheus.CounterVec
	rateLimitWaitTotal *prometheus.CounterVec

	toolExecutionTotal    *prometheus.CounterVec
	toolExecutionDuration *prometheus.HistogramVec

	agentRunTotal      *prometheus.CounterVec
	agentRunDuration   *prometheus.HistogramVec
	agentIterations    *prometheus.HistogramVec
	agentErrorsTotal   *prometheus.CounterVec
	scheduledRunsTotal *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			requestTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "llm_request_total",
					Help: "Total model calls by provider and status.",
				},
				[]string{"provider", "status"},
			),
			requestDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "llm_request_duration_seconds",
					Help:    "Model call duration in seconds by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			tokensTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "llm_tokens_total",
					Help: "Total tokens consumed by provider and direction.",
				},
				[]string{"provider", "direction"},
			),
			costTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "llm_cost_usd_total",
					Help: "Accumulated request cost in USD by provider and model.",
				},
				[]string{"provider", "model"},
			),
			cacheTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "llm_cache_total",
					Help: "Response cache lookups by outcome.",
				},
				[]string{"outcome"},
			),
			retryTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "llm_retry_total",
					Help: "Retry attempts by provider.",
				},
				[]string{"provider"},
			),
			rateLimitWaitTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "llm_rate_limit_wait_total",
					Help: "Calls that waited on the client-side rate limiter.",
				},
				[]string{"provider"},
			),
			toolExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_execution_total",
					Help: "Total tool executions by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "tool_execution_duration_seconds",
					Help:    "Tool execution duration in seconds by tool.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			agentRunTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agent_run_total",
					Help: "Total agent runs by status.",
				},
				[]string{"status"},
			),
			agentRunDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "agent_run_duration_seconds",
					Help:    "Agent run duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"status"},
			),
			agentIterations: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "agent_run_iterations",
					Help:    "Model round trips per agent run.",
					Buckets: []float64{1, 2, 3, 5, 8, 10, 15, 20},
				},
				[]string{"status"},
			),
			agentErrorsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "agent_errors_total",
					Help: "Total agent run errors by kind.",
				},
				[]string{"kind"},
			),
			scheduledRunsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "scheduled_runs_total",
					Help: "Scheduled agent runs by job and status.",
				},
				[]string{"job", "status"},
			),
		}

		prometheus.MustRegister(
			m.requestTotal,
			m.requestDuration,
			m.tokensTotal,
			m.costTotal,
			m.cacheTotal,
			m.retryTotal,
			m.rateLimitWaitTotal,
			m.toolExecutionTotal,
			m.toolExecutionDuration,
			m.agentRunTotal,
			m.agentRunDuration,
			m.agentIterations,
			m.agentErrorsTotal,
			m.scheduledRunsTotal,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

// MetricsHandler returns the Prometheus scrape handler.
func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordRequest records one model call outcome.
func RecordRequest(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	m.requestTotal.WithLabelValues(provider, statusLabel(success)).Inc()
	m.requestDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordTokens records token consumption for one call.
func RecordTokens(provider string, inputTokens, outputTokens int) {
	m := getMetrics()
	m.tokensTotal.WithLabelValues(provider, "input").Add(float64(inputTokens))
	m.tokensTotal.WithLabelValues(provider, "output").Add(float64(outputTokens))
}

// RecordCost records the USD cost of one call.
func RecordCost(provider, model string, usd float64) {
	m := getMetrics()
	m.costTotal.WithLabelValues(provider, model).Add(usd)
}

// RecordCacheLookup records a cache hit or miss.
func RecordCacheLookup(hit bool) {
	m := getMetrics()
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.cacheTotal.WithLabelValues(outcome).Inc()
}

// RecordRetry records one retry attempt against a provider.
func RecordRetry(provider string) {
	m := getMetrics()
	m.retryTotal.WithLabelValues(provider).Inc()
}

// RecordRateLimitWait records a call delayed by the local rate limiter.
func RecordRateLimitWait(provider string) {
	m := getMetrics()
	m.rateLimitWaitTotal.WithLabelValues(provider).Inc()
}

// RecordToolExecution records one tool invocation.
func RecordToolExecution(tool string, duration time.Duration, success bool) {
	m := getMetrics()
	m.toolExecutionTotal.WithLabelValues(tool, statusLabel(success)).Inc()
	m.toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordAgentRun records one completed agent run.
func RecordAgentRun(duration time.Duration, iterations int, success bool) {
	m := getMetrics()
	status := statusLabel(success)
	m.agentRunTotal.WithLabelValues(status).Inc()
	m.agentRunDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.agentIterations.WithLabelValues(status).Observe(float64(iterations))
}

// RecordAgentError records a failed agent run by error kind.
func RecordAgentError(kind string) {
	m := getMetrics()
	m.agentErrorsTotal.WithLabelValues(kind).Inc()
}

// RecordScheduledRun records one scheduler-triggered run.
func RecordScheduledRun(job string, success bool) {
	m := getMetrics()
	m.scheduledRunsTotal.WithLabelValues(job, statusLabel(success)).Inc()
}
