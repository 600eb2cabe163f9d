package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/harun/loom/internal/observability"
	"github.com/harun/loom/internal/tracing"
	"github.com/harun/loom/pkg/interceptor"
	"github.com/harun/loom/pkg/llm"
	"github.com/harun/loom/pkg/tool"
)

// DefaultMaxIterations bounds runs whose model never stops asking for tools.
const DefaultMaxIterations = 10

// Config holds loop configuration.
type Config struct {
	// Model answers the dispatched calls.
	Model llm.ChatModel
	// Registry resolves the tools the model may request. Optional; without
	// it the model is offered no tools.
	Registry *tool.Registry
	// MaxIterations bounds the number of model calls per run. Defaults to
	// DefaultMaxIterations.
	MaxIterations int
	// Options are passed to every model call. Tool schemas from the
	// registry are attached on top.
	Options llm.ChatOptions
	// Interceptors, when set, wrap every dispatch in an executor chain.
	Interceptors []interceptor.Interceptor
	// Observer receives per-iteration callbacks.
	Observer *Observer
	Logger   zerolog.Logger
}

// Loop executes agent runs against a fixed model and tool registry.
type Loop struct {
	model         llm.ChatModel
	registry      *tool.Registry
	maxIterations int
	opts          llm.ChatOptions
	executor      *interceptor.Executor
	observer      *Observer
	logger        zerolog.Logger

	mu    sync.RWMutex
	state State
}

// New creates a loop.
func New(cfg Config) (*Loop, error) {
	observability.EnsureRegistered()

	if cfg.Model == nil {
		return nil, fmt.Errorf("model is required")
	}

	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	var exec *interceptor.Executor
	if len(cfg.Interceptors) > 0 {
		exec = interceptor.NewExecutor(interceptor.ExecutorConfig{
			Interceptors: cfg.Interceptors,
			Logger:       cfg.Logger,
		})
	}

	return &Loop{
		model:         cfg.Model,
		registry:      cfg.Registry,
		maxIterations: maxIterations,
		opts:          cfg.Options,
		executor:      exec,
		observer:      cfg.Observer,
		logger:        cfg.Logger,
		state:         StateDispatching,
	}, nil
}

// State returns the loop's current lifecycle state.
func (l *Loop) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

// Run drives the loop until the model answers without tool calls, the
// iteration bound is hit, or the context is canceled.
func (l *Loop) Run(ctx context.Context, messages []llm.Message) (*Result, error) {
	if tracing.GetTraceID(ctx) == "" {
		ctx = tracing.WithTraceID(ctx, tracing.NewTraceID())
	}
	ctx = tracing.NewRunContext(ctx)

	info := l.model.Describe()
	ctx, span := tracing.StartSpan(
		ctx,
		"loom/agent",
		"agent.run",
		attribute.String("llm.provider", info.Provider),
		attribute.String("llm.model", info.Model),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, l.logger)

	start := time.Now()
	result, iterations, err := l.run(ctx, logger, messages)
	duration := time.Since(start)

	runID := tracing.GetRunID(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.RecordAgentRun(duration, iterations, false)
		observability.RecordRunAudit(ctx, runID, "failed", map[string]interface{}{
			"iterations": iterations,
			"error":      err.Error(),
		})
		logger.Error().
			Int("iterations", iterations).
			Dur("duration", duration).
			Err(err).
			Msg("Agent run failed")
		return nil, err
	}

	observability.RecordAgentRun(duration, iterations, true)
	observability.RecordRunAudit(ctx, runID, "completed", map[string]interface{}{
		"iterations": iterations,
		"tool_calls": len(result.ToolCalls),
	})
	logger.Info().
		Int("iterations", iterations).
		Int("tool_calls", len(result.ToolCalls)).
		Dur("duration", duration).
		Msg("Agent run completed")
	return result, nil
}

func (l *Loop) run(ctx context.Context, logger zerolog.Logger, messages []llm.Message) (*Result, int, error) {
	history := llm.CloneMessages(messages)
	opts := l.opts.Clone()
	if l.registry != nil {
		opts.Tools = l.registry.Schemas()
	}

	var allCalls []llm.ToolCall
	iterations := 0

	for {
		// Check for abort
		if err := ctx.Err(); err != nil {
			l.setState(StateFailed)
			return nil, iterations, err
		}

		iterations++
		if iterations > l.maxIterations {
			l.setState(StateFailed)
			return nil, iterations, &llm.MaxIterationsError{Limit: l.maxIterations}
		}

		l.setState(StateDispatching)
		logger.Debug().
			Int("iteration", iterations).
			Int("messages", len(history)).
			Msg("Dispatching model call")

		resp, err := l.dispatch(ctx, history, opts)
		if err != nil {
			l.setState(StateFailed)
			return nil, iterations, err
		}

		if l.observer != nil && l.observer.OnResponse != nil {
			l.observer.OnResponse(iterations, resp)
		}

		// No tool calls - the run is complete
		if !resp.HasToolCalls() {
			history = append(history, llm.AssistantMessage(resp.Text()))
			l.setState(StateDone)
			return &Result{
				Response:   resp,
				Messages:   history,
				Iterations: iterations,
				ToolCalls:  allCalls,
			}, iterations, nil
		}

		l.setState(StateToolExecuting)
		logger.Debug().
			Int("iteration", iterations).
			Int("tool_calls", len(resp.ToolCalls)).
			Msg("Executing requested tools")

		if l.observer != nil && l.observer.OnToolCall != nil {
			for _, call := range resp.ToolCalls {
				l.observer.OnToolCall(call)
			}
		}
		allCalls = append(allCalls, resp.ToolCalls...)

		assistant := llm.AssistantMessage(resp.Content)
		assistant.ToolCalls = resp.ToolCalls
		history = append(history, assistant)

		history = append(history, tool.ExecuteCalls(ctx, l.registry, resp.ToolCalls)...)
	}
}

// dispatch routes one model call through the interceptor chain when
// configured, else straight to the model.
func (l *Loop) dispatch(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (*llm.Response, error) {
	if l.executor != nil {
		return l.executor.Execute(ctx, l.model, messages, opts)
	}
	return l.model.Send(ctx, messages, opts)
}
