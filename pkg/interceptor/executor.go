package interceptor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/harun/loom/internal/observability"
	"github.com/harun/loom/internal/tracing"
	"github.com/harun/loom/pkg/llm"
)

const tracerName = "loom/interceptor"

// ExecutorConfig configures an Executor.
type ExecutorConfig struct {
	Interceptors []Interceptor
	Logger       zerolog.Logger
}

// Executor drives a model call through the interceptor chain.
type Executor struct {
	interceptors []Interceptor
	logger       zerolog.Logger
}

// NewExecutor creates an executor with a fixed chain.
func NewExecutor(cfg ExecutorConfig) *Executor {
	observability.EnsureRegistered()
	return &Executor{
		interceptors: cfg.Interceptors,
		logger:       cfg.Logger,
	}
}

// Execute is a convenience for one-off calls through an ad hoc chain.
func Execute(ctx context.Context, model llm.ChatModel, messages []llm.Message, interceptors []Interceptor, opts llm.ChatOptions) (*llm.Response, error) {
	return NewExecutor(ExecutorConfig{Interceptors: interceptors}).Execute(ctx, model, messages, opts)
}

// Execute runs one model call through the chain and returns exactly one of a
// response or an error.
func (e *Executor) Execute(ctx context.Context, model llm.ChatModel, messages []llm.Message, opts llm.ChatOptions) (*llm.Response, error) {
	if model == nil {
		return nil, fmt.Errorf("execute: model is nil")
	}

	call := newContext(model, messages, opts)
	call.Set(MetaStart, time.Now())

	info := model.Describe()
	ctx = tracing.WithCallID(ctx, call.ID())
	ctx, span := tracing.StartSpan(ctx, tracerName, "llm.call",
		attribute.String("llm.provider", info.Provider),
		attribute.String("llm.model", info.Model),
		attribute.Int("llm.messages", len(messages)),
	)
	defer span.End()

	logger := tracing.LoggerFromContext(ctx, e.logger)
	start := time.Now()

	entered := e.enter(ctx, call)

	if !call.Terminated() && call.Err() == nil {
		e.invoke(ctx, call)
	}

	if call.Err() != nil {
		e.recoverErr(ctx, call, entered)
	}

	e.leave(ctx, call, entered)

	duration := time.Since(start)
	if err := call.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.RecordRequest(info.Provider, duration, false)
		logger.Error().
			Str("call_id", call.ID()).
			Dur("duration", duration).
			Err(err).
			Msg("Model call failed")
		return nil, err
	}

	if resp := call.Response(); resp != nil {
		observability.RecordRequest(info.Provider, duration, true)
		if resp.Usage != nil {
			observability.RecordTokens(info.Provider, resp.Usage.InputTokens, resp.Usage.OutputTokens)
		}
		logger.Debug().
			Str("call_id", call.ID()).
			Dur("duration", duration).
			Bool("cache_hit", call.GetBool(MetaCacheHit)).
			Msg("Model call completed")
		return resp, nil
	}

	// The chain finished with neither a response nor an error.
	err := fmt.Errorf("execute: chain finished without response or error")
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	observability.RecordRequest(info.Provider, duration, false)
	return nil, err
}

// enter runs OnEnter hooks forward and returns how many interceptors
// entered. Termination and hook failure both stop the walk; the count still
// includes the interceptor that stopped it so reverse phases reach it.
func (e *Executor) enter(ctx context.Context, call *Context) int {
	entered := 0
	for _, ic := range e.interceptors {
		entered++
		if err := ic.OnEnter(ctx, call); err != nil {
			call.SetErr(err)
			break
		}
		if call.Terminated() {
			break
		}
	}
	return entered
}

// invoke performs the model call, enforcing the metadata-published time
// budget when present.
func (e *Executor) invoke(ctx context.Context, call *Context) {
	messages := call.EffectiveMessages()
	opts := call.EffectiveOptions()

	budget, ok := call.TimeoutBudget()
	if !ok || budget <= 0 {
		resp, err := call.Model().Send(ctx, messages, opts)
		if err != nil {
			call.SetErr(err)
			return
		}
		call.SetResponse(resp)
		return
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	type outcome struct {
		resp *llm.Response
		err  error
	}
	done := make(chan outcome, 1)

	go func() {
		resp, err := call.Model().Send(timeoutCtx, messages, opts)
		done <- outcome{resp: resp, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			if errors.Is(out.err, context.DeadlineExceeded) && ctx.Err() == nil {
				out.err = &llm.TimeoutError{Budget: budget}
			}
			call.SetErr(out.err)
			return
		}
		call.SetResponse(out.resp)
	case <-timeoutCtx.Done():
		if err := ctx.Err(); err != nil {
			call.SetErr(err)
			return
		}
		call.SetErr(&llm.TimeoutError{Budget: budget})
	}
}

// recoverErr runs OnError hooks in reverse over the entered prefix. The walk
// stops as soon as a hook clears the error.
func (e *Executor) recoverErr(ctx context.Context, call *Context, entered int) {
	for i := entered - 1; i >= 0 && call.Err() != nil; i-- {
		if err := e.interceptors[i].OnError(ctx, call); err != nil {
			call.SetErr(err)
		}
	}
}

// leave runs OnLeave hooks in reverse over the entered prefix. A failing
// leave hook replaces the pending outcome with its error.
func (e *Executor) leave(ctx context.Context, call *Context, entered int) {
	for i := entered - 1; i >= 0; i-- {
		if err := e.interceptors[i].OnLeave(ctx, call); err != nil {
			e.logger.Error().
				Str("interceptor", e.interceptors[i].Name()).
				Err(err).
				Msg("Leave hook failed")
			call.SetErr(err)
		}
	}
}
