package interceptor

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// previewLimit bounds logged message and response excerpts.
const previewLimit = 120

// Logging emits structured request and response records. It observes only;
// the call is never modified.
type Logging struct {
	Base
	logger zerolog.Logger
}

// NewLogging creates a Logging interceptor writing to the given logger.
func NewLogging(logger zerolog.Logger) *Logging {
	return &Logging{logger: logger}
}

func (l *Logging) Name() string { return "logging" }

func (l *Logging) OnEnter(ctx context.Context, call *Context) error {
	messages := call.EffectiveMessages()
	event := l.logger.Info().
		Str("call_id", call.ID()).
		Str("model", call.Model().Describe().Model).
		Int("messages", len(messages))
	if len(messages) > 0 {
		event = event.Str("prompt", preview(messages[len(messages)-1].Text()))
	}
	event.Msg("Sending model request")
	return nil
}

func (l *Logging) OnError(ctx context.Context, call *Context) error {
	l.logger.Error().
		Str("call_id", call.ID()).
		Err(call.Err()).
		Msg("Model request failed")
	return nil
}

func (l *Logging) OnLeave(ctx context.Context, call *Context) error {
	event := l.logger.Info().
		Str("call_id", call.ID())
	if start, ok := call.Get(MetaStart); ok {
		if t, ok := start.(time.Time); ok {
			event = event.Dur("duration", time.Since(t))
		}
	}
	if call.GetBool(MetaCacheHit) {
		event = event.Bool("cache_hit", true)
	}
	if resp := call.Response(); resp != nil {
		event = event.Str("stop_reason", string(resp.StopReason)).
			Str("response", preview(resp.Text())).
			Int("tool_calls", len(resp.ToolCalls))
		if resp.Usage != nil {
			event = event.Int("input_tokens", resp.Usage.InputTokens).
				Int("output_tokens", resp.Usage.OutputTokens)
		}
	}
	if err := call.Err(); err != nil {
		event = event.Err(err)
	}
	event.Msg("Model request finished")
	return nil
}

// preview truncates long text for log output.
func preview(s string) string {
	if len(s) <= previewLimit {
		return s
	}
	return s[:previewLimit] + "..."
}
