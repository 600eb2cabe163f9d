// Package llmtest provides test doubles for the llm.ChatModel contract.
package llmtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harun/loom/pkg/llm"
)

// Step is one scripted model turn: a response or an error.
type Step struct {
	Response *llm.Response
	Err      error
}

// Reply builds a step answering with plain text.
func Reply(text string) Step {
	return Step{Response: &llm.Response{
		ID:         uuid.NewString(),
		Model:      "scripted",
		Content:    text,
		StopReason: llm.StopEndTurn,
		Usage:      &llm.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
	}}
}

// ReplyWithToolCalls builds a step in which the model requests tools.
func ReplyWithToolCalls(text string, calls ...llm.ToolCall) Step {
	return Step{Response: &llm.Response{
		ID:         uuid.NewString(),
		Model:      "scripted",
		Content:    text,
		StopReason: llm.StopToolUse,
		ToolCalls:  calls,
		Usage:      &llm.Usage{InputTokens: 10, OutputTokens: 5, TotalTokens: 15},
	}}
}

// Fail builds a step that returns err.
func Fail(err error) Step {
	return Step{Err: err}
}

// Call records the arguments of one Send or Stream invocation.
type Call struct {
	Messages []llm.Message
	Options  llm.ChatOptions
}

// ScriptedModel replays a fixed sequence of steps and records every call it
// receives. It is safe for concurrent use.
type ScriptedModel struct {
	// Delay, when positive, makes every call sleep before answering so
	// deadline behavior can be exercised.
	Delay time.Duration

	mu    sync.Mutex
	steps []Step
	next  int
	calls []Call
	info  llm.ModelInfo
}

// NewScripted builds a model that answers with the given steps in order.
func NewScripted(steps ...Step) *ScriptedModel {
	return &ScriptedModel{
		steps: steps,
		info: llm.ModelInfo{
			Provider:     "test",
			Model:        "scripted",
			Capabilities: []string{llm.CapabilityTools, llm.CapabilityStreaming},
		},
	}
}

// WithInfo overrides the advertised ModelInfo.
func (m *ScriptedModel) WithInfo(info llm.ModelInfo) *ScriptedModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.info = info
	return m
}

func (m *ScriptedModel) take(messages []llm.Message, opts llm.ChatOptions) (Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Messages: llm.CloneMessages(messages), Options: opts.Clone()})
	if m.next >= len(m.steps) {
		return Step{}, fmt.Errorf("llmtest: script exhausted after %d calls", len(m.steps))
	}
	step := m.steps[m.next]
	m.next++
	return step, nil
}

// Send implements llm.ChatModel.
func (m *ScriptedModel) Send(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (*llm.Response, error) {
	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	step, err := m.take(messages, opts)
	if err != nil {
		return nil, err
	}
	if step.Err != nil {
		return nil, step.Err
	}
	return step.Response, nil
}

// Stream implements llm.ChatModel by replaying the next step as a short
// stream: one text delta per response, tool calls as tool-call events.
func (m *ScriptedModel) Stream(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (*llm.StreamReader, error) {
	step, err := m.take(messages, opts)
	if err != nil {
		return nil, err
	}
	reader, writer := llm.NewStreamPipe(4)
	go func() {
		if m.Delay > 0 {
			select {
			case <-time.After(m.Delay):
			case <-ctx.Done():
				writer.Close(nil, ctx.Err())
				return
			}
		}
		if step.Err != nil {
			writer.Close(nil, step.Err)
			return
		}
		resp := step.Response
		if resp.Content != "" {
			if !writer.Emit(ctx, llm.StreamEvent{Type: llm.StreamTextDelta, Text: resp.Content}) {
				writer.Close(nil, ctx.Err())
				return
			}
		}
		for i := range resp.ToolCalls {
			tc := resp.ToolCalls[i]
			if !writer.Emit(ctx, llm.StreamEvent{Type: llm.StreamToolCall, ToolCall: &tc}) {
				writer.Close(nil, ctx.Err())
				return
			}
		}
		writer.Emit(ctx, llm.StreamEvent{Type: llm.StreamDone})
		writer.Close(resp, nil)
	}()
	return reader, nil
}

// Describe implements llm.ChatModel.
func (m *ScriptedModel) Describe() llm.ModelInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.info
}

// Calls returns a copy of the recorded calls.
func (m *ScriptedModel) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times Send or Stream was invoked.
func (m *ScriptedModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
