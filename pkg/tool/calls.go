package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/harun/loom/internal/observability"
	"github.com/harun/loom/pkg/llm"
)

const maxOutputSize = 10 * 1024 // 10KB

// ExecuteCalls runs a batch of requested tool calls against the registry and
// returns one tool-role message per call, in request order. Unknown tools and
// failed executions become error-text messages; the batch itself never fails.
func ExecuteCalls(ctx context.Context, reg *Registry, calls []llm.ToolCall) []llm.Message {
	messages := make([]llm.Message, 0, len(calls))

	for _, call := range calls {
		messages = append(messages, executeCall(ctx, reg, call))
	}

	return messages
}

func executeCall(ctx context.Context, reg *Registry, call llm.ToolCall) llm.Message {
	start := time.Now()

	var t *Tool
	if reg != nil {
		t, _ = reg.Get(call.Name)
	}
	if t == nil {
		log.Error().Str("tool", call.Name).Msg("Tool not found")
		observability.RecordToolExecution(call.Name, time.Since(start), false)
		msg := llm.ToolMessage(call.ID, fmt.Sprintf("tool not found: %s", call.Name))
		msg.Name = call.Name
		return msg
	}

	result, err := t.Execute(ctx, call.Arguments)
	duration := time.Since(start)

	if err != nil {
		log.Error().
			Str("tool", call.Name).
			Dur("duration", duration).
			Err(err).
			Msg("Tool execution failed")
		observability.RecordToolExecution(call.Name, duration, false)
		observability.RecordToolAudit(ctx, call.Name, call.ID, "failure", nil)

		msg := llm.ToolMessage(call.ID, err.Error())
		msg.Name = call.Name
		return msg
	}

	content, truncated := serialize(result)

	log.Debug().
		Str("tool", call.Name).
		Dur("duration", duration).
		Bool("truncated", truncated).
		Msg("Tool execution completed")
	observability.RecordToolExecution(call.Name, duration, true)
	observability.RecordToolAudit(ctx, call.Name, call.ID, "success", nil)

	msg := llm.ToolMessage(call.ID, content)
	msg.Name = call.Name
	return msg
}

// serialize renders a tool result for the model: strings pass through,
// everything else is JSON encoded. Oversized output is cut at maxOutputSize.
func serialize(result interface{}) (string, bool) {
	var content string
	switch v := result.(type) {
	case nil:
		content = ""
	case string:
		content = v
	case []byte:
		content = string(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			content = fmt.Sprintf("%v", v)
		} else {
			content = string(data)
		}
	}

	if len(content) > maxOutputSize {
		return content[:maxOutputSize] + "\n... [output truncated]", true
	}
	return content, false
}
