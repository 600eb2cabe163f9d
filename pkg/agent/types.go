package agent

import (
	"github.com/harun/loom/pkg/llm"
)

// State identifies where the loop is in its lifecycle.
type State string

const (
	// StateDispatching means a model call is being prepared or in flight.
	StateDispatching State = "dispatching"
	// StateToolExecuting means requested tools are running.
	StateToolExecuting State = "tool_executing"
	// StateDone means the run finished with a final answer.
	StateDone State = "done"
	// StateFailed means the run ended with an error.
	StateFailed State = "failed"
)

// Observer receives loop events. Callbacks run inline on the loop goroutine
// and must return promptly; a nil callback is skipped.
type Observer struct {
	// OnResponse fires after every model response, final or not.
	OnResponse func(iteration int, resp *llm.Response)
	// OnToolCall fires for each tool call before it executes.
	OnToolCall func(call llm.ToolCall)
}

// Result is the outcome of a completed run.
type Result struct {
	// Response is the final model response, the one without tool calls.
	Response *llm.Response `json:"response"`
	// Messages is the full transcript: the initial messages plus every
	// assistant and tool message exchanged during the run.
	Messages []llm.Message `json:"messages"`
	// Iterations counts the model calls made.
	Iterations int `json:"iterations"`
	// ToolCalls lists every tool call in execution order.
	ToolCalls []llm.ToolCall `json:"tool_calls,omitempty"`
}
