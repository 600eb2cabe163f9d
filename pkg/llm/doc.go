// Package llm defines the provider-neutral chat types shared by every layer:
// messages, options, responses, usage, streaming and the typed error kinds.
//
// Invariants:
// - Message and ChatOptions values handed to a ChatModel are never mutated by it.
// - Response.ToolCalls is the only signal that a model wants tool execution.
// - Every error surfaced by a provider maps to exactly one typed kind.
//
// Usage:
//
//	resp, err := model.Send(ctx, []llm.Message{llm.UserMessage("hi")}, llm.ChatOptions{})
//	if err != nil {
//		var rle *llm.RateLimitError
//		if errors.As(err, &rle) { ... }
//	}
//	_ = resp
package llm
