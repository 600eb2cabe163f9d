// Package agent drives the autonomous tool loop: dispatch a model call,
// execute the tools it requests, feed the results back, repeat until the
// model answers in plain text.
//
// Invariants:
// - The iteration counter advances before each dispatch; incrementing past
//   the bound fails the run with llm.MaxIterationsError.
// - A response without tool calls is the only normal exit.
// - Every requested tool call produces exactly one tool-role message.
//
// Usage:
//
//	loop, _ := agent.New(agent.Config{Model: model, Registry: registry})
//	result, err := loop.Run(ctx, []llm.Message{llm.UserMessage("hello")})
//	_ = result
package agent
