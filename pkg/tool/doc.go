// Package tool defines schema-validated tools the model can call, plus the
// registry and batch executor the agent loop drives.
//
// Invariants:
// - Arguments are validated against the tool's JSON schema before the
//   function runs.
// - A panicking tool surfaces as an execution error, never as a crash.
// - ExecuteCalls produces exactly one tool-role message per requested call,
//   tagged with the call ID, and never fails the batch.
//
// Usage:
//
//	search, _ := tool.New("search", "Search the web", params, searchFn)
//	reg, _ := tool.NewRegistry(search)
//	msgs := tool.ExecuteCalls(ctx, reg, resp.ToolCalls)
package tool
