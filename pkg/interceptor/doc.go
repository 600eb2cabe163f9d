// Package interceptor implements the middleware chain around model calls:
// enter hooks forward, the model invocation, then error and leave hooks in
// reverse registration order.
//
// Invariants:
// - Enter runs forward; Error and Leave run reverse, and only over
//   interceptors whose Enter ran.
// - A terminated call skips the remaining Enter hooks and the model, but
//   every entered interceptor still sees Leave.
// - Exactly one of response or error is returned to the caller.
//
// Usage:
//
//	exec := interceptor.NewExecutor(interceptor.ExecutorConfig{
//		Interceptors: []interceptor.Interceptor{
//			interceptor.NewRetry(interceptor.RetryConfig{}),
//			interceptor.NewTimeout(30 * time.Second),
//		},
//	})
//	resp, err := exec.Execute(ctx, model, messages, opts)
package interceptor
