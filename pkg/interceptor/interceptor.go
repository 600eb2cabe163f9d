package interceptor

import "context"

// Interceptor is one middleware unit wrapping a model call.
//
// OnEnter runs before the model in registration order and may transform the
// call, terminate it with a response, or fail it. OnError runs in reverse
// order when a pending error exists and may recover (clear the error after
// storing a response) or replace it. OnLeave runs in reverse order for every
// entered interceptor regardless of outcome.
type Interceptor interface {
	Name() string
	OnEnter(ctx context.Context, call *Context) error
	OnError(ctx context.Context, call *Context) error
	OnLeave(ctx context.Context, call *Context) error
}

// Base provides no-op hook implementations for embedding. Interceptors embed
// it and override the hooks they care about.
type Base struct{}

func (Base) OnEnter(ctx context.Context, call *Context) error { return nil }

func (Base) OnError(ctx context.Context, call *Context) error { return nil }

func (Base) OnLeave(ctx context.Context, call *Context) error { return nil }
