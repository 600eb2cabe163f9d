package interceptor

import (
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/harun/loom/pkg/llm"
)

// Well-known metadata keys written by the built-in interceptors.
const (
	// MetaTimeout holds the time.Duration budget the engine enforces.
	MetaTimeout = "timeout"
	// MetaCacheHit marks a call served from cache.
	MetaCacheHit = "cache_hit"
	// MetaCacheKey holds the cache key computed on enter.
	MetaCacheKey = "cache_key"
	// MetaRetryAttempts counts extra model calls made by the retry
	// interceptor.
	MetaRetryAttempts = "retry_attempts"
	// MetaRateLimited marks a call that waited for a rate-limit token.
	MetaRateLimited = "rate_limited"
	// MetaCost holds the USD cost of this call.
	MetaCost = "cost_usd"
	// MetaCostTotal holds the tracker's running total after this call.
	MetaCostTotal = "cost_usd_total"
	// MetaCostEstimated is set when usage was estimated rather than reported.
	MetaCostEstimated = "cost_estimated"
	// MetaStart holds the time the engine accepted the call.
	MetaStart = "start_time"
)

// Context is the per-call unit of work threaded through the chain. It is not
// safe for concurrent mutation; the engine hands it to one hook at a time.
type Context struct {
	id    string
	model llm.ChatModel

	messages []llm.Message
	opts     llm.ChatOptions

	transformedMessages    []llm.Message
	hasTransformedMessages bool
	transformedOpts        *llm.ChatOptions

	response   *llm.Response
	err        error
	terminated bool

	metadata map[string]interface{}
}

func newContext(model llm.ChatModel, messages []llm.Message, opts llm.ChatOptions) *Context {
	id, err := gonanoid.New()
	if err != nil {
		id = "call"
	}
	return &Context{
		id:       id,
		model:    model,
		messages: messages,
		opts:     opts,
		metadata: make(map[string]interface{}),
	}
}

// ID returns the unique identifier of this call.
func (c *Context) ID() string { return c.id }

// Model returns the model this call targets.
func (c *Context) Model() llm.ChatModel { return c.model }

// Messages returns the original, untransformed conversation.
func (c *Context) Messages() []llm.Message { return c.messages }

// Options returns the original, untransformed options.
func (c *Context) Options() llm.ChatOptions { return c.opts }

// SetTransformedMessages substitutes the conversation the model will see.
// The original messages remain readable through Messages.
func (c *Context) SetTransformedMessages(messages []llm.Message) {
	c.transformedMessages = messages
	c.hasTransformedMessages = true
}

// SetTransformedOptions substitutes the options the model will see.
func (c *Context) SetTransformedOptions(opts llm.ChatOptions) {
	c.transformedOpts = &opts
}

// EffectiveMessages returns the transformed conversation when set, the
// original otherwise.
func (c *Context) EffectiveMessages() []llm.Message {
	if c.hasTransformedMessages {
		return c.transformedMessages
	}
	return c.messages
}

// EffectiveOptions returns the transformed options when set, the original
// otherwise.
func (c *Context) EffectiveOptions() llm.ChatOptions {
	if c.transformedOpts != nil {
		return *c.transformedOpts
	}
	return c.opts
}

// Response returns the pending response, if any.
func (c *Context) Response() *llm.Response { return c.response }

// SetResponse stores the pending response.
func (c *Context) SetResponse(resp *llm.Response) { c.response = resp }

// Err returns the pending error, if any.
func (c *Context) Err() error { return c.err }

// SetErr stores (or, with nil, clears) the pending error.
func (c *Context) SetErr(err error) { c.err = err }

// Terminate short-circuits the call with the given response: remaining Enter
// hooks and the model invocation are skipped.
func (c *Context) Terminate(resp *llm.Response) {
	c.response = resp
	c.terminated = true
}

// Terminated reports whether the call was short-circuited.
func (c *Context) Terminated() bool { return c.terminated }

// Set stores a metadata value.
func (c *Context) Set(key string, value interface{}) {
	c.metadata[key] = value
}

// Get reads a metadata value.
func (c *Context) Get(key string) (interface{}, bool) {
	v, ok := c.metadata[key]
	return v, ok
}

// GetBool reads a boolean metadata value, false when absent or mistyped.
func (c *Context) GetBool(key string) bool {
	v, ok := c.metadata[key]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// SetTimeout publishes the time budget the engine should enforce around the
// model invocation.
func (c *Context) SetTimeout(d time.Duration) {
	c.Set(MetaTimeout, d)
}

// TimeoutBudget reads the published time budget.
func (c *Context) TimeoutBudget() (time.Duration, bool) {
	v, ok := c.metadata[MetaTimeout]
	if !ok {
		return 0, false
	}
	d, ok := v.(time.Duration)
	return d, ok
}
