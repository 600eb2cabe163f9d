package llm

import "context"

// Capability names advertised through ModelInfo.
const (
	CapabilityTools     = "tools"
	CapabilityStreaming = "streaming"
	CapabilityVision    = "vision"
)

// ChatModel is the contract every model backend implements.
//
// Send performs one blocking chat completion. Stream performs the same call
// but delivers partial output through a StreamReader. Implementations must
// honor ctx cancellation and must not mutate the messages or options they
// receive.
type ChatModel interface {
	Send(ctx context.Context, messages []Message, opts ChatOptions) (*Response, error)
	Stream(ctx context.Context, messages []Message, opts ChatOptions) (*StreamReader, error)
	Describe() ModelInfo
}
