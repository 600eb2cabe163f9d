package llm

import "strings"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// StopReason reports why a model stopped generating.
type StopReason string

const (
	StopEndTurn       StopReason = "end_turn"
	StopToolUse       StopReason = "tool_use"
	StopMaxTokens     StopReason = "max_tokens"
	StopStopSequence  StopReason = "stop_sequence"
	StopContentFilter StopReason = "content_filter"
	StopUnknown       StopReason = "unknown"
)

// ContentBlock is one element of a multi-part message body.
// Type is "text" or "image"; image blocks carry base64 data plus a media type.
type ContentBlock struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
}

// TextBlock builds a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: "text", Text: text}
}

// ImageBlock builds an image content block from base64-encoded data.
func ImageBlock(mediaType, data string) ContentBlock {
	return ContentBlock{Type: "image", MediaType: mediaType, Data: data}
}

// Message represents one turn in a conversation.
//
// Content carries plain text; Blocks, when non-empty, carries an ordered
// multi-part body and takes precedence over Content. Tool-role messages set
// ToolCallID to the call they answer; assistant messages that requested tools
// carry the calls in ToolCalls.
type Message struct {
	Role       Role           `json:"role"`
	Content    string         `json:"content"`
	Blocks     []ContentBlock `json:"blocks,omitempty"`
	Name       string         `json:"name,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall     `json:"tool_calls,omitempty"`
}

// SystemMessage builds a system-role message.
func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

// UserMessage builds a user-role message.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// AssistantMessage builds an assistant-role message.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// ToolMessage builds a tool-role message answering the given call ID.
func ToolMessage(toolCallID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: toolCallID}
}

// Text flattens the message body to plain text. Multi-part bodies contribute
// their text blocks in order; image blocks are skipped.
func (m Message) Text() string {
	if len(m.Blocks) == 0 {
		return m.Content
	}
	var sb strings.Builder
	for _, b := range m.Blocks {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	out := m
	if m.Blocks != nil {
		out.Blocks = make([]ContentBlock, len(m.Blocks))
		copy(out.Blocks, m.Blocks)
	}
	if m.ToolCalls != nil {
		out.ToolCalls = make([]ToolCall, len(m.ToolCalls))
		for i, tc := range m.ToolCalls {
			out.ToolCalls[i] = tc.Clone()
		}
	}
	return out
}

// CloneMessages returns a deep copy of a conversation slice.
func CloneMessages(messages []Message) []Message {
	if messages == nil {
		return nil
	}
	out := make([]Message, len(messages))
	for i, m := range messages {
		out[i] = m.Clone()
	}
	return out
}

// ToolCall represents a tool invocation requested by the model.
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// Clone returns a copy with its own arguments map.
func (tc ToolCall) Clone() ToolCall {
	out := tc
	if tc.Arguments != nil {
		out.Arguments = make(map[string]interface{}, len(tc.Arguments))
		for k, v := range tc.Arguments {
			out.Arguments[k] = v
		}
	}
	return out
}

// FunctionSchema describes one callable function exposed to the model.
type FunctionSchema struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// ToolSchema is the wire-level tool descriptor sent to providers.
type ToolSchema struct {
	Type     string         `json:"type"`
	Function FunctionSchema `json:"function"`
}

// ToolChoice constrains how the model may use declared tools.
type ToolChoice string

const (
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceNone     ToolChoice = "none"
	ToolChoiceRequired ToolChoice = "required"
)

// ChatOptions carries the per-request generation parameters.
// The zero value means provider defaults everywhere.
type ChatOptions struct {
	Temperature    float64      `json:"temperature,omitempty"`
	MaxTokens      int          `json:"max_tokens,omitempty"`
	TopP           float64      `json:"top_p,omitempty"`
	StopSequences  []string     `json:"stop_sequences,omitempty"`
	SystemPrompt   string       `json:"system_prompt,omitempty"`
	Tools          []ToolSchema `json:"tools,omitempty"`
	ToolChoice     ToolChoice   `json:"tool_choice,omitempty"`
	ResponseFormat string       `json:"response_format,omitempty"`
}

// Clone returns a deep copy of the options.
func (o ChatOptions) Clone() ChatOptions {
	out := o
	if o.StopSequences != nil {
		out.StopSequences = make([]string, len(o.StopSequences))
		copy(out.StopSequences, o.StopSequences)
	}
	if o.Tools != nil {
		out.Tools = make([]ToolSchema, len(o.Tools))
		for i, t := range o.Tools {
			ct := t
			if t.Function.Parameters != nil {
				params := make(map[string]interface{}, len(t.Function.Parameters))
				for k, v := range t.Function.Parameters {
					params[k] = v
				}
				ct.Function.Parameters = params
			}
			out.Tools[i] = ct
		}
	}
	return out
}

// Usage tracks token consumption for one model call.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
	CacheTokens  int `json:"cache_tokens,omitempty"`
}

// Add accumulates another usage record into this one.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
	u.CacheTokens += other.CacheTokens
}

// Response is the result of one model call.
type Response struct {
	ID         string     `json:"id,omitempty"`
	Model      string     `json:"model"`
	Content    string     `json:"content"`
	StopReason StopReason `json:"stop_reason"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	Usage      *Usage     `json:"usage,omitempty"`
}

// Text returns the textual content of the response.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return r.Content
}

// HasToolCalls reports whether the model requested tool execution.
func (r *Response) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}

// ModelInfo describes a ChatModel backend.
type ModelInfo struct {
	Provider     string   `json:"provider"`
	Model        string   `json:"model"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// Supports reports whether the backend advertises a capability.
func (mi ModelInfo) Supports(capability string) bool {
	for _, c := range mi.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}
