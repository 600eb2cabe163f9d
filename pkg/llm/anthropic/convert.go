package anthropic

import (
	"encoding/json"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/harun/loom/pkg/llm"
)

// buildParams assembles one Messages API request. System-role messages have
// no message slot on this API and are hoisted into the system parameter;
// llm.ToolChoiceNone is honored by withholding the tool declarations.
func buildParams(model string, messages []llm.Message, opts llm.ChatOptions) sdk.MessageNewParams {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(model),
		Messages:  convertMessages(messages),
		MaxTokens: int64(maxTokens),
	}

	if system := systemPrompt(messages, opts); system != "" {
		params.System = []sdk.TextBlockParam{
			{Text: system},
		}
	}
	if opts.Temperature > 0 {
		params.Temperature = sdk.Float(opts.Temperature)
	}
	if opts.TopP > 0 {
		params.TopP = sdk.Float(opts.TopP)
	}
	if len(opts.StopSequences) > 0 {
		params.StopSequences = opts.StopSequences
	}
	if len(opts.Tools) > 0 && opts.ToolChoice != llm.ToolChoiceNone {
		params.Tools = convertTools(opts.Tools)
	}

	return params
}

// systemPrompt joins the option-level prompt with any system-role messages,
// in conversation order.
func systemPrompt(messages []llm.Message, opts llm.ChatOptions) string {
	parts := []string{}
	if opts.SystemPrompt != "" {
		parts = append(parts, opts.SystemPrompt)
	}
	for _, msg := range messages {
		if msg.Role == llm.RoleSystem && msg.Text() != "" {
			parts = append(parts, msg.Text())
		}
	}
	return strings.Join(parts, "\n\n")
}

func convertMessages(messages []llm.Message) []sdk.MessageParam {
	converted := make([]sdk.MessageParam, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			continue // Hoisted into the system parameter
		case llm.RoleUser:
			converted = append(converted, sdk.NewUserMessage(
				sdk.NewTextBlock(msg.Text()),
			))
		case llm.RoleAssistant:
			if len(msg.ToolCalls) > 0 {
				blocks := []sdk.ContentBlockParamUnion{}
				if msg.Content != "" {
					blocks = append(blocks, sdk.NewTextBlock(msg.Content))
				}
				for _, tc := range msg.ToolCalls {
					blocks = append(blocks, sdk.NewToolUseBlock(tc.ID, tc.Arguments, tc.Name))
				}
				converted = append(converted, sdk.MessageParam{
					Role:    sdk.MessageParamRoleAssistant,
					Content: blocks,
				})
			} else {
				converted = append(converted, sdk.MessageParam{
					Role: sdk.MessageParamRoleAssistant,
					Content: []sdk.ContentBlockParamUnion{
						sdk.NewTextBlock(msg.Content),
					},
				})
			}
		case llm.RoleTool:
			// Tool results travel as user-authored result blocks.
			converted = append(converted, sdk.NewUserMessage(
				sdk.NewToolResultBlock(msg.ToolCallID, msg.Content, false),
			))
		}
	}

	return converted
}

// convertTools maps wire-level tool schemas onto the input_schema shape the
// Messages API expects.
func convertTools(tools []llm.ToolSchema) []sdk.ToolUnionParam {
	converted := make([]sdk.ToolUnionParam, 0, len(tools))

	for _, t := range tools {
		var properties interface{}
		if t.Function.Parameters != nil {
			properties = t.Function.Parameters["properties"]
		}

		toolParam := sdk.ToolParam{
			Name:        t.Function.Name,
			Description: sdk.String(t.Function.Description),
			InputSchema: sdk.ToolInputSchemaParam{
				Properties: properties,
				Required:   requiredNames(t.Function.Parameters),
			},
		}
		converted = append(converted, sdk.ToolUnionParam{OfTool: &toolParam})
	}

	return converted
}

// requiredNames extracts the required property list from a JSON schema map.
// Schemas built in Go carry []string; schemas decoded from JSON carry
// []interface{}.
func requiredNames(parameters map[string]interface{}) []string {
	if parameters == nil {
		return nil
	}
	switch req := parameters["required"].(type) {
	case []string:
		return req
	case []interface{}:
		names := make([]string, 0, len(req))
		for _, r := range req {
			if name, ok := r.(string); ok {
				names = append(names, name)
			}
		}
		return names
	}
	return nil
}

func convertResponse(message *sdk.Message) *llm.Response {
	var text strings.Builder
	toolCalls := []llm.ToolCall{}

	for _, block := range message.Content {
		switch b := block.AsAny().(type) {
		case sdk.TextBlock:
			text.WriteString(b.Text)
		case sdk.ToolUseBlock:
			var args map[string]interface{}
			if err := json.Unmarshal([]byte(b.JSON.Input.Raw()), &args); err != nil {
				args = map[string]interface{}{}
			}
			toolCalls = append(toolCalls, llm.ToolCall{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: args,
			})
		}
	}

	response := &llm.Response{
		ID:         message.ID,
		Model:      string(message.Model),
		Content:    text.String(),
		StopReason: convertStopReason(string(message.StopReason)),
		Usage: &llm.Usage{
			InputTokens:  int(message.Usage.InputTokens),
			OutputTokens: int(message.Usage.OutputTokens),
			TotalTokens:  int(message.Usage.InputTokens + message.Usage.OutputTokens),
			CacheTokens:  int(message.Usage.CacheReadInputTokens),
		},
	}
	if len(toolCalls) > 0 {
		response.ToolCalls = toolCalls
	}
	return response
}

func convertStopReason(reason string) llm.StopReason {
	switch reason {
	case "end_turn":
		return llm.StopEndTurn
	case "tool_use":
		return llm.StopToolUse
	case "max_tokens":
		return llm.StopMaxTokens
	case "stop_sequence":
		return llm.StopStopSequence
	case "refusal":
		return llm.StopContentFilter
	default:
		return llm.StopUnknown
	}
}
