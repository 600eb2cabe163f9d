package openai

import (
	"encoding/json"
	"fmt"

	sdk "github.com/openai/openai-go"

	"github.com/harun/loom/pkg/llm"
)

// buildParams assembles one Chat Completions request.
// llm.ToolChoiceNone is honored by withholding the tool declarations.
func buildParams(model string, messages []llm.Message, opts llm.ChatOptions) sdk.ChatCompletionNewParams {
	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(model),
		Messages: convertMessages(messages, opts.SystemPrompt),
	}

	if opts.MaxTokens > 0 {
		params.MaxTokens = sdk.Int(int64(opts.MaxTokens))
	}
	if opts.Temperature > 0 {
		params.Temperature = sdk.Float(opts.Temperature)
	}
	if opts.TopP > 0 {
		params.TopP = sdk.Float(opts.TopP)
	}
	if len(opts.Tools) > 0 && opts.ToolChoice != llm.ToolChoiceNone {
		params.Tools = convertTools(opts.Tools)
	}

	return params
}

func convertMessages(messages []llm.Message, systemPrompt string) []sdk.ChatCompletionMessageParamUnion {
	converted := []sdk.ChatCompletionMessageParamUnion{}

	if systemPrompt != "" {
		converted = append(converted, sdk.SystemMessage(systemPrompt))
	}

	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			converted = append(converted, sdk.SystemMessage(msg.Text()))
		case llm.RoleUser:
			converted = append(converted, sdk.UserMessage(msg.Text()))
		case llm.RoleAssistant:
			if len(msg.ToolCalls) > 0 {
				converted = append(converted, assistantWithCalls(msg))
			} else {
				converted = append(converted, sdk.AssistantMessage(msg.Content))
			}
		case llm.RoleTool:
			converted = append(converted, sdk.ToolMessage(msg.ToolCallID, msg.Content))
		}
	}

	return converted
}

// assistantWithCalls rebuilds a prior tool-call turn. The helper constructors
// cannot carry tool calls, so the completion message is built and converted.
func assistantWithCalls(msg llm.Message) sdk.ChatCompletionMessageParamUnion {
	toolCalls := make([]sdk.ChatCompletionMessageToolCall, 0, len(msg.ToolCalls))
	for _, tc := range msg.ToolCalls {
		arguments, err := json.Marshal(tc.Arguments)
		if err != nil {
			arguments = []byte("{}")
		}
		toolCalls = append(toolCalls, sdk.ChatCompletionMessageToolCall{
			ID:   tc.ID,
			Type: "function",
			Function: sdk.ChatCompletionMessageToolCallFunction{
				Name:      tc.Name,
				Arguments: string(arguments),
			},
		})
	}

	message := sdk.ChatCompletionMessage{
		Role:      "assistant",
		Content:   msg.Content,
		ToolCalls: toolCalls,
	}
	return message.ToParam()
}

func convertTools(tools []llm.ToolSchema) []sdk.ChatCompletionToolParam {
	converted := make([]sdk.ChatCompletionToolParam, 0, len(tools))

	for _, t := range tools {
		converted = append(converted, sdk.ChatCompletionToolParam{
			Type: "function",
			Function: sdk.FunctionDefinitionParam{
				Name:        t.Function.Name,
				Description: sdk.String(t.Function.Description),
				Parameters:  sdk.FunctionParameters(t.Function.Parameters),
			},
		})
	}

	return converted
}

func convertResponse(completion *sdk.ChatCompletion) (*llm.Response, error) {
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("openai: no response choices returned")
	}
	choice := completion.Choices[0]

	toolCalls := []llm.ToolCall{}
	for _, tc := range choice.Message.ToolCalls {
		var args map[string]interface{}
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			args = map[string]interface{}{}
		}
		toolCalls = append(toolCalls, llm.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}

	response := &llm.Response{
		ID:         completion.ID,
		Model:      completion.Model,
		Content:    choice.Message.Content,
		StopReason: convertFinishReason(string(choice.FinishReason)),
		Usage: &llm.Usage{
			InputTokens:  int(completion.Usage.PromptTokens),
			OutputTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:  int(completion.Usage.TotalTokens),
		},
	}
	if len(toolCalls) > 0 {
		response.ToolCalls = toolCalls
	}
	return response, nil
}

func convertFinishReason(reason string) llm.StopReason {
	switch reason {
	case "stop":
		return llm.StopEndTurn
	case "tool_calls", "function_call":
		return llm.StopToolUse
	case "length":
		return llm.StopMaxTokens
	case "content_filter":
		return llm.StopContentFilter
	default:
		return llm.StopUnknown
	}
}
