package openai

import (
	"context"
	"fmt"

	sdk "github.com/openai/openai-go"

	"github.com/harun/loom/pkg/llm"
)

// streamBuffer bounds how far the wire reader may run ahead of the consumer.
const streamBuffer = 32

// Stream performs one Chat Completions call over server-sent events, relaying
// text deltas as they arrive. Tool calls are assembled from the accumulated
// completion and delivered after the wire stream ends, followed by the final
// response.
func (c *Client) Stream(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (*llm.StreamReader, error) {
	params := buildParams(c.model, messages, opts)
	// Usage arrives on a trailing chunk only when asked for.
	params.StreamOptions = sdk.ChatCompletionStreamOptionsParam{IncludeUsage: sdk.Bool(true)}

	stream := c.api.Chat.Completions.NewStreaming(ctx, params, requestOptions(opts)...)
	reader, writer := llm.NewStreamPipe(streamBuffer)

	go func() {
		defer stream.Close()

		acc := sdk.ChatCompletionAccumulator{}
		for stream.Next() {
			chunk := stream.Current()
			if !acc.AddChunk(chunk) {
				writer.Close(nil, fmt.Errorf("openai: stream chunk could not be accumulated"))
				return
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			if delta := chunk.Choices[0].Delta.Content; delta != "" {
				if !writer.Emit(ctx, llm.StreamEvent{Type: llm.StreamTextDelta, Text: delta}) {
					writer.Close(nil, ctx.Err())
					return
				}
			}
		}
		if err := stream.Err(); err != nil {
			writer.Close(nil, mapError(err))
			return
		}

		response, err := convertResponse(&acc.ChatCompletion)
		if err != nil {
			writer.Close(nil, err)
			return
		}
		for i := range response.ToolCalls {
			if !writer.Emit(ctx, llm.StreamEvent{Type: llm.StreamToolCall, ToolCall: &response.ToolCalls[i]}) {
				writer.Close(nil, ctx.Err())
				return
			}
		}
		writer.Emit(ctx, llm.StreamEvent{Type: llm.StreamDone})
		writer.Close(response, nil)
	}()

	return reader, nil
}
