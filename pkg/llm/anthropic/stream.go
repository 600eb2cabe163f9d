package anthropic

import (
	"context"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/harun/loom/pkg/llm"
)

// streamBuffer bounds how far the wire reader may run ahead of the consumer.
const streamBuffer = 32

// Stream performs one Messages API call over server-sent events, relaying
// text deltas as they arrive. Tool calls are assembled from the accumulated
// message and delivered after the wire stream ends, followed by the final
// response.
func (c *Client) Stream(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (*llm.StreamReader, error) {
	stream := c.api.Messages.NewStreaming(ctx, buildParams(c.model, messages, opts))
	reader, writer := llm.NewStreamPipe(streamBuffer)

	go func() {
		defer stream.Close()

		accumulated := sdk.Message{}
		for stream.Next() {
			event := stream.Current()
			if err := accumulated.Accumulate(event); err != nil {
				writer.Close(nil, fmt.Errorf("anthropic: accumulate stream: %w", err))
				return
			}

			switch ev := event.AsAny().(type) {
			case sdk.ContentBlockDeltaEvent:
				switch delta := ev.Delta.AsAny().(type) {
				case sdk.TextDelta:
					if delta.Text == "" {
						continue
					}
					if !writer.Emit(ctx, llm.StreamEvent{Type: llm.StreamTextDelta, Text: delta.Text}) {
						writer.Close(nil, ctx.Err())
						return
					}
				}
			}
		}
		if err := stream.Err(); err != nil {
			writer.Close(nil, mapError(err))
			return
		}

		response := convertResponse(&accumulated)
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
