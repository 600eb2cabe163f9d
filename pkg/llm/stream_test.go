package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamPipe(t *testing.T) {
	t.Run("should deliver events in order then final response", func(t *testing.T) {
		reader, writer := NewStreamPipe(4)
		go func() {
			ctx := context.Background()
			writer.Emit(ctx, StreamEvent{Type: StreamTextDelta, Text: "hel"})
			writer.Emit(ctx, StreamEvent{Type: StreamTextDelta, Text: "lo"})
			writer.Close(&Response{Content: "hello", StopReason: StopEndTurn}, nil)
		}()

		var got string
		for reader.Next() {
			ev := reader.Current()
			if ev.Type == StreamTextDelta {
				got += ev.Text
			}
		}
		require.NoError(t, reader.Err())
		require.NotNil(t, reader.Response())
		assert.Equal(t, "hello", got)
		assert.Equal(t, "hello", reader.Response().Content)
	})

	t.Run("should surface terminal error after exhaustion", func(t *testing.T) {
		reader, writer := NewStreamPipe(0)
		wantErr := errors.New("connection reset")
		go writer.Close(nil, wantErr)

		assert.False(t, reader.Next())
		assert.Equal(t, wantErr, reader.Err())
		assert.Nil(t, reader.Response())
	})

	t.Run("should stop producer when consumer context is done", func(t *testing.T) {
		_, writer := NewStreamPipe(0)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		ok := writer.Emit(ctx, StreamEvent{Type: StreamTextDelta, Text: "x"})
		assert.False(t, ok)
	})
}

func TestStreamDrain(t *testing.T) {
	t.Run("should return final response", func(t *testing.T) {
		reader, writer := NewStreamPipe(2)
		go func() {
			writer.Emit(context.Background(), StreamEvent{Type: StreamTextDelta, Text: "hi"})
			writer.Close(&Response{Content: "hi"}, nil)
		}()
		resp, err := reader.Drain()
		require.NoError(t, err)
		assert.Equal(t, "hi", resp.Content)
	})

	t.Run("should return error on failed stream", func(t *testing.T) {
		reader, writer := NewStreamPipe(0)
		go writer.Close(nil, errors.New("upstream failed"))
		resp, err := reader.Drain()
		assert.Nil(t, resp)
		assert.Error(t, err)
	})
}
