// Package tokens estimates token counts with tiktoken encodings.
//
// Counts for OpenAI models are exact for the text portion; counts for other
// providers are approximations using the nearest encoding. Call sites that
// need billing-grade numbers should prefer the usage a provider reports and
// fall back to this package only when that is absent.
package tokens

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/harun/loom/pkg/llm"
)

// Chat-format overhead, per OpenAI's accounting: tokens per message, per
// role, and the trailing assistant priming.
const (
	tokensPerMessage = 3
	tokensPerRole    = 1
	tokensPriming    = 3
)

// Estimator counts tokens for text and conversations. It caches codecs per
// encoding and is safe for concurrent use.
type Estimator struct {
	mu     sync.RWMutex
	codecs map[tokenizer.Encoding]tokenizer.Codec
}

// NewEstimator creates an Estimator.
func NewEstimator() *Estimator {
	return &Estimator{
		codecs: make(map[tokenizer.Encoding]tokenizer.Codec),
	}
}

func (e *Estimator) codec(model string) (tokenizer.Codec, error) {
	encoding := encodingForModel(model)

	e.mu.RLock()
	if cached, ok := e.codecs[encoding]; ok {
		e.mu.RUnlock()
		return cached, nil
	}
	e.mu.RUnlock()

	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokenizer encoding: %w", err)
	}

	e.mu.Lock()
	e.codecs[encoding] = codec
	e.mu.Unlock()

	return codec, nil
}

// encodingForModel picks the tiktoken encoding closest to a model.
//
// Encoding reference:
// - O200kBase: GPT-4o, o-series and newer OpenAI models
// - Cl100kBase: GPT-4, GPT-3.5-turbo
// Claude models have no public tokenizer, so O200kBase serves as the nearest
// approximation.
func encodingForModel(model string) tokenizer.Encoding {
	model = strings.ToLower(model)

	switch {
	case strings.HasPrefix(model, "gpt-4o"),
		strings.HasPrefix(model, "gpt-4.1"),
		strings.HasPrefix(model, "gpt-5"),
		strings.HasPrefix(model, "o1"),
		strings.HasPrefix(model, "o3"),
		strings.HasPrefix(model, "o4"):
		return tokenizer.O200kBase
	case strings.HasPrefix(model, "gpt-4"), strings.HasPrefix(model, "gpt-3.5"):
		return tokenizer.Cl100kBase
	default:
		return tokenizer.O200kBase
	}
}

// CountText counts tokens in a plain string.
func (e *Estimator) CountText(model, text string) (int, error) {
	codec, err := e.codec(model)
	if err != nil {
		return 0, err
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// CountMessages estimates the prompt tokens of a conversation, including
// chat-format overhead and tool call payloads.
func (e *Estimator) CountMessages(model string, messages []llm.Message) (int, error) {
	codec, err := e.codec(model)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, msg := range messages {
		total += tokensPerMessage + tokensPerRole

		ids, _, err := codec.Encode(msg.Text())
		if err != nil {
			return 0, err
		}
		total += len(ids)

		for _, tc := range msg.ToolCalls {
			ids, _, _ := codec.Encode(tc.Name)
			total += len(ids)
			if tc.Arguments != nil {
				argBytes, _ := json.Marshal(tc.Arguments)
				ids, _, _ := codec.Encode(string(argBytes))
				total += len(ids)
			}
			total += 3 // tool call structure
		}
	}
	total += tokensPriming

	return total, nil
}

// EstimateUsage builds a usage record for a request/response pair when the
// provider reported none. Errors degrade to the chars/4 heuristic rather
// than failing the caller.
func (e *Estimator) EstimateUsage(model string, prompt []llm.Message, responseText string) llm.Usage {
	in, err := e.CountMessages(model, prompt)
	if err != nil {
		in = heuristic(messagesText(prompt))
	}
	out, err := e.CountText(model, responseText)
	if err != nil {
		out = heuristic(responseText)
	}
	return llm.Usage{
		InputTokens:  in,
		OutputTokens: out,
		TotalTokens:  in + out,
	}
}

func messagesText(messages []llm.Message) string {
	var sb strings.Builder
	for _, m := range messages {
		sb.WriteString(m.Text())
	}
	return sb.String()
}

// heuristic approximates one token per four characters.
func heuristic(text string) int {
	return (len(text) + 3) / 4
}
