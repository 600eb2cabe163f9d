// Package openai adapts the OpenAI Chat Completions API to the llm.ChatModel
// contract.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/harun/loom/pkg/llm"
)

const providerName = "openai"

// Config holds the connection settings for one OpenAI-backed model.
type Config struct {
	// APIKey authenticates against the API. Required.
	APIKey string
	// Model is the model identifier sent with every request. Required.
	Model string
	// BaseURL overrides the API endpoint for proxies and compatible gateways.
	BaseURL string
}

// Client is an llm.ChatModel backed by the OpenAI Chat Completions API.
type Client struct {
	api   sdk.Client
	model string
}

// New creates a Client from the given config.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai model is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Client{
		api:   sdk.NewClient(opts...),
		model: cfg.Model,
	}, nil
}

// Send performs one blocking Chat Completions call.
func (c *Client) Send(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (*llm.Response, error) {
	completion, err := c.api.Chat.Completions.New(ctx, buildParams(c.model, messages, opts), requestOptions(opts)...)
	if err != nil {
		return nil, mapError(err)
	}
	return convertResponse(completion)
}

// Describe reports the backend identity and capabilities.
func (c *Client) Describe() llm.ModelInfo {
	return llm.ModelInfo{
		Provider:     providerName,
		Model:        c.model,
		Capabilities: []string{llm.CapabilityTools, llm.CapabilityStreaming},
	}
}

// requestOptions carries parameters that have no plain field on the generated
// params struct. Stop is a string-or-array union on the wire; the array form
// is set directly on the request body.
func requestOptions(opts llm.ChatOptions) []option.RequestOption {
	reqOpts := []option.RequestOption{}
	if len(opts.StopSequences) > 0 {
		reqOpts = append(reqOpts, option.WithJSONSet("stop", opts.StopSequences))
	}
	return reqOpts
}

// mapError converts SDK failures into the typed error kinds callers and the
// retry interceptor classify on. Non-API failures keep their cause chain so
// context cancellation stays detectable.
func mapError(err error) error {
	var apiErr *sdk.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("openai: request failed: %w", err)
	}

	switch apiErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &llm.AuthError{Provider: providerName, StatusCode: apiErr.StatusCode, Message: apiErr.Error()}
	case http.StatusTooManyRequests:
		return &llm.RateLimitError{Provider: providerName, RetryAfter: retryAfter(apiErr.Response), Message: apiErr.Error()}
	default:
		return &llm.ProviderError{Provider: providerName, StatusCode: apiErr.StatusCode, Message: apiErr.Error()}
	}
}

func retryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	seconds, err := strconv.Atoi(resp.Header.Get("retry-after"))
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
