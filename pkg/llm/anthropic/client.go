// Package anthropic adapts the Anthropic Messages API to the llm.ChatModel
// contract.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/harun/loom/pkg/llm"
)

const providerName = "anthropic"

// DefaultMaxTokens bounds generation when the caller sets no limit; the
// Messages API rejects requests without one.
const DefaultMaxTokens = 4096

// Config holds the connection settings for one Anthropic-backed model.
type Config struct {
	// APIKey authenticates against the API. Required.
	APIKey string
	// Model is the model identifier sent with every request. Required.
	Model string
	// BaseURL overrides the API endpoint for proxies and compatible gateways.
	BaseURL string
}

// Client is an llm.ChatModel backed by the Anthropic Messages API.
type Client struct {
	api   sdk.Client
	model string
}

// New creates a Client from the given config.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("anthropic model is required")
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

// Send performs one blocking Messages API call.
func (c *Client) Send(ctx context.Context, messages []llm.Message, opts llm.ChatOptions) (*llm.Response, error) {
	response, err := c.api.Messages.New(ctx, buildParams(c.model, messages, opts))
	if err != nil {
		return nil, mapError(err)
	}
	return convertResponse(response), nil
}

// Describe reports the backend identity and capabilities.
func (c *Client) Describe() llm.ModelInfo {
	return llm.ModelInfo{
		Provider:     providerName,
		Model:        c.model,
		Capabilities: []string{llm.CapabilityTools, llm.CapabilityStreaming},
	}
}

// mapError converts SDK failures into the typed error kinds callers and the
// retry interceptor classify on. Non-API failures keep their cause chain so
// context cancellation stays detectable.
func mapError(err error) error {
	var apiErr *sdk.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("anthropic: request failed: %w", err)
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
