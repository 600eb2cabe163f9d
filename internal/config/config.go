// Package config defines the loom configuration file format and loader.
package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config represents the main loom configuration
type Config struct {
	// Default provider and model for new runs
	Provider string `json:"provider" mapstructure:"provider"` // anthropic, openai
	Model    string `json:"model" mapstructure:"model"`

	// Provider credentials
	Anthropic ProviderConfig `json:"anthropic" mapstructure:"anthropic"`
	OpenAI    ProviderConfig `json:"openai" mapstructure:"openai"`

	// Generation defaults applied to every request
	Generation GenerationConfig `json:"generation" mapstructure:"generation"`

	// Request pipeline settings
	Retry     RetryConfig     `json:"retry" mapstructure:"retry"`
	Timeout   TimeoutConfig   `json:"timeout" mapstructure:"timeout"`
	Cache     CacheConfig     `json:"cache" mapstructure:"cache"`
	RateLimit RateLimitConfig `json:"rate_limit" mapstructure:"rate_limit"`
	Cost      CostConfig      `json:"cost" mapstructure:"cost"`

	// Agent loop settings
	Agent AgentConfig `json:"agent" mapstructure:"agent"`

	// Scheduled runs
	Jobs []JobConfig `json:"jobs" mapstructure:"jobs"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ProviderConfig holds one provider's credentials.
type ProviderConfig struct {
	APIKey  string `json:"api_key" mapstructure:"api_key"`
	BaseURL string `json:"base_url" mapstructure:"base_url"`
}

// GenerationConfig holds default generation parameters.
type GenerationConfig struct {
	Temperature  float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens    int     `json:"max_tokens" mapstructure:"max_tokens"`
	TopP         float64 `json:"top_p" mapstructure:"top_p"`
	SystemPrompt string  `json:"system_prompt" mapstructure:"system_prompt"`
}

// RetryConfig controls the retry interceptor.
type RetryConfig struct {
	Enabled        bool    `json:"enabled" mapstructure:"enabled"`
	MaxAttempts    int     `json:"max_attempts" mapstructure:"max_attempts"`
	InitialDelayMS int     `json:"initial_delay_ms" mapstructure:"initial_delay_ms"`
	MaxDelayMS     int     `json:"max_delay_ms" mapstructure:"max_delay_ms"`
	Multiplier     float64 `json:"multiplier" mapstructure:"multiplier"`
	Jitter         float64 `json:"jitter" mapstructure:"jitter"`
}

// TimeoutConfig controls the per-call timeout interceptor.
type TimeoutConfig struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
	Seconds int  `json:"seconds" mapstructure:"seconds"`
}

// CacheConfig controls the response cache interceptor.
type CacheConfig struct {
	Enabled    bool   `json:"enabled" mapstructure:"enabled"`
	TTLSeconds int    `json:"ttl_seconds" mapstructure:"ttl_seconds"`
	Store      string `json:"store" mapstructure:"store"` // memory, lru, sqlite
	MaxEntries int    `json:"max_entries" mapstructure:"max_entries"`
	Path       string `json:"path" mapstructure:"path"` // sqlite only
}

// RateLimitConfig controls the client-side rate limiter.
type RateLimitConfig struct {
	Enabled       bool `json:"enabled" mapstructure:"enabled"`
	MaxRequests   int  `json:"max_requests" mapstructure:"max_requests"`
	WindowSeconds int  `json:"window_seconds" mapstructure:"window_seconds"`
}

// CostConfig controls cost tracking.
type CostConfig struct {
	Enabled     bool    `json:"enabled" mapstructure:"enabled"`
	PricingFile string  `json:"pricing_file" mapstructure:"pricing_file"`
	WatchFile   bool    `json:"watch_file" mapstructure:"watch_file"`
	BudgetUSD   float64 `json:"budget_usd" mapstructure:"budget_usd"` // 0 disables the budget warning
}

// AgentConfig holds agent loop settings.
type AgentConfig struct {
	MaxIterations int `json:"max_iterations" mapstructure:"max_iterations"`
}

// JobConfig describes one scheduled agent run.
type JobConfig struct {
	Name   string `json:"name" mapstructure:"name"`
	Cron   string `json:"cron" mapstructure:"cron"`
	Prompt string `json:"prompt" mapstructure:"prompt"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Provider: "anthropic",
		Model:    "claude-3-5-sonnet-20241022",
		Generation: GenerationConfig{
			Temperature: 0.7,
			MaxTokens:   4096,
		},
		Retry: RetryConfig{
			Enabled:        true,
			MaxAttempts:    3,
			InitialDelayMS: 500,
			MaxDelayMS:     30000,
			Multiplier:     2.0,
			Jitter:         0.1,
		},
		Timeout: TimeoutConfig{
			Enabled: true,
			Seconds: 120,
		},
		Cache: CacheConfig{
			Enabled:    false,
			TTLSeconds: 300,
			Store:      "memory",
			MaxEntries: 1024,
		},
		RateLimit: RateLimitConfig{
			Enabled:       false,
			MaxRequests:   60,
			WindowSeconds: 60,
		},
		Cost: CostConfig{
			Enabled: true,
		},
		Agent: AgentConfig{
			MaxIterations: 10,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Redaction: true,
		},
	}
}

// RetryDelays returns the retry delays as durations.
func (c RetryConfig) RetryDelays() (initial, max time.Duration) {
	return time.Duration(c.InitialDelayMS) * time.Millisecond,
		time.Duration(c.MaxDelayMS) * time.Millisecond
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// APIKeyFor returns the configured key for a provider.
func (c *Config) APIKeyFor(provider string) string {
	switch provider {
	case "anthropic":
		return c.Anthropic.APIKey
	case "openai":
		return c.OpenAI.APIKey
	}
	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Provider != "anthropic" && c.Provider != "openai" {
		return fmt.Errorf("invalid provider %q (must be: anthropic, openai)", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.APIKeyFor(c.Provider) == "" {
		return fmt.Errorf("no API key configured for provider %q", c.Provider)
	}

	if c.Retry.Enabled {
		if c.Retry.MaxAttempts < 1 {
			return fmt.Errorf("retry.max_attempts must be at least 1")
		}
		if c.Retry.Multiplier < 1 {
			return fmt.Errorf("retry.multiplier must be at least 1")
		}
	}

	if c.Timeout.Enabled && c.Timeout.Seconds <= 0 {
		return fmt.Errorf("timeout.seconds must be positive")
	}

	if c.Cache.Enabled {
		switch c.Cache.Store {
		case "memory", "lru", "sqlite":
		default:
			return fmt.Errorf("invalid cache.store %q (must be: memory, lru, sqlite)", c.Cache.Store)
		}
		if c.Cache.Store == "sqlite" && c.Cache.Path == "" && c.DataDir == "" {
			return fmt.Errorf("cache.path is required for the sqlite store")
		}
		if c.Cache.Store == "lru" && c.Cache.MaxEntries <= 0 {
			return fmt.Errorf("cache.max_entries must be positive for the lru store")
		}
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.MaxRequests <= 0 {
			return fmt.Errorf("rate_limit.max_requests must be positive")
		}
		if c.RateLimit.WindowSeconds <= 0 {
			return fmt.Errorf("rate_limit.window_seconds must be positive")
		}
	}

	if c.Agent.MaxIterations < 1 {
		return fmt.Errorf("agent.max_iterations must be at least 1")
	}

	for i, job := range c.Jobs {
		if job.Name == "" {
			return fmt.Errorf("job %d: name is required", i)
		}
		if job.Cron == "" {
			return fmt.Errorf("job %s: cron expression is required", job.Name)
		}
		if job.Prompt == "" {
			return fmt.Errorf("job %s: prompt is required", job.Name)
		}
	}

	return nil
}
