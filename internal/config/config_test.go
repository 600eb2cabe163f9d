package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "anthropic", cfg.Provider)
	assert.NotEmpty(t, cfg.Model)
	assert.True(t, cfg.Retry.Enabled)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2.0, cfg.Retry.Multiplier)
	assert.True(t, cfg.Timeout.Enabled)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, "memory", cfg.Cache.Store)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.True(t, cfg.Cost.Enabled)
	assert.Equal(t, 10, cfg.Agent.MaxIterations)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Redaction)
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Anthropic.APIKey = "sk-ant-test123"
		return cfg
	}

	t.Run("valid config", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := valid()
		cfg.Provider = "gemini"
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing model", func(t *testing.T) {
		cfg := valid()
		cfg.Model = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("missing API key for selected provider", func(t *testing.T) {
		cfg := valid()
		cfg.Provider = "openai"
		assert.Error(t, cfg.Validate())
	})

	t.Run("retry attempts below one", func(t *testing.T) {
		cfg := valid()
		cfg.Retry.MaxAttempts = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("zero timeout", func(t *testing.T) {
		cfg := valid()
		cfg.Timeout.Seconds = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("unknown cache store", func(t *testing.T) {
		cfg := valid()
		cfg.Cache.Enabled = true
		cfg.Cache.Store = "redis"
		assert.Error(t, cfg.Validate())
	})

	t.Run("rate limit without window", func(t *testing.T) {
		cfg := valid()
		cfg.RateLimit.Enabled = true
		cfg.RateLimit.WindowSeconds = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("job without cron expression", func(t *testing.T) {
		cfg := valid()
		cfg.Jobs = []JobConfig{{Name: "daily", Prompt: "summarize"}}
		assert.Error(t, cfg.Validate())
	})

	t.Run("disabled sections skip their checks", func(t *testing.T) {
		cfg := valid()
		cfg.Retry.Enabled = false
		cfg.Retry.MaxAttempts = 0
		cfg.Timeout.Enabled = false
		cfg.Timeout.Seconds = 0
		assert.NoError(t, cfg.Validate())
	})
}

func TestAPIKeyFor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Anthropic.APIKey = "sk-ant-a"
	cfg.OpenAI.APIKey = "sk-o"

	assert.Equal(t, "sk-ant-a", cfg.APIKeyFor("anthropic"))
	assert.Equal(t, "sk-o", cfg.APIKeyFor("openai"))
	assert.Equal(t, "", cfg.APIKeyFor("gemini"))
}

func TestRetryDelays(t *testing.T) {
	cfg := DefaultConfig()
	initial, max := cfg.Retry.RetryDelays()
	assert.Equal(t, int64(500), initial.Milliseconds())
	assert.Equal(t, int64(30000), max.Milliseconds())
}

func TestConfigString(t *testing.T) {
	cfg := DefaultConfig()
	s := cfg.String()
	assert.Contains(t, s, "provider")
	assert.Contains(t, s, "anthropic")
}
