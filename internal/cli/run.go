package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/harun/loom/internal/config"
	"github.com/harun/loom/internal/logger"
	"github.com/harun/loom/internal/observability"
	"github.com/harun/loom/internal/tracing"
	"github.com/harun/loom/pkg/agent"
	"github.com/harun/loom/pkg/cachestore"
	"github.com/harun/loom/pkg/interceptor"
	"github.com/harun/loom/pkg/llm"
	"github.com/harun/loom/pkg/llm/anthropic"
	"github.com/harun/loom/pkg/llm/llmtest"
	"github.com/harun/loom/pkg/llm/openai"
	"github.com/harun/loom/pkg/pricing"
	"github.com/harun/loom/pkg/tool"
)

var (
	runProvider      string
	runModel         string
	runSystem        string
	runMaxIterations int
	runTemperature   float64
	runMaxTokens     int
	runStream        bool
	runFake          bool
	runNoTools       bool
)

var runCmd = &cobra.Command{
	Use:   "run [prompt]",
	Short: "Run a prompt through the agent loop",
	Long: `Run sends a prompt through the configured interceptor pipeline and
drives the tool-calling loop until the model produces a final answer.

With --stream the prompt is sent as a single streaming call without tools
and text is printed as it arrives. With --fake a scripted in-process
backend is used instead of a real provider, so no credentials are needed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runProvider, "provider", "", "override the configured provider (anthropic, openai)")
	runCmd.Flags().StringVar(&runModel, "model", "", "override the configured model")
	runCmd.Flags().StringVar(&runSystem, "system", "", "system prompt for this run")
	runCmd.Flags().IntVar(&runMaxIterations, "max-iterations", 0, "maximum model calls per run (0 uses the config value)")
	runCmd.Flags().Float64Var(&runTemperature, "temperature", 0, "sampling temperature (0 uses the config value)")
	runCmd.Flags().IntVar(&runMaxTokens, "max-tokens", 0, "response token cap (0 uses the config value)")
	runCmd.Flags().BoolVar(&runStream, "stream", false, "stream a single call without tools")
	runCmd.Flags().BoolVar(&runFake, "fake", false, "use the scripted fake backend instead of a real provider")
	runCmd.Flags().BoolVar(&runNoTools, "no-tools", false, "offer no tools to the model")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyRunFlags(cfg)

	// The fake backend needs no credentials.
	if !runFake {
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	lg, err := openLogger(cfg)
	if err != nil {
		return err
	}
	defer lg.Close()
	zl := lg.Zerolog()

	stopTracing := initTracing(zl)
	defer stopTracing()

	model, err := buildModel(cfg, runFake, runStream)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	prompt := strings.Join(args, " ")
	opts := chatOptions(cfg)

	if runStream {
		return streamOnce(ctx, cmd, model, prompt, opts)
	}

	trail, err := openAuditTrail(cfg)
	if err != nil {
		return err
	}
	defer trail.Close()

	chain, cleanup, err := buildInterceptors(cfg, zl)
	if err != nil {
		return err
	}
	defer cleanup()

	var registry *tool.Registry
	if !runNoTools {
		registry, err = demoRegistry()
		if err != nil {
			return err
		}
	}

	loop, err := agent.New(agent.Config{
		Model:         model,
		Registry:      registry,
		MaxIterations: cfg.Agent.MaxIterations,
		Options:       opts,
		Interceptors:  chain,
		Logger:        zl,
	})
	if err != nil {
		return err
	}

	result, err := loop.Run(ctx, []llm.Message{llm.UserMessage(prompt)})
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.Response.Text())
	return nil
}

// loadConfig reads the config file named by the global flag and applies the
// log level override when one was given explicitly.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if rootCmd.PersistentFlags().Changed("log-level") {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

// openLogger builds the process logger from config and installs it globally.
func openLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    true,
		Redaction: cfg.Logging.Redaction,
	})
}

// initTracing starts the process-wide tracer provider and returns the
// shutdown hook. Spans degrade to no-ops when initialization fails.
func initTracing(zl zerolog.Logger) func() {
	if err := tracing.InitOpenTelemetry("loom"); err != nil {
		zl.Warn().Err(err).Msg("Failed to initialize tracing, continuing without distributed tracing")
	}
	return func() { _ = tracing.ShutdownOpenTelemetry(context.Background()) }
}

// openAuditTrail points the audit trail at a JSONL file in the data
// directory. Tool executions and agent runs are recorded there.
func openAuditTrail(cfg *config.Config) (*observability.Trail, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return observability.OpenTrail(filepath.Join(cfg.DataDir, "audit.jsonl"))
}

func applyRunFlags(cfg *config.Config) {
	if runProvider != "" {
		cfg.Provider = runProvider
	}
	if runModel != "" {
		cfg.Model = runModel
	}
	if runMaxIterations > 0 {
		cfg.Agent.MaxIterations = runMaxIterations
	}
}

func chatOptions(cfg *config.Config) llm.ChatOptions {
	opts := llm.ChatOptions{
		Temperature:  cfg.Generation.Temperature,
		MaxTokens:    cfg.Generation.MaxTokens,
		TopP:         cfg.Generation.TopP,
		SystemPrompt: cfg.Generation.SystemPrompt,
	}
	if runTemperature > 0 {
		opts.Temperature = runTemperature
	}
	if runMaxTokens > 0 {
		opts.MaxTokens = runMaxTokens
	}
	if runSystem != "" {
		opts.SystemPrompt = runSystem
	}
	return opts
}

func buildModel(cfg *config.Config, fake, stream bool) (llm.ChatModel, error) {
	if fake {
		return fakeModel(stream), nil
	}
	switch cfg.Provider {
	case "anthropic":
		return anthropic.New(anthropic.Config{
			APIKey:  cfg.Anthropic.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.Anthropic.BaseURL,
		})
	case "openai":
		return openai.New(openai.Config{
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.OpenAI.BaseURL,
		})
	}
	return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
}

// fakeModel returns a deterministic scripted backend. The agent script asks
// for one tool round before answering so the whole loop gets exercised; the
// stream script is a single text reply.
func fakeModel(stream bool) llm.ChatModel {
	if stream {
		return llmtest.NewScripted(
			llmtest.Reply("Scripted demo stream: pipeline and backend wiring look good."),
		)
	}
	return llmtest.NewScripted(
		llmtest.ReplyWithToolCalls("", llm.ToolCall{
			ID:        "demo-1",
			Name:      "current_time",
			Arguments: map[string]interface{}{"format": "rfc3339"},
		}),
		llmtest.Reply("Scripted demo finished: pipeline, tool registry and agent loop are wired correctly."),
	)
}

// buildInterceptors assembles the chain from config. Order matters: cache
// hits terminate the chain before the rate limiter spends a token, and the
// cost tracker only prices calls that actually reached the model.
func buildInterceptors(cfg *config.Config, zl zerolog.Logger) ([]interceptor.Interceptor, func(), error) {
	var chain []interceptor.Interceptor
	var cleanups []func()

	chain = append(chain, interceptor.NewLogging(zl))

	if cfg.Cache.Enabled {
		store, closeStore, err := buildCacheStore(cfg)
		if err != nil {
			return nil, nil, err
		}
		if closeStore != nil {
			cleanups = append(cleanups, closeStore)
		}
		chain = append(chain, interceptor.NewCache(interceptor.CacheConfig{
			TTL:   time.Duration(cfg.Cache.TTLSeconds) * time.Second,
			Store: store,
		}))
	}

	if cfg.RateLimit.Enabled {
		chain = append(chain, interceptor.NewRateLimiter(interceptor.RateLimiterConfig{
			MaxRequests: cfg.RateLimit.MaxRequests,
			Window:      time.Duration(cfg.RateLimit.WindowSeconds) * time.Second,
		}))
	}

	if cfg.Cost.Enabled {
		tracker, stopWatch, err := buildCostTracker(cfg, zl)
		if err != nil {
			return nil, nil, err
		}
		if stopWatch != nil {
			cleanups = append(cleanups, stopWatch)
		}
		chain = append(chain, tracker)
	}

	if cfg.Retry.Enabled {
		initial, max := cfg.Retry.RetryDelays()
		chain = append(chain, interceptor.NewRetry(interceptor.RetryConfig{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: initial,
			MaxDelay:     max,
			Multiplier:   cfg.Retry.Multiplier,
			Jitter:       cfg.Retry.Jitter,
		}))
	}

	if cfg.Timeout.Enabled {
		chain = append(chain, interceptor.NewTimeout(time.Duration(cfg.Timeout.Seconds)*time.Second))
	}

	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	return chain, cleanup, nil
}

func buildCacheStore(cfg *config.Config) (interceptor.Store, func(), error) {
	switch cfg.Cache.Store {
	case "", "memory":
		return cachestore.NewMemory(), nil, nil
	case "lru":
		store, err := cachestore.NewLRU(cfg.Cache.MaxEntries)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	case "sqlite":
		path := cfg.Cache.Path
		if path == "" {
			path = filepath.Join(cfg.DataDir, "cache.db")
		}
		store, err := cachestore.NewSQLite(path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown cache store %q", cfg.Cache.Store)
}

func buildCostTracker(cfg *config.Config, zl zerolog.Logger) (*interceptor.CostTracker, func(), error) {
	table := pricing.Default()
	var stop func()

	if cfg.Cost.PricingFile != "" {
		loaded, err := pricing.Load(cfg.Cost.PricingFile)
		if err != nil {
			return nil, nil, fmt.Errorf("load pricing file: %w", err)
		}
		table = loaded

		if cfg.Cost.WatchFile {
			watcher, err := pricing.Watch(table, cfg.Cost.PricingFile, zl)
			if err != nil {
				return nil, nil, err
			}
			stop = func() { _ = watcher.Stop() }
		}
	}

	var tracker *interceptor.CostTracker
	var warnOnce sync.Once
	tracker = interceptor.NewCostTracker(interceptor.CostConfig{
		Table: table,
		OnCost: func(cost float64, usage llm.Usage) {
			if cfg.Cost.BudgetUSD <= 0 {
				return
			}
			if total := tracker.Stats().TotalCost; total > cfg.Cost.BudgetUSD {
				warnOnce.Do(func() {
					zl.Warn().
						Float64("budget_usd", cfg.Cost.BudgetUSD).
						Float64("total_usd", total).
						Msg("Cost budget exceeded")
				})
			}
		},
	})
	return tracker, stop, nil
}

// streamOnce sends the prompt as one streaming call without tools and prints
// text deltas as they arrive.
func streamOnce(ctx context.Context, cmd *cobra.Command, model llm.ChatModel, prompt string, opts llm.ChatOptions) error {
	reader, err := model.Stream(ctx, []llm.Message{llm.UserMessage(prompt)}, opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for reader.Next() {
		ev := reader.Current()
		if ev.Type == llm.StreamTextDelta {
			fmt.Fprint(out, ev.Text)
		}
	}
	if err := reader.Err(); err != nil {
		return err
	}
	fmt.Fprintln(out)
	return nil
}
