package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/harun/loom/internal/observability"
	"github.com/harun/loom/pkg/agent"
	"github.com/harun/loom/pkg/llm"
	"github.com/harun/loom/pkg/schedule"
)

var jobsMetricsAddr string

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Run the scheduled jobs from config",
	Long: `Jobs starts the cron scheduler with the jobs from the config file and
runs each prompt through the agent loop on schedule. The command blocks
until interrupted.`,
	RunE: runJobs,
}

func init() {
	rootCmd.AddCommand(jobsCmd)

	jobsCmd.Flags().StringVar(&jobsMetricsAddr, "metrics-addr", "", "serve prometheus metrics and health checks on this address (e.g. :9090)")
}

func runJobs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Jobs) == 0 {
		return fmt.Errorf("no jobs configured")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	lg, err := openLogger(cfg)
	if err != nil {
		return err
	}
	defer lg.Close()
	zl := lg.Zerolog()

	stopTracing := initTracing(zl)
	defer stopTracing()

	trail, err := openAuditTrail(cfg)
	if err != nil {
		return err
	}
	defer trail.Close()

	if jobsMetricsAddr != "" {
		srv := serveMetrics(jobsMetricsAddr, zl)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	model, err := buildModel(cfg, false, false)
	if err != nil {
		return err
	}

	chain, cleanup, err := buildInterceptors(cfg, zl)
	if err != nil {
		return err
	}
	defer cleanup()

	registry, err := demoRegistry()
	if err != nil {
		return err
	}

	// One loop shared by every job, so the rate limiter, cache and cost
	// totals span the whole scheduler lifetime.
	loop, err := agent.New(agent.Config{
		Model:         model,
		Registry:      registry,
		MaxIterations: cfg.Agent.MaxIterations,
		Options:       chatOptions(cfg),
		Interceptors:  chain,
		Logger:        zl,
	})
	if err != nil {
		return err
	}

	runner := func(ctx context.Context, prompt string) error {
		result, err := loop.Run(ctx, []llm.Message{llm.UserMessage(prompt)})
		if err != nil {
			return err
		}
		zl.Debug().
			Int("iterations", result.Iterations).
			Int("answer_len", len(result.Response.Text())).
			Msg("Scheduled prompt answered")
		return nil
	}

	sched, err := schedule.New(schedule.Config{Runner: runner, Logger: zl})
	if err != nil {
		return err
	}
	for _, job := range cfg.Jobs {
		if _, err := sched.Add(job.Name, job.Cron, job.Prompt); err != nil {
			return fmt.Errorf("job %s: %w", job.Name, err)
		}
	}
	sched.Start()
	defer sched.Stop()

	out := cmd.OutOrStdout()
	for _, job := range sched.Jobs() {
		fmt.Fprintf(out, "%-16s %-16s next %s\n", job.Name, job.Expr, job.Next.Format(time.RFC3339))
	}
	fmt.Fprintln(out, "Scheduler running. Press Ctrl+C to stop.")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	return nil
}

// serveMetrics exposes the prometheus registry and a health endpoint on addr
// until the returned server is shut down.
func serveMetrics(addr string, zl zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		zl.Info().Str("addr", addr).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zl.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return srv
}
