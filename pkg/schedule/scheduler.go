// Package schedule runs agent prompts on cron expressions. Each job fires a
// caller-supplied runner; a failing or panicking run never takes the
// scheduler down.
package schedule

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/harun/loom/internal/observability"
	"github.com/harun/loom/internal/tracing"
)

// Runner executes one scheduled prompt.
type Runner func(ctx context.Context, prompt string) error

// Job is a snapshot of a scheduled job.
type Job struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	Expr   string    `json:"expr"`
	Prompt string    `json:"prompt"`
	Next   time.Time `json:"next,omitempty"`
}

// Config holds scheduler configuration.
type Config struct {
	Runner Runner
	Logger zerolog.Logger
}

// Scheduler manages cron jobs over standard 5-field expressions.
type Scheduler struct {
	runner Runner
	logger zerolog.Logger
	parser cron.Parser
	cron   *cron.Cron

	mu      sync.Mutex
	jobs    map[string]Job
	entries map[string]cron.EntryID
	stopped bool
}

// New creates a scheduler. It does not start ticking until Start is called.
func New(cfg Config) (*Scheduler, error) {
	observability.EnsureRegistered()

	if cfg.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

	return &Scheduler{
		runner:  cfg.Runner,
		logger:  cfg.Logger,
		parser:  parser,
		cron:    cron.New(cron.WithParser(parser)),
		jobs:    make(map[string]Job),
		entries: make(map[string]cron.EntryID),
	}, nil
}

// Add registers a job. The expression is validated before the job is stored.
func (s *Scheduler) Add(name, expr, prompt string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return Job{}, fmt.Errorf("scheduler is stopped")
	}
	if name == "" {
		return Job{}, fmt.Errorf("job name is required")
	}
	if prompt == "" {
		return Job{}, fmt.Errorf("job prompt is required")
	}
	if _, err := s.parser.Parse(expr); err != nil {
		return Job{}, fmt.Errorf("invalid cron expression: %w", err)
	}

	job := Job{
		ID:     uuid.New().String(),
		Name:   name,
		Expr:   expr,
		Prompt: prompt,
	}

	entryID, err := s.cron.AddFunc(expr, func() { s.runJob(job) })
	if err != nil {
		return Job{}, fmt.Errorf("failed to schedule job: %w", err)
	}

	s.jobs[job.ID] = job
	s.entries[job.ID] = entryID

	s.logger.Info().
		Str("job_id", job.ID).
		Str("name", name).
		Str("expr", expr).
		Msg("Job scheduled")

	return job, nil
}

// Remove unschedules a job.
func (s *Scheduler) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, exists := s.entries[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	s.cron.Remove(entryID)
	delete(s.entries, id)
	delete(s.jobs, id)

	s.logger.Info().Str("job_id", id).Msg("Job removed")
	return nil
}

// Jobs lists registered jobs sorted by name, with their next firing time
// once the scheduler has started.
func (s *Scheduler) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]Job, 0, len(s.jobs))
	for id, job := range s.jobs {
		job.Next = s.cron.Entry(s.entries[id]).Next
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Name < jobs[j].Name })
	return jobs
}

// Start begins firing jobs. Safe to call once.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Int("jobs", len(s.jobs)).Msg("Scheduler started")
}

// Stop halts scheduling and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Scheduler stopped")
}

// runJob executes one firing with a fresh trace and panic isolation.
func (s *Scheduler) runJob(job Job) {
	ctx := tracing.WithTraceID(context.Background(), tracing.NewTraceID())
	logger := tracing.LoggerFromContext(ctx, s.logger).With().
		Str("job_id", job.ID).
		Str("name", job.Name).
		Logger()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			observability.RecordScheduledRun(job.Name, false)
			logger.Error().
				Interface("panic", r).
				Dur("duration", time.Since(start)).
				Msg("Scheduled run panicked")
		}
	}()

	logger.Info().Msg("Scheduled run starting")

	if err := s.runner(ctx, job.Prompt); err != nil {
		observability.RecordScheduledRun(job.Name, false)
		logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("Scheduled run failed")
		return
	}

	observability.RecordScheduledRun(job.Name, true)
	logger.Info().Dur("duration", time.Since(start)).Msg("Scheduled run completed")
}
