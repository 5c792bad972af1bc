// Package schedule runs a job on a cron schedule for serve mode.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Scheduler runs a Job on a standard five-field cron expression. A job that
// is still running when its next activation arrives is skipped, so runs never
// overlap.
type Scheduler struct {
	schedule string
	job      Job
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *zap.Logger
	running  bool

	// done is closed by Stop; exited is closed when the watcher returns.
	done   chan struct{}
	exited chan struct{}
}

// New creates a scheduler. Nothing runs until Start.
func New(schedule string, job Job, logger *zap.Logger) *Scheduler {
	logger = logger.With(zap.String("component", "scheduler"))
	cl := cronLogger{logger: logger.Sugar()}
	return &Scheduler{
		schedule: schedule,
		job:      job,
		logger:   logger,
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
}

// Start schedules the job and starts the cron loop.
//
// Common cron expressions:
//   - "0 3 * * *"    - Daily at 3 AM
//   - "0 */6 * * *"  - Every 6 hours
//   - "30 1 * * 0"   - Weekly on Sunday at 1:30 AM
//
// If the expression is empty, the scheduler does nothing. The scheduler
// stops on its own when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.run(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule job: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.done = make(chan struct{})
	s.exited = make(chan struct{})

	s.logger.Info("scheduler started", zap.String("schedule", s.schedule))

	go s.watch(ctx, s.done, s.exited)

	return nil
}

// watch stops the scheduler when ctx is cancelled. It returns early when Stop
// is called directly.
func (s *Scheduler) watch(ctx context.Context, done <-chan struct{}, exited chan<- struct{}) {
	defer close(exited)

	select {
	case <-ctx.Done():
		s.Stop()
	case <-done:
	}
}

// run executes one activation.
func (s *Scheduler) run(ctx context.Context) {
	start := time.Now()
	s.logger.Info("starting scheduled run")

	if err := s.job(ctx); err != nil {
		s.logger.Error("scheduled run failed",
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return
	}

	s.logger.Info("scheduled run completed", zap.Duration("duration", time.Since(start)))
}

// Stop stops the scheduler and waits for a running job to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		close(s.done)
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running. Serve mode reports it
// on /healthz.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// RunNow runs the job once in the calling goroutine. It goes through the same
// overlap guard as scheduled activations and does nothing before Start.
func (s *Scheduler) RunNow() {
	s.mu.Lock()
	entries := s.cron.Entries()
	s.mu.Unlock()

	if len(entries) == 0 {
		return
	}
	entries[0].WrappedJob.Run()
}

// NextRun returns the next activation time, or nil when nothing is scheduled.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}

	next := entries[0].Next
	return &next
}

// cronLogger adapts zap to cron.Logger. Cron's own info messages are noisy
// and go to debug.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
