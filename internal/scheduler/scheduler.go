// Package scheduler runs a task immediately and then on a fixed interval
// until the task reports that it is done.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/phrasewatch/internal/metrics"
)

// Task is one scheduled unit of work. Run returns true when no further runs
// are wanted.
type Task interface {
	Run(ctx context.Context) bool
}

// TaskFunc adapts a function to Task.
type TaskFunc func(ctx context.Context) bool

// Run calls f.
func (f TaskFunc) Run(ctx context.Context) bool {
	return f(ctx)
}

// ErrorReporter is told about failures the scheduler recovered from.
type ErrorReporter func(ctx context.Context, err error)

// Config controls timing.
type Config struct {
	Interval time.Duration
	// ErrorBackoff pauses runs after a recovered panic. Zero disables it.
	ErrorBackoff time.Duration
}

// Scheduler drives a Task through robfig/cron with one-shot-then-cancel
// semantics.
//
// All lifecycle methods are safe for concurrent use.
type Scheduler struct {
	cfg    Config
	task   Task
	report ErrorReporter
	logger *zap.Logger
	cron   *cron.Cron
	now    func() time.Time

	mu          sync.Mutex
	ctx         context.Context
	entryID     cron.EntryID
	registered  bool
	started     bool
	stopped     bool
	finished    bool
	pausedUntil time.Time
	runs        int

	done     chan struct{}
	doneOnce sync.Once
}

// New builds a Scheduler. report may be nil.
func New(cfg Config, task Task, report ErrorReporter, logger *zap.Logger) (*Scheduler, error) {
	if task == nil {
		return nil, errors.New("scheduler task is required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be > 0, got %s", cfg.Interval)
	}
	if cfg.ErrorBackoff < 0 {
		return nil, fmt.Errorf("error backoff must be >= 0, got %s", cfg.ErrorBackoff)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := newCronLogger(logger)
	return &Scheduler{
		cfg:    cfg,
		task:   task,
		report: report,
		logger: logger,
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.SkipIfStillRunning(cl)),
		),
		now:  time.Now,
		done: make(chan struct{}),
	}, nil
}

// Start runs the task once, synchronously, and registers the recurring job
// unless that first run asked to stop. ctx is passed to every run.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("scheduler already started")
	}
	s.started = true
	s.ctx = ctx
	s.mu.Unlock()

	if s.invoke(ctx) {
		s.finish()
		return nil
	}

	s.mu.Lock()
	if s.stopped || s.finished {
		s.mu.Unlock()
		return nil
	}
	s.entryID = s.cron.Schedule(cron.Every(s.cfg.Interval), cron.FuncJob(s.tick))
	s.registered = true
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("recurring check scheduled", zap.Duration("interval", s.cfg.Interval))
	return nil
}

// Done is closed once the task asked to stop.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Runs returns how many times the task has been invoked.
func (s *Scheduler) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

// Stop halts future runs and waits for an in-flight run to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	<-s.cron.Stop().Done()
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if s.invoke(ctx) {
		s.finish()
	}
}

// invoke runs the task once, converting a panic into a report and a pause.
func (s *Scheduler) invoke(ctx context.Context) (stop bool) {
	s.mu.Lock()
	if s.stopped || s.finished {
		s.mu.Unlock()
		return false
	}
	if now := s.now(); now.Before(s.pausedUntil) {
		resume := s.pausedUntil
		s.mu.Unlock()
		s.logger.Info("skipping run during error backoff", zap.Time("resume_at", resume))
		return false
	}
	s.runs++
	s.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			stop = false
			correlationID := uuid.NewString()
			metrics.ObserveSchedulerPanic()
			s.logger.Error("scheduled run panicked",
				zap.String("correlation_id", correlationID),
				zap.String("panic", fmt.Sprint(r)),
				zap.ByteString("stack", debug.Stack()),
			)
			s.safeReport(ctx, fmt.Errorf("panic in scheduled run (correlation_id: %s): %v", correlationID, r))

			s.mu.Lock()
			s.pausedUntil = s.now().Add(s.cfg.ErrorBackoff)
			s.mu.Unlock()
			if s.cfg.ErrorBackoff > 0 {
				s.logger.Warn("pausing runs after error", zap.Duration("backoff", s.cfg.ErrorBackoff))
			}
		}
	}()
	return s.task.Run(ctx)
}

func (s *Scheduler) safeReport(ctx context.Context, err error) {
	if s.report == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("error reporter panicked", zap.String("panic", fmt.Sprint(r)))
		}
	}()
	s.report(ctx, err)
}

// finish removes the recurring entry so the task is never invoked again.
func (s *Scheduler) finish() {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.finished = true
	if s.registered {
		s.cron.Remove(s.entryID)
		s.registered = false
	}
	runs := s.runs
	s.mu.Unlock()

	s.doneOnce.Do(func() { close(s.done) })
	s.logger.Info("recurring check canceled", zap.Int("runs", runs))
}
