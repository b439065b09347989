// Package cron schedules processor runs, once after a delay or repeatedly on
// a cron expression.
package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
)

// Logger is the subset of processor.Logger the scheduler writes to.
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Job is one scheduled unit of work, typically a full processor run.
type Job func(ctx context.Context) error

// ScheduleConfig controls a recurring schedule.
type ScheduleConfig struct {
	Expression string
	// MaxRuns completes the schedule after that many runs when positive.
	MaxRuns int
}

// Scheduler owns a robfig/cron instance and the handles of its jobs.
type Scheduler struct {
	cron         *rcron.Cron
	parser       Parser
	logger       Logger
	logLevel     LogLevel
	errorHandler func(error)

	mu      sync.Mutex
	nextID  int64
	handles map[int64]*handle
}

func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		parser:   DefaultParser,
		logLevel: LogLevelError,
		handles:  make(map[int64]*handle),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.errorHandler == nil {
		s.errorHandler = func(err error) {
			if s.logger != nil && s.logLevel >= LogLevelError {
				s.logger.Error("scheduled run failed: %v", err)
			}
		}
	}

	var logger rcron.Logger = rcron.DiscardLogger
	if s.logger != nil && s.logLevel > LogLevelSilent {
		logger = runLogger{logger: s.logger, level: s.logLevel}
	}
	s.cron = rcron.New(
		s.parser.option(),
		rcron.WithLogger(logger),
		rcron.WithChain(rcron.Recover(panicReporter{handler: s.errorHandler})),
	)
	return s
}

// ScheduleCron runs job on every tick of cfg.Expression once Start was
// called. A tick is skipped while the previous run is still going. ctx is
// handed to every run and canceling it cancels the handle.
func (s *Scheduler) ScheduleCron(ctx context.Context, cfg ScheduleConfig, job Job) (Handle, error) {
	if cfg.Expression == "" {
		return nil, errors.New("cron expression cannot be empty")
	}
	if job == nil {
		return nil, errors.New("job cannot be nil")
	}

	h := s.track()
	var runs int
	var runMu sync.Mutex

	tick := rcron.FuncJob(func() {
		if h.Status().Terminal() {
			return
		}
		h.set(StatusRunning, nil)
		err := job(ctx)
		if err != nil {
			s.errorHandler(err)
		}

		runMu.Lock()
		runs++
		last := cfg.MaxRuns > 0 && runs >= cfg.MaxRuns
		runMu.Unlock()

		switch {
		case last:
			s.forget(h.id)
			h.finish(StatusCompleted, err)
		case h.Status().Terminal():
		case err != nil:
			h.set(StatusFailed, err)
		default:
			h.set(StatusIdle, nil)
		}
	})

	entryID, err := s.cron.AddJob(cfg.Expression, rcron.NewChain(rcron.SkipIfStillRunning(rcron.DiscardLogger)).Then(tick))
	if err != nil {
		s.forget(h.id)
		return nil, fmt.Errorf("invalid cron expression %q: %w", cfg.Expression, err)
	}
	s.mu.Lock()
	h.entryID = int(entryID)
	s.mu.Unlock()

	context.AfterFunc(ctx, h.Cancel)
	return h, nil
}

// ScheduleAfter runs job once after delay. It does not need Start. Done is
// closed when the run finished, with Err holding its error, or when the
// handle was canceled before the delay elapsed, including through ctx.
func (s *Scheduler) ScheduleAfter(ctx context.Context, delay time.Duration, job Job) (Handle, error) {
	if job == nil {
		return nil, errors.New("job cannot be nil")
	}
	if delay < 0 {
		delay = 0
	}

	h := s.track()
	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-h.Done():
			return
		case <-ctx.Done():
			h.Cancel()
			return
		}
		if h.Status().Terminal() {
			return
		}

		h.set(StatusRunning, nil)
		err := job(ctx)
		s.forget(h.id)
		if err != nil {
			s.errorHandler(err)
			h.finish(StatusFailed, err)
			return
		}
		h.finish(StatusCompleted, nil)
	}()
	return h, nil
}

// Start begins firing cron schedules.
func (s *Scheduler) Start(context.Context) error {
	s.cron.Start()
	return nil
}

// Stop stops firing, marks every pending handle stopped and waits for
// running cron jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()

	s.mu.Lock()
	pending := make([]*handle, 0, len(s.handles))
	for _, h := range s.handles {
		pending = append(pending, h)
	}
	s.handles = make(map[int64]*handle)
	s.mu.Unlock()

	for _, h := range pending {
		if h.entryID > 0 {
			s.cron.Remove(rcron.EntryID(h.entryID))
		}
		if !h.Status().Terminal() {
			h.finish(StatusStopped, nil)
		}
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Active reports how many handles may still run.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

func (s *Scheduler) track() *handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	h := &handle{
		scheduler: s,
		id:        s.nextID,
		status:    StatusScheduled,
		done:      make(chan struct{}),
	}
	s.handles[h.id] = h
	return h
}

// forget drops the handle and its cron entry.
func (s *Scheduler) forget(id int64) {
	s.mu.Lock()
	h, ok := s.handles[id]
	delete(s.handles, id)
	s.mu.Unlock()
	if ok && h.entryID > 0 {
		s.cron.Remove(rcron.EntryID(h.entryID))
	}
}
