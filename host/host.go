// Package host runs registered processors from job files.
package host

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	apperrors "github.com/goliatone/go-errors"
	processor "github.com/goliatone/go-processor"
	"github.com/goliatone/go-processor/config"
	"github.com/goliatone/go-processor/cron"
	"github.com/goliatone/go-processor/execution"
	"github.com/goliatone/go-processor/history"
)

const ErrCodeRunFailed = "PROCESSOR_RUN_FAILED"

var ErrRunFailed = apperrors.New("run failed", apperrors.CategoryHandler).
	WithTextCode(ErrCodeRunFailed)

type factory func(settings any, cfg processor.ExecutionConfig, opts ...execution.Option) (execution.Runnable, error)

// Host maps process types to processors and runs job files against them.
type Host struct {
	name     string
	registry *config.Registry

	mu        sync.RWMutex
	factories map[string]factory

	out    io.Writer
	errOut io.Writer
	logger processor.Logger
}

type Option func(*Host)

// WithName sets the program name shown in usage.
func WithName(name string) Option {
	return func(h *Host) {
		if name != "" {
			h.name = name
		}
	}
}

// WithOutput sets where summaries and command output go, and where logs go
// when no logger was given.
func WithOutput(out, errOut io.Writer) Option {
	return func(h *Host) {
		if out != nil {
			h.out = out
		}
		if errOut != nil {
			h.errOut = errOut
		}
	}
}

// WithLogger replaces the JSON logger built for each run.
func WithLogger(logger processor.Logger) Option {
	return func(h *Host) {
		h.logger = logger
	}
}

func New(opts ...Option) *Host {
	h := &Host{
		name:      "processor",
		registry:  config.NewRegistry(),
		factories: make(map[string]factory),
		out:       os.Stdout,
		errOut:    os.Stderr,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Register makes typ runnable. Job settings are decoded into S starting from
// defaults, then build turns them into a processor.
func Register[S any, T any](h *Host, typ, description string, defaults func() S, build func(S) (processor.Processor[T], error)) error {
	if build == nil {
		return processor.CloneError(processor.ErrMissingDependency, "build function cannot be nil", nil,
			map[string]any{"type": typ})
	}
	if err := config.RegisterType(h.registry, typ, description, defaults); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.factories[config.NormalizeType(typ)] = func(settings any, cfg processor.ExecutionConfig, opts ...execution.Option) (execution.Runnable, error) {
		s, ok := settings.(S)
		if !ok {
			return nil, processor.CloneError(config.ErrInvalidJob,
				fmt.Sprintf("settings for %s have type %T", typ, settings), nil, nil)
		}
		proc, err := build(s)
		if err != nil {
			return nil, err
		}
		return execution.New(proc, cfg, opts...)
	}
	return nil
}

// Registry exposes the process types known to the host.
func (h *Host) Registry() *config.Registry {
	return h.registry
}

// RunOptions tune a single run.
type RunOptions struct {
	CancelAfter int
	LogLevel    string
}

// RunJob builds the job's processor, runs it and reports the results the way
// the job's execution config asks for.
func (h *Host) RunJob(ctx context.Context, job config.Job, opts RunOptions) (execution.Report, error) {
	settings, err := h.registry.Decode(job.Process)
	if err != nil {
		return execution.Report{}, err
	}

	h.mu.RLock()
	build, ok := h.factories[config.NormalizeType(job.Process.Type)]
	h.mu.RUnlock()
	if !ok {
		return execution.Report{}, processor.CloneError(config.ErrUnknownType, "", nil,
			map[string]any{"type": job.Process.Type})
	}

	logger := h.loggerFor(opts.LogLevel)
	run, err := build(settings, job.Execution,
		execution.WithLogger(logger),
		execution.WithConfigPath(job.Path),
	)
	if err != nil {
		return execution.Report{}, err
	}

	results := NewResultLog(config.NormalizeType(job.Process.Type))
	results.Attach(run.Observers())

	started, runErr := h.start(ctx, job.Execution.StartDelay(), logger, func(ctx context.Context) error {
		run.CancelAfter(opts.CancelAfter)
		return run.Run(ctx)
	})
	if !started {
		return run.Report(), runErr
	}
	report := run.Report()

	if job.Execution.ResultsToConsole {
		PrintSummary(h.out, report)
	}
	if job.Execution.ResultsToFile {
		if err := results.WriteFile(job.Execution.ResultsFilePath, report); err != nil {
			logger.Error("failed to write results to %s: %v", job.Execution.ResultsFilePath, err)
		}
	}
	if dsn := job.Execution.HistoryDSN; dsn != "" {
		if err := saveHistory(ctx, dsn, results.processType, report); err != nil {
			logger.Error("failed to record run history: %v", err)
		}
	}

	return report, runErr
}

// start runs job right away, or through a one-shot schedule when delay is
// positive. started is false when ctx ended before the delay elapsed.
func (h *Host) start(ctx context.Context, delay time.Duration, logger processor.Logger, job cron.Job) (started bool, err error) {
	if delay <= 0 {
		return true, job(ctx)
	}

	logger.Info("waiting %s before starting the run", delay)
	scheduler := cron.NewScheduler(
		cron.WithLogger(logger),
		cron.WithErrorHandler(func(error) {}),
	)
	handle, err := scheduler.ScheduleAfter(ctx, delay, job)
	if err != nil {
		return false, err
	}
	<-handle.Done()
	if handle.Status() == cron.StatusCanceled {
		return false, context.Cause(ctx)
	}
	return true, handle.Err()
}

func (h *Host) loggerFor(level string) processor.Logger {
	if h.logger != nil {
		return h.logger
	}
	return processor.NewJSONLogger(h.errOut, level)
}

func saveHistory(ctx context.Context, dsn, processType string, report execution.Report) error {
	store, err := history.Open(dsn)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Save(context.WithoutCancel(ctx), history.RecordFromReport(processType, report))
}
