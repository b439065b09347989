package execution

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	processor "github.com/goliatone/go-processor"
	"github.com/goliatone/go-processor/events"
	"github.com/goliatone/go-processor/stats"
	"golang.org/x/sync/semaphore"
)

// ItemProcessingTimeName names the rolling average of item latencies.
const ItemProcessingTimeName = "Item Processing Time"

// Execution drives one processor through the lifecycle exactly once.
type Execution[T any] struct {
	proc       processor.Processor[T]
	config     processor.ExecutionConfig
	logger     processor.Logger
	configPath string
	scopes     processor.ScopeProvider

	queue      *events.Queue
	observers  *events.Observers
	pump       *events.Pump
	itemTime   *stats.RollingAverage
	categories *stats.CategoryTally

	mu          sync.RWMutex
	state       processor.ExecutionState
	stages      []processor.StageOutcome
	totalItems  int
	hasTotal    bool
	startedAt   time.Time
	completedAt time.Time
	canceledAt  time.Time
	failedAt    time.Time
	failedStage processor.Stage
	failedErr   error
	cancel      context.CancelCauseFunc

	// serializes item accounting with its event so progress never goes back
	completeMu  sync.Mutex
	successful  atomic.Int64
	failed      atomic.Int64
	cancelAfter atomic.Int64
	ran         atomic.Bool

	// held across cursor advance and read only
	cursorLock *semaphore.Weighted
}

// New validates cfg and prepares an execution of proc.
func New[T any](proc processor.Processor[T], cfg processor.ExecutionConfig, opts ...Option) (*Execution[T], error) {
	if proc == nil {
		return nil, processor.CloneError(processor.ErrMissingDependency, "processor cannot be nil", nil, nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.WithRunID().Normalize()

	s := settings{scopes: processor.StaticScope(processor.Deps{})}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}

	logger := processor.WithLoggerFields(s.logger, map[string]any{"run_id": cfg.RunID})
	if s.observers == nil {
		s.observers = events.NewObservers(logger)
	}

	e := &Execution[T]{
		proc:       proc,
		config:     cfg,
		logger:     logger,
		configPath: s.configPath,
		scopes:     s.scopes,
		queue:      events.NewQueue(),
		observers:  s.observers,
		itemTime:   stats.NewRollingAverage(ItemProcessingTimeName),
		categories: stats.NewCategoryTally(),
		stages:     make([]processor.StageOutcome, 0, len(processor.LifecycleStages)),
		cursorLock: semaphore.NewWeighted(1),
	}
	e.pump = events.NewPump(e.queue, e.observers,
		events.WithInterval(s.pumpInterval),
		events.WithRecorder(e.itemTime),
		events.WithLogger(logger),
	)
	return e, nil
}

// Run executes the lifecycle and blocks until every event was published.
// When exceptions are handled it only fails if the execution already ran.
func (e *Execution[T]) Run(ctx context.Context) error {
	if !e.ran.CompareAndSwap(false, true) {
		return processor.CloneError(processor.ErrAlreadyRun, "", nil, map[string]any{"run_id": e.config.RunID})
	}
	if ctx == nil {
		ctx = context.Background()
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()

	stop := context.AfterFunc(runCtx, e.markCanceled)
	defer stop()

	e.pump.Start(context.WithoutCancel(ctx))
	err := e.execute(runCtx)
	e.pump.Stop()
	return err
}

// Cancel requests cancellation of a running execution.
func (e *Execution[T]) Cancel() error {
	e.mu.RLock()
	cancel := e.cancel
	e.mu.RUnlock()
	if cancel == nil {
		return processor.CloneError(processor.ErrNotStarted, "", nil, map[string]any{"run_id": e.config.RunID})
	}
	e.cancelRun(context.Canceled)
	return nil
}

// CancelAfter makes the run cancel itself once n items completed. Zero or a
// negative n disables the limit.
func (e *Execution[T]) CancelAfter(n int) {
	if n < 0 {
		n = 0
	}
	e.cancelAfter.Store(int64(n))
}

func (e *Execution[T]) cancelRun(cause error) {
	e.mu.RLock()
	cancel := e.cancel
	e.mu.RUnlock()
	if cancel == nil {
		return
	}
	cancel(cause)
	e.markCanceled()
}

// fail records the first fatal failure and cancels the run.
func (e *Execution[T]) fail(stage processor.Stage, err error) {
	e.mu.Lock()
	first := e.failedAt.IsZero()
	if first {
		e.failedAt = time.Now()
		e.failedStage = stage
		e.failedErr = err
	}
	e.mu.Unlock()

	if first {
		e.cancelRun(err)
	}
}

func (e *Execution[T]) markCanceled() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == processor.StateComplete || !e.failedAt.IsZero() || !e.canceledAt.IsZero() {
		return
	}
	e.canceledAt = time.Now()
}

func (e *Execution[T]) setState(state processor.ExecutionState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if state <= e.state {
		return
	}
	e.state = state
	e.queue.Enqueue(events.StateChanged{State: state})
}

func (e *Execution[T]) recordStage(outcome processor.StageOutcome) {
	e.mu.Lock()
	e.stages = append(e.stages, outcome)
	e.mu.Unlock()
	e.queue.Enqueue(events.StageCompleted{Outcome: outcome})
}

func (e *Execution[T]) setTotal(n int) {
	e.mu.Lock()
	e.totalItems = n
	e.hasTotal = true
	e.mu.Unlock()
}

func (e *Execution[T]) RunID() string {
	return e.config.RunID
}

func (e *Execution[T]) Config() processor.ExecutionConfig {
	return e.config
}

// Observers is the registry notified by this execution's pump.
func (e *Execution[T]) Observers() *events.Observers {
	return e.observers
}

func (e *Execution[T]) State() processor.ExecutionState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// TotalItemCount is set when the sequence could be counted.
func (e *Execution[T]) TotalItemCount() (int, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.totalItems, e.hasTotal
}

func (e *Execution[T]) CompletedItemCount() int64 {
	return e.successful.Load() + e.failed.Load()
}

func (e *Execution[T]) SuccessfulItemCount() int64 {
	return e.successful.Load()
}

func (e *Execution[T]) FailedItemCount() int64 {
	return e.failed.Load()
}

func (e *Execution[T]) ItemCategories() []stats.Category {
	return e.categories.Snapshot()
}

func (e *Execution[T]) ItemProcessingTime() *stats.RollingAverage {
	return e.itemTime
}

func (e *Execution[T]) IsComplete() bool {
	return e.State() == processor.StateComplete
}

func (e *Execution[T]) IsFailed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.failedAt.IsZero()
}

func (e *Execution[T]) IsCanceled() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.canceledAt.IsZero()
}

// Disposition classifies the run from its failure and cancellation marks.
func (e *Execution[T]) Disposition() processor.Disposition {
	e.mu.RLock()
	defer e.mu.RUnlock()
	switch {
	case !e.failedAt.IsZero():
		return processor.DispositionFailed
	case !e.canceledAt.IsZero():
		return processor.DispositionCancelled
	default:
		return processor.DispositionSuccessful
	}
}

// Stages returns the lifecycle stage outcomes in the order they ran.
func (e *Execution[T]) Stages() []processor.StageOutcome {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]processor.StageOutcome, len(e.stages))
	copy(out, e.stages)
	return out
}

func (e *Execution[T]) Stage(stage processor.Stage) (processor.StageOutcome, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, o := range e.stages {
		if o.Stage == stage {
			return o, true
		}
	}
	return processor.StageOutcome{}, false
}

func (e *Execution[T]) StartedAt() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.startedAt
}

func (e *Execution[T]) CompletedAt() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.completedAt
}

func (e *Execution[T]) CanceledAt() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.canceledAt
}

func (e *Execution[T]) FailedAt() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.failedAt
}

func (e *Execution[T]) FailedStage() processor.Stage {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.failedStage
}

// FailedBecauseOf is the error of the first fatal failure.
func (e *Execution[T]) FailedBecauseOf() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.failedErr
}
