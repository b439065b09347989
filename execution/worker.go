package execution

import (
	"context"
	stderrors "errors"
	"time"

	processor "github.com/goliatone/go-processor"
	"github.com/goliatone/go-processor/events"
	"github.com/goliatone/go-processor/runner"
	"golang.org/x/sync/errgroup"
)

// process runs the workers against the shared cursor until it is exhausted,
// a fatal failure was recorded or the run was cancelled.
func (e *Execution[T]) process(ctx context.Context, cursor processor.Cursor[T]) error {
	workers := e.config.ParallelTaskCount
	if workers > 1 && !processor.OptionsOf(e.proc).CanProcessInParallel {
		e.logger.Warn("processor cannot process in parallel, ignoring parallel_task_count=%d", workers)
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		worker := i
		g.Go(func() error {
			return e.work(gctx, cursor, worker)
		})
	}
	return g.Wait()
}

func (e *Execution[T]) work(ctx context.Context, cursor processor.Cursor[T], worker int) (err error) {
	logger := processor.WithLoggerFields(e.logger, map[string]any{"worker": worker})

	scope, err := e.scopes.NewScope(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := processor.CloseScope(scope); cerr != nil && err == nil {
			err = cerr
		}
	}()

	handler := runner.NewHandler(
		runner.WithMaxRetries(e.config.ItemFailureRetryCount),
		runner.WithRetryStrategy(runner.StrategyFor(
			e.config.RetryDelay,
			e.config.RetryBackoffFactor,
			e.config.RetryMaxDelay,
		)),
		runner.WithTimeout(e.config.ItemTimeout),
		runner.WithErrorHandler(func(err error) {
			logger.Debug("retrying item: %v", err)
		}),
	)

	for !e.stopped(ctx) {
		item, outcome, ok := e.claim(ctx, cursor)
		if !ok {
			return nil
		}
		e.processItem(ctx, scope, handler, item, outcome)
	}
	return nil
}

func (e *Execution[T]) stopped(ctx context.Context) bool {
	return ctx.Err() != nil || e.IsFailed() || e.IsCanceled()
}

// claim advances the cursor and reads the next item while holding the cursor
// lock. It returns false when the cursor is exhausted, the run was cancelled
// or the cursor failed.
func (e *Execution[T]) claim(ctx context.Context, cursor processor.Cursor[T]) (item T, outcome *processor.ItemOutcome, ok bool) {
	if err := e.cursorLock.Acquire(ctx, 1); err != nil {
		return item, nil, false
	}
	defer e.cursorLock.Release(1)

	if ctx.Err() != nil {
		return item, nil, false
	}

	outcome = processor.NewItemOutcome()

	var more bool
	start := time.Now()
	err := processor.Guard(processor.StageCursorAdvance, func() error {
		var err error
		more, err = cursor.Next(ctx)
		return err
	})
	if err != nil && cancelledBy(ctx, err) {
		return item, nil, false
	}
	outcome.Record(processor.NewStageOutcome(processor.StageCursorAdvance, time.Since(start), err))
	if err != nil {
		e.failItem(ctx, processor.StageCursorAdvance, outcome, err)
		return item, nil, false
	}
	if !more {
		return item, nil, false
	}

	start = time.Now()
	err = processor.Guard(processor.StageCursorRead, func() error {
		var err error
		item, err = cursor.Current()
		return err
	})
	outcome.Record(processor.NewStageOutcome(processor.StageCursorRead, time.Since(start), err))
	if err != nil {
		e.failItem(ctx, processor.StageCursorRead, outcome, err)
		return item, nil, false
	}
	return item, outcome, true
}

func (e *Execution[T]) processItem(
	ctx context.Context,
	scope processor.Scope,
	handler *runner.Handler,
	item T,
	outcome *processor.ItemOutcome,
) {
	var id string
	start := time.Now()
	err := processor.Guard(processor.StageItemID, func() error {
		var err error
		id, err = processor.ResolveItemID(ctx, e.proc, item)
		return err
	})
	outcome.SetID(id, processor.NewStageOutcome(processor.StageItemID, time.Since(start), err))
	if err != nil {
		e.failItem(ctx, processor.StageItemID, outcome, err)
		return
	}

	attempt := runner.Do(ctx, handler, func(actx context.Context) (processor.Result, error) {
		var result processor.Result
		err := processor.Guard(processor.StageProcessAction, func() error {
			var err error
			result, err = e.proc.Process(actx, scope, item)
			return err
		})
		return result, err
	}, func(r processor.Result, err error) bool {
		return err == nil && r.IsSuccessful
	})

	outcome.Complete(attempt.Value, processor.NewStageOutcome(
		processor.StageProcessAction,
		attempt.Duration,
		attempt.Err,
	))
	if attempt.Err != nil {
		e.logger.Debug("item %s failed after %d attempt(s): %v", outcome.ID, attempt.Attempts, attempt.Err)
	}

	// Once the run is cancelled, late failures no longer turn it into a failed run.
	progress := e.completeItem(outcome)
	threshold := int64(e.config.ItemFailureCountToStopProcess)
	if !outcome.IsSuccessful && ctx.Err() == nil && progress.Failed >= threshold {
		cause := outcome.Err()
		if cause == nil {
			cause = processor.CloneError(processor.ErrFailureThreshold, "", nil, map[string]any{
				"failed":    progress.Failed,
				"threshold": threshold,
				"item_id":   outcome.ID,
			})
		}
		e.fail(processor.StageProcessAction, cause)
	}
	e.enforceCancelAfter(progress.Completed)
}

// failItem accounts an item whose cursor or id stage failed. These failures
// stop the run regardless of the failure threshold.
func (e *Execution[T]) failItem(ctx context.Context, stage processor.Stage, outcome *processor.ItemOutcome, err error) {
	processor.WithLoggerFields(e.logger, map[string]any{
		"stage":   string(stage),
		"item_id": outcome.ID,
	}).Error("item stage %s failed: %v", stage, err)

	progress := e.completeItem(outcome)
	if !cancelledBy(ctx, err) {
		e.fail(stage, err)
	}
	e.enforceCancelAfter(progress.Completed)
}

// completeItem counts the item, tallies its category and publishes it. Items
// without a category are tallied under the empty name so the tally always
// adds up to the completed count.
func (e *Execution[T]) completeItem(outcome *processor.ItemOutcome) events.Progress {
	e.completeMu.Lock()
	defer e.completeMu.Unlock()

	if outcome.IsSuccessful {
		e.successful.Add(1)
	} else {
		e.failed.Add(1)
	}
	progress := events.Progress{
		Successful: e.successful.Load(),
		Failed:     e.failed.Load(),
	}
	progress.Completed = progress.Successful + progress.Failed

	e.categories.Increment(outcome.Category(), outcome.IsSuccessful)
	e.queue.Enqueue(events.ItemCompleted{Outcome: outcome, Progress: progress})
	return progress
}

func (e *Execution[T]) enforceCancelAfter(completed int64) {
	limit := e.cancelAfter.Load()
	if limit <= 0 || completed < limit {
		return
	}
	e.cancelRun(processor.CloneError(processor.ErrCancelAfter, "", nil, map[string]any{
		"completed": completed,
		"limit":     limit,
	}))
}

// cancelledBy reports whether err is the run's own cancellation surfacing.
func cancelledBy(ctx context.Context, err error) bool {
	if ctx.Err() == nil || err == nil {
		return false
	}
	return stderrors.Is(err, context.Canceled) ||
		stderrors.Is(err, context.DeadlineExceeded) ||
		stderrors.Is(err, context.Cause(ctx))
}
