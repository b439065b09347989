package execution

import (
	"context"
	stderrors "errors"
	"time"

	processor "github.com/goliatone/go-processor"
	"github.com/goliatone/go-processor/events"
)

// errAbort unwinds the lifecycle to finalize. It is never returned from Run.
var errAbort = stderrors.New("execution aborted")

func (e *Execution[T]) execute(ctx context.Context) (err error) {
	e.begin()

	defer func() {
		finalizeErr := e.finalize(ctx)
		err = e.result(finalizeErr)
	}()

	return e.runLifecycle(ctx)
}

func (e *Execution[T]) begin() {
	now := time.Now()
	e.mu.Lock()
	e.startedAt = now
	e.mu.Unlock()

	e.logger.Info("run %s started", e.config.RunID)
	e.queue.Enqueue(events.Started{
		RunID:      e.config.RunID,
		ConfigPath: e.configPath,
		Time:       now,
	})
}

func (e *Execution[T]) runLifecycle(ctx context.Context) error {
	e.setState(processor.StateInitializing)
	if err := e.runStage(ctx, processor.StageInitialize, func() error {
		if init, ok := any(e.proc).(processor.Initializer); ok {
			return init.Initialize(ctx)
		}
		return nil
	}); err != nil {
		return err
	}

	e.setState(processor.StateGettingItems)
	var seq processor.Sequence[T]
	if err := e.runStage(ctx, processor.StageGetItems, func() error {
		s, err := e.proc.Items(ctx)
		if err != nil {
			return err
		}
		if s == nil {
			return processor.CloneError(processor.ErrNilSequence, "", nil, nil)
		}
		seq = s
		return nil
	}); err != nil {
		return err
	}

	var cursor processor.Cursor[T]
	if err := e.runStage(ctx, processor.StageGetCursor, func() error {
		c, err := seq.Cursor(ctx)
		if err != nil {
			return err
		}
		if c == nil {
			return processor.CloneError(processor.ErrNilSequence, "item sequence returned a nil cursor", nil, nil)
		}
		cursor = c
		return nil
	}); err != nil {
		return err
	}
	defer e.closeCursor(cursor)

	if err := e.runStage(ctx, processor.StageCount, func() error {
		counter, ok := any(seq).(processor.Counter)
		if !ok || !counter.CanCount() {
			return nil
		}
		n, err := counter.Count(ctx)
		if err != nil {
			return err
		}
		e.setTotal(n)
		return nil
	}); err != nil {
		return err
	}

	e.setState(processor.StateProcessing)
	if err := e.runStage(ctx, processor.StageProcess, func() error {
		return e.process(ctx, cursor)
	}); err != nil {
		return err
	}

	if e.IsFailed() {
		return errAbort
	}
	return nil
}

// runStage times fn, records its outcome and turns an error into a fatal
// failure. Stages are skipped once the run was cancelled.
func (e *Execution[T]) runStage(ctx context.Context, stage processor.Stage, fn func() error) error {
	if ctx.Err() != nil {
		e.logger.Debug("skipping stage %s: run cancelled", stage)
		return errAbort
	}

	logger := processor.WithLoggerFields(e.logger, map[string]any{"stage": string(stage)})
	logger.Debug("stage %s started", stage)

	start := time.Now()
	err := processor.Guard(stage, fn)
	e.recordStage(processor.NewStageOutcome(stage, time.Since(start), err))

	if err != nil {
		logger.Error("stage %s failed: %v", stage, err)
		e.fail(stage, err)
		return errAbort
	}
	return nil
}

func (e *Execution[T]) closeCursor(cursor processor.Cursor[T]) {
	closer, ok := any(cursor).(interface{ Close() error })
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		e.logger.Warn("failed to close item cursor: %v", err)
	}
}

// finalize always runs once. It sees a context that outlives cancellation so
// cleanup can still reach external systems.
func (e *Execution[T]) finalize(ctx context.Context) error {
	if ctx.Err() != nil {
		e.markCanceled()
	}

	e.setState(processor.StateFinalizing)
	disposition := e.Disposition()
	finalizeCtx := context.WithoutCancel(ctx)

	var output any
	start := time.Now()
	err := processor.Guard(processor.StageFinalize, func() error {
		fin, ok := any(e.proc).(processor.Finalizer)
		if !ok {
			return nil
		}
		out, err := fin.Finalize(finalizeCtx, disposition)
		output = out
		return err
	})
	e.recordStage(processor.NewStageOutcome(processor.StageFinalize, time.Since(start), err))
	if err != nil {
		e.logger.Error("stage %s failed: %v", processor.StageFinalize, err)
		e.fail(processor.StageFinalize, err)
	}

	now := time.Now()
	e.mu.Lock()
	e.completedAt = now
	e.mu.Unlock()
	e.setState(processor.StateComplete)

	final := e.Disposition()
	e.logger.Info("run %s completed: %s", e.config.RunID, final)
	e.queue.Enqueue(events.RunCompleted{
		Output:      output,
		Disposition: final,
		Time:        now,
	})
	return err
}

// result decides what Run returns. A finalize error wins over the first
// stage failure. Failures of the process action are item accounting and are
// never returned.
func (e *Execution[T]) result(finalizeErr error) error {
	if e.config.HandleExceptions {
		return nil
	}
	if finalizeErr != nil {
		return processor.WrapStageError(processor.StageFinalize, finalizeErr)
	}

	e.mu.RLock()
	stage, err := e.failedStage, e.failedErr
	e.mu.RUnlock()

	if err == nil || stage == processor.StageProcessAction {
		return nil
	}
	return processor.WrapStageError(stage, err)
}
