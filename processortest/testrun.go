// Package processortest runs processors in tests and records what they publish.
package processortest

import (
	"context"
	"sync/atomic"

	processor "github.com/goliatone/go-processor"
	"github.com/goliatone/go-processor/execution"
)

// TestRun wraps an Execution with an attached Recorder.
type TestRun[T any] struct {
	Execution *execution.Execution[T]
	Recorder  *Recorder

	ran atomic.Bool
}

// New builds a run of p. Options are passed through to the execution.
func New[T any](p processor.Processor[T], cfg processor.ExecutionConfig, opts ...execution.Option) (*TestRun[T], error) {
	exec, err := execution.New(p, cfg, opts...)
	if err != nil {
		return nil, err
	}
	rec := &Recorder{}
	rec.Attach(exec.Observers())
	return &TestRun[T]{Execution: exec, Recorder: rec}, nil
}

// Run executes the processor once. A positive cancelAfter cancels the run
// after that many items completed.
func (r *TestRun[T]) Run(ctx context.Context, cancelAfter int) error {
	if !r.ran.CompareAndSwap(false, true) {
		return processor.CloneError(processor.ErrAlreadyRun, "test run can only be run once", nil, nil)
	}
	r.Execution.CancelAfter(cancelAfter)
	return r.Execution.Run(ctx)
}

// Cancel cancels a run in progress. It fails when Run was not called.
func (r *TestRun[T]) Cancel() error {
	if !r.ran.Load() {
		return processor.CloneError(processor.ErrNotStarted, "test run has not been started", nil, nil)
	}
	return r.Execution.Cancel()
}
