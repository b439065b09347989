package processortest_test

import (
	"context"
	"testing"

	processor "github.com/goliatone/go-processor"
	"github.com/goliatone/go-processor/diagnostics"
	"github.com/goliatone/go-processor/events"
	"github.com/goliatone/go-processor/execution"
	"github.com/goliatone/go-processor/processortest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestRun_RunsOnce(t *testing.T) {
	run, err := processortest.New[int](
		diagnostics.New(diagnostics.Config{NumberOfItems: 2}),
		processor.DefaultExecutionConfig(),
		execution.WithLogger(processor.NopLogger{}),
	)
	require.NoError(t, err)

	require.NoError(t, run.Run(context.Background(), 0))

	err = run.Run(context.Background(), 0)
	require.Error(t, err)
	assert.Equal(t, processor.ErrCodeAlreadyRun, processor.ErrorCode(err))
}

func TestTestRun_CancelBeforeRunFails(t *testing.T) {
	run, err := processortest.New[int](
		diagnostics.New(diagnostics.DefaultConfig()),
		processor.DefaultExecutionConfig(),
		execution.WithLogger(processor.NopLogger{}),
	)
	require.NoError(t, err)

	err = run.Cancel()
	require.Error(t, err)
	assert.Equal(t, processor.ErrCodeNotStarted, processor.ErrorCode(err))
}

func TestTestRun_RecordsEventsInOrder(t *testing.T) {
	run, err := processortest.New[int](
		diagnostics.New(diagnostics.Config{NumberOfItems: 3, CanCountItems: true}),
		processor.DefaultExecutionConfig(),
		execution.WithLogger(processor.NopLogger{}),
	)
	require.NoError(t, err)
	require.NoError(t, run.Run(context.Background(), 0))

	kinds := run.Recorder.Kinds()
	require.NotEmpty(t, kinds)
	assert.Equal(t, events.KindStarted, kinds[0])
	assert.Equal(t, events.KindRunCompleted, kinds[len(kinds)-1])
	assert.Len(t, run.Recorder.Items(), 3)
	assert.Len(t, run.Recorder.Stages(), len(processor.LifecycleStages))

	completed, ok := run.Recorder.Completed()
	require.True(t, ok)
	assert.Equal(t, processor.DispositionSuccessful, completed.Disposition)
}

func TestTestRun_InvalidConfig(t *testing.T) {
	cfg := processor.DefaultExecutionConfig()
	cfg.ParallelTaskCount = -1

	_, err := processortest.New[int](diagnostics.New(diagnostics.DefaultConfig()), cfg)
	require.Error(t, err)
	assert.Equal(t, processor.ErrCodeInvalidConfig, processor.ErrorCode(err))
}
