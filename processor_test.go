package processor

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type parseError struct{}

func (parseError) Error() string { return "parse" }

func TestItemOutcome_CategoryPrecedence(t *testing.T) {
	o := NewItemOutcome()
	o.Record(NewStageOutcome(StageCursorAdvance, 0, errors.New("advance")))
	o.Record(NewStageOutcome(StageCursorRead, 0, &parseError{}))
	assert.True(t, o.FailedDueToError())
	assert.Equal(t, "parseError", o.Category())

	o.SetID("item-1", NewStageOutcome(StageItemID, 0, nil))
	o.Complete(Failure().WithCategory("Rejected"), NewStageOutcome(StageProcessAction, 5*time.Millisecond, nil))
	assert.Equal(t, "item-1", o.ID)
	assert.False(t, o.IsSuccessful)
	assert.Equal(t, "Rejected", o.Category())
	assert.Equal(t, 5*time.Millisecond, o.ProcessDuration())
}

func TestItemOutcome_SuccessNeedsNoError(t *testing.T) {
	o := NewItemOutcome()
	o.Complete(Success(), NewStageOutcome(StageProcessAction, 0, errors.New("late")))
	assert.False(t, o.IsSuccessful)

	o = NewItemOutcome()
	o.Complete(Success().WithOutput(42), NewStageOutcome(StageProcessAction, 0, nil))
	assert.True(t, o.IsSuccessful)
	assert.Equal(t, 42, o.Output)
	assert.Empty(t, o.Category())
}

func TestItemOutcome_SetIDKeepsPrevious(t *testing.T) {
	o := NewItemOutcome()
	o.SetID("first", NewStageOutcome(StageItemID, 0, nil))
	o.SetID("", NewStageOutcome(StageItemID, 0, errors.New("no id")))
	assert.Equal(t, "first", o.ID)
	out, ok := o.Stage(StageItemID)
	require.True(t, ok)
	assert.False(t, out.IsSuccessful())
}

func TestErrorTypeName(t *testing.T) {
	assert.Empty(t, ErrorTypeName(nil))
	assert.Equal(t, "parseError", ErrorTypeName(parseError{}))
	assert.Equal(t, "parseError", ErrorTypeName(&parseError{}))
	assert.Equal(t, ErrCodePanic, ErrorTypeName(CloneError(ErrPanic, "", nil, nil)))
}

func TestStageError(t *testing.T) {
	boom := errors.New("boom")
	err := &StageError{Stage: StageCount, Err: boom}
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "count")
}

func TestGuard(t *testing.T) {
	assert.NoError(t, Guard(StageInitialize, func() error { return nil }))

	boom := errors.New("boom")
	assert.ErrorIs(t, Guard(StageInitialize, func() error { return boom }), boom)

	err := Guard(StageFinalize, func() error { panic("kaboom") })
	require.Error(t, err)
	assert.Equal(t, ErrCodePanic, ErrorCode(err))
	assert.Contains(t, err.Error(), "kaboom")
}

func TestExecutionConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultExecutionConfig().Validate())

	cfg := DefaultExecutionConfig()
	cfg.ParallelTaskCount = -1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidConfig, ErrorCode(err))

	cfg = DefaultExecutionConfig()
	cfg.ResultsToFile = true
	assert.Error(t, cfg.Validate())

	cfg.ResultsFilePath = "out.json"
	cfg.ItemFailureRetryCount = -2
	cfg.Delay = -1
	assert.Error(t, cfg.Validate())
}

func TestExecutionConfig_Normalize(t *testing.T) {
	cfg := ExecutionConfig{ParallelTaskCount: 0, ItemFailureRetryCount: -1, ItemFailureCountToStopProcess: 0}.Normalize()
	assert.Equal(t, 1, cfg.ParallelTaskCount)
	assert.Equal(t, 0, cfg.ItemFailureRetryCount)
	assert.Equal(t, 1, cfg.ItemFailureCountToStopProcess)

	cfg = ExecutionConfig{ParallelTaskCount: 4, ItemFailureRetryCount: 2, ItemFailureCountToStopProcess: 3, Delay: 2}
	assert.Equal(t, cfg, cfg.Normalize())
	assert.Equal(t, 2*time.Second, cfg.StartDelay())
}

func TestExecutionConfig_ZeroValueIsNotTheDefault(t *testing.T) {
	assert.False(t, ExecutionConfig{}.HandleExceptions)
	assert.True(t, DefaultExecutionConfig().HandleExceptions)
	assert.Equal(t, DefaultExecutionConfig(), DefaultExecutionConfig().Normalize())
}

func TestExecutionConfig_WithRunID(t *testing.T) {
	cfg := DefaultExecutionConfig().WithRunID()
	assert.NotEmpty(t, cfg.RunID)
	assert.Equal(t, cfg.RunID, cfg.WithRunID().RunID)
}

func TestParseStage(t *testing.T) {
	st, ok := ParseStage(" Process_Action ")
	require.True(t, ok)
	assert.Equal(t, StageProcessAction, st)
	assert.True(t, st.IsItemStage())

	st, ok = ParseStage("finalize")
	require.True(t, ok)
	assert.False(t, st.IsItemStage())

	_, ok = ParseStage("nope")
	assert.False(t, ok)
}

func TestStateAndDispositionText(t *testing.T) {
	assert.Equal(t, "getting_items", StateGettingItems.String())
	assert.True(t, StateProcessing < StateFinalizing)
	text, err := DispositionCancelled.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "cancelled", string(text))

	var d Disposition
	require.NoError(t, d.UnmarshalText([]byte("failed")))
	assert.Equal(t, DispositionFailed, d)
	assert.Error(t, d.UnmarshalText([]byte("unknown")))

	var s ExecutionState
	require.NoError(t, s.UnmarshalText([]byte("finalizing")))
	assert.Equal(t, StateFinalizing, s)
}

func TestResolve(t *testing.T) {
	scope := Deps{"name": "db", "port": 5432}

	name, err := Resolve[string](scope, "name")
	require.NoError(t, err)
	assert.Equal(t, "db", name)

	_, err = Resolve[string](scope, "port")
	assert.Equal(t, ErrCodeMissingDependency, ErrorCode(err))

	_, err = Resolve[int](scope, "missing")
	assert.Equal(t, ErrCodeMissingDependency, ErrorCode(err))

	_, err = Resolve[int](nil, "port")
	assert.Error(t, err)
}

func TestStaticScope(t *testing.T) {
	deps := Deps{"k": 1}
	scope, err := StaticScope(deps).NewScope(context.Background())
	require.NoError(t, err)
	v, ok := scope.Value("k")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.NoError(t, CloseScope(scope))
}

func TestFmtLogger_Fields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := WithLoggerFields(NewFmtLogger(buf), map[string]any{"run_id": "r1", "stage": "count"})
	logger.Info("processed %d items", 3)

	line := buf.String()
	assert.Contains(t, line, "INFO")
	assert.Contains(t, line, "processed 3 items")
	assert.Contains(t, line, "run_id=r1 stage=count")
}

func TestNormalizeLogger(t *testing.T) {
	assert.NotNil(t, NormalizeLogger(nil))
	assert.Equal(t, NopLogger{}, WithLoggerFields(NopLogger{}, map[string]any{"a": 1}))
}

type namedItems struct{}

func (namedItems) ItemID(_ context.Context, item int) (string, error) {
	return "n-" + string(rune('a'+item)), nil
}

func (namedItems) Options() Options { return Options{} }

func TestResolveItemID(t *testing.T) {
	id, err := ResolveItemID(context.Background(), struct{}{}, 7)
	require.NoError(t, err)
	assert.Equal(t, "7", id)

	id, err = ResolveItemID(context.Background(), namedItems{}, 1)
	require.NoError(t, err)
	assert.Equal(t, "n-b", id)
}

func TestOptionsOf(t *testing.T) {
	assert.True(t, OptionsOf(struct{}{}).CanProcessInParallel)
	assert.False(t, OptionsOf(namedItems{}).CanProcessInParallel)
}

func TestProcessFunc(t *testing.T) {
	var p Processor[string] = ProcessFunc(func(_ context.Context, scope Scope) (Result, error) {
		name, err := Resolve[string](scope, "name")
		if err != nil {
			return Failure(), err
		}
		return Success().WithOutput("hello " + name), nil
	})

	seq, err := p.Items(context.Background())
	require.NoError(t, err)
	items := drain(t, seq)
	require.Len(t, items, 1)

	res, err := p.Process(context.Background(), Deps{"name": "world"}, items[0])
	require.NoError(t, err)
	assert.True(t, res.IsSuccessful)
	assert.Equal(t, "hello world", res.Output)
}
