package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type countingFunc struct {
	mu        sync.Mutex
	calls     int
	failUntil int // fail this many times, then succeed
}

func (cf *countingFunc) fn(_ context.Context) (int, error) {
	cf.mu.Lock()
	defer cf.mu.Unlock()
	cf.calls++
	if cf.calls <= cf.failUntil {
		return cf.calls, fmt.Errorf("forced error attempt %d", cf.calls)
	}
	return cf.calls, nil
}

func TestHandler_NoError_NoRetries(t *testing.T) {
	h := NewHandler()

	cf := &countingFunc{}
	attempt := Do(context.Background(), h, cf.fn, nil)

	if cf.calls != 1 {
		t.Errorf("expected calls=1, got %d", cf.calls)
	}
	if !attempt.Accepted || attempt.Attempts != 1 {
		t.Errorf("expected accepted first attempt, got %+v", attempt)
	}
	if h.Runs() != 1 || h.SuccessfulRuns() != 1 {
		t.Errorf("expected 1 run and 1 success, got %d and %d", h.Runs(), h.SuccessfulRuns())
	}
}

func TestHandler_SuccessOnSecondAttempt(t *testing.T) {
	h := NewHandler(WithMaxRetries(3))

	cf := &countingFunc{failUntil: 1}
	attempt := Do(context.Background(), h, cf.fn, nil)

	if cf.calls != 2 {
		t.Errorf("expected calls=2, got %d", cf.calls)
	}
	if attempt.Err != nil || attempt.Value != 2 || attempt.Attempts != 2 {
		t.Errorf("expected second attempt to be reported, got %+v", attempt)
	}
	if h.SuccessfulRuns() != 1 {
		t.Errorf("expected 1 successful run, got %d", h.SuccessfulRuns())
	}
}

func TestHandler_AllAttemptsFail(t *testing.T) {
	var handled []error
	h := NewHandler(
		WithMaxRetries(2),
		WithErrorHandler(func(err error) { handled = append(handled, err) }),
	)

	cf := &countingFunc{failUntil: 5}
	attempt := Do(context.Background(), h, cf.fn, nil)

	if cf.calls != 3 {
		t.Errorf("expected calls=3 (1 initial + 2 retries), got %d", cf.calls)
	}
	if attempt.Err == nil || attempt.Err.Error() != "forced error attempt 3" {
		t.Errorf("expected last attempt error, got %v", attempt.Err)
	}
	if len(handled) != 2 {
		t.Errorf("expected 2 retry notifications, got %d", len(handled))
	}
	if h.SuccessfulRuns() != 0 {
		t.Errorf("expected 0 successful runs, got %d", h.SuccessfulRuns())
	}
	if h.Attempts() != 3 {
		t.Errorf("expected 3 attempts, got %d", h.Attempts())
	}
}

func TestHandler_AcceptRejectsUnsuccessfulValues(t *testing.T) {
	h := NewHandler(WithMaxRetries(4))

	calls := 0
	attempt := Do(context.Background(), h, func(context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	}, func(ok bool, err error) bool {
		return err == nil && ok
	})

	if calls != 3 {
		t.Errorf("expected calls=3, got %d", calls)
	}
	if !attempt.Accepted || !attempt.Value {
		t.Errorf("expected accepted attempt, got %+v", attempt)
	}
}

func TestHandler_StopsRetryingWhenContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHandler(WithMaxRetries(10))

	calls := 0
	Do(ctx, h, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, context.Canceled
	}, nil)

	if calls != 1 {
		t.Errorf("expected a single call after cancellation, got %d", calls)
	}
}

func TestHandler_Timeout(t *testing.T) {
	h := NewHandler(
		WithTimeout(50*time.Millisecond),
		WithMaxRetries(0),
	)

	start := time.Now()
	attempt := Do(context.Background(), h, func(ctx context.Context) (int, error) {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(500 * time.Millisecond):
			return 1, nil
		}
	}, nil)
	elapsed := time.Since(start)

	if elapsed >= 500*time.Millisecond {
		t.Error("expected function to time out quickly, but took too long")
	}
	if !errors.Is(attempt.Err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", attempt.Err)
	}
}

func TestHandler_DeciderCanRefuseRetry(t *testing.T) {
	h := NewHandler(
		WithMaxRetries(5),
		WithRetryStrategy(fixedDecisionStrategy{decision: RetryDecision{ShouldRetry: false}}),
	)

	cf := &countingFunc{failUntil: 5}
	Do(context.Background(), h, cf.fn, nil)

	if cf.calls != 1 {
		t.Errorf("expected decider to stop after first attempt, got %d calls", cf.calls)
	}
}

func TestHandler_Concurrency(t *testing.T) {
	h := NewHandler(WithMaxRetries(1))
	wg := sync.WaitGroup{}
	const goroutines = 10

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cf := &countingFunc{failUntil: 1}
			Do(context.Background(), h, cf.fn, nil)
		}()
	}
	wg.Wait()

	if h.Runs() != goroutines {
		t.Errorf("expected runs=%d, got %d", goroutines, h.Runs())
	}
	if h.SuccessfulRuns() != goroutines {
		t.Errorf("expected successfulRuns=%d, got %d", goroutines, h.SuccessfulRuns())
	}
}

func TestHandler_LoggerReceivesRetryErrors(t *testing.T) {
	ml := &mockLogger{}
	h := NewHandler(
		WithLogger(ml),
		WithMaxRetries(1),
	)

	cf := &countingFunc{failUntil: 2}
	Do(context.Background(), h, cf.fn, nil)

	if len(ml.errorMessages) == 0 {
		t.Error("expected some error logs, got none")
	}
}

type mockLogger struct {
	infoMessages  []string
	errorMessages []string
}

func (m *mockLogger) Info(msg string, args ...any) {
	m.infoMessages = append(m.infoMessages, fmt.Sprintf(msg, args...))
}

func (m *mockLogger) Error(msg string, args ...any) {
	m.errorMessages = append(m.errorMessages, fmt.Sprintf(msg, args...))
}
