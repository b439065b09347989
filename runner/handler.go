package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/goliatone/go-errors"
)

const ErrCodeAttemptFailed = "RUN_ATTEMPT_FAILED"

type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Handler runs a function with bounded retries.
type Handler struct {
	mu sync.Mutex

	logger        Logger
	errorHandler  func(error)
	retryStrategy RetryStrategy

	runs           int
	successfulRuns int
	attempts       int

	maxRetries int
	timeout    time.Duration
}

// Attempt describes the last call made by Do.
type Attempt[R any] struct {
	Value    R
	Err      error
	Duration time.Duration
	Attempts int
	Accepted bool
}

// NewHandler constructs a Handler from various options, applying defaults if unset.
func NewHandler(opts ...Option) *Handler {
	h := &Handler{
		retryStrategy: NoDelayStrategy{},
	}
	for _, o := range opts {
		if o != nil {
			o(h)
		}
	}
	return h
}

// Do calls fn until accept approves a result or maxRetries extra attempts
// were made. A nil accept approves any nil error. Only the last attempt is
// reported. Retries stop early when ctx is done.
func Do[R any](ctx context.Context, h *Handler, fn func(context.Context) (R, error), accept func(R, error) bool) Attempt[R] {
	if accept == nil {
		accept = func(_ R, err error) bool { return err == nil }
	}

	h.mu.Lock()
	maxRetries := h.maxRetries
	strategy := h.retryStrategy
	h.mu.Unlock()

	if maxRetries < 0 {
		maxRetries = 0
	}

	var last Attempt[R]
	for attempt := 0; attempt <= maxRetries; attempt++ {
		attemptCtx, cancel := h.contextWithSettings(ctx)
		start := time.Now()
		value, err := fn(attemptCtx)
		elapsed := time.Since(start)
		cancel()

		last = Attempt[R]{
			Value:    value,
			Err:      err,
			Duration: elapsed,
			Attempts: attempt + 1,
			Accepted: accept(value, err),
		}
		if last.Accepted || attempt == maxRetries {
			break
		}

		h.handleError(attemptError(err, attempt+1, maxRetries+1))

		if ctx.Err() != nil {
			break
		}
		decision := DecideRetry(strategy, attempt, err)
		if !decision.ShouldRetry || !sleep(ctx, decision.Delay) {
			break
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.runs++
	h.attempts += last.Attempts
	if last.Accepted {
		h.successfulRuns++
	}

	return last
}

// Runs is the number of Do calls completed.
func (h *Handler) Runs() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.runs
}

// SuccessfulRuns is the number of Do calls whose last attempt was accepted.
func (h *Handler) SuccessfulRuns() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.successfulRuns
}

// Attempts is the total number of fn calls across all runs.
func (h *Handler) Attempts() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.attempts
}

func attemptError(err error, attempt, total int) error {
	msg := fmt.Sprintf("attempt %d of %d failed", attempt, total)
	var wrapped *apperrors.Error
	if err != nil {
		wrapped = apperrors.Wrap(err, apperrors.CategoryHandler, msg)
	} else {
		wrapped = apperrors.New(msg+": unsuccessful result", apperrors.CategoryHandler)
	}
	return wrapped.
		WithTextCode(ErrCodeAttemptFailed).
		WithMetadata(map[string]any{
			"attempt":      attempt,
			"max_attempts": total,
		})
}

func (h *Handler) handleError(err error) {
	if h.errorHandler != nil {
		h.errorHandler(err)
		return
	}
	if h.logger != nil {
		h.logger.Error("runner error: %v", err)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (h *Handler) contextWithSettings(parent context.Context) (context.Context, context.CancelFunc) {
	if h.timeout > 0 {
		return context.WithTimeout(parent, h.timeout)
	}
	return parent, func() {}
}
