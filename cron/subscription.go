package cron

import "sync"

// Status is the position of a scheduled job in its life.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusRunning   Status = "running"
	StatusIdle      Status = "idle"
	StatusFailed    Status = "failed"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
	StatusStopped   Status = "stopped"
)

// Terminal reports whether no further run will happen.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCanceled || s == StatusStopped
}

// Handle tracks one scheduled job. Done is closed once the status is terminal,
// or once a one-shot job finished, whatever its outcome.
type Handle interface {
	ID() int64
	Status() Status
	// Err is the error of the last run.
	Err() error
	Done() <-chan struct{}
	// Cancel prevents further runs. It does nothing once the handle is terminal.
	Cancel()
}

type handle struct {
	scheduler *Scheduler
	id        int64
	entryID   int
	done      chan struct{}
	closeOnce sync.Once

	mu     sync.RWMutex
	status Status
	err    error
}

func (h *handle) ID() int64 {
	return h.id
}

func (h *handle) Status() Status {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}

func (h *handle) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

func (h *handle) Done() <-chan struct{} {
	return h.done
}

func (h *handle) Cancel() {
	if h.Status().Terminal() {
		return
	}
	h.scheduler.forget(h.id)
	h.finish(StatusCanceled, nil)
}

func (h *handle) set(status Status, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = status
	h.err = err
}

// finish records the last status and closes Done.
func (h *handle) finish(status Status, err error) {
	h.set(status, err)
	h.closeOnce.Do(func() { close(h.done) })
}
