package stats

import (
	"sync"
	"time"
)

// Window is the count and mean of the samples in one averaging window.
type Window struct {
	Count int64         `json:"count"`
	Total time.Duration `json:"total"`
}

// Mean is zero for an empty window.
func (w Window) Mean() time.Duration {
	if w.Count == 0 {
		return 0
	}
	return w.Total / time.Duration(w.Count)
}

type sample struct {
	at       time.Time
	duration time.Duration
}

// RollingAverage tracks item latency all time and over a trailing window
// (one minute by default). Failed items count as errors and add no duration.
type RollingAverage struct {
	mu sync.Mutex

	name   string
	span   time.Duration
	now    func() time.Time
	all    Window
	recent []sample
	errors int64
}

type Option func(*RollingAverage)

// WithClock replaces time.Now, used by tests to move time forward.
func WithClock(now func() time.Time) Option {
	return func(a *RollingAverage) {
		if now != nil {
			a.now = now
		}
	}
}

// WithSpan sets the trailing window length.
func WithSpan(span time.Duration) Option {
	return func(a *RollingAverage) {
		if span > 0 {
			a.span = span
		}
	}
}

func NewRollingAverage(name string, opts ...Option) *RollingAverage {
	a := &RollingAverage{
		name: name,
		span: time.Minute,
		now:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

func (a *RollingAverage) Name() string {
	return a.name
}

func (a *RollingAverage) RecordSuccess(d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.all.Count++
	a.all.Total += d
	a.recent = append(a.recent, sample{at: a.now(), duration: d})
}

func (a *RollingAverage) RecordError() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errors++
}

// Purge drops trailing window samples older than the span.
func (a *RollingAverage) Purge() {
	a.mu.Lock()
	defer a.mu.Unlock()
	cutoff := a.now().Add(-a.span)
	keep := 0
	for keep < len(a.recent) && a.recent[keep].at.Before(cutoff) {
		keep++
	}
	if keep > 0 {
		a.recent = append(a.recent[:0], a.recent[keep:]...)
	}
}

func (a *RollingAverage) AllTime() Window {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.all
}

// LastMinute reports the samples inside the trailing window, purged or not.
func (a *RollingAverage) LastMinute() Window {
	a.mu.Lock()
	defer a.mu.Unlock()
	cutoff := a.now().Add(-a.span)
	var w Window
	for _, s := range a.recent {
		if s.at.Before(cutoff) {
			continue
		}
		w.Count++
		w.Total += s.duration
	}
	return w
}

func (a *RollingAverage) Errors() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.errors
}
