package processortest

import (
	"context"
	"sync"

	processor "github.com/goliatone/go-processor"
	"github.com/goliatone/go-processor/events"
)

// Recorder keeps every event published by an execution, in order.
type Recorder struct {
	mu     sync.Mutex
	events []events.Event
}

// Attach subscribes the recorder to all event kinds of o.
func (r *Recorder) Attach(o *events.Observers) events.Subscription {
	return o.OnAny(func(_ context.Context, e events.Event) error {
		r.mu.Lock()
		r.events = append(r.events, e)
		r.mu.Unlock()
		return nil
	})
}

func (r *Recorder) Events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds lists the kind of every recorded event.
func (r *Recorder) Kinds() []events.Kind {
	var out []events.Kind
	for _, e := range r.Events() {
		out = append(out, e.Kind())
	}
	return out
}

func (r *Recorder) States() []processor.ExecutionState {
	var out []processor.ExecutionState
	for _, e := range r.Events() {
		if sc, ok := e.(events.StateChanged); ok {
			out = append(out, sc.State)
		}
	}
	return out
}

func (r *Recorder) Stages() []processor.StageOutcome {
	var out []processor.StageOutcome
	for _, e := range r.Events() {
		if sc, ok := e.(events.StageCompleted); ok {
			out = append(out, sc.Outcome)
		}
	}
	return out
}

func (r *Recorder) Items() []events.ItemCompleted {
	var out []events.ItemCompleted
	for _, e := range r.Events() {
		if ic, ok := e.(events.ItemCompleted); ok {
			out = append(out, ic)
		}
	}
	return out
}

// Completed returns the run completed event, if one was published.
func (r *Recorder) Completed() (events.RunCompleted, bool) {
	for _, e := range r.Events() {
		if rc, ok := e.(events.RunCompleted); ok {
			return rc, true
		}
	}
	return events.RunCompleted{}, false
}
