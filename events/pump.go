package events

import (
	"context"
	"sync"
	"time"

	processor "github.com/goliatone/go-processor"
)

// DefaultInterval is how often the pump drains the queue.
const DefaultInterval = 50 * time.Millisecond

// Recorder receives item latencies before item events are dispatched.
type Recorder interface {
	RecordSuccess(d time.Duration)
	RecordError()
	Purge()
}

// Pump drains a Queue into Observers on a fixed tick and once more, to
// completion, when stopped.
type Pump struct {
	queue     *Queue
	observers *Observers
	recorder  Recorder
	interval  time.Duration
	logger    processor.Logger

	mu      sync.Mutex
	ctx     context.Context
	stop    chan struct{}
	done    chan struct{}
	started bool
	stopped bool
}

type PumpOption func(*Pump)

func WithInterval(d time.Duration) PumpOption {
	return func(p *Pump) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithRecorder(r Recorder) PumpOption {
	return func(p *Pump) {
		p.recorder = r
	}
}

func WithLogger(l processor.Logger) PumpOption {
	return func(p *Pump) {
		if l != nil {
			p.logger = l
		}
	}
}

func NewPump(queue *Queue, observers *Observers, opts ...PumpOption) *Pump {
	p := &Pump{
		queue:     queue,
		observers: observers,
		interval:  DefaultInterval,
		logger:    processor.NopLogger{},
		ctx:       context.Background(),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.observers == nil {
		p.observers = NewObservers(p.logger)
	}
	return p
}

// Start launches the background loop. Observers receive ctx, which should not
// be the run's cancellation context so events still flow after a cancel.
func (p *Pump) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	if ctx != nil {
		p.ctx = ctx
	}
	go p.loop()
}

func (p *Pump) loop() {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.Flush()
		select {
		case <-p.stop:
			return
		case <-ticker.C:
		}
	}
}

// Stop ends the loop, waits for it, then drains whatever is left.
func (p *Pump) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	started := p.started
	close(p.stop)
	p.mu.Unlock()

	if started {
		<-p.done
	}
	p.Flush()
}

// Flush publishes every queued event, then purges the recorder. It must only
// be called by the single consumer.
func (p *Pump) Flush() {
	for {
		e, ok := p.queue.TryDequeue()
		if !ok {
			break
		}
		p.publish(e)
	}
	if p.recorder != nil {
		p.recorder.Purge()
	}
}

func (p *Pump) publish(e Event) {
	if item, ok := e.(ItemCompleted); ok && p.recorder != nil && item.Outcome != nil {
		if item.Outcome.IsSuccessful {
			p.recorder.RecordSuccess(item.Outcome.ProcessDuration())
		} else {
			p.recorder.RecordError()
		}
	}
	p.observers.Dispatch(p.ctx, e)
}
