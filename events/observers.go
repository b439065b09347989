package events

import (
	"context"
	"fmt"
	"sync"

	processor "github.com/goliatone/go-processor"
)

// Subscription removes a registered observer.
type Subscription interface {
	Unsubscribe()
}

type observer struct {
	fn func(ctx context.Context, e Event) error
}

// Observers holds the callbacks notified for each event kind. Callback
// errors and panics are logged and discarded.
type Observers struct {
	mu       sync.RWMutex
	handlers map[Kind][]*observer
	logger   processor.Logger
}

func NewObservers(logger processor.Logger) *Observers {
	if logger == nil {
		logger = processor.NopLogger{}
	}
	return &Observers{
		handlers: make(map[Kind][]*observer),
		logger:   logger,
	}
}

type subs struct {
	observers *Observers
	kind      Kind
	handler   *observer
}

func (s *subs) Unsubscribe() {
	o := s.observers
	o.mu.Lock()
	defer o.mu.Unlock()

	handlers := o.handlers[s.kind]
	newList := make([]*observer, 0, len(handlers))
	for _, h := range handlers {
		if h != s.handler {
			newList = append(newList, h)
		}
	}
	o.handlers[s.kind] = newList
}

func (o *Observers) subscribe(kind Kind, fn func(ctx context.Context, e Event) error) Subscription {
	h := &observer{fn: fn}
	o.mu.Lock()
	o.handlers[kind] = append(o.handlers[kind], h)
	o.mu.Unlock()
	return &subs{observers: o, kind: kind, handler: h}
}

func (o *Observers) OnStarted(fn func(ctx context.Context, e Started) error) Subscription {
	return o.subscribe(KindStarted, func(ctx context.Context, e Event) error {
		return fn(ctx, e.(Started))
	})
}

func (o *Observers) OnStateChanged(fn func(ctx context.Context, e StateChanged) error) Subscription {
	return o.subscribe(KindStateChanged, func(ctx context.Context, e Event) error {
		return fn(ctx, e.(StateChanged))
	})
}

func (o *Observers) OnStageCompleted(fn func(ctx context.Context, e StageCompleted) error) Subscription {
	return o.subscribe(KindStageCompleted, func(ctx context.Context, e Event) error {
		return fn(ctx, e.(StageCompleted))
	})
}

func (o *Observers) OnItemCompleted(fn func(ctx context.Context, e ItemCompleted) error) Subscription {
	return o.subscribe(KindItemCompleted, func(ctx context.Context, e Event) error {
		return fn(ctx, e.(ItemCompleted))
	})
}

func (o *Observers) OnRunCompleted(fn func(ctx context.Context, e RunCompleted) error) Subscription {
	return o.subscribe(KindRunCompleted, func(ctx context.Context, e Event) error {
		return fn(ctx, e.(RunCompleted))
	})
}

// OnAny registers fn for every event kind.
func (o *Observers) OnAny(fn func(ctx context.Context, e Event) error) Subscription {
	kinds := []Kind{KindStarted, KindStateChanged, KindStageCompleted, KindItemCompleted, KindRunCompleted}
	list := make(multiSubscription, 0, len(kinds))
	for _, k := range kinds {
		list = append(list, o.subscribe(k, fn))
	}
	return list
}

type multiSubscription []Subscription

func (m multiSubscription) Unsubscribe() {
	for _, s := range m {
		s.Unsubscribe()
	}
}

// Dispatch calls every observer registered for e's kind, in registration order.
func (o *Observers) Dispatch(ctx context.Context, e Event) {
	o.mu.RLock()
	handlers := append([]*observer(nil), o.handlers[e.Kind()]...)
	o.mu.RUnlock()

	for idx, h := range handlers {
		if err := o.call(ctx, h, e); err != nil {
			o.logger.Debug("observer failed for %s at index=%d: %v", e.Kind(), idx, err)
		}
	}
}

func (o *Observers) call(ctx context.Context, h *observer, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observer panic: %v", r)
		}
	}()
	return h.fn(ctx, e)
}
