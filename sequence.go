package processor

import (
	"context"
	"iter"
	"sync"
)

// Sequence is a handle on the items of a run. Cursor is called once per run.
type Sequence[T any] interface {
	Cursor(ctx context.Context) (Cursor[T], error)
}

// Cursor is a stateful, single consumer iteration handle. Next advances to the
// next item and Current reads it. Implementations need not be safe for
// concurrent use; callers serialize access. Cursors implementing
// interface{ Close() error } are closed once processing ends.
type Cursor[T any] interface {
	Next(ctx context.Context) (bool, error)
	Current() (T, error)
}

// Counter is implemented by sequences that can be sized without being consumed.
type Counter interface {
	CanCount() bool
	Count(ctx context.Context) (int, error)
}

// FromSlice returns a sequence over items. When canCount is true the run
// reports a total item count.
func FromSlice[T any](items []T, canCount bool) Sequence[T] {
	return FromLoader(func(context.Context) ([]T, error) { return items, nil }, canCount)
}

// FromLoader returns a sequence whose items are loaded when the cursor is
// created. The loader runs at most once.
func FromLoader[T any](load func(ctx context.Context) ([]T, error), canCount bool) Sequence[T] {
	return &sliceSequence[T]{load: load, canCount: canCount}
}

// Single returns a countable sequence holding one item.
func Single[T any](item T) Sequence[T] {
	return FromSlice([]T{item}, true)
}

type sliceSequence[T any] struct {
	mu       sync.Mutex
	load     func(ctx context.Context) ([]T, error)
	canCount bool
	loaded   bool
	items    []T
}

func (s *sliceSequence[T]) ensure(ctx context.Context) ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return s.items, nil
	}
	items, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	s.items = items
	s.loaded = true
	return items, nil
}

func (s *sliceSequence[T]) Cursor(ctx context.Context) (Cursor[T], error) {
	items, err := s.ensure(ctx)
	if err != nil {
		return nil, err
	}
	return &sliceCursor[T]{items: items, pos: -1}, nil
}

func (s *sliceSequence[T]) CanCount() bool {
	return s.canCount
}

func (s *sliceSequence[T]) Count(ctx context.Context) (int, error) {
	items, err := s.ensure(ctx)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

type sliceCursor[T any] struct {
	items []T
	pos   int
}

func (c *sliceCursor[T]) Next(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if c.pos+1 >= len(c.items) {
		c.pos = len(c.items)
		return false, nil
	}
	c.pos++
	return true, nil
}

func (c *sliceCursor[T]) Current() (T, error) {
	if c.pos < 0 || c.pos >= len(c.items) {
		var zero T
		return zero, ErrCursorPosition
	}
	return c.items[c.pos], nil
}

// FromSeq returns a sequence pulling from seq. It cannot be counted.
func FromSeq[T any](seq iter.Seq[T]) Sequence[T] {
	return seqSequence[T]{seq: seq}
}

type seqSequence[T any] struct {
	seq iter.Seq[T]
}

func (s seqSequence[T]) Cursor(context.Context) (Cursor[T], error) {
	next, stop := iter.Pull(s.seq)
	return &pullCursor[T]{next: next, stop: stop}, nil
}

type pullCursor[T any] struct {
	next    func() (T, bool)
	stop    func()
	current T
	has     bool
}

func (c *pullCursor[T]) Next(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	v, ok := c.next()
	c.current, c.has = v, ok
	return ok, nil
}

func (c *pullCursor[T]) Current() (T, error) {
	if !c.has {
		var zero T
		return zero, ErrCursorPosition
	}
	return c.current, nil
}

func (c *pullCursor[T]) Close() error {
	c.stop()
	return nil
}

// FromChannel returns a sequence receiving from ch until it is closed.
func FromChannel[T any](ch <-chan T) Sequence[T] {
	return chanSequence[T]{ch: ch}
}

type chanSequence[T any] struct {
	ch <-chan T
}

func (s chanSequence[T]) Cursor(context.Context) (Cursor[T], error) {
	return &chanCursor[T]{ch: s.ch}, nil
}

type chanCursor[T any] struct {
	ch      <-chan T
	current T
	has     bool
}

func (c *chanCursor[T]) Next(ctx context.Context) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case v, ok := <-c.ch:
		c.current, c.has = v, ok
		return ok, nil
	}
}

func (c *chanCursor[T]) Current() (T, error) {
	if !c.has {
		var zero T
		return zero, ErrCursorPosition
	}
	return c.current, nil
}
