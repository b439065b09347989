package processor

import (
	"context"
	"fmt"
)

// Processor is a user defined unit of work: a source of items and the action
// applied to each of them.
type Processor[T any] interface {
	ItemSource[T]
	Process(ctx context.Context, scope Scope, item T) (Result, error)
}

// ItemSource yields the sequence of items to process.
type ItemSource[T any] interface {
	Items(ctx context.Context) (Sequence[T], error)
}

// ItemIdentifier resolves the id reported for an item. Sources that do not
// implement it get the item's string form.
type ItemIdentifier[T any] interface {
	ItemID(ctx context.Context, item T) (string, error)
}

// Initializer is called once before items are requested.
type Initializer interface {
	Initialize(ctx context.Context) error
}

// Finalizer is always called once at the end of a run, even when an earlier
// stage failed. Its output is published with the completion event.
type Finalizer interface {
	Finalize(ctx context.Context, disposition Disposition) (any, error)
}

// Options are static capabilities of a processor.
type Options struct {
	CanProcessInParallel bool
}

func DefaultOptions() Options {
	return Options{CanProcessInParallel: true}
}

// OptionsProvider lets a processor override DefaultOptions.
type OptionsProvider interface {
	Options() Options
}

// OptionsOf returns the options of p, falling back to DefaultOptions.
func OptionsOf(p any) Options {
	if op, ok := p.(OptionsProvider); ok {
		return op.Options()
	}
	return DefaultOptions()
}

// ResolveItemID resolves the id of item through src when it implements
// ItemIdentifier.
func ResolveItemID[T any](ctx context.Context, src any, item T) (string, error) {
	if ider, ok := src.(ItemIdentifier[T]); ok {
		return ider.ItemID(ctx, item)
	}
	return fmt.Sprint(item), nil
}

// ProcessFunc adapts a function into a processor with a single item.
type ProcessFunc func(ctx context.Context, scope Scope) (Result, error)

const singleItemName = "process"

func (f ProcessFunc) Items(context.Context) (Sequence[string], error) {
	return Single(singleItemName), nil
}

func (f ProcessFunc) Process(ctx context.Context, scope Scope, _ string) (Result, error) {
	return f(ctx, scope)
}
