package processor

import (
	"context"
	"fmt"
)

// Scope is the bundle of collaborators handed to a process action. A scope is
// resolved once per worker and reused for every item that worker processes.
type Scope interface {
	Value(key string) (any, bool)
}

// Deps is a map backed Scope.
type Deps map[string]any

func (d Deps) Value(key string) (any, bool) {
	v, ok := d[key]
	return v, ok
}

// ScopeProvider creates the scope for a worker. Scopes implementing
// interface{ Close() error } are closed when the worker exits.
type ScopeProvider interface {
	NewScope(ctx context.Context) (Scope, error)
}

type ScopeFunc func(ctx context.Context) (Scope, error)

func (f ScopeFunc) NewScope(ctx context.Context) (Scope, error) {
	return f(ctx)
}

// StaticScope shares deps across all workers.
func StaticScope(deps Deps) ScopeProvider {
	return ScopeFunc(func(context.Context) (Scope, error) {
		return deps, nil
	})
}

// Resolve fetches key from scope as a T.
func Resolve[T any](scope Scope, key string) (T, error) {
	var zero T
	if scope == nil {
		return zero, CloneError(ErrMissingDependency, "", nil, map[string]any{"key": key})
	}
	v, ok := scope.Value(key)
	if !ok {
		return zero, CloneError(ErrMissingDependency, "", nil, map[string]any{"key": key})
	}
	typed, ok := v.(T)
	if !ok {
		return zero, CloneError(
			ErrMissingDependency,
			fmt.Sprintf("dependency %q has type %T, want %T", key, v, zero),
			nil,
			map[string]any{"key": key},
		)
	}
	return typed, nil
}

// CloseScope closes scope when it holds resources.
func CloseScope(scope Scope) error {
	if c, ok := scope.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
