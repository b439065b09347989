package execution

import (
	"time"

	processor "github.com/goliatone/go-processor"
	"github.com/goliatone/go-processor/events"
)

type settings struct {
	logger       processor.Logger
	configPath   string
	scopes       processor.ScopeProvider
	pumpInterval time.Duration
	observers    *events.Observers
}

// Option configures an Execution.
type Option func(*settings)

// WithLogger sets the logger. A nil logger falls back to the fmt logger.
func WithLogger(logger processor.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithConfigPath sets the job file path reported in the started event.
func WithConfigPath(path string) Option {
	return func(s *settings) {
		s.configPath = path
	}
}

// WithScopeProvider sets how each worker resolves its dependency scope.
func WithScopeProvider(scopes processor.ScopeProvider) Option {
	return func(s *settings) {
		if scopes != nil {
			s.scopes = scopes
		}
	}
}

// WithPumpInterval overrides how often queued events are published.
func WithPumpInterval(d time.Duration) Option {
	return func(s *settings) {
		s.pumpInterval = d
	}
}

// WithObservers shares an observer registry instead of creating one.
func WithObservers(o *events.Observers) Option {
	return func(s *settings) {
		if o != nil {
			s.observers = o
		}
	}
}
