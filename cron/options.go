package cron

import (
	"fmt"

	rcron "github.com/robfig/cron/v3"
)

// LogLevel controls which scheduler messages reach the Logger.
type LogLevel int

const (
	LogLevelSilent LogLevel = iota
	LogLevelError
	LogLevelInfo
	LogLevelDebug
)

// Parser selects the cron expression dialect.
type Parser int

const (
	// DefaultParser accepts five field expressions and descriptors.
	DefaultParser Parser = iota
	StandardParser
	// SecondsParser expects a leading seconds field.
	SecondsParser
)

func (p Parser) option() rcron.Option {
	fields := rcron.Minute | rcron.Hour | rcron.Dom | rcron.Month | rcron.Dow | rcron.Descriptor
	if p == SecondsParser {
		fields |= rcron.Second
	}
	return rcron.WithParser(rcron.NewParser(fields))
}

type Option func(*Scheduler)

// WithLogger routes scheduler messages and, unless WithErrorHandler is set,
// failed runs to logger.
func WithLogger(logger Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

func WithLogLevel(level LogLevel) Option {
	return func(s *Scheduler) {
		s.logLevel = level
	}
}

// WithErrorHandler receives the error of every failed or panicking run.
func WithErrorHandler(handler func(error)) Option {
	return func(s *Scheduler) {
		s.errorHandler = handler
	}
}

func WithParser(p Parser) Option {
	return func(s *Scheduler) {
		s.parser = p
	}
}

// runLogger feeds robfig/cron messages into Logger, filtered by level.
type runLogger struct {
	logger Logger
	level  LogLevel
}

func (l runLogger) Info(msg string, keysAndValues ...any) {
	if l.level >= LogLevelInfo {
		l.logger.Info("cron: %s %v", msg, keysAndValues)
	}
}

func (l runLogger) Error(err error, msg string, keysAndValues ...any) {
	if l.level >= LogLevelError {
		l.logger.Error("cron: %s %v: %v", msg, keysAndValues, err)
	}
}

// panicReporter turns panics recovered by robfig/cron into handler calls.
type panicReporter struct {
	handler func(error)
}

func (panicReporter) Info(string, ...any) {}

func (r panicReporter) Error(err error, msg string, keysAndValues ...any) {
	if err == nil {
		err = fmt.Errorf("%s %v", msg, keysAndValues)
	}
	r.handler(err)
}
