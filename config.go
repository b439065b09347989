package processor

import (
	"fmt"
	"time"

	apperrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// ExecutionConfig determines how a processor executes and reports.
//
// The zero value is not the default policy: it leaves HandleExceptions and
// ResultsToConsole off. Start from DefaultExecutionConfig and override fields,
// as job files do.
type ExecutionConfig struct {
	// RunID identifies a single run. A random id is assigned when empty.
	RunID string `yaml:"run_id,omitempty" json:"run_id,omitempty"`

	// ParallelTaskCount is the number of workers processing items. 1 by default.
	ParallelTaskCount int `yaml:"parallel_task_count" json:"parallel_task_count"`

	// ItemFailureRetryCount is the number of extra attempts for an item whose
	// process action errors or returns an unsuccessful result. 0 by default.
	ItemFailureRetryCount int `yaml:"item_failure_retry_count" json:"item_failure_retry_count"`

	// ItemFailureCountToStopProcess is the number of failed items that stops
	// the run in a failed state. 1 by default. Items already in flight on
	// other workers are allowed to finish, so more items than this may fail.
	ItemFailureCountToStopProcess int `yaml:"item_failure_count_to_stop_process" json:"item_failure_count_to_stop_process"`

	// HandleExceptions captures stage errors into outcomes when true. When
	// false the first stage error is returned to the caller once finalize ran.
	HandleExceptions bool `yaml:"handle_exceptions" json:"handle_exceptions"`

	RetryDelay         time.Duration `yaml:"retry_delay,omitempty" json:"retry_delay,omitempty"`
	RetryBackoffFactor float64       `yaml:"retry_backoff_factor,omitempty" json:"retry_backoff_factor,omitempty"`
	RetryMaxDelay      time.Duration `yaml:"retry_max_delay,omitempty" json:"retry_max_delay,omitempty"`

	// ItemTimeout bounds every process action attempt when positive.
	ItemTimeout time.Duration `yaml:"item_timeout,omitempty" json:"item_timeout,omitempty"`

	ResultsToFile    bool   `yaml:"results_to_file" json:"results_to_file"`
	ResultsFilePath  string `yaml:"results_file_path,omitempty" json:"results_file_path,omitempty"`
	ResultsToConsole bool   `yaml:"results_to_console" json:"results_to_console"`

	// Delay is the number of seconds a host waits before starting the run.
	Delay int `yaml:"delay,omitempty" json:"delay,omitempty"`

	// HistoryDSN points a host at a sqlite database recording finished runs.
	HistoryDSN string `yaml:"history_dsn,omitempty" json:"history_dsn,omitempty"`
}

// DefaultExecutionConfig returns the defaults applied before a job file is decoded.
func DefaultExecutionConfig() ExecutionConfig {
	return ExecutionConfig{
		ParallelTaskCount:             1,
		ItemFailureRetryCount:         0,
		ItemFailureCountToStopProcess: 1,
		HandleExceptions:              true,
		ResultsToConsole:              true,
	}
}

// Validate rejects values that cannot be clamped into a meaningful policy.
func (c ExecutionConfig) Validate() error {
	var errs []error
	check := func(ok bool, field string, value any) {
		if !ok {
			errs = append(errs, CloneError(
				ErrInvalidConfig,
				fmt.Sprintf("invalid value for %s: %v", field, value),
				nil,
				map[string]any{"field": field, "value": value},
			))
		}
	}

	check(c.ParallelTaskCount >= 0, "parallel_task_count", c.ParallelTaskCount)
	check(c.ItemFailureRetryCount >= 0, "item_failure_retry_count", c.ItemFailureRetryCount)
	check(c.ItemFailureCountToStopProcess >= 0, "item_failure_count_to_stop_process", c.ItemFailureCountToStopProcess)
	check(c.RetryDelay >= 0, "retry_delay", c.RetryDelay)
	check(c.RetryBackoffFactor >= 0, "retry_backoff_factor", c.RetryBackoffFactor)
	check(c.RetryMaxDelay >= 0, "retry_max_delay", c.RetryMaxDelay)
	check(c.ItemTimeout >= 0, "item_timeout", c.ItemTimeout)
	check(c.Delay >= 0, "delay", c.Delay)
	check(!c.ResultsToFile || c.ResultsFilePath != "", "results_file_path", c.ResultsFilePath)

	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	return apperrors.Join(errs...)
}

// WithRunID returns a copy with a run id assigned when missing.
func (c ExecutionConfig) WithRunID() ExecutionConfig {
	if c.RunID == "" {
		c.RunID = uuid.NewString()
	}
	return c
}

// Normalize returns a copy with every count clamped to its effective minimum:
// at least one worker, no negative retries and a failure threshold of at
// least one. Executions run with the normalized copy.
func (c ExecutionConfig) Normalize() ExecutionConfig {
	if c.ParallelTaskCount < 1 {
		c.ParallelTaskCount = 1
	}
	if c.ItemFailureRetryCount < 0 {
		c.ItemFailureRetryCount = 0
	}
	if c.ItemFailureCountToStopProcess < 1 {
		c.ItemFailureCountToStopProcess = 1
	}
	return c
}

// StartDelay is Delay as a duration.
func (c ExecutionConfig) StartDelay() time.Duration {
	if c.Delay <= 0 {
		return 0
	}
	return time.Duration(c.Delay) * time.Second
}
