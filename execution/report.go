package execution

import (
	"context"
	"time"

	processor "github.com/goliatone/go-processor"
	"github.com/goliatone/go-processor/events"
	"github.com/goliatone/go-processor/stats"
)

// Runnable is the type erased view of an Execution used by hosts.
type Runnable interface {
	Run(ctx context.Context) error
	Cancel() error
	CancelAfter(n int)
	RunID() string
	Observers() *events.Observers
	Report() Report
}

var _ Runnable = (*Execution[string])(nil)

// Report is a point in time snapshot of an execution.
type Report struct {
	RunID       string                   `json:"run_id"`
	State       processor.ExecutionState `json:"state"`
	Disposition processor.Disposition    `json:"disposition"`
	TotalItems  *int                     `json:"total_items,omitempty"`
	Completed   int64                    `json:"completed"`
	Successful  int64                    `json:"successful"`
	Failed      int64                    `json:"failed"`
	Categories  []stats.Category         `json:"categories"`
	Stages      []StageReport            `json:"stages"`
	StartedAt   time.Time                `json:"started_at"`
	CompletedAt time.Time                `json:"completed_at"`
	FailedStage processor.Stage          `json:"failed_stage,omitempty"`
	Error       string                   `json:"error,omitempty"`
	AllTime     stats.Window             `json:"all_time"`
	LastMinute  stats.Window             `json:"last_minute"`
}

// StageReport is a StageOutcome with its error rendered as text.
type StageReport struct {
	Stage    processor.Stage `json:"stage"`
	Duration time.Duration   `json:"duration"`
	Error    string          `json:"error,omitempty"`
}

// Report snapshots counters, stage outcomes and item latencies.
func (e *Execution[T]) Report() Report {
	r := Report{
		RunID:       e.config.RunID,
		State:       e.State(),
		Disposition: e.Disposition(),
		Successful:  e.SuccessfulItemCount(),
		Failed:      e.FailedItemCount(),
		Categories:  e.ItemCategories(),
		StartedAt:   e.StartedAt(),
		CompletedAt: e.CompletedAt(),
		FailedStage: e.FailedStage(),
		AllTime:     e.itemTime.AllTime(),
		LastMinute:  e.itemTime.LastMinute(),
	}
	r.Completed = r.Successful + r.Failed
	if n, ok := e.TotalItemCount(); ok {
		r.TotalItems = &n
	}
	if err := e.FailedBecauseOf(); err != nil {
		r.Error = err.Error()
	}
	for _, o := range e.Stages() {
		sr := StageReport{Stage: o.Stage, Duration: o.Duration}
		if o.Err != nil {
			sr.Error = o.Err.Error()
		}
		r.Stages = append(r.Stages, sr)
	}
	return r
}
