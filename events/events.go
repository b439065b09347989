package events

import (
	"time"

	processor "github.com/goliatone/go-processor"
)

// Kind identifies the shape of an event.
type Kind int

const (
	KindStarted Kind = iota
	KindStateChanged
	KindStageCompleted
	KindItemCompleted
	KindRunCompleted
)

func (k Kind) String() string {
	switch k {
	case KindStarted:
		return "started"
	case KindStateChanged:
		return "state_changed"
	case KindStageCompleted:
		return "stage_completed"
	case KindItemCompleted:
		return "item_completed"
	case KindRunCompleted:
		return "run_completed"
	default:
		return "unknown"
	}
}

// Event is one notification produced by an execution.
type Event interface {
	Kind() Kind
}

// Started is published once when a run begins.
type Started struct {
	RunID      string
	ConfigPath string
	Time       time.Time
}

// StateChanged is published on every effective state transition.
type StateChanged struct {
	State processor.ExecutionState
}

// StageCompleted is published after every lifecycle stage.
type StageCompleted struct {
	Outcome processor.StageOutcome
}

// Progress is the counter snapshot taken when an item completed.
type Progress struct {
	Completed  int64
	Successful int64
	Failed     int64
}

// ItemCompleted is published once per item taken from the cursor.
type ItemCompleted struct {
	Outcome  *processor.ItemOutcome
	Progress Progress
}

// RunCompleted is published last, after finalize returned.
type RunCompleted struct {
	Output      any
	Disposition processor.Disposition
	Time        time.Time
}

func (Started) Kind() Kind        { return KindStarted }
func (StateChanged) Kind() Kind   { return KindStateChanged }
func (StageCompleted) Kind() Kind { return KindStageCompleted }
func (ItemCompleted) Kind() Kind  { return KindItemCompleted }
func (RunCompleted) Kind() Kind   { return KindRunCompleted }
