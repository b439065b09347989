package processor

import (
	"fmt"
	"strings"
)

// ExecutionState is the lifecycle position of an execution. Values are ordered
// and an execution only ever moves forward through them.
type ExecutionState int

const (
	StateNotStarted ExecutionState = iota
	StateInitializing
	StateGettingItems
	StateProcessing
	StateFinalizing
	StateComplete
)

var stateNames = map[ExecutionState]string{
	StateNotStarted:   "not_started",
	StateInitializing: "initializing",
	StateGettingItems: "getting_items",
	StateProcessing:   "processing",
	StateFinalizing:   "finalizing",
	StateComplete:     "complete",
}

func (s ExecutionState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s ExecutionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ExecutionState) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown execution state %q", text)
}

// Disposition is the terminal classification of a run. It is derived from the
// recorded failure and cancellation marks, never stored.
type Disposition int

const (
	DispositionSuccessful Disposition = iota
	DispositionCancelled
	DispositionFailed
)

func (d Disposition) String() string {
	switch d {
	case DispositionSuccessful:
		return "successful"
	case DispositionCancelled:
		return "cancelled"
	case DispositionFailed:
		return "failed"
	default:
		return fmt.Sprintf("disposition(%d)", int(d))
	}
}

func (d Disposition) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Disposition) UnmarshalText(text []byte) error {
	for _, candidate := range []Disposition{DispositionSuccessful, DispositionCancelled, DispositionFailed} {
		if candidate.String() == string(text) {
			*d = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown disposition %q", text)
}

// Stage names one step of the lifecycle or of per item processing.
type Stage string

const (
	StageInitialize Stage = "initialize"
	StageGetItems   Stage = "get_items"
	StageGetCursor  Stage = "get_cursor"
	StageCount      Stage = "count"
	StageProcess    Stage = "process"
	StageFinalize   Stage = "finalize"

	StageCursorAdvance Stage = "cursor_advance"
	StageCursorRead    Stage = "cursor_read"
	StageItemID        Stage = "item_id"
	StageProcessAction Stage = "process_action"
)

// LifecycleStages lists the run level stages in the order they execute.
var LifecycleStages = []Stage{
	StageInitialize,
	StageGetItems,
	StageGetCursor,
	StageCount,
	StageProcess,
	StageFinalize,
}

// ItemStages lists the per item stages in the order they execute.
var ItemStages = []Stage{
	StageCursorAdvance,
	StageCursorRead,
	StageItemID,
	StageProcessAction,
}

// IsItemStage reports whether s is recorded on item outcomes rather than on the run.
func (s Stage) IsItemStage() bool {
	for _, st := range ItemStages {
		if st == s {
			return true
		}
	}
	return false
}

// ParseStage normalizes a stage name, returning false for unknown names.
func ParseStage(name string) (Stage, bool) {
	candidate := Stage(strings.ToLower(strings.TrimSpace(name)))
	for _, st := range LifecycleStages {
		if st == candidate {
			return st, true
		}
	}
	for _, st := range ItemStages {
		if st == candidate {
			return st, true
		}
	}
	return "", false
}
