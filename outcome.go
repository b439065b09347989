package processor

import "time"

// StageOutcome records a single call into processor code.
type StageOutcome struct {
	Stage    Stage         `json:"stage"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

func NewStageOutcome(stage Stage, duration time.Duration, err error) StageOutcome {
	return StageOutcome{Stage: stage, Duration: duration, Err: err}
}

func (o StageOutcome) IsSuccessful() bool {
	return o.Err == nil
}

// Result is what a process action reports for one item.
type Result struct {
	IsSuccessful bool
	Category     string
	Output       any
}

func Success() Result {
	return Result{IsSuccessful: true}
}

func Failure() Result {
	return Result{}
}

func (r Result) WithCategory(category string) Result {
	r.Category = category
	return r
}

func (r Result) WithOutput(output any) Result {
	r.Output = output
	return r
}

// ItemOutcome is the journey of one item through the pipeline. It is built by
// a single worker and must not be mutated once it has been published.
type ItemOutcome struct {
	ID           string
	IsSuccessful bool
	Output       any
	Stages       map[Stage]StageOutcome

	category string
}

func NewItemOutcome() *ItemOutcome {
	return &ItemOutcome{Stages: make(map[Stage]StageOutcome, len(ItemStages))}
}

// Record stores the outcome of one item stage.
func (o *ItemOutcome) Record(outcome StageOutcome) {
	o.Stages[outcome.Stage] = outcome
}

// SetID stores the resolved id together with the id resolution outcome. An
// empty id keeps the previous value.
func (o *ItemOutcome) SetID(id string, outcome StageOutcome) {
	o.Record(outcome)
	if id != "" {
		o.ID = id
	}
}

// Complete stores the final process action attempt and its result.
func (o *ItemOutcome) Complete(result Result, outcome StageOutcome) {
	o.Record(outcome)
	o.IsSuccessful = result.IsSuccessful && outcome.Err == nil
	o.category = result.Category
	o.Output = result.Output
}

// Stage returns the outcome recorded for stage, if any.
func (o *ItemOutcome) Stage(stage Stage) (StageOutcome, bool) {
	out, ok := o.Stages[stage]
	return out, ok
}

// Err returns the first error in pipeline precedence: process action, id
// resolution, cursor read, cursor advance.
func (o *ItemOutcome) Err() error {
	for _, stage := range []Stage{StageProcessAction, StageItemID, StageCursorRead, StageCursorAdvance} {
		if out, ok := o.Stages[stage]; ok && out.Err != nil {
			return out.Err
		}
	}
	return nil
}

// FailedDueToError reports whether any item stage recorded an error.
func (o *ItemOutcome) FailedDueToError() bool {
	return o.Err() != nil
}

// Category is the explicit category set by the process action or, when none
// was given and the item failed with an error, the error's type name.
func (o *ItemOutcome) Category() string {
	if o.category != "" {
		return o.category
	}
	return ErrorTypeName(o.Err())
}

// ProcessDuration is the duration of the last process action attempt.
func (o *ItemOutcome) ProcessDuration() time.Duration {
	return o.Stages[StageProcessAction].Duration
}
