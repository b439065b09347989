package processor

import (
	stderrors "errors"
	"fmt"
	"strings"

	apperrors "github.com/goliatone/go-errors"
)

const (
	ErrCodeInvalidConfig     = "PROCESSOR_INVALID_CONFIG"
	ErrCodeStageFailed       = "PROCESSOR_STAGE_FAILED"
	ErrCodePanic             = "PROCESSOR_PANIC"
	ErrCodeAlreadyRun        = "PROCESSOR_ALREADY_RUN"
	ErrCodeMissingDependency = "PROCESSOR_MISSING_DEPENDENCY"
	ErrCodeFailureThreshold  = "PROCESSOR_FAILURE_THRESHOLD"
	ErrCodeCancelAfter       = "PROCESSOR_CANCEL_AFTER"
	ErrCodeCursorPosition    = "PROCESSOR_CURSOR_POSITION"
	ErrCodeNilSequence       = "PROCESSOR_NIL_SEQUENCE"
	ErrCodeNotStarted        = "PROCESSOR_NOT_STARTED"
)

var (
	ErrInvalidConfig = apperrors.New("invalid execution config", apperrors.CategoryValidation).
				WithTextCode(ErrCodeInvalidConfig)
	ErrStageFailed = apperrors.New("processor stage failed", apperrors.CategoryHandler).
			WithTextCode(ErrCodeStageFailed)
	ErrPanic = apperrors.New("recovered from panic", apperrors.CategoryHandler).
			WithTextCode(ErrCodePanic)
	ErrAlreadyRun = apperrors.New("execution already started", apperrors.CategoryConflict).
			WithTextCode(ErrCodeAlreadyRun)
	ErrMissingDependency = apperrors.New("dependency not found in scope", apperrors.CategoryBadInput).
				WithTextCode(ErrCodeMissingDependency)
	ErrFailureThreshold = apperrors.New("item failure threshold reached", apperrors.CategoryHandler).
				WithTextCode(ErrCodeFailureThreshold)
	ErrCancelAfter = apperrors.New("completed item limit reached", apperrors.CategoryHandler).
			WithTextCode(ErrCodeCancelAfter)
	ErrCursorPosition = apperrors.New("cursor is not positioned on an item", apperrors.CategoryBadInput).
				WithTextCode(ErrCodeCursorPosition)
	ErrNilSequence = apperrors.New("item source returned a nil sequence", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeNilSequence)
	ErrNotStarted = apperrors.New("execution has not started", apperrors.CategoryConflict).
			WithTextCode(ErrCodeNotStarted)
)

// CloneError copies base and overrides its message, source and metadata.
func CloneError(base *apperrors.Error, message string, source error, metadata map[string]any) *apperrors.Error {
	if base == nil {
		base = ErrStageFailed
	}
	err := base.Clone()
	if text := strings.TrimSpace(message); text != "" {
		err.Message = text
	}
	if source != nil {
		err.Source = source
	}
	if len(metadata) > 0 {
		err = err.WithMetadata(metadata)
	}
	return err
}

// ErrorCode returns the text code of the first go-errors error in the chain.
func ErrorCode(err error) string {
	var ge *apperrors.Error
	if stderrors.As(err, &ge) {
		return ge.TextCode
	}
	return ""
}

// ErrorTypeName names an error for category tallies: its text code when it
// carries one, otherwise its unqualified type name.
func ErrorTypeName(err error) string {
	if err == nil {
		return ""
	}
	if code := ErrorCode(err); code != "" {
		return code
	}
	name := strings.TrimLeft(fmt.Sprintf("%T", err), "*")
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	return name
}

// StageError is returned from a run when exceptions are not handled and a
// stage failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("stage %s failed", e.Stage)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// WrapStageError is a helper to create a StageError.
func WrapStageError(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}
