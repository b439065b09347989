package config

import (
	apperrors "github.com/goliatone/go-errors"
)

const (
	ErrCodeUnknownType   = "PROCESSOR_UNKNOWN_TYPE"
	ErrCodeDuplicateType = "PROCESSOR_DUPLICATE_TYPE"
	ErrCodeInvalidJob    = "PROCESSOR_INVALID_JOB"
)

var (
	ErrUnknownType = apperrors.New("unknown process type", apperrors.CategoryBadInput).
			WithTextCode(ErrCodeUnknownType)
	ErrDuplicateType = apperrors.New("process type already registered", apperrors.CategoryConflict).
				WithTextCode(ErrCodeDuplicateType)
	ErrInvalidJob = apperrors.New("invalid job file", apperrors.CategoryValidation).
			WithTextCode(ErrCodeInvalidJob)
)
