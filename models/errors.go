package models

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	ErrorKindValidation            ErrorKind = "VALIDATION"
	ErrorKindUnsupportedUnit       ErrorKind = "UNSUPPORTED_UNIT"
	ErrorKindIncompatibleDimension ErrorKind = "INCOMPATIBLE_DIMENSION"
	ErrorKindMassBalanceViolation  ErrorKind = "MASS_BALANCE_VIOLATION"
	ErrorKindLossExceedsOutput     ErrorKind = "LOSS_EXCEEDS_OUTPUT"
	ErrorKindMissingRecipe         ErrorKind = "MISSING_RECIPE"
	ErrorKindInvalidBatchSize      ErrorKind = "INVALID_BATCH_SIZE"
	ErrorKindNotFound              ErrorKind = "NOT_FOUND"
	ErrorKindInvalidTransition     ErrorKind = "INVALID_TRANSITION"
	ErrorKindDuplicateId           ErrorKind = "DUPLICATE_ID"
	ErrorKindSnapshotConflict      ErrorKind = "SNAPSHOT_CONFLICT"
)

// Sentinels for errors.Is. An *EngineError matches the sentinel of its kind.
var (
	ErrValidation            = &EngineError{Kind: ErrorKindValidation}
	ErrUnsupportedUnit       = &EngineError{Kind: ErrorKindUnsupportedUnit}
	ErrIncompatibleDimension = &EngineError{Kind: ErrorKindIncompatibleDimension}
	ErrMassBalanceViolation  = &EngineError{Kind: ErrorKindMassBalanceViolation}
	ErrLossExceedsOutput     = &EngineError{Kind: ErrorKindLossExceedsOutput}
	ErrMissingRecipe         = &EngineError{Kind: ErrorKindMissingRecipe}
	ErrInvalidBatchSize      = &EngineError{Kind: ErrorKindInvalidBatchSize}
	ErrNotFound              = &EngineError{Kind: ErrorKindNotFound}
	ErrInvalidTransition     = &EngineError{Kind: ErrorKindInvalidTransition}
	ErrDuplicateId           = &EngineError{Kind: ErrorKindDuplicateId}
	ErrSnapshotConflict      = &EngineError{Kind: ErrorKindSnapshotConflict}
)

// EngineError is the single error type returned by the manufacturing engine.
type EngineError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *EngineError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// IsBusinessRule reports whether the error is an expected rejection the caller can recover from.
// Unit-table misuse and id collisions are programmer errors.
func (e *EngineError) IsBusinessRule() bool {
	switch e.Kind {
	case ErrorKindUnsupportedUnit, ErrorKindIncompatibleDimension, ErrorKindDuplicateId:
		return false
	}
	return true
}

// NewEngineError is for callers outside the engine that need to report in the same taxonomy.
func NewEngineError(kind ErrorKind, message string) *EngineError {
	return &EngineError{Kind: kind, Message: message}
}

func newEngineError(kind ErrorKind, format string, args ...any) *EngineError {
	return &EngineError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func validationError(format string, args ...any) *EngineError {
	return newEngineError(ErrorKindValidation, format, args...)
}

func notFoundError(entity string, id int) *EngineError {
	return newEngineError(ErrorKindNotFound, "%s %d not found", entity, id)
}

// KindOf returns the engine error kind of err, or "" when err is not an engine error.
func KindOf(err error) ErrorKind {
	var e *EngineError
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
