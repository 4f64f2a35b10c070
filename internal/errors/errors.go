// Package errors holds the error definitions shared by every velinterp package.
//
// Errors fall into five families that decide how the pipeline reacts:
//   - input errors abort the run before any checkpoint is written
//   - task errors stay attached to a single row, which remains unresolved
//   - persistence errors abort the run immediately
//   - runner errors abort the batch and the run
//   - config errors abort startup
package errors

import (
	"errors"
	"fmt"
)

// ============================================================================
// Sentinel errors
// ============================================================================

var (
	// Input errors
	ErrMalformedRoute     = errors.New("malformed route file")
	ErrMissingSeries      = errors.New("missing velocity series")
	ErrMalformedSeries    = errors.New("malformed velocity series")
	ErrEmptySeries        = errors.New("empty velocity series")
	ErrDuplicateStamp     = errors.New("duplicate time stamp")
	ErrNoCommonRows       = errors.New("no common time stamps across series")
	ErrCheckpointMismatch = errors.New("checkpoint does not match route")

	// Task errors
	ErrNoSurfacePoints    = errors.New("no surface points")
	ErrDegenerateGeometry = errors.New("degenerate point configuration")
	ErrNonFiniteInput     = errors.New("non-finite input")
	ErrInterpolation      = errors.New("interpolation failed")

	// Persistence errors
	ErrCheckpointRead  = errors.New("checkpoint read failed")
	ErrCheckpointWrite = errors.New("checkpoint write failed")

	// Runner errors
	ErrRunnerClosed    = errors.New("job runner is shut down")
	ErrWorkerPanic     = errors.New("worker panic")
	ErrDuplicateJobKey = errors.New("duplicate job key")
	ErrMissingResult   = errors.New("missing job result")

	// Config errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingField  = errors.New("missing required field")
)

// ============================================================================
// Category predicates
// ============================================================================

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// Join is a convenience wrapper for errors.Join
var Join = errors.Join

// New is a convenience wrapper for errors.New
var New = errors.New

// IsInputError reports whether err stems from bad input data.
func IsInputError(err error) bool {
	return errors.Is(err, ErrMalformedRoute) ||
		errors.Is(err, ErrMissingSeries) ||
		errors.Is(err, ErrMalformedSeries) ||
		errors.Is(err, ErrEmptySeries) ||
		errors.Is(err, ErrDuplicateStamp) ||
		errors.Is(err, ErrNoCommonRows) ||
		errors.Is(err, ErrCheckpointMismatch)
}

// IsTaskError reports whether err is a per-row interpolation failure.
func IsTaskError(err error) bool {
	return errors.Is(err, ErrNoSurfacePoints) ||
		errors.Is(err, ErrDegenerateGeometry) ||
		errors.Is(err, ErrNonFiniteInput) ||
		errors.Is(err, ErrInterpolation)
}

// IsPersistenceError reports whether err came from reading or writing a checkpoint.
func IsPersistenceError(err error) bool {
	return errors.Is(err, ErrCheckpointRead) ||
		errors.Is(err, ErrCheckpointWrite)
}

// IsRunnerError reports whether err came from the job runner itself.
func IsRunnerError(err error) bool {
	return errors.Is(err, ErrRunnerClosed) ||
		errors.Is(err, ErrWorkerPanic) ||
		errors.Is(err, ErrDuplicateJobKey) ||
		errors.Is(err, ErrMissingResult)
}

// IsConfigError reports whether err is a configuration problem.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingField)
}

// IsFatal reports whether err must terminate the run. Input, persistence,
// runner and config errors are fatal. Anything else is a per-row failure
// that leaves the row unresolved for the next run.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return IsRunnerError(err) ||
		IsPersistenceError(err) ||
		IsInputError(err) ||
		IsConfigError(err)
}

// ============================================================================
// Error wrapping utilities
// ============================================================================

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// ============================================================================
// Error constructors with context
// ============================================================================

// NewValidation creates a validation error with context.
func NewValidation(field, reason string) error {
	return fmt.Errorf("invalid %s: %s: %w", field, reason, ErrInvalidConfig)
}

// NewMissingField creates a missing field error.
func NewMissingField(field string) error {
	return fmt.Errorf("%s: %w", field, ErrMissingField)
}

// NewInvalidValue creates an invalid value error.
func NewInvalidValue(field string, value interface{}, reason string) error {
	return fmt.Errorf("invalid %s '%v': %s: %w", field, value, reason, ErrInvalidConfig)
}

// ============================================================================
// Validation Errors Collection
// ============================================================================

// ValidationErrors collects multiple validation errors.
type ValidationErrors struct {
	Errors []error
}

// NewValidationErrors creates a new ValidationErrors collector.
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{}
}

// Add adds an error to the collection.
func (v *ValidationErrors) Add(err error) {
	if err != nil {
		v.Errors = append(v.Errors, err)
	}
}

// AddField adds a field validation error.
func (v *ValidationErrors) AddField(field, reason string) {
	v.Errors = append(v.Errors, NewValidation(field, reason))
}

// AddMissing adds a missing field error.
func (v *ValidationErrors) AddMissing(field string) {
	v.Errors = append(v.Errors, NewMissingField(field))
}

// Error implements the error interface.
func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return ""
	}
	if len(v.Errors) == 1 {
		return v.Errors[0].Error()
	}

	msg := fmt.Sprintf("validation failed with %d errors:", len(v.Errors))
	for _, err := range v.Errors {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Err returns nil if no errors, otherwise returns the ValidationErrors.
func (v *ValidationErrors) Err() error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v
}

// Unwrap returns the collected errors for errors.Is/As support.
func (v *ValidationErrors) Unwrap() []error {
	return v.Errors
}
