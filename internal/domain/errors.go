package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is matched by every ValidationError via errors.Is
	ErrValidation = errors.New("validation failed")

	// ErrUnknownStore is returned when a requested store is not in the registry
	ErrUnknownStore = errors.New("unknown store")

	// ErrUnknownStrategy is returned when a strategy name cannot be parsed
	ErrUnknownStrategy = errors.New("unknown optimization strategy")

	// ErrSearchSpaceTooLarge is returned when exact search is asked to enumerate too many stores
	ErrSearchSpaceTooLarge = errors.New("too many candidate stores for exact search")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrStoreAPIFailure is returned when a store search API request fails
	ErrStoreAPIFailure = errors.New("store API request failed")

	// ErrNoEndpoint is returned when no search endpoint is configured for a store
	ErrNoEndpoint = errors.New("no search endpoint configured for store")

	// ErrNoMatch is returned when a store search has no listing for the item
	ErrNoMatch = errors.New("no matching listing")

	// ErrLowConfidence is returned when the best listing match is below the confidence threshold
	ErrLowConfidence = errors.New("listing match confidence too low")

	// ErrRunNotFound is returned when a persisted run does not exist
	ErrRunNotFound = errors.New("run not found")

	// ErrSummaryUnavailable is returned when the summary collaborator cannot produce text
	ErrSummaryUnavailable = errors.New("summary unavailable")
)

// ValidationError describes malformed or empty optimizer input.
// It is never recovered silently.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// Is reports ErrValidation for every ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
