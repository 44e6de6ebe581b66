package planner

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a referenced stop or itinerary does not
// exist. Callers should use errors.Is to distinguish this from other
// errors.
var ErrNotFound = errors.New("not found")

// ValidationError reports malformed edit input. No mutation is applied when
// one is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: field %q: %s", e.Field, e.Message)
}

// ProviderError wraps a failed directions provider call. The edit that
// triggered the call is rolled back in full, so clients may safely retry.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("directions provider: %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
