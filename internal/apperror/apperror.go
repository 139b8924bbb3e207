package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrPersistence = errors.New("persistence failure")
	ErrValidation  = errors.New("validation failed")
)

// PlaceSearchError wraps a failed call to the geocoding provider.
type PlaceSearchError struct {
	Err error
}

func (e *PlaceSearchError) Error() string {
	return fmt.Sprintf("place search failed: %v", e.Err)
}

func (e *PlaceSearchError) Unwrap() error { return e.Err }

// RoutingError wraps a failed call to the routing provider.
type RoutingError struct {
	Err error
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("routing failed: %v", e.Err)
}

func (e *RoutingError) Unwrap() error { return e.Err }

// Validation returns an error that matches ErrValidation and carries a reason.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
