package service

import (
	"errors"
	"time"
)

// Errors returned to interactive callers.  Handlers map them to HTTP
// statuses; wrap with fmt.Errorf("%w") to add detail.
var (
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrProfileRequired    = errors.New("profile required")
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("not found")
	ErrInvalidState       = errors.New("invalid state")
	ErrVerificationFailed = errors.New("verification failed")
	ErrMissingFields      = errors.New("missing required fields")
)

// ValidationError is an ErrInvalidInput with the human readable reason.
// ScheduledTime is set when the rejected input resolved to an instant.
type ValidationError struct {
	Reason        error
	ScheduledTime time.Time
}

func (e *ValidationError) Error() string { return e.Reason.Error() }

func (e *ValidationError) Unwrap() error { return e.Reason }

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

func invalid(reason error) error { return &ValidationError{Reason: reason} }
