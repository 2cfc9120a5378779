package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the fixed failure taxonomy. Every retry and failover
// decision in the system derives from it; nothing else re-interprets raw
// error messages.
type ErrorKind string

const (
	ErrKindQuotaExceeded  ErrorKind = "quota_exceeded"
	ErrKindServiceCrash   ErrorKind = "service_crash"
	ErrKindTimeout        ErrorKind = "timeout"
	ErrKindInvalidRequest ErrorKind = "invalid_request"
	ErrKindAuthentication ErrorKind = "authentication"
	ErrKindNetwork        ErrorKind = "network"
	ErrKindUnknown        ErrorKind = "unknown"
)

// Sentinel errors shared across components.
var (
	// ErrAlreadyInProgress is returned when a duplicate submission races a
	// live run for the same idempotency key.
	ErrAlreadyInProgress = errors.New("analysis already in progress for this request")

	// ErrBreakerOpen is returned when a provider's circuit breaker rejects
	// a call without attempting the dependency.
	ErrBreakerOpen = errors.New("provider temporarily unavailable (circuit open)")

	// ErrQuotaExhausted is returned when quota admission denies a call
	// before it is made.
	ErrQuotaExhausted = errors.New("provider quota exhausted")
)

// ClassifiedError attaches a taxonomy kind to an underlying failure.
type ClassifiedError struct {
	Kind     ErrorKind
	Provider string
	Err      error
}

func (e *ClassifiedError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s (%s): %v", e.Kind, e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ClassifiedError) Unwrap() error { return e.Err }

// KindOf extracts the taxonomy kind from an error chain, defaulting to
// ErrKindUnknown when no ClassifiedError is present.
func KindOf(err error) ErrorKind {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ErrKindUnknown
}
