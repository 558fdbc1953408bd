package domain

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrStoreUnavailable marks failures of the backing store. They surface as server errors
	// and are never retried inside the core.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrUpstreamService marks failures of the external image classifier.
	ErrUpstreamService = errors.New("upstream service error")
)

// ValidationError reports a field that violates its declared range or enum.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// UpstreamError wraps a failed or timed-out call to an external service.
type UpstreamError struct {
	Err        error
	Service    string
	StatusCode int
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s returned status %d: %v", e.Service, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Is makes every UpstreamError match ErrUpstreamService.
func (e *UpstreamError) Is(target error) bool { return target == ErrUpstreamService }

func checkRange(field string, v, lo, hi float64) error {
	if math.IsNaN(v) || v < lo || v > hi {
		return &ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("%g is outside [%g, %g]", v, lo, hi),
		}
	}
	return nil
}

func checkPositive(field string, v float64) error {
	if math.IsNaN(v) || v <= 0 {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("%g must be greater than 0", v)}
	}
	return nil
}

func required(field, v string) error {
	if v == "" {
		return &ValidationError{Field: field, Reason: "is required"}
	}
	return nil
}
