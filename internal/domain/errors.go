package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every structured error below matches exactly one of these
// through errors.Is, so callers can branch on the kind and use errors.As
// when they need the details.
var (
	// ErrNotFound is returned when a referenced trip, handshake or tile grid does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized is returned when the caller lacks the required role or ownership.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrStateConflict is returned when a handshake transition precondition is not met.
	ErrStateConflict = errors.New("state conflict")

	// ErrValidation is returned for out-of-bounds coordinates, malformed polylines
	// and degenerate geometry.
	ErrValidation = errors.New("validation failed")

	// ErrCapacity is returned when a seat reservation would make remaining seats negative.
	ErrCapacity = errors.New("insufficient capacity")

	// ErrUpstream is returned when the geometry engine, route provider or store fails.
	ErrUpstream = errors.New("upstream failure")
)

// NotFoundError identifies the missing entity.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Kind)
	}
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// AuthorizationError describes why a caller was refused.
type AuthorizationError struct {
	CallerID string
	Action   string
	Reason   string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("caller %q not allowed to %s: %s", e.CallerID, e.Action, e.Reason)
}

func (e *AuthorizationError) Is(target error) bool { return target == ErrUnauthorized }

// StateConflictError carries the handshake's current state, the state that
// had to be reached before the attempt, and the attempted state.
type StateConflictError struct {
	HandshakeID string
	Current     HandshakeState
	Required    HandshakeState
	Attempted   HandshakeState
	Reason      string
}

func (e *StateConflictError) Error() string {
	msg := fmt.Sprintf("handshake %s: cannot move to %s from %s", e.HandshakeID, e.Attempted, e.Current)
	if e.Required != "" {
		msg += fmt.Sprintf(" (requires %s)", e.Required)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *StateConflictError) Is(target error) bool { return target == ErrStateConflict }

// TripStateError reports a hosted or requested trip in the wrong lifecycle
// state for the operation, e.g. starting a trip twice.
type TripStateError struct {
	Kind   string
	TripID string
	Reason string
}

func (e *TripStateError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Kind, e.TripID, e.Reason)
}

func (e *TripStateError) Is(target error) bool { return target == ErrStateConflict }

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidationError is a shorthand used by the geometry and tile packages.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// CapacityError reports a seat reservation that did not fit.
type CapacityError struct {
	HostedTripID string
	Remaining    int
	Requested    int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("hosted trip %s has %d remaining seats, %d requested", e.HostedTripID, e.Remaining, e.Requested)
}

func (e *CapacityError) Is(target error) bool { return target == ErrCapacity }

// UpstreamError wraps a failure from an external collaborator.
type UpstreamError struct {
	Service string
	Op      string
	Err     error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Service, e.Op, e.Err)
}

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

func (e *UpstreamError) Unwrap() error { return e.Err }

// Upstream wraps err as an UpstreamError unless it already carries a domain kind.
func Upstream(service, op string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomainError(err) {
		return err
	}
	return &UpstreamError{Service: service, Op: op, Err: err}
}

// IsDomainError reports whether err matches any of the error kinds above.
func IsDomainError(err error) bool {
	for _, kind := range []error{ErrNotFound, ErrUnauthorized, ErrStateConflict, ErrValidation, ErrCapacity, ErrUpstream} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
