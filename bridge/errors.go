/*
errors.go - Centralized error types for the bridge

PURPOSE:
  All error types in one place. Domain outcomes of event ingestion are NOT
  errors (see Outcome in reconcile.go); the errors here cover malformed
  input at the boundary, illegal state changes, missing rows and invalid
  operator settings.

USAGE:
  if errors.Is(err, bridge.ErrInvalidPayload) {
      // reject at the boundary, log, move on
  }
*/
package bridge

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidPayload is returned when an event payload cannot be normalized.
	ErrInvalidPayload = errors.New("invalid event payload")

	// ErrUnknownStatus is returned for a status string outside the lifecycle.
	ErrUnknownStatus = errors.New("unknown booking status")

	// ErrIllegalTransition is returned when a status change breaks the state machine.
	ErrIllegalTransition = errors.New("illegal status transition")

	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidSettings is returned when a settings document fails validation.
	ErrInvalidSettings = errors.New("invalid settings")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// PayloadError names the offending payload field.
type PayloadError struct {
	Field  string
	Reason string
}

func (e *PayloadError) Error() string {
	return fmt.Sprintf("invalid payload: %s: %s", e.Field, e.Reason)
}

func (e *PayloadError) Unwrap() error { return ErrInvalidPayload }

// TransitionError describes a rejected status change.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrIllegalTransition }

// SettingsError names the offending settings entry.
type SettingsError struct {
	Index  int // mapping index, -1 for document-level problems
	Reason string
}

func (e *SettingsError) Error() string {
	if e.Index < 0 {
		return "invalid settings: " + e.Reason
	}
	return fmt.Sprintf("invalid settings: mapping %d: %s", e.Index, e.Reason)
}

func (e *SettingsError) Unwrap() error { return ErrInvalidSettings }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPayload) ||
		errors.Is(err, ErrUnknownStatus) ||
		errors.Is(err, ErrIllegalTransition) ||
		errors.Is(err, ErrInvalidSettings)
}

// IsNotFound returns true if the error indicates a missing row.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
