/*
transitions.go - Session status state machine

STATES:
  pending ──▶ approved ──▶ completed
     │            │
     └────────────┴──────▶ cancelled

  pending ──▶ completed is allowed: the booking system may report a session
  completed without ever emitting an approval.

  completed and cancelled are terminal. A transition to the current state is
  re-entrant and always a no-op; duplicate deliveries land here.
*/
package bridge

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of one booked session.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ParseStatus maps a booking-system status string to a Status.
// Empty strings are treated as pending.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pending":
		return StatusPending, nil
	case "approved":
		return StatusApproved, nil
	case "completed":
		return StatusCompleted, nil
	case "cancelled", "canceled", "rejected":
		return StatusCancelled, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
}

// IsTerminal reports whether no further transitions leave s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// IsAdvanced reports whether a session in s counts toward lesson completion.
func (s Status) IsAdvanced() bool {
	return s == StatusApproved || s == StatusCompleted
}

// IsActive reports whether s occupies the user's weekly booking slot.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusApproved || s == StatusCompleted
}

// =============================================================================
// TRANSITION TABLE
// =============================================================================

type transition struct {
	From Status
	To   Status
}

var transitionsTable = []transition{
	{From: StatusPending, To: StatusApproved},
	{From: StatusPending, To: StatusCompleted},
	{From: StatusApproved, To: StatusCompleted},
	{From: StatusPending, To: StatusCancelled},
	{From: StatusApproved, To: StatusCancelled},
}

// Step is the result of checking a status change.
type Step int

const (
	StepIllegal   Step = iota // not permitted
	StepReentrant             // already in the target state
	StepAdvance               // permitted, state changes
)

// CheckTransition classifies a change from one status to another.
func CheckTransition(from, to Status) Step {
	if from == to {
		return StepReentrant
	}
	for _, tr := range transitionsTable {
		if tr.From == from && tr.To == to {
			return StepAdvance
		}
	}
	return StepIllegal
}

// Transition returns an error unless from -> to advances the state.
// Re-entrant changes are reported as (false, nil).
func Transition(from, to Status) (bool, error) {
	switch CheckTransition(from, to) {
	case StepAdvance:
		return true, nil
	case StepReentrant:
		return false, nil
	default:
		return false, &TransitionError{From: from, To: to}
	}
}
