/*
Package bridge reconciles an external booking system with an external course system.

PURPOSE:
  A bookable service in the booking system is mapped to a course in the
  course system. Booking lifecycle events (created, approved, completed,
  cancelled) are folded into per-session BookingRecords, and sessions that
  advance are turned into "lesson complete" signals for the enrolled user.

KEY CONCEPTS IN THIS FILE (types.go):
  - Typed identifiers: services, courses, lessons, users, appointments...
  - ServiceMapping / Policy / Config: operator configuration, injected
  - BookingRecord: one row per booked session
  - MismatchNotice / CustomerNote: session-count validation output

DESIGN PRINCIPLES:
  1. Config is a value: engine and gate receive it at construction.
  2. Every ingestion path is safe to run twice with the same input.
  3. External systems are interfaces (CourseSystem, IdentityResolver,
     ServiceDirectory); nothing here knows how they are stored.

SEE ALSO:
  - transitions.go: Session status state machine
  - lessons.go:     Course lesson ordering (the only lesson counter)
  - reconcile.go:   Event ingestion and lesson completion
  - gate.go:        Booking entry-point access decisions
*/
package bridge

import (
	"sort"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ServiceID int64
type CourseID int64
type LessonID int64
type UnitID int64
type UserID int64
type CustomerID int64
type AppointmentID int64
type SessionID int64
type BookingID int64

// =============================================================================
// CONFIGURATION - Service mappings and policy toggles
// =============================================================================

// ServiceMapping links a bookable service to a course. LessonID is the lesson
// completed by non-recurring bookings; zero means none is configured.
type ServiceMapping struct {
	ServiceID ServiceID `json:"service_id" yaml:"service_id"`
	CourseID  CourseID  `json:"course_id" yaml:"course_id"`
	LessonID  LessonID  `json:"lesson_id,omitempty" yaml:"lesson_id,omitempty"`
}

// Policy holds the operator toggles.
type Policy struct {
	RequireEnrollment   bool `json:"require_enrollment"`
	AutoComplete        bool `json:"auto_complete"`
	EnforceSessionCount bool `json:"enforce_session_count"`
	CompleteWhenAllDone bool `json:"complete_when_all_done"`
	ShowWidgets         bool `json:"show_widgets"`
}

// DefaultPolicy returns the toggles a fresh installation starts with.
func DefaultPolicy() Policy {
	return Policy{
		RequireEnrollment:   true,
		AutoComplete:        true,
		EnforceSessionCount: true,
		CompleteWhenAllDone: false,
		ShowWidgets:         true,
	}
}

// Config is the full operator configuration snapshot.
type Config struct {
	Mappings map[ServiceID]ServiceMapping
	Policy   Policy
}

// NewConfig builds a Config from a mapping list. Later entries win on
// duplicate service IDs.
func NewConfig(policy Policy, mappings ...ServiceMapping) Config {
	c := Config{Mappings: make(map[ServiceID]ServiceMapping, len(mappings)), Policy: policy}
	for _, m := range mappings {
		c.Mappings[m.ServiceID] = m
	}
	return c
}

// Mapping returns the mapping for a service. A missing entry means the
// service is neither restricted nor tracked.
func (c Config) Mapping(id ServiceID) (ServiceMapping, bool) {
	m, ok := c.Mappings[id]
	if !ok || m.CourseID == 0 {
		return ServiceMapping{}, false
	}
	return m, true
}

// SortedMappings returns mappings ordered by service ID.
func (c Config) SortedMappings() []ServiceMapping {
	out := make([]ServiceMapping, 0, len(c.Mappings))
	for _, m := range c.Mappings {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ServiceID < out[j].ServiceID })
	return out
}

// =============================================================================
// BOOKING RECORD - One row per booked session
// =============================================================================

// BookingRecord tracks one session of an appointment.
//
// INVARIANTS:
//   - 1 <= SessionNumber <= RecurringCount
//   - non-recurring: RecurringCount == SessionNumber == 1
//   - LessonID, once non-zero, never changes
//   - (AppointmentID, SessionNumber) is unique
type BookingRecord struct {
	ID             string
	AppointmentID  AppointmentID
	SessionID      SessionID
	BookingID      BookingID
	CustomerID     CustomerID
	UserID         UserID
	CourseID       CourseID
	LessonID       LessonID // 0 = unresolved
	ServiceID      ServiceID
	Status         Status
	IsRecurring    bool
	RecurringCount int
	SessionNumber  int
	StartsAt       *time.Time
	ZoomJoinURL    string
	ZoomHostURL    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasLesson reports whether a lesson has been resolved for this session.
func (r BookingRecord) HasLesson() bool { return r.LessonID != 0 }

// =============================================================================
// NOTICES - Session count validation output
// =============================================================================

// NoticeSessionMismatch is the notice type for session/lesson count mismatches.
const NoticeSessionMismatch = "session_mismatch"

// MismatchNotice records a recurring booking whose session count differs
// from the mapped course's lesson count. It is never resolved automatically.
type MismatchNotice struct {
	ID            string
	AppointmentID AppointmentID
	ServiceID     ServiceID
	CourseID      CourseID
	ExpectedCount int // lessons in the course
	ActualCount   int // sessions booked
	Resolved      bool
	CreatedAt     time.Time
}

// NoticeFilter narrows a notice listing. Nil fields match everything.
type NoticeFilter struct {
	Resolved      *bool
	AppointmentID *AppointmentID
}

// Matches reports whether n passes the filter.
func (f NoticeFilter) Matches(n MismatchNotice) bool {
	if f.Resolved != nil && n.Resolved != *f.Resolved {
		return false
	}
	if f.AppointmentID != nil && n.AppointmentID != *f.AppointmentID {
		return false
	}
	return true
}

// NoteMismatchWarning is the customer note type attached on mismatch.
const NoteMismatchWarning = "mismatch_warning"

// CustomerNote is a message addressed to the customer of a booking.
type CustomerNote struct {
	ID        string
	BookingID BookingID
	NoteType  string
	Note      string
	CreatedAt time.Time
}
