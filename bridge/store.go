/*
store.go - Persistence and collaborator interfaces

PURPOSE:
  Defines the interfaces between the reconciliation logic and everything it
  does not own: its own tables (records, notices, settings) and the two
  external systems (course system, booking system directory).

KEY INTERFACES:
  RecordStore:       BookingRecord rows (insert-if-absent, CAS status)
  NoticeStore:       MismatchNotice + CustomerNote rows
  SettingsStore:     Key-value operator configuration
  CourseSystem:      External course structure, completion, enrollment
  ServiceDirectory:  External booking-system service metadata
  CustomerDirectory: Customer/user lookups used by identity resolution

DUPLICATE DELIVERY:
  Writes that an event may repeat are conditional:
  - InsertIfAbsent(): no-op when (appointment_id, session_number) exists
  - UpdateStatus():   compare-and-swap on the current status
  - ResolveLesson():  only writes when no lesson is stored yet
  Each reports whether it changed anything so callers can tell a first
  delivery from a repeat.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - bridge/store/memory.go: In-memory for testing
*/
package bridge

import (
	"context"
	"time"
)

// =============================================================================
// RECORD STORE
// =============================================================================

// RecordStore persists BookingRecords.
type RecordStore interface {
	// InsertIfAbsent stores rec unless a record with the same
	// (AppointmentID, SessionNumber) exists. Returns true if inserted.
	InsertIfAbsent(ctx context.Context, rec BookingRecord) (bool, error)

	// Get returns a record by row ID or ErrNotFound.
	Get(ctx context.Context, id string) (BookingRecord, error)

	// ListByAppointment returns every session of an appointment by session number.
	ListByAppointment(ctx context.Context, id AppointmentID) ([]BookingRecord, error)

	// ListBySession returns records whose SessionID matches.
	ListBySession(ctx context.Context, id SessionID) ([]BookingRecord, error)

	ListByUser(ctx context.Context, id UserID) ([]BookingRecord, error)
	ListByCourse(ctx context.Context, id CourseID) ([]BookingRecord, error)

	// CountActiveInWindow counts pending/approved/completed records for
	// user+service with from <= CreatedAt < to.
	CountActiveInWindow(ctx context.Context, user UserID, service ServiceID, from, to time.Time) (int, error)

	// CountAdvanced counts approved/completed sessions of an appointment.
	CountAdvanced(ctx context.Context, id AppointmentID) (int, error)

	// UpdateStatus sets status to `to` only if it is currently `from`.
	// Returns false when the row was not in `from`.
	UpdateStatus(ctx context.Context, id string, from, to Status) (bool, error)

	// ResolveLesson stores lesson if none is stored yet and returns the
	// lesson now stored, which may be an earlier value.
	ResolveLesson(ctx context.Context, id string, lesson LessonID) (LessonID, error)
}

// =============================================================================
// NOTICE STORE
// =============================================================================

// NoticeStore persists session-count validation output.
type NoticeStore interface {
	// InsertNoticeIfAbsent stores n unless a notice of the same type exists
	// for the appointment. Returns true if inserted.
	InsertNoticeIfAbsent(ctx context.Context, n MismatchNotice) (bool, error)
	ListNotices(ctx context.Context, filter NoticeFilter) ([]MismatchNotice, error)
	// ResolveNotice marks a notice resolved. ErrNotFound if missing.
	ResolveNotice(ctx context.Context, id string) error

	InsertCustomerNoteIfAbsent(ctx context.Context, n CustomerNote) (bool, error)
	ListCustomerNotes(ctx context.Context, booking BookingID) ([]CustomerNote, error)
}

// =============================================================================
// SETTINGS STORE
// =============================================================================

// SettingsStore persists operator configuration as key-value settings.
type SettingsStore interface {
	// LoadConfig returns the stored configuration, or defaults when nothing
	// has been saved.
	LoadConfig(ctx context.Context) (Config, error)
	SaveConfig(ctx context.Context, cfg Config) error
}

// =============================================================================
// EXTERNAL COURSE SYSTEM
// =============================================================================

// Content item types and statuses as reported by the course system.
const (
	ItemTypeLesson   = "lesson"
	ItemStatusPublic = "publish"
)

// CourseUnit is a structural container of content items (a topic).
type CourseUnit struct {
	ID       UnitID   `json:"id"`
	CourseID CourseID `json:"course_id"`
	Title    string   `json:"title"`
}

// ContentItem is one item inside a course: a lesson, quiz, assignment...
type ContentItem struct {
	ID        LessonID `json:"id"`
	Type      string   `json:"type"`
	Status    string   `json:"status"`
	MenuOrder int      `json:"menu_order"`
	Title     string   `json:"title"`
}

// IsPublishedLesson reports whether the item counts as a course lesson.
func (c ContentItem) IsPublishedLesson() bool {
	return c.Type == ItemTypeLesson && c.Status == ItemStatusPublic
}

// CourseSystem is the external e-learning system.
type CourseSystem interface {
	// CourseUnits returns the course's units in display order.
	CourseUnits(ctx context.Context, course CourseID) ([]CourseUnit, error)
	// UnitItems returns a unit's content items in display order.
	UnitItems(ctx context.Context, unit UnitID) ([]ContentItem, error)
	// CourseItems returns items associated directly with the course.
	CourseItems(ctx context.Context, course CourseID) ([]ContentItem, error)

	IsLessonCompleted(ctx context.Context, lesson LessonID, user UserID) (bool, error)
	MarkLessonCompleted(ctx context.Context, lesson LessonID, user UserID) error
	IsUserEnrolled(ctx context.Context, course CourseID, user UserID) (bool, error)
}

// =============================================================================
// EXTERNAL BOOKING SYSTEM DIRECTORY
// =============================================================================

// ServiceDirectory answers questions about booking-system services.
type ServiceDirectory interface {
	IsServiceRecurring(ctx context.Context, service ServiceID) (bool, error)
}

// CustomerDirectory is the lookup surface behind identity resolution.
type CustomerDirectory interface {
	// LinkedUser returns the stored customer -> user link.
	LinkedUser(ctx context.Context, customer CustomerID) (UserID, bool, error)
	CustomerEmail(ctx context.Context, customer CustomerID) (string, bool, error)
	UserByEmail(ctx context.Context, email string) (UserID, bool, error)
	// LinkCustomer stores a customer -> user link. Existing links are kept.
	LinkCustomer(ctx context.Context, customer CustomerID, user UserID) error
}
