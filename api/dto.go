/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication that are not already
  carried by bridge types. Event payloads (bridge.AppointmentPayload),
  ingestion results (bridge.IngestResult), access decisions
  (bridge.Decision) and progress (bridge.Progress) are returned as-is.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
  - factory/settings.go: SettingsDocument type
*/
package api

import (
	"fmt"
	"time"

	"github.com/warp/lesson-bridge/bridge"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// StatusChangeRequest is the body of an appointment status change event.
type StatusChangeRequest struct {
	NewStatus string `json:"new_status"`
	OldStatus string `json:"old_status"`
}

// EnrollmentRequest enrolls a user in a course.
type EnrollmentRequest struct {
	CourseID bridge.CourseID `json:"course_id"`
	UserID   bridge.UserID   `json:"user_id"`
}

// LoadScenarioRequest selects a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// BookingDTO represents one booked session as its student sees it. The
// meeting host link is never part of it.
type BookingDTO struct {
	ID             string `json:"id"`
	AppointmentID  int64  `json:"appointment_id"`
	SessionID      int64  `json:"session_id"`
	BookingID      int64  `json:"booking_id"`
	UserID         int64  `json:"user_id"`
	CourseID       int64  `json:"course_id"`
	LessonID       int64  `json:"lesson_id,omitempty"`
	ServiceID      int64  `json:"service_id"`
	Status         string `json:"status"`
	IsRecurring    bool   `json:"is_recurring"`
	SessionNumber  int    `json:"session_number"`
	RecurringCount int    `json:"recurring_count"`
	StartsAt       string `json:"starts_at,omitempty"`
	ZoomJoinURL    string `json:"zoom_join_url,omitempty"`
	CreatedAt      string `json:"created_at"`
}

// CourseSessionDTO is one advanced session in the instructor view of a
// course. It carries the host link.
type CourseSessionDTO struct {
	AppointmentID int64  `json:"appointment_id"`
	SessionID     int64  `json:"session_id"`
	UserID        int64  `json:"user_id"`
	LessonID      int64  `json:"lesson_id,omitempty"`
	Status        string `json:"status"`
	Label         string `json:"label"`
	StartsAt      string `json:"starts_at,omitempty"`
	ZoomJoinURL   string `json:"zoom_join_url,omitempty"`
	ZoomHostURL   string `json:"zoom_host_url,omitempty"`
	CreatedAt     string `json:"created_at"`
}

// CustomerNoteDTO is a message left for the customer of a booking.
type CustomerNoteDTO struct {
	ID        string `json:"id"`
	BookingID int64  `json:"booking_id"`
	Type      string `json:"type"`
	Note      string `json:"note"`
	CreatedAt string `json:"created_at"`
}

// NoticeDTO represents a session count mismatch notice.
type NoticeDTO struct {
	ID            string `json:"id"`
	AppointmentID int64  `json:"appointment_id"`
	ServiceID     int64  `json:"service_id"`
	CourseID      int64  `json:"course_id"`
	ExpectedCount int    `json:"expected_count"`
	ActualCount   int    `json:"actual_count"`
	Resolved      bool   `json:"resolved"`
	CreatedAt     string `json:"created_at"`
}

// LessonDTO is one lesson of a course in display order.
type LessonDTO struct {
	Position int    `json:"position"`
	LessonID int64  `json:"lesson_id"`
	Title    string `json:"title"`
}

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toBookingDTO(r bridge.BookingRecord) BookingDTO {
	dto := BookingDTO{
		ID:             r.ID,
		AppointmentID:  int64(r.AppointmentID),
		SessionID:      int64(r.SessionID),
		BookingID:      int64(r.BookingID),
		UserID:         int64(r.UserID),
		CourseID:       int64(r.CourseID),
		LessonID:       int64(r.LessonID),
		ServiceID:      int64(r.ServiceID),
		Status:         string(r.Status),
		IsRecurring:    r.IsRecurring,
		SessionNumber:  r.SessionNumber,
		RecurringCount: r.RecurringCount,
		ZoomJoinURL:    r.ZoomJoinURL,
		CreatedAt:      r.CreatedAt.Format(time.RFC3339),
	}
	if r.StartsAt != nil {
		dto.StartsAt = r.StartsAt.Format(time.RFC3339)
	}
	return dto
}

func toCourseSessionDTO(r bridge.BookingRecord) CourseSessionDTO {
	dto := CourseSessionDTO{
		AppointmentID: int64(r.AppointmentID),
		SessionID:     int64(r.SessionID),
		UserID:        int64(r.UserID),
		LessonID:      int64(r.LessonID),
		Status:        string(r.Status),
		Label:         "Single session",
		ZoomJoinURL:   r.ZoomJoinURL,
		ZoomHostURL:   r.ZoomHostURL,
		CreatedAt:     r.CreatedAt.Format(time.RFC3339),
	}
	if r.IsRecurring {
		dto.Label = fmt.Sprintf("Session %d of %d", r.SessionNumber, r.RecurringCount)
	}
	if r.StartsAt != nil {
		dto.StartsAt = r.StartsAt.Format(time.RFC3339)
	}
	return dto
}

func toCustomerNoteDTO(n bridge.CustomerNote) CustomerNoteDTO {
	return CustomerNoteDTO{
		ID:        n.ID,
		BookingID: int64(n.BookingID),
		Type:      n.NoteType,
		Note:      n.Note,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
	}
}

func toNoticeDTO(n bridge.MismatchNotice) NoticeDTO {
	return NoticeDTO{
		ID:            n.ID,
		AppointmentID: int64(n.AppointmentID),
		ServiceID:     int64(n.ServiceID),
		CourseID:      int64(n.CourseID),
		ExpectedCount: n.ExpectedCount,
		ActualCount:   n.ActualCount,
		Resolved:      n.Resolved,
		CreatedAt:     n.CreatedAt.Format(time.RFC3339),
	}
}
