/*
payload.go - Typed booking-system event payloads

PURPOSE:
  The booking system delivers loosely-shaped appointment payloads. They are
  decoded into AppointmentPayload, validated and normalized ONCE into an
  Appointment, and only the normalized form flows into the engine.

SESSIONS:
  - recurring[] present: one session per entry, in input order. An entry
    without its own bookings falls back to the appointment's first booking.
  - otherwise: a single session from bookings[0].
  A session without a customer reference is kept; identity resolution
  fails for it later and only that session is skipped.

ZOOM LINKS:
  zoomMeeting.joinUrl / startUrl when present; otherwise custom fields whose
  label contains "zoom join" / "zoom host".
*/
package bridge

import (
	"strings"
	"time"
)

// =============================================================================
// WIRE TYPES
// =============================================================================

// AppointmentPayload is the appointment-created event as delivered.
type AppointmentPayload struct {
	ID           AppointmentID      `json:"id"`
	ServiceID    ServiceID          `json:"serviceId"`
	Status       string             `json:"status"`
	BookingStart string             `json:"bookingStart,omitempty"`
	Recurring    []RecurringPayload `json:"recurring,omitempty"`
	Bookings     []BookingPayload   `json:"bookings"`
	CustomFields []CustomField      `json:"customFields,omitempty"`
	ZoomMeeting  *ZoomMeeting       `json:"zoomMeeting,omitempty"`
}

// RecurringPayload is one occurrence of a recurring appointment.
type RecurringPayload struct {
	ID           SessionID        `json:"id"`
	BookingStart string           `json:"bookingStart,omitempty"`
	Bookings     []BookingPayload `json:"bookings,omitempty"`
}

// BookingPayload is a customer's booking within an appointment.
type BookingPayload struct {
	ID         BookingID  `json:"id"`
	CustomerID CustomerID `json:"customerId"`
}

// CustomField is a free-form labelled field attached to the appointment.
type CustomField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ZoomMeeting is the booking system's native meeting integration.
type ZoomMeeting struct {
	JoinURL  string `json:"joinUrl"`
	StartURL string `json:"startUrl"`
}

// CancellationPayload is the appointment-cancelled event.
type CancellationPayload struct {
	ID AppointmentID `json:"id"`
}

// =============================================================================
// NORMALIZED FORM
// =============================================================================

// Appointment is a validated appointment-created event.
type Appointment struct {
	ID          AppointmentID
	ServiceID   ServiceID
	Status      Status
	IsRecurring bool
	Sessions    []Session
	ZoomJoinURL string
	ZoomHostURL string
}

// Session is one bookable occurrence of an appointment.
type Session struct {
	SessionID  SessionID
	BookingID  BookingID
	CustomerID CustomerID
	StartsAt   *time.Time
}

// bookingStartLayout is the booking system's local datetime format.
const bookingStartLayout = "2006-01-02 15:04:05"

// NormalizeAppointment validates p and converts it to an Appointment.
func NormalizeAppointment(p AppointmentPayload) (Appointment, error) {
	if p.ID <= 0 {
		return Appointment{}, &PayloadError{Field: "id", Reason: "must be positive"}
	}
	if p.ServiceID <= 0 {
		return Appointment{}, &PayloadError{Field: "serviceId", Reason: "must be positive"}
	}
	status, err := ParseStatus(p.Status)
	if err != nil {
		return Appointment{}, &PayloadError{Field: "status", Reason: err.Error()}
	}

	var primary BookingPayload
	if len(p.Bookings) > 0 {
		primary = p.Bookings[0]
	}

	a := Appointment{
		ID:          p.ID,
		ServiceID:   p.ServiceID,
		Status:      status,
		IsRecurring: len(p.Recurring) > 0,
	}
	a.ZoomJoinURL, a.ZoomHostURL = ExtractZoomLinks(p)

	if a.IsRecurring {
		for _, r := range p.Recurring {
			b := primary
			if len(r.Bookings) > 0 {
				b = r.Bookings[0]
			}
			a.Sessions = append(a.Sessions, Session{
				SessionID:  r.ID,
				BookingID:  b.ID,
				CustomerID: b.CustomerID,
				StartsAt:   parseBookingStart(r.BookingStart),
			})
		}
		return a, nil
	}

	if len(p.Bookings) == 0 {
		return Appointment{}, &PayloadError{Field: "bookings", Reason: "at least one booking is required"}
	}
	a.Sessions = []Session{{
		SessionID:  SessionID(p.ID),
		BookingID:  primary.ID,
		CustomerID: primary.CustomerID,
		StartsAt:   parseBookingStart(p.BookingStart),
	}}
	return a, nil
}

// ExtractZoomLinks returns the join and host URLs for an appointment.
func ExtractZoomLinks(p AppointmentPayload) (join, host string) {
	if p.ZoomMeeting != nil {
		join, host = p.ZoomMeeting.JoinURL, p.ZoomMeeting.StartURL
	}
	if join != "" {
		return join, host
	}
	for _, f := range p.CustomFields {
		if f.Value == "" {
			continue
		}
		label := strings.ToLower(f.Label)
		if strings.Contains(label, "zoom join") {
			join = f.Value
		}
		if strings.Contains(label, "zoom host") {
			host = f.Value
		}
	}
	return join, host
}

func parseBookingStart(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{bookingStartLayout, time.RFC3339} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return &t
		}
	}
	return nil
}
