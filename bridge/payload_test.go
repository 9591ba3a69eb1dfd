package bridge_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/lesson-bridge/bridge"
)

func TestNormalizeAppointment_Single(t *testing.T) {
	// GIVEN: A non-recurring appointment as the booking system sends it
	raw := `{
		"id": 42,
		"serviceId": 7,
		"status": "approved",
		"bookingStart": "2026-03-02 18:00:00",
		"bookings": [{"id": 900, "customerId": 55}, {"id": 901, "customerId": 56}]
	}`
	var p bridge.AppointmentPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &p))

	// WHEN: Normalized
	a, err := bridge.NormalizeAppointment(p)

	// THEN: One session from the first booking, keyed by the appointment ID
	require.NoError(t, err)
	assert.False(t, a.IsRecurring)
	assert.Equal(t, bridge.StatusApproved, a.Status)
	require.Len(t, a.Sessions, 1)
	s := a.Sessions[0]
	assert.Equal(t, bridge.SessionID(42), s.SessionID)
	assert.Equal(t, bridge.BookingID(900), s.BookingID)
	assert.Equal(t, bridge.CustomerID(55), s.CustomerID)
	require.NotNil(t, s.StartsAt)
	assert.True(t, time.Date(2026, 3, 2, 18, 0, 0, 0, time.Local).Equal(*s.StartsAt))
}

func TestNormalizeAppointment_Recurring(t *testing.T) {
	p := bridge.AppointmentPayload{
		ID:        1,
		ServiceID: 7,
		Bookings:  []bridge.BookingPayload{{ID: 900, CustomerID: 55}},
		Recurring: []bridge.RecurringPayload{
			{ID: 11},
			{ID: 12, Bookings: []bridge.BookingPayload{{ID: 901, CustomerID: 56}}},
			{ID: 13, BookingStart: "not a date"},
		},
	}

	a, err := bridge.NormalizeAppointment(p)

	require.NoError(t, err)
	assert.True(t, a.IsRecurring)
	assert.Equal(t, bridge.StatusPending, a.Status)
	require.Len(t, a.Sessions, 3)
	assert.Equal(t, bridge.SessionID(11), a.Sessions[0].SessionID)
	assert.Equal(t, bridge.CustomerID(55), a.Sessions[0].CustomerID)
	assert.Equal(t, bridge.CustomerID(56), a.Sessions[1].CustomerID)
	assert.Equal(t, bridge.BookingID(901), a.Sessions[1].BookingID)
	assert.Nil(t, a.Sessions[2].StartsAt)
}

func TestNormalizeAppointment_RecurringWithoutBookingsKeepsSessions(t *testing.T) {
	a, err := bridge.NormalizeAppointment(bridge.AppointmentPayload{
		ID: 1, ServiceID: 7, Recurring: []bridge.RecurringPayload{{ID: 11}, {ID: 12}},
	})

	require.NoError(t, err)
	require.Len(t, a.Sessions, 2)
	assert.Zero(t, a.Sessions[0].CustomerID)
}

func TestNormalizeAppointment_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		p     bridge.AppointmentPayload
		field string
	}{
		{"missing id", bridge.AppointmentPayload{ServiceID: 1, Bookings: []bridge.BookingPayload{{ID: 1}}}, "id"},
		{"missing service", bridge.AppointmentPayload{ID: 1, Bookings: []bridge.BookingPayload{{ID: 1}}}, "serviceId"},
		{"unknown status", bridge.AppointmentPayload{ID: 1, ServiceID: 1, Status: "lost"}, "status"},
		{"no bookings", bridge.AppointmentPayload{ID: 1, ServiceID: 1}, "bookings"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := bridge.NormalizeAppointment(tt.p)

			var pe *bridge.PayloadError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.field, pe.Field)
			assert.True(t, errors.Is(err, bridge.ErrInvalidPayload))
		})
	}
}

func TestExtractZoomLinks(t *testing.T) {
	t.Run("native meeting wins", func(t *testing.T) {
		join, host := bridge.ExtractZoomLinks(bridge.AppointmentPayload{
			ZoomMeeting:  &bridge.ZoomMeeting{JoinURL: "https://z/j", StartURL: "https://z/s"},
			CustomFields: []bridge.CustomField{{Label: "Zoom Join Link", Value: "https://other"}},
		})
		assert.Equal(t, "https://z/j", join)
		assert.Equal(t, "https://z/s", host)
	})

	t.Run("custom field fallback", func(t *testing.T) {
		join, host := bridge.ExtractZoomLinks(bridge.AppointmentPayload{
			ZoomMeeting: &bridge.ZoomMeeting{},
			CustomFields: []bridge.CustomField{
				{Label: "Notes", Value: "bring a pencil"},
				{Label: "ZOOM JOIN link", Value: "https://f/j"},
				{Label: "Zoom Host link", Value: ""},
			},
		})
		assert.Equal(t, "https://f/j", join)
		assert.Empty(t, host)
	})

	t.Run("none", func(t *testing.T) {
		join, host := bridge.ExtractZoomLinks(bridge.AppointmentPayload{})
		assert.Empty(t, join)
		assert.Empty(t, host)
	})
}
