/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the local mirror with a
	realistic course, service, user and customer, plus the settings that
	map them. Each scenario shows one behavior of the bridge.

AVAILABLE SCENARIOS:

	recurring-course:  5-lesson course booked as a weekly recurring service
	single-lesson:     one-off service completing a fixed lesson; the course
	                   has no units, so lessons come from direct items
	session-mismatch:  recurring-course plus a 3-session booking, which
	                   raises a mismatch notice

HOW SCENARIOS WORK:
 1. Reset database (clear all data, settings included)
 2. Save courses, services, users, customers, enrollments
 3. Save service -> course settings
 4. Optionally ingest booking events through the engine

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "recurring-course"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler and engine construction
  - store/sqlite/catalog.go: Mirror records
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/warp/lesson-bridge/bridge"
	"github.com/warp/lesson-bridge/store/sqlite"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "recurring-course",
		Name:        "Recurring Course",
		Description: "Weekly recurring service mapped to a 5-lesson course; each session completes the next lesson",
	},
	{
		ID:          "single-lesson",
		Name:        "Single Lesson",
		Description: "One-off service that completes a fixed lesson of a unit-less course",
	},
	{
		ID:          "session-mismatch",
		Name:        "Session Mismatch",
		Description: "Recurring course with a 3-session booking against 5 lessons",
	},
}

// Demo identifiers.
const (
	demoRecurringService bridge.ServiceID     = 10
	demoRecurringCourse  bridge.CourseID      = 100
	demoSingleService    bridge.ServiceID     = 20
	demoSingleCourse     bridge.CourseID      = 200
	demoSingleLesson     bridge.LessonID      = 2101
	demoAlice            bridge.UserID        = 1
	demoBob              bridge.UserID        = 2
	demoAliceCustomer    bridge.CustomerID    = 501
	demoBobCustomer      bridge.CustomerID    = 502
	demoMismatchAppt     bridge.AppointmentID = 9001
)

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads a scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx, true); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	var err error
	switch req.ScenarioID {
	case "recurring-course":
		err = h.loadRecurringCourseScenario(ctx)
	case "single-lesson":
		err = h.loadSingleLessonScenario(ctx)
	case "session-mismatch":
		err = h.loadSessionMismatchScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("scenario %q not found", req.ScenarioID))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	h.Log.Info("scenario loaded", "scenario", req.ScenarioID)
	writeJSON(w, http.StatusOK, map[string]string{"scenario_id": req.ScenarioID, "status": "loaded"})
}

// ResetDatabase clears all data, settings included.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context(), true); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func lesson(id bridge.LessonID, title string) bridge.ContentItem {
	return bridge.ContentItem{ID: id, Type: bridge.ItemTypeLesson, Status: bridge.ItemStatusPublic, Title: title}
}

func (h *Handler) loadRecurringCourseScenario(ctx context.Context) error {
	course := sqlite.CourseDefinition{
		ID:    demoRecurringCourse,
		Title: "Guitar Foundations",
		Units: []sqlite.UnitDefinition{
			{ID: 1001, Title: "Getting Started", Items: []bridge.ContentItem{
				lesson(1101, "Posture and Tuning"),
				lesson(1102, "Open Chords"),
				{ID: 1190, Type: "quiz", Status: bridge.ItemStatusPublic, Title: "Chord Quiz"},
			}},
			{ID: 1002, Title: "Playing Songs", Items: []bridge.ContentItem{
				lesson(1103, "Strumming Patterns"),
				{ID: 1191, Type: bridge.ItemTypeLesson, Status: "draft", Title: "Fingerpicking (draft)"},
				lesson(1104, "Rhythm and Timing"),
				lesson(1105, "Your First Song"),
			}},
		},
	}
	if err := h.Store.SaveCourse(ctx, course); err != nil {
		return err
	}
	if err := h.Store.SaveService(ctx, sqlite.Service{
		ID: demoRecurringService, Name: "Weekly Guitar Lesson", RecurringCycle: "weekly",
	}); err != nil {
		return err
	}
	if err := h.Store.SaveUser(ctx, sqlite.User{ID: demoAlice, Email: "alice@example.com", Name: "Alice"}); err != nil {
		return err
	}
	// The customer is not linked; identity resolution matches by e-mail.
	if err := h.Store.SaveCustomer(ctx, sqlite.Customer{
		ID: demoAliceCustomer, Email: "alice@example.com", FirstName: "Alice",
	}); err != nil {
		return err
	}
	if err := h.Store.SaveEnrollment(ctx, demoRecurringCourse, demoAlice); err != nil {
		return err
	}

	cfg := bridge.NewConfig(bridge.DefaultPolicy(),
		bridge.ServiceMapping{ServiceID: demoRecurringService, CourseID: demoRecurringCourse},
	)
	return h.Store.SaveConfig(ctx, cfg)
}

func (h *Handler) loadSingleLessonScenario(ctx context.Context) error {
	course := sqlite.CourseDefinition{
		ID:    demoSingleCourse,
		Title: "Career Coaching",
		DirectItems: []bridge.ContentItem{
			{ID: 2102, Type: bridge.ItemTypeLesson, Status: bridge.ItemStatusPublic, MenuOrder: 2, Title: "Follow-up Plan"},
			{ID: demoSingleLesson, Type: bridge.ItemTypeLesson, Status: bridge.ItemStatusPublic, MenuOrder: 1, Title: "Intro Call"},
		},
	}
	if err := h.Store.SaveCourse(ctx, course); err != nil {
		return err
	}
	if err := h.Store.SaveService(ctx, sqlite.Service{
		ID: demoSingleService, Name: "Coaching Call", RecurringCycle: "disabled",
	}); err != nil {
		return err
	}
	if err := h.Store.SaveUser(ctx, sqlite.User{ID: demoBob, Email: "bob@example.com", Name: "Bob"}); err != nil {
		return err
	}
	if err := h.Store.SaveCustomer(ctx, sqlite.Customer{ID: demoBobCustomer, Email: "bob@example.com", FirstName: "Bob"}); err != nil {
		return err
	}
	if err := h.Store.LinkCustomer(ctx, demoBobCustomer, demoBob); err != nil {
		return err
	}
	if err := h.Store.SaveEnrollment(ctx, demoSingleCourse, demoBob); err != nil {
		return err
	}

	cfg := bridge.NewConfig(bridge.DefaultPolicy(),
		bridge.ServiceMapping{ServiceID: demoSingleService, CourseID: demoSingleCourse, LessonID: demoSingleLesson},
	)
	return h.Store.SaveConfig(ctx, cfg)
}

func (h *Handler) loadSessionMismatchScenario(ctx context.Context) error {
	if err := h.loadRecurringCourseScenario(ctx); err != nil {
		return err
	}

	engine, err := h.engine(ctx)
	if err != nil {
		return err
	}
	booking := []bridge.BookingPayload{{ID: 7001, CustomerID: demoAliceCustomer}}
	res, err := engine.AppointmentCreated(ctx, bridge.AppointmentPayload{
		ID:        demoMismatchAppt,
		ServiceID: demoRecurringService,
		Status:    "approved",
		Bookings:  booking,
		Recurring: []bridge.RecurringPayload{
			{ID: 9101, BookingStart: "2026-03-02 18:00:00", Bookings: booking},
			{ID: 9102, BookingStart: "2026-03-09 18:00:00", Bookings: booking},
			{ID: 9103, BookingStart: "2026-03-16 18:00:00", Bookings: booking},
		},
	})
	if err != nil {
		return err
	}
	if res.Outcome != bridge.OutcomeCountMismatch {
		return fmt.Errorf("expected %s, got %s", bridge.OutcomeCountMismatch, res.Outcome)
	}
	return nil
}
