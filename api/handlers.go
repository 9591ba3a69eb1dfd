/*
handlers.go - HTTP API handlers for the booking/course bridge

PURPOSE:
  Host adapter for the bridge. Receives booking-system events over HTTP and
  drives bridge.BookingEventSource, answers access checks, and exposes the
  operator surfaces (settings, mismatch notices) plus the local mirror of
  the course system and booking directory.

ENDPOINTS:
  Events:
    POST   /api/events/appointments               Appointment created
    POST   /api/events/appointments/{id}/status   Status changed
    POST   /api/events/appointments/{id}/cancel   Appointment cancelled

  Operator:
    GET    /api/settings                 Current settings document
    PUT    /api/settings                 Replace settings document
    GET    /api/notices?resolved=        Session count mismatch notices
    POST   /api/notices/{id}/resolve     Mark a notice resolved

  Student:
    GET    /api/access?service_id=&user_id=&course_id=   Booking access check
    GET    /api/users/{id}/bookings                      Booked sessions
    GET    /api/users/{id}/courses/{courseID}/progress   Course progress
    GET    /api/bookings/{id}/notes                      Notes for the customer
    GET    /api/courses/{id}/lessons                     Ordered lessons

  Instructor:
    GET    /api/courses/{id}/sessions    Latest approved/completed sessions

  Mirror:
    PUT    /api/catalog/courses/{id}     Replace a course structure
    POST   /api/catalog/enrollments      Enroll a user
    POST   /api/directory/users          Create or update a user
    POST   /api/directory/customers      Create or update a customer
    PUT    /api/directory/services/{id}  Create or update a service

REQUEST SCOPE:
  Every request snapshots the settings into a fresh bridge.Config and
  builds a fresh bridge.LessonIndex. Nothing computed from course content
  survives the request.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed body, invalid IDs, invalid settings
  - 403: Dashboard widgets disabled by policy (student and instructor views)
  - 404: Notice not found
  - 500: Store failures
  Ingestion outcomes (unmapped service, duplicate event...) are 200 with
  the bridge.IngestResult in the body.

SECURITY NOTE:
  No authentication middleware. user_id on the access check stands in for
  the host application's session.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/warp/lesson-bridge/bridge"
	"github.com/warp/lesson-bridge/factory"
	"github.com/warp/lesson-bridge/logger"
	"github.com/warp/lesson-bridge/store/sqlite"
)

// maxBodyBytes caps event and settings bodies.
const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Settings *factory.SettingsFactory
	Notifier bridge.Notifier
	Log      *logger.Logger
	Now      func() time.Time

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		Store:    store,
		Settings: factory.NewSettingsFactory(),
		Notifier: bridge.NewLogNotifier(log),
		Log:      log,
		Now:      time.Now,
	}
}

// snapshot loads the current configuration and request-scoped collaborators.
func (h *Handler) snapshot(ctx context.Context) (bridge.Config, bridge.Deps, error) {
	cfg, err := h.Store.LoadConfig(ctx)
	if err != nil {
		return bridge.Config{}, bridge.Deps{}, err
	}
	log := h.Log
	if id := middleware.GetReqID(ctx); id != "" {
		log = log.With("request_id", id)
	}
	deps := bridge.Deps{
		Records:  h.Store,
		Notices:  h.Store,
		Courses:  h.Store,
		Services: h.Store,
		Identity: bridge.NewCachingResolver(h.Store, log),
		Notifier: h.Notifier,
		Lessons:  bridge.NewLessonIndex(h.Store),
		Log:      log,
		Now:      h.Now,
	}
	return cfg, deps, nil
}

func (h *Handler) engine(ctx context.Context) (*bridge.Engine, error) {
	cfg, deps, err := h.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return bridge.NewEngine(cfg, deps), nil
}

// =============================================================================
// EVENT HANDLERS
// =============================================================================

// AppointmentCreated ingests an appointment-created payload.
func (h *Handler) AppointmentCreated(w http.ResponseWriter, r *http.Request) {
	var p bridge.AppointmentPayload
	if err := decodeBody(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid appointment payload", err)
		return
	}

	engine, err := h.engine(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings", err)
		return
	}
	res, err := engine.AppointmentCreated(r.Context(), p)
	if err != nil {
		h.Log.Error("appointment ingestion failed", "appointment_id", p.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to ingest appointment", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// AppointmentStatusChanged ingests a status change for an appointment or session.
func (h *Handler) AppointmentStatusChanged(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid appointment ID", err)
		return
	}
	var req StatusChangeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid status change", err)
		return
	}

	engine, err := h.engine(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings", err)
		return
	}
	res, err := engine.AppointmentStatusChanged(r.Context(), bridge.AppointmentID(id), req.NewStatus, req.OldStatus)
	if err != nil {
		h.Log.Error("status change ingestion failed", "appointment_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to ingest status change", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// AppointmentCancelled ingests a cancellation.
func (h *Handler) AppointmentCancelled(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid appointment ID", err)
		return
	}

	engine, err := h.engine(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings", err)
		return
	}
	res, err := engine.AppointmentCancelled(r.Context(), bridge.CancellationPayload{ID: bridge.AppointmentID(id)})
	if err != nil {
		h.Log.Error("cancellation ingestion failed", "appointment_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to ingest cancellation", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// =============================================================================
// SETTINGS HANDLERS
// =============================================================================

// GetSettings returns the current settings document.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Store.LoadConfig(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings", err)
		return
	}
	writeJSON(w, http.StatusOK, h.Settings.ToDocument(cfg))
}

// PutSettings validates and replaces the settings document.
func (h *Handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read body", err)
		return
	}
	cfg, err := h.Settings.ParseJSON(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid settings", err)
		return
	}
	if err := h.Store.SaveConfig(r.Context(), cfg); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save settings", err)
		return
	}
	h.Log.Info("settings updated", "mappings", len(cfg.Mappings))
	writeJSON(w, http.StatusOK, h.Settings.ToDocument(cfg))
}

// =============================================================================
// NOTICE HANDLERS
// =============================================================================

// ListNotices returns mismatch notices, optionally filtered.
func (h *Handler) ListNotices(w http.ResponseWriter, r *http.Request) {
	var filter bridge.NoticeFilter
	if v := r.URL.Query().Get("resolved"); v != "" {
		resolved, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid resolved filter", err)
			return
		}
		filter.Resolved = &resolved
	}
	if v := r.URL.Query().Get("appointment_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid appointment_id filter", err)
			return
		}
		appt := bridge.AppointmentID(id)
		filter.AppointmentID = &appt
	}

	notices, err := h.Store.ListNotices(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list notices", err)
		return
	}
	dtos := make([]NoticeDTO, len(notices))
	for i, n := range notices {
		dtos[i] = toNoticeDTO(n)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ResolveNotice marks a notice resolved.
func (h *Handler) ResolveNotice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Store.ResolveNotice(r.Context(), id); err != nil {
		writeStoreError(w, "Failed to resolve notice", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "resolved": true})
}

// =============================================================================
// STUDENT HANDLERS
// =============================================================================

// CheckAccess runs the access gate. A missing or zero user_id means the
// visitor is not logged in.
func (h *Handler) CheckAccess(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	service, err := queryID(q.Get("service_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid service_id", err)
		return
	}
	user, err := queryID(q.Get("user_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user_id", err)
		return
	}
	course, err := queryID(q.Get("course_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid course_id", err)
		return
	}

	cfg, deps, err := h.snapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings", err)
		return
	}
	decision, err := bridge.NewAccessGate(cfg, deps).Decide(r.Context(), bridge.GateRequest{
		ServiceID:       bridge.ServiceID(service),
		Actor:           bridge.Actor{UserID: bridge.UserID(user), Authenticated: user > 0},
		ContextCourseID: bridge.CourseID(course),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check access", err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

// ListUserBookings returns every session booked by a user.
func (h *Handler) ListUserBookings(w http.ResponseWriter, r *http.Request) {
	user, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID", err)
		return
	}
	if !h.widgetsEnabled(w, r) {
		return
	}

	records, err := h.Store.ListByUser(r.Context(), bridge.UserID(user))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list bookings", err)
		return
	}
	dtos := make([]BookingDTO, len(records))
	for i, rec := range records {
		dtos[i] = toBookingDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetProgress returns a user's lesson completion in a course.
func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	user, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID", err)
		return
	}
	course, err := urlID(r, "courseID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid course ID", err)
		return
	}
	if !h.widgetsEnabled(w, r) {
		return
	}

	progress, err := bridge.CourseProgress(r.Context(), bridge.NewLessonIndex(h.Store), h.Store,
		bridge.CourseID(course), bridge.UserID(user))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute progress", err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// ListCourseSessions returns the latest advanced sessions of a course,
// newest first. This is the instructor view and includes host links.
func (h *Handler) ListCourseSessions(w http.ResponseWriter, r *http.Request) {
	course, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid course ID", err)
		return
	}
	if !h.widgetsEnabled(w, r) {
		return
	}

	records, err := h.Store.ListByCourse(r.Context(), bridge.CourseID(course))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions", err)
		return
	}
	dtos := make([]CourseSessionDTO, 0, len(records))
	for _, rec := range latestAdvanced(records, courseSessionsLimit) {
		dtos = append(dtos, toCourseSessionDTO(rec))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// courseSessionsLimit caps the instructor session list.
const courseSessionsLimit = 10

// latestAdvanced keeps approved and completed records, newest first, at
// most limit of them.
func latestAdvanced(records []bridge.BookingRecord, limit int) []bridge.BookingRecord {
	var out []bridge.BookingRecord
	for _, rec := range records {
		if rec.Status.IsAdvanced() {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		if a.AppointmentID != b.AppointmentID {
			return a.AppointmentID > b.AppointmentID
		}
		return a.SessionNumber > b.SessionNumber
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ListBookingNotes returns the notes left for a booking's customer.
func (h *Handler) ListBookingNotes(w http.ResponseWriter, r *http.Request) {
	booking, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid booking ID", err)
		return
	}
	if !h.widgetsEnabled(w, r) {
		return
	}

	notes, err := h.Store.ListCustomerNotes(r.Context(), bridge.BookingID(booking))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list notes", err)
		return
	}
	dtos := make([]CustomerNoteDTO, len(notes))
	for i, n := range notes {
		dtos[i] = toCustomerNoteDTO(n)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListCourseLessons returns a course's lessons in completion order.
func (h *Handler) ListCourseLessons(w http.ResponseWriter, r *http.Request) {
	course, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid course ID", err)
		return
	}

	items, err := bridge.NewLessonIndex(h.Store).Lessons(r.Context(), bridge.CourseID(course))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list lessons", err)
		return
	}
	dtos := make([]LessonDTO, len(items))
	for i, it := range items {
		dtos[i] = LessonDTO{Position: i + 1, LessonID: int64(it.ID), Title: it.Title}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) widgetsEnabled(w http.ResponseWriter, r *http.Request) bool {
	cfg, err := h.Store.LoadConfig(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings", err)
		return false
	}
	if !cfg.Policy.ShowWidgets {
		writeError(w, http.StatusForbidden, "Dashboard widgets are disabled", nil)
		return false
	}
	return true
}

// =============================================================================
// MIRROR HANDLERS
// =============================================================================

// PutCourse replaces a course's structure.
func (h *Handler) PutCourse(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid course ID", err)
		return
	}
	var def sqlite.CourseDefinition
	if err := decodeBody(r, &def); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid course definition", err)
		return
	}
	def.ID = bridge.CourseID(id)

	if err := h.Store.SaveCourse(r.Context(), def); err != nil {
		writeStoreError(w, "Failed to save course", err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// CreateEnrollment enrolls a user in a course.
func (h *Handler) CreateEnrollment(w http.ResponseWriter, r *http.Request) {
	var req EnrollmentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid enrollment", err)
		return
	}
	if req.CourseID <= 0 || req.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "course_id and user_id are required", nil)
		return
	}
	if err := h.Store.SaveEnrollment(r.Context(), req.CourseID, req.UserID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save enrollment", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// CreateUser creates or updates a platform user.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var u sqlite.User
	if err := decodeBody(r, &u); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user", err)
		return
	}
	if u.ID <= 0 || u.Email == "" {
		writeError(w, http.StatusBadRequest, "id and email are required", nil)
		return
	}
	if err := h.Store.SaveUser(r.Context(), u); err != nil {
		writeStoreError(w, "Failed to save user", err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

// CreateCustomer creates or updates a booking-system customer.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var c sqlite.Customer
	if err := decodeBody(r, &c); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid customer", err)
		return
	}
	if c.ID <= 0 {
		writeError(w, http.StatusBadRequest, "id is required", nil)
		return
	}
	if err := h.Store.SaveCustomer(r.Context(), c); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save customer", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// PutService creates or updates a booking-system service.
func (h *Handler) PutService(w http.ResponseWriter, r *http.Request) {
	id, err := urlID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid service ID", err)
		return
	}
	var svc sqlite.Service
	if err := decodeBody(r, &svc); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid service", err)
		return
	}
	svc.ID = bridge.ServiceID(id)
	if err := h.Store.SaveService(r.Context(), svc); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save service", err)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

// =============================================================================
// HELPERS
// =============================================================================

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("malformed JSON: %w", err)
	}
	return nil
}

func urlID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, raw)
	}
	return id, nil
}

// queryID parses an optional positive ID; empty means 0.
func queryID(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("must be a non-negative integer, got %q", raw)
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeStoreError maps store errors onto 404 / 400 / 500.
func writeStoreError(w http.ResponseWriter, message string, err error) {
	switch {
	case bridge.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case bridge.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
