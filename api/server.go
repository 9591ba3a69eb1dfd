/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, carried into bridge logs
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests from the operator UI

ROUTE GROUPS:
  /api/events/*      Booking-system webhooks
  /api/settings      Mapping configuration surface
  /api/notices/*     Mismatch notice review
  /api/access        Booking access gate
  /api/users/*       Student bookings and progress
  /api/bookings/*    Customer notes of a booking
  /api/courses/*     Lesson listings, instructor session view
  /api/catalog/*     Course system mirror
  /api/directory/*   Booking directory mirror
  /api/scenarios/*   Demo scenarios
  /health            Liveness + database ping

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// DefaultAllowedOrigins are the operator UI origins used when none are configured.
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	if len(allowedOrigins) == 0 {
		allowedOrigins = DefaultAllowedOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := h.Store.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Booking-system events
		r.Route("/events/appointments", func(r chi.Router) {
			r.Post("/", h.AppointmentCreated)
			r.Post("/{id}/status", h.AppointmentStatusChanged)
			r.Post("/{id}/cancel", h.AppointmentCancelled)
		})

		r.Get("/settings", h.GetSettings)
		r.Put("/settings", h.PutSettings)

		r.Route("/notices", func(r chi.Router) {
			r.Get("/", h.ListNotices)
			r.Post("/{id}/resolve", h.ResolveNotice)
		})

		r.Get("/access", h.CheckAccess)

		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/bookings", h.ListUserBookings)
			r.Get("/courses/{courseID}/progress", h.GetProgress)
		})

		r.Get("/bookings/{id}/notes", h.ListBookingNotes)

		r.Route("/courses/{id}", func(r chi.Router) {
			r.Get("/lessons", h.ListCourseLessons)
			r.Get("/sessions", h.ListCourseSessions)
		})

		// Local mirror of the external systems
		r.Route("/catalog", func(r chi.Router) {
			r.Put("/courses/{id}", h.PutCourse)
			r.Post("/enrollments", h.CreateEnrollment)
		})
		r.Route("/directory", func(r chi.Router) {
			r.Post("/users", h.CreateUser)
			r.Post("/customers", h.CreateCustomer)
			r.Put("/services/{id}", h.PutService)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	return r
}
