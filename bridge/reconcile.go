/*
reconcile.go - Booking event ingestion and lesson completion

PURPOSE:
  Folds booking-system lifecycle events into BookingRecords and turns
  sessions that advance into lesson completions in the course system.

EVENTS (BookingEventSource):
  AppointmentCreated:       one record per resolved session, insert-if-absent
  AppointmentStatusChanged: advance records, then complete lessons
  AppointmentCancelled:     cancel every pending/approved record

RESULTS:
  The error return is for store and collaborator failures only. Unmapped
  services, unknown customers, count mismatches and repeated deliveries
  are reported through IngestResult.Outcome.

DUPLICATE DELIVERY:
  Every path can run twice with the same input and leave the same state:
  - records:      insert-if-absent on (appointment_id, session_number)
  - status:       compare-and-swap from the stored status
  - lesson:       resolved once per record, then stable
  - completion:   IsLessonCompleted guard before MarkLessonCompleted
  - notices:      one per appointment, notifier runs on first insert only

  A repeated status event still runs the completion decision for its
  records, so a completion that failed on first delivery is retried.

SEE ALSO:
  - transitions.go: status state machine
  - lessons.go:     session number -> lesson selection
  - store.go:       RecordStore / NoticeStore contracts
*/
package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/warp/lesson-bridge/logger"
)

// BookingEventSource is the surface the host adapter drives with booking
// system events.
type BookingEventSource interface {
	AppointmentCreated(ctx context.Context, p AppointmentPayload) (IngestResult, error)
	AppointmentStatusChanged(ctx context.Context, id AppointmentID, newStatus, oldStatus string) (IngestResult, error)
	AppointmentCancelled(ctx context.Context, p CancellationPayload) (IngestResult, error)
}

// =============================================================================
// OUTCOMES
// =============================================================================

// Outcome classifies how an event was handled.
type Outcome string

const (
	OutcomeRecorded  Outcome = "recorded"
	OutcomeAdvanced  Outcome = "advanced"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeIgnored   Outcome = "ignored"

	OutcomeConfigurationAbsent  Outcome = "configuration_absent"
	OutcomeUnresolvableIdentity Outcome = "unresolvable_identity"
	OutcomeCountMismatch        Outcome = "count_mismatch"
	OutcomeDuplicateEvent       Outcome = "duplicate_event"
	OutcomeInvalidPayload       Outcome = "invalid_payload"
)

// IngestResult reports what one event changed.
type IngestResult struct {
	Outcome       Outcome       `json:"outcome"`
	AppointmentID AppointmentID `json:"appointment_id,omitempty"`
	Message       string        `json:"message,omitempty"`

	Inserted   int `json:"inserted"`
	Updated    int `json:"updated"`
	Cancelled  int `json:"cancelled"`
	Skipped    int `json:"skipped"`
	Duplicates int `json:"duplicates"`

	CompletedLessons []LessonID     `json:"completed_lessons,omitempty"`
	Notice           *MismatchNotice `json:"notice,omitempty"`
}

// =============================================================================
// ENGINE
// =============================================================================

// Deps are the collaborators shared by Engine and AccessGate.
type Deps struct {
	Records  RecordStore
	Notices  NoticeStore
	Courses  CourseSystem
	Services ServiceDirectory
	Identity IdentityResolver
	Notifier Notifier

	// Lessons is the request-scoped lesson index. A fresh one over Courses
	// is created when nil.
	Lessons *LessonIndex

	Log *logger.Logger
	Now func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Lessons == nil {
		d.Lessons = NewLessonIndex(d.Courses)
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Notifier == nil {
		d.Notifier = NewLogNotifier(d.Log)
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// Engine implements BookingEventSource for one configuration snapshot.
// Build one per request; it holds a request-scoped LessonIndex.
type Engine struct {
	cfg  Config
	deps Deps
	log  *logger.Logger
}

var _ BookingEventSource = (*Engine)(nil)

// NewEngine creates an engine over the given configuration.
func NewEngine(cfg Config, deps Deps) *Engine {
	deps = deps.withDefaults()
	return &Engine{cfg: cfg, deps: deps, log: deps.Log}
}

// =============================================================================
// CREATED
// =============================================================================

// AppointmentCreated records the sessions of a new appointment.
func (e *Engine) AppointmentCreated(ctx context.Context, p AppointmentPayload) (IngestResult, error) {
	appt, err := NormalizeAppointment(p)
	if err != nil {
		e.log.Warn("rejected appointment payload", "appointment_id", p.ID, "error", err)
		return IngestResult{Outcome: OutcomeInvalidPayload, AppointmentID: p.ID, Message: err.Error()}, nil
	}

	res := IngestResult{AppointmentID: appt.ID}
	mapping, ok := e.cfg.Mapping(appt.ServiceID)
	if !ok {
		e.log.Debug("service not mapped to a course", "appointment_id", appt.ID, "service_id", appt.ServiceID)
		res.Outcome = OutcomeConfigurationAbsent
		return res, nil
	}

	if e.cfg.Policy.EnforceSessionCount && appt.IsRecurring {
		notice, err := e.validateSessionCount(ctx, appt, mapping)
		if err != nil {
			return IngestResult{}, err
		}
		res.Notice = notice
	}

	now := e.deps.Now().UTC()
	total := len(appt.Sessions)
	for i, s := range appt.Sessions {
		user, ok, err := e.deps.Identity.ResolveUser(ctx, s.CustomerID)
		if err != nil {
			return IngestResult{}, fmt.Errorf("failed to resolve customer %d: %w", s.CustomerID, err)
		}
		if !ok {
			e.log.Warn("no user for booking customer, session not tracked",
				"appointment_id", appt.ID, "session", i+1, "customer_id", s.CustomerID)
			res.Skipped++
			continue
		}

		rec := BookingRecord{
			ID:             uuid.NewString(),
			AppointmentID:  appt.ID,
			SessionID:      s.SessionID,
			BookingID:      s.BookingID,
			CustomerID:     s.CustomerID,
			UserID:         user,
			CourseID:       mapping.CourseID,
			ServiceID:      appt.ServiceID,
			Status:         appt.Status,
			IsRecurring:    appt.IsRecurring,
			RecurringCount: total,
			SessionNumber:  i + 1,
			StartsAt:       s.StartsAt,
			ZoomJoinURL:    appt.ZoomJoinURL,
			ZoomHostURL:    appt.ZoomHostURL,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if !appt.IsRecurring {
			rec.LessonID = mapping.LessonID
		}

		inserted, err := e.deps.Records.InsertIfAbsent(ctx, rec)
		if err != nil {
			return IngestResult{}, fmt.Errorf("failed to record session %d of appointment %d: %w", i+1, appt.ID, err)
		}
		if inserted {
			res.Inserted++
		} else {
			res.Duplicates++
		}
	}

	switch {
	case res.Skipped == total:
		res.Outcome = OutcomeUnresolvableIdentity
	case res.Inserted == 0:
		res.Outcome = OutcomeDuplicateEvent
	case res.Notice != nil:
		res.Outcome = OutcomeCountMismatch
	default:
		res.Outcome = OutcomeRecorded
	}

	e.log.Info("appointment ingested",
		"appointment_id", appt.ID,
		"service_id", appt.ServiceID,
		"course_id", mapping.CourseID,
		"sessions", total,
		"inserted", res.Inserted,
		"skipped", res.Skipped,
		"outcome", res.Outcome,
	)
	return res, nil
}

// validateSessionCount compares the booked sessions with the course lessons.
// A mismatch is recorded and reported; it never blocks ingestion.
func (e *Engine) validateSessionCount(ctx context.Context, appt Appointment, m ServiceMapping) (*MismatchNotice, error) {
	lessons, err := e.deps.Lessons.CountLessons(ctx, m.CourseID)
	if err != nil {
		return nil, err
	}
	sessions := len(appt.Sessions)
	if lessons == 0 {
		e.log.Warn("course has no lessons, session count not validated",
			"appointment_id", appt.ID, "course_id", m.CourseID)
		return nil, nil
	}
	if lessons == sessions {
		return nil, nil
	}

	notice := MismatchNotice{
		ID:            uuid.NewString(),
		AppointmentID: appt.ID,
		ServiceID:     appt.ServiceID,
		CourseID:      m.CourseID,
		ExpectedCount: lessons,
		ActualCount:   sessions,
		CreatedAt:     e.deps.Now().UTC(),
	}
	inserted, err := e.deps.Notices.InsertNoticeIfAbsent(ctx, notice)
	if err != nil {
		return nil, fmt.Errorf("failed to store mismatch notice: %w", err)
	}
	if !inserted {
		return &notice, nil
	}

	if err := e.deps.Notifier.NotifyMismatch(ctx, notice); err != nil {
		e.log.Error("mismatch notification failed", "appointment_id", appt.ID, "error", err)
	}

	if booking := appt.Sessions[0].BookingID; booking > 0 {
		note := CustomerNote{
			ID:        uuid.NewString(),
			BookingID: booking,
			NoteType:  NoteMismatchWarning,
			Note: fmt.Sprintf("You booked %d sessions but this course has %d lessons. "+
				"Please contact us so we can adjust your booking.", sessions, lessons),
			CreatedAt: notice.CreatedAt,
		}
		if _, err := e.deps.Notices.InsertCustomerNoteIfAbsent(ctx, note); err != nil {
			return nil, fmt.Errorf("failed to store customer note: %w", err)
		}
	}
	return &notice, nil
}

// =============================================================================
// STATUS CHANGED
// =============================================================================

// AppointmentStatusChanged advances the records addressed by id and
// completes the lessons they map to. id is matched against session IDs
// first, then appointment IDs.
func (e *Engine) AppointmentStatusChanged(ctx context.Context, id AppointmentID, newStatus, oldStatus string) (IngestResult, error) {
	res := IngestResult{AppointmentID: id}
	to, err := ParseStatus(newStatus)
	if err != nil {
		e.log.Warn("rejected status change", "appointment_id", id, "new_status", newStatus, "error", err)
		res.Outcome = OutcomeInvalidPayload
		res.Message = err.Error()
		return res, nil
	}
	if !to.IsAdvanced() {
		res.Outcome = OutcomeIgnored
		return res, nil
	}

	targets, err := e.deps.Records.ListBySession(ctx, SessionID(id))
	if err != nil {
		return IngestResult{}, fmt.Errorf("failed to list session %d: %w", id, err)
	}
	if len(targets) == 0 {
		targets, err = e.deps.Records.ListByAppointment(ctx, id)
		if err != nil {
			return IngestResult{}, fmt.Errorf("failed to list appointment %d: %w", id, err)
		}
	}
	if len(targets) == 0 {
		e.log.Debug("status change for untracked appointment", "appointment_id", id, "new_status", to)
		res.Outcome = OutcomeConfigurationAbsent
		return res, nil
	}

	var reached []BookingRecord
	for _, rec := range targets {
		advance, err := Transition(rec.Status, to)
		if err != nil {
			e.log.Warn("illegal status change skipped",
				"record_id", rec.ID, "terminal", rec.Status.IsTerminal(), "reported_old", oldStatus, "error", err)
			res.Skipped++
			continue
		}
		if !advance {
			res.Duplicates++
			reached = append(reached, rec)
			continue
		}

		swapped, err := e.deps.Records.UpdateStatus(ctx, rec.ID, rec.Status, to)
		if err != nil {
			return IngestResult{}, fmt.Errorf("failed to update record %s: %w", rec.ID, err)
		}
		if !swapped {
			// Another delivery moved the row first.
			res.Duplicates++
			continue
		}
		rec.Status = to
		res.Updated++
		reached = append(reached, rec)
	}

	completed := make(map[AppointmentID]bool)
	for _, rec := range reached {
		if err := e.completeFor(ctx, rec, completed, &res); err != nil {
			return IngestResult{}, err
		}
	}

	switch {
	case res.Updated > 0 || len(res.CompletedLessons) > 0:
		res.Outcome = OutcomeAdvanced
	case res.Duplicates > 0:
		res.Outcome = OutcomeDuplicateEvent
	default:
		res.Outcome = OutcomeIgnored
	}

	e.log.Info("status change ingested",
		"appointment_id", id,
		"new_status", to,
		"updated", res.Updated,
		"lessons_completed", len(res.CompletedLessons),
		"outcome", res.Outcome,
	)
	return res, nil
}

// completeFor runs the completion decision for a record that reached an
// advanced status. With CompleteWhenAllDone the whole appointment is
// completed at once, and only once per event.
func (e *Engine) completeFor(ctx context.Context, rec BookingRecord, done map[AppointmentID]bool, res *IngestResult) error {
	if !e.cfg.Policy.AutoComplete {
		return nil
	}
	if !e.cfg.Policy.CompleteWhenAllDone {
		return e.completeSession(ctx, rec, res)
	}
	if done[rec.AppointmentID] {
		return nil
	}

	advanced, err := e.deps.Records.CountAdvanced(ctx, rec.AppointmentID)
	if err != nil {
		return fmt.Errorf("failed to count advanced sessions of appointment %d: %w", rec.AppointmentID, err)
	}
	if advanced < rec.RecurringCount {
		e.log.Debug("waiting for remaining sessions",
			"appointment_id", rec.AppointmentID, "advanced", advanced, "sessions", rec.RecurringCount)
		return nil
	}
	done[rec.AppointmentID] = true

	sessions, err := e.deps.Records.ListByAppointment(ctx, rec.AppointmentID)
	if err != nil {
		return fmt.Errorf("failed to list appointment %d: %w", rec.AppointmentID, err)
	}
	for _, s := range sessions {
		if !s.Status.IsAdvanced() {
			continue
		}
		if err := e.completeSession(ctx, s, res); err != nil {
			return err
		}
	}
	return nil
}

// completeSession marks the record's lesson complete for its user unless
// it already is. Recurring records resolve their lesson on first use.
func (e *Engine) completeSession(ctx context.Context, rec BookingRecord, res *IngestResult) error {
	lesson := rec.LessonID
	if rec.IsRecurring && lesson == 0 {
		picked, clamped, err := e.deps.Lessons.LessonForSession(ctx, rec.CourseID, rec.SessionNumber)
		if err != nil {
			return err
		}
		if picked == 0 {
			e.log.Warn("course has no lessons, nothing to complete",
				"record_id", rec.ID, "course_id", rec.CourseID)
			return nil
		}
		if clamped {
			e.log.Warn("session number exceeds course lessons, using last lesson",
				"record_id", rec.ID, "course_id", rec.CourseID, "session", rec.SessionNumber, "lesson_id", picked)
		}
		lesson, err = e.deps.Records.ResolveLesson(ctx, rec.ID, picked)
		if err != nil {
			return fmt.Errorf("failed to resolve lesson for record %s: %w", rec.ID, err)
		}
	}
	if lesson == 0 {
		return nil
	}

	already, err := e.deps.Courses.IsLessonCompleted(ctx, lesson, rec.UserID)
	if err != nil {
		return fmt.Errorf("failed to check lesson %d: %w", lesson, err)
	}
	if already {
		return nil
	}
	if err := e.deps.Courses.MarkLessonCompleted(ctx, lesson, rec.UserID); err != nil {
		return fmt.Errorf("failed to complete lesson %d for user %d: %w", lesson, rec.UserID, err)
	}
	res.CompletedLessons = append(res.CompletedLessons, lesson)

	e.log.Info("lesson completed",
		"record_id", rec.ID,
		"user_id", rec.UserID,
		"course_id", rec.CourseID,
		"lesson_id", lesson,
		"session", rec.SessionNumber,
	)
	return nil
}

// =============================================================================
// CANCELLED
// =============================================================================

// AppointmentCancelled cancels the records addressed by the payload. The ID
// is matched against appointment IDs first, then session IDs. Completed
// records keep their status.
func (e *Engine) AppointmentCancelled(ctx context.Context, p CancellationPayload) (IngestResult, error) {
	res := IngestResult{AppointmentID: p.ID}
	if p.ID <= 0 {
		res.Outcome = OutcomeInvalidPayload
		res.Message = (&PayloadError{Field: "id", Reason: "must be positive"}).Error()
		return res, nil
	}

	targets, err := e.deps.Records.ListByAppointment(ctx, p.ID)
	if err != nil {
		return IngestResult{}, fmt.Errorf("failed to list appointment %d: %w", p.ID, err)
	}
	if len(targets) == 0 {
		targets, err = e.deps.Records.ListBySession(ctx, SessionID(p.ID))
		if err != nil {
			return IngestResult{}, fmt.Errorf("failed to list session %d: %w", p.ID, err)
		}
	}
	if len(targets) == 0 {
		res.Outcome = OutcomeConfigurationAbsent
		return res, nil
	}

	for _, rec := range targets {
		advance, err := Transition(rec.Status, StatusCancelled)
		if err != nil {
			e.log.Debug("record kept on cancellation", "record_id", rec.ID, "error", err)
			res.Skipped++
			continue
		}
		if !advance {
			res.Duplicates++
			continue
		}
		swapped, err := e.deps.Records.UpdateStatus(ctx, rec.ID, rec.Status, StatusCancelled)
		if err != nil {
			return IngestResult{}, fmt.Errorf("failed to cancel record %s: %w", rec.ID, err)
		}
		if swapped {
			res.Cancelled++
		} else {
			res.Duplicates++
		}
	}

	switch {
	case res.Cancelled > 0:
		res.Outcome = OutcomeCancelled
	case res.Duplicates > 0:
		res.Outcome = OutcomeDuplicateEvent
	default:
		res.Outcome = OutcomeIgnored
	}

	e.log.Info("cancellation ingested",
		"appointment_id", p.ID, "cancelled", res.Cancelled, "kept", res.Skipped, "outcome", res.Outcome)
	return res, nil
}
