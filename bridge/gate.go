/*
gate.go - Booking entry-point access decisions

PURPOSE:
  Decides, before a booking form is shown, whether the current user may
  book a service. Runs strictly upstream of booking submission and never
  from event ingestion.

DECISION ORDER:
  1. service 0 or unmapped         -> allow
  2. not authenticated             -> deny_unauthenticated
  3. enrollment required, missing  -> deny_unenrolled
  4. active record this week       -> deny_rate_limited
  5. otherwise                     -> allow (with informational notices)

WEEK:
  Monday 00:00 up to the next Monday 00:00, in the location of the
  injected clock.
*/
package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/lesson-bridge/logger"
)

// Verdict is the gate's answer.
type Verdict string

const (
	VerdictAllow               Verdict = "allow"
	VerdictDenyUnauthenticated Verdict = "deny_unauthenticated"
	VerdictDenyUnenrolled      Verdict = "deny_unenrolled"
	VerdictDenyRateLimited     Verdict = "deny_rate_limited"
)

// Actor is the user asking to book.
type Actor struct {
	UserID        UserID
	Authenticated bool
}

// GateRequest asks whether Actor may book ServiceID. ContextCourseID is the
// course page the booking form is embedded in, if any.
type GateRequest struct {
	ServiceID       ServiceID
	Actor           Actor
	ContextCourseID CourseID
}

// Notice levels shown next to an allowed booking form.
const (
	NoticeInfo    = "info"
	NoticeWarning = "warning"
)

// GateNotice is a message shown alongside the booking form.
type GateNotice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Decision is the outcome of an access check.
type Decision struct {
	Verdict  Verdict      `json:"verdict"`
	CourseID CourseID     `json:"course_id,omitempty"`
	Message  string       `json:"message,omitempty"`
	Notices  []GateNotice `json:"notices,omitempty"`
}

func (d Decision) Allowed() bool { return d.Verdict == VerdictAllow }

// AccessGate answers booking access questions for one configuration.
type AccessGate struct {
	cfg  Config
	deps Deps
	log  *logger.Logger
}

// NewAccessGate creates a gate. Services may be nil, in which case no
// recurring-session notice is produced.
func NewAccessGate(cfg Config, deps Deps) *AccessGate {
	deps = deps.withDefaults()
	return &AccessGate{cfg: cfg, deps: deps, log: deps.Log}
}

// Decide evaluates req.
func (g *AccessGate) Decide(ctx context.Context, req GateRequest) (Decision, error) {
	if req.ServiceID == 0 {
		return Decision{Verdict: VerdictAllow}, nil
	}
	m, ok := g.cfg.Mapping(req.ServiceID)
	if !ok {
		return Decision{Verdict: VerdictAllow}, nil
	}

	d := Decision{CourseID: m.CourseID}
	if !req.Actor.Authenticated || req.Actor.UserID == 0 {
		d.Verdict = VerdictDenyUnauthenticated
		d.Message = "Please log in to book this session."
		return d, nil
	}

	if g.cfg.Policy.RequireEnrollment {
		enrolled, err := g.deps.Courses.IsUserEnrolled(ctx, m.CourseID, req.Actor.UserID)
		if err != nil {
			return Decision{}, fmt.Errorf("failed to check enrollment: %w", err)
		}
		if !enrolled {
			d.Verdict = VerdictDenyUnenrolled
			d.Message = "You must be enrolled in the course to book this session."
			return d, nil
		}
	}

	from, to := WeekWindow(g.deps.Now())
	active, err := g.deps.Records.CountActiveInWindow(ctx, req.Actor.UserID, req.ServiceID, from, to)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to count weekly bookings: %w", err)
	}
	if active > 0 {
		g.log.Debug("weekly booking limit reached",
			"user_id", req.Actor.UserID, "service_id", req.ServiceID, "week_start", from)
		d.Verdict = VerdictDenyRateLimited
		d.Message = "You already have a booking for this course this week. You can book one session per week."
		return d, nil
	}

	d.Verdict = VerdictAllow
	notices, err := g.notices(ctx, req, m)
	if err != nil {
		return Decision{}, err
	}
	d.Notices = notices
	return d, nil
}

func (g *AccessGate) notices(ctx context.Context, req GateRequest, m ServiceMapping) ([]GateNotice, error) {
	var out []GateNotice

	if g.deps.Services != nil {
		recurring, err := g.deps.Services.IsServiceRecurring(ctx, req.ServiceID)
		if err != nil {
			return nil, fmt.Errorf("failed to check service %d: %w", req.ServiceID, err)
		}
		if recurring {
			n, err := g.deps.Lessons.CountLessons(ctx, m.CourseID)
			if err != nil {
				return nil, err
			}
			if n > 0 {
				out = append(out, GateNotice{
					Level:   NoticeInfo,
					Message: fmt.Sprintf("This course has %d lessons. Please select exactly %d sessions.", n, n),
				})
			}
		}
	}

	if req.ContextCourseID != 0 && req.ContextCourseID != m.CourseID {
		out = append(out, GateNotice{
			Level:   NoticeWarning,
			Message: fmt.Sprintf("Lesson completion for this booking is tracked in course %d, not the course on this page.", m.CourseID),
		})
	}
	return out, nil
}

// WeekWindow returns the calendar week containing t: Monday 00:00 up to the
// following Monday 00:00, in t's location.
func WeekWindow(t time.Time) (time.Time, time.Time) {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	sinceMonday := (int(day.Weekday()) + 6) % 7
	start := day.AddDate(0, 0, -sinceMonday)
	return start, start.AddDate(0, 0, 7)
}
