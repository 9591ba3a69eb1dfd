package bridge

import (
	"context"

	"github.com/warp/lesson-bridge/logger"
)

// Notifier tells an operator about a session/lesson count mismatch.
// The engine logs a failed notification and carries on.
type Notifier interface {
	NotifyMismatch(ctx context.Context, n MismatchNotice) error
}

// LogNotifier writes mismatch notifications to the structured log.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	if log == nil {
		log = logger.Nop()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) NotifyMismatch(_ context.Context, notice MismatchNotice) error {
	n.log.Warn("session count does not match course lessons",
		"notice_id", notice.ID,
		"appointment_id", notice.AppointmentID,
		"service_id", notice.ServiceID,
		"course_id", notice.CourseID,
		"lessons", notice.ExpectedCount,
		"sessions", notice.ActualCount,
	)
	return nil
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n MismatchNotice) error

func (f NotifierFunc) NotifyMismatch(ctx context.Context, n MismatchNotice) error { return f(ctx, n) }
