/*
Package sqlite provides a SQLite-backed implementation of the bridge stores.

PURPOSE:
  Implements every persistence interface of the bridge using SQLite, plus a
  local mirror of the two external systems (course structure, enrollments,
  completions, users, customers, services) so the bridge can run standalone.

INTERFACES IMPLEMENTED:
  bridge.RecordStore:       BookingRecord rows
  bridge.NoticeStore:       MismatchNotice + CustomerNote rows
  bridge.SettingsStore:     Key-value operator configuration
  bridge.CourseSystem:      Mirror of the course system (catalog.go)
  bridge.ServiceDirectory:  Mirror of booking-system services (catalog.go)
  bridge.CustomerDirectory: Mirror of customers and users (catalog.go)

DUPLICATE DELIVERY:
  Idempotency lives in the schema, not in application checks:
  - idx_bookings_session:  UNIQUE(appointment_id, session_number)
  - idx_notices_type:      UNIQUE(appointment_id, notice_type)
  - idx_notes_type:        UNIQUE(booking_id, note_type)
  Inserts use ON CONFLICT DO NOTHING and report RowsAffected.
  Status updates are compare-and-swap (WHERE status = ?), lesson resolution
  is write-once (WHERE lesson_id IS NULL).

TIMES:
  Stored as RFC3339 strings in UTC, so lexical order is time order.

CONCURRENCY:
  sync.RWMutex around a single connection. Locked methods never call other
  locked methods, and result sets are drained before the next query.

USAGE:
  store, err := sqlite.New("./data/bridge.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - bridge/store.go:        Interface definitions
  - bridge/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/lesson-bridge/bridge"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ bridge.RecordStore       = (*Store)(nil)
	_ bridge.NoticeStore       = (*Store)(nil)
	_ bridge.SettingsStore     = (*Store)(nil)
	_ bridge.CourseSystem      = (*Store)(nil)
	_ bridge.ServiceDirectory  = (*Store)(nil)
	_ bridge.CustomerDirectory = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on"
	if dbPath != ":memory:" {
		dsn += "&_journal_mode=WAL"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every pooled connection to ":memory:" would be its own database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Operator settings (key -> JSON value)
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- One row per booked session
	CREATE TABLE IF NOT EXISTS bookings (
		id TEXT PRIMARY KEY,
		appointment_id INTEGER NOT NULL,
		session_id INTEGER NOT NULL,
		booking_id INTEGER NOT NULL,
		customer_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		course_id INTEGER NOT NULL,
		lesson_id INTEGER,
		service_id INTEGER NOT NULL,
		status TEXT NOT NULL,
		is_recurring INTEGER NOT NULL DEFAULT 0,
		recurring_count INTEGER NOT NULL DEFAULT 1,
		session_number INTEGER NOT NULL DEFAULT 1,
		starts_at TEXT,
		zoom_join_url TEXT,
		zoom_host_url TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: one record per session of an appointment
	CREATE UNIQUE INDEX IF NOT EXISTS idx_bookings_session
		ON bookings(appointment_id, session_number);
	CREATE INDEX IF NOT EXISTS idx_bookings_session_id
		ON bookings(session_id);
	CREATE INDEX IF NOT EXISTS idx_bookings_user_service_created
		ON bookings(user_id, service_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_bookings_course
		ON bookings(course_id);

	-- Session / lesson count mismatches
	CREATE TABLE IF NOT EXISTS booking_notices (
		id TEXT PRIMARY KEY,
		appointment_id INTEGER NOT NULL,
		notice_type TEXT NOT NULL,
		service_id INTEGER NOT NULL,
		course_id INTEGER NOT NULL,
		expected_count INTEGER NOT NULL,
		actual_count INTEGER NOT NULL,
		resolved INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_notices_type
		ON booking_notices(appointment_id, notice_type);

	-- Messages addressed to the customer of a booking
	CREATE TABLE IF NOT EXISTS customer_notes (
		id TEXT PRIMARY KEY,
		booking_id INTEGER NOT NULL,
		note_type TEXT NOT NULL,
		note TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_notes_type
		ON customer_notes(booking_id, note_type);

	-- Course system mirror
	CREATE TABLE IF NOT EXISTS courses (
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS course_units (
		id INTEGER PRIMARY KEY,
		course_id INTEGER NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_units_course
		ON course_units(course_id, position);

	-- An item belongs to a unit (unit_id) or directly to a course (course_id)
	CREATE TABLE IF NOT EXISTS course_items (
		row_id INTEGER PRIMARY KEY AUTOINCREMENT,
		item_id INTEGER NOT NULL,
		unit_id INTEGER,
		course_id INTEGER,
		item_type TEXT NOT NULL,
		status TEXT NOT NULL,
		menu_order INTEGER NOT NULL DEFAULT 0,
		title TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_items_unit
		ON course_items(unit_id, position);
	CREATE INDEX IF NOT EXISTS idx_items_course
		ON course_items(course_id);

	CREATE TABLE IF NOT EXISTS enrollments (
		course_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (course_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS lesson_completions (
		lesson_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		completed_at TEXT NOT NULL,
		PRIMARY KEY (lesson_id, user_id)
	);

	-- Booking system / platform directory mirror
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY,
		email TEXT NOT NULL COLLATE NOCASE,
		name TEXT NOT NULL DEFAULT ''
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email);

	CREATE TABLE IF NOT EXISTS customers (
		id INTEGER PRIMARY KEY,
		email TEXT NOT NULL DEFAULT '',
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS customer_users (
		customer_id INTEGER PRIMARY KEY,
		user_id INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS services (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		recurring_cycle TEXT NOT NULL DEFAULT ''
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// BOOKING RECORDS (bridge.RecordStore)
// =============================================================================

const recordColumns = `
	id, appointment_id, session_id, booking_id, customer_id, user_id, course_id,
	lesson_id, service_id, status, is_recurring, recurring_count, session_number,
	starts_at, zoom_join_url, zoom_host_url, created_at, updated_at`

// InsertIfAbsent stores rec unless its (appointment, session number) exists.
func (s *Store) InsertIfAbsent(ctx context.Context, rec bridge.BookingRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var startsAt sql.NullString
	if rec.StartsAt != nil {
		startsAt = nullString(formatTime(*rec.StartsAt))
	}

	query := `
		INSERT INTO bookings (` + recordColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(appointment_id, session_number) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.AppointmentID,
		rec.SessionID,
		rec.BookingID,
		rec.CustomerID,
		rec.UserID,
		rec.CourseID,
		nullLesson(rec.LessonID),
		rec.ServiceID,
		string(rec.Status),
		rec.IsRecurring,
		rec.RecurringCount,
		rec.SessionNumber,
		startsAt,
		nullString(rec.ZoomJoinURL),
		nullString(rec.ZoomHostURL),
		formatTime(rec.CreatedAt),
		formatTime(rec.UpdatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert booking: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Get returns a record by row ID.
func (s *Store) Get(ctx context.Context, id string) (bridge.BookingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs, err := s.queryRecords(ctx, `SELECT `+recordColumns+` FROM bookings WHERE id = ?`, id)
	if err != nil {
		return bridge.BookingRecord{}, err
	}
	if len(recs) == 0 {
		return bridge.BookingRecord{}, bridge.ErrNotFound
	}
	return recs[0], nil
}

func (s *Store) ListByAppointment(ctx context.Context, id bridge.AppointmentID) ([]bridge.BookingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryRecords(ctx, `
		SELECT `+recordColumns+` FROM bookings
		WHERE appointment_id = ?
		ORDER BY session_number ASC`, id)
}

func (s *Store) ListBySession(ctx context.Context, id bridge.SessionID) ([]bridge.BookingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryRecords(ctx, `
		SELECT `+recordColumns+` FROM bookings
		WHERE session_id = ?
		ORDER BY appointment_id ASC, session_number ASC`, id)
}

func (s *Store) ListByUser(ctx context.Context, id bridge.UserID) ([]bridge.BookingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryRecords(ctx, `
		SELECT `+recordColumns+` FROM bookings
		WHERE user_id = ?
		ORDER BY appointment_id ASC, session_number ASC`, id)
}

func (s *Store) ListByCourse(ctx context.Context, id bridge.CourseID) ([]bridge.BookingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryRecords(ctx, `
		SELECT `+recordColumns+` FROM bookings
		WHERE course_id = ?
		ORDER BY appointment_id ASC, session_number ASC`, id)
}

// CountActiveInWindow counts pending/approved/completed records with
// from <= created_at < to.
func (s *Store) CountActiveInWindow(ctx context.Context, user bridge.UserID, service bridge.ServiceID, from, to time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bookings
		WHERE user_id = ? AND service_id = ?
		  AND status IN ('pending', 'approved', 'completed')
		  AND created_at >= ? AND created_at < ?`,
		user, service, formatTime(from), formatTime(to),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

func (s *Store) CountAdvanced(ctx context.Context, id bridge.AppointmentID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bookings
		WHERE appointment_id = ? AND status IN ('approved', 'completed')`, id,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

// UpdateStatus is a compare-and-swap on the record's status.
func (s *Store) UpdateStatus(ctx context.Context, id string, from, to bridge.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE bookings SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(to), formatTime(time.Now()), id, string(from),
	)
	if err != nil {
		return false, fmt.Errorf("failed to update booking status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}

	exists, err := s.exists(ctx, "SELECT COUNT(*) FROM bookings WHERE id = ?", id)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, bridge.ErrNotFound
	}
	return false, nil
}

// ResolveLesson writes lesson only if the record has none yet and returns
// the stored lesson.
func (s *Store) ResolveLesson(ctx context.Context, id string, lesson bridge.LessonID) (bridge.LessonID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `
		UPDATE bookings SET lesson_id = ?, updated_at = ?
		WHERE id = ? AND lesson_id IS NULL`,
		nullLesson(lesson), formatTime(time.Now()), id,
	); err != nil {
		return 0, fmt.Errorf("failed to resolve lesson: %w", err)
	}

	var stored sql.NullInt64
	err := s.db.QueryRowContext(ctx, "SELECT lesson_id FROM bookings WHERE id = ?", id).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, bridge.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read lesson: %w", err)
	}
	return bridge.LessonID(stored.Int64), nil
}

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]bridge.BookingRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var records []bridge.BookingRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanRecord(rows *sql.Rows) (bridge.BookingRecord, error) {
	var (
		rec       bridge.BookingRecord
		lesson    sql.NullInt64
		status    string
		startsAt  sql.NullString
		zoomJoin  sql.NullString
		zoomHost  sql.NullString
		createdAt string
		updatedAt string
	)

	err := rows.Scan(
		&rec.ID, &rec.AppointmentID, &rec.SessionID, &rec.BookingID, &rec.CustomerID,
		&rec.UserID, &rec.CourseID, &lesson, &rec.ServiceID, &status, &rec.IsRecurring,
		&rec.RecurringCount, &rec.SessionNumber, &startsAt, &zoomJoin, &zoomHost,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return rec, fmt.Errorf("failed to scan booking: %w", err)
	}

	rec.LessonID = bridge.LessonID(lesson.Int64)
	rec.Status = bridge.Status(status)
	rec.ZoomJoinURL = zoomJoin.String
	rec.ZoomHostURL = zoomHost.String
	if startsAt.Valid {
		t := parseTime(startsAt.String)
		rec.StartsAt = &t
	}
	rec.CreatedAt = parseTime(createdAt)
	rec.UpdatedAt = parseTime(updatedAt)
	return rec, nil
}

// =============================================================================
// NOTICES (bridge.NoticeStore)
// =============================================================================

func (s *Store) InsertNoticeIfAbsent(ctx context.Context, n bridge.MismatchNotice) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO booking_notices
		(id, appointment_id, notice_type, service_id, course_id, expected_count, actual_count, resolved, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(appointment_id, notice_type) DO NOTHING`,
		n.ID, n.AppointmentID, bridge.NoticeSessionMismatch, n.ServiceID, n.CourseID,
		n.ExpectedCount, n.ActualCount, n.Resolved, formatTime(n.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert notice: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (s *Store) ListNotices(ctx context.Context, filter bridge.NoticeFilter) ([]bridge.MismatchNotice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, appointment_id, service_id, course_id, expected_count, actual_count, resolved, created_at
		FROM booking_notices WHERE notice_type = ?`
	args := []any{bridge.NoticeSessionMismatch}
	if filter.Resolved != nil {
		query += " AND resolved = ?"
		args = append(args, *filter.Resolved)
	}
	if filter.AppointmentID != nil {
		query += " AND appointment_id = ?"
		args = append(args, *filter.AppointmentID)
	}
	query += " ORDER BY created_at ASC, appointment_id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notices: %w", err)
	}
	defer rows.Close()

	var notices []bridge.MismatchNotice
	for rows.Next() {
		var (
			n         bridge.MismatchNotice
			createdAt string
		)
		if err := rows.Scan(&n.ID, &n.AppointmentID, &n.ServiceID, &n.CourseID,
			&n.ExpectedCount, &n.ActualCount, &n.Resolved, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan notice: %w", err)
		}
		n.CreatedAt = parseTime(createdAt)
		notices = append(notices, n)
	}
	return notices, rows.Err()
}

func (s *Store) ResolveNotice(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "UPDATE booking_notices SET resolved = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to resolve notice: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return bridge.ErrNotFound
	}
	return nil
}

func (s *Store) InsertCustomerNoteIfAbsent(ctx context.Context, n bridge.CustomerNote) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO customer_notes (id, booking_id, note_type, note, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(booking_id, note_type) DO NOTHING`,
		n.ID, n.BookingID, n.NoteType, n.Note, formatTime(n.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert customer note: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (s *Store) ListCustomerNotes(ctx context.Context, booking bridge.BookingID) ([]bridge.CustomerNote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, booking_id, note_type, note, created_at
		FROM customer_notes WHERE booking_id = ?
		ORDER BY note_type ASC`, booking)
	if err != nil {
		return nil, fmt.Errorf("failed to query customer notes: %w", err)
	}
	defer rows.Close()

	var notes []bridge.CustomerNote
	for rows.Next() {
		var (
			n         bridge.CustomerNote
			createdAt string
		)
		if err := rows.Scan(&n.ID, &n.BookingID, &n.NoteType, &n.Note, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan customer note: %w", err)
		}
		n.CreatedAt = parseTime(createdAt)
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// =============================================================================
// SETTINGS (bridge.SettingsStore)
// =============================================================================

const (
	settingServiceCourseMap = "service_course_map"
	settingPolicy           = "policy"
)

// LoadConfig returns the stored configuration. Missing keys fall back to
// an empty mapping list and the default policy.
func (s *Store) LoadConfig(ctx context.Context) (bridge.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	policy := bridge.DefaultPolicy()
	raw, ok, err := s.setting(ctx, settingPolicy)
	if err != nil {
		return bridge.Config{}, err
	}
	if ok {
		if err := json.Unmarshal([]byte(raw), &policy); err != nil {
			return bridge.Config{}, fmt.Errorf("failed to decode policy setting: %w", err)
		}
	}

	var mappings []bridge.ServiceMapping
	raw, ok, err = s.setting(ctx, settingServiceCourseMap)
	if err != nil {
		return bridge.Config{}, err
	}
	if ok {
		if err := json.Unmarshal([]byte(raw), &mappings); err != nil {
			return bridge.Config{}, fmt.Errorf("failed to decode mapping setting: %w", err)
		}
	}

	return bridge.NewConfig(policy, mappings...), nil
}

// SaveConfig replaces the stored configuration atomically.
func (s *Store) SaveConfig(ctx context.Context, cfg bridge.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	policyJSON, err := json.Marshal(cfg.Policy)
	if err != nil {
		return fmt.Errorf("failed to encode policy: %w", err)
	}
	mappings := cfg.SortedMappings()
	mappingJSON, err := json.Marshal(mappings)
	if err != nil {
		return fmt.Errorf("failed to encode mappings: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := formatTime(time.Now())
	for key, value := range map[string]string{
		settingPolicy:           string(policyJSON),
		settingServiceCourseMap: string(mappingJSON),
	} {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, value, now,
		); err != nil {
			return fmt.Errorf("failed to save setting %s: %w", key, err)
		}
	}
	return tx.Commit()
}

func (s *Store) setting(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value, true, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo). Settings are kept unless
// withSettings is set.
func (s *Store) Reset(ctx context.Context, withSettings bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"bookings", "booking_notices", "customer_notes",
		"courses", "course_units", "course_items", "enrollments", "lesson_completions",
		"users", "customers", "customer_users", "services",
	}
	if withSettings {
		tables = append(tables, "settings")
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

func (s *Store) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullLesson(id bridge.LessonID) sql.NullInt64 {
	if id == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(id), Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
