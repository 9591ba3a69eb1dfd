package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/warp/lesson-bridge/bridge"
)

// =============================================================================
// MIRROR RECORDS
// =============================================================================

// CourseDefinition is the full structure of one course.
type CourseDefinition struct {
	ID          bridge.CourseID      `json:"id"`
	Title       string               `json:"title"`
	Units       []UnitDefinition     `json:"units"`
	DirectItems []bridge.ContentItem `json:"direct_items,omitempty"`
}

// UnitDefinition is one unit with its items in display order.
type UnitDefinition struct {
	ID    bridge.UnitID        `json:"id"`
	Title string               `json:"title"`
	Items []bridge.ContentItem `json:"items"`
}

// User is a platform account that can be enrolled in courses.
type User struct {
	ID    bridge.UserID `json:"id"`
	Email string        `json:"email"`
	Name  string        `json:"name"`
}

// Customer is a booking-system customer.
type Customer struct {
	ID        bridge.CustomerID `json:"id"`
	Email     string            `json:"email"`
	FirstName string            `json:"first_name"`
	LastName  string            `json:"last_name"`
}

// Service is a booking-system service. A service is recurring when its
// cycle is set and not "disabled".
type Service struct {
	ID             bridge.ServiceID `json:"id"`
	Name           string           `json:"name"`
	RecurringCycle string           `json:"recurring_cycle"`
}

func (s Service) IsRecurring() bool {
	c := strings.ToLower(strings.TrimSpace(s.RecurringCycle))
	return c != "" && c != "disabled"
}

// =============================================================================
// COURSE MIRROR WRITES
// =============================================================================

// SaveCourse replaces the course's units and items with def.
func (s *Store) SaveCourse(ctx context.Context, def CourseDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	cleanup := []string{
		"DELETE FROM course_items WHERE unit_id IN (SELECT id FROM course_units WHERE course_id = ?)",
		"DELETE FROM course_items WHERE course_id = ?",
		"DELETE FROM course_units WHERE course_id = ?",
	}
	for _, q := range cleanup {
		if _, err := tx.ExecContext(ctx, q, def.ID); err != nil {
			return fmt.Errorf("failed to clear course %d: %w", def.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO courses (id, title) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title`,
		def.ID, def.Title,
	); err != nil {
		return fmt.Errorf("failed to save course %d: %w", def.ID, err)
	}

	insertItem := `
		INSERT INTO course_items (item_id, unit_id, course_id, item_type, status, menu_order, title, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	for ui, u := range def.Units {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO course_units (id, course_id, title, position) VALUES (?, ?, ?, ?)",
			u.ID, def.ID, u.Title, ui,
		); err != nil {
			if isUniqueConstraintError(err) {
				return &bridge.PayloadError{Field: "units", Reason: fmt.Sprintf("unit %d already belongs to another course", u.ID)}
			}
			return fmt.Errorf("failed to save unit %d: %w", u.ID, err)
		}
		for ii, it := range u.Items {
			if _, err := tx.ExecContext(ctx, insertItem,
				it.ID, u.ID, nil, it.Type, it.Status, it.MenuOrder, it.Title, ii,
			); err != nil {
				return fmt.Errorf("failed to save item %d: %w", it.ID, err)
			}
		}
	}
	for ii, it := range def.DirectItems {
		if _, err := tx.ExecContext(ctx, insertItem,
			it.ID, nil, def.ID, it.Type, it.Status, it.MenuOrder, it.Title, ii,
		); err != nil {
			return fmt.Errorf("failed to save item %d: %w", it.ID, err)
		}
	}

	return tx.Commit()
}

// SaveEnrollment enrolls a user in a course. Repeats are no-ops.
func (s *Store) SaveEnrollment(ctx context.Context, course bridge.CourseID, user bridge.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO enrollments (course_id, user_id, created_at) VALUES (?, ?, ?)
		ON CONFLICT(course_id, user_id) DO NOTHING`,
		course, user, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to save enrollment: %w", err)
	}
	return nil
}

// CompletedLessons returns the lessons a user completed, oldest first.
func (s *Store) CompletedLessons(ctx context.Context, user bridge.UserID) ([]bridge.LessonID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT lesson_id FROM lesson_completions
		WHERE user_id = ? ORDER BY rowid ASC`, user)
	if err != nil {
		return nil, fmt.Errorf("failed to query completions: %w", err)
	}
	defer rows.Close()

	var lessons []bridge.LessonID
	for rows.Next() {
		var id bridge.LessonID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		lessons = append(lessons, id)
	}
	return lessons, rows.Err()
}

// =============================================================================
// COURSE SYSTEM (bridge.CourseSystem)
// =============================================================================

func (s *Store) CourseUnits(ctx context.Context, course bridge.CourseID) ([]bridge.CourseUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, course_id, title FROM course_units
		WHERE course_id = ? ORDER BY position ASC, id ASC`, course)
	if err != nil {
		return nil, fmt.Errorf("failed to query units: %w", err)
	}
	defer rows.Close()

	var units []bridge.CourseUnit
	for rows.Next() {
		var u bridge.CourseUnit
		if err := rows.Scan(&u.ID, &u.CourseID, &u.Title); err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		units = append(units, u)
	}
	return units, rows.Err()
}

func (s *Store) UnitItems(ctx context.Context, unit bridge.UnitID) ([]bridge.ContentItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryItems(ctx, `
		SELECT item_id, item_type, status, menu_order, title FROM course_items
		WHERE unit_id = ? ORDER BY position ASC, row_id ASC`, unit)
}

func (s *Store) CourseItems(ctx context.Context, course bridge.CourseID) ([]bridge.ContentItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryItems(ctx, `
		SELECT item_id, item_type, status, menu_order, title FROM course_items
		WHERE course_id = ? AND unit_id IS NULL ORDER BY position ASC, row_id ASC`, course)
}

func (s *Store) queryItems(ctx context.Context, query string, args ...any) ([]bridge.ContentItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []bridge.ContentItem
	for rows.Next() {
		var it bridge.ContentItem
		if err := rows.Scan(&it.ID, &it.Type, &it.Status, &it.MenuOrder, &it.Title); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) IsLessonCompleted(ctx context.Context, lesson bridge.LessonID, user bridge.UserID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.exists(ctx,
		"SELECT COUNT(*) FROM lesson_completions WHERE lesson_id = ? AND user_id = ?", lesson, user)
}

func (s *Store) MarkLessonCompleted(ctx context.Context, lesson bridge.LessonID, user bridge.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lesson_completions (lesson_id, user_id, completed_at) VALUES (?, ?, ?)
		ON CONFLICT(lesson_id, user_id) DO NOTHING`,
		lesson, user, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to mark lesson completed: %w", err)
	}
	return nil
}

func (s *Store) IsUserEnrolled(ctx context.Context, course bridge.CourseID, user bridge.UserID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.exists(ctx,
		"SELECT COUNT(*) FROM enrollments WHERE course_id = ? AND user_id = ?", course, user)
}

// =============================================================================
// DIRECTORY (bridge.ServiceDirectory, bridge.CustomerDirectory)
// =============================================================================

// SaveService creates or replaces a service.
func (s *Store) SaveService(ctx context.Context, svc Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO services (id, name, recurring_cycle) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, recurring_cycle = excluded.recurring_cycle`,
		svc.ID, svc.Name, svc.RecurringCycle,
	)
	if err != nil {
		return fmt.Errorf("failed to save service: %w", err)
	}
	return nil
}

func (s *Store) IsServiceRecurring(ctx context.Context, service bridge.ServiceID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cycle string
	err := s.db.QueryRowContext(ctx, "SELECT recurring_cycle FROM services WHERE id = ?", service).Scan(&cycle)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read service: %w", err)
	}
	return Service{RecurringCycle: cycle}.IsRecurring(), nil
}

// SaveUser creates or replaces a platform user. E-mails are unique,
// case-insensitively.
func (s *Store) SaveUser(ctx context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET email = excluded.email, name = excluded.name`,
		u.ID, strings.TrimSpace(u.Email), u.Name,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &bridge.PayloadError{Field: "email", Reason: "already used by another user"}
		}
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// SaveCustomer creates or replaces a booking-system customer.
func (s *Store) SaveCustomer(ctx context.Context, c Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, email, first_name, last_name) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email, first_name = excluded.first_name, last_name = excluded.last_name`,
		c.ID, strings.TrimSpace(c.Email), c.FirstName, c.LastName,
	)
	if err != nil {
		return fmt.Errorf("failed to save customer: %w", err)
	}
	return nil
}

func (s *Store) LinkedUser(ctx context.Context, customer bridge.CustomerID) (bridge.UserID, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var user bridge.UserID
	err := s.db.QueryRowContext(ctx, "SELECT user_id FROM customer_users WHERE customer_id = ?", customer).Scan(&user)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read customer link: %w", err)
	}
	return user, true, nil
}

func (s *Store) CustomerEmail(ctx context.Context, customer bridge.CustomerID) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var email string
	err := s.db.QueryRowContext(ctx, "SELECT email FROM customers WHERE id = ?", customer).Scan(&email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read customer: %w", err)
	}
	return email, email != "", nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (bridge.UserID, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var user bridge.UserID
	err := s.db.QueryRowContext(ctx, "SELECT id FROM users WHERE email = ?", strings.TrimSpace(email)).Scan(&user)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read user: %w", err)
	}
	return user, true, nil
}

// LinkCustomer stores a customer -> user link. An existing link is kept.
func (s *Store) LinkCustomer(ctx context.Context, customer bridge.CustomerID, user bridge.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customer_users (customer_id, user_id) VALUES (?, ?)
		ON CONFLICT(customer_id) DO NOTHING`,
		customer, user,
	)
	if err != nil {
		return fmt.Errorf("failed to link customer: %w", err)
	}
	return nil
}
