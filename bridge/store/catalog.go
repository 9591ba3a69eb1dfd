package store

import (
	"context"
	"strings"
	"sync"

	"github.com/warp/lesson-bridge/bridge"
)

// =============================================================================
// CATALOG - In-memory course system and booking-system directory
// =============================================================================

// Catalog stands in for both external systems: course structure, lesson
// completion and enrollment on one side, services and customers on the
// other.
type Catalog struct {
	mu sync.RWMutex

	units       map[bridge.CourseID][]bridge.CourseUnit
	unitItems   map[bridge.UnitID][]bridge.ContentItem
	courseItems map[bridge.CourseID][]bridge.ContentItem
	completions map[completionKey]bool
	enrollments map[enrollmentKey]bool

	recurring map[bridge.ServiceID]bool
	links     map[bridge.CustomerID]bridge.UserID
	emails    map[bridge.CustomerID]string
	users     map[string]bridge.UserID

	// Completed lessons per user, in completion order.
	log map[bridge.UserID][]bridge.LessonID
}

type completionKey struct {
	Lesson bridge.LessonID
	User   bridge.UserID
}

type enrollmentKey struct {
	Course bridge.CourseID
	User   bridge.UserID
}

var (
	_ bridge.CourseSystem      = (*Catalog)(nil)
	_ bridge.ServiceDirectory  = (*Catalog)(nil)
	_ bridge.CustomerDirectory = (*Catalog)(nil)
)

func NewCatalog() *Catalog {
	return &Catalog{
		units:       make(map[bridge.CourseID][]bridge.CourseUnit),
		unitItems:   make(map[bridge.UnitID][]bridge.ContentItem),
		courseItems: make(map[bridge.CourseID][]bridge.ContentItem),
		completions: make(map[completionKey]bool),
		enrollments: make(map[enrollmentKey]bool),
		recurring:   make(map[bridge.ServiceID]bool),
		links:       make(map[bridge.CustomerID]bridge.UserID),
		emails:      make(map[bridge.CustomerID]string),
		users:       make(map[string]bridge.UserID),
		log:         make(map[bridge.UserID][]bridge.LessonID),
	}
}

// --- setup ---

// AddUnit appends a unit with its items, both in display order.
func (c *Catalog) AddUnit(course bridge.CourseID, unit bridge.UnitID, items ...bridge.ContentItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.units[course] = append(c.units[course], bridge.CourseUnit{ID: unit, CourseID: course})
	c.unitItems[unit] = append(c.unitItems[unit], items...)
}

// AddCourseItems associates items directly with a course.
func (c *Catalog) AddCourseItems(course bridge.CourseID, items ...bridge.ContentItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.courseItems[course] = append(c.courseItems[course], items...)
}

func (c *Catalog) Enroll(course bridge.CourseID, user bridge.UserID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enrollments[enrollmentKey{Course: course, User: user}] = true
}

func (c *Catalog) SetServiceRecurring(service bridge.ServiceID, recurring bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recurring[service] = recurring
}

func (c *Catalog) AddUser(user bridge.UserID, email string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[strings.ToLower(email)] = user
}

func (c *Catalog) AddCustomer(customer bridge.CustomerID, email string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emails[customer] = email
}

// CompletedLessons returns the user's completions in the order they happened.
func (c *Catalog) CompletedLessons(user bridge.UserID) []bridge.LessonID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]bridge.LessonID(nil), c.log[user]...)
}

// --- bridge.CourseSystem ---

func (c *Catalog) CourseUnits(_ context.Context, course bridge.CourseID) ([]bridge.CourseUnit, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]bridge.CourseUnit(nil), c.units[course]...), nil
}

func (c *Catalog) UnitItems(_ context.Context, unit bridge.UnitID) ([]bridge.ContentItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]bridge.ContentItem(nil), c.unitItems[unit]...), nil
}

func (c *Catalog) CourseItems(_ context.Context, course bridge.CourseID) ([]bridge.ContentItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]bridge.ContentItem(nil), c.courseItems[course]...), nil
}

func (c *Catalog) IsLessonCompleted(_ context.Context, lesson bridge.LessonID, user bridge.UserID) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.completions[completionKey{Lesson: lesson, User: user}], nil
}

func (c *Catalog) MarkLessonCompleted(_ context.Context, lesson bridge.LessonID, user bridge.UserID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := completionKey{Lesson: lesson, User: user}
	if !c.completions[k] {
		c.completions[k] = true
		c.log[user] = append(c.log[user], lesson)
	}
	return nil
}

func (c *Catalog) IsUserEnrolled(_ context.Context, course bridge.CourseID, user bridge.UserID) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enrollments[enrollmentKey{Course: course, User: user}], nil
}

// --- bridge.ServiceDirectory ---

func (c *Catalog) IsServiceRecurring(_ context.Context, service bridge.ServiceID) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.recurring[service], nil
}

// --- bridge.CustomerDirectory ---

func (c *Catalog) LinkedUser(_ context.Context, customer bridge.CustomerID) (bridge.UserID, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok := c.links[customer]
	return u, ok, nil
}

func (c *Catalog) CustomerEmail(_ context.Context, customer bridge.CustomerID) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.emails[customer]
	return e, ok, nil
}

func (c *Catalog) UserByEmail(_ context.Context, email string) (bridge.UserID, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok := c.users[strings.ToLower(email)]
	return u, ok, nil
}

func (c *Catalog) LinkCustomer(_ context.Context, customer bridge.CustomerID, user bridge.UserID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.links[customer]; !ok {
		c.links[customer] = user
	}
	return nil
}
