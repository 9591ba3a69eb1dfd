/*
lessons.go - Course lesson index

PURPOSE:
  Produces the ordered, deduplicated list of published lessons of a course.
  It is the ONLY place lessons are counted: session-count validation, the
  access gate info message, sequential lesson completion and the progress
  view all go through LessonIndex.

ORDERING:
  1. Units of the course in display order; within each unit, its items in
     display order; keep published lessons; first occurrence wins.
  2. If that yields nothing: items associated directly with the course,
     same filter, ordered by MenuOrder ascending (ties by ID).

LIFETIME:
  A LessonIndex memoizes per course for as long as it lives. Create one per
  request (NewLessonIndex) and drop it afterwards; course content may change
  between requests.
*/
package bridge

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
)

// LessonIndex is a request-scoped, memoizing view of course lessons.
type LessonIndex struct {
	courses CourseSystem

	mu    sync.Mutex
	cache map[CourseID][]ContentItem
}

// NewLessonIndex creates an empty index over the course system.
func NewLessonIndex(courses CourseSystem) *LessonIndex {
	return &LessonIndex{courses: courses, cache: make(map[CourseID][]ContentItem)}
}

// Lessons returns the course's published lessons in order. The slice is a
// copy; callers may modify it.
func (ix *LessonIndex) Lessons(ctx context.Context, course CourseID) ([]ContentItem, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if cached, ok := ix.cache[course]; ok {
		return slices.Clone(cached), nil
	}

	lessons, err := ix.load(ctx, course)
	if err != nil {
		return nil, err
	}
	ix.cache[course] = lessons
	return slices.Clone(lessons), nil
}

// OrderedLessons returns the course's lesson IDs in order.
func (ix *LessonIndex) OrderedLessons(ctx context.Context, course CourseID) ([]LessonID, error) {
	items, err := ix.Lessons(ctx, course)
	if err != nil {
		return nil, err
	}
	ids := make([]LessonID, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids, nil
}

// CountLessons returns len(OrderedLessons(course)).
func (ix *LessonIndex) CountLessons(ctx context.Context, course CourseID) (int, error) {
	items, err := ix.Lessons(ctx, course)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// LessonForSession picks the lesson a recurring session completes:
// lessons[session-1], clamped to the last lesson. The second return value is
// true when clamping happened. Returns 0 when the course has no lessons.
func (ix *LessonIndex) LessonForSession(ctx context.Context, course CourseID, session int) (LessonID, bool, error) {
	ids, err := ix.OrderedLessons(ctx, course)
	if err != nil {
		return 0, false, err
	}
	if len(ids) == 0 {
		return 0, false, nil
	}
	if session < 1 {
		session = 1
	}
	if session > len(ids) {
		return ids[len(ids)-1], true, nil
	}
	return ids[session-1], false, nil
}

func (ix *LessonIndex) load(ctx context.Context, course CourseID) ([]ContentItem, error) {
	units, err := ix.courses.CourseUnits(ctx, course)
	if err != nil {
		return nil, fmt.Errorf("failed to load units of course %d: %w", course, err)
	}

	seen := make(map[LessonID]bool)
	var lessons []ContentItem
	for _, u := range units {
		items, err := ix.courses.UnitItems(ctx, u.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load items of unit %d: %w", u.ID, err)
		}
		for _, it := range items {
			if !it.IsPublishedLesson() || seen[it.ID] {
				continue
			}
			seen[it.ID] = true
			lessons = append(lessons, it)
		}
	}
	if len(lessons) > 0 {
		return lessons, nil
	}

	// Courses without units keep lessons directly on the course.
	direct, err := ix.courses.CourseItems(ctx, course)
	if err != nil {
		return nil, fmt.Errorf("failed to load direct lessons of course %d: %w", course, err)
	}
	for _, it := range direct {
		if !it.IsPublishedLesson() || seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		lessons = append(lessons, it)
	}
	sort.SliceStable(lessons, func(i, j int) bool {
		if lessons[i].MenuOrder != lessons[j].MenuOrder {
			return lessons[i].MenuOrder < lessons[j].MenuOrder
		}
		return lessons[i].ID < lessons[j].ID
	})
	return lessons, nil
}
