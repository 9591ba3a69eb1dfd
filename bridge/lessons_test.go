package bridge_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/lesson-bridge/bridge"
	"github.com/warp/lesson-bridge/bridge/store"
)

// countingCourses counts unit listings to observe memoization.
type countingCourses struct {
	*store.Catalog
	unitCalls int
}

func (c *countingCourses) CourseUnits(ctx context.Context, course bridge.CourseID) ([]bridge.CourseUnit, error) {
	c.unitCalls++
	return c.Catalog.CourseUnits(ctx, course)
}

func lessonItem(id bridge.LessonID) bridge.ContentItem { return published(id, 0) }

func TestLessonIndex_UnitsInOrderPublishedLessonsOnly(t *testing.T) {
	// GIVEN: Two units mixing lessons, a quiz, a draft and a repeated lesson
	cat := store.NewCatalog()
	cat.AddUnit(1, 10,
		lessonItem(3),
		bridge.ContentItem{ID: 4, Type: "quiz", Status: bridge.ItemStatusPublic},
		lessonItem(1),
	)
	cat.AddUnit(1, 11,
		bridge.ContentItem{ID: 5, Type: bridge.ItemTypeLesson, Status: "draft"},
		lessonItem(1),
		lessonItem(2),
	)
	ix := bridge.NewLessonIndex(cat)

	// WHEN: The lessons are listed
	ids, err := ix.OrderedLessons(context.Background(), 1)

	// THEN: Unit order, then item order; first occurrence wins
	require.NoError(t, err)
	assert.Equal(t, []bridge.LessonID{3, 1, 2}, ids)
}

func TestLessonIndex_DirectItemsFallback(t *testing.T) {
	// GIVEN: A course with no units, lessons attached directly
	cat := store.NewCatalog()
	cat.AddCourseItems(2,
		published(30, 2),
		published(20, 1),
		published(10, 2),
		bridge.ContentItem{ID: 40, Type: bridge.ItemTypeLesson, Status: "private", MenuOrder: 0},
	)
	ix := bridge.NewLessonIndex(cat)

	// WHEN: The lessons are listed
	ids, err := ix.OrderedLessons(context.Background(), 2)

	// THEN: Menu order ascending, ties broken by ID
	require.NoError(t, err)
	assert.Equal(t, []bridge.LessonID{20, 10, 30}, ids)
}

func TestLessonIndex_UnitLessonsWinOverDirectItems(t *testing.T) {
	cat := store.NewCatalog()
	cat.AddUnit(3, 31, lessonItem(7))
	cat.AddCourseItems(3, published(8, 0))

	ids, err := bridge.NewLessonIndex(cat).OrderedLessons(context.Background(), 3)

	require.NoError(t, err)
	assert.Equal(t, []bridge.LessonID{7}, ids)
}

func TestLessonIndex_EmptyUnitsFallBackToDirectItems(t *testing.T) {
	cat := store.NewCatalog()
	cat.AddUnit(4, 41, bridge.ContentItem{ID: 9, Type: "quiz", Status: bridge.ItemStatusPublic})
	cat.AddCourseItems(4, published(8, 0))

	ids, err := bridge.NewLessonIndex(cat).OrderedLessons(context.Background(), 4)

	require.NoError(t, err)
	assert.Equal(t, []bridge.LessonID{8}, ids)
}

func TestLessonIndex_CountMatchesOrderedList(t *testing.T) {
	cat := store.NewCatalog()
	cat.AddUnit(1, 10, lessonItem(1), lessonItem(2), lessonItem(1))
	cat.AddCourseItems(2, published(5, 1), published(6, 0))
	ix := bridge.NewLessonIndex(cat)
	ctx := context.Background()

	for _, course := range []bridge.CourseID{1, 2, 3} {
		ids, err := ix.OrderedLessons(ctx, course)
		require.NoError(t, err)
		n, err := ix.CountLessons(ctx, course)
		require.NoError(t, err)
		assert.Equal(t, len(ids), n, "course %d", course)
	}
}

func TestLessonIndex_MemoizesPerIndex(t *testing.T) {
	// GIVEN: An index over a counting course system
	courses := &countingCourses{Catalog: store.NewCatalog()}
	courses.AddUnit(1, 10, lessonItem(1))
	ctx := context.Background()
	ix := bridge.NewLessonIndex(courses)

	// WHEN: The same course is read several times
	_, err := ix.OrderedLessons(ctx, 1)
	require.NoError(t, err)
	_, err = ix.CountLessons(ctx, 1)
	require.NoError(t, err)
	_, _, err = ix.LessonForSession(ctx, 1, 1)
	require.NoError(t, err)

	// THEN: The course system was asked once
	assert.Equal(t, 1, courses.unitCalls)

	// AND: A fresh index sees new content
	courses.AddUnit(1, 11, lessonItem(2))
	ids, err := bridge.NewLessonIndex(courses).OrderedLessons(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []bridge.LessonID{1, 2}, ids)
	assert.Equal(t, 2, courses.unitCalls)
}

func TestLessonIndex_CallersCannotCorruptCache(t *testing.T) {
	// GIVEN: An index that has already loaded a course
	cat := store.NewCatalog()
	cat.AddUnit(1, 10, lessonItem(11), lessonItem(12), lessonItem(13))
	ctx := context.Background()
	ix := bridge.NewLessonIndex(cat)
	first, err := ix.Lessons(ctx, 1)
	require.NoError(t, err)

	// WHEN: A caller reorders and grows the slice it was given
	first[0], first[2] = first[2], first[0]
	_ = append(first[:1], lessonItem(99))

	// THEN: Later reads still see the course order
	ids, err := ix.OrderedLessons(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []bridge.LessonID{11, 12, 13}, ids)

	again, err := ix.Lessons(ctx, 1)
	require.NoError(t, err)
	again[1].ID = 0
	lesson, _, err := ix.LessonForSession(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, bridge.LessonID(12), lesson)
}

func TestLessonIndex_LessonForSession(t *testing.T) {
	cat := store.NewCatalog()
	cat.AddUnit(1, 10, lessonItem(11), lessonItem(12), lessonItem(13))
	ix := bridge.NewLessonIndex(cat)
	ctx := context.Background()

	tests := []struct {
		session int
		want    bridge.LessonID
		clamped bool
	}{
		{session: 0, want: 11},
		{session: 1, want: 11},
		{session: 2, want: 12},
		{session: 3, want: 13},
		{session: 4, want: 13, clamped: true},
		{session: 9, want: 13, clamped: true},
	}
	for _, tt := range tests {
		got, clamped, err := ix.LessonForSession(ctx, 1, tt.session)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "session %d", tt.session)
		assert.Equal(t, tt.clamped, clamped, "session %d", tt.session)
	}
}

func TestLessonIndex_LessonForSessionEmptyCourse(t *testing.T) {
	ix := bridge.NewLessonIndex(store.NewCatalog())

	got, clamped, err := ix.LessonForSession(context.Background(), 77, 1)

	require.NoError(t, err)
	assert.Zero(t, got)
	assert.False(t, clamped)
}
