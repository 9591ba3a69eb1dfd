package bridge_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/lesson-bridge/bridge"
)

func TestCourseProgress(t *testing.T) {
	// GIVEN: alice completed the first two sessions of a 5-lesson course
	f := newFixture(t)
	f.create(recurring(60, 5))
	f.status(int64(sessionID(60, 1)), "approved")
	f.status(int64(sessionID(60, 2)), "completed")

	// WHEN: Progress is computed
	p, err := bridge.CourseProgress(f.ctx, bridge.NewLessonIndex(f.catalog), f.catalog, recurringCourse, alice)

	// THEN: 2 of 5, positions follow lesson order
	require.NoError(t, err)
	assert.Equal(t, 2, p.Completed)
	assert.Equal(t, 5, p.Total)
	assert.True(t, p.Percent.Equal(decimal.NewFromInt(40)), p.Percent.String())
	require.Len(t, p.Lessons, 5)
	assert.Equal(t, bridge.LessonState{LessonID: 101, Position: 1, Completed: true}, p.Lessons[0])
	assert.True(t, p.Lessons[1].Completed)
	assert.False(t, p.Lessons[2].Completed)
	assert.Equal(t, 5, p.Lessons[4].Position)
}

func TestCourseProgress_RoundsToOneDecimal(t *testing.T) {
	f := newFixture(t)
	f.catalog.AddUnit(400, 40, published(401, 0), published(402, 0), published(403, 0))
	require.NoError(t, f.catalog.MarkLessonCompleted(f.ctx, 401, alice))
	require.NoError(t, f.catalog.MarkLessonCompleted(f.ctx, 402, alice))

	p, err := bridge.CourseProgress(f.ctx, bridge.NewLessonIndex(f.catalog), f.catalog, 400, alice)

	require.NoError(t, err)
	assert.Equal(t, "66.7", p.Percent.String())
}

func TestCourseProgress_EmptyCourse(t *testing.T) {
	f := newFixture(t)

	p, err := bridge.CourseProgress(f.ctx, bridge.NewLessonIndex(f.catalog), f.catalog, emptyCourse, alice)

	require.NoError(t, err)
	assert.Zero(t, p.Total)
	assert.True(t, p.Percent.IsZero())
	assert.Empty(t, p.Lessons)
}
