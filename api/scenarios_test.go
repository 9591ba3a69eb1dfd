/*
scenarios_test.go - Unit tests for demo scenarios

PURPOSE:
	Tests that each scenario sets up the expected mirror and settings, so
	the scenarios can double as integration fixtures.
*/
package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/lesson-bridge/bridge"
)

func TestScenario_RecurringCourse(t *testing.T) {
	// GIVEN: The recurring-course scenario
	s := setupTestServer(t)
	ctx := context.Background()

	// WHEN: Loaded
	require.NoError(t, s.handler.loadRecurringCourseScenario(ctx))

	// THEN: 5 published lessons in unit order; quiz and draft excluded
	ids, err := bridge.NewLessonIndex(s.handler.Store).OrderedLessons(ctx, demoRecurringCourse)
	require.NoError(t, err)
	assert.Equal(t, []bridge.LessonID{1101, 1102, 1103, 1104, 1105}, ids)

	cfg, err := s.handler.Store.LoadConfig(ctx)
	require.NoError(t, err)
	m, ok := cfg.Mapping(demoRecurringService)
	require.True(t, ok)
	assert.Equal(t, demoRecurringCourse, m.CourseID)
	assert.Zero(t, m.LessonID)

	recurring, err := s.handler.Store.IsServiceRecurring(ctx, demoRecurringService)
	require.NoError(t, err)
	assert.True(t, recurring)

	// The customer is unlinked until the first booking resolves it.
	_, linked, err := s.handler.Store.LinkedUser(ctx, demoAliceCustomer)
	require.NoError(t, err)
	assert.False(t, linked)
}

func TestScenario_SingleLesson(t *testing.T) {
	s := setupTestServer(t)
	ctx := context.Background()

	require.NoError(t, s.handler.loadSingleLessonScenario(ctx))

	// Direct items are ordered by menu order.
	ids, err := bridge.NewLessonIndex(s.handler.Store).OrderedLessons(ctx, demoSingleCourse)
	require.NoError(t, err)
	assert.Equal(t, []bridge.LessonID{demoSingleLesson, 2102}, ids)

	cfg, err := s.handler.Store.LoadConfig(ctx)
	require.NoError(t, err)
	m, ok := cfg.Mapping(demoSingleService)
	require.True(t, ok)
	assert.Equal(t, demoSingleLesson, m.LessonID)

	recurring, err := s.handler.Store.IsServiceRecurring(ctx, demoSingleService)
	require.NoError(t, err)
	assert.False(t, recurring)

	user, linked, err := s.handler.Store.LinkedUser(ctx, demoBobCustomer)
	require.NoError(t, err)
	assert.True(t, linked)
	assert.Equal(t, demoBob, user)
}

func TestScenario_SessionMismatch(t *testing.T) {
	// GIVEN/WHEN: The session-mismatch scenario is loaded
	s := setupTestServer(t)
	ctx := context.Background()
	require.NoError(t, s.handler.Store.Reset(ctx, true))
	require.NoError(t, s.handler.loadSessionMismatchScenario(ctx))

	// THEN: 3 approved sessions recorded for alice, one notice, one customer note
	recs, err := s.handler.Store.ListByAppointment(ctx, demoMismatchAppt)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	for i, rec := range recs {
		assert.Equal(t, i+1, rec.SessionNumber)
		assert.Equal(t, demoAlice, rec.UserID)
		assert.Equal(t, bridge.StatusApproved, rec.Status)
	}

	notices, err := s.handler.Store.ListNotices(ctx, bridge.NoticeFilter{})
	require.NoError(t, err)
	require.Len(t, notices, 1)
	assert.Equal(t, 5, notices[0].ExpectedCount)
	assert.Equal(t, 3, notices[0].ActualCount)

	notes, err := s.handler.Store.ListCustomerNotes(ctx, 7001)
	require.NoError(t, err)
	assert.Len(t, notes, 1)

	// The e-mail match was stored as a link.
	user, linked, err := s.handler.Store.LinkedUser(ctx, demoAliceCustomer)
	require.NoError(t, err)
	assert.True(t, linked)
	assert.Equal(t, demoAlice, user)
}

func TestScenario_LoadResetsPreviousState(t *testing.T) {
	s := setupTestServer(t)
	ctx := context.Background()

	s.loadScenario("session-mismatch")
	s.loadScenario("single-lesson")

	notices, err := s.handler.Store.ListNotices(ctx, bridge.NoticeFilter{})
	require.NoError(t, err)
	assert.Empty(t, notices)
	cfg, err := s.handler.Store.LoadConfig(ctx)
	require.NoError(t, err)
	_, ok := cfg.Mapping(demoRecurringService)
	assert.False(t, ok)
}

func TestScenario_API(t *testing.T) {
	s := setupTestServer(t)

	rec := s.do(http.MethodGet, "/api/scenarios", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ScenarioDTO](t, rec), len(scenarios))

	rec = s.do(http.MethodPost, "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s.loadScenario("recurring-course")
	rec = s.do(http.MethodGet, "/api/scenarios/current", nil)
	assert.Equal(t, "recurring-course", decode[ScenarioDTO](t, rec).ID)

	rec = s.do(http.MethodPost, "/api/scenarios/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(http.MethodGet, "/api/scenarios/current", nil)
	assert.Equal(t, "null\n", rec.Body.String())
}

func TestScenario_AllScenariosLoadWithoutError(t *testing.T) {
	for _, sc := range scenarios {
		t.Run(sc.ID, func(t *testing.T) {
			s := setupTestServer(t)
			s.loadScenario(sc.ID)
		})
	}
}
