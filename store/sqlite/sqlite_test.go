package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/lesson-bridge/bridge"
	"github.com/warp/lesson-bridge/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func setupStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

var created = time.Date(2026, 3, 11, 10, 0, 0, 0, time.UTC)

func record(id string, appt bridge.AppointmentID, session int) bridge.BookingRecord {
	return bridge.BookingRecord{
		ID:             id,
		AppointmentID:  appt,
		SessionID:      bridge.SessionID(int64(appt)*10 + int64(session)),
		BookingID:      700,
		CustomerID:     501,
		UserID:         1,
		CourseID:       100,
		ServiceID:      10,
		Status:         bridge.StatusPending,
		IsRecurring:    true,
		RecurringCount: 3,
		SessionNumber:  session,
		CreatedAt:      created,
		UpdatedAt:      created,
	}
}

// =============================================================================
// BOOKING RECORDS
// =============================================================================

func TestStore_InsertIfAbsent(t *testing.T) {
	// GIVEN: A stored session
	store := setupStore(t)
	ctx := context.Background()
	rec := record("r1", 1, 1)
	starts := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	rec.StartsAt = &starts
	rec.ZoomJoinURL = "https://zoom.example/j/1"

	inserted, err := store.InsertIfAbsent(ctx, rec)
	require.NoError(t, err)
	require.True(t, inserted)

	// WHEN: The same (appointment, session) arrives with another row ID
	again := record("r2", 1, 1)
	again.Status = bridge.StatusApproved
	inserted, err = store.InsertIfAbsent(ctx, again)

	// THEN: Nothing is written, the original row is intact
	require.NoError(t, err)
	assert.False(t, inserted)

	recs, err := store.ListByAppointment(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	got := recs[0]
	assert.Equal(t, "r1", got.ID)
	assert.Equal(t, bridge.StatusPending, got.Status)
	assert.False(t, got.HasLesson())
	assert.True(t, got.IsRecurring)
	assert.Equal(t, created, got.CreatedAt)
	require.NotNil(t, got.StartsAt)
	assert.True(t, starts.Equal(*got.StartsAt))
	assert.Equal(t, "https://zoom.example/j/1", got.ZoomJoinURL)
	assert.Empty(t, got.ZoomHostURL)
}

func TestStore_Listings(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	for _, rec := range []bridge.BookingRecord{record("c", 2, 3), record("a", 2, 1), record("b", 2, 2), record("z", 3, 1)} {
		_, err := store.InsertIfAbsent(ctx, rec)
		require.NoError(t, err)
	}

	recs, err := store.ListByAppointment(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{recs[0].SessionNumber, recs[1].SessionNumber, recs[2].SessionNumber})

	bySession, err := store.ListBySession(ctx, 22)
	require.NoError(t, err)
	require.Len(t, bySession, 1)
	assert.Equal(t, "b", bySession[0].ID)

	byUser, err := store.ListByUser(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, byUser, 4)

	byCourse, err := store.ListByCourse(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, byCourse, 4)

	_, err = store.Get(ctx, "missing")
	assert.True(t, errors.Is(err, bridge.ErrNotFound))
}

func TestStore_UpdateStatusIsCompareAndSwap(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	_, err := store.InsertIfAbsent(ctx, record("r1", 1, 1))
	require.NoError(t, err)

	swapped, err := store.UpdateStatus(ctx, "r1", bridge.StatusPending, bridge.StatusApproved)
	require.NoError(t, err)
	assert.True(t, swapped)

	// Second delivery with the stale "from" changes nothing.
	swapped, err = store.UpdateStatus(ctx, "r1", bridge.StatusPending, bridge.StatusApproved)
	require.NoError(t, err)
	assert.False(t, swapped)

	rec, err := store.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, bridge.StatusApproved, rec.Status)

	_, err = store.UpdateStatus(ctx, "missing", bridge.StatusPending, bridge.StatusApproved)
	assert.True(t, errors.Is(err, bridge.ErrNotFound))
}

func TestStore_ResolveLessonWritesOnce(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	_, err := store.InsertIfAbsent(ctx, record("r1", 1, 1))
	require.NoError(t, err)

	got, err := store.ResolveLesson(ctx, "r1", 101)
	require.NoError(t, err)
	assert.Equal(t, bridge.LessonID(101), got)

	got, err = store.ResolveLesson(ctx, "r1", 202)
	require.NoError(t, err)
	assert.Equal(t, bridge.LessonID(101), got)

	_, err = store.ResolveLesson(ctx, "missing", 1)
	assert.True(t, errors.Is(err, bridge.ErrNotFound))
}

func TestStore_Counts(t *testing.T) {
	// GIVEN: Three sessions: pending, approved, cancelled
	store := setupStore(t)
	ctx := context.Background()
	for _, rec := range []bridge.BookingRecord{record("a", 1, 1), record("b", 1, 2), record("c", 1, 3)} {
		_, err := store.InsertIfAbsent(ctx, rec)
		require.NoError(t, err)
	}
	_, err := store.UpdateStatus(ctx, "b", bridge.StatusPending, bridge.StatusApproved)
	require.NoError(t, err)
	_, err = store.UpdateStatus(ctx, "c", bridge.StatusPending, bridge.StatusCancelled)
	require.NoError(t, err)

	// THEN: Advanced counts approved; active counts pending+approved in window
	advanced, err := store.CountAdvanced(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, advanced)

	from, to := bridge.WeekWindow(created)
	active, err := store.CountActiveInWindow(ctx, 1, 10, from, to)
	require.NoError(t, err)
	assert.Equal(t, 2, active)

	active, err = store.CountActiveInWindow(ctx, 1, 10, to, to.AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Zero(t, active)

	active, err = store.CountActiveInWindow(ctx, 1, 11, from, to)
	require.NoError(t, err)
	assert.Zero(t, active)
}

// =============================================================================
// NOTICES
// =============================================================================

func TestStore_Notices(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	n := bridge.MismatchNotice{
		ID: "n1", AppointmentID: 9, ServiceID: 10, CourseID: 100,
		ExpectedCount: 5, ActualCount: 3, CreatedAt: created,
	}

	inserted, err := store.InsertNoticeIfAbsent(ctx, n)
	require.NoError(t, err)
	assert.True(t, inserted)

	n.ID = "n2"
	inserted, err = store.InsertNoticeIfAbsent(ctx, n)
	require.NoError(t, err)
	assert.False(t, inserted)

	unresolved := false
	list, err := store.ListNotices(ctx, bridge.NoticeFilter{Resolved: &unresolved})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "n1", list[0].ID)
	assert.Equal(t, 5, list[0].ExpectedCount)
	assert.Equal(t, 3, list[0].ActualCount)

	require.NoError(t, store.ResolveNotice(ctx, "n1"))
	list, err = store.ListNotices(ctx, bridge.NoticeFilter{Resolved: &unresolved})
	require.NoError(t, err)
	assert.Empty(t, list)

	appt := bridge.AppointmentID(9)
	list, err = store.ListNotices(ctx, bridge.NoticeFilter{AppointmentID: &appt})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Resolved)

	err = store.ResolveNotice(ctx, "missing")
	assert.True(t, errors.Is(err, bridge.ErrNotFound))
}

func TestStore_CustomerNotes(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	note := bridge.CustomerNote{ID: "x1", BookingID: 7001, NoteType: bridge.NoteMismatchWarning, Note: "hello", CreatedAt: created}

	inserted, err := store.InsertCustomerNoteIfAbsent(ctx, note)
	require.NoError(t, err)
	assert.True(t, inserted)

	note.ID, note.Note = "x2", "again"
	inserted, err = store.InsertCustomerNoteIfAbsent(ctx, note)
	require.NoError(t, err)
	assert.False(t, inserted)

	notes, err := store.ListCustomerNotes(ctx, 7001)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "hello", notes[0].Note)
}

// =============================================================================
// SETTINGS
// =============================================================================

func TestStore_SettingsDefaults(t *testing.T) {
	store := setupStore(t)

	cfg, err := store.LoadConfig(context.Background())

	require.NoError(t, err)
	assert.Equal(t, bridge.DefaultPolicy(), cfg.Policy)
	assert.Empty(t, cfg.Mappings)
}

func TestStore_SettingsRoundTrip(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	policy := bridge.DefaultPolicy()
	policy.CompleteWhenAllDone = true
	policy.ShowWidgets = false
	cfg := bridge.NewConfig(policy,
		bridge.ServiceMapping{ServiceID: 20, CourseID: 200, LessonID: 2101},
		bridge.ServiceMapping{ServiceID: 10, CourseID: 100},
	)

	require.NoError(t, store.SaveConfig(ctx, cfg))
	loaded, err := store.LoadConfig(ctx)

	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	// Reset without settings keeps them.
	require.NoError(t, store.Reset(ctx, false))
	loaded, err = store.LoadConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	require.NoError(t, store.Reset(ctx, true))
	loaded, err = store.LoadConfig(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded.Mappings)
}

// =============================================================================
// COURSE MIRROR AND DIRECTORY
// =============================================================================

func TestStore_CourseMirrorFeedsLessonIndex(t *testing.T) {
	// GIVEN: A course saved with units out of ID order
	store := setupStore(t)
	ctx := context.Background()
	lesson := func(id bridge.LessonID) bridge.ContentItem {
		return bridge.ContentItem{ID: id, Type: bridge.ItemTypeLesson, Status: bridge.ItemStatusPublic}
	}
	require.NoError(t, store.SaveCourse(ctx, sqlite.CourseDefinition{
		ID: 100,
		Units: []sqlite.UnitDefinition{
			{ID: 9, Items: []bridge.ContentItem{lesson(3), lesson(1)}},
			{ID: 2, Items: []bridge.ContentItem{{ID: 8, Type: "quiz", Status: bridge.ItemStatusPublic}, lesson(2)}},
		},
	}))

	// WHEN: The lesson index reads it
	ids, err := bridge.NewLessonIndex(store).OrderedLessons(ctx, 100)

	// THEN: Saved order is kept
	require.NoError(t, err)
	assert.Equal(t, []bridge.LessonID{3, 1, 2}, ids)

	// AND: Saving again replaces the structure
	require.NoError(t, store.SaveCourse(ctx, sqlite.CourseDefinition{
		ID:          100,
		DirectItems: []bridge.ContentItem{{ID: 5, Type: bridge.ItemTypeLesson, Status: bridge.ItemStatusPublic, MenuOrder: 1}},
	}))
	ids, err = bridge.NewLessonIndex(store).OrderedLessons(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, []bridge.LessonID{5}, ids)
}

func TestStore_UnitOwnedByAnotherCourse(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveCourse(ctx, sqlite.CourseDefinition{ID: 1, Units: []sqlite.UnitDefinition{{ID: 10}}}))

	err := store.SaveCourse(ctx, sqlite.CourseDefinition{ID: 2, Units: []sqlite.UnitDefinition{{ID: 10}}})

	assert.True(t, errors.Is(err, bridge.ErrInvalidPayload))
}

func TestStore_CompletionsAndEnrollment(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveEnrollment(ctx, 100, 1))
	require.NoError(t, store.SaveEnrollment(ctx, 100, 1))
	enrolled, err := store.IsUserEnrolled(ctx, 100, 1)
	require.NoError(t, err)
	assert.True(t, enrolled)
	enrolled, err = store.IsUserEnrolled(ctx, 100, 2)
	require.NoError(t, err)
	assert.False(t, enrolled)

	require.NoError(t, store.MarkLessonCompleted(ctx, 102, 1))
	require.NoError(t, store.MarkLessonCompleted(ctx, 101, 1))
	require.NoError(t, store.MarkLessonCompleted(ctx, 102, 1))
	done, err := store.IsLessonCompleted(ctx, 101, 1)
	require.NoError(t, err)
	assert.True(t, done)

	lessons, err := store.CompletedLessons(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []bridge.LessonID{102, 101}, lessons)
}

func TestStore_Directory(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveUser(ctx, sqlite.User{ID: 1, Email: "Alice@Example.com"}))
	require.NoError(t, store.SaveCustomer(ctx, sqlite.Customer{ID: 501, Email: "alice@example.com"}))
	require.NoError(t, store.SaveCustomer(ctx, sqlite.Customer{ID: 502}))

	user, ok, err := store.UserByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, bridge.UserID(1), user)

	_, ok, err = store.CustomerEmail(ctx, 502)
	require.NoError(t, err)
	assert.False(t, ok)

	err = store.SaveUser(ctx, sqlite.User{ID: 2, Email: "alice@EXAMPLE.com"})
	assert.True(t, errors.Is(err, bridge.ErrInvalidPayload))

	require.NoError(t, store.LinkCustomer(ctx, 501, 1))
	require.NoError(t, store.LinkCustomer(ctx, 501, 7))
	linked, ok, err := store.LinkedUser(ctx, 501)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, bridge.UserID(1), linked)

	resolved, ok, err := bridge.NewCachingResolver(store, nil).ResolveUser(ctx, 501)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, bridge.UserID(1), resolved)
}

func TestStore_IsServiceRecurring(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveService(ctx, sqlite.Service{ID: 10, RecurringCycle: "weekly"}))
	require.NoError(t, store.SaveService(ctx, sqlite.Service{ID: 20, RecurringCycle: "disabled"}))
	require.NoError(t, store.SaveService(ctx, sqlite.Service{ID: 30}))

	for svc, want := range map[bridge.ServiceID]bool{10: true, 20: false, 30: false, 99: false} {
		got, err := store.IsServiceRecurring(ctx, svc)
		require.NoError(t, err)
		assert.Equal(t, want, got, "service %d", svc)
	}
}
