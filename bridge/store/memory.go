// Package store provides in-memory implementations of the bridge stores and
// of the external systems, for tests and local development.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/lesson-bridge/bridge"
)

// =============================================================================
// MEMORY STORE - Records, notices and settings
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	records  map[string]bridge.BookingRecord
	sessions map[sessionKey]string
	notices  map[string]bridge.MismatchNotice
	byAppt   map[noticeKey]string
	notes    map[noteKey]bridge.CustomerNote
	config   *bridge.Config
}

type sessionKey struct {
	AppointmentID bridge.AppointmentID
	SessionNumber int
}

type noticeKey struct {
	AppointmentID bridge.AppointmentID
	Type          string
}

type noteKey struct {
	BookingID bridge.BookingID
	Type      string
}

var (
	_ bridge.RecordStore   = (*Memory)(nil)
	_ bridge.NoticeStore   = (*Memory)(nil)
	_ bridge.SettingsStore = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		records:  make(map[string]bridge.BookingRecord),
		sessions: make(map[sessionKey]string),
		notices:  make(map[string]bridge.MismatchNotice),
		byAppt:   make(map[noticeKey]string),
		notes:    make(map[noteKey]bridge.CustomerNote),
	}
}

// InsertIfAbsent stores rec unless its (appointment, session number) exists.
func (m *Memory) InsertIfAbsent(_ context.Context, rec bridge.BookingRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := sessionKey{AppointmentID: rec.AppointmentID, SessionNumber: rec.SessionNumber}
	if _, ok := m.sessions[k]; ok {
		return false, nil
	}
	m.sessions[k] = rec.ID
	m.records[rec.ID] = rec
	return true, nil
}

func (m *Memory) Get(_ context.Context, id string) (bridge.BookingRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return bridge.BookingRecord{}, bridge.ErrNotFound
	}
	return rec, nil
}

func (m *Memory) ListByAppointment(_ context.Context, id bridge.AppointmentID) ([]bridge.BookingRecord, error) {
	return m.filter(func(r bridge.BookingRecord) bool { return r.AppointmentID == id }), nil
}

func (m *Memory) ListBySession(_ context.Context, id bridge.SessionID) ([]bridge.BookingRecord, error) {
	return m.filter(func(r bridge.BookingRecord) bool { return r.SessionID == id }), nil
}

func (m *Memory) ListByUser(_ context.Context, id bridge.UserID) ([]bridge.BookingRecord, error) {
	return m.filter(func(r bridge.BookingRecord) bool { return r.UserID == id }), nil
}

func (m *Memory) ListByCourse(_ context.Context, id bridge.CourseID) ([]bridge.BookingRecord, error) {
	return m.filter(func(r bridge.BookingRecord) bool { return r.CourseID == id }), nil
}

func (m *Memory) CountActiveInWindow(_ context.Context, user bridge.UserID, service bridge.ServiceID, from, to time.Time) (int, error) {
	recs := m.filter(func(r bridge.BookingRecord) bool {
		return r.UserID == user && r.ServiceID == service && r.Status.IsActive() &&
			!r.CreatedAt.Before(from) && r.CreatedAt.Before(to)
	})
	return len(recs), nil
}

func (m *Memory) CountAdvanced(_ context.Context, id bridge.AppointmentID) (int, error) {
	recs := m.filter(func(r bridge.BookingRecord) bool {
		return r.AppointmentID == id && r.Status.IsAdvanced()
	})
	return len(recs), nil
}

// UpdateStatus is a compare-and-swap on the record's status.
func (m *Memory) UpdateStatus(_ context.Context, id string, from, to bridge.Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return false, bridge.ErrNotFound
	}
	if rec.Status != from {
		return false, nil
	}
	rec.Status = to
	rec.UpdatedAt = time.Now().UTC()
	m.records[id] = rec
	return true, nil
}

// ResolveLesson writes lesson only if the record has none yet.
func (m *Memory) ResolveLesson(_ context.Context, id string, lesson bridge.LessonID) (bridge.LessonID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return 0, bridge.ErrNotFound
	}
	if rec.LessonID == 0 {
		rec.LessonID = lesson
		rec.UpdatedAt = time.Now().UTC()
		m.records[id] = rec
	}
	return rec.LessonID, nil
}

// filter returns matching records ordered by appointment, then session number.
func (m *Memory) filter(keep func(bridge.BookingRecord) bool) []bridge.BookingRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []bridge.BookingRecord
	for _, r := range m.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AppointmentID != out[j].AppointmentID {
			return out[i].AppointmentID < out[j].AppointmentID
		}
		return out[i].SessionNumber < out[j].SessionNumber
	})
	return out
}

// =============================================================================
// NOTICES
// =============================================================================

func (m *Memory) InsertNoticeIfAbsent(_ context.Context, n bridge.MismatchNotice) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := noticeKey{AppointmentID: n.AppointmentID, Type: bridge.NoticeSessionMismatch}
	if _, ok := m.byAppt[k]; ok {
		return false, nil
	}
	m.byAppt[k] = n.ID
	m.notices[n.ID] = n
	return true, nil
}

func (m *Memory) ListNotices(_ context.Context, filter bridge.NoticeFilter) ([]bridge.MismatchNotice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []bridge.MismatchNotice
	for _, n := range m.notices {
		if filter.Matches(n) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].AppointmentID < out[j].AppointmentID
	})
	return out, nil
}

func (m *Memory) ResolveNotice(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.notices[id]
	if !ok {
		return bridge.ErrNotFound
	}
	n.Resolved = true
	m.notices[id] = n
	return nil
}

func (m *Memory) InsertCustomerNoteIfAbsent(_ context.Context, n bridge.CustomerNote) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := noteKey{BookingID: n.BookingID, Type: n.NoteType}
	if _, ok := m.notes[k]; ok {
		return false, nil
	}
	m.notes[k] = n
	return true, nil
}

func (m *Memory) ListCustomerNotes(_ context.Context, booking bridge.BookingID) ([]bridge.CustomerNote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []bridge.CustomerNote
	for k, n := range m.notes {
		if k.BookingID == booking {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NoteType < out[j].NoteType })
	return out, nil
}

// =============================================================================
// SETTINGS
// =============================================================================

func (m *Memory) LoadConfig(_ context.Context) (bridge.Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.config == nil {
		return bridge.NewConfig(bridge.DefaultPolicy()), nil
	}
	return bridge.NewConfig(m.config.Policy, m.config.SortedMappings()...), nil
}

func (m *Memory) SaveConfig(_ context.Context, cfg bridge.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := bridge.NewConfig(cfg.Policy, cfg.SortedMappings()...)
	m.config = &c
	return nil
}
