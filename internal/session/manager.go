package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"classtrack/internal/directory"
	"classtrack/internal/schedule"
)

// ErrNoActiveSession is returned when a student scans a slot that has
// neither a timetable entry nor an opened ad-hoc session. Students
// cannot open sessions.
var ErrNoActiveSession = errors.New("no active session")

// Session is the per-(class, slot, day) state a scan is verified
// against. Scheduled sessions are implicit; ad-hoc ones are backed by
// an AdHocSession row.
type Session struct {
	ClassID   string
	SlotID    string
	Date      string
	AdHoc     bool
	Created   bool
	TeacherID string
	OpenedAt  time.Time
}

// Store is the persistence boundary the manager converges through.
type Store interface {
	Insert(ctx context.Context, s AdHocSession) (bool, error)
	Find(ctx context.Context, classID, slotID, date string) (*AdHocSession, error)
}

// Manager tracks session state for the current day. The in-memory
// index is an optimization; correctness rests on the store's keyed
// insert-if-absent.
type Manager struct {
	store Store

	mu     sync.RWMutex
	opened map[string]time.Time // earliest teacher scan per occurrence
}

// NewManager creates a manager over the given store.
func NewManager(store Store) *Manager {
	return &Manager{store: store, opened: make(map[string]time.Time)}
}

// GetOrCreate resolves the session for a scan. Scheduled slots are
// always in session; unscheduled slots require a teacher scan to open
// an ad-hoc session, idempotently.
func (m *Manager) GetOrCreate(ctx context.Context, res schedule.Resolution, classID, date string, role directory.Role, personID string, now time.Time) (Session, error) {
	key := occurrenceKey(classID, res.Slot.ID, date)

	if res.Source == schedule.SourceScheduled {
		if role == directory.RoleTeacher {
			m.markOpened(key, now)
		}
		return Session{
			ClassID:  classID,
			SlotID:   res.Slot.ID,
			Date:     date,
			OpenedAt: m.openedAt(key),
		}, nil
	}

	existing, err := m.store.Find(ctx, classID, res.Slot.ID, date)
	if err != nil {
		return Session{}, err
	}
	if existing != nil {
		m.markOpened(key, existing.OpenedAt)
		return fromRecord(existing, false), nil
	}
	if role != directory.RoleTeacher {
		return Session{}, ErrNoActiveSession
	}

	created, err := m.store.Insert(ctx, AdHocSession{
		ClassID:   classID,
		SlotID:    res.Slot.ID,
		Date:      date,
		TeacherID: personID,
		OpenedAt:  now,
	})
	if err != nil {
		return Session{}, err
	}
	// A concurrent teacher may have won the insert; read back the
	// canonical row either way.
	stored, err := m.store.Find(ctx, classID, res.Slot.ID, date)
	if err != nil {
		return Session{}, err
	}
	if stored == nil {
		return Session{}, errors.New("session insert not visible")
	}
	m.markOpened(key, stored.OpenedAt)
	return fromRecord(stored, created), nil
}

// OpenedAt returns the recorded opening teacher scan for an
// occurrence, if any.
func (m *Manager) OpenedAt(classID, slotID, date string) time.Time {
	return m.openedAt(occurrenceKey(classID, slotID, date))
}

// Prune drops in-memory state from days other than the given date.
func (m *Manager) Prune(today string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.opened {
		if !strings.HasSuffix(key, "|"+today) {
			delete(m.opened, key)
		}
	}
}

func (m *Manager) markOpened(key string, at time.Time) {
	if at.IsZero() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.opened[key]; !ok || at.Before(cur) {
		m.opened[key] = at
	}
}

func (m *Manager) openedAt(key string) time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.opened[key]
}

func fromRecord(s *AdHocSession, created bool) Session {
	return Session{
		ClassID:   s.ClassID,
		SlotID:    s.SlotID,
		Date:      s.Date,
		AdHoc:     true,
		Created:   created,
		TeacherID: s.TeacherID,
		OpenedAt:  s.OpenedAt,
	}
}

func occurrenceKey(classID, slotID, date string) string {
	return classID + "|" + slotID + "|" + date
}
