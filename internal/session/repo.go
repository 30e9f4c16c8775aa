package session

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// AdHocSession is the day-scoped record created when a teacher scans
// into an unscheduled (class, slot, day) tuple.
type AdHocSession struct {
	ID        string    `json:"id"`
	ClassID   string    `json:"class_id"`
	SlotID    string    `json:"slot_id"`
	Date      string    `json:"date"`
	TeacherID string    `json:"teacher_id"`
	OpenedAt  time.Time `json:"opened_at"`
}

// Repository persists ad-hoc sessions in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert creates the session if absent. Concurrent callers for the
// same (class, slot, date) converge on a single row; the return value
// reports whether this call created it.
func (r *Repository) Insert(ctx context.Context, s AdHocSession) (bool, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO adhoc_sessions (id, class_id, slot_id, session_date, teacher_id, opened_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (class_id, slot_id, session_date) DO NOTHING
	`, s.ID, s.ClassID, s.SlotID, s.Date, s.TeacherID, s.OpenedAt.UTC())
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Find returns the session for (class, slot, date), or nil.
func (r *Repository) Find(ctx context.Context, classID, slotID, date string) (*AdHocSession, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, class_id, slot_id, session_date, teacher_id, opened_at
		FROM adhoc_sessions
		WHERE class_id = $1 AND slot_id = $2 AND session_date = $3
	`, classID, slotID, date)
	var s AdHocSession
	if err := row.Scan(&s.ID, &s.ClassID, &s.SlotID, &s.Date, &s.TeacherID, &s.OpenedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// DeleteBefore removes day-scoped sessions older than the given date.
func (r *Repository) DeleteBefore(ctx context.Context, date string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM adhoc_sessions WHERE session_date < $1
	`, date)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
