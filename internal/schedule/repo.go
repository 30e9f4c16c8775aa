package schedule

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Repository reads schedule data from Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// ListSlots returns the organization's active slots ordered by ordinal.
func (r *Repository) ListSlots(ctx context.Context, orgID string) ([]Slot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, org_id, ordinal, start_min, end_min, kind, active
		FROM schedule_slots
		WHERE org_id = $1 AND active = TRUE
		ORDER BY ordinal
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var slots []Slot
	for rows.Next() {
		var s Slot
		if err := rows.Scan(&s.ID, &s.OrgID, &s.Ordinal, &s.StartMin, &s.EndMin, &s.Kind, &s.Active); err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

// FindEntry returns the timetable entry for (class, slot, day), or nil
// when the slot is unscheduled for that class.
func (r *Repository) FindEntry(ctx context.Context, classID, slotID string, day time.Weekday) (*Entry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, class_id, slot_id, day_of_week, subject_id, teacher_id
		FROM timetable_entries
		WHERE class_id = $1 AND slot_id = $2 AND day_of_week = $3
	`, classID, slotID, int(day))
	var e Entry
	var dow int
	if err := row.Scan(&e.ID, &e.ClassID, &e.SlotID, &dow, &e.SubjectID, &e.TeacherID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	e.Day = time.Weekday(dow)
	return &e, nil
}
