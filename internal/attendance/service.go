package attendance

import (
	"context"
	"errors"
)

// ErrAlreadyRecorded marks the idempotent no-op when a record already
// exists for the (person, slot-occurrence) key. It is informational,
// not a failure.
var ErrAlreadyRecorded = errors.New("already recorded")

// Store is the persistence boundary used by the recorder.
type Store interface {
	Insert(ctx context.Context, rec Record) (bool, error)
	Find(ctx context.Context, personID, slotID, date string) (*Record, error)
	AddPoints(ctx context.Context, personID string, points int) (int, error)
}

// Recorder performs the idempotent attendance write and the points
// award.
type Recorder struct {
	store Store
}

// NewRecorder creates a recorder backed by a store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Record writes the attendance record at most once per
// (person, slot, date). When the key already exists it returns
// ErrAlreadyRecorded and the existing record untouched. On a fresh
// write it awards the record's points and returns the person's updated
// total.
func (r *Recorder) Record(ctx context.Context, rec Record) (Record, int, error) {
	if rec.PersonID == "" || rec.SlotID == "" || rec.Date == "" {
		return Record{}, 0, errors.New("person, slot and date required")
	}
	created, err := r.store.Insert(ctx, rec)
	if err != nil {
		return Record{}, 0, err
	}
	if !created {
		existing, err := r.store.Find(ctx, rec.PersonID, rec.SlotID, rec.Date)
		if err != nil {
			return Record{}, 0, err
		}
		if existing == nil {
			return Record{}, 0, errors.New("record not visible after conflict")
		}
		return *existing, 0, ErrAlreadyRecorded
	}
	total := 0
	if rec.Points > 0 {
		total, err = r.store.AddPoints(ctx, rec.PersonID, rec.Points)
		if err != nil {
			return rec, 0, err
		}
	}
	return rec, total, nil
}
