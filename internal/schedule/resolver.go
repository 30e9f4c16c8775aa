package schedule

import (
	"context"
	"errors"
	"time"

	"classtrack/internal/policy"
)

// Source tells the caller how the resolved slot relates to the static
// timetable.
type Source string

const (
	SourceScheduled      Source = "scheduled"
	SourceAdHocCandidate Source = "adhoc-candidate"
	SourceNone           Source = "none"
)

// Resolution is the outcome of resolving "what is happening right now"
// for a room/class.
type Resolution struct {
	Slot   Slot
	Entry  *Entry
	Source Source
	Break  bool
	First  bool
	Last   bool
}

var (
	// ErrOutsideOperatingHours is returned when now falls outside the
	// organization's operating window and no slot interval matches.
	ErrOutsideOperatingHours = errors.New("outside operating hours")
	// ErrNoActiveSlot is returned when now is within operating hours
	// but between slot intervals.
	ErrNoActiveSlot = errors.New("no active slot")
)

// SlotLister supplies the organization's ordered slot list.
type SlotLister interface {
	ListSlots(ctx context.Context, orgID string) ([]Slot, error)
}

// EntryFinder looks up static timetable entries.
type EntryFinder interface {
	FindEntry(ctx context.Context, classID, slotID string, day time.Weekday) (*Entry, error)
}

// Resolver determines the active slot for a scan.
type Resolver struct {
	slots   SlotLister
	entries EntryFinder
}

// NewResolver creates a resolver over the given providers.
func NewResolver(slots SlotLister, entries EntryFinder) *Resolver {
	return &Resolver{slots: slots, entries: entries}
}

// Resolve finds the slot whose interval contains now. The interval is
// extended by the early-access window before start, and by the
// post-class free-access window after end for the last teaching slot
// of the day. Break and lunch slots are flagged for break handling
// instead of attendance.
func (r *Resolver) Resolve(ctx context.Context, orgID, classID string, now time.Time, pol policy.Config) (Resolution, error) {
	slots, err := r.slots.ListSlots(ctx, orgID)
	if err != nil {
		return Resolution{}, err
	}

	minute := now.Hour()*60 + now.Minute()
	firstClass, lastClass := classBounds(slots)

	match, ok := pickSlot(slots, minute, lastClass, pol)
	if !ok {
		if now.Hour() < pol.OperatingStartHour || now.Hour() >= pol.OperatingEndHour {
			return Resolution{}, ErrOutsideOperatingHours
		}
		return Resolution{}, ErrNoActiveSlot
	}

	res := Resolution{
		Slot:  match,
		First: match.ID == firstClass,
		Last:  match.ID == lastClass,
	}
	if match.IsPause() {
		res.Break = true
		res.Source = SourceNone
		return res, nil
	}

	entry, err := r.entries.FindEntry(ctx, classID, match.ID, now.Weekday())
	if err != nil {
		return Resolution{}, err
	}
	if entry != nil {
		res.Entry = entry
		res.Source = SourceScheduled
	} else {
		res.Source = SourceAdHocCandidate
	}
	return res, nil
}

// pickSlot prefers a slot whose core [start,end) interval contains the
// minute; the extended windows only apply when no core interval does.
func pickSlot(slots []Slot, minute int, lastClassID string, pol policy.Config) (Slot, bool) {
	for _, s := range slots {
		if minute >= s.StartMin && minute < s.EndMin {
			return s, true
		}
	}
	for _, s := range slots {
		start := s.StartMin - pol.EarlyAccessWindowMins
		end := s.EndMin
		if s.ID == lastClassID {
			end += pol.PostClassFreeAccessHours * 60
		}
		if minute >= start && minute < end {
			return s, true
		}
	}
	return Slot{}, false
}

// classBounds returns the ids of the first and last teaching slots.
func classBounds(slots []Slot) (first, last string) {
	for _, s := range slots {
		if s.Kind != KindClass {
			continue
		}
		if first == "" {
			first = s.ID
		}
		last = s.ID
	}
	return first, last
}
