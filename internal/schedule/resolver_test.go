package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"classtrack/internal/policy"
)

type fakeSlots struct{ slots []Slot }

func (f fakeSlots) ListSlots(_ context.Context, _ string) ([]Slot, error) {
	return f.slots, nil
}

type fakeEntries struct {
	entries map[string]Entry // keyed by slot id
}

func (f fakeEntries) FindEntry(_ context.Context, classID, slotID string, _ time.Weekday) (*Entry, error) {
	e, ok := f.entries[slotID]
	if !ok || e.ClassID != classID {
		return nil, nil
	}
	return &e, nil
}

var resolverPolicy = policy.Config{
	EarlyAccessWindowMins:    15,
	PostClassFreeAccessHours: 2,
	OperatingStartHour:       6,
	OperatingEndHour:         20,
}

// Tuesday timetable: class, break, class.
var testSlots = []Slot{
	{ID: "slot-1", OrgID: "org-1", Ordinal: 1, StartMin: 480, EndMin: 540, Kind: KindClass, Active: true},  // 08:00-09:00
	{ID: "break-1", OrgID: "org-1", Ordinal: 2, StartMin: 540, EndMin: 555, Kind: KindBreak, Active: true}, // 09:00-09:15
	{ID: "slot-2", OrgID: "org-1", Ordinal: 3, StartMin: 555, EndMin: 615, Kind: KindClass, Active: true},  // 09:15-10:15
}

func at(hour, min int) time.Time {
	return time.Date(2024, 5, 14, hour, min, 0, 0, time.UTC)
}

func newTestResolver(entries map[string]Entry) *Resolver {
	return NewResolver(fakeSlots{slots: testSlots}, fakeEntries{entries: entries})
}

func TestResolveScheduledSlot(t *testing.T) {
	r := newTestResolver(map[string]Entry{
		"slot-1": {ID: "e1", ClassID: "class-a", SlotID: "slot-1", Day: time.Tuesday, TeacherID: "t1"},
	})

	res, err := r.Resolve(context.Background(), "org-1", "class-a", at(8, 30), resolverPolicy)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.Slot.ID != "slot-1" || res.Source != SourceScheduled || res.Entry == nil {
		t.Fatalf("expected scheduled slot-1, got %+v", res)
	}
	if !res.First || res.Last {
		t.Fatalf("slot-1 should be first but not last, got first=%v last=%v", res.First, res.Last)
	}
}

func TestResolveEarlyAccessWindow(t *testing.T) {
	r := newTestResolver(nil)

	res, err := r.Resolve(context.Background(), "org-1", "class-a", at(7, 50), resolverPolicy)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.Slot.ID != "slot-1" {
		t.Fatalf("expected slot-1 via early-access window, got %+v", res)
	}

	// One minute before the early window opens.
	if _, err := r.Resolve(context.Background(), "org-1", "class-a", at(7, 44), resolverPolicy); !errors.Is(err, ErrNoActiveSlot) {
		t.Fatalf("expected ErrNoActiveSlot before early window, got %v", err)
	}
}

func TestResolveBreakSlot(t *testing.T) {
	r := newTestResolver(map[string]Entry{
		"break-1": {ID: "e-bad", ClassID: "class-a", SlotID: "break-1"},
	})

	res, err := r.Resolve(context.Background(), "org-1", "class-a", at(9, 5), resolverPolicy)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if !res.Break || res.Source != SourceNone || res.Entry != nil {
		t.Fatalf("break slot must skip the timetable lookup, got %+v", res)
	}
}

func TestResolveLastSlotFreeAccess(t *testing.T) {
	r := newTestResolver(nil)

	// Last teaching slot ends 10:15; free access runs two more hours.
	res, err := r.Resolve(context.Background(), "org-1", "class-a", at(11, 30), resolverPolicy)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.Slot.ID != "slot-2" || !res.Last {
		t.Fatalf("expected last slot via free-access window, got %+v", res)
	}
	if res.Source != SourceAdHocCandidate {
		t.Fatalf("no timetable entry: expected ad-hoc candidate, got %s", res.Source)
	}

	if _, err := r.Resolve(context.Background(), "org-1", "class-a", at(12, 30), resolverPolicy); !errors.Is(err, ErrNoActiveSlot) {
		t.Fatalf("expected ErrNoActiveSlot past free-access window, got %v", err)
	}
}

func TestResolveCoreIntervalWinsOverExtension(t *testing.T) {
	r := newTestResolver(nil)

	// 09:15 is slot-2's core start and inside nothing else; the break's
	// core interval already ended, so slot-2 must win even though the
	// previous intervals carry extensions.
	res, err := r.Resolve(context.Background(), "org-1", "class-a", at(9, 15), resolverPolicy)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.Slot.ID != "slot-2" {
		t.Fatalf("expected core interval match for slot-2, got %+v", res)
	}
}

func TestResolveOutsideOperatingHours(t *testing.T) {
	r := newTestResolver(nil)

	if _, err := r.Resolve(context.Background(), "org-1", "class-a", at(5, 30), resolverPolicy); !errors.Is(err, ErrOutsideOperatingHours) {
		t.Fatalf("expected ErrOutsideOperatingHours, got %v", err)
	}
	if _, err := r.Resolve(context.Background(), "org-1", "class-a", at(21, 0), resolverPolicy); !errors.Is(err, ErrOutsideOperatingHours) {
		t.Fatalf("expected ErrOutsideOperatingHours in the evening, got %v", err)
	}
}
