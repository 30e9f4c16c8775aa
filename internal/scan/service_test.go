package scan

import (
	"context"
	"sync"
	"testing"
	"time"

	"classtrack/internal/attendance"
	"classtrack/internal/device"
	"classtrack/internal/directory"
	"classtrack/internal/policy"
	"classtrack/internal/schedule"
	"classtrack/internal/session"
	"classtrack/internal/verify"
)

type fakeDevices struct{ devices map[string]*device.Device }

func (f fakeDevices) Find(_ context.Context, id string) (*device.Device, error) {
	return f.devices[id], nil
}

func (f fakeDevices) Touch(_ context.Context, _ string, _ time.Time) error { return nil }

type fakeDirectory struct{ people map[string]*directory.Person }

func (f fakeDirectory) FindByTag(_ context.Context, tag string) (*directory.Person, error) {
	return f.people[tag], nil
}

type fakePolicies struct{ cfg policy.Config }

func (f fakePolicies) Get(_ context.Context, _ string) (policy.Config, error) {
	return f.cfg, nil
}

type fakeCheckpoints struct {
	mu    sync.Mutex
	marks []string
}

func (f *fakeCheckpoints) Mark(_ context.Context, personID, slotID, date string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marks = append(f.marks, personID+"|"+slotID+"|"+date)
	return nil
}

type fakeSlotLister struct{ slots []schedule.Slot }

func (f fakeSlotLister) ListSlots(_ context.Context, _ string) ([]schedule.Slot, error) {
	return f.slots, nil
}

type fakeEntryFinder struct{ entries map[string]schedule.Entry }

func (f fakeEntryFinder) FindEntry(_ context.Context, classID, slotID string, _ time.Weekday) (*schedule.Entry, error) {
	e, ok := f.entries[slotID]
	if !ok || e.ClassID != classID {
		return nil, nil
	}
	return &e, nil
}

type fakeSessionStore struct {
	mu   sync.Mutex
	rows map[string]session.AdHocSession
}

func (f *fakeSessionStore) Insert(_ context.Context, s session.AdHocSession) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := s.ClassID + "|" + s.SlotID + "|" + s.Date
	if _, ok := f.rows[k]; ok {
		return false, nil
	}
	f.rows[k] = s
	return true, nil
}

func (f *fakeSessionStore) Find(_ context.Context, classID, slotID, date string) (*session.AdHocSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.rows[classID+"|"+slotID+"|"+date]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

type fakeAttendanceStore struct {
	mu     sync.Mutex
	rows   map[string]attendance.Record
	points map[string]int
}

func (f *fakeAttendanceStore) Insert(_ context.Context, rec attendance.Record) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := rec.PersonID + "|" + rec.SlotID + "|" + rec.Date
	if _, ok := f.rows[k]; ok {
		return false, nil
	}
	f.rows[k] = rec
	return true, nil
}

func (f *fakeAttendanceStore) Find(_ context.Context, personID, slotID, date string) (*attendance.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.rows[personID+"|"+slotID+"|"+date]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (f *fakeAttendanceStore) AddPoints(_ context.Context, personID string, points int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points[personID] += points
	return f.points[personID], nil
}

type fixture struct {
	svc        *Service
	attendance *fakeAttendanceStore
	checkpoint *fakeCheckpoints
}

func newFixture(pol policy.Config, entries map[string]schedule.Entry) *fixture {
	slots := []schedule.Slot{
		{ID: "slot-1", OrgID: "org-1", Ordinal: 1, StartMin: 480, EndMin: 540, Kind: schedule.KindClass, Active: true},
		{ID: "break-1", OrgID: "org-1", Ordinal: 2, StartMin: 540, EndMin: 555, Kind: schedule.KindBreak, Active: true},
		{ID: "slot-2", OrgID: "org-1", Ordinal: 3, StartMin: 555, EndMin: 615, Kind: schedule.KindClass, Active: true},
	}
	devices := fakeDevices{devices: map[string]*device.Device{
		"dev-1": {ID: "dev-1", OrgID: "org-1", Room: "101", ClassID: "class-a", Status: device.StatusOnline},
	}}
	people := fakeDirectory{people: map[string]*directory.Person{
		"TAG-T": {ID: "t1", Name: "Teacher One", Role: directory.RoleTeacher, Tag: "TAG-T", OrgID: "org-1", ClassID: "class-a"},
		"TAG-S": {ID: "s1", Name: "Student One", Role: directory.RoleStudent, Tag: "TAG-S", OrgID: "org-1", ClassID: "class-a"},
	}}

	resolver := schedule.NewResolver(fakeSlotLister{slots: slots}, fakeEntryFinder{entries: entries})
	sessions := session.NewManager(&fakeSessionStore{rows: make(map[string]session.AdHocSession)})
	attStore := &fakeAttendanceStore{rows: make(map[string]attendance.Record), points: make(map[string]int)}
	recorder := attendance.NewRecorder(attStore)
	checkpoints := &fakeCheckpoints{}

	return &fixture{
		svc:        NewService(devices, people, fakePolicies{cfg: pol}, resolver, sessions, recorder, checkpoints),
		attendance: attStore,
		checkpoint: checkpoints,
	}
}

func scanPolicy() policy.Config {
	return policy.Config{
		OrgID:                      "org-1",
		EarlyAccessWindowMins:      15,
		PostClassFreeAccessHours:   2,
		OperatingStartHour:         6,
		OperatingEndHour:           20,
		TeacherGraceMins:           30,
		StudentFirstSlotWindowMins: 20,
		StudentRegularWindowMins:   10,
		BreakWarningMins:           10,
		ReVerificationGraceMins:    5,
		PointsPresent:              10,
		PointsLate:                 5,
	}
}

func scanAt(hour, min int) time.Time {
	return time.Date(2024, 5, 14, hour, min, 0, 0, time.UTC)
}

func TestAdHocSessionFlow(t *testing.T) {
	f := newFixture(scanPolicy(), nil)
	ctx := context.Background()

	// Student before any teacher scan: the unscheduled slot has no
	// session yet.
	res := f.svc.Process(ctx, "dev-1", "TAG-S", scanAt(8, 2))
	if res.Code != verify.CodeNoActiveSession {
		t.Fatalf("expected %d before session open, got %+v", verify.CodeNoActiveSession, res)
	}

	// Teacher opens the ad-hoc session.
	res = f.svc.Process(ctx, "dev-1", "TAG-T", scanAt(8, 5))
	if res.Code != verify.CodeAdHocCreated {
		t.Fatalf("expected %d on first teacher scan, got %+v", verify.CodeAdHocCreated, res)
	}
	if res.Points != 10 {
		t.Fatalf("teacher scan should award presence points, got %d", res.Points)
	}

	// Repeat teacher scan reuses the session silently.
	res = f.svc.Process(ctx, "dev-1", "TAG-T", scanAt(8, 6))
	if res.Code != verify.CodeAdHocReused {
		t.Fatalf("expected %d on repeat teacher scan, got %+v", verify.CodeAdHocReused, res)
	}
	if res.Points != 0 {
		t.Fatalf("repeat teacher scan must not award points again, got %d", res.Points)
	}

	// Student within the first-slot window: late, reduced points.
	res = f.svc.Process(ctx, "dev-1", "TAG-S", scanAt(8, 7))
	if res.Code != verify.CodeOK || res.Reason != verify.ReasonLate {
		t.Fatalf("expected late admission, got %+v", res)
	}
	if res.Points != 5 {
		t.Fatalf("late arrival earns the late points, got %d", res.Points)
	}
	if res.User == nil || res.User.ID != "s1" {
		t.Fatalf("result must identify the student, got %+v", res.User)
	}

	// Duplicate student scan.
	res = f.svc.Process(ctx, "dev-1", "TAG-S", scanAt(8, 8))
	if res.Code != verify.CodeAlreadyRecorded {
		t.Fatalf("expected %d on duplicate scan, got %+v", verify.CodeAlreadyRecorded, res)
	}
	if len(f.attendance.rows) != 2 {
		t.Fatalf("expected one teacher and one student record, got %d", len(f.attendance.rows))
	}
}

func TestScheduledSlotStudentPresent(t *testing.T) {
	f := newFixture(scanPolicy(), map[string]schedule.Entry{
		"slot-1": {ID: "e1", ClassID: "class-a", SlotID: "slot-1", Day: time.Tuesday, TeacherID: "t1"},
	})

	// On-time scan against a timetabled slot needs no teacher first.
	res := f.svc.Process(context.Background(), "dev-1", "TAG-S", scanAt(8, 0))
	if res.Code != verify.CodeOK || res.Reason != "" {
		t.Fatalf("expected clean present, got %+v", res)
	}
	if res.Points != 10 {
		t.Fatalf("expected presence points, got %d", res.Points)
	}
}

func TestUnknownDeviceAndTag(t *testing.T) {
	f := newFixture(scanPolicy(), nil)
	ctx := context.Background()

	res := f.svc.Process(ctx, "dev-unknown", "TAG-S", scanAt(8, 5))
	if res.Code != verify.CodeDeviceNotFound {
		t.Fatalf("expected %d for unknown device, got %+v", verify.CodeDeviceNotFound, res)
	}

	res = f.svc.Process(ctx, "dev-1", "TAG-NOBODY", scanAt(8, 5))
	if res.Code != verify.CodeUnknownTag {
		t.Fatalf("expected %d for unknown tag, got %+v", verify.CodeUnknownTag, res)
	}
}

func TestBreakScans(t *testing.T) {
	f := newFixture(scanPolicy(), nil)
	ctx := context.Background()

	// Break runs 09:00-09:15, warning window opens 09:05.
	res := f.svc.Process(ctx, "dev-1", "TAG-S", scanAt(9, 10))
	if res.Code != verify.CodeOK || res.Reason != verify.ReasonReverified {
		t.Fatalf("expected re-verification, got %+v", res)
	}
	if len(f.checkpoint.marks) != 1 {
		t.Fatalf("expected one checkpoint mark, got %d", len(f.checkpoint.marks))
	}

	res = f.svc.Process(ctx, "dev-1", "TAG-S", scanAt(9, 2))
	if res.Code != verify.CodeTooEarly || res.Reason != verify.ReasonOutsideReverify {
		t.Fatalf("expected outside-window rejection, got %+v", res)
	}

	res = f.svc.Process(ctx, "dev-1", "TAG-T", scanAt(9, 10))
	if res.Code != verify.CodeOK || res.Reason != verify.ReasonBreak {
		t.Fatalf("teacher break scan should be informational, got %+v", res)
	}

	if len(f.attendance.rows) != 0 {
		t.Fatalf("break scans must not write records, got %d", len(f.attendance.rows))
	}
}

func TestOutsideOperatingHours(t *testing.T) {
	f := newFixture(scanPolicy(), nil)

	res := f.svc.Process(context.Background(), "dev-1", "TAG-S", scanAt(5, 30))
	if res.Code != verify.CodeTooEarly || res.Reason != "outside_operating_hours" {
		t.Fatalf("expected operating-hours rejection, got %+v", res)
	}
}

func TestLatenessMeasuredFromTeacherScan(t *testing.T) {
	pol := scanPolicy()
	pol.LatenessFromTeacherScan = true
	f := newFixture(pol, nil)
	ctx := context.Background()

	// Teacher opens late; the student window re-anchors on that scan.
	res := f.svc.Process(ctx, "dev-1", "TAG-T", scanAt(8, 25))
	if res.Code != verify.CodeAdHocCreated {
		t.Fatalf("teacher open failed: %+v", res)
	}

	// 40 minutes past slot start but only 15 past the teacher scan.
	res = f.svc.Process(ctx, "dev-1", "TAG-S", scanAt(8, 40))
	if res.Code != verify.CodeOK || res.Reason != verify.ReasonLate {
		t.Fatalf("expected late admission measured from teacher scan, got %+v", res)
	}
}
