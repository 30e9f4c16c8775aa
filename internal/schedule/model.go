package schedule

import "time"

// SlotKind distinguishes teaching slots from pauses.
type SlotKind string

const (
	KindClass SlotKind = "CLASS"
	KindBreak SlotKind = "BREAK"
	KindLunch SlotKind = "LUNCH"
	KindFree  SlotKind = "FREE"
)

// Slot is an organization-wide time-of-day definition. Start and end
// are minutes since midnight so window math stays integral.
type Slot struct {
	ID       string   `json:"id"`
	OrgID    string   `json:"org_id"`
	Ordinal  int      `json:"ordinal"`
	StartMin int      `json:"start_min"`
	EndMin   int      `json:"end_min"`
	Kind     SlotKind `json:"kind"`
	Active   bool     `json:"active"`
}

// IsPause reports whether the slot carries break semantics instead of
// attendance semantics.
func (s Slot) IsPause() bool {
	return s.Kind == KindBreak || s.Kind == KindLunch
}

// StartAt anchors the slot's start time on the given calendar day.
func (s Slot) StartAt(day time.Time) time.Time {
	return dayStart(day).Add(time.Duration(s.StartMin) * time.Minute)
}

// EndAt anchors the slot's end time on the given calendar day.
func (s Slot) EndAt(day time.Time) time.Time {
	return dayStart(day).Add(time.Duration(s.EndMin) * time.Minute)
}

func dayStart(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
}

// Entry binds a class, day-of-week and slot to a subject and teacher.
// Entries are static input; the engine never mutates them.
type Entry struct {
	ID        string       `json:"id"`
	ClassID   string       `json:"class_id"`
	SlotID    string       `json:"slot_id"`
	Day       time.Weekday `json:"day"`
	SubjectID string       `json:"subject_id"`
	TeacherID string       `json:"teacher_id"`
}
