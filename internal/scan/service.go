package scan

import (
	"context"
	"errors"
	"log"
	"time"

	"classtrack/internal/attendance"
	"classtrack/internal/device"
	"classtrack/internal/directory"
	"classtrack/internal/metrics"
	"classtrack/internal/policy"
	"classtrack/internal/schedule"
	"classtrack/internal/session"
	"classtrack/internal/verify"
)

// UserInfo identifies the scanned person on the wire.
type UserInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Result is the admission decision returned for every scan. Exactly
// one Result is produced per scan; nothing is silently dropped.
type Result struct {
	Code     int       `json:"status"`
	Role     string    `json:"role,omitempty"`
	User     *UserInfo `json:"user,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	Points   int       `json:"points,omitempty"`
	DeviceID string    `json:"deviceId,omitempty"`
}

// Devices looks up and touches the device registry.
type Devices interface {
	Find(ctx context.Context, id string) (*device.Device, error)
	Touch(ctx context.Context, id string, at time.Time) error
}

// Directory resolves rfid tags to persons.
type Directory interface {
	FindByTag(ctx context.Context, tag string) (*directory.Person, error)
}

// Policies resolves the organization's window parameters.
type Policies interface {
	Get(ctx context.Context, orgID string) (policy.Config, error)
}

// Resolver determines the active slot for a scan.
type Resolver interface {
	Resolve(ctx context.Context, orgID, classID string, now time.Time, pol policy.Config) (schedule.Resolution, error)
}

// Sessions resolves or opens the session a scan is verified against.
type Sessions interface {
	GetOrCreate(ctx context.Context, res schedule.Resolution, classID, date string, role directory.Role, personID string, now time.Time) (session.Session, error)
}

// Recorder performs the idempotent attendance write.
type Recorder interface {
	Record(ctx context.Context, rec attendance.Record) (attendance.Record, int, error)
}

// Checkpoints stores break re-verification pings.
type Checkpoints interface {
	Mark(ctx context.Context, personID, slotID, date string) error
}

// Service runs the verification pipeline for one scan event:
// classify -> resolve -> session -> verify -> record.
type Service struct {
	devices     Devices
	people      Directory
	policies    Policies
	resolver    Resolver
	sessions    Sessions
	recorder    Recorder
	checkpoints Checkpoints
}

// NewService wires the pipeline.
func NewService(devices Devices, people Directory, policies Policies, resolver Resolver, sessions Sessions, recorder Recorder, checkpoints Checkpoints) *Service {
	return &Service{
		devices:     devices,
		people:      people,
		policies:    policies,
		resolver:    resolver,
		sessions:    sessions,
		recorder:    recorder,
		checkpoints: checkpoints,
	}
}

// Process handles a single rfid_scan event and returns the admission
// decision. Transient failures surface as a 500 result the device may
// retry; retries are idempotent under the (person, slot, date) key.
func (s *Service) Process(ctx context.Context, deviceID, tag string, now time.Time) Result {
	res := s.process(ctx, deviceID, tag, now)
	res.DeviceID = deviceID
	metrics.ScansTotal.WithLabelValues(outcomeLabel(res)).Inc()
	return res
}

func (s *Service) process(ctx context.Context, deviceID, tag string, now time.Time) Result {
	dev, err := s.devices.Find(ctx, deviceID)
	if err != nil {
		return s.internal("device lookup", err)
	}
	if dev == nil {
		return Result{Code: verify.CodeDeviceNotFound, Reason: "device_not_found"}
	}

	person, err := s.people.FindByTag(ctx, tag)
	if err != nil {
		return s.internal("tag lookup", err)
	}
	if person == nil {
		return Result{Code: verify.CodeUnknownTag, Reason: "unknown_tag"}
	}
	user := &UserInfo{ID: person.ID, Name: person.Name}

	pol, err := s.policies.Get(ctx, dev.OrgID)
	if err != nil {
		return s.internal("policy load", err)
	}

	// The device's paired class wins; teachers roaming to an unpaired
	// reader fall back to the person's own class.
	classID := dev.ClassID
	if classID == "" {
		classID = person.ClassID
	}

	resolved, err := s.resolver.Resolve(ctx, dev.OrgID, classID, now, pol)
	if err != nil {
		switch {
		case errors.Is(err, schedule.ErrOutsideOperatingHours):
			return Result{Code: verify.CodeTooEarly, Role: string(person.Role), User: user, Reason: "outside_operating_hours"}
		case errors.Is(err, schedule.ErrNoActiveSlot):
			return Result{Code: verify.CodeTooEarly, Role: string(person.Role), User: user, Reason: "no_active_slot"}
		default:
			return s.internal("slot resolve", err)
		}
	}

	date := now.Format("2006-01-02")
	if resolved.Break {
		return s.handleBreak(ctx, person, resolved, date, now, pol, user)
	}

	switch person.Role {
	case directory.RoleTeacher:
		return s.handleTeacher(ctx, person, dev, resolved, classID, date, now, pol, user)
	case directory.RoleStudent:
		return s.handleStudent(ctx, person, dev, resolved, classID, date, now, pol, user)
	default:
		return Result{Code: verify.CodeUnknownTag, User: user, Reason: "unknown_role"}
	}
}

func (s *Service) handleBreak(ctx context.Context, person *directory.Person, resolved schedule.Resolution, date string, now time.Time, pol policy.Config, user *UserInfo) Result {
	decision := verify.Break(person.Role, resolved.Slot.EndAt(now), now, pol)
	if decision.Checkpoint {
		if err := s.checkpoints.Mark(ctx, person.ID, resolved.Slot.ID, date); err != nil {
			return s.internal("checkpoint", err)
		}
	}
	return Result{Code: decision.Code, Role: string(person.Role), User: user, Reason: decision.Reason}
}

func (s *Service) handleTeacher(ctx context.Context, person *directory.Person, dev *device.Device, resolved schedule.Resolution, classID, date string, now time.Time, pol policy.Config, user *UserInfo) Result {
	decision := verify.Teacher(resolved.Slot.StartAt(now), resolved.Slot.EndAt(now), now, pol)
	if !decision.Accepted {
		return Result{Code: decision.Code, Role: string(person.Role), User: user, Reason: decision.Reason}
	}

	sess, err := s.sessions.GetOrCreate(ctx, resolved, classID, date, person.Role, person.ID, now)
	if err != nil {
		return s.internal("session open", err)
	}

	code := verify.CodeOK
	if sess.AdHoc {
		if sess.Created {
			code = verify.CodeAdHocCreated
		} else {
			code = verify.CodeAdHocReused
		}
	}

	// A teacher scan is its own attendance; a repeat scan is a no-op
	// rather than a rejection so re-entering the room stays silent.
	rec := attendance.Record{
		PersonID:  person.ID,
		ClassID:   classID,
		SlotID:    resolved.Slot.ID,
		Date:      date,
		Room:      dev.Room,
		Status:    decision.RecordStatus,
		Points:    pol.PointsPresent,
		ScannedAt: now,
	}
	total := 0
	if _, pts, err := s.recorder.Record(ctx, rec); err != nil {
		if !errors.Is(err, attendance.ErrAlreadyRecorded) {
			return s.internal("teacher record", err)
		}
	} else {
		total = pts
	}

	return Result{Code: code, Role: string(person.Role), User: user, Points: total}
}

func (s *Service) handleStudent(ctx context.Context, person *directory.Person, dev *device.Device, resolved schedule.Resolution, classID, date string, now time.Time, pol policy.Config, user *UserInfo) Result {
	sess, err := s.sessions.GetOrCreate(ctx, resolved, classID, date, person.Role, person.ID, now)
	if err != nil {
		if errors.Is(err, session.ErrNoActiveSession) {
			return Result{Code: verify.CodeNoActiveSession, Role: string(person.Role), User: user, Reason: "no_active_session"}
		}
		return s.internal("session lookup", err)
	}

	base := resolved.Slot.StartAt(now)
	if pol.LatenessFromTeacherScan && !sess.OpenedAt.IsZero() {
		base = sess.OpenedAt
	}
	decision := verify.Student(resolved.Slot.StartAt(now), resolved.Slot.EndAt(now), base, now, resolved.First, resolved.Last, pol)
	if !decision.Accepted {
		return Result{Code: decision.Code, Role: string(person.Role), User: user, Reason: decision.Reason}
	}

	points := 0
	if decision.AwardPoints {
		points = pol.PointsPresent
		if decision.RecordStatus == verify.StatusLate {
			points = pol.PointsLate
		}
	}
	rec := attendance.Record{
		PersonID:  person.ID,
		ClassID:   classID,
		SlotID:    resolved.Slot.ID,
		Date:      date,
		Room:      dev.Room,
		Status:    decision.RecordStatus,
		Points:    points,
		ScannedAt: now,
	}
	_, total, err := s.recorder.Record(ctx, rec)
	if err != nil {
		if errors.Is(err, attendance.ErrAlreadyRecorded) {
			return Result{Code: verify.CodeAlreadyRecorded, Role: string(person.Role), User: user, Reason: "already_recorded"}
		}
		return s.internal("student record", err)
	}

	return Result{Code: decision.Code, Role: string(person.Role), User: user, Reason: decision.Reason, Points: total}
}

func (s *Service) internal(stage string, err error) Result {
	log.Printf("scan pipeline %s failed: %v", stage, err)
	return Result{Code: verify.CodeInternal, Reason: "internal_error"}
}

func outcomeLabel(res Result) string {
	if res.Reason != "" {
		return res.Reason
	}
	switch res.Code {
	case verify.CodeOK:
		return "present"
	case verify.CodeAdHocCreated:
		return "adhoc_created"
	case verify.CodeAdHocReused:
		return "adhoc_reused"
	default:
		return "other"
	}
}
