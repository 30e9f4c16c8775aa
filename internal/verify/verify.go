package verify

import (
	"time"

	"classtrack/internal/directory"
	"classtrack/internal/policy"
)

// Wire status codes carried on every scan_result.
const (
	CodeOK              = 200
	CodeAdHocCreated    = 201
	CodeAdHocReused     = 202
	CodeBadRequest      = 400
	CodeDeviceNotFound  = 401
	CodeNoActiveSession = 403
	CodeUnknownTag      = 404
	CodeAlreadyRecorded = 409
	CodeTooLate         = 410
	CodeTooEarly        = 412
	CodeInternal        = 500
)

// Rejection and informational reasons.
const (
	ReasonLate            = "late"
	ReasonReentry         = "reentry"
	ReasonBreak           = "break"
	ReasonReverified      = "reverified"
	ReasonTooEarly        = "too_early"
	ReasonTooLate         = "too_late"
	ReasonOutsideReverify = "outside_reverification_window"
)

// Attendance statuses written to records.
const (
	StatusPresent = "present"
	StatusLate    = "late"
)

// Decision is the outcome of applying the policy windows to a scan.
type Decision struct {
	Accepted     bool
	Code         int
	Reason       string
	RecordStatus string
	WriteRecord  bool
	AwardPoints  bool
	Checkpoint   bool
}

func reject(code int, reason string) Decision {
	return Decision{Code: code, Reason: reason}
}

// Teacher checks the teacher admission window
// [start − earlyAccess, end + teacherGrace].
func Teacher(slotStart, slotEnd, now time.Time, pol policy.Config) Decision {
	early := minutes(pol.EarlyAccessWindowMins)
	grace := minutes(pol.TeacherGraceMins)
	if now.Before(slotStart.Add(-early)) {
		return reject(CodeTooEarly, ReasonTooEarly)
	}
	if now.After(slotEnd.Add(grace)) {
		return reject(CodeTooLate, ReasonTooLate)
	}
	return Decision{
		Accepted:     true,
		Code:         CodeOK,
		RecordStatus: StatusPresent,
		WriteRecord:  true,
		AwardPoints:  true,
	}
}

// Student classifies a student scan against the lateness base. The
// base is the slot start, or the opening teacher scan when the policy
// measures lateness from it. The early-access bound stays anchored on
// the slot start regardless of base.
func Student(slotStart, slotEnd, base, now time.Time, first, last bool, pol policy.Config) Decision {
	early := minutes(pol.EarlyAccessWindowMins)
	if now.Before(slotStart.Add(-early)) {
		return reject(CodeTooEarly, ReasonTooEarly)
	}
	if base.IsZero() {
		base = slotStart
	}
	if !now.After(base) {
		return Decision{
			Accepted:     true,
			Code:         CodeOK,
			RecordStatus: StatusPresent,
			WriteRecord:  true,
			AwardPoints:  true,
		}
	}

	window := minutes(pol.StudentRegularWindowMins)
	if first {
		window = minutes(pol.StudentFirstSlotWindowMins)
	}
	if now.Sub(base) <= window {
		return Decision{
			Accepted:     true,
			Code:         CodeOK,
			Reason:       ReasonLate,
			RecordStatus: StatusLate,
			WriteRecord:  true,
			AwardPoints:  true,
		}
	}

	// Stragglers re-entering after the last slot of the day are let
	// back in but earn nothing.
	if last && now.After(slotEnd) {
		free := time.Duration(pol.PostClassFreeAccessHours) * time.Hour
		if now.Before(slotEnd.Add(free)) {
			return Decision{
				Accepted:     true,
				Code:         CodeOK,
				Reason:       ReasonReentry,
				RecordStatus: StatusPresent,
				WriteRecord:  true,
			}
		}
	}
	return reject(CodeTooLate, ReasonTooLate)
}

// Break handles scans during BREAK/LUNCH slots. Teacher scans carry no
// attendance semantics. Student scans inside the warning window before
// the break ends (plus the re-verification grace after it) count as a
// re-verification checkpoint; no attendance record is written either
// way.
func Break(role directory.Role, breakEnd, now time.Time, pol policy.Config) Decision {
	if role == directory.RoleTeacher {
		return Decision{Accepted: true, Code: CodeOK, Reason: ReasonBreak}
	}
	warn := minutes(pol.BreakWarningMins)
	grace := minutes(pol.ReVerificationGraceMins)
	if now.Before(breakEnd.Add(-warn)) || now.After(breakEnd.Add(grace)) {
		return reject(CodeTooEarly, ReasonOutsideReverify)
	}
	return Decision{
		Accepted:   true,
		Code:       CodeOK,
		Reason:     ReasonReverified,
		Checkpoint: true,
	}
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}
