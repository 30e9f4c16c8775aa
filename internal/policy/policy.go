package policy

import (
	"context"
	"database/sql"
	"errors"
)

// Config holds the per-organization verification window parameters.
// It is resolved per request from the organization context and never
// stored as process-wide mutable state.
type Config struct {
	OrgID                      string `json:"org_id"`
	EarlyAccessWindowMins      int    `json:"early_access_window_mins"`
	PostClassFreeAccessHours   int    `json:"post_class_free_access_hours"`
	OperatingStartHour         int    `json:"operating_start_hour"`
	OperatingEndHour           int    `json:"operating_end_hour"`
	TeacherGraceMins           int    `json:"teacher_grace_mins"`
	StudentFirstSlotWindowMins int    `json:"student_first_slot_window_mins"`
	StudentRegularWindowMins   int    `json:"student_regular_window_mins"`
	BreakWarningMins           int    `json:"break_warning_mins"`
	ReVerificationGraceMins    int    `json:"re_verification_grace_mins"`
	LatenessFromTeacherScan    bool   `json:"lateness_from_teacher_scan"`
	PointsPresent              int    `json:"points_present"`
	PointsLate                 int    `json:"points_late"`
}

// Default returns the fallback parameters used when an organization has
// no stored policy row yet.
func Default(orgID string) Config {
	return Config{
		OrgID:                      orgID,
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

// Repository loads policy configs from Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Get returns the organization's policy, falling back to defaults when
// no row exists.
func (r *Repository) Get(ctx context.Context, orgID string) (Config, error) {
	if orgID == "" {
		return Config{}, errors.New("org id required")
	}
	row := r.db.QueryRowContext(ctx, `
		SELECT org_id, early_access_window_mins, post_class_free_access_hours,
		       operating_start_hour, operating_end_hour, teacher_grace_mins,
		       student_first_slot_window_mins, student_regular_window_mins,
		       break_warning_mins, re_verification_grace_mins,
		       lateness_from_teacher_scan, points_present, points_late
		FROM policy_configs WHERE org_id = $1
	`, orgID)
	var cfg Config
	err := row.Scan(&cfg.OrgID, &cfg.EarlyAccessWindowMins, &cfg.PostClassFreeAccessHours,
		&cfg.OperatingStartHour, &cfg.OperatingEndHour, &cfg.TeacherGraceMins,
		&cfg.StudentFirstSlotWindowMins, &cfg.StudentRegularWindowMins,
		&cfg.BreakWarningMins, &cfg.ReVerificationGraceMins,
		&cfg.LatenessFromTeacherScan, &cfg.PointsPresent, &cfg.PointsLate)
	if errors.Is(err, sql.ErrNoRows) {
		return Default(orgID), nil
	}
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}
