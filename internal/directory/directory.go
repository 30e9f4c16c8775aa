package directory

import (
	"context"
	"database/sql"
	"errors"
)

// Role is the closed set of scanning roles. Role-specific behavior is
// dispatched once after classification, not via scattered checks.
type Role string

const (
	RoleTeacher Role = "TEACHER"
	RoleStudent Role = "STUDENT"
)

// Person is the read-only teacher/student projection consumed by the
// engine.
type Person struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Role    Role   `json:"role"`
	Tag     string `json:"-"`
	OrgID   string `json:"-"`
	ClassID string `json:"-"`
}

// Repository resolves rfid tags against the person directory.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// FindByTag returns the person owning the tag, or nil when the tag is
// unknown.
func (r *Repository) FindByTag(ctx context.Context, tag string) (*Person, error) {
	if tag == "" {
		return nil, errors.New("rfid tag required")
	}
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, role, rfid_tag, org_id, COALESCE(class_id, '')
		FROM persons
		WHERE rfid_tag = $1
	`, tag)
	var p Person
	if err := row.Scan(&p.ID, &p.Name, &p.Role, &p.Tag, &p.OrgID, &p.ClassID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}
