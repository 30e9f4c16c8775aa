package device

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Status values for a registered device. Devices are never deleted,
// only transitioned.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Device is a fixed classroom reader.
type Device struct {
	ID       string    `json:"id"`
	OrgID    string    `json:"org_id"`
	Room     string    `json:"room"`
	ClassID  string    `json:"class_id,omitempty"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"last_seen"`
}

// Repository persists the device registry in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Register ensures a device record exists, updating its pairing on
// conflict.
func (r *Repository) Register(ctx context.Context, d Device) error {
	if d.ID == "" {
		return errors.New("device id required")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (device_id, org_id, room, class_id, status)
		VALUES ($1, $2, $3, NULLIF($4, ''), 'offline')
		ON CONFLICT (device_id) DO UPDATE SET
			room = EXCLUDED.room,
			class_id = EXCLUDED.class_id
	`, d.ID, d.OrgID, d.Room, d.ClassID)
	return err
}

// Find returns the device, or nil when unknown.
func (r *Repository) Find(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT device_id, org_id, room, COALESCE(class_id, ''), status, COALESCE(last_seen, NOW())
		FROM devices WHERE device_id = $1
	`, id)
	var d Device
	if err := row.Scan(&d.ID, &d.OrgID, &d.Room, &d.ClassID, &d.Status, &d.LastSeen); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &d, nil
}

// SetStatus records a connectivity transition.
func (r *Repository) SetStatus(ctx context.Context, id, status string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE devices SET status = $2, last_seen = NOW() WHERE device_id = $1
	`, id, status)
	return err
}

// SaveRefreshToken stores a refresh token for rotation checks.
func (r *Repository) SaveRefreshToken(ctx context.Context, deviceID, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (device_id, token, expires_at)
		VALUES ($1, $2, $3)
	`, deviceID, token, expiresAt)
	return err
}

// Touch updates the last-seen timestamp after a processed scan.
func (r *Repository) Touch(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE devices SET last_seen = $2 WHERE device_id = $1
	`, id, at.UTC())
	return err
}
