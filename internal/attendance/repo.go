package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Record is a durable attendance outcome for one person in one slot
// occurrence.
type Record struct {
	ID        string    `json:"id"`
	PersonID  string    `json:"person_id"`
	ClassID   string    `json:"class_id"`
	SlotID    string    `json:"slot_id"`
	Date      string    `json:"date"`
	Room      string    `json:"room"`
	Status    string    `json:"status"`
	Points    int       `json:"points"`
	ScannedAt time.Time `json:"scanned_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository persists attendance records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert writes the record if no record exists for the
// (person, slot, date) key. Returns whether this call created it.
// Concurrent duplicate writers lose the conflict instead of racing.
func (r *Repository) Insert(ctx context.Context, rec Record) (bool, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.ScannedAt.IsZero() {
		rec.ScannedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_records (id, person_id, class_id, slot_id, record_date, room, status, points, scanned_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (person_id, slot_id, record_date) DO NOTHING
	`, rec.ID, rec.PersonID, rec.ClassID, rec.SlotID, rec.Date, rec.Room, rec.Status, rec.Points, rec.ScannedAt)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Find returns the record for (person, slot, date), or nil.
func (r *Repository) Find(ctx context.Context, personID, slotID, date string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, person_id, class_id, slot_id, record_date, room, status, points, scanned_at, created_at
		FROM attendance_records
		WHERE person_id = $1 AND slot_id = $2 AND record_date = $3
	`, personID, slotID, date)
	var rec Record
	if err := row.Scan(&rec.ID, &rec.PersonID, &rec.ClassID, &rec.SlotID, &rec.Date, &rec.Room, &rec.Status, &rec.Points, &rec.ScannedAt, &rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// AddPoints increments a person's reward points and returns the new
// total.
func (r *Repository) AddPoints(ctx context.Context, personID string, points int) (int, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE persons SET reward_points = reward_points + $2 WHERE id = $1
		RETURNING reward_points
	`, personID, points)
	var total int
	if err := row.Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// List returns records with basic filters for the external product.
func (r *Repository) List(ctx context.Context, classID, personID, date string, limit, offset int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT id, person_id, class_id, slot_id, record_date, room, status, points, scanned_at, created_at FROM attendance_records`
	args := []any{}
	clauses := []string{}
	if classID != "" {
		clauses = append(clauses, fmt.Sprintf("class_id = $%d", len(args)+1))
		args = append(args, classID)
	}
	if personID != "" {
		clauses = append(clauses, fmt.Sprintf("person_id = $%d", len(args)+1))
		args = append(args, personID)
	}
	if date != "" {
		clauses = append(clauses, fmt.Sprintf("record_date = $%d", len(args)+1))
		args = append(args, date)
	}
	if len(clauses) > 0 {
		query += " WHERE " + joinClauses(clauses, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY scanned_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.PersonID, &rec.ClassID, &rec.SlotID, &rec.Date, &rec.Room, &rec.Status, &rec.Points, &rec.ScannedAt, &rec.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

func joinClauses(parts []string, sep string) string {
	if len(parts) == 0 {
		return ""
	}
	out := parts[0]
	for i := 1; i < len(parts); i++ {
		out += sep + parts[i]
	}
	return out
}
