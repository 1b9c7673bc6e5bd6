package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/vastu-backend/internal/model"
)

// ConsultationRepo persists consultation requests.
type ConsultationRepo struct {
	db *sql.DB
}

func NewConsultationRepo(db *sql.DB) *ConsultationRepo { return &ConsultationRepo{db: db} }

// Create inserts c and fills its ID and timestamps.
func (r *ConsultationRepo) Create(ctx context.Context, c *model.Consultation) error {
	now := time.Now().UTC()
	var userID sql.NullInt64
	if c.UserID != nil {
		userID = sql.NullInt64{Int64: int64(*c.UserID), Valid: true}
	}
	var preferred sql.NullTime
	if c.PreferredDate != nil {
		preferred = sql.NullTime{Time: c.PreferredDate.UTC(), Valid: true}
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO consultations (user_id, name, email, phone, type, message, status, preferred_date, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		userID, c.Name, c.Email, c.Phone, c.Type, c.Message, c.Status, preferred, now, now)
	if err != nil {
		if isMissingParent(err) {
			return ErrNotFound
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	c.CreatedAt, c.UpdatedAt = now, now
	return nil
}

// ListByUser returns the consultations owned by userID, newest first.
func (r *ConsultationRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Consultation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, name, email, phone, type, message, status, preferred_date, created_at, updated_at
		 FROM consultations WHERE user_id=? ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Consultation
	for rows.Next() {
		var (
			c         model.Consultation
			uid       sql.NullInt64
			preferred sql.NullTime
		)
		if err := rows.Scan(&c.ID, &uid, &c.Name, &c.Email, &c.Phone, &c.Type, &c.Message, &c.Status,
			&preferred, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		if uid.Valid {
			v := uint64(uid.Int64)
			c.UserID = &v
		}
		if preferred.Valid {
			t := preferred.Time
			c.PreferredDate = &t
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
