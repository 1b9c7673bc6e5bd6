package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/vastu-backend/internal/model"
)

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = `u.id, u.email, u.full_name, u.phone, u.password_hash, u.auth_provider,
	u.auth_provider_id, u.role_id, r.name, u.is_active, u.created_at, u.updated_at`

// NormalizeEmail lower-cases and trims an address before any lookup or write.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(s rowScanner) (*model.User, error) {
	var (
		u          model.User
		hash       sql.NullString
		provider   sql.NullString
		providerID sql.NullString
	)
	err := s.Scan(&u.ID, &u.Email, &u.FullName, &u.Phone, &hash, &provider, &providerID,
		&u.RoleID, &u.RoleName, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if hash.Valid {
		h := hash.String
		u.PasswordHash = &h
	}
	if provider.Valid {
		u.ExternalAuth = &model.ExternalAuth{Provider: provider.String, ProviderID: providerID.String}
	}
	return &u, nil
}

func nullable(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func providerColumns(ext *model.ExternalAuth) (sql.NullString, sql.NullString) {
	if ext == nil {
		return sql.NullString{}, sql.NullString{}
	}
	return sql.NullString{String: ext.Provider, Valid: true}, sql.NullString{String: ext.ProviderID, Valid: true}
}

// FindByEmail fetches a user by normalized email.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users u JOIN roles r ON r.id = u.role_id WHERE u.email=? LIMIT 1",
		NormalizeEmail(email)))
}

// FindByID fetches a user by id.
func (r *UserRepo) FindByID(ctx context.Context, id uint64) (*model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users u JOIN roles r ON r.id = u.role_id WHERE u.id=? LIMIT 1",
		id))
}

// Create inserts u and fills its ID and timestamps.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = NormalizeEmail(u.Email)
	now := time.Now().UTC()
	provider, providerID := providerColumns(u.ExternalAuth)
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO users (email, full_name, phone, password_hash, auth_provider, auth_provider_id,
			role_id, is_active, created_at, updated_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		u.Email, u.FullName, u.Phone, nullable(u.PasswordHash), provider, providerID,
		u.RoleID, u.IsActive, now, now)
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	u.CreatedAt, u.UpdatedAt = now, now
	return nil
}

// Save writes every mutable column of u and bumps updated_at.
func (r *UserRepo) Save(ctx context.Context, u *model.User) error {
	u.Email = NormalizeEmail(u.Email)
	now := time.Now().UTC()
	provider, providerID := providerColumns(u.ExternalAuth)
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET email=?, full_name=?, phone=?, password_hash=?, auth_provider=?,
			auth_provider_id=?, role_id=?, is_active=?, updated_at=? WHERE id=?`,
		u.Email, u.FullName, u.Phone, nullable(u.PasswordHash), provider, providerID,
		u.RoleID, u.IsActive, now, u.ID)
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	u.UpdatedAt = now
	return nil
}

// PromoteGuest turns the guest row id into a credentialed identity in a
// single statement. The WHERE clause repeats the guest predicate, so of two
// concurrent promotions at most one matches; the loser gets ErrConflict.
func (r *UserRepo) PromoteGuest(ctx context.Context, id uint64, email, fullName, hash string, roleID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE users SET email=?, full_name=?, password_hash=?, auth_provider=NULL,
			auth_provider_id=NULL, role_id=?, updated_at=?
		 WHERE id=? AND password_hash IS NULL AND auth_provider=?`,
		NormalizeEmail(email), fullName, hash, roleID, time.Now().UTC(), id, model.ProviderGuest)
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// DeleteGuestsCreatedBefore removes guest identities older than cutoff and
// returns how many were deleted. Rows with a credential are never touched.
func (r *UserRepo) DeleteGuestsCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM users WHERE auth_provider=? AND password_hash IS NULL AND created_at < ?",
		model.ProviderGuest, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
