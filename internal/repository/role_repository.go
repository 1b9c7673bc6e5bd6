package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/vastu-backend/internal/model"
)

// RoleRepo stores roles and their page grants.
type RoleRepo struct {
	db *sql.DB
}

func NewRoleRepo(db *sql.DB) *RoleRepo { return &RoleRepo{db: db} }

func scanRole(s rowScanner) (*model.Role, error) {
	var r model.Role
	if err := s.Scan(&r.ID, &r.Name, &r.CreatedAt, &r.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

// GetRoleByName returns ErrNotFound when no role carries name.
func (r *RoleRepo) GetRoleByName(ctx context.Context, name string) (*model.Role, error) {
	return scanRole(r.db.QueryRowContext(ctx,
		"SELECT id, name, created_at, updated_at FROM roles WHERE name=? LIMIT 1",
		strings.TrimSpace(name)))
}

func (r *RoleRepo) GetRoleByID(ctx context.Context, id uint64) (*model.Role, error) {
	return scanRole(r.db.QueryRowContext(ctx,
		"SELECT id, name, created_at, updated_at FROM roles WHERE id=? LIMIT 1", id))
}

// CreateRole inserts a role. A concurrent or earlier insert of the same
// name yields ErrRoleExists.
func (r *RoleRepo) CreateRole(ctx context.Context, name string) (*model.Role, error) {
	res, err := r.db.ExecContext(ctx, "INSERT INTO roles (name) VALUES (?)", strings.TrimSpace(name))
	if err != nil {
		if isDuplicate(err) {
			return nil, ErrRoleExists
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return r.GetRoleByID(ctx, uint64(id))
}

func (r *RoleRepo) ListRoles(ctx context.Context) ([]model.Role, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name, created_at, updated_at FROM roles ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *role)
	}
	return out, rows.Err()
}

const grantColumns = "pa.id, pa.role_id, pa.page_name, pa.can_access, pa.can_read, pa.can_write, pa.can_delete, pa.created_at, pa.updated_at"

func scanGrant(s rowScanner) (*model.PageAccess, error) {
	var p model.PageAccess
	err := s.Scan(&p.ID, &p.RoleID, &p.PageName, &p.CanAccess, &p.CanRead, &p.CanWrite, &p.CanDelete,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *RoleRepo) queryGrants(ctx context.Context, q string, args ...any) ([]model.PageAccess, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.PageAccess
	for rows.Next() {
		p, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Grant writes the capability set for (roleID, page), replacing any
// existing row for the pair. ErrNotFound means the role does not exist.
func (r *RoleRepo) Grant(ctx context.Context, roleID uint64, page string, g model.Grant) (*model.PageAccess, error) {
	page = strings.TrimSpace(page)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO page_access (role_id, page_name, can_access, can_read, can_write, can_delete)
		 VALUES (?,?,?,?,?,?)
		 ON DUPLICATE KEY UPDATE can_access=VALUES(can_access), can_read=VALUES(can_read),
			can_write=VALUES(can_write), can_delete=VALUES(can_delete)`,
		roleID, page, g.CanAccess, g.CanRead, g.CanWrite, g.CanDelete)
	if err != nil {
		if isMissingParent(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return scanGrant(r.db.QueryRowContext(ctx,
		"SELECT "+grantColumns+" FROM page_access pa WHERE pa.role_id=? AND pa.page_name=?", roleID, page))
}

func (r *RoleRepo) ListGrants(ctx context.Context, roleID uint64) ([]model.PageAccess, error) {
	return r.queryGrants(ctx,
		"SELECT "+grantColumns+" FROM page_access pa WHERE pa.role_id=? ORDER BY pa.page_name", roleID)
}

// FindGrantForUser resolves user → role → grant for page. ErrNotFound
// covers both an unknown user and a missing grant row.
func (r *RoleRepo) FindGrantForUser(ctx context.Context, userID uint64, page string) (*model.PageAccess, error) {
	return scanGrant(r.db.QueryRowContext(ctx,
		"SELECT "+grantColumns+` FROM users u JOIN page_access pa ON pa.role_id = u.role_id
		 WHERE u.id=? AND pa.page_name=? LIMIT 1`, userID, strings.TrimSpace(page)))
}

// ListAccessiblePages returns the grants of the user's role that allow access.
func (r *RoleRepo) ListAccessiblePages(ctx context.Context, userID uint64) ([]model.PageAccess, error) {
	return r.queryGrants(ctx,
		"SELECT "+grantColumns+` FROM users u JOIN page_access pa ON pa.role_id = u.role_id
		 WHERE u.id=? AND pa.can_access=1 ORDER BY pa.page_name`, userID)
}
