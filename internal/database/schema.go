package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/vastu-backend/internal/model"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS roles (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(64) NOT NULL,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		updated_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6),
		UNIQUE KEY uq_roles_name (name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(255) NOT NULL,
		full_name VARCHAR(255) NOT NULL DEFAULT '',
		phone VARCHAR(32) NOT NULL DEFAULT '',
		password_hash VARCHAR(255) NULL,
		auth_provider VARCHAR(32) NULL,
		auth_provider_id VARCHAR(128) NULL,
		role_id BIGINT UNSIGNED NOT NULL,
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		updated_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		UNIQUE KEY uq_users_email (email),
		KEY idx_users_provider_created (auth_provider, created_at),
		CONSTRAINT fk_users_role FOREIGN KEY (role_id) REFERENCES roles(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS page_access (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		role_id BIGINT UNSIGNED NOT NULL,
		page_name VARCHAR(128) NOT NULL,
		can_access TINYINT(1) NOT NULL DEFAULT 0,
		can_read TINYINT(1) NOT NULL DEFAULT 0,
		can_write TINYINT(1) NOT NULL DEFAULT 0,
		can_delete TINYINT(1) NOT NULL DEFAULT 0,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		updated_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6),
		UNIQUE KEY uq_page_access_role_page (role_id, page_name),
		CONSTRAINT fk_page_access_role FOREIGN KEY (role_id) REFERENCES roles(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS consultations (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT UNSIGNED NULL,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL DEFAULT '',
		phone VARCHAR(32) NOT NULL DEFAULT '',
		type VARCHAR(64) NOT NULL DEFAULT 'general',
		message TEXT NOT NULL,
		status VARCHAR(32) NOT NULL DEFAULT 'pending',
		preferred_date DATETIME(6) NULL,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		updated_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6),
		KEY idx_consultations_user (user_id),
		CONSTRAINT fk_consultations_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// EnsureSchema creates the tables this service owns when they are missing.
// Existing tables are left untouched.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// DefaultRoles lists the roles present on every deployment.
var DefaultRoles = []string{model.RoleAdmin, model.RoleUser, model.RoleGuest, model.RoleConsultant}

// DefaultGrant is a page grant written at first startup.
type DefaultGrant struct {
	Role  string
	Page  string
	Grant model.Grant
}

// DefaultGrants are only inserted when the (role, page) pair is absent, so
// admin edits survive restarts.
var DefaultGrants = []DefaultGrant{
	{model.RoleAdmin, "dashboard", model.Grant{CanAccess: true, CanRead: true, CanWrite: true, CanDelete: true}},
	{model.RoleAdmin, "consultations", model.Grant{CanAccess: true, CanRead: true, CanWrite: true, CanDelete: true}},
	{model.RoleAdmin, "users", model.Grant{CanAccess: true, CanRead: true, CanWrite: true, CanDelete: true}},
	{model.RoleAdmin, "roles", model.Grant{CanAccess: true, CanRead: true, CanWrite: true, CanDelete: true}},
	{model.RoleConsultant, "dashboard", model.Grant{CanAccess: true, CanRead: true}},
	{model.RoleConsultant, "consultations", model.Grant{CanAccess: true, CanRead: true, CanWrite: true}},
	{model.RoleUser, "consultations", model.Grant{CanAccess: true, CanRead: true, CanWrite: true}},
	{model.RoleGuest, "consultations", model.Grant{CanAccess: true, CanRead: true}},
}

// Seed inserts the default roles and grants. It is idempotent and safe to
// run from several processes at once.
func Seed(ctx context.Context, db *sql.DB) error {
	for _, name := range DefaultRoles {
		if _, err := db.ExecContext(ctx, "INSERT IGNORE INTO roles (name) VALUES (?)", name); err != nil {
			return fmt.Errorf("seed role %s: %w", name, err)
		}
	}
	for _, g := range DefaultGrants {
		_, err := db.ExecContext(ctx,
			`INSERT IGNORE INTO page_access (role_id, page_name, can_access, can_read, can_write, can_delete)
			 SELECT id, ?, ?, ?, ?, ? FROM roles WHERE name=?`,
			g.Page, g.Grant.CanAccess, g.Grant.CanRead, g.Grant.CanWrite, g.Grant.CanDelete, g.Role)
		if err != nil {
			return fmt.Errorf("seed grant %s/%s: %w", g.Role, g.Page, err)
		}
	}
	return nil
}
