package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/vastu-backend/internal/model"
)

func newMock(t *testing.T) (sqlmock.Sqlmock, *UserRepo, *RoleRepo) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return mock, NewUserRepo(db), NewRoleRepo(db)
}

func q(s string) string { return regexp.QuoteMeta(s) }

const promoteSQL = `UPDATE users SET email=?, full_name=?, password_hash=?, auth_provider=NULL, auth_provider_id=NULL, role_id=?, updated_at=? WHERE id=? AND password_hash IS NULL AND auth_provider=?`

func TestPromoteGuestMatchesOnlyGuests(t *testing.T) {
	mock, users, _ := newMock(t)
	mock.ExpectExec(q(promoteSQL)).
		WithArgs("ana@example.com", "Ana", "$2a$hash", 2, sqlmock.AnyArg(), 7, model.ProviderGuest).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := users.PromoteGuest(context.Background(), 7, " Ana@Example.com ", "Ana", "$2a$hash", 2)
	assert.NoError(t, err)
}

func TestPromoteGuestNoMatchIsConflict(t *testing.T) {
	mock, users, _ := newMock(t)
	mock.ExpectExec(q(promoteSQL)).
		WithArgs("ana@example.com", "Ana", "$2a$hash", 2, sqlmock.AnyArg(), 7, model.ProviderGuest).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := users.PromoteGuest(context.Background(), 7, "ana@example.com", "Ana", "$2a$hash", 2)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestPromoteGuestDuplicateEmail(t *testing.T) {
	mock, users, _ := newMock(t)
	mock.ExpectExec(q(promoteSQL)).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	err := users.PromoteGuest(context.Background(), 7, "ana@example.com", "Ana", "$2a$hash", 2)
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestDeleteGuestsCreatedBefore(t *testing.T) {
	mock, users, _ := newMock(t)
	cutoff := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectExec(q("DELETE FROM users WHERE auth_provider=? AND password_hash IS NULL AND created_at < ?")).
		WithArgs(model.ProviderGuest, cutoff).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := users.DeleteGuestsCreatedBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

var userCols = []string{"id", "email", "full_name", "phone", "password_hash", "auth_provider",
	"auth_provider_id", "role_id", "name", "is_active", "created_at", "updated_at"}

func TestFindByEmailScansGuest(t *testing.T) {
	mock, users, _ := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery(q("FROM users u JOIN roles r ON r.id = u.role_id WHERE u.email=? LIMIT 1")).
		WithArgs("guest_x@placeholder.local").
		WillReturnRows(sqlmock.NewRows(userCols).
			AddRow(9, "guest_x@placeholder.local", "", "", nil, model.ProviderGuest, "x", 3, model.RoleGuest, true, now, now))

	u, err := users.FindByEmail(context.Background(), "Guest_X@placeholder.local")
	require.NoError(t, err)
	assert.True(t, u.IsGuest())
	assert.Nil(t, u.PasswordHash)
	assert.Equal(t, model.RoleGuest, u.RoleName)
}

func TestFindByIDMissing(t *testing.T) {
	mock, users, _ := newMock(t)
	mock.ExpectQuery(q("WHERE u.id=? LIMIT 1")).
		WithArgs(42).
		WillReturnRows(sqlmock.NewRows(userCols))

	_, err := users.FindByID(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveMissingRow(t *testing.T) {
	mock, users, _ := newMock(t)
	mock.ExpectExec(q("UPDATE users SET email=?")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := users.Save(context.Background(), &model.User{ID: 5, Email: "a@example.com"})
	assert.ErrorIs(t, err, ErrNotFound)
}

var grantCols = []string{"id", "role_id", "page_name", "can_access", "can_read", "can_write",
	"can_delete", "created_at", "updated_at"}

const grantForUserSQL = `FROM users u JOIN page_access pa ON pa.role_id = u.role_id WHERE u.id=? AND pa.page_name=? LIMIT 1`

func TestFindGrantForUserJoinsThroughRole(t *testing.T) {
	mock, _, roles := newMock(t)
	now := time.Now().UTC()
	mock.ExpectQuery(q(grantForUserSQL)).
		WithArgs(5, "consultations").
		WillReturnRows(sqlmock.NewRows(grantCols).
			AddRow(1, 2, "consultations", true, true, false, false, now, now))

	p, err := roles.FindGrantForUser(context.Background(), 5, " consultations ")
	require.NoError(t, err)
	assert.True(t, p.Allows(model.CapRead))
	assert.False(t, p.Allows(model.CapWrite))
}

func TestFindGrantForUserMissingRowIsNotFound(t *testing.T) {
	mock, _, roles := newMock(t)
	mock.ExpectQuery(q(grantForUserSQL)).
		WithArgs(5, "dashboard").
		WillReturnRows(sqlmock.NewRows(grantCols))

	_, err := roles.FindGrantForUser(context.Background(), 5, "dashboard")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAccessiblePagesFiltersOnAccess(t *testing.T) {
	mock, _, roles := newMock(t)
	mock.ExpectQuery(q("WHERE u.id=? AND pa.can_access=1 ORDER BY pa.page_name")).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows(grantCols))

	pages, err := roles.ListAccessiblePages(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, pages)
}

func TestGrantUnknownRole(t *testing.T) {
	mock, _, roles := newMock(t)
	mock.ExpectExec(q("INSERT INTO page_access (role_id, page_name, can_access, can_read, can_write, can_delete)")).
		WithArgs(99, "dashboard", true, false, false, false).
		WillReturnError(&mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row"})

	_, err := roles.Grant(context.Background(), 99, "dashboard", model.Grant{CanAccess: true})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGrantUpsertsAndRereads(t *testing.T) {
	mock, _, roles := newMock(t)
	now := time.Now().UTC()
	mock.ExpectExec(q("ON DUPLICATE KEY UPDATE can_access=VALUES(can_access)")).
		WithArgs(2, "dashboard", true, true, false, false).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(q("FROM page_access pa WHERE pa.role_id=? AND pa.page_name=?")).
		WithArgs(2, "dashboard").
		WillReturnRows(sqlmock.NewRows(grantCols).
			AddRow(4, 2, "dashboard", true, true, false, false, now, now))

	p, err := roles.Grant(context.Background(), 2, "dashboard", model.Grant{CanAccess: true, CanRead: true})
	require.NoError(t, err)
	assert.Equal(t, uint64(4), p.ID)
}

func TestCreateRoleDuplicate(t *testing.T) {
	mock, _, roles := newMock(t)
	mock.ExpectExec(q("INSERT INTO roles (name) VALUES (?)")).
		WithArgs("consultant").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	_, err := roles.CreateRole(context.Background(), " consultant ")
	assert.ErrorIs(t, err, ErrRoleExists)
}
