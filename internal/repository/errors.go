// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services to distinguish between failure scenarios without inspecting
// driver errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when the unique email constraint rejects a write.
var ErrEmailExists = errors.New("email already exists")

// ErrRoleExists is returned when the unique role name constraint rejects a write.
var ErrRoleExists = errors.New("role already exists")

// ErrConflict is returned when a conditional write matched no row because
// the row's state changed underneath the caller.
var ErrConflict = errors.New("conflict")

const (
	mysqlDuplicateEntry  = 1062
	mysqlNoReferencedRow = 1452
)

func isMySQLError(err error, number uint16) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == number
}

func isDuplicate(err error) bool { return isMySQLError(err, mysqlDuplicateEntry) }

func isMissingParent(err error) bool { return isMySQLError(err, mysqlNoReferencedRow) }
