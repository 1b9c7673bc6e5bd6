package service

import (
	"errors"
	"sort"
	"strings"
)

// Error categories. Handlers map these to status codes; every specific
// error below wraps exactly one of them.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrValidation   = errors.New("validation failed")
)

var (
	ErrInvalidCredentials = wrap(ErrUnauthorized, "invalid credentials")
	ErrDuplicateEmail     = wrap(ErrConflict, "email already registered")
	ErrRoleExists         = wrap(ErrConflict, "role already exists")
	ErrNotAGuest          = wrap(ErrInvalidState, "identity is not a guest")
	ErrInvalidResetToken  = wrap(ErrUnauthorized, "invalid or expired reset token")
	ErrUserNotFound       = wrap(ErrNotFound, "user not found")
	ErrRoleNotFound       = wrap(ErrNotFound, "role not found")

	// ErrRoleMissing means a role the code depends on has not been seeded.
	// It is an operator problem, not a client one.
	ErrRoleMissing = wrap(ErrInvalidState, "required role missing")
)

type categorized struct {
	category error
	msg      string
}

func (e *categorized) Error() string { return e.msg }
func (e *categorized) Unwrap() error { return e.category }

func wrap(category error, msg string) error {
	return &categorized{category: category, msg: msg}
}

// ValidationError reports rejected input fields. It matches ErrValidation
// under errors.Is.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalidField(field, msg string) error {
	return &ValidationError{Fields: map[string]string{field: msg}}
}
