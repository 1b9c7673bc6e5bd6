package service

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/vastu-backend/internal/repository"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// MinPasswordLen is the shortest password accepted at signup, migration and reset.
const MinPasswordLen = 8

// maxPasswordLen is bcrypt's input limit.
const maxPasswordLen = 72

func validatePassword(password string) error {
	switch {
	case len(password) < MinPasswordLen:
		return invalidField("password", "must be at least 8 characters")
	case len(password) > maxPasswordLen:
		return invalidField("password", "must be at most 72 bytes")
	}
	return nil
}

func validateCredentials(email, password string) error {
	fields := map[string]string{}
	email = strings.TrimSpace(email)
	if email == "" {
		fields["email"] = "required"
	} else if validate.Var(email, "email") != nil {
		fields["email"] = "must be a valid email address"
	} else if strings.HasSuffix(strings.ToLower(email), "@"+GuestEmailDomain) {
		fields["email"] = "domain not allowed"
	}
	if err := validatePassword(password); err != nil {
		fields["password"] = err.(*ValidationError).Fields["password"]
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// EmailDigest identifies an address in logs and audit events without
// revealing it.
func EmailDigest(email string) string {
	sum := sha256.Sum256([]byte(repository.NormalizeEmail(email)))
	return hex.EncodeToString(sum[:6])
}
