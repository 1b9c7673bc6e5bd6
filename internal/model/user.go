package model

import "time"

// Well-known role names seeded at startup. Roles are rows in the roles
// table; these constants only name the ones the code depends on.
const (
	RoleAdmin      = "admin"
	RoleUser       = "user"
	RoleGuest      = "guest"
	RoleConsultant = "consultant"
)

// ProviderGuest is the external auth provider tag written on guest identities.
const ProviderGuest = "guest"

// IdentityKind is the tagged variant every identity resolves to.
type IdentityKind string

const (
	KindGuest        IdentityKind = "guest"
	KindCredentialed IdentityKind = "credentialed"
)

// ExternalAuth is the (provider, provider id) pair used by third-party login
// and, with provider "guest", to tag guest identities.
type ExternalAuth struct {
	Provider   string
	ProviderID string
}

// User represents an identity stored in the `users` table.
//
// Fields:
//
//	ID           – stable primary key; owned rows reference it.
//	Email        – unique address; guests carry a synthesized placeholder.
//	PasswordHash – bcrypt hash, nil when no credential is set.
//	ExternalAuth – provider marker, nil when absent.
//	RoleID       – foreign key into roles; RoleName is the joined name.
type User struct {
	ID           uint64
	Email        string
	FullName     string
	Phone        string
	PasswordHash *string
	ExternalAuth *ExternalAuth
	RoleID       uint64
	RoleName     string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// KindOf classifies an identity from its stored credential and provider
// marker. An identity is a guest exactly when it has no credential and is
// tagged with the guest provider; the role is deliberately not consulted.
func KindOf(passwordHash *string, ext *ExternalAuth) IdentityKind {
	if passwordHash == nil && ext != nil && ext.Provider == ProviderGuest {
		return KindGuest
	}
	return KindCredentialed
}

// Kind returns the identity's variant.
func (u *User) Kind() IdentityKind {
	return KindOf(u.PasswordHash, u.ExternalAuth)
}

// IsGuest reports whether u is a guest identity.
func (u *User) IsGuest() bool {
	return u != nil && u.Kind() == KindGuest
}

// Role represents a row in the `roles` table.
type Role struct {
	ID        uint64
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
