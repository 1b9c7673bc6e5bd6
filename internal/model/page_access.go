package model

import (
	"strings"
	"time"
)

// Capability names one of the four independent page permissions.
type Capability string

const (
	CapAccess Capability = "access"
	CapRead   Capability = "read"
	CapWrite  Capability = "write"
	CapDelete Capability = "delete"
)

// ParseCapability normalizes s and reports whether it names a capability.
func ParseCapability(s string) (Capability, bool) {
	c := Capability(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case CapAccess, CapRead, CapWrite, CapDelete:
		return c, true
	}
	return "", false
}

// Grant is the capability set written for a (role, page) pair.
type Grant struct {
	CanAccess bool
	CanRead   bool
	CanWrite  bool
	CanDelete bool
}

// PageAccess represents a row in the `page_access` table. The pair
// (RoleID, PageName) is unique; a missing row means no access at all.
type PageAccess struct {
	ID       uint64
	RoleID   uint64
	PageName string
	Grant
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Allows returns the boolean stored for c. Unknown capabilities are denied.
func (p *PageAccess) Allows(c Capability) bool {
	if p == nil {
		return false
	}
	switch c {
	case CapAccess:
		return p.CanAccess
	case CapRead:
		return p.CanRead
	case CapWrite:
		return p.CanWrite
	case CapDelete:
		return p.CanDelete
	}
	return false
}
