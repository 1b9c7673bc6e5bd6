package service

import (
	"time"

	"github.com/iliyamo/vastu-backend/internal/model"
	"github.com/iliyamo/vastu-backend/internal/token"
)

// Session is a freshly issued session token.
type Session struct {
	Token     string
	TokenID   string
	ExpiresAt time.Time
	User      *model.User
}

// SessionIssuer chooses the token lifetime from the identity's kind.
type SessionIssuer struct {
	issuer      *token.Issuer
	standardTTL time.Duration
	guestTTL    time.Duration
}

func NewSessionIssuer(issuer *token.Issuer, standardTTL, guestTTL time.Duration) *SessionIssuer {
	return &SessionIssuer{issuer: issuer, standardTTL: standardTTL, guestTTL: guestTTL}
}

// TTL returns the session lifetime for kind.
func (s *SessionIssuer) TTL(kind model.IdentityKind) time.Duration {
	if kind == model.KindGuest {
		return s.guestTTL
	}
	return s.standardTTL
}

// Issue signs a session for u using the role and kind u currently holds.
func (s *SessionIssuer) Issue(u *model.User) (Session, error) {
	sub := token.SubjectOf(u)
	out, err := s.issuer.Issue(sub, s.TTL(sub.Kind))
	if err != nil {
		return Session{}, err
	}
	return Session{Token: out.Token, TokenID: out.ID, ExpiresAt: out.ExpiresAt, User: u}, nil
}
