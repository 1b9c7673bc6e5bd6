// Package token issues and verifies the HS256 session tokens handed to
// clients, and the short-lived reset tokens mailed during password recovery.
package token

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/iliyamo/vastu-backend/internal/model"
)

const (
	AudienceSession = "session"
	AudienceReset   = "password-reset"
)

// ErrInvalid is the only error Verify returns. Malformed input, a bad
// signature, an unexpected algorithm, expiry and missing claims are not
// distinguished.
var ErrInvalid = errors.New("invalid token")

// Claims is the payload of every token this package signs.
type Claims struct {
	jwt.RegisteredClaims
	Role        string             `json:"role,omitempty"`
	Kind        model.IdentityKind `json:"kind,omitempty"`
	Fingerprint string             `json:"pwf,omitempty"`
}

// UserID parses the subject claim.
func (c *Claims) UserID() (uint64, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalid
	}
	return id, nil
}

// IsGuest reports whether the token was issued to a guest identity.
func (c *Claims) IsGuest() bool { return c.Kind == model.KindGuest }

// Subject is what a session token asserts about its holder.
type Subject struct {
	UserID uint64
	Role   string
	Kind   model.IdentityKind
}

// SubjectOf snapshots u for token issuance.
func SubjectOf(u *model.User) Subject {
	return Subject{UserID: u.ID, Role: u.RoleName, Kind: u.Kind()}
}

// Issued is a signed token with its id and expiry.
type Issued struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

// Issuer signs and verifies tokens with one shared secret.
type Issuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// Option customizes an Issuer.
type Option func(*Issuer)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

func NewIssuer(secret, issuer string, opts ...Option) *Issuer {
	i := &Issuer{secret: []byte(secret), issuer: issuer, now: time.Now}
	for _, o := range opts {
		o(i)
	}
	return i
}

func (i *Issuer) sign(c *Claims, audience string, ttl time.Duration) (Issued, error) {
	now := i.now().UTC()
	exp := now.Add(ttl)
	c.ID = uuid.NewString()
	c.Issuer = i.issuer
	c.Audience = jwt.ClaimStrings{audience}
	c.IssuedAt = jwt.NewNumericDate(now)
	c.ExpiresAt = jwt.NewNumericDate(exp)
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
	if err != nil {
		return Issued{}, err
	}
	return Issued{Token: signed, ID: c.ID, ExpiresAt: exp}, nil
}

// Issue signs a session token for s valid for ttl.
func (i *Issuer) Issue(s Subject, ttl time.Duration) (Issued, error) {
	c := &Claims{Role: s.Role, Kind: s.Kind}
	c.Subject = strconv.FormatUint(s.UserID, 10)
	return i.sign(c, AudienceSession, ttl)
}

// IssueReset signs a password reset token bound to the fingerprint of the
// user's current password hash.
func (i *Issuer) IssueReset(userID uint64, fingerprint string, ttl time.Duration) (Issued, error) {
	c := &Claims{Fingerprint: fingerprint}
	c.Subject = strconv.FormatUint(userID, 10)
	return i.sign(c, AudienceReset, ttl)
}

func (i *Issuer) parse(raw, audience string) (*Claims, error) {
	c := &Claims{}
	_, err := jwt.ParseWithClaims(raw, c,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithAudience(audience),
		jwt.WithIssuer(i.issuer),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, ErrInvalid
	}
	if _, err := c.UserID(); err != nil {
		return nil, ErrInvalid
	}
	return c, nil
}

// Verify checks a session token and returns its claims.
func (i *Issuer) Verify(raw string) (*Claims, error) {
	c, err := i.parse(raw, AudienceSession)
	if err != nil {
		return nil, err
	}
	if c.Kind != model.KindGuest && c.Kind != model.KindCredentialed {
		return nil, ErrInvalid
	}
	return c, nil
}

// VerifyReset checks a password reset token. The caller compares the
// fingerprint with the stored hash.
func (i *Issuer) VerifyReset(raw string) (*Claims, error) {
	return i.parse(raw, AudienceReset)
}
