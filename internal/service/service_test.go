package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/vastu-backend/internal/model"
	"github.com/iliyamo/vastu-backend/internal/testutil"
	"github.com/iliyamo/vastu-backend/internal/token"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type env struct {
	db       *testutil.DB
	roles    *RoleService
	guests   *GuestService
	auth     *AuthService
	consults *ConsultationService
	issuer   *token.Issuer
	events   *testutil.Events
	denylist *memDenylist
}

type memDenylist struct{ revoked map[string]time.Time }

func (m *memDenylist) Revoke(_ context.Context, id string, until time.Time) error {
	m.revoked[id] = until
	return nil
}

func (m *memDenylist) IsRevoked(_ context.Context, id string) bool {
	_, ok := m.revoked[id]
	return ok
}

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newEnv(t *testing.T, opts ...GuestOption) *env {
	t.Helper()
	db := testutil.NewDB()
	db.SeedRoles(model.RoleAdmin, model.RoleUser, model.RoleGuest)
	issuer := token.NewIssuer(testSecret, "vastu-test")
	sessions := NewSessionIssuer(issuer, time.Hour, 24*time.Hour)
	events := &testutil.Events{}
	roles := NewRoleService(db.Roles())
	deny := &memDenylist{revoked: map[string]time.Time{}}
	opts = append([]GuestOption{WithGuestEvents(events)}, opts...)
	return &env{
		db:     db,
		roles:  roles,
		guests: NewGuestService(db.Users(), roles, sessions, bcrypt.MinCost, discardLogger(), opts...),
		auth: NewAuthService(AuthDeps{
			Users:      db.Users(),
			Roles:      roles,
			Sessions:   sessions,
			Issuer:     issuer,
			Denylist:   deny,
			Events:     events,
			Logger:     discardLogger(),
			BcryptCost: bcrypt.MinCost,
			ResetTTL:   30 * time.Minute,
		}),
		consults: NewConsultationService(db.Consultations()),
		issuer:   issuer,
		events:   events,
		denylist: deny,
	}
}

func (e *env) guest(t *testing.T) *model.User {
	t.Helper()
	u, err := e.guests.CreateGuestUser(context.Background())
	require.NoError(t, err)
	return u
}

func (e *env) signup(t *testing.T, email string) *model.User {
	t.Helper()
	sess, err := e.auth.Signup(context.Background(), SignupInput{Email: email, Password: "password123"})
	require.NoError(t, err)
	return sess.User
}
