package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/vastu-backend/internal/model"
	"github.com/iliyamo/vastu-backend/internal/service"
	"github.com/iliyamo/vastu-backend/internal/testutil"
	"github.com/iliyamo/vastu-backend/internal/token"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type revokedSet map[string]bool

func (r revokedSet) Revoke(_ context.Context, id string, _ time.Time) error {
	r[id] = true
	return nil
}

func (r revokedSet) IsRevoked(_ context.Context, id string) bool { return r[id] }

func whoami(c echo.Context) error {
	id, ok := UserIDFrom(c)
	if !ok {
		return c.JSON(http.StatusOK, echo.Map{"anonymous": true})
	}
	return c.JSON(http.StatusOK, echo.Map{"user_id": id, "role": RoleFrom(c)})
}

func do(e *echo.Echo, method, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func issue(t *testing.T, iss *token.Issuer, id uint64, role string, kind model.IdentityKind, ttl time.Duration) token.Issued {
	t.Helper()
	out, err := iss.Issue(token.Subject{UserID: id, Role: role, Kind: kind}, ttl)
	require.NoError(t, err)
	return out
}

func TestRequireAuthenticatedRejectsUniformly(t *testing.T) {
	iss := token.NewIssuer(testSecret, "vastu-test")
	e := echo.New()
	gate := NewGate(iss, revokedSet{}, quiet)
	e.GET("/me", whoami, gate.RequireAuthenticated())

	past := token.NewIssuer(testSecret, "vastu-test", token.WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) }))
	expired := issue(t, past, 1, "user", model.KindCredentialed, time.Minute)
	foreign := issue(t, token.NewIssuer("ffffffffffffffffffffffffffffffff", "vastu-test"), 1, "admin", model.KindCredentialed, time.Hour)

	var bodies []string
	for _, bearer := range []string{"", "garbage", expired.Token, foreign.Token} {
		rec := do(e, http.MethodGet, "/me", bearer)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		bodies = append(bodies, rec.Body.String())
	}
	for _, b := range bodies {
		assert.Equal(t, bodies[0], b)
	}

	good := issue(t, iss, 7, "user", model.KindCredentialed, time.Hour)
	rec := do(e, http.MethodGet, "/me", good.Token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":7,"role":"user"}`, rec.Body.String())
}

func TestRequireAuthenticatedHonoursDenylist(t *testing.T) {
	iss := token.NewIssuer(testSecret, "vastu-test")
	revoked := revokedSet{}
	e := echo.New()
	e.GET("/me", whoami, NewGate(iss, revoked, quiet).RequireAuthenticated())

	tok := issue(t, iss, 3, "user", model.KindCredentialed, time.Hour)
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/me", tok.Token).Code)
	revoked[tok.ID] = true
	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/me", tok.Token).Code)
}

func TestOptionalAuthenticated(t *testing.T) {
	iss := token.NewIssuer(testSecret, "vastu-test")
	e := echo.New()
	e.GET("/check", whoami, NewGate(iss, nil, quiet).OptionalAuthenticated())

	assert.JSONEq(t, `{"anonymous":true}`, do(e, http.MethodGet, "/check", "").Body.String())
	assert.JSONEq(t, `{"anonymous":true}`, do(e, http.MethodGet, "/check", "bad.token.here").Body.String())
	tok := issue(t, iss, 9, "guest", model.KindGuest, time.Hour)
	assert.JSONEq(t, `{"user_id":9,"role":"guest"}`, do(e, http.MethodGet, "/check", tok.Token).Body.String())
}

func TestRequireRole(t *testing.T) {
	iss := token.NewIssuer(testSecret, "vastu-test")
	gate := NewGate(iss, nil, quiet)
	e := echo.New()
	e.GET("/admin", whoami, gate.RequireAuthenticated(), gate.RequireRole(model.RoleAdmin))

	user := issue(t, iss, 1, model.RoleUser, model.KindCredentialed, time.Hour)
	admin := issue(t, iss, 2, model.RoleAdmin, model.KindCredentialed, time.Hour)

	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/admin", "").Code)
	rec := do(e, http.MethodGet, "/admin", user.Token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"error":"forbidden","message":"insufficient permissions"}`, rec.Body.String())
	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/admin", admin.Token).Code)
}

type stubChecker struct {
	allow bool
	err   error
	seen  model.Capability
}

func (s *stubChecker) Check(_ context.Context, _ uint64, _ string, c model.Capability) (bool, error) {
	s.seen = c
	return s.allow, s.err
}

func TestRequirePermission(t *testing.T) {
	iss := token.NewIssuer(testSecret, "vastu-test")
	gate := NewGate(iss, nil, quiet)
	tok := issue(t, iss, 5, model.RoleUser, model.KindCredentialed, time.Hour)

	cases := []struct {
		name    string
		checker *stubChecker
		want    int
	}{
		{"granted", &stubChecker{allow: true}, http.StatusOK},
		{"denied", &stubChecker{}, http.StatusForbidden},
		{"store error", &stubChecker{err: errors.New("db down")}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			e.GET("/reports", whoami, gate.RequireAuthenticated(), gate.RequirePermission(tc.checker, "reports", model.CapRead))
			assert.Equal(t, tc.want, do(e, http.MethodGet, "/reports", tok.Token).Code)
			assert.Equal(t, model.CapRead, tc.checker.seen)
		})
	}
}

func TestAutoGuest(t *testing.T) {
	db := testutil.NewDB()
	db.SeedRoles(model.RoleGuest, model.RoleUser)
	iss := token.NewIssuer(testSecret, "vastu-test")
	roles := service.NewRoleService(db.Roles())
	guests := service.NewGuestService(db.Users(), roles, service.NewSessionIssuer(iss, time.Hour, 24*time.Hour), bcrypt.MinCost, quiet)

	gate := NewGate(iss, nil, quiet)
	e := echo.New()
	e.POST("/consultations", whoami, gate.OptionalAuthenticated(), gate.AutoGuest(guests))

	rec := do(e, http.MethodPost, "/consultations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	guestToken := rec.Header().Get(HeaderGuestToken)
	require.NotEmpty(t, guestToken)
	id, err := strconv.ParseUint(rec.Header().Get(HeaderGuestUserID), 10, 64)
	require.NoError(t, err)
	assert.Equal(t, 1, db.UserCount())

	claims, err := iss.Verify(guestToken)
	require.NoError(t, err)
	assert.True(t, claims.IsGuest())
	sub, _ := claims.UserID()
	assert.Equal(t, id, sub)

	// Presenting the guest token reuses the identity.
	rec = do(e, http.MethodPost, "/consultations", guestToken)
	assert.Empty(t, rec.Header().Get(HeaderGuestToken))
	assert.Equal(t, 1, db.UserCount())
}

type failingCreator struct{}

func (failingCreator) CreateGuestUser(context.Context) (*model.User, error) {
	return nil, errors.New("db down")
}

func (failingCreator) CreateGuestSession(context.Context, *model.User) (service.Session, error) {
	return service.Session{}, errors.New("unreachable")
}

func TestAutoGuestContinuesAnonymouslyOnFailure(t *testing.T) {
	gate := NewGate(token.NewIssuer(testSecret, "vastu-test"), nil, quiet)
	e := echo.New()
	e.POST("/consultations", whoami, gate.OptionalAuthenticated(), gate.AutoGuest(failingCreator{}))
	rec := do(e, http.MethodPost, "/consultations", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"anonymous":true}`, rec.Body.String())
}
