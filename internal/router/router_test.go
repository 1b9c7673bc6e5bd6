package router

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/vastu-backend/internal/config"
	"github.com/iliyamo/vastu-backend/internal/handler"
	"github.com/iliyamo/vastu-backend/internal/middleware"
	"github.com/iliyamo/vastu-backend/internal/model"
	"github.com/iliyamo/vastu-backend/internal/queue"
	"github.com/iliyamo/vastu-backend/internal/service"
	"github.com/iliyamo/vastu-backend/internal/testutil"
	"github.com/iliyamo/vastu-backend/internal/token"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type revokedSet map[string]bool

func (r revokedSet) Revoke(_ context.Context, id string, _ time.Time) error {
	r[id] = true
	return nil
}

func (r revokedSet) IsRevoked(_ context.Context, id string) bool { return r[id] }

type app struct {
	e      *echo.Echo
	db     *testutil.DB
	roles  map[string]model.Role
	events *testutil.Events
	auth   *service.AuthService
}

func newApp(t *testing.T) *app {
	t.Helper()
	return newAppWithRoles(t, model.RoleAdmin, model.RoleUser, model.RoleGuest)
}

func newAppWithRoles(t *testing.T, seeded ...string) *app {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db := testutil.NewDB()
	roles := db.SeedRoles(seeded...)
	ctx := context.Background()
	for _, name := range []string{model.RoleUser, model.RoleGuest} {
		r, ok := roles[name]
		if !ok {
			continue
		}
		_, err := db.Roles().Grant(ctx, r.ID, PageConsultations, model.Grant{CanAccess: true, CanRead: true})
		require.NoError(t, err)
	}

	issuer := token.NewIssuer(testSecret, "vastu-test")
	deny := revokedSet{}
	events := &testutil.Events{}
	sessions := service.NewSessionIssuer(issuer, time.Hour, 24*time.Hour)
	roleSvc := service.NewRoleService(db.Roles())
	guests := service.NewGuestService(db.Users(), roleSvc, sessions, bcrypt.MinCost, logger, service.WithGuestEvents(events))
	auth := service.NewAuthService(service.AuthDeps{
		Users:      db.Users(),
		Roles:      roleSvc,
		Sessions:   sessions,
		Issuer:     issuer,
		Denylist:   deny,
		Events:     events,
		Logger:     logger,
		BcryptCost: bcrypt.MinCost,
		ResetTTL:   30 * time.Minute,
	})

	e := echo.New()
	gate := middleware.NewGate(issuer, deny, logger)
	limits := middleware.NewRateLimits(config.RateLimitConfig{}, nil, logger)
	RegisterRoutes(e)
	RegisterAuth(e, handler.NewAuthHandler(auth, guests, logger), gate, limits)
	RegisterAdmin(e, handler.NewRoleHandler(roleSvc, logger), gate, limits)
	RegisterConsultations(e, handler.NewConsultationHandler(service.NewConsultationService(db.Consultations()), logger), gate, guests, roleSvc, limits)
	return &app{e: e, db: db, roles: roles, events: events, auth: auth}
}

func (a *app) do(method, path, bearer, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

type sessionBody struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	IsGuest     bool   `json:"is_guest"`
	User        struct {
		ID      uint64 `json:"id"`
		Email   string `json:"email"`
		Role    string `json:"role"`
		IsGuest bool   `json:"is_guest"`
	} `json:"user"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (a *app) signup(t *testing.T, email string) sessionBody {
	t.Helper()
	rec := a.do(http.MethodPost, "/auth/signup", "", `{"email":"`+email+`","password":"password123"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[sessionBody](t, rec)
}

func (a *app) admin(t *testing.T) string {
	t.Helper()
	s := a.signup(t, "root@example.com")
	ctx := context.Background()
	u, err := a.db.Users().FindByID(ctx, s.User.ID)
	require.NoError(t, err)
	u.RoleID = a.roles[model.RoleAdmin].ID
	require.NoError(t, a.db.Users().Save(ctx, u))

	rec := a.do(http.MethodPost, "/auth/login", "", `{"email":"root@example.com","password":"password123"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	return decode[sessionBody](t, rec).AccessToken
}

func TestHealthAndMetrics(t *testing.T) {
	a := newApp(t)
	rec := a.do(http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = a.do(http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSignupLoginMe(t *testing.T) {
	a := newApp(t)
	s := a.signup(t, "Ana@Example.com")
	assert.Equal(t, "bearer", s.TokenType)
	assert.False(t, s.IsGuest)
	assert.Equal(t, "ana@example.com", s.User.Email)
	assert.Equal(t, model.RoleUser, s.User.Role)

	rec := a.do(http.MethodPost, "/auth/signup", "", `{"email":"ana@example.com","password":"password123"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(http.MethodPost, "/auth/signup", "", `{"email":"not-an-email","password":"short"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}](t, rec)
	assert.Equal(t, "validation_failed", body.Error)
	assert.Contains(t, body.Fields, "email")
	assert.Contains(t, body.Fields, "password")

	rec = a.do(http.MethodPost, "/auth/login", "", `{"email":"ana@example.com","password":"password123"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	tok := decode[sessionBody](t, rec).AccessToken

	rec = a.do(http.MethodGet, "/auth/me", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[struct {
		User struct {
			ID uint64 `json:"id"`
		} `json:"user"`
	}](t, rec)
	assert.Equal(t, s.User.ID, me.User.ID)

	rec = a.do(http.MethodGet, "/auth/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginFailuresLookAlike(t *testing.T) {
	a := newApp(t)
	a.signup(t, "ana@example.com")

	wrong := a.do(http.MethodPost, "/auth/login", "", `{"email":"ana@example.com","password":"nope-nope"}`)
	unknown := a.do(http.MethodPost, "/auth/login", "", `{"email":"ghost@example.com","password":"nope-nope"}`)
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, wrong.Code, unknown.Code)
	assert.JSONEq(t, wrong.Body.String(), unknown.Body.String())
}

func TestLogoutRevokesToken(t *testing.T) {
	a := newApp(t)
	tok := a.signup(t, "ana@example.com").AccessToken

	rec := a.do(http.MethodPost, "/auth/logout", tok, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = a.do(http.MethodGet, "/auth/me", tok, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(http.MethodPost, "/auth/logout", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGuestLifecycleOverHTTP(t *testing.T) {
	a := newApp(t)

	rec := a.do(http.MethodGet, "/auth/guest/check", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"authenticated":false,"is_guest":false}`, rec.Body.String())

	rec = a.do(http.MethodPost, "/auth/guest/create", "", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	g := decode[sessionBody](t, rec)
	assert.True(t, g.IsGuest)
	assert.Empty(t, g.User.Email)
	assert.Equal(t, model.RoleGuest, g.User.Role)

	rec = a.do(http.MethodGet, "/auth/guest/check", g.AccessToken, "")
	check := decode[struct {
		Authenticated bool   `json:"authenticated"`
		IsGuest       bool   `json:"is_guest"`
		UserID        uint64 `json:"user_id"`
	}](t, rec)
	assert.True(t, check.Authenticated)
	assert.True(t, check.IsGuest)
	assert.Equal(t, g.User.ID, check.UserID)

	rec = a.do(http.MethodPost, "/consultations", g.AccessToken, `{"name":"Ana","message":"north facing plot"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(http.MethodPost, "/auth/guest/migrate", g.AccessToken, `{"email":"ana@example.com","password":"password123","full_name":"Ana"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	m := decode[sessionBody](t, rec)
	assert.Equal(t, g.User.ID, m.User.ID)
	assert.False(t, m.IsGuest)
	assert.Equal(t, model.RoleUser, m.User.Role)

	rec = a.do(http.MethodPost, "/auth/guest/migrate", m.AccessToken, `{"email":"other@example.com","password":"password123"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodGet, "/consultations/mine", m.AccessToken, "")
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decode[struct {
		Consultations []struct {
			UserID uint64 `json:"user_id"`
		} `json:"consultations"`
	}](t, rec)
	require.Len(t, mine.Consultations, 1)
	assert.Equal(t, g.User.ID, mine.Consultations[0].UserID)

	rec = a.do(http.MethodPost, "/auth/login", "", `{"email":"ana@example.com","password":"password123"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAnonymousConsultationGetsGuest(t *testing.T) {
	a := newApp(t)
	rec := a.do(http.MethodPost, "/consultations", "", `{"name":"Ana","message":"kitchen placement"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	tok := rec.Header().Get(middleware.HeaderGuestToken)
	require.NotEmpty(t, tok)
	id, err := strconv.ParseUint(rec.Header().Get(middleware.HeaderGuestUserID), 10, 64)
	require.NoError(t, err)

	body := decode[struct {
		UserID uint64 `json:"user_id"`
		Status string `json:"status"`
		Type   string `json:"type"`
	}](t, rec)
	assert.Equal(t, id, body.UserID)
	assert.Equal(t, model.ConsultationPending, body.Status)
	assert.Equal(t, "general", body.Type)

	rec = a.do(http.MethodGet, "/consultations/mine", tok, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(http.MethodPost, "/consultations", "", `{"name":"Ana"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConsultationListingNeedsGrant(t *testing.T) {
	a := newApp(t)
	tok := a.admin(t)
	// admin has no consultations grant in this fixture
	rec := a.do(http.MethodGet, "/consultations/mine", tok, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPasswordResetOverHTTP(t *testing.T) {
	a := newApp(t)
	a.signup(t, "ana@example.com")

	known := a.do(http.MethodPost, "/auth/forgot-password", "", `{"email":"ana@example.com"}`)
	unknown := a.do(http.MethodPost, "/auth/forgot-password", "", `{"email":"nobody@example.com"}`)
	assert.Equal(t, http.StatusOK, known.Code)
	assert.JSONEq(t, known.Body.String(), unknown.Body.String())

	var reset string
	for _, ev := range a.events.All() {
		if ev.Type == queue.EventResetRequested {
			reset = ev.ResetToken
		}
	}
	require.NotEmpty(t, reset)

	rec := a.do(http.MethodPost, "/auth/reset-password", "", `{"token":"`+reset+`","password":"brand-new-pass"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = a.do(http.MethodPost, "/auth/reset-password", "", `{"token":"`+reset+`","password":"another-pass"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(http.MethodPost, "/auth/login", "", `{"email":"ana@example.com","password":"brand-new-pass"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminRoutes(t *testing.T) {
	a := newApp(t)
	userTok := a.signup(t, "plain@example.com").AccessToken
	tok := a.admin(t)

	rec := a.do(http.MethodGet, "/roles", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = a.do(http.MethodGet, "/roles", userTok, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodPost, "/roles", tok, `{"name":"consultant"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	role := decode[struct {
		ID uint64 `json:"id"`
	}](t, rec)
	rec = a.do(http.MethodPost, "/roles", tok, `{"name":"consultant"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(http.MethodGet, "/roles", tok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"consultant"`)

	grant := `{"role_id":` + strconv.FormatUint(role.ID, 10) + `,"page_name":"dashboard","can_access":true,"can_read":true}`
	rec = a.do(http.MethodPost, "/page-access", tok, grant)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(http.MethodPost, "/page-access", tok, `{"role_id":9999,"page_name":"dashboard"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(http.MethodGet, "/page-access/"+strconv.FormatUint(role.ID, 10), tok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"dashboard"`)

	rec = a.do(http.MethodGet, "/page-access/abc", tok, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	plain, err := a.auth.Login(context.Background(), "plain@example.com", "password123", "")
	require.NoError(t, err)
	uid := strconv.FormatUint(plain.User.ID, 10)

	rec = a.do(http.MethodGet, "/user-page-access/"+uid, tok, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), PageConsultations)

	cases := map[string]bool{
		"/check-permission/" + uid + "/consultations/read":   true,
		"/check-permission/" + uid + "/consultations/delete": false,
		"/check-permission/" + uid + "/dashboard/read":       false,
		"/check-permission/" + uid + "/consultations/fly":    false,
	}
	for path, want := range cases {
		rec = a.do(http.MethodGet, path, tok, "")
		require.Equal(t, http.StatusOK, rec.Code, path)
		got := decode[struct {
			HasPermission bool `json:"has_permission"`
		}](t, rec)
		assert.Equal(t, want, got.HasPermission, path)
	}
}

func TestMigrateWithUnseededUserRole(t *testing.T) {
	a := newAppWithRoles(t, model.RoleGuest)

	rec := a.do(http.MethodPost, "/auth/guest/create", "", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	g := decode[sessionBody](t, rec)

	rec = a.do(http.MethodPost, "/auth/guest/migrate", g.AccessToken, `{"email":"ana@example.com","password":"password123"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error":"invalid_state"`)

	rec = a.do(http.MethodGet, "/auth/guest/check", g.AccessToken, "")
	assert.Contains(t, rec.Body.String(), `"is_guest":true`)
}
