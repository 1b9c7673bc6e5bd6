package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/vastu-backend/internal/model"
	"github.com/iliyamo/vastu-backend/internal/queue"
	"github.com/iliyamo/vastu-backend/internal/repository"
	"github.com/iliyamo/vastu-backend/internal/token"
	"github.com/iliyamo/vastu-backend/internal/utils"
)

// AuthService handles credentialed accounts: signup, login, session
// refresh and revocation, and password recovery.
type AuthService struct {
	users      UserStore
	roles      *RoleService
	sessions   *SessionIssuer
	issuer     *token.Issuer
	denylist   token.Denylist
	events     EventPublisher
	logger     *slog.Logger
	bcryptCost int
	resetTTL   time.Duration
}

// AuthDeps groups the collaborators of AuthService. Denylist and Events
// are optional.
type AuthDeps struct {
	Users      UserStore
	Roles      *RoleService
	Sessions   *SessionIssuer
	Issuer     *token.Issuer
	Denylist   token.Denylist
	Events     EventPublisher
	Logger     *slog.Logger
	BcryptCost int
	ResetTTL   time.Duration
}

func NewAuthService(d AuthDeps) *AuthService {
	s := &AuthService{
		users:      d.Users,
		roles:      d.Roles,
		sessions:   d.Sessions,
		issuer:     d.Issuer,
		denylist:   d.Denylist,
		events:     d.Events,
		logger:     d.Logger,
		bcryptCost: d.BcryptCost,
		resetTTL:   d.ResetTTL,
	}
	if s.events == nil {
		s.events = nopPublisher{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.resetTTL <= 0 {
		s.resetTTL = 30 * time.Minute
	}
	return s
}

// SignupInput is a new credentialed account.
type SignupInput struct {
	Email    string
	Password string
	FullName string
	Phone    string
}

// Signup creates a credentialed identity with the user role and signs it in.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (Session, error) {
	if err := validateCredentials(in.Email, in.Password); err != nil {
		return Session{}, err
	}
	role, err := s.roles.EnsureRole(ctx, model.RoleUser)
	if err != nil {
		return Session{}, err
	}
	hash, err := utils.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return Session{}, err
	}
	u := &model.User{
		Email:        repository.NormalizeEmail(in.Email),
		FullName:     strings.TrimSpace(in.FullName),
		Phone:        strings.TrimSpace(in.Phone),
		PasswordHash: &hash,
		RoleID:       role.ID,
		RoleName:     role.Name,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return Session{}, ErrDuplicateEmail
		}
		return Session{}, err
	}
	sess, err := s.sessions.Issue(u)
	if err != nil {
		return Session{}, err
	}
	s.logger.Info("signup", slog.Uint64("user_id", u.ID))
	s.publish(queue.IdentityEvent{Type: queue.EventSignup, UserID: u.ID, Role: u.RoleName, EmailHash: EmailDigest(u.Email)})
	return sess, nil
}

// Login checks email and password. Every failure, including an unknown
// email, a guest or inactive identity, or a wrong password, is reported as
// ErrInvalidCredentials. The role in the issued token is read from the store.
func (s *AuthService) Login(ctx context.Context, email, password, ip string) (Session, error) {
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return Session{}, err
	}
	var hash *string
	if u != nil {
		hash = u.PasswordHash
	}
	ok := utils.VerifyPassword(hash, password, s.bcryptCost)
	if !ok || u == nil || !u.IsActive || u.IsGuest() {
		ev := queue.IdentityEvent{Type: queue.EventLoginFailed, EmailHash: EmailDigest(email), IP: ip}
		if u != nil {
			ev.UserID = u.ID
		}
		s.logger.Warn("login failed", slog.String("email_hash", ev.EmailHash), slog.String("ip", ip))
		s.publish(ev)
		return Session{}, ErrInvalidCredentials
	}
	sess, err := s.sessions.Issue(u)
	if err != nil {
		return Session{}, err
	}
	s.logger.Info("login", slog.Uint64("user_id", u.ID))
	s.publish(queue.IdentityEvent{Type: queue.EventLogin, UserID: u.ID, Role: u.RoleName, IP: ip})
	return sess, nil
}

// Me returns the stored identity behind a verified token.
func (s *AuthService) Me(ctx context.Context, userID uint64) (*model.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// Refresh re-reads the identity behind claims and issues a new session
// reflecting its current role and kind. The presented token is revoked.
func (s *AuthService) Refresh(ctx context.Context, claims *token.Claims) (Session, error) {
	id, err := claims.UserID()
	if err != nil {
		return Session{}, ErrUnauthorized
	}
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Session{}, ErrUnauthorized
		}
		return Session{}, err
	}
	if !u.IsActive {
		return Session{}, ErrUnauthorized
	}
	sess, err := s.sessions.Issue(u)
	if err != nil {
		return Session{}, err
	}
	s.revoke(ctx, claims)
	return sess, nil
}

// Logout revokes the presented token when a denylist is configured.
// Without one, logout is purely client side and always succeeds.
func (s *AuthService) Logout(ctx context.Context, claims *token.Claims) {
	if claims == nil {
		return
	}
	s.revoke(ctx, claims)
	id, _ := claims.UserID()
	s.publish(queue.IdentityEvent{Type: queue.EventLogout, UserID: id, Role: claims.Role})
}

func (s *AuthService) revoke(ctx context.Context, claims *token.Claims) {
	if s.denylist == nil || claims.ExpiresAt == nil {
		return
	}
	if err := s.denylist.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		s.logger.Warn("token revocation failed", slog.String("error", err.Error()))
	}
}

// ForgotPassword starts password recovery for email. It never reports
// whether the address is registered; the reset token travels only in the
// published event.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) {
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Error("forgot password lookup", slog.String("error", err.Error()))
		}
		return
	}
	if u.PasswordHash == nil || !u.IsActive {
		return
	}
	out, err := s.issuer.IssueReset(u.ID, utils.PasswordFingerprint(u.PasswordHash), s.resetTTL)
	if err != nil {
		s.logger.Error("issue reset token", slog.String("error", err.Error()))
		return
	}
	s.publish(queue.IdentityEvent{
		Type:       queue.EventResetRequested,
		UserID:     u.ID,
		EmailHash:  EmailDigest(u.Email),
		Recipient:  u.Email,
		ResetToken: out.Token,
	})
}

// ResetPassword sets a new password using a reset token. A token stops
// working as soon as the password it was issued against changes.
func (s *AuthService) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	claims, err := s.issuer.VerifyReset(rawToken)
	if err != nil {
		return ErrInvalidResetToken
	}
	id, _ := claims.UserID()
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return err
	}
	if u.PasswordHash == nil || utils.PasswordFingerprint(u.PasswordHash) != claims.Fingerprint {
		return ErrInvalidResetToken
	}
	hash, err := utils.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	u.PasswordHash = &hash
	if err := s.users.Save(ctx, u); err != nil {
		return err
	}
	s.logger.Info("password changed", slog.Uint64("user_id", u.ID))
	s.publish(queue.IdentityEvent{Type: queue.EventPasswordChanged, UserID: u.ID})
	return nil
}

func (s *AuthService) publish(ev queue.IdentityEvent) {
	ev.At = time.Now().UTC()
	if err := s.events.Publish(ev); err != nil {
		s.logger.Warn("identity event dropped", slog.String("type", ev.Type), slog.String("error", err.Error()))
	}
}
