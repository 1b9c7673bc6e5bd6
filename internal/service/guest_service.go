package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/vastu-backend/internal/model"
	"github.com/iliyamo/vastu-backend/internal/queue"
	"github.com/iliyamo/vastu-backend/internal/repository"
	"github.com/iliyamo/vastu-backend/internal/utils"
)

// GuestEmailDomain is the domain of synthesized guest addresses. Nothing is
// ever delivered there.
const GuestEmailDomain = "placeholder.local"

// GuestService manages anonymous identities: creation, sessions,
// promotion to a full account and the retention sweep.
type GuestService struct {
	users      UserStore
	roles      *RoleService
	sessions   *SessionIssuer
	events     EventPublisher
	logger     *slog.Logger
	bcryptCost int
	now        func() time.Time
	newID      func() string
}

// GuestOption customizes a GuestService.
type GuestOption func(*GuestService)

// WithGuestClock replaces time.Now.
func WithGuestClock(now func() time.Time) GuestOption {
	return func(s *GuestService) { s.now = now }
}

// WithGuestIDs replaces the uuid generator used for guest emails and markers.
func WithGuestIDs(newID func() string) GuestOption {
	return func(s *GuestService) { s.newID = newID }
}

// WithGuestEvents sets the publisher for guest lifecycle events.
func WithGuestEvents(p EventPublisher) GuestOption {
	return func(s *GuestService) {
		if p != nil {
			s.events = p
		}
	}
}

func NewGuestService(users UserStore, roles *RoleService, sessions *SessionIssuer, bcryptCost int, logger *slog.Logger, opts ...GuestOption) *GuestService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &GuestService{
		users:      users,
		roles:      roles,
		sessions:   sessions,
		events:     nopPublisher{},
		logger:     logger,
		bcryptCost: bcryptCost,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CreateGuestUser persists a new guest identity with the guest role.
func (s *GuestService) CreateGuestUser(ctx context.Context) (*model.User, error) {
	role, err := s.roles.EnsureRole(ctx, model.RoleGuest)
	if err != nil {
		return nil, fmt.Errorf("guest role: %w", err)
	}
	id := s.newID()
	u := &model.User{
		Email:        "guest_" + id + "@" + GuestEmailDomain,
		ExternalAuth: &model.ExternalAuth{Provider: model.ProviderGuest, ProviderID: id},
		RoleID:       role.ID,
		RoleName:     role.Name,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	s.logger.Info("guest created", slog.Uint64("user_id", u.ID))
	s.publish(queue.IdentityEvent{Type: queue.EventGuestCreated, UserID: u.ID, Role: u.RoleName})
	return u, nil
}

// CreateGuestSession issues a guest-lifetime token for u.
func (s *GuestService) CreateGuestSession(_ context.Context, u *model.User) (Session, error) {
	if !u.IsGuest() {
		return Session{}, ErrNotAGuest
	}
	return s.sessions.Issue(u)
}

// IsGuest reports whether u is a guest identity.
func (s *GuestService) IsGuest(u *model.User) bool {
	return u.IsGuest()
}

// MigrateInput carries the credentials a guest chooses when signing up.
type MigrateInput struct {
	Email    string
	Password string
	FullName string
}

// Migrate promotes guest to a credentialed identity in place. The id is
// kept, so every row the guest owns stays attached. On any error the
// stored identity is unchanged.
func (s *GuestService) Migrate(ctx context.Context, guest *model.User, in MigrateInput) (*model.User, Session, error) {
	current, err := s.users.FindByID(ctx, guest.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, Session{}, ErrUserNotFound
		}
		return nil, Session{}, err
	}
	if !current.IsGuest() {
		return nil, Session{}, ErrNotAGuest
	}
	if err := validateCredentials(in.Email, in.Password); err != nil {
		return nil, Session{}, err
	}
	email := repository.NormalizeEmail(in.Email)

	owner, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil && owner.ID != current.ID:
		return nil, Session{}, ErrDuplicateEmail
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return nil, Session{}, err
	}

	role, err := s.roles.RequireRole(ctx, model.RoleUser)
	if err != nil {
		return nil, Session{}, err
	}
	hash, err := utils.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, Session{}, err
	}
	fullName := in.FullName
	if fullName == "" {
		fullName = current.FullName
	}

	err = s.users.PromoteGuest(ctx, current.ID, email, fullName, hash, role.ID)
	switch {
	case errors.Is(err, repository.ErrEmailExists):
		return nil, Session{}, ErrDuplicateEmail
	case errors.Is(err, repository.ErrConflict):
		// Someone else promoted or removed this guest first.
		return nil, Session{}, ErrNotAGuest
	case err != nil:
		return nil, Session{}, err
	}

	migrated, err := s.users.FindByID(ctx, current.ID)
	if err != nil {
		return nil, Session{}, err
	}
	sess, err := s.sessions.Issue(migrated)
	if err != nil {
		return nil, Session{}, err
	}
	s.logger.Info("guest migrated", slog.Uint64("user_id", migrated.ID))
	s.publish(queue.IdentityEvent{Type: queue.EventGuestMigrated, UserID: migrated.ID, Role: migrated.RoleName, EmailHash: EmailDigest(email)})
	return migrated, sess, nil
}

// CleanupExpiredGuests deletes guest identities created more than
// maxAgeDays ago, together with everything they own.
func (s *GuestService) CleanupExpiredGuests(ctx context.Context, maxAgeDays int) (int64, error) {
	if maxAgeDays < 1 {
		return 0, invalidField("days", "must be at least 1")
	}
	cutoff := s.now().UTC().Add(-time.Duration(maxAgeDays) * 24 * time.Hour)
	n, err := s.users.DeleteGuestsCreatedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.logger.Info("expired guests removed", slog.Int64("count", n), slog.Time("cutoff", cutoff))
	if n > 0 {
		s.publish(queue.IdentityEvent{Type: queue.EventGuestsSwept, Count: n})
	}
	return n, nil
}

func (s *GuestService) publish(ev queue.IdentityEvent) {
	ev.At = s.now().UTC()
	if err := s.events.Publish(ev); err != nil {
		s.logger.Warn("identity event dropped", slog.String("type", ev.Type), slog.String("error", err.Error()))
	}
}
