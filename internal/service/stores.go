package service

import (
	"context"
	"time"

	"github.com/iliyamo/vastu-backend/internal/model"
	"github.com/iliyamo/vastu-backend/internal/queue"
)

// UserStore is the credential store the services depend on.
// *repository.UserRepo implements it.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id uint64) (*model.User, error)
	Create(ctx context.Context, u *model.User) error
	Save(ctx context.Context, u *model.User) error
	PromoteGuest(ctx context.Context, id uint64, email, fullName, hash string, roleID uint64) error
	DeleteGuestsCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RoleStore is implemented by *repository.RoleRepo.
type RoleStore interface {
	GetRoleByName(ctx context.Context, name string) (*model.Role, error)
	GetRoleByID(ctx context.Context, id uint64) (*model.Role, error)
	CreateRole(ctx context.Context, name string) (*model.Role, error)
	ListRoles(ctx context.Context) ([]model.Role, error)
	Grant(ctx context.Context, roleID uint64, page string, g model.Grant) (*model.PageAccess, error)
	ListGrants(ctx context.Context, roleID uint64) ([]model.PageAccess, error)
	FindGrantForUser(ctx context.Context, userID uint64, page string) (*model.PageAccess, error)
	ListAccessiblePages(ctx context.Context, userID uint64) ([]model.PageAccess, error)
}

// ConsultationStore is implemented by *repository.ConsultationRepo.
type ConsultationStore interface {
	Create(ctx context.Context, c *model.Consultation) error
	ListByUser(ctx context.Context, userID uint64) ([]model.Consultation, error)
}

// EventPublisher hands identity events to the broker. Publish must not
// block the request path.
type EventPublisher interface {
	Publish(ev queue.IdentityEvent) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(queue.IdentityEvent) error { return nil }
