package service

import (
	"context"
	"errors"
	"strings"

	"github.com/iliyamo/vastu-backend/internal/model"
	"github.com/iliyamo/vastu-backend/internal/repository"
)

// RoleService owns roles and page grants.
type RoleService struct {
	store RoleStore
}

func NewRoleService(store RoleStore) *RoleService {
	return &RoleService{store: store}
}

func validRoleName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", invalidField("name", "required")
	}
	if len(name) > 64 {
		return "", invalidField("name", "at most 64 characters")
	}
	return name, nil
}

// EnsureRole returns the role called name, creating it if needed. Two
// callers racing on the same name both get the single stored row.
func (s *RoleService) EnsureRole(ctx context.Context, name string) (*model.Role, error) {
	name, err := validRoleName(name)
	if err != nil {
		return nil, err
	}
	r, err := s.store.GetRoleByName(ctx, name)
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	r, err = s.store.CreateRole(ctx, name)
	if errors.Is(err, repository.ErrRoleExists) {
		return s.store.GetRoleByName(ctx, name)
	}
	return r, err
}

// CreateRole fails with ErrRoleExists when name is taken.
func (s *RoleService) CreateRole(ctx context.Context, name string) (*model.Role, error) {
	name, err := validRoleName(name)
	if err != nil {
		return nil, err
	}
	r, err := s.store.CreateRole(ctx, name)
	if errors.Is(err, repository.ErrRoleExists) {
		return nil, ErrRoleExists
	}
	return r, err
}

// RequireRole loads a role the code depends on, reporting ErrRoleMissing
// when it has not been seeded.
func (s *RoleService) RequireRole(ctx context.Context, name string) (*model.Role, error) {
	r, err := s.store.GetRoleByName(ctx, name)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrRoleMissing
	}
	return r, err
}

func (s *RoleService) ListRoles(ctx context.Context) ([]model.Role, error) {
	return s.store.ListRoles(ctx)
}

// Grant writes the full capability set for (roleID, page).
func (s *RoleService) Grant(ctx context.Context, roleID uint64, page string, g model.Grant) (*model.PageAccess, error) {
	page = strings.TrimSpace(page)
	if page == "" {
		return nil, invalidField("page_name", "required")
	}
	p, err := s.store.Grant(ctx, roleID, page, g)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrRoleNotFound
	}
	return p, err
}

func (s *RoleService) ListGrants(ctx context.Context, roleID uint64) ([]model.PageAccess, error) {
	if _, err := s.store.GetRoleByID(ctx, roleID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, err
	}
	return s.store.ListGrants(ctx, roleID)
}

// AccessiblePages lists the pages the user's role may access.
func (s *RoleService) AccessiblePages(ctx context.Context, userID uint64) ([]model.PageAccess, error) {
	return s.store.ListAccessiblePages(ctx, userID)
}

// Check reports whether the user's current role grants capability on page.
// Anything not explicitly granted is denied: an unknown user, a missing
// grant row and an unrecognised capability all yield false.
func (s *RoleService) Check(ctx context.Context, userID uint64, page string, capability model.Capability) (bool, error) {
	c, ok := model.ParseCapability(string(capability))
	if !ok {
		return false, nil
	}
	p, err := s.store.FindGrantForUser(ctx, userID, page)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return p.Allows(c), nil
}
