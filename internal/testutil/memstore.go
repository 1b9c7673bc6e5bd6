// Package testutil provides in-memory stand-ins for the MySQL repositories.
// They reproduce the constraint behaviour the services rely on: unique
// emails and role names, unique (role, page) grants, the conditional guest
// promotion and cascading deletes.
package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/vastu-backend/internal/model"
	"github.com/iliyamo/vastu-backend/internal/queue"
	"github.com/iliyamo/vastu-backend/internal/repository"
)

// DB is the shared state behind the three store views.
type DB struct {
	mu            sync.Mutex
	now           func() time.Time
	users         map[uint64]model.User
	roles         map[uint64]model.Role
	grants        map[uint64]model.PageAccess
	consultations map[uint64]model.Consultation
	nextID        uint64

	// RoleCreateHook runs inside CreateRole before the uniqueness check,
	// with the lock released, so tests can interleave concurrent inserts.
	RoleCreateHook func(name string)
}

func NewDB() *DB {
	return &DB{
		now:           time.Now,
		users:         map[uint64]model.User{},
		roles:         map[uint64]model.Role{},
		grants:        map[uint64]model.PageAccess{},
		consultations: map[uint64]model.Consultation{},
	}
}

// SetClock changes the time stamped on new rows.
func (d *DB) SetClock(now func() time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.now = now
}

func (d *DB) id() uint64 {
	d.nextID++
	return d.nextID
}

// SeedRoles inserts the named roles, skipping existing ones, and returns
// them keyed by name.
func (d *DB) SeedRoles(names ...string) map[string]model.Role {
	out := map[string]model.Role{}
	for _, n := range names {
		r, err := d.Roles().CreateRole(context.Background(), n)
		if err != nil {
			r, _ = d.Roles().GetRoleByName(context.Background(), n)
		}
		out[n] = *r
	}
	return out
}

// UserCount returns the number of stored identities.
func (d *DB) UserCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.users)
}

// RoleCount returns how many roles carry name.
func (d *DB) RoleCount(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, r := range d.roles {
		if r.Name == name {
			n++
		}
	}
	return n
}

// BackdateUser rewrites a user's created_at.
func (d *DB) BackdateUser(id uint64, at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u := d.users[id]
	u.CreatedAt = at
	d.users[id] = u
}

func (d *DB) Users() *Users                 { return &Users{d} }
func (d *DB) Roles() *Roles                 { return &Roles{d} }
func (d *DB) Consultations() *Consultations { return &Consultations{d} }

func cloneUser(u model.User, roles map[uint64]model.Role) *model.User {
	if u.PasswordHash != nil {
		h := *u.PasswordHash
		u.PasswordHash = &h
	}
	if u.ExternalAuth != nil {
		e := *u.ExternalAuth
		u.ExternalAuth = &e
	}
	u.RoleName = roles[u.RoleID].Name
	return &u
}

// Users implements service.UserStore.
type Users struct{ d *DB }

func (s *Users) emailTaken(email string, except uint64) bool {
	for id, u := range s.d.users {
		if id != except && u.Email == email {
			return true
		}
	}
	return false
}

func (s *Users) FindByEmail(_ context.Context, email string) (*model.User, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	email = repository.NormalizeEmail(email)
	for _, u := range s.d.users {
		if u.Email == email {
			return cloneUser(u, s.d.roles), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Users) FindByID(_ context.Context, id uint64) (*model.User, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	u, ok := s.d.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneUser(u, s.d.roles), nil
}

func (s *Users) Create(_ context.Context, u *model.User) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	u.Email = repository.NormalizeEmail(u.Email)
	if s.emailTaken(u.Email, 0) {
		return repository.ErrEmailExists
	}
	if _, ok := s.d.roles[u.RoleID]; !ok {
		return repository.ErrNotFound
	}
	now := s.d.now().UTC()
	u.ID = s.d.id()
	u.CreatedAt, u.UpdatedAt = now, now
	s.d.users[u.ID] = *cloneUser(*u, s.d.roles)
	return nil
}

func (s *Users) Save(_ context.Context, u *model.User) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	old, ok := s.d.users[u.ID]
	if !ok {
		return repository.ErrNotFound
	}
	u.Email = repository.NormalizeEmail(u.Email)
	if s.emailTaken(u.Email, u.ID) {
		return repository.ErrEmailExists
	}
	u.CreatedAt = old.CreatedAt
	u.UpdatedAt = s.d.now().UTC()
	s.d.users[u.ID] = *cloneUser(*u, s.d.roles)
	return nil
}

func (s *Users) PromoteGuest(_ context.Context, id uint64, email, fullName, hash string, roleID uint64) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	u, ok := s.d.users[id]
	if !ok || !u.IsGuest() {
		return repository.ErrConflict
	}
	email = repository.NormalizeEmail(email)
	if s.emailTaken(email, id) {
		return repository.ErrEmailExists
	}
	u.Email = email
	u.FullName = fullName
	u.PasswordHash = &hash
	u.ExternalAuth = nil
	u.RoleID = roleID
	u.UpdatedAt = s.d.now().UTC()
	s.d.users[id] = u
	return nil
}

func (s *Users) DeleteGuestsCreatedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	var n int64
	for id, u := range s.d.users {
		if u.IsGuest() && u.CreatedAt.Before(cutoff) {
			delete(s.d.users, id)
			for cid, c := range s.d.consultations {
				if c.UserID != nil && *c.UserID == id {
					delete(s.d.consultations, cid)
				}
			}
			n++
		}
	}
	return n, nil
}

// Roles implements service.RoleStore.
type Roles struct{ d *DB }

func (s *Roles) GetRoleByName(_ context.Context, name string) (*model.Role, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	name = strings.TrimSpace(name)
	for _, r := range s.d.roles {
		if r.Name == name {
			r := r
			return &r, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Roles) GetRoleByID(_ context.Context, id uint64) (*model.Role, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	r, ok := s.d.roles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &r, nil
}

func (s *Roles) CreateRole(_ context.Context, name string) (*model.Role, error) {
	if hook := s.d.RoleCreateHook; hook != nil {
		hook(name)
	}
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	name = strings.TrimSpace(name)
	for _, r := range s.d.roles {
		if r.Name == name {
			return nil, repository.ErrRoleExists
		}
	}
	now := s.d.now().UTC()
	r := model.Role{ID: s.d.id(), Name: name, CreatedAt: now, UpdatedAt: now}
	s.d.roles[r.ID] = r
	return &r, nil
}

func (s *Roles) ListRoles(_ context.Context) ([]model.Role, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	out := make([]model.Role, 0, len(s.d.roles))
	for _, r := range s.d.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Roles) Grant(_ context.Context, roleID uint64, page string, g model.Grant) (*model.PageAccess, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if _, ok := s.d.roles[roleID]; !ok {
		return nil, repository.ErrNotFound
	}
	page = strings.TrimSpace(page)
	now := s.d.now().UTC()
	for id, p := range s.d.grants {
		if p.RoleID == roleID && p.PageName == page {
			p.Grant = g
			p.UpdatedAt = now
			s.d.grants[id] = p
			return &p, nil
		}
	}
	p := model.PageAccess{ID: s.d.id(), RoleID: roleID, PageName: page, Grant: g, CreatedAt: now, UpdatedAt: now}
	s.d.grants[p.ID] = p
	return &p, nil
}

func (s *Roles) filterGrants(keep func(model.PageAccess) bool) []model.PageAccess {
	var out []model.PageAccess
	for _, p := range s.d.grants {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PageName < out[j].PageName })
	return out
}

func (s *Roles) ListGrants(_ context.Context, roleID uint64) ([]model.PageAccess, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	return s.filterGrants(func(p model.PageAccess) bool { return p.RoleID == roleID }), nil
}

func (s *Roles) FindGrantForUser(_ context.Context, userID uint64, page string) (*model.PageAccess, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	u, ok := s.d.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	for _, p := range s.d.grants {
		if p.RoleID == u.RoleID && p.PageName == page {
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Roles) ListAccessiblePages(_ context.Context, userID uint64) ([]model.PageAccess, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	u, ok := s.d.users[userID]
	if !ok {
		return nil, nil
	}
	return s.filterGrants(func(p model.PageAccess) bool { return p.RoleID == u.RoleID && p.CanAccess }), nil
}

// Consultations implements service.ConsultationStore.
type Consultations struct{ d *DB }

func (s *Consultations) Create(_ context.Context, c *model.Consultation) error {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	if c.UserID != nil {
		if _, ok := s.d.users[*c.UserID]; !ok {
			return repository.ErrNotFound
		}
	}
	now := s.d.now().UTC()
	c.ID = s.d.id()
	c.CreatedAt, c.UpdatedAt = now, now
	s.d.consultations[c.ID] = *c
	return nil
}

func (s *Consultations) ListByUser(_ context.Context, userID uint64) ([]model.Consultation, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	var out []model.Consultation
	for _, c := range s.d.consultations {
		if c.UserID != nil && *c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// Events collects published identity events.
type Events struct {
	mu     sync.Mutex
	events []queue.IdentityEvent
}

func (e *Events) Publish(ev queue.IdentityEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
	return nil
}

// All returns the recorded events in publish order.
func (e *Events) All() []queue.IdentityEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]queue.IdentityEvent(nil), e.events...)
}

// Types returns the recorded event types in publish order.
func (e *Events) Types() []string {
	var out []string
	for _, ev := range e.All() {
		out = append(out, ev.Type)
	}
	return out
}
