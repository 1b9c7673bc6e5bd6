package handler

import (
	"time"

	"github.com/iliyamo/vastu-backend/internal/model"
	"github.com/iliyamo/vastu-backend/internal/service"
)

type userPart struct {
	ID        uint64    `json:"id"`
	Email     string    `json:"email,omitempty"`
	FullName  string    `json:"full_name,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role"`
	IsGuest   bool      `json:"is_guest"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// toUserPart hides the synthesized address of guests.
func toUserPart(u *model.User) userPart {
	p := userPart{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Phone:     u.Phone,
		Role:      u.RoleName,
		IsGuest:   u.IsGuest(),
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
	if p.IsGuest {
		p.Email = ""
	}
	return p
}

type sessionResp struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        userPart  `json:"user"`
	IsGuest     bool      `json:"is_guest"`
}

func toSessionResp(s service.Session) sessionResp {
	u := toUserPart(s.User)
	return sessionResp{
		AccessToken: s.Token,
		TokenType:   "bearer",
		ExpiresAt:   s.ExpiresAt,
		User:        u,
		IsGuest:     u.IsGuest,
	}
}

type rolePart struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func toRolePart(r model.Role) rolePart {
	return rolePart{ID: r.ID, Name: r.Name, CreatedAt: r.CreatedAt}
}

type grantPart struct {
	RoleID    uint64    `json:"role_id"`
	PageName  string    `json:"page_name"`
	CanAccess bool      `json:"can_access"`
	CanRead   bool      `json:"can_read"`
	CanWrite  bool      `json:"can_write"`
	CanDelete bool      `json:"can_delete"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toGrantPart(p model.PageAccess) grantPart {
	return grantPart{
		RoleID:    p.RoleID,
		PageName:  p.PageName,
		CanAccess: p.CanAccess,
		CanRead:   p.CanRead,
		CanWrite:  p.CanWrite,
		CanDelete: p.CanDelete,
		UpdatedAt: p.UpdatedAt,
	}
}

func toGrantParts(ps []model.PageAccess) []grantPart {
	out := make([]grantPart, 0, len(ps))
	for _, p := range ps {
		out = append(out, toGrantPart(p))
	}
	return out
}

type consultationPart struct {
	ID            uint64     `json:"id"`
	UserID        *uint64    `json:"user_id,omitempty"`
	Name          string     `json:"name"`
	Email         string     `json:"email,omitempty"`
	Phone         string     `json:"phone,omitempty"`
	Type          string     `json:"type"`
	Message       string     `json:"message"`
	Status        string     `json:"status"`
	PreferredDate *time.Time `json:"preferred_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toConsultationPart(c model.Consultation) consultationPart {
	return consultationPart{
		ID:            c.ID,
		UserID:        c.UserID,
		Name:          c.Name,
		Email:         c.Email,
		Phone:         c.Phone,
		Type:          c.Type,
		Message:       c.Message,
		Status:        c.Status,
		PreferredDate: c.PreferredDate,
		CreatedAt:     c.CreatedAt,
	}
}
