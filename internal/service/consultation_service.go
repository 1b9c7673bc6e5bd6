package service

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/vastu-backend/internal/model"
)

// ConsultationService records consultation requests and lists them per owner.
type ConsultationService struct {
	store ConsultationStore
}

func NewConsultationService(store ConsultationStore) *ConsultationService {
	return &ConsultationService{store: store}
}

// ConsultationInput is a submitted request.
type ConsultationInput struct {
	Name          string
	Email         string
	Phone         string
	Type          string
	Message       string
	PreferredDate *time.Time
}

// Create stores a request owned by ownerID, or by nobody when ownerID is nil.
func (s *ConsultationService) Create(ctx context.Context, ownerID *uint64, in ConsultationInput) (*model.Consultation, error) {
	fields := map[string]string{}
	if strings.TrimSpace(in.Name) == "" {
		fields["name"] = "required"
	}
	if strings.TrimSpace(in.Message) == "" {
		fields["message"] = "required"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}
	typ := strings.TrimSpace(in.Type)
	if typ == "" {
		typ = "general"
	}
	c := &model.Consultation{
		UserID:        ownerID,
		Name:          strings.TrimSpace(in.Name),
		Email:         strings.TrimSpace(in.Email),
		Phone:         strings.TrimSpace(in.Phone),
		Type:          typ,
		Message:       in.Message,
		Status:        model.ConsultationPending,
		PreferredDate: in.PreferredDate,
	}
	if err := s.store.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListMine returns the requests owned by userID.
func (s *ConsultationService) ListMine(ctx context.Context, userID uint64) ([]model.Consultation, error) {
	out, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []model.Consultation{}
	}
	return out, nil
}
