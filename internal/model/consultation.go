package model

import "time"

// Consultation statuses.
const (
	ConsultationPending   = "pending"
	ConsultationScheduled = "scheduled"
	ConsultationCompleted = "completed"
	ConsultationCancelled = "cancelled"
)

// Consultation is a consultation request. UserID is nil for requests that
// arrived without any identity.
type Consultation struct {
	ID            uint64
	UserID        *uint64
	Name          string
	Email         string
	Phone         string
	Type          string
	Message       string
	Status        string
	PreferredDate *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
