// Package queue defines message payloads exchanged over the message broker.
package queue

import "time"

// Identity event types.
const (
	EventSignup          = "identity.signup"
	EventLogin           = "identity.login"
	EventLoginFailed     = "identity.login_failed"
	EventLogout          = "identity.logout"
	EventGuestCreated    = "identity.guest_created"
	EventGuestMigrated   = "identity.guest_migrated"
	EventGuestsSwept     = "identity.guests_swept"
	EventResetRequested  = "identity.password_reset_requested"
	EventPasswordChanged = "identity.password_changed"
)

// IdentityEvent is published whenever an identity is created, changes
// kind, authenticates or fails to. The serialized form on the fanout
// exchange never carries a password, a session token or a reset token.
type IdentityEvent struct {
	Type      string    `json:"type"`
	UserID    uint64    `json:"user_id,omitempty"`
	Role      string    `json:"role,omitempty"`
	EmailHash string    `json:"email_hash,omitempty"`
	IP        string    `json:"ip,omitempty"`
	Count     int64     `json:"count,omitempty"`
	At        time.Time `json:"at"`

	// Recipient and ResetToken are only set on reset requests. They are
	// never serialized with the event; the publisher sends them to the
	// mail queue as a PasswordResetMail.
	Recipient  string `json:"-"`
	ResetToken string `json:"-"`
}

// PasswordResetMail is the message an external mailer consumes from
// MailQueuePasswordReset to deliver a reset link.
type PasswordResetMail struct {
	UserID     uint64    `json:"user_id"`
	Recipient  string    `json:"recipient"`
	ResetToken string    `json:"reset_token"`
	At         time.Time `json:"at"`
}
