package queue

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAuditLineOmitsSecrets(t *testing.T) {
	ev := IdentityEvent{
		Type:       EventResetRequested,
		UserID:     12,
		EmailHash:  "abc123",
		Recipient:  "someone@example.com",
		ResetToken: "eyJhbGciOi.secret.sig",
		At:         time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC),
	}
	line := FormatAuditLine(ev)
	assert.Equal(t, "[2026-05-01T09:30:00Z] identity.password_reset_requested | user_id=12 | email_hash=abc123\n", line)
	assert.NotContains(t, line, "someone@example.com")
	assert.NotContains(t, line, "secret")
}

func TestAuditWriterAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "identity.log")
	w := &AuditWriter{Path: path}

	for _, ev := range []IdentityEvent{
		{Type: EventGuestCreated, UserID: 1, Role: "guest"},
		{Type: EventGuestMigrated, UserID: 1, Role: "user"},
	} {
		body, err := json.Marshal(ev)
		require.NoError(t, err)
		require.NoError(t, w.HandleMessage(body))
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "identity.guest_created | user_id=1 | role=guest")
	assert.Contains(t, lines[1], "identity.guest_migrated")
}

func TestAuditWriterRejectsGarbage(t *testing.T) {
	w := &AuditWriter{Path: filepath.Join(t.TempDir(), "identity.log")}
	assert.Error(t, w.HandleMessage([]byte("{not json")))
	assert.Error(t, w.HandleMessage([]byte(`{"user_id":1}`)))
}

func TestPublishDoesNotBlockWhenFull(t *testing.T) {
	p := NewPublisher("amqp://unused", 1, nil)
	require.NoError(t, p.Publish(IdentityEvent{Type: EventLogin}))
	assert.ErrorIs(t, p.Publish(IdentityEvent{Type: EventLogin}), ErrBufferFull)
}

func TestResetTokenNeverReachesFanout(t *testing.T) {
	ev := IdentityEvent{
		Type:       EventResetRequested,
		UserID:     12,
		EmailHash:  "abc123",
		Recipient:  "someone@example.com",
		ResetToken: "eyJhbGciOi.secret.sig",
		At:         time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC),
	}
	msgs, err := outboundFor(ev)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	audit := msgs[0]
	assert.Equal(t, IdentityExchange, audit.exchange)
	assert.Equal(t, EventResetRequested, audit.key)
	assert.NotContains(t, string(audit.body), "secret")
	assert.NotContains(t, string(audit.body), "someone@example.com")

	mail := msgs[1]
	assert.Equal(t, MailExchange, mail.exchange)
	assert.Equal(t, MailKeyPasswordReset, mail.key)
	var m PasswordResetMail
	require.NoError(t, json.Unmarshal(mail.body, &m))
	assert.Equal(t, PasswordResetMail{UserID: 12, Recipient: "someone@example.com", ResetToken: "eyJhbGciOi.secret.sig", At: ev.At}, m)
}

func TestOrdinaryEventsOnlyGoToFanout(t *testing.T) {
	msgs, err := outboundFor(IdentityEvent{Type: EventLogin, UserID: 3})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, IdentityExchange, msgs[0].exchange)
}
