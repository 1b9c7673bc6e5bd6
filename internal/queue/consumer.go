// Package queue also contains the background consumer that listens to the
// identity.audit queue and writes one line per event to the identity log.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const auditQueueName = "identity.audit"

// StartIdentityConsumer connects to RabbitMQ, binds the durable
// identity.audit queue to the identity exchange and appends every event to
// logPath. It reconnects with backoff until ctx is cancelled.
func StartIdentityConsumer(ctx context.Context, url, logPath string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	w := &AuditWriter{Path: logPath}
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			logger.Warn("identity-consumer: failed to dial broker", slog.String("error", err.Error()), slog.Duration("retry_in", backoff))
			if !sleepCtx(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = consumeLoop(ctx, conn, w, logger)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("identity-consumer: consume loop ended, reconnecting", slog.String("error", err.Error()))
		if !sleepCtx(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, w *AuditWriter, logger *slog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		logger.Warn("identity-consumer: set QoS failed", slog.String("error", err.Error()))
	}
	if err := declareExchange(ch); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(auditQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(auditQueueName, "", IdentityExchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}
	msgs, err := ch.Consume(auditQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := w.HandleMessage(d.Body); err != nil {
				logger.Warn("identity-consumer: handle message failed", slog.String("error", err.Error()))
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// AuditWriter appends formatted identity events to a file.
type AuditWriter struct {
	Path string
	mu   sync.Mutex
}

// HandleMessage decodes one broker message and appends its audit line.
func (w *AuditWriter) HandleMessage(body []byte) error {
	var ev IdentityEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" {
		return errors.New("event without type")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(w.Path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(w.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(FormatAuditLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatAuditLine renders ev as a single log line. Mail-only fields are left out.
func FormatAuditLine(ev IdentityEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", ev.At.UTC().Format(time.RFC3339), ev.Type)
	if ev.UserID != 0 {
		fmt.Fprintf(&b, " | user_id=%d", ev.UserID)
	}
	if ev.Role != "" {
		fmt.Fprintf(&b, " | role=%s", ev.Role)
	}
	if ev.EmailHash != "" {
		fmt.Fprintf(&b, " | email_hash=%s", ev.EmailHash)
	}
	if ev.IP != "" {
		fmt.Fprintf(&b, " | ip=%s", ev.IP)
	}
	if ev.Count != 0 {
		fmt.Fprintf(&b, " | count=%d", ev.Count)
	}
	b.WriteByte('\n')
	return b.String()
}
