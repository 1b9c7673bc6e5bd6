package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// IdentityExchange is the fanout exchange identity events are published to.
const IdentityExchange = "identity.events"

// Reset mail goes through its own direct exchange into a durable queue, so
// only the mailer that reads MailQueuePasswordReset ever sees a reset token.
const (
	MailExchange           = "identity.mail"
	MailKeyPasswordReset   = "password_reset"
	MailQueuePasswordReset = "identity.mail.password_reset"
)

// ErrBufferFull is returned by Publish when the outbound buffer is full.
// The event is dropped; the request that produced it is not held up.
var ErrBufferFull = errors.New("identity event buffer full")

// Publisher forwards identity events to RabbitMQ from a single background
// goroutine. Publish never blocks on the broker.
type Publisher struct {
	url    string
	logger *slog.Logger
	buf    chan IdentityEvent
	dial   func(url string) (*amqp.Connection, error)
}

func NewPublisher(url string, size int, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	if size < 1 {
		size = 256
	}
	return &Publisher{
		url:    url,
		logger: logger,
		buf:    make(chan IdentityEvent, size),
		dial: func(url string) (*amqp.Connection, error) {
			return amqp.DialConfig(url, amqp.Config{Dial: amqp.DefaultDial(2 * time.Second)})
		},
	}
}

// Publish enqueues ev for delivery.
func (p *Publisher) Publish(ev IdentityEvent) error {
	select {
	case p.buf <- ev:
		return nil
	default:
		return ErrBufferFull
	}
}

// Run delivers buffered events until ctx is cancelled. A failed delivery
// drops the event and closes the connection; the next event redials.
func (p *Publisher) Run(ctx context.Context) {
	var (
		conn *amqp.Connection
		ch   *amqp.Channel
	)
	closeConn := func() {
		if ch != nil {
			_ = ch.Close()
			ch = nil
		}
		if conn != nil {
			_ = conn.Close()
			conn = nil
		}
	}
	defer closeConn()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.buf:
			if ch == nil || ch.IsClosed() {
				closeConn()
				var err error
				conn, ch, err = p.open()
				if err != nil {
					p.logger.Warn("identity publisher: broker unavailable, event dropped",
						slog.String("type", ev.Type), slog.String("error", err.Error()))
					closeConn()
					continue
				}
			}
			if err := publishAll(ctx, ch, ev); err != nil {
				p.logger.Warn("identity publisher: publish failed",
					slog.String("type", ev.Type), slog.String("error", err.Error()))
				closeConn()
			}
		}
	}
}

func (p *Publisher) open() (*amqp.Connection, *amqp.Channel, error) {
	conn, err := p.dial(p.url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("channel open: %w", err)
	}
	if err := declareExchange(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

func declareExchange(ch *amqp.Channel) error {
	// Durable so the binding survives broker restarts.
	if err := ch.ExchangeDeclare(IdentityExchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	if err := ch.ExchangeDeclare(MailExchange, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("mail exchange declare: %w", err)
	}
	// The queue is declared here so reset mail is kept until a mailer
	// attaches, rather than dropped for lack of a binding.
	if _, err := ch.QueueDeclare(MailQueuePasswordReset, true, false, false, false, nil); err != nil {
		return fmt.Errorf("mail queue declare: %w", err)
	}
	if err := ch.QueueBind(MailQueuePasswordReset, MailKeyPasswordReset, MailExchange, false, nil); err != nil {
		return fmt.Errorf("mail queue bind: %w", err)
	}
	return nil
}

// outbound is one AMQP message derived from an identity event.
type outbound struct {
	exchange string
	key      string
	body     []byte
}

// outboundFor splits ev into the audit message for the fanout exchange and,
// for reset requests, the mail message. Only the latter carries the token.
func outboundFor(ev IdentityEvent) ([]outbound, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	out := []outbound{{exchange: IdentityExchange, key: ev.Type, body: body}}
	if ev.ResetToken != "" && ev.Recipient != "" {
		mail, err := json.Marshal(PasswordResetMail{
			UserID:     ev.UserID,
			Recipient:  ev.Recipient,
			ResetToken: ev.ResetToken,
			At:         ev.At,
		})
		if err != nil {
			return nil, fmt.Errorf("marshal reset mail: %w", err)
		}
		out = append(out, outbound{exchange: MailExchange, key: MailKeyPasswordReset, body: mail})
	}
	return out, nil
}

func publishAll(ctx context.Context, ch *amqp.Channel, ev IdentityEvent) error {
	msgs, err := outboundFor(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for _, m := range msgs {
		err := ch.PublishWithContext(ctx, m.exchange, m.key, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent, // store on disk
			Timestamp:    ev.At,
			Type:         ev.Type,
			Body:         m.body,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
