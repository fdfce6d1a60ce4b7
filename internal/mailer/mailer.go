// AngelaMos | 2026
// mailer.go

package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/opsdeck-io/provisioning/internal/config"
)

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type smtpSender struct {
	client *mail.Client
	from   string
}

func newSMTPSender(cfg config.EmailConfig) (*smtpSender, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	return &smtpSender{client: client, from: cfg.From}, nil
}

func (s *smtpSender) Send(ctx context.Context, msg Message) error {
	m := mail.NewMsg()
	if err := m.From(s.from); err != nil {
		return fmt.Errorf("set from: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTML)

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	return nil
}

// Mailer owns a bounded queue drained by worker goroutines. Email is a
// best-effort side effect: enqueueing never blocks the caller, delivery
// failures are retried with backoff and then dropped with a log line.
type Mailer struct {
	sender      Sender
	queue       chan Message
	logger      *slog.Logger
	maxAttempts int
	backoff     time.Duration

	wg     sync.WaitGroup
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// New builds a Mailer backed by SMTP delivery and starts its workers.
func New(cfg config.EmailConfig, logger *slog.Logger) (*Mailer, error) {
	sender, err := newSMTPSender(cfg)
	if err != nil {
		return nil, err
	}

	return NewWithSender(cfg, sender, logger), nil
}

// NewWithSender wires an explicit Sender. Tests use this.
func NewWithSender(
	cfg config.EmailConfig,
	sender Sender,
	logger *slog.Logger,
) *Mailer {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 2
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := &Mailer{
		sender:      sender,
		queue:       make(chan Message, queueSize),
		logger:      logger,
		maxAttempts: maxAttempts,
		backoff:     2 * time.Second,
		cancel:      cancel,
	}

	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go m.worker(ctx)
	}

	return m
}

// Enqueue queues a message for delivery. A full or closed queue drops the
// message rather than blocking the webhook path.
func (m *Mailer) Enqueue(msg Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		m.logger.Warn("mailer closed, dropping message",
			"to", msg.To,
			"subject", msg.Subject,
		)
		return
	}

	select {
	case m.queue <- msg:
	default:
		m.logger.Warn("mail queue full, dropping message",
			"to", msg.To,
			"subject", msg.Subject,
		)
	}
}

// QueueDepth reports how many messages are waiting.
func (m *Mailer) QueueDepth() int {
	return len(m.queue)
}

// QueueCapacity reports the queue's total capacity.
func (m *Mailer) QueueCapacity() int {
	return cap(m.queue)
}

// Close stops accepting work and drains in-flight deliveries until ctx
// expires.
func (m *Mailer) Close(ctx context.Context) error {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.queue)
	}
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.cancel()
		return nil
	case <-ctx.Done():
		m.cancel()
		return fmt.Errorf("mailer drain: %w", ctx.Err())
	}
}

func (m *Mailer) worker(ctx context.Context) {
	defer m.wg.Done()

	for msg := range m.queue {
		m.deliver(ctx, msg)
	}
}

func (m *Mailer) deliver(ctx context.Context, msg Message) {
	var err error
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		if err = m.sender.Send(ctx, msg); err == nil {
			m.logger.Debug("mail delivered",
				"to", msg.To,
				"subject", msg.Subject,
				"attempt", attempt,
			)
			return
		}

		if ctx.Err() != nil {
			break
		}

		if attempt < m.maxAttempts {
			select {
			case <-time.After(m.backoff * time.Duration(attempt)):
			case <-ctx.Done():
			}
		}
	}

	m.logger.Error("mail delivery abandoned",
		"to", msg.To,
		"subject", msg.Subject,
		"attempts", m.maxAttempts,
		"error", err,
	)
}
