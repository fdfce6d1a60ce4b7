// AngelaMos | 2026
// mailer_test.go

package mailer

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdeck-io/provisioning/internal/config"
)

type recordingSender struct {
	mu       sync.Mutex
	sent     []Message
	failures int
}

func (s *recordingSender) Send(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failures > 0 {
		s.failures--
		return errors.New("smtp unavailable")
	}

	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) delivered() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestMailer(t *testing.T, sender Sender) *Mailer {
	t.Helper()

	m := NewWithSender(config.EmailConfig{
		QueueSize:   8,
		Workers:     1,
		MaxAttempts: 3,
	}, sender, testLogger())
	m.backoff = time.Millisecond

	return m
}

func drain(t *testing.T, m *Mailer) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Close(ctx))
}

func TestMailerDelivers(t *testing.T) {
	sender := &recordingSender{}
	m := newTestMailer(t, sender)

	m.Enqueue(Message{To: "a@example.com", Subject: "hello"})
	drain(t, m)

	sent := sender.delivered()
	require.Len(t, sent, 1)
	assert.Equal(t, "a@example.com", sent[0].To)
}

func TestMailerRetriesTransientFailure(t *testing.T) {
	sender := &recordingSender{failures: 2}
	m := newTestMailer(t, sender)

	m.Enqueue(Message{To: "a@example.com", Subject: "hello"})
	drain(t, m)

	require.Len(t, sender.delivered(), 1)
}

func TestMailerDropsAfterMaxAttempts(t *testing.T) {
	sender := &recordingSender{failures: 10}
	m := newTestMailer(t, sender)

	m.Enqueue(Message{To: "a@example.com", Subject: "hello"})
	drain(t, m)

	assert.Empty(t, sender.delivered())
}

func TestMailerDropsWhenQueueFull(t *testing.T) {
	sender := &slowSender{gate: make(chan struct{})}

	m := NewWithSender(config.EmailConfig{
		QueueSize:   1,
		Workers:     1,
		MaxAttempts: 1,
	}, sender, testLogger())
	m.backoff = time.Millisecond

	for i := 0; i < 10; i++ {
		m.Enqueue(Message{To: "a@example.com"})
	}

	// One in flight, at most one queued; the rest were dropped.
	assert.LessOrEqual(t, m.QueueDepth(), 1)

	close(sender.gate)
	drain(t, m)
	assert.LessOrEqual(t, int(sender.count.Load()), 2)
}

func TestMailerDropsEnqueueAfterClose(t *testing.T) {
	sender := &recordingSender{}
	m := newTestMailer(t, sender)
	drain(t, m)

	require.NotPanics(t, func() {
		m.Enqueue(Message{To: "a@example.com", Subject: "late"})
	})
	assert.Empty(t, sender.delivered())
}

type slowSender struct {
	gate  chan struct{}
	count atomic.Int64
}

func (s *slowSender) Send(ctx context.Context, msg Message) error {
	select {
	case <-s.gate:
	case <-ctx.Done():
	}
	s.count.Add(1)
	return nil
}

func TestConfirmationEmailEscapesAndLinks(t *testing.T) {
	msg := ConfirmationEmail(
		"a@example.com",
		"<Ada>",
		"https://app.opsdeck.io",
		"tok+123",
	)

	assert.Equal(t, "a@example.com", msg.To)
	assert.Contains(t, msg.HTML, "&lt;Ada&gt;")
	assert.Contains(
		t,
		msg.HTML,
		"https://app.opsdeck.io/confirm-email?token=tok%2B123",
	)
}

func TestWelcomeEmailMentionsOrgAndPlan(t *testing.T) {
	msg := WelcomeEmail("a@example.com", "Ada", "Acme", "Pro")

	assert.True(t, strings.Contains(msg.HTML, "Acme"))
	assert.True(t, strings.Contains(msg.HTML, "Pro"))
}
