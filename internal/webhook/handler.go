// AngelaMos | 2026
// handler.go

package webhook

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v82"

	"github.com/opsdeck-io/provisioning/internal/core"
)

// Stripe payloads are small; the cap protects the endpoint, which sits
// outside rate limiting because the provider bursts legitimately.
const maxBodySize = 64 * 1024

// EventVerifier authenticates raw webhook payloads.
type EventVerifier interface {
	Verify(payload []byte, sigHeader string) (stripe.Event, error)
}

// EventProcessor routes a verified event to its handler.
type EventProcessor interface {
	Process(ctx context.Context, event stripe.Event) error
}

// Claimer deduplicates event deliveries.
type Claimer interface {
	Claim(ctx context.Context, eventID string) bool
	Release(ctx context.Context, eventID string)
}

// Counters tracks webhook outcomes for the admin surface.
type Counters struct {
	Received   atomic.Int64
	Processed  atomic.Int64
	Duplicates atomic.Int64
	Rejected   atomic.Int64
	Failed     atomic.Int64
}

// Snapshot returns the current counter values.
func (c *Counters) Snapshot() map[string]int64 {
	return map[string]int64{
		"received":   c.Received.Load(),
		"processed":  c.Processed.Load(),
		"duplicates": c.Duplicates.Load(),
		"rejected":   c.Rejected.Load(),
		"failed":     c.Failed.Load(),
	}
}

type Handler struct {
	verifier  EventVerifier
	claims    Claimer
	processor EventProcessor
	counters  *Counters
	logger    *slog.Logger
}

func NewHandler(
	verifier EventVerifier,
	claims Claimer,
	processor EventProcessor,
	counters *Counters,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		verifier:  verifier,
		claims:    claims,
		processor: processor,
		counters:  counters,
		logger:    logger,
	}
}

// RegisterRoutes mounts the webhook endpoint. It is unauthenticated by
// design; the signature check is the authentication.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/stripe", h.Handle)
}

type ackResponse struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate,omitempty"`
}

// Handle implements the ack policy: 400 for anything that fails
// verification, 200 for duplicates and verified events we choose to
// ignore, 500 for handler failures so the provider redelivers.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	h.counters.Received.Add(1)

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.counters.Rejected.Add(1)
		core.BadRequest(w, "unreadable payload")
		return
	}

	event, err := h.verifier.Verify(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.counters.Rejected.Add(1)
		h.logger.Warn("webhook signature rejected",
			"remote_addr", r.RemoteAddr,
			"error", err,
		)
		core.JSONError(w, err)
		return
	}

	ctx := r.Context()

	if !h.claims.Claim(ctx, event.ID) {
		h.counters.Duplicates.Add(1)
		h.logger.Info("duplicate event delivery acknowledged",
			"event_id", event.ID,
			"event_type", event.Type,
		)
		core.OK(w, ackResponse{Received: true, Duplicate: true})
		return
	}

	if err := h.processor.Process(ctx, event); err != nil {
		h.claims.Release(ctx, event.ID)
		h.counters.Failed.Add(1)
		h.logger.Error("event processing failed",
			"event_id", event.ID,
			"event_type", event.Type,
			"error", err,
		)
		core.InternalServerError(w, err)
		return
	}

	h.counters.Processed.Add(1)
	core.OK(w, ackResponse{Received: true})
}
