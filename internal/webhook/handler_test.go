// AngelaMos | 2026
// handler_test.go

package webhook

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
	stripewebhook "github.com/stripe/stripe-go/v82/webhook"

	"github.com/opsdeck-io/provisioning/internal/billing"
)

type stubProcessor struct {
	err    error
	events []stripe.Event
}

func (s *stubProcessor) Process(_ context.Context, event stripe.Event) error {
	s.events = append(s.events, event)
	return s.err
}

// memClaims is an in-memory Claimer with the same semantics as the Redis
// one.
type memClaims struct {
	held map[string]bool
}

func newMemClaims() *memClaims {
	return &memClaims{held: make(map[string]bool)}
}

func (c *memClaims) Claim(_ context.Context, eventID string) bool {
	if c.held[eventID] {
		return false
	}
	c.held[eventID] = true
	return true
}

func (c *memClaims) Release(_ context.Context, eventID string) {
	delete(c.held, eventID)
}

const handlerSecret = "whsec_handler_test"

func signedRequest(t *testing.T, payload string) *http.Request {
	t.Helper()

	req := httptest.NewRequest(
		http.MethodPost,
		"/webhooks/stripe",
		strings.NewReader(payload),
	)

	now := time.Now()
	sig := stripewebhook.ComputeSignature(now, []byte(payload), handlerSecret)
	req.Header.Set(
		"Stripe-Signature",
		fmt.Sprintf("t=%d,v1=%x", now.Unix(), sig),
	)

	return req
}

func newTestHandler(
	processor EventProcessor,
	claims Claimer,
) (*Handler, *Counters, *chi.Mux) {
	counters := &Counters{}
	h := NewHandler(
		billing.NewVerifier(handlerSecret),
		claims,
		processor,
		counters,
		testLogger(),
	)

	router := chi.NewRouter()
	h.RegisterRoutes(router)
	return h, counters, router
}

const paidEventPayload = `{"id":"evt_1","type":"invoice.paid","data":{"object":{}}}`

func TestHandlerAcksVerifiedEvent(t *testing.T) {
	processor := &stubProcessor{}
	_, counters, router := newTestHandler(processor, newMemClaims())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, signedRequest(t, paidEventPayload))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"received":true`)
	require.Len(t, processor.events, 1)
	assert.Equal(t, "evt_1", processor.events[0].ID)
	assert.Equal(t, int64(1), counters.Processed.Load())
}

func TestHandlerRejectsBadSignature(t *testing.T) {
	processor := &stubProcessor{}
	_, counters, router := newTestHandler(processor, newMemClaims())

	req := httptest.NewRequest(
		http.MethodPost,
		"/webhooks/stripe",
		strings.NewReader(paidEventPayload),
	)
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, processor.events, "unverified payloads are never processed")
	assert.Equal(t, int64(1), counters.Rejected.Load())
}

func TestHandlerRejectsMissingSignature(t *testing.T) {
	processor := &stubProcessor{}
	_, _, router := newTestHandler(processor, newMemClaims())

	req := httptest.NewRequest(
		http.MethodPost,
		"/webhooks/stripe",
		strings.NewReader(paidEventPayload),
	)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, processor.events)
}

func TestHandlerAcksDuplicateDeliveryWithoutProcessing(t *testing.T) {
	processor := &stubProcessor{}
	_, counters, router := newTestHandler(processor, newMemClaims())

	first := httptest.NewRecorder()
	router.ServeHTTP(first, signedRequest(t, paidEventPayload))
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	router.ServeHTTP(second, signedRequest(t, paidEventPayload))

	assert.Equal(t, http.StatusOK, second.Code)
	assert.Contains(t, second.Body.String(), `"duplicate":true`)
	assert.Len(t, processor.events, 1, "duplicate must not be reprocessed")
	assert.Equal(t, int64(1), counters.Duplicates.Load())
}

func TestHandlerReturns500AndReleasesClaimOnFailure(t *testing.T) {
	processor := &stubProcessor{err: errBoom}
	claims := newMemClaims()
	_, counters, router := newTestHandler(processor, claims)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, signedRequest(t, paidEventPayload))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, int64(1), counters.Failed.Load())
	assert.False(t, claims.held["evt_1"],
		"claim must be released so redelivery is processed")

	// The provider redelivers; this time processing succeeds.
	processor.err = nil
	retry := httptest.NewRecorder()
	router.ServeHTTP(retry, signedRequest(t, paidEventPayload))

	assert.Equal(t, http.StatusOK, retry.Code)
	assert.Len(t, processor.events, 2)
}

func TestHandlerRejectsOversizedBody(t *testing.T) {
	processor := &stubProcessor{}
	_, _, router := newTestHandler(processor, newMemClaims())

	big := strings.Repeat("a", maxBodySize+1)
	req := httptest.NewRequest(
		http.MethodPost,
		"/webhooks/stripe",
		strings.NewReader(big),
	)
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, processor.events)
}

func TestCountersSnapshot(t *testing.T) {
	counters := &Counters{}
	counters.Received.Add(3)
	counters.Processed.Add(2)
	counters.Failed.Add(1)

	snap := counters.Snapshot()
	assert.Equal(t, int64(3), snap["received"])
	assert.Equal(t, int64(2), snap["processed"])
	assert.Equal(t, int64(1), snap["failed"])
	assert.Equal(t, int64(0), snap["duplicates"])
}
