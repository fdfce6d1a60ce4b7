// AngelaMos | 2026
// verifier_test.go

package billing

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/opsdeck-io/provisioning/internal/core"
)

const testSigningSecret = "whsec_test_secret"

func signPayload(t *testing.T, payload []byte, secret string) string {
	t.Helper()

	now := time.Now()
	sig := webhook.ComputeSignature(now, payload, secret)
	return fmt.Sprintf("t=%d,v1=%x", now.Unix(), sig)
}

func TestVerifierAcceptsSignedPayload(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"invoice.paid","data":{"object":{}}}`)
	v := NewVerifier(testSigningSecret)

	event, err := v.Verify(payload, signPayload(t, payload, testSigningSecret))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, "invoice.paid", string(event.Type))
}

func TestVerifierRejectsWrongSecret(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"invoice.paid","data":{"object":{}}}`)
	v := NewVerifier(testSigningSecret)

	_, err := v.Verify(payload, signPayload(t, payload, "whsec_other"))
	require.Error(t, err)

	var appErr *core.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
}

func TestVerifierRejectsTamperedPayload(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"invoice.paid","data":{"object":{}}}`)
	v := NewVerifier(testSigningSecret)

	header := signPayload(t, payload, testSigningSecret)
	tampered := []byte(`{"id":"evt_2","type":"invoice.paid","data":{"object":{}}}`)

	_, err := v.Verify(tampered, header)
	require.Error(t, err)
}

func TestVerifierRejectsMissingSecret(t *testing.T) {
	v := NewVerifier("")

	_, err := v.Verify([]byte(`{}`), "t=1,v1=deadbeef")
	require.Error(t, err)
	assert.True(t, core.IsAppError(err))
}
