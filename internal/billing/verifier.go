// AngelaMos | 2026
// verifier.go

package billing

import (
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/opsdeck-io/provisioning/internal/core"
)

// Verifier authenticates inbound webhook payloads against the endpoint's
// signing secret. Verification is pure: no payload parsing beyond the
// envelope, no side effects.
type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// Verify checks the Stripe-Signature header against the raw payload and
// returns the decoded event. Any failure is a typed authentication error;
// callers must not inspect the payload when an error is returned.
func (v *Verifier) Verify(payload []byte, sigHeader string) (stripe.Event, error) {
	if v.secret == "" {
		return stripe.Event{}, core.SignatureError(
			"webhook signing secret not configured",
		)
	}

	// Events redelivered by the provider can carry an older API version
	// than the SDK pins; signature validity is what matters here.
	event, err := webhook.ConstructEventWithOptions(
		payload,
		sigHeader,
		v.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return stripe.Event{}, core.SignatureError("")
	}

	return event, nil
}
