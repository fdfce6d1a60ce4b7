// AngelaMos | 2026
// router.go

package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/stripe/stripe-go/v82"

	"github.com/opsdeck-io/provisioning/internal/billing"
)

// Processor routes verified events to their handlers. Unknown event
// types are acknowledged without action; no ordering across event types
// is assumed, so subscription events are handled even when they arrive
// before the checkout event that provisioned the tenant.
type Processor struct {
	provisioner *Provisioner
	tenants     *TenantUpdater
	lifecycle   *LifecycleSyncer
	logger      *slog.Logger
}

func NewProcessor(
	provisioner *Provisioner,
	tenants *TenantUpdater,
	lifecycle *LifecycleSyncer,
	logger *slog.Logger,
) *Processor {
	return &Processor{
		provisioner: provisioner,
		tenants:     tenants,
		lifecycle:   lifecycle,
		logger:      logger,
	}
}

// Process dispatches one event. A returned error means a retryable
// failure: the HTTP layer answers 500 and the provider redelivers.
func (p *Processor) Process(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		return p.handleCheckoutCompleted(ctx, event)

	case "customer.subscription.created", "customer.subscription.updated":
		sub, err := parseSubscription(event)
		if err != nil {
			return err
		}
		return p.lifecycle.Upserted(ctx, sub)

	case "customer.subscription.deleted":
		sub, err := parseSubscription(event)
		if err != nil {
			return err
		}
		return p.lifecycle.Deleted(ctx, sub)

	case "invoice.payment_failed":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return fmt.Errorf("parse invoice from %s: %w", event.ID, err)
		}
		return p.lifecycle.PaymentFailed(
			ctx,
			billing.CustomerID(invoice.Customer),
		)

	case "invoice.paid":
		// Renewed period dates arrive via customer.subscription.updated.
		p.logger.Debug("invoice paid acknowledged", "event_id", event.ID)
		return nil

	default:
		p.logger.Info("unhandled event type acknowledged",
			"event_id", event.ID,
			"event_type", event.Type,
		)
		return nil
	}
}

func (p *Processor) handleCheckoutCompleted(
	ctx context.Context,
	event stripe.Event,
) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("parse checkout session from %s: %w", event.ID, err)
	}

	meta, err := billing.ParseCheckoutMetadata(session.Metadata)
	if err != nil {
		// Malformed metadata never heals on redelivery; ack and flag.
		p.logger.Error("checkout session with unusable metadata",
			"event_id", event.ID,
			"session_id", session.ID,
			"error", err,
		)
		return nil
	}

	if meta.IsSignup() {
		return p.provisioner.Provision(ctx, &session, meta.Signup)
	}

	return p.tenants.Apply(ctx, &session, meta.Tenant)
}

func parseSubscription(event stripe.Event) (*stripe.Subscription, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return nil, fmt.Errorf("parse subscription from %s: %w", event.ID, err)
	}
	return &sub, nil
}
