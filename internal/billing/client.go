// AngelaMos | 2026
// client.go

package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"

	"github.com/opsdeck-io/provisioning/internal/config"
)

// Client wraps the Stripe API client. Every upstream call is bounded by
// the configured request timeout so a slow provider cannot stall webhook
// processing indefinitely.
type Client struct {
	sc      *stripe.Client
	timeout time.Duration
	success string
	cancel  string
}

func NewClient(cfg config.StripeConfig) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		sc:      stripe.NewClient(cfg.SecretKey),
		timeout: timeout,
		success: cfg.SuccessURL,
		cancel:  cfg.CancelURL,
	}
}

// FetchSubscription retrieves the full subscription object, items
// expanded, for deriving plan windows.
func (c *Client) FetchSubscription(
	ctx context.Context,
	subscriptionID string,
) (*stripe.Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	sub, err := c.sc.V1Subscriptions.Retrieve(
		ctx,
		subscriptionID,
		&stripe.SubscriptionRetrieveParams{},
	)
	if err != nil {
		return nil, fmt.Errorf("fetch subscription %s: %w", subscriptionID, err)
	}

	return sub, nil
}

// CheckoutParams describes a hosted checkout session to create.
type CheckoutParams struct {
	PriceID  string
	Metadata map[string]string
}

// CreateCheckoutSession creates a subscription-mode hosted checkout
// session stamped with the given metadata.
func (c *Client) CreateCheckoutSession(
	ctx context.Context,
	params CheckoutParams,
) (*stripe.CheckoutSession, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	sessionParams := &stripe.CheckoutSessionCreateParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(c.success),
		CancelURL:  stripe.String(c.cancel),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Price:    stripe.String(params.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
	}
	for key, value := range params.Metadata {
		sessionParams.AddMetadata(key, value)
	}

	session, err := c.sc.V1CheckoutSessions.Create(ctx, sessionParams)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	return session, nil
}

// PlanWindow is the billing period derived from a subscription.
type PlanWindow struct {
	Start      *time.Time
	End        *time.Time
	TrialStart *time.Time
	TrialEnd   *time.Time
}

// WindowFromSubscription reads the current period off the subscription's
// first item and the trial bounds off the subscription itself.
func WindowFromSubscription(sub *stripe.Subscription) PlanWindow {
	var window PlanWindow

	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		window.Start = unixTime(item.CurrentPeriodStart)
		window.End = unixTime(item.CurrentPeriodEnd)
	}

	window.TrialStart = unixTime(sub.TrialStart)
	window.TrialEnd = unixTime(sub.TrialEnd)

	return window
}

// PeriodEnd returns the subscription's current period end, or nil.
func PeriodEnd(sub *stripe.Subscription) *time.Time {
	if sub.Items == nil || len(sub.Items.Data) == 0 {
		return nil
	}
	return unixTime(sub.Items.Data[0].CurrentPeriodEnd)
}

// CustomerID returns the id of the session or subscription customer.
func CustomerID(customer *stripe.Customer) string {
	if customer == nil {
		return ""
	}
	return customer.ID
}

func unixTime(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
