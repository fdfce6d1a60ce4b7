// AngelaMos | 2026
// tenant_update.go

package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stripe/stripe-go/v82"

	"github.com/opsdeck-io/provisioning/internal/billing"
	"github.com/opsdeck-io/provisioning/internal/organization"
)

// TenantOrgStore is the slice of the organization repository tenant
// updates need.
type TenantOrgStore interface {
	UpsertAddOn(ctx context.Context, id string, addon organization.AddOn) error
	UpdatePlan(
		ctx context.Context,
		id string,
		change organization.PlanChange,
	) error
}

// TenantUpdater applies checkout completions for tenants that already
// exist: add-on purchases and plan changes.
type TenantUpdater struct {
	subs   SubscriptionFetcher
	orgs   TenantOrgStore
	logger *slog.Logger
}

func NewTenantUpdater(
	subs SubscriptionFetcher,
	orgs TenantOrgStore,
	logger *slog.Logger,
) *TenantUpdater {
	return &TenantUpdater{subs: subs, orgs: orgs, logger: logger}
}

func (u *TenantUpdater) Apply(
	ctx context.Context,
	session *stripe.CheckoutSession,
	meta *billing.TenantMetadata,
) error {
	if session.Subscription == nil || session.Subscription.ID == "" {
		return fmt.Errorf("checkout session %s has no subscription", session.ID)
	}

	sub, err := u.subs.FetchSubscription(ctx, session.Subscription.ID)
	if err != nil {
		return err
	}
	window := billing.WindowFromSubscription(sub)

	switch meta.Purchase {
	case billing.PurchaseAddOn:
		addon := organization.AddOn{
			PlanID:         meta.PlanID,
			SubscriptionID: sub.ID,
			Status:         organization.StatusActive,
			PurchasedAt:    time.Now().UTC(),
			PeriodEnd:      window.End,
		}
		if err := u.orgs.UpsertAddOn(ctx, meta.OrgID, addon); err != nil {
			return err
		}

		u.logger.Info("add-on recorded",
			"org_id", meta.OrgID,
			"plan_id", meta.PlanID,
			"subscription_id", sub.ID,
		)
		return nil

	case billing.PurchasePlan:
		customerID := billing.CustomerID(session.Customer)
		if customerID == "" {
			customerID = billing.CustomerID(sub.Customer)
		}

		change := organization.PlanChange{
			PlanID:         meta.PlanID,
			PlanName:       meta.PlanName,
			SubscriptionID: sub.ID,
			CustomerID:     customerID,
			PlanStart:      window.Start,
			PlanEnd:        window.End,
			TrialStart:     window.TrialStart,
			TrialEnd:       window.TrialEnd,
		}
		if err := u.orgs.UpdatePlan(ctx, meta.OrgID, change); err != nil {
			return err
		}

		u.logger.Info("plan changed",
			"org_id", meta.OrgID,
			"plan_id", meta.PlanID,
			"subscription_id", sub.ID,
		)
		return nil

	default:
		return fmt.Errorf("unknown purchase kind %q", meta.Purchase)
	}
}
