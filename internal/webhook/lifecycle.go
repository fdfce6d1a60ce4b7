// AngelaMos | 2026
// lifecycle.go

package webhook

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/stripe/stripe-go/v82"

	"github.com/opsdeck-io/provisioning/internal/billing"
	"github.com/opsdeck-io/provisioning/internal/core"
	"github.com/opsdeck-io/provisioning/internal/organization"
	"github.com/opsdeck-io/provisioning/internal/subscription"
)

// MirrorStore is the slice of the subscription mirror repository the
// synchronizer needs.
type MirrorStore interface {
	Upsert(ctx context.Context, sub *subscription.Subscription) error
	GetBySubscriptionID(
		ctx context.Context,
		subscriptionID string,
	) (*subscription.Subscription, error)
	MarkCanceled(ctx context.Context, subscriptionID string) error
}

// LifecycleOrgStore is the slice of the organization repository the
// synchronizer needs.
type LifecycleOrgStore interface {
	SyncPeriod(
		ctx context.Context,
		customerID, status string,
		planEnd *time.Time,
	) error
	FindByAddOnSubscriptionID(
		ctx context.Context,
		subscriptionID string,
	) (*organization.Organization, error)
	CancelAddOn(ctx context.Context, id, subscriptionID string) error
	UpdateStatusByCustomerID(ctx context.Context, customerID, status string) error
}

// LifecycleSyncer keeps the local subscription mirror and the owning
// organization in line with provider lifecycle events. The mirror upsert
// and the organization update are independent writes; a failure between
// them leaves a window that the provider's redelivery closes.
type LifecycleSyncer struct {
	mirror MirrorStore
	orgs   LifecycleOrgStore
	logger *slog.Logger
}

func NewLifecycleSyncer(
	mirror MirrorStore,
	orgs LifecycleOrgStore,
	logger *slog.Logger,
) *LifecycleSyncer {
	return &LifecycleSyncer{mirror: mirror, orgs: orgs, logger: logger}
}

// Upserted handles customer.subscription.created and .updated.
func (s *LifecycleSyncer) Upserted(
	ctx context.Context,
	sub *stripe.Subscription,
) error {
	if err := s.mirror.Upsert(ctx, mirrorRow(sub)); err != nil {
		return err
	}

	customerID := billing.CustomerID(sub.Customer)
	if customerID == "" {
		s.logger.Warn("subscription event without customer",
			"subscription_id", sub.ID,
		)
		return nil
	}

	err := s.orgs.SyncPeriod(
		ctx,
		customerID,
		mapStatus(sub.Status),
		billing.PeriodEnd(sub),
	)
	if errors.Is(err, core.ErrNotFound) {
		// Subscription events may precede the checkout event; the mirror
		// row above is enough until the organization exists.
		s.logger.Info("no organization for customer yet",
			"customer_id", customerID,
			"subscription_id", sub.ID,
		)
		return nil
	}

	return err
}

// Deleted handles customer.subscription.deleted. An add-on holding the
// subscription takes precedence: only that entry is canceled and the
// organization's own status is untouched. Otherwise the organization
// itself is canceled.
func (s *LifecycleSyncer) Deleted(
	ctx context.Context,
	sub *stripe.Subscription,
) error {
	if err := s.mirror.MarkCanceled(ctx, sub.ID); err != nil {
		return err
	}

	org, err := s.orgs.FindByAddOnSubscriptionID(ctx, sub.ID)
	if err == nil {
		if err := s.orgs.CancelAddOn(ctx, org.ID, sub.ID); err != nil {
			return err
		}

		s.logger.Info("add-on canceled",
			"org_id", org.ID,
			"subscription_id", sub.ID,
		)
		return nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return err
	}

	customerID := billing.CustomerID(sub.Customer)
	if customerID == "" {
		// Deletion payloads occasionally omit the customer; the mirror row
		// written by earlier lifecycle events still carries it.
		row, mirrorErr := s.mirror.GetBySubscriptionID(ctx, sub.ID)
		if mirrorErr != nil && !errors.Is(mirrorErr, core.ErrNotFound) {
			return mirrorErr
		}
		if row != nil {
			customerID = row.CustomerID
		}
	}
	if customerID == "" {
		s.logger.Warn("subscription deletion without customer",
			"subscription_id", sub.ID,
		)
		return nil
	}

	err = s.orgs.UpdateStatusByCustomerID(
		ctx,
		customerID,
		organization.StatusCanceled,
	)
	if errors.Is(err, core.ErrNotFound) {
		s.logger.Info("no organization for canceled subscription",
			"customer_id", customerID,
			"subscription_id", sub.ID,
		)
		return nil
	}
	if err != nil {
		return err
	}

	s.logger.Info("organization canceled",
		"customer_id", customerID,
		"subscription_id", sub.ID,
	)
	return nil
}

// PaymentFailed marks the organization delinquent. Plan dates stay
// untouched; past_due is recoverable, cancellation is not.
func (s *LifecycleSyncer) PaymentFailed(
	ctx context.Context,
	customerID string,
) error {
	if customerID == "" {
		s.logger.Warn("payment failure event without customer")
		return nil
	}

	err := s.orgs.UpdateStatusByCustomerID(
		ctx,
		customerID,
		organization.StatusPastDue,
	)
	if errors.Is(err, core.ErrNotFound) {
		s.logger.Info("no organization for delinquent customer",
			"customer_id", customerID,
		)
		return nil
	}
	if err != nil {
		return err
	}

	s.logger.Info("organization marked past due", "customer_id", customerID)
	return nil
}

func mirrorRow(sub *stripe.Subscription) *subscription.Subscription {
	row := &subscription.Subscription{
		SubscriptionID:    sub.ID,
		CustomerID:        billing.CustomerID(sub.Customer),
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}

	window := billing.WindowFromSubscription(sub)
	row.CurrentPeriodStart = window.Start
	row.CurrentPeriodEnd = window.End

	if sub.Items != nil && len(sub.Items.Data) > 0 {
		if price := sub.Items.Data[0].Price; price != nil {
			row.PriceID = price.ID
		}
	}

	return row
}

// mapStatus folds provider subscription statuses onto the organization
// status set.
func mapStatus(status stripe.SubscriptionStatus) string {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return organization.StatusActive
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return organization.StatusPastDue
	case stripe.SubscriptionStatusCanceled,
		stripe.SubscriptionStatusIncompleteExpired:
		return organization.StatusCanceled
	default:
		return organization.StatusInactive
	}
}
