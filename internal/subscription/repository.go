// AngelaMos | 2026
// repository.go

package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/opsdeck-io/provisioning/internal/core"
)

type Repository interface {
	Upsert(ctx context.Context, sub *Subscription) error
	GetBySubscriptionID(
		ctx context.Context,
		subscriptionID string,
	) (*Subscription, error)
	MarkCanceled(ctx context.Context, subscriptionID string) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

// Upsert inserts or refreshes the mirror row for a provider subscription.
// The unique constraint on subscription_id is what keeps redelivered
// events converging on a single row. created_at is written once, on first
// insert; later events only touch the mutable columns.
func (r *repository) Upsert(ctx context.Context, sub *Subscription) error {
	query := `
		INSERT INTO subscriptions (
			subscription_id, customer_id, status, current_period_start,
			current_period_end, cancel_at_period_end, price_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (subscription_id) DO UPDATE
		SET customer_id = EXCLUDED.customer_id,
		    status = EXCLUDED.status,
		    current_period_start = EXCLUDED.current_period_start,
		    current_period_end = EXCLUDED.current_period_end,
		    cancel_at_period_end = EXCLUDED.cancel_at_period_end,
		    price_id = EXCLUDED.price_id,
		    updated_at = NOW()
		RETURNING id, created_at, updated_at`

	err := r.db.GetContext(ctx, sub, query,
		sub.SubscriptionID,
		sub.CustomerID,
		sub.Status,
		sub.CurrentPeriodStart,
		sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd,
		sub.PriceID,
	)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}

	return nil
}

func (r *repository) GetBySubscriptionID(
	ctx context.Context,
	subscriptionID string,
) (*Subscription, error) {
	query := `
		SELECT id, subscription_id, customer_id, status,
		       current_period_start, current_period_end,
		       cancel_at_period_end, price_id, created_at, updated_at
		FROM subscriptions
		WHERE subscription_id = $1`

	var sub Subscription
	err := r.db.GetContext(ctx, &sub, query, subscriptionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get subscription: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}

	return &sub, nil
}

// MarkCanceled flips the mirror status; missing rows are not an error
// because deletion events may arrive for subscriptions never mirrored.
func (r *repository) MarkCanceled(
	ctx context.Context,
	subscriptionID string,
) error {
	query := `
		UPDATE subscriptions
		SET status = $2, updated_at = NOW()
		WHERE subscription_id = $1`

	if _, err := r.db.ExecContext(
		ctx, query, subscriptionID, StatusCanceled,
	); err != nil {
		return fmt.Errorf("mark subscription canceled: %w", err)
	}

	return nil
}
