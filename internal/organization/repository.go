// AngelaMos | 2026
// repository.go

package organization

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/opsdeck-io/provisioning/internal/core"
)

type Repository interface {
	Create(ctx context.Context, org *Organization) error
	GetByID(ctx context.Context, id string) (*Organization, error)
	GetByCheckoutSessionID(
		ctx context.Context,
		sessionID string,
	) (*Organization, error)
	FindByAddOnSubscriptionID(
		ctx context.Context,
		subscriptionID string,
	) (*Organization, error)
	UpdateStatusByCustomerID(ctx context.Context, customerID, status string) error
	SyncPeriod(
		ctx context.Context,
		customerID, status string,
		planEnd *time.Time,
	) error
	UpdatePlan(ctx context.Context, id string, change PlanChange) error
	UpsertAddOn(ctx context.Context, id string, addon AddOn) error
	CancelAddOn(ctx context.Context, id, subscriptionID string) error
}

// PlanChange carries the fields overwritten by a plan-change checkout.
type PlanChange struct {
	PlanID         string
	PlanName       string
	SubscriptionID string
	CustomerID     string
	PlanStart      *time.Time
	PlanEnd        *time.Time
	TrialStart     *time.Time
	TrialEnd       *time.Time
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const orgColumns = `
	id, name, slug, slug_history, status, owner_id, plan_id, plan_name,
	subscription_id, stripe_customer_id, checkout_session_id,
	plan_start, plan_end, trial_start, trial_end, addons,
	created_at, updated_at, deleted_at`

func (r *repository) Create(ctx context.Context, org *Organization) error {
	query := `
		INSERT INTO organizations (
			id, name, slug, slug_history, status, owner_id, plan_id,
			plan_name, subscription_id, stripe_customer_id,
			checkout_session_id, plan_start, plan_end, trial_start,
			trial_end, addons
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		        $14, $15, $16)
		RETURNING created_at, updated_at`

	err := r.db.GetContext(ctx, org, query,
		org.ID,
		org.Name,
		org.Slug,
		org.SlugHistory,
		org.Status,
		org.OwnerID,
		org.PlanID,
		org.PlanName,
		org.SubscriptionID,
		org.CustomerID,
		org.CheckoutSessionID,
		org.PlanStart,
		org.PlanEnd,
		org.TrialStart,
		org.TrialEnd,
		org.AddOns,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("create organization: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create organization: %w", err)
	}

	return nil
}

func (r *repository) GetByID(
	ctx context.Context,
	id string,
) (*Organization, error) {
	query := `SELECT ` + orgColumns + `
		FROM organizations
		WHERE id = $1 AND deleted_at IS NULL`

	return r.getOne(ctx, "get organization", query, id)
}

func (r *repository) GetByCheckoutSessionID(
	ctx context.Context,
	sessionID string,
) (*Organization, error) {
	query := `SELECT ` + orgColumns + `
		FROM organizations
		WHERE checkout_session_id = $1 AND deleted_at IS NULL`

	return r.getOne(ctx, "get organization by checkout session", query, sessionID)
}

// FindByAddOnSubscriptionID locates the organization holding an add-on
// with the given provider subscription id.
func (r *repository) FindByAddOnSubscriptionID(
	ctx context.Context,
	subscriptionID string,
) (*Organization, error) {
	query := `SELECT ` + orgColumns + `
		FROM organizations
		WHERE deleted_at IS NULL
		  AND addons @> jsonb_build_array(
			jsonb_build_object('subscription_id', $1::text)
		  )
		LIMIT 1`

	return r.getOne(ctx, "find organization by add-on", query, subscriptionID)
}

func (r *repository) getOne(
	ctx context.Context,
	verb, query string,
	args ...any,
) (*Organization, error) {
	var org Organization
	err := r.db.GetContext(ctx, &org, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", verb, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", verb, err)
	}

	return &org, nil
}

func (r *repository) UpdateStatusByCustomerID(
	ctx context.Context,
	customerID, status string,
) error {
	query := `
		UPDATE organizations
		SET status = $2, updated_at = NOW()
		WHERE stripe_customer_id = $1 AND deleted_at IS NULL`

	return r.exec(ctx, "update organization status", query, customerID, status)
}

// SyncPeriod applies a lifecycle event's reported status and period end to
// the organization owning the customer.
func (r *repository) SyncPeriod(
	ctx context.Context,
	customerID, status string,
	planEnd *time.Time,
) error {
	query := `
		UPDATE organizations
		SET status = $2, plan_end = $3, updated_at = NOW()
		WHERE stripe_customer_id = $1 AND deleted_at IS NULL`

	return r.exec(ctx, "sync organization period", query,
		customerID, status, planEnd)
}

func (r *repository) UpdatePlan(
	ctx context.Context,
	id string,
	change PlanChange,
) error {
	query := `
		UPDATE organizations
		SET status = $2, plan_id = $3, plan_name = $4, subscription_id = $5,
		    stripe_customer_id = $6, plan_start = $7, plan_end = $8,
		    trial_start = $9, trial_end = $10, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	return r.exec(ctx, "update organization plan", query,
		id,
		StatusActive,
		change.PlanID,
		change.PlanName,
		change.SubscriptionID,
		change.CustomerID,
		change.PlanStart,
		change.PlanEnd,
		change.TrialStart,
		change.TrialEnd,
	)
}

// UpsertAddOn replaces any entry with the same provider subscription id,
// then appends, so redelivered events yield exactly one entry.
func (r *repository) UpsertAddOn(
	ctx context.Context,
	id string,
	addon AddOn,
) error {
	entry, err := AddOnList{addon}.Value()
	if err != nil {
		return fmt.Errorf("upsert add-on: %w", err)
	}

	query := `
		UPDATE organizations
		SET addons = COALESCE(
			(SELECT jsonb_agg(e)
			 FROM jsonb_array_elements(addons) e
			 WHERE e->>'subscription_id' <> $2),
			'[]'::jsonb
		) || $3::jsonb,
		    updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	return r.exec(ctx, "upsert add-on", query, id, addon.SubscriptionID, entry)
}

// CancelAddOn flips the matching entry's status without removing it.
func (r *repository) CancelAddOn(
	ctx context.Context,
	id, subscriptionID string,
) error {
	query := `
		UPDATE organizations
		SET addons = COALESCE(
			(SELECT jsonb_agg(
				CASE WHEN e->>'subscription_id' = $2
				     THEN jsonb_set(e, '{status}', '"canceled"')
				     ELSE e
				END)
			 FROM jsonb_array_elements(addons) e),
			'[]'::jsonb
		),
		    updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	return r.exec(ctx, "cancel add-on", query, id, subscriptionID)
}

func (r *repository) exec(
	ctx context.Context,
	verb, query string,
	args ...any,
) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", verb, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", verb, err)
	}

	if rows == 0 {
		return fmt.Errorf("%s: %w", verb, core.ErrNotFound)
	}

	return nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
