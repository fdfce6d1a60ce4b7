// AngelaMos | 2026
// provision.go

package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"

	"github.com/opsdeck-io/provisioning/internal/billing"
	"github.com/opsdeck-io/provisioning/internal/core"
	"github.com/opsdeck-io/provisioning/internal/mailer"
	"github.com/opsdeck-io/provisioning/internal/organization"
	"github.com/opsdeck-io/provisioning/internal/user"
)

// SubscriptionFetcher retrieves the full subscription from the provider.
type SubscriptionFetcher interface {
	FetchSubscription(
		ctx context.Context,
		subscriptionID string,
	) (*stripe.Subscription, error)
}

// OwnerStore is the slice of the user repository provisioning needs.
type OwnerStore interface {
	Create(ctx context.Context, u *user.User) error
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	Delete(ctx context.Context, id string) error
	SetOrganization(ctx context.Context, id, orgID string) error
}

// TenantStore is the slice of the organization repository provisioning
// needs.
type TenantStore interface {
	Create(ctx context.Context, org *organization.Organization) error
	GetByCheckoutSessionID(
		ctx context.Context,
		sessionID string,
	) (*organization.Organization, error)
}

// Enqueuer queues best-effort email side effects.
type Enqueuer interface {
	Enqueue(msg mailer.Message)
}

// TokenCreator signs email-confirmation tokens.
type TokenCreator interface {
	Create(email string) (string, error)
}

// Provisioner turns a completed new-signup checkout into an owner user
// and an active organization.
type Provisioner struct {
	subs      SubscriptionFetcher
	users     OwnerStore
	orgs      TenantStore
	mail      Enqueuer
	tokens    TokenCreator
	publicURL string
	logger    *slog.Logger
}

func NewProvisioner(
	subs SubscriptionFetcher,
	users OwnerStore,
	orgs TenantStore,
	mail Enqueuer,
	tokens TokenCreator,
	publicURL string,
	logger *slog.Logger,
) *Provisioner {
	return &Provisioner{
		subs:      subs,
		users:     users,
		orgs:      orgs,
		mail:      mail,
		tokens:    tokens,
		publicURL: publicURL,
		logger:    logger,
	}
}

// Provision runs the signup saga:
//
//  1. Retrieve the subscription (abort on failure, nothing written).
//  2. Skip entirely if this checkout session already provisioned an
//     organization.
//  3. Create the owner user, or pick an orphaned owner row left by an
//     earlier partial delivery back up.
//  4. Create the organization; on failure delete the user again, then
//     raise so the provider redelivers.
//  5. Link owner to organization (best effort).
//  6. Queue confirmation + welcome emails (best effort).
func (p *Provisioner) Provision(
	ctx context.Context,
	session *stripe.CheckoutSession,
	meta *billing.SignupMetadata,
) error {
	if session.Subscription == nil || session.Subscription.ID == "" {
		return fmt.Errorf("checkout session %s has no subscription", session.ID)
	}

	sub, err := p.subs.FetchSubscription(ctx, session.Subscription.ID)
	if err != nil {
		return err
	}
	window := billing.WindowFromSubscription(sub)

	existing, err := p.orgs.GetByCheckoutSessionID(ctx, session.ID)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return err
	}
	if existing != nil {
		p.logger.Info("checkout session already provisioned",
			"session_id", session.ID,
			"org_id", existing.ID,
		)
		return nil
	}

	customerID := billing.CustomerID(session.Customer)
	if customerID == "" {
		customerID = billing.CustomerID(sub.Customer)
	}

	owner := &user.User{
		ID:           uuid.NewString(),
		FirstName:    meta.FirstName,
		LastName:     meta.LastName,
		Email:        meta.Email,
		PasswordHash: meta.PasswordHash,
		Role:         user.RoleAdmin,
	}
	if err := p.users.Create(ctx, owner); err != nil {
		if !errors.Is(err, core.ErrDuplicateKey) {
			return fmt.Errorf("provision owner: %w", err)
		}

		resumed, resumeErr := p.resumeOrphanedOwner(ctx, meta.Email)
		if resumeErr != nil {
			return resumeErr
		}
		if resumed == nil {
			// The email belongs to a user already linked to an
			// organization. Redelivery cannot heal that; ack and leave it
			// to manual review.
			return nil
		}
		owner = resumed
	}

	org := &organization.Organization{
		ID:                uuid.NewString(),
		Name:              meta.OrgName,
		Slug:              meta.OrgSlug,
		Status:            organization.StatusActive,
		OwnerID:           owner.ID,
		PlanID:            meta.PlanID,
		PlanName:          meta.PlanName,
		SubscriptionID:    sub.ID,
		CustomerID:        customerID,
		CheckoutSessionID: session.ID,
		PlanStart:         window.Start,
		PlanEnd:           window.End,
		TrialStart:        window.TrialStart,
		TrialEnd:          window.TrialEnd,
	}
	if err := p.orgs.Create(ctx, org); err != nil {
		if delErr := p.users.Delete(ctx, owner.ID); delErr != nil {
			p.logger.Error("failed to roll back owner after org create failure",
				"user_id", owner.ID,
				"error", delErr,
			)
		}

		if errors.Is(err, core.ErrDuplicateKey) {
			// A concurrent delivery of the same session won the race.
			p.logger.Info("organization already created by concurrent delivery",
				"session_id", session.ID,
			)
			return nil
		}

		return fmt.Errorf("provision organization: %w", err)
	}

	if err := p.users.SetOrganization(ctx, owner.ID, org.ID); err != nil {
		p.logger.Error("failed to link owner to organization",
			"user_id", owner.ID,
			"org_id", org.ID,
			"error", err,
		)
	}

	p.queueSignupEmails(owner, org)

	p.logger.Info("organization provisioned",
		"org_id", org.ID,
		"owner_id", owner.ID,
		"plan_id", org.PlanID,
		"session_id", session.ID,
	)

	return nil
}

// resumeOrphanedOwner recovers from a crash or failed rollback between
// owner creation and organization creation: the owner row exists without
// an org_id, so redelivery trips the email unique constraint. Returning
// the orphaned row lets the saga converge instead of failing every retry.
// A nil, nil return means the email is held by an already-linked user.
func (p *Provisioner) resumeOrphanedOwner(
	ctx context.Context,
	email string,
) (*user.User, error) {
	existing, err := p.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("provision owner: %w", err)
	}
	if existing.OrgID != nil {
		p.logger.Error("signup email already belongs to an organization member",
			"user_id", existing.ID,
			"org_id", *existing.OrgID,
		)
		return nil, nil
	}

	p.logger.Info("resuming provisioning with orphaned owner",
		"user_id", existing.ID,
	)
	return existing, nil
}

func (p *Provisioner) queueSignupEmails(
	owner *user.User,
	org *organization.Organization,
) {
	tok, err := p.tokens.Create(owner.Email)
	if err != nil {
		p.logger.Error("failed to sign confirmation token",
			"user_id", owner.ID,
			"error", err,
		)
	} else {
		p.mail.Enqueue(mailer.ConfirmationEmail(
			owner.Email,
			owner.FirstName,
			p.publicURL,
			tok,
		))
	}

	p.mail.Enqueue(mailer.WelcomeEmail(
		owner.Email,
		owner.FullName(),
		org.Name,
		org.PlanName,
	))
}
