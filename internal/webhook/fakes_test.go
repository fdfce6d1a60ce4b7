// AngelaMos | 2026
// fakes_test.go

package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/stripe/stripe-go/v82"

	"github.com/opsdeck-io/provisioning/internal/core"
	"github.com/opsdeck-io/provisioning/internal/mailer"
	"github.com/opsdeck-io/provisioning/internal/organization"
	"github.com/opsdeck-io/provisioning/internal/subscription"
	"github.com/opsdeck-io/provisioning/internal/user"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// --- Stripe API fake ---

type fakeStripe struct {
	subs map[string]*stripe.Subscription
	errs map[string]error
}

func newFakeStripe() *fakeStripe {
	return &fakeStripe{
		subs: make(map[string]*stripe.Subscription),
		errs: make(map[string]error),
	}
}

func (f *fakeStripe) FetchSubscription(
	_ context.Context,
	id string,
) (*stripe.Subscription, error) {
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	sub, ok := f.subs[id]
	if !ok {
		return nil, fmt.Errorf("fetch subscription %s: not found", id)
	}
	return sub, nil
}

func stripeSub(id, customerID, status string, periodEnd time.Time) *stripe.Subscription {
	return &stripe.Subscription{
		ID:       id,
		Status:   stripe.SubscriptionStatus(status),
		Customer: &stripe.Customer{ID: customerID},
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{
				{
					CurrentPeriodStart: periodEnd.Add(-30 * 24 * time.Hour).Unix(),
					CurrentPeriodEnd:   periodEnd.Unix(),
					Price:              &stripe.Price{ID: "price_test"},
				},
			},
		},
	}
}

// --- user store fake ---

type fakeUsers struct {
	mu        sync.Mutex
	byID      map[string]*user.User
	createErr error
	linkErr   error
	deleteErr error
	deleted   []string
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: make(map[string]*user.User)}
}

func (f *fakeUsers) Create(_ context.Context, u *user.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.byID {
		if existing.Email == u.Email {
			return fmt.Errorf("create user: %w", core.ErrDuplicateKey)
		}
	}
	copied := *u
	f.byID[u.ID] = &copied
	return nil
}

func (f *fakeUsers) GetByEmail(
	_ context.Context,
	email string,
) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, fmt.Errorf("get user by email: %w", core.ErrNotFound)
}

func (f *fakeUsers) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.byID[id]; !ok {
		return fmt.Errorf("delete user: %w", core.ErrNotFound)
	}
	delete(f.byID, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeUsers) SetOrganization(_ context.Context, id, orgID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.linkErr != nil {
		return f.linkErr
	}
	u, ok := f.byID[id]
	if !ok {
		return fmt.Errorf("set user organization: %w", core.ErrNotFound)
	}
	u.OrgID = &orgID
	return nil
}

func (f *fakeUsers) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}

func (f *fakeUsers) first() *user.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		return u
	}
	return nil
}

// --- organization store fake ---

type fakeOrgs struct {
	mu        sync.Mutex
	byID      map[string]*organization.Organization
	createErr error
}

func newFakeOrgs() *fakeOrgs {
	return &fakeOrgs{byID: make(map[string]*organization.Organization)}
}

func (f *fakeOrgs) Create(_ context.Context, org *organization.Organization) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.byID {
		if existing.CheckoutSessionID == org.CheckoutSessionID {
			return fmt.Errorf("create organization: %w", core.ErrDuplicateKey)
		}
	}
	copied := *org
	f.byID[org.ID] = &copied
	return nil
}

func (f *fakeOrgs) GetByCheckoutSessionID(
	_ context.Context,
	sessionID string,
) (*organization.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, org := range f.byID {
		if org.CheckoutSessionID == sessionID {
			return org, nil
		}
	}
	return nil, fmt.Errorf("get organization by checkout session: %w", core.ErrNotFound)
}

func (f *fakeOrgs) UpsertAddOn(
	_ context.Context,
	id string,
	addon organization.AddOn,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	org, ok := f.byID[id]
	if !ok {
		return fmt.Errorf("upsert add-on: %w", core.ErrNotFound)
	}

	kept := org.AddOns[:0]
	for _, existing := range org.AddOns {
		if existing.SubscriptionID != addon.SubscriptionID {
			kept = append(kept, existing)
		}
	}
	org.AddOns = append(kept, addon)
	return nil
}

func (f *fakeOrgs) UpdatePlan(
	_ context.Context,
	id string,
	change organization.PlanChange,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	org, ok := f.byID[id]
	if !ok {
		return fmt.Errorf("update organization plan: %w", core.ErrNotFound)
	}

	org.Status = organization.StatusActive
	org.PlanID = change.PlanID
	org.PlanName = change.PlanName
	org.SubscriptionID = change.SubscriptionID
	org.CustomerID = change.CustomerID
	org.PlanStart = change.PlanStart
	org.PlanEnd = change.PlanEnd
	org.TrialStart = change.TrialStart
	org.TrialEnd = change.TrialEnd
	return nil
}

func (f *fakeOrgs) SyncPeriod(
	_ context.Context,
	customerID, status string,
	planEnd *time.Time,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, org := range f.byID {
		if org.CustomerID == customerID {
			org.Status = status
			org.PlanEnd = planEnd
			return nil
		}
	}
	return fmt.Errorf("sync organization period: %w", core.ErrNotFound)
}

func (f *fakeOrgs) FindByAddOnSubscriptionID(
	_ context.Context,
	subscriptionID string,
) (*organization.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, org := range f.byID {
		if _, ok := org.AddOns.Find(subscriptionID); ok {
			return org, nil
		}
	}
	return nil, fmt.Errorf("find organization by add-on: %w", core.ErrNotFound)
}

func (f *fakeOrgs) CancelAddOn(_ context.Context, id, subscriptionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	org, ok := f.byID[id]
	if !ok {
		return fmt.Errorf("cancel add-on: %w", core.ErrNotFound)
	}
	for i := range org.AddOns {
		if org.AddOns[i].SubscriptionID == subscriptionID {
			org.AddOns[i].Status = organization.StatusCanceled
		}
	}
	return nil
}

func (f *fakeOrgs) UpdateStatusByCustomerID(
	_ context.Context,
	customerID, status string,
) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, org := range f.byID {
		if org.CustomerID == customerID {
			org.Status = status
			return nil
		}
	}
	return fmt.Errorf("update organization status: %w", core.ErrNotFound)
}

func (f *fakeOrgs) add(org *organization.Organization) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[org.ID] = org
}

func (f *fakeOrgs) get(id string) *organization.Organization {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id]
}

func (f *fakeOrgs) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byID)
}

func (f *fakeOrgs) first() *organization.Organization {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, org := range f.byID {
		return org
	}
	return nil
}

// --- subscription mirror fake ---

type fakeMirror struct {
	mu        sync.Mutex
	rows      map[string]*subscription.Subscription
	upsertErr error
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{rows: make(map[string]*subscription.Subscription)}
}

func (f *fakeMirror) Upsert(_ context.Context, sub *subscription.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.upsertErr != nil {
		return f.upsertErr
	}
	if existing, ok := f.rows[sub.SubscriptionID]; ok {
		sub.CreatedAt = existing.CreatedAt
	} else {
		sub.CreatedAt = time.Now()
	}
	copied := *sub
	f.rows[sub.SubscriptionID] = &copied
	return nil
}

func (f *fakeMirror) GetBySubscriptionID(
	_ context.Context,
	subscriptionID string,
) (*subscription.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	row, ok := f.rows[subscriptionID]
	if !ok {
		return nil, fmt.Errorf("get subscription: %w", core.ErrNotFound)
	}
	return row, nil
}

func (f *fakeMirror) MarkCanceled(_ context.Context, subscriptionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if row, ok := f.rows[subscriptionID]; ok {
		row.Status = subscription.StatusCanceled
	}
	return nil
}

func (f *fakeMirror) get(id string) *subscription.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id]
}

func (f *fakeMirror) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

// --- mail + token fakes ---

type fakeMail struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (f *fakeMail) Enqueue(msg mailer.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
}

func (f *fakeMail) messages() []mailer.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]mailer.Message, len(f.sent))
	copy(out, f.sent)
	return out
}

type fakeTokens struct {
	err error
}

func (f *fakeTokens) Create(email string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "tok-" + email, nil
}

var errBoom = errors.New("boom")
