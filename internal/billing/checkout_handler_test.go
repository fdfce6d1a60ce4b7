// AngelaMos | 2026
// checkout_handler_test.go

package billing

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"

	"github.com/opsdeck-io/provisioning/internal/core"
	"github.com/opsdeck-io/provisioning/internal/organization"
)

type fakeSessions struct {
	last *CheckoutParams
	err  error
}

func (f *fakeSessions) CreateCheckoutSession(
	_ context.Context,
	params CheckoutParams,
) (*stripe.CheckoutSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.last = &params
	return &stripe.CheckoutSession{
		ID:  "cs_test",
		URL: "https://checkout.example.com/cs_test",
	}, nil
}

type fakeOrgGetter struct {
	known map[string]bool
}

func (f *fakeOrgGetter) GetByID(
	_ context.Context,
	id string,
) (*organization.Organization, error) {
	if f.known[id] {
		return &organization.Organization{ID: id}, nil
	}
	return nil, fmt.Errorf("get organization: %w", core.ErrNotFound)
}

func newCheckoutRouter(
	sessions SessionCreator,
	orgs OrganizationGetter,
) *chi.Mux {
	h := NewCheckoutHandler(sessions, orgs, slog.New(slog.DiscardHandler))
	router := chi.NewRouter()
	h.RegisterRoutes(router)
	return router
}

func postCheckout(router *chi.Mux, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(
		http.MethodPost,
		"/billing/checkout",
		strings.NewReader(body),
	)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCheckoutSignupHashesPassword(t *testing.T) {
	sessions := &fakeSessions{}
	router := newCheckoutRouter(sessions, &fakeOrgGetter{})

	rec := postCheckout(router, `{
		"price_id": "price_pro",
		"plan_name": "Pro",
		"first_name": "Ada",
		"last_name": "Lovelace",
		"email": "ada@example.com",
		"password": "correct horse battery",
		"org_name": "Analytical Engines",
		"org_slug": "analytical-engines"
	}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "cs_test")

	require.NotNil(t, sessions.last)
	meta := sessions.last.Metadata
	assert.Equal(t, "ada@example.com", meta["email"])
	assert.NotContains(t, meta, "password",
		"plaintext password must never reach session metadata")
	assert.True(t, core.IsPasswordHash(meta["password_hash"]))

	ok, err := core.VerifyPassword("correct horse battery", meta["password_hash"])
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCheckoutSignupRequiresAllFields(t *testing.T) {
	router := newCheckoutRouter(&fakeSessions{}, &fakeOrgGetter{})

	rec := postCheckout(router, `{
		"price_id": "price_pro",
		"plan_name": "Pro",
		"email": "ada@example.com"
	}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutTenantPurchase(t *testing.T) {
	sessions := &fakeSessions{}
	orgID := "11111111-2222-4333-8444-555555555555"
	router := newCheckoutRouter(
		sessions,
		&fakeOrgGetter{known: map[string]bool{orgID: true}},
	)

	rec := postCheckout(router, fmt.Sprintf(`{
		"price_id": "price_addon",
		"plan_name": "Extra Seats",
		"org_id": %q,
		"purchase": "addon"
	}`, orgID))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, sessions.last)
	assert.Equal(t, orgID, sessions.last.Metadata["org_id"])
	assert.Equal(t, "addon", sessions.last.Metadata["purchase"])
}

func TestCheckoutTenantUnknownOrganization(t *testing.T) {
	router := newCheckoutRouter(&fakeSessions{}, &fakeOrgGetter{})

	rec := postCheckout(router, `{
		"price_id": "price_addon",
		"plan_name": "Extra Seats",
		"org_id": "11111111-2222-4333-8444-555555555555",
		"purchase": "plan"
	}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckoutTenantRequiresPurchaseKind(t *testing.T) {
	orgID := "11111111-2222-4333-8444-555555555555"
	router := newCheckoutRouter(
		&fakeSessions{},
		&fakeOrgGetter{known: map[string]bool{orgID: true}},
	)

	rec := postCheckout(router, fmt.Sprintf(`{
		"price_id": "price_addon",
		"plan_name": "Extra Seats",
		"org_id": %q
	}`, orgID))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCheckoutRejectsInvalidBody(t *testing.T) {
	router := newCheckoutRouter(&fakeSessions{}, &fakeOrgGetter{})

	rec := postCheckout(router, `{not json`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
