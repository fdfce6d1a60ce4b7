// AngelaMos | 2026
// checkout_handler.go

package billing

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/stripe/stripe-go/v82"

	"github.com/opsdeck-io/provisioning/internal/core"
	"github.com/opsdeck-io/provisioning/internal/organization"
)

// SessionCreator is the slice of the Stripe client the checkout handler
// needs.
type SessionCreator interface {
	CreateCheckoutSession(
		ctx context.Context,
		params CheckoutParams,
	) (*stripe.CheckoutSession, error)
}

// OrganizationGetter confirms an existing tenant before a plan or add-on
// purchase session is created for it.
type OrganizationGetter interface {
	GetByID(ctx context.Context, id string) (*organization.Organization, error)
}

type CheckoutHandler struct {
	sessions  SessionCreator
	orgs      OrganizationGetter
	validator *validator.Validate
	logger    *slog.Logger
}

func NewCheckoutHandler(
	sessions SessionCreator,
	orgs OrganizationGetter,
	logger *slog.Logger,
) *CheckoutHandler {
	return &CheckoutHandler{
		sessions:  sessions,
		orgs:      orgs,
		validator: validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
	}
}

func (h *CheckoutHandler) RegisterRoutes(r chi.Router) {
	r.Post("/billing/checkout", h.CreateSession)
}

type checkoutRequest struct {
	PriceID  string `json:"price_id"  validate:"required"`
	PlanName string `json:"plan_name" validate:"required,max=120"`

	// New-signup fields.
	FirstName string `json:"first_name" validate:"omitempty,max=100"`
	LastName  string `json:"last_name"  validate:"omitempty,max=100"`
	Email     string `json:"email"      validate:"omitempty,email"`
	Password  string `json:"password"   validate:"omitempty,min=8,max=128"`
	OrgName   string `json:"org_name"   validate:"omitempty,max=200"`
	OrgSlug   string `json:"org_slug"   validate:"omitempty,max=63"`

	// Existing-tenant fields.
	OrgID    string `json:"org_id"   validate:"omitempty,uuid4"`
	Purchase string `json:"purchase" validate:"omitempty,oneof=addon plan"`
}

type checkoutResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// CreateSession creates a hosted checkout session. For new signups the
// plaintext password is hashed here; only the hash ever reaches session
// metadata, and only the hash is seen by the webhook side.
func (h *CheckoutHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	metadata, err := h.buildMetadata(r.Context(), req)
	if err != nil {
		core.JSONError(w, err)
		return
	}

	session, err := h.sessions.CreateCheckoutSession(r.Context(), CheckoutParams{
		PriceID:  req.PriceID,
		Metadata: metadata,
	})
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	h.logger.Info("checkout session created",
		"session_id", session.ID,
		"price_id", req.PriceID,
		"signup", req.OrgID == "",
	)

	core.Created(w, checkoutResponse{
		SessionID: session.ID,
		URL:       session.URL,
	})
}

func (h *CheckoutHandler) buildMetadata(
	ctx context.Context,
	req checkoutRequest,
) (map[string]string, error) {
	if req.OrgID != "" {
		if req.Purchase == "" {
			return nil, core.NewAppError(
				core.ErrInvalidInput,
				"purchase kind is required for existing organizations",
				http.StatusBadRequest,
				"BAD_REQUEST",
			)
		}

		if _, err := h.orgs.GetByID(ctx, req.OrgID); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return nil, core.NotFoundError("organization")
			}
			return nil, err
		}

		return TenantMetadata{
			OrgID:    req.OrgID,
			Purchase: req.Purchase,
			PlanID:   req.PriceID,
			PlanName: req.PlanName,
		}.ToMap(), nil
	}

	for field, value := range map[string]string{
		"email":    req.Email,
		"password": req.Password,
		"org_name": req.OrgName,
		"org_slug": req.OrgSlug,
	} {
		if value == "" {
			return nil, core.NewAppError(
				core.ErrInvalidInput,
				field+" is required for new signups",
				http.StatusBadRequest,
				"BAD_REQUEST",
			)
		}
	}

	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	return SignupMetadata{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		PasswordHash: passwordHash,
		OrgName:      req.OrgName,
		OrgSlug:      req.OrgSlug,
		PlanID:       req.PriceID,
		PlanName:     req.PlanName,
	}.ToMap(), nil
}
