// AngelaMos | 2026
// handler.go

package user

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opsdeck-io/provisioning/internal/core"
)

// TokenVerifier validates an email-confirmation token and returns the
// email it was issued for.
type TokenVerifier interface {
	Verify(tokenString string) (string, error)
}

type Handler struct {
	repo   Repository
	tokens TokenVerifier
	logger *slog.Logger
}

func NewHandler(repo Repository, tokens TokenVerifier, logger *slog.Logger) *Handler {
	return &Handler{repo: repo, tokens: tokens, logger: logger}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/confirm-email", h.ConfirmEmail)
}

type confirmEmailResponse struct {
	Email    string `json:"email"`
	Verified bool   `json:"verified"`
}

// ConfirmEmail consumes the signed token from the confirmation link and
// marks the matching account verified. Reconfirming an already verified
// address succeeds.
func (h *Handler) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	tok := r.URL.Query().Get("token")
	if tok == "" {
		core.BadRequest(w, "token is required")
		return
	}

	email, err := h.tokens.Verify(tok)
	if err != nil {
		if errors.Is(err, core.ErrTokenExpired) {
			core.BadRequest(w, "confirmation link has expired")
			return
		}
		core.BadRequest(w, "confirmation link is invalid")
		return
	}

	if err := h.repo.MarkEmailVerified(r.Context(), email); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "user")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	h.logger.Info("email confirmed", "email", email)

	core.OK(w, confirmEmailResponse{Email: email, Verified: true})
}
