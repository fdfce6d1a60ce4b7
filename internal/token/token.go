// AngelaMos | 2026
// token.go

package token

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/opsdeck-io/provisioning/internal/config"
	"github.com/opsdeck-io/provisioning/internal/core"
)

// Signer issues and verifies the time-limited email-confirmation tokens
// embedded in provisioning emails.
type Signer struct {
	key    jwk.Key
	expiry time.Duration
	issuer string
}

func NewSigner(cfg config.TokenConfig) (*Signer, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("token secret is required")
	}

	key, err := jwk.Import([]byte(cfg.Secret))
	if err != nil {
		return nil, fmt.Errorf("import token key: %w", err)
	}

	return &Signer{
		key:    key,
		expiry: cfg.Expiry,
		issuer: cfg.Issuer,
	}, nil
}

// Create signs a confirmation token carrying the recipient's email.
func (s *Signer) Create(email string) (string, error) {
	now := time.Now()

	tok, err := jwt.NewBuilder().
		JwtID(uuid.New().String()).
		Issuer(s.issuer).
		IssuedAt(now).
		Expiration(now.Add(s.expiry)).
		NotBefore(now).
		Claim("email", email).
		Claim("type", "email_confirmation").
		Build()
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256(), s.key))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return string(signed), nil
}

// Verify returns the email claim of a valid, unexpired confirmation token.
func (s *Signer) Verify(tokenString string) (string, error) {
	tok, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKey(jwa.HS256(), s.key),
		jwt.WithValidate(true),
		jwt.WithIssuer(s.issuer),
	)
	if err != nil {
		if isTokenExpiredError(err) {
			return "", fmt.Errorf("verify token: %w", core.ErrTokenExpired)
		}
		return "", fmt.Errorf("verify token: %w", core.ErrTokenInvalid)
	}

	var tokenType string
	if err := tok.Get("type", &tokenType); err != nil ||
		tokenType != "email_confirmation" {
		return "", fmt.Errorf(
			"verify token: invalid token type: %w",
			core.ErrTokenInvalid,
		)
	}

	var email string
	if err := tok.Get("email", &email); err != nil || email == "" {
		return "", fmt.Errorf(
			"verify token: missing email claim: %w",
			core.ErrTokenInvalid,
		)
	}

	return email, nil
}

func isTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "exp") &&
		strings.Contains(errStr, "not satisfied")
}
