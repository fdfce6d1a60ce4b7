// AngelaMos | 2026
// apikey.go

package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/opsdeck-io/provisioning/internal/core"
)

const apiKeyHeader = "X-API-Key"

// RequireAPIKey guards operational endpoints with a static key. An empty
// configured key disables the routes entirely rather than leaving them open.
func RequireAPIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				core.JSONError(w, core.ForbiddenError("admin API disabled"))
				return
			}

			provided := r.Header.Get(apiKeyHeader)
			if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
				core.JSONError(w, core.UnauthorizedError("invalid API key"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
