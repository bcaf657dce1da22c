package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/zatekoja/obstetric-locator/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/obstetric-locator/pkg/errors"
)

// AdminTokenHeader carries the admin token on debug requests.
const AdminTokenHeader = "X-Admin-Token"

// AdminOnly rejects requests whose X-Admin-Token does not match token.
// With an empty token every request is rejected.
func AdminOnly(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			given := r.Header.Get(AdminTokenHeader)
			if token == "" || subtle.ConstantTimeCompare([]byte(given), []byte(token)) != 1 {
				observability.LoggerFromContext(r.Context()).Warn().
					Str("path", r.URL.Path).
					Bool("token_configured", token != "").
					Msg("admin request rejected")
				writeUnauthorized(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    string(apperrors.ErrorTypeUnauthorized),
			"message": "admin token missing or invalid",
		},
	})
}
