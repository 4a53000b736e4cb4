package middleware

import (
	"net/http"
	"strings"

	"geotrack/backend/internal/platform/httpx"
)

const bearerPrefix = "bearer "

// unauthenticatedDetail is the body detail for missing or invalid tokens.
const unauthenticatedDetail = "Could not validate credentials"

// TokenVerifier returns the identity asserted by a bearer token.
type TokenVerifier interface {
	Verify(token string) (identity string, err error)
}

// RequireAuth returns middleware that validates the Bearer token from the
// Authorization header and sets the identity in the request context.
// Requests without a valid token get 401.
func RequireAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r)
			if token == "" {
				unauthenticated(w)
				return
			}
			identity, err := verifier.Verify(token)
			if err != nil {
				unauthenticated(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func unauthenticated(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	httpx.WriteError(w, http.StatusUnauthorized, unauthenticatedDetail)
}

// extractBearer returns the Bearer token from the Authorization header, or "" if missing or malformed.
func extractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
