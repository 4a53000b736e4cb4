package middleware

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"geotrack/backend/internal/audit"
)

// AuditMutations returns middleware that records an audit log entry after each
// authenticated mutating request (POST, PUT, PATCH, DELETE).
// skip is keyed by "METHOD pattern" (e.g. "POST /data"). Logging is best-effort.
func AuditMutations(logger audit.AuditLogger, skip map[string]bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if logger == nil || !isMutation(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			identity, ok := GetIdentity(r.Context())
			if !ok {
				return
			}
			pattern := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				pattern = rctx.RoutePattern()
			}
			if skip[r.Method+" "+pattern] {
				return
			}
			ar := audit.ParseRoute(r.Method, pattern)
			logger.LogEvent(r.Context(), identity, ar.Action, ar.Resource, "status="+strconv.Itoa(rec.status))
		})
	}
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
