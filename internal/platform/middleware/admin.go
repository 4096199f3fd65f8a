package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"idmask/pkg/platform/audit"
	"idmask/pkg/requestcontext"
)

// AdminTokenHeader carries the operator token on mutating routes.
const AdminTokenHeader = "X-Admin-Token"

// RequireAdminToken rejects requests whose admin token does not match
// expectedToken. An empty expectedToken rejects everything.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(AdminTokenHeader)
			if expectedToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				ctx := r.Context()
				audit.Record(ctx, logger, nil, audit.EventAdminRejected,
					"path", r.URL.Path,
					"reason", reasonFor(token),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden","error_description":"admin token required"}`))
				return
			}

			ctx := requestcontext.WithActor(r.Context(), "admin")
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func reasonFor(token string) string {
	if token == "" {
		return "missing token"
	}
	return "token mismatch"
}
