package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

const bearerPrefix = "Bearer "

// RequireSecret rejects requests whose Authorization header does not carry the shared hook secret
// as a bearer token. An empty secret disables the check (development only; config refuses it in production).
// PRE: none
// POST: next runs only for requests presenting the secret
func RequireSecret(secret string) func(http.Handler) http.Handler {
	want := []byte(secret)
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, bearerPrefix) {
				w.Header().Set("WWW-Authenticate", `Bearer realm="categorywatch"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			got := []byte(strings.TrimPrefix(header, bearerPrefix))
			if subtle.ConstantTimeCompare(got, want) != 1 {
				slog.Warn("hook_auth_failed", "ip", clientIP(r), "path", r.URL.Path)
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
