package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/HammerMeetNail/plantcare/internal/logging"
)

// RequireCronSecret admits requests carrying "Authorization: Bearer <secret>".
// An empty secret rejects every request.
func RequireCronSecret(secret string) func(http.Handler) http.Handler {
	expected := []byte("Bearer " + secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(strings.TrimSpace(r.Header.Get("Authorization")))
			if secret == "" || subtle.ConstantTimeCompare(got, expected) != 1 {
				logging.Warn("Rejected cron request", map[string]interface{}{
					"path":      r.URL.Path,
					"client_ip": GetClientIP(r),
				})
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
