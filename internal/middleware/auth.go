package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/HammerMeetNail/plantcare/internal/handlers"
	"github.com/HammerMeetNail/plantcare/internal/logging"
	"github.com/HammerMeetNail/plantcare/internal/models"
	"github.com/HammerMeetNail/plantcare/internal/services"
)

type userUpserter interface {
	UpsertFromIdentity(ctx context.Context, identity models.Identity) (*models.User, error)
}

// AuthMiddleware resolves the Firebase ID token on each request to a local
// user.
type AuthMiddleware struct {
	verifier services.TokenVerifier
	users    userUpserter
}

func NewAuthMiddleware(verifier services.TokenVerifier, users userUpserter) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier, users: users}
}

// RequireUser rejects the request with 401 unless it carries a valid bearer
// ID token.
func (m *AuthMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		identity, err := m.verifier.VerifyIDToken(r.Context(), token)
		if err != nil {
			if !errors.Is(err, services.ErrInvalidToken) {
				logging.Error("ID token verification failed", map[string]interface{}{"error": err.Error()})
			}
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		user, err := m.users.UpsertFromIdentity(r.Context(), identity)
		if err != nil {
			logging.Error("Failed to resolve user for token", map[string]interface{}{
				"subject": identity.Subject,
				"error":   err.Error(),
			})
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		next.ServeHTTP(w, r.WithContext(handlers.SetUserInContext(r.Context(), user)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
