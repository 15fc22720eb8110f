package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/HammerMeetNail/plantcare/internal/models"
)

var ErrInvalidToken = errors.New("invalid id token")

// TokenVerifier turns a bearer ID token into the caller's identity.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, rawToken string) (models.Identity, error)
}

type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the issuer's signing keys. For Firebase the
// issuer is https://securetoken.google.com/<project> and the audience is the
// project id.
func NewOIDCVerifier(ctx context.Context, issuerURL, audience string) (*OIDCVerifier, error) {
	if strings.TrimSpace(issuerURL) == "" || strings.TrimSpace(audience) == "" {
		return nil, errors.New("issuer url and audience are required")
	}

	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("discovering oidc provider: %w", err)
	}

	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: audience}),
	}, nil
}

func newOIDCVerifierWithKeySet(issuerURL string, keySet oidc.KeySet, config *oidc.Config) *OIDCVerifier {
	return &OIDCVerifier{verifier: oidc.NewVerifier(issuerURL, keySet, config)}
}

func (v *OIDCVerifier) VerifyIDToken(ctx context.Context, rawToken string) (models.Identity, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return models.Identity{}, ErrInvalidToken
	}

	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return models.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var claims struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return models.Identity{}, fmt.Errorf("parsing id token claims: %w", err)
	}
	if idToken.Subject == "" {
		return models.Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return models.Identity{
		Subject: idToken.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
	}, nil
}
