package identitysrv

import (
	"context"
	"strings"

	"github.com/Abraxas-365/provisioning/pkg/identity"
	"github.com/Abraxas-365/provisioning/pkg/logx"
)

// TokenValidator turns an Authorization header into a verified principal.
// Each call verifies against the provider; nothing is cached or retried.
type TokenValidator struct {
	provider identity.Provider
}

func NewTokenValidator(provider identity.Provider) *TokenValidator {
	return &TokenValidator{provider: provider}
}

// Validate returns the principal for a "Bearer <token>" header.
func (v *TokenValidator) Validate(ctx context.Context, authHeader string) (*identity.AuthenticatedPrincipal, error) {
	token, err := ParseBearer(authHeader)
	if err != nil {
		return nil, err
	}

	principal, err := v.provider.VerifyToken(ctx, token)
	if err != nil {
		entry := logx.WithContext(ctx).WithError(err)
		if identity.IsExpected(err) {
			entry.Debug("bearer token rejected")
		} else {
			entry.Warn("bearer token verification failed")
		}
		return nil, err
	}
	return principal, nil
}

// ParseBearer extracts the token from an Authorization header value.
func ParseBearer(authHeader string) (string, error) {
	authHeader = strings.TrimSpace(authHeader)
	if authHeader == "" {
		return "", ErrMissingAuthHeader()
	}
	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrMalformedBearer()
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMalformedBearer()
	}
	return token, nil
}
