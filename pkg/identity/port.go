package identity

import (
	"context"

	"github.com/Abraxas-365/provisioning/pkg/kernel"
)

// Provider is the single substitution point for the external identity
// provider. Every method returns either a domain value or an *errx.Error
// built from this package's registry; provider-native errors never escape.
type Provider interface {
	CreateIdentity(ctx context.Context, in CreateInput) (*Identity, error)
	VerifyToken(ctx context.Context, token string) (*AuthenticatedPrincipal, error)
	UpdateIdentity(ctx context.Context, id kernel.IdentityID, in UpdateInput) (*Identity, error)
	SetPassword(ctx context.Context, id kernel.IdentityID, password string) error
	SetClaims(ctx context.Context, id kernel.IdentityID, claims Claims) error
	GetByID(ctx context.Context, id kernel.IdentityID) (*Identity, error)
	GetByEmail(ctx context.Context, email string) (*Identity, error)
	Disable(ctx context.Context, id kernel.IdentityID) error
	RevokeTokens(ctx context.Context, id kernel.IdentityID) error
	DeleteIdentity(ctx context.Context, id kernel.IdentityID) error
}
