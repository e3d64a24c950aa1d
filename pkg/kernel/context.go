package kernel

import "context"

// ============================================================================
// Context Types
// ============================================================================

// AuthContext is the per-request view of the verified caller
type AuthContext struct {
	IdentityID     IdentityID      `json:"identity_id"`
	Email          string          `json:"email"`
	EmailVerified  bool            `json:"email_verified"`
	Roles          []string        `json:"roles"`
	Permissions    []string        `json:"permissions"`
	OrganizationID *OrganizationID `json:"organization_id,omitempty"`
}

// IsValid reports whether the context identifies a caller
func (ac *AuthContext) IsValid() bool {
	return ac != nil && !ac.IdentityID.IsEmpty()
}

// ============================================================================
// Role and Permission Checks
// ============================================================================

// HasRole reports whether the caller holds role
func (ac *AuthContext) HasRole(role string) bool {
	for _, r := range ac.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the caller holds at least one of roles
func (ac *AuthContext) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if ac.HasRole(role) {
			return true
		}
	}
	return false
}

// HasPermission checks a "resource:action" permission. "*" and
// "resource:*" grants match as wildcards.
func (ac *AuthContext) HasPermission(permission string) bool {
	for _, p := range ac.Permissions {
		if p == permission || p == "*" {
			return true
		}
		if len(p) > 2 && p[len(p)-2:] == ":*" {
			prefix := p[:len(p)-2]
			if len(permission) > len(prefix) && permission[:len(prefix)] == prefix && permission[len(prefix)] == ':' {
				return true
			}
		}
	}
	return false
}

// ============================================================================
// Context Keys
// ============================================================================

type ContextKey string

const (
	// AuthContextKey stores *AuthContext in context.Context and fiber locals
	AuthContextKey ContextKey = "auth_context"

	// RequestIDKey stores the request id
	RequestIDKey ContextKey = "request_id"

	// BearerTokenKey stores the caller's raw bearer token for downstream calls
	BearerTokenKey ContextKey = "bearer_token"
)

// WithAuthContext returns a copy of ctx carrying ac
func WithAuthContext(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, AuthContextKey, ac)
}

// AuthContextFrom extracts the AuthContext stored by WithAuthContext
func AuthContextFrom(ctx context.Context) (*AuthContext, bool) {
	ac, ok := ctx.Value(AuthContextKey).(*AuthContext)
	return ac, ok && ac != nil
}

// WithBearerToken returns a copy of ctx carrying the caller's token
func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, BearerTokenKey, token)
}

// BearerTokenFrom extracts the token stored by WithBearerToken
func BearerTokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(BearerTokenKey).(string)
	return token
}
