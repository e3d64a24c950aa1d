package identity

import (
	"strings"
	"time"

	"github.com/Abraxas-365/provisioning/pkg/kernel"
)

// ============================================================================
// Entities
// ============================================================================

// Identity is a principal as the identity provider sees it.
type Identity struct {
	ID            kernel.IdentityID `json:"identity_id"`
	Email         string            `json:"email"`
	DisplayName   string            `json:"display_name,omitempty"`
	PhoneNumber   string            `json:"phone_number,omitempty"`
	EmailVerified bool              `json:"email_verified"`
	Disabled      bool              `json:"disabled"`
	Claims        Claims            `json:"custom_claims"`
	CreatedAt     time.Time         `json:"created_at"`
	LastSignIn    *time.Time        `json:"last_sign_in,omitempty"`
}

// Claims are the custom claims stored on an identity.
type Claims struct {
	Roles          []string               `json:"roles"`
	Permissions    []string               `json:"permissions"`
	OrganizationID *string                `json:"organization_id,omitempty"`
	Extra          map[string]interface{} `json:"extra,omitempty"`
}

const (
	claimRoles          = "roles"
	claimPermissions    = "permissions"
	claimOrganizationID = "organization_id"
)

// ToMap flattens the claims into the shape providers store them in.
func (c Claims) ToMap() map[string]interface{} {
	m := make(map[string]interface{}, len(c.Extra)+3)
	for k, v := range c.Extra {
		m[k] = v
	}
	m[claimRoles] = nonNil(c.Roles)
	m[claimPermissions] = nonNil(c.Permissions)
	if c.OrganizationID != nil {
		m[claimOrganizationID] = *c.OrganizationID
	}
	return m
}

// ClaimsFromMap is the inverse of ToMap. Unknown keys land in Extra.
func ClaimsFromMap(m map[string]interface{}) Claims {
	c := Claims{Roles: []string{}, Permissions: []string{}}
	for k, v := range m {
		switch k {
		case claimRoles:
			c.Roles = toStrings(v)
		case claimPermissions:
			c.Permissions = toStrings(v)
		case claimOrganizationID:
			if s, ok := v.(string); ok && s != "" {
				c.OrganizationID = &s
			}
		default:
			if c.Extra == nil {
				c.Extra = make(map[string]interface{})
			}
			c.Extra[k] = v
		}
	}
	return c
}

// HasRole reports whether role is among the claimed roles.
func (c Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// AuthenticatedPrincipal is derived from a verified token and lives for a
// single request.
type AuthenticatedPrincipal struct {
	IdentityID    kernel.IdentityID `json:"identity_id"`
	Email         string            `json:"email"`
	EmailVerified bool              `json:"email_verified"`
	Claims        Claims            `json:"custom_claims"`
}

// ToAuthContext converts the principal into the kernel request context.
func (p *AuthenticatedPrincipal) ToAuthContext() *kernel.AuthContext {
	ac := &kernel.AuthContext{
		IdentityID:    p.IdentityID,
		Email:         p.Email,
		EmailVerified: p.EmailVerified,
		Roles:         nonNil(p.Claims.Roles),
		Permissions:   nonNil(p.Claims.Permissions),
	}
	if p.Claims.OrganizationID != nil {
		org := kernel.OrganizationID(*p.Claims.OrganizationID)
		ac.OrganizationID = &org
	}
	return ac
}

// ============================================================================
// Inputs
// ============================================================================

// CreateInput carries what the provider needs to create a principal.
type CreateInput struct {
	Email       string
	Password    string
	DisplayName string
	PhoneNumber string
}

// UpdateInput only carries provider-tracked attributes. Nil means unchanged.
type UpdateInput struct {
	Email       *string
	PhoneNumber *string
}

// IsEmpty reports whether the update would change nothing.
func (u UpdateInput) IsEmpty() bool {
	return u.Email == nil && u.PhoneNumber == nil
}

// ComposePhoneNumber joins a country code and a local number into E.164-ish
// form, e.g. ("51", "987 654 321") -> "+51987654321".
func ComposePhoneNumber(countryCode, local string) string {
	cc := strings.TrimLeft(digits(countryCode), "0")
	return "+" + cc + digits(local)
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func toStrings(v interface{}) []string {
	switch vv := v.(type) {
	case []string:
		return append([]string{}, vv...)
	case []interface{}:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{vv}
	default:
		return []string{}
	}
}
