package identitysrv

import (
	"context"

	"github.com/Abraxas-365/provisioning/pkg/identity"
	"github.com/Abraxas-365/provisioning/pkg/kernel"
	"github.com/Abraxas-365/provisioning/pkg/logx"
)

// ClaimsManager reads and writes role and permission claims on the
// provider side.
type ClaimsManager struct {
	provider identity.Provider
}

func NewClaimsManager(provider identity.Provider) *ClaimsManager {
	return &ClaimsManager{provider: provider}
}

// SetRole replaces the identity's roles with role and its permissions with
// the role's permission set. The organization claim is preserved.
func (m *ClaimsManager) SetRole(ctx context.Context, id kernel.IdentityID, role string) error {
	if !identity.IsKnownRole(role) {
		return ErrUnknownRole(role)
	}

	current, err := m.GetClaims(ctx, id)
	if err != nil {
		return err
	}

	claims := identity.Claims{
		Roles:          []string{role},
		Permissions:    identity.PermissionsFor(role),
		OrganizationID: current.OrganizationID,
		Extra:          current.Extra,
	}
	if err := m.provider.SetClaims(ctx, id, claims); err != nil {
		return err
	}

	logx.WithContext(ctx).WithFields(logx.Fields{
		"identity_id": id,
		"role":        role,
	}).Info("role assigned")
	return nil
}

func (m *ClaimsManager) GetClaims(ctx context.Context, id kernel.IdentityID) (*identity.Claims, error) {
	ident, err := m.provider.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	claims := ident.Claims
	return &claims, nil
}

// GrantPermissions adds permissions on top of the current set.
func (m *ClaimsManager) GrantPermissions(ctx context.Context, id kernel.IdentityID, permissions ...string) error {
	current, err := m.GetClaims(ctx, id)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(current.Permissions))
	merged := make([]string, 0, len(current.Permissions)+len(permissions))
	for _, p := range append(current.Permissions, permissions...) {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		merged = append(merged, p)
	}
	current.Permissions = merged
	return m.provider.SetClaims(ctx, id, *current)
}

// SetOrganization sets the organization claim; an empty orgID clears it.
func (m *ClaimsManager) SetOrganization(ctx context.Context, id kernel.IdentityID, orgID kernel.OrganizationID) error {
	current, err := m.GetClaims(ctx, id)
	if err != nil {
		return err
	}
	if orgID.IsEmpty() {
		current.OrganizationID = nil
	} else {
		org := orgID.String()
		current.OrganizationID = &org
	}
	return m.provider.SetClaims(ctx, id, *current)
}
