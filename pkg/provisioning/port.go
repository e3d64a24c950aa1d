package provisioning

import (
	"context"

	"github.com/Abraxas-365/provisioning/pkg/kernel"
)

// RoleAssigner sets the initial role claim during creation.
type RoleAssigner interface {
	SetRole(ctx context.Context, id kernel.IdentityID, role string) error
}

// OrphanHandler is told about every orphaned identity. Implementations must
// not fail the caller's operation; errors are only logged.
type OrphanHandler interface {
	HandleOrphan(ctx context.Context, orphan Orphan) error
}

// AuditService records provisioning events.
type AuditService interface {
	LogProvisioned(ctx context.Context, id kernel.IdentityID, username string, role string)
	LogUpdated(ctx context.Context, ref kernel.IdentityID, identityChanged bool, fields []string)
	LogCredentialChanged(ctx context.Context, id kernel.IdentityID, selectorType SelectorType)
	LogDisabled(ctx context.Context, ref kernel.IdentityID)
	LogDeleted(ctx context.Context, ref kernel.IdentityID)
	LogCompensation(ctx context.Context, id kernel.IdentityID, step string, success bool)
}
