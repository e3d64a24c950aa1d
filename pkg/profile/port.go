package profile

import (
	"context"

	"github.com/Abraxas-365/provisioning/pkg/kernel"
)

// Store is the profile service as seen by its callers. Records are keyed by
// the identity reference they belong to.
type Store interface {
	Create(ctx context.Context, req CreateRequest) (*ProfileRecord, error)
	Get(ctx context.Context, identityRef kernel.IdentityID) (*ProfileRecord, error)
	Update(ctx context.Context, identityRef kernel.IdentityID, patch Patch) (*ProfileRecord, error)
	Delete(ctx context.Context, identityRef kernel.IdentityID) error
	FindByUsername(ctx context.Context, username string, principalType PrincipalType) (*ProfileRecord, error)
	List(ctx context.Context, filter Filter, opts kernel.PaginationOptions) (*kernel.Paginated[ProfileRecord], error)
}

// Repository persists profile records.
type Repository interface {
	Insert(ctx context.Context, rec ProfileRecord) error
	FindByIdentityRef(ctx context.Context, identityRef kernel.IdentityID) (*ProfileRecord, error)
	FindByUsername(ctx context.Context, username string, principalType PrincipalType) (*ProfileRecord, error)
	Update(ctx context.Context, rec ProfileRecord) error
	DeleteByIdentityRef(ctx context.Context, identityRef kernel.IdentityID) error
	List(ctx context.Context, filter Filter, opts kernel.PaginationOptions) ([]ProfileRecord, int, error)
}
