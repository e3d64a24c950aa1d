package provisioning

import (
	"net/http"

	"github.com/Abraxas-365/provisioning/pkg/errx"
	"github.com/Abraxas-365/provisioning/pkg/kernel"
)

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("PROVISIONING")

var (
	CodeProfileCreationFailed = ErrRegistry.Register("PROFILE_CREATION_FAILED", errx.TypeBusiness, http.StatusUnprocessableEntity, "Profile could not be created; the identity was rolled back")
	CodePartialUpdateFailure  = ErrRegistry.Register("PARTIAL_UPDATE_FAILURE", errx.TypeExternal, http.StatusBadGateway, "Identity updated but profile update failed")
	CodeOrphanedIdentity      = ErrRegistry.Register("ORPHANED_IDENTITY", errx.TypeInternal, http.StatusInternalServerError, "Identity left without a profile; operator reconciliation required")
	CodeIdentityNotFound      = ErrRegistry.Register("IDENTITY_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Identity not found")
	CodeInvalidPatch          = ErrRegistry.Register("INVALID_PATCH", errx.TypeValidation, http.StatusBadRequest, "Invalid patch")
	CodeInvalidRequest        = ErrRegistry.Register("INVALID_REQUEST", errx.TypeValidation, http.StatusBadRequest, "Invalid request")
	CodeInconsistentView      = ErrRegistry.Register("INCONSISTENT_VIEW", errx.TypeInternal, http.StatusInternalServerError, "Identity and profile do not reference each other")
)

func ErrProfileCreationFailed(id kernel.IdentityID, cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeProfileCreationFailed, cause).
		WithDetail("identity_id", id.String()).
		WithDetail("cause_code", errx.CodeOf(cause))
}

// ErrPartialUpdateFailure records that the identity side was changed and the
// profile side was not. Retrying the profile update alone is safe.
func ErrPartialUpdateFailure(ref kernel.IdentityID, cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodePartialUpdateFailure, cause).
		WithDetail("identity_ref", ref.String()).
		WithDetail("identity_updated", true).
		WithDetail("profile_updated", false).
		WithDetail("cause_code", errx.CodeOf(cause))
}

func ErrOrphanedIdentity(id kernel.IdentityID, cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeOrphanedIdentity, cause).
		WithDetail("identity_id", id.String())
}

func ErrIdentityNotFound(selector string) *errx.Error {
	return ErrRegistry.New(CodeIdentityNotFound).WithDetail("selector", selector)
}

func ErrInvalidPatch(msg string) *errx.Error {
	return ErrRegistry.NewWithMessage(CodeInvalidPatch, msg)
}

func ErrInvalidRequest(msg string) *errx.Error {
	return ErrRegistry.NewWithMessage(CodeInvalidRequest, msg)
}
